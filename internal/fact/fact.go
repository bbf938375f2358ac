package fact

import (
	"fmt"
	"strings"
)

// Subject kinds understood by the merge rules.
const (
	KindSkill      = "skill"
	KindTargetRole = "targetRole"
	KindPreference = "preference"
	KindGoal       = "goal"
)

// Fact is a candidate assertion about a user, extracted from a transcript.
// Facts are transient: they are consumed exactly once by consolidation and
// persisted only as part of the session record that carried them.
type Fact struct {
	Subject         string    `json:"subject"` // "skill:FastAPI", "targetRole", "preference:learning_style", "goal"
	Assertion       Assertion `json:"assertion"`
	Confidence      float64   `json:"confidence"`
	SourceSessionID string    `json:"source_session_id,omitempty"`
}

// Assertion is the structured value of a fact. Which fields are meaningful
// depends on the subject kind.
type Assertion struct {
	Value       string `json:"value,omitempty"`       // target role, preference value, goal description
	Proficiency string `json:"proficiency,omitempty"` // skills
	Status      string `json:"status,omitempty"`      // skill status ("claimed", "in-progress", "validated") or goal status ("active", "achieved", "abandoned")
	Horizon     string `json:"horizon,omitempty"`     // goals
}

// Subject is a parsed fact subject.
type Subject struct {
	Kind string // KindSkill, KindTargetRole, KindPreference, KindGoal
	Name string // skill name or preference key; empty otherwise
}

// ParseSubject splits a subject string into kind and name.
func ParseSubject(s string) (Subject, error) {
	kind, name, hasName := strings.Cut(s, ":")
	kind = strings.TrimSpace(kind)
	name = strings.TrimSpace(name)

	switch kind {
	case KindSkill:
		if !hasName || name == "" {
			return Subject{}, fmt.Errorf("skill subject missing name: %q", s)
		}
		return Subject{Kind: KindSkill, Name: name}, nil
	case KindPreference:
		if !hasName || name == "" {
			return Subject{}, fmt.Errorf("preference subject missing key: %q", s)
		}
		return Subject{Kind: KindPreference, Name: name}, nil
	case KindTargetRole:
		return Subject{Kind: KindTargetRole}, nil
	case KindGoal:
		return Subject{Kind: KindGoal}, nil
	default:
		return Subject{}, fmt.Errorf("unknown fact subject: %q", s)
	}
}

// NormalizeDescription canonicalizes a goal description for matching:
// lowercase, trimmed, inner whitespace collapsed to single spaces.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
