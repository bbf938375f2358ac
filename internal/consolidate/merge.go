package consolidate

import (
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-oss/mnemo/internal/fact"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/mnemo-oss/mnemo/internal/sessionlog"
)

// Policy decides which of two contradictory facts from the same session wins.
type Policy string

const (
	// PolicyLastWins applies facts in merge order, later facts overwriting
	// earlier ones for the same subject.
	PolicyLastWins Policy = "last-wins"
	// PolicyFirstWins rejects a fact whose subject an earlier fact in the
	// same session already applied.
	PolicyFirstWins Policy = "first-wins"
)

// MergeRules configures the deterministic merge step.
type MergeRules struct {
	// ConfidenceThreshold is the minimum confidence for a fact to mutate
	// the profile. Below it the fact is recorded but not applied.
	ConfidenceThreshold float64
	// Policy resolves contradictory facts within one session.
	Policy Policy
}

// DefaultRules returns the standard merge configuration.
func DefaultRules() MergeRules {
	return MergeRules{
		ConfidenceThreshold: 0.5,
		Policy:              PolicyLastWins,
	}
}

// Merge applies facts to a working copy of base and reports per-fact outcomes.
// The base profile is never mutated; the returned profile is a clone with the
// accepted facts applied, every touched field attributed to sessionID.
// changed is false when no fact survived the rules, in which case the caller
// should skip the compare-and-set entirely.
func Merge(base *profile.Profile, facts []fact.Fact, sessionID string, now time.Time, rules MergeRules) (merged *profile.Profile, outcomes []sessionlog.FactOutcome, changed bool) {
	merged = base.Clone()
	outcomes = make([]sessionlog.FactOutcome, 0, len(facts))

	// Subjects already applied this session, for the first-wins policy.
	applied := make(map[string]bool)

	for _, f := range facts {
		f.SourceSessionID = sessionID
		outcome := sessionlog.FactOutcome{Fact: f}

		subject, err := fact.ParseSubject(f.Subject)
		if err != nil {
			outcome.Reason = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		if f.Confidence < rules.ConfidenceThreshold {
			outcome.Reason = fmt.Sprintf("confidence %.2f below threshold %.2f", f.Confidence, rules.ConfidenceThreshold)
			outcomes = append(outcomes, outcome)
			continue
		}

		key := subjectKey(subject, f.Assertion)
		if rules.Policy == PolicyFirstWins && applied[key] {
			outcome.Reason = "subject already set by an earlier fact in this session"
			outcomes = append(outcomes, outcome)
			continue
		}

		var reason string
		switch subject.Kind {
		case fact.KindSkill:
			reason = mergeSkill(merged, subject.Name, f.Assertion, sessionID, now)
		case fact.KindTargetRole:
			reason = mergeTargetRole(merged, f.Assertion, sessionID, now)
		case fact.KindPreference:
			reason = mergePreference(merged, subject.Name, f.Assertion, sessionID, now)
		case fact.KindGoal:
			reason = mergeGoal(merged, f.Assertion, sessionID, now)
		}

		if reason != "" {
			outcome.Reason = reason
			outcomes = append(outcomes, outcome)
			continue
		}

		outcome.Applied = true
		outcomes = append(outcomes, outcome)
		applied[key] = true
		changed = true
	}

	if changed {
		merged.UpdatedAt = now
	}
	return merged, outcomes, changed
}

// subjectKey identifies what a fact targets, for within-session conflict
// detection. Goals are keyed by normalized description since each description
// is its own entry.
func subjectKey(s fact.Subject, a fact.Assertion) string {
	switch s.Kind {
	case fact.KindSkill, fact.KindPreference:
		return s.Kind + ":" + strings.ToLower(s.Name)
	case fact.KindGoal:
		return s.Kind + ":" + fact.NormalizeDescription(a.Value)
	default:
		return s.Kind
	}
}

// mergeSkill inserts or upgrades a skill entry. Status never regresses from
// an inferred fact; only an explicit user edit may downgrade trust-sensitive
// state. Returns a rejection reason, or "" if the fact was applied.
func mergeSkill(p *profile.Profile, name string, a fact.Assertion, sessionID string, now time.Time) string {
	status := profile.SkillStatus(a.Status)
	if a.Status != "" && !status.Valid() {
		return fmt.Sprintf("unknown skill status %q", a.Status)
	}

	entry, known := p.Skills[name]
	if !known {
		entry = profile.Skill{Status: profile.SkillClaimed}
		if status.Valid() && status.Rank() > entry.Status.Rank() {
			entry.Status = status
		}
		if entry.Status == profile.SkillValidated {
			ts := now
			entry.ValidatedAt = &ts
		}
		entry.Proficiency = a.Proficiency
		entry.UpdatedAt = now
		entry.SessionID = sessionID
		p.Skills[name] = entry
		return ""
	}

	if status.Valid() && status.Rank() < entry.Status.Rank() {
		return fmt.Sprintf("status %s would regress %s; regression requires an explicit edit", status, entry.Status)
	}

	touched := false
	if status.Valid() && status.Rank() > entry.Status.Rank() {
		entry.Status = status
		if status == profile.SkillValidated {
			ts := now
			entry.ValidatedAt = &ts
		}
		touched = true
	}
	if a.Proficiency != "" && a.Proficiency != entry.Proficiency {
		entry.Proficiency = a.Proficiency
		touched = true
	}
	if !touched {
		return "no change to existing skill"
	}

	entry.UpdatedAt = now
	entry.SessionID = sessionID
	p.Skills[name] = entry
	return ""
}

// mergeTargetRole is last-write-wins across sessions; the threshold check
// already happened.
func mergeTargetRole(p *profile.Profile, a fact.Assertion, sessionID string, now time.Time) string {
	if strings.TrimSpace(a.Value) == "" {
		return "target role assertion has no value"
	}
	if p.TargetRole != nil && p.TargetRole.Value == a.Value {
		return "target role unchanged"
	}
	p.TargetRole = &profile.TargetRole{Value: a.Value, UpdatedAt: now, SessionID: sessionID}
	return ""
}

func mergePreference(p *profile.Profile, key string, a fact.Assertion, sessionID string, now time.Time) string {
	if strings.TrimSpace(a.Value) == "" {
		return "preference assertion has no value"
	}
	if existing, ok := p.Preferences[key]; ok && existing.Value == a.Value {
		return "preference unchanged"
	}
	p.Preferences[key] = profile.Preference{Value: a.Value, UpdatedAt: now, SessionID: sessionID}
	return ""
}

// mergeGoal appends new goals and transitions existing ones. An "achieved" or
// "abandoned" assertion must match an existing goal by normalized description;
// no match means the fact is rejected rather than speculatively creating a
// goal that was never stated as active.
func mergeGoal(p *profile.Profile, a fact.Assertion, sessionID string, now time.Time) string {
	desc := strings.TrimSpace(a.Value)
	if desc == "" {
		return "goal assertion has no description"
	}

	status := profile.GoalStatus(a.Status)
	if a.Status != "" && !status.Valid() {
		return fmt.Sprintf("unknown goal status %q", a.Status)
	}

	idx := findGoal(p, desc)

	if status == profile.GoalAchieved || status == profile.GoalAbandoned {
		if idx < 0 {
			return fmt.Sprintf("no goal matching %q to mark %s", desc, status)
		}
		if p.Goals[idx].Status == status {
			return "goal status unchanged"
		}
		p.Goals[idx].Status = status
		p.Goals[idx].UpdatedAt = now
		p.Goals[idx].SessionID = sessionID
		return ""
	}

	if idx >= 0 {
		return "goal already tracked"
	}
	p.Goals = append(p.Goals, profile.Goal{
		Description: desc,
		Horizon:     a.Horizon,
		Status:      profile.GoalActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		SessionID:   sessionID,
	})
	return ""
}

func findGoal(p *profile.Profile, description string) int {
	want := fact.NormalizeDescription(description)
	for i, g := range p.Goals {
		if fact.NormalizeDescription(g.Description) == want {
			return i
		}
	}
	return -1
}
