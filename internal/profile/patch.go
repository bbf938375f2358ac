package profile

import (
	"fmt"
	"strings"
	"time"
)

// SkillPatch edits one skill entry. Nil fields are left unchanged.
type SkillPatch struct {
	Proficiency *string      `json:"proficiency,omitempty"`
	Status      *SkillStatus `json:"status,omitempty"`
}

// GoalPatch adds a new goal.
type GoalPatch struct {
	Description string `json:"description"`
	Horizon     string `json:"horizon,omitempty"`
}

// Patch is a direct, user-initiated profile edit. Unlike an inferred fact, a
// patch may regress trust-sensitive state (e.g. validated back to claimed).
type Patch struct {
	TargetRole   *string                `json:"target_role,omitempty"` // empty string clears it
	Preferences  map[string]string      `json:"preferences,omitempty"`
	Skills       map[string]SkillPatch  `json:"skills,omitempty"`
	RemoveSkills []string               `json:"remove_skills,omitempty"`
	AddGoals     []GoalPatch            `json:"add_goals,omitempty"`
	GoalStatus   map[string]GoalStatus  `json:"goal_status,omitempty"` // keyed by goal description
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.TargetRole == nil &&
		len(p.Preferences) == 0 &&
		len(p.Skills) == 0 &&
		len(p.RemoveSkills) == 0 &&
		len(p.AddGoals) == 0 &&
		len(p.GoalStatus) == 0
}

// ApplyPatch mutates the profile in place. editID attributes every touched
// field, so edits stay auditable the same way merged facts are.
func (p *Profile) ApplyPatch(patch Patch, editID string, now time.Time) error {
	if patch.TargetRole != nil {
		if *patch.TargetRole == "" {
			p.TargetRole = nil
		} else {
			p.TargetRole = &TargetRole{Value: *patch.TargetRole, UpdatedAt: now, SessionID: editID}
		}
	}

	for key, value := range patch.Preferences {
		p.Preferences[key] = Preference{Value: value, UpdatedAt: now, SessionID: editID}
	}

	for name, sp := range patch.Skills {
		entry, ok := p.Skills[name]
		if !ok {
			entry = Skill{Status: SkillClaimed}
		}
		if sp.Proficiency != nil {
			entry.Proficiency = *sp.Proficiency
		}
		if sp.Status != nil {
			if !sp.Status.Valid() {
				return fmt.Errorf("invalid skill status %q for %s", *sp.Status, name)
			}
			entry.Status = *sp.Status
			if entry.Status == SkillValidated {
				ts := now
				entry.ValidatedAt = &ts
			} else {
				entry.ValidatedAt = nil
			}
		}
		entry.UpdatedAt = now
		entry.SessionID = editID
		p.Skills[name] = entry
	}

	for _, name := range patch.RemoveSkills {
		delete(p.Skills, name)
	}

	for _, gp := range patch.AddGoals {
		if strings.TrimSpace(gp.Description) == "" {
			return fmt.Errorf("goal description must not be empty")
		}
		p.Goals = append(p.Goals, Goal{
			Description: gp.Description,
			Horizon:     gp.Horizon,
			Status:      GoalActive,
			CreatedAt:   now,
			UpdatedAt:   now,
			SessionID:   editID,
		})
	}

	for desc, status := range patch.GoalStatus {
		if !status.Valid() {
			return fmt.Errorf("invalid goal status %q", status)
		}
		idx := p.findGoal(desc)
		if idx < 0 {
			return fmt.Errorf("no goal matching %q", desc)
		}
		p.Goals[idx].Status = status
		p.Goals[idx].UpdatedAt = now
		p.Goals[idx].SessionID = editID
	}

	p.UpdatedAt = now
	return nil
}

// findGoal matches a goal by normalized description equality.
func (p *Profile) findGoal(description string) int {
	want := normalize(description)
	for i, g := range p.Goals {
		if normalize(g.Description) == want {
			return i
		}
	}
	return -1
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
