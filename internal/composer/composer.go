// Package composer renders a memory snapshot into the compact text block
// injected into the next session's system prompt.
package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mnemo-oss/mnemo/internal/memory"
	"github.com/mnemo-oss/mnemo/internal/profile"
)

const (
	maxSkillsShown   = 8
	maxNotesShown    = 3
	maxGoalsShown    = 3
	maxSummaryLength = 120
)

// Compose builds the concise context string a session-starter reads at the
// start of each session. Empty sections are omitted so a brand-new user gets
// a nearly empty block rather than a wall of headings.
func Compose(snap *memory.Snapshot) string {
	p := snap.Profile
	lines := []string{"=== USER MEMORY ==="}

	if p.TargetRole != nil {
		lines = append(lines, fmt.Sprintf("Target role: %s", p.TargetRole.Value))
	}

	if current := skillNames(p, profile.SkillClaimed); len(current) > 0 {
		lines = append(lines, fmt.Sprintf("Current skills: %s", strings.Join(current, ", ")))
	}
	if validated := skillNames(p, profile.SkillValidated); len(validated) > 0 {
		lines = append(lines, fmt.Sprintf("Validated skills: %s", strings.Join(validated, ", ")))
	}
	if learning := skillNames(p, profile.SkillInProgress); len(learning) > 0 {
		lines = append(lines, fmt.Sprintf("Currently learning: %s", strings.Join(learning, ", ")))
	}

	if len(p.Preferences) > 0 {
		keys := make([]string, 0, len(p.Preferences))
		for key := range p.Preferences {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, key := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", key, p.Preferences[key].Value))
		}
		lines = append(lines, fmt.Sprintf("Preferences: %s", strings.Join(pairs, ", ")))
	}

	if goals := activeGoals(p); len(goals) > 0 {
		lines = append(lines, fmt.Sprintf("Goals: %s", strings.Join(goals, "; ")))
	}

	if notes := recentNotes(p); len(notes) > 0 {
		lines = append(lines, "", "Notes:")
		for _, n := range notes {
			lines = append(lines, fmt.Sprintf("  [%s] %s", n.CreatedAt.Format("2006-01-02"), n.Text))
		}
	}

	if len(snap.Recent) > 0 {
		var summaries []string
		for _, r := range snap.Recent {
			if r.Summary == "" {
				continue
			}
			summaries = append(summaries, fmt.Sprintf("  [%s] %s",
				r.EndedAt.Format("2006-01-02"), truncate(r.Summary, maxSummaryLength)))
		}
		if len(summaries) > 0 {
			lines = append(lines, "", "Recent sessions:")
			lines = append(lines, summaries...)
		}
	}

	lines = append(lines, "===================")
	return strings.Join(lines, "\n")
}

// skillNames returns up to maxSkillsShown skill names with the given status,
// sorted for stable output.
func skillNames(p *profile.Profile, status profile.SkillStatus) []string {
	var names []string
	for name, skill := range p.Skills {
		if skill.Status == status {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > maxSkillsShown {
		names = names[:maxSkillsShown]
	}
	return names
}

func activeGoals(p *profile.Profile) []string {
	var goals []string
	for _, g := range p.Goals {
		if g.Status != profile.GoalActive {
			continue
		}
		if g.Horizon != "" {
			goals = append(goals, fmt.Sprintf("%s (%s)", g.Description, g.Horizon))
		} else {
			goals = append(goals, g.Description)
		}
		if len(goals) == maxGoalsShown {
			break
		}
	}
	return goals
}

func recentNotes(p *profile.Profile) []profile.Note {
	notes := p.Notes
	if len(notes) > maxNotesShown {
		notes = notes[len(notes)-maxNotesShown:]
	}
	return notes
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
