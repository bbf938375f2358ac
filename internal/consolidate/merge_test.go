package consolidate

import (
	"strings"
	"testing"
	"time"

	"github.com/mnemo-oss/mnemo/internal/fact"
	"github.com/mnemo-oss/mnemo/internal/profile"
)

func skillFact(name, status string, confidence float64) fact.Fact {
	return fact.Fact{
		Subject:    "skill:" + name,
		Assertion:  fact.Assertion{Status: status},
		Confidence: confidence,
	}
}

func TestMerge_InsertsUnknownSkillAsClaimed(t *testing.T) {
	base := profile.New("u1")
	now := time.Now().UTC()

	merged, outcomes, changed := Merge(base, []fact.Fact{skillFact("SQL", "claimed", 0.9)}, "s1", now, DefaultRules())

	if !changed {
		t.Fatal("expected a profile change")
	}
	if len(outcomes) != 1 || !outcomes[0].Applied {
		t.Fatalf("expected 1 applied outcome, got %+v", outcomes)
	}
	skill, ok := merged.Skills["SQL"]
	if !ok {
		t.Fatal("expected SQL skill to be inserted")
	}
	if skill.Status != profile.SkillClaimed {
		t.Errorf("expected claimed, got %s", skill.Status)
	}
	if skill.SessionID != "s1" {
		t.Errorf("expected session attribution s1, got %q", skill.SessionID)
	}

	// The base stays untouched as the compare-and-set base.
	if len(base.Skills) != 0 {
		t.Error("merge must not mutate the base profile")
	}
}

func TestMerge_BelowThresholdRecordedNotApplied(t *testing.T) {
	base := profile.New("u1")

	merged, outcomes, changed := Merge(base, []fact.Fact{skillFact("SQL", "claimed", 0.3)}, "s1", time.Now(), DefaultRules())

	if changed {
		t.Error("below-threshold fact must not change the profile")
	}
	if len(merged.Skills) != 0 {
		t.Error("skill must not be inserted")
	}
	if len(outcomes) != 1 || outcomes[0].Applied {
		t.Fatalf("expected 1 rejected outcome, got %+v", outcomes)
	}
	if !strings.Contains(outcomes[0].Reason, "below threshold") {
		t.Errorf("expected threshold reason, got %q", outcomes[0].Reason)
	}
}

func TestMerge_SkillStatusNeverRegresses(t *testing.T) {
	base := profile.New("u1")
	validatedAt := time.Now().UTC()
	base.Skills["Go"] = profile.Skill{Status: profile.SkillValidated, UpdatedAt: validatedAt, ValidatedAt: &validatedAt}

	merged, outcomes, changed := Merge(base, []fact.Fact{skillFact("Go", "claimed", 0.95)}, "s2", time.Now(), DefaultRules())

	if changed {
		t.Error("regression fact must not change the profile")
	}
	if merged.Skills["Go"].Status != profile.SkillValidated {
		t.Errorf("status regressed to %s", merged.Skills["Go"].Status)
	}
	if outcomes[0].Applied {
		t.Error("regression fact must be rejected")
	}
	if !strings.Contains(outcomes[0].Reason, "regress") {
		t.Errorf("expected regression reason, got %q", outcomes[0].Reason)
	}
}

func TestMerge_SkillStatusUpgrade(t *testing.T) {
	base := profile.New("u1")
	base.Skills["Go"] = profile.Skill{Status: profile.SkillClaimed, UpdatedAt: time.Now()}

	now := time.Now().UTC()
	merged, outcomes, changed := Merge(base, []fact.Fact{skillFact("Go", "validated", 0.9)}, "s2", now, DefaultRules())

	if !changed || !outcomes[0].Applied {
		t.Fatalf("expected upgrade to apply, got %+v", outcomes)
	}
	skill := merged.Skills["Go"]
	if skill.Status != profile.SkillValidated {
		t.Errorf("expected validated, got %s", skill.Status)
	}
	if skill.ValidatedAt == nil {
		t.Error("expected completion timestamp on validated skill")
	}
}

func TestMerge_TargetRoleLastWriteWins(t *testing.T) {
	base := profile.New("u1")
	base.TargetRole = &profile.TargetRole{Value: "Data Analyst", SessionID: "s1"}

	roleFact := fact.Fact{Subject: "targetRole", Assertion: fact.Assertion{Value: "ML Engineer"}, Confidence: 0.8}
	merged, outcomes, _ := Merge(base, []fact.Fact{roleFact}, "s2", time.Now(), DefaultRules())

	if !outcomes[0].Applied {
		t.Fatalf("expected role overwrite, got %+v", outcomes)
	}
	if merged.TargetRole.Value != "ML Engineer" || merged.TargetRole.SessionID != "s2" {
		t.Errorf("unexpected target role %+v", merged.TargetRole)
	}
}

func TestMerge_PreferenceBelowThresholdKeepsExisting(t *testing.T) {
	base := profile.New("u1")
	base.Preferences["learning_style"] = profile.Preference{Value: "hands-on", SessionID: "s1"}

	prefFact := fact.Fact{Subject: "preference:learning_style", Assertion: fact.Assertion{Value: "videos"}, Confidence: 0.2}
	merged, outcomes, changed := Merge(base, []fact.Fact{prefFact}, "s2", time.Now(), DefaultRules())

	if changed || outcomes[0].Applied {
		t.Error("low-confidence preference must be rejected")
	}
	if merged.Preferences["learning_style"].Value != "hands-on" {
		t.Error("existing preference must be kept")
	}
}

func TestMerge_GoalAppendAndTransition(t *testing.T) {
	base := profile.New("u1")
	now := time.Now().UTC()

	newGoal := fact.Fact{
		Subject:    "goal",
		Assertion:  fact.Assertion{Value: "Transition to ML within 12 months", Status: "active", Horizon: "12m"},
		Confidence: 0.8,
	}
	merged, outcomes, _ := Merge(base, []fact.Fact{newGoal}, "s1", now, DefaultRules())
	if !outcomes[0].Applied || len(merged.Goals) != 1 {
		t.Fatalf("expected goal appended, got %+v", outcomes)
	}

	// Achieved transitions match by normalized description.
	achieved := fact.Fact{
		Subject:    "goal",
		Assertion:  fact.Assertion{Value: "  transition to ML  within 12 MONTHS ", Status: "achieved"},
		Confidence: 0.9,
	}
	merged2, outcomes2, _ := Merge(merged, []fact.Fact{achieved}, "s2", now, DefaultRules())
	if !outcomes2[0].Applied {
		t.Fatalf("expected transition to apply, got %+v", outcomes2)
	}
	if merged2.Goals[0].Status != profile.GoalAchieved {
		t.Errorf("expected achieved, got %s", merged2.Goals[0].Status)
	}
	if len(merged2.Goals) != 1 {
		t.Error("transition must not append a second goal")
	}
}

func TestMerge_GoalAchievedWithoutMatchRejected(t *testing.T) {
	base := profile.New("u1")
	achieved := fact.Fact{
		Subject:    "goal",
		Assertion:  fact.Assertion{Value: "pass the cloud certification", Status: "achieved"},
		Confidence: 0.9,
	}

	merged, outcomes, changed := Merge(base, []fact.Fact{achieved}, "s1", time.Now(), DefaultRules())

	if changed || outcomes[0].Applied {
		t.Error("achieved assertion without a matching goal must be rejected")
	}
	if len(merged.Goals) != 0 {
		t.Error("no speculative goal creation from an achieved assertion")
	}
}

func TestMerge_UnknownSubjectRejected(t *testing.T) {
	base := profile.New("u1")
	bogus := fact.Fact{Subject: "mood", Assertion: fact.Assertion{Value: "cheerful"}, Confidence: 0.9}

	_, outcomes, changed := Merge(base, []fact.Fact{bogus}, "s1", time.Now(), DefaultRules())

	if changed || outcomes[0].Applied {
		t.Error("unknown subject must be rejected")
	}
	if outcomes[0].Reason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestMerge_WithinSessionLastWins(t *testing.T) {
	base := profile.New("u1")
	facts := []fact.Fact{
		{Subject: "targetRole", Assertion: fact.Assertion{Value: "Data Engineer"}, Confidence: 0.8},
		{Subject: "targetRole", Assertion: fact.Assertion{Value: "ML Engineer"}, Confidence: 0.8},
	}

	merged, outcomes, _ := Merge(base, facts, "s1", time.Now(), DefaultRules())

	if !outcomes[0].Applied || !outcomes[1].Applied {
		t.Fatalf("last-wins applies both in order, got %+v", outcomes)
	}
	if merged.TargetRole.Value != "ML Engineer" {
		t.Errorf("expected later fact to win, got %q", merged.TargetRole.Value)
	}
}

func TestMerge_WithinSessionFirstWins(t *testing.T) {
	base := profile.New("u1")
	facts := []fact.Fact{
		{Subject: "targetRole", Assertion: fact.Assertion{Value: "Data Engineer"}, Confidence: 0.8},
		{Subject: "targetRole", Assertion: fact.Assertion{Value: "ML Engineer"}, Confidence: 0.8},
	}
	rules := MergeRules{ConfidenceThreshold: 0.5, Policy: PolicyFirstWins}

	merged, outcomes, _ := Merge(base, facts, "s1", time.Now(), rules)

	if !outcomes[0].Applied {
		t.Fatal("first fact must apply")
	}
	if outcomes[1].Applied {
		t.Fatal("second fact for the same subject must be rejected under first-wins")
	}
	if merged.TargetRole.Value != "Data Engineer" {
		t.Errorf("expected first fact to win, got %q", merged.TargetRole.Value)
	}
}

func TestMerge_SourceSessionStamped(t *testing.T) {
	base := profile.New("u1")
	_, outcomes, _ := Merge(base, []fact.Fact{skillFact("SQL", "claimed", 0.9)}, "s42", time.Now(), DefaultRules())

	if outcomes[0].Fact.SourceSessionID != "s42" {
		t.Errorf("expected source session s42, got %q", outcomes[0].Fact.SourceSessionID)
	}
}
