package cli

import (
	"fmt"
	"strings"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	"github.com/mnemo-oss/mnemo/internal/profile"
	"github.com/spf13/cobra"
)

var (
	editTargetRole   string
	editPreferences  []string
	editSkills       []string
	editRemoveSkills []string
	editAddGoals     []string
	editGoalStatus   []string
)

var editCmd = &cobra.Command{
	Use:   "edit <user-id>",
	Short: "Edit a user's profile directly",
	Long: `Apply a direct profile edit, bypassing fact extraction. Unlike inferred
facts, an explicit edit may regress a skill (e.g. validated back to
claimed) and may remove entries.

The edit goes through a single compare-and-set; if a background
consolidation commits first, the edit is rejected and should be
retried against the fresh profile.

Examples:
  mnemo edit alice --target-role "Staff Engineer"
  mnemo edit alice --skill go=validated --skill kubernetes=in-progress:intermediate
  mnemo edit alice --remove-skill cobol --prefer style=hands-on
  mnemo edit alice --add-goal "pass the CKA@3 months" --goal-status "learn go=achieved"`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editTargetRole, "target-role", "", "set the target role (empty string clears it)")
	editCmd.Flags().StringArrayVar(&editPreferences, "prefer", nil, "set a preference, key=value")
	editCmd.Flags().StringArrayVar(&editSkills, "skill", nil, "set a skill, name=status[:proficiency]")
	editCmd.Flags().StringArrayVar(&editRemoveSkills, "remove-skill", nil, "remove a skill by name")
	editCmd.Flags().StringArrayVar(&editAddGoals, "add-goal", nil, "add a goal, description[@horizon]")
	editCmd.Flags().StringArrayVar(&editGoalStatus, "goal-status", nil, "transition a goal, description=status")
}

func runEdit(cmd *cobra.Command, args []string) error {
	patch, err := buildPatch(cmd)
	if err != nil {
		return err
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	updated, err := rt.memory.ApplyUserEdit(args[0], patch)
	if err != nil {
		return err
	}

	fmt.Printf("Profile updated to version %d\n", updated.Version)
	return nil
}

func buildPatch(cmd *cobra.Command) (profile.Patch, error) {
	var patch profile.Patch

	if cmd.Flags().Changed("target-role") {
		role := editTargetRole
		patch.TargetRole = &role
	}

	for _, kv := range editPreferences {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return patch, memErrors.New(memErrors.CodeConfigInvalid,
				fmt.Sprintf("invalid --prefer %q, expected key=value", kv))
		}
		if patch.Preferences == nil {
			patch.Preferences = make(map[string]string)
		}
		patch.Preferences[key] = value
	}

	for _, spec := range editSkills {
		name, rest, ok := strings.Cut(spec, "=")
		if !ok {
			return patch, memErrors.New(memErrors.CodeConfigInvalid,
				fmt.Sprintf("invalid --skill %q, expected name=status[:proficiency]", spec))
		}
		statusStr, proficiency, _ := strings.Cut(rest, ":")
		status := profile.SkillStatus(statusStr)
		if !status.Valid() {
			return patch, memErrors.New(memErrors.CodeConfigInvalid,
				fmt.Sprintf("invalid skill status %q (must be claimed, in-progress, or validated)", statusStr))
		}
		sp := profile.SkillPatch{Status: &status}
		if proficiency != "" {
			sp.Proficiency = &proficiency
		}
		if patch.Skills == nil {
			patch.Skills = make(map[string]profile.SkillPatch)
		}
		patch.Skills[name] = sp
	}

	patch.RemoveSkills = editRemoveSkills

	for _, spec := range editAddGoals {
		description, horizon, _ := strings.Cut(spec, "@")
		if strings.TrimSpace(description) == "" {
			return patch, memErrors.New(memErrors.CodeConfigInvalid, "goal description is empty")
		}
		patch.AddGoals = append(patch.AddGoals, profile.GoalPatch{
			Description: strings.TrimSpace(description),
			Horizon:     strings.TrimSpace(horizon),
		})
	}

	for _, kv := range editGoalStatus {
		description, statusStr, ok := strings.Cut(kv, "=")
		if !ok {
			return patch, memErrors.New(memErrors.CodeConfigInvalid,
				fmt.Sprintf("invalid --goal-status %q, expected description=status", kv))
		}
		status := profile.GoalStatus(statusStr)
		if !status.Valid() {
			return patch, memErrors.New(memErrors.CodeConfigInvalid,
				fmt.Sprintf("invalid goal status %q (must be active, achieved, or abandoned)", statusStr))
		}
		if patch.GoalStatus == nil {
			patch.GoalStatus = make(map[string]profile.GoalStatus)
		}
		patch.GoalStatus[description] = status
	}

	if patch.IsEmpty() {
		return patch, memErrors.New(memErrors.CodeConfigInvalid, "no edit flags given").
			WithSuggestion("pass at least one of --target-role, --prefer, --skill, --remove-skill, --add-goal, --goal-status")
	}
	return patch, nil
}
