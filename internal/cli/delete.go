package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user's profile",
	Long: `Delete the user's current-state profile. The append-only session log
is kept; it is provenance, not current state. A later submit or edit
starts the profile over from an empty version 0.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	userID := args[0]

	if !deleteYes {
		fmt.Printf("Delete the profile for %s? The session history is kept. [y/N] ", userID)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.memory.DeleteProfile(userID); err != nil {
		return err
	}

	fmt.Printf("Profile for %s deleted.\n", userID)
	return nil
}
