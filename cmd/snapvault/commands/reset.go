package commands

import (
	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset --yes",
	Short: "Drop and recreate the archive namespace",
	Long: `Delete every snapshot in the namespace by dropping it and recreating
it empty. Other namespaces are untouched.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm deletion of every snapshot in the namespace")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if !resetYes {
		return newPrinter(cmd).Error(
			"confirmation required",
			"reset deletes every snapshot in the namespace.",
			[]string{"Re-run with --yes to proceed"},
		)
	}

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := s.archive.Reset(ctx); err != nil {
		return s.out.Error("reset failed", err.Error(), nil)
	}
	s.out.Success("Namespace '%s' reset\n", s.archive.Namespace())
	return nil
}
