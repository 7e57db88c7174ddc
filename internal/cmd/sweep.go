package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/drawbridge/internal/lifecycle"
	"github.com/Iron-Ham/drawbridge/internal/util"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Trash empty diagrams that no note embeds",
	Long: `Walk the diagrams folder and move every diagram that is empty and not
referenced by any markdown note into the vault trash. These are left behind
when an editor is closed without a clean exit.

Examples:
  drawbridge sweep --dry-run
  drawbridge sweep --pattern "diagram_*"`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var (
	sweepDryRun   bool
	sweepPatterns []string
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Only report what would be trashed")
	sweepCmd.Flags().StringArrayVar(&sweepPatterns, "pattern", nil, "Glob pattern for candidate file names (repeatable)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Logger.Close() }()

	res, err := a.Policy.Sweep(cmd.Context(), lifecycle.SweepOptions{
		Patterns: sweepPatterns,
		DryRun:   sweepDryRun,
	})
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout())
	verb := "trashed"
	if sweepDryRun {
		verb = "would trash"
	}
	for _, p := range res.Trashed {
		out.println(warningStyle, "%s %s", verb, p)
	}
	for _, p := range res.Skipped {
		out.println(mutedStyle, "kept %s (embedded)", p)
	}
	out.println(titleStyle, "%d scanned, %s, %s kept",
		res.Scanned, util.Plural(len(res.Trashed), "empty diagram"), util.Plural(len(res.Skipped), "referenced diagram"))
	return nil
}
