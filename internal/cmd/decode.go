package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/util"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Print the diagram model stored in a file",
	Long: `Decode a .drawio.svg, .drawio or .drawid file and print the model the
editor would load, decompressing it if needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Report whether diagram files are empty",
	Long: `Classify each diagram file as empty (nothing drawn, would be discarded
on close) or drawn. Files that are not diagrams are reported as skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(checkCmd)
}

func readDiagram(p string) (*codec.File, error) {
	f, err := codec.NewFile(filepath.ToSlash(p))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	f.Bytes = data
	return f, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	f, err := readDiagram(args[0])
	if err != nil {
		return err
	}
	model, err := codec.DecodeFile(f)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), model)
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := newPrinter(cmd.OutOrStdout())
	width := max(terminalWidth(cmd.OutOrStdout(), 80)-10, 20)

	for _, p := range args {
		name := util.TruncatePath(p, width)
		f, err := readDiagram(p)
		if err != nil {
			out.println(mutedStyle, "%-8s %s (%v)", "skipped", name, err)
			continue
		}
		if codec.IsEmptyDiagram(f.Bytes) {
			out.println(warningStyle, "%-8s %s", "empty", name)
		} else {
			out.println(successStyle, "%-8s %s", "drawn", name)
		}
	}
	return nil
}
