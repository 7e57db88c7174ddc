package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/drawbridge/internal/app"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/lifecycle"
	"github.com/Iron-Ham/drawbridge/internal/session"
)

var editCmd = &cobra.Command{
	Use:   "edit [diagram]",
	Short: "Open an editing session for a diagram",
	Long: `Open an editing session and print the editor URL to load.

With a diagram path, the existing diagram is edited in place. Without one, a
new diagram is started; it is created in the diagrams folder on the first
save and embedded into --doc. With --line and --col, the diagram embedded at
that position of --doc is opened.

The command waits until the editor exits or it is interrupted. A new diagram
that is still empty at that point is discarded.

Examples:
  drawbridge edit drawio/flow.drawio.svg
  drawbridge edit --doc notes/today.md --name "Request flow"
  drawbridge edit --doc notes/today.md --line 12 --col 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEdit,
}

var (
	editDoc  string
	editName string
	editLine int
	editCol  int
)

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().StringVarP(&editDoc, "doc", "d", "", "Note that receives the embed of a new diagram")
	editCmd.Flags().StringVarP(&editName, "name", "n", "", "File name for a new diagram")
	editCmd.Flags().IntVar(&editLine, "line", 0, "1-based line in --doc holding the embed to open")
	editCmd.Flags().IntVar(&editCol, "col", 0, "1-based column in --doc within the embed to open")
}

func runEdit(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Logger.Close() }()

	req, err := buildOpenRequest(a, args)
	if err != nil {
		return err
	}

	out := newPrinter(cmd.OutOrStdout())
	out.follow(a.Bus)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := a.Manager.Open(ctx, req)
	if err != nil {
		return withPortHint(err, "run 'drawbridge config set server.port <port>'")
	}
	out.println(titleStyle, "Open this URL to edit:")
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), s.URL())

	select {
	case <-s.Done():
	case <-ctx.Done():
		out.println(mutedStyle, "interrupted, closing session...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// buildOpenRequest resolves the diagram and document named on the command line.
func buildOpenRequest(a *app.App, args []string) (session.OpenRequest, error) {
	req := session.OpenRequest{FileName: editName}

	var doc *lifecycle.FileDocument
	if editDoc != "" {
		d, err := a.Document(editDoc)
		if err != nil {
			return req, err
		}
		doc = d
		req.Document = d
	}

	switch {
	case len(args) == 1:
		target, err := a.VaultPath(args[0])
		if err != nil {
			return req, err
		}
		req.TargetPath = target

	case editLine > 0:
		if doc == nil {
			return req, errors.NewValidationError("--line needs --doc").WithField("line")
		}
		target, err := referenceAt(a, doc, editLine, editCol)
		if err != nil {
			return req, err
		}
		req.TargetPath = target
	}
	return req, nil
}

// referenceAt returns the diagram embedded at the 1-based line and column
// of doc, resolved the way the host resolves links: as a vault path first,
// then relative to the note.
func referenceAt(a *app.App, doc *lifecycle.FileDocument, line, col int) (string, error) {
	content, err := doc.Content()
	if err != nil {
		return "", err
	}
	lines := strings.Split(content, "\n")
	if line > len(lines) {
		return "", errors.NewValidationError("line is past the end of the document").WithField("line").WithValue(line)
	}

	link, ok := lifecycle.FindReferenceAt(lines[line-1], max(col-1, 0))
	if !ok {
		return "", errors.NewNotFoundError("diagram embed", fmt.Sprintf("%s:%d:%d", doc.Path(), line, col))
	}

	if p, ok := a.Vault.ResolveAlternate(link); ok {
		return p, nil
	}
	if dir := parentDir(doc.Path()); dir != "" {
		if p, ok := a.Vault.ResolveAlternate(dir + "/" + link); ok {
			return p, nil
		}
	}
	return a.Vault.Clean(link)
}

func parentDir(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}
