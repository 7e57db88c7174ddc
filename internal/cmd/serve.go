package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/drawbridge/internal/assetserver"
	"github.com/Iron-Ham/drawbridge/internal/errors"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the editor server until interrupted",
	Long: `Start the asset server and session manager and keep them running until
SIGINT or SIGTERM. Hosts open editing sessions through the control API:

  POST   /_drawbridge/sessions               {"target": "...", "document": "..."}
  GET    /_drawbridge/sessions
  DELETE /_drawbridge/sessions/{instanceID}

Each response carries the editor URL to load. Open sessions are closed,
and empty new diagrams discarded, on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var servePort int

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
}

// shutdownTimeout bounds closing sessions and stopping the server.
const shutdownTimeout = 10 * time.Second

// withPortHint tells the user how to recover when the server could not
// start on a busy port. Other errors are returned as is.
func withPortHint(err error, hint string) error {
	var serverErr *errors.ServerError
	if !errors.As(err, &serverErr) || !errors.IsRetryable(err) {
		return err
	}
	return fmt.Errorf("%w\nport %d is in use; %s", err, serverErr.Port, hint)
}

func runServe(cmd *cobra.Command, args []string) error {
	if servePort != 0 {
		viper.Set("server.port", servePort)
	}
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Logger.Close() }()

	out := newPrinter(cmd.OutOrStdout())
	out.follow(a.Bus)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := a.Manager.Start(ctx)
	if err != nil {
		return withPortHint(err, "pass --port or set server.port")
	}
	if err := a.StartWatcher(); err != nil {
		out.println(warningStyle, "! diagram watcher not started: %v", err)
		a.Logger.Warn("watcher failed to start", "error", err)
	}

	a.Logger.Info("drawbridge serving", "port", handle.Port, "vault", a.Vault.Root)
	out.println(titleStyle, "drawbridge serving %s", a.Vault.Root)
	out.println(mutedStyle, "  editor:  %s", handle.Origin())
	out.println(mutedStyle, "  control: %s%s", handle.Origin(), assetserver.SessionsPath)

	<-ctx.Done()
	out.println(mutedStyle, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}
