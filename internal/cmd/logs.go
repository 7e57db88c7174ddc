package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/drawbridge/internal/config"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/logging"
	"github.com/Iron-Ham/drawbridge/internal/util"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View drawbridge logs",
	Long: `View and filter the drawbridge log.

Examples:
  # Show the last 50 entries
  drawbridge logs

  # Everything one session logged
  drawbridge logs -i 3f2a9c1e-... -n 0

  # Follow warnings and errors
  drawbridge logs -f --level warn

  # Lifecycle decisions of the last hour
  drawbridge logs --component lifecycle --since 1h

  # Search messages and attributes
  drawbridge logs --grep "discard|trash"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail      int
	logsFollow    bool
	logsLevel     string
	logsInstance  string
	logsComponent string
	logsTarget    string
	logsSince     string
	logsGrep      string
)

// followInterval is how often --follow re-reads the log.
const followInterval = 500 * time.Millisecond

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVarP(&logsInstance, "instance", "i", "", "Filter by session instance ID")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Filter by component (session, lifecycle, assetserver, watch)")
	logsCmd.Flags().StringVar(&logsTarget, "target", "", "Filter by diagram path")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries matching pattern (regex)")
}

func buildLogFilter(now time.Time) (logging.LogFilter, *regexp.Regexp, error) {
	filter := logging.LogFilter{
		InstanceID: logsInstance,
		Component:  logsComponent,
		Target:     logsTarget,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, nil, fmt.Errorf("invalid duration format: %w", err)
		}
		filter.Since = now.Add(-d)
	}

	var grep *regexp.Regexp
	if logsGrep != "" {
		re, err := regexp.Compile(logsGrep)
		if err != nil {
			return filter, nil, fmt.Errorf("invalid grep pattern: %w", err)
		}
		grep = re
	}
	return filter, grep, nil
}

// selectEntries applies the filter, the grep pattern and the tail limit.
func selectEntries(entries []logging.LogEntry, filter logging.LogFilter, grep *regexp.Regexp, tail int) []logging.LogEntry {
	entries = logging.FilterLogs(entries, filter)
	if grep != nil {
		kept := entries[:0:0]
		for _, e := range entries {
			if grep.MatchString(e.FormatText()) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if tail > 0 && len(entries) > tail {
		entries = entries[len(entries)-tail:]
	}
	return entries
}

func runLogs(cmd *cobra.Command, args []string) error {
	filter, grep, err := buildLogFilter(time.Now())
	if err != nil {
		return err
	}

	logDir := config.LogDir()
	entries, err := logging.ReadLogs(logDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "No logs found. Logs are stored in %s\n", logDir)
			return nil
		}
		return err
	}

	out := cmd.OutOrStdout()
	styled := isTerminal(out)
	width := terminalWidth(out, 0)

	selected := selectEntries(entries, filter, grep, logsTail)
	for _, e := range selected {
		printLogEntry(out, e, styled, width)
	}
	if !logsFollow {
		if len(selected) == 0 {
			_, _ = fmt.Fprintln(out, "No matching log entries found.")
		}
		return nil
	}
	return followLogs(cmd, logDir, len(entries), filter, grep, styled, width)
}

// followLogs polls the log and prints entries past the seen count. A shorter
// log means it was rotated; printing then restarts from its beginning.
func followLogs(cmd *cobra.Command, logDir string, seen int, filter logging.LogFilter, grep *regexp.Regexp, styled bool, width int) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Following logs... (Ctrl+C to stop)\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(followInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		entries, err := logging.ReadLogs(logDir)
		if err != nil {
			continue
		}
		if len(entries) < seen {
			seen = 0
		}
		for _, e := range selectEntries(entries[seen:], filter, grep, 0) {
			printLogEntry(out, e, styled, width)
		}
		seen = len(entries)
	}
}

func printLogEntry(out io.Writer, e logging.LogEntry, styled bool, width int) {
	line := e.FormatText()
	if styled {
		level := fmt.Sprintf("%-5s", e.Level)
		line = strings.Replace(line, level, levelStyle(e.Level).Render(level), 1)
		if width > 0 {
			line = util.TruncateANSI(line, width)
		}
	}
	_, _ = fmt.Fprintln(out, line)
}
