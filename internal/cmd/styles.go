package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/drawbridge/internal/event"
	"github.com/Iron-Ham/drawbridge/internal/logging"
)

var (
	// Colors meet WCAG AA contrast on dark terminals
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	successStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or fallback when it is not a terminal.
func terminalWidth(w io.Writer, fallback int) int {
	f, ok := w.(*os.File)
	if !ok {
		return fallback
	}
	if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
		return width
	}
	return fallback
}

// printer writes user-facing lines, styled only when writing to a terminal.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	styled bool
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, styled: isTerminal(out)}
}

func (p *printer) render(style lipgloss.Style, s string) string {
	if !p.styled {
		return s
	}
	return style.Render(s)
}

func (p *printer) println(style lipgloss.Style, format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, p.render(style, fmt.Sprintf(format, args...)))
}

// Event prints the bus events a user following the server cares about.
func (p *printer) Event(e event.Event) {
	switch ev := e.(type) {
	case event.NoticeEvent:
		switch ev.Level {
		case event.NoticeError:
			p.println(errorStyle, "✗ %s", ev.Message)
		case event.NoticeWarning:
			p.println(warningStyle, "! %s", ev.Message)
		default:
			p.println(mutedStyle, "%s", ev.Message)
		}
	case event.SessionOpenedEvent:
		target := ev.Target
		if target == "" {
			target = "new diagram"
		}
		p.println(titleStyle, "▸ session %s opened (%s)", shortID(ev.InstanceID), target)
		p.println(mutedStyle, "  %s", ev.URL)
	case event.SessionClosedEvent:
		p.println(mutedStyle, "▪ session %s closed (%s)", shortID(ev.InstanceID), ev.Reason)
	case event.DiagramCreatedEvent:
		p.println(successStyle, "+ created %s", ev.Path)
	case event.DiagramSavedEvent:
		p.println(successStyle, "✓ saved %s (%d bytes)", ev.Path, ev.Bytes)
	case event.DiagramDiscardedEvent:
		p.println(warningStyle, "- discarded empty %s", ev.Path)
	case event.DiagramChangedEvent:
		if ev.Removed {
			p.println(mutedStyle, "  %s removed on disk", ev.Path)
		}
	}
}

// follow subscribes p to the events it prints.
func (p *printer) follow(bus *event.Bus) {
	bus.SubscribeMany(p.Event,
		event.TypeNotice,
		event.TypeSessionOpened,
		event.TypeSessionClosed,
		event.TypeDiagramCreated,
		event.TypeDiagramSaved,
		event.TypeDiagramDiscarded,
		event.TypeDiagramChanged,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// levelStyle returns the style used for a log level.
func levelStyle(level string) lipgloss.Style {
	switch logging.ParseLevel(level) {
	case logging.LevelDebug:
		return mutedStyle
	case logging.LevelWarn:
		return warningStyle
	case logging.LevelError:
		return errorStyle
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	}
}
