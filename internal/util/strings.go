// Package util provides small formatting helpers for command output.
package util

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "..."

// TruncateANSI truncates a string to maxWidth visual columns, adding "..." if truncated.
// This function properly handles ANSI escape codes and wide characters, making it
// suitable for styled log lines.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate includes the tail in the final width calculation
	return ansi.Truncate(s, maxWidth, ellipsis)
}

// TruncatePath shortens a plain path to maxWidth columns by dropping leading
// characters, so the file name stays visible: "...ms/flow.drawio.svg".
func TruncatePath(p string, maxWidth int) string {
	if maxWidth <= 3 {
		return ellipsis
	}
	if ansi.StringWidth(p) <= maxWidth {
		return p
	}

	runes := []rune(p)
	budget := maxWidth - len(ellipsis)
	start := len(runes)
	for start > 0 {
		w := ansi.StringWidth(string(runes[start-1]))
		if w > budget {
			break
		}
		budget -= w
		start--
	}
	return ellipsis + string(runes[start:])
}

// Plural formats a count with a noun, adding "s" unless n is 1.
func Plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
