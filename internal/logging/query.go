package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Timestamp  time.Time
	Level      string
	Message    string
	InstanceID string
	Component  string
	Target     string
	Attrs      map[string]any
}

// LogFilter selects entries; all set criteria must match.
type LogFilter struct {
	// Level keeps entries at or above this level.
	Level           string
	Since           time.Time
	InstanceID      string
	Component       string
	Target          string
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ReadLogs parses {logDir}/drawbridge.log and returns its entries ordered by time.
// Lines that are not valid JSON are skipped.
func ReadLogs(logDir string) ([]LogEntry, error) {
	file, err := os.Open(filepath.Join(logDir, LogFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no log file in %s: %w", logDir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []LogEntry
	scanner := bufio.NewScanner(file)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	for k, v := range raw {
		s, _ := v.(string)
		switch k {
		case "time":
			if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
				entry.Timestamp = ts
			}
		case "level":
			entry.Level = s
		case "msg":
			entry.Message = s
		case "instance_id":
			entry.InstanceID = s
		case "component":
			entry.Component = s
		case "target":
			entry.Target = s
		default:
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	var out []LogEntry
	for _, e := range entries {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f LogFilter) matches(e LogEntry) bool {
	if f.Level != "" {
		want, okWant := levelOrder[strings.ToUpper(f.Level)]
		got, okGot := levelOrder[e.Level]
		if okWant && okGot && got < want {
			return false
		}
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if f.InstanceID != "" && e.InstanceID != f.InstanceID {
		return false
	}
	if f.Component != "" && e.Component != f.Component {
		return false
	}
	if f.Target != "" && e.Target != f.Target {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(e.Message, f.MessageContains) {
		return false
	}
	return true
}

// FormatText renders an entry as a single human-readable line.
func (e LogEntry) FormatText() string {
	var sb strings.Builder
	sb.WriteString(e.Timestamp.Format("15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%-5s", e.Level))
	if e.Component != "" {
		sb.WriteString(" [" + e.Component + "]")
	}
	sb.WriteString(" " + e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if e.InstanceID != "" {
		sb.WriteString(" instance_id=" + e.InstanceID)
	}
	if e.Target != "" {
		sb.WriteString(" target=" + e.Target)
	}
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, e.Attrs[k]))
	}
	return sb.String()
}
