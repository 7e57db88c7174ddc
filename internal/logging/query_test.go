package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleLog = `{"time":"2026-03-01T10:00:02Z","level":"INFO","msg":"export persisted","component":"session","instance_id":"a","target":"drawio/x.drawio.svg","bytes":120}
not json
{"time":"2026-03-01T10:00:00Z","level":"DEBUG","msg":"dropped message","component":"session","instance_id":"a"}
{"time":"2026-03-01T10:00:05Z","level":"WARN","msg":"trash failed","component":"lifecycle","target":"drawio/y.drawio.svg"}
{"time":"2026-03-01T10:00:07Z","level":"ERROR","msg":"bind failed","component":"assetserver"}
`

func writeSampleLog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LogFileName), []byte(sampleLog), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return dir
}

func TestReadLogs(t *testing.T) {
	entries, err := ReadLogs(writeSampleLog(t))
	if err != nil {
		t.Fatalf("ReadLogs failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[0].Message != "dropped message" {
		t.Errorf("entries not sorted by time: first = %q", entries[0].Message)
	}
	persisted := entries[1]
	if persisted.InstanceID != "a" || persisted.Target != "drawio/x.drawio.svg" {
		t.Errorf("context fields = %+v", persisted)
	}
	if persisted.Attrs["bytes"] != float64(120) {
		t.Errorf("Attrs[bytes] = %v, want 120", persisted.Attrs["bytes"])
	}
}

func TestReadLogs_Missing(t *testing.T) {
	if _, err := ReadLogs(t.TempDir()); err == nil {
		t.Error("expected error for missing log file")
	}
}

func TestFilterLogs(t *testing.T) {
	entries, err := ReadLogs(writeSampleLog(t))
	if err != nil {
		t.Fatalf("ReadLogs failed: %v", err)
	}

	tests := []struct {
		name   string
		filter LogFilter
		want   int
	}{
		{"empty filter", LogFilter{}, 4},
		{"level warn", LogFilter{Level: "warn"}, 2},
		{"level info", LogFilter{Level: LevelInfo}, 3},
		{"instance", LogFilter{InstanceID: "a"}, 2},
		{"component", LogFilter{Component: "lifecycle"}, 1},
		{"target", LogFilter{Target: "drawio/x.drawio.svg"}, 1},
		{"message", LogFilter{MessageContains: "failed"}, 2},
		{"since", LogFilter{Since: time.Date(2026, 3, 1, 10, 0, 4, 0, time.UTC)}, 2},
		{"combined", LogFilter{Component: "session", Level: LevelInfo}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(FilterLogs(entries, tt.filter)); got != tt.want {
				t.Errorf("FilterLogs() = %d entries, want %d", got, tt.want)
			}
		})
	}
}

func TestLogEntry_FormatText(t *testing.T) {
	e := LogEntry{
		Timestamp:  time.Date(2026, 3, 1, 10, 0, 2, 0, time.UTC),
		Level:      LevelInfo,
		Message:    "export persisted",
		InstanceID: "a",
		Component:  "session",
		Attrs:      map[string]any{"bytes": 120, "autosave": true},
	}

	got := e.FormatText()
	for _, want := range []string{"10:00:02.000", "INFO ", "[session]", "export persisted", "instance_id=a", "autosave=true bytes=120"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatText() = %q, missing %q", got, want)
		}
	}
}
