package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	if cfg.MaxSizeMB != 10 {
		t.Errorf("MaxSizeMB = %d, want 10", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("MaxBackups = %d, want 3", cfg.MaxBackups)
	}
	if cfg.Compress {
		t.Error("Compress = true, want false")
	}
}

func newSmallWriter(t *testing.T, backups int, compress bool) (*RotatingWriter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), LogFileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: backups, Compress: compress})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.limit = 100
	t.Cleanup(func() { _ = rw.Close() })
	return rw, path
}

func TestRotatingWriter_RotatesAtLimit(t *testing.T) {
	rw, path := newSmallWriter(t, 3, false)

	line := []byte(strings.Repeat("a", 60) + "\n")
	for range 2 {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected backup %s.1: %v", path, err)
	}
	if got := rw.Size(); got != int64(len(line)) {
		t.Errorf("Size() = %d, want %d", got, len(line))
	}
	if rw.Path() != path {
		t.Errorf("Path() = %q, want %q", rw.Path(), path)
	}
}

func TestRotatingWriter_OversizedFirstWrite(t *testing.T) {
	rw, path := newSmallWriter(t, 3, false)

	if _, err := rw.Write([]byte(strings.Repeat("b", 250))); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("an empty file should not be rotated")
	}
}

func TestRotatingWriter_KeepsMaxBackups(t *testing.T) {
	rw, path := newSmallWriter(t, 2, false)

	line := []byte(strings.Repeat("c", 80) + "\n")
	for range 5 {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	for _, n := range []string{".1", ".2"} {
		if _, err := os.Stat(path + n); err != nil {
			t.Errorf("expected backup %s: %v", n, err)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backup .3 should have been dropped")
	}
}

func TestRotatingWriter_Compress(t *testing.T) {
	rw, path := newSmallWriter(t, 2, true)

	first := strings.Repeat("d", 80) + "\n"
	if _, err := rw.Write([]byte(first)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := rw.Write([]byte("next\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := rw.Write([]byte(strings.Repeat("e", 99))); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("expected compressed backup: %v", err)
	}
	defer func() { _ = f.Close() }()

	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != first+"next\n" {
		t.Errorf("backup content = %q", data)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("uncompressed backup should be removed")
	}
}

func TestRotatingWriter_CloseIdempotent(t *testing.T) {
	rw, _ := newSmallWriter(t, 1, false)

	if err := rw.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if _, err := rw.Write([]byte("x")); err == nil {
		t.Error("Write after Close should fail")
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after Close = %v, want nil", err)
	}
}

func TestNewLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLoggerWithRotation(dir, LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}
	logger.Info("rotating logger ready")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "rotating logger ready") {
		t.Errorf("log content = %q", data)
	}
}
