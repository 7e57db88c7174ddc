package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/config"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Logging.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	a, err := New(cfg, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestVariantFor(t *testing.T) {
	tests := []struct {
		format string
		want   codec.Variant
	}{
		{config.FormatSVG, codec.SvgForm},
		{config.FormatXML, codec.XmlForm},
		{"XML", codec.XmlForm},
		{"", codec.SvgForm},
		{"png", codec.SvgForm},
	}
	for _, tt := range tests {
		if got := VariantFor(tt.format); got != tt.want {
			t.Errorf("VariantFor(%q) = %v, want %v", tt.format, got, tt.want)
		}
	}
}

func TestPolicyConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Diagrams.Folder = "sketches"
	cfg.Diagrams.UseMarkdownLinks = true
	cfg.Diagrams.DefaultSize = "400"
	cfg.Diagrams.DefaultFormat = config.FormatXML

	got := PolicyConfig(cfg)
	if got.Folder != "sketches" {
		t.Errorf("Folder = %q, want sketches", got.Folder)
	}
	if !got.Links.Markdown {
		t.Error("Links.Markdown = false, want true")
	}
	if got.Links.Size != "400" {
		t.Errorf("Links.Size = %q, want 400", got.Links.Size)
	}
	if got.DefaultVariant != codec.XmlForm {
		t.Errorf("DefaultVariant = %v, want %v", got.DefaultVariant, codec.XmlForm)
	}
}

func TestSessionConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Server.Port = 4242
	cfg.Server.RootDir = "bundle"
	cfg.Server.Dark = true
	cfg.Diagrams.CreateOnOpen = true
	cfg.Session.ExportTimeout = 2 * time.Second
	cfg.Session.RateLimit = 5
	cfg.Session.RateBurst = 3

	got := SessionConfig(cfg, base)
	if got.Port != 4242 {
		t.Errorf("Port = %d, want 4242", got.Port)
	}
	if want := filepath.Join(base, "bundle"); got.RootDir != want {
		t.Errorf("RootDir = %q, want %q", got.RootDir, want)
	}
	if !got.Dark || !got.CreateOnOpen {
		t.Errorf("Dark = %v, CreateOnOpen = %v, want both true", got.Dark, got.CreateOnOpen)
	}
	if got.ExportTimeout != 2*time.Second {
		t.Errorf("ExportTimeout = %v, want 2s", got.ExportTimeout)
	}
	if got.RateLimit != 5 || got.RateBurst != 3 {
		t.Errorf("RateLimit = %v, RateBurst = %d, want 5 and 3", got.RateLimit, got.RateBurst)
	}
	if got.DefaultVariant != codec.SvgForm {
		t.Errorf("DefaultVariant = %v, want %v", got.DefaultVariant, codec.SvgForm)
	}
}

func TestNew_MissingVault(t *testing.T) {
	cfg := config.Default()
	cfg.Vault.Root = "does-not-exist"
	if _, err := New(cfg, t.TempDir(), nil); err == nil {
		t.Error("New() with a missing vault root should fail")
	}
}

func TestNew_Wires(t *testing.T) {
	a := newTestApp(t, nil)

	if a.Logger == nil || a.Bus == nil || a.Vault == nil || a.Policy == nil || a.Server == nil || a.Manager == nil {
		t.Fatalf("New() left a component nil: %+v", a)
	}
	if a.Policy.Vault() != a.Vault {
		t.Error("policy does not use the app vault")
	}
	if a.Policy.Config().Folder != "drawio" {
		t.Errorf("policy folder = %q, want drawio", a.Policy.Config().Folder)
	}
}

func TestApp_VaultPath(t *testing.T) {
	a := newTestApp(t, nil)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"relative", "notes/today.md", "notes/today.md", false},
		{"cleaned", "notes/../drawio/a.drawio.svg", "drawio/a.drawio.svg", false},
		{"absolute inside", filepath.Join(a.Vault.Root, "drawio", "b.drawio"), "drawio/b.drawio", false},
		{"absolute outside", filepath.Join(filepath.Dir(a.Vault.Root), "elsewhere.md"), "", true},
		{"escaping", "../secret.md", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.VaultPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VaultPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidInput) {
					t.Errorf("VaultPath(%q) error = %v, want ErrInvalidInput", tt.input, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("VaultPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestApp_Document(t *testing.T) {
	a := newTestApp(t, nil)
	if err := os.WriteFile(filepath.Join(a.Vault.Root, "note.md"), []byte("# Note\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := a.Document(filepath.Join(a.Vault.Root, "note.md"))
	if err != nil {
		t.Fatalf("Document() error = %v", err)
	}
	if doc.Path() != "note.md" {
		t.Errorf("Path() = %q, want note.md", doc.Path())
	}
	content, err := doc.Content()
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if content != "# Note\n" {
		t.Errorf("Content() = %q", content)
	}
}

func TestApp_StartWatcher(t *testing.T) {
	a := newTestApp(t, nil)

	changed := make(chan event.DiagramChangedEvent, 4)
	a.Bus.Subscribe(event.TypeDiagramChanged, func(e event.Event) {
		select {
		case changed <- e.(event.DiagramChangedEvent):
		default:
		}
	})

	if err := a.StartWatcher(); err != nil {
		t.Fatalf("StartWatcher() error = %v", err)
	}
	if err := a.StartWatcher(); err != nil {
		t.Fatalf("second StartWatcher() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.Vault.Root, "drawio")); err != nil {
		t.Fatalf("diagram folder not created: %v", err)
	}

	p := filepath.Join(a.Vault.Root, "drawio", "flow.drawio.svg")
	if err := os.WriteFile(p, codec.EmptySVG(), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case e := <-changed:
		if e.Path != "drawio/flow.drawio.svg" {
			t.Errorf("changed path = %q, want drawio/flow.drawio.svg", e.Path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no diagram.changed event")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestApp_StartWatcherDisabled(t *testing.T) {
	a := newTestApp(t, func(cfg *config.Config) { cfg.Watch.Enabled = false })

	if err := a.StartWatcher(); err != nil {
		t.Fatalf("StartWatcher() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.Vault.Root, "drawio")); !os.IsNotExist(err) {
		t.Errorf("diagram folder created with watching disabled: %v", err)
	}
}

func TestCreateLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Enabled = false
	if logger := CreateLogger(t.TempDir(), cfg); logger == nil {
		t.Fatal("CreateLogger() = nil with logging disabled")
	}

	cfg.Logging.Enabled = true
	cfg.Logging.Level = "debug"
	dir := filepath.Join(t.TempDir(), "logs")
	logger := CreateLogger(dir, cfg)
	logger.Info("hello")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if len(entries) == 0 {
		t.Error("no log file written")
	}
}
