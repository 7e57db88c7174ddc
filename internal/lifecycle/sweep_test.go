package lifecycle

import (
	"context"
	"testing"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
)

func seedSweepVault(t *testing.T, vault *Vault) {
	t.Helper()
	files := map[string][]byte{
		"drawio/orphan.drawio.svg": codec.EmptySVG(),
		"drawio/linked.drawio.svg": codec.EmptySVG(),
		"drawio/drawn.drawio.svg":  shapeSVG(),
		"drawio/blank.drawio":      []byte(codec.SkeletonModel),
		"drawio/notes.txt":         []byte("not a diagram"),
		"elsewhere/a.drawio.svg":   codec.EmptySVG(),
		"notes/index.md":           []byte("![[drawio/linked.drawio.svg]]"),
	}
	for p, data := range files {
		if err := vault.WriteFile(p, data); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", p, err)
		}
	}
}

func TestPolicy_Sweep(t *testing.T) {
	p, vault, rec := newTestPolicy(t, DefaultConfig())
	seedSweepVault(t, vault)

	res, err := p.Sweep(context.Background(), SweepOptions{})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if res.Scanned != 4 {
		t.Errorf("Scanned = %d, want 4", res.Scanned)
	}
	wantTrashed := []string{"drawio/blank.drawio", "drawio/orphan.drawio.svg"}
	if len(res.Trashed) != len(wantTrashed) {
		t.Fatalf("Trashed = %v, want %v", res.Trashed, wantTrashed)
	}
	for i := range wantTrashed {
		if res.Trashed[i] != wantTrashed[i] {
			t.Errorf("Trashed[%d] = %q, want %q", i, res.Trashed[i], wantTrashed[i])
		}
		if vault.Exists(wantTrashed[i]) {
			t.Errorf("%s still in place", wantTrashed[i])
		}
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "drawio/linked.drawio.svg" {
		t.Errorf("Skipped = %v, want [drawio/linked.drawio.svg]", res.Skipped)
	}

	for _, kept := range []string{"drawio/linked.drawio.svg", "drawio/drawn.drawio.svg", "elsewhere/a.drawio.svg", "drawio/notes.txt"} {
		if !vault.Exists(kept) {
			t.Errorf("%s was removed", kept)
		}
	}
	if !vault.Exists(".trash/drawio/orphan.drawio.svg") {
		t.Error("orphan not found in trash")
	}

	discarded := 0
	for _, typ := range rec.types() {
		if typ == event.TypeDiagramDiscarded {
			discarded++
		}
	}
	if discarded != 2 {
		t.Errorf("discarded events = %d, want 2", discarded)
	}
}

func TestPolicy_SweepDryRun(t *testing.T) {
	p, vault, rec := newTestPolicy(t, DefaultConfig())
	seedSweepVault(t, vault)

	res, err := p.Sweep(context.Background(), SweepOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if len(res.Trashed) != 2 {
		t.Errorf("Trashed = %v, want 2 entries", res.Trashed)
	}
	for _, p := range res.Trashed {
		if !vault.Exists(p) {
			t.Errorf("dry run moved %s", p)
		}
	}
	if len(rec.types()) != 0 {
		t.Errorf("dry run published %v", rec.types())
	}
}

func TestPolicy_SweepPatterns(t *testing.T) {
	p, vault, _ := newTestPolicy(t, DefaultConfig())
	seedSweepVault(t, vault)

	res, err := p.Sweep(context.Background(), SweepOptions{Patterns: []string{"orphan*"}})
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if res.Scanned != 1 || len(res.Trashed) != 1 || res.Trashed[0] != "drawio/orphan.drawio.svg" {
		t.Errorf("Sweep() = %+v, want only the orphan", res)
	}
	if !vault.Exists("drawio/blank.drawio") {
		t.Error("unmatched file was trashed")
	}
}

func TestPolicy_SweepInvalidPattern(t *testing.T) {
	p, _, _ := newTestPolicy(t, DefaultConfig())

	_, err := p.Sweep(context.Background(), SweepOptions{Patterns: []string{"[unclosed"}})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Sweep() error = %v, want ErrInvalidInput", err)
	}
}

func TestPolicy_SweepCanceled(t *testing.T) {
	p, vault, _ := newTestPolicy(t, DefaultConfig())
	seedSweepVault(t, vault)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Sweep(ctx, SweepOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Sweep() error = %v, want context.Canceled", err)
	}
	if !vault.Exists("drawio/orphan.drawio.svg") {
		t.Error("canceled sweep trashed a file")
	}
}

func TestInFolder(t *testing.T) {
	tests := []struct {
		rel, folder string
		want        bool
	}{
		{"drawio/a.drawio", "drawio", true},
		{"drawio/sub/a.drawio", "drawio/", true},
		{"drawios/a.drawio", "drawio", false},
		{"a.drawio", "", true},
		{"a.drawio", ".", true},
	}
	for _, tt := range tests {
		if got := inFolder(tt.rel, tt.folder); got != tt.want {
			t.Errorf("inFolder(%q, %q) = %v, want %v", tt.rel, tt.folder, got, tt.want)
		}
	}
}
