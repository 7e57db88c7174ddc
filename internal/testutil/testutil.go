// Package testutil provides fixtures shared by drawbridge tests: an editor
// bundle on disk, diagram payloads, an in-memory vault, a fake editor
// channel and an event recorder.
//
// Packages that testutil imports (codec, lifecycle, protocol, event) cannot
// use it from their own tests.
package testutil

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/event"
	"github.com/Iron-Ham/drawbridge/internal/lifecycle"
	"github.com/Iron-Ham/drawbridge/internal/protocol"
)

// IndexHTML is the index page of the bundle written by WriteBundle.
const IndexHTML = "<!DOCTYPE html><html><head><title>editor</title></head><body></body></html>"

// ShapeModel is a model with one labelled box.
const ShapeModel codec.Model = `<mxGraphModel><root><mxCell id="0"/><mxCell id="1" parent="0"/>` +
	`<mxCell id="2" value="Box" style="rounded=0;" vertex="1" parent="1">` +
	`<mxGeometry x="10" y="10" width="120" height="60" as="geometry"/></mxCell></root></mxGraphModel>`

// WriteBundle creates a minimal editor bundle in a temporary directory and
// returns its path.
func WriteBundle(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"index.html":  IndexHTML,
		"js/app.js":   "window.editor = {};",
		"css/app.css": "body { margin: 0; }",
	}
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("failed to create bundle dir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write bundle file %s: %v", name, err)
		}
	}
	return dir
}

// ShapeSVG returns an SVG container the editor would export for ShapeModel:
// the model in the content attribute and a drawn rectangle.
func ShapeSVG() []byte {
	return bytes.Replace(codec.BuildSVG(ShapeModel, true), []byte("<g/>"),
		[]byte(`<g><rect x="10" y="10" width="120" height="60" fill="#ffffff" stroke="#000000"/></g>`), 1)
}

// EmptySVG returns the skeleton SVG container.
func EmptySVG() []byte {
	return codec.EmptySVG()
}

// DataURI wraps payload the way the editor sends an SVG export.
func DataURI(payload []byte) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(payload)
}

// MemVault returns an in-memory vault holding files.
func MemVault(t *testing.T, files map[string]string) *lifecycle.Vault {
	t.Helper()

	v := lifecycle.NewMemVault()
	for p, content := range files {
		if err := v.WriteFile(p, []byte(content)); err != nil {
			t.Fatalf("failed to seed vault file %s: %v", p, err)
		}
	}
	return v
}

// FakeTransport records outbound messages instead of sending them.
type FakeTransport struct {
	mu     sync.Mutex
	sent   []protocol.Outbound
	closed bool
	err    error
}

// NewFakeTransport returns an empty FakeTransport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

// FailWith makes every later Send return err.
func (f *FakeTransport) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Send records msg.
func (f *FakeTransport) Send(msg protocol.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// Close marks the transport closed.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeTransport) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Sent returns a copy of the recorded messages.
func (f *FakeTransport) Sent() []protocol.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Outbound(nil), f.sent...)
}

// Count returns how many messages with the given action were sent.
func (f *FakeTransport) Count(action string) int {
	n := 0
	for _, m := range f.Sent() {
		if m.Action() == action {
			n++
		}
	}
	return n
}

// Last returns the most recent message, or nil.
func (f *FakeTransport) Last() protocol.Outbound {
	sent := f.Sent()
	if len(sent) == 0 {
		return nil
	}
	return sent[len(sent)-1]
}

// Recorder collects events published on a bus.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

// Record subscribes a new Recorder to every event on bus.
func Record(bus *event.Bus) *Recorder {
	r := &Recorder{}
	bus.SubscribeAll(r.handle)
	return r
}

func (r *Recorder) handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// OfType returns the recorded events of the given type.
func (r *Recorder) OfType(eventType string) []event.Event {
	var out []event.Event
	for _, e := range r.Events() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until an event of eventType was recorded or timeout elapses.
func (r *Recorder) WaitFor(t *testing.T, eventType string, timeout time.Duration) event.Event {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if evs := r.OfType(eventType); len(evs) > 0 {
			return evs[len(evs)-1]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s event", eventType)
	return nil
}
