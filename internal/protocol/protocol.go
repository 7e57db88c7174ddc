// Package protocol defines the JSON messages exchanged with the embedded
// editor as a closed set of Go types.
//
// Inbound messages are keyed by "event" and parsed once, at the transport
// boundary, by Parse. Anything that is not valid JSON, names no event, names
// an event outside this set, or carries an invalid payload is rejected there
// and never reaches a session. Outbound messages are keyed by "action".
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

// Inbound event names.
const (
	EventInit     = "init"
	EventSave     = "save"
	EventExport   = "export"
	EventChange   = "change"
	EventAutosave = "autosave"
	EventExit     = "exit"
)

// Outbound action names.
const (
	ActionLoad   = "load"
	ActionExport = "export"
	ActionStatus = "status"
)

// Message is an inbound message from the editor. The concrete type is one of
// Init, Save, ExportReply, Change or Exit.
type Message interface {
	// Event returns the wire event name.
	Event() string
	// InstanceID returns the instance tag the editor attached, or "".
	InstanceID() string
	inbound()
}

// Init announces that the editor finished loading and expects a load.
type Init struct {
	Instance string
}

// Save asks the host to persist the current diagram. XML is the editor's
// current model when it sends one; persistence still goes through export.
type Save struct {
	Instance string
	XML      string
}

// ExportReply carries the serialized diagram requested by an ExportRequest.
// Data is a data URI (or a bare payload); XML is the model when requested.
type ExportReply struct {
	Instance string
	Data     string
	Format   string
	XML      string
}

// Change is a live-edit notification. It is never persisted. Autosave is set
// when the editor reported it as an "autosave" event.
type Change struct {
	Instance string
	XML      string
	Autosave bool
}

// Exit announces that the editor surface is closing.
type Exit struct {
	Instance string
	Modified bool
}

func (Init) Event() string        { return EventInit }
func (Save) Event() string        { return EventSave }
func (ExportReply) Event() string { return EventExport }
func (m Change) Event() string {
	if m.Autosave {
		return EventAutosave
	}
	return EventChange
}
func (Exit) Event() string { return EventExit }

func (m Init) InstanceID() string        { return m.Instance }
func (m Save) InstanceID() string        { return m.Instance }
func (m ExportReply) InstanceID() string { return m.Instance }
func (m Change) InstanceID() string      { return m.Instance }
func (m Exit) InstanceID() string        { return m.Instance }

func (Init) inbound()        {}
func (Save) inbound()        {}
func (ExportReply) inbound() {}
func (Change) inbound()      {}
func (Exit) inbound()        {}

// wireInbound is the union of every inbound field.
type wireInbound struct {
	Event    *string `json:"event"`
	Instance string  `json:"instance"`
	XML      string  `json:"xml"`
	Data     string  `json:"data"`
	Format   string  `json:"format"`
	Modified bool    `json:"modified"`
}

// Parse validates raw and returns the typed message. Errors wrap
// errors.ErrMalformed, errors.ErrUnknownEvent or errors.ErrInvalidPayload.
func Parse(raw []byte) (Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty body", errors.ErrMalformed)
	}

	var w wireInbound
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformed, err)
	}
	if w.Event == nil || *w.Event == "" {
		return nil, fmt.Errorf("%w: missing event", errors.ErrMalformed)
	}

	switch *w.Event {
	case EventInit:
		return Init{Instance: w.Instance}, nil
	case EventSave:
		return Save{Instance: w.Instance, XML: w.XML}, nil
	case EventExport:
		if w.Data == "" && w.XML == "" {
			return nil, fmt.Errorf("%w: export reply without data or xml", errors.ErrInvalidPayload)
		}
		return ExportReply{Instance: w.Instance, Data: w.Data, Format: w.Format, XML: w.XML}, nil
	case EventChange:
		return Change{Instance: w.Instance, XML: w.XML}, nil
	case EventAutosave:
		return Change{Instance: w.Instance, XML: w.XML, Autosave: true}, nil
	case EventExit:
		return Exit{Instance: w.Instance, Modified: w.Modified}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, *w.Event)
	}
}

// Outbound is a message sent to the editor. The concrete type is one of
// Load, ExportRequest or Status.
type Outbound interface {
	// Action returns the wire action name.
	Action() string
	outbound()
}

// Load tells the editor which model to display.
type Load struct {
	XML      string
	Autosave bool
}

// ExportRequest asks the editor to serialize the diagram. Format is
// "xmlsvg" for SVG containers and "xml" for XML containers.
type ExportRequest struct {
	Format string
	XML    bool
	Empty  bool
}

// Status shows a message in the editor's status bar.
type Status struct {
	Message  string
	Modified bool
}

func (Load) Action() string          { return ActionLoad }
func (ExportRequest) Action() string { return ActionExport }
func (Status) Action() string        { return ActionStatus }

func (Load) outbound()          {}
func (ExportRequest) outbound() {}
func (Status) outbound()        {}

// wireOutbound is the union of every outbound field. Flags are sent as 0/1
// and omitted when unset.
type wireOutbound struct {
	Action   string `json:"action"`
	Format   string `json:"format,omitempty"`
	XML      any    `json:"xml,omitempty"`
	Autosave int    `json:"autosave,omitempty"`
	Empty    int    `json:"empty,omitempty"`
	Message  string `json:"message,omitempty"`
	Modified *bool  `json:"modified,omitempty"`
}

// Encode serializes an outbound message as a single line of JSON.
func Encode(msg Outbound) ([]byte, error) {
	w := wireOutbound{Action: msg.Action()}

	switch m := msg.(type) {
	case Load:
		w.XML = m.XML
		w.Autosave = flag(m.Autosave)
	case ExportRequest:
		if m.Format == "" {
			return nil, fmt.Errorf("%w: export request without format", errors.ErrInvalidPayload)
		}
		w.Format = m.Format
		if m.XML {
			w.XML = 1
		}
		w.Empty = flag(m.Empty)
	case Status:
		w.Message = m.Message
		modified := m.Modified
		w.Modified = &modified
	default:
		return nil, fmt.Errorf("%w: unsupported outbound message %T", errors.ErrInvalidPayload, msg)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Envelope is a raw inbound message together with where it came from. The
// transport fills Origin from the connection's Origin header and Source from
// the session the connection was opened for.
type Envelope struct {
	Origin string
	Source string
	Raw    []byte
}
