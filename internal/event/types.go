// Package event defines the events drawbridge components exchange.
package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "diagram.saved", "session.closed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeDiagramCreated   = "diagram.created"
	TypeDiagramSaved     = "diagram.saved"
	TypeDiagramDiscarded = "diagram.discarded"
	TypeDiagramChanged   = "diagram.changed"
	TypeSessionOpened    = "session.opened"
	TypeSessionClosed    = "session.closed"
	TypeTargetClaimed    = "target.claimed"
	TypeTargetReleased   = "target.released"
	TypeNotice           = "notice"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Diagram Events
// -----------------------------------------------------------------------------

// DiagramCreatedEvent is emitted when a session's first export creates a new file.
type DiagramCreatedEvent struct {
	baseEvent
	InstanceID string // Session that created the file
	Path       string // Vault-relative path of the new diagram
	Document   string // Document the embed reference was inserted into, if any
}

// NewDiagramCreatedEvent creates a DiagramCreatedEvent.
func NewDiagramCreatedEvent(instanceID, path, document string) DiagramCreatedEvent {
	return DiagramCreatedEvent{
		baseEvent:  newBaseEvent(TypeDiagramCreated),
		InstanceID: instanceID,
		Path:       path,
		Document:   document,
	}
}

// DiagramSavedEvent is emitted when an export overwrites a bound diagram.
type DiagramSavedEvent struct {
	baseEvent
	InstanceID string
	Path       string
	Bytes      int
	Referrers  []string // Documents that embed the diagram and should re-render
}

// NewDiagramSavedEvent creates a DiagramSavedEvent.
func NewDiagramSavedEvent(instanceID, path string, bytes int, referrers []string) DiagramSavedEvent {
	return DiagramSavedEvent{
		baseEvent:  newBaseEvent(TypeDiagramSaved),
		InstanceID: instanceID,
		Path:       path,
		Bytes:      bytes,
		Referrers:  referrers,
	}
}

// DiagramDiscardedEvent is emitted when an empty diagram is moved to the trash.
type DiagramDiscardedEvent struct {
	baseEvent
	InstanceID        string // Empty for sweeps
	Path              string
	TrashPath         string // Where the file went; empty if it was already gone
	ReferencesRemoved int
}

// NewDiagramDiscardedEvent creates a DiagramDiscardedEvent.
func NewDiagramDiscardedEvent(instanceID, path, trashPath string, referencesRemoved int) DiagramDiscardedEvent {
	return DiagramDiscardedEvent{
		baseEvent:         newBaseEvent(TypeDiagramDiscarded),
		InstanceID:        instanceID,
		Path:              path,
		TrashPath:         trashPath,
		ReferencesRemoved: referencesRemoved,
	}
}

// DiagramChangedEvent is emitted by the watcher when a diagram file changes on disk.
type DiagramChangedEvent struct {
	baseEvent
	Path    string // Vault-relative path
	Removed bool   // True when the file was removed or renamed away
}

// NewDiagramChangedEvent creates a DiagramChangedEvent.
func NewDiagramChangedEvent(path string, removed bool) DiagramChangedEvent {
	return DiagramChangedEvent{
		baseEvent: newBaseEvent(TypeDiagramChanged),
		Path:      path,
		Removed:   removed,
	}
}

// -----------------------------------------------------------------------------
// Session Events
// -----------------------------------------------------------------------------

// SessionOpenedEvent is emitted when a new editing session is opened.
type SessionOpenedEvent struct {
	baseEvent
	InstanceID string
	Target     string // Empty for a new, not yet persisted diagram
	URL        string // Editor URL the host should load
}

// NewSessionOpenedEvent creates a SessionOpenedEvent.
func NewSessionOpenedEvent(instanceID, target, url string) SessionOpenedEvent {
	return SessionOpenedEvent{
		baseEvent:  newBaseEvent(TypeSessionOpened),
		InstanceID: instanceID,
		Target:     target,
		URL:        url,
	}
}

// SessionClosedEvent is emitted once a session is closed and unregistered.
type SessionClosedEvent struct {
	baseEvent
	InstanceID string
	Target     string
	Reason     string // "exit", "host", or "shutdown"
	Discarded  bool
}

// NewSessionClosedEvent creates a SessionClosedEvent.
func NewSessionClosedEvent(instanceID, target, reason string, discarded bool) SessionClosedEvent {
	return SessionClosedEvent{
		baseEvent:  newBaseEvent(TypeSessionClosed),
		InstanceID: instanceID,
		Target:     target,
		Reason:     reason,
		Discarded:  discarded,
	}
}

// TargetClaimedEvent is emitted when a session binds a diagram path.
type TargetClaimedEvent struct {
	baseEvent
	InstanceID string
	Path       string
}

// NewTargetClaimedEvent creates a TargetClaimedEvent.
func NewTargetClaimedEvent(instanceID, path string) TargetClaimedEvent {
	return TargetClaimedEvent{
		baseEvent:  newBaseEvent(TypeTargetClaimed),
		InstanceID: instanceID,
		Path:       path,
	}
}

// TargetReleasedEvent is emitted when a session releases a diagram path.
type TargetReleasedEvent struct {
	baseEvent
	InstanceID string
	Path       string
}

// NewTargetReleasedEvent creates a TargetReleasedEvent.
func NewTargetReleasedEvent(instanceID, path string) TargetReleasedEvent {
	return TargetReleasedEvent{
		baseEvent:  newBaseEvent(TypeTargetReleased),
		InstanceID: instanceID,
		Path:       path,
	}
}

// -----------------------------------------------------------------------------
// Notices
// -----------------------------------------------------------------------------

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// NoticeEvent carries a short user-facing message, such as a failed save.
type NoticeEvent struct {
	baseEvent
	InstanceID string
	Level      NoticeLevel
	Message    string
}

// NewNoticeEvent creates a NoticeEvent.
func NewNoticeEvent(instanceID string, level NoticeLevel, message string) NoticeEvent {
	return NoticeEvent{
		baseEvent:  newBaseEvent(TypeNotice),
		InstanceID: instanceID,
		Level:      level,
		Message:    message,
	}
}
