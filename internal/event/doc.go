// Package event provides a pub-sub event bus for decoupled communication
// between drawbridge components.
//
// Sessions, the lifecycle policy and the diagram watcher publish events;
// the CLI and the host integration subscribe to them. Neither side imports
// the other.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Diagram Events:
//   - [DiagramCreatedEvent]: A first export created a new file
//   - [DiagramSavedEvent]: An export overwrote a bound file
//   - [DiagramDiscardedEvent]: An empty diagram was trashed and its references stripped
//   - [DiagramChangedEvent]: The watcher saw a diagram change on disk
//
// Session Events:
//   - [SessionOpenedEvent], [SessionClosedEvent]
//   - [TargetClaimedEvent], [TargetReleasedEvent]: registry bindings
//
// Notices:
//   - [NoticeEvent]: user-facing messages such as "could not save"
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publisher's goroutine and protected by panic
// recovery, so they must return quickly.
//
// # Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeNotice, func(e event.Event) {
//	    n := e.(event.NoticeEvent)
//	    fmt.Println(n.Message)
//	})
//	bus.Publish(event.NewNoticeEvent(id, event.NoticeError, "could not save"))
package event
