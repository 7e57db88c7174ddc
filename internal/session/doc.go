// Package session runs editing sessions: one per editor surface the host
// opens, each with its own instance ID, state machine and WebSocket channel.
//
// The Manager opens sessions on demand, starts the asset server the first
// time one is needed, and routes each channel to the session named in its
// URL. A Session validates every inbound message (origin, channel, instance
// tag) before acting on it, so a message is never handled by a session it was
// not addressed to.
//
// Lifecycle of a session:
//
//	Unopened -> AwaitingInit -> Ready -> Editing <-> ExportRequested -> Closed
//
// Saves go through an export round trip: the editor's save triggers an export
// request, and the reply is decoded, re-encoded for the target container and
// handed to the lifecycle policy. On close the policy decides whether the
// target is kept or discarded.
//
// The Registry records which session owns which diagram so two sessions
// never write the same file.
package session
