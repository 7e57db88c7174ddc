// Package assetserver serves the diagram editor bundle over loopback HTTP.
//
// A Controller owns at most one listener at a time. Start is idempotent: every
// session opened while the server is running shares the same Handle, and the
// port is released by Stop once the application tears down. There is no
// package-level state; the application context creates the Controller and
// passes it to whichever component needs the server.
//
// Besides the static bundle, the Controller routes a small set of internal
// endpoints under /_drawbridge/ that other packages mount before the first
// Start: the per-session channel, the host control API and a health probe.
package assetserver
