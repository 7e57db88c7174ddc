// Package lifecycle decides what happens to diagram files over an editing
// session: when they are created, overwritten, or discarded.
//
// A session that starts without a target gets a file created optimistically
// on its first export (or on open, with [Policy.CreateEmpty]) so the host
// document can reference it straight away. When the session closes,
// [Policy.Close] retracts that optimism if nothing was drawn: the file goes
// to the vault trash and its embeds are stripped from the document.
//
// # Main Types
//
//   - [Policy]: persist, close and sweep decisions
//   - [Vault]: the afero-backed directory tree holding diagrams and documents
//   - [Document]: the host document receiving embed references
//
// # Paths
//
// All paths are vault-relative and slash-separated. [Vault.Clean] rejects
// paths that would leave the vault.
//
// # Thread Safety
//
// [Policy] and the provided [Document] implementations are safe for
// concurrent use. Sessions serialize their own calls; the policy only
// serializes file creation so generated names never collide.
package lifecycle
