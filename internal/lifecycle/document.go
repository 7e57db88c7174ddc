package lifecycle

import (
	"strings"
	"sync"
)

// Document is the host document a session embeds its diagram into.
// Implementations must be safe for concurrent use.
type Document interface {
	// Path returns the document's vault-relative path, or "" if it has none.
	Path() string
	// Content returns the current text.
	Content() (string, error)
	// SetContent replaces the text.
	SetContent(content string) error
	// Insert places ref at the document's insertion point.
	Insert(ref string) error
}

// FileDocument is a markdown file in the vault. Insert appends the
// reference on its own line unless a cursor offset was given.
type FileDocument struct {
	mu     sync.Mutex
	vault  *Vault
	path   string
	cursor int // Byte offset for Insert; -1 appends
}

// NewFileDocument returns a document backed by the vault file at p.
func NewFileDocument(vault *Vault, p string) *FileDocument {
	return &FileDocument{vault: vault, path: p, cursor: -1}
}

// WithCursor sets the byte offset Insert places references at.
func (d *FileDocument) WithCursor(offset int) *FileDocument {
	d.cursor = offset
	return d
}

// Path implements Document.
func (d *FileDocument) Path() string { return d.path }

// Content implements Document. A missing file reads as empty.
func (d *FileDocument) Content() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.readLocked()
}

func (d *FileDocument) readLocked() (string, error) {
	if !d.vault.Exists(d.path) {
		return "", nil
	}
	data, err := d.vault.ReadFile(d.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetContent implements Document.
func (d *FileDocument) SetContent(content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vault.WriteFile(d.path, []byte(content))
}

// Insert implements Document.
func (d *FileDocument) Insert(ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	content, err := d.readLocked()
	if err != nil {
		return err
	}
	updated, next := insertAt(content, ref, d.cursor)
	if err := d.vault.WriteFile(d.path, []byte(updated)); err != nil {
		return err
	}
	if d.cursor >= 0 {
		d.cursor = next
	}
	return nil
}

// MemoryDocument is an in-memory Document.
type MemoryDocument struct {
	mu      sync.Mutex
	path    string
	content string
	cursor  int
}

// NewMemoryDocument returns a document holding content. Insert appends.
func NewMemoryDocument(p, content string) *MemoryDocument {
	return &MemoryDocument{path: p, content: content, cursor: -1}
}

// Path implements Document.
func (d *MemoryDocument) Path() string { return d.path }

// Content implements Document.
func (d *MemoryDocument) Content() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.content, nil
}

// SetContent implements Document.
func (d *MemoryDocument) SetContent(content string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content = content
	return nil
}

// Insert implements Document.
func (d *MemoryDocument) Insert(ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var next int
	d.content, next = insertAt(d.content, ref, d.cursor)
	if d.cursor >= 0 {
		d.cursor = next
	}
	return nil
}

// insertAt places ref at offset, or on a new last line when offset is
// negative or out of range. It returns the new text and the offset just
// past the inserted reference.
func insertAt(content, ref string, offset int) (string, int) {
	if offset < 0 || offset > len(content) {
		var b strings.Builder
		b.WriteString(content)
		if content != "" && !strings.HasSuffix(content, "\n") {
			b.WriteByte('\n')
		}
		b.WriteString(ref)
		b.WriteByte('\n')
		return b.String(), b.Len()
	}
	return content[:offset] + ref + content[offset:], offset + len(ref)
}
