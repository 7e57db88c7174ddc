package codec

import (
	"path"
	"strings"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

// Variant identifies the container a diagram file uses on disk.
type Variant int

const (
	// SvgForm is an SVG preview whose root carries the model in a content attribute.
	SvgForm Variant = iota
	// XmlForm is the model as plain XML.
	XmlForm
	// OpaqueForm is the legacy XML extension; treated exactly like XmlForm.
	OpaqueForm
)

// File extensions, matched case-insensitively. The SVG extension must be
// checked before the XML one because it shares its ".drawio" prefix.
const (
	ExtSVG    = ".drawio.svg"
	ExtXML    = ".drawio"
	ExtOpaque = ".drawid"
)

// Export formats requested from the editor.
const (
	ExportXMLSVG = "xmlsvg"
	ExportXML    = "xml"
)

func (v Variant) String() string {
	switch v {
	case SvgForm:
		return "svg"
	case XmlForm:
		return "xml"
	case OpaqueForm:
		return "opaque"
	default:
		return "unknown"
	}
}

// Extension returns the file extension new files of this variant get.
func (v Variant) Extension() string {
	switch v {
	case XmlForm:
		return ExtXML
	case OpaqueForm:
		return ExtOpaque
	default:
		return ExtSVG
	}
}

// ExportFormat returns the format to request from the editor so the reply
// can be written to a file of this variant without conversion.
func (v Variant) ExportFormat() string {
	if v == SvgForm {
		return ExportXMLSVG
	}
	return ExportXML
}

// IsXML reports whether the variant stores the model as plain XML.
func (v Variant) IsXML() bool {
	return v == XmlForm || v == OpaqueForm
}

// VariantFor derives the variant from a file name.
func VariantFor(name string) (Variant, bool) {
	lower := strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	switch {
	case strings.HasSuffix(lower, ExtSVG):
		return SvgForm, true
	case strings.HasSuffix(lower, ExtXML):
		return XmlForm, true
	case strings.HasSuffix(lower, ExtOpaque):
		return OpaqueForm, true
	default:
		return 0, false
	}
}

// IsDiagramPath reports whether name carries one of the diagram extensions.
func IsDiagramPath(name string) bool {
	_, ok := VariantFor(name)
	return ok
}

// TrimExtension strips the diagram extension from name, if it has one.
func TrimExtension(name string) string {
	v, ok := VariantFor(name)
	if !ok {
		return name
	}
	return name[:len(name)-len(v.Extension())]
}

// Model is a diagram model serialized as XML. Nothing beyond the emptiness
// check looks inside it.
type Model string

func (m Model) String() string { return string(m) }

// File is a diagram file in the vault.
type File struct {
	Path    string // Vault-relative, slash-separated
	Variant Variant
	Bytes   []byte // Last content read or written; may be nil
}

// NewFile returns a File for path with its variant derived from the extension.
func NewFile(path string) (*File, error) {
	v, ok := VariantFor(path)
	if !ok {
		return nil, errors.NewValidationError("not a diagram file").
			WithField("path").
			WithValue(path).
			WithCause(errors.ErrUnknownFormat)
	}
	return &File{Path: path, Variant: v}, nil
}

// Name returns the file's base name.
func (f *File) Name() string {
	return path.Base(f.Path)
}
