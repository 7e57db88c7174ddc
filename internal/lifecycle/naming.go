package lifecycle

import (
	"path"
	"strings"
	"time"

	"github.com/Iron-Ham/drawbridge/internal/codec"
)

// namePrefix starts every generated diagram name.
const namePrefix = "diagram_"

// TimestampName returns the generated name for a diagram created at t,
// e.g. "diagram_20260314093005.drawio.svg".
func TimestampName(t time.Time, variant codec.Variant) string {
	return namePrefix + t.Format("20060102150405") + variant.Extension()
}

// forbiddenNameChars cannot appear in a diagram file name, either because
// the filesystem rejects them or because they break link syntax.
const forbiddenNameChars = `\/:*?"<>|#^[]`

// SanitizeName turns a user-supplied name into a file name for variant. It
// drops forbidden characters, trims spaces and dots, and swaps or appends
// the extension so it matches variant. An empty result means "generate one".
func SanitizeName(name string, variant codec.Variant) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || strings.ContainsRune(forbiddenNameChars, r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(strings.TrimSpace(name), ".")

	base := strings.TrimSpace(codec.TrimExtension(name))
	if ext := path.Ext(base); strings.EqualFold(ext, ".svg") || strings.EqualFold(ext, ".xml") {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" {
		return ""
	}
	return base + variant.Extension()
}
