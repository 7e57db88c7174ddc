package lifecycle

import (
	"net/url"
	"regexp"
	"strings"
)

// LinkStyle controls how embed references are written into documents.
type LinkStyle struct {
	Markdown bool   // ![size](path) instead of ![[path]]
	Size     string // Optional display size, e.g. "400" or "400x300"
}

// EmbedLink returns the reference a document uses to embed the diagram at p.
func EmbedLink(p string, style LinkStyle) string {
	size := strings.TrimSpace(style.Size)
	if style.Markdown {
		return "![" + size + "](" + p + ")"
	}
	if size != "" {
		return "![[" + p + "|" + size + "]]"
	}
	return "![[" + p + "]]"
}

// pathForms returns p and its encodeURI form when the two differ.
func pathForms(p string) []string {
	forms := []string{p}
	if enc := encodeURI(p); enc != p {
		forms = append(forms, enc)
	}
	return forms
}

// referencePattern matches every embed of one of the given path forms:
// ![[p]], ![[p|size]], ![alt](p), ![alt](<p>) and ![alt](./p).
func referencePattern(forms []string) *regexp.Regexp {
	quoted := make([]string, len(forms))
	for i, f := range forms {
		quoted[i] = regexp.QuoteMeta(f)
	}
	alt := "(?:" + strings.Join(quoted, "|") + ")"
	return regexp.MustCompile(
		`!\[\[` + alt + `(?:\|[^\]]*)?\]\]` +
			`|!\[[^\]]*\]\(<?(?:\./)?` + alt + `>?\)`,
	)
}

// StripReferences removes every embed of p from content and reports how many
// were removed. Percent-encoded spellings of p are matched too.
func StripReferences(content, p string) (string, int) {
	re := referencePattern(pathForms(p))
	n := len(re.FindAllStringIndex(content, -1))
	if n == 0 {
		return content, 0
	}
	return re.ReplaceAllLiteralString(content, ""), n
}

// Mentions reports whether content refers to the diagram at p in any form.
// It matches on the file name, since documents may use short links.
func Mentions(content, p string) bool {
	name := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		name = p[i+1:]
	}
	for _, form := range pathForms(name) {
		if strings.Contains(content, form) {
			return true
		}
	}
	return false
}

// cursorLinkPattern finds diagram embeds in a single line of a document.
var cursorLinkPattern = regexp.MustCompile(
	`!\[\[([^|\]]+\.(?:drawio(?:\.svg)?|drawid))[^\]]*\]\]` +
		`|!\[[^\]]*\]\(([^)\s]+?\.(?:drawio(?:\.svg)?|drawid)>?)\)`,
)

// FindReferenceAt returns the diagram path referenced by the embed that spans
// column col of line. The path has angle brackets and a leading "./"
// removed and is percent-decoded when possible. Columns are byte offsets and
// both ends of the embed count as inside it.
func FindReferenceAt(line string, col int) (string, bool) {
	for _, m := range cursorLinkPattern.FindAllStringSubmatchIndex(line, -1) {
		start, end := m[0], m[1]
		if col < start || col > end {
			continue
		}

		var link string
		switch {
		case m[2] >= 0:
			link = line[m[2]:m[3]]
		case m[4] >= 0:
			link = line[m[4]:m[5]]
		default:
			continue
		}

		link = strings.TrimSpace(link)
		link = strings.TrimPrefix(link, "<")
		link = strings.TrimSuffix(link, ">")
		link = strings.TrimPrefix(link, "./")
		link = strings.TrimPrefix(link, "/")
		if decoded, err := url.PathUnescape(link); err == nil {
			link = decoded
		}
		return link, true
	}
	return "", false
}

// uriReserved holds the characters encodeURI leaves as they are besides
// ASCII letters and digits.
const uriReserved = ";,/?:@&=+$-_.!~*'()#"

// encodeURI percent-encodes s the way browsers' encodeURI does, which is how
// editors write links to paths containing spaces or non-ASCII characters.
func encodeURI(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x80 && (isAlnum(c) || strings.IndexByte(uriReserved, c) >= 0) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
