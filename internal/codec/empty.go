package codec

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"strings"
)

// SkeletonModel is the canonical "nothing drawn yet" model. New diagrams are
// loaded with it and EmptySVG embeds it.
const SkeletonModel Model = `<mxGraphModel><root><mxCell id="0"/><mxCell id="1" parent="0"/></root></mxGraphModel>`

// legacySkeletons are older spellings of the skeleton that earlier files and
// editor builds produced. They are recognized but never written.
var legacySkeletons = []Model{
	`<mxGraphModel><root><mxCell id='0'/><mxCell id='1' parent='0'/></root></mxGraphModel>`,
	`<mxGraphModel><root><mxCell id="0"/><mxCell parent="0" id="1"/></root></mxGraphModel>`,
	`<mxGraphModel><root><mxCell id='0'/><mxCell parent='0' id='1'/></root></mxGraphModel>`,
}

// Skeletons returns the canonical skeleton followed by the accepted legacy forms.
func Skeletons() []Model {
	return append([]Model{SkeletonModel}, legacySkeletons...)
}

var (
	interTagSpace = regexp.MustCompile(`>\s+<`)
	groupOpenTag  = regexp.MustCompile(`<g\b[^>]*>`)
)

// drawablePrimitives are SVG elements whose presence means something is drawn.
var drawablePrimitives = [][]byte{
	[]byte("<path"),
	[]byte("<rect"),
	[]byte("<ellipse"),
	[]byte("<image"),
	[]byte("<text"),
}

// emptySignatures holds the escaped skeleton content attributes the editor
// writes for a blank diagram, for every accepted skeleton spelling.
var emptySignatures = buildEmptySignatures()

func buildEmptySignatures() [][]byte {
	// Single quotes inside a double-quoted attribute may be written literally
	// or as either character reference.
	apostrophes := []string{"'", "&#39;", "&apos;"}

	seen := make(map[string]bool)
	var sigs [][]byte
	for _, skeleton := range Skeletons() {
		escaped := EscapeAttr(string(skeleton))
		for _, apos := range apostrophes {
			sig := `content="` + strings.ReplaceAll(escaped, "'", apos) + `"`
			if !seen[sig] {
				seen[sig] = true
				sigs = append(sigs, []byte(sig))
			}
		}
	}
	return sigs
}

// IsEmptyDiagram is the single emptiness predicate used to decide whether a
// diagram is discarded when its session closes.
//
// For SVG containers it is a structural pattern match over the editor's
// serialized output, and requires all of:
//   - a content attribute equal to an escaped skeleton (canonical or legacy),
//   - a bare empty group <g/>,
//   - exactly one group-opening tag,
//   - no <path, <rect, <ellipse, <image or <text.
//
// For plain XML containers it falls back to IsSkeletonModel.
//
// Known limitations: this is a heuristic, not a semantic check. A blank
// diagram the editor saved in its compressed <mxfile> form, or with an extra
// decorative group, is classified non-empty and kept. A diagram whose only
// content is a primitive the list above does not name (a <line>, <polygon>
// or <foreignObject>) next to a skeleton content attribute is classified
// empty.
func IsEmptyDiagram(content []byte) bool {
	if !bytes.Contains(content, []byte("<svg")) {
		return IsSkeletonModel(string(content))
	}

	hasSignature := false
	for _, sig := range emptySignatures {
		if bytes.Contains(content, sig) {
			hasSignature = true
			break
		}
	}
	if !hasSignature {
		return false
	}
	if !bytes.Contains(content, []byte("<g/>")) {
		return false
	}
	if len(groupOpenTag.FindAllIndex(content, 2)) != 1 {
		return false
	}
	for _, p := range drawablePrimitives {
		if bytes.Contains(content, p) {
			return false
		}
	}
	return true
}

// IsSkeletonModel reports whether model is a model with nothing drawn: the
// canonical skeleton or a legacy spelling of it, ignoring whitespace between
// tags. As a structural fallback it also accepts a skeleton whose
// <mxGraphModel> carries view attributes (grid, page size, ...), which is
// what the editor sends in change notifications, and an <mxfile> whose first
// page is such a skeleton.
func IsSkeletonModel(model string) bool {
	normalized := interTagSpace.ReplaceAllString(strings.TrimSpace(model), "><")
	if normalized == "" {
		return false
	}
	for _, s := range Skeletons() {
		if normalized == string(s) {
			return true
		}
	}

	if strings.HasPrefix(normalized, "<mxfile") {
		el, ok := firstDiagram(normalized)
		if !ok {
			return false
		}
		body := strings.TrimSpace(el.Inner)
		if strings.HasPrefix(body, "<") {
			return isBareSkeleton(body)
		}
		inner, err := DecompressModel(body)
		if err != nil {
			return false
		}
		return IsSkeletonModel(string(inner))
	}

	return isBareSkeleton(normalized)
}

// isBareSkeleton walks the element tree and accepts exactly
// <mxGraphModel ...><root><mxCell id="0"/><mxCell id="1" parent="0"/></root></mxGraphModel>
// with any attributes on mxGraphModel and no other attributes or elements.
func isBareSkeleton(s string) bool {
	d := newXMLDecoder(strings.NewReader(s))

	var path []string
	var cells []map[string]string
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth := len(path)
			name := t.Name.Local
			switch {
			case depth == 0 && name == "mxGraphModel":
			case depth == 1 && name == "root" && len(t.Attr) == 0:
			case depth == 2 && name == "mxCell":
				attrs := make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					attrs[a.Name.Local] = a.Value
				}
				cells = append(cells, attrs)
			default:
				return false
			}
			path = append(path, name)
		case xml.EndElement:
			if len(path) == 0 {
				return false
			}
			path = path[:len(path)-1]
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}

	if len(path) != 0 || len(cells) != 2 {
		return false
	}
	layer, ok := cellByID(cells, "1")
	if !ok || len(layer) != 2 || layer["parent"] != "0" {
		return false
	}
	root, ok := cellByID(cells, "0")
	return ok && len(root) == 1
}

func cellByID(cells []map[string]string, id string) (map[string]string, bool) {
	for _, c := range cells {
		if c["id"] == id {
			return c, true
		}
	}
	return nil, false
}
