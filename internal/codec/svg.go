package codec

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

// newXMLDecoder returns a lenient decoder that understands the HTML entity
// set, since editor exports are not always strict XML.
func newXMLDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.AutoClose = xml.HTMLAutoClose
	return d
}

// contentAttribute returns the unescaped content attribute of the root <svg> element.
func contentAttribute(data []byte) (string, error) {
	d := newXMLDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", errors.NewDecodeError("no svg root element", nil)
		}
		if err != nil {
			return "", errors.NewDecodeError("malformed svg", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.EqualFold(se.Name.Local, "svg") {
			return "", errors.NewDecodeError("root element is <"+se.Name.Local+">, not <svg>", nil)
		}
		for _, attr := range se.Attr {
			if attr.Name.Local == "content" && attr.Name.Space == "" {
				if strings.TrimSpace(attr.Value) == "" {
					return "", errors.NewDecodeError("empty content attribute", nil)
				}
				return attr.Value, nil
			}
		}
		return "", errors.NewDecodeError("svg has no content attribute", nil)
	}
}

// diagramElement is a <diagram> page. Its body is either compressed text or
// an inline <mxGraphModel>.
type diagramElement struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Inner string `xml:",innerxml"`
}

// firstDiagram finds the first <diagram> element in content. found is false
// when content is not XML or has no <diagram>.
func firstDiagram(content string) (diagramElement, bool) {
	d := newXMLDecoder(strings.NewReader(content))
	for {
		tok, err := d.Token()
		if err != nil {
			return diagramElement{}, false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "diagram" {
			continue
		}
		var el diagramElement
		if err := d.DecodeElement(&el, &se); err != nil {
			return diagramElement{}, false
		}
		return el, true
	}
}

// modelFromContent interprets an unescaped content attribute value.
func modelFromContent(content string) (Model, error) {
	if el, ok := firstDiagram(content); ok {
		body := strings.TrimSpace(el.Inner)
		switch {
		case body == "":
			// An empty page; fall through to the plain form.
		case strings.HasPrefix(body, "<"):
			if hasModelRoot(body) {
				return Model(body), nil
			}
			return "", errors.NewDecodeError("diagram element holds unexpected markup", nil)
		default:
			model, err := DecompressModel(body)
			if err != nil {
				return "", errors.NewDecodeError("compressed diagram", err)
			}
			if !strings.HasPrefix(strings.TrimSpace(string(model)), "<") {
				return "", errors.NewDecodeError("decompressed diagram is not XML", nil)
			}
			return model, nil
		}
	}

	trimmed := strings.TrimSpace(content)
	if hasModelRoot(trimmed) {
		return Model(trimmed), nil
	}
	return "", errors.NewDecodeError("content is neither a compressed diagram nor a model", nil)
}

// hasModelRoot reports whether s starts with a model root tag.
func hasModelRoot(s string) bool {
	return strings.HasPrefix(s, "<mxGraphModel") || strings.HasPrefix(s, "<mxfile")
}

// looksLikeSVG reports whether payload is an SVG document rather than a bare model.
func looksLikeSVG(payload []byte) bool {
	head := bytes.TrimSpace(bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf")))
	if bytes.HasPrefix(head, []byte("<svg")) {
		return true
	}
	if bytes.HasPrefix(head, []byte("<?xml")) || bytes.HasPrefix(head, []byte("<!DOCTYPE")) {
		return bytes.Contains(head, []byte("<svg"))
	}
	return false
}

// attrEscaper escapes text for a double-quoted XML attribute. Newlines and
// tabs are kept as character references so they survive attribute
// normalization.
var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#xa;",
	"\r", "&#xd;",
	"\t", "&#x9;",
)

// EscapeAttr escapes s the way the editor writes the content attribute.
func EscapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

const svgHead = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" version="1.1" width="1px" height="1px" viewBox="-0.5 -0.5 1 1" content="`

const svgTail = `"><defs/><g/></svg>`

// BuildSVG wraps a model in a minimal SVG container with no drawn content.
// With compressed set, the model is stored as a compressed <diagram> page
// inside an <mxfile>, the form the editor itself writes; otherwise the model
// is stored as plain escaped text.
func BuildSVG(model Model, compressed bool) []byte {
	content := string(model)
	if compressed {
		content = `<mxfile><diagram id="page-1" name="Page-1">` + CompressModel(model) + `</diagram></mxfile>`
	}

	var buf bytes.Buffer
	buf.Grow(len(svgHead) + len(content)*2 + len(svgTail))
	buf.WriteString(svgHead)
	buf.WriteString(EscapeAttr(content))
	buf.WriteString(svgTail)
	return buf.Bytes()
}

// EmptySVG returns a new SVG container holding the canonical skeleton.
// It satisfies IsEmptyDiagram.
func EmptySVG() []byte {
	return BuildSVG(SkeletonModel, false)
}
