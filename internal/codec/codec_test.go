package codec

import (
	"strings"
	"testing"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

const oneShapeModel = `<mxGraphModel><root><mxCell id="0"/><mxCell id="1" parent="0"/>` +
	`<mxCell id="2" value="Start &amp; end" style="rounded=1;" vertex="1" parent="1">` +
	`<mxGeometry x="40" y="40" width="120" height="60" as="geometry"/></mxCell></root></mxGraphModel>`

func TestDecode_XMLRoundTrip(t *testing.T) {
	models := []string{
		string(SkeletonModel),
		oneShapeModel,
		"<mxGraphModel>\n  <root/>\n</mxGraphModel>\n",
		`<mxfile host="app"><diagram id="a">dZHBEoIgEIafhrtC</diagram></mxfile>`,
		"<mxGraphModel><root><mxCell id=\"0\" value=\"héllo ✓\"/></root></mxGraphModel>",
	}

	for _, variant := range []Variant{XmlForm, OpaqueForm} {
		for _, m := range models {
			encoded, err := Encode([]byte(m), variant)
			if err != nil {
				t.Fatalf("Encode(%s) error = %v", variant, err)
			}
			got, err := Decode(encoded, variant)
			if err != nil {
				t.Fatalf("Decode(%s) error = %v", variant, err)
			}
			if string(got) != m {
				t.Errorf("Decode(Encode(%q, %s)) = %q", m, variant, got)
			}
		}
	}
}

func TestDecode_XMLInvalidUTF8(t *testing.T) {
	_, err := Decode([]byte{0xff, 0xfe, '<'}, XmlForm)
	if !errors.Is(err, errors.ErrDecode) {
		t.Errorf("Decode() error = %v, want ErrDecode", err)
	}
}

func TestDecode_SVGPlain(t *testing.T) {
	tests := []struct {
		name  string
		model Model
	}{
		{"canonical skeleton", SkeletonModel},
		{"one shape with entities", oneShapeModel},
		{"multi-line", "<mxGraphModel>\n\t<root>\n\t\t<mxCell id=\"0\"/>\n\t</root>\n</mxGraphModel>"},
		{"non-ascii", `<mxGraphModel><root><mxCell id="0" value="Größe → 10"/></root></mxGraphModel>`},
		{"mxfile root", `<mxfile><diagram id="p"></diagram></mxfile>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(BuildSVG(tt.model, false), SvgForm)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.model {
				t.Errorf("Decode() = %q, want %q", got, tt.model)
			}
		})
	}
}

func TestDecode_SVGCompressed(t *testing.T) {
	models := []Model{
		SkeletonModel,
		oneShapeModel,
		`<mxGraphModel><root><mxCell id="0" value="100% + ünïcode &lt;b&gt;"/></root></mxGraphModel>`,
	}

	for _, m := range models {
		svg := BuildSVG(m, true)
		if strings.Contains(string(svg), "mxGraphModel") {
			t.Fatalf("compressed container should not contain the plain model")
		}
		got, err := Decode(svg, SvgForm)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got != m {
			t.Errorf("Decode() = %q, want %q", got, m)
		}
	}
}

func TestDecode_SVGInlineDiagramPage(t *testing.T) {
	content := `<mxfile host="embed"><diagram id="x" name="Page-1">` + string(oneShapeModel) + `</diagram></mxfile>`
	svg := `<svg xmlns="http://www.w3.org/2000/svg" content="` + EscapeAttr(content) + `"><g/></svg>`

	got, err := Decode([]byte(svg), SvgForm)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if string(got) != oneShapeModel {
		t.Errorf("Decode() = %q, want %q", got, oneShapeModel)
	}
}

func TestDecode_SVGHTMLEntities(t *testing.T) {
	svg := `<svg content="&lt;mxGraphModel&gt;&nbsp;&lt;/mxGraphModel&gt;"></svg>`

	got, err := Decode([]byte(svg), SvgForm)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if want := "<mxGraphModel>\u00a0</mxGraphModel>"; string(got) != want {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestDecode_SVGErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty input", ""},
		{"not svg", `<html content="&lt;mxGraphModel/&gt;"></html>`},
		{"no content attribute", `<svg xmlns="http://www.w3.org/2000/svg"><g/></svg>`},
		{"blank content attribute", `<svg content="  "></svg>`},
		{"content is not a model", `<svg content="hello world"></svg>`},
		{"bad base64", `<svg content="&lt;mxfile&gt;&lt;diagram&gt;!!!not base64!!!&lt;/diagram&gt;&lt;/mxfile&gt;"></svg>`},
		{"corrupt deflate stream", `<svg content="&lt;mxfile&gt;&lt;diagram&gt;aGVsbG8gd29ybGQ=&lt;/diagram&gt;&lt;/mxfile&gt;"></svg>`},
		{"unexpected markup in page", `<svg content="&lt;mxfile&gt;&lt;diagram&gt;&lt;b&gt;x&lt;/b&gt;&lt;/diagram&gt;&lt;/mxfile&gt;"></svg>`},
		{"plain text", "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data), SvgForm)
			if err == nil {
				t.Fatalf("Decode() = %q, want error", got)
			}
			if !errors.Is(err, errors.ErrDecode) {
				t.Errorf("Decode() error = %v, want ErrDecode", err)
			}
			var de *errors.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("Decode() error type = %T, want *DecodeError", err)
			}
			if de.Variant != "svg" {
				t.Errorf("DecodeError.Variant = %q, want svg", de.Variant)
			}
		})
	}
}

func TestDecodeFile(t *testing.T) {
	f := &File{Path: "drawio/broken.drawio.svg", Variant: SvgForm, Bytes: []byte("<svg/>")}

	_, err := DecodeFile(f)
	var de *errors.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("DecodeFile() error = %v, want *DecodeError", err)
	}
	if de.Path != f.Path {
		t.Errorf("DecodeError.Path = %q, want %q", de.Path, f.Path)
	}

	f.Bytes = EmptySVG()
	model, err := DecodeFile(f)
	if err != nil {
		t.Fatalf("DecodeFile() error = %v", err)
	}
	if model != SkeletonModel {
		t.Errorf("DecodeFile() = %q, want skeleton", model)
	}
}

func TestEncode(t *testing.T) {
	svg := BuildSVG(Model(oneShapeModel), true)

	t.Run("svg target keeps svg payload", func(t *testing.T) {
		got, err := Encode(svg, SvgForm)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if string(got) != string(svg) {
			t.Error("Encode() should pass an SVG payload through unchanged")
		}
	})

	t.Run("svg target wraps bare model", func(t *testing.T) {
		got, err := Encode([]byte(oneShapeModel), SvgForm)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		model, err := Decode(got, SvgForm)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if string(model) != oneShapeModel {
			t.Errorf("Decode(Encode()) = %q", model)
		}
	})

	t.Run("xml target re-derives model from svg", func(t *testing.T) {
		got, err := Encode(svg, XmlForm)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if string(got) != oneShapeModel {
			t.Errorf("Encode() = %q, want %q", got, oneShapeModel)
		}
	})

	t.Run("xml target with svg prolog", func(t *testing.T) {
		got, err := Encode(EmptySVG(), OpaqueForm)
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if Model(got) != SkeletonModel {
			t.Errorf("Encode() = %q, want skeleton", got)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		if _, err := Encode(nil, SvgForm); !errors.Is(err, errors.ErrDecode) {
			t.Errorf("Encode(nil) error = %v, want ErrDecode", err)
		}
	})

	t.Run("xml target with broken svg", func(t *testing.T) {
		if _, err := Encode([]byte("<svg><g/></svg>"), XmlForm); !errors.Is(err, errors.ErrDecode) {
			t.Errorf("Encode() error = %v, want ErrDecode", err)
		}
	})
}

func TestEmptySVG(t *testing.T) {
	svg := string(EmptySVG())

	wantSig := `content="&lt;mxGraphModel&gt;&lt;root&gt;&lt;mxCell id=&quot;0&quot;/&gt;` +
		`&lt;mxCell id=&quot;1&quot; parent=&quot;0&quot;/&gt;&lt;/root&gt;&lt;/mxGraphModel&gt;"`
	if !strings.Contains(svg, wantSig) {
		t.Errorf("EmptySVG() missing skeleton signature:\n%s", svg)
	}
	if !strings.Contains(svg, "<g/>") {
		t.Error("EmptySVG() missing empty group")
	}
}
