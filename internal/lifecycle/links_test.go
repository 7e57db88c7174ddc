package lifecycle

import "testing"

func TestEmbedLink(t *testing.T) {
	tests := []struct {
		style LinkStyle
		want  string
	}{
		{LinkStyle{}, "![[drawio/a.drawio.svg]]"},
		{LinkStyle{Size: "400"}, "![[drawio/a.drawio.svg|400]]"},
		{LinkStyle{Size: "  "}, "![[drawio/a.drawio.svg]]"},
		{LinkStyle{Markdown: true}, "![](drawio/a.drawio.svg)"},
		{LinkStyle{Markdown: true, Size: "400x300"}, "![400x300](drawio/a.drawio.svg)"},
	}
	for _, tt := range tests {
		if got := EmbedLink("drawio/a.drawio.svg", tt.style); got != tt.want {
			t.Errorf("EmbedLink(%+v) = %q, want %q", tt.style, got, tt.want)
		}
	}
}

func TestStripReferences(t *testing.T) {
	const p = "drawio/my diagram.drawio.svg"

	tests := []struct {
		name    string
		content string
		want    string
		wantN   int
	}{
		{
			name:    "wikilink",
			content: "before ![[drawio/my diagram.drawio.svg]] after",
			want:    "before  after",
			wantN:   1,
		},
		{
			name:    "wikilink with size",
			content: "![[drawio/my diagram.drawio.svg|400]]\ntext",
			want:    "\ntext",
			wantN:   1,
		},
		{
			name:    "markdown",
			content: "x ![](drawio/my diagram.drawio.svg) y",
			want:    "x  y",
			wantN:   1,
		},
		{
			name:    "markdown encoded",
			content: "![400](drawio/my%20diagram.drawio.svg)",
			want:    "",
			wantN:   1,
		},
		{
			name:    "wikilink encoded",
			content: "![[drawio/my%20diagram.drawio.svg|300]]",
			want:    "",
			wantN:   1,
		},
		{
			name:    "angle brackets and dot slash",
			content: "![a](<drawio/my diagram.drawio.svg>) ![b](./drawio/my%20diagram.drawio.svg)",
			want:    " ",
			wantN:   2,
		},
		{
			name:    "several",
			content: "![[drawio/my diagram.drawio.svg]]\n![[drawio/my diagram.drawio.svg|10]]\n",
			want:    "\n\n",
			wantN:   2,
		},
		{
			name:    "other diagrams untouched",
			content: "![[drawio/other.drawio.svg]] ![[drawio/my diagram.drawio]]",
			want:    "![[drawio/other.drawio.svg]] ![[drawio/my diagram.drawio]]",
			wantN:   0,
		},
		{
			name:    "plain mention is not an embed",
			content: "see drawio/my diagram.drawio.svg",
			want:    "see drawio/my diagram.drawio.svg",
			wantN:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := StripReferences(tt.content, p)
			if got != tt.want {
				t.Errorf("StripReferences() = %q, want %q", got, tt.want)
			}
			if n != tt.wantN {
				t.Errorf("StripReferences() removed %d, want %d", n, tt.wantN)
			}
		})
	}
}

func TestStripReferences_RegexMetacharacters(t *testing.T) {
	content := "![[drawio/a(1).drawio.svg]] ![[drawio/a1.drawio.svg]]"
	got, n := StripReferences(content, "drawio/a(1).drawio.svg")
	if n != 1 || got != " ![[drawio/a1.drawio.svg]]" {
		t.Errorf("StripReferences() = %q, %d", got, n)
	}
}

func TestMentions(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"![[drawio/my diagram.drawio.svg]]", true},
		{"![[my diagram.drawio.svg]]", true},
		{"![](drawio/my%20diagram.drawio.svg)", true},
		{"![[drawio/other.drawio.svg]]", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Mentions(tt.content, "drawio/my diagram.drawio.svg"); got != tt.want {
			t.Errorf("Mentions(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestFindReferenceAt(t *testing.T) {
	line := "See ![[drawio/a.drawio.svg|300]] and ![alt](<./drawio/b%20c.drawio>) or ![](legacy.drawid)."

	tests := []struct {
		name   string
		col    int
		want   string
		wantOK bool
	}{
		{"before any link", 0, "", false},
		{"start of wikilink", 4, "drawio/a.drawio.svg", true},
		{"inside wikilink", 12, "drawio/a.drawio.svg", true},
		{"between links", 35, "", false},
		{"inside markdown link", 50, "drawio/b c.drawio", true},
		{"legacy extension", 80, "legacy.drawid", true},
		{"past end", len(line) + 5, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindReferenceAt(line, tt.col)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("FindReferenceAt(col=%d) = %q, %v, want %q, %v", tt.col, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestFindReferenceAt_NonDiagram(t *testing.T) {
	if got, ok := FindReferenceAt("![[image.png]]", 3); ok {
		t.Errorf("FindReferenceAt(png) = %q, want no match", got)
	}
}

func TestEncodeURI(t *testing.T) {
	tests := map[string]string{
		"drawio/a.drawio.svg": "drawio/a.drawio.svg",
		"my diagram.drawio":   "my%20diagram.drawio",
		"ünï.drawio":          "%C3%BCn%C3%AF.drawio",
		"a&b=c;d,e(f)!~*'#":   "a&b=c;d,e(f)!~*'#",
		"50% [draft].drawio":  "50%25%20%5Bdraft%5D.drawio",
	}
	for in, want := range tests {
		if got := encodeURI(in); got != want {
			t.Errorf("encodeURI(%q) = %q, want %q", in, got, want)
		}
	}
}
