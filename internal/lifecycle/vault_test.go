package lifecycle

import (
	"io/fs"
	"testing"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/drawbridge/internal/errors"
)

func TestVault_Clean(t *testing.T) {
	v := NewMemVault()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"drawio/a.drawio.svg", "drawio/a.drawio.svg", false},
		{"/drawio/a.drawio.svg", "drawio/a.drawio.svg", false},
		{"drawio/./x/../a.drawio", "drawio/a.drawio", false},
		{`drawio\a.drawio`, "drawio/a.drawio", false},
		{"..foo/a.drawio", "..foo/a.drawio", false},
		{"", "", true},
		{"/", "", true},
		{".", "", true},
		{"..", "", true},
		{"../outside.drawio", "", true},
		{"drawio/../../outside.drawio", "", true},
	}
	for _, tt := range tests {
		got, err := v.Clean(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Clean(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Clean(%q) error = %v, want ErrInvalidInput", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestVault_WriteAndRead(t *testing.T) {
	v := NewMemVault()
	if err := v.MkdirAll("drawio"); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if err := v.WriteFile("drawio/a.drawio", []byte("first")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := v.WriteFile("drawio/a.drawio", []byte("second")); err != nil {
		t.Fatalf("second WriteFile() error = %v", err)
	}

	data, err := v.ReadFile("drawio/a.drawio")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "second" {
		t.Errorf("ReadFile() = %q, want %q", data, "second")
	}

	// No temporary files are left behind.
	var files []string
	_ = v.Walk("drawio", func(rel string, _ fs.FileInfo) error {
		files = append(files, rel)
		return nil
	})
	if len(files) != 1 || files[0] != "drawio/a.drawio" {
		t.Errorf("files after write = %v, want only drawio/a.drawio", files)
	}
}

func TestVault_ReadMissing(t *testing.T) {
	v := NewMemVault()
	_, err := v.ReadFile("drawio/none.drawio")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile() error = %v, want fs.ErrNotExist", err)
	}
	var nf *errors.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("ReadFile() error type = %T, want *NotFoundError", err)
	}
}

func TestVault_CreateFileExclusive(t *testing.T) {
	v := NewMemVault()
	_ = v.MkdirAll("drawio")

	if err := v.CreateFile("drawio/a.drawio", []byte("x")); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	err := v.CreateFile("drawio/a.drawio", []byte("y"))
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("second CreateFile() error = %v, want fs.ErrExist", err)
	}
	data, _ := v.ReadFile("drawio/a.drawio")
	if string(data) != "x" {
		t.Errorf("content = %q, want original %q", data, "x")
	}
}

func TestVault_MkdirAllReadOnly(t *testing.T) {
	v := &Vault{Fs: afero.NewReadOnlyFs(afero.NewMemMapFs()), Root: "/"}
	err := v.MkdirAll("drawio")
	if !errors.Is(err, errors.ErrFolderCreate) {
		t.Errorf("MkdirAll() error = %v, want ErrFolderCreate", err)
	}
}

func TestVault_Trash(t *testing.T) {
	v := NewMemVault()
	_ = v.MkdirAll("drawio")
	_ = v.WriteFile("drawio/a.drawio.svg", []byte("one"))

	dest, err := v.Trash("drawio/a.drawio.svg")
	if err != nil {
		t.Fatalf("Trash() error = %v", err)
	}
	if dest != ".trash/drawio/a.drawio.svg" {
		t.Errorf("Trash() = %q, want %q", dest, ".trash/drawio/a.drawio.svg")
	}
	if v.Exists("drawio/a.drawio.svg") {
		t.Error("file still exists after Trash")
	}

	// A second file with the same name gets a suffix in the trash.
	_ = v.WriteFile("drawio/a.drawio.svg", []byte("two"))
	dest, err = v.Trash("drawio/a.drawio.svg")
	if err != nil {
		t.Fatalf("second Trash() error = %v", err)
	}
	if dest != ".trash/drawio/a_1.drawio.svg" {
		t.Errorf("second Trash() = %q, want %q", dest, ".trash/drawio/a_1.drawio.svg")
	}
	data, _ := v.ReadFile(dest)
	if string(data) != "two" {
		t.Errorf("trashed content = %q, want %q", data, "two")
	}

	if _, err := v.Trash("drawio/missing.drawio"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Trash(missing) error = %v, want fs.ErrNotExist", err)
	}
}

func TestVault_ResolveAlternate(t *testing.T) {
	v := NewMemVault()
	_ = v.MkdirAll("drawio")
	_ = v.WriteFile("drawio/svg-only.drawio.svg", []byte("x"))
	_ = v.WriteFile("drawio/xml-only.drawio", []byte("x"))

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"drawio/svg-only.drawio.svg", "drawio/svg-only.drawio.svg", true},
		{"drawio/svg-only.drawio", "drawio/svg-only.drawio.svg", true},
		{"drawio/xml-only.drawio.svg", "drawio/xml-only.drawio", true},
		{"drawio/none.drawio", "", false},
		{"drawio/none.png", "", false},
	}
	for _, tt := range tests {
		got, ok := v.ResolveAlternate(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ResolveAlternate(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestVault_WalkSkipsTrash(t *testing.T) {
	v := NewMemVault()
	_ = v.MkdirAll("drawio")
	_ = v.MkdirAll(TrashDir)
	_ = v.WriteFile("note.md", []byte("x"))
	_ = v.WriteFile("drawio/a.drawio", []byte("x"))
	_ = v.WriteFile(".trash/old.drawio", []byte("x"))

	var got []string
	err := v.Walk("", func(rel string, _ fs.FileInfo) error {
		got = append(got, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	want := []string{"drawio/a.drawio", "note.md"}
	if len(got) != len(want) {
		t.Fatalf("Walk() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Walk()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// A missing folder walks nothing.
	if err := v.Walk("absent", func(string, fs.FileInfo) error { return nil }); err != nil {
		t.Errorf("Walk(absent) error = %v", err)
	}
}
