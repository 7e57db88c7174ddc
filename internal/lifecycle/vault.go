package lifecycle

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/errors"
)

// TrashDir is the vault folder that discarded diagrams are moved into.
const TrashDir = ".trash"

// Vault is the directory tree holding diagrams and the documents that embed
// them. Every path the Vault accepts or returns is vault-relative and
// slash-separated; the underlying filesystem is rooted at the vault root.
type Vault struct {
	Fs   afero.Fs
	Root string // Display only; Fs is already rooted
}

// NewVault returns a Vault over the OS directory root.
func NewVault(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("vault root is not a directory").WithValue(abs)
	}
	return &Vault{Fs: afero.NewBasePathFs(afero.NewOsFs(), abs), Root: abs}, nil
}

// NewMemVault returns an empty in-memory Vault.
func NewMemVault() *Vault {
	return &Vault{Fs: afero.NewMemMapFs(), Root: "/"}
}

// Clean normalizes a vault-relative path, rejecting paths that leave the vault.
func (v *Vault) Clean(p string) (string, error) {
	p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
	rel := path.Clean(p)
	if rel == "." || p == "" {
		return "", errors.NewValidationError("empty vault path").WithField("path").WithValue(p)
	}
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", errors.NewValidationError("path escapes vault").WithField("path").WithValue(p)
	}
	return rel, nil
}

func (v *Vault) fsPath(rel string) string {
	return "/" + rel
}

// Exists reports whether p exists.
func (v *Vault) Exists(p string) bool {
	rel, err := v.Clean(p)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(v.Fs, v.fsPath(rel))
	return err == nil && ok
}

// ReadFile returns the content of p.
func (v *Vault) ReadFile(p string) ([]byte, error) {
	rel, err := v.Clean(p)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(v.Fs, v.fsPath(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError("file", rel).WithCause(err)
		}
		return nil, errors.NewPersistError("read", rel, errors.Join(errors.ErrRead, err))
	}
	return data, nil
}

// MkdirAll creates dir and any missing parents. An existing directory is success.
func (v *Vault) MkdirAll(dir string) error {
	rel, err := v.Clean(dir)
	if err != nil {
		return err
	}
	if err := v.Fs.MkdirAll(v.fsPath(rel), 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if info, statErr := v.Fs.Stat(v.fsPath(rel)); statErr == nil && info.IsDir() {
				return nil
			}
		}
		return errors.NewPersistError("create folder", rel, errors.Join(errors.ErrFolderCreate, err))
	}
	return nil
}

// WriteFile replaces the content of p atomically: data goes to a temporary
// file in the same folder which is then renamed over p.
func (v *Vault) WriteFile(p string, data []byte) error {
	rel, err := v.Clean(p)
	if err != nil {
		return err
	}
	target := v.fsPath(rel)

	tmp, err := afero.TempFile(v.Fs, path.Dir(target), ".tmp-*")
	if err != nil {
		return errors.NewPersistError("write", rel, errors.Join(errors.ErrWrite, err))
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = v.Fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.NewPersistError("write", rel, errors.Join(errors.ErrWrite, err))
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewPersistError("write", rel, errors.Join(errors.ErrWrite, err))
	}
	if err := tmp.Close(); err != nil {
		return errors.NewPersistError("write", rel, errors.Join(errors.ErrWrite, err))
	}
	if err := v.Fs.Rename(tmpPath, target); err != nil {
		return errors.NewPersistError("write", rel, errors.Join(errors.ErrWrite, err))
	}

	success = true
	return nil
}

// CreateFile writes data to p, failing with fs.ErrExist if p already exists.
func (v *Vault) CreateFile(p string, data []byte) error {
	rel, err := v.Clean(p)
	if err != nil {
		return err
	}
	f, err := v.Fs.OpenFile(v.fsPath(rel), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return err
		}
		return errors.NewPersistError("create", rel, errors.Join(errors.ErrWrite, err))
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = v.Fs.Remove(v.fsPath(rel))
		return errors.NewPersistError("create", rel, errors.Join(errors.ErrWrite, err))
	}
	if err := f.Close(); err != nil {
		return errors.NewPersistError("create", rel, errors.Join(errors.ErrWrite, err))
	}
	return nil
}

// Trash moves p under TrashDir, keeping its relative layout, and returns the
// new path. A name already taken in the trash gets a numeric suffix.
func (v *Vault) Trash(p string) (string, error) {
	rel, err := v.Clean(p)
	if err != nil {
		return "", err
	}
	if !v.Exists(rel) {
		return "", errors.NewNotFoundError("file", rel).WithCause(fs.ErrNotExist)
	}

	dest := path.Join(TrashDir, rel)
	if err := v.MkdirAll(path.Dir(dest)); err != nil {
		return "", errors.NewPersistError("trash", rel, errors.Join(errors.ErrTrash, err))
	}
	dest = v.uniquePath(dest)

	if err := v.Fs.Rename(v.fsPath(rel), v.fsPath(dest)); err != nil {
		return "", errors.NewPersistError("trash", rel, errors.Join(errors.ErrTrash, err))
	}
	return dest, nil
}

// uniquePath returns p, or p with "_N" inserted before its extension for the
// first N that is free.
func (v *Vault) uniquePath(p string) string {
	if !v.Exists(p) {
		return p
	}
	base, ext := splitExt(p)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !v.Exists(candidate) {
			return candidate
		}
	}
}

// splitExt splits p into name and extension, treating the diagram
// extensions as a single unit (".drawio.svg", not ".svg").
func splitExt(p string) (string, string) {
	if vr, ok := codec.VariantFor(p); ok {
		n := len(vr.Extension())
		return p[:len(p)-n], p[len(p)-n:]
	}
	ext := path.Ext(p)
	return p[:len(p)-len(ext)], ext
}

// ResolveAlternate returns p when it exists, otherwise the sibling that
// differs only by the ".drawio" / ".drawio.svg" extension.
func (v *Vault) ResolveAlternate(p string) (string, bool) {
	rel, err := v.Clean(p)
	if err != nil {
		return "", false
	}
	if v.Exists(rel) {
		return rel, true
	}

	lower := strings.ToLower(rel)
	var alt string
	switch {
	case strings.HasSuffix(lower, codec.ExtSVG):
		alt = rel[:len(rel)-len(".svg")]
	case strings.HasSuffix(lower, codec.ExtXML):
		alt = rel + ".svg"
	default:
		return "", false
	}
	if v.Exists(alt) {
		return alt, true
	}
	return "", false
}

// Walk calls fn for every regular file under dir, skipping the trash.
// Paths passed to fn are vault-relative.
func (v *Vault) Walk(dir string, fn func(rel string, info fs.FileInfo) error) error {
	start := "/"
	if dir != "" && dir != "." && dir != "/" {
		rel, err := v.Clean(dir)
		if err != nil {
			return err
		}
		start = v.fsPath(rel)
	}

	return afero.Walk(v.Fs, start, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if info.IsDir() {
			if rel == TrashDir {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(rel, info)
	})
}
