package assetserver

import (
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/logging"
)

// IndexFile is served for the root path.
const IndexFile = "index.html"

// contentTypes maps lower-cased file extensions to the Content-Type sent for them.
var contentTypes = map[string]string{
	".html":  "text/html",
	".js":    "application/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".ico":   "image/x-icon",
}

// defaultContentType is used for any extension missing from the table.
const defaultContentType = "application/octet-stream"

// ContentType returns the Content-Type for name based on its extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}

// StaticHandler serves files from a bundle directory. Paths map one to one
// under Root, with "/" mapped to index.html. Requests whose resolved path
// leaves Root are refused before the filesystem is touched.
type StaticHandler struct {
	fs     afero.Fs
	root   string
	logger *logging.Logger
}

// NewStaticHandler creates a handler serving root from fs. A nil logger
// discards output.
func NewStaticHandler(fsys afero.Fs, root string, logger *logging.Logger) *StaticHandler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &StaticHandler{
		fs:     fsys,
		root:   filepath.Clean(root),
		logger: logger,
	}
}

// Resolve maps a decoded URL path to a filesystem path under the root.
// It returns errors.ErrInvalidInput when the cleaned result escapes the root.
func (h *StaticHandler) Resolve(urlPath string) (string, error) {
	if urlPath == "" || urlPath == "/" {
		urlPath = "/" + IndexFile
	}
	if strings.ContainsRune(urlPath, 0) {
		return "", errors.NewValidationError("path contains NUL").WithValue(urlPath)
	}

	resolved := filepath.Join(h.root, filepath.FromSlash(urlPath))
	if !within(h.root, resolved) {
		return "", errors.NewValidationError("path escapes bundle root").
			WithField("path").
			WithValue(urlPath)
	}
	return resolved, nil
}

// within reports whether target is root itself or lies beneath it.
// Both arguments must already be clean.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ServeHTTP implements http.Handler.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeText(w, http.StatusMethodNotAllowed, "405 Method Not Allowed")
		return
	}

	// r.URL.Path is already percent-decoded; Resolve cleans it.
	name, err := h.Resolve(r.URL.Path)
	if err != nil {
		h.logger.Warn("refused request outside bundle root", "path", r.URL.Path)
		writeText(w, http.StatusForbidden, "403 Forbidden")
		return
	}

	data, err := afero.ReadFile(h.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeText(w, http.StatusNotFound, "404 Not Found")
			return
		}
		h.logger.Error("failed to read bundle file", "path", name, "error", err)
		writeText(w, http.StatusInternalServerError, fmt.Sprintf("500 Internal Server Error: %v", err))
		return
	}

	w.Header().Set("Content-Type", ContentType(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
