package assetserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/logging"
)

// Paths of the internal endpoints.
const (
	InternalPrefix = "/_drawbridge"
	SessionPath    = InternalPrefix + "/session/{instanceID}"
	SessionsPath   = InternalPrefix + "/sessions"
	HealthPath     = InternalPrefix + "/health"
)

// bindHost is the interface the listener binds to. The editor page is
// addressed as "localhost", which resolves here.
const bindHost = "127.0.0.1"

// Handle describes a running server. It is returned by Start and stays valid
// until Stop.
type Handle struct {
	Port      int
	RootDir   string
	Listening bool
}

// Origin returns the browser origin of pages served by this handle.
func (h *Handle) Origin() string {
	return Origin(h.Port)
}

// Origin returns "http://localhost:{port}".
func Origin(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// Option configures a Controller.
type Option func(*Controller)

// WithFs serves the bundle from fsys instead of the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(c *Controller) {
		c.fs = fsys
	}
}

// WithLogger sets the logger used for lifecycle and access logs.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithShutdownTimeout bounds Stop when the caller's context has no deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.shutdownTimeout = d
	}
}

// Controller starts and stops the asset server. It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	fs              afero.Fs
	logger          *logging.Logger
	shutdownTimeout time.Duration
	mounts          []mount

	handle *Handle
	server *http.Server
	done   chan struct{}

	// current mirrors handle for readers that must not wait on mu, such as
	// handlers running while Stop drains connections.
	current atomic.Pointer[Handle]
}

type mount struct {
	pattern string
	handler http.Handler
}

// NewController creates a stopped Controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		fs:              afero.NewOsFs(),
		logger:          logging.NopLogger(),
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("assetserver")
	return c
}

// Mount routes pattern to handler on every subsequent Start. Patterns use chi
// syntax, so "{name}" segments are available through chi.URLParam. Mounting
// while the server is running takes effect after the next restart.
func (c *Controller) Mount(pattern string, handler http.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounts = append(c.mounts, mount{pattern: pattern, handler: handler})
}

// Start begins serving rootDir on port, or returns the current handle when
// already running. A port of 0 picks a free port, reported in Handle.Port.
//
// On failure no listener is left behind and the error is a *errors.ServerError
// wrapping ErrRootMissing, ErrPortInUse or ErrBindFailed.
func (c *Controller) Start(ctx context.Context, rootDir string, port int) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle != nil {
		return c.handle, nil
	}

	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, errors.NewServerError("invalid bundle root", errors.Join(errors.ErrRootMissing, err)).
			WithRootDir(rootDir)
	}
	info, err := c.fs.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.NewServerError("bundle root is not a directory", errors.ErrRootMissing).
			WithRootDir(root)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(bindHost, fmt.Sprint(port)))
	if err != nil {
		cause := errors.ErrBindFailed
		if errors.Is(err, syscall.EADDRINUSE) {
			cause = errors.ErrPortInUse
		}
		c.logger.Error("asset server failed to start", "port", port, "error", err)
		return nil, errors.NewServerError(err.Error(), cause).WithPort(port).WithRootDir(root)
	}

	actualPort := ln.Addr().(*net.TCPAddr).Port
	server := &http.Server{
		Handler:           c.routerLocked(root),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("asset server stopped unexpectedly", "error", err)
		}
	}()

	c.server = server
	c.done = done
	c.handle = &Handle{Port: actualPort, RootDir: root, Listening: true}
	c.current.Store(c.handle)
	c.logger.Info("asset server started", "port", actualPort, "root", root)
	return c.handle, nil
}

func (c *Controller) routerLocked(root string) http.Handler {
	router := chi.NewRouter()
	router.Use(c.accessLog)
	for _, m := range c.mounts {
		router.Handle(m.pattern, m.handler)
	}
	router.Handle("/*", NewStaticHandler(c.fs, root, c.logger))
	return router
}

// accessLog records status, size and latency for every request.
func (c *Controller) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration_ms", m.Duration.Milliseconds(),
		}
		if m.Code >= http.StatusInternalServerError {
			c.logger.Warn("request", args...)
			return
		}
		c.logger.Debug("request", args...)
	})
}

// Stop shuts the server down gracefully, waiting for in-flight requests until
// ctx expires. It is a no-op when the server is not running.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && c.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.shutdownTimeout)
		defer cancel()
	}

	port := c.handle.Port
	c.current.Store(nil)
	err := c.server.Shutdown(ctx)
	if err != nil {
		// Force the listener closed so the port is released regardless.
		_ = c.server.Close()
	}
	<-c.done

	c.handle = nil
	c.server = nil
	c.done = nil

	if err != nil {
		c.logger.Warn("asset server shutdown incomplete", "port", port, "error", err)
		return errors.NewServerError("shutdown incomplete", err).WithPort(port)
	}
	c.logger.Info("asset server stopped", "port", port)
	return nil
}

// Handle returns the running server's handle, or nil when stopped.
func (c *Controller) Handle() *Handle {
	return c.current.Load()
}

// Running reports whether the server is listening.
func (c *Controller) Running() bool {
	return c.Handle() != nil
}
