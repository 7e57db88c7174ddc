package session

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"
	"golang.org/x/time/rate"

	"github.com/Iron-Ham/drawbridge/internal/assetserver"
	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
	"github.com/Iron-Ham/drawbridge/internal/lifecycle"
	"github.com/Iron-Ham/drawbridge/internal/logging"
	"github.com/Iron-Ham/drawbridge/internal/protocol"
)

// Config holds the settings the manager reads once at construction.
type Config struct {
	Port           int
	RootDir        string
	Dark           bool
	DefaultVariant codec.Variant
	CreateOnOpen   bool
	ExportTimeout  time.Duration
	RateLimit      float64 // Inbound messages per second per session; 0 disables
	RateBurst      int
}

// DefaultConfig returns the manager defaults.
func DefaultConfig() Config {
	return Config{
		Port:           1717,
		DefaultVariant: codec.SvgForm,
		ExportTimeout:  5 * time.Second,
		RateLimit:      50,
		RateBurst:      20,
	}
}

// OpenRequest describes the surface the host wants to open.
type OpenRequest struct {
	// TargetPath is the vault-relative diagram to edit. Empty starts a new
	// diagram that is created on the first save.
	TargetPath string

	// FileName names the new diagram. Empty generates a timestamped name.
	FileName string

	// Document receives the embed reference of a new diagram. May be nil.
	Document lifecycle.Document
}

// Manager owns the open sessions, the target registry and the per-session
// channels. It starts the asset server on demand.
type Manager struct {
	cfg      Config
	server   *assetserver.Controller
	policy   *lifecycle.Policy
	bus      *event.Bus
	logger   *logging.Logger
	registry *Registry
	upgrader websocket.Upgrader

	openMu   sync.Mutex // serializes Open so reuse-by-path is race free
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager and mounts the session channel and health
// endpoints on server. bus and logger may be nil.
func NewManager(cfg Config, server *assetserver.Controller, policy *lifecycle.Policy, bus *event.Bus, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	m := &Manager{
		cfg:      cfg,
		server:   server,
		policy:   policy,
		bus:      bus,
		logger:   logger.WithComponent("session"),
		registry: NewRegistry(bus),
		sessions: make(map[string]*Session),
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     m.checkOrigin,
	}

	server.Mount(assetserver.SessionPath, m)
	server.Mount(assetserver.HealthPath, assetserver.HealthHandler(server, m.Count))
	api := m.APIHandler()
	server.Mount(assetserver.SessionsPath, api)
	server.Mount(assetserver.SessionsPath+"/{instanceID}", api)
	if bus != nil {
		bus.Subscribe(event.TypeDiagramChanged, m.onDiagramChanged)
	}
	return m
}

// Registry returns the target registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Start starts the asset server, or returns its handle when it is running.
func (m *Manager) Start(ctx context.Context) (*assetserver.Handle, error) {
	return m.server.Start(ctx, m.cfg.RootDir, m.cfg.Port)
}

// Open returns the session bound to req.TargetPath if one is open, or opens
// a new one. The asset server is started when it is not running.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	m.openMu.Lock()
	defer m.openMu.Unlock()

	var target *codec.File
	if req.TargetPath != "" {
		p, err := m.policy.Vault().Clean(req.TargetPath)
		if err != nil {
			return nil, err
		}
		if alt, ok := m.policy.Vault().ResolveAlternate(p); ok {
			p = alt
		}
		if owner, ok := m.registry.Owner(p); ok {
			if s, ok := m.Get(owner); ok {
				if s.State() != StateClosed {
					m.logger.Debug("reusing session", "instance_id", owner, "target", p)
					return s, nil
				}
				// A closing owner still holds its claim until it unregisters.
				select {
				case <-s.Done():
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
		}
		target, err = codec.NewFile(p)
		if err != nil {
			return nil, err
		}
	}

	handle, err := m.Start(ctx)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := newSession(sessionParams{
		id:             id,
		origin:         handle.Origin(),
		url:            assetserver.EditorURL(handle.Port, m.cfg.Dark, id),
		target:         target,
		fileName:       req.FileName,
		defaultVariant: m.cfg.DefaultVariant,
		exportTimeout:  m.cfg.ExportTimeout,
		doc:            req.Document,
		policy:         m.policy,
		bus:            m.bus,
		logger:         m.logger,
		hooks: hooks{
			bind:   m.bindTarget,
			closed: m.unregister,
		},
	})

	if target != nil {
		if err := m.registry.Claim(id, target.Path); err != nil {
			return nil, err
		}
	} else if m.cfg.CreateOnOpen {
		m.createOnOpen(ctx, s, req)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session opened", "instance_id", id, "target", s.TargetPath())
	m.bus.Publish(event.NewSessionOpenedEvent(id, s.TargetPath(), s.URL()))
	return s, nil
}

// createOnOpen writes the skeleton diagram up front so the document can
// reference it before anything is drawn. Failure leaves the session to
// create the file on its first save.
func (m *Manager) createOnOpen(ctx context.Context, s *Session, req OpenRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	variant := s.variantLocked()
	res, err := m.policy.CreateEmpty(ctx, s.id, req.FileName, variant, req.Document)
	if err != nil {
		s.logger.Warn("failed to create diagram on open", "error", err)
		return
	}
	s.target = res.File
	s.emptyFlag = true
	s.logger = s.logger.WithTarget(res.File.Path)
	if err := m.registry.Claim(s.id, res.File.Path); err != nil {
		s.logger.Warn("failed to claim created diagram", "error", err)
	}
}

// onDiagramChanged notes disk changes to diagrams that a session has open.
// Our own saves show up here too.
func (m *Manager) onDiagramChanged(e event.Event) {
	changed, ok := e.(event.DiagramChangedEvent)
	if !ok {
		return
	}
	if owner, ok := m.registry.Owner(changed.Path); ok {
		m.logger.Debug("open diagram changed on disk", "instance_id", owner, "target", changed.Path, "removed", changed.Removed)
	}
}

func (m *Manager) bindTarget(s *Session, path string) error {
	return m.registry.Rebind(s.id, path)
}

func (m *Manager) unregister(s *Session, reason string, result lifecycle.CloseResult) {
	target := s.TargetPath()
	m.registry.ReleaseAll(s.id)

	m.mu.Lock()
	delete(m.sessions, s.id)
	remaining := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session unregistered", "instance_id", s.id, "reason", reason, "remaining", remaining)
	m.bus.Publish(event.NewSessionClosedEvent(s.id, target, reason, result.Discarded))
}

// Get returns the open session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the open sessions ordered by ID.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes the session with the given ID on behalf of the host.
func (m *Manager) Close(ctx context.Context, id string) (lifecycle.CloseResult, error) {
	s, ok := m.Get(id)
	if !ok {
		return lifecycle.CloseResult{}, errors.NewNotFoundError("session", id).WithCause(errors.ErrSessionNotFound)
	}
	return s.Close(ctx, ReasonHost)
}

// CloseAll closes every open session concurrently and joins their errors.
func (m *Manager) CloseAll(ctx context.Context) error {
	sessions := m.Sessions()

	var (
		wg   conc.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sessions {
		wg.Go(func() {
			if _, err := s.Close(ctx, ReasonShutdown); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Shutdown closes every session and stops the asset server.
func (m *Manager) Shutdown(ctx context.Context) error {
	closeErr := m.CloseAll(ctx)
	stopErr := m.server.Stop(ctx)
	return errors.Join(closeErr, stopErr)
}

func (m *Manager) checkOrigin(r *http.Request) bool {
	handle := m.server.Handle()
	return handle != nil && r.Header.Get("Origin") == handle.Origin()
}

// ServeHTTP upgrades a request on the session channel path to a WebSocket
// and attaches it to the session named in the path.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "instanceID")
	s, ok := m.Get(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if s.Attached() {
		http.Error(w, "editor already attached", http.StatusConflict)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Debug("channel upgrade failed", "error", err)
		return
	}

	var limiter *rate.Limiter
	if m.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.cfg.RateLimit), max(m.cfg.RateBurst, 1))
	}
	t := newWSTransport(conn, r.Header.Get("Origin"), id, limiter, s.logger)
	if err := s.Attach(t); err != nil {
		s.logger.Debug("channel attach refused", "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "already attached"))
		_ = conn.Close()
		return
	}

	go t.writePump()
	go func() {
		defer s.Detach(t)
		t.readPump(context.Background(), func(ctx context.Context, env protocol.Envelope) {
			if err := s.Deliver(ctx, env); err != nil {
				s.logger.Debug("message not handled", "error", err)
			}
		})
	}()
}
