package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
	"github.com/Iron-Ham/drawbridge/internal/lifecycle"
	"github.com/Iron-Ham/drawbridge/internal/logging"
	"github.com/Iron-Ham/drawbridge/internal/protocol"
)

// State is the position of a session in its lifecycle.
type State int

const (
	StateUnopened State = iota
	StateAwaitingInit
	StateReady
	StateEditing
	StateExportRequested
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateAwaitingInit:
		return "awaiting_init"
	case StateReady:
		return "ready"
	case StateEditing:
		return "editing"
	case StateExportRequested:
		return "export_requested"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Close reasons reported in session.closed events.
const (
	ReasonExit     = "exit"
	ReasonHost     = "host"
	ReasonShutdown = "shutdown"
)

// Transport delivers outbound messages to the editor attached to a session.
type Transport interface {
	Send(msg protocol.Outbound) error
	Close() error
}

// hooks connect a session to the manager that owns it.
type hooks struct {
	// bind is called with the session lock held when a created file becomes
	// the session's target.
	bind func(s *Session, path string) error
	// closed is called once, without the session lock, after close.
	closed func(s *Session, reason string, result lifecycle.CloseResult)
}

// Session is the state machine for one editing surface. Messages for a
// session are handled one at a time; different sessions never share a lock.
type Session struct {
	id             string
	origin         string
	url            string
	fileName       string
	defaultVariant codec.Variant
	exportTimeout  time.Duration
	doc            lifecycle.Document
	policy         *lifecycle.Policy
	bus            *event.Bus
	logger         *logging.Logger
	hooks          hooks

	mu             sync.Mutex
	state          State
	target         *codec.File
	emptyFlag      bool
	awaitingExport bool
	exportGen      uint64
	exportTimer    *time.Timer
	transport      Transport

	done chan struct{}
}

// sessionParams collects what the manager hands a new session.
type sessionParams struct {
	id             string
	origin         string
	url            string
	target         *codec.File
	fileName       string
	defaultVariant codec.Variant
	exportTimeout  time.Duration
	doc            lifecycle.Document
	policy         *lifecycle.Policy
	bus            *event.Bus
	logger         *logging.Logger
	hooks          hooks
}

func newSession(p sessionParams) *Session {
	logger := p.logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithInstance(p.id)
	if p.target != nil {
		logger = logger.WithTarget(p.target.Path)
	}
	return &Session{
		id:             p.id,
		origin:         p.origin,
		url:            p.url,
		fileName:       p.fileName,
		defaultVariant: p.defaultVariant,
		exportTimeout:  p.exportTimeout,
		doc:            p.doc,
		policy:         p.policy,
		bus:            p.bus,
		logger:         logger,
		hooks:          p.hooks,
		target:         p.target,
		done:           make(chan struct{}),
	}
}

// ID returns the session's instance ID.
func (s *Session) ID() string { return s.id }

// URL returns the editor URL the host loads for this session.
func (s *Session) URL() string { return s.url }

// Document returns the host document the session embeds into, or nil.
func (s *Session) Document() lifecycle.Document { return s.doc }

// Done is closed once the session has been closed and unregistered.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TargetPath returns the bound diagram path, or "" before the first save.
func (s *Session) TargetPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return ""
	}
	return s.target.Path
}

// Empty reports the current emptiness flag.
func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emptyFlag
}

// AwaitingExport reports whether an export request is outstanding.
func (s *Session) AwaitingExport() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaitingExport
}

// Attached reports whether an editor channel is attached.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport != nil
}

// Attach connects the editor channel and moves the session to AwaitingInit.
// A session accepts one channel at a time.
func (s *Session) Attach(t Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return errors.NewSessionError("attach after close", errors.ErrSessionClosed).WithInstanceID(s.id)
	}
	if s.transport != nil {
		return errors.NewSessionError("editor already attached", errors.ErrAlreadyAttached).WithInstanceID(s.id)
	}
	s.transport = t
	if s.state == StateUnopened {
		s.state = StateAwaitingInit
	}
	s.logger.Debug("editor attached", "state", s.state.String())
	return nil
}

// Detach forgets t if it is the attached channel. The session stays open so
// a reloaded editor can attach again.
func (s *Session) Detach(t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == t {
		s.transport = nil
		s.logger.Debug("editor detached", "state", s.state.String())
	}
}

// Deliver validates and handles one inbound message. Messages from the wrong
// origin or channel, tagged for another instance, malformed, or arriving
// after close are dropped; the returned error says why and is only worth
// logging at debug level.
func (s *Session) Deliver(ctx context.Context, env protocol.Envelope) error {
	if env.Origin != s.origin {
		s.logger.Debug("dropping message from foreign origin", "origin", env.Origin)
		return errors.NewSessionError("origin mismatch: "+env.Origin, errors.ErrInvalidInput).WithInstanceID(s.id)
	}
	if env.Source != s.id {
		s.logger.Debug("dropping message from another channel", "source", env.Source)
		return errors.NewSessionError("source mismatch: "+env.Source, errors.ErrInvalidInput).WithInstanceID(s.id)
	}
	msg, err := protocol.Parse(env.Raw)
	if err != nil {
		s.logger.Debug("dropping unparseable message", "error", err)
		return err
	}
	if tag := msg.InstanceID(); tag != "" && tag != s.id {
		s.logger.Debug("dropping message for another instance", "tag", tag)
		return errors.NewSessionError("instance mismatch: "+tag, errors.ErrInvalidInput).WithInstanceID(s.id)
	}

	if exit, ok := msg.(protocol.Exit); ok {
		s.logger.Debug("exit received", "modified", exit.Modified)
		_, err := s.Close(ctx, ReasonExit)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		s.logger.Debug("dropping message after close", "event", msg.Event())
		return errors.NewSessionError("message after close", errors.ErrSessionClosed).WithInstanceID(s.id)
	}

	s.logger.Debug("message", "event", msg.Event(), "state", s.state.String())
	switch m := msg.(type) {
	case protocol.Init:
		return s.handleInit()
	case protocol.Save:
		return s.handleSave()
	case protocol.ExportReply:
		return s.handleExport(ctx, m)
	case protocol.Change:
		s.handleChange(m)
		return nil
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnknownEvent, msg.Event())
	}
}

func (s *Session) handleInit() error {
	s.state = StateReady
	model := codec.SkeletonModel

	if s.target == nil {
		s.emptyFlag = true
		return s.sendLocked(protocol.Load{XML: string(model), Autosave: true})
	}

	data, err := s.policy.Vault().ReadFile(s.target.Path)
	if err != nil {
		s.logger.Warn("failed to read diagram", "error", err)
		s.notice(event.NoticeWarning, fmt.Sprintf("Could not read %s; starting from a blank diagram", s.target.Path))
		return s.sendLocked(protocol.Load{XML: string(model), Autosave: true})
	}
	s.target.Bytes = data

	decoded, err := codec.DecodeFile(s.target)
	if err != nil {
		s.logger.Warn("failed to decode diagram", "error", err)
		s.notice(event.NoticeWarning, fmt.Sprintf("Could not decode %s; starting from a blank diagram", s.target.Path))
	} else {
		model = decoded
	}
	s.emptyFlag = codec.IsEmptyDiagram(data)
	return s.sendLocked(protocol.Load{XML: string(model), Autosave: true})
}

func (s *Session) handleSave() error {
	if s.awaitingExport {
		s.logger.Debug("save ignored, export already requested")
		return nil
	}

	s.awaitingExport = true
	s.state = StateExportRequested
	s.exportGen++
	gen := s.exportGen
	s.armExportTimer(gen)

	req := protocol.ExportRequest{Format: s.variantLocked().ExportFormat(), XML: true, Empty: true}
	if err := s.sendLocked(req); err != nil {
		s.awaitingExport = false
		s.stopExportTimer()
		s.state = StateEditing
		return err
	}
	return nil
}

// armExportTimer clears awaitingExport if no reply arrives in time. The
// generation check keeps a stale timer from clearing a newer request.
func (s *Session) armExportTimer(gen uint64) {
	s.stopExportTimer()
	if s.exportTimeout <= 0 {
		return
	}
	s.exportTimer = time.AfterFunc(s.exportTimeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.exportGen || !s.awaitingExport || s.state == StateClosed {
			return
		}
		s.awaitingExport = false
		s.state = StateEditing
		err := errors.NewTimeoutError("waiting for export reply", s.exportTimeout)
		s.logFailure("export reply timed out", err)
		s.notice(event.NoticeWarning, saveFailedMessage(err))
	})
}

func (s *Session) stopExportTimer() {
	if s.exportTimer != nil {
		s.exportTimer.Stop()
		s.exportTimer = nil
	}
}

func (s *Session) handleExport(ctx context.Context, m protocol.ExportReply) error {
	s.awaitingExport = false
	s.stopExportTimer()
	s.state = StateEditing

	raw := m.Data
	if raw == "" {
		raw = m.XML
	}
	payload, err := codec.DecodeDataURI(raw)
	if err != nil {
		s.logFailure("failed to decode export reply", err, "format", m.Format)
		s.notice(event.NoticeError, "Failed to save diagram: the editor sent an unreadable export")
		return err
	}

	variant := s.variantLocked()
	encoded, err := codec.Encode(payload, variant)
	if err != nil {
		s.logFailure("failed to encode diagram", err, "variant", variant.String())
		s.notice(event.NoticeError, saveFailedMessage(err))
		return err
	}

	res, err := s.policy.Persist(ctx, lifecycle.PersistRequest{
		InstanceID: s.id,
		Target:     s.target,
		FileName:   s.fileName,
		Variant:    variant,
		Payload:    encoded,
		Document:   s.doc,
	})
	if err != nil {
		s.logFailure("failed to persist diagram", err)
		s.notice(event.NoticeError, saveFailedMessage(err))
		return err
	}

	if res.Created {
		s.target = res.File
		s.logger = s.logger.WithTarget(res.File.Path)
		if s.hooks.bind != nil {
			if err := s.hooks.bind(s, res.File.Path); err != nil {
				s.logger.Warn("failed to bind created diagram", "error", err)
			}
		}
	}
	s.emptyFlag = codec.IsEmptyDiagram(encoded)

	if err := s.sendLocked(protocol.Status{Message: "Saved " + s.target.Name(), Modified: false}); err != nil {
		s.logger.Debug("failed to send save status", "error", err)
	}
	return nil
}

func (s *Session) handleChange(m protocol.Change) {
	if !s.awaitingExport {
		s.state = StateEditing
	}
	s.emptyFlag = m.XML == "" || codec.IsSkeletonModel(m.XML)
}

// Close moves the session to Closed, lets the lifecycle policy keep or
// discard the target, closes the editor channel and unregisters the session.
// Closing a closed session is a no-op.
func (s *Session) Close(ctx context.Context, reason string) (lifecycle.CloseResult, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return lifecycle.CloseResult{}, nil
	}
	s.state = StateClosed
	s.awaitingExport = false
	s.stopExportTimer()

	// The keep or discard decision must run even when the caller has gone.
	result, err := s.policy.Close(context.WithoutCancel(ctx), lifecycle.CloseRequest{
		InstanceID: s.id,
		Target:     s.target,
		EmptyFlag:  s.emptyFlag,
		Document:   s.doc,
	})
	if err != nil {
		s.logger.Error("close decision failed", "error", err)
	}

	transport := s.transport
	s.transport = nil
	s.mu.Unlock()

	if transport != nil {
		if cerr := transport.Close(); cerr != nil {
			s.logger.Debug("failed to close editor channel", "error", cerr)
		}
	}
	if s.hooks.closed != nil {
		s.hooks.closed(s, reason, result)
	}
	s.logger.Info("session closed", "reason", reason, "discarded", result.Discarded)
	close(s.done)
	return result, err
}

// variantLocked is the variant exports are encoded for: the target's, or the
// one implied by the requested file name, or the default.
func (s *Session) variantLocked() codec.Variant {
	if s.target != nil {
		return s.target.Variant
	}
	if v, ok := codec.VariantFor(s.fileName); ok {
		return v
	}
	return s.defaultVariant
}

func (s *Session) sendLocked(msg protocol.Outbound) error {
	if s.transport == nil {
		return errors.NewSessionError("no editor attached", errors.ErrOperationFailed).WithInstanceID(s.id)
	}
	return s.transport.Send(msg)
}

func (s *Session) notice(level event.NoticeLevel, message string) {
	s.bus.Publish(event.NewNoticeEvent(s.id, level, message))
}

// logFailure logs err at warn or error level according to its severity.
func (s *Session) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.GetSeverity(err) < errors.SeverityError {
		s.logger.Warn(msg, args...)
		return
	}
	s.logger.Error(msg, args...)
}

// saveFailedMessage is the notice text for a failed save. Only user-facing
// errors have their message shown.
func saveFailedMessage(err error) string {
	if errors.IsUserFacing(err) {
		return "Failed to save diagram: " + err.Error()
	}
	return "Failed to save diagram"
}
