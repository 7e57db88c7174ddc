package lifecycle

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
	"github.com/Iron-Ham/drawbridge/internal/logging"
)

// Config holds configuration for the lifecycle policy.
type Config struct {
	// Folder is the vault folder new diagrams are created in.
	Folder string

	// Links controls how embed references are written.
	Links LinkStyle

	// DefaultVariant is used for new diagrams when the caller does not pick one.
	DefaultVariant codec.Variant
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Folder:         "drawio",
		DefaultVariant: codec.SvgForm,
	}
}

// PersistRequest describes one export to write.
type PersistRequest struct {
	InstanceID string
	Target     *codec.File   // nil creates a new file
	FileName   string        // Explicit name for a new file; "" generates one
	Variant    codec.Variant // Variant of a new file
	Payload    []byte        // Already encoded for the destination variant
	Document   Document      // Receives the embed reference of a new file; may be nil
}

// PersistResult reports the outcome of a persist.
type PersistResult struct {
	File      *codec.File
	Created   bool
	Reference string   // Embed reference inserted into the document, if any
	Referrers []string // Documents that embed the file
}

// CloseRequest carries what a closing session knows about its target.
type CloseRequest struct {
	InstanceID string
	Target     *codec.File // nil when nothing was ever persisted
	EmptyFlag  bool
	Document   Document // Has references stripped on discard; may be nil
}

// CloseResult reports the close-time decision.
type CloseResult struct {
	Discarded         bool
	TrashPath         string // "" when the file was already gone
	ReferencesRemoved int
}

// Policy decides whether diagrams are created, overwritten or discarded.
// It is safe for concurrent use.
type Policy struct {
	vault  *Vault
	config Config
	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time

	// createMu serializes name selection so two sessions cannot pick the
	// same generated name in the same second.
	createMu sync.Mutex
}

// NewPolicy creates a Policy over vault. bus and logger may be nil.
func NewPolicy(vault *Vault, config Config, bus *event.Bus, logger *logging.Logger) *Policy {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if config.Folder == "" {
		config.Folder = DefaultConfig().Folder
	}
	return &Policy{
		vault:  vault,
		config: config,
		bus:    bus,
		logger: logger.WithComponent("lifecycle"),
		now:    time.Now,
	}
}

// Vault returns the vault the policy writes to.
func (p *Policy) Vault() *Vault { return p.vault }

// Config returns the policy configuration.
func (p *Policy) Config() Config { return p.config }

// Persist writes req.Payload. Without a target it creates a new file in the
// configured folder, inserts an embed reference into req.Document and
// reports Created; with a target it overwrites the target unconditionally.
func (p *Policy) Persist(ctx context.Context, req PersistRequest) (PersistResult, error) {
	if err := ctx.Err(); err != nil {
		return PersistResult{}, err
	}

	if req.Target == nil {
		return p.create(ctx, req.InstanceID, req.FileName, req.Variant, req.Payload, req.Document)
	}

	logger := p.logger.WithInstance(req.InstanceID).WithTarget(req.Target.Path)
	if err := p.vault.WriteFile(req.Target.Path, req.Payload); err != nil {
		logger.Error("failed to write diagram", "error", err)
		return PersistResult{}, err
	}
	req.Target.Bytes = req.Payload

	referrers := p.Referrers(ctx, req.Target.Path)
	logger.Info("diagram saved", "bytes", len(req.Payload), "referrers", len(referrers))
	p.bus.Publish(event.NewDiagramSavedEvent(req.InstanceID, req.Target.Path, len(req.Payload), referrers))

	return PersistResult{File: req.Target, Referrers: referrers}, nil
}

// CreateEmpty creates a skeleton diagram for a session that has no target
// yet, so the document can reference it before anything is drawn. The file
// is discarded at close if it is still empty.
func (p *Policy) CreateEmpty(ctx context.Context, instanceID, fileName string, variant codec.Variant, doc Document) (PersistResult, error) {
	if err := ctx.Err(); err != nil {
		return PersistResult{}, err
	}
	payload := codec.EmptySVG()
	if variant.IsXML() {
		payload = []byte(codec.SkeletonModel)
	}
	return p.create(ctx, instanceID, fileName, variant, payload, doc)
}

func (p *Policy) create(ctx context.Context, instanceID, fileName string, variant codec.Variant, payload []byte, doc Document) (PersistResult, error) {
	logger := p.logger.WithInstance(instanceID)

	if err := p.vault.MkdirAll(p.config.Folder); err != nil {
		logger.Error("failed to create diagram folder", "folder", p.config.Folder, "error", err)
		return PersistResult{}, err
	}

	name := SanitizeName(fileName, variant)
	if name == "" {
		name = TimestampName(p.now(), variant)
	}

	p.createMu.Lock()
	target, err := p.createUnique(path.Join(p.config.Folder, name), payload)
	p.createMu.Unlock()
	if err != nil {
		logger.Error("failed to create diagram", "name", name, "error", err)
		return PersistResult{}, err
	}

	file := &codec.File{Path: target, Variant: variant, Bytes: payload}
	result := PersistResult{File: file, Created: true}
	logger = logger.WithTarget(target)

	docPath := ""
	if doc != nil {
		docPath = doc.Path()
		ref := EmbedLink(target, p.config.Links)
		if err := doc.Insert(ref); err != nil {
			// The file exists either way; the user can embed it by hand.
			logger.Warn("failed to insert embed reference", "document", docPath, "error", err)
			p.bus.Publish(event.NewNoticeEvent(instanceID, event.NoticeWarning,
				fmt.Sprintf("Saved %s but could not link it from %s", target, docPath)))
		} else {
			result.Reference = ref
		}
	}

	result.Referrers = p.Referrers(ctx, target)
	logger.Info("diagram created", "bytes", len(payload), "document", docPath)
	p.bus.Publish(event.NewDiagramCreatedEvent(instanceID, target, docPath))
	return result, nil
}

// createUnique creates p, or p with a "_N" suffix when the name is taken.
func (p *Policy) createUnique(target string, payload []byte) (string, error) {
	base, ext := splitExt(target)
	candidate := target
	for i := 1; i <= 1000; i++ {
		err := p.vault.CreateFile(candidate, payload)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	return "", errors.NewPersistError("create", target, errors.NewAlreadyExistsError("diagram", target))
}

// Close makes the final keep or discard decision for a session's target.
// The target is discarded when the session reported it empty or when its
// content on disk is empty by IsEmptyDiagram. Discarding moves the file to
// the vault trash and strips its embeds from req.Document. A file that is
// already gone still has its references stripped. The decision runs to
// completion even when ctx is done.
func (p *Policy) Close(_ context.Context, req CloseRequest) (CloseResult, error) {
	if req.Target == nil {
		return CloseResult{}, nil
	}

	logger := p.logger.WithInstance(req.InstanceID).WithTarget(req.Target.Path)

	empty := req.EmptyFlag
	exists := p.vault.Exists(req.Target.Path)
	if !empty && exists {
		data, err := p.vault.ReadFile(req.Target.Path)
		if err != nil {
			// Keep what we cannot inspect.
			logger.Warn("failed to read diagram at close", "error", err)
			return CloseResult{}, nil
		}
		empty = codec.IsEmptyDiagram(data)
	}
	if !empty {
		logger.Debug("keeping diagram")
		return CloseResult{}, nil
	}

	result := CloseResult{Discarded: true}
	if exists {
		trashPath, err := p.vault.Trash(req.Target.Path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error("failed to discard empty diagram", "error", err)
			p.bus.Publish(event.NewNoticeEvent(req.InstanceID, event.NoticeError,
				fmt.Sprintf("Failed to delete empty diagram %s", req.Target.Path)))
			return CloseResult{}, err
		}
		result.TrashPath = trashPath
	}

	if req.Document != nil {
		n, err := stripFromDocument(req.Document, req.Target.Path)
		if err != nil {
			logger.Warn("failed to remove embed references", "document", req.Document.Path(), "error", err)
		}
		result.ReferencesRemoved = n
	}

	logger.Info("discarded empty diagram", "trash", result.TrashPath, "references_removed", result.ReferencesRemoved)
	p.bus.Publish(event.NewDiagramDiscardedEvent(req.InstanceID, req.Target.Path, result.TrashPath, result.ReferencesRemoved))
	return result, nil
}

func stripFromDocument(doc Document, target string) (int, error) {
	content, err := doc.Content()
	if err != nil {
		return 0, err
	}
	updated, n := StripReferences(content, target)
	if n == 0 {
		return 0, nil
	}
	return n, doc.SetContent(updated)
}

// Referrers lists the markdown documents in the vault that mention the
// diagram at target, sorted by path. Errors reading individual documents
// are skipped.
func (p *Policy) Referrers(ctx context.Context, target string) []string {
	var refs []string
	err := p.vault.Walk("", func(rel string, info fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.EqualFold(path.Ext(rel), ".md") {
			return nil
		}
		data, err := p.vault.ReadFile(rel)
		if err != nil {
			return nil
		}
		if Mentions(string(data), target) {
			refs = append(refs, rel)
		}
		return nil
	})
	if err != nil {
		p.logger.Debug("referrer scan incomplete", "target", target, "error", err)
	}
	return refs
}
