// Package app assembles drawbridge from its configuration: the vault, the
// lifecycle policy, the event bus, the asset server, the session manager and
// the diagram watcher. Commands build one App and hand it around; nothing in
// the module keeps package-level state.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/drawbridge/internal/assetserver"
	"github.com/Iron-Ham/drawbridge/internal/codec"
	"github.com/Iron-Ham/drawbridge/internal/config"
	"github.com/Iron-Ham/drawbridge/internal/errors"
	"github.com/Iron-Ham/drawbridge/internal/event"
	"github.com/Iron-Ham/drawbridge/internal/lifecycle"
	"github.com/Iron-Ham/drawbridge/internal/logging"
	"github.com/Iron-Ham/drawbridge/internal/session"
	"github.com/Iron-Ham/drawbridge/internal/watch"
)

// App holds the wired components. Fields are read-only after New.
type App struct {
	Config  *config.Config
	Logger  *logging.Logger
	Bus     *event.Bus
	Vault   *lifecycle.Vault
	Policy  *lifecycle.Policy
	Server  *assetserver.Controller
	Manager *session.Manager

	watcher *watch.Watcher
}

// New wires an App from cfg. Relative paths in cfg resolve against baseDir.
// logger may be nil.
func New(cfg *config.Config, baseDir string, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	vault, err := lifecycle.NewVault(cfg.Vault.ResolveRoot(baseDir))
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}

	bus := event.NewBus(logger)
	policy := lifecycle.NewPolicy(vault, PolicyConfig(cfg), bus, logger)
	server := assetserver.NewController(assetserver.WithLogger(logger))
	manager := session.NewManager(SessionConfig(cfg, baseDir), server, policy, bus, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Bus:     bus,
		Vault:   vault,
		Policy:  policy,
		Server:  server,
		Manager: manager,
	}, nil
}

// PolicyConfig maps the diagrams section onto the lifecycle policy.
func PolicyConfig(cfg *config.Config) lifecycle.Config {
	return lifecycle.Config{
		Folder: cfg.Diagrams.Folder,
		Links: lifecycle.LinkStyle{
			Markdown: cfg.Diagrams.UseMarkdownLinks,
			Size:     cfg.Diagrams.DefaultSize,
		},
		DefaultVariant: VariantFor(cfg.Diagrams.DefaultFormat),
	}
}

// SessionConfig maps the server, diagrams and session sections onto the
// session manager.
func SessionConfig(cfg *config.Config, baseDir string) session.Config {
	return session.Config{
		Port:           cfg.Server.Port,
		RootDir:        cfg.Server.ResolveRootDir(baseDir),
		Dark:           cfg.Server.Dark,
		DefaultVariant: VariantFor(cfg.Diagrams.DefaultFormat),
		CreateOnOpen:   cfg.Diagrams.CreateOnOpen,
		ExportTimeout:  cfg.Session.ExportTimeout,
		RateLimit:      cfg.Session.RateLimit,
		RateBurst:      cfg.Session.RateBurst,
	}
}

// VariantFor returns the container for a diagrams.default_format value.
func VariantFor(format string) codec.Variant {
	if strings.EqualFold(format, config.FormatXML) {
		return codec.XmlForm
	}
	return codec.SvgForm
}

// CreateLogger builds the file logger described by cfg, or a no-op logger
// when logging is disabled. Failing to open the log never stops the app.
func CreateLogger(logDir string, cfg *config.Config) *logging.Logger {
	if !cfg.Logging.Enabled {
		return logging.NopLogger()
	}

	rotationConfig := logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   true,
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
		return logging.NopLogger()
	}
	logger, err := logging.NewLoggerWithRotation(logDir, cfg.Logging.Level, rotationConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create logger: %v\n", err)
		return logging.NopLogger()
	}
	return logger
}

// StartWatcher starts reporting diagram changes on the bus when watching is
// enabled. The diagram folder is created if needed.
func (a *App) StartWatcher() error {
	if !a.Config.Watch.Enabled || a.watcher != nil {
		return nil
	}
	if err := a.Vault.MkdirAll(a.Config.Diagrams.Folder); err != nil {
		return err
	}

	w, err := watch.New(a.Vault.Root, watch.Options{
		Folder:   a.Config.Diagrams.Folder,
		Patterns: a.Config.Watch.Patterns,
	}, a.Bus, a.Logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	a.watcher = w
	return nil
}

// Document returns the vault document at p, a vault-relative or absolute
// path inside the vault.
func (a *App) Document(p string) (*lifecycle.FileDocument, error) {
	rel, err := a.VaultPath(p)
	if err != nil {
		return nil, err
	}
	return lifecycle.NewFileDocument(a.Vault, rel), nil
}

// VaultPath converts p into a vault-relative path. Absolute paths must lie
// inside the vault.
func (a *App) VaultPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(a.Vault.Root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", errors.NewValidationError("path is outside the vault").WithField("path").WithValue(p)
		}
		p = filepath.ToSlash(rel)
	}
	return a.Vault.Clean(p)
}

// Shutdown stops the watcher, closes every session and stops the server.
func (a *App) Shutdown(ctx context.Context) error {
	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
	err := a.Manager.Shutdown(ctx)
	a.Logger.Info("drawbridge stopped")
	return err
}
