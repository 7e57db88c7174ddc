package config

import (
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.port")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// sizeRegex matches an embed size: a width, or width x height
var sizeRegex = regexp.MustCompile(`^[0-9]+(x[0-9]+)?$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Server config
	errors = append(errors, c.validateServer()...)

	// Validate Vault config
	errors = append(errors, c.validateVault()...)

	// Validate Diagrams config
	errors = append(errors, c.validateDiagrams()...)

	// Validate Session config
	errors = append(errors, c.validateSession()...)

	// Validate Watch config
	errors = append(errors, c.validateWatch()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateServer validates the ServerConfig
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be between 1 and 65535",
		})
	}

	if strings.ContainsRune(c.Server.RootDir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "server.root_dir",
			Value:   c.Server.RootDir,
			Message: "path contains invalid null character",
		})
	}

	return errors
}

// validateVault validates the VaultConfig
func (c *Config) validateVault() []ValidationError {
	var errors []ValidationError

	if strings.ContainsRune(c.Vault.Root, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "vault.root",
			Value:   c.Vault.Root,
			Message: "path contains invalid null character",
		})
	}

	return errors
}

// validateDiagrams validates the DiagramsConfig
func (c *Config) validateDiagrams() []ValidationError {
	var errors []ValidationError

	folder := c.Diagrams.Folder
	switch {
	case strings.TrimSpace(folder) == "":
		errors = append(errors, ValidationError{
			Field:   "diagrams.folder",
			Value:   folder,
			Message: "cannot be empty",
		})
	case strings.HasPrefix(folder, "/"):
		errors = append(errors, ValidationError{
			Field:   "diagrams.folder",
			Value:   folder,
			Message: "must be relative to the vault root (remove leading /)",
		})
	case slices.Contains(strings.Split(path.Clean(folder), "/"), ".."):
		errors = append(errors, ValidationError{
			Field:   "diagrams.folder",
			Value:   folder,
			Message: "cannot contain parent directory references (..)",
		})
	}

	if !IsValidFormat(c.Diagrams.DefaultFormat) {
		errors = append(errors, ValidationError{
			Field:   "diagrams.default_format",
			Value:   c.Diagrams.DefaultFormat,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidFormats(), ", ")),
		})
	}

	if c.Diagrams.DefaultSize != "" && !sizeRegex.MatchString(c.Diagrams.DefaultSize) {
		errors = append(errors, ValidationError{
			Field:   "diagrams.default_size",
			Value:   c.Diagrams.DefaultSize,
			Message: "must be a width (e.g. 400) or width x height (e.g. 400x300)",
		})
	}

	return errors
}

// validateSession validates the SessionConfig
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	if c.Session.ExportTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "session.export_timeout",
			Value:   c.Session.ExportTimeout,
			Message: "must be positive",
		})
	}

	// An editor that takes longer than this is stuck, not slow
	const maxExportTimeout = 5 * time.Minute
	if c.Session.ExportTimeout > maxExportTimeout {
		errors = append(errors, ValidationError{
			Field:   "session.export_timeout",
			Value:   c.Session.ExportTimeout,
			Message: fmt.Sprintf("exceeds maximum of %s", maxExportTimeout),
		})
	}

	if c.Session.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "session.rate_limit",
			Value:   c.Session.RateLimit,
			Message: "must be positive",
		})
	}

	if c.Session.RateBurst < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.rate_burst",
			Value:   c.Session.RateBurst,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateWatch validates the WatchConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	for i, pattern := range c.Watch.Patterns {
		fieldName := fmt.Sprintf("watch.patterns[%d]", i)

		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: "pattern cannot be empty",
			})
			continue
		}

		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
