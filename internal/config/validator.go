package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	tandemerrors "github.com/Iron-Ham/tandem/internal/errors"
	"github.com/Iron-Ham/tandem/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "preview.port")
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

// Is reports whether target is ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == tandemerrors.ErrInvalidConfig
}

// ValidModes returns the list of valid modes
func ValidModes() []string {
	return []string{ModeDevelopment, ModeProduction}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidModes(), c.Mode) {
		errors = append(errors, ValidationError{
			Field:   "mode",
			Value:   c.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidModes(), ", ")),
		})
	}

	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validatePreview()...)
	errors = append(errors, c.validatePreload()...)
	errors = append(errors, c.validateMain()...)

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	level := strings.ToUpper(c.Logging.Level)
	if level != "" && !slices.Contains(logging.ValidLevels(), level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: "must be one of: debug, info, warn, error",
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	const maxDebounce = 5000
	if c.Watch.DebounceMs < 0 || c.Watch.DebounceMs > maxDebounce {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: fmt.Sprintf("must be between 0 and %d", maxDebounce),
		})
	}

	return errors
}

func (c *Config) validatePreview() []ValidationError {
	var errors []ValidationError

	if c.Preview.Root == "" {
		errors = append(errors, ValidationError{Field: "preview.root", Value: c.Preview.Root, Message: "is required"})
	}
	if c.Preview.Entry == "" {
		errors = append(errors, ValidationError{Field: "preview.entry", Value: c.Preview.Entry, Message: "is required"})
	}
	// 0 asks the OS for a free port.
	if c.Preview.Port < 0 || c.Preview.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "preview.port",
			Value:   c.Preview.Port,
			Message: "must be between 0 and 65535",
		})
	}

	return errors
}

func (c *Config) validatePreload() []ValidationError {
	var errors []ValidationError

	if c.Preload.Root == "" {
		errors = append(errors, ValidationError{Field: "preload.root", Value: c.Preload.Root, Message: "is required"})
	}
	if c.Preload.SourceEntry == "" {
		errors = append(errors, ValidationError{Field: "preload.source_entry", Value: c.Preload.SourceEntry, Message: "is required"})
	}
	if c.Preload.VirtualModule == "" || strings.ContainsAny(c.Preload.VirtualModule, `/\`) {
		errors = append(errors, ValidationError{
			Field:   "preload.virtual_module",
			Value:   c.Preload.VirtualModule,
			Message: "must be a non-empty id without path separators",
		})
	}
	if filepath.IsAbs(c.Preload.OutDir) {
		errors = append(errors, ValidationError{Field: "preload.out_dir", Value: c.Preload.OutDir, Message: "must be relative to preload.root"})
	}

	return errors
}

func (c *Config) validateMain() []ValidationError {
	var errors []ValidationError

	if c.Main.Root == "" {
		errors = append(errors, ValidationError{Field: "main.root", Value: c.Main.Root, Message: "is required"})
	}
	if c.Main.Entry == "" {
		errors = append(errors, ValidationError{Field: "main.entry", Value: c.Main.Entry, Message: "is required"})
	}
	if c.Main.Command == "" {
		errors = append(errors, ValidationError{Field: "main.command", Value: c.Main.Command, Message: "is required"})
	}
	if c.Main.EnvKey == "" || strings.ContainsAny(c.Main.EnvKey, "= ") {
		errors = append(errors, ValidationError{
			Field:   "main.env_key",
			Value:   c.Main.EnvKey,
			Message: "must be a non-empty variable name",
		})
	}

	const maxStopTimeout = 60_000
	if c.Main.StopTimeoutMs <= 0 || c.Main.StopTimeoutMs > maxStopTimeout {
		errors = append(errors, ValidationError{
			Field:   "main.stop_timeout_ms",
			Value:   c.Main.StopTimeoutMs,
			Message: fmt.Sprintf("must be between 1 and %d", maxStopTimeout),
		})
	}
	if filepath.IsAbs(c.Main.OutDir) {
		errors = append(errors, ValidationError{Field: "main.out_dir", Value: c.Main.OutDir, Message: "must be relative to main.root"})
	}

	return errors
}
