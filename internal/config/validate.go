package config

import (
	"path/filepath"
	"strings"

	"github.com/thoreinstein/pnpm-catalog/internal/errors"
)

// Validation errors for configuration fields.
var (
	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidCatalog indicates a catalog name pnpm would not accept.
	ErrInvalidCatalog = errors.New("invalid catalog name")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if err := validatePath(cfg.BackupDir); err != nil {
		errs = append(errs, &FieldError{Field: KeyBackupDir, Value: cfg.BackupDir, Err: err})
	}

	if err := ValidateCatalogName(cfg.DefaultCatalog); err != nil {
		errs = append(errs, &FieldError{Field: KeyDefaultCatalog, Value: cfg.DefaultCatalog, Err: err})
	}

	return errs
}

// ValidateCatalogName checks a catalog name. The empty name selects the
// default catalog.
func ValidateCatalogName(name string) error {
	if name == "" {
		return nil
	}
	if strings.TrimSpace(name) != name || strings.ContainsAny(name, " \t\n:/\\") {
		return ErrInvalidCatalog
	}
	return nil
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	// Empty paths are valid (they mean "use default")
	if path == "" {
		return nil
	}

	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}

	cleaned := filepath.Clean(path)
	if cleaned == "." {
		return ErrInvalidPath
	}

	return nil
}

// FieldError represents an error for a specific config field.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error() + ": " + e.Value
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
