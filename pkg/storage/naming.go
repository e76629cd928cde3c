package storage

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MinNameLength is the minimum length of a namespace name.
	MinNameLength = 3

	// MaxNameLength is the maximum length of a namespace or table name.
	MaxNameLength = 63
)

var (
	// NamespacePattern is DNS-compatible: lowercase alphanumeric, hyphens
	// allowed but not at start/end.
	NamespacePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

	// TablePattern is a SQL-safe identifier: lowercase letter first, then
	// lowercase alphanumerics or underscores.
	TablePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// NormalizeNamespace lower-cases a namespace name. Names are case-insensitive
// so "RebusSagaStorage" and "rebussagastorage" address the same namespace.
func NormalizeNamespace(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateNamespace checks a normalized namespace name.
func ValidateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("%w: namespace name cannot be empty", ErrInvalidName)
	}
	if len(name) < MinNameLength || len(name) > MaxNameLength {
		return fmt.Errorf("%w: namespace name '%s' must be %d-%d characters (got %d)",
			ErrInvalidName, name, MinNameLength, MaxNameLength, len(name))
	}
	if !NamespacePattern.MatchString(name) {
		return fmt.Errorf("%w: namespace name '%s' must be lowercase alphanumeric with hyphens (not at start/end)", ErrInvalidName, name)
	}
	if strings.Contains(name, "--") {
		return fmt.Errorf("%w: namespace name '%s' must not contain consecutive hyphens", ErrInvalidName, name)
	}
	return nil
}

// ValidateTable checks a table name.
func ValidateTable(name string) error {
	if name == "" {
		return fmt.Errorf("%w: table name cannot be empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: table name too long: %d characters (max: %d)", ErrInvalidName, len(name), MaxNameLength)
	}
	if !TablePattern.MatchString(name) {
		return fmt.Errorf("%w: table name '%s' must start with a lowercase letter and contain only lowercase alphanumerics or underscores", ErrInvalidName, name)
	}
	return nil
}
