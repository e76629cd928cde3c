package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dyluth/snapvault/pkg/archive"
)

// MinShortIDLength is the minimum length of an entity ID prefix.
const MinShortIDLength = 6

// ResolveEntityID turns a full entity ID or a hex prefix of one into the
// entity ID of an archived snapshot.
//
// Full IDs, hyphenated or as 32 hex digits, are returned without touching
// the store. Prefixes must be at least MinShortIDLength hex digits and are
// matched against every snapshot in the namespace.
func ResolveEntityID(ctx context.Context, a *archive.Archive, ref string) (uuid.UUID, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))

	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}

	prefix := strings.ReplaceAll(ref, "-", "")
	if len(prefix) < MinShortIDLength {
		return uuid.Nil, fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(prefix))
	}
	if strings.Trim(prefix, "0123456789abcdef") != "" {
		return uuid.Nil, fmt.Errorf("invalid entity ID '%s': must be hexadecimal", ref)
	}

	seen := map[uuid.UUID]bool{}
	var matches []uuid.UUID
	it := a.ListAll()
	for it.Next(ctx) {
		art := it.Val()
		if !art.Parsed || seen[art.Key.EntityID] {
			continue
		}
		if strings.HasPrefix(strings.ReplaceAll(art.Key.EntityID.String(), "-", ""), prefix) {
			seen[art.Key.EntityID] = true
			matches = append(matches, art.Key.EntityID)
		}
	}
	if err := it.Err(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to search for entity: %w", err)
	}

	switch len(matches) {
	case 0:
		return uuid.Nil, &NotFoundError{ShortID: ref}
	case 1:
		return matches[0], nil
	default:
		return uuid.Nil, &AmbiguousError{ShortID: ref, Matches: matches}
	}
}

// NotFoundError indicates no snapshots matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no snapshots found matching '%s'", e.ShortID)
}

// AmbiguousError indicates snapshots of several entities matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []uuid.UUID
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d entities", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists up to 10 matching entity IDs.
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d entities:\n", err.ShortID, len(err.Matches))

	shown := min(len(err.Matches), 10)
	for _, id := range err.Matches[:shown] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > shown {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-shown)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the entity.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var amb *AmbiguousError
	return errors.As(err, &amb)
}
