package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dyluth/snapvault/pkg/archive"
)

// GetSnapshot writes the stored payload of a snapshot, discriminator
// included, as pretty-printed JSON.
func GetSnapshot(ctx context.Context, a *archive.Archive, entityID uuid.UUID, revision int64, w io.Writer) error {
	data, err := a.GetPayload(ctx, entityID, revision)
	if err != nil {
		return notFoundOr(err, entityID, revision, "failed to fetch snapshot")
	}
	if err := FormatSingleJSON(w, data); err != nil {
		return fmt.Errorf("failed to format snapshot: %w", err)
	}
	return nil
}

// GetMetadata writes the metadata of a snapshot as pretty-printed JSON with
// sorted keys.
func GetMetadata(ctx context.Context, a *archive.Archive, entityID uuid.UUID, revision int64, w io.Writer) error {
	metadata, err := a.GetMetadata(ctx, entityID, revision)
	if err != nil {
		return notFoundOr(err, entityID, revision, "failed to fetch metadata")
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

func notFoundOr(err error, entityID uuid.UUID, revision int64, msg string) error {
	if errors.Is(err, archive.ErrNotFound) {
		return &SnapshotNotFoundError{EntityID: entityID, Revision: revision}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// SnapshotNotFoundError reports a snapshot with no stored object for the
// requested part.
type SnapshotNotFoundError struct {
	EntityID uuid.UUID
	Revision int64
}

func (e *SnapshotNotFoundError) Error() string {
	return fmt.Sprintf("snapshot %s revision %d not found", e.EntityID, e.Revision)
}

// Unwrap keeps errors.Is(err, archive.ErrNotFound) working.
func (e *SnapshotNotFoundError) Unwrap() error {
	return archive.ErrNotFound
}

// IsNotFound returns true if the error is a SnapshotNotFoundError.
func IsNotFound(err error) bool {
	var nf *SnapshotNotFoundError
	return errors.As(err, &nf)
}
