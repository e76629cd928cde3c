package archive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	// RevisionWidth is the zero-padded width of the revision key segment.
	RevisionWidth = 10

	// MaxRevision is the largest revision that fits RevisionWidth digits.
	MaxRevision int64 = 9999999999

	// PayloadFile is the final key segment of a payload artifact.
	PayloadFile = "data.json"

	// MetadataFile is the final key segment of a metadata artifact.
	MetadataFile = "metadata.json"

	// ContentTypeJSON is the content type of both artifacts.
	ContentTypeJSON = "application/json"
)

// SnapshotKey identifies one archived snapshot.
type SnapshotKey struct {
	EntityID uuid.UUID
	Revision int64
}

// NewSnapshotKey builds a validated key.
func NewSnapshotKey(entityID uuid.UUID, revision int64) (SnapshotKey, error) {
	k := SnapshotKey{EntityID: entityID, Revision: revision}
	if err := k.Validate(); err != nil {
		return SnapshotKey{}, err
	}
	return k, nil
}

// Validate checks that the revision fits the fixed-width key segment.
func (k SnapshotKey) Validate() error {
	if k.Revision < 0 || k.Revision > MaxRevision {
		return fmt.Errorf("%w: revision %d outside [0, %d]", ErrInvalidKey, k.Revision, MaxRevision)
	}
	return nil
}

// Prefix returns "{hex entity id}/{zero-padded revision}", shared by both
// artifacts of the snapshot.
func (k SnapshotKey) Prefix() string {
	return fmt.Sprintf("%s/%0*d", hexID(k.EntityID), RevisionWidth, k.Revision)
}

// PayloadKey returns the object key of the payload artifact.
func (k SnapshotKey) PayloadKey() string {
	return k.Prefix() + "/" + PayloadFile
}

// MetadataKey returns the object key of the metadata artifact.
func (k SnapshotKey) MetadataKey() string {
	return k.Prefix() + "/" + MetadataFile
}

func (k SnapshotKey) String() string {
	return fmt.Sprintf("%s@%d", k.EntityID, k.Revision)
}

// ArtifactKind says which half of a snapshot an object key addresses.
type ArtifactKind string

const (
	KindPayload  ArtifactKind = "data"
	KindMetadata ArtifactKind = "metadata"
	KindUnknown  ArtifactKind = "unknown"
)

// ParseObjectKey inverts PayloadKey and MetadataKey. Keys that were not
// produced by the archive return ErrInvalidKey and KindUnknown.
func ParseObjectKey(key string) (SnapshotKey, ArtifactKind, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return SnapshotKey{}, KindUnknown, fmt.Errorf("%w: '%s' does not have 3 segments", ErrInvalidKey, key)
	}

	if len(parts[0]) != 32 {
		return SnapshotKey{}, KindUnknown, fmt.Errorf("%w: entity segment '%s' is not 32 hex digits", ErrInvalidKey, parts[0])
	}
	id, err := uuid.Parse(parts[0])
	if err != nil || hexID(id) != parts[0] {
		return SnapshotKey{}, KindUnknown, fmt.Errorf("%w: entity segment '%s' is not a lowercase hex id", ErrInvalidKey, parts[0])
	}

	if len(parts[1]) != RevisionWidth {
		return SnapshotKey{}, KindUnknown, fmt.Errorf("%w: revision segment '%s' is not %d digits", ErrInvalidKey, parts[1], RevisionWidth)
	}
	rev, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return SnapshotKey{}, KindUnknown, fmt.Errorf("%w: revision segment '%s' is not numeric", ErrInvalidKey, parts[1])
	}

	k := SnapshotKey{EntityID: id, Revision: int64(rev)}
	switch parts[2] {
	case PayloadFile:
		return k, KindPayload, nil
	case MetadataFile:
		return k, KindMetadata, nil
	default:
		return k, KindUnknown, fmt.Errorf("%w: unknown artifact '%s'", ErrInvalidKey, parts[2])
	}
}

func hexID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}
