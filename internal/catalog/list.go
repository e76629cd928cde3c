package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dyluth/snapvault/pkg/archive"
)

// OutputFormat specifies how to format the snapshot list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a fixed-width table
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs one snapshot per line as JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// Snapshot summarises the stored objects of one archived snapshot.
type Snapshot struct {
	EntityID uuid.UUID `json:"entity_id"`
	Revision int64     `json:"revision"`
	Type     string    `json:"type,omitempty"`
	Size     int64     `json:"size"`
	Payload  bool      `json:"payload"`
	Metadata bool      `json:"metadata"`
}

// Filter narrows a listing. The zero value matches everything.
type Filter struct {
	EntityID uuid.UUID // uuid.Nil = no filter
}

func (f *Filter) matches(key archive.SnapshotKey) bool {
	return f == nil || f.EntityID == uuid.Nil || f.EntityID == key.EntityID
}

// Listing is the result of CollectSnapshots.
type Listing struct {
	Namespace string
	Snapshots []Snapshot
	// Stray counts objects in the namespace the archive did not write.
	Stray int
}

// CollectSnapshots walks the whole namespace and groups its artifacts into
// snapshots, ordered by entity ID then revision. The payload of every
// listed snapshot is read to report its variant; payloads that cannot be
// read are reported to warn and listed without a type.
func CollectSnapshots(ctx context.Context, a *archive.Archive, filter *Filter, warn io.Writer) (*Listing, error) {
	artifacts, err := archive.Collect(ctx, a.ListAll())
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	archive.SortArtifacts(artifacts)

	listing := &Listing{Namespace: a.Namespace()}
	index := map[archive.SnapshotKey]int{}
	for _, art := range artifacts {
		if !art.Parsed {
			listing.Stray++
			continue
		}
		if !filter.matches(art.Key) {
			continue
		}
		i, ok := index[art.Key]
		if !ok {
			i = len(listing.Snapshots)
			index[art.Key] = i
			listing.Snapshots = append(listing.Snapshots, Snapshot{EntityID: art.Key.EntityID, Revision: art.Key.Revision})
		}
		s := &listing.Snapshots[i]
		s.Size += art.Size
		switch art.Kind {
		case archive.KindPayload:
			s.Payload = true
		case archive.KindMetadata:
			s.Metadata = true
		}
	}

	for i := range listing.Snapshots {
		s := &listing.Snapshots[i]
		if !s.Payload {
			continue
		}
		data, err := a.GetPayload(ctx, s.EntityID, s.Revision)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			fmt.Fprintf(warn, "⚠️  Skipping unreadable payload: %s/%d (error: %v)\n", s.EntityID, s.Revision, err)
			continue
		}
		if s.Type, err = archive.PeekType(data); err != nil {
			fmt.Fprintf(warn, "⚠️  Skipping malformed payload: %s/%d (error: %v)\n", s.EntityID, s.Revision, err)
		}
	}

	return listing, nil
}

// ListSnapshots collects the namespace's snapshots and writes them to w in
// the requested format.
func ListSnapshots(ctx context.Context, a *archive.Archive, format OutputFormat, filter *Filter, w, warn io.Writer) error {
	if format != OutputFormatDefault && format != OutputFormatJSONL {
		return fmt.Errorf("unknown output format: %s", format)
	}

	listing, err := CollectSnapshots(ctx, a, filter, warn)
	if err != nil {
		return err
	}

	if format == OutputFormatJSONL {
		if err := FormatJSONL(w, listing.Snapshots); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
		return nil
	}
	FormatTable(w, listing)
	return nil
}
