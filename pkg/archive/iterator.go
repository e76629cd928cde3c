package archive

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dyluth/snapvault/pkg/storage"
)

// Artifact describes one stored object of the archive.
type Artifact struct {
	Namespace   string
	ObjectKey   string
	ContentType string
	Size        int64

	// Kind and Key are derived from ObjectKey. Parsed is false when the
	// object key was not produced by the archive.
	Kind   ArtifactKind
	Key    SnapshotKey
	Parsed bool
}

// ArtifactIterator walks the archive page by page. It is not safe for
// concurrent use.
//
//	it := a.ListAll()
//	for it.Next(ctx) {
//		artifact := it.Val()
//	}
//	if err := it.Err(); err != nil { ... }
type ArtifactIterator struct {
	archive *Archive
	cursor  storage.Cursor
	page    []Artifact
	idx     int
	cur     Artifact
	started bool
	done    bool
	err     error
	pages   int
}

// Next advances to the next artifact, fetching a new page when the current
// one is exhausted. It returns false at the end of the listing or on error.
func (it *ArtifactIterator) Next(ctx context.Context) bool {
	for {
		if it.idx < len(it.page) {
			it.cur = it.page[it.idx]
			it.idx++
			return true
		}
		if it.done || it.err != nil {
			return false
		}
		if it.started && it.cursor.Done() {
			it.done = true
			return false
		}
		if err := it.fetch(ctx); err != nil {
			it.err = err
			return false
		}
	}
}

// Val returns the artifact at the current position.
func (it *ArtifactIterator) Val() Artifact {
	return it.cur
}

// Err returns the error that stopped the iteration, if any.
func (it *ArtifactIterator) Err() error {
	return it.err
}

// Pages returns how many pages have been fetched so far.
func (it *ArtifactIterator) Pages() int {
	return it.pages
}

func (it *ArtifactIterator) fetch(ctx context.Context) (err error) {
	a := it.archive
	ctx, span := a.startSpan(ctx, "ListAll", attribute.Int("snapvault.page", it.pages))
	defer func() { endSpan(span, err) }()

	page, err := a.store.ListObjects(ctx, a.namespace, it.cursor)
	if err != nil {
		return fmt.Errorf("failed to list namespace '%s': %w", a.namespace, err)
	}

	it.started = true
	it.pages++
	it.cursor = page.Next
	it.idx = 0
	it.page = it.page[:0]
	for _, info := range page.Items {
		it.page = append(it.page, newArtifact(info))
	}
	if len(it.page) == 0 && it.cursor.Done() {
		it.done = true
	}
	return nil
}

func newArtifact(info storage.ObjectInfo) Artifact {
	key, kind, err := ParseObjectKey(info.Key)
	return Artifact{
		Namespace:   info.Namespace,
		ObjectKey:   info.Key,
		ContentType: info.ContentType,
		Size:        info.Size,
		Kind:        kind,
		Key:         key,
		Parsed:      err == nil,
	}
}

// Collect drains an iterator into a slice.
func Collect(ctx context.Context, it *ArtifactIterator) ([]Artifact, error) {
	var out []Artifact
	for it.Next(ctx) {
		out = append(out, it.Val())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SortArtifacts orders artifacts by entity ID, then revision, then kind with
// payloads before metadata. Artifacts with unparsed keys sort last by key.
func SortArtifacts(artifacts []Artifact) {
	sort.SliceStable(artifacts, func(i, j int) bool {
		a, b := artifacts[i], artifacts[j]
		if a.Parsed != b.Parsed {
			return a.Parsed
		}
		if !a.Parsed {
			return a.ObjectKey < b.ObjectKey
		}
		if c := bytes.Compare(a.Key.EntityID[:], b.Key.EntityID[:]); c != 0 {
			return c < 0
		}
		if a.Key.Revision != b.Key.Revision {
			return a.Key.Revision < b.Key.Revision
		}
		return kindOrder(a.Kind) < kindOrder(b.Kind)
	})
}

func kindOrder(k ArtifactKind) int {
	switch k {
	case KindPayload:
		return 0
	case KindMetadata:
		return 1
	default:
		return 2
	}
}
