// Package archive stores immutable, versioned snapshots of process state.
//
// Each snapshot is written as two co-located objects under a prefix derived
// from the entity ID and the zero-padded revision:
//
//	{hex entity id}/{revision, 10 digits}/data.json      payload with "$type"
//	{hex entity id}/{revision, 10 digits}/metadata.json  flat string map
//
// The two objects are written one after the other without any atomicity
// guarantee. A failure between the writes leaves a payload without metadata,
// in which case Get succeeds and GetMetadata returns ErrNotFound.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dyluth/snapvault/pkg/storage"
)

const tracerName = "github.com/dyluth/snapvault/pkg/archive"

// Span attribute keys.
const (
	AttrNamespace = attribute.Key("snapvault.namespace")
	AttrEntityID  = attribute.Key("snapvault.entity_id")
	AttrRevision  = attribute.Key("snapvault.revision")
)

var (
	// ErrNotFound means no artifact exists at the derived key.
	ErrNotFound = storage.ErrNotFound

	// ErrCorruptRecord means a stored artifact cannot be reconstructed.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrInvalidKey means a snapshot key or object key is malformed.
	ErrInvalidKey = errors.New("invalid snapshot key")

	// ErrInvalidUTF8 means a state or metadata string cannot be stored as
	// JSON without being altered.
	ErrInvalidUTF8 = errors.New("string is not valid UTF-8")
)

// Archive is an append-only snapshot store bound to one namespace.
// Safe for concurrent use.
type Archive struct {
	store     storage.ObjectStore
	namespace string
	codec     *Codec
	logger    *slog.Logger
	tracer    trace.Tracer
}

type options struct {
	registry       *Registry
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// Option configures an Archive.
type Option func(*options)

// WithRegistry sets the variant registry used to encode and decode states.
func WithRegistry(r *Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// New creates an archive over store. The namespace is lower-cased and must
// be a valid namespace name.
func New(store storage.ObjectStore, namespace string, opts ...Option) (*Archive, error) {
	if store == nil {
		return nil, fmt.Errorf("object store cannot be nil")
	}
	ns := storage.NormalizeNamespace(namespace)
	if err := storage.ValidateNamespace(ns); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	return &Archive{
		store:     store,
		namespace: ns,
		codec:     NewCodec(o.registry),
		logger:    o.logger.With("component", "archive", "namespace", ns),
		tracer:    o.tracerProvider.Tracer(tracerName),
	}, nil
}

// Namespace returns the normalized namespace the archive writes to.
func (a *Archive) Namespace() string {
	return a.namespace
}

// Codec returns the codec used for payloads and metadata.
func (a *Archive) Codec() *Codec {
	return a.codec
}

// Save writes the payload and then the metadata of a snapshot. Revisions are
// not checked for monotonicity; the caller owns key uniqueness.
func (a *Archive) Save(ctx context.Context, key SnapshotKey, value State, metadata map[string]string) (err error) {
	ctx, span := a.startSpan(ctx, "Save", keyAttrs(key)...)
	defer func() { endSpan(span, err) }()

	if err := key.Validate(); err != nil {
		return err
	}
	payload, err := a.codec.EncodeState(value)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", key, err)
	}
	meta, err := a.codec.EncodeMetadata(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", key, err)
	}

	if err := a.store.PutObject(ctx, a.namespace, key.PayloadKey(), payload, ContentTypeJSON); err != nil {
		return fmt.Errorf("failed to write payload for %s: %w", key, err)
	}
	if err := a.store.PutObject(ctx, a.namespace, key.MetadataKey(), meta, ContentTypeJSON); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", key, err)
	}
	return nil
}

// SaveState saves value under the key given by its own identity and revision.
func (a *Archive) SaveState(ctx context.Context, value State, metadata map[string]string) error {
	if isNil(value) {
		return fmt.Errorf("%w: nil state", ErrUnregisteredType)
	}
	key := SnapshotKey{EntityID: value.SnapshotID(), Revision: value.SnapshotRevision()}
	return a.Save(ctx, key, value, metadata)
}

// Get reads and decodes a snapshot payload into its registered variant.
func (a *Archive) Get(ctx context.Context, entityID uuid.UUID, revision int64) (state State, err error) {
	key := SnapshotKey{EntityID: entityID, Revision: revision}
	ctx, span := a.startSpan(ctx, "Get", keyAttrs(key)...)
	defer func() { endSpan(span, err) }()

	data, err := a.read(ctx, key, key.PayloadKey())
	if err != nil {
		return nil, err
	}
	state, err = a.codec.DecodeState(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return state, nil
}

// GetPayload returns the raw payload JSON of a snapshot, discriminator
// included, without decoding it.
func (a *Archive) GetPayload(ctx context.Context, entityID uuid.UUID, revision int64) (data []byte, err error) {
	key := SnapshotKey{EntityID: entityID, Revision: revision}
	ctx, span := a.startSpan(ctx, "GetPayload", keyAttrs(key)...)
	defer func() { endSpan(span, err) }()

	return a.read(ctx, key, key.PayloadKey())
}

// GetMetadata reads the metadata of a snapshot, independently of its payload.
func (a *Archive) GetMetadata(ctx context.Context, entityID uuid.UUID, revision int64) (metadata map[string]string, err error) {
	key := SnapshotKey{EntityID: entityID, Revision: revision}
	ctx, span := a.startSpan(ctx, "GetMetadata", keyAttrs(key)...)
	defer func() { endSpan(span, err) }()

	data, err := a.read(ctx, key, key.MetadataKey())
	if err != nil {
		return nil, err
	}
	metadata, err = a.codec.DecodeMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return metadata, nil
}

func (a *Archive) read(ctx context.Context, key SnapshotKey, objectKey string) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	obj, err := a.store.GetObject(ctx, a.namespace, objectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", objectKey, err)
	}
	return obj.Data, nil
}

// ListAll returns a lazy iterator over every artifact in the namespace, in
// backend order. Each call starts a fresh enumeration; pages are fetched on
// demand by Next.
func (a *Archive) ListAll() *ArtifactIterator {
	return &ArtifactIterator{archive: a}
}

// EnsureNamespaceExists creates the namespace if it is absent.
func (a *Archive) EnsureNamespaceExists(ctx context.Context) (err error) {
	ctx, span := a.startSpan(ctx, "EnsureNamespaceExists")
	defer func() { endSpan(span, err) }()

	created, err := a.store.CreateNamespaceIfAbsent(ctx, a.namespace)
	if err != nil {
		return fmt.Errorf("failed to ensure namespace '%s': %w", a.namespace, err)
	}
	if created {
		a.logger.InfoContext(ctx, fmt.Sprintf("namespace %s did not exist - it will be created now", a.namespace),
			"event_type", "namespace_created")
	}
	return nil
}

// Reset drops the namespace with everything in it and recreates it empty.
func (a *Archive) Reset(ctx context.Context) (err error) {
	ctx, span := a.startSpan(ctx, "Reset")
	defer func() { endSpan(span, err) }()

	existed, err := a.store.DeleteNamespaceIfPresent(ctx, a.namespace)
	if err != nil {
		return fmt.Errorf("failed to drop namespace '%s': %w", a.namespace, err)
	}
	if _, err := a.store.CreateNamespaceIfAbsent(ctx, a.namespace); err != nil {
		return fmt.Errorf("failed to recreate namespace '%s': %w", a.namespace, err)
	}
	a.logger.InfoContext(ctx, "namespace reset",
		"event_type", "namespace_reset",
		"existed", existed)
	return nil
}

// startSpan opens an "archive.<op>" span tagged with the namespace.
func (a *Archive) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrNamespace.String(a.namespace))
	return a.tracer.Start(ctx, "archive."+op, trace.WithAttributes(attrs...))
}

func keyAttrs(key SnapshotKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEntityID.String(key.EntityID.String()),
		AttrRevision.Int64(key.Revision),
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
