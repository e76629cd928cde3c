package archive

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// State is a process-state value that can be archived. Every concrete
// variant must be registered with a Registry before it is saved or read.
type State interface {
	SnapshotID() uuid.UUID
	SnapshotRevision() int64
}

// Header carries the identity and revision of a process state. Embed it in a
// struct to satisfy State.
type Header struct {
	ID       uuid.UUID `json:"id"`
	Revision int64     `json:"revision"`
}

// SnapshotID implements State.
func (h Header) SnapshotID() uuid.UUID { return h.ID }

// SnapshotRevision implements State.
func (h Header) SnapshotRevision() int64 { return h.Revision }

// Factory returns a new, zero-valued pointer to a registered variant.
type Factory func() State

// ErrUnregisteredType is returned when saving a value whose type has no
// discriminator.
var ErrUnregisteredType = errors.New("unregistered state type")

// Registry maps discriminator names to variant factories and back.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Factory
	byType map[reflect.Type]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Factory),
		byType: make(map[reflect.Type]string),
	}
}

// Register binds name to the variant produced by factory. The factory must
// return a non-nil pointer; names and types may each be registered once.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("discriminator name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for '%s' cannot be nil", name)
	}
	sample := factory()
	if sample == nil {
		return fmt.Errorf("factory for '%s' returned nil", name)
	}
	typ := reflect.TypeOf(sample)
	if typ.Kind() != reflect.Pointer {
		return fmt.Errorf("factory for '%s' must return a pointer, got %s", name, typ)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("discriminator '%s' is already registered", name)
	}
	if existing, exists := r.byType[typ]; exists {
		return fmt.Errorf("type %s is already registered as '%s'", typ, existing)
	}
	r.byName[name] = factory
	r.byType[typ] = name
	return nil
}

// MustRegister is like Register but panics on error. Intended for package
// init blocks.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// NameOf returns the discriminator registered for v's concrete type.
func (r *Registry) NameOf(v State) (string, error) {
	if isNil(v) {
		return "", fmt.Errorf("%w: nil state", ErrUnregisteredType)
	}
	typ := reflect.TypeOf(v)

	r.mu.RLock()
	name, ok := r.byType[typ]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnregisteredType, typ)
	}
	return name, nil
}

// isNil reports whether v is nil or a typed nil pointer.
func isNil(v State) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// New instantiates the variant registered under name.
func (r *Registry) New(name string) (State, bool) {
	r.mu.RLock()
	factory, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// Names returns every registered discriminator in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
