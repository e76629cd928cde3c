package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"
)

// TypeField is the JSON member carrying a payload's discriminator.
const TypeField = "$type"

// Codec serializes states with an embedded discriminator and metadata as a
// plain JSON object.
type Codec struct {
	registry *Registry
}

// NewCodec creates a codec over the given registry.
func NewCodec(registry *Registry) *Codec {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Codec{registry: registry}
}

// Registry returns the registry backing the codec.
func (c *Codec) Registry() *Registry {
	return c.registry
}

// EncodeState marshals v and adds "$type": <discriminator> to the top-level
// object. v must marshal to a JSON object without its own "$type" member.
func (c *Codec) EncodeState(v State) ([]byte, error) {
	name, err := c.registry.NameOf(v)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state '%s': %w", name, err)
	}
	// json.Marshal replaces invalid UTF-8 with U+FFFD instead of failing
	if path, ok := findInvalidUTF8(reflect.ValueOf(v), name); ok {
		return nil, fmt.Errorf("state field %s: %w", path, ErrInvalidUTF8)
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil || members == nil {
		return nil, fmt.Errorf("state '%s' must marshal to a JSON object", name)
	}
	if _, clash := members[TypeField]; clash {
		return nil, fmt.Errorf("state '%s' already has a '%s' member", name, TypeField)
	}

	tag, err := json.Marshal(name)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal discriminator: %w", err)
	}
	members[TypeField] = tag

	// map keys are sorted, so "$type" always comes first
	out, err := json.Marshal(members)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state '%s': %w", name, err)
	}
	return out, nil
}

// DecodeState reads the discriminator and unmarshals into a fresh instance of
// the named variant. Returns ErrCorruptRecord if the JSON is invalid or the
// discriminator is missing or unknown.
func (c *Codec) DecodeState(data []byte) (State, error) {
	name, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	v, ok := c.registry.New(name)
	if !ok {
		return nil, fmt.Errorf("%w: unknown discriminator '%s'", ErrCorruptRecord, name)
	}
	// the "$type" member is ignored by the struct decoder
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal '%s': %v", ErrCorruptRecord, name, err)
	}
	return v, nil
}

// PeekType returns the discriminator of an encoded payload without decoding
// the rest of it.
func PeekType(data []byte) (string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("%w: payload is not a JSON object: %v", ErrCorruptRecord, err)
	}
	rawTag, ok := envelope[TypeField]
	if !ok {
		return "", fmt.Errorf("%w: payload has no '%s' member", ErrCorruptRecord, TypeField)
	}
	var name string
	if err := json.Unmarshal(rawTag, &name); err != nil || name == "" {
		return "", fmt.Errorf("%w: '%s' member is not a non-empty string", ErrCorruptRecord, TypeField)
	}
	return name, nil
}

// EncodeMetadata marshals metadata as a flat JSON object. A nil map encodes
// as {}.
func (c *Codec) EncodeMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	for k, v := range metadata {
		if !utf8.ValidString(k) {
			return nil, fmt.Errorf("metadata key %q: %w", k, ErrInvalidUTF8)
		}
		if !utf8.ValidString(v) {
			return nil, fmt.Errorf("metadata value of %q: %w", k, ErrInvalidUTF8)
		}
	}
	out, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return out, nil
}

// DecodeMetadata unmarshals a flat JSON object of strings. Returns
// ErrCorruptRecord for anything else.
func (c *Codec) DecodeMetadata(data []byte) (map[string]string, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, fmt.Errorf("%w: metadata is empty", ErrCorruptRecord)
	}
	metadata := map[string]string{}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata is not a flat string object: %v", ErrCorruptRecord, err)
	}
	return metadata, nil
}

// findInvalidUTF8 walks the strings json.Marshal would encode and returns the
// path of the first one that is not valid UTF-8. v must already have been
// marshalled successfully, which rules out cycles.
func findInvalidUTF8(v reflect.Value, path string) (string, bool) {
	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return path, true
		}
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			return findInvalidUTF8(v.Elem(), path)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if tag == "-" {
				continue
			}
			if p, ok := findInvalidUTF8(v.Field(i), path+"."+f.Name); ok {
				return p, true
			}
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key())
			if p, ok := findInvalidUTF8(iter.Key(), path+"[key]"); ok {
				return p, true
			}
			if p, ok := findInvalidUTF8(iter.Value(), path+"["+key+"]"); ok {
				return p, true
			}
		}
	case reflect.Slice, reflect.Array:
		// []byte is base64 encoded
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return "", false
		}
		for i := 0; i < v.Len(); i++ {
			if p, ok := findInvalidUTF8(v.Index(i), fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
	}
	return "", false
}
