package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/snapvault/pkg/storage"
)

// ObjectStore implements storage.ObjectStore on Redis hashes.
type ObjectStore struct {
	c *Client
}

var _ storage.ObjectStore = (*ObjectStore)(nil)

// NamespaceExists checks the namespace registry.
func (s *ObjectStore) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return false, err
	}
	ok, err := s.c.rdb.SIsMember(ctx, NamespacesKey(s.c.prefix), namespace).Result()
	if err != nil {
		return false, storage.Classify("check namespace existence", err)
	}
	return ok, nil
}

// CreateNamespaceIfAbsent registers the namespace. Safe to call repeatedly.
func (s *ObjectStore) CreateNamespaceIfAbsent(ctx context.Context, namespace string) (bool, error) {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return false, err
	}
	added, err := s.c.rdb.SAdd(ctx, NamespacesKey(s.c.prefix), namespace).Result()
	if err != nil {
		return false, storage.Classify("create namespace", err)
	}
	return added > 0, nil
}

// DeleteNamespaceIfPresent unlinks every object of the namespace and then
// removes it from the registry. Objects are swept even when the namespace is
// not registered, so a previous run interrupted between the two steps leaves
// nothing behind.
func (s *ObjectStore) DeleteNamespaceIfPresent(ctx context.Context, namespace string) (bool, error) {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return false, err
	}
	existed, err := s.c.rdb.SIsMember(ctx, NamespacesKey(s.c.prefix), namespace).Result()
	if err != nil {
		return false, storage.Classify("check namespace existence", err)
	}

	// Sweep until a full SCAN finds nothing left to unlink.
	pattern := ObjectPattern(s.c.prefix, namespace)
	var cursor uint64
	var unlinked int
	for {
		keys, next, err := s.c.rdb.Scan(ctx, cursor, pattern, s.c.pageSize).Result()
		if err != nil {
			return false, storage.Classify("scan namespace objects", err)
		}
		if len(keys) > 0 {
			if err := s.c.rdb.Unlink(ctx, keys...).Err(); err != nil {
				return false, storage.Classify("unlink namespace objects", err)
			}
			unlinked += len(keys)
		}
		if next == 0 {
			if unlinked == 0 {
				break
			}
			unlinked = 0
		}
		cursor = next
	}

	if err := s.c.rdb.SRem(ctx, NamespacesKey(s.c.prefix), namespace).Err(); err != nil {
		return false, storage.Classify("delete namespace", err)
	}
	return existed, nil
}

// PutObject writes data and content type as a single HSET.
// Returns storage.ErrNotFound if the namespace is not registered.
func (s *ObjectStore) PutObject(ctx context.Context, namespace, key string, data []byte, contentType string) error {
	exists, err := s.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("namespace '%s': %w", namespace, storage.NotFound("put object"))
	}

	redisKey := ObjectKey(s.c.prefix, namespace, key)
	if err := s.c.rdb.HSet(ctx, redisKey, fieldData, data, fieldContentType, contentType).Err(); err != nil {
		return storage.Classify("put object", err)
	}
	return nil
}

// GetObject reads an object. Returns storage.ErrNotFound if it is absent.
func (s *ObjectStore) GetObject(ctx context.Context, namespace, key string) (storage.Object, error) {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return storage.Object{}, err
	}
	vals, err := s.c.rdb.HMGet(ctx, ObjectKey(s.c.prefix, namespace, key), fieldData, fieldContentType).Result()
	if err != nil {
		return storage.Object{}, storage.Classify("get object", err)
	}

	// HMGET returns nil entries for a key that doesn't exist
	data, ok := vals[0].(string)
	if !ok {
		return storage.Object{}, storage.NotFound("get object")
	}
	contentType, _ := vals[1].(string)

	return storage.Object{Key: key, Data: []byte(data), ContentType: contentType}, nil
}

// ListObjects returns one SCAN page of a namespace, enriched with content
// type and size through a single pipeline round trip.
func (s *ObjectStore) ListObjects(ctx context.Context, namespace string, cursor storage.Cursor) (storage.ObjectPage, error) {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return storage.ObjectPage{}, err
	}
	pattern := ObjectPattern(s.c.prefix, namespace)
	keys, next, err := scanPage(ctx, cursor, func(ctx context.Context, cur uint64) ([]string, uint64, error) {
		return s.c.rdb.Scan(ctx, cur, pattern, s.c.pageSize).Result()
	})
	if err != nil {
		return storage.ObjectPage{}, storage.Classify("list objects", err)
	}
	if len(keys) == 0 {
		return storage.ObjectPage{Next: next}, nil
	}

	contentTypes := make([]*redis.StringCmd, len(keys))
	sizes := make([]*redis.Cmd, len(keys))
	_, err = s.c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			contentTypes[i] = pipe.HGet(ctx, k, fieldContentType)
			sizes[i] = pipe.Do(ctx, "HSTRLEN", k, fieldData)
		}
		return nil
	})
	// redis.Nil only means an object vanished between SCAN and HGET
	if err != nil && !errors.Is(err, redis.Nil) {
		return storage.ObjectPage{}, storage.Classify("describe objects", err)
	}

	keyPrefix := ObjectKeyPrefix(s.c.prefix, namespace)
	items := make([]storage.ObjectInfo, 0, len(keys))
	for i, k := range keys {
		contentType, err := contentTypes[i].Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		size, _ := sizes[i].Int64()
		items = append(items, storage.ObjectInfo{
			Namespace:   namespace,
			Key:         k[len(keyPrefix):],
			ContentType: contentType,
			Size:        size,
		})
	}

	return storage.ObjectPage{Items: items, Next: next}, nil
}

// DeleteObjectIfExists unlinks an object; a missing object is not an error.
func (s *ObjectStore) DeleteObjectIfExists(ctx context.Context, namespace, key string) error {
	if err := storage.ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := s.c.rdb.Unlink(ctx, ObjectKey(s.c.prefix, namespace, key)).Err(); err != nil {
		return storage.Classify("delete object", err)
	}
	return nil
}

// ObjectAdmin adds backend-wide namespace enumeration to ObjectStore.
// Construct it only in maintenance contexts (test fixtures, resets).
type ObjectAdmin struct {
	*ObjectStore
}

var _ storage.ObjectAdmin = (*ObjectAdmin)(nil)

// NewObjectAdmin returns the destructive, backend-wide object capability.
func NewObjectAdmin(c *Client) *ObjectAdmin {
	return &ObjectAdmin{ObjectStore: c.Objects()}
}

// ListNamespaces returns one SSCAN page of the namespace registry.
func (a *ObjectAdmin) ListNamespaces(ctx context.Context, cursor storage.Cursor) (storage.NamespacePage, error) {
	key := NamespacesKey(a.c.prefix)
	names, next, err := scanPage(ctx, cursor, func(ctx context.Context, cur uint64) ([]string, uint64, error) {
		return a.c.rdb.SScan(ctx, key, cur, "", a.c.pageSize).Result()
	})
	if err != nil {
		return storage.NamespacePage{}, storage.Classify("list namespaces", err)
	}
	return storage.NamespacePage{Names: names, Next: next}, nil
}
