// Package redisstore implements the storage contract on Redis.
//
// Namespaces and tables are registered in Redis sets so that their existence
// is independent of whether they currently hold any data. Objects are hashes
// carrying the payload and its content type; a table is a single hash whose
// fields are row keys and whose values are JSON-encoded row fields.
//
// Listings are driven by SCAN, SSCAN and HSCAN. Their numeric cursors are the
// storage.Cursor continuation tokens, so a listing never blocks the server and
// never materializes a whole collection. Redis may return the same member more
// than once during a single enumeration; callers that need uniqueness must
// de-duplicate.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/snapvault/pkg/storage"
)

const (
	// DefaultKeyPrefix is the first segment of every Redis key written.
	DefaultKeyPrefix = "snapvault"

	// DefaultPageSize is the COUNT hint passed to SCAN-family commands.
	DefaultPageSize int64 = 100
)

// Options tunes key layout and pagination.
type Options struct {
	// KeyPrefix namespaces every key, e.g. "snapvault" gives "snapvault:namespaces".
	KeyPrefix string

	// PageSize is the COUNT hint for SCAN, SSCAN and HSCAN.
	PageSize int64
}

// Client owns the Redis connection shared by the object and row stores.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb      *redis.Client
	prefix   string
	pageSize int64
}

// NewClient creates a client for the given Redis connection options.
// Returns an error if the key prefix contains glob metacharacters.
func NewClient(redisOpts *redis.Options, opts Options) (*Client, error) {
	if redisOpts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if strings.ContainsAny(prefix, "*?[]\\:") {
		return nil, fmt.Errorf("invalid key prefix '%s': must not contain glob characters or ':'", prefix)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Client{
		rdb:      redis.NewClient(redisOpts),
		prefix:   prefix,
		pageSize: pageSize,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(redisURL string, opts Options) (*Client, error) {
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewClient(redisOpts, opts)
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return storage.Classify("ping", c.rdb.Ping(ctx).Err())
}

// RedisClient exposes the underlying go-redis client for diagnostics.
func (c *Client) RedisClient() *redis.Client {
	return c.rdb
}

// Objects returns the namespace-scoped object store.
func (c *Client) Objects() *ObjectStore {
	return &ObjectStore{c: c}
}

// Rows returns the table-scoped row store.
func (c *Client) Rows() *RowStore {
	return &RowStore{c: c}
}

// scanFunc performs one SCAN-family round trip starting at cursor.
type scanFunc func(ctx context.Context, cursor uint64) ([]string, uint64, error)

// scanPage runs scan from the given cursor until it yields at least one member
// or the server cursor returns to zero. Redis may legitimately answer with an
// empty batch and a non-zero cursor; folding those batches keeps the
// "empty page means done" promise of the storage contract.
func scanPage(ctx context.Context, start storage.Cursor, scan scanFunc) ([]string, storage.Cursor, error) {
	cursor, err := parseCursor(start)
	if err != nil {
		return nil, "", err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		members, next, err := scan(ctx, cursor)
		if err != nil {
			return nil, "", err
		}
		if next == 0 {
			return members, "", nil
		}
		if len(members) > 0 {
			return members, formatCursor(next), nil
		}
		cursor = next
	}
}

func parseCursor(c storage.Cursor) (uint64, error) {
	if c.Done() {
		return 0, nil
	}
	n, err := strconv.ParseUint(string(c), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cursor %q: %w", c, err)
	}
	return n, nil
}

func formatCursor(n uint64) storage.Cursor {
	return storage.Cursor(strconv.FormatUint(n, 10))
}
