package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dyluth/snapvault/pkg/storage"
)

// RowStore implements storage.RowStore with one Redis hash per table.
type RowStore struct {
	c *Client
}

var _ storage.RowStore = (*RowStore)(nil)

// TableExists checks the table registry.
func (s *RowStore) TableExists(ctx context.Context, table string) (bool, error) {
	if err := storage.ValidateTable(table); err != nil {
		return false, err
	}
	ok, err := s.c.rdb.SIsMember(ctx, TablesKey(s.c.prefix), table).Result()
	if err != nil {
		return false, storage.Classify("check table existence", err)
	}
	return ok, nil
}

// CreateTableIfAbsent registers the table. Safe to call repeatedly.
func (s *RowStore) CreateTableIfAbsent(ctx context.Context, table string) (bool, error) {
	if err := storage.ValidateTable(table); err != nil {
		return false, err
	}
	added, err := s.c.rdb.SAdd(ctx, TablesKey(s.c.prefix), table).Result()
	if err != nil {
		return false, storage.Classify("create table", err)
	}
	return added > 0, nil
}

// PutRow stores the row's fields as a JSON object under its key.
func (s *RowStore) PutRow(ctx context.Context, table string, row storage.Row) error {
	exists, err := s.TableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table '%s': %w", table, storage.NotFound("put row"))
	}
	if row.Key == "" {
		return fmt.Errorf("row key cannot be empty")
	}

	fields := row.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal row fields: %w", err)
	}

	if err := s.c.rdb.HSet(ctx, TableKey(s.c.prefix, table), row.Key, encoded).Err(); err != nil {
		return storage.Classify("put row", err)
	}
	return nil
}

// GetRow reads a row. Returns storage.ErrNotFound if it is absent.
func (s *RowStore) GetRow(ctx context.Context, table, key string) (storage.Row, error) {
	if err := storage.ValidateTable(table); err != nil {
		return storage.Row{}, err
	}
	raw, err := s.c.rdb.HGet(ctx, TableKey(s.c.prefix, table), key).Result()
	if errors.Is(err, redis.Nil) {
		return storage.Row{}, storage.NotFound("get row")
	}
	if err != nil {
		return storage.Row{}, storage.Classify("get row", err)
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return storage.Row{}, fmt.Errorf("failed to unmarshal row '%s': %w", key, err)
	}
	return storage.Row{Key: key, Fields: fields}, nil
}

// ScanTable returns one HSCAN page of a table. Rows whose stored value is not
// a JSON object are still returned, with nil Fields, so cleanup can remove them.
func (s *RowStore) ScanTable(ctx context.Context, table string, cursor storage.Cursor) (storage.RowPage, error) {
	if err := storage.ValidateTable(table); err != nil {
		return storage.RowPage{}, err
	}
	key := TableKey(s.c.prefix, table)
	pairs, next, err := scanPage(ctx, cursor, func(ctx context.Context, cur uint64) ([]string, uint64, error) {
		return s.c.rdb.HScan(ctx, key, cur, "", s.c.pageSize).Result()
	})
	if err != nil {
		return storage.RowPage{}, storage.Classify("scan table", err)
	}

	// HSCAN replies with alternating field and value
	rows := make([]storage.Row, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		row := storage.Row{Key: pairs[i]}
		var fields map[string]string
		if json.Unmarshal([]byte(pairs[i+1]), &fields) == nil {
			row.Fields = fields
		}
		rows = append(rows, row)
	}

	return storage.RowPage{Rows: rows, Next: next}, nil
}

// DeleteRowIfExists removes a row; a missing row is not an error.
func (s *RowStore) DeleteRowIfExists(ctx context.Context, table, key string) error {
	if err := storage.ValidateTable(table); err != nil {
		return err
	}
	if err := s.c.rdb.HDel(ctx, TableKey(s.c.prefix, table), key).Err(); err != nil {
		return storage.Classify("delete row", err)
	}
	return nil
}

// RowAdmin adds backend-wide table enumeration to RowStore.
type RowAdmin struct {
	*RowStore
}

var _ storage.RowAdmin = (*RowAdmin)(nil)

// NewRowAdmin returns the destructive, backend-wide row capability.
func NewRowAdmin(c *Client) *RowAdmin {
	return &RowAdmin{RowStore: c.Rows()}
}

// ListTables returns one SSCAN page of the table registry.
func (a *RowAdmin) ListTables(ctx context.Context, cursor storage.Cursor) (storage.TablePage, error) {
	key := TablesKey(a.c.prefix)
	names, next, err := scanPage(ctx, cursor, func(ctx context.Context, cur uint64) ([]string, uint64, error) {
		return a.c.rdb.SScan(ctx, key, cur, "", a.c.pageSize).Result()
	})
	if err != nil {
		return storage.TablePage{}, storage.Classify("list tables", err)
	}
	return storage.TablePage{Names: names, Next: next}, nil
}
