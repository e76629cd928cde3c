package sqlstore

import (
	"context"
	"strings"

	"entgo.io/ent/dialect"

	"github.com/dyluth/snapvault/pkg/storage"
)

// Admin adds database-wide table enumeration to Store. Only tables carrying
// TablePrefix are visible.
type Admin struct {
	*Store
}

var _ storage.RowAdmin = (*Admin)(nil)

// NewAdmin returns the destructive, database-wide row capability.
func NewAdmin(s *Store) *Admin {
	return &Admin{Store: s}
}

// ListTables returns one keyset page of logical table names, ordered by name.
// Prefixed tables whose remainder is not a valid table name were not created
// by this package and are skipped.
func (a *Admin) ListTables(ctx context.Context, cursor storage.Cursor) (storage.TablePage, error) {
	after := ""
	if !cursor.Done() {
		after = PhysicalName(string(cursor))
	}

	page := storage.TablePage{}
	for {
		physical, err := a.tablesAfter(ctx, after, a.pageSize+1)
		if err != nil {
			return storage.TablePage{}, err
		}
		for _, name := range physical {
			logical := strings.TrimPrefix(name, TablePrefix)
			if storage.ValidateTable(logical) != nil {
				continue
			}
			page.Names = append(page.Names, logical)
		}
		// keep reading while skipped names left the page short
		if len(physical) <= a.pageSize || len(page.Names) > a.pageSize {
			break
		}
		after = physical[len(physical)-1]
	}

	if len(page.Names) > a.pageSize {
		page.Names = page.Names[:a.pageSize]
		page.Next = storage.Cursor(page.Names[len(page.Names)-1])
	}
	return page, nil
}

func (a *Admin) tablesAfter(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, a.listTablesQuery(), after, limit)
	if err != nil {
		return nil, storage.Classify("list tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storage.Classify("list tables", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify("list tables", err)
	}
	return names, nil
}

// listTablesQuery matches the prefix case-sensitively. SQLite's LIKE folds
// ASCII case, GLOB does not.
func (a *Admin) listTablesQuery() string {
	if a.dialect == dialect.Postgres {
		return `SELECT table_name FROM information_schema.tables
WHERE table_schema = current_schema() AND table_name LIKE 'snapvault\_%' ESCAPE '\' AND table_name > $1
ORDER BY table_name LIMIT $2`
	}
	return `SELECT name FROM sqlite_master
WHERE type = 'table' AND name GLOB 'snapvault_*' AND name > ?
ORDER BY name LIMIT ?`
}
