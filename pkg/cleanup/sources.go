package cleanup

import (
	"context"

	"github.com/dyluth/snapvault/pkg/storage"
)

// Source kinds.
const (
	KindObjects = "objects"
	KindRows    = "rows"
)

type objectSource struct {
	admin storage.ObjectAdmin
}

// ObjectSource adapts an object admin: groups are namespaces and items are
// the objects in them.
func ObjectSource(admin storage.ObjectAdmin) Source[storage.ObjectInfo] {
	return objectSource{admin: admin}
}

// Objects returns an engine that empties every namespace of admin.
func Objects(admin storage.ObjectAdmin, opts ...Option) *Engine[storage.ObjectInfo] {
	return NewEngine(ObjectSource(admin), opts...)
}

func (s objectSource) Kind() string { return KindObjects }

func (s objectSource) ListGroups(ctx context.Context, cursor storage.Cursor) ([]string, storage.Cursor, error) {
	page, err := s.admin.ListNamespaces(ctx, cursor)
	return page.Names, page.Next, err
}

func (s objectSource) GroupExists(ctx context.Context, group string) (bool, error) {
	return s.admin.NamespaceExists(ctx, group)
}

func (s objectSource) ListItems(ctx context.Context, group string, cursor storage.Cursor) ([]storage.ObjectInfo, storage.Cursor, error) {
	page, err := s.admin.ListObjects(ctx, group, cursor)
	return page.Items, page.Next, err
}

func (s objectSource) DeleteItem(ctx context.Context, group string, item storage.ObjectInfo) error {
	return s.admin.DeleteObjectIfExists(ctx, group, item.Key)
}

type rowSource struct {
	admin storage.RowAdmin
}

// RowSource adapts a row admin: groups are tables and items are their rows.
func RowSource(admin storage.RowAdmin) Source[storage.Row] {
	return rowSource{admin: admin}
}

// Rows returns an engine that empties every table of admin.
func Rows(admin storage.RowAdmin, opts ...Option) *Engine[storage.Row] {
	return NewEngine(RowSource(admin), opts...)
}

func (s rowSource) Kind() string { return KindRows }

func (s rowSource) ListGroups(ctx context.Context, cursor storage.Cursor) ([]string, storage.Cursor, error) {
	page, err := s.admin.ListTables(ctx, cursor)
	return page.Names, page.Next, err
}

func (s rowSource) GroupExists(ctx context.Context, group string) (bool, error) {
	return s.admin.TableExists(ctx, group)
}

func (s rowSource) ListItems(ctx context.Context, group string, cursor storage.Cursor) ([]storage.Row, storage.Cursor, error) {
	page, err := s.admin.ScanTable(ctx, group, cursor)
	return page.Rows, page.Next, err
}

func (s rowSource) DeleteItem(ctx context.Context, group string, item storage.Row) error {
	return s.admin.DeleteRowIfExists(ctx, group, item.Key)
}
