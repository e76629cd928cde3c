// Package storage defines the backend contract consumed by the snapshot
// archive and the bulk-cleanup engine.
//
// # Backends
//
// Two kinds of backend are modelled:
//
//   - Object stores hold binary objects addressed by a hierarchical key
//     string, grouped into namespaces.
//   - Row stores hold rows grouped into named tables, read by paginated scan.
//
// # Pagination
//
// Every listing call is paginated through an opaque Cursor. Passing the empty
// cursor starts a fresh enumeration; a returned empty cursor means there are no
// more pages. Implementations never return an empty page together with a
// non-empty cursor, so callers may treat either condition as the end.
//
// # Capabilities
//
// ObjectStore and RowStore only reach data inside a namespace or table the
// caller names. Enumerating every namespace or table is reserved for
// ObjectAdmin and RowAdmin, which backends expose through separate
// constructors so that production code paths never hold them.
package storage

import "context"

// Cursor is an opaque continuation token returned by a paginated listing.
// The zero value starts an enumeration when passed in and signals the final
// page when returned.
type Cursor string

// Done reports whether the cursor marks the end of an enumeration.
func (c Cursor) Done() bool {
	return c == ""
}

// Object is a stored binary object together with its content type.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
}

// ObjectInfo describes an object returned by a listing without its data.
type ObjectInfo struct {
	Namespace   string
	Key         string
	ContentType string
	Size        int64
}

// ObjectPage is one page of an object listing.
type ObjectPage struct {
	Items []ObjectInfo
	Next  Cursor
}

// NamespacePage is one page of a namespace listing.
type NamespacePage struct {
	Names []string
	Next  Cursor
}

// Row is a single row of a table. Fields is a flat string map.
type Row struct {
	Key    string
	Fields map[string]string
}

// RowPage is one page of a table scan.
type RowPage struct {
	Rows []Row
	Next Cursor
}

// TablePage is one page of a table listing.
type TablePage struct {
	Names []string
	Next  Cursor
}

// ObjectStore is the namespace-scoped object store contract.
type ObjectStore interface {
	// NamespaceExists reports whether the namespace is present.
	NamespaceExists(ctx context.Context, namespace string) (bool, error)

	// CreateNamespaceIfAbsent creates the namespace and reports whether it
	// had to be created.
	CreateNamespaceIfAbsent(ctx context.Context, namespace string) (bool, error)

	// DeleteNamespaceIfPresent removes the namespace and every object in it,
	// reporting whether it existed.
	DeleteNamespaceIfPresent(ctx context.Context, namespace string) (bool, error)

	// PutObject writes an object, replacing any previous object at key.
	// Returns ErrNotFound if the namespace does not exist.
	PutObject(ctx context.Context, namespace, key string, data []byte, contentType string) error

	// GetObject reads an object. Returns ErrNotFound if it is absent.
	GetObject(ctx context.Context, namespace, key string) (Object, error)

	// ListObjects returns one page of the objects in a namespace.
	ListObjects(ctx context.Context, namespace string, cursor Cursor) (ObjectPage, error)

	// DeleteObjectIfExists removes an object; absence is not an error.
	DeleteObjectIfExists(ctx context.Context, namespace, key string) error
}

// ObjectAdmin extends ObjectStore with backend-wide enumeration.
type ObjectAdmin interface {
	ObjectStore

	// ListNamespaces returns one page of every namespace in the backend.
	ListNamespaces(ctx context.Context, cursor Cursor) (NamespacePage, error)
}

// RowStore is the table-scoped row store contract.
type RowStore interface {
	// TableExists reports whether the table is present.
	TableExists(ctx context.Context, table string) (bool, error)

	// CreateTableIfAbsent creates the table and reports whether it had to be
	// created.
	CreateTableIfAbsent(ctx context.Context, table string) (bool, error)

	// PutRow inserts or replaces a row. Returns ErrNotFound if the table does
	// not exist.
	PutRow(ctx context.Context, table string, row Row) error

	// GetRow reads a row. Returns ErrNotFound if it is absent.
	GetRow(ctx context.Context, table, key string) (Row, error)

	// ScanTable returns one page of the rows in a table.
	ScanTable(ctx context.Context, table string, cursor Cursor) (RowPage, error)

	// DeleteRowIfExists removes a row; absence is not an error.
	DeleteRowIfExists(ctx context.Context, table, key string) error
}

// RowAdmin extends RowStore with backend-wide enumeration.
type RowAdmin interface {
	RowStore

	// ListTables returns one page of every table in the backend.
	ListTables(ctx context.Context, cursor Cursor) (TablePage, error)
}
