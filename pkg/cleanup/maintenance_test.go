package cleanup

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/snapvault/pkg/storage"
	"github.com/dyluth/snapvault/pkg/storage/redisstore"
	"github.com/dyluth/snapvault/pkg/storage/sqlstore"
)

// setupTestBackends creates a miniredis client and an in-memory SQLite store.
func setupTestBackends(t *testing.T) (*redisstore.Client, *sqlstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisstore.NewClient(&redis.Options{Addr: mr.Addr()}, redisstore.Options{KeyPrefix: "test", PageSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	dsn := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", t.Name())
	st, err := sqlstore.Open(context.Background(), dsn, sqlstore.Options{PageSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return client, st
}

func seedObjects(t *testing.T, store storage.ObjectStore, namespaces, perNamespace int) {
	t.Helper()
	ctx := context.Background()
	for n := 0; n < namespaces; n++ {
		ns := fmt.Sprintf("ns-%02d", n)
		_, err := store.CreateNamespaceIfAbsent(ctx, ns)
		require.NoError(t, err)
		for i := 0; i < perNamespace; i++ {
			require.NoError(t, store.PutObject(ctx, ns, fmt.Sprintf("obj/%03d", i), []byte("{}"), "application/json"))
		}
	}
}

func seedRows(t *testing.T, store storage.RowStore, tables, perTable int) {
	t.Helper()
	ctx := context.Background()
	for n := 0; n < tables; n++ {
		table := fmt.Sprintf("table_%02d", n)
		_, err := store.CreateTableIfAbsent(ctx, table)
		require.NoError(t, err)
		for i := 0; i < perTable; i++ {
			require.NoError(t, store.PutRow(ctx, table, storage.Row{Key: fmt.Sprintf("row-%03d", i), Fields: map[string]string{"i": fmt.Sprint(i)}}))
		}
	}
}

func countObjects(t *testing.T, admin storage.ObjectAdmin) int {
	t.Helper()
	ctx := context.Background()
	seen := map[string]bool{}
	var nsCursor storage.Cursor
	for {
		nsPage, err := admin.ListNamespaces(ctx, nsCursor)
		require.NoError(t, err)
		for _, ns := range nsPage.Names {
			var cursor storage.Cursor
			for {
				page, err := admin.ListObjects(ctx, ns, cursor)
				require.NoError(t, err)
				for _, item := range page.Items {
					seen[ns+"/"+item.Key] = true
				}
				if page.Next.Done() {
					break
				}
				cursor = page.Next
			}
		}
		if nsPage.Next.Done() {
			return len(seen)
		}
		nsCursor = nsPage.Next
	}
}

func countRows(t *testing.T, admin storage.RowAdmin) int {
	t.Helper()
	ctx := context.Background()
	seen := map[string]bool{}
	var tCursor storage.Cursor
	for {
		tPage, err := admin.ListTables(ctx, tCursor)
		require.NoError(t, err)
		for _, table := range tPage.Names {
			var cursor storage.Cursor
			for {
				page, err := admin.ScanTable(ctx, table, cursor)
				require.NoError(t, err)
				for _, row := range page.Rows {
					seen[table+"/"+row.Key] = true
				}
				if page.Next.Done() {
					break
				}
				cursor = page.Next
			}
		}
		if tPage.Next.Done() {
			return len(seen)
		}
		tCursor = tPage.Next
	}
}

func TestPurgeObjectsConverges(t *testing.T) {
	client, _ := setupTestBackends(t)
	admin := redisstore.NewObjectAdmin(client)
	seedObjects(t, admin, 5, 9)
	require.Equal(t, 45, countObjects(t, admin))

	m := NewMaintenance(admin)
	report, err := m.PurgeObjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindObjects, report.Kind)
	assert.GreaterOrEqual(t, report.Items, int64(45))
	assert.Equal(t, 0, countObjects(t, admin))

	// namespaces survive, emptied
	exists, err := admin.NamespaceExists(context.Background(), "ns-03")
	require.NoError(t, err)
	assert.True(t, exists)

	report, err = m.PurgeObjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Items)
}

func TestPurgeRowsAcrossBackends(t *testing.T) {
	client, st := setupTestBackends(t)
	redisRows := redisstore.NewRowAdmin(client)
	sqlRows := sqlstore.NewAdmin(st)
	seedRows(t, redisRows, 3, 6)
	seedRows(t, sqlRows, 4, 10)

	m := NewMaintenance(nil, redisRows, sqlRows).WithOptions(WithMaxConcurrency(2))
	reports, err := m.PurgeRows(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, int64(3), reports[0].Groups)
	assert.Equal(t, int64(4), reports[1].Groups)
	assert.Equal(t, int64(40), reports[1].Items)

	assert.Equal(t, 0, countRows(t, redisRows))
	assert.Equal(t, 0, countRows(t, sqlRows))

	t.Run("objects are required for object purges", func(t *testing.T) {
		_, err := m.PurgeObjects(context.Background())
		assert.Error(t, err)
	})
}

func TestPurgeAll(t *testing.T) {
	client, st := setupTestBackends(t)
	objects := redisstore.NewObjectAdmin(client)
	rows := sqlstore.NewAdmin(st)
	seedObjects(t, objects, 3, 5)
	seedRows(t, rows, 2, 7)

	m := NewMaintenance(objects, rows)
	reports, err := m.PurgeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, KindObjects, reports[0].Kind)
	assert.Equal(t, KindRows, reports[1].Kind)

	assert.Equal(t, 0, countObjects(t, objects))
	assert.Equal(t, 0, countRows(t, rows))

	reports, err = m.PurgeAll(context.Background())
	require.NoError(t, err)
	for _, r := range reports {
		assert.Equal(t, int64(0), r.Items, r.Kind)
	}
}

func TestPurgeAllJoinsFailures(t *testing.T) {
	client, st := setupTestBackends(t)
	objects := redisstore.NewObjectAdmin(client)
	rows := sqlstore.NewAdmin(st)
	seedObjects(t, objects, 1, 1)
	seedRows(t, rows, 1, 1)

	require.NoError(t, st.Close())
	require.NoError(t, client.Close())

	_, err := NewMaintenance(objects, rows).PurgeAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.ErrorContains(t, err, "objects")
	assert.ErrorContains(t, err, "rows")
}
