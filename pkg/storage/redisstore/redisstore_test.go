package redisstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/snapvault/pkg/storage"
)

// setupTestClient creates a test client connected to a miniredis instance
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, Options{KeyPrefix: "test", PageSize: 3})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

// collectObjects pages through a namespace and returns the unique keys seen.
func collectObjects(t *testing.T, store *ObjectStore, namespace string) map[string]storage.ObjectInfo {
	t.Helper()
	seen := map[string]storage.ObjectInfo{}
	var cursor storage.Cursor
	for {
		page, err := store.ListObjects(context.Background(), namespace, cursor)
		require.NoError(t, err)
		if page.Next.Done() {
			for _, item := range page.Items {
				seen[item.Key] = item
			}
			return seen
		}
		require.NotEmpty(t, page.Items, "non-final page must carry items")
		for _, item := range page.Items {
			seen[item.Key] = item
		}
		cursor = page.Next
	}
}

func TestNewClient(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		client, err := NewClient(&redis.Options{Addr: "localhost:6379"}, Options{})
		require.NoError(t, err)
		defer client.Close()
		assert.Equal(t, DefaultKeyPrefix, client.prefix)
		assert.Equal(t, DefaultPageSize, client.pageSize)
	})

	t.Run("rejects nil redis options", func(t *testing.T) {
		_, err := NewClient(nil, Options{})
		assert.Error(t, err)
	})

	t.Run("rejects glob characters in prefix", func(t *testing.T) {
		for _, prefix := range []string{"snap*", "a:b", "x[1]"} {
			_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, Options{KeyPrefix: prefix})
			assert.Error(t, err, "prefix %q", prefix)
		}
	})

	t.Run("parses URL", func(t *testing.T) {
		client, err := NewClientFromURL("redis://localhost:6379/2", Options{})
		require.NoError(t, err)
		defer client.Close()
		assert.Equal(t, 2, client.RedisClient().Options().DB)

		_, err = NewClientFromURL("http://nope", Options{})
		assert.Error(t, err)
	})
}

func TestPing(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	assert.NoError(t, client.Ping(ctx))

	mr.Close()
	err := client.Ping(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestSchemaKeys(t *testing.T) {
	assert.Equal(t, "snapvault:namespaces", NamespacesKey("snapvault"))
	assert.Equal(t, "snapvault:ns:audit:obj:a/b/data.json", ObjectKey("snapvault", "audit", "a/b/data.json"))
	assert.Equal(t, "snapvault:ns:audit:obj:*", ObjectPattern("snapvault", "audit"))
	assert.Equal(t, "snapvault:tables", TablesKey("snapvault"))
	assert.Equal(t, "snapvault:table:sagas", TableKey("snapvault", "sagas"))
}

func TestNamespaceLifecycle(t *testing.T) {
	client, mr := setupTestClient(t)
	store := client.Objects()
	ctx := context.Background()

	exists, err := store.NamespaceExists(ctx, "snapshots")
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := store.CreateNamespaceIfAbsent(ctx, "snapshots")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateNamespaceIfAbsent(ctx, "snapshots")
	require.NoError(t, err)
	assert.False(t, created, "second create is a no-op")

	require.NoError(t, store.PutObject(ctx, "snapshots", "k1", []byte("one"), "application/json"))
	require.NoError(t, store.PutObject(ctx, "snapshots", "k2", []byte("two"), "application/json"))

	deleted, err := store.DeleteNamespaceIfPresent(ctx, "snapshots")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists(ObjectKey("test", "snapshots", "k1")))
	assert.False(t, mr.Exists(ObjectKey("test", "snapshots", "k2")))

	deleted, err = store.DeleteNamespaceIfPresent(ctx, "snapshots")
	require.NoError(t, err)
	assert.False(t, deleted)

	t.Run("rejects invalid names", func(t *testing.T) {
		_, err := store.NamespaceExists(ctx, "Bad_Name")
		assert.ErrorIs(t, err, storage.ErrInvalidName)
	})
}

func TestPutGetObject(t *testing.T) {
	client, _ := setupTestClient(t)
	store := client.Objects()
	ctx := context.Background()

	t.Run("put into missing namespace", func(t *testing.T) {
		err := store.PutObject(ctx, "missing", "k", []byte("x"), "text/plain")
		require.Error(t, err)
		assert.True(t, storage.IsNotFound(err))
	})

	_, err := store.CreateNamespaceIfAbsent(ctx, "snapshots")
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "snapshots", "a/0000000001/data.json", []byte(`{"x":1}`), "application/json"))

		obj, err := store.GetObject(ctx, "snapshots", "a/0000000001/data.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"x":1}`), obj.Data)
		assert.Equal(t, "application/json", obj.ContentType)
		assert.Equal(t, "a/0000000001/data.json", obj.Key)
	})

	t.Run("overwrite replaces", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "snapshots", "over", []byte("v1"), "text/plain"))
		require.NoError(t, store.PutObject(ctx, "snapshots", "over", []byte("v2"), "text/plain"))
		obj, err := store.GetObject(ctx, "snapshots", "over")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(obj.Data))
	})

	t.Run("empty data is still an object", func(t *testing.T) {
		require.NoError(t, store.PutObject(ctx, "snapshots", "empty", []byte{}, "text/plain"))
		obj, err := store.GetObject(ctx, "snapshots", "empty")
		require.NoError(t, err)
		assert.Empty(t, obj.Data)
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := store.GetObject(ctx, "snapshots", "nope")
		require.Error(t, err)
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("delete if exists", func(t *testing.T) {
		require.NoError(t, store.DeleteObjectIfExists(ctx, "snapshots", "over"))
		require.NoError(t, store.DeleteObjectIfExists(ctx, "snapshots", "over"))
		_, err := store.GetObject(ctx, "snapshots", "over")
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestListObjects(t *testing.T) {
	client, _ := setupTestClient(t)
	store := client.Objects()
	ctx := context.Background()

	_, err := store.CreateNamespaceIfAbsent(ctx, "snapshots")
	require.NoError(t, err)
	_, err = store.CreateNamespaceIfAbsent(ctx, "other")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.PutObject(ctx, "snapshots", fmt.Sprintf("obj-%02d", i), []byte("payload"), "application/json"))
	}
	require.NoError(t, store.PutObject(ctx, "other", "foreign", []byte("x"), "text/plain"))

	t.Run("pages cover every object once namespace-scoped", func(t *testing.T) {
		seen := collectObjects(t, store, "snapshots")
		assert.Len(t, seen, 10)
		assert.NotContains(t, seen, "foreign")

		info := seen["obj-03"]
		assert.Equal(t, "snapshots", info.Namespace)
		assert.Equal(t, "application/json", info.ContentType)
		assert.Equal(t, int64(len("payload")), info.Size)
	})

	t.Run("empty namespace yields final empty page", func(t *testing.T) {
		_, err := store.CreateNamespaceIfAbsent(ctx, "vacant")
		require.NoError(t, err)
		page, err := store.ListObjects(ctx, "vacant", "")
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.True(t, page.Next.Done())
	})

	t.Run("rejects malformed cursor", func(t *testing.T) {
		_, err := store.ListObjects(ctx, "snapshots", "not-a-number")
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.ListObjects(cctx, "snapshots", "")
		require.Error(t, err)
		assert.True(t, storage.IsCancelled(err))
	})
}

func TestListNamespaces(t *testing.T) {
	client, _ := setupTestClient(t)
	admin := NewObjectAdmin(client)
	ctx := context.Background()

	want := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for _, ns := range want {
		_, err := admin.CreateNamespaceIfAbsent(ctx, ns)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	var cursor storage.Cursor
	for {
		page, err := admin.ListNamespaces(ctx, cursor)
		require.NoError(t, err)
		for _, name := range page.Names {
			seen[name] = true
		}
		if page.Next.Done() {
			break
		}
		cursor = page.Next
	}
	assert.Len(t, seen, len(want))
	for _, ns := range want {
		assert.True(t, seen[ns], ns)
	}
}

func TestRowStore(t *testing.T) {
	client, _ := setupTestClient(t)
	rows := client.Rows()
	ctx := context.Background()

	t.Run("put into missing table", func(t *testing.T) {
		err := rows.PutRow(ctx, "sagas", storage.Row{Key: "r1"})
		require.Error(t, err)
		assert.True(t, storage.IsNotFound(err))
	})

	created, err := rows.CreateTableIfAbsent(ctx, "sagas")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = rows.CreateTableIfAbsent(ctx, "sagas")
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := rows.TableExists(ctx, "sagas")
	require.NoError(t, err)
	assert.True(t, exists, "registered table exists while empty")

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, rows.PutRow(ctx, "sagas", storage.Row{Key: "r1", Fields: map[string]string{"state": "open"}}))
		row, err := rows.GetRow(ctx, "sagas", "r1")
		require.NoError(t, err)
		assert.Equal(t, "open", row.Fields["state"])
	})

	t.Run("missing row", func(t *testing.T) {
		_, err := rows.GetRow(ctx, "sagas", "nope")
		assert.True(t, storage.IsNotFound(err))
	})

	t.Run("rejects empty key", func(t *testing.T) {
		assert.Error(t, rows.PutRow(ctx, "sagas", storage.Row{}))
	})

	t.Run("scan pages through every row", func(t *testing.T) {
		for i := 0; i < 8; i++ {
			require.NoError(t, rows.PutRow(ctx, "sagas", storage.Row{Key: fmt.Sprintf("k%d", i), Fields: map[string]string{"n": fmt.Sprint(i)}}))
		}
		seen := map[string]bool{}
		var cursor storage.Cursor
		for {
			page, err := rows.ScanTable(ctx, "sagas", cursor)
			require.NoError(t, err)
			for _, r := range page.Rows {
				seen[r.Key] = true
			}
			if page.Next.Done() {
				break
			}
			cursor = page.Next
		}
		assert.Len(t, seen, 9)
	})

	t.Run("delete if exists", func(t *testing.T) {
		require.NoError(t, rows.DeleteRowIfExists(ctx, "sagas", "r1"))
		require.NoError(t, rows.DeleteRowIfExists(ctx, "sagas", "r1"))
		_, err := rows.GetRow(ctx, "sagas", "r1")
		assert.True(t, storage.IsNotFound(err))
	})
}

func TestScanTableToleratesForeignValues(t *testing.T) {
	client, mr := setupTestClient(t)
	rows := client.Rows()
	ctx := context.Background()

	_, err := rows.CreateTableIfAbsent(ctx, "legacy")
	require.NoError(t, err)
	mr.HSet(TableKey("test", "legacy"), "raw", "not json")

	page, err := rows.ScanTable(ctx, "legacy", "")
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "raw", page.Rows[0].Key)
	assert.Nil(t, page.Rows[0].Fields)
}

func TestListTables(t *testing.T) {
	client, _ := setupTestClient(t)
	admin := NewRowAdmin(client)
	ctx := context.Background()

	for _, name := range []string{"sagas", "saga_index", "timeouts", "subscriptions"} {
		_, err := admin.CreateTableIfAbsent(ctx, name)
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	var cursor storage.Cursor
	for {
		page, err := admin.ListTables(ctx, cursor)
		require.NoError(t, err)
		for _, name := range page.Names {
			seen[name] = true
		}
		if page.Next.Done() {
			break
		}
		cursor = page.Next
	}
	assert.Len(t, seen, 4)
}

func TestScanPageFoldsEmptyBatches(t *testing.T) {
	ctx := context.Background()
	calls := 0
	batches := []struct {
		members []string
		next    uint64
	}{
		{nil, 7},
		{nil, 9},
		{[]string{"a"}, 11},
		{[]string{"b"}, 0},
	}
	scan := func(ctx context.Context, cursor uint64) ([]string, uint64, error) {
		b := batches[calls]
		calls++
		return b.members, b.next, nil
	}

	members, next, err := scanPage(ctx, "", scan)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)
	assert.Equal(t, storage.Cursor("11"), next)
	assert.Equal(t, 3, calls)

	members, next, err = scanPage(ctx, next, scan)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
	assert.True(t, next.Done())
}
