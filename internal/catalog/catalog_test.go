package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/snapvault/pkg/archive"
	"github.com/dyluth/snapvault/pkg/storage/redisstore"
)

type order struct {
	archive.Header
	State string `json:"state"`
}

var (
	orderA  = uuid.MustParse("aaaaaa11-0000-4000-8000-000000000001")
	orderB  = uuid.MustParse("aaaaaa22-0000-4000-8000-000000000002")
	orderC  = uuid.MustParse("c0ffee00-0000-4000-8000-000000000003")
	missing = uuid.MustParse("dddddddd-0000-4000-8000-000000000004")
)

// setupTestCatalog archives a handful of snapshots into a miniredis-backed
// namespace, plus a stray object and a metadata-only snapshot.
func setupTestCatalog(t *testing.T) (*archive.Archive, *redisstore.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redisstore.NewClient(&redis.Options{Addr: mr.Addr()}, redisstore.Options{KeyPrefix: "test", PageSize: 3})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	registry := archive.NewRegistry()
	registry.MustRegister("Order", func() archive.State { return &order{} })

	a, err := archive.New(client.Objects(), "orders", archive.WithRegistry(registry))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, a.EnsureNamespaceExists(ctx))
	for _, s := range []*order{
		{Header: archive.Header{ID: orderA, Revision: 1}, State: "placed"},
		{Header: archive.Header{ID: orderA, Revision: 2}, State: "shipped"},
		{Header: archive.Header{ID: orderB, Revision: 1}, State: "placed"},
		{Header: archive.Header{ID: orderC, Revision: 7}, State: "cancelled"},
	} {
		require.NoError(t, a.SaveState(ctx, s, map[string]string{"source": "test", "state": s.State}))
	}

	partial := archive.SnapshotKey{EntityID: orderC, Revision: 8}
	require.NoError(t, client.Objects().PutObject(ctx, "orders", partial.MetadataKey(), []byte(`{}`), archive.ContentTypeJSON))
	require.NoError(t, client.Objects().PutObject(ctx, "orders", "stray.txt", []byte("hello"), "text/plain"))

	return a, client
}

func TestResolveEntityID(t *testing.T) {
	a, _ := setupTestCatalog(t)
	ctx := context.Background()

	t.Run("full IDs pass through", func(t *testing.T) {
		id, err := ResolveEntityID(ctx, a, missing.String())
		require.NoError(t, err)
		assert.Equal(t, missing, id)

		id, err = ResolveEntityID(ctx, a, strings.ToUpper(strings.ReplaceAll(orderC.String(), "-", "")))
		require.NoError(t, err)
		assert.Equal(t, orderC, id)
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := ResolveEntityID(ctx, a, "c0ffee")
		require.NoError(t, err)
		assert.Equal(t, orderC, id)

		id, err = ResolveEntityID(ctx, a, "aaaaaa2")
		require.NoError(t, err)
		assert.Equal(t, orderB, id)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveEntityID(ctx, a, "c0ff")
		assert.ErrorContains(t, err, "at least 6 characters")
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := ResolveEntityID(ctx, a, "zzzzzzzz")
		assert.ErrorContains(t, err, "must be hexadecimal")
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveEntityID(ctx, a, "123456")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := ResolveEntityID(ctx, a, "aaaaaa")
		require.True(t, IsAmbiguousError(err))

		amb := err.(*AmbiguousError)
		assert.ElementsMatch(t, []uuid.UUID{orderA, orderB}, amb.Matches)
		msg := FormatAmbiguousError(amb)
		assert.Contains(t, msg, orderA.String())
		assert.Contains(t, msg, "Use a longer prefix")
	})
}

func TestFormatAmbiguousErrorTruncates(t *testing.T) {
	matches := make([]uuid.UUID, 12)
	for i := range matches {
		matches[i] = uuid.New()
	}
	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abcdef", Matches: matches})
	assert.Contains(t, msg, "...and 2 more")
	assert.NotContains(t, msg, matches[10].String())
}

func TestCollectSnapshots(t *testing.T) {
	a, client := setupTestCatalog(t)
	ctx := context.Background()

	var warn bytes.Buffer
	listing, err := CollectSnapshots(ctx, a, nil, &warn)
	require.NoError(t, err)
	assert.Empty(t, warn.String())

	assert.Equal(t, "orders", listing.Namespace)
	assert.Equal(t, 1, listing.Stray)
	require.Len(t, listing.Snapshots, 5)

	assert.Equal(t, orderA, listing.Snapshots[0].EntityID)
	assert.Equal(t, int64(1), listing.Snapshots[0].Revision)
	assert.Equal(t, int64(2), listing.Snapshots[1].Revision)
	assert.Equal(t, orderB, listing.Snapshots[2].EntityID)

	for _, s := range listing.Snapshots[:4] {
		assert.Equal(t, "Order", s.Type)
		assert.True(t, s.Payload && s.Metadata)
		assert.Positive(t, s.Size)
	}
	partial := listing.Snapshots[4]
	assert.Equal(t, int64(8), partial.Revision)
	assert.False(t, partial.Payload)
	assert.True(t, partial.Metadata)
	assert.Empty(t, partial.Type)

	t.Run("filtered by entity", func(t *testing.T) {
		listing, err := CollectSnapshots(ctx, a, &Filter{EntityID: orderA}, &warn)
		require.NoError(t, err)
		require.Len(t, listing.Snapshots, 2)
		for _, s := range listing.Snapshots {
			assert.Equal(t, orderA, s.EntityID)
		}
	})

	t.Run("malformed payloads are warned about", func(t *testing.T) {
		bad := archive.SnapshotKey{EntityID: missing, Revision: 1}
		require.NoError(t, client.Objects().PutObject(ctx, "orders", bad.PayloadKey(), []byte(`[1,2]`), archive.ContentTypeJSON))

		var warn bytes.Buffer
		listing, err := CollectSnapshots(ctx, a, &Filter{EntityID: missing}, &warn)
		require.NoError(t, err)
		require.Len(t, listing.Snapshots, 1)
		assert.Empty(t, listing.Snapshots[0].Type)
		assert.Contains(t, warn.String(), "Skipping malformed payload")
	})
}

func TestListSnapshots(t *testing.T) {
	a, _ := setupTestCatalog(t)
	ctx := context.Background()

	t.Run("table", func(t *testing.T) {
		var out, warn bytes.Buffer
		require.NoError(t, ListSnapshots(ctx, a, OutputFormatDefault, nil, &out, &warn))

		text := out.String()
		assert.Contains(t, text, "Snapshots in namespace 'orders':")
		assert.Contains(t, text, "ENTITY")
		assert.Contains(t, text, "aaaaaa11")
		assert.Contains(t, text, "metadata (partial)")
		assert.Contains(t, text, "5 snapshots found")
		assert.Contains(t, text, "1 unrecognised object(s) ignored")
	})

	t.Run("jsonl", func(t *testing.T) {
		var out, warn bytes.Buffer
		require.NoError(t, ListSnapshots(ctx, a, OutputFormatJSONL, &Filter{EntityID: orderC}, &out, &warn))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		var first Snapshot
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
		assert.Equal(t, orderC, first.EntityID)
		assert.Equal(t, int64(7), first.Revision)
		assert.Equal(t, "Order", first.Type)
	})

	t.Run("empty namespace", func(t *testing.T) {
		require.NoError(t, a.Reset(ctx))
		var out, warn bytes.Buffer
		require.NoError(t, ListSnapshots(ctx, a, OutputFormatDefault, nil, &out, &warn))
		assert.Equal(t, "No snapshots found in namespace 'orders'\n", out.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		err := ListSnapshots(ctx, a, "yaml", nil, &bytes.Buffer{}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestGetSnapshot(t *testing.T) {
	a, _ := setupTestCatalog(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, GetSnapshot(ctx, a, orderA, 2, &out))
	assert.True(t, strings.HasPrefix(out.String(), "{\n  \"$type\": \"Order\""), out.String())
	assert.Contains(t, out.String(), `"state": "shipped"`)

	out.Reset()
	require.NoError(t, GetMetadata(ctx, a, orderA, 2, &out))
	assert.Equal(t, "{\n  \"source\": \"test\",\n  \"state\": \"shipped\"\n}\n", out.String())

	t.Run("not found", func(t *testing.T) {
		err := GetSnapshot(ctx, a, missing, 9, &bytes.Buffer{})
		require.True(t, IsNotFound(err))
		assert.ErrorIs(t, err, archive.ErrNotFound)
		assert.Contains(t, err.Error(), "revision 9 not found")

		err = GetSnapshot(ctx, a, orderC, 8, &bytes.Buffer{})
		assert.True(t, IsNotFound(err), "metadata-only snapshot has no payload")
	})

	t.Run("invalid revision", func(t *testing.T) {
		err := GetMetadata(ctx, a, orderA, -1, &bytes.Buffer{})
		assert.ErrorIs(t, err, archive.ErrInvalidKey)
		assert.False(t, IsNotFound(err))
	})
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "aaaaaa11", formatID(orderA))
	assert.Equal(t, "-", formatType(""))
	assert.Equal(t, "AVeryLongVariantN...", formatType("AVeryLongVariantNameIndeed"))
	assert.Equal(t, "512B", formatSize(512))
	assert.Equal(t, "1.5K", formatSize(1536))
	assert.Equal(t, "2.0M", formatSize(2*1024*1024))
	assert.Equal(t, "data (partial)", formatParts(Snapshot{Payload: true}))

	assert.Error(t, FormatSingleJSON(&bytes.Buffer{}, []byte("not json")))
}
