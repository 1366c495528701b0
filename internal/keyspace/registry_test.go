package keyspace

import (
	"path/filepath"
	"testing"

	"github.com/eigerco/rocker/pkg/db"
	"github.com/eigerco/rocker/pkg/db/options"
	"github.com/eigerco/rocker/pkg/db/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, path string) db.KVStore {
	t.Helper()
	o := options.Default()
	o.CreateIfMissing = true
	store, err := pebble.Open(path, o)
	require.NoError(t, err)
	return store
}

func TestRegistryLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	store := openStore(t, path)

	r, err := LoadRegistry(store, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultName}, r.Names())

	def, ok := r.Lookup(DefaultName)
	require.True(t, ok)
	assert.Equal(t, Default(3), def)

	batch := store.NewBatch()
	users, err := r.StageCreate(batch, "users", 2)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())
	r.Added(users)
	assert.Equal(t, FirstUserID, users.ID)

	batch = store.NewBatch()
	orders, err := r.StageCreate(batch, "orders", 0)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())
	r.Added(orders)
	assert.Equal(t, FirstUserID+1, orders.ID)

	assert.Equal(t, []string{DefaultName, "orders", "users"}, r.Names())
	require.NoError(t, store.Put(users.Key([]byte("k")), []byte("v")))

	batch = store.NewBatch()
	require.NoError(t, r.StageDrop(batch, users))
	require.NoError(t, batch.Commit())
	r.Removed("users")

	_, err = store.Get(users.Key([]byte("k")))
	assert.ErrorIs(t, err, db.ErrNotFound)
	require.NoError(t, store.Close())

	// reload from disk: the dropped id is never reused
	store = openStore(t, path)
	defer store.Close() //nolint:errcheck // test cleanup

	r, err = LoadRegistry(store, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultName, "orders"}, r.Names())
	_, ok = r.Lookup("users")
	assert.False(t, ok)

	got, ok := r.Lookup("orders")
	require.True(t, ok)
	assert.Equal(t, orders, got)

	batch = store.NewBatch()
	again, err := r.StageCreate(batch, "users", 0)
	require.NoError(t, err)
	require.NoError(t, batch.Close())
	assert.Equal(t, FirstUserID+2, again.ID)
}

func TestStageCreateRejectsInvalidName(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "db"))
	defer store.Close() //nolint:errcheck // test cleanup

	r, err := LoadRegistry(store, 0)
	require.NoError(t, err)

	batch := store.NewBatch()
	defer batch.Close() //nolint:errcheck // test cleanup
	_, err = r.StageCreate(batch, "", 0)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStageCreateAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	store := openStore(t, path)

	r, err := LoadRegistry(store, 0)
	require.NoError(t, err)

	tests := []struct {
		name  string
		names []string
		err   error
	}{
		{name: "invalid name anywhere", names: []string{"good", ""}, err: ErrInvalidName},
		{name: "repeated name", names: []string{"a", "a"}, err: ErrDuplicateName},
		{name: "registered name", names: []string{"b", DefaultName}, err: ErrDuplicateName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := store.NewBatch()
			defer batch.Close() //nolint:errcheck // test cleanup
			_, err := r.StageCreateAll(batch, tt.names, 0)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	batch := store.NewBatch()
	created, err := r.StageCreateAll(batch, []string{"users", "orders"}, 2)
	require.NoError(t, err)
	require.NoError(t, batch.Commit())
	require.Len(t, created, 2)
	assert.Equal(t, FirstUserID, created[0].ID)
	assert.Equal(t, FirstUserID+1, created[1].ID)
	require.NoError(t, store.Close())

	// the shared next id was persisted past both
	store = openStore(t, path)
	defer store.Close() //nolint:errcheck // test cleanup
	r, err = LoadRegistry(store, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultName, "orders", "users"}, r.Names())

	batch = store.NewBatch()
	defer batch.Close() //nolint:errcheck // test cleanup
	next, err := r.StageCreate(batch, "events", 0)
	require.NoError(t, err)
	assert.Equal(t, FirstUserID+2, next.ID)
}
