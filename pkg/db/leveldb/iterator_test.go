package leveldb

import (
	"testing"

	"github.com/eigerco/rocker/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIterator(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{
			name: "forward_iteration",
			fn:   testForwardIteration,
		},
		{
			name: "reverse_iteration",
			fn:   testReverseIteration,
		},
		{
			name: "bounded_range_iteration",
			fn:   testBoundedRangeIteration,
		},
		{
			name: "seek_positions",
			fn:   testSeekPositions,
		},
		{
			name: "iterator_validity",
			fn:   testIteratorValidity,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newTestStore(t)
			defer store.Close() //nolint:errcheck // test cleanup

			for _, k := range []string{"a", "b", "c", "d", "e"} {
				require.NoError(t, store.Put([]byte(k), []byte("value-"+k)))
			}

			tc.fn(t, store)
		})
	}
}

func collect(t *testing.T, iter db.Iterator, ok bool, step func() bool) []string {
	t.Helper()
	var keys []string
	for ; ok; ok = step() {
		value, err := iter.Value()
		require.NoError(t, err)
		assert.Equal(t, "value-"+string(iter.Key()), string(value))
		keys = append(keys, string(iter.Key()))
	}
	require.NoError(t, iter.Error())
	return keys
}

func testForwardIteration(t *testing.T, store db.KVStore) {
	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, collect(t, iter, iter.First(), iter.Next))
}

func testReverseIteration(t *testing.T, store db.KVStore) {
	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, collect(t, iter, iter.Last(), iter.Prev))
}

func testBoundedRangeIteration(t *testing.T, store db.KVStore) {
	iter, err := store.NewIterator([]byte("b"), []byte("e"))
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // test cleanup

	assert.Equal(t, []string{"b", "c", "d"}, collect(t, iter, iter.First(), iter.Next))
	assert.Equal(t, []string{"d", "c", "b"}, collect(t, iter, iter.Last(), iter.Prev))
}

func testSeekPositions(t *testing.T, store db.KVStore) {
	iter, err := store.NewIterator(nil, nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // test cleanup

	require.True(t, iter.SeekGE([]byte("bb")))
	assert.Equal(t, []byte("c"), iter.Key())

	require.True(t, iter.SeekLE([]byte("bb")))
	assert.Equal(t, []byte("b"), iter.Key())

	require.True(t, iter.SeekLE([]byte("c")))
	assert.Equal(t, []byte("c"), iter.Key())

	assert.False(t, iter.SeekLE([]byte("0")))
	assert.False(t, iter.SeekGE([]byte("f")))
}

func testIteratorValidity(t *testing.T, store db.KVStore) {
	iter, err := store.NewIterator([]byte("d"), nil)
	require.NoError(t, err)
	defer iter.Close() //nolint:errcheck // test cleanup

	// Initial state - iterator is not positioned
	assert.False(t, iter.Valid())

	assert.True(t, iter.First())
	assert.True(t, iter.Valid())
	assert.Equal(t, []byte("d"), iter.Key())

	assert.True(t, iter.Next())
	assert.Equal(t, []byte("e"), iter.Key())

	// No more elements
	assert.False(t, iter.Next())
	assert.False(t, iter.Valid())

	// Value() should error when invalid
	_, err = iter.Value()
	assert.ErrorIs(t, err, db.ErrIteratorInvalid)
}
