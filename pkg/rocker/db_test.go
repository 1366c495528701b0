package rocker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/eigerco/rocker/internal/keyspace"
	"github.com/eigerco/rocker/internal/testutils"
	"github.com/eigerco/rocker/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, engine db.Engine) *DB {
	t.Helper()
	d, err := Open(testutils.TempPath(t), testutils.CreateOptions(engine))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// forEachEngine runs fn once per backend.
func forEachEngine(t *testing.T, fn func(t *testing.T, d *DB)) {
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			fn(t, newTestDB(t, engine))
		})
	}
}

func TestDB(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, d *DB)
	}{
		{
			name: "put_get",
			fn:   testPutGet,
		},
		{
			name: "delete_is_idempotent",
			fn:   testDeleteIdempotent,
		},
		{
			name: "closed_handle",
			fn:   testClosedHandle,
		},
		{
			name: "path_round_trip",
			fn:   testPathRoundTrip,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			forEachEngine(t, tc.fn)
		})
	}
}

func testPutGet(t *testing.T, d *DB) {
	require.NoError(t, d.Put([]byte("k"), []byte("v")))

	value, err := d.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, d.Put([]byte("k"), []byte("v2")))
	value, err = d.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)

	_, err = d.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func testDeleteIdempotent(t *testing.T, d *DB) {
	require.NoError(t, d.Put([]byte("k"), []byte("v")))
	require.NoError(t, d.Delete([]byte("k")))
	require.NoError(t, d.Delete([]byte("k")))
	require.NoError(t, d.Delete([]byte("never-written")))

	_, err := d.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func testClosedHandle(t *testing.T, d *DB) {
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err := d.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.Put([]byte("k"), nil), ErrClosed)
	assert.ErrorIs(t, d.Delete([]byte("k")), ErrClosed)
	_, err = d.Iterate(Start())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = d.Apply([]Op{PutOp([]byte("k"), nil)})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, d.CreateKeyspaceDefault("x"), ErrClosed)
	_, err = d.Keyspaces()
	assert.ErrorIs(t, err, ErrClosed)
}

func testPathRoundTrip(t *testing.T, d *DB) {
	path := d.Path()
	require.NoError(t, d.Put([]byte("persisted"), []byte("yes")))
	require.NoError(t, d.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck

	assert.Equal(t, path, reopened.Path())
	assert.Equal(t, d.Engine(), reopened.Engine())
	value, err := reopened.Get([]byte("persisted"))
	require.NoError(t, err)
	assert.Equal(t, []byte("yes"), value)
}

func TestOpenCreateIfMissing(t *testing.T) {
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			path := testutils.TempPath(t)

			_, err := Open(path, map[string]any{"engine": string(engine)})
			require.Error(t, err)
			assert.True(t, IsConfig(err))

			d, err := Open(path, testutils.CreateOptions(engine))
			require.NoError(t, err)
			require.NoError(t, d.Close())
		})
	}
}

func TestOpenDefault(t *testing.T) {
	path := testutils.TempPath(t)
	d, err := OpenDefault(path)
	require.NoError(t, err)
	defer d.Close() //nolint:errcheck

	assert.Equal(t, db.EnginePebble, d.Engine())
	names, err := d.Keyspaces()
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultKeyspace}, names)
}

func TestOpenInvalidOption(t *testing.T) {
	_, err := Open(testutils.TempPath(t), map[string]any{"set_max_open_files": "lots"})
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}

func TestOpenEngineMismatch(t *testing.T) {
	path := testutils.TempPath(t)
	d, err := Open(path, testutils.CreateOptions(db.EngineLevelDB))
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = Open(path, map[string]any{"engine": "pebble"})
	require.Error(t, err)
	assert.True(t, IsConfig(err))

	d, err = Open(path, nil)
	require.NoError(t, err)
	assert.Equal(t, db.EngineLevelDB, d.Engine())
	require.NoError(t, d.Close())
}

func TestOpenWithKeyspaces(t *testing.T) {
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			path := testutils.TempPath(t)
			d, err := Open(path, testutils.CreateOptions(engine))
			require.NoError(t, err)
			require.NoError(t, d.Close())

			_, err = OpenWithKeyspaces(path, []string{"users"})
			assert.ErrorIs(t, err, ErrUnknownKeyspace)

			values := testutils.CreateOptions(engine)
			values["create_missing_column_families"] = true
			d, err = OpenWithKeyspacesOptions(path, []string{"users", "orders"}, values)
			require.NoError(t, err)
			require.NoError(t, d.PutKeyspace("users", []byte("u1"), []byte("alice")))
			require.NoError(t, d.Close())

			d, err = OpenWithKeyspaces(path, []string{"default", "users", "orders"})
			require.NoError(t, err)
			defer d.Close() //nolint:errcheck

			value, err := d.GetKeyspace("users", []byte("u1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("alice"), value)
		})
	}
}

func TestOpenWithKeyspacesMissingDatabase(t *testing.T) {
	_, err := OpenWithKeyspaces(testutils.TempPath(t), []string{"default"})
	require.Error(t, err)
	assert.True(t, IsConfig(err))
}

func TestDestroy(t *testing.T) {
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			path := testutils.TempPath(t)
			d, err := Open(path, testutils.CreateOptions(engine))
			require.NoError(t, err)
			require.NoError(t, d.Put([]byte("k"), []byte("v")))
			require.NoError(t, d.Close())

			require.NoError(t, Destroy(path))
			_, err = os.Stat(path)
			assert.True(t, errors.Is(err, os.ErrNotExist))

			_, err = Open(path, map[string]any{"engine": string(engine)})
			assert.Error(t, err)
		})
	}
}

func TestDestroyMissingPath(t *testing.T) {
	assert.NoError(t, Destroy(filepath.Join(t.TempDir(), "nothing-here")))
}

func TestDestroyKeepsForeignFiles(t *testing.T) {
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			path := testutils.TempPath(t)
			d, err := Open(path, testutils.CreateOptions(engine))
			require.NoError(t, err)
			require.NoError(t, d.Put([]byte("k"), []byte("v")))
			require.NoError(t, d.Close())

			foreign := filepath.Join(path, "notes.txt")
			require.NoError(t, os.WriteFile(foreign, []byte("keep me"), 0o600))

			require.NoError(t, Destroy(path))

			data, err := os.ReadFile(foreign)
			require.NoError(t, err)
			assert.Equal(t, "keep me", string(data))

			entries, err := os.ReadDir(path)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "notes.txt", entries[0].Name())
		})
	}
}

func TestDestroyRefusesNonDatabase(t *testing.T) {
	dir := t.TempDir()
	files := []string{"notes.txt", "000001.log"}
	for _, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	err := Destroy(dir)
	require.Error(t, err)
	assert.True(t, IsEngine(err))
	assert.ErrorIs(t, err, db.ErrNotDatabase)

	for _, name := range files {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestCorruptManifest(t *testing.T) {
	path := testutils.TempPath(t)
	d, err := Open(path, testutils.CreateOptions(db.EngineLevelDB))
	require.NoError(t, err)
	require.NoError(t, d.Put([]byte("k"), []byte("v")))
	require.NoError(t, d.Close())

	manifest := filepath.Join(path, keyspace.ManifestFile)
	require.NoError(t, os.WriteFile(manifest, []byte("engine: [unterminated"), 0o600))

	tests := []struct {
		name string
		fn   func() error
	}{
		{name: "open", fn: func() error {
			d, err := Open(path, nil)
			if err == nil {
				_ = d.Close()
			}
			return err
		}},
		{name: "open_with_engine", fn: func() error {
			d, err := Open(path, map[string]any{"engine": "leveldb"})
			if err == nil {
				_ = d.Close()
			}
			return err
		}},
		{name: "repair", fn: func() error { return Repair(path) }},
		{name: "destroy", fn: func() error { return Destroy(path) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fn()
			require.Error(t, err)
			assert.True(t, IsEngine(err))
			assert.ErrorIs(t, err, keyspace.ErrCorruptRecord)
		})
	}

	// nothing was removed or rewritten
	raw, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Equal(t, "engine: [unterminated", string(raw))
	_, err = os.Stat(filepath.Join(path, "CURRENT"))
	assert.NoError(t, err)
}

func TestOpenWithKeyspacesCreatesAllOrNone(t *testing.T) {
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			path := testutils.TempPath(t)
			values := testutils.CreateOptions(engine)
			values["create_missing_column_families"] = true

			_, err := OpenWithKeyspacesOptions(path, []string{"good", ""}, values)
			assert.ErrorIs(t, err, ErrInvalidKeyspace)

			d, err := Open(path, map[string]any{"engine": string(engine)})
			require.NoError(t, err)
			names, err := d.Keyspaces()
			require.NoError(t, err)
			assert.Equal(t, []string{DefaultKeyspace}, names)
			require.NoError(t, d.Close())

			listed, err := ListKeyspaces(path)
			require.NoError(t, err)
			assert.Equal(t, names, listed)

			// repeated declarations are created once
			d, err = OpenWithKeyspacesOptions(path, []string{"good", "good"}, values)
			require.NoError(t, err)
			names, err = d.Keyspaces()
			require.NoError(t, err)
			assert.Equal(t, []string{DefaultKeyspace, "good"}, names)
			require.NoError(t, d.Close())

			listed, err = ListKeyspaces(path)
			require.NoError(t, err)
			assert.Equal(t, names, listed)
		})
	}
}

func TestRepair(t *testing.T) {
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			path := testutils.TempPath(t)
			d, err := Open(path, testutils.CreateOptions(engine))
			require.NoError(t, err)
			require.NoError(t, d.CreateKeyspaceDefault("events"))
			require.NoError(t, d.PutKeyspace("events", []byte("e1"), []byte("boot")))
			require.NoError(t, d.Close())

			require.NoError(t, os.Remove(filepath.Join(path, keyspace.ManifestFile)))
			_, err = ListKeyspaces(path)
			require.Error(t, err)

			// the manifest is gone, so the engine must be named again
			if engine == db.EngineLevelDB {
				require.NoError(t, keyspace.WriteManifest(path, keyspace.Manifest{Engine: engine}))
			}
			require.NoError(t, Repair(path))

			names, err := ListKeyspaces(path)
			require.NoError(t, err)
			assert.Equal(t, []string{DefaultKeyspace, "events"}, names)

			d, err = Open(path, nil)
			require.NoError(t, err)
			defer d.Close() //nolint:errcheck
			value, err := d.GetKeyspace("events", []byte("e1"))
			require.NoError(t, err)
			assert.Equal(t, []byte("boot"), value)
		})
	}
}

func TestRepairMissingPath(t *testing.T) {
	err := Repair(testutils.TempPath(t))
	require.Error(t, err)
	assert.True(t, IsEngine(err))
}

func TestListKeyspaces(t *testing.T) {
	path := testutils.TempPath(t)
	d, err := OpenDefault(path)
	require.NoError(t, err)
	require.NoError(t, d.CreateKeyspaceDefault("b"))
	require.NoError(t, d.CreateKeyspaceDefault("a"))

	// readable while the handle is still open
	names, err := ListKeyspaces(path)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultKeyspace, "a", "b"}, names)

	require.NoError(t, d.DropKeyspace("b"))
	require.NoError(t, d.Close())

	names, err = ListKeyspaces(path)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultKeyspace, "a"}, names)

	_, err = ListKeyspaces(testutils.TempPath(t))
	assert.ErrorIs(t, err, keyspace.ErrNoManifest)
}

func TestTuningOptions(t *testing.T) {
	values := map[string]any{
		"create_if_missing":                      true,
		"set_max_open_files":                     256,
		"set_use_fsync":                          true,
		"set_bytes_per_sync":                     1 << 20,
		"optimize_for_point_lookup":              8,
		"set_max_write_buffer_number":            3,
		"set_write_buffer_size":                  8 << 20,
		"set_target_file_size_base":              4 << 20,
		"set_level_zero_stop_writes_trigger":     24,
		"set_level_zero_slowdown_writes_trigger": 12,
		"set_max_background_compactions":         2,
		"set_compaction_style":                   "level",
		"set_unheard_of_option":                  "ignored",
	}
	for _, engine := range testutils.Engines {
		t.Run(string(engine), func(t *testing.T) {
			values["engine"] = string(engine)
			d, err := Open(testutils.TempPath(t), values)
			require.NoError(t, err)
			defer d.Close() //nolint:errcheck

			require.NoError(t, d.Put([]byte("k"), []byte("v")))
			value, err := d.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), value)
		})
	}
}
