package rocker

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/eigerco/rocker/internal/keyspace"
	"github.com/eigerco/rocker/pkg/db"
	"github.com/eigerco/rocker/pkg/db/leveldb"
	"github.com/eigerco/rocker/pkg/db/options"
	"github.com/eigerco/rocker/pkg/db/pebble"
	"github.com/eigerco/rocker/pkg/log"
	"github.com/puzpuzpuz/xsync/v3"
)

// DB is a handle to one open engine instance. It is safe for concurrent use.
//
// Point reads take the read lock and writes the write lock, each for the span
// of a single engine call. Cursors hold a reference to the DB so the engine
// stays open until the last of them is closed, even after DB.Close.
type DB struct {
	mu       sync.RWMutex
	store    db.KVStore
	engine   db.Engine
	path     string
	registry *keyspace.Registry // guarded by mu
	closed   bool               // guarded by mu

	// live holds the ids of resolvable keyspaces so cursors can detect a drop
	// without taking mu.
	live *xsync.MapOf[uint32, struct{}]
	refs atomic.Int64
}

// Open opens the database at path with options given as a name to value
// mapping. Unknown option names are ignored.
func Open(path string, values map[string]any) (*DB, error) {
	o, err := options.Translate(values)
	if err != nil {
		return nil, configError(err)
	}
	return OpenOptions(path, o)
}

// OpenOptions opens the database at path with translated options.
func OpenOptions(path string, o options.Options) (*DB, error) {
	return open(path, o, nil)
}

// OpenDefault opens the database at path with default options, creating it
// if it does not exist.
func OpenDefault(path string) (*DB, error) {
	o := options.Default()
	o.CreateIfMissing = true
	return open(path, o, nil)
}

// OpenWithKeyspaces opens an existing database with default options and
// requires every named keyspace to exist.
func OpenWithKeyspaces(path string, names []string) (*DB, error) {
	return open(path, options.Default(), names)
}

// OpenWithKeyspacesOptions opens the database declaring a fixed set of
// keyspaces. Missing keyspaces fail the open unless
// create_missing_column_families is set, in which case they are created.
func OpenWithKeyspacesOptions(path string, names []string, values map[string]any) (*DB, error) {
	o, err := options.Translate(values)
	if err != nil {
		return nil, configError(err)
	}
	return open(path, o, names)
}

func open(path string, o options.Options, declared []string) (*DB, error) {
	engine, err := resolveEngine(path, o.Engine)
	if err != nil {
		return nil, err
	}

	store, err := openStore(engine, path, o)
	if err != nil {
		return nil, configError(err)
	}

	registry, err := keyspace.LoadRegistry(store, o.PrefixLength)
	if err != nil {
		_ = store.Close()
		return nil, engineError(err)
	}

	d := &DB{
		store:    store,
		engine:   engine,
		path:     path,
		registry: registry,
		live:     xsync.NewMapOf[uint32, struct{}](),
	}
	d.refs.Store(1)
	for _, name := range registry.Names() {
		ks, _ := registry.Lookup(name)
		d.live.Store(ks.ID, struct{}{})
	}

	var missing []string
	for _, name := range declared {
		if _, ok := registry.Lookup(name); ok || slices.Contains(missing, name) {
			continue
		}
		if !o.CreateMissingKeyspaces {
			_ = store.Close()
			return nil, fmt.Errorf("%w %q: declared but missing", ErrUnknownKeyspace, name)
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		if err := d.createKeyspaces(missing, o.PrefixLength); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	if err := d.writeManifest(); err != nil {
		_ = store.Close()
		return nil, engineError(err)
	}

	dbsOpened.Inc()
	log.Rocker.Debug().
		Str("path", path).
		Str("engine", string(engine)).
		Strs("keyspaces", registry.Names()).
		Msg("database opened")
	return d, nil
}

// resolveEngine picks the backend: the explicit choice, else the one recorded
// on disk, else pebble. An explicit choice must match what is on disk.
func resolveEngine(path string, requested db.Engine) (db.Engine, error) {
	m, err := keyspace.ReadManifest(path)
	if err != nil && !errors.Is(err, keyspace.ErrNoManifest) {
		return "", engineError(err)
	}
	if m.Engine == "" {
		if requested == "" {
			return db.EnginePebble, nil
		}
		return requested, nil
	}
	if requested != "" && requested != m.Engine {
		return "", configError(fmt.Errorf(errEngineMismatch, path, m.Engine, requested))
	}
	return m.Engine, nil
}

func openStore(engine db.Engine, path string, o options.Options) (db.KVStore, error) {
	switch engine {
	case db.EngineLevelDB:
		return leveldb.Open(path, o)
	default:
		return pebble.Open(path, o)
	}
}

// Path returns the filesystem path the database was opened at.
func (d *DB) Path() string {
	return d.path
}

// Engine returns the backend serving the database.
func (d *DB) Engine() db.Engine {
	return d.engine
}

// Close releases the caller's reference. Further operations on the DB fail
// with ErrClosed; the engine itself closes once every cursor is closed too.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	return d.release()
}

func (d *DB) retain() {
	d.refs.Add(1)
}

func (d *DB) release() error {
	if d.refs.Add(-1) > 0 {
		return nil
	}
	dbsReleased.Inc()
	log.Rocker.Debug().Str("path", d.path).Msg("database released")
	return engineError(d.store.Close())
}

func (d *DB) writeManifest() error {
	return keyspace.WriteManifest(d.path, keyspace.Manifest{
		Engine:    d.engine,
		Keyspaces: d.registry.Names(),
	})
}

// manifestFiles are the files rocker keeps next to the engine's own.
var manifestFiles = []string{keyspace.ManifestFile, keyspace.ManifestFile + ".*.tmp"}

// Destroy removes the database at path: the engine's files and the keyspace
// manifest, then the directory once it is empty. Anything else in the
// directory is left alone, and a directory holding neither an engine nor a
// manifest is refused. A missing path is not an error. It must not be called
// while a handle on path is open.
func Destroy(path string) error {
	engine, err := keyspace.ManifestEngine(path, db.EnginePebble)
	if err != nil {
		return engineError(err)
	}
	switch engine {
	case db.EngineLevelDB:
		err = leveldb.Destroy(path, manifestFiles...)
	default:
		err = pebble.Destroy(path, manifestFiles...)
	}
	if err != nil {
		return engineError(err)
	}
	log.Rocker.Info().Str("path", path).Msg("database destroyed")
	return nil
}

// Repair recovers the database at path and rebuilds its keyspace manifest.
// It must not be called while a handle on path is open.
func Repair(path string) error {
	engine, err := keyspace.ManifestEngine(path, db.EnginePebble)
	if err != nil {
		return engineError(err)
	}

	switch engine {
	case db.EngineLevelDB:
		err = leveldb.Repair(path)
	default:
		err = pebble.Repair(path)
	}
	if err != nil {
		return engineError(err)
	}

	d, err := open(path, options.Options{Engine: engine}, nil)
	if err != nil {
		return err
	}
	if err := d.Close(); err != nil {
		return err
	}
	log.Rocker.Info().Str("path", path).Str("engine", string(engine)).Msg("database repaired")
	return nil
}

// ListKeyspaces returns the keyspace names persisted at path, default first.
// It reads the on-disk manifest and never opens the engine.
func ListKeyspaces(path string) ([]string, error) {
	m, err := keyspace.ReadManifest(path)
	if err != nil {
		return nil, engineError(err)
	}
	return m.Keyspaces, nil
}
