package pebble

import (
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/eigerco/rocker/pkg/db"
	"github.com/eigerco/rocker/pkg/db/options"
	"github.com/eigerco/rocker/pkg/log"
)

// bloomBitsPerKey is the filter density installed by optimize_for_point_lookup.
const bloomBitsPerKey = 10

type KVStore struct {
	db     *pebble.DB
	write  *pebble.WriteOptions
	path   string
	closed bool
	mu     sync.RWMutex
}

// Open opens or creates a pebble database at path.
func Open(path string, o options.Options) (*KVStore, error) {
	opts := newPebbleOptions(o)
	if opts.Cache != nil {
		// the DB takes its own reference
		defer opts.Cache.Unref()
	}

	pdb, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}

	write := pebble.NoSync
	if o.UseFsync {
		write = pebble.Sync
	}

	log.Engine.Debug().Str("engine", string(db.EnginePebble)).Str("path", path).Msg("opened")
	return &KVStore{db: pdb, write: write, path: path}, nil
}

// newPebbleOptions maps the engine-neutral options onto pebble's.
// Zero fields are left for pebble's EnsureDefaults.
func newPebbleOptions(o options.Options) *pebble.Options {
	opts := &pebble.Options{
		ErrorIfNotExists:            !o.CreateIfMissing,
		MaxOpenFiles:                o.MaxOpenFiles,
		BytesPerSync:                int(o.BytesPerSync),
		MemTableSize:                o.WriteBufferSize,
		MemTableStopWritesThreshold: o.MaxWriteBufferNumber,
		L0StopWritesThreshold:       o.Level0StopWritesTrigger,
		L0CompactionThreshold:       o.Level0SlowdownWritesTrigger,
		DisableAutomaticCompactions: o.DisableAutoCompactions,
	}

	if n := o.MaxBackgroundCompactions; n > 0 {
		opts.MaxConcurrentCompactions = func() int { return n }
	}

	level := pebble.LevelOptions{}
	if o.TargetFileSizeBase > 0 {
		level.TargetFileSize = int64(o.TargetFileSizeBase)
	}
	if o.PointLookupCacheMB > 0 {
		opts.Cache = pebble.NewCache(int64(o.PointLookupCacheMB) << 20)
		level.FilterPolicy = bloom.FilterPolicy(bloomBitsPerKey)
	}
	// levels past the first inherit from the last configured one
	opts.Levels = []pebble.LevelOptions{level}

	return opts
}

// Layout lists the files pebble keeps in its directory.
var Layout = db.Layout{
	Markers: []string{"CURRENT", "marker.*"},
	Files: []string{
		"CURRENT", "LOCK", "LOG", "LOG.*", "MANIFEST-*", "OPTIONS-*",
		"marker.*", "*.log", "*.sst", "*.dbtmp",
	},
}

// Destroy removes the engine files at path, plus any files named in extra,
// and then the directory once it is empty. Unrelated files are left in place.
// A missing path is not an error; a directory pebble does not own is.
func Destroy(path string, extra ...string) error {
	return db.RemoveFiles(path, Layout.With(extra...))
}

// Repair recovers a database by opening it, which replays the write-ahead log
// and rebuilds the in-memory state, then closing it again.
func Repair(path string) error {
	pdb, err := pebble.Open(path, &pebble.Options{ErrorIfNotExists: true})
	if err != nil {
		return err
	}
	if err := pdb.Flush(); err != nil {
		_ = pdb.Close()
		return err
	}
	return pdb.Close()
}

func (p *KVStore) Get(key []byte) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, db.ErrClosed
	}

	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close() //nolint:errcheck // closer never fails

	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

func (p *KVStore) Put(key, value []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return db.ErrClosed
	}

	return p.db.Set(key, value, p.write)
}

func (p *KVStore) Delete(key []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return db.ErrClosed
	}

	return p.db.Delete(key, p.write)
}

func (p *KVStore) DeleteRange(start, end []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return db.ErrClosed
	}

	return p.db.DeleteRange(start, end, p.write)
}

func (p *KVStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	log.Engine.Debug().Str("engine", string(db.EnginePebble)).Str("path", p.path).Msg("closed")
	return p.db.Close()
}
