package leveldb

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/eigerco/rocker/pkg/db"
	"github.com/eigerco/rocker/pkg/db/options"
	"github.com/eigerco/rocker/pkg/log"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// bloomBitsPerKey is the filter density installed by optimize_for_point_lookup.
const bloomBitsPerKey = 10

// KVStore implements db.KVStore using LevelDB.
type KVStore struct {
	db     *leveldb.DB
	write  *opt.WriteOptions
	path   string
	closed bool
	mu     sync.RWMutex
}

// Open opens or creates a LevelDB database at path.
func Open(path string, o options.Options) (*KVStore, error) {
	ldb, err := leveldb.OpenFile(path, newLevelDBOptions(o))
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	log.Engine.Debug().Str("engine", string(db.EngineLevelDB)).Str("path", path).Msg("opened")
	return &KVStore{db: ldb, write: &opt.WriteOptions{Sync: o.UseFsync}, path: path}, nil
}

// newLevelDBOptions maps the engine-neutral options onto goleveldb's.
// Zero fields keep goleveldb's defaults.
func newLevelDBOptions(o options.Options) *opt.Options {
	opts := &opt.Options{
		ErrorIfMissing:         !o.CreateIfMissing,
		OpenFilesCacheCapacity: o.MaxOpenFiles,
		WriteBuffer:            int(o.WriteBufferSize),
		CompactionTableSize:    int(o.TargetFileSizeBase),
		WriteL0PauseTrigger:    o.Level0StopWritesTrigger,
		WriteL0SlowdownTrigger: o.Level0SlowdownWritesTrigger,
		DisableSeeksCompaction: o.DisableAutoCompactions,
	}
	if o.PointLookupCacheMB > 0 {
		opts.BlockCacheCapacity = int(o.PointLookupCacheMB << 20)
		opts.Filter = filter.NewBloomFilter(bloomBitsPerKey)
	}
	return opts
}

// Layout lists the files goleveldb keeps in its directory.
var Layout = db.Layout{
	Markers: []string{"CURRENT"},
	Files: []string{
		"CURRENT", "CURRENT.bak", "LOCK", "LOG", "LOG.old", "MANIFEST-*",
		"*.log", "*.ldb", "*.sst", "*.tmp",
	},
}

// Destroy removes the engine files at path, plus any files named in extra,
// and then the directory once it is empty. Unrelated files are left in place.
// A missing path is not an error; a directory goleveldb does not own is.
func Destroy(path string, extra ...string) error {
	return db.RemoveFiles(path, Layout.With(extra...))
}

// Repair rebuilds the manifest from the table files at path.
func Repair(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("repair leveldb %q: %w", path, err)
	}
	ldb, err := leveldb.RecoverFile(path, nil)
	if err != nil {
		return fmt.Errorf("repair leveldb %q: %w", path, err)
	}
	return ldb.Close()
}

func (l *KVStore) Get(key []byte) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, db.ErrClosed
	}

	val, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrNotFound
	}
	return val, err
}

func (l *KVStore) Put(key, value []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return db.ErrClosed
	}
	return l.db.Put(key, value, l.write)
}

func (l *KVStore) Delete(key []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return db.ErrClosed
	}
	return l.db.Delete(key, l.write)
}

// DeleteRange has no native counterpart in LevelDB; the keys in range are
// collected and deleted in one batch.
func (l *KVStore) DeleteRange(start, end []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return db.ErrClosed
	}

	batch := new(leveldb.Batch)
	if err := l.stageRangeDelete(batch, start, end); err != nil {
		return err
	}
	return l.db.Write(batch, l.write)
}

func (l *KVStore) stageRangeDelete(batch *leveldb.Batch, start, end []byte) error {
	iter := l.db.NewIterator(&util.Range{Start: start, Limit: end}, nil)
	defer iter.Release()
	for iter.Next() {
		batch.Delete(iter.Key())
	}
	return iter.Error()
}

func (l *KVStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	log.Engine.Debug().Str("engine", string(db.EngineLevelDB)).Str("path", l.path).Msg("closed")
	return l.db.Close()
}
