package leveldb

import (
	"sync/atomic"

	"github.com/eigerco/rocker/pkg/db"
	"github.com/syndtr/goleveldb/leveldb"
)

type Batch struct {
	store *KVStore
	batch *leveldb.Batch
	done  atomic.Bool
}

func (l *KVStore) NewBatch() db.Batch {
	return &Batch{
		store: l,
		batch: new(leveldb.Batch),
	}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Put(key, value)
	return nil
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.batch.Delete(key)
	return nil
}

// DeleteRange stages a delete for every key present in [start, end) at the
// time of the call.
func (b *Batch) DeleteRange(start, end []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return db.ErrClosed
	}
	return b.store.stageRangeDelete(b.batch, start, end)
}

func (b *Batch) Count() int {
	return b.batch.Len()
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()
	if b.store.closed {
		return db.ErrClosed
	}
	if err := b.store.db.Write(b.batch, b.store.write); err != nil {
		return err
	}
	b.done.Store(true)
	return nil
}

func (b *Batch) Close() error {
	if b.done.CompareAndSwap(false, true) {
		b.batch.Reset()
	}
	return nil
}
