package pebble

import (
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/eigerco/rocker/pkg/db"
)

type Batch struct {
	batch *pebble.Batch
	write *pebble.WriteOptions
	done  atomic.Bool
}

func (p *KVStore) NewBatch() db.Batch {
	return &Batch{
		batch: p.db.NewBatch(),
		write: p.write,
	}
}

func (b *Batch) Put(key, value []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	return b.batch.Set(key, value, nil)
}

func (b *Batch) Delete(key []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	return b.batch.Delete(key, nil)
}

func (b *Batch) DeleteRange(start, end []byte) error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	return b.batch.DeleteRange(start, end, nil)
}

func (b *Batch) Count() int {
	return int(b.batch.Count())
}

func (b *Batch) Commit() error {
	if b.done.Load() {
		return db.ErrBatchDone
	}
	if err := b.batch.Commit(b.write); err != nil {
		return err
	}
	b.done.Store(true)
	return b.batch.Close()
}

func (b *Batch) Close() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	return b.batch.Close()
}
