package rocker

import (
	"fmt"

	"github.com/eigerco/rocker/internal/keyspace"
)

// OpKind is the kind of a batch operation.
type OpKind uint8

const (
	OpPut OpKind = iota + 1
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one write in a batch. An empty Keyspace targets the default keyspace.
type Op struct {
	Kind     OpKind
	Keyspace string
	Key      []byte
	Value    []byte
}

func PutOp(key, value []byte) Op {
	return Op{Kind: OpPut, Key: key, Value: value}
}

func PutKeyspaceOp(name string, key, value []byte) Op {
	return Op{Kind: OpPut, Keyspace: name, Key: key, Value: value}
}

func DeleteOp(key []byte) Op {
	return Op{Kind: OpDelete, Key: key}
}

func DeleteKeyspaceOp(name string, key []byte) Op {
	return Op{Kind: OpDelete, Keyspace: name, Key: key}
}

// Apply writes ops atomically and returns how many were applied. Every
// keyspace is resolved before anything is staged, so an unknown name leaves
// the database untouched. An empty slice returns 0 without touching the
// engine.
func (d *DB) Apply(ops []Op) (int, error) {
	if len(ops) == 0 {
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	opsApply.Inc()
	resolved := make([]keyspace.Keyspace, len(ops))
	for i, op := range ops {
		name := op.Keyspace
		if name == "" {
			name = DefaultKeyspace
		}
		ks, err := d.resolve(name)
		if err != nil {
			return 0, err
		}
		resolved[i] = ks
	}

	batch := d.store.NewBatch()
	defer batch.Close() //nolint:errcheck // no-op after Commit

	for i, op := range ops {
		var err error
		switch op.Kind {
		case OpPut:
			err = batch.Put(resolved[i].Key(op.Key), op.Value)
		case OpDelete:
			err = batch.Delete(resolved[i].Key(op.Key))
		default:
			return 0, fmt.Errorf("%w: kind %d at %d", ErrInvalidOp, op.Kind, i)
		}
		if err != nil {
			return 0, engineError(err)
		}
	}

	count := batch.Count()
	if err := batch.Commit(); err != nil {
		return 0, engineError(err)
	}
	batchedOps.Add(count)
	return count, nil
}
