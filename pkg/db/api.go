package db

// KVStore represents a native ordered key-value engine instance. Implementations
// are not required to be safe for concurrent mutation; callers serialize access.
type KVStore interface {
	Writer
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// DeleteRange removes every key in [start, end).
	DeleteRange(start, end []byte) error
	NewBatch() Batch
	// NewIterator returns an unpositioned iterator over [start, end).
	// A nil bound means unbounded on that side.
	NewIterator(start, end []byte) (Iterator, error)
	Close() error
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch represents an atomic batch of operations.
// All operations in a batch are performed atomically.
type Batch interface {
	Writer
	Delete(key []byte) error
	DeleteRange(start, end []byte) error
	// Count returns the number of staged operations.
	Count() int
	Commit() error
	Close() error
}

// Iterator provides sequential access over a range of key-value pairs.
// A new iterator is unpositioned until one of the positioning methods is called.
// Iterators must be closed after use.
type Iterator interface {
	First() bool
	Last() bool
	// SeekGE positions at the first key >= key.
	SeekGE(key []byte) bool
	// SeekLE positions at the last key <= key.
	SeekLE(key []byte) bool
	Next() bool
	Prev() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Error() error
	Close() error
}

// Engine names a native backend.
type Engine string

const (
	EnginePebble  Engine = "pebble"
	EngineLevelDB Engine = "leveldb"
)
