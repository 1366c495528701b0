package rocker

import (
	"sync"

	"github.com/eigerco/rocker/internal/keyspace"
	"github.com/eigerco/rocker/pkg/db"
)

// Direction is the order in which a cursor yields entries.
type Direction uint8

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

type anchor uint8

const (
	anchorStart anchor = iota
	anchorEnd
	anchorKey
)

// Mode is the starting position and direction of a cursor.
type Mode struct {
	anchor anchor
	key    []byte
	dir    Direction
}

// Start positions a cursor at the first key, iterating forward.
func Start() Mode {
	return Mode{anchor: anchorStart}
}

// End positions a cursor at the last key, iterating in reverse.
func End() Mode {
	return Mode{anchor: anchorEnd, dir: Reverse}
}

// From positions a cursor at key. Forward starts at the first key >= key,
// Reverse at the last key <= key.
func From(key []byte, dir Direction) Mode {
	return Mode{anchor: anchorKey, key: key, dir: dir}
}

// FromKey is From with the forward direction.
func FromKey(key []byte) Mode {
	return From(key, Forward)
}

// Direction reports the order the mode iterates in.
func (m Mode) Direction() Direction {
	return m.dir
}

// Cursor walks one keyspace across independent calls. Its native iterator is
// guarded by the cursor's own mutex, never by the DB lock. A cursor keeps
// its DB's engine open until Close.
type Cursor struct {
	mu     sync.Mutex
	db     *DB
	iter   db.Iterator
	ks     keyspace.Keyspace
	dir    Direction
	closed bool
}

// Iterate returns a cursor over the default keyspace.
func (d *DB) Iterate(mode Mode) (*Cursor, error) {
	return d.IterateKeyspace(DefaultKeyspace, mode)
}

// IterateKeyspace returns a cursor over the named keyspace.
func (d *DB) IterateKeyspace(name string, mode Mode) (*Cursor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ks, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	start, end := ks.Bounds()
	c, err := d.newCursor(ks, start, end, mode.dir)
	if err != nil {
		return nil, err
	}

	switch mode.anchor {
	case anchorStart:
		c.iter.First()
	case anchorEnd:
		c.iter.Last()
	case anchorKey:
		if mode.dir == Reverse {
			c.iter.SeekLE(ks.Key(mode.key))
		} else {
			c.iter.SeekGE(ks.Key(mode.key))
		}
	}
	return c, nil
}

// PrefixIterate returns a forward cursor over keys of the default keyspace
// that share prefix.
func (d *DB) PrefixIterate(prefix []byte) (*Cursor, error) {
	return d.PrefixIterateKeyspace(DefaultKeyspace, prefix)
}

// PrefixIterateKeyspace returns a forward cursor over keys of the named
// keyspace sharing prefix. With a keyspace prefix length the scan covers the
// keys sharing the first prefix_length bytes of prefix; without one it runs
// from prefix to the end of the keyspace.
func (d *DB) PrefixIterateKeyspace(name string, prefix []byte) (*Cursor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ks, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	start, end := ks.PrefixBounds(prefix)
	c, err := d.newCursor(ks, start, end, Forward)
	if err != nil {
		return nil, err
	}
	c.iter.First()
	return c, nil
}

// newCursor opens a native iterator over [start, end). The caller holds mu.
func (d *DB) newCursor(ks keyspace.Keyspace, start, end []byte, dir Direction) (*Cursor, error) {
	iter, err := d.store.NewIterator(start, end)
	if err != nil {
		return nil, engineError(err)
	}
	d.retain()
	cursorsOpened.Inc()
	return &Cursor{db: d, iter: iter, ks: ks, dir: dir}, nil
}

// Keyspace returns the name of the keyspace the cursor is bound to.
func (c *Cursor) Keyspace() string {
	return c.ks.Name
}

// Valid reports whether the next call to Next yields an entry.
func (c *Cursor) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.live() {
		return false
	}
	return c.iter.Valid()
}

// Next returns the entry under the cursor and advances it. It returns
// ErrExhausted past the last entry and ErrUnknownKeyspace once the keyspace
// has been dropped.
func (c *Cursor) Next() (key, value []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	opsNext.Inc()
	if c.closed {
		return nil, nil, ErrClosed
	}
	if !c.live() {
		return nil, nil, ErrUnknownKeyspace
	}
	if !c.iter.Valid() {
		if err := c.iter.Error(); err != nil {
			return nil, nil, engineError(err)
		}
		return nil, nil, ErrExhausted
	}

	key = c.ks.UserKey(c.iter.Key())
	value, err = c.iter.Value()
	if err != nil {
		return nil, nil, engineError(err)
	}
	if c.dir == Reverse {
		c.iter.Prev()
	} else {
		c.iter.Next()
	}
	return key, value, nil
}

// Close releases the native iterator and the cursor's DB reference. It is
// safe to call more than once.
func (c *Cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	cursorsClosed.Inc()

	iterErr := c.iter.Close()
	if err := c.db.release(); err != nil {
		return err
	}
	return engineError(iterErr)
}

func (c *Cursor) live() bool {
	_, ok := c.db.live.Load(c.ks.ID)
	return ok
}
