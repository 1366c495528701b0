// Package dispatch is the call surface a host runtime drives. Databases and
// cursors are exposed as opaque handles; arguments arrive already decoded and
// every call returns a tagged Result.
package dispatch

import (
	"fmt"
	"sync/atomic"

	"github.com/eigerco/rocker/pkg/log"
	"github.com/eigerco/rocker/pkg/rocker"
	"github.com/puzpuzpuz/xsync/v3"
)

// ProtocolVersion identifies the call contract.
const ProtocolVersion = "vn1"

// Handle names a live database or cursor. Zero is never issued.
type Handle uint64

// Dispatcher owns the handle tables. It is safe for concurrent use; all
// locking beyond the tables is done by the database and cursor themselves.
type Dispatcher struct {
	next    atomic.Uint64
	dbs     *xsync.MapOf[Handle, *rocker.DB]
	cursors *xsync.MapOf[Handle, *rocker.Cursor]
}

func New() *Dispatcher {
	return &Dispatcher{
		dbs:     xsync.NewMapOf[Handle, *rocker.DB](),
		cursors: xsync.NewMapOf[Handle, *rocker.Cursor](),
	}
}

// Version returns the protocol version tag.
func (d *Dispatcher) Version() Result {
	return ok(ProtocolVersion)
}

func (d *Dispatcher) Open(path string, options map[string]any) Result {
	return d.addDB(rocker.Open(path, options))
}

func (d *Dispatcher) OpenDefault(path string) Result {
	return d.addDB(rocker.OpenDefault(path))
}

// OpenKeyspaces opens path declaring the given keyspaces, all of which must
// exist.
func (d *Dispatcher) OpenKeyspaces(path string, names []string) Result {
	return d.addDB(rocker.OpenWithKeyspaces(path, names))
}

func (d *Dispatcher) Destroy(path string) Result {
	return reply(nil, rocker.Destroy(path))
}

func (d *Dispatcher) Repair(path string) Result {
	return reply(nil, rocker.Repair(path))
}

func (d *Dispatcher) ListKeyspaces(path string) Result {
	return reply(rocker.ListKeyspaces(path))
}

func (d *Dispatcher) Path(h Handle) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return ok(db.Path())
}

func (d *Dispatcher) Get(h Handle, key []byte) Result {
	return d.GetKeyspace(h, rocker.DefaultKeyspace, key)
}

func (d *Dispatcher) Put(h Handle, key, value []byte) Result {
	return d.PutKeyspace(h, rocker.DefaultKeyspace, key, value)
}

func (d *Dispatcher) Delete(h Handle, key []byte) Result {
	return d.DeleteKeyspace(h, rocker.DefaultKeyspace, key)
}

func (d *Dispatcher) GetKeyspace(h Handle, name string, key []byte) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return reply(db.GetKeyspace(name, key))
}

func (d *Dispatcher) PutKeyspace(h Handle, name string, key, value []byte) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return reply(nil, db.PutKeyspace(name, key, value))
}

func (d *Dispatcher) DeleteKeyspace(h Handle, name string, key []byte) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return reply(nil, db.DeleteKeyspace(name, key))
}

// Tx applies tagged operation tuples atomically and returns how many were
// applied.
func (d *Dispatcher) Tx(h Handle, terms []any) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	ops, err := DecodeOps(terms)
	if err != nil {
		return fail(err)
	}
	return reply(db.Apply(ops))
}

func (d *Dispatcher) CreateKeyspaceDefault(h Handle, name string) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return reply(nil, db.CreateKeyspaceDefault(name))
}

func (d *Dispatcher) CreateKeyspace(h Handle, name string, options map[string]any) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return reply(nil, db.CreateKeyspace(name, options))
}

func (d *Dispatcher) DropKeyspace(h Handle, name string) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return reply(nil, db.DropKeyspace(name))
}

func (d *Dispatcher) Iterator(h Handle, mode []any) Result {
	return d.IteratorKeyspace(h, rocker.DefaultKeyspace, mode)
}

func (d *Dispatcher) IteratorKeyspace(h Handle, name string, mode []any) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	m, err := DecodeMode(mode)
	if err != nil {
		return fail(err)
	}
	return d.addCursor(db.IterateKeyspace(name, m))
}

func (d *Dispatcher) PrefixIterator(h Handle, prefix []byte) Result {
	return d.PrefixIteratorKeyspace(h, rocker.DefaultKeyspace, prefix)
}

func (d *Dispatcher) PrefixIteratorKeyspace(h Handle, name string, prefix []byte) Result {
	db, err := d.db(h)
	if err != nil {
		return fail(err)
	}
	return d.addCursor(db.PrefixIterateKeyspace(name, prefix))
}

func (d *Dispatcher) IteratorValid(h Handle) Result {
	c, err := d.cursor(h)
	if err != nil {
		return fail(err)
	}
	return ok(c.Valid())
}

func (d *Dispatcher) Next(h Handle) Result {
	c, err := d.cursor(h)
	if err != nil {
		return fail(err)
	}
	key, value, err := c.Next()
	if err != nil {
		return fail(err)
	}
	return ok(Entry{Key: key, Value: value})
}

// Release drops a database or cursor handle. A released database stays open
// until every cursor created from it is released as well.
func (d *Dispatcher) Release(h Handle) Result {
	if db, found := d.dbs.LoadAndDelete(h); found {
		return reply(nil, db.Close())
	}
	if c, found := d.cursors.LoadAndDelete(h); found {
		return reply(nil, c.Close())
	}
	return fail(fmt.Errorf("%w: unknown handle %d", ErrBadArg, h))
}

// Close releases every handle still held.
func (d *Dispatcher) Close() error {
	var first error
	d.cursors.Range(func(h Handle, c *rocker.Cursor) bool {
		d.cursors.Delete(h)
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		return true
	})
	d.dbs.Range(func(h Handle, db *rocker.DB) bool {
		d.dbs.Delete(h)
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
		return true
	})
	return first
}

// Handles returns how many databases and cursors are held.
func (d *Dispatcher) Handles() (dbs, cursors int) {
	return d.dbs.Size(), d.cursors.Size()
}

func (d *Dispatcher) addDB(db *rocker.DB, err error) Result {
	if err != nil {
		return fail(err)
	}
	h := Handle(d.next.Add(1))
	d.dbs.Store(h, db)
	log.Rocker.Debug().Uint64("handle", uint64(h)).Str("path", db.Path()).Msg("database handle issued")
	return ok(h)
}

func (d *Dispatcher) addCursor(c *rocker.Cursor, err error) Result {
	if err != nil {
		return fail(err)
	}
	h := Handle(d.next.Add(1))
	d.cursors.Store(h, c)
	return ok(h)
}

func (d *Dispatcher) db(h Handle) (*rocker.DB, error) {
	db, found := d.dbs.Load(h)
	if !found {
		return nil, fmt.Errorf("%w: no database handle %d", ErrBadArg, h)
	}
	return db, nil
}

func (d *Dispatcher) cursor(h Handle) (*rocker.Cursor, error) {
	c, found := d.cursors.Load(h)
	if !found {
		return nil, fmt.Errorf("%w: no cursor handle %d", ErrBadArg, h)
	}
	return c, nil
}
