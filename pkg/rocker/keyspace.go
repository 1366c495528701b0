package rocker

import (
	"errors"
	"fmt"

	"github.com/eigerco/rocker/internal/keyspace"
	"github.com/eigerco/rocker/pkg/db"
	"github.com/eigerco/rocker/pkg/db/options"
	"github.com/eigerco/rocker/pkg/log"
)

// DefaultKeyspace is the name of the keyspace that always exists.
const DefaultKeyspace = keyspace.DefaultName

// resolve looks name up in the registry. The caller holds mu.
func (d *DB) resolve(name string) (keyspace.Keyspace, error) {
	if d.closed {
		return keyspace.Keyspace{}, ErrClosed
	}
	ks, ok := d.registry.Lookup(name)
	if !ok {
		return keyspace.Keyspace{}, fmt.Errorf("%w %q", ErrUnknownKeyspace, name)
	}
	return ks, nil
}

// Get returns the value stored under key in the default keyspace.
func (d *DB) Get(key []byte) ([]byte, error) {
	return d.GetKeyspace(DefaultKeyspace, key)
}

// Put stores value under key in the default keyspace.
func (d *DB) Put(key, value []byte) error {
	return d.PutKeyspace(DefaultKeyspace, key, value)
}

// Delete removes key from the default keyspace. Deleting an absent key
// succeeds.
func (d *DB) Delete(key []byte) error {
	return d.DeleteKeyspace(DefaultKeyspace, key)
}

// GetKeyspace returns the value stored under key in the named keyspace, or
// ErrNotFound.
func (d *DB) GetKeyspace(name string, key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	opsGet.Inc()
	ks, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	value, err := d.store.Get(ks.Key(key))
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineError(err)
	}
	return value, nil
}

// PutKeyspace stores value under key in the named keyspace.
func (d *DB) PutKeyspace(name string, key, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opsPut.Inc()
	ks, err := d.resolve(name)
	if err != nil {
		return err
	}
	return engineError(d.store.Put(ks.Key(key), value))
}

// DeleteKeyspace removes key from the named keyspace.
func (d *DB) DeleteKeyspace(name string, key []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opsDelete.Inc()
	ks, err := d.resolve(name)
	if err != nil {
		return err
	}
	return engineError(d.store.Delete(ks.Key(key)))
}

// Keyspaces returns the names resolvable on this handle, default first.
func (d *DB) Keyspaces() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}
	return d.registry.Names(), nil
}

// CreateKeyspace creates a keyspace configured by an option mapping. Only
// prefix_length applies per keyspace; engine tuning is fixed at open.
func (d *DB) CreateKeyspace(name string, values map[string]any) error {
	o, err := options.Translate(values)
	if err != nil {
		return configError(err)
	}
	return d.CreateKeyspaceOptions(name, o)
}

// CreateKeyspaceDefault creates a keyspace with default options.
func (d *DB) CreateKeyspaceDefault(name string) error {
	return d.CreateKeyspaceOptions(name, options.Default())
}

// CreateKeyspaceOptions creates a keyspace with translated options.
func (d *DB) CreateKeyspaceOptions(name string, o options.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opsCreateKeyspace.Inc()
	if d.closed {
		return ErrClosed
	}
	if err := d.createKeyspaces([]string{name}, o.PrefixLength); err != nil {
		return err
	}
	return engineError(d.writeManifest())
}

// createKeyspaces persists registry records for names in a single batch, so
// either every keyspace is created or none is. The caller holds mu or owns d
// exclusively.
func (d *DB) createKeyspaces(names []string, prefixLength int) error {
	for _, name := range names {
		if _, ok := d.registry.Lookup(name); ok {
			return fmt.Errorf("%w: %q", ErrKeyspaceExists, name)
		}
		if err := keyspace.ValidateName(name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidKeyspace, err)
		}
	}

	batch := d.store.NewBatch()
	defer batch.Close() //nolint:errcheck // no-op after Commit

	created, err := d.registry.StageCreateAll(batch, names, prefixLength)
	if errors.Is(err, keyspace.ErrDuplicateName) {
		return fmt.Errorf("%w: %w", ErrKeyspaceExists, err)
	}
	if err != nil {
		return engineError(err)
	}
	if err := batch.Commit(); err != nil {
		return engineError(err)
	}

	for _, ks := range created {
		d.registry.Added(ks)
		d.live.Store(ks.ID, struct{}{})
		log.Rocker.Info().
			Str("keyspace", ks.Name).
			Uint32("id", ks.ID).
			Int("prefix_length", prefixLength).
			Msg("keyspace created")
	}
	return nil
}

// DropKeyspace removes a keyspace and all of its data in one atomic write.
// Cursors scoped to it stop advancing with ErrUnknownKeyspace.
func (d *DB) DropKeyspace(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opsDropKeyspace.Inc()
	if name == DefaultKeyspace {
		return fmt.Errorf(errDropDefault, ErrInvalidKeyspace)
	}
	ks, err := d.resolve(name)
	if err != nil {
		return err
	}

	batch := d.store.NewBatch()
	defer batch.Close() //nolint:errcheck // no-op after Commit

	if err := d.registry.StageDrop(batch, ks); err != nil {
		return engineError(err)
	}
	if err := batch.Commit(); err != nil {
		return engineError(err)
	}
	d.registry.Removed(name)
	d.live.Delete(ks.ID)

	log.Rocker.Info().Str("keyspace", name).Uint32("id", ks.ID).Msg("keyspace dropped")
	return engineError(d.writeManifest())
}
