package keyspace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/eigerco/rocker/pkg/db"
)

const (
	recordTag = "keyspace/"
	nextIDTag = "next-id"
)

// Registry is the set of keyspaces persisted in an engine instance.
// It is not safe for concurrent use; callers guard it with their own lock.
type Registry struct {
	byName map[string]Keyspace
	nextID uint32
}

// LoadRegistry reads every registry record from the metadata range of store.
// The default keyspace is always present with the given prefix length.
func LoadRegistry(store db.KVStore, defaultPrefixLength int) (*Registry, error) {
	r := &Registry{
		byName: map[string]Keyspace{DefaultName: Default(defaultPrefixLength)},
		nextID: FirstUserID,
	}

	start := makeKey(MetaID, []byte(recordTag))
	iter, err := store.NewIterator(start, PrefixEnd(start))
	if err != nil {
		return nil, err
	}
	defer iter.Close() //nolint:errcheck // read-only iterator

	for ok := iter.First(); ok; ok = iter.Next() {
		name := string(iter.Key()[len(start):])
		value, err := iter.Value()
		if err != nil {
			return nil, err
		}
		ks, err := decodeRecord(name, value)
		if err != nil {
			return nil, err
		}
		r.byName[name] = ks
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	raw, err := store.Get(nextIDKey())
	switch {
	case err == nil:
		if len(raw) != idSize {
			return nil, fmt.Errorf("%w: next id has %d bytes", ErrCorruptRecord, len(raw))
		}
		r.nextID = binary.BigEndian.Uint32(raw)
	case !errors.Is(err, db.ErrNotFound):
		return nil, err
	}
	return r, nil
}

// Lookup resolves a keyspace by name.
func (r *Registry) Lookup(name string) (Keyspace, bool) {
	ks, ok := r.byName[name]
	return ks, ok
}

// Names returns every registered keyspace name, default first.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	names = append(names, DefaultName)
	for name := range r.byName {
		if name != DefaultName {
			names = append(names, name)
		}
	}
	sort.Strings(names[1:])
	return names
}

// Len returns the number of keyspaces including the default one.
func (r *Registry) Len() int {
	return len(r.byName)
}

// StageCreate allocates an id for name and stages its record into batch.
// The registry is only updated by Commit once the batch is durable.
func (r *Registry) StageCreate(batch db.Batch, name string, prefixLength int) (Keyspace, error) {
	created, err := r.StageCreateAll(batch, []string{name}, prefixLength)
	if err != nil {
		return Keyspace{}, err
	}
	return created[0], nil
}

// StageCreateAll allocates consecutive ids for names and stages their records
// into batch, so that either all of them or none are created. Any name that
// is invalid or already taken fails the whole call.
func (r *Registry) StageCreateAll(batch db.Batch, names []string, prefixLength int) ([]Keyspace, error) {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if err := ValidateName(name); err != nil {
			return nil, err
		}
		if _, ok := r.byName[name]; ok {
			return nil, fmt.Errorf("%w: %q is registered", ErrDuplicateName, name)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %q given twice", ErrDuplicateName, name)
		}
		seen[name] = struct{}{}
	}

	created := make([]Keyspace, 0, len(names))
	id := r.nextID
	for _, name := range names {
		ks := Keyspace{Name: name, ID: id, PrefixLength: prefixLength}
		if err := batch.Put(recordKey(name), encodeRecord(ks)); err != nil {
			return nil, err
		}
		created = append(created, ks)
		id++
	}
	next := make([]byte, idSize)
	binary.BigEndian.PutUint32(next, id)
	if err := batch.Put(nextIDKey(), next); err != nil {
		return nil, err
	}
	return created, nil
}

// StageDrop stages removal of the keyspace record and all of its data.
func (r *Registry) StageDrop(batch db.Batch, ks Keyspace) error {
	if err := batch.Delete(recordKey(ks.Name)); err != nil {
		return err
	}
	start, end := ks.Bounds()
	return batch.DeleteRange(start, end)
}

// Added records a keyspace whose creation batch was committed.
func (r *Registry) Added(ks Keyspace) {
	r.byName[ks.Name] = ks
	if ks.ID >= r.nextID {
		r.nextID = ks.ID + 1
	}
}

// Removed forgets a keyspace whose drop batch was committed.
func (r *Registry) Removed(name string) {
	delete(r.byName, name)
}

func recordKey(name string) []byte {
	return makeKey(MetaID, []byte(recordTag+name))
}

func nextIDKey() []byte {
	return makeKey(MetaID, []byte(nextIDTag))
}

func encodeRecord(ks Keyspace) []byte {
	buf := make([]byte, idSize, idSize+binary.MaxVarintLen64)
	binary.BigEndian.PutUint32(buf, ks.ID)
	return binary.AppendUvarint(buf, uint64(ks.PrefixLength))
}

func decodeRecord(name string, value []byte) (Keyspace, error) {
	if len(value) < idSize+1 {
		return Keyspace{}, fmt.Errorf("%w: %q has %d bytes", ErrCorruptRecord, name, len(value))
	}
	prefixLength, n := binary.Uvarint(value[idSize:])
	if n <= 0 {
		return Keyspace{}, fmt.Errorf("%w: %q prefix length", ErrCorruptRecord, name)
	}
	return Keyspace{
		Name:         name,
		ID:           binary.BigEndian.Uint32(value),
		PrefixLength: int(prefixLength),
	}, nil
}
