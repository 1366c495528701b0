package keyspace

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultName is the keyspace that always exists and backs whole-database
	// operations.
	DefaultName = "default"

	// MetaID holds registry records; it is never exposed as a keyspace.
	MetaID uint32 = 0
	// DefaultID is the id of the default keyspace.
	DefaultID uint32 = 1
	// FirstUserID is the first id handed to a created keyspace.
	FirstUserID uint32 = 2

	idSize = 4
)

var (
	ErrInvalidName   = errors.New("keyspace: invalid name")
	ErrDuplicateName = errors.New("keyspace: duplicate name")
	ErrCorruptRecord = errors.New("keyspace: corrupt registry record")
)

// Keyspace is a named, isolated key range inside one engine instance.
type Keyspace struct {
	Name string
	ID   uint32
	// PrefixLength bounds prefix scans to keys sharing this many leading bytes.
	PrefixLength int
}

// Default returns the default keyspace with the given prefix length.
func Default(prefixLength int) Keyspace {
	return Keyspace{Name: DefaultName, ID: DefaultID, PrefixLength: prefixLength}
}

// ValidateName rejects names that cannot be stored in the registry.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidName, name)
	}
	return nil
}

// Prefix returns the physical key prefix of the keyspace.
func (k Keyspace) Prefix() []byte {
	return idPrefix(k.ID)
}

// Key maps a user key to its physical key.
func (k Keyspace) Key(key []byte) []byte {
	return makeKey(k.ID, key)
}

// UserKey strips the keyspace prefix from a physical key.
func (k Keyspace) UserKey(physical []byte) []byte {
	if len(physical) < idSize {
		return nil
	}
	return physical[idSize:]
}

// Bounds returns the physical [start, end) range covering the keyspace.
func (k Keyspace) Bounds() (start, end []byte) {
	start = idPrefix(k.ID)
	return start, PrefixEnd(start)
}

// PrefixBounds returns the physical range of keys sharing prefix. When the
// keyspace has a prefix length, only the first PrefixLength bytes of prefix
// count; otherwise the range runs from prefix to the end of the keyspace.
func (k Keyspace) PrefixBounds(prefix []byte) (start, end []byte) {
	start = k.Key(prefix)
	if k.PrefixLength <= 0 {
		_, end = k.Bounds()
		return start, end
	}
	if len(prefix) > k.PrefixLength {
		prefix = prefix[:k.PrefixLength]
	}
	fixed := k.Key(prefix)
	end = PrefixEnd(fixed)
	if end == nil {
		_, end = k.Bounds()
	}
	return start, end
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if there is none.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func idPrefix(id uint32) []byte {
	p := make([]byte, idSize)
	binary.BigEndian.PutUint32(p, id)
	return p
}

func makeKey(id uint32, key []byte) []byte {
	k := make([]byte, idSize+len(key))
	binary.BigEndian.PutUint32(k, id)
	copy(k[idSize:], key)
	return k
}
