package testutils

import (
	"bytes"
	"crypto/rand"
	"path/filepath"
	"sort"
	"testing"

	"github.com/eigerco/rocker/pkg/db"
	"github.com/stretchr/testify/require"
)

// Engines lists every backend a database can be opened with.
var Engines = []db.Engine{db.EnginePebble, db.EngineLevelDB}

// TempPath returns a database path inside a per-test directory that does not
// exist yet.
func TempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "db")
}

// CreateOptions is an option mapping that creates a fresh database on engine.
func CreateOptions(engine db.Engine) map[string]any {
	return map[string]any{
		"create_if_missing": true,
		"engine":            string(engine),
	}
}

func RandomBytes(t *testing.T, size int) []byte {
	b := make([]byte, size)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// RandomKeys returns n distinct random keys of the given size in ascending
// order.
func RandomKeys(t *testing.T, n, size int) [][]byte {
	seen := make(map[string]struct{}, n)
	keys := make([][]byte, 0, n)
	for len(keys) < n {
		k := RandomBytes(t, size)
		if _, ok := seen[string(k)]; ok {
			continue
		}
		seen[string(k)] = struct{}{}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i], keys[j]) < 0
	})
	return keys
}
