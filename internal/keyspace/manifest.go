package keyspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eigerco/rocker/pkg/db"
	"gopkg.in/yaml.v3"
)

// ManifestFile is written next to the engine's files so that keyspaces can be
// listed and the engine identified without opening the database.
const ManifestFile = "KEYSPACES"

var ErrNoManifest = errors.New("keyspace: no manifest")

// Manifest mirrors the registry of a database directory.
type Manifest struct {
	Engine    db.Engine `yaml:"engine"`
	Keyspaces []string  `yaml:"keyspaces"`
}

// ReadManifest loads the manifest stored under dir.
func ReadManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, fmt.Errorf("%w in %q", ErrNoManifest, dir)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return m, nil
}

// WriteManifest replaces the manifest under dir. The new content is written to
// a temporary file and renamed into place.
func WriteManifest(dir string, m Manifest) error {
	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ManifestFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, ManifestFile)); err != nil {
		return fmt.Errorf("install manifest: %w", err)
	}
	return nil
}

// ManifestEngine returns the engine recorded under dir, or def when the
// directory carries no manifest or the manifest names no engine. Any other
// read failure is returned.
func ManifestEngine(dir string, def db.Engine) (db.Engine, error) {
	m, err := ReadManifest(dir)
	if errors.Is(err, ErrNoManifest) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	if m.Engine == "" {
		return def, nil
	}
	return m.Engine, nil
}
