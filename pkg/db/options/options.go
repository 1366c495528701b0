package options

import (
	"github.com/eigerco/rocker/pkg/db"
)

// CompactionStyle selects the engine's compaction strategy.
type CompactionStyle uint8

const (
	CompactionLevel CompactionStyle = iota
	CompactionUniversal
	CompactionFIFO
)

func (s CompactionStyle) String() string {
	switch s {
	case CompactionLevel:
		return "level"
	case CompactionUniversal:
		return "universal"
	case CompactionFIFO:
		return "fifo"
	default:
		return "unknown"
	}
}

// Options is the engine-neutral configuration produced by Translate.
// A zero numeric field means "leave the engine default in place".
// Each backend maps the fields its engine supports and ignores the rest.
type Options struct {
	// Engine selects the backend. Empty means the engine recorded on disk,
	// or pebble for a new database.
	Engine db.Engine

	CreateIfMissing        bool
	CreateMissingKeyspaces bool
	UseFsync               bool
	DisableAutoCompactions bool

	MaxOpenFiles                int
	BytesPerSync                uint64
	PointLookupCacheMB          uint64
	MaxWriteBufferNumber        int
	WriteBufferSize             uint64
	TargetFileSizeBase          uint64
	Level0StopWritesTrigger     int
	Level0SlowdownWritesTrigger int
	MaxBackgroundCompactions    int

	// Accepted and validated for compatibility; no backend maps these.
	TableCacheNumShardBits      int
	MinWriteBufferNumberToMerge int
	MaxBackgroundFlushes        int
	CompactionStyle             CompactionStyle

	// PrefixLength installs a fixed-length prefix extractor used to bound
	// prefix scans. Zero disables it.
	PrefixLength int
}

// Default returns the all-default option set.
func Default() Options {
	return Options{}
}
