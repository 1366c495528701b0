package options

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/eigerco/rocker/pkg/db"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidValue  = errors.New("options: invalid value")
	ErrUnknownEngine = errors.New("options: unknown engine")
)

// setter validates a raw value and applies it to the option set.
type setter func(o *Options, value any) error

// table maps every recognized option name to its setter.
// Names missing from the table are ignored by Translate.
var table = map[string]setter{
	"create_if_missing":              boolOption(func(o *Options) { o.CreateIfMissing = true }),
	"create_missing_column_families": boolOption(func(o *Options) { o.CreateMissingKeyspaces = true }),
	"set_use_fsync":                  boolOption(func(o *Options) { o.UseFsync = true }),
	"set_disable_auto_compactions":   boolOption(func(o *Options) { o.DisableAutoCompactions = true }),

	"set_max_open_files":                     intOption(func(o *Options, v int) { o.MaxOpenFiles = v }),
	"set_table_cache_num_shard_bits":         intOption(func(o *Options, v int) { o.TableCacheNumShardBits = v }),
	"set_max_write_buffer_number":            intOption(func(o *Options, v int) { o.MaxWriteBufferNumber = v }),
	"set_min_write_buffer_number_to_merge":   intOption(func(o *Options, v int) { o.MinWriteBufferNumberToMerge = v }),
	"set_level_zero_stop_writes_trigger":     intOption(func(o *Options, v int) { o.Level0StopWritesTrigger = v }),
	"set_level_zero_slowdown_writes_trigger": intOption(func(o *Options, v int) { o.Level0SlowdownWritesTrigger = v }),
	"set_max_background_compactions":         intOption(func(o *Options, v int) { o.MaxBackgroundCompactions = v }),
	"set_max_background_flushes":             intOption(func(o *Options, v int) { o.MaxBackgroundFlushes = v }),

	"set_bytes_per_sync":        uintOption(func(o *Options, v uint64) { o.BytesPerSync = v }),
	"optimize_for_point_lookup": uintOption(func(o *Options, v uint64) { o.PointLookupCacheMB = v }),
	"set_write_buffer_size":     uintOption(func(o *Options, v uint64) { o.WriteBufferSize = v }),
	"set_target_file_size_base": uintOption(func(o *Options, v uint64) { o.TargetFileSizeBase = v }),
	"prefix_length": uintOption(func(o *Options, v uint64) {
		if v > math.MaxInt32 {
			v = math.MaxInt32
		}
		o.PrefixLength = int(v)
	}),

	"set_compaction_style": setCompactionStyle,
	"engine":               setEngine,
}

// Translate turns an order-irrelevant name to value mapping into an option set.
// Unknown names are ignored. Boolean options only take effect when true.
func Translate(values map[string]any) (Options, error) {
	o := Default()
	for name, value := range values {
		set, ok := table[name]
		if !ok {
			continue
		}
		if err := set(&o, value); err != nil {
			return Options{}, fmt.Errorf("%s: %w", name, err)
		}
	}
	return o, nil
}

// Names returns the recognized option names in sorted order.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load decodes a YAML mapping of option names to values.
func Load(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode options file %q: %w", path, err)
	}
	return values, nil
}

// LoadFile decodes a YAML option file and translates it.
func LoadFile(path string) (Options, error) {
	values, err := Load(path)
	if err != nil {
		return Options{}, err
	}
	return Translate(values)
}

func boolOption(apply func(o *Options)) setter {
	return func(o *Options, value any) error {
		enabled, err := decodeBool(value)
		if err != nil {
			return err
		}
		if enabled {
			apply(o)
		}
		return nil
	}
}

func intOption(apply func(o *Options, v int)) setter {
	return func(o *Options, value any) error {
		v, err := decodeInt(value)
		if err != nil {
			return err
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			return fmt.Errorf("%w: %d out of range", ErrInvalidValue, v)
		}
		apply(o, int(v))
		return nil
	}
}

func uintOption(apply func(o *Options, v uint64)) setter {
	return func(o *Options, value any) error {
		if u, ok := value.(uint64); ok {
			apply(o, u)
			return nil
		}
		v, err := decodeInt(value)
		if err != nil {
			return err
		}
		if v < 0 {
			return fmt.Errorf("%w: %d is negative", ErrInvalidValue, v)
		}
		apply(o, uint64(v))
		return nil
	}
}

func setCompactionStyle(o *Options, value any) error {
	style, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %T is not a compaction style", ErrInvalidValue, value)
	}
	switch style {
	case "level":
		o.CompactionStyle = CompactionLevel
	case "universal":
		o.CompactionStyle = CompactionUniversal
	case "fifo":
		o.CompactionStyle = CompactionFIFO
	}
	return nil
}

func setEngine(o *Options, value any) error {
	name, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %T is not an engine name", ErrInvalidValue, value)
	}
	switch engine := db.Engine(name); engine {
	case db.EnginePebble, db.EngineLevelDB:
		o.Engine = engine
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownEngine, name)
	}
}

func decodeBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %v is not a boolean", ErrInvalidValue, value)
}

func decodeInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt(v)
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidValue, v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T is not an integer", ErrInvalidValue, value)
	}
}

func uintToInt(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidValue, v)
	}
	return int64(v), nil
}
