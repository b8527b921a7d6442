// Package config loads CLI/server configuration for vecstore from an
// optional HuJSON (JSON with comments and trailing commas) file, the way
// the pack's own CLI binaries load their config.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/driftlock/vecstore/internal/store"
	"github.com/driftlock/vecstore/internal/vfs"
)

// Config mirrors [store.Options] plus the directory/dimension a CLI needs
// to open a store, loadable from a HuJSON file.
type Config struct {
	Dir                 string  `json:"dir"`
	Dimension           uint32  `json:"dimension"`
	Metric              string  `json:"metric,omitempty"`
	CompactionThreshold float64 `json:"compaction_threshold,omitempty"` //nolint:tagliatelle // snake_case for config file
	CompactionMode      string  `json:"compaction_mode,omitempty"`      //nolint:tagliatelle // snake_case for config file
}

var (
	errConfigFileNotFound = errors.New("config: file not found")
	errConfigInvalid      = errors.New("config: invalid")
	errDimensionRequired  = errors.New("config: dimension must be > 0")
	errUnknownMetric      = errors.New("config: unknown metric")
	errUnknownMode        = errors.New("config: unknown compaction mode")
)

// Default returns the zero-value config with the store's documented
// defaults layered in (everything except Dir/Dimension, which the CLI must
// supply).
func Default() Config {
	opts := store.DefaultOptions()
	return Config{
		Metric:              opts.Metric.String(),
		CompactionThreshold: opts.CompactionThreshold,
		CompactionMode:      compactionModeString(opts.CompactionMode),
	}
}

// Load reads and parses a HuJSON config file at path, returning
// [errConfigFileNotFound] if it does not exist. Fields present in the file
// override [Default]'s.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", errConfigFileNotFound, path)
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: invalid HuJSON: %w", errConfigInvalid, path, err)
	}

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, nil
}

// Save writes cfg to path as formatted JSON, atomically (temp file + fsync +
// rename), so a CLI can persist the options it resolved from flags for reuse
// by the next invocation without risking a half-written config file if the
// process is killed mid-write.
func Save(fsys vfs.FS, path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}

	data = append(data, '\n')

	if err := fsys.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}

	return nil
}

// ToOptions validates cfg and converts it to [store.Options].
func (c Config) ToOptions() (store.Options, error) {
	if c.Dimension == 0 {
		return store.Options{}, errDimensionRequired
	}

	metric, ok := store.ParseMetric(c.Metric)
	if !ok {
		return store.Options{}, fmt.Errorf("%w: %q", errUnknownMetric, c.Metric)
	}

	mode, err := parseCompactionMode(c.CompactionMode)
	if err != nil {
		return store.Options{}, err
	}

	opts := store.DefaultOptions()
	opts.Metric = metric
	opts.CompactionMode = mode
	if c.CompactionThreshold > 0 {
		opts.CompactionThreshold = c.CompactionThreshold
	}

	return opts, nil
}

func parseCompactionMode(s string) (store.CompactionMode, error) {
	switch s {
	case "", "inline":
		return store.Inline, nil
	case "background":
		return store.Background, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownMode, s)
	}
}

func compactionModeString(m store.CompactionMode) string {
	if m == store.Background {
		return "background"
	}
	return "inline"
}
