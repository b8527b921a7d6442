// Command vecstore is an interactive REPL for opening and exercising a
// vecstore directory: PUT/GET/DELETE/SEARCH/STATS/EXIT.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/driftlock/vecstore/internal/config"
	"github.com/driftlock/vecstore/internal/vfs"
	"github.com/driftlock/vecstore/pkg/vecstore"
)

// resolvedConfigName is where the CLI persists the options it resolved from
// flags/config/defaults. It is not read back automatically; a later
// invocation can reuse it by passing its path to --config.
const resolvedConfigName = ".vecstore-resolved.json"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(os.Args[1:]); err != nil {
		slog.Error("vecstore: fatal", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("vecstore", flag.ContinueOnError)

	dir := fs.String("dir", "", "store directory (created if missing)")
	dim := fs.Uint32("dim", 0, "vector dimension")
	metric := fs.String("metric", "", "cosine|dot|l2 (default: cosine)")
	compactionThreshold := fs.Float64("compaction-threshold", 0, "dead-ratio compaction trigger (default: 0.5)")
	configPath := fs.String("config", "", "optional vecstore.hujson config file")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: vecstore --dir DIR --dim N [options]")
		fmt.Fprintln(os.Stderr, "\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		slog.Info("vecstore: loading config", "path", *configPath)

		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		cfg = loaded
	}

	if *dir != "" {
		cfg.Dir = *dir
	}
	if *dim != 0 {
		cfg.Dimension = *dim
	}
	if *metric != "" {
		cfg.Metric = *metric
	}
	if *compactionThreshold != 0 {
		cfg.CompactionThreshold = *compactionThreshold
	}

	if cfg.Dir == "" {
		fs.Usage()
		return errMissingDir
	}

	opts, err := cfg.ToOptions()
	if err != nil {
		return fmt.Errorf("resolving options: %w", err)
	}

	slog.Info("vecstore: opening store",
		"dir", cfg.Dir,
		"dimension", cfg.Dimension,
		"metric", opts.Metric,
		"compaction_threshold", opts.CompactionThreshold,
	)

	s, err := vecstore.Open(cfg.Dir, cfg.Dimension, opts)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	resolvedPath := filepath.Join(cfg.Dir, resolvedConfigName)
	if err := config.Save(vfs.NewReal(), resolvedPath, cfg); err != nil {
		slog.Warn("vecstore: could not persist resolved config", "path", resolvedPath, "error", err)
	}

	defer func() {
		if err := s.Close(); err != nil {
			slog.Error("vecstore: error closing store", "error", err)
		}
	}()

	repl := &REPL{store: s, dimension: cfg.Dimension}

	return repl.Run()
}
