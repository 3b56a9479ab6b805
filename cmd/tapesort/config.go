package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tamirms/tapesort"
)

// sortConfig is the sort command's settings. It is read from an optional
// YAML file; flags set on the command line win.
type sortConfig struct {
	Strategy       string `yaml:"strategy"`
	Tapes          int    `yaml:"tapes"`
	Order          int    `yaml:"order"`
	Chunk          int    `yaml:"chunk"`
	TempDir        string `yaml:"temp_dir"`
	SkipMalformed  bool   `yaml:"skip_malformed"`
	CompactWorkers int    `yaml:"compact_workers"`
	Verify         bool   `yaml:"verify"`
}

func defaultSortConfig() sortConfig {
	return sortConfig{
		Strategy:       tapesort.StrategyPolyphase.String(),
		Tapes:          3,
		Chunk:          1 << 20,
		CompactWorkers: 1,
	}
}

func (c *sortConfig) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Strategy, "strategy", c.Strategy, "merge strategy: polyphase, balanced, natural or straight")
	fs.IntVar(&c.Tapes, "tapes", c.Tapes, "tape count (polyphase: total m; balanced: per group)")
	fs.IntVar(&c.Order, "order", c.Order, "fibonacci order for polyphase (0 = tape count)")
	fs.IntVar(&c.Chunk, "chunk", c.Chunk, "values sorted in memory per chunk")
	fs.StringVar(&c.TempDir, "temp", c.TempDir, "directory for the tape workspace (default: os temp dir)")
	fs.BoolVar(&c.SkipMalformed, "skip-malformed", c.SkipMalformed, "drop non-integer lines instead of failing")
	fs.IntVar(&c.CompactWorkers, "compact-workers", c.CompactWorkers, "concurrent tape compactions per merge round")
	fs.BoolVar(&c.Verify, "verify", c.Verify, "check order and contents before replacing the input")
}

// loadSortConfig reads path into a copy of base, then reapplies every flag
// the user set explicitly.
func loadSortConfig(path string, base sortConfig, fs *pflag.FlagSet) (sortConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config: %w", err)
	}
	cfg := defaultSortConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("parse config %s: %w", path, err)
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "strategy":
			cfg.Strategy = base.Strategy
		case "tapes":
			cfg.Tapes = base.Tapes
		case "order":
			cfg.Order = base.Order
		case "chunk":
			cfg.Chunk = base.Chunk
		case "temp":
			cfg.TempDir = base.TempDir
		case "skip-malformed":
			cfg.SkipMalformed = base.SkipMalformed
		case "compact-workers":
			cfg.CompactWorkers = base.CompactWorkers
		case "verify":
			cfg.Verify = base.Verify
		}
	})
	return cfg, nil
}

// options converts the config to sorter options.
func (c sortConfig) options() (tapesort.Strategy, []tapesort.Option, error) {
	s, err := tapesort.ParseStrategy(c.Strategy)
	if err != nil {
		return 0, nil, err
	}
	opts := []tapesort.Option{
		tapesort.WithTapes(c.Tapes),
		tapesort.WithOrder(c.Order),
		tapesort.WithChunkSize(c.Chunk),
		tapesort.WithTempDir(c.TempDir),
		tapesort.WithCompactionWorkers(c.CompactWorkers),
	}
	if c.SkipMalformed {
		opts = append(opts, tapesort.WithSkipMalformed())
	}
	if c.Verify {
		opts = append(opts, tapesort.WithVerify())
	}
	return s, opts, nil
}
