// Package config handles tribit.toml settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/akhildatla/tribit/pkg/quine"
	"github.com/akhildatla/tribit/pkg/trace"
)

// FileName is the config file searched for by FindAndLoad.
const FileName = "tribit.toml"

// Config represents a tribit.toml file.
type Config struct {
	Search Search `toml:"search"`
	Log    Log    `toml:"log"`
	Trace  Trace  `toml:"trace"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

// Search configures quine search and batch runs.
type Search struct {
	Strategy  string `toml:"strategy"`
	Workers   int    `toml:"workers"`
	Limit     int64  `toml:"limit"`
	MaxSteps  int    `toml:"max_steps"`
	ChunkSize int64  `toml:"chunk_size"`
	Timeout   string `toml:"timeout"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Trace configures trace export.
type Trace struct {
	Format string `toml:"format"`
}

// Default returns the settings used when no file is found.
func Default() *Config {
	return &Config{
		Search: Search{
			Strategy:  quine.Digits.String(),
			Limit:     quine.DefaultLimit,
			MaxSteps:  quine.DefaultMaxSteps,
			ChunkSize: quine.DefaultChunkSize,
		},
		Trace: Trace{
			Format: trace.FormatCSV.String(),
		},
	}
}

// Load parses a config file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// FindAndLoad walks up from startDir to find a tribit.toml file and loads
// it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks values that toml cannot.
func (c *Config) Validate() error {
	if _, err := quine.ParseStrategy(c.Search.Strategy); err != nil {
		return err
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		return err
	}
	if _, err := c.Search.TimeoutDuration(); err != nil {
		return err
	}
	if c.Search.Workers < 0 {
		return fmt.Errorf("search.workers must not be negative")
	}
	if c.Search.Limit < 0 {
		return fmt.Errorf("search.limit must not be negative")
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value means no timeout.
func (s Search) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid search.timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// QuineOptions converts the search section to quine options.
func (s Search) QuineOptions() ([]quine.Option, error) {
	strategy, err := quine.ParseStrategy(s.Strategy)
	if err != nil {
		return nil, err
	}
	opts := []quine.Option{
		quine.WithStrategy(strategy),
		quine.WithLimit(s.Limit),
	}
	if s.Workers > 0 {
		opts = append(opts, quine.WithWorkers(s.Workers))
	}
	if s.MaxSteps > 0 {
		opts = append(opts, quine.WithMaxSteps(s.MaxSteps))
	}
	if s.ChunkSize > 0 {
		opts = append(opts, quine.WithChunkSize(s.ChunkSize))
	}
	return opts, nil
}

// LogFile returns the log file path, or nil for stderr.
func (l Log) LogFile() *string {
	if l.File == "" {
		return nil
	}
	return &l.File
}
