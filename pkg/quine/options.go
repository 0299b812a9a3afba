package quine

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/tliron/commonlog"
)

// Strategy selects the search algorithm.
type Strategy uint8

const (
	// Digits rebuilds the answer one base-8 digit at a time, from the last
	// output value backwards. It relies on the program consuming three bits
	// of A per emitted value.
	Digits Strategy = iota
	// BruteForce tries every A in [0, Limit). Works for any program but is
	// only practical for small answers.
	BruteForce
	// Auto picks Digits when the program has the loop shape it relies on
	// and BruteForce otherwise.
	Auto
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Digits:
		return "digits"
	case BruteForce:
		return "brute"
	case Auto:
		return "auto"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ParseStrategy maps a name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "digits", "digit":
		return Digits, nil
	case "brute", "bruteforce", "brute-force", "naive":
		return BruteForce, nil
	case "auto":
		return Auto, nil
	}
	return 0, fmt.Errorf("unknown search strategy %q", name)
}

// Defaults
const (
	DefaultLimit     int64 = 1 << 30
	DefaultMaxSteps        = 1_000_000
	DefaultChunkSize int64 = 4096
)

// Options configures Search.
type Options struct {
	Strategy  Strategy
	Workers   int
	Limit     int64 // exclusive upper bound for BruteForce
	MaxSteps  int   // per-candidate step limit; zero means unlimited
	ChunkSize int64 // candidates per BruteForce task
	Logger    commonlog.Logger
}

// Option is a functional option for configuring Search.
type Option func(*Options)

// WithStrategy selects the search algorithm.
func WithStrategy(s Strategy) Option {
	return func(o *Options) {
		o.Strategy = s
	}
}

// WithWorkers sets the number of concurrent workers. Values below one mean
// one worker.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithLimit bounds the BruteForce range.
func WithLimit(n int64) Option {
	return func(o *Options) {
		o.Limit = n
	}
}

// WithMaxSteps bounds each candidate run.
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithChunkSize sets how many consecutive candidates a BruteForce task scans.
func WithChunkSize(n int64) Option {
	return func(o *Options) {
		o.ChunkSize = n
	}
}

// WithLogger overrides the package logger.
func WithLogger(l commonlog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func newOptions(opts []Option) Options {
	o := Options{
		Strategy:  Digits,
		Workers:   runtime.NumCPU(),
		Limit:     DefaultLimit,
		MaxSteps:  DefaultMaxSteps,
		ChunkSize: DefaultChunkSize,
		Logger:    log,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.ChunkSize < 1 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = log
	}
	return o
}
