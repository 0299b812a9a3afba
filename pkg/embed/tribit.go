// Package embed provides the Go embedding API for tribit programs.
//
// Pass a program text, get the output string:
//
//	out, err := embed.Execute(`
//	Register A: 729
//	Register B: 0
//	Register C: 0
//
//	Program: 0,1,5,4,3,0
//	`)
//	// out == "4,6,3,5,6,3,5,2,1,0"
//
// Or search for the smallest A that makes the program print itself:
//
//	a, err := embed.FindQuine(text,
//	    embed.WithWorkers(8),
//	    embed.WithTimeout(30*time.Second),
//	)
package embed

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/akhildatla/tribit/pkg/loader"
	"github.com/akhildatla/tribit/pkg/quine"
	"github.com/akhildatla/tribit/pkg/vm"
)

// Common errors
var (
	ErrTimeout   = errors.New("execution timeout exceeded")
	ErrStepLimit = errors.New("step limit exceeded")
)

// Execute parses and runs a program and returns its output string.
func Execute(text string) (string, error) {
	res, err := ExecuteWithOptions(text)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// ExecuteFile reads a program file and executes it.
func ExecuteFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Execute(string(data))
}

// Result is the state of a finished run.
type Result struct {
	Output    string
	Words     []vm.Word
	Registers vm.RegisterFile
	Steps     int
}

// Options configures execution behavior.
type Options struct {
	// Context for cancellation. If nil, context.Background() is used.
	Context context.Context

	// Timeout sets maximum execution time. Zero means no timeout.
	Timeout time.Duration

	// MaxSteps limits the number of instructions executed per run.
	// Zero means unlimited for Execute and quine.DefaultMaxSteps for
	// FindQuine.
	MaxSteps int

	// A overrides the program's initial A register when set.
	A *int64

	// Quine search settings.
	Strategy quine.Strategy
	Workers  int
	Limit    int64
}

// Option is a functional option for configuring execution.
type Option func(*Options)

// WithContext sets the context for cancellation.
func WithContext(ctx context.Context) Option {
	return func(o *Options) {
		o.Context = ctx
	}
}

// WithTimeout sets execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithMaxSteps sets the step limit.
func WithMaxSteps(n int) Option {
	return func(o *Options) {
		o.MaxSteps = n
	}
}

// WithA overrides register A.
func WithA(a int64) Option {
	return func(o *Options) {
		o.A = &a
	}
}

// WithStrategy selects the quine search strategy.
func WithStrategy(s quine.Strategy) Option {
	return func(o *Options) {
		o.Strategy = s
	}
}

// WithWorkers sets the number of quine search workers.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithLimit bounds a brute-force quine search.
func WithLimit(n int64) Option {
	return func(o *Options) {
		o.Limit = n
	}
}

func applyOptions(opts []Option) (*Options, context.Context, context.CancelFunc) {
	options := &Options{
		Context: context.Background(),
		Limit:   quine.DefaultLimit,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.Context == nil {
		options.Context = context.Background()
	}

	ctx, cancel := options.Context, context.CancelFunc(func() {})
	if options.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
	}
	return options, ctx, cancel
}

// ExecuteWithOptions parses and runs a program with limits.
//
// Example:
//
//	res, err := embed.ExecuteWithOptions(text,
//	    embed.WithTimeout(time.Second),
//	    embed.WithMaxSteps(10000),
//	    embed.WithA(117440),
//	)
func ExecuteWithOptions(text string, opts ...Option) (*Result, error) {
	options, ctx, cancel := applyOptions(opts)
	defer cancel()

	program, err := loader.ParseProgram(text)
	if err != nil {
		return nil, err
	}
	if options.A != nil {
		program.Registers.A = *options.A
	}

	machine := vm.New(program)
	machine.SetMaxSteps(options.MaxSteps)

	steps, err := machine.RunContext(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	return &Result{
		Output:    machine.OutputString(),
		Words:     machine.Output(),
		Registers: machine.Registers(),
		Steps:     steps,
	}, nil
}

// FindQuine parses a program and returns the smallest A for which it prints
// its own code.
func FindQuine(text string, opts ...Option) (int64, error) {
	options, ctx, cancel := applyOptions(opts)
	defer cancel()

	program, err := loader.ParseProgram(text)
	if err != nil {
		return 0, err
	}

	searchOpts := []quine.Option{
		quine.WithStrategy(options.Strategy),
		quine.WithLimit(options.Limit),
	}
	if options.Workers > 0 {
		searchOpts = append(searchOpts, quine.WithWorkers(options.Workers))
	}
	if options.MaxSteps > 0 {
		searchOpts = append(searchOpts, quine.WithMaxSteps(options.MaxSteps))
	}

	a, err := quine.Search(ctx, program.Code, searchOpts...)
	if err != nil {
		return 0, mapError(err)
	}
	return a, nil
}

// mapError maps VM and context errors to embed package errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, vm.ErrStepLimitExceeded):
		return ErrStepLimit
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}
	return err
}
