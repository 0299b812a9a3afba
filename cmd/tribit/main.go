// Package main provides the CLI entry point for tribit.
//
// Usage:
//
//	tribit run prog.txt                 # Print the program's output
//	tribit quine prog.txt               # Find the smallest self-printing A
//	tribit trace prog.txt -o run.csv    # Record a step-by-step trace
//	tribit batch prog.txt regs.parquet  # Run against many register sets
//	tribit disasm prog.txt              # Disassemble the program
//	tribit repl prog.txt                # Interactive debugger
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/tliron/kutil/util"

	"github.com/akhildatla/tribit/internal/config"
	"github.com/akhildatla/tribit/pkg/analysis"
	"github.com/akhildatla/tribit/pkg/batch"
	"github.com/akhildatla/tribit/pkg/loader"
	"github.com/akhildatla/tribit/pkg/quine"
	"github.com/akhildatla/tribit/pkg/repl"
	"github.com/akhildatla/tribit/pkg/trace"
	"github.com/akhildatla/tribit/pkg/vm"
)

// Version info set by GoReleaser via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var log = commonlog.GetLogger("tribit")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		util.Exit(1)
	}
	util.Exit(0)
}

func run(args []string, stdout io.Writer) error {
	if len(args) < 1 {
		return printUsage(stdout)
	}

	cmd := args[0]

	switch cmd {
	case "run":
		return runCommand(args[1:], stdout)
	case "quine":
		return quineCommand(args[1:], stdout)
	case "trace":
		return traceCommand(args[1:], stdout)
	case "batch":
		return batchCommand(args[1:], stdout)
	case "disasm":
		return disasmCommand(args[1:], stdout)
	case "repl":
		return replCommand(args[1:], stdout)
	case "version":
		fmt.Fprintf(stdout, "tribit version %s\n", version)
		if commit != "none" {
			fmt.Fprintf(stdout, "  commit: %s\n", commit)
		}
		if date != "unknown" {
			fmt.Fprintf(stdout, "  built:  %s\n", date)
		}
		return nil
	case "help", "-h", "--help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	config  *string
	verbose *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config:  fs.String("config", "", "config file (default: tribit.toml searched upward)"),
		verbose: fs.Bool("v", false, "verbose output"),
	}
}

// setup loads the config and configures logging.
func (c commonFlags) setup() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *c.config != "" {
		cfg, err = config.Load(*c.config)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}

	verbosity := cfg.Log.Verbosity
	if *c.verbose {
		verbosity++
	}
	commonlog.Configure(verbosity, cfg.Log.LogFile())
	if cfg.Path != "" {
		log.Debugf("using config %s", cfg.Path)
	}
	return cfg, nil
}

// parseArgs parses flags that may appear before or after positional
// arguments and returns the positional ones.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// flagsSet returns the names of flags given on the command line.
func flagsSet(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// loadProgram loads path and applies an optional A override.
func loadProgram(path, a string) (*vm.Program, error) {
	p, err := loader.LoadProgram(path)
	if err != nil {
		return nil, err
	}
	if a != "" {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -a value %q", a)
		}
		p.Registers.A = n
	}
	return p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	common := addCommonFlags(fs)
	a := fs.String("a", "", "override register A")
	maxSteps := fs.Int("max-steps", 0, "step limit (0: unlimited)")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: tribit run <prog.txt> [-a N] [-v]")
	}
	if _, err := common.setup(); err != nil {
		return err
	}

	p, err := loadProgram(positional[0], *a)
	if err != nil {
		return err
	}

	m := vm.New(p)
	m.SetMaxSteps(*maxSteps)

	var counter vm.OpCounter
	if *common.verbose {
		m.SetObserver(&counter)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := m.RunContext(ctx); err != nil {
		return err
	}

	fmt.Fprintln(stdout, m.OutputString())
	if *common.verbose {
		fmt.Fprintf(os.Stderr, "%d steps, final %s\n", m.Steps(), m.Registers())
		fmt.Fprintf(os.Stderr, "opcodes: %s\n", counter.String())
	}
	return nil
}

func quineCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("quine", flag.ContinueOnError)
	common := addCommonFlags(fs)
	strategy := fs.String("strategy", "", "search strategy: digits, brute or auto")
	workers := fs.Int("workers", 0, "worker count (default: number of CPUs)")
	limit := fs.Int64("limit", 0, "upper bound on A for brute force")
	maxSteps := fs.Int("max-steps", 0, "step limit per candidate")
	timeout := fs.Duration("timeout", 0, "give up after this long")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: tribit quine <prog.txt> [-strategy digits|brute|auto] [-workers N] [-limit N] [-timeout D]")
	}
	cfg, err := common.setup()
	if err != nil {
		return err
	}

	set := flagsSet(fs)
	s := cfg.Search
	if set["strategy"] {
		s.Strategy = *strategy
	}
	if set["workers"] {
		s.Workers = *workers
	}
	if set["limit"] {
		s.Limit = *limit
	}
	if set["max-steps"] {
		s.MaxSteps = *maxSteps
	}
	if set["timeout"] {
		s.Timeout = timeout.String()
	}

	opts, err := s.QuineOptions()
	if err != nil {
		return err
	}
	d, err := s.TimeoutDuration()
	if err != nil {
		return err
	}

	p, err := loader.LoadProgram(positional[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if d > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d)
		defer cancelTimeout()
	}

	start := time.Now()
	a, err := quine.Search(ctx, p.Code, opts...)
	if err != nil {
		return err
	}
	log.Infof("found A=%d in %s", a, time.Since(start))

	fmt.Fprintln(stdout, a)
	return nil
}

func traceCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	common := addCommonFlags(fs)
	a := fs.String("a", "", "override register A")
	output := fs.String("o", "", "output file, .csv, .json or .parquet (default: stdout)")
	format := fs.String("format", "", "stdout format: csv, json or parquet")
	maxSteps := fs.Int("max-steps", quine.DefaultMaxSteps, "step limit")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: tribit trace <prog.txt> [-a N] [-o out.csv|.json|.parquet]")
	}
	cfg, err := common.setup()
	if err != nil {
		return err
	}

	p, err := loadProgram(positional[0], *a)
	if err != nil {
		return err
	}

	df, m, runErr := trace.Record(p, *maxSteps)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "warning: run stopped after %d steps: %v\n", m.Steps(), runErr)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *output != "" {
		if err := trace.WriteFile(ctx, *output, df); err != nil {
			return err
		}
		log.Infof("wrote %d steps to %s", df.NRows(), *output)
	} else {
		name := cfg.Trace.Format
		if *format != "" {
			name = *format
		}
		f, err := trace.ParseFormat(name)
		if err != nil {
			return err
		}
		if err := trace.Export(ctx, stdout, df, f); err != nil {
			return err
		}
	}
	return runErr
}

func batchCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	common := addCommonFlags(fs)
	output := fs.String("o", "", "output file, .csv, .json or .parquet (default: CSV on stdout)")
	workers := fs.Int("workers", 0, "worker count (default: number of CPUs)")
	maxSteps := fs.Int("max-steps", 0, "step limit per run")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return fmt.Errorf("usage: tribit batch <prog.txt> <registers.csv|.json|.parquet> [-o out.csv] [-workers N]")
	}
	cfg, err := common.setup()
	if err != nil {
		return err
	}

	set := flagsSet(fs)
	opts := batch.Options{Workers: cfg.Search.Workers, MaxSteps: cfg.Search.MaxSteps}
	if set["workers"] {
		opts.Workers = *workers
	}
	if set["max-steps"] {
		opts.MaxSteps = *maxSteps
	}

	p, err := loader.LoadProgram(positional[0])
	if err != nil {
		return err
	}
	regs, err := loader.LoadRegisterSets(positional[1])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := batch.RunFrame(ctx, p.Code, regs, opts)
	if err != nil {
		return err
	}

	if *output != "" {
		return trace.WriteFile(ctx, *output, results)
	}
	return trace.Export(ctx, stdout, results, trace.FormatCSV)
}

func disasmCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	common := addCommonFlags(fs)
	output := fs.String("o", "", "output file (default: stdout)")
	check := fs.Bool("check", false, "append static analysis")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: tribit disasm <prog.txt> [-check] [-o output.txt]")
	}
	if _, err := common.setup(); err != nil {
		return err
	}

	p, err := loader.LoadProgram(positional[0])
	if err != nil {
		return err
	}

	asm := vm.Disassemble(p.Code)
	if *check {
		asm += analysis.New(analysis.WithAllChecks()).Analyze(p.Code).String()
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(asm), 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		fmt.Fprintf(stdout, "Disassembled to: %s\n", *output)
	} else {
		fmt.Fprint(stdout, asm)
	}
	return nil
}

func replCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	common := addCommonFlags(fs)
	maxSteps := fs.Int("max-steps", repl.DefaultMaxSteps, "step limit for run")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) > 1 {
		return fmt.Errorf("usage: tribit repl [prog.txt]")
	}
	if _, err := common.setup(); err != nil {
		return err
	}

	r := repl.New()
	r.SetMaxSteps(*maxSteps)

	if len(positional) == 1 {
		p, err := loader.LoadProgram(positional[0])
		if err != nil {
			return err
		}
		r.SetProgram(p)
	}

	r.Start(os.Stdin, stdout)
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, `tribit - three-register machine runner and quine finder

Usage:
  tribit <command> [arguments]

Commands:
  run <prog.txt>                 Run a program and print its output
  quine <prog.txt>               Find the smallest A that makes the program print itself
  trace <prog.txt>               Record every step as a table
  batch <prog.txt> <registers>   Run a program once per row of a register table
  disasm <prog.txt>              Disassemble a program
  repl [prog.txt]                Start the interactive debugger
  version                        Print version information
  help                           Show this help message

Common Options:
  -config <file>                 Config file (default: tribit.toml searched upward)
  -v                             Verbose output

Run Options:
  -a <n>                         Override register A
  -max-steps <n>                 Step limit (default: unlimited)

Quine Options:
  -strategy digits|brute|auto    Search strategy (default: digits)
  -workers <n>                   Worker count (default: number of CPUs)
  -limit <n>                     Upper bound on A for brute force
  -max-steps <n>                 Step limit per candidate
  -timeout <duration>            Give up after this long

Trace Options:
  -a <n>                         Override register A
  -o <file>                      Output file: .csv, .json or .parquet
  -format csv|json|parquet       Format when writing to stdout

Disasm Options:
  -check                         Append static analysis of the program
  -o <file>                      Output file (default: stdout)

Batch Options:
  -o <file>                      Output file: .csv, .json or .parquet
  -workers <n>                   Worker count
  -max-steps <n>                 Step limit per run

Examples:
  tribit run prog.txt
  tribit run prog.txt -a 117440
  tribit quine prog.txt -strategy brute -limit 1000000
  tribit trace prog.txt -o trace.parquet
  tribit batch prog.txt registers.csv -o results.csv
  tribit repl prog.txt`)
	return nil
}
