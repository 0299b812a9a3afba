// Package quine finds the smallest initial value of register A that makes a
// program print itself.
//
//	a, err := quine.Search(ctx, program.Code)
//
// Digits (the default) reconstructs A one octal digit at a time and needs
// O(8·n) runs for programs that shift A right by three bits per output.
// BruteForce scans A upward and serves as the oracle for short programs.
// Auto chooses between them by inspecting the program.
package quine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/akhildatla/tribit/pkg/analysis"
	"github.com/akhildatla/tribit/pkg/vm"
)

var log = commonlog.GetLogger("tribit.quine")

// Error definitions
var (
	ErrNoSolutionFound = errors.New("no solution found")
	ErrEmptyProgram    = errors.New("empty program")
	ErrNotQuine        = errors.New("output does not reproduce program")
)

// maxPrefix is the largest candidate that can take another octal digit
// without overflowing int64.
const maxPrefix = math.MaxInt64 >> 3

// Search returns the smallest a0 >= 0 such that running code with
// A=a0, B=0, C=0 outputs code itself.
//
// The program is validated once up front. Run-time failures of individual
// candidates (reserved operands, step limit) count as non-matches.
func Search(ctx context.Context, code []vm.Word, opts ...Option) (int64, error) {
	if len(code) == 0 {
		return 0, ErrEmptyProgram
	}
	if err := vm.ValidateCode(code); err != nil {
		return 0, err
	}

	o := newOptions(opts)
	o.Strategy = resolveStrategy(code, o)
	o.Logger.Infof("searching %d-word program with strategy %s, %d workers", len(code), o.Strategy, o.Workers)

	var (
		a   int64
		err error
	)
	switch o.Strategy {
	case Digits:
		a, err = searchDigits(ctx, code, o)
	case BruteForce:
		a, err = searchBrute(ctx, code, o)
	default:
		return 0, fmt.Errorf("unknown strategy %s", o.Strategy)
	}
	if err != nil {
		o.Logger.Infof("search failed: %s", err)
		return 0, err
	}

	o.Logger.Infof("found A=%d", a)
	return a, nil
}

// resolveStrategy replaces Auto with a concrete strategy and warns when
// Digits is forced onto a program it may not solve.
func resolveStrategy(code []vm.Word, o Options) Strategy {
	if o.Strategy != Auto && o.Strategy != Digits {
		return o.Strategy
	}

	shape := analysis.New(analysis.WithLoopShape()).Analyze(code).Shape
	if shape.DigitsSafe {
		return Digits
	}
	if o.Strategy == Auto {
		o.Logger.Infof("program is not a single shift-by-3 loop (%s), using brute force", strings.Join(shape.Problems, "; "))
		return BruteForce
	}
	o.Logger.Warningf("digit search may miss solutions: %s", strings.Join(shape.Problems, "; "))
	return Digits
}

// Verify re-runs code with A=a and checks the quine condition. Only
// WithMaxSteps is used from opts; pass the same limit the search ran with.
func Verify(code []vm.Word, a int64, opts ...Option) error {
	m := newMachine(code, newOptions(opts))
	m.Reset(vm.NewRegisterFile(a))
	if _, err := m.Run(); err != nil {
		return err
	}
	if !m.OutputEquals(code) {
		return fmt.Errorf("%w: A=%d printed %s", ErrNotQuine, a, m.OutputString())
	}
	return nil
}

// runMatches resets m with A=a, B=C=0, runs it and compares the output.
func runMatches(m *vm.Machine, a int64, target []vm.Word) bool {
	m.Reset(vm.NewRegisterFile(a))
	if _, err := m.Run(); err != nil {
		return false
	}
	return m.OutputEquals(target)
}

func newMachine(code []vm.Word, o Options) *vm.Machine {
	m := vm.NewMachine(code, vm.RegisterFile{})
	m.SetMaxSteps(o.MaxSteps)
	return m
}

// searchDigits walks the target from its last word to its first. At level
// i a candidate survives when its output equals code[i:]; each survivor is
// extended by one octal digit for the next level.
func searchDigits(ctx context.Context, code []vm.Word, o Options) (int64, error) {
	candidates := []int64{0}

	for i := len(code) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		next, err := expandLevel(ctx, code, code[i:], candidates, o)
		if err != nil {
			return 0, err
		}
		o.Logger.Debugf("level %d: %d candidates -> %d", i, len(candidates), len(next))

		if len(next) == 0 {
			return 0, ErrNoSolutionFound
		}
		candidates = next
	}

	// Survivors of the last level print the whole program; they are sorted.
	return candidates[0], nil
}

// expandLevel tries all eight digit extensions of every candidate.
func expandLevel(ctx context.Context, code, target []vm.Word, candidates []int64, o Options) ([]int64, error) {
	results := make([][]int64, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)

	for idx, prefix := range candidates {
		if prefix > maxPrefix {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := newMachine(code, o)
			for d := int64(0); d < 8; d++ {
				a := prefix<<3 | d
				if runMatches(m, a, target) {
					results[idx] = append(results[idx], a)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var next []int64
	for _, r := range results {
		next = append(next, r...)
	}
	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	return next, nil
}

// searchBrute scans [0, Limit) in batches of Workers*ChunkSize. Each task
// reports the first match in its chunk; the batch minimum is the answer.
func searchBrute(ctx context.Context, code []vm.Word, o Options) (int64, error) {
	batch := o.ChunkSize * int64(o.Workers)
	if batch/int64(o.Workers) != o.ChunkSize {
		batch = math.MaxInt64
	}

	for base := int64(0); base < o.Limit; {
		end := o.Limit
		if o.Limit-base > batch {
			end = base + batch
		}

		best, err := scanBatch(ctx, code, base, end, o)
		if err != nil {
			return 0, err
		}
		if best >= 0 {
			return best, nil
		}
		o.Logger.Debugf("no match below %d", end)
		base = end
	}

	return 0, ErrNoSolutionFound
}

// scanBatch returns the smallest match in [start, end), or -1.
func scanBatch(ctx context.Context, code []vm.Word, start, end int64, o Options) (int64, error) {
	var (
		mu   sync.Mutex
		best int64 = -1
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)

	for lo := start; lo < end; {
		hi := end
		if end-lo > o.ChunkSize {
			hi = lo + o.ChunkSize
		}
		chunkLo := lo
		g.Go(func() error {
			m := newMachine(code, o)
			for a := chunkLo; a < hi; a++ {
				if (a-chunkLo)&1023 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if runMatches(m, a, code) {
					mu.Lock()
					if best < 0 || a < best {
						best = a
					}
					mu.Unlock()
					return nil
				}
			}
			return nil
		})
		lo = hi
	}

	if err := g.Wait(); err != nil {
		return -1, err
	}
	return best, nil
}
