// Package batch runs one program against many initial register sets.
package batch

import (
	"context"
	"runtime"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/akhildatla/tribit/pkg/loader"
	"github.com/akhildatla/tribit/pkg/vm"
)

var log = commonlog.GetLogger("tribit.batch")

// Result is the outcome of one run.
type Result struct {
	Initial vm.RegisterFile
	Final   vm.RegisterFile
	Output  string
	Steps   int
	Err     error
}

// Options configures Run.
type Options struct {
	Workers  int
	MaxSteps int
}

// Run executes code once per register set. A failing run is recorded in its
// Result and does not stop the others. Results keep the input order.
func Run(ctx context.Context, code []vm.Word, sets []vm.RegisterFile, opts Options) ([]Result, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, len(sets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, regs := range sets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m := vm.NewMachine(code, regs)
			m.SetMaxSteps(opts.MaxSteps)
			steps, err := m.Run()
			if err != nil {
				log.Debugf("run %d (%s) failed: %s", i, regs, err)
			}
			results[i] = Result{
				Initial: regs,
				Final:   m.Registers(),
				Output:  m.OutputString(),
				Steps:   steps,
				Err:     err,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Infof("ran %d register sets", len(sets))
	return results, nil
}

// RunFrame reads register sets from df, runs them, and returns the results
// as a frame with columns a, b, c, output, steps, final_a, final_b, final_c,
// error.
func RunFrame(ctx context.Context, code []vm.Word, df *dataframe.DataFrame, opts Options) (*dataframe.DataFrame, error) {
	sets, err := loader.RegisterSets(df)
	if err != nil {
		return nil, err
	}
	results, err := Run(ctx, code, sets, opts)
	if err != nil {
		return nil, err
	}
	return Frame(results), nil
}

// Frame converts results to a dataframe. Successful runs have a nil error
// cell.
func Frame(results []Result) *dataframe.DataFrame {
	n := len(results)
	var (
		a      = make([]interface{}, n)
		b      = make([]interface{}, n)
		c      = make([]interface{}, n)
		output = make([]interface{}, n)
		steps  = make([]interface{}, n)
		fa     = make([]interface{}, n)
		fb     = make([]interface{}, n)
		fc     = make([]interface{}, n)
		errs   = make([]interface{}, n)
	)
	for i, r := range results {
		a[i], b[i], c[i] = r.Initial.A, r.Initial.B, r.Initial.C
		output[i] = r.Output
		steps[i] = int64(r.Steps)
		fa[i], fb[i], fc[i] = r.Final.A, r.Final.B, r.Final.C
		if r.Err != nil {
			errs[i] = r.Err.Error()
		}
	}

	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("a", nil, a...),
		dataframe.NewSeriesInt64("b", nil, b...),
		dataframe.NewSeriesInt64("c", nil, c...),
		dataframe.NewSeriesString("output", nil, output...),
		dataframe.NewSeriesInt64("steps", nil, steps...),
		dataframe.NewSeriesInt64("final_a", nil, fa...),
		dataframe.NewSeriesInt64("final_b", nil, fb...),
		dataframe.NewSeriesInt64("final_c", nil, fc...),
		dataframe.NewSeriesString("error", nil, errs...),
	)
}
