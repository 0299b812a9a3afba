// Package trace records machine runs step by step as dataframes and exports
// them as CSV, JSON or Parquet.
package trace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"

	"github.com/akhildatla/tribit/pkg/vm"
)

// Column names of a trace frame.
const (
	ColStep    = "step"
	ColIP      = "ip"
	ColOpcode  = "opcode"
	ColOperand = "operand"
	ColA       = "a"
	ColB       = "b"
	ColC       = "c"
	ColOut     = "out"
	ColJumped  = "jumped"
)

// Recorder is a vm.Observer that accumulates one row per step.
type Recorder struct {
	step    []interface{}
	ip      []interface{}
	opcode  []interface{}
	operand []interface{}
	a       []interface{}
	b       []interface{}
	c       []interface{}
	out     []interface{}
	jumped  []interface{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// ObserveStep implements vm.Observer.
func (r *Recorder) ObserveStep(ev vm.StepEvent) {
	r.step = append(r.step, int64(ev.Step))
	r.ip = append(r.ip, int64(ev.IP))
	r.opcode = append(r.opcode, ev.Opcode.String())
	r.operand = append(r.operand, int64(ev.Operand))
	r.a = append(r.a, ev.Registers.A)
	r.b = append(r.b, ev.Registers.B)
	r.c = append(r.c, ev.Registers.C)
	if ev.Emitted {
		r.out = append(r.out, int64(ev.Value))
	} else {
		r.out = append(r.out, nil)
	}
	var jumped int64
	if ev.Jumped {
		jumped = 1
	}
	r.jumped = append(r.jumped, jumped)
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int { return len(r.step) }

// Frame builds a dataframe from the recorded steps.
func (r *Recorder) Frame() *dataframe.DataFrame {
	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64(ColStep, nil, r.step...),
		dataframe.NewSeriesInt64(ColIP, nil, r.ip...),
		dataframe.NewSeriesString(ColOpcode, nil, r.opcode...),
		dataframe.NewSeriesInt64(ColOperand, nil, r.operand...),
		dataframe.NewSeriesInt64(ColA, nil, r.a...),
		dataframe.NewSeriesInt64(ColB, nil, r.b...),
		dataframe.NewSeriesInt64(ColC, nil, r.c...),
		dataframe.NewSeriesInt64(ColOut, nil, r.out...),
		dataframe.NewSeriesInt64(ColJumped, nil, r.jumped...),
	)
}

// Record runs p to completion and returns its trace together with the
// finished machine. On a run-time error the partial trace is still returned.
func Record(p *vm.Program, maxSteps int) (*dataframe.DataFrame, *vm.Machine, error) {
	rec := NewRecorder()
	m := vm.New(p)
	m.SetMaxSteps(maxSteps)
	m.SetObserver(rec)

	_, err := m.Run()
	return rec.Frame(), m, err
}

// Format is a trace export format.
type Format uint8

const (
	FormatCSV Format = iota
	FormatJSON
	FormatParquet
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatParquet:
		return "parquet"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// ParseFormat maps a name or file extension to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "csv":
		return FormatCSV, nil
	case "json", "jsonl":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	}
	return 0, fmt.Errorf("unknown trace format %q", name)
}

// Export writes df to w in the given format.
func Export(ctx context.Context, w io.Writer, df *dataframe.DataFrame, f Format) error {
	switch f {
	case FormatCSV:
		return exports.ExportToCSV(ctx, w, df)
	case FormatJSON:
		return exports.ExportToJSON(ctx, w, df)
	case FormatParquet:
		return exports.ExportToParquet(ctx, w, df)
	default:
		return fmt.Errorf("unknown trace format %s", f)
	}
}

// WriteFile exports df to path, choosing the format from the extension.
func WriteFile(ctx context.Context, path string, df *dataframe.DataFrame) error {
	f, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Export(ctx, file, df, f); err != nil {
		file.Close()
		return fmt.Errorf("exporting %s: %w", path, err)
	}
	return file.Close()
}
