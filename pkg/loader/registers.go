package loader

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/tribit/pkg/vm"
)

// LoadRegisterSets loads a table of initial register values. The format is
// chosen by extension: .csv, .json/.jsonl, or .parquet.
func LoadRegisterSets(path string) (*dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".json", ".jsonl":
		return LoadJSON(path)
	case ".parquet":
		return LoadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported register table format %q", filepath.Ext(path))
	}
}

// RegisterSets converts table rows into register files. Column "a" is
// required; "b" and "c" default to zero. Names are matched case-insensitively.
func RegisterSets(df *dataframe.DataFrame) ([]vm.RegisterFile, error) {
	if df == nil || len(df.Series) == 0 {
		return nil, ErrEmptyTable
	}

	var cols [vm.NumRegisters]dataframe.Series
	for _, s := range df.Series {
		if reg, ok := vm.ParseRegister(strings.ToUpper(strings.TrimSpace(s.Name()))); ok {
			cols[reg] = s
		}
	}
	if cols[vm.RegA] == nil {
		return nil, fmt.Errorf("%w: a", ErrMissingColumn)
	}

	rows := df.NRows()
	sets := make([]vm.RegisterFile, rows)
	for row := 0; row < rows; row++ {
		for r := vm.Register(0); r < vm.NumRegisters; r++ {
			if cols[r] == nil {
				continue
			}
			v, err := toInt64(cols[r].Value(row))
			if err != nil {
				return nil, fmt.Errorf("row %d, column %s: %w", row, r, err)
			}
			sets[row].Set(r, v)
		}
	}
	return sets, nil
}

// toInt64 coerces a cell value from any of the table backends.
func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case *int64:
		if x == nil {
			return 0, nil
		}
		return *x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case *int32:
		if x == nil {
			return 0, nil
		}
		return int64(*x), nil
	case float64:
		if x != math.Trunc(x) || x >= 1<<63 || x < -1<<63 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, x)
		}
		return int64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}
