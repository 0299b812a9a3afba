package loader

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/tribit/pkg/vm"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadCSV_RegisterTable(t *testing.T) {
	path := writeFile(t, "regs.csv", `a,b,c
729,0,0
2024,1,2
-5,0,9`)

	df, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	if df.NRows() != 3 {
		t.Errorf("expected 3 rows, got %d", df.NRows())
	}
	if len(df.Series) != 3 {
		t.Errorf("expected 3 columns, got %d", len(df.Series))
	}
}

func TestLoadCSV_FileNotFound(t *testing.T) {
	if _, err := LoadCSV("/nonexistent/path/regs.csv"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadJSON_EmptyFile(t *testing.T) {
	path := writeFile(t, "regs.json", "  \n")
	if _, err := LoadJSON(path); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("expected ErrEmptyTable, got %v", err)
	}
}

func TestLoadParquet_InvalidFile(t *testing.T) {
	path := writeFile(t, "regs.parquet", "not a parquet file")
	if _, err := LoadParquet(path); err == nil {
		t.Error("expected error for invalid parquet file")
	}
}

func TestLoadRegisterSets_UnknownExtension(t *testing.T) {
	path := writeFile(t, "regs.xlsx", "a\n1")
	if _, err := LoadRegisterSets(path); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestRegisterSets_FromCSV(t *testing.T) {
	path := writeFile(t, "regs.csv", `A,B,C
729,0,0
2024,1,2
-5,0,9`)

	df, err := LoadRegisterSets(path)
	if err != nil {
		t.Fatalf("LoadRegisterSets failed: %v", err)
	}
	sets, err := RegisterSets(df)
	if err != nil {
		t.Fatalf("RegisterSets failed: %v", err)
	}

	want := []vm.RegisterFile{
		{A: 729},
		{A: 2024, B: 1, C: 2},
		{A: -5, C: 9},
	}
	if len(sets) != len(want) {
		t.Fatalf("expected %d sets, got %d", len(want), len(sets))
	}
	for i := range want {
		if sets[i] != want[i] {
			t.Errorf("row %d: expected %v, got %v", i, want[i], sets[i])
		}
	}
}

func TestRegisterSets_OptionalColumns(t *testing.T) {
	df := dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("a", nil, 1, 2, 3),
	)
	sets, err := RegisterSets(df)
	if err != nil {
		t.Fatalf("RegisterSets failed: %v", err)
	}
	for i, rf := range sets {
		if rf.A != int64(i+1) || rf.B != 0 || rf.C != 0 {
			t.Errorf("row %d: unexpected %v", i, rf)
		}
	}
}

func TestRegisterSets_MissingA(t *testing.T) {
	df := dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("b", nil, 1, 2),
	)
	if _, err := RegisterSets(df); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestRegisterSets_NilFrame(t *testing.T) {
	if _, err := RegisterSets(nil); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("expected ErrEmptyTable, got %v", err)
	}
}

func TestToInt64_FloatBounds(t *testing.T) {
	tests := []struct {
		in      float64
		want    int64
		wantErr bool
	}{
		{in: 1 << 62, want: 1 << 62},
		{in: -1 << 63, want: math.MinInt64},
		{in: 1 << 63, wantErr: true},
		{in: math.Inf(1), wantErr: true},
		{in: math.Inf(-1), wantErr: true},
		{in: math.NaN(), wantErr: true},
	}

	for _, tt := range tests {
		got, err := toInt64(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidValue) {
				t.Errorf("%v: expected ErrInvalidValue, got %d, %v", tt.in, got, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%v: expected %d, got %d, %v", tt.in, tt.want, got, err)
		}
	}
}

func TestRegisterSets_FloatAndString(t *testing.T) {
	df := dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("a", nil, 8.0, 1.5),
		dataframe.NewSeriesString("b", nil, "3", "4"),
	)
	_, err := RegisterSets(df)
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue for 1.5, got %v", err)
	}

	df = dataframe.NewDataFrame(
		dataframe.NewSeriesFloat64("a", nil, 8.0),
		dataframe.NewSeriesString("b", nil, "3"),
	)
	sets, err := RegisterSets(df)
	if err != nil {
		t.Fatalf("RegisterSets failed: %v", err)
	}
	if sets[0] != (vm.RegisterFile{A: 8, B: 3}) {
		t.Errorf("unexpected %v", sets[0])
	}
}

func TestToInt64(t *testing.T) {
	n := int64(7)
	tests := []struct {
		in   any
		want int64
		ok   bool
	}{
		{nil, 0, true},
		{int64(5), 5, true},
		{&n, 7, true},
		{int32(-3), -3, true},
		{" 42 ", 42, true},
		{"", 0, true},
		{"x", 0, false},
		{2.0, 2, true},
		{2.5, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, err := toInt64(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("toInt64(%v): unexpected error state %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("toInt64(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
