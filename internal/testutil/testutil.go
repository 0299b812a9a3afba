// Package testutil provides fixtures shared by tribit tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	dataframe "github.com/rocketlaunchr/dataframe-go"

	"github.com/akhildatla/tribit/pkg/vm"
)

// ExampleProgram prints 4,6,3,5,6,3,5,2,1,0.
const ExampleProgram = `Register A: 729
Register B: 0
Register C: 0

Program: 0,1,5,4,3,0
`

// ExampleOutput is the output of ExampleProgram.
const ExampleOutput = "4,6,3,5,6,3,5,2,1,0"

// QuineProgram prints its own code when A is QuineA.
const QuineProgram = `Register A: 2024
Register B: 0
Register C: 0

Program: 0,3,5,4,3,0
`

// QuineA is the smallest A for which QuineProgram prints itself.
const QuineA int64 = 117440

// QuineCode returns the code of QuineProgram.
func QuineCode() []vm.Word {
	return vm.Words(0, 3, 5, 4, 3, 0)
}

// TempFile creates a temporary file with the given content and extension.
// The file is removed when the test finishes.
func TempFile(t *testing.T, content, ext string) string {
	t.Helper()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// TempProgram writes a program text to a temporary .txt file.
func TempProgram(t *testing.T, content string) string {
	t.Helper()
	return TempFile(t, content, ".txt")
}

// RegistersCSV returns register sets for ExampleProgram's code.
func RegistersCSV() string {
	return `a,b,c
729,0,0
2024,0,0
0,0,0`
}

// MakeRegistersFrame creates the frame form of RegistersCSV.
func MakeRegistersFrame() *dataframe.DataFrame {
	return dataframe.NewDataFrame(
		dataframe.NewSeriesInt64("a", nil, 729, 2024, 0),
		dataframe.NewSeriesInt64("b", nil, 0, 0, 0),
		dataframe.NewSeriesInt64("c", nil, 0, 0, 0),
	)
}

// AssertOutput checks a machine's output string.
func AssertOutput(t *testing.T, m *vm.Machine, want string) {
	t.Helper()
	if got := m.OutputString(); got != want {
		t.Errorf("expected output %q, got %q", want, got)
	}
}

// AssertInt64Equal checks if two int64 values are equal.
func AssertInt64Equal(t *testing.T, expected, actual int64) {
	t.Helper()
	if expected != actual {
		t.Errorf("expected %d, got %d", expected, actual)
	}
}
