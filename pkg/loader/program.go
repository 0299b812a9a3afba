// Package loader reads machine programs and tabular register sets.
//
// A program file looks like:
//
//	Register A: 729
//	Register B: 0
//	Register C: 0
//
//	Program: 0,1,5,4,3,0
package loader

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/akhildatla/tribit/pkg/vm"
)

// Error definitions
var (
	ErrParse            = errors.New("parse error")
	ErrMalformedProgram = errors.New("malformed program")
)

const (
	registerPrefix = "Register "
	programPrefix  = "Program:"
)

// ParseError reports a problem in program text. Line is 1-based; zero
// means the problem is not tied to a single line (e.g. a missing section).
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error: line %d: %s", e.Line, e.Msg)
	}
	return "parse error: " + e.Msg
}

// Unwrap lets errors.Is match ErrParse.
func (e *ParseError) Unwrap() error { return ErrParse }

func parseErr(line int, format string, args ...any) error {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// LoadProgram reads and parses a program file.
func LoadProgram(path string) (*vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := ParseProgram(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseProgram parses program text into an initial machine state.
// Register lines are matched by label and may appear in any order.
func ParseProgram(text string) (*vm.Program, error) {
	var (
		regs    vm.RegisterFile
		seen    [vm.NumRegisters]bool
		code    []vm.Word
		hasCode bool
	)

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, registerPrefix):
			reg, value, err := parseRegisterLine(lineNo, line)
			if err != nil {
				return nil, err
			}
			if seen[reg] {
				return nil, parseErr(lineNo, "register %s defined twice", reg)
			}
			seen[reg] = true
			regs.Set(reg, value)

		case strings.HasPrefix(line, programPrefix):
			if hasCode {
				return nil, parseErr(lineNo, "program defined twice")
			}
			words, err := parseProgramLine(lineNo, line)
			if err != nil {
				return nil, err
			}
			code = words
			hasCode = true

		default:
			return nil, parseErr(lineNo, "unexpected line %q", line)
		}
	}

	for r := vm.Register(0); r < vm.NumRegisters; r++ {
		if !seen[r] {
			return nil, parseErr(0, "missing register %s", r)
		}
	}
	if !hasCode {
		return nil, parseErr(0, "missing program line")
	}

	return &vm.Program{Registers: regs, Code: code}, nil
}

// parseRegisterLine parses "Register X: <int>".
func parseRegisterLine(lineNo int, line string) (vm.Register, int64, error) {
	rest := strings.TrimPrefix(line, registerPrefix)
	label, value, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, parseErr(lineNo, "expected ':' after register label")
	}

	reg, ok := vm.ParseRegister(strings.TrimSpace(label))
	if !ok {
		return 0, 0, parseErr(lineNo, "unknown register %q", strings.TrimSpace(label))
	}

	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, 0, parseErr(lineNo, "invalid value for register %s: %q", reg, strings.TrimSpace(value))
	}
	return reg, n, nil
}

// parseProgramLine parses "Program: w,w,...".
func parseProgramLine(lineNo int, line string) ([]vm.Word, error) {
	list := strings.TrimSpace(strings.TrimPrefix(line, programPrefix))
	if list == "" {
		return nil, parseErr(lineNo, "empty program")
	}

	fields := strings.Split(list, ",")
	code := make([]vm.Word, 0, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		n, err := strconv.ParseInt(f, 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			return nil, fmt.Errorf("%w: line %d: program value %d: %q does not fit in 3 bits", ErrMalformedProgram, lineNo, i, f)
		}
		if err != nil {
			return nil, parseErr(lineNo, "program value %d: invalid integer %q", i, f)
		}
		w, err := vm.NewWord(n)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: program value %d: %v", ErrMalformedProgram, lineNo, i, err)
		}
		code = append(code, w)
	}
	return code, nil
}

// FormatProgram renders p in the text form ParseProgram accepts.
func FormatProgram(p *vm.Program) string {
	var sb strings.Builder
	for r := vm.Register(0); r < vm.NumRegisters; r++ {
		fmt.Fprintf(&sb, "%s%s: %d\n", registerPrefix, r, p.Registers.Get(r))
	}
	sb.WriteString("\n")
	sb.WriteString(programPrefix)
	sb.WriteString(" ")
	sb.WriteString(vm.JoinOutput(p.Code))
	sb.WriteString("\n")
	return sb.String()
}
