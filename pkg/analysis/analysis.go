// Package analysis inspects an instruction stream without running it.
//
//	report := analysis.New(analysis.WithAllChecks()).Analyze(program.Code)
//	if !report.Shape.DigitsSafe {
//		// fall back to brute force
//	}
package analysis

import (
	"fmt"
	"strings"

	"github.com/akhildatla/tribit/pkg/vm"
)

// Analyzer runs a configurable set of static checks.
type Analyzer struct {
	enableJumps     bool
	enableOperands  bool
	enableLoopShape bool
}

// Option is a functional option for the Analyzer.
type Option func(*Analyzer)

// WithJumpCheck reports jumps to odd addresses or past the end.
func WithJumpCheck() Option {
	return func(a *Analyzer) {
		a.enableJumps = true
	}
}

// WithOperandCheck reports reserved combo operands.
func WithOperandCheck() Option {
	return func(a *Analyzer) {
		a.enableOperands = true
	}
}

// WithLoopShape checks for the single shift-by-three loop that digit
// reconstruction relies on.
func WithLoopShape() Option {
	return func(a *Analyzer) {
		a.enableLoopShape = true
	}
}

// WithAllChecks enables every check.
func WithAllChecks() Option {
	return func(a *Analyzer) {
		a.enableJumps = true
		a.enableOperands = true
		a.enableLoopShape = true
	}
}

// New creates an Analyzer with the given options.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Report is the result of Analyze. Addresses are word offsets.
type Report struct {
	Words        int
	Instructions int

	// MisalignedJumps lists JNZ instructions with an odd target.
	MisalignedJumps []int
	// ExitJumps lists JNZ instructions whose target halts the machine.
	ExitJumps []int

	// ReservedOperands lists addresses of instructions whose combo operand
	// is 7. They fail if executed.
	ReservedOperands []int

	Shape LoopShape
}

// Analyze runs the enabled checks over code. Code that fails
// vm.ValidateCode is analysed up to its last complete instruction.
func (a *Analyzer) Analyze(code []vm.Word) *Report {
	r := &Report{
		Words:        len(code),
		Instructions: len(code) / 2,
	}

	if a.enableJumps {
		r.MisalignedJumps, r.ExitJumps = jumpTargets(code)
	}
	if a.enableOperands {
		r.ReservedOperands = reservedOperands(code)
	}
	if a.enableLoopShape {
		r.Shape = loopShape(code)
	}
	return r
}

// Issues describes everything the report found, one line per problem.
func (r *Report) Issues() []string {
	var issues []string
	for _, addr := range r.MisalignedJumps {
		issues = append(issues, fmt.Sprintf("%04d: jump to odd address", addr))
	}
	for _, addr := range r.ExitJumps {
		issues = append(issues, fmt.Sprintf("%04d: jump past the end halts", addr))
	}
	for _, addr := range r.ReservedOperands {
		issues = append(issues, fmt.Sprintf("%04d: reserved combo operand 7", addr))
	}
	issues = append(issues, r.Shape.Problems...)
	return issues
}

// String renders the report as text.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "; %d words, %d instructions\n", r.Words, r.Instructions)
	if r.Shape.checked {
		fmt.Fprintf(&b, "; shift per loop: %d bits, %d emit(s) per loop, digits-safe: %t\n",
			r.Shape.ShiftBits, r.Shape.Emits, r.Shape.DigitsSafe)
	}
	for _, issue := range r.Issues() {
		fmt.Fprintf(&b, "; %s\n", issue)
	}
	return b.String()
}

// instructions returns the addresses of complete (opcode, operand) pairs.
func instructions(code []vm.Word) []int {
	var addrs []int
	for ip := 0; ip+1 < len(code); ip += 2 {
		addrs = append(addrs, ip)
	}
	return addrs
}
