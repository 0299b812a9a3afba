// Package repl provides an interactive debugger for tribit programs.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/akhildatla/tribit/pkg/analysis"
	"github.com/akhildatla/tribit/pkg/loader"
	"github.com/akhildatla/tribit/pkg/vm"
)

const (
	prompt     = "tribit> "
	promptCont = "...> "
)

// DefaultMaxSteps bounds run so a non-halting program returns control.
const DefaultMaxSteps = 1_000_000

var (
	errNoProgram      = errors.New("no program loaded (use 'load <path>' or enter program text)")
	errNoInitialState = errors.New("restored snapshot has no initial registers (use 'load <path>' to start over)")
)

// REPL provides an interactive Read-Eval-Print Loop over one machine.
type REPL struct {
	program     *vm.Program
	machine     *vm.Machine
	counter     *vm.OpCounter
	breakpoints map[int]bool
	maxSteps    int
	history     []string
	multiline   strings.Builder
	inMultiline bool
	done        bool
}

// New creates a new REPL instance with no program loaded.
func New() *REPL {
	return &REPL{
		breakpoints: make(map[int]bool),
		maxSteps:    DefaultMaxSteps,
		history:     []string{},
	}
}

// SetProgram loads p and resets the machine to its initial registers.
func (r *REPL) SetProgram(p *vm.Program) {
	r.program = p
	r.breakpoints = make(map[int]bool)
	r.attach(vm.New(p))
}

// SetMaxSteps bounds each run command. Zero means unlimited.
func (r *REPL) SetMaxSteps(n int) {
	r.maxSteps = n
}

// Machine returns the current machine, or nil.
func (r *REPL) Machine() *vm.Machine {
	return r.machine
}

func (r *REPL) attach(m *vm.Machine) {
	r.counter = &vm.OpCounter{}
	m.SetObserver(r.counter)
	r.machine = m
}

// Start runs the loop until in is exhausted or the user quits.
func (r *REPL) Start(in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "tribit debugger")
	fmt.Fprintln(out, "Type 'help' for available commands, 'quit' to exit")
	fmt.Fprintln(out)

	for !r.done {
		if r.inMultiline {
			fmt.Fprint(out, promptCont)
		} else {
			fmt.Fprint(out, prompt)
		}

		if !scanner.Scan() {
			break
		}

		line := scanner.Text()

		// Program text is entered line by line and ends with the Program line.
		if r.inMultiline || strings.HasPrefix(line, "Register ") || strings.HasPrefix(line, "Program:") {
			r.inMultiline = true
			r.multiline.WriteString(line)
			r.multiline.WriteString("\n")
			if strings.HasPrefix(strings.TrimSpace(line), "Program:") {
				r.inMultiline = false
				text := r.multiline.String()
				r.multiline.Reset()
				r.loadText(text, out)
			}
			continue
		}

		if strings.TrimSpace(line) != "" {
			r.history = append(r.history, line)
		}
		if !r.handleCommand(line, out) {
			fmt.Fprintf(out, "Unknown command %q. Type 'help' for a list.\n", strings.Fields(line)[0])
		}
	}
}

func (r *REPL) handleCommand(line string, out io.Writer) bool {
	parts := strings.Fields(strings.TrimSpace(line))

	if len(parts) == 0 {
		return true
	}

	var err error
	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		r.done = true

	case "help", "h", "?":
		r.printHelp(out)

	case "load":
		if len(parts) != 2 {
			fmt.Fprintln(out, "Usage: load <path>")
			return true
		}
		err = r.loadFile(parts[1], out)

	case "step", "s":
		n := 1
		if len(parts) > 1 {
			n, err = strconv.Atoi(parts[1])
			if err != nil || n < 1 {
				fmt.Fprintln(out, "Usage: step [n]")
				return true
			}
		}
		err = r.step(n, out)

	case "run", "continue", "c":
		err = r.run(out)

	case "regs", "r":
		err = r.printRegisters(out)

	case "out", "o":
		if r.machine == nil {
			err = errNoProgram
		} else {
			fmt.Fprintf(out, "[%s]\n", r.machine.OutputString())
		}

	case "set":
		if len(parts) != 3 {
			fmt.Fprintln(out, "Usage: set <a|b|c> <value>")
			return true
		}
		err = r.setRegister(parts[1], parts[2], out)

	case "reset":
		switch {
		case r.program != nil:
			r.attach(vm.New(r.program))
			fmt.Fprintln(out, "Machine reset")
		case r.machine != nil:
			err = errNoInitialState
		default:
			err = errNoProgram
		}

	case "disasm", "d":
		if r.machine == nil {
			err = errNoProgram
		} else {
			r.printDisassembly(out)
		}

	case "check":
		if r.machine == nil {
			err = errNoProgram
		} else {
			fmt.Fprint(out, analysis.New(analysis.WithAllChecks()).Analyze(r.machine.Code()).String())
		}

	case "break", "b":
		err = r.toggleBreakpoint(parts[1:], out)

	case "stats":
		if r.machine == nil {
			err = errNoProgram
		} else {
			fmt.Fprintf(out, "%d steps, %d jumps, %d emits\n", r.counter.Steps, r.counter.Jumps, r.counter.Emits)
			fmt.Fprintln(out, r.counter.String())
		}

	case "save":
		if len(parts) != 2 {
			fmt.Fprintln(out, "Usage: save <path>")
			return true
		}
		err = r.save(parts[1], out)

	case "restore":
		if len(parts) != 2 {
			fmt.Fprintln(out, "Usage: restore <path>")
			return true
		}
		err = r.restore(parts[1], out)

	case "history":
		for i, cmd := range r.history {
			fmt.Fprintf(out, "%3d: %s\n", i+1, cmd)
		}

	default:
		return false
	}

	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	return true
}

func (r *REPL) loadFile(path string, out io.Writer) error {
	p, err := loader.LoadProgram(path)
	if err != nil {
		return err
	}
	r.SetProgram(p)
	fmt.Fprintf(out, "Loaded %s (%d words, %s)\n", path, len(p.Code), p.Registers.String())
	return nil
}

func (r *REPL) loadText(text string, out io.Writer) {
	p, err := loader.ParseProgram(text)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	r.SetProgram(p)
	fmt.Fprintf(out, "Loaded program (%d words, %s)\n", len(p.Code), p.Registers.String())
}

// step executes up to n instructions, printing each one. It stops early on
// halt, error or a breakpoint reached after the first step.
func (r *REPL) step(n int, out io.Writer) error {
	if r.machine == nil {
		return errNoProgram
	}
	m := r.machine

	for i := 0; i < n; i++ {
		if m.Halted() {
			fmt.Fprintln(out, "halted")
			return nil
		}
		if i > 0 && r.breakpoints[m.IP()] {
			fmt.Fprintf(out, "breakpoint at %04d\n", m.IP())
			return nil
		}

		ip := m.IP()
		text := r.currentInstruction()
		if _, err := m.Step(); err != nil {
			return err
		}
		fmt.Fprintf(out, "%04d: %-14s %s\n", ip, text, m.Registers().String())
	}

	if m.Halted() {
		fmt.Fprintln(out, "halted")
	}
	return nil
}

// run continues until halt, a breakpoint or the step limit.
func (r *REPL) run(out io.Writer) error {
	if r.machine == nil {
		return errNoProgram
	}
	m := r.machine
	start := m.Steps()

	first := true
	for !m.Halted() {
		if !first && r.breakpoints[m.IP()] {
			fmt.Fprintf(out, "breakpoint at %04d after %d steps\n", m.IP(), m.Steps()-start)
			return nil
		}
		if r.maxSteps > 0 && m.Steps()-start >= r.maxSteps {
			return fmt.Errorf("%w after %d steps", vm.ErrStepLimitExceeded, r.maxSteps)
		}
		if _, err := m.Step(); err != nil {
			return err
		}
		first = false
	}

	fmt.Fprintf(out, "halted after %d steps\n", m.Steps()-start)
	fmt.Fprintf(out, "[%s]\n", m.OutputString())
	return nil
}

func (r *REPL) currentInstruction() string {
	code := r.machine.Code()
	ip := r.machine.IP()
	if ip+1 >= len(code) {
		return fmt.Sprintf("%d ; missing operand", code[ip])
	}
	return vm.DisassembleInstruction(code[ip], code[ip+1])
}

func (r *REPL) printRegisters(out io.Writer) error {
	if r.machine == nil {
		return errNoProgram
	}
	fmt.Fprintf(out, "%s IP=%d\n", r.machine.Registers().String(), r.machine.IP())
	return nil
}

func (r *REPL) setRegister(name, value string, out io.Writer) error {
	if r.machine == nil {
		return errNoProgram
	}
	reg, ok := vm.ParseRegister(strings.ToUpper(name))
	if !ok {
		return fmt.Errorf("unknown register %q", name)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid value %q", value)
	}

	if r.machine.Steps() > 0 {
		return fmt.Errorf("machine has already run %d steps; use 'reset' first", r.machine.Steps())
	}

	regs := r.machine.Registers()
	regs.Set(reg, n)
	r.program = &vm.Program{Registers: regs, Code: r.machine.Code()}
	r.attach(vm.New(r.program))
	fmt.Fprintf(out, "%s\n", regs.String())
	return nil
}

func (r *REPL) printDisassembly(out io.Writer) {
	ip := r.machine.IP()
	for _, line := range strings.Split(strings.TrimRight(vm.Disassemble(r.machine.Code()), "\n"), "\n") {
		marker := []byte("  ")
		if addr, err := strconv.Atoi(strings.SplitN(line, ":", 2)[0]); err == nil {
			if r.breakpoints[addr] {
				marker[0] = '*'
			}
			if addr == ip {
				marker[1] = '>'
			}
		}
		fmt.Fprintf(out, "%s %s\n", marker, line)
	}
}

func (r *REPL) toggleBreakpoint(args []string, out io.Writer) error {
	if r.machine == nil {
		return errNoProgram
	}
	if len(args) == 0 {
		if len(r.breakpoints) == 0 {
			fmt.Fprintln(out, "No breakpoints")
			return nil
		}
		addrs := make([]int, 0, len(r.breakpoints))
		for addr := range r.breakpoints {
			addrs = append(addrs, addr)
		}
		sort.Ints(addrs)
		fmt.Fprintln(out, "Breakpoints:")
		for _, addr := range addrs {
			fmt.Fprintf(out, "  %04d\n", addr)
		}
		return nil
	}

	addr, err := strconv.Atoi(args[0])
	if err != nil || addr < 0 || addr >= len(r.machine.Code()) {
		return fmt.Errorf("invalid address %q", args[0])
	}
	if r.breakpoints[addr] {
		delete(r.breakpoints, addr)
		fmt.Fprintf(out, "Breakpoint at %04d removed\n", addr)
	} else {
		r.breakpoints[addr] = true
		fmt.Fprintf(out, "Breakpoint at %04d set\n", addr)
	}
	return nil
}

func (r *REPL) save(path string, out io.Writer) error {
	if r.machine == nil {
		return errNoProgram
	}
	data, err := r.machine.Snapshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved snapshot to %s (%d bytes)\n", path, len(data))
	return nil
}

func (r *REPL) restore(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m, err := vm.RestoreSnapshot(data)
	if err != nil {
		return err
	}
	// The initial registers of a different program are not in the snapshot.
	if r.program == nil || !vm.EqualWords(r.program.Code, m.Code()) {
		r.program = nil
		r.breakpoints = make(map[int]bool)
	}
	r.attach(m)
	fmt.Fprintf(out, "Restored %s at IP=%d after %d steps\n", path, m.IP(), m.Steps())
	return nil
}

func (r *REPL) printHelp(out io.Writer) {
	help := `
Commands:
  help, h, ?        Show this help message
  quit, exit, q     Exit the REPL
  load <path>       Load a program file
  step, s [n]       Execute n instructions (default 1)
  run, c            Run until halt or breakpoint
  regs, r           Show registers and IP
  out, o            Show output so far
  set <reg> <n>     Set an initial register before the first step
  reset             Restart from the initial registers
  disasm, d         Disassemble the program
  check             Run static checks on the program
  break, b [addr]   Toggle a breakpoint, or list them
  stats             Show executed opcode counts
  save <path>       Write a snapshot of the machine
  restore <path>    Load a snapshot (reset needs the same program loaded)
  history           Show command history

Program text can be typed directly:
  Register A: 729
  Register B: 0
  Register C: 0
  Program: 0,1,5,4,3,0
The Program line loads it.
`
	fmt.Fprint(out, help)
}
