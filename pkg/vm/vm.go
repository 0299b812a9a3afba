// Package vm implements the three-register machine.
//
// The machine has three signed 64-bit registers (A, B, C), an instruction
// pointer and an append-only output sequence. Its program is a read-only
// stream of 3-bit words consumed two at a time as (opcode, operand).
//
// Basic usage:
//
//	m := vm.New(program)
//	if _, err := m.Run(); err != nil {
//		return err
//	}
//	fmt.Println(m.OutputString())
//
// With a step limit, for programs that may not halt:
//
//	m := vm.NewMachine(code, vm.NewRegisterFile(a))
//	m.SetMaxSteps(100000)
//	steps, err := m.Run()
package vm

import (
	"context"
	"errors"
	"fmt"
)

// Error definitions
var (
	ErrInvalidOperand             = errors.New("invalid operand")
	ErrInvalidOpcode              = errors.New("invalid opcode")
	ErrMalformedInstructionStream = errors.New("malformed instruction stream")
	ErrStepLimitExceeded          = errors.New("step limit exceeded")
)

// StepEvent describes one executed instruction. Registers holds the state
// after the instruction ran.
type StepEvent struct {
	Step      int
	IP        int
	Opcode    Opcode
	Operand   Word
	Registers RegisterFile
	Emitted   bool
	Value     Word // valid when Emitted
	Jumped    bool
}

// Observer is notified after every successful step.
type Observer interface {
	ObserveStep(ev StepEvent)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev StepEvent)

// ObserveStep calls f(ev).
func (f ObserverFunc) ObserveStep(ev StepEvent) { f(ev) }

// Machine is a single run of a program. It is not safe for concurrent use;
// concurrent runs each need their own Machine over the shared code.
type Machine struct {
	regs   RegisterFile
	code   []Word
	ip     int
	output []Word

	maxSteps  int
	stepCount int

	observer Observer
}

// New creates a machine initialised from a loaded program.
func New(p *Program) *Machine {
	return NewMachine(p.Code, p.Registers)
}

// NewMachine creates a machine over code with the given initial registers.
// The code slice is shared, never written.
func NewMachine(code []Word, regs RegisterFile) *Machine {
	return &Machine{
		regs: regs,
		code: code,
	}
}

// SetMaxSteps bounds Run. Zero means unlimited.
func (m *Machine) SetMaxSteps(n int) {
	m.maxSteps = n
}

// SetObserver installs a step observer. Pass nil to remove it.
func (m *Machine) SetObserver(o Observer) {
	m.observer = o
}

// Reset prepares the machine for a fresh run over the same code.
func (m *Machine) Reset(regs RegisterFile) {
	m.regs = regs
	m.ip = 0
	m.stepCount = 0
	m.output = m.output[:0]
}

// Registers returns a copy of the register file.
func (m *Machine) Registers() RegisterFile { return m.regs }

// IP returns the instruction pointer.
func (m *Machine) IP() int { return m.ip }

// Code returns the instruction stream. Callers must not modify it.
func (m *Machine) Code() []Word { return m.code }

// Steps returns how many instructions have executed since the last reset.
func (m *Machine) Steps() int { return m.stepCount }

// Halted reports whether the instruction pointer has left the program.
func (m *Machine) Halted() bool { return m.ip >= len(m.code) }

// Output returns a copy of the output sequence.
func (m *Machine) Output() []Word {
	out := make([]Word, len(m.output))
	copy(out, m.output)
	return out
}

// OutputEquals compares the output with want without copying it.
func (m *Machine) OutputEquals(want []Word) bool {
	return EqualWords(m.output, want)
}

// OutputString returns the output as a comma-joined string.
func (m *Machine) OutputString() string {
	return JoinOutput(m.output)
}

// Step executes the instruction at the pointer and reports whether another
// step is possible. On error the machine state is left untouched.
func (m *Machine) Step() (bool, error) {
	if m.ip+1 >= len(m.code) {
		if m.ip >= len(m.code) {
			return false, nil
		}
		return false, fmt.Errorf("%w: opcode at %d has no operand", ErrMalformedInstructionStream, m.ip)
	}

	op, err := DecodeOpcode(m.code[m.ip])
	if err != nil {
		return false, err
	}
	operand := m.code[m.ip+1]
	if operand > MaxWord {
		return false, fmt.Errorf("%w: operand %d at %d", ErrInvalidOperand, operand, m.ip+1)
	}

	ev := StepEvent{Step: m.stepCount, IP: m.ip, Opcode: op, Operand: operand}
	next := m.ip + 2

	switch op {
	case OpAdv, OpBdv, OpCdv:
		k, err := m.regs.combo(operand)
		if err != nil {
			return false, err
		}
		v, err := divPow2(m.regs.A, k)
		if err != nil {
			return false, err
		}
		switch op {
		case OpAdv:
			m.regs.A = v
		case OpBdv:
			m.regs.B = v
		default:
			m.regs.C = v
		}

	case OpBxl:
		m.regs.B ^= int64(operand)

	case OpBst:
		v, err := m.regs.combo(operand)
		if err != nil {
			return false, err
		}
		m.regs.B = mod8(v)

	case OpJnz:
		if m.regs.A != 0 {
			next = int(operand)
			ev.Jumped = true
		}
		// A target past the end halts with ip == len(code).
		if next > len(m.code) {
			next = len(m.code)
		}

	case OpBxc:
		m.regs.B ^= m.regs.C

	case OpOut:
		v, err := m.regs.combo(operand)
		if err != nil {
			return false, err
		}
		w := Word(mod8(v))
		m.output = append(m.output, w)
		ev.Emitted = true
		ev.Value = w
	}

	m.ip = next
	m.stepCount++

	if m.observer != nil {
		ev.Registers = m.regs
		m.observer.ObserveStep(ev)
	}

	return m.ip < len(m.code), nil
}

// Run steps until the machine halts and returns the number of steps taken.
func (m *Machine) Run() (int, error) {
	return m.RunContext(context.Background())
}

// ctxCheckInterval is how many steps RunContext executes between context
// checks.
const ctxCheckInterval = 1024

// RunContext is Run with cancellation. The context is polled every
// ctxCheckInterval steps.
func (m *Machine) RunContext(ctx context.Context) (int, error) {
	start := m.stepCount
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for !m.Halted() {
		if m.maxSteps > 0 && m.stepCount >= m.maxSteps {
			return m.stepCount - start, ErrStepLimitExceeded
		}
		if (m.stepCount-start)%ctxCheckInterval == ctxCheckInterval-1 {
			if err := ctx.Err(); err != nil {
				return m.stepCount - start, err
			}
		}
		more, err := m.Step()
		if err != nil {
			return m.stepCount - start, err
		}
		if !more {
			break
		}
	}
	return m.stepCount - start, nil
}

// mod8 reduces v to 0-7. For negative v the remainder is taken as
// non-negative so the result always fits in a Word.
func mod8(v int64) int64 {
	return v & 7
}
