package vm

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// ===== Single-instruction behaviour =====

func TestVM_BstFromC(t *testing.T) {
	m := NewMachine(Words(2, 6), RegisterFile{C: 9})

	more, err := m.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if more {
		t.Error("expected machine to halt after one step")
	}
	if m.Registers().B != 1 {
		t.Errorf("expected B = 1, got %d", m.Registers().B)
	}
}

func TestVM_OutputSequence(t *testing.T) {
	m := NewMachine(Words(5, 0, 5, 1, 5, 4), RegisterFile{A: 10})

	steps, err := m.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if steps != 3 {
		t.Errorf("expected 3 steps, got %d", steps)
	}
	if diff := cmp.Diff(Words(0, 1, 2), m.Output()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if m.OutputString() != "0,1,2" {
		t.Errorf("expected \"0,1,2\", got %q", m.OutputString())
	}
}

func TestVM_LoopClearsA(t *testing.T) {
	m := NewMachine(Words(0, 1, 5, 4, 3, 0), RegisterFile{A: 2024})

	if _, err := m.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if m.Registers().A != 0 {
		t.Errorf("expected A = 0, got %d", m.Registers().A)
	}
	if got := m.OutputString(); got != "4,2,5,6,7,7,7,7,3,1,0" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestVM_BxlLiteral(t *testing.T) {
	m := NewMachine(Words(1, 7), RegisterFile{B: 29})

	if _, err := m.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if m.Registers().B != 26 {
		t.Errorf("expected B = 26, got %d", m.Registers().B)
	}
}

func TestVM_BxcIgnoresOperand(t *testing.T) {
	m := NewMachine(Words(4, 0), RegisterFile{B: 2024, C: 43690})

	if _, err := m.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if m.Registers().B != 44354 {
		t.Errorf("expected B = 44354, got %d", m.Registers().B)
	}
}

func TestVM_ExampleProgram(t *testing.T) {
	m := NewMachine(Words(0, 1, 5, 4, 3, 0), RegisterFile{A: 729})

	if _, err := m.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := m.OutputString(); got != "4,6,3,5,6,3,5,2,1,0" {
		t.Errorf("expected 4,6,3,5,6,3,5,2,1,0, got %s", got)
	}
}

func TestVM_DivideVariants(t *testing.T) {
	tests := []struct {
		name string
		code []Word
		regs RegisterFile
		want RegisterFile
	}{
		{"adv literal", Words(0, 2), RegisterFile{A: 100}, RegisterFile{A: 25}},
		{"bdv from A", Words(6, 3), RegisterFile{A: 100}, RegisterFile{A: 100, B: 12}},
		{"cdv by B", Words(7, 5), RegisterFile{A: 100, B: 1}, RegisterFile{A: 100, B: 1, C: 50}},
		{"adv by zero exponent", Words(0, 0), RegisterFile{A: 77}, RegisterFile{A: 77}},
		{"adv by A", Words(0, 4), RegisterFile{A: 3}, RegisterFile{A: 0}},
		{"negative truncates toward zero", Words(0, 1), RegisterFile{A: -7}, RegisterFile{A: -3}},
		{"huge exponent", Words(0, 6), RegisterFile{A: math.MaxInt64, C: 1000}, RegisterFile{A: 0, C: 1000}},
		{"exponent 63", Words(0, 6), RegisterFile{A: math.MaxInt64, C: 63}, RegisterFile{A: 0, C: 63}},
		{"exponent 63 min int", Words(0, 6), RegisterFile{A: math.MinInt64, C: 63}, RegisterFile{A: -1, C: 63}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(tt.code, tt.regs)
			if _, err := m.Step(); err != nil {
				t.Fatalf("Step failed: %v", err)
			}
			if diff := cmp.Diff(tt.want, m.Registers()); diff != "" {
				t.Errorf("registers mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVM_DivisionBitWidth(t *testing.T) {
	for k := int64(64); k < 70; k++ {
		v, err := divPow2(math.MaxInt64, k)
		if err != nil {
			t.Fatalf("divPow2(%d) failed: %v", k, err)
		}
		if v != 0 {
			t.Errorf("expected 0 for k=%d, got %d", k, v)
		}
	}
	for _, a := range []int64{0, 1, 8, 12345} {
		v, _ := divPow2(a, 0)
		if v != a {
			t.Errorf("divPow2(%d, 0) = %d, want %d", a, v, a)
		}
	}
}

func TestVM_JumpNotTakenWhenAZero(t *testing.T) {
	m := NewMachine(Words(3, 4, 5, 1), RegisterFile{})

	if _, err := m.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if m.IP() != 2 {
		t.Errorf("expected ip 2 after untaken jump, got %d", m.IP())
	}
}

func TestVM_JumpTaken(t *testing.T) {
	m := NewMachine(Words(5, 1, 3, 0), RegisterFile{A: 1})

	if _, err := m.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if _, err := m.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if m.IP() != 0 {
		t.Errorf("expected ip 0 after taken jump, got %d", m.IP())
	}
}

func TestVM_JumpPastEndHalts(t *testing.T) {
	m := NewMachine(Words(3, 7, 5, 4), RegisterFile{A: 1})

	more, err := m.Step()
	if err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	if more || !m.Halted() {
		t.Error("expected machine to halt after jumping past the end")
	}
	if m.IP() != 4 {
		t.Errorf("expected ip 4 after exit jump, got %d", m.IP())
	}
}

func TestVM_NegativeRegisterEmitsInRange(t *testing.T) {
	m := NewMachine(Words(5, 4, 2, 4), RegisterFile{A: -3})

	if _, err := m.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := m.Output(); len(got) != 1 || got[0] != 5 {
		t.Errorf("expected output [5], got %v", got)
	}
	if m.Registers().B != 5 {
		t.Errorf("expected B = 5, got %d", m.Registers().B)
	}
}

// ===== Errors =====

func TestVM_ReservedComboOperand(t *testing.T) {
	for _, op := range []int{0, 2, 5, 6, 7} {
		m := NewMachine(Words(op, 7), RegisterFile{A: 5, B: 3})
		before := m.Registers()

		_, err := m.Step()
		if !errors.Is(err, ErrInvalidOperand) {
			t.Errorf("opcode %d: expected ErrInvalidOperand, got %v", op, err)
		}
		if m.IP() != 0 || m.Registers() != before {
			t.Errorf("opcode %d: failed step must not change state", op)
		}
	}
}

func TestVM_LiteralSevenIsValid(t *testing.T) {
	// BXL and JNZ read 7 as a literal.
	m := NewMachine(Words(1, 7, 3, 7), RegisterFile{})
	if _, err := m.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if m.Registers().B != 7 {
		t.Errorf("expected B = 7, got %d", m.Registers().B)
	}
}

func TestVM_NegativeExponent(t *testing.T) {
	m := NewMachine(Words(0, 5), RegisterFile{A: 64, B: -1})
	if _, err := m.Step(); !errors.Is(err, ErrInvalidOperand) {
		t.Errorf("expected ErrInvalidOperand, got %v", err)
	}
}

func TestVM_MissingOperand(t *testing.T) {
	m := NewMachine(Words(5, 4, 5), RegisterFile{A: 1})

	_, err := m.Run()
	if !errors.Is(err, ErrMalformedInstructionStream) {
		t.Fatalf("expected ErrMalformedInstructionStream, got %v", err)
	}
	if got := m.OutputString(); got != "1" {
		t.Errorf("expected output from the first instruction, got %q", got)
	}
}

func TestVM_InvalidOpcodeWord(t *testing.T) {
	m := NewMachine([]Word{9, 0}, RegisterFile{})
	if _, err := m.Step(); !errors.Is(err, ErrInvalidOpcode) {
		t.Errorf("expected ErrInvalidOpcode, got %v", err)
	}
}

func TestVM_StepLimit(t *testing.T) {
	// JNZ 0 with A != 0 never halts.
	m := NewMachine(Words(3, 0), RegisterFile{A: 1})
	m.SetMaxSteps(100)

	steps, err := m.Run()
	if !errors.Is(err, ErrStepLimitExceeded) {
		t.Fatalf("expected ErrStepLimitExceeded, got %v", err)
	}
	if steps != 100 {
		t.Errorf("expected 100 steps, got %d", steps)
	}
}

func TestVM_StepOnHaltedMachine(t *testing.T) {
	m := NewMachine(nil, RegisterFile{})
	more, err := m.Step()
	if err != nil || more {
		t.Errorf("expected (false, nil) on empty program, got (%v, %v)", more, err)
	}
	if !m.Halted() {
		t.Error("expected empty program to be halted")
	}
}

// ===== Properties =====

func TestVM_InstructionPointerAlignment(t *testing.T) {
	code := Words(2, 4, 1, 3, 7, 5, 0, 3, 1, 5, 4, 4, 5, 5, 3, 0)
	for a := int64(0); a < 512; a++ {
		m := NewMachine(code, NewRegisterFile(a))
		for {
			more, err := m.Step()
			if err != nil {
				t.Fatalf("a=%d: Step failed: %v", a, err)
			}
			ip := m.IP()
			if ip < 0 || ip > len(code) || (ip < len(code) && ip%2 != 0) {
				t.Fatalf("a=%d: bad instruction pointer %d", a, ip)
			}
			if !more {
				break
			}
		}
		if m.IP() != len(code) {
			t.Fatalf("a=%d: halted at %d, want %d", a, m.IP(), len(code))
		}
	}
}

func TestVM_Deterministic(t *testing.T) {
	code := Words(2, 4, 1, 3, 7, 5, 0, 3, 1, 5, 4, 4, 5, 5, 3, 0)
	for _, a := range []int64{1, 729, 2024, 117440, 1 << 40} {
		m1 := NewMachine(code, NewRegisterFile(a))
		m2 := NewMachine(code, NewRegisterFile(a))
		if _, err := m1.Run(); err != nil {
			t.Fatal(err)
		}
		if _, err := m2.Run(); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(m1.Output(), m2.Output()); diff != "" {
			t.Errorf("a=%d: outputs differ:\n%s", a, diff)
		}
		if m1.Registers() != m2.Registers() {
			t.Errorf("a=%d: registers differ: %v vs %v", a, m1.Registers(), m2.Registers())
		}
	}
}

func TestVM_ResetReusesCode(t *testing.T) {
	code := Words(0, 3, 5, 4, 3, 0)
	m := NewMachine(code, NewRegisterFile(2024))
	if _, err := m.Run(); err != nil {
		t.Fatal(err)
	}
	first := m.OutputString()

	m.Reset(NewRegisterFile(117440))
	if m.IP() != 0 || len(m.Output()) != 0 || m.Steps() != 0 {
		t.Fatal("Reset did not clear run state")
	}
	if _, err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if m.OutputString() != "0,3,5,4,3,0" {
		t.Errorf("expected quine output, got %s", m.OutputString())
	}

	m.Reset(NewRegisterFile(2024))
	if _, err := m.Run(); err != nil {
		t.Fatal(err)
	}
	if m.OutputString() != first {
		t.Errorf("expected %s after reset, got %s", first, m.OutputString())
	}
	if diff := cmp.Diff(Words(0, 3, 5, 4, 3, 0), code); diff != "" {
		t.Errorf("code was modified:\n%s", diff)
	}
}

func TestVM_OutputIsCopy(t *testing.T) {
	m := NewMachine(Words(5, 4), RegisterFile{A: 3})
	if _, err := m.Run(); err != nil {
		t.Fatal(err)
	}
	out := m.Output()
	out[0] = 0
	if m.Output()[0] != 3 {
		t.Error("Output must return a copy")
	}
}

// ===== Observer =====

func TestVM_Observer(t *testing.T) {
	var events []StepEvent
	m := NewMachine(Words(0, 1, 5, 4, 3, 0), RegisterFile{A: 4})
	m.SetObserver(ObserverFunc(func(ev StepEvent) {
		events = append(events, ev)
	}))

	steps, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != steps {
		t.Fatalf("expected %d events, got %d", steps, len(events))
	}

	first := events[0]
	if first.Opcode != OpAdv || first.IP != 0 || first.Registers.A != 2 {
		t.Errorf("unexpected first event %+v", first)
	}
	if !events[1].Emitted || events[1].Value != 2 {
		t.Errorf("expected OUT event emitting 2, got %+v", events[1])
	}
	if !events[2].Jumped {
		t.Error("expected jump on third step")
	}
}

func TestVM_OpCounter(t *testing.T) {
	counter := &OpCounter{}
	m := NewMachine(Words(0, 1, 5, 4, 3, 0), RegisterFile{A: 2024})
	m.SetObserver(counter)

	steps, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	if counter.Steps != steps {
		t.Errorf("expected %d steps counted, got %d", steps, counter.Steps)
	}
	if counter.Counts[OpOut] != 11 || counter.Emits != 11 {
		t.Errorf("expected 11 OUT, got %d (emits %d)", counter.Counts[OpOut], counter.Emits)
	}
	if counter.Jumps != 10 {
		t.Errorf("expected 10 taken jumps, got %d", counter.Jumps)
	}
	byName := counter.ByName()
	if byName["ADV"] != 11 || byName["JNZ"] != 11 {
		t.Errorf("unexpected counts %v", byName)
	}
	if counter.String() == "" {
		t.Error("expected non-empty summary")
	}
}

func TestVM_RunContextCancelled(t *testing.T) {
	// JNZ 0 never halts while A != 0.
	m := NewMachine(Words(3, 0), NewRegisterFile(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.RunContext(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	steps, err := m.RunContext(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if steps == 0 {
		t.Error("expected some steps before the deadline")
	}
}
