package vm

import "fmt"

// Register names one of the three machine registers.
type Register uint8

const (
	RegA Register = iota
	RegB
	RegC
)

// NumRegisters is the number of addressable registers.
const NumRegisters = 3

// String returns the register label as it appears in program text.
func (r Register) String() string {
	switch r {
	case RegA:
		return "A"
	case RegB:
		return "B"
	case RegC:
		return "C"
	default:
		return fmt.Sprintf("R%d", uint8(r))
	}
}

// ParseRegister maps a label ("A", "B", "C") to a Register.
func ParseRegister(label string) (Register, bool) {
	switch label {
	case "A":
		return RegA, true
	case "B":
		return RegB, true
	case "C":
		return RegC, true
	}
	return 0, false
}

// RegisterFile holds the three signed 64-bit registers.
type RegisterFile struct {
	A int64
	B int64
	C int64
}

// NewRegisterFile creates a register file with A set and B, C zeroed.
func NewRegisterFile(a int64) RegisterFile {
	return RegisterFile{A: a}
}

// Get returns the value of a register.
func (rf *RegisterFile) Get(r Register) int64 {
	switch r {
	case RegA:
		return rf.A
	case RegB:
		return rf.B
	default:
		return rf.C
	}
}

// Set stores a value into a register.
func (rf *RegisterFile) Set(r Register, v int64) {
	switch r {
	case RegA:
		rf.A = v
	case RegB:
		rf.B = v
	default:
		rf.C = v
	}
}

// Reset clears all registers.
func (rf *RegisterFile) Reset() {
	rf.A, rf.B, rf.C = 0, 0, 0
}

func (rf RegisterFile) String() string {
	return fmt.Sprintf("A=%d B=%d C=%d", rf.A, rf.B, rf.C)
}
