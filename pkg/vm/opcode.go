package vm

import "fmt"

// Opcode identifies one of the eight machine instructions.
type Opcode uint8

const (
	OpAdv Opcode = 0 // A = A / 2^combo
	OpBxl Opcode = 1 // B = B ^ literal
	OpBst Opcode = 2 // B = combo % 8
	OpJnz Opcode = 3 // if A != 0: ip = literal
	OpBxc Opcode = 4 // B = B ^ C (operand ignored)
	OpOut Opcode = 5 // output combo % 8
	OpBdv Opcode = 6 // B = A / 2^combo
	OpCdv Opcode = 7 // C = A / 2^combo
)

// NumOpcodes is the size of the instruction set.
const NumOpcodes = 8

// OperandKind describes how an opcode interprets its operand.
type OperandKind uint8

const (
	OperandCombo OperandKind = iota
	OperandLiteral
	OperandIgnored
)

// DecodeOpcode converts a raw word into an Opcode, rejecting anything
// outside the instruction set.
func DecodeOpcode(w Word) (Opcode, error) {
	if w > MaxWord {
		return 0, fmt.Errorf("%w: opcode %d", ErrInvalidOpcode, w)
	}
	return Opcode(w), nil
}

// String returns the mnemonic of an opcode.
func (o Opcode) String() string {
	switch o {
	case OpAdv:
		return "ADV"
	case OpBxl:
		return "BXL"
	case OpBst:
		return "BST"
	case OpJnz:
		return "JNZ"
	case OpBxc:
		return "BXC"
	case OpOut:
		return "OUT"
	case OpBdv:
		return "BDV"
	case OpCdv:
		return "CDV"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(o))
	}
}

// Operand reports how the opcode reads its operand.
func (o Opcode) Operand() OperandKind {
	switch o {
	case OpBxl, OpJnz:
		return OperandLiteral
	case OpBxc:
		return OperandIgnored
	default:
		return OperandCombo
	}
}

// ParseOpcode looks up an opcode by mnemonic (case-sensitive, upper case).
func ParseOpcode(name string) (Opcode, bool) {
	for o := Opcode(0); o < NumOpcodes; o++ {
		if o.String() == name {
			return o, true
		}
	}
	return 0, false
}
