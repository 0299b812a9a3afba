package vm

import (
	"bytes"
	"fmt"
)

// Disassemble renders an instruction stream as one mnemonic per line.
func Disassemble(code []Word) string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("; %d words, %d instructions\n", len(code), len(code)/2))

	for ip := 0; ip < len(code); ip += 2 {
		if ip+1 >= len(code) {
			buf.WriteString(fmt.Sprintf("%04d: %d ; missing operand\n", ip, code[ip]))
			break
		}
		buf.WriteString(fmt.Sprintf("%04d: %s\n", ip, DisassembleInstruction(code[ip], code[ip+1])))
	}

	return buf.String()
}

// DisassembleInstruction renders a single (opcode, operand) pair.
func DisassembleInstruction(opWord, operand Word) string {
	op, err := DecodeOpcode(opWord)
	if err != nil {
		return fmt.Sprintf("?? %d %d", opWord, operand)
	}

	switch op.Operand() {
	case OperandLiteral:
		return fmt.Sprintf("%-4s %d", op, operand)
	case OperandIgnored:
		return op.String()
	default:
		return fmt.Sprintf("%-4s %s", op, comboName(operand))
	}
}

func comboName(operand Word) string {
	switch operand {
	case 4:
		return "A"
	case 5:
		return "B"
	case 6:
		return "C"
	case 7:
		return "<reserved>"
	default:
		return fmt.Sprintf("%d", operand)
	}
}
