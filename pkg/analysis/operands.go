package analysis

import (
	"github.com/akhildatla/tribit/pkg/vm"
)

// jumpTargets classifies JNZ targets. An odd target resumes execution
// mid-instruction, reading an operand as an opcode. A target at or past the
// end halts the machine when taken.
func jumpTargets(code []vm.Word) (misaligned, exits []int) {
	for _, ip := range instructions(code) {
		op, err := vm.DecodeOpcode(code[ip])
		if err != nil || op != vm.OpJnz {
			continue
		}
		target := int(code[ip+1])
		switch {
		case target%2 == 1:
			misaligned = append(misaligned, ip)
		case target >= len(code):
			exits = append(exits, ip)
		}
	}
	return misaligned, exits
}

// reservedOperands lists instructions that would evaluate combo operand 7.
func reservedOperands(code []vm.Word) []int {
	var addrs []int
	for _, ip := range instructions(code) {
		op, err := vm.DecodeOpcode(code[ip])
		if err != nil {
			continue
		}
		if op.Operand() == vm.OperandCombo && code[ip+1] == 7 {
			addrs = append(addrs, ip)
		}
	}
	return addrs
}
