package analysis

import (
	"fmt"

	"github.com/akhildatla/tribit/pkg/vm"
)

// LoopShape describes how a program consumes register A.
//
// Digit reconstruction assumes one loop over the whole program that emits
// once, shifts A right by exactly three bits, and jumps back to 0 while A is
// non-zero. Such a program emits one value per octal digit of A, and each
// value depends only on the digits at and above its position.
type LoopShape struct {
	// ShiftBits is the total literal shift applied to A by ADV per pass.
	ShiftBits int
	Emits     int
	// ClosingJump reports a final JNZ 0.
	ClosingJump bool
	// OtherJumps counts JNZ instructions besides the closing one.
	OtherJumps int
	// DynamicShift reports an ADV whose exponent comes from a register.
	DynamicShift bool

	DigitsSafe bool
	Problems   []string

	checked bool
}

func loopShape(code []vm.Word) LoopShape {
	s := LoopShape{checked: true}
	addrs := instructions(code)
	if len(addrs) == 0 {
		s.Problems = append(s.Problems, "empty program")
		return s
	}
	last := addrs[len(addrs)-1]

	for _, ip := range addrs {
		op, err := vm.DecodeOpcode(code[ip])
		if err != nil {
			continue
		}
		operand := code[ip+1]

		switch op {
		case vm.OpAdv:
			if operand <= 3 {
				s.ShiftBits += int(operand)
			} else {
				s.DynamicShift = true
			}
		case vm.OpOut:
			s.Emits++
		case vm.OpJnz:
			if ip == last && operand == 0 {
				s.ClosingJump = true
			} else {
				s.OtherJumps++
			}
		}
	}

	if !s.ClosingJump {
		s.Problems = append(s.Problems, "does not end with JNZ 0")
	}
	if s.OtherJumps > 0 {
		s.Problems = append(s.Problems, fmt.Sprintf("%d jump(s) besides the closing JNZ 0", s.OtherJumps))
	}
	if s.DynamicShift {
		s.Problems = append(s.Problems, "ADV with a register exponent")
	}
	if s.ShiftBits != 3 {
		s.Problems = append(s.Problems, fmt.Sprintf("A shifts by %d bits per loop, not 3", s.ShiftBits))
	}
	if s.Emits != 1 {
		s.Problems = append(s.Problems, fmt.Sprintf("%d emits per loop, not 1", s.Emits))
	}

	s.DigitsSafe = len(s.Problems) == 0
	return s
}
