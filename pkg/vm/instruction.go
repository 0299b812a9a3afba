package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Word is a 3-bit value (0-7). Programs and output sequences are made of
// words; instructions are (opcode, operand) word pairs.
type Word uint8

// MaxWord is the largest value a Word may hold.
const MaxWord Word = 7

// NewWord validates n and returns it as a Word.
func NewWord(n int64) (Word, error) {
	if n < 0 || n > int64(MaxWord) {
		return 0, fmt.Errorf("value %d does not fit in 3 bits", n)
	}
	return Word(n), nil
}

// Words converts ints to words. It panics on out-of-range values and is
// meant for literals in code and tests.
func Words(vals ...int) []Word {
	out := make([]Word, len(vals))
	for i, v := range vals {
		w, err := NewWord(int64(v))
		if err != nil {
			panic(err)
		}
		out[i] = w
	}
	return out
}

// Program is a loaded initial machine state.
type Program struct {
	Registers RegisterFile
	Code      []Word
}

// Validate checks that every word fits in 3 bits and the code is made of
// whole (opcode, operand) pairs.
func (p *Program) Validate() error {
	return ValidateCode(p.Code)
}

// ValidateCode checks an instruction stream for out-of-range words and a
// trailing opcode without an operand.
func ValidateCode(code []Word) error {
	for i, w := range code {
		if w > MaxWord {
			return fmt.Errorf("%w: word %d at offset %d", ErrInvalidOpcode, w, i)
		}
	}
	if len(code)%2 != 0 {
		return fmt.Errorf("%w: odd length %d", ErrMalformedInstructionStream, len(code))
	}
	return nil
}

// JoinOutput renders words as a comma-separated decimal string.
func JoinOutput(words []Word) string {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(w)))
	}
	return sb.String()
}

// EqualWords reports whether two word sequences are identical.
func EqualWords(a, b []Word) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasSuffix reports whether out ends with suffix.
func HasSuffix(out, suffix []Word) bool {
	if len(suffix) > len(out) {
		return false
	}
	return EqualWords(out[len(out)-len(suffix):], suffix)
}

// combo resolves a combo operand against the register file.
func (rf *RegisterFile) combo(operand Word) (int64, error) {
	switch {
	case operand <= 3:
		return int64(operand), nil
	case operand == 4:
		return rf.A, nil
	case operand == 5:
		return rf.B, nil
	case operand == 6:
		return rf.C, nil
	default:
		return 0, fmt.Errorf("%w: combo operand %d is reserved", ErrInvalidOperand, operand)
	}
}

// divPow2 computes n / 2^k truncating toward zero.
func divPow2(n, k int64) (int64, error) {
	switch {
	case k < 0:
		return 0, fmt.Errorf("%w: negative exponent %d", ErrInvalidOperand, k)
	case k == 0:
		return n, nil
	case k >= 64:
		return 0, nil
	case k == 63:
		// 2^63 is not representable; only MinInt64 has magnitude >= 2^63.
		if n == -1<<63 {
			return -1, nil
		}
		return 0, nil
	}
	return n / (int64(1) << uint(k)), nil
}
