package vm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Snapshot file format:
// - Magic: "TBSN" (4 bytes)
// - Version: uint16
// - Payload: CBOR-encoded snapshotState

const (
	SnapshotMagic   = "TBSN"
	SnapshotVersion = 1
)

var (
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	ErrInvalidVersion  = errors.New("unsupported snapshot version")
)

type snapshotState struct {
	IP       int     `cbor:"ip"`
	A        int64   `cbor:"a"`
	B        int64   `cbor:"b"`
	C        int64   `cbor:"c"`
	Code     []uint8 `cbor:"code"`
	Output   []uint8 `cbor:"output"`
	Steps    int     `cbor:"steps"`
	MaxSteps int     `cbor:"max_steps,omitempty"`
}

// Snapshot serialises the full machine state. The observer is not saved.
func (m *Machine) Snapshot() ([]byte, error) {
	st := snapshotState{
		IP:       m.ip,
		A:        m.regs.A,
		B:        m.regs.B,
		C:        m.regs.C,
		Code:     wordsToBytes(m.code),
		Output:   wordsToBytes(m.output),
		Steps:    m.stepCount,
		MaxSteps: m.maxSteps,
	}

	payload, err := cbor.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	buf := new(bytes.Buffer)
	buf.WriteString(SnapshotMagic)
	if err := binary.Write(buf, binary.LittleEndian, uint16(SnapshotVersion)); err != nil {
		return nil, fmt.Errorf("writing version: %w", err)
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

// RestoreSnapshot rebuilds a machine from Snapshot output.
func RestoreSnapshot(data []byte) (*Machine, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, len(SnapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", ErrInvalidSnapshot, err)
	}
	if string(magic) != SnapshotMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidSnapshot, magic)
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("%w: reading version: %v", ErrInvalidSnapshot, err)
	}
	if version != SnapshotVersion {
		return nil, ErrInvalidVersion
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	var st snapshotState
	if err := cbor.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrInvalidSnapshot, err)
	}

	code, err := bytesToWords(st.Code)
	if err != nil {
		return nil, fmt.Errorf("%w: code: %v", ErrInvalidSnapshot, err)
	}
	output, err := bytesToWords(st.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: output: %v", ErrInvalidSnapshot, err)
	}
	if st.IP < 0 || st.IP > len(code) {
		return nil, fmt.Errorf("%w: ip %d out of range", ErrInvalidSnapshot, st.IP)
	}

	m := NewMachine(code, RegisterFile{A: st.A, B: st.B, C: st.C})
	m.ip = st.IP
	m.output = output
	m.stepCount = st.Steps
	m.maxSteps = st.MaxSteps
	return m, nil
}

func wordsToBytes(ws []Word) []uint8 {
	out := make([]uint8, len(ws))
	for i, w := range ws {
		out[i] = uint8(w)
	}
	return out
}

func bytesToWords(bs []uint8) ([]Word, error) {
	out := make([]Word, len(bs))
	for i, b := range bs {
		w, err := NewWord(int64(b))
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}
