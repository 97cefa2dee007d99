package link

import (
	"fmt"
	"io"
)

// Opcode identifies the operation of a frame.
type Opcode byte

// DirectionBit marks frames belonging to an exchange initiated by
// the companion.
const DirectionBit Opcode = 0x80

// Opcodes
const (
	OpPing     Opcode = 0x00
	OpShutdown Opcode = 0x01
	OpSensors  Opcode = 0x02
	OpFeedback Opcode = 0x03
	OpCommand  Opcode = 0x04
)

// Code strips the direction bit.
func (o Opcode) Code() Opcode {
	return o &^ DirectionBit
}

// FromCompanion tells whether the exchange was initiated by the companion.
func (o Opcode) FromCompanion() bool {
	return o&DirectionBit != 0
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	var name string
	switch o.Code() {
	case OpPing:
		name = "ping"
	case OpShutdown:
		name = "shutdown"
	case OpSensors:
		name = "sensors"
	case OpFeedback:
		name = "feedback"
	case OpCommand:
		name = "command"
	default:
		name = fmt.Sprintf("op%02x", byte(o.Code()))
	}
	if o.FromCompanion() {
		return name + "*"
	}
	return name
}

// Framing bytes.
const (
	DLE byte = 0x5a
	STX byte = 0x02
)

// MaxPayload is the largest payload a frame can carry.
//
// The length field counts 16-bit words in its low 7 bits. OddLength is
// set when the last word carries a single payload byte followed by a pad.
const MaxPayload = 0x7f * 2

// OddLength flags a padded last word in the length field.
const OddLength byte = 0x80

// Frame is a single protocol unit.
type Frame struct {
	Opcode Opcode
	Data   []byte
}

// words returns the length field and the padded payload size.
func (f *Frame) words() (byte, int) {
	n := len(f.Data)
	if n > MaxPayload {
		n = MaxPayload
	}
	w := (n + 1) / 2
	length := byte(w)
	if n%2 != 0 {
		length |= OddLength
	}
	return length, w * 2
}

// Bytes returns encoded bytes for sending. Data beyond MaxPayload is
// truncated.
func (f *Frame) Bytes() []byte {
	length, size := f.words()
	body := make([]byte, 0, size+4)
	body = append(body, byte(f.Opcode), length)
	if len(f.Data) > size {
		body = append(body, f.Data[:size]...)
	} else {
		body = append(body, f.Data...)
	}
	for len(body) < size+2 {
		body = append(body, 0)
	}
	crc := checksum(checksumInit, body...)
	body = append(body, byte(crc), byte(crc>>8))

	b := make([]byte, 0, len(body)+len(body)/8+2)
	b = append(b, DLE, STX)
	for _, c := range body {
		if c == DLE {
			b = append(b, DLE)
		}
		b = append(b, c)
	}
	return b
}

// WriteTo writes encoded bytes.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}
