// Package logic provides the signal-level view of a circuit: bits, ordered bit
// vectors, and the pins a chip exposes to the rest of the circuit.
package logic

import (
	"strings"
)

// Bit is the state of a single signal line. Low and High are the only
// well-formed states. Other values can still show up on a bus that is being
// driven by a misbehaving chip, and consumers decide how to treat them.
type Bit uint8

// Well-formed signal states.
const (
	Low  Bit = 0
	High Bit = 1
)

// IsHigh tells if the bit is driven high. Any nonzero state counts as high.
func (b Bit) IsHigh() bool {
	return b != Low
}

// BitOf converts a boolean into a bit.
func BitOf(high bool) Bit {
	if high {
		return High
	}

	return Low
}

// A Vector is an ordered group of bits. Index 0 is the most significant bit.
type Vector []Bit

// VectorFromUint converts the lowest width bits of value into a vector, most
// significant bit first.
func VectorFromUint(value uint64, width int) Vector {
	v := make(Vector, width)
	for i := 0; i < width; i++ {
		shift := uint(width - i - 1)
		if shift < 64 {
			v[i] = Bit((value >> shift) & 1)
		}
	}

	return v
}

// VectorFromBytes expands bytes into a vector of 8*len(data) bits. The most
// significant bit of data[0] comes first.
func VectorFromBytes(data []byte) Vector {
	v := make(Vector, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			v = append(v, Bit((b>>uint(i))&1))
		}
	}

	return v
}

// Uint folds the vector into an integer, most significant bit first. Only the
// last 64 bits survive for longer vectors.
func (v Vector) Uint() uint64 {
	var value uint64
	for _, b := range v {
		value <<= 1
		if b.IsHigh() {
			value |= 1
		}
	}

	return value
}

// Bytes packs the vector into bytes, most significant bit first. A vector whose
// length is not a multiple of 8 is padded with low bits at the end.
func (v Vector) Bytes() []byte {
	data := make([]byte, (len(v)+7)/8)
	for i, b := range v {
		if b.IsHigh() {
			data[i/8] |= 0x80 >> uint(i%8)
		}
	}

	return data
}

// Equal compares two vectors bit by bit.
func (v Vector) Equal(other Vector) bool {
	if len(v) != len(other) {
		return false
	}

	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}

	return true
}

// String renders the vector as a string of 0s and 1s. Malformed bits render
// as 'x'.
func (v Vector) String() string {
	var sb strings.Builder
	for _, b := range v {
		switch b {
		case Low:
			sb.WriteByte('0')
		case High:
			sb.WriteByte('1')
		default:
			sb.WriteByte('x')
		}
	}

	return sb.String()
}
