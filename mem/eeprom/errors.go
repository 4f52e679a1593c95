package eeprom

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry is wrapped by a ConfigurationError when the address
	// bits or the word size is zero or out of range.
	ErrInvalidGeometry = errors.New("eeprom: invalid geometry")

	// ErrBufferTooLarge is wrapped by a ConfigurationError when the buffer
	// implied by a geometry exceeds the size limit.
	ErrBufferTooLarge = errors.New("eeprom: buffer too large")

	// ErrImageSize is wrapped by a ConfigurationError when a flashed image
	// does not match the configured size under FlashStrict.
	ErrImageSize = errors.New("eeprom: image size mismatch")

	// ErrOutOfBounds is wrapped by a MemoryAccessError.
	ErrOutOfBounds = errors.New("eeprom: access out of bounds")

	// ErrWordSize is returned when a written word does not have the
	// configured number of bytes.
	ErrWordSize = errors.New("eeprom: word size mismatch")
)

// A ConfigurationError reports a geometry that cannot be applied. The
// previous configuration stays in place.
type ConfigurationError struct {
	Geometry Geometry
	Reason   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cannot configure %s: %v", e.Geometry, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Reason
}

// AccessOp tells whether a memory access was a read or a write.
type AccessOp string

// Memory access operations.
const (
	OpRead  AccessOp = "read"
	OpWrite AccessOp = "write"
)

// A MemoryAccessError reports a decoded address whose word does not fit in
// the buffer. It only happens with malformed bus input.
type MemoryAccessError struct {
	Op      AccessOp
	Address uint64
	Index   uint64
	Size    uint64
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("%s at address 0x%x (byte %d) outside of %d-byte buffer",
		e.Op, e.Address, e.Index, e.Size)
}

func (e *MemoryAccessError) Unwrap() error {
	return ErrOutOfBounds
}
