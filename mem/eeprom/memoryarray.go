package eeprom

import (
	"fmt"
	"sync"

	"github.com/sarchlab/eepromsim/logic"
)

// Size units.
const (
	KB = uint64(1) << 10
	MB = uint64(1) << 20
)

// DefaultMaxSize is the largest buffer a MemoryArray allocates unless told
// otherwise.
const DefaultMaxSize = 64 * MB

// Geometry is the shape of a memory array: how many address bits select a
// word and how many bytes form a word.
type Geometry struct {
	AddressBits uint
	WordBytes   uint
}

// GeometryFromBusBytes converts bus widths expressed in bytes into a
// geometry.
func GeometryFromBusBytes(addrBusBytes, dataBusBytes uint) Geometry {
	return Geometry{
		AddressBits: addrBusBytes * 8,
		WordBytes:   dataBusBytes,
	}
}

// Words returns the number of addressable words.
func (g Geometry) Words() uint64 {
	if g.AddressBits >= 64 {
		return 0
	}

	return uint64(1) << g.AddressBits
}

// Size returns the number of bytes in the buffer.
func (g Geometry) Size() uint64 {
	return g.Words() * uint64(g.WordBytes)
}

// DataBits returns the width of the data bus.
func (g Geometry) DataBits() uint {
	return g.WordBytes * 8
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d address bits x %d-byte words", g.AddressBits, g.WordBytes)
}

func (g Geometry) validate(maxSize uint64) error {
	if g.AddressBits == 0 || g.WordBytes == 0 || g.AddressBits >= 64 {
		return &ConfigurationError{Geometry: g, Reason: ErrInvalidGeometry}
	}

	if g.Words() > maxSize/uint64(g.WordBytes) {
		return &ConfigurationError{Geometry: g, Reason: ErrBufferTooLarge}
	}

	return nil
}

// FlashPolicy decides what happens to an image whose length differs from the
// configured buffer size.
type FlashPolicy int

const (
	// FlashFit pads a short image with zeros and truncates a long one.
	FlashFit FlashPolicy = iota

	// FlashStrict rejects an image whose length differs.
	FlashStrict
)

func (p FlashPolicy) String() string {
	switch p {
	case FlashFit:
		return "fit"
	case FlashStrict:
		return "strict"
	default:
		return fmt.Sprintf("FlashPolicy(%d)", int(p))
	}
}

// ParseFlashPolicy converts "fit" or "strict" into a FlashPolicy.
func ParseFlashPolicy(s string) (FlashPolicy, error) {
	switch s {
	case "fit", "":
		return FlashFit, nil
	case "strict":
		return FlashStrict, nil
	default:
		return FlashFit, fmt.Errorf("unknown flash policy %q", s)
	}
}

// A MemoryArray is the byte buffer of an EEPROM. Words are stored big-endian:
// the first byte of a word is its most significant byte.
//
// A MemoryArray is safe to use from multiple goroutines.
type MemoryArray struct {
	lock     sync.RWMutex
	geometry Geometry
	data     []byte
	maxSize  uint64
}

// NewMemoryArray creates an unconfigured array. It allocates nothing until it
// is configured.
func NewMemoryArray() *MemoryArray {
	return &MemoryArray{maxSize: DefaultMaxSize}
}

// SetMaxSize changes the largest buffer the array may allocate.
func (m *MemoryArray) SetMaxSize(maxSize uint64) {
	m.lock.Lock()
	m.maxSize = maxSize
	m.lock.Unlock()
}

// Configure applies a geometry. A zeroed buffer is allocated when there is no
// buffer yet or when the geometry changes. Configuring the current geometry
// again keeps the contents. On error the array keeps its previous state.
func (m *MemoryArray) Configure(g Geometry) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := g.validate(m.maxSize); err != nil {
		return err
	}

	if m.geometry != g {
		m.data = nil
	}

	m.geometry = g
	m.ensureSized()

	return nil
}

// IsConfigured tells if the array has a geometry.
func (m *MemoryArray) IsConfigured() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.data != nil
}

// Geometry returns the current geometry.
func (m *MemoryArray) Geometry() Geometry {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.geometry
}

// Len returns the length of the buffer.
func (m *MemoryArray) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return len(m.data)
}

// DecodeAddress decodes the address bits of the current geometry.
func (m *MemoryArray) DecodeAddress(bits logic.Vector) uint64 {
	return DecodeAddress(bits, m.Geometry().AddressBits)
}

// DecodeAddress folds the first addressBits entries of bits into an address,
// most significant bit first. Missing entries count as low. Entries are added
// as they are, so a malformed entry above 1 can produce an address beyond
// 2^addressBits.
func DecodeAddress(bits logic.Vector, addressBits uint) uint64 {
	var address uint64

	for i := uint(0); i < addressBits; i++ {
		var bit uint64
		if i < uint(len(bits)) {
			bit = uint64(bits[i])
		}

		address = address*2 + bit
	}

	return address
}

// Read returns the word at address. An address whose word does not fit in the
// buffer yields a zero word and a MemoryAccessError.
func (m *MemoryArray) Read(address uint64) ([]byte, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	wordBytes := uint64(m.geometry.WordBytes)
	word := make([]byte, wordBytes)

	index, err := m.locate(OpRead, address)
	if err != nil {
		return word, err
	}

	copy(word, m.data[index:index+wordBytes])

	return word, nil
}

// Write stores word at address. Nothing is written if the word does not fit
// in the buffer.
func (m *MemoryArray) Write(address uint64, word []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	wordBytes := uint64(m.geometry.WordBytes)
	if uint64(len(word)) != wordBytes {
		return fmt.Errorf("%w: got %d bytes, want %d",
			ErrWordSize, len(word), wordBytes)
	}

	index, err := m.locate(OpWrite, address)
	if err != nil {
		return err
	}

	for i := wordBytes; i > 0; i-- {
		m.data[index+i-1] = word[i-1]
	}

	return nil
}

func (m *MemoryArray) locate(op AccessOp, address uint64) (uint64, error) {
	m.ensureSized()

	wordBytes := uint64(m.geometry.WordBytes)
	size := uint64(len(m.data))
	index := address * wordBytes

	if m.data == nil ||
		address >= m.geometry.Words() ||
		index+wordBytes > size {
		return 0, &MemoryAccessError{
			Op:      op,
			Address: address,
			Index:   index,
			Size:    size,
		}
	}

	return index, nil
}

// Replace overwrites the whole buffer with image under the given policy. The
// array must be configured.
func (m *MemoryArray) Replace(image []byte, policy FlashPolicy) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.data == nil {
		return &ConfigurationError{Geometry: m.geometry, Reason: ErrInvalidGeometry}
	}

	size := m.geometry.Size()
	if policy == FlashStrict && uint64(len(image)) != size {
		return &ConfigurationError{
			Geometry: m.geometry,
			Reason: fmt.Errorf("%w: image has %d bytes, buffer has %d",
				ErrImageSize, len(image), size),
		}
	}

	n := copy(m.data, image)
	clear(m.data[n:])

	return nil
}

// Snapshot returns a copy of the buffer.
func (m *MemoryArray) Snapshot() []byte {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return append([]byte(nil), m.data...)
}

// ensureSized reallocates a zeroed buffer if the length of the buffer does not
// match the geometry. The caller must hold the write lock.
func (m *MemoryArray) ensureSized() {
	if m.geometry.WordBytes == 0 {
		return
	}

	size := m.geometry.Size()
	if m.data != nil && uint64(len(m.data)) == size {
		return
	}

	m.data = make([]byte, size)
}
