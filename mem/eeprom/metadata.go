package eeprom

import (
	"encoding/json"
	"fmt"
)

// Metadata is what a chip saves about itself besides its contents. It tells
// how to rebuild the chip and where to find its contents.
type Metadata struct {
	AddrBusBytesSize int    `json:"addrBusBytesSize"`
	DataBusBytesSize int    `json:"dataBusBytesSize"`
	ID               string `json:"id"`

	// AddressBits overrides AddrBusBytesSize for address buses that are not a
	// whole number of bytes wide.
	AddressBits *int `json:"addressBits,omitempty"`
}

// MetadataFor describes a chip with the given identity and geometry.
func MetadataFor(id string, g Geometry) Metadata {
	md := Metadata{
		AddrBusBytesSize: int((g.AddressBits + 7) / 8),
		DataBusBytesSize: int(g.WordBytes),
		ID:               id,
	}

	if g.AddressBits%8 != 0 {
		bits := int(g.AddressBits)
		md.AddressBits = &bits
	}

	return md
}

// ParseMetadata decodes a metadata blob.
func ParseMetadata(blob []byte) (Metadata, error) {
	var md Metadata

	err := json.Unmarshal(blob, &md)
	if err != nil {
		return Metadata{}, fmt.Errorf("eeprom: parsing metadata: %w", err)
	}

	return md, nil
}

// Marshal encodes the metadata.
func (md Metadata) Marshal() ([]byte, error) {
	return json.Marshal(md)
}

// Geometry returns the geometry the metadata describes. Negative sizes give
// the zero Geometry, which does not validate.
func (md Metadata) Geometry() Geometry {
	addressBits := md.AddrBusBytesSize * 8
	if md.AddressBits != nil {
		addressBits = *md.AddressBits
	}

	if addressBits < 0 || md.DataBusBytesSize < 0 {
		return Geometry{}
	}

	return Geometry{
		AddressBits: uint(addressBits),
		WordBytes:   uint(md.DataBusBytesSize),
	}
}
