package ccp

import "encoding/binary"

// ByteOrder selects how multi-byte CRO/CRM fields are packed. It is
// configured per master at construction because CCP slaves disagree on
// endianness; the CONNECT station address is the one field that ignores
// it (always little-endian, see §9 of the design notes).
type ByteOrder uint8

const (
	BigEndian ByteOrder = iota
	LittleEndian
)

func (b ByteOrder) std() binary.ByteOrder {
	if b == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (b ByteOrder) PutUint16(buf []byte, v uint16) { b.std().PutUint16(buf, v) }
func (b ByteOrder) PutUint32(buf []byte, v uint32) { b.std().PutUint32(buf, v) }
func (b ByteOrder) Uint16(buf []byte) uint16       { return b.std().Uint16(buf) }
func (b ByteOrder) Uint32(buf []byte) uint32       { return b.std().Uint32(buf) }

func (b ByteOrder) String() string {
	if b == LittleEndian {
		return "little-endian"
	}
	return "big-endian"
}
