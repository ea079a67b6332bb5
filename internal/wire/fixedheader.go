// Package wire implements the CCNx v1 fixed header and TLV skeleton codec
// (spec.md §4.1, §6). The Skeleton carries no allocation beyond the record
// itself: every field is an (offset, length) pair into the caller's buffer.
package wire

import "encoding/binary"

// PacketType identifies the fixed-header's packetType byte.
type PacketType uint8

const (
	TypeInterest       PacketType = 0x00
	TypeContentObject  PacketType = 0x01
	TypeInterestReturn PacketType = 0x02
	TypeControl        PacketType = 0xA4
)

// SchemaVersion distinguishes the active v1 wire format from the legacy v0
// test fixture (spec.md §9, Open Question (a): v0 is a fixture only).
const (
	SchemaV1 uint8 = 1
	SchemaV0 uint8 = 0
)

// FixedHeaderLen is the size in bytes of every CCNx v1 fixed header.
const FixedHeaderLen = 8

// FixedHeader is the packed big-endian 8-byte header at the start of every
// packet (spec.md §6):
//
//	byte 0: version (=1)
//	byte 1: packetType
//	bytes 2-3: packetLength (u16 BE, total bytes)
//	bytes 4-6: per-type (Interest: hopLimit, returnCode, flags; else reserved)
//	byte 7: headerLength (u8, from byte 0; >= 8)
type FixedHeader struct {
	Version      uint8
	PacketType   PacketType
	PacketLength uint16
	HopLimit     uint8 // Interest only
	ReturnCode   uint8 // Interest only
	Flags        uint8 // Interest only
	HeaderLength uint8
}

// ParseFixedHeader decodes the first 8 bytes of buf. It never fails on
// length alone (callers must ensure len(buf) >= FixedHeaderLen); field
// validity (headerLength >= 8, packetLength >= headerLength, version == 1)
// is checked by Parse.
func ParseFixedHeader(buf []byte) FixedHeader {
	return FixedHeader{
		Version:      buf[0],
		PacketType:   PacketType(buf[1]),
		PacketLength: binary.BigEndian.Uint16(buf[2:4]),
		HopLimit:     buf[4],
		ReturnCode:   buf[5],
		Flags:        buf[6],
		HeaderLength: buf[7],
	}
}

// EncodeInto writes the fixed header into buf[:8].
func (h FixedHeader) EncodeInto(buf []byte) {
	buf[0] = h.Version
	buf[1] = byte(h.PacketType)
	binary.BigEndian.PutUint16(buf[2:4], h.PacketLength)
	buf[4] = h.HopLimit
	buf[5] = h.ReturnCode
	buf[6] = h.Flags
	buf[7] = h.HeaderLength
}
