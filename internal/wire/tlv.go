package wire

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidPacket is returned by Parse for any malformed packet (spec.md
// §4.1, §7: "InvalidPacket - wire parse failed").
var ErrInvalidPacket = errors.New("invalid packet")

// Inner-field TLV types within the CCNx message container (Interest or
// ContentObject body).
const (
	TlvName             uint16 = 0x0000
	TlvPayload          uint16 = 0x0001
	TlvKeyIdRestriction uint16 = 0x0002
	TlvHashRestriction  uint16 = 0x0003
)

// Optional-header TLV types, carried in the length-prefixed region between
// the fixed header and the CCNx message (spec.md §4.1).
const (
	TlvHdrInterestLifetime     uint16 = 0x0001
	TlvHdrRecommendedCacheTime uint16 = 0x0002
	TlvHdrExpiryTime           uint16 = 0x0003
	TlvHdrWldr                 uint16 = 0x0004
)

// Validation-section TLV types, the zero or more TLVs following the CCNx
// message.
const (
	TlvValidationAlg     uint16 = 0x0001
	TlvValidationPayload uint16 = 0x0002
)

// Control-plane payload TLV type, used when PacketType == TypeControl: the
// entire message section is one opaque CPI payload TLV.
const TlvCpiPayload uint16 = 0x0001

// tlvHeaderLen is the size of a CCNx v1 inner TLV header: 2-byte type,
// 2-byte length.
const tlvHeaderLen = 4

// readTlv reads one TLV header at buf[off:] and returns its type, the
// (offset,length) of its value, and the offset just past the value. It
// fails if the declared value extends beyond limit (spec.md §4.1: "any
// inner TLV extends beyond its container").
func readTlv(buf []byte, off, limit int) (typ uint16, valOff, valLen, next int, err error) {
	if off+tlvHeaderLen > limit {
		return 0, 0, 0, 0, ErrInvalidPacket
	}
	typ = binary.BigEndian.Uint16(buf[off : off+2])
	l := binary.BigEndian.Uint16(buf[off+2 : off+4])
	valOff = off + tlvHeaderLen
	valLen = int(l)
	next = valOff + valLen
	if next > limit {
		return 0, 0, 0, 0, ErrInvalidPacket
	}
	return typ, valOff, valLen, next, nil
}

// writeTlv writes a TLV header+value into buf at off and returns the offset
// just past it.
func writeTlv(buf []byte, off int, typ uint16, val []byte) int {
	binary.BigEndian.PutUint16(buf[off:off+2], typ)
	binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(len(val)))
	copy(buf[off+4:], val)
	return off + tlvHeaderLen + len(val)
}

// Field is an (offset, length) pair into the owning packet buffer. A zero
// Length means the field was absent (spec.md §3: "Missing fields carry
// length 0").
type Field struct {
	Offset int
	Length int
}

// Present reports whether the field was found during parsing.
func (f Field) Present() bool { return f.Length > 0 }

// Bytes slices the field's bytes out of buf. Callers must only call this
// with the same buffer the field was parsed from.
func (f Field) Bytes(buf []byte) []byte {
	if !f.Present() {
		return nil
	}
	return buf[f.Offset : f.Offset+f.Length]
}
