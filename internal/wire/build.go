package wire

// Dict is a field dictionary: the byte value of each optional field,
// keyed the same way Skeleton is. Build encodes a Dict into a wire buffer;
// Parse followed by Extract must return an equal Dict for every Dict Build
// accepts (spec.md §4.1 round-trip invariant).
type Dict struct {
	PacketType PacketType

	Name                 []byte // required for Interest/ContentObject/InterestReturn
	KeyIdRestriction      []byte
	HashRestriction       []byte
	Payload               []byte
	HopLimit              uint8
	ReturnCode            uint8
	Flags                 uint8
	InterestLifetime      []byte
	ExpiryTime            []byte
	RecommendedCacheTime  []byte
	CpiPayload            []byte
	ValidationAlg         []byte
	ValidationPayload     []byte
	WldrHeader            []byte
}

// Build serializes dict into a complete v1 packet buffer.
func Build(d Dict) []byte {
	// Optional headers region.
	hdr := make([]byte, 0, 32)
	if d.InterestLifetime != nil {
		hdr = appendTlv(hdr, TlvHdrInterestLifetime, d.InterestLifetime)
	}
	if d.RecommendedCacheTime != nil {
		hdr = appendTlv(hdr, TlvHdrRecommendedCacheTime, d.RecommendedCacheTime)
	}
	if d.ExpiryTime != nil {
		hdr = appendTlv(hdr, TlvHdrExpiryTime, d.ExpiryTime)
	}
	if d.WldrHeader != nil {
		hdr = appendTlv(hdr, TlvHdrWldr, d.WldrHeader)
	}
	headerLength := FixedHeaderLen + len(hdr)

	// Message body.
	var body []byte
	var bodyTlvType uint16
	if d.PacketType == TypeControl {
		body = appendTlv(nil, TlvCpiPayload, d.CpiPayload)
		bodyTlvType = TlvCpiPayload
	} else {
		inner := make([]byte, 0, 64)
		if d.Name != nil {
			inner = appendTlv(inner, TlvName, d.Name)
		}
		if d.KeyIdRestriction != nil {
			inner = appendTlv(inner, TlvKeyIdRestriction, d.KeyIdRestriction)
		}
		if d.HashRestriction != nil {
			inner = appendTlv(inner, TlvHashRestriction, d.HashRestriction)
		}
		if d.Payload != nil {
			inner = appendTlv(inner, TlvPayload, d.Payload)
		}
		bodyTlvType = uint16(d.PacketType) + 1 // distinct container tag per packet type
		body = appendTlv(nil, bodyTlvType, inner)
	}

	// Validation section.
	var valid []byte
	if d.ValidationAlg != nil {
		valid = appendTlv(valid, TlvValidationAlg, d.ValidationAlg)
	}
	if d.ValidationPayload != nil {
		valid = appendTlv(valid, TlvValidationPayload, d.ValidationPayload)
	}

	packetLength := headerLength + len(body)
	total := packetLength + len(valid)

	buf := make([]byte, total)
	fh := FixedHeader{
		Version:      SchemaV1,
		PacketType:   d.PacketType,
		PacketLength: uint16(packetLength),
		HeaderLength: uint8(headerLength),
	}
	if d.PacketType == TypeInterest {
		fh.HopLimit = d.HopLimit
		fh.ReturnCode = d.ReturnCode
		fh.Flags = d.Flags
	}
	fh.EncodeInto(buf)
	copy(buf[FixedHeaderLen:], hdr)
	copy(buf[headerLength:], body)
	copy(buf[packetLength:], valid)
	return buf
}

func appendTlv(dst []byte, typ uint16, val []byte) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, tlvHeaderLen+len(val))...)
	writeTlv(dst, off, typ, val)
	return dst
}

// Extract reads every field of sk out of buf into a Dict, for round-trip
// comparison against the Dict that produced buf via Build.
func (sk Skeleton) Extract(buf []byte) Dict {
	return Dict{
		PacketType:           sk.Header.PacketType,
		Name:                 fieldOrNil(sk.Name, buf),
		KeyIdRestriction:     fieldOrNil(sk.KeyIdRestriction, buf),
		HashRestriction:      fieldOrNil(sk.HashRestriction, buf),
		Payload:              fieldOrNil(sk.Payload, buf),
		HopLimit:             sk.Header.HopLimit,
		ReturnCode:           sk.Header.ReturnCode,
		Flags:                sk.Header.Flags,
		InterestLifetime:     fieldOrNil(sk.InterestLifetime, buf),
		ExpiryTime:           fieldOrNil(sk.ExpiryTime, buf),
		RecommendedCacheTime: fieldOrNil(sk.RecommendedCacheTime, buf),
		CpiPayload:           fieldOrNil(sk.CpiPayload, buf),
		ValidationAlg:        fieldOrNil(sk.ValidationAlg, buf),
		ValidationPayload:    fieldOrNil(sk.ValidationPayload, buf),
		WldrHeader:           fieldOrNil(sk.WldrHeader, buf),
	}
}

func fieldOrNil(f Field, buf []byte) []byte {
	if !f.Present() {
		return nil
	}
	return f.Bytes(buf)
}
