package wire

// Skeleton is the fixed-shape record of field offsets/lengths produced by
// parsing a v1 packet (spec.md §3, §4.1). It references into the owning
// message buffer; it allocates nothing beyond itself.
type Skeleton struct {
	Header FixedHeader

	Name                 Field
	KeyIdRestriction     Field
	HashRestriction      Field
	Payload              Field
	HopLimit             Field // mirrors Header.HopLimit when PacketType == Interest
	InterestLifetime     Field
	ExpiryTime           Field
	RecommendedCacheTime Field
	CpiPayload           Field
	ValidationAlg        Field
	ValidationPayload    Field
	WldrHeader           Field
}

// unique fields may appear at most once in their container (spec.md §4.1:
// "more than one instance of a field marked unique appears" is a parse
// error). Name, the two restrictors, and Payload are unique within the
// message body; the optional headers and validation fields are unique
// within their own regions.
type uniqueTracker struct{ seen map[uint16]bool }

func newUniqueTracker() *uniqueTracker { return &uniqueTracker{seen: make(map[uint16]bool)} }

func (u *uniqueTracker) mark(typ uint16) error {
	if u.seen[typ] {
		return ErrInvalidPacket
	}
	u.seen[typ] = true
	return nil
}

// Parse decodes buf into a Skeleton, per spec.md §4.1's failure conditions:
// headerLength < 8; packetLength < headerLength; any inner TLV extends
// beyond its container; fixed header version is not 1; a unique field
// repeated.
func Parse(buf []byte) (Skeleton, error) {
	var sk Skeleton
	if len(buf) < FixedHeaderLen {
		return sk, ErrInvalidPacket
	}
	sk.Header = ParseFixedHeader(buf)

	if sk.Header.Version != SchemaV1 {
		return sk, ErrInvalidPacket
	}
	if sk.Header.HeaderLength < FixedHeaderLen {
		return sk, ErrInvalidPacket
	}
	if int(sk.Header.PacketLength) < int(sk.Header.HeaderLength) {
		return sk, ErrInvalidPacket
	}
	if int(sk.Header.PacketLength) > len(buf) {
		return sk, ErrInvalidPacket
	}

	if sk.Header.PacketType == TypeInterest {
		sk.HopLimit = Field{Offset: 4, Length: 1}
	}

	if err := parseOptionalHeaders(buf, &sk); err != nil {
		return Skeleton{}, err
	}
	if err := parseMessage(buf, &sk); err != nil {
		return Skeleton{}, err
	}
	if err := parseValidation(buf, &sk); err != nil {
		return Skeleton{}, err
	}
	return sk, nil
}

func parseOptionalHeaders(buf []byte, sk *Skeleton) error {
	off := FixedHeaderLen
	limit := int(sk.Header.HeaderLength)
	u := newUniqueTracker()

	for off < limit {
		typ, valOff, valLen, next, err := readTlv(buf, off, limit)
		if err != nil {
			return err
		}
		if err := u.mark(typ); err != nil {
			return err
		}
		field := Field{Offset: valOff, Length: valLen}
		switch typ {
		case TlvHdrInterestLifetime:
			sk.InterestLifetime = field
		case TlvHdrRecommendedCacheTime:
			sk.RecommendedCacheTime = field
		case TlvHdrExpiryTime:
			sk.ExpiryTime = field
		case TlvHdrWldr:
			sk.WldrHeader = field
		}
		off = next
	}
	return nil
}

func parseMessage(buf []byte, sk *Skeleton) error {
	off := int(sk.Header.HeaderLength)
	limit := int(sk.Header.PacketLength)

	if sk.Header.PacketType == TypeControl {
		typ, valOff, valLen, _, err := readTlv(buf, off, limit)
		if err != nil {
			return err
		}
		if typ != TlvCpiPayload {
			return ErrInvalidPacket
		}
		sk.CpiPayload = Field{Offset: valOff, Length: valLen}
		return nil
	}

	// Interest / ContentObject / InterestReturn: a single top-level TLV
	// wraps the message body; we parse its value as the field container.
	_, bodyOff, bodyLen, _, err := readTlv(buf, off, limit)
	if err != nil {
		return err
	}
	bodyLimit := bodyOff + bodyLen
	u := newUniqueTracker()

	pos := bodyOff
	for pos < bodyLimit {
		typ, valOff, valLen, next, err := readTlv(buf, pos, bodyLimit)
		if err != nil {
			return err
		}
		if err := u.mark(typ); err != nil {
			return err
		}
		field := Field{Offset: valOff, Length: valLen}
		switch typ {
		case TlvName:
			sk.Name = field
		case TlvKeyIdRestriction:
			sk.KeyIdRestriction = field
		case TlvHashRestriction:
			sk.HashRestriction = field
		case TlvPayload:
			sk.Payload = field
		}
		pos = next
	}
	return nil
}

func parseValidation(buf []byte, sk *Skeleton) error {
	off := int(sk.Header.PacketLength)
	limit := len(buf)
	if off >= limit {
		return nil // no validation section present
	}
	u := newUniqueTracker()
	for off < limit {
		typ, valOff, valLen, next, err := readTlv(buf, off, limit)
		if err != nil {
			return err
		}
		if err := u.mark(typ); err != nil {
			return err
		}
		field := Field{Offset: valOff, Length: valLen}
		switch typ {
		case TlvValidationAlg:
			sk.ValidationAlg = field
		case TlvValidationPayload:
			sk.ValidationPayload = field
		}
		off = next
	}
	return nil
}
