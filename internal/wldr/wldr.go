// Package wldr implements the optional per-hop loss detection sidecar
// (spec.md §4.8), grounded on metis_Wldr.h. WLDR tags each packet with a
// monotonically increasing 16-bit label; the receiver detects gaps and
// notifies the sender, which retransmits from a bounded buffer.
package wldr

import (
	"encoding/binary"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/wire"
)

// BufferSize is the number of labeled packets a sender keeps available for
// retransmission (metis_Wldr.h: BUFFER_SIZE).
const BufferSize = 8192

// MaxRtx is the maximum number of retransmit attempts per label
// (metis_Wldr.h: MAX_RTX).
const MaxRtx = 3

// Label is the 16-bit monotonically increasing sequence tag WLDR attaches
// to every packet on a sidecar-enabled connection.
type Label uint16

// Notification carries the receiver's view of a gap back to the sender:
// LastReceivedLabel is the last label it got before the gap, and
// ExpectedLabel the label whose arrival exposed the gap; the labels
// strictly between the two are the missing ones (metis_Wldr.h's
// WLDR_NOTIFICATION header).
type Notification struct {
	ExpectedLabel     Label
	LastReceivedLabel Label
}

// bufEntry is one retained packet awaiting possible retransmission.
type bufEntry struct {
	label  Label
	frame  []byte
	rtxCnt int
	valid  bool
}

// Sender tags outgoing packets with increasing labels and retains them in
// a ring buffer of BufferSize entries so a later Notification can trigger
// a bounded number of retransmissions.
type Sender struct {
	next Label
	ring [BufferSize]bufEntry
}

// NewSender constructs a Sender starting at label 0.
func NewSender() *Sender { return &Sender{} }

func (s *Sender) String() string { return "wldr-sender" }

// PeekNext reports the label Tag will assign on its next call, without
// consuming it. Callers that need to embed the label in a packet before
// retaining it (internal/face.Connection's drain, which builds the wire
// frame around the label before calling Tag) must be the Sender's only
// caller between PeekNext and the matching Tag - true for a connection's
// single drain goroutine.
func (s *Sender) PeekNext() Label { return s.next }

// Tag assigns the next label to frame and retains a copy for possible
// retransmission, returning the label to embed in the packet's WLDR
// header.
func (s *Sender) Tag(frame []byte) Label {
	label := s.next
	s.next++

	buf := append([]byte(nil), frame...)
	s.ring[uint16(label)%BufferSize] = bufEntry{label: label, frame: buf, valid: true}
	return label
}

// HandleNotification looks up every label between the sender's own record
// of LastReceivedLabel (exclusive) and ExpectedLabel (exclusive) that the
// receiver reports missing, and returns the frames to retransmit - each at
// most MaxRtx times (metis_Wldr.h: MAX_RTX), via send for each resend.
func (s *Sender) HandleNotification(n Notification, send func(frame []byte)) {
	for lbl := n.LastReceivedLabel + 1; lbl != n.ExpectedLabel; lbl++ {
		e := &s.ring[uint16(lbl)%BufferSize]
		if !e.valid || e.label != lbl {
			continue // evicted by wraparound - beyond our retransmit window
		}
		if e.rtxCnt >= MaxRtx {
			core.Log.Debug(s, "giving up on retransmit, MAX_RTX exceeded", "label", lbl)
			continue
		}
		e.rtxCnt++
		send(e.frame)
	}
}

// Receiver tracks the labels observed on one sidecar-enabled connection
// and produces a Notification whenever it detects a gap.
type Receiver struct {
	expected Label
	lastSeen Label
	started  bool
}

// NewReceiver constructs a Receiver expecting label 0 first.
func NewReceiver() *Receiver { return &Receiver{} }

// Observe records an incoming packet's label, returning a Notification if
// a gap was detected (one or more labels between lastSeen and label were
// skipped).
func (r *Receiver) Observe(label Label) (Notification, bool) {
	if !r.started {
		r.started = true
		r.lastSeen = label
		r.expected = label + 1
		return Notification{}, false
	}

	gap := label != r.expected
	prevLastSeen := r.lastSeen

	r.lastSeen = label
	r.expected = label + 1

	if !gap {
		return Notification{}, false
	}
	return Notification{ExpectedLabel: label, LastReceivedLabel: prevLastSeen}, true
}

// LabelSize and NotificationSize are the WLDR header TLV value lengths for
// a per-packet label tag and a gap notification respectively
// (metis_Wldr.h's WLDR_LBL / WLDR_NOTIFICATION header layouts).
const (
	LabelSize        = 2
	NotificationSize = 4
)

// EncodeLabel serializes a label into the WLDR header TLV value carried by
// a tagged Interest or ContentObject.
func EncodeLabel(l Label) []byte {
	b := make([]byte, LabelSize)
	binary.BigEndian.PutUint16(b, uint16(l))
	return b
}

// DecodeLabel parses a WLDR header TLV value tagged on an incoming packet
// back into a Label.
func DecodeLabel(b []byte) (Label, bool) {
	if len(b) != LabelSize {
		return 0, false
	}
	return Label(binary.BigEndian.Uint16(b)), true
}

// EncodeNotification serializes n into the WLDR header TLV value carried
// by a standalone notification frame (metis_Wldr.h: expected label then
// last received label, 2 bytes each).
func EncodeNotification(n Notification) []byte {
	b := make([]byte, NotificationSize)
	binary.BigEndian.PutUint16(b[0:2], uint16(n.ExpectedLabel))
	binary.BigEndian.PutUint16(b[2:4], uint16(n.LastReceivedLabel))
	return b
}

// DecodeNotification parses a WLDR header TLV value back into a
// Notification.
func DecodeNotification(b []byte) (Notification, bool) {
	if len(b) != NotificationSize {
		return Notification{}, false
	}
	return Notification{
		ExpectedLabel:     Label(binary.BigEndian.Uint16(b[0:2])),
		LastReceivedLabel: Label(binary.BigEndian.Uint16(b[2:4])),
	}, true
}

// BuildNotificationFrame wraps n in a standalone Control packet whose only
// content is a WLDR header, the wire form a Receiver sends back to the
// Sender on gap detection. Notifications piggyback on the same
// optional-header region every WLDR-tagged packet uses, so they parse with
// the ordinary wire codec (spec.md §4.1).
func BuildNotificationFrame(n Notification) []byte {
	return wire.Build(wire.Dict{
		PacketType: wire.TypeControl,
		CpiPayload: []byte{},
		WldrHeader: EncodeNotification(n),
	})
}
