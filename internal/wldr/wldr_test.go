package wldr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReceiverNoGapNoNotification(t *testing.T) {
	r := NewReceiver()
	_, gap := r.Observe(0)
	assert.False(t, gap)
	_, gap = r.Observe(1)
	assert.False(t, gap)
}

func TestReceiverDetectsGap(t *testing.T) {
	r := NewReceiver()
	r.Observe(0)
	n, gap := r.Observe(3)
	assert.True(t, gap)
	assert.Equal(t, Label(0), n.LastReceivedLabel)
	assert.Equal(t, Label(3), n.ExpectedLabel)
}

func TestSenderRetransmitsGapOnNotification(t *testing.T) {
	s := NewSender()
	s.Tag([]byte("pkt0"))
	s.Tag([]byte("pkt1"))
	s.Tag([]byte("pkt2"))
	s.Tag([]byte("pkt3"))

	var resent [][]byte
	s.HandleNotification(Notification{ExpectedLabel: 4, LastReceivedLabel: 1}, func(frame []byte) {
		resent = append(resent, frame)
	})

	assert.Equal(t, 2, len(resent))
	assert.Equal(t, []byte("pkt2"), resent[0])
	assert.Equal(t, []byte("pkt3"), resent[1])
}

func TestSenderGivesUpAfterMaxRtx(t *testing.T) {
	s := NewSender()
	s.Tag([]byte("pkt0"))

	var attempts int
	for i := 0; i < MaxRtx+2; i++ {
		s.HandleNotification(Notification{ExpectedLabel: 1, LastReceivedLabel: 0xffff}, func(frame []byte) {
			attempts++
		})
	}
	assert.Equal(t, MaxRtx, attempts)
}
