package face

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icn-metis/metisd/internal/messenger"
	"github.com/icn-metis/metisd/internal/pkt"
	"github.com/icn-metis/metisd/internal/wire"
	"github.com/icn-metis/metisd/internal/wldr"
)

// capturingTransport records every frame written to it on a channel, for
// tests that need to observe drain's async write path.
type capturingTransport struct {
	written chan []byte
}

func newCapturingTransport() *capturingTransport {
	return &capturingTransport{written: make(chan []byte, 8)}
}

func (t *capturingTransport) String() string { return "capturing-transport" }
func (t *capturingTransport) Write(frame []byte) error {
	cp := append([]byte(nil), frame...)
	t.written <- cp
	return nil
}
func (t *capturingTransport) Close() error    { return nil }
func (t *capturingTransport) Local() Address  { return Address{Family: FamilyLocal, Host: "local"} }
func (t *capturingTransport) Remote() Address { return Address{Family: FamilyLocal, Host: "remote"} }
func (t *capturingTransport) IsLocal() bool   { return false }

func buildContentObject(t *testing.T) (buf []byte, sk wire.Skeleton) {
	t.Helper()
	buf = wire.Build(wire.Dict{PacketType: wire.TypeContentObject, Name: []byte{3, 'a', 'b', 'c'}})
	sk, err := wire.Parse(buf)
	require.NoError(t, err)
	return buf, sk
}

func TestConnectionSetWLDRRoundTrip(t *testing.T) {
	c := NewConnection(1, MakeNullTransport(), 4, DropNewest, messenger.NewBus())
	defer c.Close()

	sender, recv := c.WLDR()
	assert.Nil(t, sender)
	assert.Nil(t, recv)

	s, r := wldr.NewSender(), wldr.NewReceiver()
	c.SetWLDR(s, r)
	gotS, gotR := c.WLDR()
	assert.Same(t, s, gotS)
	assert.Same(t, r, gotR)

	c.SetWLDR(nil, nil)
	gotS, gotR = c.WLDR()
	assert.Nil(t, gotS)
	assert.Nil(t, gotR)
}

func TestTagWldrEmbedsLabelAndSkipsRetag(t *testing.T) {
	s := wldr.NewSender()
	buf, sk := buildContentObject(t)
	m := pkt.New(pkt.KindContentObject, buf, sk, 1, time.Now())

	tagged := tagWldr(s, m)
	tsk, err := wire.Parse(tagged)
	require.NoError(t, err)
	require.True(t, tsk.WldrHeader.Present())

	label, ok := wldr.DecodeLabel(tsk.WldrHeader.Bytes(tagged))
	require.True(t, ok)
	assert.Equal(t, wldr.Label(0), label)

	// Replaying an already-tagged frame (a WLDR retransmission going back
	// through drain) must not embed a second label.
	m2 := pkt.New(pkt.KindContentObject, tagged, tsk, 1, time.Now())
	assert.Equal(t, tagged, tagWldr(s, m2))
}

func TestTagWldrSkipsControlPackets(t *testing.T) {
	s := wldr.NewSender()
	buf := wire.Build(wire.Dict{PacketType: wire.TypeControl, CpiPayload: []byte("hi")})
	sk, err := wire.Parse(buf)
	require.NoError(t, err)
	m := pkt.New(pkt.KindControl, buf, sk, 1, time.Now())
	assert.Equal(t, buf, tagWldr(s, m))
}

func TestDrainTagsOutgoingFramesWhenWldrEnabled(t *testing.T) {
	ct := newCapturingTransport()
	c := NewConnection(1, ct, 4, DropNewest, messenger.NewBus())
	defer c.Close()
	c.SetWLDR(wldr.NewSender(), wldr.NewReceiver())

	buf, sk := buildContentObject(t)
	c.Send(pkt.New(pkt.KindContentObject, buf, sk, 1, time.Now()))

	select {
	case got := <-ct.written:
		gotSk, err := wire.Parse(got)
		require.NoError(t, err)
		assert.True(t, gotSk.WldrHeader.Present())
	case <-time.After(time.Second):
		t.Fatal("drain never wrote the tagged frame")
	}
}
