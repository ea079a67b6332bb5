package pipeline

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/face"
	"github.com/icn-metis/metisd/internal/messenger"
	"github.com/icn-metis/metisd/internal/metrics"
	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/strategy"
	"github.com/icn-metis/metisd/internal/table"
	"github.com/icn-metis/metisd/internal/wire"
	"github.com/icn-metis/metisd/internal/wldr"
	"github.com/stretchr/testify/assert"
)

// fakeTransport is a non-local, no-op Transport used to exercise hop-limit
// admission and egress counting without real sockets. Each instance gets a
// distinct remote port so face.Table's (local,remote) de-dupe never
// collapses two test connections into one.
type fakeTransport struct {
	remote face.Address
	mu     sync.Mutex
	sent   [][]byte
}

var fakeTransportSeq uint16

func newFakeTransport() *fakeTransport {
	fakeTransportSeq++
	return &fakeTransport{remote: face.Address{Family: face.FamilyInet, Host: "203.0.113.1", Port: fakeTransportSeq}}
}

func (t *fakeTransport) String() string       { return fmt.Sprintf("fake(%s)", t.remote) }
func (t *fakeTransport) Close() error         { return nil }
func (t *fakeTransport) Local() face.Address  { return face.Address{Family: face.FamilyInet, Host: "203.0.113.254", Port: 9695} }
func (t *fakeTransport) Remote() face.Address { return t.remote }
func (t *fakeTransport) IsLocal() bool        { return false }
func (t *fakeTransport) Write(f []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, append([]byte(nil), f...))
	return nil
}

// frames gives the connection's drain goroutine time to write what
// HandleIngress queued (face.Connection.Send is asynchronous), then returns
// every frame written so far.
func (t *fakeTransport) frames() [][]byte {
	time.Sleep(20 * time.Millisecond)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent
}

func newFixture() (*Forwarder, *face.Table) {
	arena := name.NewArena()
	timers := core.NewTimerQueue()
	fib := table.NewFib(arena)
	pit := table.NewPit(arena, timers, time.Second)
	cs := table.NewContentStore(2)
	conns := face.NewTable()

	fw := &Forwarder{
		Arena:       arena,
		Fib:         fib,
		Pit:         pit,
		CS:          cs,
		Connections: conns,
		Strategies: map[table.StrategyName]strategy.Strategy{
			table.StrategyAll: strategy.All{},
		},
		Metrics:         metrics.NewCounters(),
		DefaultLifetime: time.Second,
	}
	return fw, conns
}

func addConn(conns *face.Table) (uint64, *fakeTransport) {
	id := conns.NextID()
	ft := newFakeTransport()
	c := face.NewConnection(id, ft, 16, face.DropNewest, messenger.NewBus())
	conns.Add(c)
	return id, ft
}

func interestBuf(nameStr string, hopLimit uint8) []byte {
	return wire.Build(wire.Dict{
		PacketType: wire.TypeInterest,
		Name:       encodeName(nameStr),
		HopLimit:   hopLimit,
	})
}

func contentObjectBuf(nameStr string, payload []byte) []byte {
	return wire.Build(wire.Dict{
		PacketType: wire.TypeContentObject,
		Name:       encodeName(nameStr),
		Payload:    payload,
	})
}

func encodeName(s string) []byte {
	n := name.FromString(s)
	var out []byte
	for i := 0; i < n.Len(); i++ {
		seg := n.At(i)
		out = append(out, byte(len(seg.Value)))
		out = append(out, seg.Value...)
	}
	return out
}

// TestS1Aggregation reproduces spec.md §8 scenario S1.
func TestS1Aggregation(t *testing.T) {
	fw, conns := newFixture()

	a, _ := addConn(conns)
	b, _ := addConn(conns)
	c, ftC := addConn(conns)

	fw.Fib.Add(name.FromString("/a/b"), c, 10, table.StrategyAll)

	fw.HandleIngress(a, interestBuf("/a/b", 5))
	fw.HandleIngress(b, interestBuf("/a/b", 5))

	assert.Equal(t, 1, len(ftC.frames()), "second Interest must aggregate, not forward again")

	fw.HandleIngress(c, contentObjectBuf("/a/b", []byte("data")))

	assert.Equal(t, 0, fw.Pit.Len())
}

// TestS2LongestPrefix reproduces spec.md §8 scenario S2.
func TestS2LongestPrefix(t *testing.T) {
	fw, conns := newFixture()

	in, _ := addConn(conns)
	c1, ft1 := addConn(conns)
	c2, ft2 := addConn(conns)

	fw.Fib.Add(name.FromString("/a"), c1, 10, table.StrategyAll)
	fw.Fib.Add(name.FromString("/a/b"), c2, 10, table.StrategyAll)

	fw.HandleIngress(in, interestBuf("/a/b/x", 5))
	assert.Equal(t, 1, len(ft2.frames()))
	assert.Equal(t, 0, len(ft1.frames()))

	fw.HandleIngress(in, interestBuf("/a/x", 5))
	assert.Equal(t, 1, len(ft1.frames()))
}

// TestS3HopLimitExhaustion reproduces spec.md §8 scenario S3.
func TestS3HopLimitExhaustion(t *testing.T) {
	fw, conns := newFixture()

	in, _ := addConn(conns)
	c, ft := addConn(conns)
	fw.Fib.Add(name.FromString("/p"), c, 10, table.StrategyAll)

	fw.HandleIngress(in, interestBuf("/p", 1))

	assert.Equal(t, 0, len(ft.frames()), "hop-limit decremented to 0 must not forward")
	assert.Equal(t, uint64(1), fw.Metrics.Get(metrics.HopLimitExceeded))
	assert.Equal(t, 0, fw.Pit.Len(), "the seed PIT entry must be removed once hop-limit hits 0")
}

// TestHopLimitExhaustionOnRetransmitPreservesOtherAggregatedRecords covers
// the Retransmit half of spec.md §8 scenario S3: a's own retransmitted
// Interest arriving with an already-exhausted hop limit must drop only a's
// reverse-path record, not the whole (now multiply-aggregated) PIT entry -
// b's earlier, still-live record is still owed the eventual Content Object.
func TestHopLimitExhaustionOnRetransmitPreservesOtherAggregatedRecords(t *testing.T) {
	fw, conns := newFixture()

	a, ftA := addConn(conns)
	b, ftB := addConn(conns)
	c, ftC := addConn(conns)
	fw.Fib.Add(name.FromString("/p"), c, 10, table.StrategyAll)

	fw.HandleIngress(a, interestBuf("/p", 5))
	fw.HandleIngress(b, interestBuf("/p", 5))
	assert.Equal(t, 1, len(ftC.frames()), "second Interest must aggregate, not forward again")
	assert.Equal(t, 1, fw.Pit.Len())

	// a retransmits the same Interest, this time with an exhausted hop limit.
	fw.HandleIngress(a, interestBuf("/p", 1))

	assert.Equal(t, 1, len(ftC.frames()), "retransmit with exhausted hop limit must not forward again")
	assert.Equal(t, uint64(1), fw.Metrics.Get(metrics.HopLimitExceeded))
	assert.Equal(t, 1, fw.Pit.Len(), "b's aggregated record must survive a's exhausted retransmission")

	fw.HandleIngress(c, contentObjectBuf("/p", []byte("data")))

	assert.Equal(t, 0, len(ftA.frames()), "a's record was dropped on hop-limit exhaustion, must not receive the answer")
	assert.Equal(t, 1, len(ftB.frames()), "b's surviving record must receive the answer")
	assert.Equal(t, 0, fw.Pit.Len())
}

// TestS4CacheOnlyPopulatedOnPitSatisfaction reproduces spec.md §8 scenario
// S4 (with its stated correction): an unsolicited Content Object is
// dropped and never cached, even with cache-store on; only a Content
// Object that satisfies a pending Interest gets saved, after which a
// later Interest hits the cache without a FIB lookup.
func TestS4CacheOnlyPopulatedOnPitSatisfaction(t *testing.T) {
	fw, conns := newFixture()

	producer, ftProducer := addConn(conns)
	consumer, ftConsumer := addConn(conns)
	fw.Fib.Add(name.FromString("/p"), producer, 10, table.StrategyAll)

	// Unsolicited Content Object: no PIT entry exists yet.
	fw.HandleIngress(producer, contentObjectBuf("/p", []byte("stale")))
	assert.Equal(t, uint64(1), fw.Metrics.Get(metrics.Unsolicited))
	assert.Equal(t, 0, fw.CS.Len(), "unsolicited object must not be cached")

	// Interest forwarded, then satisfied - this populates the cache.
	fw.HandleIngress(consumer, interestBuf("/p", 5))
	assert.Equal(t, 1, len(ftProducer.frames()))

	fw.HandleIngress(producer, contentObjectBuf("/p", []byte("data")))
	assert.Equal(t, 1, len(ftConsumer.frames()))
	assert.Equal(t, 1, fw.CS.Len())

	// A later Interest for /p is answered straight from the CS.
	other, ftOther := addConn(conns)
	ftProducer.sent = nil
	fw.HandleIngress(other, interestBuf("/p", 5))
	assert.Equal(t, 1, len(ftOther.frames()))
	assert.Equal(t, 0, len(ftProducer.frames()), "a cache hit must not re-consult the FIB")
}

// TestS6ConnectionPurge reproduces spec.md §8 scenario S6.
func TestS6ConnectionPurge(t *testing.T) {
	fw, conns := newFixture()

	c1, _ := addConn(conns)
	c2, _ := addConn(conns)
	fw.Fib.Add(name.FromString("/a"), c1, 10, table.StrategyAll)
	fw.Fib.Add(name.FromString("/a"), c2, 10, table.StrategyAll)

	fw.Fib.PurgeConnection(c1)
	e, ok := fw.Fib.Lookup(name.FromString("/a"))
	assert.True(t, ok)
	assert.Equal(t, 1, len(e.NextHops()))

	fw.Fib.PurgeConnection(c2)
	_, ok = fw.Fib.Lookup(name.FromString("/a"))
	assert.False(t, ok)
}

// TestSplitHorizon checks Invariant 6: forward(i, in) never sends i back
// out on in, even when in is itself present in the PIT's reverse path.
func TestSplitHorizon(t *testing.T) {
	fw, conns := newFixture()

	a, ftA := addConn(conns)
	c, _ := addConn(conns)
	fw.Fib.Add(name.FromString("/p"), c, 10, table.StrategyAll)

	fw.HandleIngress(a, interestBuf("/p", 5))
	// Content Object arrives on a, the Interest's own ingress connection
	// (pathological but possible after reconfiguration) - must not echo to a.
	fw.HandleIngress(a, contentObjectBuf("/p", []byte("data")))
	assert.Equal(t, 0, len(ftA.frames()))
}

// TestWldrObserveSendsNotificationOnGap exercises the receive-side WLDR
// wiring in HandleIngress (spec.md §4.8): a labeled packet that skips
// labels must make the Receiver attached to its ingress connection send a
// gap Notification back out that same connection.
func TestWldrObserveSendsNotificationOnGap(t *testing.T) {
	fw, conns := newFixture()
	id, ft := addConn(conns)
	conns.Get(id).SetWLDR(wldr.NewSender(), wldr.NewReceiver())

	tag := func(label wldr.Label) []byte {
		buf := contentObjectBuf("/a/b", []byte("x"))
		sk, err := wire.Parse(buf)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		dict := sk.Extract(buf)
		dict.WldrHeader = wldr.EncodeLabel(label)
		return wire.Build(dict)
	}

	fw.HandleIngress(id, tag(0))
	assert.Equal(t, 0, len(ft.frames()), "no gap yet, no notification")

	fw.HandleIngress(id, tag(3))
	sent := ft.frames()
	if len(sent) != 1 {
		t.Fatalf("gap must trigger exactly one notification, got %d", len(sent))
	}

	sk, err := wire.Parse(sent[0])
	if err != nil {
		t.Fatalf("parse notification: %v", err)
	}
	assert.True(t, sk.WldrHeader.Present())
	n, ok := wldr.DecodeNotification(sk.WldrHeader.Bytes(sent[0]))
	assert.True(t, ok)
	assert.Equal(t, wldr.Label(3), n.ExpectedLabel)
	assert.Equal(t, wldr.Label(0), n.LastReceivedLabel)
}

// TestWldrHandleNotificationRetransmits exercises the send-side WLDR
// wiring: a Notification arriving on a connection whose Sender retained
// the gapped labels must replay exactly those frames back out.
func TestWldrHandleNotificationRetransmits(t *testing.T) {
	fw, conns := newFixture()
	id, ft := addConn(conns)
	sender := wldr.NewSender()
	conns.Get(id).SetWLDR(sender, wldr.NewReceiver())

	for i := 0; i < 4; i++ {
		sender.Tag(contentObjectBuf(fmt.Sprintf("/c/%d", i), []byte("x")))
	}

	notif := wldr.BuildNotificationFrame(wldr.Notification{ExpectedLabel: 4, LastReceivedLabel: 1})
	fw.HandleIngress(id, notif)

	assert.Equal(t, 2, len(ft.frames()), "retransmits labels 2 and 3 only")
}
