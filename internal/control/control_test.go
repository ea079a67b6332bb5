package control

import (
	"testing"
	"time"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/face"
	"github.com/icn-metis/metisd/internal/messenger"
	"github.com/icn-metis/metisd/internal/metrics"
	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/strategy"
	"github.com/icn-metis/metisd/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureManager() *Manager {
	arena := name.NewArena()
	timers := core.NewTimerQueue()
	fib := table.NewFib(arena)
	pit := table.NewPit(arena, timers, time.Second)
	cs := table.NewContentStore(4)
	conns := face.NewTable()
	strategies := map[table.StrategyName]strategy.Strategy{
		table.StrategyAll:          strategy.All{},
		table.StrategyRandom:       strategy.Random{},
		table.StrategyLoadBalancer: strategy.NewLoadBalancer(),
	}
	m := NewManager(arena, fib, pit, cs, conns, strategies, metrics.NewCounters(), messenger.NewBus())
	m.OnFrame = func(uint64, []byte) {}
	return m
}

// registerFakeConnection bypasses the dialing path in addConnection so tests
// can exercise symbolic-name bookkeeping without real sockets, the same
// approach forwarder_test.go's addConn takes for the pipeline package.
func registerFakeConnection(m *Manager, sym string, remotePort uint16) uint64 {
	t := &fakeTransport{remote: face.Address{Family: face.FamilyInet, Host: "203.0.113.9", Port: remotePort}}
	m.mu.Lock()
	c := m.addTransportLocked(sym, t)
	m.mu.Unlock()
	return c.ID()
}

type fakeTransport struct {
	remote face.Address
}

func (t *fakeTransport) String() string       { return "fake" }
func (t *fakeTransport) Close() error         { return nil }
func (t *fakeTransport) Local() face.Address  { return face.Address{Family: face.FamilyInet, Host: "203.0.113.1", Port: 1} }
func (t *fakeTransport) Remote() face.Address { return t.remote }
func (t *fakeTransport) IsLocal() bool        { return false }
func (t *fakeTransport) Write(f []byte) error { return nil }

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse("frobnicate everything")
	assert.Error(t, err)
}

func TestParseEmptyLine(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestExecUnknownCommandIsParseError(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("frobnicate everything")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestExecAddConnectionBadArity(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("add connection tcp onlyone")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestExecAddConnectionUnknownKind(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("add connection carrier-pigeon sym 203.0.113.5:9695 203.0.113.1:9695")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestExecAddConnectionBadHostPortIsParseError(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("add connection tcp sym1 not-a-hostport 203.0.113.1:9695")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestRemoveUnknownConnectionIsExecuteError(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("remove connection nosuch")
	assert.Equal(t, ExitExecuteError, res.Code)
}

func TestAddRemoveRouteLifecycle(t *testing.T) {
	m := newFixtureManager()
	registerFakeConnection(m, "peer1", 9001)

	res := m.Exec("add route peer1 /a/b 10")
	require.Equal(t, ExitSuccess, res.Code)

	listed := m.Exec("list routes")
	require.Equal(t, ExitSuccess, listed.Code)
	assert.Contains(t, listed.Text, "/a/b")
	assert.Contains(t, listed.Text, "peer1")

	res = m.Exec("remove route peer1 /a/b")
	require.Equal(t, ExitSuccess, res.Code)

	listed = m.Exec("list routes")
	assert.NotContains(t, listed.Text, "/a/b")
}

func TestAddRouteUnknownSymbolIsExecuteError(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("add route ghost /a/b 10")
	assert.Equal(t, ExitExecuteError, res.Code)
}

func TestAddRouteBadCostIsParseError(t *testing.T) {
	m := newFixtureManager()
	registerFakeConnection(m, "peer1", 9002)
	res := m.Exec("add route peer1 /a/b notanumber")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestSetStrategy(t *testing.T) {
	m := newFixtureManager()
	registerFakeConnection(m, "peer1", 9003)
	require.Equal(t, ExitSuccess, m.Exec("add route peer1 /a/b 1").Code)

	res := m.Exec("set strategy /a/b random")
	assert.Equal(t, ExitSuccess, res.Code)

	res = m.Exec("set strategy /a/b quantum")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestListConnectionsAndInterfaces(t *testing.T) {
	m := newFixtureManager()
	registerFakeConnection(m, "peer1", 9004)

	res := m.Exec("list connections")
	require.Equal(t, ExitSuccess, res.Code)
	assert.Contains(t, res.Text, "peer1")

	res = m.Exec("list interfaces")
	require.Equal(t, ExitSuccess, res.Code)
	assert.Equal(t, "", res.Text)

	res = m.Exec("list nonsense")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestCacheServeStoreAndClear(t *testing.T) {
	m := newFixtureManager()

	res := m.Exec("cache serve off")
	require.Equal(t, ExitSuccess, res.Code)
	assert.False(t, m.CS.Serve())

	res = m.Exec("cache store on")
	require.Equal(t, ExitSuccess, res.Code)
	assert.True(t, m.CS.Store())

	res = m.Exec("cache clear")
	assert.Equal(t, ExitSuccess, res.Code)
	assert.Equal(t, 0, m.CS.Len())
}

func TestCacheBadGrammarIsParseError(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("cache serve maybe")
	assert.Equal(t, ExitParseError, res.Code)
}

func TestSetUnsetDebug(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("set debug")
	assert.Equal(t, ExitSuccess, res.Code)
	assert.True(t, m.debug)

	res = m.Exec("unset debug")
	assert.Equal(t, ExitSuccess, res.Code)
	assert.False(t, m.debug)
}

func TestSetWldrOnOffUnknownConnection(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("set wldr on ghost")
	assert.Equal(t, ExitExecuteError, res.Code)
}

func TestSetWldrLifecycle(t *testing.T) {
	m := newFixtureManager()
	id := registerFakeConnection(m, "peer1", 9005)

	res := m.Exec("set wldr on peer1")
	require.Equal(t, ExitSuccess, res.Code)
	sender, recv := m.Connections.Get(id).WLDR()
	assert.NotNil(t, sender)
	assert.NotNil(t, recv)

	res = m.Exec("set wldr off peer1")
	require.Equal(t, ExitSuccess, res.Code)
	sender, recv = m.Connections.Get(id).WLDR()
	assert.Nil(t, sender)
	assert.Nil(t, recv)
}

func TestQuit(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("quit")
	assert.Equal(t, ExitSuccess, res.Code)
}

func TestHelpTopLevelAndFamily(t *testing.T) {
	m := newFixtureManager()
	res := m.Exec("help")
	require.Equal(t, ExitSuccess, res.Code)
	assert.Contains(t, res.Text, "add connection")

	res = m.Exec("help cache")
	assert.Equal(t, ExitSuccess, res.Code)
	assert.Contains(t, res.Text, "cache")
}

func TestRemoveConnectionPurgesRoutesAndWldr(t *testing.T) {
	m := newFixtureManager()
	registerFakeConnection(m, "peer1", 9006)
	require.Equal(t, ExitSuccess, m.Exec("add route peer1 /a/b 1").Code)
	require.Equal(t, ExitSuccess, m.Exec("set wldr on peer1").Code)

	res := m.Exec("remove connection peer1")
	require.Equal(t, ExitSuccess, res.Code)

	listed := m.Exec("list routes")
	assert.NotContains(t, listed.Text, "/a/b")

	res = m.Exec("remove connection peer1")
	assert.Equal(t, ExitExecuteError, res.Code)
}
