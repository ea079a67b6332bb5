package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/icn-metis/metisd/internal/control"
	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/face"
	"github.com/icn-metis/metisd/internal/messenger"
	"github.com/icn-metis/metisd/internal/metrics"
	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/pipeline"
	"github.com/icn-metis/metisd/internal/strategy"
	"github.com/icn-metis/metisd/internal/table"
)

// dispatchTick bounds PIT-expiry latency; since ingress events are drained
// once per tick, it also adds up to one tick of per-packet latency
// (core.Dispatcher's doc comment). CS staleness is checked at Fetch time.
const dispatchTick = 10 * time.Millisecond

// Metisd owns the forwarder's tables, the single dispatcher goroutine that
// is their sole mutator, and the control-plane manager that exposes them to
// the text command channel - the daemon-lifecycle shape grounded on the
// teacher's YaNFD (NewYaNFD / Start / Stop, fw/cmd/cmd.go's run()).
type Metisd struct {
	config *core.Config

	arena      *name.Arena
	fib        *table.Fib
	pit        *table.Pit
	cs         *table.ContentStore
	conns      *face.Table
	bus        *messenger.Bus
	metrics    *metrics.Counters
	fw         *pipeline.Forwarder
	dispatcher *core.Dispatcher
	mgr        *control.Manager
	web        *control.WebStatus

	profiler *Profiler
}

// NewMetisd constructs a daemon from config without starting any I/O.
func NewMetisd(config *core.Config) *Metisd {
	arena := name.NewArena()

	// fw is assigned below, once its tables exist; the dispatcher only
	// calls onIngress after Start, by which point fw is set.
	var fw *pipeline.Forwarder
	dispatcher := core.NewDispatcher(dispatchTick, config.Core.IngressQueueCapacity, func(ev core.IngressEvent) {
		fw.HandleIngress(ev.ConnID, ev.Frame)
	})

	fib := table.NewFib(arena)
	pit := table.NewPit(arena, dispatcher.Timers, config.Tables.PitDefaultLifetime)
	cs := table.NewContentStore(config.Tables.ContentStoreCapacity)
	cs.SetServe(config.Tables.CacheServe)
	cs.SetStore(config.Tables.CacheStore)
	conns := face.NewTable()
	bus := messenger.NewBus()
	m := metrics.NewCounters()

	strategies := map[table.StrategyName]strategy.Strategy{
		table.StrategyAll:          strategy.All{},
		table.StrategyRandom:       strategy.Random{},
		table.StrategyLoadBalancer: strategy.NewLoadBalancer(),
	}

	fw = &pipeline.Forwarder{
		Arena:           arena,
		Fib:             fib,
		Pit:             pit,
		CS:              cs,
		Connections:     conns,
		Strategies:      strategies,
		Metrics:         m,
		DefaultLifetime: config.Tables.PitDefaultLifetime,
	}

	mgr := control.NewManager(arena, fib, pit, cs, conns, strategies, m, bus)
	mgr.QuicTLSCert = config.Faces.Quic.TLSCert
	mgr.QuicTLSKey = config.Faces.Quic.TLSKey
	mgr.OnFrame = func(connID uint64, frame []byte) {
		if !dispatcher.Ingress.Push(core.IngressEvent{ConnID: connID, Frame: frame}) {
			m.Incr(metrics.QueueFull)
		}
	}

	return &Metisd{
		config:     config,
		arena:      arena,
		fib:        fib,
		pit:        pit,
		cs:         cs,
		conns:      conns,
		bus:        bus,
		metrics:    m,
		fw:         fw,
		dispatcher: dispatcher,
		mgr:        mgr,
		profiler:   NewProfiler(config),
	}
}

func (y *Metisd) String() string { return "metisd" }

// Start binds the configured listeners, starts the dispatcher loop (PIT/CS
// expiry plus ingress draining), and begins reading commands from stdin -
// the control channel of last resort when no control-socket listener is
// configured (spec.md §6).
func (y *Metisd) Start() {
	if err := y.profiler.Start(); err != nil {
		core.Log.Fatal(y, "failed to start profiler", "err", err)
	}

	go y.dispatcher.Run()

	if y.config.Faces.Tcp.Port != 0 {
		y.runBootCommand(fmt.Sprintf("add listener tcp tcp-listener 0.0.0.0 %d", y.config.Faces.Tcp.Port))
	}
	if y.config.Faces.Udp.Port != 0 {
		y.runBootCommand(fmt.Sprintf("add listener udp udp-listener 0.0.0.0 %d", y.config.Faces.Udp.Port))
	}
	if y.config.Faces.Unix.Path != "" {
		y.runBootCommand(fmt.Sprintf("add listener local local-listener %s -", y.config.Faces.Unix.Path))
	}
	if y.config.Faces.Ether.Ifname != "" {
		y.runBootCommand(fmt.Sprintf("add listener ether ether-listener - %s", y.config.Faces.Ether.Ifname))
	}
	if y.config.Faces.WebSocket.Port != 0 {
		y.runBootCommand(fmt.Sprintf("add listener ws ws-listener 0.0.0.0 %d", y.config.Faces.WebSocket.Port))
	}
	if y.config.Faces.Quic.Port != 0 {
		y.runBootCommand(fmt.Sprintf("add listener quic quic-listener 0.0.0.0 %d", y.config.Faces.Quic.Port))
	}

	if y.config.Control.WebPort != 0 {
		y.web = control.NewWebStatus(y.mgr, fmt.Sprintf("0.0.0.0:%d", y.config.Control.WebPort))
		go y.web.Run()
	}

	go y.serveControl()

	core.Log.Info(y, "metisd started", "udp", y.config.Faces.Udp.Port, "tcp", y.config.Faces.Tcp.Port)
}

// runBootCommand executes one config-derived "add listener ..." line at
// startup, logging (not fataling) on failure so a single misconfigured face
// doesn't prevent the rest of the daemon from coming up.
func (y *Metisd) runBootCommand(line string) {
	res := y.mgr.Exec(line)
	if res.Code != control.ExitSuccess {
		core.Log.Warn(y, "boot-time listener failed", "cmd", line, "result", res.Text)
	}
}

// serveControl reads newline-delimited commands from stdin and writes
// "<code> <text>" responses to stdout, the control channel spec.md §6
// describes atop the text command grammar.
func (y *Metisd) serveControl() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		res := y.mgr.Exec(line)
		fmt.Printf("%d %s\n", res.Code, res.Text)
		if res.Code == control.ExitSuccess && line == "quit" {
			core.RequestQuit()
			return
		}
	}
}

// Stop tears the daemon down: stops the dispatcher loop, closes every
// connection, and writes out any requested profiles.
func (y *Metisd) Stop() {
	if y.web != nil {
		y.web.Close()
	}
	y.dispatcher.Stop()
	for _, c := range y.conns.All() {
		y.conns.Remove(c.ID())
	}
	y.profiler.Stop()
}
