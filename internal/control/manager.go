// Package control implements the text control-message codec and verb
// dispatch for the exact command set in spec.md §6, plus the ws/quic
// listener-type additions from SPEC_FULL.md §4.7. Grounded on the
// metisControl_*.c verb-module split in original_source/ (one file per
// verb family: Add, Remove, List, Set, SetWldr, Cache, SetDebug) and on
// the teacher's fw/mgmt module-dispatch-by-verb pattern
// (handleIncomingInterest's switch on interest.Name()'s verb component).
package control

import (
	"fmt"
	"sync"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/face"
	"github.com/icn-metis/metisd/internal/messenger"
	"github.com/icn-metis/metisd/internal/metrics"
	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/strategy"
	"github.com/icn-metis/metisd/internal/table"
)

// Exit codes (spec.md §6, verbatim).
const (
	ExitSuccess      = 0
	ExitParseError   = 1
	ExitExecuteError = 2
)

// Result is one executed command's outcome: the human-readable response
// line(s) plus the exit code the CLI/control-socket caller should report.
type Result struct {
	Code int
	Text string
}

func ok(text string) Result    { return Result{Code: ExitSuccess, Text: text} }
func parseErr(text string) Result {
	return Result{Code: ExitParseError, Text: text}
}
func execErr(text string) Result {
	return Result{Code: ExitExecuteError, Text: text}
}

// Manager is the control plane: it owns the symbolic name tables for
// connections and listeners and dispatches parsed commands against the
// forwarding tables shared with the pipeline. All mutating methods run on
// the dispatcher loop thread, same as the forwarding pipeline (spec.md §5).
type Manager struct {
	Arena       *name.Arena
	Fib         *table.Fib
	Pit         *table.Pit
	CS          *table.ContentStore
	Connections *face.Table
	Strategies  map[table.StrategyName]strategy.Strategy
	Metrics     *metrics.Counters
	Bus         *messenger.Bus

	// OnFrame is wired by the caller to the dispatcher's ingress ring, so
	// connections created via "add connection" feed the same ingress path
	// as listener-accepted ones.
	OnFrame face.OnFrame

	// QuicTLSCert/QuicTLSKey name the certificate pair "add listener quic"
	// binds with; spec.md §6's listener grammar carries no TLS fields, so
	// these come from the daemon's own config (cmd/metisd).
	QuicTLSCert string
	QuicTLSKey  string

	mu        sync.Mutex
	symToConn map[string]uint64
	connToSym map[uint64]string
	listeners map[string]face.Listener
	debug     bool
}

// NewManager constructs a Manager bound to the given shared tables.
func NewManager(arena *name.Arena, fib *table.Fib, pit *table.Pit, cs *table.ContentStore, conns *face.Table, strategies map[table.StrategyName]strategy.Strategy, m *metrics.Counters, bus *messenger.Bus) *Manager {
	return &Manager{
		Arena:       arena,
		Fib:         fib,
		Pit:         pit,
		CS:          cs,
		Connections: conns,
		Strategies:  strategies,
		Metrics:     m,
		Bus:         bus,
		symToConn:   make(map[string]uint64),
		connToSym:   make(map[uint64]string),
		listeners:   make(map[string]face.Listener),
	}
}

func (m *Manager) String() string { return "control-manager" }

// Exec parses and executes one control-message line, returning the exit
// code and response text the caller should surface (spec.md §6: "Exit
// codes: 0 success, 1 parse error, 2 execution error").
func (m *Manager) Exec(line string) Result {
	cmd, err := Parse(line)
	if err != nil {
		return parseErr(err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch cmd.Verb {
	case verbAddConnection:
		return m.addConnection(cmd)
	case verbAddListener:
		return m.addListener(cmd)
	case verbAddRoute:
		return m.addRoute(cmd)
	case verbRemoveConnection:
		return m.removeConnection(cmd)
	case verbRemoveRoute:
		return m.removeRoute(cmd)
	case verbList:
		return m.list(cmd)
	case verbSetStrategy:
		return m.setStrategy(cmd)
	case verbSetWldr:
		return m.setWldr(cmd)
	case verbSetDebug:
		return m.setDebug()
	case verbUnsetDebug:
		return m.unsetDebug()
	case verbCache:
		return m.cache(cmd)
	case verbCacheClear:
		return m.cacheClear()
	case verbQuit:
		return ok("bye")
	case verbHelp:
		return ok(helpText(cmd.Args))
	default:
		return parseErr(fmt.Sprintf("unrecognized command: %s", line))
	}
}

// lookupSymbol resolves a symbolic connection name to its id, logging and
// reporting ControlError on miss (spec.md §7 ControlError).
func (m *Manager) lookupSymbol(sym string) (uint64, bool) {
	id, ok := m.symToConn[sym]
	if !ok {
		m.Metrics.Incr(metrics.ControlError)
		core.Log.Warn(m, "unknown symbolic connection name", "symbolic", sym)
	}
	return id, ok
}

func (m *Manager) registerConnection(sym string, c *face.Connection) {
	m.symToConn[sym] = c.ID()
	m.connToSym[c.ID()] = sym
}
