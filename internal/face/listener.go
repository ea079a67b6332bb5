package face

// Listener owns an accept loop for one transport kind, injecting newly
// observed frames into the dispatcher via an IngressEvent (spec.md §4.7,
// §5: "Listeners publish to the loop via readiness events, never by
// directly inserting into tables").
type Listener interface {
	String() string
	Run()
	Close()
}

// OnAccept is a callback shape for a newly established Connection. The
// concrete listeners in this package do not call it: each takes its own
// transport-specific accept or demux callback instead.
type OnAccept func(c *Connection)

// OnFrame is called with the connection id and raw bytes of every received
// frame; it must only enqueue onto the dispatcher's ingress ring, never
// touch pipeline tables directly (spec.md §5).
type OnFrame func(connID uint64, frame []byte)

// StartReceiving launches the per-transport blocking read loop on its own
// goroutine, feeding onFrame as frames arrive (spec.md §5: "helper
// goroutines... post results through internal/core.Ring"). Used for every
// connection-oriented transport dialed or accepted outside a demuxed
// shared-socket listener (UDP's shared-socket and raw-Ethernet listeners
// already run their own read loop and call onFrame directly).
func StartReceiving(t Transport, connID uint64, onFrame OnFrame) {
	switch tt := t.(type) {
	case *TCPTransport:
		go tt.runReceive(connID, onFrame)
	case *UDPTransport:
		go tt.runReceive(connID, onFrame)
	case *UnixTransport:
		go tt.runReceive(connID, onFrame)
	case *MulticastUDPTransport:
		go tt.runReceive(connID, onFrame)
	case *WebSocketTransport:
		go tt.runReceive(connID, onFrame)
	case *QUICTransport:
		go tt.runReceive(connID, onFrame)
	default:
		// EtherTransport and demuxedUDPTransport are driven by their
		// listener's own accept/read loop, not a per-connection goroutine.
	}
}
