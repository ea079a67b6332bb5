package face

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/icn-metis/metisd/internal/core"
)

// WebSocketListenerConfig describes the bind address/port for a WebSocket
// face, used by web-based consumers that cannot open raw TCP/UDP sockets
// (spec.md §4.7, grounded on fw/face/web-socket-listener.go).
type WebSocketListenerConfig struct {
	Bind string
	Port uint16
}

func (cfg WebSocketListenerConfig) url() *url.URL {
	return &url.URL{Scheme: "ws", Host: net.JoinHostPort(cfg.Bind, strconv.FormatUint(uint64(cfg.Port), 10))}
}

// WebSocketListener accepts inbound WebSocket connections and upgrades each
// to a Transport.
type WebSocketListener struct {
	cfg      WebSocketListenerConfig
	server   http.Server
	upgrader websocket.Upgrader
	onAccept func(t *WebSocketTransport)
}

// MakeWebSocketListener constructs a WebSocket listener.
func MakeWebSocketListener(cfg WebSocketListenerConfig, onAccept func(t *WebSocketTransport)) *WebSocketListener {
	return &WebSocketListener{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			WriteBufferPool: &sync.Pool{},
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		onAccept: onAccept,
	}
}

func (l *WebSocketListener) String() string {
	return fmt.Sprintf("web-socket-listener (url=%s)", l.cfg.url())
}

// Run starts the HTTP server and serves the upgrade handler until Close.
func (l *WebSocketListener) Run() {
	l.server.Addr = net.JoinHostPort(l.cfg.Bind, strconv.FormatUint(uint64(l.cfg.Port), 10))
	l.server.Handler = http.HandlerFunc(l.handler)

	if err := l.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		core.Log.Fatal(l, "unable to start WebSocket listener", "err", err)
	}
}

func (l *WebSocketListener) handler(w http.ResponseWriter, r *http.Request) {
	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	t := newWebSocketTransport(Address{Family: FamilyInet, Host: l.cfg.Bind, Port: l.cfg.Port}, c)
	core.Log.Info(l, "accepted WebSocket face", "remote", t.remote)
	l.onAccept(t)
}

// Close gracefully shuts the HTTP server down.
func (l *WebSocketListener) Close() {
	l.server.Shutdown(context.Background())
}

// WebSocketTransport wraps one upgraded WebSocket connection as a Transport
// (grounded on fw/face/web-socket-transport.go).
type WebSocketTransport struct {
	c      *websocket.Conn
	local  Address
	remote Address
	local_ bool
}

func newWebSocketTransport(local Address, c *websocket.Conn) *WebSocketTransport {
	raddr := c.RemoteAddr()
	host, portStr, _ := net.SplitHostPort(raddr.String())
	port, _ := strconv.Atoi(portStr)
	ip := net.ParseIP(host)
	return &WebSocketTransport{
		c:      c,
		local:  local,
		remote: Address{Family: FamilyInet, Host: host, Port: uint16(port)},
		local_: ip != nil && ip.IsLoopback(),
	}
}

func (t *WebSocketTransport) String() string {
	return fmt.Sprintf("web-socket-transport (remote=%s local=%s)", t.remote, t.local)
}
func (t *WebSocketTransport) Close() error    { return t.c.Close() }
func (t *WebSocketTransport) Local() Address  { return t.local }
func (t *WebSocketTransport) Remote() Address { return t.remote }
func (t *WebSocketTransport) IsLocal() bool   { return t.local_ }

// Write sends one binary WebSocket message.
func (t *WebSocketTransport) Write(frame []byte) error {
	return t.c.WriteMessage(websocket.BinaryMessage, frame)
}

func (t *WebSocketTransport) runReceive(connID uint64, onFrame OnFrame) {
	for {
		mt, message, err := t.c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			core.Log.Warn(t, "ignored non-binary WebSocket message")
			continue
		}
		onFrame(connID, message)
	}
}
