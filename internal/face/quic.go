package face

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"time"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
)

// QUICListenerConfig describes a WebTransport-over-HTTP/3 face, used by
// browser consumers behind restrictive networks where TCP/UDP faces are
// unreachable (spec.md §4.7, grounded on fw/face/http3-listener.go).
type QUICListenerConfig struct {
	Bind    string
	Port    uint16
	TLSCert string
	TLSKey  string
}

func (cfg QUICListenerConfig) addr() string {
	return net.JoinHostPort(cfg.Bind, strconv.FormatUint(uint64(cfg.Port), 10))
}

func (cfg QUICListenerConfig) url() *url.URL {
	return &url.URL{Scheme: "https", Host: cfg.addr()}
}

// QUICListener accepts WebTransport sessions over HTTP/3.
type QUICListener struct {
	cfg      QUICListenerConfig
	mux      *http.ServeMux
	server   *webtransport.Server
	onAccept func(t *QUICTransport)
}

// MakeQUICListener constructs a QUICListener; TLS is mandatory for HTTP/3.
func MakeQUICListener(cfg QUICListenerConfig, onAccept func(t *QUICTransport)) (*QUICListener, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("tls.LoadX509KeyPair(%s %s): %w", cfg.TLSCert, cfg.TLSKey, err)
	}

	l := &QUICListener{cfg: cfg, onAccept: onAccept}
	l.mux = http.NewServeMux()
	l.mux.HandleFunc("/ccnx", l.handler)

	l.server = &webtransport.Server{
		H3: http3.Server{
			Addr: cfg.addr(),
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
			QUICConfig: &quic.Config{
				MaxIdleTimeout:          60 * time.Second,
				KeepAlivePeriod:         30 * time.Second,
				DisablePathMTUDiscovery: true,
			},
			Handler: l.mux,
		},
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	return l, nil
}

func (l *QUICListener) String() string { return fmt.Sprintf("quic-listener (url=%s)", l.cfg.url()) }

// Run serves WebTransport sessions until Close.
func (l *QUICListener) Run() {
	if err := l.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		core.Log.Fatal(l, "unable to start QUIC listener", "err", err)
	}
}

func (l *QUICListener) handler(w http.ResponseWriter, r *http.Request) {
	session, err := l.server.Upgrade(w, r)
	if err != nil {
		return
	}
	remote, err := netip.ParseAddrPort(r.RemoteAddr)
	if err != nil {
		return
	}
	t := newQUICTransport(Address{Family: FamilyInet, Host: l.cfg.Bind, Port: l.cfg.Port}, remote, session)
	core.Log.Info(l, "accepted QUIC face", "remote", r.RemoteAddr)
	l.onAccept(t)
}

// Close shuts the HTTP/3 server down.
func (l *QUICListener) Close() {
	l.server.Close()
	_ = context.Background()
}

// QUICTransport wraps one WebTransport session, sending each frame as an
// unreliable datagram (grounded on fw/face/http3-transport.go).
type QUICTransport struct {
	c      *webtransport.Session
	local  Address
	remote Address
}

func newQUICTransport(local Address, remote netip.AddrPort, c *webtransport.Session) *QUICTransport {
	return &QUICTransport{
		c:      c,
		local:  local,
		remote: Address{Family: FamilyInet, Host: remote.Addr().String(), Port: remote.Port()},
	}
}

func (t *QUICTransport) String() string {
	return fmt.Sprintf("quic-transport (remote=%s local=%s)", t.remote, t.local)
}
func (t *QUICTransport) Close() error    { return t.c.CloseWithError(0, "") }
func (t *QUICTransport) Local() Address  { return t.local }
func (t *QUICTransport) Remote() Address { return t.remote }
func (t *QUICTransport) IsLocal() bool   { return net.ParseIP(t.remote.Host).IsLoopback() }

// Write sends frame as one unreliable WebTransport datagram.
func (t *QUICTransport) Write(frame []byte) error {
	return t.c.SendDatagram(frame)
}

func (t *QUICTransport) runReceive(connID uint64, onFrame OnFrame) {
	for {
		message, err := t.c.ReceiveDatagram(t.c.Context())
		if err != nil {
			return
		}
		onFrame(connID, message)
	}
}
