//go:build linux

package face

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/icn-metis/metisd/internal/core"
	"golang.org/x/sys/unix"
)

// EtherTypeCCNx is the multicast group's assigned CCNx-over-Ethernet ethertype
// (spec.md §4.7: "link faces must reject frames below the 0x0600 boundary").
const EtherTypeCCNx uint16 = 0x0801

// EtherTransport is a raw-Ethernet face: it sends and receives CCNx frames
// directly inside Ethernet II frames on one interface, addressed by a
// destination MAC (broadcast for the shared multicast group, or a learned
// unicast peer). Grounded on the platform-syscalls shape of
// fw/face/impl/syscalls_wasm.go, implemented for Linux via AF_PACKET.
type EtherTransport struct {
	fd      int
	ifIndex int
	ifName  string
	srcMAC  [6]byte
	dstMAC  [6]byte
}

// MakeEtherTransport opens an AF_PACKET/SOCK_DGRAM socket bound to iface,
// sending/receiving frames tagged with EtherTypeCCNx addressed to dstMAC.
// The kernel adds the Ethernet II header on send and strips it on receive.
func MakeEtherTransport(ifaceName string, dstMAC [6]byte) (*EtherTransport, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("ether iface: %w", err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_DGRAM, htons(EtherTypeCCNx))
	if err != nil {
		return nil, fmt.Errorf("ether socket: %w", err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(EtherTypeCCNx),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ether bind: %w", err)
	}

	var srcMAC [6]byte
	copy(srcMAC[:], iface.HardwareAddr)

	return &EtherTransport{
		fd:      fd,
		ifIndex: iface.Index,
		ifName:  ifaceName,
		srcMAC:  srcMAC,
		dstMAC:  dstMAC,
	}, nil
}

func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.LittleEndian.Uint16(b[:])
}

func (t *EtherTransport) String() string {
	return fmt.Sprintf("ether-transport (iface=%s dst=%02x:%02x:%02x:%02x:%02x:%02x)",
		t.ifName, t.dstMAC[0], t.dstMAC[1], t.dstMAC[2], t.dstMAC[3], t.dstMAC[4], t.dstMAC[5])
}

func (t *EtherTransport) Local() Address {
	return Address{Family: FamilyLink, MAC: t.srcMAC, EtherType: EtherTypeCCNx}
}

func (t *EtherTransport) Remote() Address {
	return Address{Family: FamilyLink, MAC: t.dstMAC, EtherType: EtherTypeCCNx}
}

func (t *EtherTransport) IsLocal() bool { return false }

func (t *EtherTransport) Close() error { return unix.Close(t.fd) }

// Write wraps frame in an Ethernet II header and sends it to dstMAC.
func (t *EtherTransport) Write(frame []byte) error {
	addr := unix.SockaddrLinklayer{
		Protocol: htons(EtherTypeCCNx),
		Ifindex:  t.ifIndex,
		Halen:    6,
	}
	copy(addr.Addr[:6], t.dstMAC[:])
	return unix.Sendto(t.fd, frame, 0, &addr)
}

// runReceive reads frames off the socket, which is bound to EtherTypeCCNx
// on one interface; it does no further filtering by destination MAC.
func (t *EtherTransport) runReceive(connID uint64, onFrame OnFrame) {
	buf := make([]byte, 65535)
	for {
		n, _, err := unix.Recvfrom(t.fd, buf, 0)
		if err != nil {
			core.Log.Warn(t, "ethernet read failed, face DOWN", "err", err)
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		onFrame(connID, frame)
	}
}

// EtherListener listens for any inbound CCNx-tagged Ethernet frame on an
// interface and demultiplexes by source MAC, creating a Connection on
// first sight (spec.md §4.7).
type EtherListener struct {
	ifaceName string
	srcMAC    [6]byte
	t         *EtherTransport
	stopped   chan struct{}
}

// MakeEtherListener constructs (but does not start) a raw-Ethernet listener.
func MakeEtherListener(ifaceName string) *EtherListener {
	return &EtherListener{ifaceName: ifaceName, stopped: make(chan struct{})}
}

func (l *EtherListener) String() string {
	return fmt.Sprintf("ether-listener (%s)", l.ifaceName)
}

// Run opens the shared raw socket and dispatches inbound frames, resolving
// a per-peer Connection id via demux keyed on the frame's source MAC.
func (l *EtherListener) Run(demux func(remote Address) uint64, frame func(connID uint64, b []byte)) {
	defer close(l.stopped)

	var broadcast [6]byte
	for i := range broadcast {
		broadcast[i] = 0xff
	}
	t, err := MakeEtherTransport(l.ifaceName, broadcast)
	if err != nil {
		core.Log.Fatal(l, "unable to start ethernet listener", "err", err)
		return
	}
	l.t = t

	buf := make([]byte, 65535)
	for !core.ShouldQuit() {
		n, sa, err := unix.Recvfrom(l.t.fd, buf, 0)
		if err != nil {
			return
		}
		ll, ok := sa.(*unix.SockaddrLinklayer)
		if !ok {
			continue
		}
		var remoteMAC [6]byte
		copy(remoteMAC[:], ll.Addr[:6])
		remote := Address{Family: FamilyLink, MAC: remoteMAC, EtherType: EtherTypeCCNx}
		connID := demux(remote)
		frameBuf := make([]byte, n)
		copy(frameBuf, buf[:n])
		frame(connID, frameBuf)
	}
}

func (l *EtherListener) Close() {
	if l.t != nil {
		l.t.Close()
		<-l.stopped
	}
}
