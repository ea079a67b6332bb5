package control

import (
	"fmt"
	"net"
	"strconv"

	"github.com/icn-metis/metisd/internal/face"
)

// parseHostPort splits "host:port" into a face.Address for the inet
// family (spec.md §6 Listener addressing: "inet (sockaddr_in)").
func parseHostPort(s string) (face.Address, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return face.Address{}, fmt.Errorf("invalid host:port %q: %w", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return face.Address{}, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return face.Address{Family: face.FamilyInet, Host: host, Port: uint16(port)}, nil
}

// parseMAC parses a colon-separated MAC address into the 6-byte form
// spec.md §6 requires for link addressing.
func parseMAC(s string) ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("invalid MAC address %q", s)
	}
	copy(out[:], hw)
	return out, nil
}
