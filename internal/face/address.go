package face

import "fmt"

// Family tags the kind of address a Connection's endpoints use (spec.md
// §3: "addressing pair (local, remote) where each address is tagged").
type Family int

const (
	FamilyInet Family = iota
	FamilyInet6
	FamilyLink
	FamilyLocal
	FamilyUnix
)

func (f Family) String() string {
	switch f {
	case FamilyInet:
		return "inet"
	case FamilyInet6:
		return "inet6"
	case FamilyLink:
		return "link"
	case FamilyLocal:
		return "local"
	case FamilyUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// Address is a tagged endpoint: sockaddr_in/sockaddr_in6 for inet/inet6,
// a 6-byte MAC + ethertype for link, a filesystem path for local/unix.
type Address struct {
	Family Family
	Host   string // dotted IP, hex MAC, or filesystem path
	Port   uint16 // inet/inet6 only
	MAC    [6]byte
	EtherType uint16 // link only; must be >= 0x0600 (spec.md §6)
}

func (a Address) String() string {
	switch a.Family {
	case FamilyInet, FamilyInet6:
		return fmt.Sprintf("%s://%s:%d", a.Family, a.Host, a.Port)
	case FamilyLink:
		return fmt.Sprintf("link://%02x:%02x:%02x:%02x:%02x:%02x/0x%04x",
			a.MAC[0], a.MAC[1], a.MAC[2], a.MAC[3], a.MAC[4], a.MAC[5], a.EtherType)
	default:
		return fmt.Sprintf("%s://%s", a.Family, a.Host)
	}
}
