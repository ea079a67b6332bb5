//go:build !linux

package control

import "fmt"

// addEtherListener reports ExecutionError on platforms without the
// AF_PACKET raw-Ethernet transport (internal/face/ether.go is Linux-only).
func (m *Manager) addEtherListener(sym, ifaceName string) Result {
	return execErr(fmt.Sprintf("ether listener %q: raw-Ethernet faces require Linux", sym))
}
