//go:build linux

package control

import "github.com/icn-metis/metisd/internal/face"

func dialEther(ifaceName string, mac [6]byte) (face.Transport, error) {
	return face.MakeEtherTransport(ifaceName, mac)
}
