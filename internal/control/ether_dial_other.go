//go:build !linux

package control

import (
	"fmt"

	"github.com/icn-metis/metisd/internal/face"
)

func dialEther(ifaceName string, mac [6]byte) (face.Transport, error) {
	return nil, fmt.Errorf("raw-Ethernet faces require Linux")
}
