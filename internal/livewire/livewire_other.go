//go:build !linux

package livewire

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"
)

// Open is unsupported outside Linux: AF_PACKET raw sockets are a
// Linux-specific facility. Callers should route unsupported platforms
// to simulation mode instead.
func Open(iface string, parentLog *log.Logger) (*Handle, error) {
	return nil, fmt.Errorf("ether: live interface capture is not supported on %s", runtime.GOOS)
}
