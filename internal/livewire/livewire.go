// Package livewire implements the "live" transport collaborator: it
// bridges a pair of Frame channels (the shape wire.New expects) to a
// raw Ethernet interface, framing each 60-byte Frame inside a real
// Ethernet II header addressed to the broadcast MAC and tagged with
// the Frame's own EtherType (0x88B5/0x88B6).
//
// This package sits outside the core per the purpose/scope boundary:
// the core module depends only on the channel-pair shape wire.New
// accepts, never on raw sockets directly.
package livewire

import "github.com/dalnefre/ether/types"

// ethHeaderSize is the length of the Ethernet II header livewire
// prepends on send and strips on receive: 6-byte dest MAC, 6-byte src
// MAC, 2-byte EtherType.
const ethHeaderSize = 14

// Handle owns the raw socket (or, on unsupported platforms, nothing)
// backing one live interface binding. Close releases the socket and
// stops the capture goroutine.
type Handle struct {
	Send chan<- types.Frame
	Recv <-chan types.Frame
	stop func() error
}

// Close stops capture and releases the underlying transport.
func (h *Handle) Close() error {
	if h.stop == nil {
		return nil
	}
	return h.stop()
}
