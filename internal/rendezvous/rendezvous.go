// Package rendezvous provides a named channel-pair registry used by
// simulation mode to connect two in-process nodes without a real
// Ethernet interface.
package rendezvous

import (
	"fmt"
	"sync"

	"github.com/dalnefre/ether/types"
)

// Link is one participant's side of a rendezvous: Send/Recv mirror the opaque
// 60-byte-frame channel pair a Wire actor is built from.
type Link struct {
	Send chan<- types.Frame
	Recv <-chan types.Frame
}

// Registry hands out matched channel pairs by name: the first caller to
// name a link becomes its "A" side, the second its "B" side; a third
// call for the same name is an error.
type Registry struct {
	mu    sync.Mutex
	pairs map[string]*pendingPair
}

type pendingPair struct {
	aToB chan types.Frame
	bToA chan types.Frame
	taken int
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{pairs: make(map[string]*pendingPair)}
}

// Join returns this caller's side of the named link, creating the
// underlying channel pair on first use and buffering depth frames in
// each direction.
func (r *Registry) Join(name string, depth int) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pairs[name]
	if !ok {
		p = &pendingPair{
			aToB: make(chan types.Frame, depth),
			bToA: make(chan types.Frame, depth),
		}
		r.pairs[name] = p
	}

	switch p.taken {
	case 0:
		p.taken = 1
		return Link{Send: p.aToB, Recv: p.bToA}, nil
	case 1:
		p.taken = 2
		return Link{Send: p.bToA, Recv: p.aToB}, nil
	default:
		return Link{}, fmt.Errorf("rendezvous: link %q already has two participants", name)
	}
}
