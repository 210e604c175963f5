// Package node bundles one Hub with its Port/Link/Wire set, Pollster,
// and Cell into a single runnable unit, the way a simulated or live
// ether endpoint is assembled.
package node

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/cell"
	"github.com/dalnefre/ether/hub"
	"github.com/dalnefre/ether/internal/livewire"
	"github.com/dalnefre/ether/internal/metrics"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/internal/rendezvous"
	"github.com/dalnefre/ether/internal/worker"
	"github.com/dalnefre/ether/link"
	"github.com/dalnefre/ether/pollster"
	"github.com/dalnefre/ether/port"
	"github.com/dalnefre/ether/types"
	"github.com/dalnefre/ether/wire"
)

// WireFactory constructs the Wire actor for port index i, given its name.
// Simulation mode supplies a factory backed by an internal/rendezvous
// Link; live mode supplies one backed by internal/livewire.
type WireFactory func(index int, name string) proto.WireHandle

// Node is one ether endpoint: a Hub routing AIT between a fixed set of
// Ports and a single Cell, polled on a cadence.
type Node struct {
	worker.Worker

	log      *log.Logger
	Hub      *hub.Hub
	Pollster *pollster.Pollster
	Ports    []*port.Port
	Cell     *cell.Cell

	pollInterval time.Duration
}

// New assembles a Node from the given ordered port names, wiring each
// through wireOf to produce the underlying transport, starting every
// Link/Port/Pollster/Hub/Cell actor, and kicking off the Pollster
// cadence timer. m may be nil to disable metrics.
func New(names []string, wireOf WireFactory, pollInterval time.Duration, m *metrics.Metrics, parentLog *log.Logger) *Node {
	l := parentLog.WithPrefix("node")

	ports := make([]proto.PortHandle, len(names))
	concretePorts := make([]*port.Port, len(names))
	for i, name := range names {
		wireHandle := wireOf(i, name)
		lk := link.New(wireHandle, l)
		wireHandle.Send(proto.WireEvent{Listen: &proto.ListenMsg{Link: lk.Handle()}})
		p := port.New(lk.Handle(), l)
		concretePorts[i] = p
		ports[i] = p.Handle()
	}

	ps := pollster.New(ports, m, l)
	h := hub.New(ports, ps.Handle(), m, l)
	c := cell.New(h.Handle(), l)
	h.Handle().Send(proto.HubEvent{RegisterCell: &proto.RegisterCellMsg{Cell: c.Handle()}})

	for i, p := range concretePorts {
		p.Handle().Send(proto.PortEvent{Start: &proto.PortStartMsg{Hub: h.Handle(), Index: i}})
	}

	n := &Node{
		log:          l,
		Hub:          h,
		Pollster:     ps,
		Ports:        concretePorts,
		Cell:         c,
		pollInterval: pollInterval,
	}
	n.Go(n.runCadence)
	return n
}

// runCadence periodically asks the Hub to start a Pollster round, until
// the Node is halted.
func (n *Node) runCadence() {
	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-n.HaltCh():
			return
		case <-ticker.C:
			n.Hub.Handle().Send(proto.HubEvent{PollRound: &proto.HubPollRoundMsg{}})
		}
	}
}

// Send hands a payload to this node's Cell for outbound delivery.
func (n *Node) Send(payload types.Payload) {
	n.Cell.Send(payload)
}

// Delivered exposes the channel of payloads this node's Cell has
// accepted from its peer.
func (n *Node) Delivered() <-chan types.Payload {
	return n.Cell.Delivered()
}

// Snapshot queries the Hub for a point-in-time copy of its routing
// state, for the CLI's debug dump-state mode.
func (n *Node) Snapshot() proto.HubSnapshot {
	reply := make(chan proto.HubSnapshot, 1)
	n.Hub.Handle().Send(proto.HubEvent{Snapshot: &proto.HubSnapshotMsg{Reply: reply}})
	return <-reply
}

// Halt stops the cadence timer, the Hub, the Pollster, every Port and
// the Cell. The Link and Wire actors behind each Port are not stopped.
func (n *Node) Halt() {
	n.Worker.Halt()
	n.Hub.Halt()
	n.Pollster.Halt()
	for _, p := range n.Ports {
		p.Halt()
	}
	n.Cell.Halt()
}

// RendezvousWireFactory returns a WireFactory backed by a shared
// rendezvous.Registry, for connecting two in-process simulated Nodes by
// matching port names.
func RendezvousWireFactory(reg *rendezvous.Registry, depth int, parentLog *log.Logger) WireFactory {
	return func(index int, name string) proto.WireHandle {
		lk, err := reg.Join(name, depth)
		if err != nil {
			parentLog.Fatalf("rendezvous join %q: %v", name, err)
		}
		w := wire.New(name, lk.Send, lk.Recv, parentLog)
		return w.Handle()
	}
}

// LiveWireFactory returns a WireFactory backed by raw AF_PACKET
// interface bindings, one per port, named by interface rather than by
// rendezvous peer. ifaceOf maps a port index to its interface name.
func LiveWireFactory(ifaceOf func(index int) string, parentLog *log.Logger) WireFactory {
	return func(index int, name string) proto.WireHandle {
		h, err := livewire.Open(ifaceOf(index), parentLog)
		if err != nil {
			parentLog.Fatalf("open live interface for port %q: %v", name, err)
		}
		w := wire.New(name, h.Send, h.Recv, parentLog)
		return w.Handle()
	}
}
