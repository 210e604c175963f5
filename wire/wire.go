// Package wire implements the transport shim that ships Frames to and
// from a peer: bidirectional channel plumbing plus a fault-injecting
// variant for deterministic drop tests.
package wire

import (
	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/internal/worker"
	"github.com/dalnefre/ether/types"
)

// Wire transports Frames to a peer channel and forwards received Frames
// to a Link as LinkEvent.Frame.
type Wire struct {
	worker.Worker

	log    *log.Logger
	name   string
	send   chan<- types.Frame
	recv   <-chan types.Frame
	inbox  actor.Inbox[proto.WireEvent]
	handle proto.WireHandle
}

// New constructs a Wire over the given send/receive channel pair and
// starts its event loop. name is used only for log prefixing.
func New(name string, send chan<- types.Frame, recv <-chan types.Frame, parentLog *log.Logger) *Wire {
	w := &Wire{
		log:  parentLog.WithPrefix("wire:" + name),
		name: name,
		send: send,
		recv: recv,
	}
	w.inbox = actor.NewInbox[proto.WireEvent](16)
	w.handle = actor.NewHandle(w.inbox)
	w.Go(w.run)
	return w
}

// Handle returns the capability other actors use to address this Wire.
func (w *Wire) Handle() proto.WireHandle { return w.handle }

func (w *Wire) run() {
	for {
		select {
		case <-w.HaltCh():
			return
		case ev := <-w.inbox:
			w.dispatch(ev)
		}
	}
}

func (w *Wire) dispatch(ev proto.WireEvent) {
	switch {
	case ev.Frame != nil:
		w.onFrame(*ev.Frame)
	case ev.Listen != nil:
		w.onListen(ev.Listen.Link)
	}
}

// onFrame pushes an outgoing frame to the peer. A closed send channel is
// a fatal transport error: the system has no recovery path short of the
// peer re-initiating via reset. The error is logged and the Wire halts.
func (w *Wire) onFrame(f types.Frame) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("send on closed transport: %v", r)
			w.Halt()
		}
	}()
	w.send <- f
}

// onListen starts the receive loop on its own goroutine so dispatch
// returns immediately and keeps servicing outgoing Frame sends queued on
// the same inbox. The loop forwards each received frame as a
// LinkEvent.Frame until the channel closes or Halt is called.
func (w *Wire) onListen(link proto.LinkHandle) {
	w.Go(func() { w.listenLoop(link) })
}

func (w *Wire) listenLoop(link proto.LinkHandle) {
	for {
		select {
		case <-w.HaltCh():
			return
		case f, ok := <-w.recv:
			if !ok {
				w.log.Info("transport closed")
				return
			}
			frame := f
			link.Send(proto.LinkEvent{Frame: &frame})
		}
	}
}

// FaultyWire is a Wire variant with a one-shot outgoing drop filter keyed
// on frame sequence number, for deterministic failure injection in tests.
type FaultyWire struct {
	worker.Worker

	log          *log.Logger
	send         chan<- types.Frame
	recv         <-chan types.Frame
	inbox        actor.Inbox[proto.WireEvent]
	handle       proto.WireHandle
	dropSequence uint16
	dropArmed    bool
}

// NewFaulty constructs a FaultyWire that will silently drop exactly one
// outgoing frame whose sequence number equals dropSequence, then clears
// the filter.
func NewFaulty(name string, send chan<- types.Frame, recv <-chan types.Frame, dropSequence uint16, parentLog *log.Logger) *FaultyWire {
	w := &FaultyWire{
		log:          parentLog.WithPrefix("faultywire:" + name),
		send:         send,
		recv:         recv,
		dropSequence: dropSequence,
		dropArmed:    true,
	}
	w.inbox = actor.NewInbox[proto.WireEvent](16)
	w.handle = actor.NewHandle(w.inbox)
	w.Go(w.run)
	return w
}

// Handle returns the capability other actors use to address this Wire.
func (w *FaultyWire) Handle() proto.WireHandle { return w.handle }

func (w *FaultyWire) run() {
	for {
		select {
		case <-w.HaltCh():
			return
		case ev := <-w.inbox:
			w.dispatch(ev)
		}
	}
}

func (w *FaultyWire) dispatch(ev proto.WireEvent) {
	switch {
	case ev.Frame != nil:
		w.onFrame(*ev.Frame)
	case ev.Listen != nil:
		w.onListen(ev.Listen.Link)
	}
}

func (w *FaultyWire) onFrame(f types.Frame) {
	if w.dropArmed && f.IsEntangled() && f.Sequence() == w.dropSequence {
		w.dropArmed = false
		w.log.Warnf("dropping frame with sequence %d", f.Sequence())
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("send on closed transport: %v", r)
		}
	}()
	w.send <- f
}

func (w *FaultyWire) onListen(link proto.LinkHandle) {
	w.Go(func() { w.listenLoop(link) })
}

func (w *FaultyWire) listenLoop(link proto.LinkHandle) {
	for {
		select {
		case <-w.HaltCh():
			return
		case f, ok := <-w.recv:
			if !ok {
				w.log.Info("transport closed")
				return
			}
			frame := f
			link.Send(proto.LinkEvent{Frame: &frame})
		}
	}
}
