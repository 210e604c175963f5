// Package cell implements the application endpoint: a single-slot
// outbound queue the application fills and a single-slot inbound queue
// the Hub delivers into, each side driven by retry-on-busy credit
// events rather than blocking.
package cell

import (
	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/internal/worker"
	"github.com/dalnefre/ether/types"
)

// Cell is the application-facing endpoint of one Hub. Inbound deliveries
// and outbound sends each hold at most one payload at a time.
type Cell struct {
	worker.Worker

	log    *log.Logger
	hub    proto.HubHandle
	inbox  actor.Inbox[proto.CellEvent]
	handle proto.CellHandle

	inboundQueue  chan types.Payload
	outboundQueue chan types.Payload
}

// New constructs a Cell bound to the given Hub, starts its event loop,
// and grants the Hub an initial inbound-read credit so delivery can
// begin without a separate bootstrap call. Delivered and Send are the
// application-facing entry points.
func New(hub proto.HubHandle, parentLog *log.Logger) *Cell {
	c := &Cell{
		log:           parentLog.WithPrefix("cell"),
		hub:           hub,
		inboundQueue:  make(chan types.Payload, 1),
		outboundQueue: make(chan types.Payload, 1),
	}
	c.inbox = actor.NewInbox[proto.CellEvent](32)
	c.handle = actor.NewHandle(c.inbox)
	c.Go(c.run)
	c.hub.Send(proto.HubEvent{CellToHubRead: &proto.CellToHubReadMsg{}})
	return c
}

// Handle returns the capability the Hub uses to address this Cell.
func (c *Cell) Handle() proto.CellHandle { return c.handle }

// Delivered returns the channel on which inbound payloads arrive, in
// the order the peer sent them.
func (c *Cell) Delivered() <-chan types.Payload { return c.inboundQueue }

// Send enqueues a payload for outbound delivery. It blocks if the
// single outbound slot is already occupied, mirroring the protocol's
// one-in-flight semantics. The payload is only handed to the Hub once
// the Hub grants a HubToCellRead credit; Send never pushes unsolicited.
func (c *Cell) Send(payload types.Payload) {
	c.outboundQueue <- payload
}

func (c *Cell) run() {
	for {
		select {
		case <-c.HaltCh():
			return
		case ev := <-c.inbox:
			c.dispatch(ev)
		}
	}
}

func (c *Cell) dispatch(ev proto.CellEvent) {
	switch {
	case ev.HubToCellWrite != nil:
		c.onHubToCellWrite(ev.HubToCellWrite.Payload)
	case ev.HubToCellRead != nil:
		c.onHubToCellRead()
	}
}

// onHubToCellWrite accepts one inbound delivery if the slot is free,
// acking with a fresh read credit; otherwise it re-enqueues the event
// to retry once the application drains Delivered.
func (c *Cell) onHubToCellWrite(payload types.Payload) {
	select {
	case c.inboundQueue <- payload:
		c.hub.Send(proto.HubEvent{CellToHubRead: &proto.CellToHubReadMsg{}})
	default:
		ev := proto.CellEvent{HubToCellWrite: &proto.HubToCellWriteMsg{Payload: payload}}
		c.handle.Send(ev)
	}
}

// onHubToCellRead pops one queued outbound payload and hands it to the
// Hub; if none is queued yet, it re-enqueues the event to retry once
// the application calls Send.
func (c *Cell) onHubToCellRead() {
	select {
	case payload := <-c.outboundQueue:
		c.hub.Send(proto.HubEvent{CellToHubWrite: &proto.CellToHubWriteMsg{Payload: payload}})
	default:
		c.handle.Send(proto.CellEvent{HubToCellRead: &proto.HubToCellReadMsg{}})
	}
}
