// Package port implements the one-to-one adapter between a Link and a
// Hub: it relays credit and data in both directions and packages Link
// status/activity reports for the Hub and Pollster.
package port

import (
	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/internal/worker"
	"github.com/dalnefre/ether/types"
)

// Port adapts one Link to a Hub. It holds no payload state itself; it
// only relays credit and data events, tracking which Hub it is
// currently registered with and which Pollster a poll reply is owed to.
type Port struct {
	worker.Worker

	log    *log.Logger
	link   proto.LinkHandle
	inbox  actor.Inbox[proto.PortEvent]
	handle proto.PortHandle

	index           int
	hub             *proto.HubHandle
	pendingPollster *proto.PollsterHandle
}

// New constructs a Port over the given Link and starts its event loop.
func New(linkHandle proto.LinkHandle, parentLog *log.Logger) *Port {
	p := &Port{
		log:  parentLog.WithPrefix("port"),
		link: linkHandle,
	}
	p.inbox = actor.NewInbox[proto.PortEvent](32)
	p.handle = actor.NewHandle(p.inbox)
	p.Go(p.run)
	return p
}

// Handle returns the capability other actors use to address this Port.
func (p *Port) Handle() proto.PortHandle { return p.handle }

func (p *Port) run() {
	for {
		select {
		case <-p.HaltCh():
			return
		case ev := <-p.inbox:
			p.dispatch(ev)
		}
	}
}

func (p *Port) dispatch(ev proto.PortEvent) {
	switch {
	case ev.Start != nil:
		p.onStart(ev.Start.Hub, ev.Start.Index)
	case ev.Stop != nil:
		p.onStop(ev.Stop.Hub)
	case ev.Status != nil:
		p.onStatus(ev.Status.Status)
	case ev.Poll != nil:
		p.onPoll(ev.Poll.Pollster)
	case ev.Activity != nil:
		p.onActivity(ev.Activity.Activity)
	case ev.LinkToPortWrite != nil:
		p.onLinkToPortWrite(ev.LinkToPortWrite.Payload)
	case ev.LinkToPortRead != nil:
		p.onLinkToPortRead()
	case ev.HubToPortWrite != nil:
		p.onHubToPortWrite(ev.HubToPortWrite.Payload)
	case ev.HubToPortRead != nil:
		p.onHubToPortRead()
	}
}

// onLinkToPortWrite forwards an inbound payload the Link accepted from
// the peer up to the registered Hub.
func (p *Port) onLinkToPortWrite(payload types.Payload) {
	if p.hub != nil {
		p.hub.Send(proto.HubEvent{PortToHubWrite: &proto.PortToHubWriteMsg{Index: p.index, Payload: payload}})
	}
}

// onStart registers the Hub and index, starts the Link, and grants it
// an initial inbound read credit.
func (p *Port) onStart(hub proto.HubHandle, index int) {
	p.hub = &hub
	p.index = index
	p.link.Send(proto.LinkEvent{Start: &proto.LinkStartMsg{Port: p.handle}})
	p.link.Send(proto.LinkEvent{Read: &proto.LinkReadMsg{Port: p.handle}})
}

func (p *Port) onStop(hub proto.HubHandle) {
	p.hub = &hub
	p.link.Send(proto.LinkEvent{Stop: &proto.LinkStopMsg{Port: p.handle}})
}

// onStatus packages a Link status report for the Hub. A non-Stop status
// comes from a freshly started Link holding no outbound payload, so the
// Port also grants the Hub its first outbound credit. Once a Stop
// status is observed, the Hub registration is cleared: this Port is
// idle until a fresh Start re-registers it.
func (p *Port) onStatus(status proto.PortStatus) {
	if p.hub != nil {
		p.hub.Send(proto.HubEvent{PortStatus: &proto.PortToHubStatusMsg{Index: p.index, Status: status}})
		if status.LinkState != proto.LinkStop {
			p.hub.Send(proto.HubEvent{PortToHubRead: &proto.PortToHubReadMsg{Index: p.index}})
		}
	}
	if status.LinkState == proto.LinkStop {
		p.hub = nil
	}
}

func (p *Port) onPoll(pollster proto.PollsterHandle) {
	p.pendingPollster = &pollster
	p.link.Send(proto.LinkEvent{Poll: &proto.LinkPollMsg{Port: p.handle}})
}

func (p *Port) onActivity(activity proto.PortActivity) {
	if p.pendingPollster == nil {
		p.log.Warn("activity report with no pending poll; dropping")
		return
	}
	p.pendingPollster.Send(proto.PollsterEvent{Activity: &proto.PollsterActivityMsg{
		Index:    p.index,
		Activity: activity,
	}})
	p.pendingPollster = nil
}

func (p *Port) onLinkToPortRead() {
	if p.hub != nil {
		p.hub.Send(proto.HubEvent{PortToHubRead: &proto.PortToHubReadMsg{Index: p.index}})
	}
}

// onHubToPortWrite hands the Hub's outbound payload down to the Link.
func (p *Port) onHubToPortWrite(payload types.Payload) {
	p.link.Send(proto.LinkEvent{Write: &proto.LinkWriteMsg{Port: p.handle, Payload: payload}})
}

func (p *Port) onHubToPortRead() {
	p.link.Send(proto.LinkEvent{Read: &proto.LinkReadMsg{Port: p.handle}})
}
