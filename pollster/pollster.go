// Package pollster implements the periodic liveness surveyor: it polls
// every Port once per round and declares a Port dead once its idle
// count exceeds the threshold.
package pollster

import (
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/metrics"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/internal/worker"
)

// DeadThreshold is the idle-round count past which a Port is declared
// dead and sent Stop.
const DeadThreshold = 3

// Pollster surveys a fixed set of Ports for liveness. One poll round is
// in flight at a time; the cadence is driven by an external caller
// (typically the Hub on a timer).
type Pollster struct {
	worker.Worker

	log    *log.Logger
	ports  []proto.PortHandle
	inbox  actor.Inbox[proto.PollsterEvent]
	handle proto.PollsterHandle

	idleCount []int
	pending   int
	inFlight  bool
	hub       proto.HubHandle

	metrics *metrics.Metrics
}

// New constructs a Pollster over the given ordered Port set and starts
// its event loop. m may be nil to disable metrics.
func New(ports []proto.PortHandle, m *metrics.Metrics, parentLog *log.Logger) *Pollster {
	ps := &Pollster{
		log:       parentLog.WithPrefix("pollster"),
		ports:     ports,
		idleCount: make([]int, len(ports)),
		metrics:   m,
	}
	ps.inbox = actor.NewInbox[proto.PollsterEvent](32)
	ps.handle = actor.NewHandle(ps.inbox)
	ps.Go(ps.run)
	return ps
}

// Handle returns the capability other actors use to address this
// Pollster.
func (ps *Pollster) Handle() proto.PollsterHandle { return ps.handle }

func (ps *Pollster) run() {
	for {
		select {
		case <-ps.HaltCh():
			return
		case ev := <-ps.inbox:
			ps.dispatch(ev)
		}
	}
}

func (ps *Pollster) dispatch(ev proto.PollsterEvent) {
	switch {
	case ev.Poll != nil:
		ps.onPoll(ev.Poll.Hub)
	case ev.Activity != nil:
		ps.onActivity(ev.Activity.Index, ev.Activity.Activity)
	}
}

// onPoll starts a new round if none is in flight, polling every managed
// Port.
func (ps *Pollster) onPoll(hub proto.HubHandle) {
	if ps.inFlight {
		ps.log.Debug("poll requested while a round is already in flight; ignoring")
		return
	}
	ps.hub = hub
	ps.pending = len(ps.ports)
	ps.inFlight = true
	for _, port := range ps.ports {
		port.Send(proto.PortEvent{Poll: &proto.PortPollMsg{Pollster: ps.handle}})
	}
}

// onActivity records one Port's reply, updating its idle counter. Once
// every Port has reported, idle Ports past DeadThreshold are stopped
// and their counters reset.
func (ps *Pollster) onActivity(index int, act proto.PortActivity) {
	if index < 0 || index >= len(ps.idleCount) {
		ps.log.Errorf("activity report for unknown port index %d", index)
		return
	}
	if act.LinkState == proto.LinkLive {
		ps.idleCount[index] = 0
	} else {
		ps.idleCount[index]++
	}
	if ps.metrics != nil {
		ps.metrics.PortIdleRounds.WithLabelValues(strconv.Itoa(index)).Set(float64(ps.idleCount[index]))
	}
	ps.pending--
	if ps.pending > 0 {
		return
	}
	ps.inFlight = false
	for i, count := range ps.idleCount {
		if count > DeadThreshold {
			ps.ports[i].Send(proto.PortEvent{Stop: &proto.PortStopMsg{Hub: ps.hub}})
			ps.idleCount[i] = 0
		}
	}
}
