// Package hub implements the multi-port router: egress-port selection,
// the one-in-flight credit dispatcher, and the fail-over protocol that
// re-routes around a Port the Pollster has declared dead.
package hub

import (
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/metrics"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/internal/worker"
	"github.com/dalnefre/ether/types"
)

// portIn buffers one payload received from a Port, awaiting a credit to
// forward to the Cell.
type portIn struct {
	payload *types.Payload
}

// portOut tracks a Port's outbound readiness and queued control
// traffic; ctrl_queue is drained ahead of ordinary data.
type portOut struct {
	reader    bool
	ctrlQueue []types.Payload
}

// cellOut buffers the Cell's one outstanding outbound payload and the
// egress routes still to be tried.
type cellOut struct {
	payload   *types.Payload
	routeList []int
}

// failoverRecord tracks, per port index, the reconciliation state of an
// in-progress fail-over: a saved dead-port status awaiting a matching
// FAILOVER_D, or a FAILOVER_R that arrived before we locally noticed
// the partner port had died.
type failoverRecord struct {
	savedStatus *proto.FailoverInfo
	pendingR    bool
}

// Hub routes payloads between one Cell and a fixed set of Ports,
// selecting a single egress port at a time and re-routing around a
// failed one via the FAILOVER_R/FAILOVER_D handshake.
type Hub struct {
	worker.Worker

	log      *log.Logger
	ports    []proto.PortHandle
	pollster proto.PollsterHandle
	inbox    actor.Inbox[proto.HubEvent]
	handle   proto.HubHandle

	cell     proto.CellHandle
	hasCell  bool
	cellIn   bool
	cellOutQ cellOut

	portIn   []portIn
	portOut  []portOut
	lastSent []*types.Payload

	routePort int
	failover  []failoverRecord

	metrics *metrics.Metrics
}

// New constructs a Hub over the given ordered Port set and Pollster,
// defaulting the egress route to port 0. Call Handle().Send with
// RegisterCellMsg once the Cell exists. m may be nil to disable metrics.
func New(ports []proto.PortHandle, pollster proto.PollsterHandle, m *metrics.Metrics, parentLog *log.Logger) *Hub {
	n := len(ports)
	h := &Hub{
		log:       parentLog.WithPrefix("hub"),
		ports:     ports,
		pollster:  pollster,
		portIn:    make([]portIn, n),
		portOut:   make([]portOut, n),
		lastSent:  make([]*types.Payload, n),
		failover:  make([]failoverRecord, n),
		routePort: 0,
		metrics:   m,
	}
	h.inbox = actor.NewInbox[proto.HubEvent](64)
	h.handle = actor.NewHandle(h.inbox)
	h.Go(h.run)
	return h
}

// Handle returns the capability other actors use to address this Hub.
func (h *Hub) Handle() proto.HubHandle { return h.handle }

func (h *Hub) run() {
	for {
		select {
		case <-h.HaltCh():
			return
		case ev := <-h.inbox:
			h.dispatch(ev)
		}
	}
}

func (h *Hub) dispatch(ev proto.HubEvent) {
	switch {
	case ev.RegisterCell != nil:
		h.cell = ev.RegisterCell.Cell
		h.hasCell = true
		// seed the outbound direction: the Cell only ever hands off a
		// payload in reply to a HubToCellRead credit, so the Hub must
		// grant the first one itself.
		h.cell.Send(proto.CellEvent{HubToCellRead: &proto.HubToCellReadMsg{}})
	case ev.PortStatus != nil:
		h.onPortStatus(ev.PortStatus.Index, ev.PortStatus.Status)
	case ev.PortToHubWrite != nil:
		h.onPortToHubWrite(ev.PortToHubWrite.Index, ev.PortToHubWrite.Payload)
	case ev.PortToHubRead != nil:
		h.onPortToHubRead(ev.PortToHubRead.Index)
	case ev.CellToHubWrite != nil:
		h.onCellToHubWrite(ev.CellToHubWrite.Payload)
	case ev.CellToHubRead != nil:
		h.cellIn = true
	case ev.PollRound != nil:
		h.pollster.Send(proto.PollsterEvent{Poll: &proto.PollsterPollMsg{Hub: h.handle}})
	case ev.Snapshot != nil:
		h.onSnapshot(ev.Snapshot.Reply)
	}
	h.tryEveryone()
}

// onSnapshot copies the fields of Hub state safe to inspect outside its
// own goroutine and sends them to the requester. Used only by the CLI's
// debug dump-state mode, never by the protocol itself.
func (h *Hub) onSnapshot(reply chan<- proto.HubSnapshot) {
	readers := make([]bool, len(h.portOut))
	queued := make([]int, len(h.portOut))
	for i, po := range h.portOut {
		readers[i] = po.reader
		queued[i] = len(po.ctrlQueue)
	}
	reply <- proto.HubSnapshot{
		NumPorts:        h.numPorts(),
		RoutePort:       h.routePort,
		HasCell:         h.hasCell,
		CellReadPending: h.cellIn,
		PortReaders:     readers,
		PortIdleQueued:  queued,
	}
}

func (h *Hub) numPorts() int { return len(h.ports) }

func mod(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}

func encodeBalance(b int8) byte { return byte(b) }
func decodeBalance(b byte) int8 { return int8(b) }

// onPortStatus observes a Link state transition forwarded by a Port. A
// Stop transition triggers the fail-over protocol: a replacement egress
// port is chosen and a FAILOVER_R carrying the dead port's balance and
// sequence is enqueued there.
func (h *Hub) onPortStatus(n int, status proto.PortStatus) {
	if h.metrics != nil {
		h.metrics.LinkBalance.WithLabelValues(strconv.Itoa(n)).Set(float64(status.Activity.Balance))
	}
	if status.LinkState != proto.LinkStop {
		return
	}
	h.portOut[n].reader = false

	m := mod(n+1, h.numPorts())
	info := status.Activity
	h.failover[n].savedStatus = &info

	req := types.NewCtrlPayload(0, types.CtrlFields{
		Op: types.OpFailoverR,
		B:  encodeBalance(info.Balance),
		N:  info.Sequence,
	})
	h.enqueueCtrl(m, req)

	if h.failover[n].pendingR {
		reply := types.NewCtrlPayload(0, types.CtrlFields{
			Op: types.OpFailoverD,
			B:  encodeBalance(info.Balance),
			N:  info.Sequence,
		})
		h.enqueueCtrl(m, reply)
		h.failover[n].pendingR = false
		h.failover[n].savedStatus = nil
	}

	h.rewriteCellRoutes(n, m)
	h.routePort = m
}

func (h *Hub) rewriteCellRoutes(from, to int) {
	for i, r := range h.cellOutQ.routeList {
		if r == from {
			h.cellOutQ.routeList[i] = to
		}
	}
}

func (h *Hub) enqueueCtrl(port int, payload types.Payload) {
	h.portOut[port].ctrlQueue = append(h.portOut[port].ctrlQueue, payload)
}

func (h *Hub) enqueueCtrlFront(port int, payload types.Payload) {
	h.portOut[port].ctrlQueue = append([]types.Payload{payload}, h.portOut[port].ctrlQueue...)
}

// onPortToHubWrite delivers a Port's inbound payload to the dispatcher,
// recognizing the fail-over control ops out of band (the wire carries
// no dedicated ctrl bit).
func (h *Hub) onPortToHubWrite(n int, payload types.Payload) {
	switch {
	case payload.IsFailoverRequest():
		h.handleFailoverR(n, payload)
	case payload.IsFailoverDone():
		h.handleFailoverD(n, payload)
	default:
		if h.portIn[n].payload != nil {
			h.log.Errorf("duplicate inbound payload on port %d; dropping", n)
			return
		}
		p := payload
		h.portIn[n].payload = &p
	}
}

// handleFailoverR reacts to a FAILOVER_R arriving from the peer on port
// n. m identifies the partner port on our side, derived by the mirror
// of the sender's (n+1) computation; see DESIGN.md for why the two
// formulas are each other's inverse only when both peers' port indices
// line up, which the protocol's symmetric wiring guarantees.
func (h *Hub) handleFailoverR(n int, payload types.Payload) {
	m := mod(n-1, h.numPorts())
	if h.failover[m].savedStatus != nil {
		info := *h.failover[m].savedStatus
		reply := types.NewCtrlPayload(0, types.CtrlFields{
			Op: types.OpFailoverD,
			B:  encodeBalance(info.Balance),
			N:  info.Sequence,
		})
		h.enqueueCtrlFront(n, reply)
		h.failover[m].savedStatus = nil
	} else {
		h.failover[m].pendingR = true
	}
	h.ports[n].Send(proto.PortEvent{HubToPortRead: &proto.HubToPortReadMsg{Hub: h.handle, Index: n}})
}

// handleFailoverD completes the hand-off: it resends an AIT payload
// that may have been caught mid-flight when the dead port fell over,
// re-points routing at the surviving port, and restarts the dead port
// to rejoin the pool.
func (h *Hub) handleFailoverD(n int, payload types.Payload) {
	m := mod(n-1, h.numPorts())
	fields := payload.CtrlFields()
	peerBalance := decodeBalance(fields.B)

	if info := h.failover[m].savedStatus; info != nil {
		ourBalance := info.Balance
		if (ourBalance == -1 && peerBalance == 0) || (ourBalance == 0 && h.lastSent[m] != nil) {
			if h.lastSent[m] != nil {
				h.enqueueCtrlFront(n, *h.lastSent[m])
			}
		}
	}

	h.routePort = n
	h.rewriteCellRoutes(m, n)

	h.ports[m].Send(proto.PortEvent{Start: &proto.PortStartMsg{Hub: h.handle, Index: m}})
	if h.portIn[m].payload == nil {
		h.ports[m].Send(proto.PortEvent{HubToPortRead: &proto.HubToPortReadMsg{Hub: h.handle, Index: m}})
	}
	h.failover[m].savedStatus = nil

	h.ports[n].Send(proto.PortEvent{HubToPortRead: &proto.HubToPortReadMsg{Hub: h.handle, Index: n}})

	if h.metrics != nil {
		h.metrics.FailoversTotal.Inc()
	}
}

func (h *Hub) onPortToHubRead(n int) {
	h.portOut[n].reader = true
	// the previous write on n, if any, has completed: nothing is in flight.
	h.lastSent[n] = nil
}

func (h *Hub) onCellToHubWrite(payload types.Payload) {
	if h.cellOutQ.payload != nil {
		h.log.Error("duplicate cell outbound payload; dropping")
		return
	}
	p := payload
	h.cellOutQ.payload = &p
	h.cellOutQ.routeList = h.findRoutes(payload)
}

// findRoutes returns the ordered list of egress port indices to try for
// payload, most-preferred first. It currently always returns the single
// active route port; a TreeId-indexed routing table can replace this
// body without touching the dispatcher that calls it.
func (h *Hub) findRoutes(payload types.Payload) []int {
	return []int{h.routePort}
}

// tryEveryone is the dispatcher: drain control traffic first, then
// attempt to move the Cell's buffered outbound and each Port's buffered
// inbound one hop further.
func (h *Hub) tryEveryone() {
	h.drainCtrlQueues()
	h.tryDeliverCellOut()
	h.tryDeliverPortIn()
}

func (h *Hub) drainCtrlQueues() {
	for i := range h.portOut {
		if h.portOut[i].reader && len(h.portOut[i].ctrlQueue) > 0 {
			msg := h.portOut[i].ctrlQueue[0]
			h.portOut[i].ctrlQueue = h.portOut[i].ctrlQueue[1:]
			h.portOut[i].reader = false
			h.ports[i].Send(proto.PortEvent{HubToPortWrite: &proto.HubToPortWriteMsg{
				Hub: h.handle, Index: i, Payload: msg,
			}})
		}
	}
}

func (h *Hub) tryDeliverCellOut() {
	if h.cellOutQ.payload == nil {
		return
	}
	remaining := h.cellOutQ.routeList[:0]
	delivered := false
	payload := *h.cellOutQ.payload
	for _, r := range h.cellOutQ.routeList {
		if !delivered && h.portOut[r].reader && len(h.portOut[r].ctrlQueue) == 0 {
			h.ports[r].Send(proto.PortEvent{HubToPortWrite: &proto.HubToPortWriteMsg{
				Hub: h.handle, Index: r, Payload: payload,
			}})
			h.portOut[r].reader = false
			h.lastSent[r] = &payload
			delivered = true
			continue
		}
		remaining = append(remaining, r)
	}
	h.cellOutQ.routeList = remaining
	if len(h.cellOutQ.routeList) == 0 {
		h.cellOutQ.payload = nil
		if h.hasCell {
			h.cell.Send(proto.CellEvent{HubToCellRead: &proto.HubToCellReadMsg{}})
		}
	}
}

func (h *Hub) tryDeliverPortIn() {
	if !h.cellIn || !h.hasCell {
		return
	}
	for i := range h.portIn {
		if h.portIn[i].payload == nil {
			continue
		}
		h.cell.Send(proto.CellEvent{HubToCellWrite: &proto.HubToCellWriteMsg{Payload: *h.portIn[i].payload}})
		h.portIn[i].payload = nil
		h.cellIn = false
		h.ports[i].Send(proto.PortEvent{HubToPortRead: &proto.HubToPortReadMsg{Hub: h.handle, Index: i}})
		if h.metrics != nil {
			h.metrics.AITDeliveredTotal.Inc()
		}
		return
	}
}
