// Package proto holds the event types exchanged between the actors of
// the ether pipeline (Wire, Link, Port, Pollster, Hub, Cell). Factoring
// them into a neutral package lets every actor package depend only on
// proto and actor, never on each other, even though the protocol graph
// itself is cyclic (Port holds a Link handle and a Hub handle; Hub holds
// Port handles; Pollster holds Port handles and a Hub handle).
package proto

import "github.com/dalnefre/ether/internal/actor"

import "github.com/dalnefre/ether/types"

// LinkState mirrors the Link's published state machine.
type LinkState int

const (
	LinkStop LinkState = iota
	LinkInit
	LinkRun
	LinkLive
)

func (s LinkState) String() string {
	switch s {
	case LinkStop:
		return "Stop"
	case LinkInit:
		return "Init"
	case LinkRun:
		return "Run"
	case LinkLive:
		return "Live"
	default:
		return "Unknown"
	}
}

// FailoverInfo is the snapshot a Link reports to its Port on Start and
// Stop, and that the Port forwards to the Hub as part of a Status event.
type FailoverInfo struct {
	Balance  int8
	Sequence uint16
}

// PortActivity is what a Link reports to its Port in reply to Poll.
type PortActivity struct {
	LinkState LinkState
	Balance   int8
	Sequence  uint16
}

// PortStatus is what a Port reports to the Hub, wrapping the Link's
// reported state plus the FailoverInfo snapshot taken at Start/Stop.
type PortStatus struct {
	LinkState LinkState
	Activity  FailoverInfo
}

// --- Wire events -----------------------------------------------------

// WireEvent is accepted by a Wire actor.
type WireEvent struct {
	Listen *ListenMsg
	Frame  *types.Frame
}

// ListenMsg asks the Wire to enter its blocking receive loop and forward
// incoming frames to the given Link as LinkEvent.Frame.
type ListenMsg struct {
	Link LinkHandle
}

// WireHandle addresses a Wire actor.
type WireHandle = actor.Handle[WireEvent]

// --- Link events -------------------------------------------------------

// LinkEvent is accepted by a Link actor.
type LinkEvent struct {
	Frame *types.Frame
	Start *LinkStartMsg
	Stop  *LinkStopMsg
	Poll  *LinkPollMsg
	Read  *LinkReadMsg
	Write *LinkWriteMsg
}

// LinkStartMsg asks the Link to begin the reset handshake; replies with
// PortEvent.Status.
type LinkStartMsg struct {
	Port PortHandle
}

// LinkStopMsg asks the Link to halt; replies with PortEvent.Status.
type LinkStopMsg struct {
	Port PortHandle
}

// LinkPollMsg asks the Link to report its current activity.
type LinkPollMsg struct {
	Port PortHandle
}

// LinkReadMsg grants the Link one inbound read credit from its Port.
type LinkReadMsg struct {
	Port PortHandle
}

// LinkWriteMsg hands the Link a payload to carry as the next outbound
// AIT.
type LinkWriteMsg struct {
	Port    PortHandle
	Payload types.Payload
}

// LinkHandle addresses a Link actor.
type LinkHandle = actor.Handle[LinkEvent]

// --- Port events -------------------------------------------------------

// PortEvent is accepted by a Port actor.
type PortEvent struct {
	Start            *PortStartMsg
	Stop             *PortStopMsg
	Status           *PortStatusMsg
	Poll             *PortPollMsg
	Activity         *PortActivityMsg
	LinkToPortWrite  *LinkToPortWriteMsg
	LinkToPortRead   *LinkToPortReadMsg
	HubToPortWrite   *HubToPortWriteMsg
	HubToPortRead    *HubToPortReadMsg
}

// PortStartMsg asks the Port to register the Hub and start its Link.
type PortStartMsg struct {
	Hub   HubHandle
	Index int
}

// PortStopMsg asks the Port to stop its Link.
type PortStopMsg struct {
	Hub HubHandle
}

// PortStatusMsg is the Link's reply to Start/Stop, observed by the Port.
type PortStatusMsg struct {
	Status PortStatus
}

// PortPollMsg is forwarded straight through to the Link, recording the
// Pollster as the reply target.
type PortPollMsg struct {
	Pollster PollsterHandle
}

// PortActivityMsg is the Link's reply to Poll, forwarded straight
// through to the Pollster.
type PortActivityMsg struct {
	Activity PortActivity
}

// LinkToPortWriteMsg delivers an inbound payload the Link accepted from
// the peer, to be forwarded up to the Hub.
type LinkToPortWriteMsg struct {
	Payload types.Payload
}

// LinkToPortReadMsg is the Link announcing it is ready to accept another
// outbound payload (one writer credit released back to the Port).
type LinkToPortReadMsg struct{}

// HubToPortWriteMsg hands the Port a payload from the Hub to carry
// outbound over the Link.
type HubToPortWriteMsg struct {
	Hub     HubHandle
	Index   int
	Payload types.Payload
}

// HubToPortReadMsg grants the Port one inbound read credit from the Hub.
type HubToPortReadMsg struct {
	Hub   HubHandle
	Index int
}

// PortHandle addresses a Port actor.
type PortHandle = actor.Handle[PortEvent]

// --- Pollster events -----------------------------------------------------

// PollsterEvent is accepted by a Pollster actor.
type PollsterEvent struct {
	Poll     *PollsterPollMsg
	Activity *PollsterActivityMsg
}

// PollsterPollMsg starts a poll round across every managed Port.
type PollsterPollMsg struct {
	Hub HubHandle
}

// PollsterActivityMsg is a Port's reply during a poll round.
type PollsterActivityMsg struct {
	Index    int
	Activity PortActivity
}

// PollsterHandle addresses a Pollster actor.
type PollsterHandle = actor.Handle[PollsterEvent]

// --- Hub events --------------------------------------------------------

// HubEvent is accepted by a Hub actor.
type HubEvent struct {
	PortToHubWrite *PortToHubWriteMsg
	PortToHubRead  *PortToHubReadMsg
	PortStatus     *PortToHubStatusMsg
	CellToHubWrite *CellToHubWriteMsg
	CellToHubRead  *CellToHubReadMsg
	PollRound      *HubPollRoundMsg
	RegisterCell   *RegisterCellMsg
	Snapshot       *HubSnapshotMsg
}

// HubSnapshotMsg requests a point-in-time copy of the Hub's routing
// state, delivered on Reply. It exists solely for the CLI's debug
// dump-state mode; it is never part of the wire protocol.
type HubSnapshotMsg struct {
	Reply chan<- HubSnapshot
}

// HubSnapshot is a read-only copy of Hub state safe to inspect or
// serialize outside the Hub's own goroutine.
type HubSnapshot struct {
	NumPorts       int
	RoutePort      int
	HasCell        bool
	CellReadPending bool
	PortReaders    []bool
	PortIdleQueued []int
}

// RegisterCellMsg binds the Hub to its Cell after construction, since
// the Cell itself must be constructed with the Hub's handle in hand
// (the two are mutually referential).
type RegisterCellMsg struct {
	Cell CellHandle
}

// PortToHubWriteMsg delivers an inbound payload from a Port up to the
// Hub for routing.
type PortToHubWriteMsg struct {
	Index   int
	Payload types.Payload
}

// PortToHubReadMsg is a Port announcing it is ready to accept another
// outbound payload (one writer credit released back to the Hub).
type PortToHubReadMsg struct {
	Index int
}

// PortToHubStatusMsg is a Port forwarding a Link Status transition.
type PortToHubStatusMsg struct {
	Index  int
	Status PortStatus
}

// CellToHubWriteMsg hands the Hub a payload the Cell wants delivered to
// a peer.
type CellToHubWriteMsg struct {
	Payload types.Payload
}

// CellToHubReadMsg grants the Hub one inbound read credit from the
// Cell.
type CellToHubReadMsg struct{}

// HubPollRoundMsg asks the Hub to kick off a Pollster poll round; sent
// by an external cadence driver (typically every 500ms).
type HubPollRoundMsg struct{}

// HubHandle addresses a Hub actor.
type HubHandle = actor.Handle[HubEvent]

// --- Cell events --------------------------------------------------------

// CellEvent is accepted by a Cell actor.
type CellEvent struct {
	HubToCellWrite *HubToCellWriteMsg
	HubToCellRead  *HubToCellReadMsg
}

// HubToCellWriteMsg delivers an inbound payload from the Hub.
type HubToCellWriteMsg struct {
	Payload types.Payload
}

// HubToCellReadMsg grants the Cell one outbound read credit from the
// Hub (the Hub is ready to accept the Cell's next outbound payload).
type HubToCellReadMsg struct{}

// CellHandle addresses a Cell actor.
type CellHandle = actor.Handle[CellEvent]
