// Package link implements the per-link AIT protocol engine: the reset
// handshake, the TICK/TECK/TACK/RTECK liveness cycle, and the signed
// balance accounting that guarantees exactly-once delivery across one
// physical link.
package link

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/internal/worker"
	"github.com/dalnefre/ether/types"
)

// ErrBalanceInvariant is raised when a TACK arrives with balance != -1.
// It is a fatal protocol error: it indicates either a peer bug or local
// state corruption.
type ErrBalanceInvariant struct {
	Balance int8
}

func (e ErrBalanceInvariant) Error() string {
	return fmt.Sprintf("ether: TACK received with balance=%d, want -1", e.Balance)
}

// ErrBadIState is raised when an entangled frame carries an i-state
// byte outside {TICK, TECK, TACK, RTECK}. It is a fatal protocol error:
// it indicates either a peer bug or local state corruption, and the
// link cannot safely continue the AIT cycle.
type ErrBadIState struct {
	IState byte
}

func (e ErrBadIState) Error() string {
	return fmt.Sprintf("ether: unrecognized i-state %#x", e.IState)
}

// Link is the AIT protocol engine for one physical connection. It is
// driven entirely by events on its inbox; all mutation happens on the
// single goroutine started by New.
type Link struct {
	worker.Worker

	log    *log.Logger
	wire   proto.WireHandle
	inbox  actor.Inbox[proto.LinkEvent]
	handle proto.LinkHandle

	state    proto.LinkState
	nonce    uint32
	sequence uint16
	balance  int8
	inbound  *types.Payload
	outbound *types.Payload
	reader   *proto.PortHandle
	writer   *proto.PortHandle
}

// New constructs a Link bound to the given Wire and starts its event
// loop in state Stop.
func New(wireHandle proto.WireHandle, parentLog *log.Logger) *Link {
	l := &Link{
		log:   parentLog.WithPrefix("link"),
		wire:  wireHandle,
		state: proto.LinkStop,
	}
	l.inbox = actor.NewInbox[proto.LinkEvent](32)
	l.handle = actor.NewHandle(l.inbox)
	l.Go(l.run)
	return l
}

// Handle returns the capability other actors use to address this Link.
func (l *Link) Handle() proto.LinkHandle { return l.handle }

func (l *Link) run() {
	for {
		select {
		case <-l.HaltCh():
			return
		case ev := <-l.inbox:
			l.dispatch(ev)
		}
	}
}

func (l *Link) dispatch(ev proto.LinkEvent) {
	switch {
	case ev.Frame != nil:
		l.onFrame(*ev.Frame)
	case ev.Start != nil:
		l.onStart(ev.Start.Port)
	case ev.Stop != nil:
		l.onStop(ev.Stop.Port)
	case ev.Poll != nil:
		l.onPoll(ev.Poll.Port)
	case ev.Read != nil:
		l.onRead(ev.Read.Port)
	case ev.Write != nil:
		l.onWrite(ev.Write.Port, ev.Write.Payload)
	}
}

func randomNonzeroNonce() uint32 {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(err)
		}
		n := binary.BigEndian.Uint32(b[:])
		if n != 0 {
			return n
		}
	}
}

func (l *Link) statusInfo() proto.FailoverInfo {
	return proto.FailoverInfo{Balance: l.balance, Sequence: l.sequence}
}

func (l *Link) sendFrame(f types.Frame) {
	l.wire.Send(proto.WireEvent{Frame: &f})
}

// onStart resets local state and begins the reset handshake.
func (l *Link) onStart(port proto.PortHandle) {
	l.nonce = randomNonzeroNonce()
	l.sequence = 0
	l.balance = 0
	l.inbound = nil
	l.outbound = nil
	l.state = proto.LinkInit

	l.sendFrame(types.NewReset(l.nonce))
	port.Send(proto.PortEvent{Status: &proto.PortStatusMsg{
		Status: proto.PortStatus{LinkState: l.state, Activity: l.statusInfo()},
	}})
}

// onStop halts the link, delivering any surplus held-inbound payload
// first so a live +1 balance is honored, then clears credits.
func (l *Link) onStop(port proto.PortHandle) {
	if l.balance == 1 && l.inbound != nil && l.reader != nil {
		l.reader.Send(proto.PortEvent{LinkToPortWrite: &proto.LinkToPortWriteMsg{Payload: *l.inbound}})
	}
	l.state = proto.LinkStop
	port.Send(proto.PortEvent{Status: &proto.PortStatusMsg{
		Status: proto.PortStatus{LinkState: l.state, Activity: l.statusInfo()},
	}})
	l.inbound = nil
	l.outbound = nil
	l.balance = 0
	l.reader = nil
	l.writer = nil
}

// onPoll reports current activity and demotes Live to Run so that a
// subsequent idle poll round is distinguishable from a live one.
func (l *Link) onPoll(port proto.PortHandle) {
	port.Send(proto.PortEvent{Activity: &proto.PortActivityMsg{
		Activity: proto.PortActivity{LinkState: l.state, Balance: l.balance, Sequence: l.sequence},
	}})
	if l.state == proto.LinkLive {
		l.state = proto.LinkRun
	}
}

// onRead records a fresh inbound-delivery credit from the Port, and
// opportunistically drains any inbound payload already held (the
// restart-race tolerance documented for this boundary).
func (l *Link) onRead(port proto.PortHandle) {
	l.reader = &port
	l.tryReleaseInbound()
}

func (l *Link) tryReleaseInbound() {
	if l.balance == 1 && l.inbound != nil && l.reader != nil {
		l.reader.Send(proto.PortEvent{LinkToPortWrite: &proto.LinkToPortWriteMsg{Payload: *l.inbound}})
		l.inbound = nil
		l.balance = 0
		l.reader = nil
	}
}

// onWrite accepts the next outbound payload from the Port. At most one
// outbound payload may be buffered; a second Write before the first
// completes is a credit-discipline violation.
func (l *Link) onWrite(port proto.PortHandle, payload types.Payload) {
	if l.outbound != nil {
		l.log.Error("duplicate outbound write credit; dropping")
		return
	}
	p := payload
	l.outbound = &p
	l.writer = &port
}

func (l *Link) onFrame(f types.Frame) {
	if l.state == proto.LinkStop {
		return
	}
	if f.IsReset() {
		l.onReset(f)
		return
	}
	l.onEntangled(f)
}

// onReset runs the nonce-comparison reset handshake: the peer with the
// smaller nonce waits, the larger sends the first entangled frame, and
// equal nonces force a re-key and resend.
func (l *Link) onReset(f types.Frame) {
	l.sequence = 0
	l.state = proto.LinkInit

	peerNonce := f.NonceOrSource()
	switch {
	case l.nonce < peerNonce:
		// peer has the larger nonce; it will send the first entangled frame.
	case l.nonce > peerNonce:
		l.sendFrame(types.NewEntangled(f.Sequence()+1, types.StateTICK, 0))
	default:
		l.nonce = randomNonzeroNonce()
		l.sendFrame(types.NewReset(l.nonce))
	}
}

// onEntangled advances the AIT cycle for one received steady-state
// frame, replying with exactly one frame per the current I-state.
func (l *Link) onEntangled(f types.Frame) {
	peerSeq := f.Sequence()
	replySeq := peerSeq + 1
	l.sequence = peerSeq
	l.state = proto.LinkLive

	switch f.ProtocolState() {
	case types.StateTICK:
		l.onTick(replySeq)
	case types.StateTECK:
		l.onTeck(f, replySeq)
	case types.StateTACK:
		l.onTack(replySeq)
	case types.StateRTECK:
		l.onRteck(replySeq)
	default:
		panic(ErrBadIState{IState: f.ProtocolState()})
	}
}

func (l *Link) onTick(replySeq uint16) {
	l.tryReleaseInbound()

	if l.outbound != nil {
		reply := l.outbound.ToFrame(replySeq, types.StateTECK, 0)
		l.balance = -1
		l.sendFrame(reply)
		return
	}
	l.sendFrame(types.NewEntangled(replySeq, types.StateTICK, 0))
}

func (l *Link) onTeck(f types.Frame, replySeq uint16) {
	payload := types.PayloadFromFrame(f, false)
	if l.reader != nil {
		l.inbound = &payload
		l.balance = 1
		l.sendFrame(types.NewEntangled(replySeq, types.StateTACK, 0))
		return
	}
	reply := payload.ToFrame(replySeq, types.StateRTECK, 0)
	l.sendFrame(reply)
}

func (l *Link) onTack(replySeq uint16) {
	if l.balance != -1 {
		panic(ErrBalanceInvariant{Balance: l.balance})
	}
	if l.writer != nil {
		l.writer.Send(proto.PortEvent{LinkToPortRead: &proto.LinkToPortReadMsg{}})
	}
	l.outbound = nil
	l.writer = nil
	l.balance = 0
	l.sendFrame(types.NewEntangled(replySeq, types.StateTICK, 0))
}

func (l *Link) onRteck(replySeq uint16) {
	l.balance = 0
	l.sendFrame(types.NewEntangled(replySeq, types.StateTICK, 0))
}

// State exposes the current link state, for tests and Status snapshots
// constructed outside the event loop.
func (l *Link) State() proto.LinkState { return l.state }
