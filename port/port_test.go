package port

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/proto"
	"github.com/dalnefre/ether/types"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

type harness struct {
	t      *testing.T
	p      *Port
	linkIn actor.Inbox[proto.LinkEvent]
	hubIn  actor.Inbox[proto.HubEvent]
	hub    proto.HubHandle
}

func newHarness(t *testing.T) *harness {
	linkIn := actor.NewInbox[proto.LinkEvent](32)
	linkHandle := actor.NewHandle(linkIn)
	p := New(linkHandle, testLogger())

	hubIn := actor.NewInbox[proto.HubEvent](32)
	hubHandle := actor.NewHandle(hubIn)

	return &harness{t: t, p: p, linkIn: linkIn, hubIn: hubIn, hub: hubHandle}
}

func (h *harness) recvLinkEvent() proto.LinkEvent {
	h.t.Helper()
	select {
	case ev := <-h.linkIn:
		return ev
	case <-time.After(time.Second):
		h.t.Fatal("timed out waiting for link event")
		return proto.LinkEvent{}
	}
}

func (h *harness) recvHubEvent() proto.HubEvent {
	h.t.Helper()
	select {
	case ev := <-h.hubIn:
		return ev
	case <-time.After(time.Second):
		h.t.Fatal("timed out waiting for hub event")
		return proto.HubEvent{}
	}
}

func TestStartRegistersHubAndGrantsReadCredit(t *testing.T) {
	h := newHarness(t)
	defer h.p.Halt()

	h.p.Handle().Send(proto.PortEvent{Start: &proto.PortStartMsg{Hub: h.hub, Index: 2}})

	startEv := h.recvLinkEvent()
	require.NotNil(t, startEv.Start)

	readEv := h.recvLinkEvent()
	require.NotNil(t, readEv.Read)
}

func TestLinkToPortWriteForwardsToHub(t *testing.T) {
	h := newHarness(t)
	defer h.p.Halt()

	h.p.Handle().Send(proto.PortEvent{Start: &proto.PortStartMsg{Hub: h.hub, Index: 1}})
	h.recvLinkEvent()
	h.recvLinkEvent()

	payload := types.NewDataPayload(5, []byte("data"))
	h.p.Handle().Send(proto.PortEvent{LinkToPortWrite: &proto.LinkToPortWriteMsg{Payload: payload}})

	ev := h.recvHubEvent()
	require.NotNil(t, ev.PortToHubWrite)
	require.Equal(t, 1, ev.PortToHubWrite.Index)
}

func TestStopStatusClearsHubRegistration(t *testing.T) {
	h := newHarness(t)
	defer h.p.Halt()

	h.p.Handle().Send(proto.PortEvent{Start: &proto.PortStartMsg{Hub: h.hub, Index: 0}})
	h.recvLinkEvent()
	h.recvLinkEvent()

	h.p.Handle().Send(proto.PortEvent{Status: &proto.PortStatusMsg{
		Status: proto.PortStatus{LinkState: proto.LinkStop},
	}})
	statusEv := h.recvHubEvent()
	require.NotNil(t, statusEv.PortStatus)
	require.Equal(t, proto.LinkStop, statusEv.PortStatus.Status.LinkState)

	// with the hub registration cleared, a further LinkToPortWrite has
	// nowhere to go and must not block or panic.
	h.p.Handle().Send(proto.PortEvent{LinkToPortWrite: &proto.LinkToPortWriteMsg{
		Payload: types.NewDataPayload(0, nil),
	}})
	select {
	case <-h.hubIn:
		t.Fatal("did not expect a hub event after Stop status cleared registration")
	case <-time.After(100 * time.Millisecond):
	}
}
