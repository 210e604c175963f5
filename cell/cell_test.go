package cell

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

func recvHubEvent(t *testing.T, in actor.Inbox[proto.HubEvent]) proto.HubEvent {
	t.Helper()
	select {
	case ev := <-in:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for hub event")
		return proto.HubEvent{}
	}
}

func TestNewGrantsInitialInboundCredit(t *testing.T) {
	hubIn := actor.NewInbox[proto.HubEvent](4)
	hub := actor.NewHandle(hubIn)
	c := New(hub, testLogger())
	defer c.Halt()

	ev := recvHubEvent(t, hubIn)
	require.NotNil(t, ev.CellToHubRead)
}

func TestSendOnlyForwardsOnCreditGrant(t *testing.T) {
	hubIn := actor.NewInbox[proto.HubEvent](4)
	hub := actor.NewHandle(hubIn)
	c := New(hub, testLogger())
	defer c.Halt()
	recvHubEvent(t, hubIn) // initial inbound credit

	payload := types.NewDataPayload(1, []byte("out"))
	c.Send(payload)

	select {
	case ev := <-hubIn:
		t.Fatalf("did not expect unsolicited write, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	c.Handle().Send(proto.CellEvent{HubToCellRead: &proto.HubToCellReadMsg{}})
	ev := recvHubEvent(t, hubIn)
	require.NotNil(t, ev.CellToHubWrite)
	require.Equal(t, byte('o'), ev.CellToHubWrite.Payload.Data[0])
}

func TestHubToCellReadRetriesWhenEmpty(t *testing.T) {
	hubIn := actor.NewInbox[proto.HubEvent](4)
	hub := actor.NewHandle(hubIn)
	c := New(hub, testLogger())
	defer c.Halt()
	recvHubEvent(t, hubIn)

	c.Handle().Send(proto.CellEvent{HubToCellRead: &proto.HubToCellReadMsg{}})

	select {
	case ev := <-hubIn:
		t.Fatalf("did not expect a write with nothing queued, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	payload := types.NewDataPayload(2, []byte("later"))
	c.Send(payload)

	ev := recvHubEvent(t, hubIn)
	require.NotNil(t, ev.CellToHubWrite)
}

func TestHubToCellWriteDeliversAndAcks(t *testing.T) {
	hubIn := actor.NewInbox[proto.HubEvent](4)
	hub := actor.NewHandle(hubIn)
	c := New(hub, testLogger())
	defer c.Halt()
	recvHubEvent(t, hubIn)

	payload := types.NewDataPayload(3, []byte("in"))
	c.Handle().Send(proto.CellEvent{HubToCellWrite: &proto.HubToCellWriteMsg{Payload: payload}})

	select {
	case got := <-c.Delivered():
		require.Equal(t, byte('i'), got.Data[0])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	ev := recvHubEvent(t, hubIn)
	require.NotNil(t, ev.CellToHubRead)
}
