package pollster

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/dalnefre/ether/internal/actor"
	"github.com/dalnefre/ether/internal/proto"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func recvPortEvent(t *testing.T, in actor.Inbox[proto.PortEvent]) proto.PortEvent {
	t.Helper()
	select {
	case ev := <-in:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for port event")
		return proto.PortEvent{}
	}
}

func TestPollRoundPollsEveryPort(t *testing.T) {
	portIn0 := actor.NewInbox[proto.PortEvent](4)
	portIn1 := actor.NewInbox[proto.PortEvent](4)
	ports := []proto.PortHandle{actor.NewHandle(portIn0), actor.NewHandle(portIn1)}

	ps := New(ports, nil, testLogger())
	defer ps.Halt()

	hubIn := actor.NewInbox[proto.HubEvent](4)
	hub := actor.NewHandle(hubIn)

	ps.Handle().Send(proto.PollsterEvent{Poll: &proto.PollsterPollMsg{Hub: hub}})

	ev0 := recvPortEvent(t, portIn0)
	require.NotNil(t, ev0.Poll)
	ev1 := recvPortEvent(t, portIn1)
	require.NotNil(t, ev1.Poll)
}

func TestDeclaresDeadPastThreshold(t *testing.T) {
	portIn := actor.NewInbox[proto.PortEvent](8)
	port := actor.NewHandle(portIn)
	ps := New([]proto.PortHandle{port}, nil, testLogger())
	defer ps.Halt()

	hubIn := actor.NewInbox[proto.HubEvent](4)
	hub := actor.NewHandle(hubIn)

	for round := 0; round <= DeadThreshold; round++ {
		ps.Handle().Send(proto.PollsterEvent{Poll: &proto.PollsterPollMsg{Hub: hub}})
		pollEv := recvPortEvent(t, portIn)
		require.NotNil(t, pollEv.Poll)
		ps.Handle().Send(proto.PollsterEvent{Activity: &proto.PollsterActivityMsg{
			Index:    0,
			Activity: proto.PortActivity{LinkState: proto.LinkRun},
		}})
	}

	stopEv := recvPortEvent(t, portIn)
	require.NotNil(t, stopEv.Stop)
}

func TestLiveActivityResetsIdleCounter(t *testing.T) {
	portIn := actor.NewInbox[proto.PortEvent](8)
	port := actor.NewHandle(portIn)
	ps := New([]proto.PortHandle{port}, nil, testLogger())
	defer ps.Halt()

	hubIn := actor.NewInbox[proto.HubEvent](4)
	hub := actor.NewHandle(hubIn)

	for round := 0; round < DeadThreshold+5; round++ {
		ps.Handle().Send(proto.PollsterEvent{Poll: &proto.PollsterPollMsg{Hub: hub}})
		recvPortEvent(t, portIn)
		ps.Handle().Send(proto.PollsterEvent{Activity: &proto.PollsterActivityMsg{
			Index:    0,
			Activity: proto.PortActivity{LinkState: proto.LinkLive},
		}})
	}

	select {
	case ev := <-portIn:
		t.Fatalf("did not expect a Stop event, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
