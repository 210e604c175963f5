package node

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/dalnefre/ether/internal/rendezvous"
	"github.com/dalnefre/ether/types"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// pair builds two single-port Nodes joined by one rendezvous link, the
// minimal topology for an end-to-end AIT exchange.
func pair(t *testing.T) (a, b *Node) {
	t.Helper()
	reg := rendezvous.New()
	l := testLogger()
	factory := RendezvousWireFactory(reg, 8, l)

	a = New([]string{"link0"}, factory, 20*time.Millisecond, nil, l)
	b = New([]string{"link0"}, factory, 20*time.Millisecond, nil, l)
	return a, b
}

func recvPayload(t *testing.T, ch <-chan types.Payload, d time.Duration) types.Payload {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(d):
		t.Fatal("timed out waiting for delivered payload")
		return types.Payload{}
	}
}

func TestThreePayloadExchange(t *testing.T) {
	a, b := pair(t)
	defer a.Halt()
	defer b.Halt()

	for i, msg := range []string{"one", "two", "three"} {
		a.Send(types.NewDataPayload(uint32(i), []byte(msg)))
		got := recvPayload(t, b.Delivered(), 2*time.Second)
		require.Equal(t, byte(msg[0]), got.Data[0])
	}
}

func TestBidirectionalExchange(t *testing.T) {
	a, b := pair(t)
	defer a.Halt()
	defer b.Halt()

	a.Send(types.NewDataPayload(1, []byte("to-b")))
	b.Send(types.NewDataPayload(2, []byte("to-a")))

	gotB := recvPayload(t, b.Delivered(), 2*time.Second)
	gotA := recvPayload(t, a.Delivered(), 2*time.Second)
	require.Equal(t, byte('t'), gotB.Data[0])
	require.Equal(t, byte('t'), gotA.Data[0])
}
