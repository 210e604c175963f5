//go:build linux

package livewire

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/dalnefre/ether/types"
)

// Open binds an AF_PACKET raw socket to iface, filtered to Ethernet
// frames carrying either AIT EtherType, and returns the Frame channel
// pair a wire.New call expects. The returned Handle's Close stops the
// capture goroutine and closes the socket.
func Open(iface string, parentLog *log.Logger) (*Handle, error) {
	l := parentLog.WithPrefix("livewire:" + iface)

	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("ether: resolve interface %q: %w", iface, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("ether: open AF_PACKET socket (need CAP_NET_RAW): %w", err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifi.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ether: bind to interface %q: %w", iface, err)
	}

	send := make(chan types.Frame, 16)
	recv := make(chan types.Frame, 16)
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go sendLoop(fd, ifi.Index, send, stopCh, l)
	go recvLoop(fd, recv, stopCh, doneCh, l)

	h := &Handle{
		Send: send,
		Recv: recv,
		stop: func() error {
			close(stopCh)
			<-doneCh
			return unix.Close(fd)
		},
	}
	return h, nil
}

func htons(v int) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return binary.LittleEndian.Uint16(b[:])
}

func sendLoop(fd, ifIndex int, send <-chan types.Frame, stopCh <-chan struct{}, l *log.Logger) {
	dest := &unix.SockaddrLinklayer{Ifindex: ifIndex}
	for {
		select {
		case <-stopCh:
			return
		case f, ok := <-send:
			if !ok {
				return
			}
			pkt := buildEthernetFrame(f)
			if err := unix.Sendto(fd, pkt, 0, dest); err != nil {
				l.Errorf("send: %v", err)
			}
		}
	}
}

// buildEthernetFrame wraps a 60-byte Frame in a broadcast-addressed
// Ethernet II header tagged with the Frame's own EtherType.
func buildEthernetFrame(f types.Frame) []byte {
	raw := f.Bytes()
	pkt := make([]byte, ethHeaderSize+types.FrameSize)
	for i := 0; i < 6; i++ {
		pkt[i] = 0xFF // broadcast destination
	}
	binary.BigEndian.PutUint16(pkt[12:14], f.EtherType())
	copy(pkt[ethHeaderSize:], raw[:])
	return pkt
}

func recvLoop(fd int, recv chan<- types.Frame, stopCh <-chan struct{}, doneCh chan<- struct{}, l *log.Logger) {
	defer close(doneCh)
	buf := make([]byte, 2048)
	for {
		select {
		case <-stopCh:
			return
		default:
		}
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			continue
		}
		if n < ethHeaderSize+types.FrameSize {
			continue
		}
		etherType := binary.BigEndian.Uint16(buf[12:14])
		if etherType != types.EtherTypeReset && etherType != types.EtherTypeEntangled {
			continue
		}
		f, err := types.DecodeFrame(buf[ethHeaderSize : ethHeaderSize+types.FrameSize])
		if err != nil {
			l.Warnf("drop malformed frame: %v", err)
			continue
		}
		select {
		case recv <- f:
		case <-stopCh:
			return
		}
	}
}
