// Command ether-cell is a minimal one-shot AIT client/server pair: it
// pairs a driven Cell (stdin in, stdout out) with an echo Cell over one
// in-process rendezvous link, for manually exercising a Hub's routing
// and credit discipline without the full CLI driver. It exists in the
// spirit of the teacher's small single-purpose command binaries.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dalnefre/ether/internal/node"
	"github.com/dalnefre/ether/internal/rendezvous"
	"github.com/dalnefre/ether/types"
)

func main() {
	linkName := flag.String("link", "smoke", "rendezvous link name shared by the driven and echo nodes")
	pollMillis := flag.Int("poll-millis", 250, "pollster cadence in milliseconds")
	flag.Parse()

	l := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	interval := time.Duration(*pollMillis) * time.Millisecond

	reg := rendezvous.New()
	factory := node.RendezvousWireFactory(reg, 8, l)
	driven := node.New([]string{*linkName}, factory, interval, nil, l.WithPrefix("driven"))
	echo := node.New([]string{*linkName}, factory, interval, nil, l.WithPrefix("echo"))
	defer driven.Halt()
	defer echo.Halt()

	go bounce(echo)

	go func() {
		for payload := range driven.Delivered() {
			fmt.Printf("< %s\n", string(payload.Data[:]))
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		var treeID uint32
		for scanner.Scan() {
			driven.Send(types.NewDataPayload(treeID, scanner.Bytes()))
			treeID++
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
}

// bounce sends every payload the echo node receives straight back out.
func bounce(n *node.Node) {
	for payload := range n.Delivered() {
		n.Send(payload)
	}
}
