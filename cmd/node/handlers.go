package main

import (
	"fmt"
	"time"

	"Veritas/internal/coordinator"
	"Veritas/internal/protocol"
	"Veritas/internal/wire"
)

const tickInterval = 100 * time.Millisecond

// inbound is a frame received from the network, not yet decoded.
type inbound struct {
	from  protocol.NodeID
	frame []byte
}

// enqueue hands a received frame to the loop goroutine.
// It blocks when the inbox is full, which backpressures the sending stream.
func (n *Node) enqueue(from protocol.NodeID, data []byte) {
	select {
	case n.inbox <- inbound{from: from, frame: data}:
	case <-n.ctx.Done():
	}
}

// loop is the single goroutine driving the coordinator or worker.
func (n *Node) loop() {
	defer n.wg.Done()

	var start <-chan time.Time
	if n.coord != nil {
		timer := time.NewTimer(n.cfg.StartDelay)
		defer timer.Stop()
		start = timer.C
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return

		case <-start:
			start = nil
			n.startCoordinator()

		case now := <-ticker.C:
			if n.coord != nil && n.coord.State() != coordinator.Idle {
				n.route(n.coord.Tick(now))
				n.refresh()
			}

		case in := <-n.inbox:
			n.handleFrame(in)
		}
	}
}

// startCoordinator dispatches round 1. Failing to split the input is fatal.
func (n *Node) startCoordinator() {
	out, err := n.coord.Start()
	if err != nil {
		n.fail(fmt.Errorf("start coordinator:\n%w", err))
		return
	}

	n.route(out)
	n.refresh()
}

// handleFrame decodes one frame and feeds it to the hosted role.
func (n *Node) handleFrame(in inbound) {
	msg, err := wire.Decode(in.frame)
	if err != nil {
		n.log.Debug("dropping undecodable frame", "from", string(in.from), "error", err)
		return
	}

	switch {
	case n.coord != nil:
		n.route(n.coord.OnMessage(in.from, msg))
		n.refresh()

	case n.worker != nil:
		n.route(n.worker.OnMessage(in.from, msg))
	}
}
