package main

import (
	"time"

	"Veritas/internal/network"
	"Veritas/internal/protocol"
	"Veritas/internal/wire"
)

const (
	sendAttempts = 3
	retryDelay   = 500 * time.Millisecond
)

// route encodes outbound messages and sends each one in the background,
// so a slow dial never stalls the loop goroutine.
func (n *Node) route(out []protocol.Outbound) {
	transport := n.network
	if transport == nil {
		return
	}

	for _, o := range out {
		frame, err := wire.Encode(o.Message)
		if err != nil {
			n.log.Error("cannot encode message", "to", string(o.To), "error", err)
			continue
		}

		n.wg.Add(1)
		go n.send(transport, o.To, frame)
	}
}

// send delivers a frame, retrying a few times while the peer comes up.
func (n *Node) send(transport *network.Node, to protocol.NodeID, frame []byte) {
	defer n.wg.Done()

	var err error

	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = transport.Send(to, frame); err == nil {
			return
		}

		if attempt == sendAttempts {
			break
		}

		select {
		case <-n.ctx.Done():
			return
		case <-time.After(retryDelay):
		}
	}

	n.log.Warn("message not delivered", "to", string(to), "attempts", sendAttempts, "error", err)
}
