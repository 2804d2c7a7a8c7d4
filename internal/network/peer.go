package network

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"Veritas/internal/protocol"
)

const sendTimeout = 10 * time.Second

// Peer is a connection to a remote node.
type Peer struct {
	id        protocol.NodeID   // id is the identity from the remote certificate
	publicKey ed25519.PublicKey // publicKey is the remote ed25519 key
	address   string            // address is the remote address
	conn      *quic.Conn
	node      *Node
	closed    atomic.Bool
	mu        sync.Mutex // mu serializes stream opens so frames leave in order
}

// ID returns the remote node identity.
func (p *Peer) ID() protocol.NodeID {
	return p.id
}

// PublicKey returns the remote node's ed25519 public key.
func (p *Peer) PublicKey() ed25519.PublicKey {
	return p.publicKey
}

// Address returns the remote address.
func (p *Peer) Address() string {
	return p.address
}

// Send writes one frame on a new unidirectional stream.
func (p *Peer) Send(data []byte) error {
	if p.closed.Load() {
		return fmt.Errorf("peer %s is closed", p.id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	stream, err := p.conn.OpenUniStreamSync(ctx)
	if err != nil {
		return fmt.Errorf("open stream:\n%w", err)
	}

	if err := writeFrame(stream, data); err != nil {
		stream.Close()
		return err
	}

	return stream.Close()
}

// Close closes the connection.
func (p *Peer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	return p.conn.CloseWithError(0, "closed")
}

// receiveLoop accepts unidirectional streams until the connection ends.
func (p *Peer) receiveLoop() {
	for {
		stream, err := p.conn.AcceptUniStream(p.node.ctx)
		if err != nil {
			p.node.log.Debug("receive loop ended", "peer", string(p.id), "error", err)
			break
		}

		go p.handleStream(stream)
	}

	p.handleDisconnect()
}

func (p *Peer) handleStream(stream *quic.ReceiveStream) {
	data, err := readFrame(stream)
	if err != nil {
		p.node.log.Debug("stream read error", "peer", string(p.id), "error", err)
		return
	}

	if !p.node.dedup.Check(p.id, data) {
		p.node.log.Debug("duplicate frame dropped", "peer", string(p.id), "bytes", len(data))
		return
	}

	p.node.callOnMessage(p.id, data)
}

func (p *Peer) handleDisconnect() {
	if !p.closed.Swap(true) {
		p.conn.CloseWithError(0, "receive loop ended")
	}

	p.node.handlePeerDisconnect(p)
}
