package network

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"Veritas/internal/protocol"
)

const (
	defaultReconnectDelay = 5 * time.Second
	maxReconnectDelay     = 60 * time.Second
	dialTimeout           = 10 * time.Second

	alpnProtocol = "veritas/1"
)

// ErrUnknownPeer is returned when sending to a node that is neither connected
// nor registered with AddPeer.
var ErrUnknownPeer = errors.New("unknown peer")

// Config holds the configuration for a Node.
type Config struct {
	PrivateKey     ed25519.PrivateKey // PrivateKey is the node's ed25519 private key
	ID             protocol.NodeID    // ID is announced to peers (derived from the key if empty)
	ListenAddr     string             // ListenAddr is the address to listen on (e.g., ":9000")
	ReconnectDelay time.Duration      // ReconnectDelay is the initial delay between reconnection attempts
	DedupTTL       time.Duration      // DedupTTL is how long a delivered frame is remembered
	Logger         *slog.Logger       // Logger receives transport events (slog.Default if nil)
}

// Node is a QUIC endpoint exchanging length-prefixed frames with peers
// identified by protocol.NodeID.
type Node struct {
	id         protocol.NodeID
	publicKey  ed25519.PublicKey
	listenAddr string
	tlsConfig  *tls.Config
	quicConfig *quic.Config
	log        *slog.Logger

	listener *quic.Listener

	peers   map[protocol.NodeID]*Peer // peers are the live connections
	peersMu sync.RWMutex

	knownAddrs   map[protocol.NodeID]string // knownAddrs are dialable addresses
	knownAddrsMu sync.RWMutex

	dialMu sync.Mutex // dialMu serializes lazy dials

	reconnectDelay time.Duration
	dedup          *Dedup

	onConnect    func(*Peer)
	onMessage    func(protocol.NodeID, []byte)
	onDisconnect func(*Peer)
	handlersMu   sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNode creates a new network node.
func NewNode(cfg Config) (*Node, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	pub := cfg.PrivateKey.Public().(ed25519.PublicKey)

	id := cfg.ID
	if id == "" {
		id = protocol.NodeIDFromKey(pub)
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay == 0 {
		reconnectDelay = defaultReconnectDelay
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	cert, err := generateCertificate(cfg.PrivateKey, id)
	if err != nil {
		return nil, fmt.Errorf("generate certificate:\n%w", err)
	}

	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{cert},
		ClientAuth:         tls.RequireAnyClientCert,
		InsecureSkipVerify: true, // identities are taken from the certificate, not verified
		NextProtos:         []string{alpnProtocol},
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		id:             id,
		publicKey:      pub,
		listenAddr:     cfg.ListenAddr,
		tlsConfig:      tlsConfig,
		quicConfig:     quicConfig,
		log:            log,
		peers:          make(map[protocol.NodeID]*Peer),
		knownAddrs:     make(map[protocol.NodeID]string),
		reconnectDelay: reconnectDelay,
		dedup:          NewDedup(cfg.DedupTTL),
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// ID returns the identity announced to peers.
func (n *Node) ID() protocol.NodeID {
	return n.id
}

// PublicKey returns the node's public key.
func (n *Node) PublicKey() ed25519.PublicKey {
	return n.publicKey
}

// Addr returns the listener's address, or "" before Start.
func (n *Node) Addr() string {
	if n.listener == nil {
		return ""
	}

	return n.listener.Addr().String()
}

// Start begins accepting connections.
func (n *Node) Start() error {
	listener, err := quic.ListenAddr(n.listenAddr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return fmt.Errorf("listen:\n%w", err)
	}

	n.listener = listener

	n.wg.Add(1)
	go n.acceptLoop()

	n.log.Info("listening", "addr", n.Addr(), "id", string(n.id))

	return nil
}

// AddPeer registers the address of a node so Send can dial it on demand
// and reconnect after failures.
func (n *Node) AddPeer(id protocol.NodeID, addr string) {
	n.knownAddrsMu.Lock()
	n.knownAddrs[id] = addr
	n.knownAddrsMu.Unlock()
}

// Connect dials addr and registers the resulting peer.
func (n *Node) Connect(addr string) (*Peer, error) {
	ctx, cancel := context.WithTimeout(n.ctx, dialTimeout)
	defer cancel()

	conn, err := quic.DialAddr(ctx, addr, n.tlsConfig, n.quicConfig)
	if err != nil {
		return nil, fmt.Errorf("dial %s:\n%w", addr, err)
	}

	peer, err := n.setupPeer(conn, addr)
	if err != nil {
		conn.CloseWithError(1, "setup failed")
		return nil, err
	}

	return peer, nil
}

// Send delivers one frame to the node with the given identity, dialing its
// registered address if no connection is open.
func (n *Node) Send(to protocol.NodeID, data []byte) error {
	peer, err := n.peerFor(to)
	if err != nil {
		return err
	}

	return peer.Send(data)
}

// Broadcast sends a frame to every connected peer.
func (n *Node) Broadcast(data []byte) error {
	var errs []error

	for _, p := range n.Peers() {
		if err := p.Send(data); err != nil {
			errs = append(errs, fmt.Errorf("send to %s:\n%w", p.ID(), err))
		}
	}

	return errors.Join(errs...)
}

// Peers returns the connected peers.
func (n *Node) Peers() []*Peer {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()

	peers := make([]*Peer, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}

	return peers
}

// GetPeer returns the connected peer with the given identity, or nil.
func (n *Node) GetPeer(id protocol.NodeID) *Peer {
	n.peersMu.RLock()
	defer n.peersMu.RUnlock()

	return n.peers[id]
}

// OnConnect sets the handler called when a peer connects.
func (n *Node) OnConnect(fn func(*Peer)) {
	n.handlersMu.Lock()
	n.onConnect = fn
	n.handlersMu.Unlock()
}

// OnMessage sets the handler called for every new frame. It may be called
// from several goroutines at once.
func (n *Node) OnMessage(fn func(from protocol.NodeID, data []byte)) {
	n.handlersMu.Lock()
	n.onMessage = fn
	n.handlersMu.Unlock()
}

// OnDisconnect sets the handler called when a peer disconnects.
func (n *Node) OnDisconnect(fn func(*Peer)) {
	n.handlersMu.Lock()
	n.onDisconnect = fn
	n.handlersMu.Unlock()
}

// Close stops the node and closes all connections.
func (n *Node) Close() error {
	n.cancel()

	if n.listener != nil {
		n.listener.Close()
	}

	n.peersMu.Lock()
	peers := n.peers
	n.peers = make(map[protocol.NodeID]*Peer)
	n.peersMu.Unlock()

	for _, p := range peers {
		p.Close()
	}

	n.wg.Wait()
	n.dedup.Close()

	return nil
}

func (n *Node) peerFor(to protocol.NodeID) (*Peer, error) {
	if p := n.GetPeer(to); p != nil {
		return p, nil
	}

	n.knownAddrsMu.RLock()
	addr, ok := n.knownAddrs[to]
	n.knownAddrsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPeer, to)
	}

	n.dialMu.Lock()
	defer n.dialMu.Unlock()

	// Another sender may have dialed while we waited
	if p := n.GetPeer(to); p != nil {
		return p, nil
	}

	p, err := n.Connect(addr)
	if err != nil {
		return nil, err
	}

	if p.ID() != to {
		p.Close()
		return nil, fmt.Errorf("node at %s identifies as %s, expected %s", addr, p.ID(), to)
	}

	n.callOnConnect(p)

	return p, nil
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		conn, err := n.listener.Accept(n.ctx)
		if err != nil {
			return // listener closed
		}

		go n.handleIncoming(conn)
	}
}

func (n *Node) handleIncoming(conn *quic.Conn) {
	peer, err := n.setupPeer(conn, conn.RemoteAddr().String())
	if err != nil {
		n.log.Debug("rejecting connection", "remote", conn.RemoteAddr().String(), "error", err)
		conn.CloseWithError(1, "setup failed")
		return
	}

	n.callOnConnect(peer)
}

// setupPeer registers a connection under the identity in its certificate.
func (n *Node) setupPeer(conn *quic.Conn, addr string) (*Peer, error) {
	pubKey, id, err := peerIdentity(conn.ConnectionState().TLS)
	if err != nil {
		return nil, fmt.Errorf("peer identity:\n%w", err)
	}

	peer := &Peer{
		id:        id,
		publicKey: pubKey,
		address:   addr,
		conn:      conn,
		node:      n,
	}

	n.peersMu.Lock()
	n.peers[id] = peer
	n.peersMu.Unlock()

	n.log.Debug("peer connected", "peer", string(id), "addr", addr)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		peer.receiveLoop()
	}()

	return peer, nil
}

// handlePeerDisconnect forgets p and schedules a reconnection if its
// address is known.
func (n *Node) handlePeerDisconnect(p *Peer) {
	n.peersMu.Lock()
	if n.peers[p.id] == p {
		delete(n.peers, p.id)
	}
	n.peersMu.Unlock()

	n.callOnDisconnect(p)

	if n.ctx.Err() != nil {
		return
	}

	n.knownAddrsMu.RLock()
	_, known := n.knownAddrs[p.id]
	n.knownAddrsMu.RUnlock()

	if !known {
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.reconnectPeer(p.id)
	}()
}

// reconnectPeer redials with exponential backoff until connected or closed.
func (n *Node) reconnectPeer(id protocol.NodeID) {
	delay := n.reconnectDelay

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(delay):
		}

		if n.GetPeer(id) != nil {
			return
		}

		if _, err := n.peerFor(id); err == nil {
			n.log.Info("peer reconnected", "peer", string(id))
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (n *Node) callOnConnect(p *Peer) {
	n.handlersMu.RLock()
	fn := n.onConnect
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(p)
	}
}

func (n *Node) callOnMessage(from protocol.NodeID, data []byte) {
	n.handlersMu.RLock()
	fn := n.onMessage
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(from, data)
	}
}

func (n *Node) callOnDisconnect(p *Peer) {
	n.handlersMu.RLock()
	fn := n.onDisconnect
	n.handlersMu.RUnlock()

	if fn != nil {
		fn(p)
	}
}
