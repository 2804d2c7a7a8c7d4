package network

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"Veritas/internal/protocol"
)

// generateTestKey generates a random ed25519 key pair for testing.
func generateTestKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	return priv
}

// startNode creates and starts a node on a random local port.
func startNode(t *testing.T, id protocol.NodeID) *Node {
	t.Helper()

	node, err := NewNode(Config{
		PrivateKey:     generateTestKey(t),
		ID:             id,
		ListenAddr:     "127.0.0.1:0",
		ReconnectDelay: 50 * time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("create node %s: %v", id, err)
	}

	if err := node.Start(); err != nil {
		t.Fatalf("start node %s: %v", id, err)
	}

	t.Cleanup(func() { node.Close() })

	return node
}

type received struct {
	from protocol.NodeID
	data []byte
}

// collect installs a message handler that forwards frames to a channel.
func collect(n *Node) chan received {
	ch := make(chan received, 64)
	n.OnMessage(func(from protocol.NodeID, data []byte) {
		ch <- received{from: from, data: data}
	})
	return ch
}

func waitFrame(t *testing.T, ch chan received) received {
	t.Helper()

	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for frame")
		return received{}
	}
}

// TestNodeStartStop tests starting and stopping a node.
func TestNodeStartStop(t *testing.T) {
	node, err := NewNode(Config{
		PrivateKey: generateTestKey(t),
		ListenAddr: "127.0.0.1:0",
	})
	if err != nil {
		t.Fatalf("create node: %v", err)
	}

	if err := node.Start(); err != nil {
		t.Fatalf("start node: %v", err)
	}

	if node.Addr() == "" {
		t.Error("started node has no address")
	}

	if err := node.Close(); err != nil {
		t.Fatalf("close node: %v", err)
	}
}

// TestDefaultIdentityFromKey verifies the key-derived identity.
func TestDefaultIdentityFromKey(t *testing.T) {
	key := generateTestKey(t)

	node, err := NewNode(Config{PrivateKey: key, ListenAddr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("create node: %v", err)
	}
	defer node.Close()

	want := protocol.NodeIDFromKey(key.Public().(ed25519.PublicKey))
	if node.ID() != want {
		t.Errorf("ID() = %s, want %s", node.ID(), want)
	}
}

// TestNewNodeValidation verifies required fields.
func TestNewNodeValidation(t *testing.T) {
	if _, err := NewNode(Config{ListenAddr: "127.0.0.1:0"}); err == nil {
		t.Error("expected error without private key")
	}

	if _, err := NewNode(Config{PrivateKey: generateTestKey(t)}); err == nil {
		t.Error("expected error without listen address")
	}
}

// TestSendByIdentity tests lazy dialing and replies over the same connection.
func TestSendByIdentity(t *testing.T) {
	coord := startNode(t, "c0")
	worker := startNode(t, "w0")

	coordInbox := collect(coord)
	workerInbox := collect(worker)

	coord.AddPeer("w0", worker.Addr())

	if err := coord.Send("w0", []byte("task")); err != nil {
		t.Fatalf("send: %v", err)
	}

	got := waitFrame(t, workerInbox)
	if got.from != "c0" || !bytes.Equal(got.data, []byte("task")) {
		t.Fatalf("worker got %q from %s", got.data, got.from)
	}

	// The worker never registered c0's address: it answers on the
	// connection c0 opened.
	if err := worker.Send("c0", []byte("answer")); err != nil {
		t.Fatalf("reply: %v", err)
	}

	got = waitFrame(t, coordInbox)
	if got.from != "w0" || !bytes.Equal(got.data, []byte("answer")) {
		t.Fatalf("coordinator got %q from %s", got.data, got.from)
	}

	if p := coord.GetPeer("w0"); p == nil || !bytes.Equal(p.PublicKey(), worker.PublicKey()) {
		t.Error("peer key mismatch")
	}
}

// TestSendUnknownPeer verifies sends to unregistered nodes fail.
func TestSendUnknownPeer(t *testing.T) {
	node := startNode(t, "c0")

	err := node.Send("w9", []byte("x"))
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("Send() error = %v, want ErrUnknownPeer", err)
	}
}

// TestSendIdentityMismatch verifies a node answering under another identity is rejected.
func TestSendIdentityMismatch(t *testing.T) {
	node := startNode(t, "c0")
	impostor := startNode(t, "w1")

	node.AddPeer("w0", impostor.Addr())

	if err := node.Send("w0", []byte("x")); err == nil {
		t.Fatal("expected identity mismatch error")
	}
}

// TestBroadcast tests sending a frame to every connected peer.
func TestBroadcast(t *testing.T) {
	coord := startNode(t, "c0")

	const numPeers = 3
	var count atomic.Int32
	var wg sync.WaitGroup

	// Warm-up frames count too
	wg.Add(2 * numPeers)

	for i := 0; i < numPeers; i++ {
		id := protocol.NodeID([]byte{'c', byte('1' + i)})
		peer := startNode(t, id)

		peer.OnMessage(func(from protocol.NodeID, data []byte) {
			count.Add(1)
			wg.Done()
		})

		coord.AddPeer(id, peer.Addr())
		if err := coord.Send(id, []byte("hello")); err != nil {
			t.Fatalf("warm up %s: %v", id, err)
		}
	}

	if err := coord.Broadcast([]byte("gossip")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d frames", count.Load(), 2*numPeers)
	}
}

// TestDuplicateFramesDropped verifies per-sender deduplication over the wire.
func TestDuplicateFramesDropped(t *testing.T) {
	a := startNode(t, "c0")
	b := startNode(t, "c1")
	dst := startNode(t, "w0")

	inbox := collect(dst)

	a.AddPeer("w0", dst.Addr())
	b.AddPeer("w0", dst.Addr())

	frame := []byte("same task")

	for i := 0; i < 3; i++ {
		if err := a.Send("w0", frame); err != nil {
			t.Fatalf("send from c0: %v", err)
		}
	}

	if err := b.Send("w0", frame); err != nil {
		t.Fatalf("send from c1: %v", err)
	}

	senders := map[protocol.NodeID]int{}
	senders[waitFrame(t, inbox).from]++
	senders[waitFrame(t, inbox).from]++

	select {
	case r := <-inbox:
		t.Fatalf("unexpected extra frame from %s", r.from)
	case <-time.After(300 * time.Millisecond):
	}

	if senders["c0"] != 1 || senders["c1"] != 1 {
		t.Errorf("deliveries per sender = %v, want one each", senders)
	}
}

// TestNodeDisconnect tests disconnect handling.
func TestNodeDisconnect(t *testing.T) {
	server := startNode(t, "w0")

	disconnected := make(chan struct{})
	var once sync.Once
	server.OnDisconnect(func(p *Peer) {
		once.Do(func() { close(disconnected) })
	})

	client, err := NewNode(Config{
		PrivateKey: generateTestKey(t),
		ID:         "c0",
		ListenAddr: "127.0.0.1:0",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	if err := client.Start(); err != nil {
		t.Fatalf("start client: %v", err)
	}

	if _, err := client.Connect(server.Addr()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	client.Close()

	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for disconnect")
	}

	time.Sleep(100 * time.Millisecond)

	if server.GetPeer("c0") != nil {
		t.Error("server still tracks closed peer")
	}
}

// TestLargeFrame tests a frame spanning many QUIC packets.
func TestLargeFrame(t *testing.T) {
	src := startNode(t, "c0")
	dst := startNode(t, "w0")

	inbox := collect(dst)
	src.AddPeer("w0", dst.Addr())

	frame := make([]byte, 1<<20)
	if _, err := rand.Read(frame); err != nil {
		t.Fatalf("random frame: %v", err)
	}

	if err := src.Send("w0", frame); err != nil {
		t.Fatalf("send: %v", err)
	}

	if got := waitFrame(t, inbox); !bytes.Equal(got.data, frame) {
		t.Error("large frame corrupted")
	}
}

// TestFrameRoundTrip tests the length-prefixed framing.
func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	for _, msg := range [][]byte{{}, []byte("a"), bytes.Repeat([]byte{7}, 4096)} {
		if err := writeFrame(&buf, msg); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	for _, want := range [][]byte{{}, []byte("a"), bytes.Repeat([]byte{7}, 4096)} {
		got, err := readFrame(&buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}

		if !bytes.Equal(got, want) {
			t.Errorf("frame = %d bytes, want %d", len(got), len(want))
		}
	}

	if _, err := readFrame(&buf); err == nil {
		t.Error("expected error on empty reader")
	}
}

// TestDedupPerSender verifies identical frames from distinct senders both pass.
func TestDedupPerSender(t *testing.T) {
	d := NewDedup(time.Minute)
	defer d.Close()

	frame := []byte("frame")

	if !d.Check("c0", frame) {
		t.Error("first frame from c0 rejected")
	}

	if d.Check("c0", frame) {
		t.Error("duplicate from c0 accepted")
	}

	if !d.Check("c1", frame) {
		t.Error("same frame from c1 rejected")
	}

	if d.Len() != 2 {
		t.Errorf("Len() = %d, want 2", d.Len())
	}
}

// TestDedupExpiry verifies entries expire after the TTL.
func TestDedupExpiry(t *testing.T) {
	now := time.Unix(1000, 0)

	// Built without the cleanup goroutine so the clock can be swapped
	d := &Dedup{
		seen: make(map[[32]byte]int64),
		ttl:  int64(time.Second),
		now:  func() time.Time { return now },
	}

	if !d.Check("c0", []byte("x")) {
		t.Fatal("first check rejected")
	}

	now = now.Add(2 * time.Second)

	if !d.Check("c0", []byte("x")) {
		t.Error("expired entry still rejected")
	}

	now = now.Add(2 * time.Second)
	d.cleanup()

	if d.Len() != 0 {
		t.Errorf("Len() after cleanup = %d, want 0", d.Len())
	}
}
