package protocol

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// NodeID is the stable external identity of a node.
type NodeID string

// NodeIDFromKey derives a short printable identity from a public key.
// The identity is the hex encoding of the first 8 bytes of BLAKE3(key).
func NodeIDFromKey(pubkey []byte) NodeID {
	sum := blake3.Sum256(pubkey)
	return NodeID(hex.EncodeToString(sum[:8]))
}

// Round identifies one of the two protocol rounds.
type Round uint8

const (
	// Round1 selects quorums at random.
	Round1 Round = 1

	// Round2 selects quorums by reputation.
	Round2 Round = 2
)

// Kind classifies a worker's declared behavior.
type Kind uint8

const (
	// Honest workers report the true maximum.
	Honest Kind = iota

	// Malicious workers under-report by one.
	Malicious
)

// String returns the label used in trace lines.
func (k Kind) String() string {
	switch k {
	case Honest:
		return "Honest"
	case Malicious:
		return "Malicious"
	default:
		return "Unknown"
	}
}

// Message is any payload exchanged between nodes.
type Message interface {
	isMessage()
}

// TaskRequest asks a worker to compute the maximum of one partition.
type TaskRequest struct {
	Round       Round   // Round is the protocol round the request belongs to
	PartitionID int     // PartitionID identifies the partition
	Values      []int64 // Values are the partition elements, in input order
}

// TaskResponse is a worker's declared result for one partition.
type TaskResponse struct {
	Round       Round  // Round echoes the request round
	PartitionID int    // PartitionID echoes the request partition
	Value       int64  // Value is the declared maximum
	Worker      NodeID // Worker is the responder's identity
	Kind        Kind   // Kind is the responder's self-declared behavior
}

// GossipMessage carries a coordinator's reputation vector to its peers.
type GossipMessage struct {
	Timestamp  uint64 // Timestamp is the originator's logical clock
	Originator NodeID // Originator is the sending coordinator
	Scores     []int  // Scores is the reputation vector indexed by worker
}

func (*TaskRequest) isMessage()   {}
func (*TaskResponse) isMessage()  {}
func (*GossipMessage) isMessage() {}

// Outbound is a message addressed to a single node.
type Outbound struct {
	To      NodeID  // To is the recipient
	Message Message // Message is the payload
}
