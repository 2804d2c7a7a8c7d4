package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Veritas/internal/protocol"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  protocol.Message
	}{
		{"request", &protocol.TaskRequest{Round: protocol.Round1, PartitionID: 2, Values: []int64{5, -3, 9}}},
		{"response honest", &protocol.TaskResponse{Round: protocol.Round2, PartitionID: 7, Value: 42, Worker: "w3", Kind: protocol.Honest}},
		{"response malicious", &protocol.TaskResponse{Round: protocol.Round1, Value: 0, Worker: "w0", Kind: protocol.Malicious}},
		{"gossip", &protocol.GossipMessage{Timestamp: 11, Originator: "c1", Scores: []int{0, 3, 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.Equal(t, byte(0), frame[1], "small payloads stay uncompressed")

			got, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestLargePayloadIsCompressed(t *testing.T) {
	values := make([]int64, 4096)
	for i := range values {
		values[i] = int64(i % 17)
	}

	msg := &protocol.TaskRequest{Round: protocol.Round2, PartitionID: 1, Values: values}

	frame, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, flagZstd, frame[1])
	assert.Less(t, len(frame), len(values)*8)

	got, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestLargeGossipRoundTrip(t *testing.T) {
	scores := make([]int, 1000)
	for i := range scores {
		scores[i] = i
	}

	msg := &protocol.GossipMessage{Timestamp: 1, Originator: "c0", Scores: scores}

	frame, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, flagZstd, frame[1])

	got, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestDecodeMalformed(t *testing.T) {
	valid, err := Encode(&protocol.TaskResponse{Round: protocol.Round1, Value: 1, Worker: "w0"})
	require.NoError(t, err)

	badKind := append([]byte(nil), valid...)
	badKind[0] = 99

	badFlags := append([]byte(nil), valid...)
	badFlags[1] = 0x80

	badWorkerKind, err := Encode(&protocol.TaskResponse{Worker: "w0", Kind: protocol.Kind(7)})
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"header only", []byte{kindTaskRequest, 0}},
		{"unknown kind", badKind},
		{"unknown flags", badFlags},
		{"bad zstd", []byte{kindGossip, flagZstd, 1, 2, 3, 4, 5}},
		{"garbage table", append([]byte{kindTaskRequest, 0}, bytes.Repeat([]byte{0xff}, 16)...)},
		{"truncated", valid[:headerSize+3]},
		{"unknown worker kind", badWorkerKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode(tt.frame)
			assert.ErrorIs(t, err, ErrMalformed)
			assert.Nil(t, msg)
		})
	}
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}
