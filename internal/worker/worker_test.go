package worker

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Veritas/internal/protocol"
)

func TestHonestWorkerAnswersSender(t *testing.T) {
	w := New("w0", false, nil)

	out := w.OnMessage("c0", &protocol.TaskRequest{Round: protocol.Round2, PartitionID: 3, Values: []int64{4, 8, 1}})
	require.Len(t, out, 1)

	assert.Equal(t, protocol.NodeID("c0"), out[0].To)

	resp, ok := out[0].Message.(*protocol.TaskResponse)
	require.True(t, ok)
	assert.Equal(t, protocol.Round2, resp.Round)
	assert.Equal(t, 3, resp.PartitionID)
	assert.Equal(t, int64(8), resp.Value)
	assert.Equal(t, protocol.NodeID("w0"), resp.Worker)
	assert.Equal(t, protocol.Honest, resp.Kind)
	assert.Equal(t, 1, w.Served())
}

func TestMaliciousWorkerUnderReports(t *testing.T) {
	w := New("w1", true, nil)

	out := w.OnMessage("c0", &protocol.TaskRequest{Round: protocol.Round1, Values: []int64{4, 8, 1}})
	require.Len(t, out, 1)

	resp := out[0].Message.(*protocol.TaskResponse)
	assert.Equal(t, int64(7), resp.Value)
	assert.Equal(t, protocol.Malicious, resp.Kind)
}

func TestEmptyPartitionIsLoud(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	w := New("w0", false, log)

	out := w.OnMessage("c0", &protocol.TaskRequest{Round: protocol.Round1, PartitionID: 2})
	assert.Empty(t, out)
	assert.Equal(t, 0, w.Served())
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "empty partition")
}

func TestWorkerIgnoresOtherMessages(t *testing.T) {
	w := New("w0", false, nil)

	assert.Empty(t, w.OnMessage("c0", &protocol.GossipMessage{Timestamp: 1}))
	assert.Empty(t, w.OnMessage("c0", &protocol.TaskResponse{}))
}
