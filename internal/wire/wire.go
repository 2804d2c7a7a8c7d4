package wire

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"

	"Veritas/internal/protocol"
	"Veritas/internal/types"
)

// Frame layout: [1B kind][1B flags][payload]
const (
	headerSize = 2

	// compressThreshold is the payload size above which zstd is applied.
	compressThreshold = 1024

	// maxDecodedSize bounds decompressed payloads (16 MB, same as the transport).
	maxDecodedSize = 16 << 20
)

const (
	kindTaskRequest  byte = 1
	kindTaskResponse byte = 2
	kindGossip       byte = 3
)

const flagZstd byte = 1 << 0

// ErrMalformed is returned for frames that cannot be decoded.
var ErrMalformed = errors.New("malformed frame")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
)

// Encode serializes a message into a frame.
func Encode(msg protocol.Message) ([]byte, error) {
	var (
		kind    byte
		payload []byte
	)

	switch m := msg.(type) {
	case *protocol.TaskRequest:
		kind, payload = kindTaskRequest, buildTaskRequest(m)
	case *protocol.TaskResponse:
		kind, payload = kindTaskResponse, buildTaskResponse(m)
	case *protocol.GossipMessage:
		kind, payload = kindGossip, buildGossip(m)
	default:
		return nil, fmt.Errorf("encode %T: unsupported message", msg)
	}

	var flags byte
	if len(payload) > compressThreshold {
		payload = encoder.EncodeAll(payload, nil)
		flags |= flagZstd
	}

	frame := make([]byte, headerSize+len(payload))
	frame[0] = kind
	frame[1] = flags
	copy(frame[headerSize:], payload)

	return frame, nil
}

// Decode parses a frame produced by Encode.
// Any decoding failure is reported as ErrMalformed.
func Decode(frame []byte) (msg protocol.Message, err error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrMalformed, len(frame))
	}

	kind, flags := frame[0], frame[1]
	payload := frame[headerSize:]

	if flags&^flagZstd != 0 {
		return nil, fmt.Errorf("%w: unknown flags %#x", ErrMalformed, flags)
	}

	if flags&flagZstd != 0 {
		payload, err = decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress:\n%v", ErrMalformed, err)
		}
	}

	// Table accessors index the buffer directly and panic on bad offsets
	defer func() {
		if r := recover(); r != nil {
			msg = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	if len(payload) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d byte payload", ErrMalformed, len(payload))
	}

	switch kind {
	case kindTaskRequest:
		return readTaskRequest(payload)
	case kindTaskResponse:
		return readTaskResponse(payload)
	case kindGossip:
		return readGossip(payload)
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, kind)
	}
}

func buildTaskRequest(m *protocol.TaskRequest) []byte {
	builder := flatbuffers.NewBuilder(64 + len(m.Values)*8)

	types.TaskRequestStartValuesVector(builder, len(m.Values))
	for i := len(m.Values) - 1; i >= 0; i-- {
		builder.PrependInt64(m.Values[i])
	}
	valuesVec := builder.EndVector(len(m.Values))

	types.TaskRequestStart(builder)
	types.TaskRequestAddRound(builder, byte(m.Round))
	types.TaskRequestAddPartitionId(builder, int32(m.PartitionID))
	types.TaskRequestAddValues(builder, valuesVec)
	builder.Finish(types.TaskRequestEnd(builder))

	return builder.FinishedBytes()
}

func buildTaskResponse(m *protocol.TaskResponse) []byte {
	builder := flatbuffers.NewBuilder(64 + len(m.Worker))

	workerStr := builder.CreateString(string(m.Worker))

	types.TaskResponseStart(builder)
	types.TaskResponseAddRound(builder, byte(m.Round))
	types.TaskResponseAddPartitionId(builder, int32(m.PartitionID))
	types.TaskResponseAddValue(builder, m.Value)
	types.TaskResponseAddWorker(builder, workerStr)
	types.TaskResponseAddKind(builder, byte(m.Kind))
	builder.Finish(types.TaskResponseEnd(builder))

	return builder.FinishedBytes()
}

func buildGossip(m *protocol.GossipMessage) []byte {
	builder := flatbuffers.NewBuilder(64 + len(m.Originator) + len(m.Scores)*4)

	originatorStr := builder.CreateString(string(m.Originator))

	types.GossipMessageStartScoresVector(builder, len(m.Scores))
	for i := len(m.Scores) - 1; i >= 0; i-- {
		builder.PrependInt32(int32(m.Scores[i]))
	}
	scoresVec := builder.EndVector(len(m.Scores))

	types.GossipMessageStart(builder)
	types.GossipMessageAddTimestamp(builder, m.Timestamp)
	types.GossipMessageAddOriginator(builder, originatorStr)
	types.GossipMessageAddScores(builder, scoresVec)
	builder.Finish(types.GossipMessageEnd(builder))

	return builder.FinishedBytes()
}

func readTaskRequest(data []byte) (protocol.Message, error) {
	t := types.GetRootAsTaskRequest(data, 0)

	n := t.ValuesLength()
	if n*8 > len(data) {
		return nil, fmt.Errorf("%w: %d values in %d bytes", ErrMalformed, n, len(data))
	}

	values := make([]int64, n)
	for i := range values {
		values[i] = t.Values(i)
	}

	return &protocol.TaskRequest{
		Round:       protocol.Round(t.Round()),
		PartitionID: int(t.PartitionId()),
		Values:      values,
	}, nil
}

func readTaskResponse(data []byte) (protocol.Message, error) {
	t := types.GetRootAsTaskResponse(data, 0)

	kind := protocol.Kind(t.Kind())
	if kind != protocol.Honest && kind != protocol.Malicious {
		return nil, fmt.Errorf("%w: unknown worker kind %d", ErrMalformed, kind)
	}

	return &protocol.TaskResponse{
		Round:       protocol.Round(t.Round()),
		PartitionID: int(t.PartitionId()),
		Value:       t.Value(),
		Worker:      protocol.NodeID(t.Worker()),
		Kind:        kind,
	}, nil
}

func readGossip(data []byte) (protocol.Message, error) {
	t := types.GetRootAsGossipMessage(data, 0)

	n := t.ScoresLength()
	if n*4 > len(data) {
		return nil, fmt.Errorf("%w: %d scores in %d bytes", ErrMalformed, n, len(data))
	}

	scores := make([]int, n)
	for i := range scores {
		scores[i] = int(t.Scores(i))
	}

	return &protocol.GossipMessage{
		Timestamp:  t.Timestamp(),
		Originator: protocol.NodeID(t.Originator()),
		Scores:     scores,
	}, nil
}
