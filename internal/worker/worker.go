package worker

import (
	"fmt"
	"log/slog"

	"Veritas/internal/protocol"
	"Veritas/internal/task"
)

// Worker answers task requests with its declared maximum.
type Worker struct {
	id        protocol.NodeID // id is the worker identity echoed in responses
	malicious bool            // malicious makes the worker under-report
	log       *slog.Logger
	served    int // served counts answered requests
}

// New creates a worker. A nil logger falls back to slog.Default.
func New(id protocol.NodeID, malicious bool, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}

	w := &Worker{
		id:        id,
		malicious: malicious,
		log:       log.With("worker", string(id)),
	}

	w.log.Info("worker initialized", "kind", w.Kind().String())

	return w
}

// ID returns the worker identity.
func (w *Worker) ID() protocol.NodeID {
	return w.id
}

// Kind returns the worker's declared behavior.
func (w *Worker) Kind() protocol.Kind {
	if w.malicious {
		return protocol.Malicious
	}

	return protocol.Honest
}

// Served returns the number of requests answered so far.
func (w *Worker) Served() int {
	return w.served
}

// OnMessage answers a TaskRequest with one TaskResponse addressed to the sender.
// Other messages are ignored.
func (w *Worker) OnMessage(from protocol.NodeID, msg protocol.Message) []protocol.Outbound {
	req, ok := msg.(*protocol.TaskRequest)
	if !ok {
		w.log.Debug("ignoring unexpected message", "from", string(from), "type", fmt.Sprintf("%T", msg))
		return nil
	}

	value, err := task.Compute(req.Values, w.malicious)
	if err != nil {
		// The splitter guarantees at least two values per partition
		w.log.Error("refusing task", "from", string(from), "round", req.Round, "partition", req.PartitionID, "error", err)
		return nil
	}

	w.served++

	w.log.Info("computed result",
		"kind", w.Kind().String(),
		"round", req.Round,
		"partition", req.PartitionID,
		"result", value,
		"to", string(from),
	)

	return []protocol.Outbound{{
		To: from,
		Message: &protocol.TaskResponse{
			Round:       req.Round,
			PartitionID: req.PartitionID,
			Value:       value,
			Worker:      w.id,
			Kind:        w.Kind(),
		},
	}}
}
