package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/venuekit/usher/pkg/log"
	"github.com/venuekit/usher/pkg/metrics"
	"github.com/venuekit/usher/pkg/types"
)

// storageKey is the single well-known key holding the serialized entry list.
const storageKey = "offline_operations"

// Queue is the durable offline-operation queue. Entries survive a process
// restart and are replayed by the sync orchestrator in insertion order.
//
// The queue degrades gracefully: a corrupt or unreadable store reads as
// empty, and a failed write is logged rather than propagated as fatal.
type Queue struct {
	kv         KV
	maxRetries int
	logger     zerolog.Logger

	mu sync.Mutex
}

// New creates a queue over the given KV. maxRetries <= 0 uses the default.
func New(kv KV, maxRetries int) *Queue {
	if maxRetries <= 0 {
		maxRetries = types.DefaultMaxRetries
	}
	return &Queue{
		kv:         kv,
		maxRetries: maxRetries,
		logger:     log.WithComponent("queue"),
	}
}

// Enqueue serializes data into a new entry with a zero retry count and
// appends it to the persisted list, returning the generated id.
func (q *Queue) Enqueue(opType types.OperationType, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize operation payload: %w", err)
	}

	op := types.OfflineOperation{
		ID:         newOperationID(),
		Type:       opType,
		Data:       payload,
		Timestamp:  time.Now(),
		RetryCount: 0,
		MaxRetries: q.maxRetries,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.loadLocked()
	ops = append(ops, op)
	q.saveLocked(ops)

	q.logger.Info().
		Str("operation_id", op.ID).
		Str("type", string(opType)).
		Int("pending", len(ops)).
		Msg("operation queued for later sync")
	return op.ID, nil
}

// ListRetryable returns all entries that still have retry budget, in
// insertion order (oldest first).
func (q *Queue) ListRetryable() []types.OfflineOperation {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []types.OfflineOperation
	for _, op := range q.loadLocked() {
		if op.RetryCount < op.MaxRetries {
			out = append(out, op)
		}
	}
	return out
}

// Len returns the number of persisted entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.loadLocked())
}

// Remove deletes the entry with the given id. No-op if absent.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.loadLocked()
	kept := ops[:0]
	for _, op := range ops {
		if op.ID != id {
			kept = append(kept, op)
		}
	}
	if len(kept) != len(ops) {
		q.saveLocked(kept)
	}
}

// IncrementRetry bumps the retry counter for id. When the counter reaches
// the budget the entry is evicted and false is returned, meaning: stop
// retrying, this operation will never be attempted again.
func (q *Queue) IncrementRetry(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	ops := q.loadLocked()
	for i := range ops {
		if ops[i].ID != id {
			continue
		}
		ops[i].RetryCount++
		if ops[i].RetryCount >= ops[i].MaxRetries {
			q.logger.Warn().
				Str("operation_id", id).
				Int("retry_count", ops[i].RetryCount).
				Msg("operation exceeded retry budget, evicting")
			q.saveLocked(append(ops[:i], ops[i+1:]...))
			return false
		}
		q.saveLocked(ops)
		return true
	}
	return false
}

// loadLocked reads the persisted list. Malformed JSON or a storage failure
// is treated as "no pending operations", never as a crash.
func (q *Queue) loadLocked() []types.OfflineOperation {
	raw, ok, err := q.kv.Get(storageKey)
	if err != nil {
		q.logger.Warn().Err(err).Msg("failed to read offline queue, treating as empty")
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var ops []types.OfflineOperation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		q.logger.Warn().Err(err).Msg("offline queue storage is corrupt, treating as empty")
		return nil
	}
	return ops
}

func (q *Queue) saveLocked(ops []types.OfflineOperation) {
	data, err := json.Marshal(ops)
	if err != nil {
		q.logger.Error().Err(err).Msg("failed to serialize offline queue")
		return
	}
	if err := q.kv.Set(storageKey, string(data)); err != nil {
		q.logger.Error().Err(err).Msg("failed to persist offline queue")
		return
	}
	metrics.QueueDepth.Set(float64(len(ops)))
}

// newOperationID builds a time-prefixed id with a random suffix. Uniqueness
// is best-effort; the time prefix keeps ids roughly sortable for debugging.
func newOperationID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
