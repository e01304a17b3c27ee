package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/venuekit/usher/pkg/faults"
	"github.com/venuekit/usher/pkg/log"
	"github.com/venuekit/usher/pkg/metrics"
	"github.com/venuekit/usher/pkg/queue"
	"github.com/venuekit/usher/pkg/types"
)

// Handler replays one queued operation against its backend.
type Handler func(ctx context.Context, op types.OfflineOperation) error

// NoopHandler succeeds without doing anything. Read-only operation types
// register it: a stale search has nothing worth replaying.
func NoopHandler(ctx context.Context, op types.OfflineOperation) error {
	return nil
}

// StatusSource reports whether the network is currently usable.
type StatusSource interface {
	IsOnline() bool
}

// Listener receives aggregate stats after every drain pass.
type Listener func(types.SyncStats)

const kickDebounce = time.Second

// Syncer drains the durable offline queue. At most one drain pass runs at a
// time; overlapping triggers return the current stats without starting a
// second pass. Failed passes are rescheduled with capped exponential backoff
// and jitter so reconnecting clients do not hammer the store in lockstep.
type Syncer struct {
	queue  *queue.Queue
	status StatusSource
	logger zerolog.Logger

	mu        sync.Mutex
	syncing   bool
	stats     types.SyncStats
	handlers  map[types.OperationType]Handler
	listeners map[int]Listener
	nextID    int

	kickMu    sync.Mutex
	kickTimer *time.Timer
	backoff   *backoff.ExponentialBackOff
}

// New creates a syncer over the queue, reading connectivity from status.
func New(q *queue.Queue, status StatusSource) *Syncer {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0 // the queue's retry budget bounds attempts, not time
	b.Reset()

	return &Syncer{
		queue:     q,
		status:    status,
		logger:    log.WithComponent("syncer"),
		handlers:  make(map[types.OperationType]Handler),
		listeners: make(map[int]Listener),
		backoff:   b,
	}
}

// RegisterHandler wires the replay handler for an operation type.
func (s *Syncer) RegisterHandler(t types.OperationType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[t] = h
}

// QueueOperation persists an operation and, when currently online, schedules
// an immediate attempt after a short debounce instead of waiting for the
// next scheduled drain.
func (s *Syncer) QueueOperation(t types.OperationType, data any) (string, error) {
	id, err := s.queue.Enqueue(t, data)
	if err != nil {
		return "", err
	}
	if s.status.IsOnline() {
		s.Kick()
	}
	return id, nil
}

// Kick schedules a drain pass after the debounce window. Repeated kicks
// within the window coalesce into one pass.
func (s *Syncer) Kick() {
	s.kickMu.Lock()
	defer s.kickMu.Unlock()
	if s.kickTimer != nil {
		s.kickTimer.Stop()
	}
	s.kickTimer = time.AfterFunc(kickDebounce, func() {
		s.TriggerSync(context.Background())
	})
}

// TriggerSync runs one drain pass and returns the stats afterwards. When a
// pass is already in flight, or the network is offline, it returns current
// stats without attempting anything.
func (s *Syncer) TriggerSync(ctx context.Context) types.SyncStats {
	s.mu.Lock()
	if s.syncing {
		stats := s.statsLocked()
		s.mu.Unlock()
		return stats
	}
	if !s.status.IsOnline() {
		stats := s.statsLocked()
		s.mu.Unlock()
		return stats
	}
	s.syncing = true
	s.stats.Syncing = true
	s.mu.Unlock()

	timer := metrics.NewTimer()
	metrics.SyncPassesTotal.Inc()

	failures := s.drain(ctx)

	s.mu.Lock()
	s.syncing = false
	s.stats.Syncing = false
	s.stats.LastSync = time.Now()
	stats := s.statsLocked()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	timer.ObserveDuration(metrics.SyncPassDuration)

	if failures > 0 {
		delay := s.backoff.NextBackOff()
		s.logger.Info().
			Int("failures", failures).
			Dur("retry_in", delay).
			Msg("drain pass left retryable operations, backing off")
		s.scheduleRetry(delay)
	} else {
		s.backoff.Reset()
	}

	for _, fn := range listeners {
		s.notify(fn, stats)
	}
	return stats
}

// Stats returns the current aggregate including live queue depth.
func (s *Syncer) Stats() types.SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// Subscribe registers a stats listener. The returned unsubscribe is safe to
// call multiple times.
func (s *Syncer) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// drain replays every retryable queued operation in insertion order and
// returns how many failed retryably.
func (s *Syncer) drain(ctx context.Context) int {
	failures := 0
	for _, op := range s.queue.ListRetryable() {
		s.mu.Lock()
		handler, ok := s.handlers[op.Type]
		s.mu.Unlock()

		if !ok {
			// Nothing will ever be able to replay this entry
			s.logger.Error().
				Str("operation_id", op.ID).
				Str("type", string(op.Type)).
				Msg("no handler registered for queued operation, dropping")
			s.queue.Remove(op.ID)
			s.countTerminal()
			metrics.SyncOperationsTotal.WithLabelValues("dropped").Inc()
			continue
		}

		err := handler(ctx, op)
		switch {
		case err == nil:
			s.queue.Remove(op.ID)
			s.countSynced()
			metrics.SyncOperationsTotal.WithLabelValues("success").Inc()
			s.logger.Info().
				Str("operation_id", op.ID).
				Str("type", string(op.Type)).
				Msg("queued operation replayed")

		case faults.IsConflict(err):
			// Already applied on the store side. The queued payload is
			// discarded; replaying it again can only produce the same 409.
			s.queue.Remove(op.ID)
			s.countConflict()
			metrics.SyncOperationsTotal.WithLabelValues("conflict").Inc()
			s.logger.Info().
				Str("operation_id", op.ID).
				Msg("queued operation was already applied, removing")

		case faults.IsRetryable(err):
			if s.queue.IncrementRetry(op.ID) {
				failures++
				metrics.SyncOperationsTotal.WithLabelValues("retry").Inc()
				s.logger.Warn().
					Str("operation_id", op.ID).
					Err(err).
					Msg("replay failed, will retry")
			} else {
				s.countEvicted()
				metrics.SyncOperationsTotal.WithLabelValues("evicted").Inc()
				s.logger.Error().
					Str("operation_id", op.ID).
					Err(err).
					Msg("replay failed and retry budget is exhausted, operation dropped")
			}

		default:
			// Deterministic failure: retrying cannot change the outcome
			s.queue.Remove(op.ID)
			s.countTerminal()
			metrics.SyncOperationsTotal.WithLabelValues("terminal").Inc()
			s.logger.Error().
				Str("operation_id", op.ID).
				Err(err).
				Msg("replay failed terminally, operation removed")
		}
	}
	return failures
}

func (s *Syncer) scheduleRetry(delay time.Duration) {
	s.kickMu.Lock()
	defer s.kickMu.Unlock()
	if s.kickTimer != nil {
		s.kickTimer.Stop()
	}
	s.kickTimer = time.AfterFunc(delay, func() {
		s.TriggerSync(context.Background())
	})
}

// notify shields the pass from a panicking listener so the remaining
// listeners still get their callback.
func (s *Syncer) notify(fn Listener, stats types.SyncStats) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("sync listener panicked")
		}
	}()
	fn(stats)
}

func (s *Syncer) statsLocked() types.SyncStats {
	stats := s.stats
	stats.Pending = s.queue.Len()
	return stats
}

func (s *Syncer) countSynced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalSynced++
}

func (s *Syncer) countConflict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalConflicts++
}

func (s *Syncer) countEvicted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalEvicted++
}

func (s *Syncer) countTerminal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalFailed++
}
