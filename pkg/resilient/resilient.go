package resilient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/venuekit/usher/pkg/faults"
	"github.com/venuekit/usher/pkg/log"
	"github.com/venuekit/usher/pkg/types"
)

// Operation is a retryable unit of work. It must be safe to invoke again
// after a failure; results are delivered through the closure, not returned.
type Operation func(ctx context.Context) error

// Options controls how Execute treats a failing operation.
type Options struct {
	// OperationID keys the failed-operation entry; generated when empty.
	OperationID string

	// RetryOnReconnect registers the operation for out-of-band retry when it
	// fails for a network reason (or is refused while offline).
	RetryOnReconnect bool

	// MaxRetries bounds out-of-band attempts; 0 uses the default.
	MaxRetries int

	// Meta is free-form diagnostic context attached to the entry.
	Meta map[string]string
}

// StatusSource reports whether the network is currently usable.
type StatusSource interface {
	IsOnline() bool
}

type failedOperation struct {
	id          string
	op          Operation
	retryCount  int
	maxRetries  int
	lastAttempt time.Time
	err         *faults.Error
	meta        map[string]string
}

// Wrapper executes operations with offline fast-fail and keeps a bounded map
// of network-failed operations for retry once connectivity returns.
//
// The map is capped: inserting past the cap evicts the oldest entry (FIFO)
// so a long outage cannot grow it without bound. Entries whose retry budget
// is exhausted are evicted and never attempted again.
type Wrapper struct {
	status StatusSource
	cap    int
	logger zerolog.Logger

	mu     sync.Mutex
	failed map[string]*failedOperation
	order  []string
}

// NewWrapper creates a wrapper reading connectivity from status.
// capacity <= 0 uses the default cap.
func NewWrapper(status StatusSource, capacity int) *Wrapper {
	if capacity <= 0 {
		capacity = types.DefaultFailedOpCap
	}
	return &Wrapper{
		status: status,
		cap:    capacity,
		logger: log.WithComponent("resilient"),
		failed: make(map[string]*failedOperation),
	}
}

// Execute runs op under the current network conditions.
//
// Offline: op is not invoked at all; a network-category error is returned
// immediately, and the operation is registered for reconnect retry when
// requested. Online: op runs exactly once; a failure is classified and
// rethrown to the caller. Retries never happen inline, only via Drain.
func (w *Wrapper) Execute(ctx context.Context, op Operation, opts Options) error {
	if opts.OperationID == "" {
		opts.OperationID = uuid.NewString()
	}

	if !w.status.IsOnline() {
		err := faults.Newf(faults.KindOffline, "no network connection")
		if opts.RetryOnReconnect {
			w.register(op, opts, err)
		}
		return err
	}

	err := op(ctx)
	if err == nil {
		// A stale entry from an earlier failure of the same operation is
		// obsolete once it succeeds.
		w.remove(opts.OperationID)
		return nil
	}

	cerr := faults.Classify(err)
	if opts.RetryOnReconnect && cerr.Category == faults.CategoryNetwork {
		w.register(op, opts, cerr)
	}
	return cerr
}

// Drain attempts every registered operation, oldest last-attempt first.
// Failures consume retry budget; exhausted entries are evicted.
func (w *Wrapper) Drain(ctx context.Context) {
	if !w.status.IsOnline() {
		return
	}

	w.mu.Lock()
	pending := make([]*failedOperation, 0, len(w.failed))
	for _, e := range w.failed {
		if e.retryCount < e.maxRetries {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].lastAttempt.Before(pending[j].lastAttempt)
	})
	w.mu.Unlock()

	for _, e := range pending {
		err := e.op(ctx)
		if err == nil {
			w.remove(e.id)
			w.logger.Info().Str("operation_id", e.id).Msg("failed operation recovered")
			continue
		}

		w.mu.Lock()
		e.retryCount++
		e.lastAttempt = time.Now()
		e.err = faults.Classify(err)
		evict := e.retryCount >= e.maxRetries
		w.mu.Unlock()

		if evict {
			w.remove(e.id)
			w.logger.Warn().
				Str("operation_id", e.id).
				Int("retry_count", e.retryCount).
				Err(err).
				Msg("operation exceeded retry budget, giving up")
		}
	}
}

// FailedCount returns the number of registered failed operations.
func (w *Wrapper) FailedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.failed)
}

// Contains reports whether an entry exists for the given operation id.
func (w *Wrapper) Contains(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.failed[id]
	return ok
}

func (w *Wrapper) register(op Operation, opts Options, cerr *faults.Error) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = types.DefaultMaxRetries
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.failed[opts.OperationID]; ok {
		e.op = op
		e.lastAttempt = time.Now()
		e.err = cerr
		return
	}

	w.failed[opts.OperationID] = &failedOperation{
		id:          opts.OperationID,
		op:          op,
		maxRetries:  maxRetries,
		lastAttempt: time.Now(),
		err:         cerr,
		meta:        opts.Meta,
	}
	w.order = append(w.order, opts.OperationID)

	// FIFO eviction keeps the map at the cap
	for len(w.failed) > w.cap && len(w.order) > 0 {
		oldest := w.order[0]
		w.order = w.order[1:]
		if _, ok := w.failed[oldest]; ok {
			delete(w.failed, oldest)
			w.logger.Debug().Str("operation_id", oldest).Msg("evicted oldest failed operation at capacity")
		}
	}
}

func (w *Wrapper) remove(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.failed, id)
	for i, oid := range w.order {
		if oid == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}
