package resilient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuekit/usher/pkg/faults"
)

// fakeStatus is a settable connectivity source.
type fakeStatus struct {
	online bool
}

func (f *fakeStatus) IsOnline() bool { return f.online }

func netErr() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
}

func TestExecuteOnlineSuccess(t *testing.T) {
	w := NewWrapper(&fakeStatus{online: true}, 10)

	calls := 0
	err := w.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, Options{OperationID: "op-1"})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Zero(t, w.FailedCount())
}

func TestExecuteOfflineFastFail(t *testing.T) {
	w := NewWrapper(&fakeStatus{online: false}, 10)

	calls := 0
	err := w.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, Options{OperationID: "op-1"})

	require.Error(t, err)
	assert.Zero(t, calls, "offline execution must not invoke the operation")
	assert.True(t, faults.IsOffline(err))
	assert.Zero(t, w.FailedCount(), "no registration without RetryOnReconnect")
}

func TestExecuteOfflineRegistersForRetry(t *testing.T) {
	w := NewWrapper(&fakeStatus{online: false}, 10)

	err := w.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	}, Options{OperationID: "op-1", RetryOnReconnect: true})

	require.Error(t, err)
	assert.Equal(t, 1, w.FailedCount())
	assert.True(t, w.Contains("op-1"))
}

func TestExecuteClassifiesFailures(t *testing.T) {
	w := NewWrapper(&fakeStatus{online: true}, 10)

	err := w.Execute(context.Background(), func(ctx context.Context) error {
		return netErr()
	}, Options{OperationID: "op-1", RetryOnReconnect: true})

	require.Error(t, err)
	assert.Equal(t, faults.KindConnection, faults.KindOf(err))
	assert.True(t, w.Contains("op-1"), "network failure registers for reconnect retry")
}

func TestNonNetworkFailureNotRegistered(t *testing.T) {
	w := NewWrapper(&fakeStatus{online: true}, 10)

	err := w.Execute(context.Background(), func(ctx context.Context) error {
		return faults.Newf(faults.KindValidation, "guest count out of range")
	}, Options{OperationID: "op-1", RetryOnReconnect: true})

	require.Error(t, err)
	assert.Zero(t, w.FailedCount(), "only network failures are worth a reconnect retry")
}

func TestSuccessClearsStaleEntry(t *testing.T) {
	status := &fakeStatus{online: true}
	w := NewWrapper(status, 10)

	failing := func(ctx context.Context) error { return netErr() }
	require.Error(t, w.Execute(context.Background(), failing, Options{OperationID: "op-1", RetryOnReconnect: true}))
	require.True(t, w.Contains("op-1"))

	ok := func(ctx context.Context) error { return nil }
	require.NoError(t, w.Execute(context.Background(), ok, Options{OperationID: "op-1", RetryOnReconnect: true}))
	assert.False(t, w.Contains("op-1"), "success supersedes the recorded failure")
}

func TestCapacityEvictsOldestFirst(t *testing.T) {
	w := NewWrapper(&fakeStatus{online: false}, 3)

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("op-%d", i)
		_ = w.Execute(context.Background(), func(ctx context.Context) error { return nil },
			Options{OperationID: id, RetryOnReconnect: true})
	}

	assert.Equal(t, 3, w.FailedCount())
	assert.False(t, w.Contains("op-0"), "oldest entry is evicted at capacity")
	assert.True(t, w.Contains("op-1"))
	assert.True(t, w.Contains("op-3"))
}

func TestDrainRetriesOldestFirst(t *testing.T) {
	status := &fakeStatus{online: false}
	w := NewWrapper(status, 10)

	var attempts []string
	record := func(id string) Operation {
		return func(ctx context.Context) error {
			attempts = append(attempts, id)
			return nil
		}
	}

	_ = w.Execute(context.Background(), record("first"), Options{OperationID: "first", RetryOnReconnect: true})
	time.Sleep(5 * time.Millisecond) // separate lastAttempt timestamps
	_ = w.Execute(context.Background(), record("second"), Options{OperationID: "second", RetryOnReconnect: true})

	status.online = true
	w.Drain(context.Background())

	assert.Equal(t, []string{"first", "second"}, attempts)
	assert.Zero(t, w.FailedCount(), "recovered operations are removed")
}

func TestDrainSkipsWhileOffline(t *testing.T) {
	status := &fakeStatus{online: false}
	w := NewWrapper(status, 10)

	calls := 0
	_ = w.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, Options{OperationID: "op-1", RetryOnReconnect: true})

	w.Drain(context.Background())
	assert.Zero(t, calls, "draining offline is pointless and must not run anything")
	assert.Equal(t, 1, w.FailedCount())
}

func TestDrainEvictsAfterRetryBudget(t *testing.T) {
	status := &fakeStatus{online: false}
	w := NewWrapper(status, 10)

	calls := 0
	_ = w.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return netErr()
	}, Options{OperationID: "op-1", RetryOnReconnect: true, MaxRetries: 2})

	status.online = true
	w.Drain(context.Background())
	assert.Equal(t, 1, calls)
	assert.True(t, w.Contains("op-1"), "one failure left in budget")

	w.Drain(context.Background())
	assert.Equal(t, 2, calls)
	assert.False(t, w.Contains("op-1"), "budget exhausted, entry evicted")

	w.Drain(context.Background())
	assert.Equal(t, 2, calls, "evicted operations are never attempted again")
}

func TestGeneratedOperationID(t *testing.T) {
	w := NewWrapper(&fakeStatus{online: false}, 10)

	err := w.Execute(context.Background(), func(ctx context.Context) error { return nil },
		Options{RetryOnReconnect: true})

	require.Error(t, err)
	assert.Equal(t, 1, w.FailedCount(), "a blank id is generated, not rejected")
}
