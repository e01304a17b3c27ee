package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuekit/usher/pkg/types"
)

func newTestKV(t *testing.T) *BoltKV {
	t.Helper()
	kv, err := NewBoltKV(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func TestEnqueueAndList(t *testing.T) {
	q := New(newTestKV(t), 3)

	payload := types.CheckInPayload{BookingID: 1, ActualGuests: 3}
	id, err := q.Enqueue(types.OperationCheckIn, payload)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ops := q.ListRetryable()
	require.Len(t, ops, 1)
	assert.Equal(t, id, ops[0].ID)
	assert.Equal(t, types.OperationCheckIn, ops[0].Type)
	assert.Zero(t, ops[0].RetryCount)
	assert.Equal(t, 3, ops[0].MaxRetries)

	var got types.CheckInPayload
	require.NoError(t, json.Unmarshal(ops[0].Data, &got))
	assert.Equal(t, payload.BookingID, got.BookingID)
	assert.Equal(t, payload.ActualGuests, got.ActualGuests)
}

func TestInsertionOrderPreserved(t *testing.T) {
	q := New(newTestKV(t), 3)

	first, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 1})
	require.NoError(t, err)
	second, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 2})
	require.NoError(t, err)
	third, err := q.Enqueue(types.OperationSearch, map[string]string{"prefix": "AB"})
	require.NoError(t, err)

	ops := q.ListRetryable()
	require.Len(t, ops, 3)
	assert.Equal(t, []string{first, second, third}, []string{ops[0].ID, ops[1].ID, ops[2].ID})
}

func TestRemove(t *testing.T) {
	q := New(newTestKV(t), 3)

	id, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 1})
	require.NoError(t, err)

	q.Remove(id)
	assert.Zero(t, q.Len())

	// Removing an absent id is a no-op
	q.Remove("does-not-exist")
	assert.Zero(t, q.Len())
}

func TestIncrementRetryEvictsAtBudget(t *testing.T) {
	q := New(newTestKV(t), 3)

	id, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 1})
	require.NoError(t, err)

	assert.True(t, q.IncrementRetry(id), "first failure keeps the entry")
	assert.True(t, q.IncrementRetry(id), "second failure keeps the entry")
	assert.False(t, q.IncrementRetry(id), "third failure exhausts the budget")

	assert.Zero(t, q.Len(), "evicted entry must be gone from storage")
	assert.False(t, q.IncrementRetry(id), "incrementing an absent id reports stop")
}

func TestEntriesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	kv, err := NewBoltKV(dir)
	require.NoError(t, err)
	q := New(kv, 3)
	id, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 7, ActualGuests: 2})
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	kv, err = NewBoltKV(dir)
	require.NoError(t, err)
	defer kv.Close()

	reopened := New(kv, 3)
	ops := reopened.ListRetryable()
	require.Len(t, ops, 1)
	assert.Equal(t, id, ops[0].ID)
}

func TestCorruptStorageReadsAsEmpty(t *testing.T) {
	kv := newTestKV(t)
	require.NoError(t, kv.Set(storageKey, "{not json"))

	q := New(kv, 3)
	assert.Empty(t, q.ListRetryable())
	assert.Zero(t, q.Len())

	// The queue recovers: a fresh enqueue replaces the corrupt list
	_, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
}

// brokenKV fails every call, standing in for unavailable storage.
type brokenKV struct{}

func (brokenKV) Get(string) (string, bool, error) { return "", false, errors.New("storage gone") }
func (brokenKV) Set(string, string) error         { return errors.New("storage gone") }
func (brokenKV) Delete(string) error              { return errors.New("storage gone") }
func (brokenKV) Close() error                     { return nil }

func TestUnavailableStorageDegradesGracefully(t *testing.T) {
	q := New(brokenKV{}, 3)

	assert.Empty(t, q.ListRetryable())
	assert.NotPanics(t, func() {
		_, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 1})
		assert.NoError(t, err, "a failed persist is logged, not fatal")
	})
}

func TestMaxRetriesDefault(t *testing.T) {
	q := New(newTestKV(t), 0)

	id, err := q.Enqueue(types.OperationCheckIn, types.CheckInPayload{BookingID: 1})
	require.NoError(t, err)

	ops := q.ListRetryable()
	require.Len(t, ops, 1)
	assert.Equal(t, id, ops[0].ID)
	assert.Equal(t, types.DefaultMaxRetries, ops[0].MaxRetries)
}
