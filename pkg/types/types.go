package types

import (
	"encoding/json"
	"time"
)

// NetworkStatus classifies current connectivity as observed by the monitor.
type NetworkStatus string

const (
	NetworkOnline  NetworkStatus = "online"
	NetworkOffline NetworkStatus = "offline"
	NetworkSlow    NetworkStatus = "slow"
	NetworkUnknown NetworkStatus = "unknown"
)

// NetworkQuality grades connection quality from the last probe latency.
type NetworkQuality string

const (
	QualityExcellent NetworkQuality = "excellent"
	QualityGood      NetworkQuality = "good"
	QualityFair      NetworkQuality = "fair"
	QualityPoor      NetworkQuality = "poor"
	QualityUnknown   NetworkQuality = "unknown"
)

// OperationType tags a queued operation with the handler that replays it.
type OperationType string

const (
	// OperationCheckIn is an attendance write that must eventually reach the store.
	OperationCheckIn OperationType = "checkin"

	// OperationSearch is read-only; it is accepted for queueing but its replay
	// is a no-op since a stale search result has no value.
	OperationSearch OperationType = "search"
)

// Booking is a record in the remote store. The booking fields are immutable
// from this system's point of view; only the attendance fields are written.
type Booking struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	ExpectedGuests int        `json:"expected_guests"`
	EventStart     time.Time  `json:"event_start"`
	EventEnd       time.Time  `json:"event_end"`
	IsAttended     bool       `json:"is_attended"`
	AttendedAt     *time.Time `json:"attended_at,omitempty"`
	ActualGuests   *int       `json:"actual_guests,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CheckInPayload is the exact payload persisted for a queued check-in write.
type CheckInPayload struct {
	BookingID    int64     `json:"booking_id"`
	ActualGuests int       `json:"actual_guests"`
	Timestamp    time.Time `json:"timestamp"`
}

// OfflineOperation is a durable queue entry awaiting replay.
type OfflineOperation struct {
	ID         string          `json:"id"`
	Type       OperationType   `json:"type"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// PreviousCheckIn echoes the attendance state observed before a repeat
// check-in overwrote it, so the caller can show "previous vs. new".
type PreviousCheckIn struct {
	AttendedAt   *time.Time `json:"attended_at,omitempty"`
	ActualGuests *int       `json:"actual_guests,omitempty"`
}

// CheckInResult is the user-facing outcome of a check-in attempt.
type CheckInResult struct {
	Booking            *Booking         `json:"booking,omitempty"`
	IsDuplicateCheckIn bool             `json:"is_duplicate_check_in"`
	PreviousCheckIn    *PreviousCheckIn `json:"previous_check_in,omitempty"`

	// Pending is true when the write could not reach the store and was
	// persisted for later sync instead. Pending is not a failure.
	Pending     bool   `json:"pending"`
	OperationID string `json:"operation_id,omitempty"`
}

// SyncStats is the aggregate reported to listeners after every drain pass.
type SyncStats struct {
	Pending        int       `json:"pending"`
	Syncing        bool      `json:"syncing"`
	LastSync       time.Time `json:"last_sync"`
	TotalSynced    int       `json:"total_synced"`
	TotalFailed    int       `json:"total_failed"`
	TotalConflicts int       `json:"total_conflicts"`
	TotalEvicted   int       `json:"total_evicted"`
}

// Defaults shared across components. The two intervals are the only knobs the
// host application is expected to override, typically for testing.
const (
	DefaultMonitorInterval = 30 * time.Second
	DefaultRetryInterval   = 10 * time.Second
	DefaultProbeTimeout    = 5 * time.Second

	DefaultMaxRetries  = 3
	DefaultFailedOpCap = 50

	// MaxActualGuests bounds the guest count accepted by validation.
	MaxActualGuests = 999
)
