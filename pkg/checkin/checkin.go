package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/venuekit/usher/pkg/faults"
	"github.com/venuekit/usher/pkg/log"
	"github.com/venuekit/usher/pkg/metrics"
	"github.com/venuekit/usher/pkg/resilient"
	"github.com/venuekit/usher/pkg/store"
	"github.com/venuekit/usher/pkg/syncer"
	"github.com/venuekit/usher/pkg/types"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Service implements the check-in state machine on top of the resilient
// execution wrapper and the offline queue.
type Service struct {
	store  store.Store
	exec   *resilient.Wrapper
	syncer *syncer.Syncer
	logger zerolog.Logger
}

// NewService wires the domain service. Callers must also register
// Service.HandleReplay on the syncer for the checkin operation type.
func NewService(st store.Store, exec *resilient.Wrapper, sy *syncer.Syncer) *Service {
	return &Service{
		store:  st,
		exec:   exec,
		syncer: sy,
		logger: log.WithComponent("checkin"),
	}
}

// ValidateCheckIn rejects input that can never succeed. Validation failures
// are terminal: they are never retried and never queued offline.
func ValidateCheckIn(bookingID int64, actualGuests int) error {
	if bookingID <= 0 {
		return faults.Newf(faults.KindValidation, "booking id must be a positive integer, got %d", bookingID)
	}
	if actualGuests < 0 || actualGuests > types.MaxActualGuests {
		return faults.Newf(faults.KindValidation, "actual guests must be between 0 and %d, got %d", types.MaxActualGuests, actualGuests)
	}
	return nil
}

// CheckIn records an attendee's arrival with the actual guest count.
//
// The write overwrites prior attendance fields unconditionally (last write
// wins). When the booking was already marked attended, the result carries
// the duplicate flag and the previously recorded values so the caller can
// show "previous vs. new". When the network cannot satisfy the write, the
// exact payload is handed to the offline queue and the result reports
// pending, not failure.
func (s *Service) CheckIn(ctx context.Context, bookingID int64, actualGuests int, at time.Time) (*types.CheckInResult, error) {
	if err := ValidateCheckIn(bookingID, actualGuests); err != nil {
		metrics.CheckInsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if at.IsZero() {
		at = time.Now()
	}

	// Read the current record first for duplicate detection. The read goes
	// through the wrapper for offline fast-fail but is not registered for
	// replay; a stale read retry serves nobody.
	var current *types.Booking
	readErr := s.exec.Execute(ctx, func(ctx context.Context) error {
		b, err := s.store.GetOne(ctx, bookingID)
		if err != nil {
			return err
		}
		current = b
		return nil
	}, resilient.Options{OperationID: fmt.Sprintf("checkin-read-%d", bookingID)})

	if readErr != nil {
		if faults.IsNetwork(readErr) {
			return s.queueOffline(bookingID, actualGuests, at, nil, false)
		}
		metrics.CheckInsTotal.WithLabelValues("failed").Inc()
		return nil, readErr
	}

	isDuplicate := current.IsAttended
	var previous *types.PreviousCheckIn
	if isDuplicate {
		previous = &types.PreviousCheckIn{
			AttendedAt:   current.AttendedAt,
			ActualGuests: current.ActualGuests,
		}
	}

	var updated *types.Booking
	writeErr := s.exec.Execute(ctx, func(ctx context.Context) error {
		b, err := s.store.UpdateOne(ctx, bookingID, store.AttendanceUpdate{
			IsAttended:   true,
			AttendedAt:   at,
			ActualGuests: actualGuests,
		})
		if err != nil {
			return err
		}
		updated = b
		return nil
	}, resilient.Options{OperationID: fmt.Sprintf("checkin-write-%d", bookingID)})

	switch {
	case writeErr == nil:
		result := "success"
		if isDuplicate {
			result = "duplicate"
			s.logger.Warn().
				Int64("booking_id", bookingID).
				Msg("repeat check-in, previous attendance overwritten")
		}
		metrics.CheckInsTotal.WithLabelValues(result).Inc()
		return &types.CheckInResult{
			Booking:            updated,
			IsDuplicateCheckIn: isDuplicate,
			PreviousCheckIn:    previous,
		}, nil

	case faults.IsConflict(writeErr):
		// The store already holds exactly this attendance state. Nothing
		// was lost; report it like the duplicate it is.
		metrics.CheckInsTotal.WithLabelValues("duplicate").Inc()
		return &types.CheckInResult{
			Booking:            current,
			IsDuplicateCheckIn: true,
			PreviousCheckIn:    previous,
		}, nil

	case faults.IsNetwork(writeErr):
		return s.queueOffline(bookingID, actualGuests, at, previous, isDuplicate)

	default:
		metrics.CheckInsTotal.WithLabelValues("failed").Inc()
		return nil, writeErr
	}
}

// queueOffline persists the check-in payload for later replay and reports a
// pending result. Only when even queueing fails does the caller see an error.
func (s *Service) queueOffline(bookingID int64, actualGuests int, at time.Time, previous *types.PreviousCheckIn, isDuplicate bool) (*types.CheckInResult, error) {
	payload := types.CheckInPayload{
		BookingID:    bookingID,
		ActualGuests: actualGuests,
		Timestamp:    at,
	}
	id, err := s.syncer.QueueOperation(types.OperationCheckIn, payload)
	if err != nil {
		metrics.CheckInsTotal.WithLabelValues("failed").Inc()
		return nil, faults.New(faults.KindUnknown, fmt.Errorf("failed to queue offline check-in: %w", err))
	}

	metrics.CheckInsTotal.WithLabelValues("queued").Inc()
	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("operation_id", id).
		Msg("check-in saved for later sync")

	return &types.CheckInResult{
		IsDuplicateCheckIn: isDuplicate,
		PreviousCheckIn:    previous,
		Pending:            true,
		OperationID:        id,
	}, nil
}

// Resolve looks up a booking by its exact code, the QR-scan path.
func (s *Service) Resolve(ctx context.Context, code string) (*types.Booking, error) {
	if code == "" {
		return nil, faults.Newf(faults.KindValidation, "booking code must not be empty")
	}

	var booking *types.Booking
	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		b, err := s.store.FindOne(ctx, code)
		if err != nil {
			return err
		}
		booking = b
		return nil
	}, resilient.Options{OperationID: "resolve-" + code})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Search returns bookings whose code starts with prefix, the manual path
// when scanning fails. Read-only; never queued for replay.
func (s *Service) Search(ctx context.Context, prefix string, limit int) ([]types.Booking, error) {
	if prefix == "" {
		return nil, faults.Newf(faults.KindValidation, "search prefix must not be empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	var bookings []types.Booking
	err := s.exec.Execute(ctx, func(ctx context.Context) error {
		bs, err := s.store.FindMany(ctx, prefix, limit)
		if err != nil {
			return err
		}
		bookings = bs
		return nil
	}, resilient.Options{OperationID: "search-" + prefix})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// HandleReplay replays a queued check-in against the store. It is the
// handler the syncer dispatches for the checkin operation type. The write
// is idempotent: replaying an identical payload twice leaves the record in
// the same state, and the store answers 409 for an exact repeat, which the
// syncer treats as already-applied.
func (s *Service) HandleReplay(ctx context.Context, op types.OfflineOperation) error {
	var payload types.CheckInPayload
	if err := json.Unmarshal(op.Data, &payload); err != nil {
		return faults.New(faults.KindValidation, fmt.Errorf("malformed queued payload: %w", err))
	}
	if err := ValidateCheckIn(payload.BookingID, payload.ActualGuests); err != nil {
		return err
	}

	// The store is called directly: the drain already runs online, and an
	// operation must never sit in both retry paths at once.
	_, err := s.store.UpdateOne(ctx, payload.BookingID, store.AttendanceUpdate{
		IsAttended:   true,
		AttendedAt:   payload.Timestamp,
		ActualGuests: payload.ActualGuests,
	})
	return err
}
