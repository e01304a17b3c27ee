package store

import (
	"context"
	"time"

	"github.com/venuekit/usher/pkg/types"
)

// AttendanceUpdate is the only write this system performs against a booking.
// It overwrites the attendance fields unconditionally (last-write-wins).
type AttendanceUpdate struct {
	IsAttended   bool      `json:"is_attended"`
	AttendedAt   time.Time `json:"attended_at"`
	ActualGuests int       `json:"actual_guests"`
}

// Store is the remote record store consumed by the core. Implementations
// return errors already classified by package faults: not_found when the
// record is absent, conflict when an identical update was already applied,
// validation for rejected input, database for server-side failure, and
// connection/timeout for transport trouble.
type Store interface {
	// FindOne resolves a booking by its exact code.
	FindOne(ctx context.Context, code string) (*types.Booking, error)

	// FindMany returns bookings whose code starts with prefix, up to limit.
	FindMany(ctx context.Context, prefix string, limit int) ([]types.Booking, error)

	// GetOne resolves a booking by numeric id.
	GetOne(ctx context.Context, id int64) (*types.Booking, error)

	// UpdateOne writes the attendance fields and returns the updated record.
	UpdateOne(ctx context.Context, id int64, upd AttendanceUpdate) (*types.Booking, error)
}
