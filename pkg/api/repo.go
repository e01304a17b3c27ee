package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/venuekit/usher/pkg/store"
	"github.com/venuekit/usher/pkg/types"
)

var (
	// ErrNotFound means no booking matches the id or code.
	ErrNotFound = errors.New("booking not found")

	// ErrAlreadyApplied means the attendance update is byte-identical to the
	// recorded state; replaying it is a no-op the API answers with 409.
	ErrAlreadyApplied = errors.New("attendance update already applied")
)

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	code            TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL,
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	expected_guests INTEGER NOT NULL DEFAULT 0,
	event_start     TEXT NOT NULL DEFAULT '',
	event_end       TEXT NOT NULL DEFAULT '',
	is_attended     INTEGER NOT NULL DEFAULT 0,
	attended_at     TEXT,
	actual_guests   INTEGER,
	updated_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bookings_code ON bookings(code);
`

// BookingRepo stores bookings in SQLite.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo opens (or creates) the booking database at path
func NewBookingRepo(path string) (*BookingRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &BookingRepo{db: db}, nil
}

// Close closes the database
func (r *BookingRepo) Close() error {
	return r.db.Close()
}

// Ping verifies the database is reachable
func (r *BookingRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const bookingColumns = `id, code, name, phone, email, expected_guests,
	event_start, event_end, is_attended, attended_at, actual_guests, updated_at`

// Get returns the booking with the given id
func (r *BookingRepo) Get(ctx context.Context, id int64) (*types.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return scanBooking(row)
}

// FindByCode returns the booking with the given exact code
func (r *BookingRepo) FindByCode(ctx context.Context, code string) (*types.Booking, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE code = ?`, code)
	return scanBooking(row)
}

// SearchPrefix returns up to limit bookings whose code starts with prefix
func (r *BookingRepo) SearchPrefix(ctx context.Context, prefix string, limit int) ([]types.Booking, error) {
	// Escape LIKE wildcards so a literal prefix matches literally
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		 WHERE code LIKE ? ESCAPE '\' ORDER BY code LIMIT ?`,
		escaped+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search bookings: %w", err)
	}
	defer rows.Close()

	bookings := []types.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// Create inserts a booking and fills in its generated id
func (r *BookingRepo) Create(ctx context.Context, b *types.Booking) error {
	b.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (code, name, phone, email, expected_guests,
			event_start, event_end, is_attended, attended_at, actual_guests, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?)`,
		b.Code, b.Name, b.Phone, b.Email, b.ExpectedGuests,
		formatTime(b.EventStart), formatTime(b.EventEnd), formatTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

// UpdateAttendance overwrites the attendance fields, last-write-wins. An
// update identical to the recorded state returns ErrAlreadyApplied so a
// replayed write can be told apart from a fresh one.
func (r *BookingRepo) UpdateAttendance(ctx context.Context, id int64, upd store.AttendanceUpdate) (*types.Booking, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.IsAttended == upd.IsAttended &&
		current.ActualGuests != nil && *current.ActualGuests == upd.ActualGuests &&
		current.AttendedAt != nil && current.AttendedAt.Equal(upd.AttendedAt) {
		return nil, ErrAlreadyApplied
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE bookings
		 SET is_attended = ?, attended_at = ?, actual_guests = ?, updated_at = ?
		 WHERE id = ?`,
		boolToInt(upd.IsAttended), formatTime(upd.AttendedAt), upd.ActualGuests,
		formatTime(time.Now().UTC()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update attendance: %w", err)
	}

	return r.Get(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*types.Booking, error) {
	var b types.Booking
	var eventStart, eventEnd, updatedAt string
	var attendedAt sql.NullString
	var actualGuests sql.NullInt64
	var attended int

	err := row.Scan(&b.ID, &b.Code, &b.Name, &b.Phone, &b.Email, &b.ExpectedGuests,
		&eventStart, &eventEnd, &attended, &attendedAt, &actualGuests, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan booking: %w", err)
	}

	b.IsAttended = attended != 0
	b.EventStart = parseTime(eventStart)
	b.EventEnd = parseTime(eventEnd)
	b.UpdatedAt = parseTime(updatedAt)
	if attendedAt.Valid && attendedAt.String != "" {
		t := parseTime(attendedAt.String)
		b.AttendedAt = &t
	}
	if actualGuests.Valid {
		g := int(actualGuests.Int64)
		b.ActualGuests = &g
	}
	return &b, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
