package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuekit/usher/pkg/store"
	"github.com/venuekit/usher/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := NewBookingRepo(filepath.Join(t.TempDir(), "bookings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	server := httptest.NewServer(NewServer(repo).Handler())
	t.Cleanup(server.Close)
	return server
}

func createTestBooking(t *testing.T, baseURL, code string) types.Booking {
	t.Helper()
	body, err := json.Marshal(types.Booking{
		Code:           code,
		Name:           "Dana Whitfield",
		Phone:          "+1-555-0100",
		ExpectedGuests: 4,
		EventStart:     time.Now().Add(time.Hour),
		EventEnd:       time.Now().Add(4 * time.Hour),
	})
	require.NoError(t, err)

	resp, err := http.Post(baseURL+"/api/bookings", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created types.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Positive(t, created.ID)
	return created
}

func patchAttendance(t *testing.T, baseURL string, id int64, upd store.AttendanceUpdate) *http.Response {
	t.Helper()
	body, err := json.Marshal(upd)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/api/bookings/%d/attendance", baseURL, id), bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealthIsZeroBody(t *testing.T) {
	server := newTestServer(t)

	for _, method := range []string{http.MethodHead, http.MethodGet} {
		t.Run(method, func(t *testing.T) {
			req, err := http.NewRequest(method, server.URL+"/health", nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusNoContent, resp.StatusCode)
			assert.Equal(t, int64(0), resp.ContentLength, "liveness must stay payload-free")
		})
	}
}

func TestReady(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ready ReadyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ready))
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["database"])
}

func TestCreateAndGetBooking(t *testing.T) {
	server := newTestServer(t)
	created := createTestBooking(t, server.URL, "EVT-001")

	resp, err := http.Get(fmt.Sprintf("%s/api/bookings/%d", server.URL, created.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "EVT-001", got.Code)
	assert.False(t, got.IsAttended)
	assert.Nil(t, got.ActualGuests)
}

func TestGetBookingNotFound(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/bookings/9999")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFindByCode(t *testing.T) {
	server := newTestServer(t)
	created := createTestBooking(t, server.URL, "EVT-001")

	resp, err := http.Get(server.URL + "/api/bookings?code=EVT-001")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, created.ID, got.ID)

	resp, err = http.Get(server.URL + "/api/bookings?code=NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchByPrefix(t *testing.T) {
	server := newTestServer(t)
	createTestBooking(t, server.URL, "EVT-001")
	createTestBooking(t, server.URL, "EVT-002")
	createTestBooking(t, server.URL, "GALA-001")

	resp, err := http.Get(server.URL + "/api/bookings?prefix=EVT&limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []types.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "EVT-001", got[0].Code, "results are ordered by code")
	assert.Equal(t, "EVT-002", got[1].Code)
}

func TestSearchRequiresCodeOrPrefix(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/bookings")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateAttendanceLastWriteWins(t *testing.T) {
	server := newTestServer(t)
	created := createTestBooking(t, server.URL, "EVT-001")

	first := time.Now().Add(-time.Hour).Truncate(time.Second)
	resp := patchAttendance(t, server.URL, created.ID, store.AttendanceUpdate{
		IsAttended: true, AttendedAt: first, ActualGuests: 5,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.Booking
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.IsAttended)
	require.NotNil(t, got.ActualGuests)
	assert.Equal(t, 5, *got.ActualGuests)

	// A different write overwrites the first unconditionally
	second := time.Now().Truncate(time.Second)
	resp = patchAttendance(t, server.URL, created.ID, store.AttendanceUpdate{
		IsAttended: true, AttendedAt: second, ActualGuests: 2,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got.ActualGuests)
	assert.Equal(t, 2, *got.ActualGuests)
	require.NotNil(t, got.AttendedAt)
	assert.Equal(t, second.Unix(), got.AttendedAt.Unix())
}

func TestIdenticalReplayAnswers409(t *testing.T) {
	server := newTestServer(t)
	created := createTestBooking(t, server.URL, "EVT-001")

	at := time.Now().Truncate(time.Second)
	upd := store.AttendanceUpdate{IsAttended: true, AttendedAt: at, ActualGuests: 3}

	resp := patchAttendance(t, server.URL, created.ID, upd)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Byte-identical replay of the same payload
	resp = patchAttendance(t, server.URL, created.ID, upd)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode,
		"an exact repeat means the write already landed")
}

func TestUpdateAttendanceValidation(t *testing.T) {
	server := newTestServer(t)
	created := createTestBooking(t, server.URL, "EVT-001")

	tests := []struct {
		name string
		upd  store.AttendanceUpdate
	}{
		{"guests out of range", store.AttendanceUpdate{IsAttended: true, AttendedAt: time.Now(), ActualGuests: types.MaxActualGuests + 1}},
		{"negative guests", store.AttendanceUpdate{IsAttended: true, AttendedAt: time.Now(), ActualGuests: -1}},
		{"missing attended_at", store.AttendanceUpdate{IsAttended: true, ActualGuests: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := patchAttendance(t, server.URL, created.ID, tt.upd)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestUpdateAttendanceUnknownBooking(t *testing.T) {
	server := newTestServer(t)

	resp := patchAttendance(t, server.URL, 9999, store.AttendanceUpdate{
		IsAttended: true, AttendedAt: time.Now(), ActualGuests: 2,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateBookingValidation(t *testing.T) {
	server := newTestServer(t)

	body, err := json.Marshal(types.Booking{Name: "No Code"})
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/api/bookings", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchPrefixEscapesWildcards(t *testing.T) {
	repo, err := NewBookingRepo(filepath.Join(t.TempDir(), "bookings.db"))
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	for _, code := range []string{"EVT%1", "EVTA1"} {
		require.NoError(t, repo.Create(ctx, &types.Booking{Code: code, Name: "n"}))
	}

	got, err := repo.SearchPrefix(ctx, "EVT%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1, "a literal percent must not act as a wildcard")
	assert.Equal(t, "EVT%1", got[0].Code)
}
