package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/venuekit/usher/pkg/faults"
	"github.com/venuekit/usher/pkg/types"
)

// HTTPStore talks to the record-store HTTP API.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a client against the given base URL
func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithTimeout sets the per-request timeout
func (s *HTTPStore) WithTimeout(timeout time.Duration) *HTTPStore {
	s.client.Timeout = timeout
	return s
}

func (s *HTTPStore) FindOne(ctx context.Context, code string) (*types.Booking, error) {
	u := fmt.Sprintf("%s/api/bookings?code=%s", s.baseURL, url.QueryEscape(code))
	var booking types.Booking
	if err := s.do(ctx, http.MethodGet, u, nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *HTTPStore) FindMany(ctx context.Context, prefix string, limit int) ([]types.Booking, error) {
	u := fmt.Sprintf("%s/api/bookings?prefix=%s&limit=%d",
		s.baseURL, url.QueryEscape(prefix), limit)
	var bookings []types.Booking
	if err := s.do(ctx, http.MethodGet, u, nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *HTTPStore) GetOne(ctx context.Context, id int64) (*types.Booking, error) {
	u := s.baseURL + "/api/bookings/" + strconv.FormatInt(id, 10)
	var booking types.Booking
	if err := s.do(ctx, http.MethodGet, u, nil, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *HTTPStore) UpdateOne(ctx context.Context, id int64, upd AttendanceUpdate) (*types.Booking, error) {
	u := s.baseURL + "/api/bookings/" + strconv.FormatInt(id, 10) + "/attendance"
	var booking types.Booking
	if err := s.do(ctx, http.MethodPatch, u, upd, &booking); err != nil {
		return nil, err
	}
	return &booking, nil
}

// CreateBooking posts a new booking to the store API. Creation happens
// upstream of the sync engine; this exists for demo seeding and tests only,
// which is why it is a function rather than part of the Store interface.
func CreateBooking(ctx context.Context, baseURL string, b types.Booking) (*types.Booking, error) {
	s := NewHTTPStore(baseURL)
	var created types.Booking
	if err := s.do(ctx, http.MethodPost, s.baseURL+"/api/bookings", b, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// do issues one request and decodes the response into out. Failures come
// back classified: transport errors via Classify, HTTP errors via FromStatus.
func (s *HTTPStore) do(ctx context.Context, method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return faults.New(faults.KindUnknown, fmt.Errorf("failed to encode request: %w", err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return faults.New(faults.KindUnknown, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return faults.Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return faults.FromStatus(resp.StatusCode, fmt.Errorf("store returned HTTP %d: %s", resp.StatusCode, msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.New(faults.KindUnknown, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
