package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestKindTraitsCoverage pins every declared kind to a real traits entry so
// a new kind cannot silently fall through to the unknown defaults.
func TestKindTraitsCoverage(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			e := New(kind, nil)
			assert.NotEmpty(t, e.Title)
			assert.NotEmpty(t, e.Message)
			assert.NotEmpty(t, e.Actions)
			assert.NotEmpty(t, e.Category)
			assert.NotEmpty(t, e.Severity)
			if kind != KindUnknown {
				assert.NotEqual(t, CategoryUnknown, e.Category,
					"declared kind must not map to the unknown category")
			}
		})
	}
}

func TestKindCategories(t *testing.T) {
	tests := []struct {
		kind      Kind
		category  Category
		retryable bool
	}{
		{KindOffline, CategoryNetwork, true},
		{KindConnection, CategoryNetwork, true},
		{KindTimeout, CategoryNetwork, true},
		{KindNotFound, CategoryDatabase, false},
		{KindValidation, CategoryValidation, false},
		{KindConflict, CategoryDatabase, false},
		{KindDatabase, CategoryDatabase, true},
		{KindPermission, CategoryPermission, false},
		{KindUnknown, CategoryUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			e := New(tt.kind, nil)
			assert.Equal(t, tt.category, e.Category)
			assert.Equal(t, tt.retryable, e.Retryable)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{
			name: "already classified passes through",
			err:  New(KindValidation, errors.New("bad input")),
			kind: KindValidation,
		},
		{
			name: "classified error survives wrapping",
			err:  fmt.Errorf("check-in failed: %w", New(KindConflict, nil)),
			kind: KindConflict,
		},
		{
			name: "context deadline is a timeout",
			err:  context.DeadlineExceeded,
			kind: KindTimeout,
		},
		{
			name: "net timeout is a timeout",
			err:  &net.DNSError{Err: "lookup timed out", IsTimeout: true},
			kind: KindTimeout,
		},
		{
			name: "net op error is a connection failure",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")},
			kind: KindConnection,
		},
		{
			name: "plain error is unknown",
			err:  errors.New("something odd"),
			kind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.err).Kind)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsNetwork(nil))
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusConflict, KindConflict},
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusUnauthorized, KindPermission},
		{http.StatusForbidden, KindPermission},
		{http.StatusInternalServerError, KindDatabase},
		{http.StatusBadGateway, KindDatabase},
		{http.StatusServiceUnavailable, KindDatabase},
		{http.StatusTeapot, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.kind, FromStatus(tt.status, nil).Kind)
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := New(KindConnection, cause)

	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "root cause")
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsOffline(New(KindOffline, nil)))
	assert.False(t, IsOffline(New(KindConnection, nil)))

	assert.True(t, IsConflict(New(KindConflict, nil)))
	assert.False(t, IsConflict(New(KindDatabase, nil)))

	assert.True(t, IsNetwork(New(KindTimeout, nil)))
	assert.False(t, IsNetwork(New(KindValidation, nil)))

	assert.True(t, IsRetryable(New(KindDatabase, nil)))
	assert.False(t, IsRetryable(New(KindNotFound, nil)))
}
