package netmon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProberHealthyEndpoint(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	prober := NewHTTPProber(server.URL)
	elapsed, err := prober.Probe(context.Background())

	require.NoError(t, err)
	assert.Greater(t, elapsed, time.Duration(0))
	assert.Equal(t, http.MethodHead, gotMethod, "liveness probe should carry no body")
}

func TestHTTPProberServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	prober := NewHTTPProber(server.URL)
	_, err := prober.Probe(context.Background())
	assert.Error(t, err)
}

func TestHTTPProberUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing is listening anymore

	prober := NewHTTPProber(server.URL)
	_, err := prober.Probe(context.Background())
	assert.Error(t, err)
}

func TestHTTPProberTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	prober := NewHTTPProber(server.URL).WithTimeout(20 * time.Millisecond)
	_, err := prober.Probe(context.Background())
	assert.Error(t, err)
}
