package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsTokenAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/status":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"healthy","block_height":7,"version":"0.1.0","api_version":"v1"}`))
		case "/api/ledger/export":
			assert.Equal(t, "csv", r.URL.Query().Get("format"))
			w.Write([]byte("txId,blockNo\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"record not found: x"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok")
	st, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, "healthy", st.Status)
	assert.Equal(t, uint64(7), st.BlockHeight)

	var buf bytes.Buffer
	require.NoError(t, c.Stream("/api/ledger/export", map[string][]string{"format": {"csv"}}, &buf))
	assert.Equal(t, "txId,blockNo\n", buf.String())

	err = c.Get("/api/records/x", nil, &struct{}{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "record not found: x", apiErr.Message)
}

func TestProbesTreat503AsFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/health/readiness" {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"ready":false}`))
			return
		}
		w.Write([]byte(`{"alive":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	alive, err := c.Liveness()
	require.NoError(t, err)
	assert.True(t, alive)
	ready, err := c.Readiness()
	require.NoError(t, err)
	assert.False(t, ready)
}
