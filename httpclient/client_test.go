package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "42", r.Header.Get("x-client-id"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "evt-1", body["eventId"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200}`))
	}))
	t.Cleanup(srv.Close)

	var out struct {
		Status int `json:"status"`
	}
	err := PostJSON(context.Background(), srv.Client(), srv.URL,
		map[string]string{"x-client-id": "42"},
		map[string]string{"eventId": "evt-1"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 200, out.Status)
}

func TestGetJSONRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/path", r.URL.Path)
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	t.Cleanup(srv.Close)

	var out struct {
		Value string `json:"value"`
	}
	err := GetJSON(context.Background(), srv.Client(), srv.URL+"/path", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Value)
}

func TestStatusErrorCarriesBodySnippet(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream exploded"}`))
	}))
	t.Cleanup(srv.Close)

	err := GetJSON(context.Background(), srv.Client(), srv.URL, nil, nil)
	require.Error(t, err)

	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusBadGateway, serr.Code)
	assert.Equal(t, http.MethodGet, serr.Method)
	assert.Contains(t, serr.Body, "upstream exploded")
	assert.Contains(t, serr.Error(), "502")
}

func TestStatusErrorBodyIsBounded(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	t.Cleanup(srv.Close)

	err := GetJSON(context.Background(), srv.Client(), srv.URL, nil, nil)
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Len(t, serr.Body, 1024)
}

func TestNilOutDiscardsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ignored":true}`))
	}))
	t.Cleanup(srv.Close)

	require.NoError(t, PostJSON(context.Background(), srv.Client(), srv.URL, nil, map[string]string{}, nil))
}

func TestDecodeFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	t.Cleanup(srv.Close)

	var out map[string]any
	err := GetJSON(context.Background(), srv.Client(), srv.URL, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	client := New(Options{})
	assert.Equal(t, DefaultRequestTimeout, client.Timeout)

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Nil(t, transport.TLSClientConfig)

	client = New(Options{RequestTimeout: time.Minute, InsecureSkipVerify: true})
	assert.Equal(t, time.Minute, client.Timeout)
	transport = client.Transport.(*http.Transport)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}
