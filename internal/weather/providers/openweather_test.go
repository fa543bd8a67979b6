package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: time.Millisecond,
	MaxInterval:     5 * time.Millisecond,
}

func TestFetchDecodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("appid"))
		w.Write([]byte(`{"dt":1700003600,"main":{"temp":21.0},"weather":[{"main":"Clear"}]}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient(srv.Client(), fastBackoff)
	p, err := c.Fetch(context.Background(), srv.URL+"/weather?appid=k")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1700003600"), p["dt"])
	main, ok := p.Object("main")
	require.True(t, ok)
	assert.Equal(t, json.Number("21.0"), main["temp"])
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"name":"ok"}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient(srv.Client(), fastBackoff)
	p, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", p["name"])
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchGivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenWeatherClient(srv.Client(), fastBackoff)
	p, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Nil(t, p)
	// First attempt plus MaxRetries.
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestFetchClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenWeatherClient(srv.Client(), fastBackoff)
	p, err := c.Fetch(context.Background(), srv.URL+"?appid=secret")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchNetworkErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewOpenWeatherClient(&http.Client{Timeout: time.Second}, BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond})
	_, err := c.Fetch(context.Background(), addr+"/weather?appid=secret")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient(srv.Client(), fastBackoff)
	_, err := c.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestDoRequestRejectsBadConfig(t *testing.T) {
	_, err := doRequestWithResilience(context.Background(), HTTPClientConfig{}, newCircuitBreaker("t"), nil)
	assert.ErrorIs(t, err, errNoHTTPClient)

	_, err = doRequestWithResilience(context.Background(), HTTPClientConfig{Client: http.DefaultClient}, newCircuitBreaker("t"), nil)
	assert.ErrorIs(t, err, errInvalidConfig)
}
