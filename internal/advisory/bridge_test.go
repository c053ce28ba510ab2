package advisory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T, h http.HandlerFunc, timeout time.Duration) (*Bridge, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	b := NewBridge(Config{URL: srv.URL, Timeout: timeout}, nil)
	b.newSessionID = func() string { return "sess-1" }
	return b, &hits
}

func TestBridge_Ask_SendsContractAndReturnsMessage(t *testing.T) {
	b, hits := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what should I plant this month", req["message"])
		assert.Equal(t, "sess-1", req["sessionId"])
		assert.Equal(t, "en-IN", req["language"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Sow wheat after the first rain"}`))
	}, time.Second)

	got := b.Ask(context.Background(), "what should I plant this month", "en-IN")
	assert.Equal(t, "Sow wheat after the first rain", got)
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))
}

func TestBridge_Ask_FallbackOnNon2xx(t *testing.T) {
	b, hits := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream exploded"}`))
	}, time.Second)

	assert.Equal(t, FallbackMessage, b.Ask(context.Background(), "q", "en-IN"))
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "no retries")
}

func TestBridge_Ask_FallbackOnMalformedBody(t *testing.T) {
	b, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}, time.Second)

	assert.Equal(t, FallbackMessage, b.Ask(context.Background(), "q", "en-IN"))
}

func TestBridge_Ask_FallbackOnEmptyMessage(t *testing.T) {
	b, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"   "}`))
	}, time.Second)

	assert.Equal(t, FallbackMessage, b.Ask(context.Background(), "q", "en-IN"))
}

func TestBridge_Ask_FallbackOnTimeout(t *testing.T) {
	release := make(chan struct{})
	b, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 30*time.Millisecond)
	defer close(release)

	start := time.Now()
	assert.Equal(t, FallbackMessage, b.Ask(context.Background(), "q", "en-IN"))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBridge_Ask_FallbackOnUnreachable(t *testing.T) {
	b := NewBridge(Config{URL: "http://127.0.0.1:1/advice", Timeout: time.Second}, nil)
	assert.Equal(t, FallbackMessage, b.Ask(context.Background(), "q", "en-IN"))
}
