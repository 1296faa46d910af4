package infra

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

func TestOrderClient_NotifyExpired(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewOrderClient(srv.URL+"/pedido/", time.Second, nil)
	require.NoError(t, client.NotifyExpired(context.Background(), "order-42"))

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/pedido/expired", gotPath)
	assert.Equal(t, "order-42", gotBody["pedidoId"])
}

func TestOrderClient_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	breaker := NewCircuitBreaker("orders", CircuitBreakerConfig{FailureThreshold: 1})
	client := NewOrderClient(srv.URL, time.Second, breaker)

	err := client.NotifyExpired(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Equal(t, CBClosed, breaker.State())
}

func TestOrderClient_ServerErrorsTripBreaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := NewCircuitBreaker("orders", CircuitBreakerConfig{FailureThreshold: 2, OpenTimeout: time.Hour})
	client := NewOrderClient(srv.URL, time.Second, breaker)

	for i := 0; i < 2; i++ {
		err := client.NotifyExpired(context.Background(), "o")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPermanent)
	}
	assert.ErrorIs(t, client.NotifyExpired(context.Background(), "o"), ErrCircuitOpen)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits), "open breaker must not reach the server")
}

func TestOrderClient_RespectsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewOrderClient(srv.URL, time.Minute, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := client.NotifyExpired(ctx, "slow")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
