package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct{ err error }

func (s stubStore) Ping(ctx context.Context) error { return s.err }

type stubNATS bool

func (s stubNATS) IsConnected() bool { return bool(s) }

type stubScheduler int

func (s stubScheduler) Pending() int { return int(s) }

type stubGateway realtime.ConnectionStats

func (s stubGateway) GetStats() realtime.ConnectionStats { return realtime.ConnectionStats(s) }

func TestCheck(t *testing.T) {
	gateway := stubGateway{TotalConnections: 3, ActiveRooms: 2}

	tests := []struct {
		name        string
		store       any
		nc          NATSConn
		wantHealthy bool
		wantErrors  int
	}{
		{name: "memory store without NATS", store: struct{}{}, wantHealthy: true},
		{name: "reachable store and NATS", store: stubStore{}, nc: stubNATS(true), wantHealthy: true},
		{name: "store down", store: stubStore{err: errors.New("connection refused")}, wantHealthy: false, wantErrors: 1},
		{name: "NATS down", store: stubStore{}, nc: stubNATS(false), wantHealthy: false, wantErrors: 1},
		{
			name:        "everything down",
			store:       stubStore{err: errors.New("timeout")},
			nc:          stubNATS(false),
			wantHealthy: false,
			wantErrors:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker(tt.store, tt.nc, stubScheduler(4), gateway)

			status := checker.Check(context.Background())

			assert.Equal(t, tt.wantHealthy, status.Healthy)
			assert.Len(t, status.Errors, tt.wantErrors)
			assert.Equal(t, 4, status.PendingCompletions)
			assert.Equal(t, 3, status.Connections)
			assert.Equal(t, 2, status.ActiveRooms)
		})
	}
}

func TestServeHTTP(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewChecker(nil, nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var status Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.Healthy)
		assert.Nil(t, status.NATSConnected)
	})

	t.Run("unhealthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewChecker(nil, stubNATS(false), nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var status Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.False(t, status.Healthy)
		require.NotNil(t, status.NATSConnected)
		assert.False(t, *status.NATSConnected)
	})
}
