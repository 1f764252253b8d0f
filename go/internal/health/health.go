// Package health reports whether the server's dependencies are reachable.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

const checkTimeout = 5 * time.Second

type Status struct {
	Healthy            bool     `json:"healthy"`
	StoreConnected     bool     `json:"store_connected"`
	NATSConnected      *bool    `json:"nats_connected,omitempty"`
	PendingCompletions int      `json:"pending_completions"`
	Connections        int      `json:"connections"`
	ActiveRooms        int      `json:"active_rooms"`
	Errors             []string `json:"errors"`
}

// Pinger is implemented by room stores with a remote backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NATSConn is the part of *nats.Conn the checker reads.
type NATSConn interface {
	IsConnected() bool
}

type PendingCounter interface {
	Pending() int
}

type StatsProvider interface {
	GetStats() realtime.ConnectionStats
}

// Checker aggregates the health of the store, NATS, the completion
// scheduler and the realtime gateway. Nil dependencies are skipped.
type Checker struct {
	store     any
	nc        NATSConn
	scheduler PendingCounter
	gateway   StatsProvider
}

// NewChecker creates a checker. store is pinged only if it implements Pinger.
func NewChecker(store any, nc NATSConn, scheduler PendingCounter, gateway StatsProvider) *Checker {
	return &Checker{
		store:     store,
		nc:        nc,
		scheduler: scheduler,
		gateway:   gateway,
	}
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy:        true,
		StoreConnected: true,
		Errors:         []string{},
	}

	if pinger, ok := h.store.(Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			status.StoreConnected = false
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("store ping failed: %v", err))
		}
	}

	if h.nc != nil {
		connected := h.nc.IsConnected()
		status.NATSConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.scheduler != nil {
		status.PendingCompletions = h.scheduler.Pending()
	}

	if h.gateway != nil {
		stats := h.gateway.GetStats()
		status.Connections = stats.TotalConnections
		status.ActiveRooms = stats.ActiveRooms
	}

	return status
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		log.Warn().Strs("errors", status.Errors).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
