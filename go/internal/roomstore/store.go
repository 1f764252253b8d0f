// Package roomstore persists Room aggregates keyed by room code with an
// inactivity TTL that is refreshed on every write.
package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pomowave/pomowave/go/internal/models"
)

// DefaultTTL is how long an untouched room survives.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned when a room is absent or expired.
	ErrNotFound = errors.New("room not found")
	// ErrExists is returned by Create when the room code is taken.
	ErrExists = errors.New("room already exists")
	// ErrConflict is returned when an optimistic update keeps losing races.
	ErrConflict = errors.New("room update conflict")
)

// Store is the persistence contract for rooms.
type Store interface {
	// Create stores a new room. It fails with ErrExists if the code is live.
	Create(ctx context.Context, room *models.Room) error
	// Get returns a copy of the stored room.
	Get(ctx context.Context, id string) (*models.Room, error)
	// Update atomically reads the room, applies fn and writes the result back.
	// If fn returns an error nothing is written and the error is returned as is.
	Update(ctx context.Context, id string, fn func(*models.Room) error) (*models.Room, error)
	// ListActive returns every live room that has a running timer.
	ListActive(ctx context.Context) ([]*models.Room, error)
	Close() error
}

func encodeRoom(room *models.Room) ([]byte, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", room.ID, err)
	}
	return data, nil
}

func decodeRoom(data []byte) (*models.Room, error) {
	var room models.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if room.Sessions == nil {
		room.Sessions = []models.PomoSession{}
	}
	return &room, nil
}
