package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pomowave/pomowave/go/internal/events"
)

// NewRoomEvent wraps payload in the push event envelope.
func NewRoomEvent(roomID string, eventType events.Type, payload any, at time.Time) (*events.RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &events.RoomEvent{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}

// LocalPublisher delivers events to connections of this process only.
type LocalPublisher struct {
	manager *ConnectionManager
	clock   clockwork.Clock
}

// NewLocalPublisher creates a publisher that broadcasts through manager.
func NewLocalPublisher(manager *ConnectionManager, clock clockwork.Clock) *LocalPublisher {
	return &LocalPublisher{manager: manager, clock: clock}
}

func (p *LocalPublisher) Publish(ctx context.Context, roomID string, eventType events.Type, payload any) error {
	event, err := NewRoomEvent(roomID, eventType, payload, p.clock.Now())
	if err != nil {
		return err
	}
	p.manager.Broadcast(event)
	return nil
}
