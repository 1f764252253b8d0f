package events

import (
	"encoding/json"
	"time"
)

// Event payload types that are shared between the room service, the realtime
// gateway and clients.

// Type names a room-scoped push event.
type Type string

const (
	TypeWaveStarted    Type = "wave-started"
	TypeTimerComplete  Type = "timer-complete"
	TypeUserJoined     Type = "user-joined"
	TypeUserJoinedWave Type = "user-joined-wave"
	TypeWaveReaction   Type = "wave-reaction"
)

// RoomEvent is the envelope every push event travels in.
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"roomId"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// WaveStartedPayload is the payload for a wave-started event
type WaveStartedPayload struct {
	SessionID    string `json:"sessionId"`
	StartedBy    string `json:"startedBy"`
	StarterName  string `json:"starterName"`
	EndsAt       int64  `json:"endsAt"`
	JoinDeadline int64  `json:"joinDeadline"`
}

// TimerCompletePayload is the payload for a timer-complete event
type TimerCompletePayload struct {
	SessionID string `json:"sessionId"`
}

// UserJoinedPayload is the payload for a user-joined event
type UserJoinedPayload struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Emoji    string `json:"emoji"`
}

// UserJoinedWavePayload is the payload for a user-joined-wave event
type UserJoinedWavePayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	Emoji     string `json:"emoji"`
}

// WaveReactionPayload is the payload for a wave-reaction event
type WaveReactionPayload struct {
	UserID   string `json:"userId"`
	Emoji    string `json:"emoji"`
	Nickname string `json:"nickname"`
}

// ParsePayload decodes event data into the payload struct for its type.
func ParsePayload(event *RoomEvent) (interface{}, error) {
	var target interface{}
	switch event.Type {
	case TypeWaveStarted:
		target = &WaveStartedPayload{}
	case TypeTimerComplete:
		target = &TimerCompletePayload{}
	case TypeUserJoined:
		target = &UserJoinedPayload{}
	case TypeUserJoinedWave:
		target = &UserJoinedWavePayload{}
	case TypeWaveReaction:
		target = &WaveReactionPayload{}
	default:
		return nil, nil // Unknown event type
	}

	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}
