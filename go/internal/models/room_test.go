package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRoom() *Room {
	room := NewRoom("fox-blue-river", User{ID: "u1", Nickname: "alice", Emoji: "🦊"})
	room.Users = append(room.Users, User{ID: "u2", Nickname: "bob", Emoji: "🐼"})
	room.Timer = &Timer{EndsAt: 1_700_001_500_000, DurationMinutes: 25, StartedBy: "u1"}
	room.Sessions = append(room.Sessions, PomoSession{
		ID:                  "s1",
		StartedAt:           1_700_000_000_000,
		StartedBy:           "u1",
		DurationMinutes:     25,
		JoinDeadline:        1_700_000_060_000,
		Participants:        []string{"u1"},
		PartialParticipants: []string{"u2"},
		WorkDeclarations:    map[string]string{"u1": "taxes"},
	})
	return room
}

func TestRoom_JSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		room *Room
	}{
		{name: "fresh room", room: NewRoom("cat-red-lake", User{ID: "h", Nickname: "host", Emoji: "🐱"})},
		{name: "room with active wave and optional fields", room: sampleRoom()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.room)
			require.NoError(t, err)

			var decoded Room
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.room, &decoded)
		})
	}
}

func TestRoom_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(sampleRoom())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "timer")
	assert.Contains(t, raw, "sessions")

	users := raw["users"].([]any)
	assert.Equal(t, true, users[0].(map[string]any)["isHost"])

	session := raw["sessions"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "startedAt", "startedBy", "durationMinutes", "joinDeadline", "participants", "partialParticipants", "workDeclarations"} {
		assert.Contains(t, session, key)
	}

	idle, err := json.Marshal(NewRoom("x", User{ID: "h"}))
	require.NoError(t, err)
	assert.NotContains(t, string(idle), "timer")
	assert.Contains(t, string(idle), `"sessions":[]`)
}

func TestRoom_State(t *testing.T) {
	room := sampleRoom()
	start := FromMillis(room.Sessions[0].StartedAt)

	assert.Equal(t, WaveStateActive, room.State(start))
	assert.Equal(t, WaveStateActive, room.State(start.Add(60*time.Second)))
	assert.Equal(t, WaveStateLateActive, room.State(start.Add(61*time.Second)))

	room.Timer = nil
	assert.Equal(t, WaveStateIdle, room.State(start))
	assert.Nil(t, room.ActiveSession())
}

func TestRoom_RemainingAndWaves(t *testing.T) {
	room := sampleRoom()
	endsAt := FromMillis(room.Timer.EndsAt)

	assert.Equal(t, 10*time.Second, room.Remaining(endsAt.Add(-10*time.Second)))
	assert.Equal(t, time.Duration(0), room.Remaining(endsAt.Add(time.Hour)))
	assert.Equal(t, 0, room.WavesCompleted())

	room.Timer = nil
	assert.Equal(t, 1, room.WavesCompleted())
	assert.Equal(t, time.Duration(0), room.Remaining(endsAt))
}

func TestPomoSession_Membership(t *testing.T) {
	s := &PomoSession{Participants: []string{"a"}}

	assert.False(t, s.AddParticipant("a"))
	assert.True(t, s.AddPartialParticipant("b"))
	assert.False(t, s.AddParticipant("b"))
	assert.False(t, s.AddPartialParticipant("b"))
	assert.True(t, s.AddParticipant("c"))

	assert.Equal(t, []string{"a", "c"}, s.Participants)
	assert.Equal(t, []string{"b"}, s.PartialParticipants)

	s.Declare("a", "")
	assert.Nil(t, s.WorkDeclarations)
	s.Declare("a", "reading")
	assert.Equal(t, "reading", s.WorkDeclarations["a"])
}
