package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		data string
		want interface{}
	}{
		{
			name: "wave started",
			typ:  TypeWaveStarted,
			data: `{"sessionId":"s","startedBy":"u","starterName":"alice","endsAt":10,"joinDeadline":5}`,
			want: &WaveStartedPayload{SessionID: "s", StartedBy: "u", StarterName: "alice", EndsAt: 10, JoinDeadline: 5},
		},
		{
			name: "timer complete",
			typ:  TypeTimerComplete,
			data: `{"sessionId":"s"}`,
			want: &TimerCompletePayload{SessionID: "s"},
		},
		{
			name: "reaction",
			typ:  TypeWaveReaction,
			data: `{"userId":"u","emoji":"🔥","nickname":"bob"}`,
			want: &WaveReactionPayload{UserID: "u", Emoji: "🔥", Nickname: "bob"},
		},
		{
			name: "unknown type",
			typ:  Type("mystery"),
			data: `{}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePayload(&RoomEvent{Type: tt.typ, Data: json.RawMessage(tt.data)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePayload_BadData(t *testing.T) {
	_, err := ParsePayload(&RoomEvent{Type: TypeUserJoined, Data: json.RawMessage(`{"userId":`)})
	assert.Error(t, err)
}
