package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGateway struct {
	service   *realtime.Service
	publisher *realtime.LocalPublisher
	wsURL     string
}

func startTestGateway(t *testing.T) *testGateway {
	t.Helper()
	service := realtime.NewService(realtime.DefaultConnectionConfig())
	publisher := realtime.NewLocalPublisher(service.Manager(), clockwork.NewRealClock())
	service.Manager().SetPublisher(publisher)

	ctx, cancel := context.WithCancel(context.Background())
	go service.Start(ctx)

	r := chi.NewRouter()
	service.RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	wsURL, err := WebSocketURL(server.URL)
	require.NoError(t, err)
	return &testGateway{service: service, publisher: publisher, wsURL: wsURL}
}

func (g *testGateway) subscribe(t *testing.T, roomID, userID string, h Handlers) *Subscription {
	t.Helper()
	before := g.service.GetStats().RoomConnections[roomID]
	sub, err := Subscribe(context.Background(), g.wsURL, roomID, userID, h)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	require.Eventually(t, func() bool {
		return g.service.GetStats().RoomConnections[roomID] == before+1
	}, 2*time.Second, 10*time.Millisecond)
	return sub
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base     string
		expected string
		wantErr  bool
	}{
		{base: "http://localhost:8080", expected: "ws://localhost:8080/ws"},
		{base: "https://pomowave.example/", expected: "wss://pomowave.example/ws"},
		{base: "ftp://nope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := WebSocketURL(tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSubscription_DispatchesRoomEvents(t *testing.T) {
	g := startTestGateway(t)
	ctx := context.Background()

	started := make(chan events.WaveStartedPayload, 4)
	completed := make(chan events.TimerCompletePayload, 4)
	joined := make(chan events.UserJoinedWavePayload, 4)

	g.subscribe(t, "room-a", "bob", Handlers{
		OnWaveStarted:    func(p events.WaveStartedPayload) { started <- p },
		OnTimerComplete:  func(p events.TimerCompletePayload) { completed <- p },
		OnUserJoinedWave: func(p events.UserJoinedWavePayload) { joined <- p },
	})

	wave := events.WaveStartedPayload{SessionID: "s1", StartedBy: "alice", StarterName: "Alice", EndsAt: 1500, JoinDeadline: 60}
	require.NoError(t, g.publisher.Publish(ctx, "room-a", events.TypeWaveStarted, wave))
	assert.Equal(t, wave, receive(t, started))

	join := events.UserJoinedWavePayload{SessionID: "s1", UserID: "bob", Nickname: "Bob", Emoji: "🐳"}
	require.NoError(t, g.publisher.Publish(ctx, "room-a", events.TypeUserJoinedWave, join))
	assert.Equal(t, join, receive(t, joined))

	require.NoError(t, g.publisher.Publish(ctx, "room-a", events.TypeTimerComplete, events.TimerCompletePayload{SessionID: "s1"}))
	assert.Equal(t, "s1", receive(t, completed).SessionID)
}

func TestSubscription_SuppressesOwnWaveStarted(t *testing.T) {
	g := startTestGateway(t)
	ctx := context.Background()

	started := make(chan events.WaveStartedPayload, 4)
	joined := make(chan events.UserJoinedPayload, 4)
	g.subscribe(t, "room-a", "alice", Handlers{
		OnWaveStarted: func(p events.WaveStartedPayload) { started <- p },
		OnUserJoined:  func(p events.UserJoinedPayload) { joined <- p },
	})

	require.NoError(t, g.publisher.Publish(ctx, "room-a", events.TypeWaveStarted, events.WaveStartedPayload{SessionID: "s1", StartedBy: "alice"}))
	// Events are delivered in order, so once this arrives the wave-started was dropped.
	require.NoError(t, g.publisher.Publish(ctx, "room-a", events.TypeUserJoined, events.UserJoinedPayload{UserID: "carol"}))

	assert.Equal(t, "carol", receive(t, joined).UserID)
	assert.Empty(t, started)
}

func TestSubscription_ReactionsAndHandlerSwap(t *testing.T) {
	g := startTestGateway(t)

	first := make(chan events.WaveReactionPayload, 4)
	second := make(chan events.WaveReactionPayload, 4)

	alice := g.subscribe(t, "room-a", "alice", Handlers{
		OnWaveReaction: func(p events.WaveReactionPayload) { first <- p },
	})
	bob := g.subscribe(t, "room-a", "bob", Handlers{})

	require.NoError(t, bob.SendReaction("🎉", "Bob"))
	assert.Equal(t, events.WaveReactionPayload{UserID: "bob", Emoji: "🎉", Nickname: "Bob"}, receive(t, first))

	alice.SetHandlers(Handlers{
		OnWaveReaction: func(p events.WaveReactionPayload) { second <- p },
	})
	require.NoError(t, bob.SendReaction("🌊", "Bob"))
	assert.Equal(t, "🌊", receive(t, second).Emoji)
	assert.Empty(t, first)
}

func TestSubscription_CloseEndsReadLoop(t *testing.T) {
	g := startTestGateway(t)
	sub, err := Subscribe(context.Background(), g.wsURL, "room-a", "alice", Handlers{})
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	receive(t, sub.Done())
}
