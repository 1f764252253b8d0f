package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateway struct {
	service   *Service
	server    *httptest.Server
	publisher *LocalPublisher
}

func startGateway(t *testing.T) *gateway {
	t.Helper()
	service := NewService(DefaultConnectionConfig())
	publisher := NewLocalPublisher(service.Manager(), clockwork.NewFakeClock())
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
	return &gateway{service: service, server: server, publisher: publisher}
}

func (g *gateway) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (g *gateway) waitForRoom(t *testing.T, roomID string, connections int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return g.service.GetStats().RoomConnections[roomID] == connections
	}, 2*time.Second, 10*time.Millisecond)
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func readEvent(t *testing.T, conn *websocket.Conn) events.RoomEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event events.RoomEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected no frame")
}

func TestConnectionManager_BroadcastsToSubscribers(t *testing.T) {
	g := startGateway(t)

	alice := g.dial(t, "?room_id=otter-teal-harbor&user_id=alice")
	bob := g.dial(t, "")
	outsider := g.dial(t, "")

	send(t, bob, ClientMessage{Type: FrameSubscribe, RoomID: "otter-teal-harbor"})
	send(t, outsider, ClientMessage{Type: FrameSubscribe, RoomID: "heron-amber-meadow"})
	g.waitForRoom(t, "otter-teal-harbor", 2)
	g.waitForRoom(t, "heron-amber-meadow", 1)

	payload := events.TimerCompletePayload{SessionID: "session-1"}
	require.NoError(t, g.publisher.Publish(context.Background(), "otter-teal-harbor", events.TypeTimerComplete, payload))

	for _, conn := range []*websocket.Conn{alice, bob} {
		event := readEvent(t, conn)
		assert.Equal(t, "otter-teal-harbor", event.RoomID)
		assert.Equal(t, events.TypeTimerComplete, event.Type)
		assert.NotEmpty(t, event.ID)

		parsed, err := events.ParsePayload(&event)
		require.NoError(t, err)
		assert.Equal(t, &payload, parsed)
	}
	expectSilence(t, outsider)
}

func TestConnectionManager_MultipleRoomsAndUnsubscribe(t *testing.T) {
	g := startGateway(t)
	conn := g.dial(t, "")

	send(t, conn, ClientMessage{Type: FrameSubscribe, RoomID: "room-a"})
	send(t, conn, ClientMessage{Type: FrameSubscribe, RoomID: "room-b"})
	g.waitForRoom(t, "room-a", 1)
	g.waitForRoom(t, "room-b", 1)

	ctx := context.Background()
	require.NoError(t, g.publisher.Publish(ctx, "room-a", events.TypeUserJoined, events.UserJoinedPayload{UserID: "u1"}))
	assert.Equal(t, "room-a", readEvent(t, conn).RoomID)
	require.NoError(t, g.publisher.Publish(ctx, "room-b", events.TypeUserJoined, events.UserJoinedPayload{UserID: "u2"}))
	assert.Equal(t, "room-b", readEvent(t, conn).RoomID)

	send(t, conn, ClientMessage{Type: FrameUnsubscribe, RoomID: "room-a"})
	g.waitForRoom(t, "room-a", 0)

	require.NoError(t, g.publisher.Publish(ctx, "room-a", events.TypeUserJoined, events.UserJoinedPayload{UserID: "u3"}))
	expectSilence(t, conn)

	stats := g.service.GetStats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 1, stats.ActiveRooms)
}

func TestConnectionManager_Reactions(t *testing.T) {
	g := startGateway(t)
	alice := g.dial(t, "?room_id=room-a")
	bob := g.dial(t, "?room_id=room-a")
	g.waitForRoom(t, "room-a", 2)

	// Rejected: no emoji.
	send(t, bob, ClientMessage{Type: FrameSendReaction, RoomID: "room-a", UserID: "bob", Nickname: "Bob"})
	send(t, bob, ClientMessage{Type: FrameSendReaction, RoomID: "room-a", UserID: "bob", Emoji: "🔥", Nickname: "Bob"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		event := readEvent(t, conn)
		assert.Equal(t, events.TypeWaveReaction, event.Type)

		var payload events.WaveReactionPayload
		require.NoError(t, json.Unmarshal(event.Data, &payload))
		assert.Equal(t, events.WaveReactionPayload{UserID: "bob", Emoji: "🔥", Nickname: "Bob"}, payload)
	}
}

func TestConnectionManager_DisconnectCleansUp(t *testing.T) {
	g := startGateway(t)
	conn := g.dial(t, "?room_id=room-a")
	g.waitForRoom(t, "room-a", 1)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		stats := g.service.GetStats()
		return stats.TotalConnections == 0 && stats.ActiveRooms == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_Stats(t *testing.T) {
	g := startGateway(t)
	g.dial(t, "?room_id=room-a")
	g.waitForRoom(t, "room-a", 1)

	resp, err := g.server.Client().Get(g.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, ConnectionStats{
		TotalConnections: 1,
		ActiveRooms:      1,
		RoomConnections:  map[string]int{"room-a": 1},
	}, stats)
}

func TestNATSBridge_ProcessMessage(t *testing.T) {
	cm := NewConnectionManager(DefaultConnectionConfig())
	bridge := &NATSBridge{manager: cm, prefix: "pomowave"}

	event, err := NewRoomEvent("room-a", events.TypeTimerComplete, events.TimerCompletePayload{SessionID: "s1"}, time.Unix(0, 0))
	require.NoError(t, err)
	data, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, bridge.processMessage(natsMsg(RoomSubject("pomowave", "room-a"), data)))
	select {
	case got := <-cm.broadcastCh:
		assert.Equal(t, "room-a", got.RoomID)
		assert.Equal(t, events.TypeTimerComplete, got.Type)
	default:
		t.Fatal("event was not queued for broadcast")
	}

	assert.Error(t, bridge.processMessage(natsMsg(RoomSubject("pomowave", "room-b"), data)))
	assert.Error(t, bridge.processMessage(natsMsg(RoomSubject("pomowave", "room-a"), []byte("{"))))
}

func TestNATSPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}

	config := DefaultNATSConfig()
	config.URL = url
	config.SubjectPrefix = "pomowave-test"
	nc, err := ConnectNATS(config)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	service := NewNATSService(DefaultConnectionConfig(), nc, config.SubjectPrefix)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go service.Start(ctx)

	r := chi.NewRouter()
	service.RegisterRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	g := &gateway{service: service, server: server}

	conn := g.dial(t, "?room_id=room-a")
	g.waitForRoom(t, "room-a", 1)

	// Let the bridge subscription reach the server.
	require.NoError(t, nc.Flush())
	time.Sleep(100 * time.Millisecond)

	publisher := NewNATSPublisher(nc, config.SubjectPrefix, clockwork.NewRealClock())
	require.NoError(t, publisher.Publish(ctx, "room-a", events.TypeUserJoined, events.UserJoinedPayload{UserID: "u1"}))

	event := readEvent(t, conn)
	assert.Equal(t, events.TypeUserJoined, event.Type)
}

func natsMsg(subject string, data []byte) *nats.Msg {
	return &nats.Msg{Subject: subject, Data: data}
}
