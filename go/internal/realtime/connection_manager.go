// Package realtime fans room events out to websocket clients. A connection
// subscribes to any number of rooms and receives every event published for
// them; delivery is best effort.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/rs/zerolog/log"
)

// Client frame types.
const (
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"
	FrameSendReaction = "send-reaction"
)

// ClientMessage is a frame sent by a client over the socket.
type ClientMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	Emoji    string `json:"emoji,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// Publisher publishes a room event to every subscriber of the room.
type Publisher interface {
	Publish(ctx context.Context, roomID string, eventType events.Type, payload any) error
}

// ConnectionManager manages WebSocket connections and their room subscriptions
type ConnectionManager struct {
	// Connection pools organized by room ID
	roomConnections map[string]map[*Connection]bool
	connections     map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan *events.RoomEvent

	// reactions are re-published through this so they reach other gateways
	publisher Publisher
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	// rooms is guarded by Manager.mu
	rooms map[string]bool
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		connections:     make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan *events.RoomEvent, 1000),
	}
}

// SetPublisher sets where client reactions are published. Without one,
// reactions are broadcast to local connections only.
func (cm *ConnectionManager) SetPublisher(p Publisher) {
	cm.publisher = p
}

// Start processes broadcasts until ctx is cancelled, then closes every
// connection.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case event := <-cm.broadcastCh:
			cm.handleBroadcast(event)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. If roomID is
// set the connection starts subscribed to it.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID, roomID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		rooms:       make(map[string]bool),
	}

	cm.registerConnection(connection)
	if roomID != "" {
		cm.Subscribe(connection, roomID)
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true
}

// unregisterConnection drops the connection from every room and closes its
// send channel. Safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.connections[conn] {
		return
	}
	delete(cm.connections, conn)

	for roomID := range conn.rooms {
		cm.removeFromRoom(conn, roomID)
	}
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID).
		Msg("connection unregistered")
}

// Subscribe adds the connection to a room's pool.
func (cm *ConnectionManager) Subscribe(conn *Connection, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.connections[conn] {
		return
	}
	if cm.roomConnections[roomID] == nil {
		cm.roomConnections[roomID] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomID][conn] = true
	conn.rooms[roomID] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", roomID).
		Int("room_connections", len(cm.roomConnections[roomID])).
		Msg("connection subscribed")
}

// Unsubscribe removes the connection from a room's pool.
func (cm *ConnectionManager) Unsubscribe(conn *Connection, roomID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeFromRoom(conn, roomID)
}

// removeFromRoom must be called with mu held.
func (cm *ConnectionManager) removeFromRoom(conn *Connection, roomID string) {
	delete(conn.rooms, roomID)
	connections, ok := cm.roomConnections[roomID]
	if !ok {
		return
	}
	delete(connections, conn)
	if len(connections) == 0 {
		delete(cm.roomConnections, roomID)
	}
}

// Broadcast queues an event for every connection subscribed to its room.
func (cm *ConnectionManager) Broadcast(event *events.RoomEvent) {
	select {
	case cm.broadcastCh <- event:
	default:
		log.Warn().Str("room_id", event.RoomID).Str("event_type", string(event.Type)).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(event *events.RoomEvent) {
	eventData, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	var slow []*Connection
	delivered := 0

	cm.mu.RLock()
	for conn := range cm.roomConnections[event.RoomID] {
		select {
		case conn.Send <- eventData:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("user_id", conn.UserID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(event.Type)).
		Str("room_id", event.RoomID).
		Int("connections", delivered).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// ConnectionStats summarises active connections.
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.connections),
		ActiveRooms:      len(cm.roomConnections),
		RoomConnections:  make(map[string]int, len(cm.roomConnections)),
	}
	for roomID, connections := range cm.roomConnections {
		stats.RoomConnections[roomID] = len(connections)
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage processes subscription and reaction frames
func (c *Connection) handleClientMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}

	switch msg.Type {
	case FrameSubscribe:
		if msg.RoomID == "" {
			log.Warn().Str("connection_id", c.ID).Msg("subscribe without room id")
			return
		}
		c.Manager.Subscribe(c, msg.RoomID)
	case FrameUnsubscribe:
		c.Manager.Unsubscribe(c, msg.RoomID)
	case FrameSendReaction:
		c.Manager.handleReaction(msg)
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("ignoring unknown client message")
	}
}

// handleReaction re-broadcasts a reaction to the room. The nickname is taken
// as sent by the client.
func (cm *ConnectionManager) handleReaction(msg ClientMessage) {
	if msg.RoomID == "" || msg.Emoji == "" {
		log.Warn().Str("room_id", msg.RoomID).Msg("dropping reaction without room id or emoji")
		return
	}

	payload := events.WaveReactionPayload{
		UserID:   msg.UserID,
		Emoji:    msg.Emoji,
		Nickname: msg.Nickname,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cm.config.WriteTimeout)
	defer cancel()

	if cm.publisher != nil {
		if err := cm.publisher.Publish(ctx, msg.RoomID, events.TypeWaveReaction, payload); err != nil {
			log.Error().Err(err).Str("room_id", msg.RoomID).Msg("failed to publish reaction")
		}
		return
	}

	event, err := NewRoomEvent(msg.RoomID, events.TypeWaveReaction, payload, time.Now())
	if err != nil {
		log.Error().Err(err).Str("room_id", msg.RoomID).Msg("failed to build reaction event")
		return
	}
	cm.Broadcast(event)
}
