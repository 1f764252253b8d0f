package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

// Handlers receives room push events. Any field may be nil.
type Handlers struct {
	OnWaveStarted    func(events.WaveStartedPayload)
	OnTimerComplete  func(events.TimerCompletePayload)
	OnUserJoined     func(events.UserJoinedPayload)
	OnUserJoinedWave func(events.UserJoinedWavePayload)
	OnWaveReaction   func(events.WaveReactionPayload)
}

// Subscription is one socket subscribed to one room. Handlers can be swapped
// at any time without reconnecting.
type Subscription struct {
	conn   *websocket.Conn
	roomID string
	userID string

	handlers atomic.Pointer[Handlers]

	writeMu sync.Mutex
	done    chan struct{}
}

// WebSocketURL turns a server base URL such as http://localhost:8080 into
// its websocket endpoint.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// Subscribe dials wsURL and subscribes to roomID. Events started by userID
// itself are not delivered to OnWaveStarted.
func Subscribe(ctx context.Context, wsURL, roomID, userID string, handlers Handlers) (*Subscription, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	s := &Subscription{
		conn:   conn,
		roomID: roomID,
		userID: userID,
		done:   make(chan struct{}),
	}
	s.SetHandlers(handlers)

	if err := s.write(realtime.ClientMessage{Type: realtime.FrameSubscribe, RoomID: roomID}); err != nil {
		conn.Close()
		return nil, err
	}

	go s.readLoop()
	return s, nil
}

// SetHandlers replaces the event handlers.
func (s *Subscription) SetHandlers(h Handlers) {
	s.handlers.Store(&h)
}

// SendReaction broadcasts an emoji reaction to the room.
func (s *Subscription) SendReaction(emoji, nickname string) error {
	return s.write(realtime.ClientMessage{
		Type:     realtime.FrameSendReaction,
		RoomID:   s.roomID,
		UserID:   s.userID,
		Emoji:    emoji,
		Nickname: nickname,
	})
}

// Done is closed when the connection ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes and closes the connection.
func (s *Subscription) Close() error {
	if err := s.write(realtime.ClientMessage{Type: realtime.FrameUnsubscribe, RoomID: s.roomID}); err != nil {
		log.Debug().Err(err).Str("room_id", s.roomID).Msg("failed to unsubscribe")
	}

	s.writeMu.Lock()
	err := s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	if err != nil {
		log.Debug().Err(err).Msg("failed to send close frame")
	}
	return s.conn.Close()
}

func (s *Subscription) write(msg realtime.ClientMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	return nil
}

func (s *Subscription) readLoop() {
	defer close(s.done)

	for {
		var event events.RoomEvent
		if err := s.conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("room_id", s.roomID).Msg("room subscription closed")
			}
			return
		}
		if event.RoomID != s.roomID {
			continue
		}
		s.dispatch(&event)
	}
}

func (s *Subscription) dispatch(event *events.RoomEvent) {
	payload, err := events.ParsePayload(event)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("ignoring undecodable event")
		return
	}

	h := s.handlers.Load()
	switch p := payload.(type) {
	case *events.WaveStartedPayload:
		if p.StartedBy == s.userID {
			return
		}
		if h.OnWaveStarted != nil {
			h.OnWaveStarted(*p)
		}
	case *events.TimerCompletePayload:
		if h.OnTimerComplete != nil {
			h.OnTimerComplete(*p)
		}
	case *events.UserJoinedPayload:
		if h.OnUserJoined != nil {
			h.OnUserJoined(*p)
		}
	case *events.UserJoinedWavePayload:
		if h.OnUserJoinedWave != nil {
			h.OnUserJoinedWave(*p)
		}
	case *events.WaveReactionPayload:
		if h.OnWaveReaction != nil {
			h.OnWaveReaction(*p)
		}
	}
}
