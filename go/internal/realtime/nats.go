package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds the NATS connection settings for cross-process fanout.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "pomowave",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// RoomSubject is the subject room events are published on.
func RoomSubject(prefix, roomID string) string {
	return prefix + ".rooms." + roomID
}

// ConnectNATS dials NATS with reconnect logging.
func ConnectNATS(config NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("pomowave"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSPublisher publishes room events on core NATS. There is no replay; a
// gateway that is down misses the events.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	clock  clockwork.Clock
}

// NewNATSPublisher creates a publisher on an established connection.
func NewNATSPublisher(nc *nats.Conn, prefix string, clock clockwork.Clock) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix, clock: clock}
}

func (p *NATSPublisher) Publish(ctx context.Context, roomID string, eventType events.Type, payload any) error {
	event, err := NewRoomEvent(roomID, eventType, payload, p.clock.Now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}
	if err := p.nc.Publish(RoomSubject(p.prefix, roomID), data); err != nil {
		return fmt.Errorf("publish %s for room %s: %w", eventType, roomID, err)
	}
	return nil
}

// NATSBridge feeds room events from NATS into the local connection manager.
type NATSBridge struct {
	manager *ConnectionManager
	nc      *nats.Conn
	prefix  string
}

// NewNATSBridge creates a bridge for all rooms under prefix.
func NewNATSBridge(manager *ConnectionManager, nc *nats.Conn, prefix string) *NATSBridge {
	return &NATSBridge{manager: manager, nc: nc, prefix: prefix}
}

// Start consumes room events until ctx is cancelled.
func (b *NATSBridge) Start(ctx context.Context) error {
	subject := RoomSubject(b.prefix, "*")
	msgCh := make(chan *nats.Msg, 256)

	sub, err := b.nc.ChanSubscribe(subject, msgCh)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Msg("failed to unsubscribe room events")
		}
	}()

	log.Info().Str("subject", subject).Msg("NATS bridge started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("NATS bridge shutting down")
			return nil
		case msg := <-msgCh:
			if err := b.processMessage(msg); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to process room event")
			}
		}
	}
}

func (b *NATSBridge) processMessage(msg *nats.Msg) error {
	var event events.RoomEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return fmt.Errorf("unmarshal room event: %w", err)
	}

	roomID := strings.TrimPrefix(msg.Subject, b.prefix+".rooms.")
	if event.RoomID == "" {
		event.RoomID = roomID
	}
	if event.RoomID != roomID {
		return fmt.Errorf("event for room %s published on %s", event.RoomID, msg.Subject)
	}

	b.manager.Broadcast(&event)
	return nil
}
