package realtime

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Service is the realtime gateway: the connection manager, its websocket
// routes and, when events arrive over NATS, the bridge feeding it.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	bridge            *NATSBridge
}

// NewService creates a gateway that only serves events published in-process.
func NewService(config ConnectionConfig) *Service {
	cm := NewConnectionManager(config)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
	}
}

// NewNATSService creates a gateway fed from NATS subjects under prefix.
func NewNATSService(config ConnectionConfig, nc *nats.Conn, prefix string) *Service {
	s := NewService(config)
	s.bridge = NewNATSBridge(s.connectionManager, nc, prefix)
	return s
}

// Manager returns the connection manager.
func (s *Service) Manager() *ConnectionManager {
	return s.connectionManager
}

// Start runs the gateway until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("nats", s.bridge != nil).Msg("starting realtime gateway")

	go s.connectionManager.Start(ctx)

	if s.bridge != nil {
		go func() {
			if err := s.bridge.Start(ctx); err != nil {
				log.Error().Err(err).Msg("NATS bridge failed")
			}
		}()
	}

	<-ctx.Done()
	log.Info().Msg("realtime gateway stopped")
	return nil
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(r chi.Router) {
	s.wsHandler.RegisterRoutes(r)
}

// GetStats returns statistics about the gateway
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
