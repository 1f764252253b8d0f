package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/pomowave/pomowave/go/internal/config"
	"github.com/pomowave/pomowave/go/internal/roomstore"
	"github.com/rs/zerolog/log"
)

func setupStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (roomstore.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		store, err := roomstore.NewRedis(cfg.RedisStoreConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		store, err := roomstore.NewPostgres(ctx, cfg.Database, clock, cfg.Store.RoomTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, nil
	default:
		log.Warn().Msg("using in-memory room store; rooms are lost on restart")
		return roomstore.NewMemory(clock, cfg.Store.RoomTTL), nil
	}
}
