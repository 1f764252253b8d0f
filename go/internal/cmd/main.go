package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/pomowave/pomowave/go/internal/config"
	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("POMOWAVE_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.SetupLogging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	store, err := setupStore(ctx, cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up room store")
	}
	defer store.Close()

	var nc *nats.Conn
	if cfg.Fanout.Backend == config.FanoutNATS {
		nc, err = realtime.ConnectNATS(cfg.Fanout.NATS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Drain()
	}

	services := setupServices(cfg, store, nc, clock)

	if _, err := services.Scheduler.Recover(ctx, services.App); err != nil {
		log.Error().Err(err).Msg("failed to recover pending completions")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := services.Scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("completion scheduler failed")
		}
	}()
	go func() {
		defer wg.Done()
		if err := services.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("realtime gateway failed")
		}
	}()

	server := setupServer(cfg, services)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Store.Backend).
			Str("fanout", cfg.Fanout.Backend).
			Msg("pomowave server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()

	stopped := make(chan struct{})
	go func() {
		wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		log.Warn().Msg("background services did not stop before the shutdown deadline")
	}

	log.Info().Msg("pomowave server shutdown complete")
}
