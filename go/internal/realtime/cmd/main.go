package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pomowave/pomowave/go/internal/config"
	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

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

	port := getEnv("GATEWAY_PORT", "8081")
	natsCfg := cfg.Fanout.NATS

	nc, err := realtime.ConnectNATS(natsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	defer nc.Drain()

	log.Info().
		Str("nats_url", natsCfg.URL).
		Str("subject_prefix", natsCfg.SubjectPrefix).
		Str("port", port).
		Msg("starting realtime gateway")

	gatewayService := realtime.NewNATSService(realtime.DefaultConnectionConfig(), nc, natsCfg.SubjectPrefix)
	gatewayService.Manager().SetPublisher(
		realtime.NewNATSPublisher(nc, natsCfg.SubjectPrefix, clockwork.NewRealClock()),
	)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	gatewayService.RegisterRoutes(r)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		stats := gatewayService.GetStats()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"service":"pomowave-gateway","connections":%d,"rooms":%d}`,
			stats.TotalConnections, stats.ActiveRooms)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           cors.AllowAll().Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()

	select {
	case <-stopped:
	case <-shutdownCtx.Done():
	}

	log.Info().Msg("realtime gateway shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
