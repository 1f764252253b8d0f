package main

import (
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pomowave/pomowave/go/internal/api/roomv1"
	"github.com/pomowave/pomowave/go/internal/config"
	"github.com/pomowave/pomowave/go/internal/rooms"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerServices(r, services)
	r.Method(http.MethodGet, "/health", services.Health)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h2c.NewHandler(c.Handler(r), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func registerServices(r chi.Router, services *Services) {
	roomServicePath, roomServiceHandler := roomv1.NewRoomServiceHandler(
		services.Rooms,
		connect.WithInterceptors(rooms.NewLoggingInterceptor()),
	)
	r.Mount(roomServicePath, roomServiceHandler)

	services.REST.RegisterRoutes(r)
	services.Gateway.RegisterRoutes(r)
}
