package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/pomowave/pomowave/go/internal/config"
	"github.com/pomowave/pomowave/go/internal/health"
	"github.com/pomowave/pomowave/go/internal/realtime"
	"github.com/pomowave/pomowave/go/internal/roomcode"
	"github.com/pomowave/pomowave/go/internal/rooms"
	"github.com/pomowave/pomowave/go/internal/roomstore"
	"github.com/pomowave/pomowave/go/internal/scheduler"
)

type Services struct {
	Rooms     *rooms.Service
	REST      *rooms.RESTHandler
	App       *rooms.App
	Scheduler *scheduler.Scheduler
	Gateway   *realtime.Service
	Health    *health.Checker
}

func setupServices(cfg *config.Config, store roomstore.Store, nc *nats.Conn, clock clockwork.Clock) *Services {
	// Store → App → Service, with the scheduler and fanout hung off the App.

	var (
		gateway   *realtime.Service
		publisher realtime.Publisher
	)
	if nc != nil {
		prefix := cfg.Fanout.NATS.SubjectPrefix
		gateway = realtime.NewNATSService(realtime.DefaultConnectionConfig(), nc, prefix)
		publisher = realtime.NewNATSPublisher(nc, prefix, clock)
	} else {
		gateway = realtime.NewService(realtime.DefaultConnectionConfig())
		publisher = realtime.NewLocalPublisher(gateway.Manager(), clock)
	}
	gateway.Manager().SetPublisher(publisher)

	roomsConfig := rooms.DefaultConfig()
	roomsConfig.JoinWindow = cfg.Rooms.JoinWindow

	app := rooms.NewApp(store, publisher, roomcode.NewGenerator(), clock, roomsConfig)
	sched := scheduler.New(app, clock, scheduler.WithWorkers(cfg.Rooms.SchedulerWorkers))
	app.SetScheduler(sched)

	var natsConn health.NATSConn
	if nc != nil {
		natsConn = nc
	}

	return &Services{
		Rooms:     rooms.NewService(app),
		REST:      rooms.NewRESTHandler(app),
		App:       app,
		Scheduler: sched,
		Gateway:   gateway,
		Health:    health.NewChecker(store, natsConn, sched, gateway),
	}
}
