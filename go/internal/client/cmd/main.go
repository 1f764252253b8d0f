package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pomowave/pomowave/go/internal/client"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/pomowave/pomowave/go/internal/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "pomowave server base URL")
	roomID := flag.String("room", "", "room code to join; a new room is created when empty")
	nickname := flag.String("nick", "", "nickname shown to the room")
	start := flag.Int("start", 0, "start a wave of this many minutes after joining")
	joinWave := flag.Bool("join-wave", false, "join the running wave after joining the room")
	declaration := flag.String("declare", "", "what you are working on")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if *nickname == "" {
		fmt.Fprintln(os.Stderr, "-nick is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *server, *roomID, *nickname, *start, *joinWave, *declaration); err != nil {
		log.Fatal().Err(err).Msg("pomowave client failed")
	}
}

func run(ctx context.Context, server, roomID, nickname string, start int, joinWave bool, declaration string) error {
	api := client.NewAPI(http.DefaultClient, server)

	var (
		room   *models.Room
		userID string
		err    error
	)
	if roomID == "" {
		room, userID, err = api.CreateRoom(ctx, nickname)
	} else {
		room, userID, err = api.JoinRoom(ctx, roomID, nickname)
	}
	if err != nil {
		return err
	}
	fmt.Printf("in room %s as %s (%d people here)\n", room.ID, nickname, len(room.Users))

	clock := clockwork.NewRealClock()
	watcher := client.NewWatcher(api, room.ID, clock, client.WatcherCallbacks{
		OnWaveStarted: func(p events.WaveStartedPayload) {
			fmt.Printf("%s started a wave, ends at %s\n",
				p.StarterName, models.FromMillis(p.EndsAt).Local().Format(time.Kitchen))
		},
		OnWaveComplete: func(sessionID string) {
			fmt.Println("wave complete, take a break")
		},
		OnReaction: func(p events.WaveReactionPayload) {
			fmt.Printf("%s %s\n", p.Nickname, p.Emoji)
		},
	})
	defer watcher.Stop()

	if err := watcher.Refresh(ctx); err != nil {
		return err
	}

	wsURL, err := client.WebSocketURL(server)
	if err != nil {
		return err
	}
	go watcher.Follow(ctx, wsURL, userID)
	go watcher.Poll(ctx)

	if start > 0 {
		if _, err := api.StartTimer(ctx, room.ID, userID, start, declaration); err != nil {
			return err
		}
		fmt.Printf("wave of %d minutes started\n", start)
		if err := watcher.Refresh(ctx); err != nil {
			return err
		}
	} else if joinWave {
		if _, err := api.JoinWave(ctx, room.ID, userID, declaration); err != nil {
			return err
		}
		fmt.Println("joined the wave")
	}

	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if remaining, ok := watcher.Remaining(); ok {
				fmt.Printf("\r%02d:%02d remaining ", int(remaining.Minutes()), int(remaining.Seconds())%60)
			}
		}
	}
}
