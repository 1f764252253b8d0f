package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/pomowave/pomowave/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ActiveRoomLister lists the rooms that still have a running timer.
type ActiveRoomLister interface {
	ActiveRooms(ctx context.Context) ([]*models.Room, error)
}

// Recover re-registers the completion of every persisted running wave. It is
// called once at startup so waves survive a process restart; waves whose
// endsAt passed while the process was down fire immediately.
func (s *Scheduler) Recover(ctx context.Context, lister ActiveRoomLister) (int, error) {
	rooms, err := lister.ActiveRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active rooms: %w", err)
	}

	recovered := 0
	for _, room := range rooms {
		session := room.ActiveSession()
		if session == nil {
			continue
		}
		s.Schedule(room.ID, session.ID, models.FromMillis(room.Timer.EndsAt))
		recovered++
	}

	log.Info().
		Str("instance", s.instanceID).
		Int("recovered", recovered).
		Msg("recovered pending wave completions")
	return recovered, nil
}

// Run starts the worker pool and blocks until ctx is cancelled. Pending
// timers are stopped on return.
func (s *Scheduler) Run(ctx context.Context) error {
	log.Info().
		Str("instance", s.instanceID).
		Int("workers", s.numWorkers).
		Msg("completion scheduler started")

	var wg sync.WaitGroup
	for i := 0; i < s.numWorkers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg, i)
	}

	<-ctx.Done()
	log.Info().Str("instance", s.instanceID).Msg("completion scheduler shutdown requested")

	s.stopOnce.Do(func() { close(s.done) })
	wg.Wait()

	s.activeMu.Lock()
	for roomID, reg := range s.active {
		if reg.timer != nil {
			stopAndDrainTimer(reg.timer)
		}
		log.Debug().Str("room_id", roomID).Msg("cancelled timer on shutdown")
	}
	s.active = make(map[string]*registration)
	s.activeMu.Unlock()

	log.Info().Str("instance", s.instanceID).Msg("all workers shut down")
	return nil
}

// worker runs completions from the work channel.
func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.workCh:
			log.Debug().
				Str("room_id", j.roomID).
				Str("session_id", j.sessionID).
				Int("worker_id", workerID).
				Msg("worker handling wave completion")

			if err := s.complete(ctx, j); err != nil {
				log.Error().
					Err(err).
					Str("room_id", j.roomID).
					Str("session_id", j.sessionID).
					Int("worker_id", workerID).
					Msg("wave completion failed")
			}
			s.finish(j)
		}
	}
}

// complete isolates the worker from a panicking completer.
func (s *Scheduler) complete(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("completer panicked: %v", r)
		}
	}()
	return s.completer.CompleteTimer(ctx, j.roomID, j.sessionID)
}
