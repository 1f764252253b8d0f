// Package scheduler fires wave completions at their endsAt. Each room has at
// most one pending completion; registering a new one replaces the old.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	defaultWorkers        = 4
	workChannelBufferSize = 256
)

// Completer is invoked when a wave's timer elapses.
type Completer interface {
	CompleteTimer(ctx context.Context, roomID, sessionID string) error
}

type job struct {
	roomID    string
	sessionID string
	gen       uint64
}

// registration is the single pending completion of a room.
type registration struct {
	sessionID string
	endsAt    time.Time
	gen       uint64
	timer     clockwork.Timer // nil when endsAt had already passed
	cancel    chan struct{}
}

// Scheduler owns the per-room one-shot timers and the worker pool that runs
// completions.
type Scheduler struct {
	completer  Completer
	clock      clockwork.Clock
	instanceID string

	numWorkers int
	workCh     chan job
	done       chan struct{}
	stopOnce   sync.Once

	activeMu sync.Mutex
	active   map[string]*registration
	nextGen  uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.numWorkers = n
		}
	}
}

// New creates a scheduler. Timers may be registered before Run starts; they
// are only executed once the worker pool is running.
func New(completer Completer, clock clockwork.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		completer:  completer,
		clock:      clock,
		instanceID: uuid.New().String()[:8],
		numWorkers: defaultWorkers,
		workCh:     make(chan job, workChannelBufferSize),
		done:       make(chan struct{}),
		active:     make(map[string]*registration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers the completion of sessionID at endsAt, replacing any
// pending completion for the room. An endsAt in the past fires immediately.
func (s *Scheduler) Schedule(roomID, sessionID string, endsAt time.Time) {
	duration := endsAt.Sub(s.clock.Now())

	reg := &registration{
		sessionID: sessionID,
		endsAt:    endsAt,
		cancel:    make(chan struct{}),
	}
	if duration > 0 {
		reg.timer = s.clock.NewTimer(duration)
	}

	s.replace(roomID, reg)
	go s.wait(roomID, reg)

	log.Debug().
		Str("room_id", roomID).
		Str("session_id", sessionID).
		Time("ends_at", endsAt).
		Dur("duration", duration).
		Msg("scheduled wave completion")
}

// Pending returns the number of rooms with a registered completion.
func (s *Scheduler) Pending() int {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return len(s.active)
}

// replace atomically swaps the room's registration, stopping the previous one.
func (s *Scheduler) replace(roomID string, reg *registration) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()

	if existing, ok := s.active[roomID]; ok {
		stopRegistration(existing)
		log.Debug().
			Str("room_id", roomID).
			Str("session_id", existing.sessionID).
			Msg("replaced pending wave completion")
	}

	s.nextGen++
	reg.gen = s.nextGen
	s.active[roomID] = reg
}

// wait blocks until the registration's timer fires and hands it to the
// worker pool.
func (s *Scheduler) wait(roomID string, reg *registration) {
	if reg.timer != nil {
		select {
		case <-reg.timer.Chan():
		case <-reg.cancel:
			return
		case <-s.done:
			return
		}
	}

	select {
	case s.workCh <- job{roomID: roomID, sessionID: reg.sessionID, gen: reg.gen}:
		log.Debug().Str("room_id", roomID).Str("session_id", reg.sessionID).Msg("timer fired - enqueued for completion")
	case <-reg.cancel:
	case <-s.done:
	}
}

// finish removes the registration if it is still the one that fired.
func (s *Scheduler) finish(j job) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()

	if reg, ok := s.active[j.roomID]; ok && reg.gen == j.gen {
		delete(s.active, j.roomID)
	}
}

func stopRegistration(reg *registration) {
	close(reg.cancel)
	if reg.timer != nil {
		stopAndDrainTimer(reg.timer)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
