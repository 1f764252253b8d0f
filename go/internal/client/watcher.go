package client

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/pomowave/pomowave/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	refreshTimeout = 10 * time.Second

	// PollInterval is how often Poll refetches the room without a push.
	PollInterval = 5 * time.Second

	retryMinDelay = time.Second
	retryMaxDelay = 30 * time.Second
)

// RoomFetcher loads the authoritative room state.
type RoomFetcher interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
}

// WatcherCallbacks are the effects a Watcher drives. Any field may be nil.
type WatcherCallbacks struct {
	OnRoom         func(*models.Room)
	OnWaveStarted  func(events.WaveStartedPayload)
	OnWaveComplete func(sessionID string)
	OnReaction     func(events.WaveReactionPayload)
}

// Watcher keeps a local view of one room. Fetched state is authoritative;
// push events only trigger a refetch. Wave completion is reported once,
// whichever of the server push and the local countdown arrives first.
type Watcher struct {
	fetcher RoomFetcher
	roomID  string
	clock   clockwork.Clock
	cb      WatcherCallbacks

	guard     *CompletionGuard
	countdown *Countdown

	mu       sync.Mutex
	room     *models.Room
	notified string
	stopped  bool

	// refreshGen is bumped by every refresh so a pending retry can tell it
	// has been superseded.
	refreshGen uint64
	retry      clockwork.Timer
}

// NewWatcher creates a watcher for roomID.
func NewWatcher(fetcher RoomFetcher, roomID string, clock clockwork.Clock, cb WatcherCallbacks) *Watcher {
	w := &Watcher{
		fetcher: fetcher,
		roomID:  roomID,
		clock:   clock,
		cb:      cb,
		guard:   &CompletionGuard{},
	}
	w.countdown = NewCountdown(clock, w.guard, w.localCompleted)
	return w
}

// Refresh refetches the room and re-points the countdown at its timer.
func (w *Watcher) Refresh(ctx context.Context) error {
	room, err := w.fetcher.GetRoom(ctx, w.roomID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.room = room
	w.stopRetryLocked()
	w.mu.Unlock()

	if session := room.ActiveSession(); session != nil {
		endsAt := models.FromMillis(room.Timer.EndsAt)
		w.countdown.Set(session.ID, &endsAt)
	} else {
		w.countdown.Set("", nil)
	}

	if w.cb.OnRoom != nil {
		w.cb.OnRoom(room)
	}
	return nil
}

// Room returns the last fetched room.
func (w *Watcher) Room() *models.Room {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.room
}

// Remaining returns the time left in the running wave.
func (w *Watcher) Remaining() (time.Duration, bool) {
	return w.countdown.Remaining()
}

// Resync re-derives the countdown after the app regains the foreground.
func (w *Watcher) Resync() {
	w.countdown.Resync()
}

// Stop cancels the local completion and any pending refetch retry.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.refreshGen++
	w.stopRetryLocked()
	w.mu.Unlock()

	w.countdown.Stop()
}

// Poll refetches the room every PollInterval until ctx is done, so the view
// converges even when pushes are lost.
func (w *Watcher) Poll(ctx context.Context) {
	ticker := w.clock.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.refresh(ctx)
		}
	}
}

// Follow keeps a socket subscription to the room open until ctx is done.
// A dropped socket is redialed with backoff, and every (re)connect refetches
// the room since events sent while disconnected are not replayed.
func (w *Watcher) Follow(ctx context.Context, wsURL, userID string) {
	handlers := w.Handlers(ctx)
	failures := 0

	for {
		sub, err := Subscribe(ctx, wsURL, w.roomID, userID, handlers)
		if err == nil {
			failures = 0
			w.refresh(ctx)

			select {
			case <-ctx.Done():
				sub.Close()
				return
			case <-sub.Done():
				log.Warn().Str("room_id", w.roomID).Msg("room subscription dropped, reconnecting")
				sub.Close()
			}
		} else {
			log.Warn().Err(err).Str("room_id", w.roomID).Msg("failed to subscribe to room")
		}

		delay := backoff(failures)
		failures++
		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(delay):
		}
	}
}

// Handlers returns subscription handlers that feed this watcher.
func (w *Watcher) Handlers(ctx context.Context) Handlers {
	return Handlers{
		OnWaveStarted: func(p events.WaveStartedPayload) {
			if w.cb.OnWaveStarted != nil {
				w.cb.OnWaveStarted(p)
			}
			w.refresh(ctx)
		},
		OnTimerComplete: func(p events.TimerCompletePayload) {
			if w.guard.TryComplete(p.SessionID) {
				w.notifyComplete(p.SessionID)
			}
			w.refresh(ctx)
		},
		OnUserJoined: func(events.UserJoinedPayload) {
			w.refresh(ctx)
		},
		OnUserJoinedWave: func(events.UserJoinedWavePayload) {
			w.refresh(ctx)
		},
		OnWaveReaction: func(p events.WaveReactionPayload) {
			if w.cb.OnReaction != nil {
				w.cb.OnReaction(p)
			}
		},
	}
}

// localCompleted is the countdown fallback; the guard has already been claimed.
func (w *Watcher) localCompleted(sessionID string) {
	w.notifyComplete(sessionID)
	w.refresh(context.Background())
}

// notifyComplete runs the completion effects. The guard is reset when a
// refetch clears the timer, so a push landing after that is caught here.
func (w *Watcher) notifyComplete(sessionID string) {
	w.mu.Lock()
	if w.notified == sessionID {
		w.mu.Unlock()
		return
	}
	w.notified = sessionID
	w.mu.Unlock()

	log.Info().Str("room_id", w.roomID).Str("session_id", sessionID).Msg("wave complete")
	if w.cb.OnWaveComplete != nil {
		w.cb.OnWaveComplete(sessionID)
	}
}

// refresh refetches the room, retrying with backoff until a fetch succeeds
// or a newer refresh supersedes this one.
func (w *Watcher) refresh(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.refreshGen++
	gen := w.refreshGen
	w.stopRetryLocked()
	w.mu.Unlock()

	w.attempt(ctx, gen, 0)
}

func (w *Watcher) attempt(ctx context.Context, gen uint64, failures int) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	err := w.Refresh(fetchCtx)
	cancel()
	if err == nil || ctx.Err() != nil {
		return
	}

	delay := backoff(failures)
	log.Warn().Err(err).
		Str("room_id", w.roomID).
		Dur("retry_in", delay).
		Msg("failed to refresh room")

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.refreshGen != gen {
		return
	}
	w.retry = w.clock.AfterFunc(delay, func() {
		w.mu.Lock()
		current := !w.stopped && w.refreshGen == gen
		w.mu.Unlock()
		if current {
			w.attempt(ctx, gen, failures+1)
		}
	})
}

func (w *Watcher) stopRetryLocked() {
	if w.retry != nil {
		w.retry.Stop()
		w.retry = nil
	}
}

// backoff doubles from retryMinDelay up to retryMaxDelay.
func backoff(failures int) time.Duration {
	delay := retryMinDelay
	for i := 0; i < failures && delay < retryMaxDelay; i++ {
		delay *= 2
	}
	return min(delay, retryMaxDelay)
}
