package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pomowave/pomowave/go/internal/events"
	"github.com/pomowave/pomowave/go/internal/models"
	"github.com/pomowave/pomowave/go/internal/roomstore"
	"github.com/rs/zerolog/log"
)

// RoomsRepository defines what the app layer needs from the room store
type RoomsRepository interface {
	Create(ctx context.Context, room *models.Room) error
	Get(ctx context.Context, id string) (*models.Room, error)
	Update(ctx context.Context, id string, fn func(*models.Room) error) (*models.Room, error)
	ListActive(ctx context.Context) ([]*models.Room, error)
}

// Publisher fans room events out to subscribed clients. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, roomID string, eventType events.Type, payload any) error
}

// CompletionScheduler registers the deferred completion of a wave.
type CompletionScheduler interface {
	Schedule(roomID, sessionID string, endsAt time.Time)
}

// CodeGenerator produces room codes and avatars.
type CodeGenerator interface {
	Code() string
	Avatar() string
}

// App owns the room/session/timer state machine.
type App struct {
	repo      RoomsRepository
	publisher Publisher
	scheduler CompletionScheduler
	codes     CodeGenerator
	clock     clockwork.Clock
	config    Config

	locks *roomLocks

	// completed remembers waves this process fired but could not persist as
	// cleared. Reads apply it until a later write lands.
	completedMu sync.Mutex
	completed   map[string]string // room id -> session id
}

// NewApp creates a new rooms App
func NewApp(repo RoomsRepository, publisher Publisher, codes CodeGenerator, clock clockwork.Clock, config Config) *App {
	return &App{
		repo:      repo,
		publisher: publisher,
		codes:     codes,
		clock:     clock,
		config:    config,
		locks:     newRoomLocks(),
		completed: make(map[string]string),
	}
}

// SetScheduler attaches the completion scheduler. The scheduler calls back
// into the App, so it is wired after construction.
func (a *App) SetScheduler(s CompletionScheduler) {
	a.scheduler = s
}

// CreateRoom creates a room hosted by a new user.
func (a *App) CreateRoom(ctx context.Context, nickname string) (*models.Room, string, error) {
	nickname, err := a.validateNickname(nickname)
	if err != nil {
		return nil, "", err
	}

	host := models.User{
		ID:       uuid.NewString(),
		Nickname: nickname,
		Emoji:    a.codes.Avatar(),
	}

	for attempt := 1; attempt <= a.config.MaxCodeAttempts; attempt++ {
		room := models.NewRoom(a.codes.Code(), host)

		err := a.repo.Create(ctx, room)
		if errors.Is(err, roomstore.ErrExists) {
			log.Debug().Str("room_id", room.ID).Int("attempt", attempt).Msg("room code taken, retrying")
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("%w: failed to create room: %v", ErrInternal, err)
		}

		log.Info().Str("room_id", room.ID).Str("user_id", host.ID).Msg("room created")
		return room, host.ID, nil
	}

	return nil, "", fmt.Errorf("%w: no free room code after %d attempts", ErrInternal, a.config.MaxCodeAttempts)
}

// JoinRoom adds a new user to an existing room.
func (a *App) JoinRoom(ctx context.Context, roomID, nickname string) (*models.Room, string, error) {
	nickname, err := a.validateNickname(nickname)
	if err != nil {
		return nil, "", err
	}

	user := models.User{
		ID:       uuid.NewString(),
		Nickname: nickname,
		Emoji:    a.codes.Avatar(),
	}

	unlock := a.locks.Lock(roomID)
	defer unlock()

	room, err := a.update(ctx, roomID, func(r *models.Room) error {
		r.Users = append(r.Users, user)
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("room_id", roomID).Str("user_id", user.ID).Msg("user joined room")
	a.publish(ctx, roomID, events.TypeUserJoined, events.UserJoinedPayload{
		UserID:   user.ID,
		Nickname: user.Nickname,
		Emoji:    user.Emoji,
	})
	return room, user.ID, nil
}

// GetRoom returns the current room state.
func (a *App) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	room, err := a.repo.Get(ctx, roomID)
	if err != nil {
		return nil, a.storeError(roomID, err)
	}
	a.applyCompletion(room)
	return room, nil
}

// ValidateRooms reports which of the given rooms still exist. Missing rooms
// map to nil; lookup failures are logged and reported as missing.
func (a *App) ValidateRooms(ctx context.Context, roomIDs []string) map[string]*RoomDetails {
	details := make(map[string]*RoomDetails, len(roomIDs))

	for _, id := range roomIDs {
		if id == "" {
			continue
		}
		if _, seen := details[id]; seen {
			continue
		}

		room, err := a.GetRoom(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Error().Err(err).Str("room_id", id).Msg("failed to validate room")
			}
			details[id] = nil
			continue
		}
		details[id] = &RoomDetails{
			Users:          room.Users,
			WavesCompleted: room.WavesCompleted(),
		}
	}

	return details
}

// StartTimer starts a wave. Only one wave may run per room.
func (a *App) StartTimer(ctx context.Context, req StartTimerRequest) (*models.Room, error) {
	if req.DurationMinutes < a.config.MinDurationMinutes || req.DurationMinutes > a.config.MaxDurationMinutes {
		return nil, fmt.Errorf("%w: duration must be between %d and %d minutes",
			ErrInvalidArgument, a.config.MinDurationMinutes, a.config.MaxDurationMinutes)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	declaration, err := a.validateDeclaration(req.WorkDeclaration)
	if err != nil {
		return nil, err
	}

	unlock := a.locks.Lock(req.RoomID)
	defer unlock()

	now := a.clock.Now()
	var (
		session models.PomoSession
		starter models.User
	)

	room, err := a.update(ctx, req.RoomID, func(r *models.Room) error {
		user, ok := r.FindUser(req.UserID)
		if !ok {
			return fmt.Errorf("%w: user %s is not a member of room %s", ErrForbidden, req.UserID, r.ID)
		}
		if r.Timer != nil {
			return fmt.Errorf("%w: a wave is already running in room %s", ErrInvalidState, r.ID)
		}

		startedAt := models.ToMillis(now)
		endsAt := startedAt + int64(req.DurationMinutes)*time.Minute.Milliseconds()

		session = models.PomoSession{
			ID:              uuid.NewString(),
			StartedAt:       startedAt,
			StartedBy:       user.ID,
			DurationMinutes: req.DurationMinutes,
			JoinDeadline:    startedAt + a.config.JoinWindow.Milliseconds(),
			Participants:    []string{user.ID},
		}
		session.Declare(user.ID, declaration)

		r.Timer = &models.Timer{
			EndsAt:          endsAt,
			DurationMinutes: req.DurationMinutes,
			StartedBy:       user.ID,
		}
		r.Sessions = append(r.Sessions, session)
		starter = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("room_id", room.ID).
		Str("session_id", session.ID).
		Str("user_id", starter.ID).
		Int("duration_minutes", req.DurationMinutes).
		Msg("wave started")

	if a.scheduler != nil {
		a.scheduler.Schedule(room.ID, session.ID, models.FromMillis(room.Timer.EndsAt))
	} else {
		log.Warn().Str("room_id", room.ID).Msg("no completion scheduler attached")
	}

	a.publish(ctx, room.ID, events.TypeWaveStarted, events.WaveStartedPayload{
		SessionID:    session.ID,
		StartedBy:    starter.ID,
		StarterName:  starter.Nickname,
		EndsAt:       room.Timer.EndsAt,
		JoinDeadline: session.JoinDeadline,
	})
	return room, nil
}

// JoinWave adds a user to the running wave. Joins at or before the join
// deadline count as full participation, later ones as partial.
func (a *App) JoinWave(ctx context.Context, req JoinWaveRequest) (*models.Room, error) {
	declaration, err := a.validateDeclaration(req.WorkDeclaration)
	if err != nil {
		return nil, err
	}

	unlock := a.locks.Lock(req.RoomID)
	defer unlock()

	now := models.ToMillis(a.clock.Now())
	var (
		sessionID string
		joiner    models.User
		partial   bool
	)

	room, err := a.update(ctx, req.RoomID, func(r *models.Room) error {
		user, ok := r.FindUser(req.UserID)
		if !ok {
			return fmt.Errorf("%w: user %s in room %s", ErrNotFound, req.UserID, r.ID)
		}
		session := r.ActiveSession()
		if session == nil {
			return fmt.Errorf("%w: no active wave in room %s", ErrInvalidState, r.ID)
		}
		if session.HasMember(user.ID) {
			return fmt.Errorf("%w: user %s already rode wave %s", ErrAlreadyJoined, user.ID, session.ID)
		}

		partial = now > session.JoinDeadline
		if partial {
			session.AddPartialParticipant(user.ID)
		} else {
			session.AddParticipant(user.ID)
		}
		session.Declare(user.ID, declaration)

		sessionID = session.ID
		joiner = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("room_id", room.ID).
		Str("session_id", sessionID).
		Str("user_id", joiner.ID).
		Bool("partial", partial).
		Msg("user joined wave")

	a.publish(ctx, room.ID, events.TypeUserJoinedWave, events.UserJoinedWavePayload{
		SessionID: sessionID,
		UserID:    joiner.ID,
		Nickname:  joiner.Nickname,
		Emoji:     joiner.Emoji,
	})
	return room, nil
}

// CompleteTimer ends the wave identified by sessionID. It is idempotent: if
// the timer is already cleared, or belongs to another session, nothing happens.
// A failed write is logged and the completion is still announced; the cleared
// state is kept in memory until a later write persists it.
func (a *App) CompleteTimer(ctx context.Context, roomID, sessionID string) error {
	unlock := a.locks.Lock(roomID)
	defer unlock()

	if a.isCompleted(roomID, sessionID) {
		return nil
	}

	_, err := a.update(ctx, roomID, func(r *models.Room) error {
		session := r.ActiveSession()
		if session == nil || session.ID != sessionID {
			return errNothingToComplete
		}
		r.Timer = nil
		return nil
	})

	switch {
	case errors.Is(err, errNothingToComplete):
		log.Debug().Str("room_id", roomID).Str("session_id", sessionID).Msg("timer already completed")
		return nil
	case errors.Is(err, ErrNotFound):
		log.Warn().Str("room_id", roomID).Str("session_id", sessionID).Msg("room expired before wave completed")
		return nil
	case err != nil:
		log.Error().Err(err).
			Str("room_id", roomID).
			Str("session_id", sessionID).
			Msg("failed to persist wave completion, keeping cleared state in memory")
		a.markCompleted(roomID, sessionID)
	}

	log.Info().Str("room_id", roomID).Str("session_id", sessionID).Msg("wave completed")
	a.publish(ctx, roomID, events.TypeTimerComplete, events.TimerCompletePayload{SessionID: sessionID})
	return nil
}

// ActiveRooms lists rooms with a running timer, for restart recovery.
func (a *App) ActiveRooms(ctx context.Context) ([]*models.Room, error) {
	rooms, err := a.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list active rooms: %v", ErrInternal, err)
	}

	active := rooms[:0]
	for _, r := range rooms {
		a.applyCompletion(r)
		if r.Timer != nil {
			active = append(active, r)
		}
	}
	return active, nil
}

// update runs fn against the stored room with any in-memory completion applied
// and maps store errors onto the taxonomy.
func (a *App) update(ctx context.Context, roomID string, fn func(*models.Room) error) (*models.Room, error) {
	overlaid := false
	room, err := a.repo.Update(ctx, roomID, func(r *models.Room) error {
		overlaid = a.applyCompletion(r)
		return fn(r)
	})
	if err != nil {
		return nil, a.storeError(roomID, err)
	}
	if overlaid {
		a.forgetCompletion(roomID)
	}
	return room, nil
}

// storeError passes taxonomy errors through and wraps everything else.
func (a *App) storeError(roomID string, err error) error {
	switch {
	case errors.Is(err, roomstore.ErrNotFound):
		return fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadyJoined), errors.Is(err, errNothingToComplete):
		return err
	default:
		return fmt.Errorf("%w: room %s: %v", ErrInternal, roomID, err)
	}
}

func (a *App) publish(ctx context.Context, roomID string, eventType events.Type, payload any) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, roomID, eventType, payload); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("event_type", string(eventType)).Msg("failed to publish room event")
	}
}

// applyCompletion clears a timer this process already fired. It reports
// whether the room was changed.
func (a *App) applyCompletion(r *models.Room) bool {
	a.completedMu.Lock()
	sessionID, ok := a.completed[r.ID]
	a.completedMu.Unlock()

	if !ok || r.Timer == nil {
		return false
	}
	if latest := r.LatestSession(); latest == nil || latest.ID != sessionID {
		return false
	}
	r.Timer = nil
	return true
}

func (a *App) markCompleted(roomID, sessionID string) {
	a.completedMu.Lock()
	defer a.completedMu.Unlock()
	a.completed[roomID] = sessionID
}

func (a *App) isCompleted(roomID, sessionID string) bool {
	a.completedMu.Lock()
	defer a.completedMu.Unlock()
	return a.completed[roomID] == sessionID
}

func (a *App) forgetCompletion(roomID string) {
	a.completedMu.Lock()
	defer a.completedMu.Unlock()
	delete(a.completed, roomID)
}

func (a *App) validateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", fmt.Errorf("%w: nickname is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(nickname) > a.config.MaxNicknameLength {
		return "", fmt.Errorf("%w: nickname must be at most %d characters", ErrInvalidArgument, a.config.MaxNicknameLength)
	}
	return nickname, nil
}

func (a *App) validateDeclaration(text string) (string, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > a.config.MaxWorkDeclaration {
		return "", fmt.Errorf("%w: work declaration must be at most %d characters", ErrInvalidArgument, a.config.MaxWorkDeclaration)
	}
	return text, nil
}
