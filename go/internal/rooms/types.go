package rooms

import (
	"time"

	"github.com/pomowave/pomowave/go/internal/models"
)

// Config holds the domain timeouts and input limits.
type Config struct {
	JoinWindow         time.Duration
	MinDurationMinutes int
	MaxDurationMinutes int
	MaxNicknameLength  int
	MaxWorkDeclaration int
	MaxCodeAttempts    int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		JoinWindow:         60 * time.Second,
		MinDurationMinutes: 1,
		MaxDurationMinutes: 120,
		MaxNicknameLength:  32,
		MaxWorkDeclaration: 140,
		MaxCodeAttempts:    10,
	}
}

// StartTimerRequest starts a wave. Starting a wave is a privileged action:
// a user id that is not a member of the room fails with ErrForbidden, while
// JoinWave reports the same case as ErrNotFound.
type StartTimerRequest struct {
	RoomID          string
	UserID          string
	DurationMinutes int
	WorkDeclaration string
}

// JoinWaveRequest joins the running wave.
type JoinWaveRequest struct {
	RoomID          string
	UserID          string
	WorkDeclaration string
}

// RoomDetails is the summary returned by ValidateRooms.
type RoomDetails struct {
	Users          []models.User `json:"users"`
	WavesCompleted int           `json:"wavesCompleted"`
}
