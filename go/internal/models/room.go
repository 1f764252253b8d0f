package models

import "time"

// WaveState describes where a room is in its timer lifecycle.
type WaveState string

const (
	WaveStateIdle       WaveState = "IDLE"
	WaveStateActive     WaveState = "ACTIVE"
	WaveStateLateActive WaveState = "LATE_ACTIVE"
)

// Timer is the in-flight wave. It only exists until the completion fires.
type Timer struct {
	EndsAt          int64  `json:"endsAt"` // unix ms
	DurationMinutes int    `json:"durationMinutes"`
	StartedBy       string `json:"startedBy"`
}

// Room is the aggregate persisted under its room code.
type Room struct {
	ID       string        `json:"id"`
	Users    []User        `json:"users"`
	Timer    *Timer        `json:"timer,omitempty"`
	Sessions []PomoSession `json:"sessions"`
}

// NewRoom creates a room whose first user is the host.
func NewRoom(id string, host User) *Room {
	host.IsHost = true
	return &Room{
		ID:       id,
		Users:    []User{host},
		Sessions: []PomoSession{},
	}
}

// FindUser returns the member with the given id.
func (r *Room) FindUser(userID string) (*User, bool) {
	for i := range r.Users {
		if r.Users[i].ID == userID {
			return &r.Users[i], true
		}
	}
	return nil, false
}

// LatestSession returns the most recently appended session, if any.
func (r *Room) LatestSession() *PomoSession {
	if len(r.Sessions) == 0 {
		return nil
	}
	return &r.Sessions[len(r.Sessions)-1]
}

// ActiveSession returns the session backing the running timer.
func (r *Room) ActiveSession() *PomoSession {
	if r.Timer == nil {
		return nil
	}
	return r.LatestSession()
}

// State derives the wave state at now.
func (r *Room) State(now time.Time) WaveState {
	s := r.ActiveSession()
	if s == nil {
		return WaveStateIdle
	}
	if ToMillis(now) <= s.JoinDeadline {
		return WaveStateActive
	}
	return WaveStateLateActive
}

// Remaining is max(0, endsAt-now). It is always derived, never decremented.
func (r *Room) Remaining(now time.Time) time.Duration {
	if r.Timer == nil {
		return 0
	}
	return Remaining(r.Timer.EndsAt, now)
}

// WavesCompleted counts sessions whose completion has been observed.
func (r *Room) WavesCompleted() int {
	n := len(r.Sessions)
	if r.Timer != nil && n > 0 {
		n--
	}
	return n
}

// ToMillis converts t to unix milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts unix milliseconds to a time.Time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

// Remaining returns max(0, endsAt-now) for an endsAt in unix ms.
func Remaining(endsAt int64, now time.Time) time.Duration {
	d := time.Duration(endsAt-ToMillis(now)) * time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}
