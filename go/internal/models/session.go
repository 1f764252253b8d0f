package models

import "slices"

// PomoSession is one wave. Sessions are appended to a room's history and only
// their membership grows, and only until their timer fires.
type PomoSession struct {
	ID                  string            `json:"id"`
	StartedAt           int64             `json:"startedAt"`
	StartedBy           string            `json:"startedBy"`
	DurationMinutes     int               `json:"durationMinutes"`
	JoinDeadline        int64             `json:"joinDeadline"`
	Participants        []string          `json:"participants"`
	PartialParticipants []string          `json:"partialParticipants,omitempty"`
	WorkDeclarations    map[string]string `json:"workDeclarations,omitempty"`
}

// HasMember reports whether userID rode the wave either fully or partially.
func (s *PomoSession) HasMember(userID string) bool {
	return slices.Contains(s.Participants, userID) || slices.Contains(s.PartialParticipants, userID)
}

// AddParticipant records a join made at or before the join deadline.
// It returns false if the user is already a member.
func (s *PomoSession) AddParticipant(userID string) bool {
	if s.HasMember(userID) {
		return false
	}
	s.Participants = append(s.Participants, userID)
	return true
}

// AddPartialParticipant records a join made after the join deadline.
func (s *PomoSession) AddPartialParticipant(userID string) bool {
	if s.HasMember(userID) {
		return false
	}
	s.PartialParticipants = append(s.PartialParticipants, userID)
	return true
}

// Declare stores what userID is working on. Empty text is ignored.
func (s *PomoSession) Declare(userID, text string) {
	if text == "" {
		return
	}
	if s.WorkDeclarations == nil {
		s.WorkDeclarations = make(map[string]string)
	}
	s.WorkDeclarations[userID] = text
}
