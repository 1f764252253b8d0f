// Package roomv1 defines the pomowave.room.v1.RoomService RPC surface: message
// types, procedure names, the JSON codec and the connect handler and client
// constructors.
package roomv1

import "github.com/pomowave/pomowave/go/internal/models"

type CreateRoomRequest struct {
	Nickname string `json:"nickname"`
}

type CreateRoomResponse struct {
	Room   *models.Room `json:"room"`
	UserID string       `json:"userId"`
}

type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Nickname string `json:"nickname"`
}

type JoinRoomResponse struct {
	Room   *models.Room `json:"room"`
	UserID string       `json:"userId"`
}

type GetRoomRequest struct {
	RoomID string `json:"roomId"`
}

type GetRoomResponse struct {
	Room *models.Room `json:"room"`
}

type ValidateRoomsRequest struct {
	RoomIDs []string `json:"roomIds"`
}

// RoomDetails summarises a live room. A nil entry in ValidateRoomsResponse
// means the room does not exist.
type RoomDetails struct {
	Users          []models.User `json:"users"`
	WavesCompleted int           `json:"wavesCompleted"`
}

type ValidateRoomsResponse struct {
	RoomDetails map[string]*RoomDetails `json:"roomDetails"`
}

type StartTimerRequest struct {
	RoomID          string `json:"roomId"`
	UserID          string `json:"userId"`
	DurationMinutes int    `json:"durationMinutes"`
	WorkDeclaration string `json:"workDeclaration,omitempty"`
}

type StartTimerResponse struct {
	Room *models.Room `json:"room"`
}

type JoinWaveRequest struct {
	RoomID          string `json:"roomId"`
	UserID          string `json:"userId"`
	WorkDeclaration string `json:"workDeclaration,omitempty"`
}

type JoinWaveResponse struct {
	Room *models.Room `json:"room"`
}
