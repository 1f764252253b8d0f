package client

import (
	"context"

	"connectrpc.com/connect"
	"github.com/pomowave/pomowave/go/internal/api/roomv1"
	"github.com/pomowave/pomowave/go/internal/models"
)

// API is a typed client for the room operations.
type API struct {
	rooms *roomv1.RoomServiceClient
}

// NewAPI creates an API client for the server at baseURL.
func NewAPI(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *API {
	return &API{rooms: roomv1.NewRoomServiceClient(httpClient, baseURL, opts...)}
}

// CreateRoom creates a room and returns it with the caller's user id.
func (a *API) CreateRoom(ctx context.Context, nickname string) (*models.Room, string, error) {
	res, err := a.rooms.CreateRoom(ctx, connect.NewRequest(&roomv1.CreateRoomRequest{Nickname: nickname}))
	if err != nil {
		return nil, "", err
	}
	return res.Msg.Room, res.Msg.UserID, nil
}

func (a *API) JoinRoom(ctx context.Context, roomID, nickname string) (*models.Room, string, error) {
	res, err := a.rooms.JoinRoom(ctx, connect.NewRequest(&roomv1.JoinRoomRequest{RoomID: roomID, Nickname: nickname}))
	if err != nil {
		return nil, "", err
	}
	return res.Msg.Room, res.Msg.UserID, nil
}

func (a *API) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	res, err := a.rooms.GetRoom(ctx, connect.NewRequest(&roomv1.GetRoomRequest{RoomID: roomID}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Room, nil
}

// ValidateRooms returns details for live rooms and nil for the rest.
func (a *API) ValidateRooms(ctx context.Context, roomIDs []string) (map[string]*roomv1.RoomDetails, error) {
	res, err := a.rooms.ValidateRooms(ctx, connect.NewRequest(&roomv1.ValidateRoomsRequest{RoomIDs: roomIDs}))
	if err != nil {
		return nil, err
	}
	return res.Msg.RoomDetails, nil
}

func (a *API) StartTimer(ctx context.Context, roomID, userID string, durationMinutes int, workDeclaration string) (*models.Room, error) {
	res, err := a.rooms.StartTimer(ctx, connect.NewRequest(&roomv1.StartTimerRequest{
		RoomID:          roomID,
		UserID:          userID,
		DurationMinutes: durationMinutes,
		WorkDeclaration: workDeclaration,
	}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Room, nil
}

func (a *API) JoinWave(ctx context.Context, roomID, userID, workDeclaration string) (*models.Room, error) {
	res, err := a.rooms.JoinWave(ctx, connect.NewRequest(&roomv1.JoinWaveRequest{
		RoomID:          roomID,
		UserID:          userID,
		WorkDeclaration: workDeclaration,
	}))
	if err != nil {
		return nil, err
	}
	return res.Msg.Room, nil
}
