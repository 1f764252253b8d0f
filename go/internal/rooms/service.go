package rooms

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/pomowave/pomowave/go/internal/api/roomv1"
	"github.com/pomowave/pomowave/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomApp defines what the transport layers need from the rooms application
type RoomApp interface {
	CreateRoom(ctx context.Context, nickname string) (*models.Room, string, error)
	JoinRoom(ctx context.Context, roomID, nickname string) (*models.Room, string, error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	ValidateRooms(ctx context.Context, roomIDs []string) map[string]*RoomDetails
	StartTimer(ctx context.Context, req StartTimerRequest) (*models.Room, error)
	JoinWave(ctx context.Context, req JoinWaveRequest) (*models.Room, error)
}

// Service implements the RoomService connect interface
type Service struct {
	app RoomApp
}

// NewService creates a new rooms RPC service
func NewService(app RoomApp) *Service {
	return &Service{app: app}
}

// Verify that Service implements the RoomServiceHandler interface
var _ roomv1.RoomServiceHandler = (*Service)(nil)

func (s *Service) CreateRoom(ctx context.Context, req *connect.Request[roomv1.CreateRoomRequest]) (*connect.Response[roomv1.CreateRoomResponse], error) {
	room, userID, err := s.app.CreateRoom(ctx, req.Msg.Nickname)
	if err != nil {
		return nil, ConnectError(err)
	}
	return connect.NewResponse(&roomv1.CreateRoomResponse{Room: room, UserID: userID}), nil
}

func (s *Service) JoinRoom(ctx context.Context, req *connect.Request[roomv1.JoinRoomRequest]) (*connect.Response[roomv1.JoinRoomResponse], error) {
	room, userID, err := s.app.JoinRoom(ctx, req.Msg.RoomID, req.Msg.Nickname)
	if err != nil {
		return nil, ConnectError(err)
	}
	return connect.NewResponse(&roomv1.JoinRoomResponse{Room: room, UserID: userID}), nil
}

func (s *Service) GetRoom(ctx context.Context, req *connect.Request[roomv1.GetRoomRequest]) (*connect.Response[roomv1.GetRoomResponse], error) {
	room, err := s.app.GetRoom(ctx, req.Msg.RoomID)
	if err != nil {
		return nil, ConnectError(err)
	}
	return connect.NewResponse(&roomv1.GetRoomResponse{Room: room}), nil
}

// ValidateRooms never fails; unknown rooms come back as null entries.
func (s *Service) ValidateRooms(ctx context.Context, req *connect.Request[roomv1.ValidateRoomsRequest]) (*connect.Response[roomv1.ValidateRoomsResponse], error) {
	return connect.NewResponse(&roomv1.ValidateRoomsResponse{
		RoomDetails: detailsToWire(s.app.ValidateRooms(ctx, req.Msg.RoomIDs)),
	}), nil
}

func (s *Service) StartTimer(ctx context.Context, req *connect.Request[roomv1.StartTimerRequest]) (*connect.Response[roomv1.StartTimerResponse], error) {
	room, err := s.app.StartTimer(ctx, StartTimerRequest{
		RoomID:          req.Msg.RoomID,
		UserID:          req.Msg.UserID,
		DurationMinutes: req.Msg.DurationMinutes,
		WorkDeclaration: req.Msg.WorkDeclaration,
	})
	if err != nil {
		return nil, ConnectError(err)
	}
	return connect.NewResponse(&roomv1.StartTimerResponse{Room: room}), nil
}

func (s *Service) JoinWave(ctx context.Context, req *connect.Request[roomv1.JoinWaveRequest]) (*connect.Response[roomv1.JoinWaveResponse], error) {
	room, err := s.app.JoinWave(ctx, JoinWaveRequest{
		RoomID:          req.Msg.RoomID,
		UserID:          req.Msg.UserID,
		WorkDeclaration: req.Msg.WorkDeclaration,
	})
	if err != nil {
		return nil, ConnectError(err)
	}
	return connect.NewResponse(&roomv1.JoinWaveResponse{Room: room}), nil
}

func detailsToWire(details map[string]*RoomDetails) map[string]*roomv1.RoomDetails {
	out := make(map[string]*roomv1.RoomDetails, len(details))
	for id, d := range details {
		if d == nil {
			out[id] = nil
			continue
		}
		out[id] = &roomv1.RoomDetails{Users: d.Users, WavesCompleted: d.WavesCompleted}
	}
	return out
}

// NewLoggingInterceptor logs every unary call with its outcome.
func NewLoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			res, err := next(ctx, req)

			event := log.Debug()
			if err != nil {
				switch connect.CodeOf(err) {
				case connect.CodeInternal, connect.CodeUnknown:
					event = log.Error().Err(err)
				default:
					event = log.Info().Err(err)
				}
			}
			event.
				Str("procedure", req.Spec().Procedure).
				Str("code", codeString(err)).
				Dur("duration", time.Since(start)).
				Msg("rpc handled")

			return res, err
		}
	}
}

func codeString(err error) string {
	if err == nil {
		return "ok"
	}
	return connect.CodeOf(err).String()
}
