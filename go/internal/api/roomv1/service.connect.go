package roomv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// RoomServiceName is the fully-qualified name of the RoomService service.
const RoomServiceName = "pomowave.room.v1.RoomService"

// Procedure paths for each RoomService RPC.
const (
	RoomServiceCreateRoomProcedure    = "/pomowave.room.v1.RoomService/CreateRoom"
	RoomServiceJoinRoomProcedure      = "/pomowave.room.v1.RoomService/JoinRoom"
	RoomServiceGetRoomProcedure       = "/pomowave.room.v1.RoomService/GetRoom"
	RoomServiceValidateRoomsProcedure = "/pomowave.room.v1.RoomService/ValidateRooms"
	RoomServiceStartTimerProcedure    = "/pomowave.room.v1.RoomService/StartTimer"
	RoomServiceJoinWaveProcedure      = "/pomowave.room.v1.RoomService/JoinWave"
)

// RoomServiceHandler is implemented by the server side of RoomService.
type RoomServiceHandler interface {
	CreateRoom(context.Context, *connect.Request[CreateRoomRequest]) (*connect.Response[CreateRoomResponse], error)
	JoinRoom(context.Context, *connect.Request[JoinRoomRequest]) (*connect.Response[JoinRoomResponse], error)
	GetRoom(context.Context, *connect.Request[GetRoomRequest]) (*connect.Response[GetRoomResponse], error)
	ValidateRooms(context.Context, *connect.Request[ValidateRoomsRequest]) (*connect.Response[ValidateRoomsResponse], error)
	StartTimer(context.Context, *connect.Request[StartTimerRequest]) (*connect.Response[StartTimerResponse], error)
	JoinWave(context.Context, *connect.Request[JoinWaveRequest]) (*connect.Response[JoinWaveResponse], error)
}

// NewRoomServiceHandler builds an HTTP handler for the service. It returns the
// path on which to mount the handler and the handler itself.
func NewRoomServiceHandler(svc RoomServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	createRoomHandler := connect.NewUnaryHandler(RoomServiceCreateRoomProcedure, svc.CreateRoom, opts...)
	joinRoomHandler := connect.NewUnaryHandler(RoomServiceJoinRoomProcedure, svc.JoinRoom, opts...)
	getRoomHandler := connect.NewUnaryHandler(RoomServiceGetRoomProcedure, svc.GetRoom, opts...)
	validateRoomsHandler := connect.NewUnaryHandler(RoomServiceValidateRoomsProcedure, svc.ValidateRooms, opts...)
	startTimerHandler := connect.NewUnaryHandler(RoomServiceStartTimerProcedure, svc.StartTimer, opts...)
	joinWaveHandler := connect.NewUnaryHandler(RoomServiceJoinWaveProcedure, svc.JoinWave, opts...)

	return "/" + RoomServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case RoomServiceCreateRoomProcedure:
			createRoomHandler.ServeHTTP(w, r)
		case RoomServiceJoinRoomProcedure:
			joinRoomHandler.ServeHTTP(w, r)
		case RoomServiceGetRoomProcedure:
			getRoomHandler.ServeHTTP(w, r)
		case RoomServiceValidateRoomsProcedure:
			validateRoomsHandler.ServeHTTP(w, r)
		case RoomServiceStartTimerProcedure:
			startTimerHandler.ServeHTTP(w, r)
		case RoomServiceJoinWaveProcedure:
			joinWaveHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// RoomServiceClient is a client for RoomService.
type RoomServiceClient struct {
	createRoom    *connect.Client[CreateRoomRequest, CreateRoomResponse]
	joinRoom      *connect.Client[JoinRoomRequest, JoinRoomResponse]
	getRoom       *connect.Client[GetRoomRequest, GetRoomResponse]
	validateRooms *connect.Client[ValidateRoomsRequest, ValidateRoomsResponse]
	startTimer    *connect.Client[StartTimerRequest, StartTimerResponse]
	joinWave      *connect.Client[JoinWaveRequest, JoinWaveResponse]
}

// NewRoomServiceClient constructs a client for RoomService at baseURL, e.g.
// http://localhost:8080.
func NewRoomServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RoomServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)

	return &RoomServiceClient{
		createRoom:    connect.NewClient[CreateRoomRequest, CreateRoomResponse](httpClient, baseURL+RoomServiceCreateRoomProcedure, opts...),
		joinRoom:      connect.NewClient[JoinRoomRequest, JoinRoomResponse](httpClient, baseURL+RoomServiceJoinRoomProcedure, opts...),
		getRoom:       connect.NewClient[GetRoomRequest, GetRoomResponse](httpClient, baseURL+RoomServiceGetRoomProcedure, opts...),
		validateRooms: connect.NewClient[ValidateRoomsRequest, ValidateRoomsResponse](httpClient, baseURL+RoomServiceValidateRoomsProcedure, opts...),
		startTimer:    connect.NewClient[StartTimerRequest, StartTimerResponse](httpClient, baseURL+RoomServiceStartTimerProcedure, opts...),
		joinWave:      connect.NewClient[JoinWaveRequest, JoinWaveResponse](httpClient, baseURL+RoomServiceJoinWaveProcedure, opts...),
	}
}

func (c *RoomServiceClient) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomRequest]) (*connect.Response[CreateRoomResponse], error) {
	return c.createRoom.CallUnary(ctx, req)
}

func (c *RoomServiceClient) JoinRoom(ctx context.Context, req *connect.Request[JoinRoomRequest]) (*connect.Response[JoinRoomResponse], error) {
	return c.joinRoom.CallUnary(ctx, req)
}

func (c *RoomServiceClient) GetRoom(ctx context.Context, req *connect.Request[GetRoomRequest]) (*connect.Response[GetRoomResponse], error) {
	return c.getRoom.CallUnary(ctx, req)
}

func (c *RoomServiceClient) ValidateRooms(ctx context.Context, req *connect.Request[ValidateRoomsRequest]) (*connect.Response[ValidateRoomsResponse], error) {
	return c.validateRooms.CallUnary(ctx, req)
}

func (c *RoomServiceClient) StartTimer(ctx context.Context, req *connect.Request[StartTimerRequest]) (*connect.Response[StartTimerResponse], error) {
	return c.startTimer.CallUnary(ctx, req)
}

func (c *RoomServiceClient) JoinWave(ctx context.Context, req *connect.Request[JoinWaveRequest]) (*connect.Response[JoinWaveResponse], error) {
	return c.joinWave.CallUnary(ctx, req)
}
