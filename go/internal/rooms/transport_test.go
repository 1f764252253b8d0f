package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/pomowave/pomowave/go/internal/api/roomv1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRESTRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	NewRESTHandler(f.app).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestREST_RoomLifecycle(t *testing.T) {
	f := newFixture(t)
	h := newRESTRouter(f)

	rec := doJSON(t, h, http.MethodPost, "/api/rooms", `{"nickname":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created roomv1.CreateRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	roomID := created.Room.ID

	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+roomID+"/join", `{"nickname":"Bob"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var joined roomv1.JoinRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &joined))
	assert.Len(t, joined.Room.Users, 2)

	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+roomID+"/timer",
		`{"userId":"`+created.UserID+`","durationMinutes":25,"workDeclaration":"essay"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+roomID+"/wave/join", `{"userId":"`+joined.UserID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var wave roomv1.JoinWaveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wave))
	assert.Equal(t, []string{created.UserID, joined.UserID}, wave.Room.Sessions[0].Participants)

	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+roomID+"/wave/join", `{"userId":"`+joined.UserID+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/rooms/"+roomID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Contains(t, string(got["room"]), `"timer":{"endsAt":`)
}

func TestREST_Errors(t *testing.T) {
	f := newFixture(t)
	h := newRESTRouter(f)
	roomID, alice, _ := f.aliceAndBob(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{name: "empty nickname", method: http.MethodPost, path: "/api/rooms", body: `{"nickname":""}`, status: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/api/rooms", body: `{`, status: http.StatusBadRequest},
		{name: "unknown room", method: http.MethodGet, path: "/api/rooms/nope-nope-nope", status: http.StatusNotFound},
		{name: "join unknown room", method: http.MethodPost, path: "/api/rooms/nope-nope-nope/join", body: `{"nickname":"Bob"}`, status: http.StatusNotFound},
		{name: "bad duration", method: http.MethodPost, path: "/api/rooms/" + roomID + "/timer", body: `{"userId":"` + alice + `","durationMinutes":500}`, status: http.StatusBadRequest},
		{name: "not a member", method: http.MethodPost, path: "/api/rooms/" + roomID + "/timer", body: `{"userId":"mallory","durationMinutes":5}`, status: http.StatusForbidden},
		{name: "no active wave", method: http.MethodPost, path: "/api/rooms/" + roomID + "/wave/join", body: `{"userId":"` + alice + `"}`, status: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestREST_ValidateRooms(t *testing.T) {
	f := newFixture(t)
	h := newRESTRouter(f)
	roomID, _, _ := f.aliceAndBob(t)

	rec := doJSON(t, h, http.MethodPost, "/api/rooms/validate", `{"roomIds":["`+roomID+`","fake-room-code"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RoomDetails map[string]json.RawMessage `json:"roomDetails"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, "null", string(body.RoomDetails["fake-room-code"]))
	assert.Contains(t, string(body.RoomDetails[roomID]), `"wavesCompleted":0`)
}

func newRPCClient(t *testing.T, f *fixture) *roomv1.RoomServiceClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(roomv1.NewRoomServiceHandler(NewService(f.app), connect.WithInterceptors(NewLoggingInterceptor())))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return roomv1.NewRoomServiceClient(server.Client(), server.URL)
}

func TestRPC_RoomLifecycle(t *testing.T) {
	f := newFixture(t)
	client := newRPCClient(t, f)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := client.CreateRoom(ctx, connect.NewRequest(&roomv1.CreateRoomRequest{Nickname: "Alice"}))
	require.NoError(t, err)
	roomID := created.Msg.Room.ID

	joined, err := client.JoinRoom(ctx, connect.NewRequest(&roomv1.JoinRoomRequest{RoomID: roomID, Nickname: "Bob"}))
	require.NoError(t, err)

	started, err := client.StartTimer(ctx, connect.NewRequest(&roomv1.StartTimerRequest{
		RoomID: roomID, UserID: created.Msg.UserID, DurationMinutes: 25,
	}))
	require.NoError(t, err)
	require.NotNil(t, started.Msg.Room.Timer)

	waved, err := client.JoinWave(ctx, connect.NewRequest(&roomv1.JoinWaveRequest{RoomID: roomID, UserID: joined.Msg.UserID}))
	require.NoError(t, err)
	assert.Len(t, waved.Msg.Room.Sessions[0].Participants, 2)

	got, err := client.GetRoom(ctx, connect.NewRequest(&roomv1.GetRoomRequest{RoomID: roomID}))
	require.NoError(t, err)
	assert.Equal(t, waved.Msg.Room, got.Msg.Room)

	validated, err := client.ValidateRooms(ctx, connect.NewRequest(&roomv1.ValidateRoomsRequest{RoomIDs: []string{roomID, "fake-room-code"}}))
	require.NoError(t, err)
	require.Contains(t, validated.Msg.RoomDetails, "fake-room-code")
	assert.Nil(t, validated.Msg.RoomDetails["fake-room-code"])
	assert.Len(t, validated.Msg.RoomDetails[roomID].Users, 2)
}

func TestRPC_ErrorCodes(t *testing.T) {
	f := newFixture(t)
	client := newRPCClient(t, f)
	ctx := context.Background()
	roomID, alice, bob := f.aliceAndBob(t)

	_, err := client.CreateRoom(ctx, connect.NewRequest(&roomv1.CreateRoomRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = client.GetRoom(ctx, connect.NewRequest(&roomv1.GetRoomRequest{RoomID: "nope-nope-nope"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = client.StartTimer(ctx, connect.NewRequest(&roomv1.StartTimerRequest{RoomID: roomID, UserID: "mallory", DurationMinutes: 5}))
	assert.Equal(t, connect.CodePermissionDenied, connect.CodeOf(err))

	_, err = client.JoinWave(ctx, connect.NewRequest(&roomv1.JoinWaveRequest{RoomID: roomID, UserID: bob}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	_, err = client.StartTimer(ctx, connect.NewRequest(&roomv1.StartTimerRequest{RoomID: roomID, UserID: alice, DurationMinutes: 5}))
	require.NoError(t, err)
	_, err = client.JoinWave(ctx, connect.NewRequest(&roomv1.JoinWaveRequest{RoomID: roomID, UserID: alice}))
	assert.Equal(t, connect.CodeAlreadyExists, connect.CodeOf(err))
}

func TestConnectError_HidesInternalCause(t *testing.T) {
	err := ConnectError(assert.AnError)
	assert.Equal(t, connect.CodeInternal, err.Code())
	assert.NotContains(t, err.Message(), assert.AnError.Error())

	status, message := HTTPStatus(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, ErrInternal.Error(), message)
}
