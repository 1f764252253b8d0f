package rooms

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pomowave/pomowave/go/internal/api/roomv1"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 64 << 10

// RESTHandler serves the room operations as plain JSON for browser clients.
type RESTHandler struct {
	app RoomApp
}

// NewRESTHandler creates a new REST handler.
func NewRESTHandler(app RoomApp) *RESTHandler {
	return &RESTHandler{app: app}
}

// RegisterRoutes registers the room routes under /api.
func (h *RESTHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", h.CreateRoom)
		r.Post("/validate", h.ValidateRooms)
		r.Get("/{roomId}", h.GetRoom)
		r.Post("/{roomId}/join", h.JoinRoom)
		r.Post("/{roomId}/timer", h.StartTimer)
		r.Post("/{roomId}/wave/join", h.JoinWave)
	})
}

func (h *RESTHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var body roomv1.CreateRoomRequest
	if !decodeBody(w, r, &body) {
		return
	}

	room, userID, err := h.app.CreateRoom(r.Context(), body.Nickname)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomv1.CreateRoomResponse{Room: room, UserID: userID})
}

func (h *RESTHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.app.GetRoom(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomv1.GetRoomResponse{Room: room})
}

func (h *RESTHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var body roomv1.JoinRoomRequest
	if !decodeBody(w, r, &body) {
		return
	}

	room, userID, err := h.app.JoinRoom(r.Context(), chi.URLParam(r, "roomId"), body.Nickname)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomv1.JoinRoomResponse{Room: room, UserID: userID})
}

func (h *RESTHandler) ValidateRooms(w http.ResponseWriter, r *http.Request) {
	var body roomv1.ValidateRoomsRequest
	if !decodeBody(w, r, &body) {
		return
	}
	writeJSON(w, http.StatusOK, roomv1.ValidateRoomsResponse{
		RoomDetails: detailsToWire(h.app.ValidateRooms(r.Context(), body.RoomIDs)),
	})
}

func (h *RESTHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	var body roomv1.StartTimerRequest
	if !decodeBody(w, r, &body) {
		return
	}

	room, err := h.app.StartTimer(r.Context(), StartTimerRequest{
		RoomID:          chi.URLParam(r, "roomId"),
		UserID:          body.UserID,
		DurationMinutes: body.DurationMinutes,
		WorkDeclaration: body.WorkDeclaration,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomv1.StartTimerResponse{Room: room})
}

func (h *RESTHandler) JoinWave(w http.ResponseWriter, r *http.Request) {
	var body roomv1.JoinWaveRequest
	if !decodeBody(w, r, &body) {
		return
	}

	room, err := h.app.JoinWave(r.Context(), JoinWaveRequest{
		RoomID:          chi.URLParam(r, "roomId"),
		UserID:          body.UserID,
		WorkDeclaration: body.WorkDeclaration,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roomv1.JoinWaveResponse{Room: room})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: malformed request body", ErrInvalidArgument))
		return false
	}
	return true
}

func writeAppError(w http.ResponseWriter, err error) {
	status, message := HTTPStatus(err)
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
