package rooms

import (
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
)

// Error taxonomy surfaced by the room operations. Errors returned by App are
// wrapped with context, so compare with errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidState    = errors.New("invalid state")
	ErrAlreadyJoined   = errors.New("already joined")
	ErrInternal        = errors.New("internal error")
)

// errNothingToComplete aborts a completion write when the timer is already gone.
var errNothingToComplete = errors.New("no matching active timer")

// ConnectError converts an App error into a connect error. Internal failures
// are logged and never leak their cause to the client.
func ConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ErrForbidden):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, ErrInvalidState):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ErrAlreadyJoined):
		return connect.NewError(connect.CodeAlreadyExists, err)
	default:
		log.Error().Err(err).Msg("internal error")
		return connect.NewError(connect.CodeInternal, ErrInternal)
	}
}

// HTTPStatus maps an App error to a REST status code and client-safe message.
func HTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrAlreadyJoined):
		return http.StatusConflict, err.Error()
	default:
		log.Error().Err(err).Msg("internal error")
		return http.StatusInternalServerError, ErrInternal.Error()
	}
}
