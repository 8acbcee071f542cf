package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrEmptyWords      = fmt.Errorf("no words have been found")
	ErrNameTaken       = fmt.Errorf("username taken")
	ErrNotConnected    = fmt.Errorf("not connected")
	ErrNoCounterpart   = fmt.Errorf("no recipient chosen")
	ErrChannelClosed   = fmt.Errorf("channel closed")
	ErrSelfPairing     = fmt.Errorf("cannot chat with yourself")
	ErrInvalidIdentity = fmt.Errorf("invalid username")
	ErrMessageTooLong  = fmt.Errorf("message too long")
	ErrEmptyMessage    = fmt.Errorf("empty message")
	ErrInvalidToken    = fmt.Errorf("invalid username token")
	ErrRateLimited     = fmt.Errorf("too many messages")
	ErrBrokerStopped   = fmt.Errorf("broker stopped")
	ErrInvalidFrame    = fmt.Errorf("invalid frame")
)

// NotConnected names the identity that was missing when a pairing was requested.
func NotConnected(identity string) error {
	return fmt.Errorf("%w: %q", ErrNotConnected, identity)
}

// HTTPStatus maps a sentinel error to the status code returned by the HTTP layer.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrNotConnected):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidIdentity),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrInvalidFrame),
		errors.Is(err, ErrMessageTooLong),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrSelfPairing),
		errors.Is(err, ErrNoCounterpart):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrBrokerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
