package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/arena/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("admin only")
	ErrBackpressure = errors.New("backpressure")
)

// opError ties an error to the API operation that produced it.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.err != nil && e.kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.err)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", e.op, e.err)
	default:
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	}
}

func (e *opError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error { return &opError{op: op, kind: kind} }

// Wrap attaches op to err.
func Wrap(op string, err error) error { return &opError{op: op, err: err} }

// WrapKind classifies err as kind and attaches op.
func WrapKind(op string, kind, err error) error { return &opError{op: op, kind: kind, err: err} }

// statusFor maps an error to its HTTP status, error code and client message.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "Authentication required"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden", "Admin only"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "Not found"
	case errors.Is(err, service.ErrAlreadyVoted):
		return http.StatusBadRequest, "already_voted", "Already voted on this battle"
	case errors.Is(err, service.ErrInvalidVote):
		return http.StatusBadRequest, "invalid_vote", "Voted model is not part of this battle"
	case errors.Is(err, service.ErrInvalidBattle):
		return http.StatusBadRequest, "invalid_battle", "A battle needs two different models"
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request", err.Error()
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict", "Already exists"
	case errors.Is(err, service.ErrBattleNotPending):
		return http.StatusConflict, "battle_not_pending", "Battle has already been executed"
	case errors.Is(err, service.ErrExecutionInProgress):
		return http.StatusConflict, "execution_in_progress", "Battle execution already in progress"
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure", "Execution queue is full"
	case errors.Is(err, service.ErrExecutionFailed):
		return http.StatusInternalServerError, "execution_failed", "Battle execution failed"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable", "Service is not accepting background work"
	}
	return http.StatusInternalServerError, "internal_error", "Internal server error"
}
