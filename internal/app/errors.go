package service

import (
	"errors"
	"fmt"

	"github.com/okian/arena/internal/adapters/mq/queue"
	"github.com/okian/arena/internal/adapters/repository"
)

var (
	// ErrNotFound is returned when a battle, model, topic or vote does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyVoted is returned when the user has a vote on the battle.
	ErrAlreadyVoted = errors.New("already voted on this battle")
	// ErrInvalidVote is returned when the voted model is not a contender.
	ErrInvalidVote = errors.New("voted model is not part of this battle")
	// ErrInvalidBattle is returned when a battle would pit a model against itself.
	ErrInvalidBattle = errors.New("a battle needs two different models")
	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("already exists")
	// ErrBattleNotPending is returned when executing a battle that already ran.
	ErrBattleNotPending = errors.New("battle is not pending")
	// ErrExecutionInProgress is returned when the battle is being executed.
	ErrExecutionInProgress = errors.New("battle execution already in progress")
	// ErrExecutionFailed wraps a model invocation failure.
	ErrExecutionFailed = errors.New("battle execution failed")
	// ErrEmptyResponse is returned when a model answers with no content.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrQueueFull is returned when no more executions can be queued.
	ErrQueueFull = errors.New("execution queue is full")
	// ErrNotStarted is returned by background operations before Start.
	ErrNotStarted = errors.New("service not started")
)

// translate maps store and queue errors onto service sentinels, keeping
// the original in the chain.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, repository.ErrInvalidArgument):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, queue.ErrQueueFull):
		return fmt.Errorf("%w: %w", ErrQueueFull, err)
	case errors.Is(err, queue.ErrQueueClosed):
		return fmt.Errorf("%w: %w", ErrNotStarted, err)
	}
	return err
}
