package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// contender is one side of a battle being executed.
type contender struct {
	model    model.Model
	response string
	elapsed  int64
}

// ExecuteBattle invokes both models on the battle's prompt concurrently and
// stores their answers. A battle is executed at most once: a second call
// while one is running gets ErrExecutionInProgress, and a call on a battle
// that is no longer pending gets ErrBattleNotPending.
func (s *Service) ExecuteBattle(ctx context.Context, battleID int64) (model.ExecutionResult, error) {
	const op = "service.ExecuteBattle"

	key := "battle:" + strconv.FormatInt(battleID, 10)
	token, ok := s.guard.Claim(ctx, key)
	if !ok {
		return model.ExecutionResult{}, fmt.Errorf("%s: battle %d: %w", op, battleID, ErrExecutionInProgress)
	}
	defer s.guard.Release(ctx, key, token)

	battle, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("%s: %w", op, translate(err))
	}
	if battle.Status != model.StatusPending {
		return model.ExecutionResult{}, fmt.Errorf("%s: battle %d is %s: %w", op, battleID, battle.Status, ErrBattleNotPending)
	}

	m1, err := s.store.GetModel(ctx, battle.Model1ID)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("%s: %w", op, translate(err))
	}
	m2, err := s.store.GetModel(ctx, battle.Model2ID)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("%s: %w", op, translate(err))
	}
	topic, err := s.store.GetTopic(ctx, battle.TopicID)
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("%s: %w", op, translate(err))
	}
	prompt := battle.EffectivePrompt(topic)

	sides := [2]*contender{{model: m1}, {model: m2}}
	g, gctx := errgroup.WithContext(ctx)
	for _, side := range sides {
		g.Go(func() error {
			return s.invoke(gctx, side, prompt)
		})
	}

	if err := g.Wait(); err != nil {
		// The failure must be recorded even if the caller went away.
		if markErr := s.store.MarkBattleFailed(context.WithoutCancel(ctx), battleID); markErr != nil {
			s.logger.Error(ctx, "mark battle failed", logger.Int64("battle_id", battleID), logger.Error(markErr))
		}
		metrics.RecordBattleExecuted(string(model.StatusError))
		s.logger.Warn(ctx, "battle execution failed", logger.Int64("battle_id", battleID), logger.Error(err))
		return model.ExecutionResult{}, fmt.Errorf("%s: %w: %w", op, ErrExecutionFailed, err)
	}

	completion := model.Completion{
		BattleID:           battleID,
		Model1Response:     sides[0].response,
		Model2Response:     sides[1].response,
		Model1ResponseTime: sides[0].elapsed,
		Model2ResponseTime: sides[1].elapsed,
		CompletedAt:        s.now().UTC(),
	}
	day := s.today()
	// Model rows are written in ascending id order, matching settlement.
	ordered := sides
	if ordered[0].model.ID > ordered[1].model.ID {
		ordered[0], ordered[1] = ordered[1], ordered[0]
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.CompleteBattle(ctx, completion); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: %w", ErrBattleNotPending, err)
			}
			return err
		}
		if _, err := tx.LockModels(ctx, m1.ID, m2.ID); err != nil {
			return translate(err)
		}
		for _, side := range ordered {
			if err := tx.IncrementBattleCount(ctx, side.model.ID); err != nil {
				return err
			}
			if err := tx.RecordDailyStat(ctx, model.StatDelta{
				ModelID:        side.model.ID,
				Date:           day,
				Battles:        1,
				ResponseTimeMS: side.elapsed,
				Samples:        1,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.ExecutionResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateLeaderboard(ctx)
	metrics.RecordBattleExecuted(string(model.StatusCompleted))
	s.logger.Info(ctx, "battle executed",
		logger.Int64("battle_id", battleID),
		logger.Int64("model1_ms", completion.Model1ResponseTime),
		logger.Int64("model2_ms", completion.Model2ResponseTime),
	)

	return model.ExecutionResult{
		Success:            true,
		Model1Response:     completion.Model1Response,
		Model2Response:     completion.Model2Response,
		Model1ResponseTime: completion.Model1ResponseTime,
		Model2ResponseTime: completion.Model2ResponseTime,
	}, nil
}

func (s *Service) invoke(ctx context.Context, c *contender, prompt string) error {
	if s.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.invokeTimeout)
		defer cancel()
	}
	start := time.Now()
	out, err := s.invoker.Complete(ctx, c.model, prompt)
	c.elapsed = time.Since(start).Milliseconds()
	if err != nil {
		return fmt.Errorf("model %s: %w", c.model.ModelID, err)
	}
	if strings.TrimSpace(out) == "" {
		return fmt.Errorf("model %s: %w", c.model.ModelID, ErrEmptyResponse)
	}
	c.response = out
	return nil
}

// EnqueueExecution queues the battle for a background worker and returns
// the job id. The battle must exist and be pending.
func (s *Service) EnqueueExecution(ctx context.Context, battleID int64) (string, error) {
	const op = "service.EnqueueExecution"

	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return "", fmt.Errorf("%s: %w", op, ErrNotStarted)
	}

	battle, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, translate(err))
	}
	if battle.Status != model.StatusPending {
		return "", fmt.Errorf("%s: battle %d is %s: %w", op, battleID, battle.Status, ErrBattleNotPending)
	}

	job := model.ExecutionJob{JobID: uuid.NewString(), BattleID: battleID}
	if err := q.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("%s: %w", op, translate(err))
	}
	s.logger.Debug(ctx, "battle execution queued",
		logger.Int64("battle_id", battleID),
		logger.String("job_id", job.JobID),
	)
	return job.JobID, nil
}
