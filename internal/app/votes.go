package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/rating"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// VoteInput is one user's verdict. A nil VotedModelID is a draw.
type VoteInput struct {
	BattleID     int64
	UserID       int64
	VotedModelID *int64
	Comment      *string
}

// SubmitVote records the vote and settles ratings, counters and the daily
// roll-up for both models in a single transaction.
func (s *Service) SubmitVote(ctx context.Context, in VoteInput) (model.Settlement, error) {
	const op = "service.SubmitVote"

	var settlement model.Settlement
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.FindVote(ctx, in.BattleID, in.UserID); err == nil {
			return ErrAlreadyVoted
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		battle, err := tx.LockBattle(ctx, in.BattleID)
		if err != nil {
			return translate(err)
		}
		if in.VotedModelID != nil && !battle.HasModel(*in.VotedModelID) {
			return fmt.Errorf("%w: model %d in battle %d", ErrInvalidVote, *in.VotedModelID, battle.ID)
		}

		vote, err := tx.InsertVote(ctx, model.Vote{
			BattleID:     in.BattleID,
			UserID:       in.UserID,
			VotedModelID: in.VotedModelID,
			Comment:      in.Comment,
		})
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrAlreadyVoted
			}
			return err
		}

		models, err := tx.LockModels(ctx, battle.Model1ID, battle.Model2ID)
		if err != nil {
			return translate(err)
		}

		var changes []model.RatingChange
		winnerID := battle.WinnerID
		if vote.IsDraw() {
			m1, m2 := models[battle.Model1ID], models[battle.Model2ID]
			r := rating.Calculate(m1.EloRating, m2.EloRating, true)
			changes = []model.RatingChange{
				{ModelID: m1.ID, Outcome: model.OutcomeDraw, Before: m1.EloRating, After: r.WinnerNew},
				{ModelID: m2.ID, Outcome: model.OutcomeDraw, Before: m2.EloRating, After: r.LoserNew},
			}
		} else {
			w := models[*vote.VotedModelID]
			l := models[battle.Opponent(w.ID)]
			if err := tx.SetBattleWinner(ctx, battle.ID, w.ID); err != nil {
				return err
			}
			if winnerID == nil {
				id := w.ID
				winnerID = &id
			}
			r := rating.Calculate(w.EloRating, l.EloRating, false)
			changes = []model.RatingChange{
				{ModelID: w.ID, Outcome: model.OutcomeWin, Before: w.EloRating, After: r.WinnerNew},
				{ModelID: l.ID, Outcome: model.OutcomeLoss, Before: l.EloRating, After: r.LoserNew},
			}
		}

		day := s.today()
		for _, c := range byModelID(changes) {
			if err := tx.ApplyOutcome(ctx, c.ModelID, c.Outcome, c.After); err != nil {
				return err
			}
			if err := tx.RecordDailyStat(ctx, model.ForOutcome(c.ModelID, day, c.Outcome)); err != nil {
				return err
			}
		}

		settlement = model.Settlement{
			VoteID:   vote.ID,
			BattleID: battle.ID,
			WinnerID: winnerID,
			Changes:  changes,
		}
		return nil
	})
	if err != nil {
		return model.Settlement{}, fmt.Errorf("%s: %w", op, err)
	}

	s.invalidateLeaderboard(ctx)
	outcome := string(model.OutcomeWin)
	if in.VotedModelID == nil {
		outcome = string(model.OutcomeDraw)
	}
	metrics.RecordVote(outcome)
	metrics.RecordRatingUpdates(len(settlement.Changes))

	s.logger.Info(ctx, "vote settled",
		logger.Int64("battle_id", settlement.BattleID),
		logger.Int64("user_id", in.UserID),
		logger.Int64("vote_id", settlement.VoteID),
		logger.String("outcome", outcome),
		logger.Any("changes", settlement.Changes),
	)
	return settlement, nil
}

// byModelID returns changes in ascending model id order, the order in which
// model rows are locked.
func byModelID(changes []model.RatingChange) []model.RatingChange {
	out := slices.Clone(changes)
	slices.SortFunc(out, func(a, b model.RatingChange) int { return cmp.Compare(a.ModelID, b.ModelID) })
	return out
}

// BattleVotes lists the votes cast on a battle, oldest first.
func (s *Service) BattleVotes(ctx context.Context, battleID int64) ([]model.Vote, error) {
	votes, err := s.store.BattleVotes(ctx, battleID)
	if err != nil {
		return nil, fmt.Errorf("service.BattleVotes: %w", translate(err))
	}
	return votes, nil
}
