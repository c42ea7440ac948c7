package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/arena/internal/domain/model"
)

const voteColumns = "id, battle_id, user_id, voted_model_id, comment, created_at"

func scanVote(row scanner) (model.Vote, error) {
	var (
		v       model.Vote
		voted   sql.NullInt64
		comment sql.NullString
	)
	if err := row.Scan(&v.ID, &v.BattleID, &v.UserID, &voted, &comment, &v.CreatedAt); err != nil {
		return model.Vote{}, err
	}
	v.VotedModelID = int64Ptr(voted)
	v.Comment = stringPtr(comment)
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

// InsertVote returns ErrConflict when the user already voted on the battle.
func (q *queries) InsertVote(ctx context.Context, v model.Vote) (model.Vote, error) {
	v.CreatedAt = q.now()
	err := q.queryRow(ctx, `INSERT INTO votes (battle_id, user_id, voted_model_id, comment, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		v.BattleID, v.UserID, nullInt64(v.VotedModelID), nullString(v.Comment), v.CreatedAt,
	).Scan(&v.ID)
	if err != nil {
		if q.d.isUnique(err) {
			return model.Vote{}, fmt.Errorf("vote on battle %d by user %d: %w", v.BattleID, v.UserID, ErrConflict)
		}
		return model.Vote{}, fmt.Errorf("repository.InsertVote: %w", err)
	}
	return v, nil
}

func (q *queries) FindVote(ctx context.Context, battleID, userID int64) (model.Vote, error) {
	v, err := scanVote(q.queryRow(ctx,
		"SELECT "+voteColumns+" FROM votes WHERE battle_id = ? AND user_id = ?", battleID, userID))
	if err != nil {
		return model.Vote{}, notFound(err, "vote on battle", battleID)
	}
	return v, nil
}

func (q *queries) BattleVotes(ctx context.Context, battleID int64) ([]model.Vote, error) {
	rows, err := q.query(ctx, "SELECT "+voteColumns+" FROM votes WHERE battle_id = ? ORDER BY created_at ASC, id ASC", battleID)
	if err != nil {
		return nil, fmt.Errorf("repository.BattleVotes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Vote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.BattleVotes: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
