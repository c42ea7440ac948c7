package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/arena/internal/domain/model"
)

const (
	battleColumns = `id, user_id, model1_id, model2_id, topic_id, custom_prompt, model1_response, model2_response,
	model1_response_time, model2_response_time, winner_id, status, created_at, completed_at`

	defaultHistoryLimit = 50
)

func scanBattle(row scanner) (model.Battle, error) {
	var (
		b                    model.Battle
		custom, resp1, resp2 sql.NullString
		time1, time2, winner sql.NullInt64
		status               string
		completed            sql.NullTime
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Model1ID, &b.Model2ID, &b.TopicID, &custom, &resp1, &resp2,
		&time1, &time2, &winner, &status, &b.CreatedAt, &completed)
	if err != nil {
		return model.Battle{}, err
	}
	b.CustomPrompt = stringPtr(custom)
	b.Model1Response = stringPtr(resp1)
	b.Model2Response = stringPtr(resp2)
	b.Model1ResponseTime = int64Ptr(time1)
	b.Model2ResponseTime = int64Ptr(time2)
	b.WinnerID = int64Ptr(winner)
	b.Status = model.BattleStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.CompletedAt = timePtr(completed)
	return b, nil
}

func (q *queries) listBattles(ctx context.Context, query string, args ...any) ([]model.Battle, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []model.Battle{}
	for rows.Next() {
		b, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (q *queries) InsertBattle(ctx context.Context, b model.Battle) (model.Battle, error) {
	b.Status = model.StatusPending
	b.CreatedAt = q.now()
	err := q.queryRow(ctx, `INSERT INTO battles (user_id, model1_id, model2_id, topic_id, custom_prompt, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		b.UserID, b.Model1ID, b.Model2ID, b.TopicID, nullString(b.CustomPrompt), string(b.Status), b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		return model.Battle{}, fmt.Errorf("repository.InsertBattle: %w", err)
	}
	return b, nil
}

func (q *queries) GetBattle(ctx context.Context, id int64) (model.Battle, error) {
	b, err := scanBattle(q.queryRow(ctx, "SELECT "+battleColumns+" FROM battles WHERE id = ?", id))
	if err != nil {
		return model.Battle{}, notFound(err, "battle", id)
	}
	return b, nil
}

func (q *queries) LockBattle(ctx context.Context, id int64) (model.Battle, error) {
	b, err := scanBattle(q.queryRow(ctx, "SELECT "+battleColumns+" FROM battles WHERE id = ?"+q.d.forUpdate, id))
	if err != nil {
		return model.Battle{}, notFound(err, "battle", id)
	}
	return b, nil
}

func (q *queries) UserBattles(ctx context.Context, userID int64, limit int) ([]model.Battle, error) {
	out, err := q.listBattles(ctx, "SELECT "+battleColumns+` FROM battles
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limitOrDefault(limit, defaultHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("repository.UserBattles: %w", err)
	}
	return out, nil
}

func (q *queries) RecentBattles(ctx context.Context, limit int) ([]model.Battle, error) {
	out, err := q.listBattles(ctx, "SELECT "+battleColumns+` FROM battles
		WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`, string(model.StatusCompleted), limitOrDefault(limit, 2*defaultHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("repository.RecentBattles: %w", err)
	}
	return out, nil
}

func (q *queries) SetBattleWinner(ctx context.Context, battleID, winnerID int64) error {
	res, err := q.exec(ctx, "UPDATE battles SET winner_id = COALESCE(winner_id, ?) WHERE id = ?", winnerID, battleID)
	if err != nil {
		return fmt.Errorf("repository.SetBattleWinner: %w", err)
	}
	return mustAffect(res, "battle", battleID)
}

func (q *queries) CompleteBattle(ctx context.Context, c model.Completion) error {
	completedAt := c.CompletedAt
	if completedAt.IsZero() {
		completedAt = q.now()
	}
	res, err := q.exec(ctx, `UPDATE battles SET model1_response = ?, model2_response = ?,
		model1_response_time = ?, model2_response_time = ?, status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		c.Model1Response, c.Model2Response, c.Model1ResponseTime, c.Model2ResponseTime,
		string(model.StatusCompleted), completedAt.UTC(), c.BattleID, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("repository.CompleteBattle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository.CompleteBattle: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("battle %d is not pending: %w", c.BattleID, ErrConflict)
	}
	return nil
}

func (q *queries) MarkBattleFailed(ctx context.Context, battleID int64) error {
	_, err := q.exec(ctx, "UPDATE battles SET status = ? WHERE id = ? AND status = ?",
		string(model.StatusError), battleID, string(model.StatusPending))
	if err != nil {
		return fmt.Errorf("repository.MarkBattleFailed: %w", err)
	}
	return nil
}
