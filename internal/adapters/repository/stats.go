package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/arena/internal/domain/model"
)

// RecordDailyStat upserts the day's row, adding d to the running counters.
func (q *queries) RecordDailyStat(ctx context.Context, d model.StatDelta) error {
	_, err := q.exec(ctx, `INSERT INTO model_stats
		(model_id, stat_date, battles_count, wins_count, losses_count, draws_count, total_votes, response_time_total_ms, response_samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (model_id, stat_date) DO UPDATE SET
			battles_count = model_stats.battles_count + excluded.battles_count,
			wins_count = model_stats.wins_count + excluded.wins_count,
			losses_count = model_stats.losses_count + excluded.losses_count,
			draws_count = model_stats.draws_count + excluded.draws_count,
			total_votes = model_stats.total_votes + excluded.total_votes,
			response_time_total_ms = model_stats.response_time_total_ms + excluded.response_time_total_ms,
			response_samples = model_stats.response_samples + excluded.response_samples`,
		d.ModelID, d.Date, d.Battles, d.Wins, d.Losses, d.Draws, d.Votes, d.ResponseTimeMS, d.Samples)
	if err != nil {
		return fmt.Errorf("repository.RecordDailyStat: %w", err)
	}
	return nil
}

// ModelStats lists daily rows newest first. The range applies only when
// both bounds are given.
func (q *queries) ModelStats(ctx context.Context, modelID int64, from, to string) ([]model.ModelStat, error) {
	query := `SELECT model_id, stat_date, battles_count, wins_count, losses_count, draws_count, total_votes,
		response_time_total_ms, response_samples FROM model_stats WHERE model_id = ?`
	args := []any{modelID}
	if from != "" && to != "" {
		query += " AND stat_date >= ? AND stat_date <= ?"
		args = append(args, from, to)
	}
	query += " ORDER BY stat_date DESC"

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.ModelStats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.ModelStat{}
	for rows.Next() {
		var (
			s       model.ModelStat
			totalMS int64
			samples int
		)
		if err := rows.Scan(&s.ModelID, &s.Date, &s.BattlesCount, &s.WinsCount, &s.LossesCount, &s.DrawsCount,
			&s.TotalVotes, &totalMS, &samples); err != nil {
			return nil, fmt.Errorf("repository.ModelStats: %w", err)
		}
		if samples > 0 {
			avg := float64(totalMS) / float64(samples)
			s.AvgResponseTime = &avg
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *queries) GetPreference(ctx context.Context, userID int64) (model.Preference, error) {
	var (
		p   model.Preference
		fav string
	)
	err := q.queryRow(ctx, `SELECT user_id, favorite_models, email_notifications, battle_reminders, updated_at
		FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &fav, &p.EmailNotifications, &p.BattleReminders, &p.UpdatedAt)
	if err != nil {
		return model.Preference{}, notFound(err, "preferences for user", userID)
	}
	p.FavoriteModels = []int64{}
	if err := json.Unmarshal([]byte(fav), &p.FavoriteModels); err != nil {
		return model.Preference{}, fmt.Errorf("repository.GetPreference: favorites: %w", err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (q *queries) UpsertPreference(ctx context.Context, p model.Preference) (model.Preference, error) {
	if p.FavoriteModels == nil {
		p.FavoriteModels = []int64{}
	}
	fav, err := json.Marshal(p.FavoriteModels)
	if err != nil {
		return model.Preference{}, fmt.Errorf("repository.UpsertPreference: %w", err)
	}
	p.UpdatedAt = q.now()
	_, err = q.exec(ctx, `INSERT INTO user_preferences (user_id, favorite_models, email_notifications, battle_reminders, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			favorite_models = excluded.favorite_models,
			email_notifications = excluded.email_notifications,
			battle_reminders = excluded.battle_reminders,
			updated_at = excluded.updated_at`,
		p.UserID, string(fav), p.EmailNotifications, p.BattleReminders, p.UpdatedAt)
	if err != nil {
		return model.Preference{}, fmt.Errorf("repository.UpsertPreference: %w", err)
	}
	return p, nil
}
