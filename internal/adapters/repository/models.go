package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/internal/domain/rating"
)

const modelColumns = `id, name, provider, model_id, description, category, is_active, elo_rating,
	total_battles, total_wins, total_losses, total_draws, created_at, updated_at`

func scanModel(row scanner) (model.Model, error) {
	var m model.Model
	err := row.Scan(&m.ID, &m.Name, &m.Provider, &m.ModelID, &m.Description, &m.Category, &m.IsActive,
		&m.EloRating, &m.TotalBattles, &m.TotalWins, &m.TotalLosses, &m.TotalDraws, &m.CreatedAt, &m.UpdatedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return m, err
}

func (q *queries) listModels(ctx context.Context, query string, args ...any) ([]model.Model, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []model.Model{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (q *queries) ListModels(ctx context.Context, f model.ModelFilter) ([]model.Model, error) {
	var (
		where []string
		args  []any
	)
	if f.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, f.Provider)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *f.IsActive)
	}
	query := "SELECT " + modelColumns + " FROM models"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY elo_rating DESC, id ASC"

	out, err := q.listModels(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.ListModels: %w", err)
	}
	return out, nil
}

func (q *queries) SearchModels(ctx context.Context, term string) ([]model.Model, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	out, err := q.listModels(ctx, "SELECT "+modelColumns+` FROM models
		WHERE is_active = ? AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)
		ORDER BY elo_rating DESC, id ASC`, true, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("repository.SearchModels: %w", err)
	}
	return out, nil
}

func (q *queries) GetModel(ctx context.Context, id int64) (model.Model, error) {
	m, err := scanModel(q.queryRow(ctx, "SELECT "+modelColumns+" FROM models WHERE id = ?", id))
	if err != nil {
		return model.Model{}, notFound(err, "model", id)
	}
	return m, nil
}

func (q *queries) GetModelByModelID(ctx context.Context, modelID string) (model.Model, error) {
	m, err := scanModel(q.queryRow(ctx,
		"SELECT "+modelColumns+" FROM models WHERE model_id = ? ORDER BY id ASC LIMIT 1", modelID))
	if err != nil {
		return model.Model{}, notFound(err, "model", modelID)
	}
	return m, nil
}

func (q *queries) CreateModel(ctx context.Context, m model.Model) (model.Model, error) {
	if m.EloRating == 0 {
		m.EloRating = rating.Default
	}
	now := q.now()
	m.CreatedAt, m.UpdatedAt = now, now

	err := q.queryRow(ctx, `INSERT INTO models
		(name, provider, model_id, description, category, is_active, elo_rating, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		m.Name, m.Provider, m.ModelID, m.Description, m.Category, m.IsActive, m.EloRating, now, now,
	).Scan(&m.ID)
	if err != nil {
		if q.d.isUnique(err) {
			return model.Model{}, fmt.Errorf("model %s/%s: %w", m.Provider, m.ModelID, ErrConflict)
		}
		return model.Model{}, fmt.Errorf("repository.CreateModel: %w", err)
	}
	return m, nil
}

func (q *queries) Leaderboard(ctx context.Context, limit int) ([]model.Model, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidArgument, limit)
	}
	out, err := q.listModels(ctx, "SELECT "+modelColumns+` FROM models
		WHERE is_active = ? ORDER BY elo_rating DESC, id ASC LIMIT ?`, true, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.Leaderboard: %w", err)
	}
	return out, nil
}

func (q *queries) CountModels(ctx context.Context) (int, error) {
	var n int
	if err := q.queryRow(ctx, "SELECT COUNT(*) FROM models").Scan(&n); err != nil {
		return 0, fmt.Errorf("repository.CountModels: %w", err)
	}
	return n, nil
}

func (q *queries) LockModels(ctx context.Context, ids ...int64) (map[int64]model.Model, error) {
	if len(ids) == 0 {
		return map[int64]model.Model{}, nil
	}
	uniq := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(uniq)), ", ")
	args := make([]any, len(uniq))
	for i, id := range uniq {
		args[i] = id
	}
	list, err := q.listModels(ctx, "SELECT "+modelColumns+" FROM models WHERE id IN ("+placeholders+") ORDER BY id ASC"+q.d.forUpdate, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.LockModels: %w", err)
	}

	out := make(map[int64]model.Model, len(list))
	for _, m := range list {
		out[m.ID] = m
	}
	for _, id := range uniq {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("model %d: %w", id, ErrNotFound)
		}
	}
	return out, nil
}

func (q *queries) ApplyOutcome(ctx context.Context, modelID int64, o model.Outcome, newRating int) error {
	var wins, losses, draws int
	switch o {
	case model.OutcomeWin:
		wins = 1
	case model.OutcomeLoss:
		losses = 1
	case model.OutcomeDraw:
		draws = 1
	default:
		return fmt.Errorf("%w: outcome %q", ErrInvalidArgument, o)
	}
	res, err := q.exec(ctx, `UPDATE models SET elo_rating = ?,
		total_wins = total_wins + ?, total_losses = total_losses + ?, total_draws = total_draws + ?,
		updated_at = ? WHERE id = ?`, newRating, wins, losses, draws, q.now(), modelID)
	if err != nil {
		return fmt.Errorf("repository.ApplyOutcome: %w", err)
	}
	return mustAffect(res, "model", modelID)
}

func (q *queries) IncrementBattleCount(ctx context.Context, modelID int64) error {
	res, err := q.exec(ctx, "UPDATE models SET total_battles = total_battles + 1, updated_at = ? WHERE id = ?", q.now(), modelID)
	if err != nil {
		return fmt.Errorf("repository.IncrementBattleCount: %w", err)
	}
	return mustAffect(res, "model", modelID)
}
