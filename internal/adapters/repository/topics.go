package repository

import (
	"context"
	"fmt"

	"github.com/okian/arena/internal/domain/model"
)

const topicColumns = "id, title, prompt, category, difficulty, is_active, usage_count, created_at"

func scanTopic(row scanner) (model.Topic, error) {
	var (
		t    model.Topic
		diff string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Prompt, &t.Category, &diff, &t.IsActive, &t.UsageCount, &t.CreatedAt)
	t.Difficulty = model.Difficulty(diff)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, err
}

func (q *queries) ListTopics(ctx context.Context, f model.TopicFilter) ([]model.Topic, error) {
	query := "SELECT " + topicColumns + " FROM topics WHERE is_active = ?"
	args := []any{true}
	if f.Category != "" {
		query += " AND category = ?"
		args = append(args, f.Category)
	}
	if f.Difficulty != "" {
		query += " AND difficulty = ?"
		args = append(args, string(f.Difficulty))
	}
	query += " ORDER BY usage_count DESC, id ASC"

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository.ListTopics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListTopics: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *queries) RandomTopic(ctx context.Context) (model.Topic, error) {
	t, err := scanTopic(q.queryRow(ctx,
		"SELECT "+topicColumns+" FROM topics WHERE is_active = ? ORDER BY RANDOM() LIMIT 1", true))
	if err != nil {
		return model.Topic{}, notFound(err, "topic", "random")
	}
	return t, nil
}

func (q *queries) GetTopic(ctx context.Context, id int64) (model.Topic, error) {
	t, err := scanTopic(q.queryRow(ctx, "SELECT "+topicColumns+" FROM topics WHERE id = ?", id))
	if err != nil {
		return model.Topic{}, notFound(err, "topic", id)
	}
	return t, nil
}

func (q *queries) CreateTopic(ctx context.Context, t model.Topic) (model.Topic, error) {
	if t.Difficulty == "" {
		t.Difficulty = model.DifficultyMedium
	}
	t.CreatedAt = q.now()
	err := q.queryRow(ctx, `INSERT INTO topics (title, prompt, category, difficulty, is_active, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?) RETURNING id`,
		t.Title, t.Prompt, t.Category, string(t.Difficulty), t.IsActive, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return model.Topic{}, fmt.Errorf("repository.CreateTopic: %w", err)
	}
	t.UsageCount = 0
	return t, nil
}

func (q *queries) IncrementTopicUsage(ctx context.Context, topicID int64) error {
	res, err := q.exec(ctx, "UPDATE topics SET usage_count = usage_count + 1 WHERE id = ?", topicID)
	if err != nil {
		return fmt.Errorf("repository.IncrementTopicUsage: %w", err)
	}
	return mustAffect(res, "topic", topicID)
}
