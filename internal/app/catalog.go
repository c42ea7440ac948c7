package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	userHistoryLimit   = 50
	recentBattlesLimit = 100
	discoverCategory   = "chat"
)

// ModelInput describes a model to register.
type ModelInput struct {
	Name        string
	Provider    string
	ModelID     string
	Description string
	Category    string
	IsActive    *bool
}

func (in ModelInput) validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Provider) == "" || strings.TrimSpace(in.ModelID) == "" {
		return fmt.Errorf("%w: name, provider and modelId are required", ErrInvalidInput)
	}
	return nil
}

func (in ModelInput) model() model.Model {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return model.Model{
		Name:        strings.TrimSpace(in.Name),
		Provider:    strings.TrimSpace(in.Provider),
		ModelID:     strings.TrimSpace(in.ModelID),
		Description: in.Description,
		Category:    in.Category,
		IsActive:    active,
	}
}

// Discovery reports what DiscoverModel found or created.
type Discovery struct {
	Model   model.Model `json:"model"`
	Created bool        `json:"created"`
}

// TopicInput describes a topic to create.
type TopicInput struct {
	Title      string
	Prompt     string
	Category   string
	Difficulty string
}

// BattleInput describes a battle to create.
type BattleInput struct {
	UserID       int64
	Model1ID     int64
	Model2ID     int64
	TopicID      int64
	CustomPrompt *string
}

// ListModels returns models matching f, best rated first.
func (s *Service) ListModels(ctx context.Context, f model.ModelFilter) ([]model.Model, error) {
	models, err := s.store.ListModels(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service.ListModels: %w", err)
	}
	return models, nil
}

// SearchModels returns active models whose name or description contains term.
func (s *Service) SearchModels(ctx context.Context, term string) ([]model.Model, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("service.SearchModels: %w: empty query", ErrInvalidInput)
	}
	models, err := s.store.SearchModels(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("service.SearchModels: %w", err)
	}
	return models, nil
}

func (s *Service) GetModel(ctx context.Context, id int64) (model.Model, error) {
	m, err := s.store.GetModel(ctx, id)
	if err != nil {
		return model.Model{}, fmt.Errorf("service.GetModel: %w", translate(err))
	}
	return m, nil
}

// CreateModel registers a model at the default rating.
func (s *Service) CreateModel(ctx context.Context, in ModelInput) (model.Model, error) {
	const op = "service.CreateModel"
	if err := in.validate(); err != nil {
		return model.Model{}, fmt.Errorf("%s: %w", op, err)
	}
	m, err := s.store.CreateModel(ctx, in.model())
	if err != nil {
		return model.Model{}, fmt.Errorf("%s: %w", op, translate(err))
	}
	s.invalidateLeaderboard(ctx)
	s.logger.Info(ctx, "model created",
		logger.Int64("model_id", m.ID),
		logger.String("name", m.QualifiedName()),
	)
	return m, nil
}

// DiscoverModel returns the model registered under in.ModelID, creating it
// with catalog defaults when it is unknown.
func (s *Service) DiscoverModel(ctx context.Context, in ModelInput) (Discovery, error) {
	const op = "service.DiscoverModel"
	if err := in.validate(); err != nil {
		return Discovery{}, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := s.store.GetModelByModelID(ctx, strings.TrimSpace(in.ModelID))
	switch {
	case err == nil:
		return Discovery{Model: existing}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return Discovery{}, fmt.Errorf("%s: %w", op, err)
	}

	if strings.TrimSpace(in.Description) == "" {
		in.Description = fmt.Sprintf("%s by %s", strings.TrimSpace(in.Name), strings.TrimSpace(in.Provider))
	}
	if strings.TrimSpace(in.Category) == "" {
		in.Category = discoverCategory
	}
	m, err := s.CreateModel(ctx, in)
	if err != nil {
		return Discovery{}, err
	}
	return Discovery{Model: m, Created: true}, nil
}

// ListTopics returns active topics matching f, most used first.
func (s *Service) ListTopics(ctx context.Context, f model.TopicFilter) ([]model.Topic, error) {
	topics, err := s.store.ListTopics(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("service.ListTopics: %w", err)
	}
	return topics, nil
}

// RandomTopic returns one active topic.
func (s *Service) RandomTopic(ctx context.Context) (model.Topic, error) {
	t, err := s.store.RandomTopic(ctx)
	if err != nil {
		return model.Topic{}, fmt.Errorf("service.RandomTopic: %w", translate(err))
	}
	return t, nil
}

// CreateTopic adds an active topic. Difficulty defaults to medium.
func (s *Service) CreateTopic(ctx context.Context, in TopicInput) (model.Topic, error) {
	const op = "service.CreateTopic"
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Prompt) == "" {
		return model.Topic{}, fmt.Errorf("%s: %w: title and prompt are required", op, ErrInvalidInput)
	}
	difficulty, ok := model.ParseDifficulty(in.Difficulty)
	if !ok {
		return model.Topic{}, fmt.Errorf("%s: %w: difficulty %q", op, ErrInvalidInput, in.Difficulty)
	}
	t, err := s.store.CreateTopic(ctx, model.Topic{
		Title:      strings.TrimSpace(in.Title),
		Prompt:     in.Prompt,
		Category:   in.Category,
		Difficulty: difficulty,
		IsActive:   true,
	})
	if err != nil {
		return model.Topic{}, fmt.Errorf("%s: %w", op, translate(err))
	}
	return t, nil
}

// CreateBattle inserts a pending battle and counts one use of its topic.
func (s *Service) CreateBattle(ctx context.Context, in BattleInput) (model.Battle, error) {
	const op = "service.CreateBattle"
	if in.Model1ID == in.Model2ID {
		return model.Battle{}, fmt.Errorf("%s: %w", op, ErrInvalidBattle)
	}

	var battle model.Battle
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, id := range []int64{in.Model1ID, in.Model2ID} {
			if _, err := tx.GetModel(ctx, id); err != nil {
				return translate(err)
			}
		}
		if _, err := tx.GetTopic(ctx, in.TopicID); err != nil {
			return translate(err)
		}

		var err error
		battle, err = tx.InsertBattle(ctx, model.Battle{
			UserID:       in.UserID,
			Model1ID:     in.Model1ID,
			Model2ID:     in.Model2ID,
			TopicID:      in.TopicID,
			CustomPrompt: in.CustomPrompt,
		})
		if err != nil {
			return err
		}
		return tx.IncrementTopicUsage(ctx, in.TopicID)
	})
	if err != nil {
		return model.Battle{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordBattleCreated()
	s.logger.Info(ctx, "battle created",
		logger.Int64("battle_id", battle.ID),
		logger.Int64("user_id", battle.UserID),
		logger.Int64("model1_id", battle.Model1ID),
		logger.Int64("model2_id", battle.Model2ID),
	)
	return battle, nil
}

func (s *Service) GetBattle(ctx context.Context, id int64) (model.Battle, error) {
	b, err := s.store.GetBattle(ctx, id)
	if err != nil {
		return model.Battle{}, fmt.Errorf("service.GetBattle: %w", translate(err))
	}
	return b, nil
}

// UserBattles returns the user's battles, newest first. limit <= 0 selects
// the default page size.
func (s *Service) UserBattles(ctx context.Context, userID int64, limit int) ([]model.Battle, error) {
	if limit <= 0 {
		limit = userHistoryLimit
	}
	battles, err := s.store.UserBattles(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("service.UserBattles: %w", err)
	}
	return battles, nil
}

// RecentBattles returns completed battles, newest first.
func (s *Service) RecentBattles(ctx context.Context, limit int) ([]model.Battle, error) {
	if limit <= 0 {
		limit = recentBattlesLimit
	}
	battles, err := s.store.RecentBattles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service.RecentBattles: %w", err)
	}
	return battles, nil
}

// ModelStats returns the model's daily roll-up, newest day first. The range
// applies only when both bounds are given.
func (s *Service) ModelStats(ctx context.Context, modelID int64, from, to string) ([]model.ModelStat, error) {
	const op = "service.ModelStats"
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(model.StatDateLayout, d); err != nil {
			return nil, fmt.Errorf("%s: %w: date %q", op, ErrInvalidInput, d)
		}
	}
	if from == "" || to == "" {
		from, to = "", ""
	}
	stats, err := s.store.ModelStats(ctx, modelID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

// GetPreference returns the user's saved preferences or the defaults.
func (s *Service) GetPreference(ctx context.Context, userID int64) (model.Preference, error) {
	p, err := s.store.GetPreference(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.DefaultPreference(userID), nil
	}
	if err != nil {
		return model.Preference{}, fmt.Errorf("service.GetPreference: %w", err)
	}
	return p, nil
}

// UpdatePreference merges patch over the stored preferences.
func (s *Service) UpdatePreference(ctx context.Context, userID int64, patch model.PreferencePatch) (model.Preference, error) {
	const op = "service.UpdatePreference"
	var saved model.Preference
	err := s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.GetPreference(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			current = model.DefaultPreference(userID)
		} else if err != nil {
			return err
		}
		saved, err = tx.UpsertPreference(ctx, current.Apply(patch))
		return err
	})
	if err != nil {
		return model.Preference{}, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}
