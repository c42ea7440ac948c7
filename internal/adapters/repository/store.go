// Package repository persists arena entities in a relational store.
package repository

import (
	"context"

	"github.com/okian/arena/internal/domain/model"
)

// Queries is the set of reads and writes available both on the store and
// inside a transaction.
type Queries interface {
	// Models
	ListModels(ctx context.Context, f model.ModelFilter) ([]model.Model, error)
	SearchModels(ctx context.Context, term string) ([]model.Model, error)
	GetModel(ctx context.Context, id int64) (model.Model, error)
	GetModelByModelID(ctx context.Context, modelID string) (model.Model, error)
	CreateModel(ctx context.Context, m model.Model) (model.Model, error)
	// Leaderboard returns active models ordered by rating desc, id asc.
	Leaderboard(ctx context.Context, limit int) ([]model.Model, error)
	CountModels(ctx context.Context) (int, error)
	// LockModels returns the models keyed by id, row-locked in ascending id order.
	// Returns ErrNotFound if any id is missing.
	LockModels(ctx context.Context, ids ...int64) (map[int64]model.Model, error)
	// ApplyOutcome writes a new rating and bumps the counter for o.
	ApplyOutcome(ctx context.Context, modelID int64, o model.Outcome, newRating int) error
	IncrementBattleCount(ctx context.Context, modelID int64) error

	// Topics
	ListTopics(ctx context.Context, f model.TopicFilter) ([]model.Topic, error)
	RandomTopic(ctx context.Context) (model.Topic, error)
	GetTopic(ctx context.Context, id int64) (model.Topic, error)
	CreateTopic(ctx context.Context, t model.Topic) (model.Topic, error)
	IncrementTopicUsage(ctx context.Context, topicID int64) error

	// Battles
	InsertBattle(ctx context.Context, b model.Battle) (model.Battle, error)
	GetBattle(ctx context.Context, id int64) (model.Battle, error)
	LockBattle(ctx context.Context, id int64) (model.Battle, error)
	UserBattles(ctx context.Context, userID int64, limit int) ([]model.Battle, error)
	RecentBattles(ctx context.Context, limit int) ([]model.Battle, error)
	// SetBattleWinner records winnerID unless a winner is already set.
	SetBattleWinner(ctx context.Context, battleID, winnerID int64) error
	// CompleteBattle stores responses and moves a pending battle to completed.
	// Returns ErrConflict if the battle is no longer pending.
	CompleteBattle(ctx context.Context, c model.Completion) error
	// MarkBattleFailed moves a pending battle to error.
	MarkBattleFailed(ctx context.Context, battleID int64) error

	// Votes
	InsertVote(ctx context.Context, v model.Vote) (model.Vote, error)
	FindVote(ctx context.Context, battleID, userID int64) (model.Vote, error)
	BattleVotes(ctx context.Context, battleID int64) ([]model.Vote, error)

	// Daily stats
	RecordDailyStat(ctx context.Context, d model.StatDelta) error
	ModelStats(ctx context.Context, modelID int64, from, to string) ([]model.ModelStat, error)

	// Preferences
	GetPreference(ctx context.Context, userID int64) (model.Preference, error)
	UpsertPreference(ctx context.Context, p model.Preference) (model.Preference, error)
}

// Tx is a unit of work. It is only valid inside the InTx callback.
type Tx interface {
	Queries
}

// Store provides read/write access to the arena state.
type Store interface {
	Queries

	// InTx runs fn in one transaction, committing when fn returns nil.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Migrate applies the embedded schema. It is idempotent.
	Migrate(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}
