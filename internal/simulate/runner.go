package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/arena/pkg/logger"
)

// Errors returned before any traffic is generated.
var (
	ErrNotEnoughModels = errors.New("need at least two active models")
	ErrNoTopics        = errors.New("need at least one topic")
)

const percentageMultiplier = 100

type counters struct {
	created, executed, queued, votes, draws, failed atomic.Int64
}

// Run executes a complete simulation against cfg.BaseURL.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	cfg.Defaults()
	log := logger.Named("simulate")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting arena simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("battles", cfg.Battles),
		logger.Int("workers", cfg.Workers),
		logger.Bool("async", cfg.Async),
		logger.Float64("drawRate", cfg.DrawRate))

	c := newClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := c.healthy(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Load the catalog
	var models []Model
	if err := c.query(ctx, "models.list", url.Values{"isActive": {"true"}}, &models); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if len(models) < 2 {
		return nil, ErrNotEnoughModels
	}
	var topics []Topic
	if err := c.query(ctx, "topics.list", nil, &topics); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}

	// Step 3: Play battles concurrently
	var n counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range cfg.Battles {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := play(gctx, c, cfg, cfg.FirstUser+int64(i), models, topics, &n); err != nil {
				n.failed.Add(1)
				if cfg.Verbose {
					log.Warn(gctx, "battle failed", logger.Int("battle", i), logger.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulation interrupted: %w", err)
	}

	stats.BattlesCreated = int(n.created.Load())
	stats.BattlesExecuted = int(n.executed.Load())
	stats.BattlesQueued = int(n.queued.Load())
	stats.VotesCast = int(n.votes.Load())
	stats.Draws = int(n.draws.Load())
	stats.Failed = int(n.failed.Load())

	// Step 4: Verify the leaderboard
	var entries []Entry
	if err := c.query(ctx, "leaderboard.get", url.Values{"limit": {strconv.Itoa(cfg.TopN)}}, &entries); err != nil {
		return nil, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	if err := VerifyLeaderboard(entries, len(entries) < cfg.TopN); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	displayTop(ctx, entries)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// play creates one battle as user, executes it and votes on it.
func play(ctx context.Context, c *client, cfg Config, user int64, models []Model, topics []Topic, n *counters) error {
	i := rand.IntN(len(models))
	j := rand.IntN(len(models) - 1)
	if j >= i {
		j++
	}
	m1, m2 := models[i], models[j]
	topic := topics[rand.IntN(len(topics))]

	var created struct {
		BattleID int64 `json:"battleId"`
	}
	if _, err := c.mutate(ctx, "battles.create", user, map[string]any{
		"model1Id": m1.ID,
		"model2Id": m2.ID,
		"topicId":  topic.ID,
	}, &created); err != nil {
		return err
	}
	n.created.Add(1)

	status, err := c.mutate(ctx, "battles.execute", user, map[string]any{
		"battleId": created.BattleID,
		"async":    cfg.Async,
	}, nil)
	if err != nil {
		return err
	}
	if status == http.StatusAccepted {
		n.queued.Add(1)
	} else {
		n.executed.Add(1)
	}

	var voted *int64
	if rand.Float64() >= cfg.DrawRate {
		winner := m1.ID
		if rand.IntN(2) == 1 {
			winner = m2.ID
		}
		voted = &winner
	}
	if _, err := c.mutate(ctx, "votes.submit", user, map[string]any{
		"battleId":     created.BattleID,
		"votedModelId": voted,
	}, nil); err != nil {
		return err
	}
	n.votes.Add(1)
	if voted == nil {
		n.draws.Add(1)
	}
	return nil
}

// displayTop logs the ten best rated models.
func displayTop(ctx context.Context, entries []Entry) {
	log := logger.Named("simulate")
	for _, e := range entries[:min(10, len(entries))] {
		log.Info(ctx, "leaderboard",
			logger.Int("rank", e.Rank),
			logger.String("model", e.Name),
			logger.Int("elo", e.EloRating),
			logger.Float64("winRate", e.WinRate))
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, battlesPerSecond float64
	if stats.BattlesCreated > 0 {
		successRate = float64(stats.VotesCast) / float64(stats.BattlesCreated) * percentageMultiplier
	}
	if stats.Duration > 0 {
		battlesPerSecond = float64(stats.BattlesCreated) / stats.Duration.Seconds()
	}

	logger.Named("simulate").Info(ctx, "final statistics",
		logger.Int("battlesCreated", stats.BattlesCreated),
		logger.Int("battlesExecuted", stats.BattlesExecuted),
		logger.Int("battlesQueued", stats.BattlesQueued),
		logger.Int("votesCast", stats.VotesCast),
		logger.Int("draws", stats.Draws),
		logger.Int("failed", stats.Failed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("battlesPerSecond", battlesPerSecond))
}
