package service

import (
	"context"
	"fmt"

	"github.com/okian/arena/internal/domain/types"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// LeaderboardLimit clamps a requested page size; n <= 0 selects the default.
func (s *Service) LeaderboardLimit(n int) int {
	if n <= 0 {
		return s.defaultLimit
	}
	if n > s.maxLimit {
		return s.maxLimit
	}
	return n
}

// Leaderboard returns the top active models ranked by rating, ties broken
// by id. Pages are served from the cache when one is configured.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	limit = s.LeaderboardLimit(limit)

	if s.cache == nil {
		return s.loadLeaderboard(ctx, limit)
	}

	entries, ok, err := s.cache.Get(ctx, limit)
	switch {
	case err != nil:
		s.logger.Warn(ctx, "leaderboard cache read failed", logger.Error(err))
	case ok:
		metrics.RecordCacheHit()
		return entries, nil
	}
	metrics.RecordCacheMiss()

	// The generation is read before loading so that a rating change landing
	// between the load and the write keeps the old page out of the cache.
	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.Warn(ctx, "leaderboard cache generation read failed", logger.Error(genErr))
	}

	entries, err = s.loadLeaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		s.storePage(ctx, gen, limit, entries)
	}
	return entries, nil
}

func (s *Service) storePage(ctx context.Context, gen uint64, limit int, entries []types.Entry) {
	stored, err := s.cache.Set(ctx, gen, limit, entries)
	if err != nil {
		s.logger.Warn(ctx, "leaderboard cache write failed", logger.Int("limit", limit), logger.Error(err))
		return
	}
	if !stored {
		s.logger.Debug(ctx, "leaderboard page outdated before caching", logger.Int("limit", limit))
	}
}

func (s *Service) loadLeaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	models, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service.Leaderboard: %w", translate(err))
	}
	return types.Ranked(models), nil
}

// warmLeaderboard rebuilds every cached page plus the default one.
func (s *Service) warmLeaderboard(ctx context.Context) {
	limits, err := s.cache.Limits(ctx)
	if err != nil {
		s.logger.Warn(ctx, "leaderboard warm: list cached pages", logger.Error(err))
		limits = nil
	}
	seen := map[int]bool{}
	for _, limit := range append(limits, s.defaultLimit) {
		limit = s.LeaderboardLimit(limit)
		if seen[limit] {
			continue
		}
		seen[limit] = true

		gen, err := s.cache.Generation(ctx)
		if err != nil {
			s.logger.Warn(ctx, "leaderboard warm: read generation", logger.Error(err))
			return
		}
		entries, err := s.loadLeaderboard(ctx, limit)
		if err != nil {
			s.logger.Warn(ctx, "leaderboard warm failed", logger.Int("limit", limit), logger.Error(err))
			continue
		}
		s.storePage(ctx, gen, limit, entries)
	}
	s.logger.Debug(ctx, "leaderboard cache warmed", logger.Int("pages", len(seen)))
}
