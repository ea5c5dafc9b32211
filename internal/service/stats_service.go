package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/threaded-comments-api/internal/models"
	"github.com/threaded-comments-api/internal/ratelimit"
	"github.com/threaded-comments-api/internal/repository"
)

// statsService is the concrete implementation of StatsService
type statsService struct {
	repos   *repository.Repositories
	limiter *ratelimit.Limiter
	log     zerolog.Logger
}

func newStatsService(repos *repository.Repositories, limiter *ratelimit.Limiter, log zerolog.Logger) *statsService {
	return &statsService{
		repos:   repos,
		limiter: limiter,
		log:     log.With().Str("service", "stats").Logger(),
	}
}

// Snapshot counts the stored rows and the keys the limiter is tracking
func (s *statsService) Snapshot(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{LimiterKeys: s.limiter.Len()}

	var err error
	if stats.Comments, err = s.repos.Comment.Count(ctx); err != nil {
		return nil, upstream("count comments", err)
	}
	if stats.Waiting, err = s.repos.Comment.CountByStatus(ctx, "", "", models.StatusWaiting); err != nil {
		return nil, upstream("count waiting comments", err)
	}
	if stats.Spam, err = s.repos.Comment.CountByStatus(ctx, "", "", models.StatusSpam); err != nil {
		return nil, upstream("count spam comments", err)
	}
	if stats.Users, err = s.repos.User.Count(ctx); err != nil {
		return nil, upstream("count users", err)
	}
	if stats.Counters, err = s.repos.Counter.Count(ctx); err != nil {
		return nil, upstream("count counters", err)
	}
	return stats, nil
}
