package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

const statsCacheKey = "opl:stats:overview"

type statsStore interface {
	StatusCounts(ctx context.Context) (map[models.RequestStatus]int64, error)
	HaltedCount(ctx context.Context) (int64, error)
}

type creditTotaller interface {
	CreditTotals(ctx context.Context) (held, released, refunded int64, err error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsService aggregates engine counters for the admin overview, with a
// short Redis cache in front so dashboards cannot hammer the aggregation
// queries.
type StatsService struct {
	repo    statsStore
	ledger  creditTotaller
	cache   statsCache
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewStatsService constructs the service. A nil cache disables caching.
func NewStatsService(repo statsStore, ledger creditTotaller, cache statsCache, metrics *MetricsService, logger *zap.Logger, ttl time.Duration) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsService{repo: repo, ledger: ledger, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// Overview returns the current engine stats, served from cache when fresh.
func (s *StatsService) Overview(ctx context.Context) (*models.EngineStats, error) {
	if s.cache != nil {
		var cached models.EngineStats
		if err := s.cache.Get(ctx, statsCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache lookup failed", zap.Error(err))
		}
		s.metrics.RecordCacheOperation(false)
	}

	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	halted, err := s.repo.HaltedCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count halted requests")
	}
	held, released, refunded, err := s.ledger.CreditTotals(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.EngineStats{
		CountsByStatus:  counts,
		OpenDisputes:    counts[models.StatusDisputed],
		HaltedRequests:  halted,
		CreditsHeld:     held,
		CreditsReleased: released,
		CreditsRefunded: refunded,
		GeneratedAt:     time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, statsCacheKey, stats, s.ttl); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}
