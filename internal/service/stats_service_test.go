package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/models"
	"github.com/noah-isme/opl-api/internal/repository"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

type stubStatsStore struct {
	counts     map[models.RequestStatus]int64
	halted     int64
	countCalls int
}

func (s *stubStatsStore) StatusCounts(context.Context) (map[models.RequestStatus]int64, error) {
	s.countCalls++
	return s.counts, nil
}

func (s *stubStatsStore) HaltedCount(context.Context) (int64, error) {
	return s.halted, nil
}

type memCache struct {
	values map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c.values == nil {
		c.values = make(map[string][]byte)
	}
	c.values[key] = raw
	return nil
}

func TestStatsOverviewAggregates(t *testing.T) {
	store := &stubStatsStore{
		counts: map[models.RequestStatus]int64{
			models.StatusSent:     4,
			models.StatusDisputed: 2,
		},
		halted: 1,
	}
	ledger := repository.NewMemoryLedger()
	ctx := context.Background()
	ledger.Credit("student-1", 100)
	holdID, err := ledger.Hold(ctx, "req-1", "student-1", 60)
	require.NoError(t, err)
	require.NoError(t, ledger.Release(ctx, holdID, "teacher-1"))
	_, err = ledger.Hold(ctx, "req-2", "student-1", 25)
	require.NoError(t, err)

	svc := NewStatsService(store, ledger, nil, nil, zap.NewNop(), time.Minute)

	stats, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.OpenDisputes)
	assert.Equal(t, int64(1), stats.HaltedRequests)
	assert.Equal(t, int64(4), stats.CountsByStatus[models.StatusSent])
	assert.Equal(t, int64(25), stats.CreditsHeld)
	assert.Equal(t, int64(60), stats.CreditsReleased)
	assert.Equal(t, int64(0), stats.CreditsRefunded)
	assert.False(t, stats.GeneratedAt.IsZero())
}

func TestStatsOverviewServedFromCache(t *testing.T) {
	store := &stubStatsStore{counts: map[models.RequestStatus]int64{models.StatusSent: 1}}
	ledger := repository.NewMemoryLedger()
	cache := &memCache{}

	svc := NewStatsService(store, ledger, cache, nil, zap.NewNop(), time.Minute)
	ctx := context.Background()

	_, err := svc.Overview(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, store.countCalls)

	// Second call hits the cache, not the store.
	_, err = svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.countCalls)
}
