package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/repository"
)

func TestMetricsLedgerOperationRecordsOutcome(t *testing.T) {
	m := NewMetricsService()

	m.ObserveLedgerOperation("hold", nil, 5*time.Millisecond)
	m.ObserveLedgerOperation("hold", nil, 3*time.Millisecond)
	m.ObserveLedgerOperation("refund", errors.New("connection reset"), time.Millisecond)

	require.Equal(t, uint64(2), histogramCount(t, m, "escrow_ledger_operation_seconds",
		map[string]string{"operation": "hold", "outcome": "ok"}))
	require.Equal(t, uint64(1), histogramCount(t, m, "escrow_ledger_operation_seconds",
		map[string]string{"operation": "refund", "outcome": "error"}))
}

func TestMetricsSweepSetsGauges(t *testing.T) {
	m := NewMetricsService()

	m.ObserveSweep(40*time.Millisecond, 7, 3)

	assert.Equal(t, float64(7), testutil.ToFloat64(m.sweepDue))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sweepQueueDepth))
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var m *MetricsService

	m.ObserveLedgerOperation("hold", nil, time.Millisecond)
	m.ObserveSweep(time.Millisecond, 1, 1)
	m.ObserveHTTPRequest("GET", "/requests", 200, time.Millisecond)
	m.RecordCacheOperation(true)
}

// Funding a request must leave a timed sample for the hold call.
func TestFundObservesLedgerHold(t *testing.T) {
	store := newMemStore()
	ledger := repository.NewMemoryLedger()
	metrics := NewMetricsService()
	svc := NewRequestService(store, ledger, nil, metrics, zap.NewNop(), RequestServiceConfig{})
	ctx := context.Background()
	ledger.Credit("student-1", 100)

	req, err := svc.CreateDraft(ctx, validPayload(), "student-1")
	require.NoError(t, err)
	_, err = svc.Fund(ctx, req.ID, "student-1")
	require.NoError(t, err)

	require.Equal(t, uint64(1), histogramCount(t, metrics, "escrow_ledger_operation_seconds",
		map[string]string{"operation": "hold", "outcome": "ok"}))
}

func histogramCount(t *testing.T, m *MetricsService, name string, labels map[string]string) uint64 {
	t.Helper()
	families, err := m.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := true
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					matched = false
					break
				}
			}
			if matched {
				return metric.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}
