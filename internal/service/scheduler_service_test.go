package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

type stubDueLister struct {
	mu  sync.Mutex
	due []models.DueRequest
	err error
}

func (s *stubDueLister) ListDue(_ context.Context, _ time.Time, _ int) ([]models.DueRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	due := s.due
	s.due = nil
	return due, nil
}

type stubMachine struct {
	mu       sync.Mutex
	calls    map[string][]string
	failWith error
}

func newStubMachine() *stubMachine {
	return &stubMachine{calls: make(map[string][]string)}
}

func (s *stubMachine) record(kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[kind] = append(s.calls[kind], id)
	return s.failWith
}

func (s *stubMachine) ExpireAcceptance(_ context.Context, id string) (*models.FeedbackRequest, error) {
	return nil, s.record("accept_expiry", id)
}

func (s *stubMachine) ExpireSubmission(_ context.Context, id string) (*models.FeedbackRequest, error) {
	return nil, s.record("submit_expiry", id)
}

func (s *stubMachine) AutoComplete(_ context.Context, id string) (*models.FeedbackRequest, error) {
	return nil, s.record("auto_complete", id)
}

func (s *stubMachine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, ids := range s.calls {
		total += len(ids)
	}
	return total
}

func TestSweepDispatchesByDueKind(t *testing.T) {
	lister := &stubDueLister{due: []models.DueRequest{
		{ID: "req-1", Kind: models.DueAcceptExpiry},
		{ID: "req-2", Kind: models.DueSubmitExpiry},
		{ID: "req-3", Kind: models.DueAutoComplete},
	}}
	machine := newStubMachine()

	scheduler := NewSchedulerService(lister, machine, nil, zap.NewNop(), SchedulerServiceConfig{
		Interval: time.Hour,
		Workers:  2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	scheduler.Sweep(ctx)

	require.Eventually(t, func() bool { return machine.callCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	machine.mu.Lock()
	defer machine.mu.Unlock()
	assert.Equal(t, []string{"req-1"}, machine.calls["accept_expiry"])
	assert.Equal(t, []string{"req-2"}, machine.calls["submit_expiry"])
	assert.Equal(t, []string{"req-3"}, machine.calls["auto_complete"])
}

func TestSweepTreatsLostRaceAsBenign(t *testing.T) {
	lister := &stubDueLister{due: []models.DueRequest{
		{ID: "req-1", Kind: models.DueAcceptExpiry},
	}}
	machine := newStubMachine()
	machine.failWith = appErrors.ErrInvalidTransition

	scheduler := NewSchedulerService(lister, machine, nil, zap.NewNop(), SchedulerServiceConfig{
		Interval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	scheduler.Sweep(ctx)

	// The race loss is swallowed, never retried.
	require.Eventually(t, func() bool { return machine.callCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, machine.callCount())
}

func TestSweepReportsDueAndQueueDepth(t *testing.T) {
	lister := &stubDueLister{due: []models.DueRequest{
		{ID: "req-1", Kind: models.DueAcceptExpiry},
		{ID: "req-2", Kind: models.DueSubmitExpiry},
	}}
	metrics := NewMetricsService()

	scheduler := NewSchedulerService(lister, newStubMachine(), metrics, zap.NewNop(), SchedulerServiceConfig{
		Interval: time.Hour,
	})

	// Workers stay unstarted so the enqueued jobs sit in the queue.
	scheduler.Sweep(context.Background())

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.sweepDue))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.sweepQueueDepth))
}

func TestSweepSurvivesScanFailure(t *testing.T) {
	lister := &stubDueLister{err: assertableErr{}}
	machine := newStubMachine()

	scheduler := NewSchedulerService(lister, machine, nil, zap.NewNop(), SchedulerServiceConfig{
		Interval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)
	defer scheduler.Stop()

	scheduler.Sweep(ctx)
	assert.Zero(t, machine.callCount())
}

type assertableErr struct{}

func (assertableErr) Error() string { return "scan failed" }
