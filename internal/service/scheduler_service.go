package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
	"github.com/noah-isme/opl-api/pkg/jobs"
)

type dueLister interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.DueRequest, error)
}

type autoTransitioner interface {
	ExpireAcceptance(ctx context.Context, id string) (*models.FeedbackRequest, error)
	ExpireSubmission(ctx context.Context, id string) (*models.FeedbackRequest, error)
	AutoComplete(ctx context.Context, id string) (*models.FeedbackRequest, error)
}

// SchedulerServiceConfig tunes sweep cadence and fan-out.
type SchedulerServiceConfig struct {
	Interval  time.Duration
	Workers   int
	BatchSize int
}

// SchedulerService periodically scans for requests whose active deadline has
// passed and applies the corresponding automatic transition. The scan fans
// out through a bounded worker queue so sweep latency stays bounded
// regardless of volume; per-request races with actor transitions surface as
// INVALID_TRANSITION and are treated as benign no-ops.
type SchedulerService struct {
	repo    dueLister
	machine autoTransitioner
	metrics *MetricsService
	logger  *zap.Logger
	cfg     SchedulerServiceConfig

	queue *jobs.Queue
	now   func() time.Time
}

// NewSchedulerService constructs the scheduler.
func NewSchedulerService(repo dueLister, machine autoTransitioner, metrics *MetricsService, logger *zap.Logger, cfg SchedulerServiceConfig) *SchedulerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	s := &SchedulerService{
		repo:    repo,
		machine: machine,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("deadline-sweep", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BatchSize,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the workers and the sweep loop. Runs until ctx is done.
func (s *SchedulerService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.loop(ctx)
	s.logger.Sugar().Infow("deadline scheduler started",
		"interval", s.cfg.Interval, "workers", s.cfg.Workers)
}

// Stop drains the workers.
func (s *SchedulerService) Stop() {
	s.queue.Stop()
}

func (s *SchedulerService) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep enqueues every due request once. Individual failures never abort the
// cycle.
func (s *SchedulerService) Sweep(ctx context.Context) {
	start := s.now()
	due, err := s.repo.ListDue(ctx, start, s.cfg.BatchSize)
	if err != nil {
		s.logger.Error("sweep scan failed", zap.Error(err))
		return
	}
	for _, item := range due {
		if err := s.queue.Enqueue(jobs.Job{ID: item.ID, Type: string(item.Kind)}); err != nil {
			s.logger.Warn("failed to enqueue due request",
				zap.String("request_id", item.ID), zap.Error(err))
		}
	}
	s.metrics.ObserveSweep(time.Since(start), len(due), s.queue.Depth())
}

func (s *SchedulerService) handleJob(ctx context.Context, job jobs.Job) error {
	var err error
	switch models.DueKind(job.Type) {
	case models.DueAcceptExpiry:
		_, err = s.machine.ExpireAcceptance(ctx, job.ID)
	case models.DueSubmitExpiry:
		_, err = s.machine.ExpireSubmission(ctx, job.ID)
	case models.DueAutoComplete:
		_, err = s.machine.AutoComplete(ctx, job.ID)
	default:
		s.logger.Warn("unknown sweep job type", zap.String("type", job.Type))
		return nil
	}
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, appErrors.ErrInvalidTransition), errors.Is(err, appErrors.ErrNotFound):
		// An actor transition won the race; nothing left to do.
		s.logger.Debug("sweep lost race",
			zap.String("request_id", job.ID), zap.String("kind", job.Type))
		return nil
	case errors.Is(err, appErrors.ErrLedgerUnavailable):
		// Transient; hand back to the queue for retry with delay.
		return err
	case errors.Is(err, appErrors.ErrDoubleSettlement):
		// The state machine already halted the request; do not retry.
		s.logger.Error("sweep hit double settlement",
			zap.String("request_id", job.ID), zap.String("kind", job.Type), zap.Error(err))
		return nil
	default:
		s.logger.Error("sweep transition failed",
			zap.String("request_id", job.ID), zap.String("kind", job.Type), zap.Error(err))
		return nil
	}
}
