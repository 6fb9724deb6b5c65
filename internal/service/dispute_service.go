package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/dto"
	"github.com/noah-isme/opl-api/internal/models"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

type disputeStore interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.FeedbackRequest, error)
	GetFeedback(ctx context.Context, requestID string) (*models.Feedback, error)
}

type disputeResolver interface {
	ResolveDispute(ctx context.Context, id, adminID string, outcome dto.DisputeOutcome) (*models.FeedbackRequest, error)
}

// DisputeService arbitrates DISPUTED requests: it exposes each case (request,
// immutable deliverable, rationale) to an admin and accepts exactly one
// resolution. Resolution is always an explicit human action; there is no
// automatic timeout, since money is at stake for both parties.
type DisputeService struct {
	repo     disputeStore
	resolver disputeResolver
	logger   *zap.Logger
}

// NewDisputeService constructs the service.
func NewDisputeService(repo disputeStore, resolver disputeResolver, logger *zap.Logger) *DisputeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DisputeService{repo: repo, resolver: resolver, logger: logger}
}

// ListOpen returns every open dispute with its deliverable attached.
func (s *DisputeService) ListOpen(ctx context.Context) ([]dto.DisputeCase, error) {
	requests, err := s.repo.List(ctx, models.RequestFilter{
		Status: []models.RequestStatus{models.StatusDisputed},
		Limit:  200,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list disputes")
	}
	cases := make([]dto.DisputeCase, 0, len(requests))
	for i := range requests {
		req := requests[i]
		c := dto.DisputeCase{Request: &req}
		if req.DisputeReason != nil {
			c.Reason = *req.DisputeReason
		}
		if feedback, err := s.repo.GetFeedback(ctx, req.ID); err == nil {
			c.Feedback = feedback
		} else {
			s.logger.Warn("dispute case missing deliverable",
				zap.String("request_id", req.ID), zap.Error(err))
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Resolve applies the admin decision through the state machine.
func (s *DisputeService) Resolve(ctx context.Context, id, adminID string, payload dto.ResolveDisputePayload) (*models.FeedbackRequest, error) {
	req, err := s.resolver.ResolveDispute(ctx, id, adminID, payload.Outcome)
	if err != nil {
		return nil, err
	}
	s.logger.Info("dispute resolved",
		zap.String("request_id", id),
		zap.String("admin_id", adminID),
		zap.String("outcome", string(payload.Outcome)),
		zap.String("note", payload.Note))
	return req, nil
}
