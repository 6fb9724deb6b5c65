package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/dto"
	"github.com/noah-isme/opl-api/internal/models"
	"github.com/noah-isme/opl-api/internal/repository"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, req *models.FeedbackRequest) error
	GetByID(ctx context.Context, id string) (*models.FeedbackRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.FeedbackRequest, error)
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
	SubmitFeedback(ctx context.Context, feedback *models.Feedback, params repository.TransitionParams) error
	GetFeedback(ctx context.Context, requestID string) (*models.Feedback, error)
	MarkHalted(ctx context.Context, id string) error
}

// EscrowLedger is the abstract ownership of credit balances. Exactly one of
// Release/Refund settles each hold; implementations must keep balance math
// atomic and map transport failures to LEDGER_UNAVAILABLE. Hold is idempotent
// per request id: a retry returns the existing held token instead of debiting
// the account again.
type EscrowLedger interface {
	Hold(ctx context.Context, requestID, accountID string, amount int64) (string, error)
	Release(ctx context.Context, holdID, payeeID string) error
	Refund(ctx context.Context, holdID string) error
}

// TransitionNotifier is informed of every successful transition.
// Fire-and-forget: failures never roll back the transition.
type TransitionNotifier interface {
	NotifyTransition(ctx context.Context, event models.TransitionEvent)
}

// RequestServiceConfig sets the lifecycle windows and ledger call bound.
type RequestServiceConfig struct {
	AcceptWindow  time.Duration
	SubmitWindow  time.Duration
	ReviewWindow  time.Duration
	LedgerTimeout time.Duration
}

// RequestService is the request state machine. It validates and applies
// transitions, derives deadlines, and keeps payment state consistent with
// workflow state. All operations on a given request id are mutually
// exclusive; the conditional status update in the repository is the backstop
// against anything that slips past the lock.
type RequestService struct {
	repo      requestStore
	ledger    EscrowLedger
	notifier  TransitionNotifier
	metrics   *MetricsService
	logger    *zap.Logger
	validator *validator.Validate
	cfg       RequestServiceConfig

	locks *keyedMutex
	now   func() time.Time
}

// NewRequestService constructs the state machine with defaults.
func NewRequestService(repo requestStore, ledger EscrowLedger, notifier TransitionNotifier, metrics *MetricsService, logger *zap.Logger, cfg RequestServiceConfig) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if cfg.AcceptWindow <= 0 {
		cfg.AcceptWindow = 12 * time.Hour
	}
	if cfg.SubmitWindow <= 0 {
		cfg.SubmitWindow = 48 * time.Hour
	}
	if cfg.ReviewWindow <= 0 {
		cfg.ReviewWindow = 72 * time.Hour
	}
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = 5 * time.Second
	}
	return &RequestService{
		repo:      repo,
		ledger:    ledger,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger,
		validator: validator.New(),
		cfg:       cfg,
		locks:     newKeyedMutex(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateDraft creates a new DRAFT request owned by the student.
func (s *RequestService) CreateDraft(ctx context.Context, payload dto.CreateRequestPayload, studentID string) (*models.FeedbackRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !payload.ProblemType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported problem type")
	}
	req := &models.FeedbackRequest{
		StudentID:    studentID,
		TeacherID:    payload.TeacherID,
		Composer:     strings.TrimSpace(payload.Composer),
		Piece:        strings.TrimSpace(payload.Piece),
		MeasureStart: payload.MeasureStart,
		MeasureEnd:   payload.MeasureEnd,
		ProblemType:  payload.ProblemType,
		Description:  payload.Description,
		VideoURL:     optionalString(payload.VideoURL),
		FaceBlurred:  payload.FaceBlurred,
		Status:       models.StatusDraft,
		CreditAmount: payload.CreditAmount,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	return req, nil
}

// Fund holds the credit amount in escrow and moves DRAFT→HELD. On
// INSUFFICIENT_BALANCE the request stays in DRAFT for retry. A retry after a
// failed state write reuses the existing hold instead of double-charging.
func (s *RequestService) Fund(ctx context.Context, id, actorID string) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.StudentID != actorID {
		return nil, appErrors.ErrForbidden
	}
	if req.Status != models.StatusDraft {
		return nil, appErrors.ErrInvalidTransition
	}

	// The ledger keys holds on the request id, so this call is safe to retry
	// after a lost state write: it hands back the existing hold token rather
	// than debiting the student a second time.
	holdID, err := s.ledgerHold(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, req, repository.TransitionParams{
		ID:         id,
		FromStatus: models.StatusDraft,
		ToStatus:   models.StatusHeld,
		HoldID:     &holdID,
	})
}

// Dispatch sends the funded request to the teacher and arms the accept
// deadline.
func (s *RequestService) Dispatch(ctx context.Context, id, actorID string) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.StudentID != actorID {
		return nil, appErrors.ErrForbidden
	}
	if req.Status != models.StatusHeld {
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.now()
	deadline := now.Add(s.cfg.AcceptWindow)
	return s.transition(ctx, req, repository.TransitionParams{
		ID:             id,
		FromStatus:     models.StatusHeld,
		ToStatus:       models.StatusSent,
		SentAt:         &now,
		AcceptDeadline: &deadline,
	})
}

// Accept moves SENT→ACCEPTED and arms the submit deadline. The deadline check
// here is authoritative: a lapsed deadline fails with DEADLINE_PASSED even if
// the sweep has not expired the request yet. Accepting while a clarification
// pauses the deadline is allowed.
func (s *RequestService) Accept(ctx context.Context, id, actorID string) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TeacherID != actorID {
		return nil, appErrors.ErrForbidden
	}
	if req.Status != models.StatusSent {
		return nil, appErrors.ErrInvalidTransition
	}
	now := s.now()
	if req.AcceptDeadline != nil && !now.Before(*req.AcceptDeadline) {
		return nil, appErrors.ErrDeadlinePassed
	}

	submitDeadline := now.Add(s.cfg.SubmitWindow)
	return s.transition(ctx, req, repository.TransitionParams{
		ID:                   id,
		FromStatus:           models.StatusSent,
		ToStatus:             models.StatusAccepted,
		AcceptedAt:           &now,
		SubmitDeadline:       &submitDeadline,
		ClearAcceptDeadline:  true,
		ClearAcceptRemaining: true,
	})
}

// Decline refuses the request with a reason and refunds the student.
func (s *RequestService) Decline(ctx context.Context, id, actorID, reason string) (*models.FeedbackRequest, error) {
	return s.decline(ctx, id, reason, func(req *models.FeedbackRequest) error {
		if req.TeacherID != actorID {
			return appErrors.ErrForbidden
		}
		return nil
	})
}

// DeclineOnBehalf is the support override of Decline. Role enforcement
// happens at the route; no ownership check applies.
func (s *RequestService) DeclineOnBehalf(ctx context.Context, id, adminID, reason string) (*models.FeedbackRequest, error) {
	s.logger.Info("decline on behalf", zap.String("request_id", id), zap.String("admin_id", adminID))
	return s.decline(ctx, id, reason, func(*models.FeedbackRequest) error { return nil })
}

func (s *RequestService) decline(ctx context.Context, id, reason string, authorize func(*models.FeedbackRequest) error) (*models.FeedbackRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decline reason is required")
	}

	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(req); err != nil {
		return nil, err
	}
	if req.Status != models.StatusSent {
		return nil, appErrors.ErrInvalidTransition
	}

	if err := s.ledgerRefund(ctx, req); err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(reason)
	return s.transition(ctx, req, repository.TransitionParams{
		ID:                   id,
		FromStatus:           models.StatusSent,
		ToStatus:             models.StatusDeclined,
		DeclineReason:        &trimmed,
		ClearAcceptDeadline:  true,
		ClearAcceptRemaining: true,
	})
}

// ExpireAcceptance sweeps a SENT request whose accept deadline lapsed without
// an accept or decline. A paused deadline (open clarification) never expires.
func (s *RequestService) ExpireAcceptance(ctx context.Context, id string) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusSent || req.AcceptDeadline == nil {
		return nil, appErrors.ErrInvalidTransition
	}
	if s.now().Before(*req.AcceptDeadline) {
		return nil, appErrors.ErrInvalidTransition
	}

	if err := s.ledgerRefund(ctx, req); err != nil {
		return nil, err
	}
	return s.transition(ctx, req, repository.TransitionParams{
		ID:                  id,
		FromStatus:          models.StatusSent,
		ToStatus:            models.StatusExpired,
		ClearAcceptDeadline: true,
	})
}

// Submit attaches the deliverable exactly once and moves ACCEPTED→SUBMITTED.
func (s *RequestService) Submit(ctx context.Context, id, actorID string, payload dto.SubmitFeedbackPayload) (*models.FeedbackRequest, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TeacherID != actorID {
		return nil, appErrors.ErrForbidden
	}
	if req.Status != models.StatusAccepted {
		if s.hasFeedback(ctx, id) {
			return nil, appErrors.ErrAlreadySubmitted
		}
		return nil, appErrors.ErrInvalidTransition
	}
	now := s.now()
	if req.SubmitDeadline != nil && !now.Before(*req.SubmitDeadline) {
		return nil, appErrors.ErrDeadlinePassed
	}

	feedback := &models.Feedback{
		RequestID:    id,
		Comments:     payload.Comments,
		DemoVideoURL: optionalString(payload.DemoVideoURL),
		PracticeCard: payload.PracticeCard,
		SubmittedAt:  now,
	}
	reviewDeadline := now.Add(s.cfg.ReviewWindow)
	params := repository.TransitionParams{
		ID:                  id,
		FromStatus:          models.StatusAccepted,
		ToStatus:            models.StatusSubmitted,
		SubmittedAt:         &now,
		ReviewDeadline:      &reviewDeadline,
		ClearSubmitDeadline: true,
	}
	if err := s.repo.SubmitFeedback(ctx, feedback, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if s.hasFeedback(ctx, id) {
				return nil, appErrors.ErrAlreadySubmitted
			}
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit feedback")
	}
	s.finishTransition(ctx, req, models.StatusSubmitted)
	return s.snapshot(ctx, id, req, params)
}

// ExpireSubmission sweeps an ACCEPTED request whose submit deadline lapsed.
func (s *RequestService) ExpireSubmission(ctx context.Context, id string) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusAccepted || req.SubmitDeadline == nil {
		return nil, appErrors.ErrInvalidTransition
	}
	if s.now().Before(*req.SubmitDeadline) {
		return nil, appErrors.ErrInvalidTransition
	}

	if err := s.ledgerRefund(ctx, req); err != nil {
		return nil, err
	}
	return s.transition(ctx, req, repository.TransitionParams{
		ID:                  id,
		FromStatus:          models.StatusAccepted,
		ToStatus:            models.StatusExpired,
		ClearSubmitDeadline: true,
	})
}

// Complete confirms the deliverable and releases the held credits to the
// teacher. Students may call it any time before the review window closes.
func (s *RequestService) Complete(ctx context.Context, id, actorID string) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.StudentID != actorID {
		return nil, appErrors.ErrForbidden
	}
	return s.complete(ctx, req, nil)
}

// AutoComplete releases credits after the review window lapsed with no
// dispute raised. Invoked only by the sweep.
func (s *RequestService) AutoComplete(ctx context.Context, id string) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusSubmitted || req.ReviewDeadline == nil {
		return nil, appErrors.ErrInvalidTransition
	}
	if s.now().Before(*req.ReviewDeadline) {
		return nil, appErrors.ErrInvalidTransition
	}
	return s.complete(ctx, req, nil)
}

func (s *RequestService) complete(ctx context.Context, req *models.FeedbackRequest, resolvedBy *string) (*models.FeedbackRequest, error) {
	from := req.Status
	if from != models.StatusSubmitted && from != models.StatusDisputed {
		return nil, appErrors.ErrInvalidTransition
	}
	if from == models.StatusDisputed && resolvedBy == nil {
		return nil, appErrors.ErrInvalidTransition
	}

	if err := s.ledgerRelease(ctx, req); err != nil {
		return nil, err
	}
	now := s.now()
	params := repository.TransitionParams{
		ID:                  req.ID,
		FromStatus:          from,
		ToStatus:            models.StatusCompleted,
		CompletedAt:         &now,
		ClearReviewDeadline: true,
	}
	if resolvedBy != nil {
		params.ResolvedBy = resolvedBy
		params.ResolvedAt = &now
	}
	return s.transition(ctx, req, params)
}

// Dispute flags the deliverable within the review window. Credits stay held
// pending resolution.
func (s *RequestService) Dispute(ctx context.Context, id, actorID, reason string) (*models.FeedbackRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dispute reason is required")
	}

	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.StudentID != actorID {
		return nil, appErrors.ErrForbidden
	}
	if req.Status != models.StatusSubmitted {
		return nil, appErrors.ErrInvalidTransition
	}
	now := s.now()
	if req.ReviewDeadline != nil && !now.Before(*req.ReviewDeadline) {
		return nil, appErrors.ErrDeadlinePassed
	}

	trimmed := strings.TrimSpace(reason)
	return s.transition(ctx, req, repository.TransitionParams{
		ID:                  id,
		FromStatus:          models.StatusSubmitted,
		ToStatus:            models.StatusDisputed,
		DisputeReason:       &trimmed,
		DisputedAt:          &now,
		ClearReviewDeadline: true,
	})
}

// ResolveDispute settles a DISPUTED request: uphold releases to the teacher,
// refund returns credits to the student. Admin only; no automatic timeout
// ever resolves a dispute.
func (s *RequestService) ResolveDispute(ctx context.Context, id, adminID string, outcome dto.DisputeOutcome) (*models.FeedbackRequest, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != models.StatusDisputed {
		return nil, appErrors.ErrInvalidTransition
	}

	switch outcome {
	case dto.DisputeOutcomeUphold:
		return s.complete(ctx, req, &adminID)
	case dto.DisputeOutcomeRefund:
		if err := s.ledgerRefund(ctx, req); err != nil {
			return nil, err
		}
		now := s.now()
		return s.transition(ctx, req, repository.TransitionParams{
			ID:         id,
			FromStatus: models.StatusDisputed,
			ToStatus:   models.StatusRefunded,
			ResolvedBy: &adminID,
			ResolvedAt: &now,
		})
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "outcome must be uphold or refund")
	}
}

// Get returns an immutable snapshot with the deliverable when present.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.RequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && req.StudentID != actor.UserID && req.TeacherID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	detail := &dto.RequestDetail{Request: req}
	if feedback, err := s.repo.GetFeedback(ctx, id); err == nil {
		detail.Feedback = feedback
	}
	return detail, nil
}

// List returns requests scoped to the actor: students and teachers see their
// own, admins may filter freely.
func (s *RequestService) List(ctx context.Context, filter models.RequestFilter, actor *models.JWTClaims) ([]models.FeedbackRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleStudent:
		filter.StudentID = actor.UserID
		filter.TeacherID = ""
	case models.RoleTeacher:
		filter.TeacherID = actor.UserID
		filter.StudentID = ""
	default:
		return nil, appErrors.ErrForbidden
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

func (s *RequestService) load(ctx context.Context, id string) (*models.FeedbackRequest, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return req, nil
}

func (s *RequestService) hasFeedback(ctx context.Context, id string) bool {
	_, err := s.repo.GetFeedback(ctx, id)
	return err == nil
}

// transition persists the state write (always the final step, after any
// ledger call) and emits the event. A conditional-update miss is a lost race.
func (s *RequestService) transition(ctx context.Context, req *models.FeedbackRequest, params repository.TransitionParams) (*models.FeedbackRequest, error) {
	if err := s.repo.ApplyTransition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
	}
	if params.FromStatus != params.ToStatus {
		s.finishTransition(ctx, req, params.ToStatus)
	}
	return s.snapshot(ctx, req.ID, req, params)
}

func (s *RequestService) finishTransition(ctx context.Context, req *models.FeedbackRequest, to models.RequestStatus) {
	s.metrics.ObserveTransition(req.Status, to)
	s.notifier.NotifyTransition(ctx, models.TransitionEvent{
		RequestID:  req.ID,
		FromStatus: req.Status,
		ToStatus:   to,
		Timestamp:  s.now(),
	})
}

func (s *RequestService) snapshot(ctx context.Context, id string, prev *models.FeedbackRequest, params repository.TransitionParams) (*models.FeedbackRequest, error) {
	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		// The transition is committed; reflect it locally rather than failing.
		prev.Status = params.ToStatus
		prev.PaymentStatus = models.PaymentStatusFor(params.ToStatus)
		return prev, nil
	}
	return updated, nil
}

func (s *RequestService) ledgerHold(ctx context.Context, req *models.FeedbackRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()
	start := time.Now()
	holdID, err := s.ledger.Hold(ctx, req.ID, req.StudentID, req.CreditAmount)
	s.metrics.ObserveLedgerOperation("hold", err, time.Since(start))
	if err != nil {
		return "", err
	}
	return holdID, nil
}

func (s *RequestService) ledgerRelease(ctx context.Context, req *models.FeedbackRequest) error {
	if req.HoldID == nil {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("request %s has no escrow hold", req.ID))
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()
	start := time.Now()
	err := s.ledger.Release(ctx, *req.HoldID, req.TeacherID)
	s.metrics.ObserveLedgerOperation("release", err, time.Since(start))
	return s.checkSettlement(ctx, req, err)
}

func (s *RequestService) ledgerRefund(ctx context.Context, req *models.FeedbackRequest) error {
	if req.HoldID == nil {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("request %s has no escrow hold", req.ID))
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LedgerTimeout)
	defer cancel()
	start := time.Now()
	err := s.ledger.Refund(ctx, *req.HoldID)
	s.metrics.ObserveLedgerOperation("refund", err, time.Since(start))
	return s.checkSettlement(ctx, req, err)
}

// checkSettlement halts automatic processing of the request on a double
// settlement. That error means the terminality invariant broke somewhere and
// only a manual audit may resume the request.
func (s *RequestService) checkSettlement(ctx context.Context, req *models.FeedbackRequest, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, appErrors.ErrDoubleSettlement) {
		s.logger.Error("double settlement detected, halting request",
			zap.String("request_id", req.ID),
			zap.String("status", string(req.Status)),
			zap.Error(err))
		if haltErr := s.repo.MarkHalted(ctx, req.ID); haltErr != nil {
			s.logger.Error("failed to halt request after double settlement",
				zap.String("request_id", req.ID), zap.Error(haltErr))
		}
	}
	return err
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// NopNotifier discards transition events.
type NopNotifier struct{}

// NotifyTransition implements TransitionNotifier.
func (NopNotifier) NotifyTransition(context.Context, models.TransitionEvent) {}
