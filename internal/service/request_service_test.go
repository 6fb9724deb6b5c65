package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/dto"
	"github.com/noah-isme/opl-api/internal/models"
	"github.com/noah-isme/opl-api/internal/repository"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

type memStore struct {
	mu       sync.Mutex
	requests map[string]*models.FeedbackRequest
	feedback map[string]*models.Feedback
}

func newMemStore() *memStore {
	return &memStore{
		requests: make(map[string]*models.FeedbackRequest),
		feedback: make(map[string]*models.Feedback),
	}
}

func (m *memStore) Create(ctx context.Context, req *models.FeedbackRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req.ID = uuid.NewString()
	req.PaymentStatus = models.PaymentStatusFor(req.Status)
	req.CreatedAt = time.Now().UTC()
	req.UpdatedAt = req.CreatedAt
	clone := *req
	m.requests[req.ID] = &clone
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*models.FeedbackRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *req
	return &clone, nil
}

func (m *memStore) List(ctx context.Context, filter models.RequestFilter) ([]models.FeedbackRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.FeedbackRequest
	for _, req := range m.requests {
		if filter.StudentID != "" && req.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && req.TeacherID != filter.TeacherID {
			continue
		}
		if len(filter.Status) > 0 {
			match := false
			for _, s := range filter.Status {
				if req.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, *req)
	}
	return result, nil
}

func (m *memStore) ApplyTransition(ctx context.Context, params repository.TransitionParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(params)
}

// apply mirrors the conditional UPDATE: the row must still be in FromStatus.
func (m *memStore) apply(params repository.TransitionParams) error {
	req, ok := m.requests[params.ID]
	if !ok || req.Status != params.FromStatus {
		return sql.ErrNoRows
	}

	req.Status = params.ToStatus
	req.PaymentStatus = models.PaymentStatusFor(params.ToStatus)
	req.UpdatedAt = time.Now().UTC()

	if params.HoldID != nil {
		req.HoldID = params.HoldID
	}
	if params.SentAt != nil {
		req.SentAt = params.SentAt
	}
	if params.AcceptDeadline != nil {
		req.AcceptDeadline = params.AcceptDeadline
	}
	if params.AcceptedAt != nil {
		req.AcceptedAt = params.AcceptedAt
	}
	if params.SubmitDeadline != nil {
		req.SubmitDeadline = params.SubmitDeadline
	}
	if params.SubmittedAt != nil {
		req.SubmittedAt = params.SubmittedAt
	}
	if params.ReviewDeadline != nil {
		req.ReviewDeadline = params.ReviewDeadline
	}
	if params.CompletedAt != nil {
		req.CompletedAt = params.CompletedAt
	}
	if params.ClarificationQuestion != nil {
		req.ClarificationQuestion = params.ClarificationQuestion
	}
	if params.ClarificationAskedAt != nil {
		req.ClarificationAskedAt = params.ClarificationAskedAt
	}
	if params.ClarificationAnswer != nil {
		req.ClarificationAnswer = params.ClarificationAnswer
	}
	if params.ClarificationAnsweredAt != nil {
		req.ClarificationAnsweredAt = params.ClarificationAnsweredAt
	}
	if params.AcceptRemaining != nil {
		req.AcceptRemaining = params.AcceptRemaining
	}
	if params.DeclineReason != nil {
		req.DeclineReason = params.DeclineReason
	}
	if params.DisputeReason != nil {
		req.DisputeReason = params.DisputeReason
	}
	if params.DisputedAt != nil {
		req.DisputedAt = params.DisputedAt
	}
	if params.ResolvedBy != nil {
		req.ResolvedBy = params.ResolvedBy
	}
	if params.ResolvedAt != nil {
		req.ResolvedAt = params.ResolvedAt
	}
	if params.ClearAcceptDeadline {
		req.AcceptDeadline = nil
	}
	if params.ClearSubmitDeadline {
		req.SubmitDeadline = nil
	}
	if params.ClearReviewDeadline {
		req.ReviewDeadline = nil
	}
	if params.ClearAcceptRemaining {
		req.AcceptRemaining = nil
	}
	return nil
}

func (m *memStore) SubmitFeedback(ctx context.Context, feedback *models.Feedback, params repository.TransitionParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.apply(params); err != nil {
		return err
	}
	feedback.ID = uuid.NewString()
	clone := *feedback
	m.feedback[feedback.RequestID] = &clone
	return nil
}

func (m *memStore) GetFeedback(ctx context.Context, requestID string) (*models.Feedback, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb, ok := m.feedback[requestID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *fb
	return &clone, nil
}

func (m *memStore) MarkHalted(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	req.Halted = true
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.TransitionEvent
}

func (n *recordingNotifier) NotifyTransition(_ context.Context, event models.TransitionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []models.TransitionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.TransitionEvent(nil), n.events...)
}

func newTestService(t *testing.T) (*RequestService, *memStore, *repository.MemoryLedger, *fakeClock, *recordingNotifier) {
	t.Helper()
	store := newMemStore()
	ledger := repository.NewMemoryLedger()
	notifier := &recordingNotifier{}
	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	svc := NewRequestService(store, ledger, notifier, nil, zap.NewNop(), RequestServiceConfig{})
	svc.now = clk.Now
	return svc, store, ledger, clk, notifier
}

func validPayload() dto.CreateRequestPayload {
	return dto.CreateRequestPayload{
		TeacherID:    "teacher-1",
		Composer:     "Chopin",
		Piece:        "Nocturne Op. 9 No. 2",
		MeasureStart: 12,
		MeasureEnd:   24,
		ProblemType:  models.ProblemVoicing,
		Description:  "left hand drowns the melody",
		CreditAmount: 30,
	}
}

func validSubmitPayload() dto.SubmitFeedbackPayload {
	return dto.SubmitFeedbackPayload{
		Comments: []models.FeedbackComment{
			{MeasureStart: 12, MeasureEnd: 16, Text: "drop the wrist on beat one"},
		},
		PracticeCard: models.PracticeCard{
			Section:          "mm. 12-24",
			TempoProgression: "60 -> 72 -> 84",
			Steps:            []string{"hands separate", "hands together slow"},
			DailyMinutes:     20,
		},
	}
}

// createSent drives a fresh request through fund and dispatch.
func createSent(t *testing.T, svc *RequestService, ledger *repository.MemoryLedger) *models.FeedbackRequest {
	t.Helper()
	ctx := context.Background()
	ledger.Credit("student-1", 100)

	req, err := svc.CreateDraft(ctx, validPayload(), "student-1")
	require.NoError(t, err)

	req, err = svc.Fund(ctx, req.ID, "student-1")
	require.NoError(t, err)

	req, err = svc.Dispatch(ctx, req.ID, "student-1")
	require.NoError(t, err)
	return req
}

func TestLifecycleHappyPath(t *testing.T) {
	svc, _, ledger, clk, notifier := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	assert.Equal(t, models.StatusSent, req.Status)
	assert.Equal(t, models.PaymentHeld, req.PaymentStatus)
	assert.Equal(t, int64(70), ledger.Balance("student-1"))
	require.NotNil(t, req.AcceptDeadline)
	assert.Equal(t, clk.Now().Add(12*time.Hour), *req.AcceptDeadline)

	clk.Advance(2 * time.Hour)
	req, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, req.Status)
	assert.Nil(t, req.AcceptDeadline)
	require.NotNil(t, req.SubmitDeadline)
	assert.Equal(t, clk.Now().Add(48*time.Hour), *req.SubmitDeadline)

	clk.Advance(24 * time.Hour)
	req, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, req.Status)
	require.NotNil(t, req.ReviewDeadline)

	req, err = svc.Complete(ctx, req.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, req.Status)
	assert.Equal(t, models.PaymentReleased, req.PaymentStatus)
	assert.Equal(t, int64(30), ledger.Balance("teacher-1"))
	assert.Equal(t, int64(70), ledger.Balance("student-1"))

	events := notifier.Events()
	require.Len(t, events, 5)
	assert.Equal(t, models.StatusCompleted, events[4].ToStatus)
}

func TestFundInsufficientBalanceKeepsDraft(t *testing.T) {
	svc, store, ledger, _, _ := newTestService(t)
	ctx := context.Background()
	ledger.Credit("student-1", 10)

	req, err := svc.CreateDraft(ctx, validPayload(), "student-1")
	require.NoError(t, err)

	_, err = svc.Fund(ctx, req.ID, "student-1")
	require.ErrorIs(t, err, appErrors.ErrInsufficientBalance)

	stored, err := store.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, stored.Status)
	assert.Equal(t, int64(10), ledger.Balance("student-1"))
}

func TestFundByNonOwnerForbidden(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()
	ledger.Credit("student-1", 100)

	req, err := svc.CreateDraft(ctx, validPayload(), "student-1")
	require.NoError(t, err)

	_, err = svc.Fund(ctx, req.ID, "student-2")
	require.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestDeclineRefundsStudent(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	req, err := svc.Decline(ctx, req.ID, "teacher-1", "out of my repertoire")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, req.Status)
	assert.Equal(t, models.PaymentRefunded, req.PaymentStatus)
	require.NotNil(t, req.DeclineReason)
	assert.Equal(t, int64(100), ledger.Balance("student-1"))
}

func TestDeclineWithoutReasonRejected(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Decline(ctx, req.ID, "teacher-1", "   ")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestDeclineOnBehalfSkipsOwnership(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	req, err := svc.DeclineOnBehalf(ctx, req.ID, "admin-1", "teacher unreachable")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeclined, req.Status)
	assert.Equal(t, int64(100), ledger.Balance("student-1"))
}

func TestAcceptAfterDeadlinePassed(t *testing.T) {
	svc, store, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	clk.Advance(13 * time.Hour)

	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.ErrorIs(t, err, appErrors.ErrDeadlinePassed)

	// The sweep has not run yet; the row is still SENT.
	stored, err := store.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, stored.Status)
}

func TestExpireAcceptanceRefunds(t *testing.T) {
	svc, _, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	clk.Advance(12*time.Hour + time.Minute)

	req, err := svc.ExpireAcceptance(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, req.Status)
	assert.Equal(t, models.PaymentRefunded, req.PaymentStatus)
	assert.Equal(t, int64(100), ledger.Balance("student-1"))
}

func TestExpireAcceptanceBeforeDeadlineIsInvalid(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.ExpireAcceptance(ctx, req.ID)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestClarificationPausesAndResumesDeadline(t *testing.T) {
	svc, _, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	dispatchTime := clk.Now()

	// 7 hours in, 5 remain on the accept countdown.
	clk.Advance(7 * time.Hour)
	req, err := svc.RaiseClarification(ctx, req.ID, "teacher-1", "which edition are you using?")
	require.NoError(t, err)
	assert.Nil(t, req.AcceptDeadline)
	require.NotNil(t, req.AcceptRemaining)
	assert.Equal(t, int64(5*3600), *req.AcceptRemaining)
	assert.True(t, req.ClarificationOpen())

	// The paused request never expires, regardless of elapsed time.
	clk.Advance(48 * time.Hour)
	_, err = svc.ExpireAcceptance(ctx, req.ID)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	req, err = svc.AnswerClarification(ctx, req.ID, "student-1", "Paderewski")
	require.NoError(t, err)
	require.NotNil(t, req.AcceptDeadline)
	assert.Equal(t, clk.Now().Add(5*time.Hour), *req.AcceptDeadline)
	assert.Nil(t, req.AcceptRemaining)
	assert.False(t, req.ClarificationOpen())
	assert.True(t, req.AcceptDeadline.After(dispatchTime))

	// 4 of the remaining 5 hours pass; accept still succeeds.
	clk.Advance(4 * time.Hour)
	req, err = svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, req.Status)
}

func TestSecondClarificationWhileOpenRejected(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.RaiseClarification(ctx, req.ID, "teacher-1", "tempo marking?")
	require.NoError(t, err)

	_, err = svc.RaiseClarification(ctx, req.ID, "teacher-1", "pedal markings?")
	require.ErrorIs(t, err, appErrors.ErrClarificationPending)
}

func TestClarificationAfterAnswerRejected(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.RaiseClarification(ctx, req.ID, "teacher-1", "tempo marking?")
	require.NoError(t, err)
	_, err = svc.AnswerClarification(ctx, req.ID, "student-1", "quarter = 66")
	require.NoError(t, err)

	_, err = svc.RaiseClarification(ctx, req.ID, "teacher-1", "pedal markings?")
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAnswerWithoutOpenClarificationRejected(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.AnswerClarification(ctx, req.ID, "student-1", "unprompted")
	require.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestAcceptAllowedWhilePaused(t *testing.T) {
	svc, _, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	clk.Advance(time.Hour)
	_, err := svc.RaiseClarification(ctx, req.ID, "teacher-1", "which hand?")
	require.NoError(t, err)

	req, err = svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, req.Status)
}

func TestSubmitTwiceReportsAlreadySubmitted(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)

	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.ErrorIs(t, err, appErrors.ErrAlreadySubmitted)
}

func TestSubmitAfterDeadlinePassed(t *testing.T) {
	svc, _, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)

	clk.Advance(49 * time.Hour)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.ErrorIs(t, err, appErrors.ErrDeadlinePassed)
}

func TestExpireSubmissionRefunds(t *testing.T) {
	svc, _, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)

	clk.Advance(48*time.Hour + time.Minute)
	req, err = svc.ExpireSubmission(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, req.Status)
	assert.Equal(t, int64(100), ledger.Balance("student-1"))
	assert.Equal(t, int64(0), ledger.Balance("teacher-1"))
}

func TestDisputeWithinReviewWindow(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)

	req, err = svc.Dispute(ctx, req.ID, "student-1", "comments cover the wrong measures")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDisputed, req.Status)
	// Credits stay held pending resolution.
	assert.Equal(t, models.PaymentHeld, req.PaymentStatus)
	assert.Equal(t, int64(0), ledger.Balance("teacher-1"))
}

func TestDisputeAfterReviewWindowClosed(t *testing.T) {
	svc, _, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)

	clk.Advance(73 * time.Hour)
	_, err = svc.Dispute(ctx, req.ID, "student-1", "too late")
	require.ErrorIs(t, err, appErrors.ErrDeadlinePassed)
}

func TestAutoCompleteAfterReviewWindow(t *testing.T) {
	svc, _, ledger, clk, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)

	_, err = svc.AutoComplete(ctx, req.ID)
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	clk.Advance(72*time.Hour + time.Minute)
	req, err = svc.AutoComplete(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, req.Status)
	assert.Equal(t, int64(30), ledger.Balance("teacher-1"))
}

func TestResolveDisputeRefund(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)
	_, err = svc.Dispute(ctx, req.ID, "student-1", "wrong measures")
	require.NoError(t, err)

	req, err = svc.ResolveDispute(ctx, req.ID, "admin-1", dto.DisputeOutcomeRefund)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, req.Status)
	assert.Equal(t, models.PaymentRefunded, req.PaymentStatus)
	require.NotNil(t, req.ResolvedBy)
	assert.Equal(t, "admin-1", *req.ResolvedBy)
	assert.Equal(t, int64(100), ledger.Balance("student-1"))
}

func TestResolveDisputeUphold(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)
	_, err = svc.Dispute(ctx, req.ID, "student-1", "wrong measures")
	require.NoError(t, err)

	req, err = svc.ResolveDispute(ctx, req.ID, "admin-1", dto.DisputeOutcomeUphold)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, req.Status)
	assert.Equal(t, int64(30), ledger.Balance("teacher-1"))
	require.NotNil(t, req.ResolvedBy)
}

func TestDoubleSettlementHaltsRequest(t *testing.T) {
	svc, store, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)

	// Settle the hold behind the engine's back in the opposite direction.
	stored, err := store.GetByID(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.HoldID)
	require.NoError(t, ledger.Refund(ctx, *stored.HoldID))

	_, err = svc.Complete(ctx, req.ID, "student-1")
	require.ErrorIs(t, err, appErrors.ErrDoubleSettlement)

	stored, err = store.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.True(t, stored.Halted)
	assert.Equal(t, models.StatusSubmitted, stored.Status)
}

func TestTerminalStatesRejectFurtherTransitions(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Decline(ctx, req.ID, "teacher-1", "not this month")
	require.NoError(t, err)

	_, err = svc.Accept(ctx, req.ID, "teacher-1")
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	_, err = svc.Dispatch(ctx, req.ID, "student-1")
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

// flakyStore drops a configurable number of state writes after the ledger
// call already landed, the failure mode a lost connection produces.
type flakyStore struct {
	*memStore
	failApplies int
}

func (f *flakyStore) ApplyTransition(ctx context.Context, params repository.TransitionParams) error {
	if f.failApplies > 0 {
		f.failApplies--
		return errors.New("connection reset")
	}
	return f.memStore.ApplyTransition(ctx, params)
}

func TestFundRetryAfterLostStateWriteReusesHold(t *testing.T) {
	store := &flakyStore{memStore: newMemStore(), failApplies: 1}
	ledger := repository.NewMemoryLedger()
	svc := NewRequestService(store, ledger, nil, nil, zap.NewNop(), RequestServiceConfig{})
	ctx := context.Background()
	ledger.Credit("student-1", 100)

	req, err := svc.CreateDraft(ctx, validPayload(), "student-1")
	require.NoError(t, err)

	// The hold lands, then the state write is lost: the row stays DRAFT but
	// the student is already debited.
	_, err = svc.Fund(ctx, req.ID, "student-1")
	require.Error(t, err)
	assert.Equal(t, int64(70), ledger.Balance("student-1"))

	// The retry must hand back the existing hold, not take a second one.
	funded, err := svc.Fund(ctx, req.ID, "student-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusHeld, funded.Status)
	assert.Equal(t, int64(70), ledger.Balance("student-1"))
	require.NotNil(t, funded.HoldID)
	hold, ok := ledger.HoldRecord(*funded.HoldID)
	require.True(t, ok)
	assert.Equal(t, models.HoldStatusHeld, hold.Status)
	assert.Equal(t, req.ID, hold.RequestID)
}

func TestGetScopesVisibility(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)

	_, err := svc.Get(ctx, req.ID, &models.JWTClaims{UserID: "someone-else", Role: models.RoleStudent})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	detail, err := svc.Get(ctx, req.ID, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, req.ID, detail.Request.ID)
	assert.Nil(t, detail.Feedback)

	detail, err = svc.Get(ctx, req.ID, &models.JWTClaims{UserID: "admin-9", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, req.ID, detail.Request.ID)
}

func TestListScopesByRole(t *testing.T) {
	svc, _, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	createSent(t, svc, ledger)

	requests, err := svc.List(ctx, models.RequestFilter{}, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Len(t, requests, 1)

	requests, err = svc.List(ctx, models.RequestFilter{}, &models.JWTClaims{UserID: "student-2", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Empty(t, requests)

	requests, err = svc.List(ctx, models.RequestFilter{}, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestPaymentStatusFollowsWorkflowStatus(t *testing.T) {
	cases := map[models.RequestStatus]models.PaymentStatus{
		models.StatusDraft:     models.PaymentPending,
		models.StatusHeld:      models.PaymentHeld,
		models.StatusSent:      models.PaymentHeld,
		models.StatusAccepted:  models.PaymentHeld,
		models.StatusSubmitted: models.PaymentHeld,
		models.StatusDisputed:  models.PaymentHeld,
		models.StatusCompleted: models.PaymentReleased,
		models.StatusDeclined:  models.PaymentRefunded,
		models.StatusExpired:   models.PaymentRefunded,
		models.StatusRefunded:  models.PaymentRefunded,
	}
	for status, want := range cases {
		assert.Equalf(t, want, models.PaymentStatusFor(status), "status %s", status)
	}
}

// Randomized operation sequences: whatever mix of actor calls, sweeps, and
// clock jumps gets applied, the stored payment status must always equal the
// one derived from the workflow status.
func TestPaymentStatusInvariantUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(20260301))

	type seqOp func(ctx context.Context, svc *RequestService, clk *fakeClock, id string)
	ops := []seqOp{
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) { _, _ = svc.Fund(ctx, id, "student-1") },
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) { _, _ = svc.Dispatch(ctx, id, "student-1") },
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) { _, _ = svc.Accept(ctx, id, "teacher-1") },
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) {
			_, _ = svc.Decline(ctx, id, "teacher-1", "not a fit")
		},
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) {
			_, _ = svc.RaiseClarification(ctx, id, "teacher-1", "which edition?")
		},
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) {
			_, _ = svc.AnswerClarification(ctx, id, "student-1", "Paderewski")
		},
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) {
			_, _ = svc.Submit(ctx, id, "teacher-1", validSubmitPayload())
		},
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) { _, _ = svc.Complete(ctx, id, "student-1") },
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) {
			_, _ = svc.Dispute(ctx, id, "student-1", "wrong measures")
		},
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) {
			_, _ = svc.ResolveDispute(ctx, id, "admin-1", dto.DisputeOutcomeUphold)
		},
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) {
			_, _ = svc.ResolveDispute(ctx, id, "admin-1", dto.DisputeOutcomeRefund)
		},
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) { _, _ = svc.ExpireAcceptance(ctx, id) },
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) { _, _ = svc.ExpireSubmission(ctx, id) },
		func(ctx context.Context, svc *RequestService, _ *fakeClock, id string) { _, _ = svc.AutoComplete(ctx, id) },
		func(_ context.Context, _ *RequestService, clk *fakeClock, _ string) {
			clk.Advance(time.Duration(1+rng.Intn(40)) * time.Hour)
		},
	}

	for seq := 0; seq < 25; seq++ {
		svc, store, ledger, clk, _ := newTestService(t)
		ledger.Credit("student-1", 1000)
		ctx := context.Background()

		req, err := svc.CreateDraft(ctx, validPayload(), "student-1")
		require.NoError(t, err)

		for step := 0; step < 40; step++ {
			ops[rng.Intn(len(ops))](ctx, svc, clk, req.ID)

			stored, err := store.GetByID(ctx, req.ID)
			require.NoError(t, err)
			require.Equalf(t, models.PaymentStatusFor(stored.Status), stored.PaymentStatus,
				"sequence %d step %d in status %s", seq, step, stored.Status)
		}
	}
}

func TestCreateDraftValidation(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	payload := validPayload()
	payload.MeasureEnd = 5 // before MeasureStart
	_, err := svc.CreateDraft(ctx, payload, "student-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	payload = validPayload()
	payload.CreditAmount = 0
	_, err = svc.CreateDraft(ctx, payload, "student-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	payload = validPayload()
	payload.ProblemType = "juggling"
	_, err = svc.CreateDraft(ctx, payload, "student-1")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
