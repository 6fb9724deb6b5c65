package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/opl-api/internal/dto"
	"github.com/noah-isme/opl-api/internal/models"
	"github.com/noah-isme/opl-api/internal/repository"
)

func disputedFixture(t *testing.T) (*RequestService, *memStore, *repository.MemoryLedger, *models.FeedbackRequest) {
	t.Helper()
	svc, store, ledger, _, _ := newTestService(t)
	ctx := context.Background()

	req := createSent(t, svc, ledger)
	_, err := svc.Accept(ctx, req.ID, "teacher-1")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, req.ID, "teacher-1", validSubmitPayload())
	require.NoError(t, err)
	req, err = svc.Dispute(ctx, req.ID, "student-1", "feedback ignores the pedal issue")
	require.NoError(t, err)
	return svc, store, ledger, req
}

func TestDisputeListOpenAttachesDeliverable(t *testing.T) {
	requests, store, _, req := disputedFixture(t)
	svc := NewDisputeService(store, requests, zap.NewNop())

	cases, err := svc.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, req.ID, cases[0].Request.ID)
	assert.Equal(t, "feedback ignores the pedal issue", cases[0].Reason)
	require.NotNil(t, cases[0].Feedback)
	assert.Equal(t, req.ID, cases[0].Feedback.RequestID)
}

func TestDisputeResolveDelegates(t *testing.T) {
	requests, store, ledger, req := disputedFixture(t)
	svc := NewDisputeService(store, requests, zap.NewNop())

	resolved, err := svc.Resolve(context.Background(), req.ID, "admin-1", dto.ResolveDisputePayload{
		Outcome: dto.DisputeOutcomeUphold,
		Note:    "deliverable addresses the stated problem",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, resolved.Status)
	assert.Equal(t, int64(30), ledger.Balance("teacher-1"))

	cases, err := svc.ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cases)
}
