package service

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/opl-api/internal/models"
	"github.com/noah-isme/opl-api/internal/repository"
	appErrors "github.com/noah-isme/opl-api/pkg/errors"
)

// Clarification sub-flow: while SENT, the teacher may raise one question.
// Raising it pauses the accept-deadline countdown (the remaining duration is
// captured and the deadline column goes NULL, which also keeps the sweep
// away); the student's answer re-arms the deadline with the same remaining
// duration from the answer timestamp.

// RaiseClarification records the teacher's question and pauses the deadline.
func (s *RequestService) RaiseClarification(ctx context.Context, id, actorID, question string) (*models.FeedbackRequest, error) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "clarification question is required")
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
	if req.Status != models.StatusSent {
		return nil, appErrors.ErrInvalidTransition
	}
	if req.ClarificationOpen() {
		return nil, appErrors.ErrClarificationPending
	}
	if req.ClarificationQuestion != nil {
		// The single question/answer pair is already used up.
		return nil, appErrors.Clone(appErrors.ErrConflict, "clarification already answered")
	}
	if req.AcceptDeadline == nil {
		return nil, appErrors.ErrInvalidTransition
	}

	now := s.now()
	remaining := req.AcceptDeadline.Sub(now)
	if remaining <= 0 {
		return nil, appErrors.ErrDeadlinePassed
	}
	remainingSecs := int64(remaining / time.Second)

	return s.transition(ctx, req, repository.TransitionParams{
		ID:                    id,
		FromStatus:            models.StatusSent,
		ToStatus:              models.StatusSent,
		ClarificationQuestion: &trimmed,
		ClarificationAskedAt:  &now,
		AcceptRemaining:       &remainingSecs,
		ClearAcceptDeadline:   true,
	})
}

// AnswerClarification records the student's answer and resumes the deadline
// with the captured remaining duration.
func (s *RequestService) AnswerClarification(ctx context.Context, id, actorID, answer string) (*models.FeedbackRequest, error) {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "clarification answer is required")
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
	if req.Status != models.StatusSent {
		return nil, appErrors.ErrInvalidTransition
	}
	if !req.ClarificationOpen() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no open clarification")
	}
	if req.AcceptRemaining == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "paused deadline lost its remaining duration")
	}

	now := s.now()
	deadline := now.Add(time.Duration(*req.AcceptRemaining) * time.Second)

	return s.transition(ctx, req, repository.TransitionParams{
		ID:                      id,
		FromStatus:              models.StatusSent,
		ToStatus:                models.StatusSent,
		ClarificationAnswer:     &trimmed,
		ClarificationAnsweredAt: &now,
		AcceptDeadline:          &deadline,
		ClearAcceptRemaining:    true,
	})
}
