package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/opl-api/internal/models"
)

const requestColumns = `id, student_id, teacher_id, composer, piece, measure_start, measure_end,
       problem_type, description, video_url, face_blurred, status, payment_status, credit_amount,
       hold_id, created_at, sent_at, accept_deadline, accepted_at, submit_deadline, submitted_at,
       review_deadline, completed_at, clarification_question, clarification_asked_at,
       clarification_answer, clarification_answered_at, accept_remaining_secs, decline_reason,
       dispute_reason, disputed_at, resolved_by, resolved_at, halted, updated_at`

// RequestRepository persists feedback requests and their deliverables.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new DRAFT request.
func (r *RequestRepository) Create(ctx context.Context, req *models.FeedbackRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.StatusDraft
	}
	req.PaymentStatus = models.PaymentStatusFor(req.Status)
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now
	const query = `INSERT INTO feedback_requests
	(id, student_id, teacher_id, composer, piece, measure_start, measure_end, problem_type,
	 description, video_url, face_blurred, status, payment_status, credit_amount, created_at, updated_at)
	VALUES (:id, :student_id, :teacher_id, :composer, :piece, :measure_start, :measure_end, :problem_type,
	 :description, :video_url, :face_blurred, :status, :payment_status, :credit_amount, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create feedback request: %w", err)
	}
	return nil
}

// GetByID fetches a request snapshot by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.FeedbackRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM feedback_requests WHERE id = $1`
	var req models.FeedbackRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter, latest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.FeedbackRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + requestColumns + ` FROM feedback_requests`)

	conditions := make([]string, 0, 3)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.FeedbackRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list feedback requests: %w", err)
	}
	return requests, nil
}

// TransitionParams groups the columns a single transition may touch. Only
// non-nil fields are written; the update is conditional on FromStatus so a
// lost race surfaces as sql.ErrNoRows instead of clobbering concurrent state.
type TransitionParams struct {
	ID         string
	FromStatus models.RequestStatus
	ToStatus   models.RequestStatus

	HoldID         *string
	SentAt         *time.Time
	AcceptDeadline *time.Time
	AcceptedAt     *time.Time
	SubmitDeadline *time.Time
	SubmittedAt    *time.Time
	ReviewDeadline *time.Time
	CompletedAt    *time.Time

	ClarificationQuestion   *string
	ClarificationAskedAt    *time.Time
	ClarificationAnswer     *string
	ClarificationAnsweredAt *time.Time
	AcceptRemaining         *int64

	DeclineReason *string
	DisputeReason *string
	DisputedAt    *time.Time
	ResolvedBy    *string
	ResolvedAt    *time.Time

	ClearAcceptDeadline  bool
	ClearSubmitDeadline  bool
	ClearReviewDeadline  bool
	ClearAcceptRemaining bool
}

// ApplyTransition persists a validated transition. Payment status is derived
// from the target workflow status, never passed in.
func (r *RequestRepository) ApplyTransition(ctx context.Context, params TransitionParams) error {
	return applyTransition(ctx, r.db, params)
}

type execer interface {
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func applyTransition(ctx context.Context, db execer, params TransitionParams) error {
	setParts := []string{
		"status = :status",
		"payment_status = :payment_status",
		"updated_at = :updated_at",
	}
	named := map[string]interface{}{
		"id":             params.ID,
		"from_status":    params.FromStatus,
		"status":         params.ToStatus,
		"payment_status": models.PaymentStatusFor(params.ToStatus),
		"updated_at":     time.Now().UTC(),
	}

	set := func(column, key string, value interface{}) {
		setParts = append(setParts, fmt.Sprintf("%s = :%s", column, key))
		named[key] = value
	}

	if params.HoldID != nil {
		set("hold_id", "hold_id", params.HoldID)
	}
	if params.SentAt != nil {
		set("sent_at", "sent_at", params.SentAt)
	}
	if params.AcceptDeadline != nil {
		set("accept_deadline", "accept_deadline", params.AcceptDeadline)
	} else if params.ClearAcceptDeadline {
		setParts = append(setParts, "accept_deadline = NULL")
	}
	if params.AcceptedAt != nil {
		set("accepted_at", "accepted_at", params.AcceptedAt)
	}
	if params.SubmitDeadline != nil {
		set("submit_deadline", "submit_deadline", params.SubmitDeadline)
	} else if params.ClearSubmitDeadline {
		setParts = append(setParts, "submit_deadline = NULL")
	}
	if params.SubmittedAt != nil {
		set("submitted_at", "submitted_at", params.SubmittedAt)
	}
	if params.ReviewDeadline != nil {
		set("review_deadline", "review_deadline", params.ReviewDeadline)
	} else if params.ClearReviewDeadline {
		setParts = append(setParts, "review_deadline = NULL")
	}
	if params.CompletedAt != nil {
		set("completed_at", "completed_at", params.CompletedAt)
	}
	if params.ClarificationQuestion != nil {
		set("clarification_question", "clarification_question", params.ClarificationQuestion)
	}
	if params.ClarificationAskedAt != nil {
		set("clarification_asked_at", "clarification_asked_at", params.ClarificationAskedAt)
	}
	if params.ClarificationAnswer != nil {
		set("clarification_answer", "clarification_answer", params.ClarificationAnswer)
	}
	if params.ClarificationAnsweredAt != nil {
		set("clarification_answered_at", "clarification_answered_at", params.ClarificationAnsweredAt)
	}
	if params.AcceptRemaining != nil {
		set("accept_remaining_secs", "accept_remaining_secs", params.AcceptRemaining)
	} else if params.ClearAcceptRemaining {
		setParts = append(setParts, "accept_remaining_secs = NULL")
	}
	if params.DeclineReason != nil {
		set("decline_reason", "decline_reason", params.DeclineReason)
	}
	if params.DisputeReason != nil {
		set("dispute_reason", "dispute_reason", params.DisputeReason)
	}
	if params.DisputedAt != nil {
		set("disputed_at", "disputed_at", params.DisputedAt)
	}
	if params.ResolvedBy != nil {
		set("resolved_by", "resolved_by", params.ResolvedBy)
	}
	if params.ResolvedAt != nil {
		set("resolved_at", "resolved_at", params.ResolvedAt)
	}

	query := fmt.Sprintf("UPDATE feedback_requests SET %s WHERE id = :id AND status = :from_status",
		strings.Join(setParts, ", "))
	result, err := db.NamedExecContext(ctx, query, named)
	if err != nil {
		return fmt.Errorf("apply transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SubmitFeedback inserts the deliverable and applies the ACCEPTED→SUBMITTED
// transition atomically. A lost race rolls the insert back.
func (r *RequestRepository) SubmitFeedback(ctx context.Context, feedback *models.Feedback, params TransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	const insert = `INSERT INTO feedbacks (id, request_id, comments, demo_video_url, practice_card, submitted_at)
	VALUES (:id, :request_id, :comments, :demo_video_url, :practice_card, :submitted_at)`
	if _, err := tx.NamedExecContext(ctx, insert, feedback); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}

	if err := applyTransition(ctx, tx, params); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit tx: %w", err)
	}
	return nil
}

// GetFeedback loads the deliverable attached to a request.
func (r *RequestRepository) GetFeedback(ctx context.Context, requestID string) (*models.Feedback, error) {
	const query = `SELECT id, request_id, comments, demo_video_url, practice_card, submitted_at
	FROM feedbacks WHERE request_id = $1`
	var feedback models.Feedback
	if err := r.db.GetContext(ctx, &feedback, query, requestID); err != nil {
		return nil, err
	}
	return &feedback, nil
}

// ListDue returns requests whose active deadline has lapsed, oldest first.
// Paused accept deadlines are NULL and therefore never match; halted requests
// are excluded pending manual audit.
func (r *RequestRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.DueRequest, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `SELECT id, kind FROM (
		SELECT id, 'accept_expiry' AS kind, accept_deadline AS due_at FROM feedback_requests
			WHERE status = 'SENT' AND NOT halted AND accept_deadline <= $1
		UNION ALL
		SELECT id, 'submit_expiry' AS kind, submit_deadline AS due_at FROM feedback_requests
			WHERE status = 'ACCEPTED' AND NOT halted AND submit_deadline <= $1
		UNION ALL
		SELECT id, 'auto_complete' AS kind, review_deadline AS due_at FROM feedback_requests
			WHERE status = 'SUBMITTED' AND NOT halted AND review_deadline <= $1
	) due ORDER BY due_at ASC LIMIT $2`
	var due []models.DueRequest
	if err := r.db.SelectContext(ctx, &due, query, now, limit); err != nil {
		return nil, fmt.Errorf("list due requests: %w", err)
	}
	return due, nil
}

// MarkHalted flags a request so the sweep skips it pending manual audit.
func (r *RequestRepository) MarkHalted(ctx context.Context, id string) error {
	const query = `UPDATE feedback_requests SET halted = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark request halted: %w", err)
	}
	return nil
}

// StatusCounts aggregates request counts per status.
func (r *RequestRepository) StatusCounts(ctx context.Context) (map[models.RequestStatus]int64, error) {
	const query = `SELECT status, COUNT(*) AS total FROM feedback_requests GROUP BY status`
	rows := []struct {
		Status models.RequestStatus `db:"status"`
		Total  int64                `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count requests by status: %w", err)
	}
	counts := make(map[models.RequestStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// HaltedCount reports how many requests await manual audit.
func (r *RequestRepository) HaltedCount(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM feedback_requests WHERE halted`
	var count int64
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count halted requests: %w", err)
	}
	return count, nil
}

// ListSettled joins terminal requests with their escrow holds for the audit
// export, newest settlement first.
func (r *RequestRepository) ListSettled(ctx context.Context, from, to time.Time, limit int) ([]models.SettlementRecord, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Minute)
	}
	const query = `SELECT fr.id AS request_id, fr.student_id, fr.teacher_id, fr.status, fr.credit_amount,
	       h.status AS hold_status, h.settled_at
	FROM feedback_requests fr
	JOIN escrow_holds h ON h.id = fr.hold_id
	WHERE fr.status IN ('DECLINED', 'EXPIRED', 'COMPLETED', 'REFUNDED')
	  AND h.settled_at >= $1 AND h.settled_at < $2
	ORDER BY h.settled_at DESC LIMIT $3`
	var records []models.SettlementRecord
	if err := r.db.SelectContext(ctx, &records, query, from, to, limit); err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return records, nil
}
