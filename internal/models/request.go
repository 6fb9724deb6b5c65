package models

import "time"

// RequestStatus enumerates the lifecycle states of a feedback request.
type RequestStatus string

const (
	StatusDraft     RequestStatus = "DRAFT"
	StatusHeld      RequestStatus = "HELD"
	StatusSent      RequestStatus = "SENT"
	StatusAccepted  RequestStatus = "ACCEPTED"
	StatusDeclined  RequestStatus = "DECLINED"
	StatusExpired   RequestStatus = "EXPIRED"
	StatusSubmitted RequestStatus = "SUBMITTED"
	StatusCompleted RequestStatus = "COMPLETED"
	StatusDisputed  RequestStatus = "DISPUTED"
	StatusRefunded  RequestStatus = "REFUNDED"
)

// Terminal reports whether the status ends the lifecycle. Terminal records are
// retained for audit, never deleted.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusDeclined, StatusExpired, StatusCompleted, StatusRefunded:
		return true
	}
	return false
}

// Valid reports whether the value is a known status.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusHeld, StatusSent, StatusAccepted, StatusDeclined,
		StatusExpired, StatusSubmitted, StatusCompleted, StatusDisputed, StatusRefunded:
		return true
	}
	return false
}

// PaymentStatus tracks where the escrowed credits sit.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentHeld     PaymentStatus = "held"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentStatusFor derives the payment status implied by a workflow status.
// It is the single source of payment truth: payment status is never set
// independently of the workflow status.
func PaymentStatusFor(s RequestStatus) PaymentStatus {
	switch s {
	case StatusDraft:
		return PaymentPending
	case StatusCompleted:
		return PaymentReleased
	case StatusDeclined, StatusExpired, StatusRefunded:
		return PaymentRefunded
	default:
		return PaymentHeld
	}
}

// ProblemType categorises what the student is struggling with.
type ProblemType string

const (
	ProblemRhythm     ProblemType = "rhythm"
	ProblemTempo      ProblemType = "tempo"
	ProblemHands      ProblemType = "hands"
	ProblemPedal      ProblemType = "pedal"
	ProblemVoicing    ProblemType = "voicing"
	ProblemTechnique  ProblemType = "technique"
	ProblemExpression ProblemType = "expression"
	ProblemOther      ProblemType = "other"
)

// Valid reports whether the value is a known problem type.
func (p ProblemType) Valid() bool {
	switch p {
	case ProblemRhythm, ProblemTempo, ProblemHands, ProblemPedal,
		ProblemVoicing, ProblemTechnique, ProblemExpression, ProblemOther:
		return true
	}
	return false
}

// FeedbackRequest is the central lifecycle entity: one student's paid request
// for a one-point lesson from one teacher.
//
// Deadline fields are owned exclusively by the transition functions in the
// request service: acceptDeadline exists only while SENT (and is NULL while a
// clarification pauses it), submitDeadline only while ACCEPTED, reviewDeadline
// only while SUBMITTED.
type FeedbackRequest struct {
	ID        string `db:"id" json:"id"`
	StudentID string `db:"student_id" json:"studentId"`
	TeacherID string `db:"teacher_id" json:"teacherId"`

	Composer     string      `db:"composer" json:"composer"`
	Piece        string      `db:"piece" json:"piece"`
	MeasureStart int         `db:"measure_start" json:"measureStart"`
	MeasureEnd   int         `db:"measure_end" json:"measureEnd"`
	ProblemType  ProblemType `db:"problem_type" json:"problemType"`
	Description  string      `db:"description" json:"description"`
	VideoURL     *string     `db:"video_url" json:"videoUrl,omitempty"`
	FaceBlurred  bool        `db:"face_blurred" json:"faceBlurred"`

	Status        RequestStatus `db:"status" json:"status"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"paymentStatus"`
	CreditAmount  int64         `db:"credit_amount" json:"creditAmount"`
	HoldID        *string       `db:"hold_id" json:"-"`

	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	SentAt         *time.Time `db:"sent_at" json:"sentAt,omitempty"`
	AcceptDeadline *time.Time `db:"accept_deadline" json:"acceptDeadline,omitempty"`
	AcceptedAt     *time.Time `db:"accepted_at" json:"acceptedAt,omitempty"`
	SubmitDeadline *time.Time `db:"submit_deadline" json:"submitDeadline,omitempty"`
	SubmittedAt    *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	ReviewDeadline *time.Time `db:"review_deadline" json:"reviewDeadline,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completedAt,omitempty"`

	// Clarification sub-flow. While the question is unanswered the accept
	// deadline is NULL and AcceptRemaining holds the paused countdown.
	ClarificationQuestion   *string    `db:"clarification_question" json:"clarificationQuestion,omitempty"`
	ClarificationAskedAt    *time.Time `db:"clarification_asked_at" json:"clarificationAskedAt,omitempty"`
	ClarificationAnswer     *string    `db:"clarification_answer" json:"clarificationAnswer,omitempty"`
	ClarificationAnsweredAt *time.Time `db:"clarification_answered_at" json:"clarificationAnsweredAt,omitempty"`
	AcceptRemaining         *int64     `db:"accept_remaining_secs" json:"-"`

	DeclineReason *string    `db:"decline_reason" json:"declineReason,omitempty"`
	DisputeReason *string    `db:"dispute_reason" json:"disputeReason,omitempty"`
	DisputedAt    *time.Time `db:"disputed_at" json:"disputedAt,omitempty"`
	ResolvedBy    *string    `db:"resolved_by" json:"resolvedBy,omitempty"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`

	// Halted requests are skipped by the sweep after a ledger consistency
	// violation, pending manual audit.
	Halted bool `db:"halted" json:"halted"`

	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ClarificationOpen reports whether a question is awaiting the student.
func (r *FeedbackRequest) ClarificationOpen() bool {
	return r.ClarificationQuestion != nil && r.ClarificationAnswer == nil
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	StudentID string
	TeacherID string
	Status    []RequestStatus
	Limit     int
	Offset    int
}

// DueKind tags why a request is due for an automatic transition.
type DueKind string

const (
	DueAcceptExpiry DueKind = "accept_expiry"
	DueSubmitExpiry DueKind = "submit_expiry"
	DueAutoComplete DueKind = "auto_complete"
)

// DueRequest is one sweep work item.
type DueRequest struct {
	ID   string  `db:"id"`
	Kind DueKind `db:"kind"`
}
