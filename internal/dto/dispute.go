package dto

import "github.com/noah-isme/opl-api/internal/models"

// DisputeOutcome is the admin's resolution decision.
type DisputeOutcome string

const (
	// DisputeOutcomeUphold keeps the deliverable and releases credits to the
	// teacher.
	DisputeOutcomeUphold DisputeOutcome = "uphold"
	// DisputeOutcomeRefund returns credits to the student.
	DisputeOutcomeRefund DisputeOutcome = "refund"
)

// ResolveDisputePayload carries the resolution decision and optional note.
type ResolveDisputePayload struct {
	Outcome DisputeOutcome `json:"outcome" validate:"required,oneof=uphold refund"`
	Note    string         `json:"note"`
}

// DisputeCase exposes everything an admin needs to arbitrate: the original
// request, the attached deliverable, and the dispute rationale.
type DisputeCase struct {
	Request  *models.FeedbackRequest `json:"request"`
	Feedback *models.Feedback        `json:"feedback,omitempty"`
	Reason   string                  `json:"reason"`
}
