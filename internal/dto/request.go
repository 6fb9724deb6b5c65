package dto

import "github.com/noah-isme/opl-api/internal/models"

// CreateRequestPayload creates a DRAFT feedback request.
type CreateRequestPayload struct {
	TeacherID    string             `json:"teacherId" validate:"required"`
	Composer     string             `json:"composer" validate:"required"`
	Piece        string             `json:"piece" validate:"required"`
	MeasureStart int                `json:"measureStart" validate:"required,min=1"`
	MeasureEnd   int                `json:"measureEnd" validate:"required,gtefield=MeasureStart"`
	ProblemType  models.ProblemType `json:"problemType" validate:"required"`
	Description  string             `json:"description" validate:"required"`
	VideoURL     string             `json:"videoUrl"`
	FaceBlurred  bool               `json:"faceBlurred"`
	CreditAmount int64              `json:"creditAmount" validate:"required,gt=0"`
}

// DeclinePayload carries the teacher's (or admin's) decline reason.
type DeclinePayload struct {
	Reason string `json:"reason" validate:"required"`
}

// ClarificationPayload raises the teacher's question.
type ClarificationPayload struct {
	Question string `json:"question" validate:"required"`
}

// ClarificationAnswerPayload answers the open question.
type ClarificationAnswerPayload struct {
	Answer string `json:"answer" validate:"required"`
}

// SubmitFeedbackPayload attaches the deliverable on submission.
type SubmitFeedbackPayload struct {
	Comments     []models.FeedbackComment `json:"comments" validate:"required,min=1,dive"`
	DemoVideoURL string                   `json:"demoVideoUrl"`
	PracticeCard models.PracticeCard      `json:"practiceCard" validate:"required"`
}

// DisputePayload opens a dispute on a submitted deliverable.
type DisputePayload struct {
	Reason string `json:"reason" validate:"required"`
}

// RequestDetail pairs a request snapshot with its deliverable when present.
type RequestDetail struct {
	Request  *models.FeedbackRequest `json:"request"`
	Feedback *models.Feedback        `json:"feedback,omitempty"`
}
