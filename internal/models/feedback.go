package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FeedbackComment annotates a measure range of the submitted video.
type FeedbackComment struct {
	MeasureStart int    `json:"measureStart"`
	MeasureEnd   int    `json:"measureEnd"`
	Text         string `json:"text"`
}

// FeedbackComments is the ordered comment list persisted as JSONB.
type FeedbackComments []FeedbackComment

// Value marshals comments to JSON for persistence.
func (c FeedbackComments) Value() (driver.Value, error) {
	if c == nil {
		c = FeedbackComments{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal feedback comments: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the comment list.
func (c *FeedbackComments) Scan(value interface{}) error {
	return scanJSON(value, c, "FeedbackComments")
}

// PracticeCard is the structured practice plan attached to a deliverable.
type PracticeCard struct {
	Section          string   `json:"section"`
	TempoProgression string   `json:"tempoProgression"`
	Steps            []string `json:"steps"`
	DailyMinutes     int      `json:"dailyMinutes"`
}

// Value marshals the card to JSON for persistence.
func (p PracticeCard) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal practice card: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the card.
func (p *PracticeCard) Scan(value interface{}) error {
	return scanJSON(value, p, "PracticeCard")
}

// Feedback is the deliverable produced exactly once per request on submission.
// It is immutable after creation: disputes reference it, never edit it.
type Feedback struct {
	ID           string           `db:"id" json:"id"`
	RequestID    string           `db:"request_id" json:"requestId"`
	Comments     FeedbackComments `db:"comments" json:"comments"`
	DemoVideoURL *string          `db:"demo_video_url" json:"demoVideoUrl,omitempty"`
	PracticeCard PracticeCard     `db:"practice_card" json:"practiceCard"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submittedAt"`
}

func scanJSON(value interface{}, dest interface{}, kind string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, kind)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return nil
}
