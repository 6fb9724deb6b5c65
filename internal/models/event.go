package models

import "time"

// TransitionEvent is emitted on every successful lifecycle transition.
// Consumers drive user-facing alerts; delivery is fire-and-forget and never
// rolls back the transition.
type TransitionEvent struct {
	RequestID  string        `json:"requestId"`
	FromStatus RequestStatus `json:"fromStatus"`
	ToStatus   RequestStatus `json:"toStatus"`
	Timestamp  time.Time     `json:"timestamp"`
}
