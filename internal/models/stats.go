package models

import "time"

// EngineStats aggregates lifecycle and escrow counters for the admin overview.
type EngineStats struct {
	CountsByStatus  map[RequestStatus]int64 `json:"countsByStatus"`
	OpenDisputes    int64                   `json:"openDisputes"`
	HaltedRequests  int64                   `json:"haltedRequests"`
	CreditsHeld     int64                   `json:"creditsHeld"`
	CreditsReleased int64                   `json:"creditsReleased"`
	CreditsRefunded int64                   `json:"creditsRefunded"`
	GeneratedAt     time.Time               `json:"generatedAt"`
}
