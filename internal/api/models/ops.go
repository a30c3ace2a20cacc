package models

import "time"

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    time.Time              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SweepStatusResponse is the API view of the expiry sweeper's progress.
type SweepStatusResponse struct {
	Running  bool `json:"running"`
	Progress int  `json:"progress"`
	Total    int  `json:"total"`
}

// SweepResultResponse summarizes a manually triggered sweep run.
type SweepResultResponse struct {
	Expired   int  `json:"expired"`
	Resolved  int  `json:"resolved"`
	Failed    int  `json:"failed"`
	Cancelled bool `json:"cancelled"`
}
