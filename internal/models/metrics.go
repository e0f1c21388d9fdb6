package models

import "time"

// ClientMetrics is a point-in-time summary of the console's API traffic.
type ClientMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	RequestErrors            uint64    `json:"request_errors"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ForcedLogouts            uint64    `json:"forced_logouts"`
	Refreshes                uint64    `json:"refreshes"`
	FailedRefreshes          uint64    `json:"failed_refreshes"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
