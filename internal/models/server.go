package models

type HealthState string

const (
	HealthStatusHealthy   HealthState = "healthy"
	HealthStatusDegraded  HealthState = "degraded"
	HealthStatusUnhealthy HealthState = "unhealthy"
)

type HealthResponse struct {
	Status        HealthState `json:"status"`
	Timestamp     string      `json:"timestamp"`
	Version       string      `json:"version"`
	Cluster       string      `json:"cluster,omitempty"`
	Authenticated bool        `json:"authenticated"`
	Error         string      `json:"error,omitempty"`
}

type MetricsInfo struct {
	Uptime          string `json:"uptime"`
	TotalRequests   int64  `json:"total_requests"`
	TokenRequests   int64  `json:"token_requests"`
	TokensIssued    int64  `json:"tokens_issued"`
	TokenFailures   int64  `json:"token_failures"`
	Logins          int64  `json:"logins"`
	LoginFailures   int64  `json:"login_failures"`
	ManagerRebuilds int64  `json:"manager_rebuilds"`
}

// ErrorResponse is the only error body clients ever see.
type ErrorResponse struct {
	Message string `json:"message"`
}
