package dto

// HealthStatus is returned by GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Journal bool   `json:"journal"`
	Viewers int    `json:"viewers"`
}
