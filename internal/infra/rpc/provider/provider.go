// Package provider implements the HTTP transport shared by data source clients.
//
// This package contains:
//   - HTTPProvider: JSON-RPC 2.0 and REST calls over HTTP
//   - ProviderMonitor: latency and throttle tracking
//   - Classify: transient/throttled/permanent error classification
package provider

import "time"

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	Status        string        `json:"status"`
}
