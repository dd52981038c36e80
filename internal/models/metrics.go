package models

import "time"

// MetricsSnapshot is a JSON-friendly summary of the Prometheus counters.
type MetricsSnapshot struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	ProviderCalls            uint64    `json:"provider_calls"`
	ProviderErrors           uint64    `json:"provider_errors"`
	SkippedEvents            uint64    `json:"skipped_events"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
