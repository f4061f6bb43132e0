package domain

import "time"

// StageResult records the outcome of one pipeline stage for a given
// cache key. Results are persisted so a re-run with an unchanged
// lockfile can skip the dependency fetch.
type StageResult struct {
	Stage     string    `json:"stage,omitzero"`
	CacheKey  string    `json:"cache_key,omitzero"`
	Status    string    `json:"status,omitzero"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}
