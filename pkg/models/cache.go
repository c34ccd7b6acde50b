package models

import "time"

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64         `json:"entries"`
	Hits    int64         `json:"hits"`
	Misses  int64         `json:"misses"`
	TTL     time.Duration `json:"ttl"`
}

// HitRate is hits over lookups, or 0 before the first lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// QueueStats reports the request queue backlog and the retry schedule.
type QueueStats struct {
	Pending     int             `json:"pending"`
	Dispatched  int64           `json:"dispatched"`
	Delay       time.Duration   `json:"delay"`
	MaxAttempts int             `json:"maxAttempts"`
	Backoff     []time.Duration `json:"backoff"`
}
