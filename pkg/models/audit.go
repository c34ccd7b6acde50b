package models

import "time"

// Audit outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeQuota   = "quota"
	OutcomeBlocked = "blocked"
)

// AuditEntry represents a single audited model call.
type AuditEntry struct {
	RequestID        string    `json:"request_id"`
	Feature          string    `json:"feature"`
	Model            string    `json:"model"`
	CacheKey         string    `json:"cache_key,omitempty"`
	Prompt           string    `json:"prompt,omitempty"`
	Response         string    `json:"response,omitempty"`
	Outcome          string    `json:"outcome"`
	Error            string    `json:"error,omitempty"`
	Attempts         int       `json:"attempts"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	LatencyMs        int64     `json:"latency_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditConfig controls the audit logging subsystem.
type AuditConfig struct {
	Enabled         bool     `yaml:"enabled"`
	RetentionDays   int      `yaml:"retention_days"`
	Include         []string `yaml:"include"` // "prompts", "responses"
	ExcludeFeatures []string `yaml:"exclude_features"`
	MaxBodySize     int      `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying audit entries.
type AuditQueryOpts struct {
	Feature   string
	Model     string
	Outcome   string
	Since     time.Time
	RequestID string
	Limit     int
}

// AuditStat holds aggregate audit counts for a feature/day combination.
type AuditStat struct {
	Feature string
	Day     string
	Count   int
}
