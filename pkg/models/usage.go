package models

import "time"

// Usage represents token usage reported for one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// UsageRecord tracks per-call token usage for a dashboard feature.
type UsageRecord struct {
	ID               int64     `json:"id"`
	Feature          string    `json:"feature"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Attempts         int       `json:"attempts"`
	CreatedAt        time.Time `json:"created_at"`
}

// UsageSummary aggregates usage across calls.
type UsageSummary struct {
	Feature         string `json:"feature"`
	Model           string `json:"model"`
	RequestCount    int    `json:"request_count"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalTokens     int    `json:"total_tokens"`
	TotalAttempts   int    `json:"total_attempts"`
}
