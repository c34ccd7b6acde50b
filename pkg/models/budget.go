package models

// BudgetPeriod defines the time window for a budget policy.
type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetPolicy caps model calls per period. Model "*" or "" matches every
// model. A zero limit is not enforced.
type BudgetPolicy struct {
	Model       string       `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens   int64        `json:"max_tokens" yaml:"max_tokens"`
	MaxRequests int64        `json:"max_requests" yaml:"max_requests"`
	Period      BudgetPeriod `json:"period" yaml:"period"`
}

// BudgetStatus shows current usage against a policy.
type BudgetStatus struct {
	Policy            BudgetPolicy `json:"policy"`
	UsedTokens        int64        `json:"used_tokens"`
	UsedRequests      int64        `json:"used_requests"`
	RemainingTokens   int64        `json:"remaining_tokens"`
	RemainingRequests int64        `json:"remaining_requests"`
}
