package mcp

import (
	"fmt"
	"strings"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// formatSummary formats usage summaries as a text table.
func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %-22s %8s %10s %10s %10s %8s\n",
		"Feature", "Model", "Requests", "Prompt", "Completion", "Total", "Attempts")
	b.WriteString(strings.Repeat("-", 92) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-18s %-22s %8d %10d %10d %10d %8d\n",
			r.Feature, r.Model, r.RequestCount, r.TotalPrompt, r.TotalCompletion, r.TotalTokens, r.TotalAttempts)
	}
	return b.String()
}

// formatBudgetStatus formats budget statuses as a text table.
func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-22s %-8s %12s %12s %12s %12s\n",
		"Model", "Period", "Used Tokens", "Max Tokens", "Used Reqs", "Max Reqs")
	b.WriteString(strings.Repeat("-", 83) + "\n")
	for _, s := range statuses {
		model := s.Policy.Model
		if model == "" {
			model = "*"
		}
		fmt.Fprintf(&b, "%-22s %-8s %12d %12s %12d %12s\n",
			model, s.Policy.Period, s.UsedTokens, limit(s.Policy.MaxTokens), s.UsedRequests, limit(s.Policy.MaxRequests))
	}
	return b.String()
}

func limit(n int64) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n"+
		"  TTL:      %s\n",
		stats.Entries, stats.Hits, stats.Misses, stats.HitRate()*100, stats.TTL)
}

func formatInvalidated(n int, pattern string) string {
	if pattern == "" {
		return fmt.Sprintf("Removed %d cached results.", n)
	}
	return fmt.Sprintf("Removed %d cached results matching %q.", n, pattern)
}

// formatAuditEntries formats audit entries as a text table.
func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No audit entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-19s %-16s %-8s %8s %8s %8s\n",
		"Request ID", "Time", "Feature", "Outcome", "Attempts", "Tokens", "Latency")
	b.WriteString(strings.Repeat("-", 110) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-36s %-19s %-16s %-8s %8d %8d %6dms\n",
			e.RequestID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Feature,
			e.Outcome, e.Attempts, e.TotalTokens, e.LatencyMs)
		if e.Error != "" {
			fmt.Fprintf(&b, "    error: %s\n", e.Error)
		}
	}
	return b.String()
}
