package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/refresh"
)

// Usage prints per-feature token usage.
func (p *Printer) Usage(rows []models.UsageSummary) {
	out := make([][]string, 0, len(rows))
	for _, s := range rows {
		out = append(out, []string{
			s.Feature, s.Model, Count(s.RequestCount), Count(s.TotalPrompt),
			Count(s.TotalCompletion), Count(s.TotalTokens), Count(s.TotalAttempts),
		})
	}
	p.Table([]string{"FEATURE", "MODEL", "REQUESTS", "PROMPT", "COMPLETION", "TOTAL", "ATTEMPTS"}, out, "No usage data found.")
}

// AuditEntries prints audit entries one per row.
func (p *Printer) AuditEntries(entries []models.AuditEntry) {
	out := make([][]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, []string{
			e.RequestID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Feature, e.Model,
			p.outcome(e.Outcome), strconv.Itoa(e.Attempts), Count(e.TotalTokens),
			(time.Duration(e.LatencyMs) * time.Millisecond).String(),
		})
	}
	p.Table([]string{"REQUEST ID", "TIME", "FEATURE", "MODEL", "OUTCOME", "ATTEMPTS", "TOKENS", "LATENCY"}, out, "No audit entries found.")
}

// AuditEntry prints one audit entry in full.
func (p *Printer) AuditEntry(e models.AuditEntry) {
	p.Heading("Request " + e.RequestID)
	p.Line("Time:      %s (%s)", e.CreatedAt.Format("2006-01-02 15:04:05"), p.Ago(e.CreatedAt))
	p.Line("Feature:   %s", e.Feature)
	p.Line("Model:     %s", e.Model)
	p.Line("Outcome:   %s", p.outcome(e.Outcome))
	p.Line("Attempts:  %d", e.Attempts)
	p.Line("Tokens:    %d prompt, %d completion, %d total", e.PromptTokens, e.CompletionTokens, e.TotalTokens)
	p.Line("Latency:   %dms", e.LatencyMs)
	if e.CacheKey != "" {
		p.Line("Cache key: %s", e.CacheKey)
	}
	if e.Error != "" {
		p.Warn("Error: %s", e.Error)
	}
	if e.Prompt != "" {
		p.Heading("Prompt")
		p.Line("%s", e.Prompt)
	}
	if e.Response != "" {
		p.Heading("Response")
		p.Line("%s", e.Response)
	}
}

func (p *Printer) outcome(o string) string {
	switch o {
	case models.OutcomeOK:
		return p.up.Render(o)
	case models.OutcomeError, models.OutcomeQuota, models.OutcomeBlocked:
		return p.down.Render(o)
	}
	return o
}

// AuditStats prints request counts per feature and day.
func (p *Printer) AuditStats(stats []models.AuditStat) {
	out := make([][]string, 0, len(stats))
	for _, s := range stats {
		out = append(out, []string{s.Day, s.Feature, Count(s.Count)})
	}
	p.Table([]string{"DAY", "FEATURE", "REQUESTS"}, out, "No audit data.")
}

// CacheStats prints result cache metrics.
func (p *Printer) CacheStats(s models.CacheStats) {
	p.Table([]string{"ENTRIES", "HITS", "MISSES", "HIT RATE", "TTL"},
		[][]string{{Count(s.Entries), Count(s.Hits), Count(s.Misses), Percent(s.HitRate()), s.TTL.String()}}, "")
}

// Budget prints budget consumption per policy.
func (p *Printer) Budget(statuses []models.BudgetStatus) {
	out := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		model := s.Policy.Model
		if model == "" {
			model = "*"
		}
		out = append(out, []string{
			model, string(s.Policy.Period),
			limit(s.UsedTokens, s.Policy.MaxTokens), limit(s.UsedRequests, s.Policy.MaxRequests),
			p.remaining(s.RemainingTokens, s.Policy.MaxTokens), p.remaining(s.RemainingRequests, s.Policy.MaxRequests),
		})
	}
	p.Table([]string{"MODEL", "PERIOD", "TOKENS", "REQUESTS", "TOKENS LEFT", "REQUESTS LEFT"}, out, "No budget policies configured.")
}

func limit(used, lim int64) string {
	if lim <= 0 {
		return Count(used)
	}
	return Count(used) + " / " + Count(lim)
}

func (p *Printer) remaining(left, lim int64) string {
	switch {
	case lim <= 0:
		return p.dim.Render("unlimited")
	case left <= 0:
		return p.down.Render("0")
	}
	return Count(left)
}

// KeyRow pairs a provider with its stored key and effective source.
type KeyRow struct {
	Provider models.Provider
	Key      *models.APIKeyConfig
	Masked   string
	Source   string
}

// Keys prints the provider catalogue with stored key state.
func (p *Printer) Keys(rows []KeyRow) {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		key, status, enabled, updated := "-", "-", "-", "-"
		if r.Key != nil {
			key = r.Masked
			status = p.keyStatus(r.Key.Status)
			enabled = strconv.FormatBool(r.Key.Enabled)
			updated = p.Ago(r.Key.UpdatedAt)
		}
		out = append(out, []string{r.Provider.ID, r.Provider.Name, key, status, enabled, orDash(r.Source), updated})
	}
	p.Table([]string{"PROVIDER", "NAME", "KEY", "STATUS", "ENABLED", "IN USE", "UPDATED"}, out, "No providers.")
}

func (p *Printer) keyStatus(s models.KeyStatus) string {
	switch s {
	case models.KeyValid:
		return p.up.Render(string(s))
	case models.KeyInvalid:
		return p.down.Render(string(s))
	}
	return string(s)
}

// Providers prints the provider catalogue.
func (p *Printer) Providers(providers []models.Provider) {
	out := make([][]string, 0, len(providers))
	for _, pr := range providers {
		out = append(out, []string{pr.ID, pr.Name, pr.Description, pr.DocsURL})
	}
	p.Table([]string{"ID", "NAME", "DESCRIPTION", "DOCS"}, out, "No providers.")
}

// Watchlists prints watchlists with their tickers.
func (p *Printer) Watchlists(lists []models.Watchlist) {
	out := make([][]string, 0, len(lists))
	for _, w := range lists {
		out = append(out, []string{w.Name, strconv.Itoa(len(w.Tickers)), strings.Join(w.Tickers, " "), w.ID})
	}
	p.Table([]string{"NAME", "SIZE", "TICKERS", "ID"}, out, "No watchlists. Create one with: stockbuzz watchlist create NAME TICKER...")
}

// Board prints widget refresh states.
func (p *Printer) Board(statuses []refresh.WidgetStatus) {
	out := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := string(s.State)
		switch s.State {
		case refresh.StateComplete:
			state = p.up.Render(state)
		case refresh.StateError:
			state = p.down.Render(state)
		case refresh.StateRunning:
			state = p.warn.Render(state)
		}
		out = append(out, []string{
			s.Widget, state, p.Ago(s.UpdatedAt),
			fmt.Sprintf("%dms", s.DurationMs), strconv.Itoa(s.Refreshes), Truncate(s.Error, 48),
		})
	}
	p.Table([]string{"WIDGET", "STATE", "UPDATED", "TOOK", "RUNS", "ERROR"}, out, "No widgets.")
}
