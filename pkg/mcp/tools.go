package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/stockbuzz/stockbuzz/pkg/budget"
	"github.com/stockbuzz/stockbuzz/pkg/market"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/retry"
)

// toolHandler handles one tools/call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"stockbuzz_scan":             handleScan,
	"stockbuzz_news":             handleNews,
	"stockbuzz_indices":          handleIndices,
	"stockbuzz_calendar":         handleCalendar,
	"stockbuzz_gainers_losers":   handleGainersLosers,
	"stockbuzz_summary":          handleSummary,
	"stockbuzz_quotes":           handleQuotes,
	"stockbuzz_analyze":          handleAnalyze,
	"stockbuzz_chat":             handleChat,
	"stockbuzz_usage":            handleUsage,
	"stockbuzz_budget":           handleBudget,
	"stockbuzz_cache_stats":      handleCacheStats,
	"stockbuzz_cache_invalidate": handleCacheInvalidate,
	"stockbuzz_audit_search":     handleAuditSearch,
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var forceProp = prop("boolean", "Bypass the result cache and fetch fresh data (optional)")

var symbolsProp = map[string]any{
	"type":        "array",
	"items":       map[string]any{"type": "string"},
	"description": "Ticker symbols, e.g. [\"AAPL\", \"TSLA\"]",
}

var allTools = []ToolDefinition{
	{
		Name:        "stockbuzz_scan",
		Description: "Run a live stock scanner: market (gap-up momentum), earnings, movers, oversold, insider or heatmaps.",
		InputSchema: object(map[string]any{
			"kind": map[string]any{
				"type":        "string",
				"enum":        market.ScanKinds,
				"description": "Which scanner to run",
			},
			"filters": prop("object", "Scanner filters. market: enableRoss, projVolume, morningActive, breakout, highVolatility, excludeDerivatives, lowFloatRetail. earnings: epsBeat, revBeat, move5Percent, vol5M, rvol2x, priceRange, session, sector. movers: mode, cap."),
			"force":   forceProp,
		}, "kind"),
	},
	{
		Name:        "stockbuzz_news",
		Description: "Fetch categorized market news, with a watchlist section for the given symbols.",
		InputSchema: object(map[string]any{"symbols": symbolsProp, "force": forceProp}),
	},
	{
		Name:        "stockbuzz_indices",
		Description: "Show the major market indices with price, change and sentiment.",
		InputSchema: object(map[string]any{"force": forceProp}),
	},
	{
		Name:        "stockbuzz_calendar",
		Description: "List economic calendar events for a date range.",
		InputSchema: object(map[string]any{
			"range": prop("string", "Date range such as Today, Tomorrow or This Week (default Today)"),
			"force": forceProp,
		}),
	},
	{
		Name:        "stockbuzz_gainers_losers",
		Description: "Show today's top gaining and losing stocks.",
		InputSchema: object(map[string]any{"force": forceProp}),
	},
	{
		Name:        "stockbuzz_summary",
		Description: "Summarize today's market with overall sentiment and key points.",
		InputSchema: object(map[string]any{"force": forceProp}),
	},
	{
		Name:        "stockbuzz_quotes",
		Description: "Get live quotes with trend, relative volume and a one-line insight for each symbol.",
		InputSchema: object(map[string]any{"symbols": symbolsProp, "force": forceProp}, "symbols"),
	},
	{
		Name:        "stockbuzz_analyze",
		Description: "Analyze one stock: intraday candles, key levels, fundamentals, technicals and news.",
		InputSchema: object(map[string]any{
			"symbol": prop("string", "Ticker symbol"),
			"force":  forceProp,
		}, "symbol"),
	},
	{
		Name:        "stockbuzz_chat",
		Description: "Ask the market analyst a question, optionally about a result you already have.",
		InputSchema: object(map[string]any{
			"message": prop("string", "The question"),
			"context": prop("object", "Data the question refers to (optional)"),
		}, "message"),
	},
	{
		Name:        "stockbuzz_usage",
		Description: "Show token usage aggregated by feature and model.",
		InputSchema: object(map[string]any{"feature": prop("string", "Filter by feature (optional)")}),
	},
	{
		Name:        "stockbuzz_budget",
		Description: "Show budget usage against the configured limits.",
		InputSchema: object(map[string]any{}),
	},
	{
		Name:        "stockbuzz_cache_stats",
		Description: "Show result cache statistics (entries, hits, misses, hit rate).",
		InputSchema: object(map[string]any{}),
	},
	{
		Name:        "stockbuzz_cache_invalidate",
		Description: "Drop cached results whose key contains a pattern, or all results.",
		InputSchema: object(map[string]any{"pattern": prop("string", "Substring of the cache key (optional, omit for all)")}),
	},
	{
		Name:        "stockbuzz_audit_search",
		Description: "Search the audit log of model calls.",
		InputSchema: object(map[string]any{
			"feature": prop("string", "Filter by feature (optional)"),
			"outcome": prop("string", "Filter by outcome: ok, error, quota or blocked (optional)"),
			"since":   prop("string", "Start date in YYYY-MM-DD format (optional)"),
			"limit":   prop("integer", "Maximum entries (optional, default 50)"),
		}),
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func jsonResult(v any) ToolCallResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("Error encoding result: " + err.Error())
	}
	return textResult(string(data))
}

// failure turns a query error into a tool error message.
func failure(err error) ToolCallResult {
	switch {
	case errors.Is(err, retry.ErrQuotaExceeded):
		return errorResult(retry.ErrQuotaExceeded.Error() + ".")
	case errors.Is(err, budget.ErrBudgetExceeded):
		return errorResult("Budget exceeded: " + err.Error())
	}
	return errorResult("Error: " + err.Error())
}

// decodeArgs unmarshals tool arguments. Missing arguments leave dst zero.
func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

type forceArgs struct {
	Force bool `json:"force"`
}

type scanArgs struct {
	Kind    string          `json:"kind"`
	Filters json.RawMessage `json:"filters"`
	Force   bool            `json:"force"`
}

func handleScan(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args scanArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if args.Kind == "" {
		return errorResult("kind is required")
	}
	filters, err := market.DecodeScanFilters(args.Kind, args.Filters)
	if err != nil {
		return errorResult("invalid filters: " + err.Error())
	}
	res, err := s.market.Scan(ctx, args.Kind, args.Force, filters)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

type symbolsArgs struct {
	Symbols []string `json:"symbols"`
	Force   bool     `json:"force"`
}

func handleNews(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args symbolsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	res, err := s.market.FetchMarketNews(ctx, args.Symbols, args.Force)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

func handleIndices(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args forceArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	res, err := s.market.FetchMarketIndices(ctx, args.Force)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

type calendarArgs struct {
	Range string `json:"range"`
	Force bool   `json:"force"`
}

func handleCalendar(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args calendarArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	res, err := s.market.FetchEconomicCalendar(ctx, args.Range, args.Force)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

func handleGainersLosers(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args forceArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	res, err := s.market.FetchTopGainersLosers(ctx, args.Force)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

func handleSummary(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args forceArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	res, err := s.market.FetchDailyMarketSummary(ctx, args.Force)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

func handleQuotes(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args symbolsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if len(args.Symbols) == 0 {
		return errorResult("symbols is required")
	}
	res, err := s.market.FetchWatchlistQuotes(ctx, args.Symbols, args.Force)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

type analyzeArgs struct {
	Symbol string `json:"symbol"`
	Force  bool   `json:"force"`
}

func handleAnalyze(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args analyzeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if strings.TrimSpace(args.Symbol) == "" {
		return errorResult("symbol is required")
	}
	res, err := s.market.AnalyzeStock(ctx, args.Symbol, args.Force)
	if err != nil {
		return failure(err)
	}
	return jsonResult(res)
}

type chatArgs struct {
	Message string `json:"message"`
	Context any    `json:"context"`
}

func handleChat(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args chatArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if strings.TrimSpace(args.Message) == "" {
		return errorResult("message is required")
	}
	reply, err := s.market.ChatWithAnalyst(ctx, args.Message, args.Context)
	if err != nil {
		return failure(err)
	}
	return textResult(reply)
}

type usageArgs struct {
	Feature string `json:"feature"`
}

func handleUsage(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.tracker == nil {
		return textResult("Usage tracking is not configured.")
	}
	var args usageArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	rows, err := s.tracker.Summary(ctx, args.Feature)
	if err != nil {
		return errorResult("Error fetching usage: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.enforcer == nil {
		return textResult("Budget enforcement is not configured.")
	}
	statuses, err := s.enforcer.Status(ctx)
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error())
	}
	return textResult(formatBudgetStatus(statuses))
}

func handleCacheStats(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	return textResult(formatCacheStats(s.market.CacheStats()))
}

type invalidateArgs struct {
	Pattern string `json:"pattern"`
}

func handleCacheInvalidate(_ context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args invalidateArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	n := s.market.Invalidate(args.Pattern)
	return textResult(formatInvalidated(n, args.Pattern))
}

type auditSearchArgs struct {
	Feature string `json:"feature"`
	Outcome string `json:"outcome"`
	Since   string `json:"since"`
	Limit   int    `json:"limit"`
}

func handleAuditSearch(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.auditor == nil {
		return textResult("Audit logging is not configured.")
	}
	var args auditSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}

	opts := models.AuditQueryOpts{
		Feature: args.Feature,
		Outcome: args.Outcome,
		Limit:   args.Limit,
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		opts.Since = t
	}

	entries, err := s.auditor.Query(ctx, opts)
	if err != nil {
		return errorResult("Error searching audit log: " + err.Error())
	}
	return textResult(formatAuditEntries(entries))
}
