// Package market implements the dashboard's typed queries. Each query builds
// a prompt, sends it through the paced retrying caller, extracts the JSON the
// model embedded in its answer and normalizes it into a result whose fields
// are always present.
package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/stockbuzz/stockbuzz/pkg/audit"
	"github.com/stockbuzz/stockbuzz/pkg/budget"
	"github.com/stockbuzz/stockbuzz/pkg/cache"
	"github.com/stockbuzz/stockbuzz/pkg/extract"
	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/retry"
	"github.com/stockbuzz/stockbuzz/pkg/router"
	"github.com/stockbuzz/stockbuzz/pkg/tracker"
)

// Feature names. They label usage records, audit entries and router
// overrides.
const (
	FeatureScanMarket    = "scan_market"
	FeatureScanEarnings  = "scan_earnings"
	FeatureScanMovers    = "scan_movers"
	FeatureScanOversold  = "scan_oversold"
	FeatureScanInsider   = "scan_insider"
	FeatureScanHeatmaps  = "scan_heatmaps"
	FeatureNews          = "news"
	FeatureIndices       = "market_indices"
	FeatureCalendar      = "calendar"
	FeatureGainersLosers = "gainers_losers"
	FeatureSummary       = "market_summary"
	FeatureQuotes        = "quotes"
	FeatureScreenshot    = "screenshot"
	FeatureAnalysis      = "analysis"
	FeatureChat          = "chat"
)

// Features lists every feature name.
var Features = []string{
	FeatureScanMarket, FeatureScanEarnings, FeatureScanMovers, FeatureScanOversold,
	FeatureScanInsider, FeatureScanHeatmaps, FeatureNews, FeatureIndices,
	FeatureCalendar, FeatureGainersLosers, FeatureSummary, FeatureQuotes,
	FeatureScreenshot, FeatureAnalysis, FeatureChat,
}

// Built-in temperatures.
const (
	scanTemperature    = 0.1
	summaryTemperature = 0.2
	chatTemperature    = 0.7
)

// Deps are the collaborators of a Service. Cache, Caller and Generator are
// required; the rest are optional.
type Deps struct {
	Cache     *cache.Cache
	Caller    *retry.Caller
	Generator llm.Generator
	Extractor *extract.Extractor
	Router    *router.Router
	Budget    *budget.Enforcer
	Tracker   tracker.Tracker
	Audit     *audit.Logger
	Logger    *zap.Logger
}

// Service runs the dashboard queries.
type Service struct {
	cache     *cache.Cache
	caller    *retry.Caller
	gen       llm.Generator
	extractor *extract.Extractor
	router    *router.Router
	budget    *budget.Enforcer
	tracker   tracker.Tracker
	auditor   *audit.Logger
	logger    *zap.Logger
	now       func() time.Time

	group singleflight.Group
}

// New creates a Service.
func New(d Deps) (*Service, error) {
	switch {
	case d.Cache == nil:
		return nil, errors.New("market: cache is required")
	case d.Caller == nil:
		return nil, errors.New("market: caller is required")
	case d.Generator == nil:
		return nil, errors.New("market: generator is required")
	}

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ex := d.Extractor
	if ex == nil {
		ex = extract.New(logger)
	}
	rt := d.Router
	if rt == nil {
		rt = router.New(nil)
	}

	return &Service{
		cache:     d.Cache,
		caller:    d.Caller,
		gen:       d.Generator,
		extractor: ex,
		router:    rt,
		budget:    d.Budget,
		tracker:   d.Tracker,
		auditor:   d.Audit,
		logger:    logger.Named("market"),
		now:       time.Now,
	}, nil
}

// CacheStats reports result cache metrics.
func (s *Service) CacheStats() models.CacheStats {
	return s.cache.Stats()
}

// QueueStats reports the request queue backlog and retry schedule.
func (s *Service) QueueStats() models.QueueStats {
	return s.caller.Stats()
}

// Invalidate drops cached results whose key contains pattern, or every
// result when pattern is empty.
func (s *Service) Invalidate(pattern string) int {
	n := s.cache.Invalidate(pattern)
	s.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("removed", n))
	return n
}

// InvalidateSymbol drops the cached quotes and analysis that mention symbol.
func (s *Service) InvalidateSymbol(symbol string) int {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return 0
	}

	n := 0
	for _, key := range s.cache.Keys() {
		switch {
		case key == "analysis_"+symbol:
		case strings.HasPrefix(key, "quotes_"):
			found := false
			for _, sym := range strings.Split(strings.TrimPrefix(key, "quotes_"), "_") {
				if sym == symbol {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		default:
			continue
		}
		if s.cache.Delete(key) {
			n++
		}
	}
	return n
}

// call describes one model request made on behalf of a feature.
type call struct {
	feature  string
	cacheKey string
	route    router.Route
	prompt   string
	images   []llm.Image
}

// fetch serves c from the cache unless force is set. On a miss the request
// is generated, shaped and stored. Concurrent misses for the same key share
// one provider call, which outlives any single caller: a caller whose ctx is
// done stops waiting, the others still get the result and it is still cached.
func fetch[T any](ctx context.Context, s *Service, force bool, c call, shape func(raw any, resp *llm.Response) T) (T, error) {
	var zero T
	if !force {
		if v, ok := cache.Lookup[T](s.cache, c.cacheKey); ok {
			s.logger.Debug("cache hit", zap.String("key", c.cacheKey))
			return v, nil
		}
	}

	// Forced callers never join a flight that may be answered from the cache.
	key := c.cacheKey
	if force {
		key += "\x00force"
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		if !force {
			// A flight for this key may have finished since the lookup above.
			if v, ok := s.cache.Peek(c.cacheKey); ok {
				if _, typed := v.(T); typed {
					return v, nil
				}
			}
		}
		resp, err := s.generate(flightCtx, c)
		if err != nil {
			return nil, err
		}
		out := shape(s.extractor.JSON(resp.Text), resp)
		s.cache.Set(c.cacheKey, out)
		return out, nil
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("%s: %w", c.feature, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			s.logger.Debug("joined in-flight request", zap.String("key", c.cacheKey))
		}
		return res.Val.(T), nil
	}
}

// generate checks the budget, sends the request through the queue and
// records usage and audit data for it.
func (s *Service) generate(ctx context.Context, c call) (*llm.Response, error) {
	route := s.router.Resolve(c.feature, c.route)
	entry := models.AuditEntry{
		RequestID: audit.NewRequestID(),
		Feature:   c.feature,
		Model:     route.Model,
		CacheKey:  c.cacheKey,
		Prompt:    c.prompt,
	}

	if s.budget != nil {
		if err := s.budget.Check(ctx, route.Model); err != nil {
			s.finish(ctx, entry, nil, 0, 0, err)
			return nil, fmt.Errorf("%s: %w", c.feature, err)
		}
	}

	start := time.Now()
	resp, attempts, err := s.caller.Generate(ctx, s.gen, route.Request(c.prompt, c.images...))
	s.finish(ctx, entry, resp, attempts, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.feature, err)
	}
	return resp, nil
}

// finish writes the usage record and the audit entry for a completed call.
// Failures to record are logged and never returned.
func (s *Service) finish(ctx context.Context, entry models.AuditEntry, resp *llm.Response, attempts int, elapsed time.Duration, callErr error) {
	entry.Attempts = attempts
	entry.LatencyMs = elapsed.Milliseconds()
	entry.Outcome = outcome(callErr)
	if callErr != nil {
		entry.Error = callErr.Error()
		s.logger.Warn("model call failed",
			zap.String("feature", entry.Feature),
			zap.Int("attempts", attempts),
			zap.Error(callErr),
		)
	}

	if resp != nil {
		entry.Response = resp.Text
		entry.PromptTokens = resp.Usage.PromptTokens
		entry.CompletionTokens = resp.Usage.CompletionTokens
		entry.TotalTokens = resp.Usage.TotalTokens

		if s.tracker != nil {
			err := s.tracker.Record(ctx, models.UsageRecord{
				Feature:          entry.Feature,
				Model:            entry.Model,
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
				Attempts:         attempts,
			})
			if err != nil {
				s.logger.Warn("record usage", zap.Error(err))
			}
		}
	}

	if err := s.auditor.Log(ctx, entry); err != nil {
		s.logger.Warn("audit log", zap.Error(err))
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return models.OutcomeOK
	case errors.Is(err, retry.ErrQuotaExceeded):
		return models.OutcomeQuota
	case errors.Is(err, budget.ErrBudgetExceeded):
		return models.OutcomeBlocked
	default:
		return models.OutcomeError
	}
}

// searchRoute is the built-in route of the web-grounded queries.
func searchRoute(temp float32) router.Route {
	return router.Route{Temperature: llm.Temp(temp), Search: true}
}

// sources returns the grounding sources of resp, never nil.
func sources(resp *llm.Response) []models.SearchSource {
	if resp == nil || len(resp.Sources) == 0 {
		return []models.SearchSource{}
	}
	out := make([]models.SearchSource, len(resp.Sources))
	copy(out, resp.Sources)
	return out
}

func (s *Service) today() string {
	return s.now().Format("Monday, January 2, 2006")
}
