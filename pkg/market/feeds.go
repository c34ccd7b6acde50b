package market

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/stockbuzz/stockbuzz/pkg/decode"
	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

// DefaultCalendarRange is used when FetchEconomicCalendar gets no range.
const DefaultCalendarRange = "Today"

// FetchMarketNews returns categorized headlines for the watchlist, or for
// the whole market when the watchlist is empty.
func (s *Service) FetchMarketNews(ctx context.Context, watchlist []string, force bool) (models.NewsFeedResult, error) {
	watchlist = store.NormalizeTickers(watchlist)
	key := "news_all"
	if len(watchlist) > 0 {
		key = "news_" + strings.Join(watchlist, "_")
	}
	c := call{
		feature:  FeatureNews,
		cacheKey: key,
		route:    searchRoute(scanTemperature),
		prompt:   newsPrompt(s.today(), watchlist),
	}
	return fetch(ctx, s, force, c, func(raw any, resp *llm.Response) models.NewsFeedResult {
		m := root(raw)
		return models.NewsFeedResult{
			BreakingNews:  decode.Slice(m, "breakingNews", newsItem),
			WatchlistNews: decode.Slice(m, "watchlistNews", newsItem),
			MarketNews:    decode.Slice(m, "marketNews", newsItem),
			TrendingNews:  decode.Slice(m, "trendingNews", newsItem),
			EarningsNews:  decode.Slice(m, "earningsNews", newsItem),
			AnalystNews:   decode.Slice(m, "analystNews", newsItem),
			CompanyNews:   decode.Slice(m, "companyNews", newsItem),
			Sources:       sources(resp),
		}
	})
}

// FetchMarketIndices returns quotes for the headline index ETFs. Failures
// yield an empty list.
func (s *Service) FetchMarketIndices(ctx context.Context, force bool) ([]models.MarketIndex, error) {
	c := call{
		feature:  FeatureIndices,
		cacheKey: "market_indices",
		route:    searchRoute(scanTemperature),
		prompt:   indicesPrompt(),
	}
	out, err := fetch(ctx, s, force, c, func(raw any, _ *llm.Response) []models.MarketIndex {
		return indices(raw)
	})
	if err != nil {
		s.degraded(c.feature, err)
		return []models.MarketIndex{}, nil
	}
	return out, nil
}

// FetchEconomicCalendar returns the macro events for a range such as
// "Today" or "This Week". Failures yield an empty list.
func (s *Service) FetchEconomicCalendar(ctx context.Context, rng string, force bool) ([]models.EconomicEvent, error) {
	if rng == "" {
		rng = DefaultCalendarRange
	}
	c := call{
		feature:  FeatureCalendar,
		cacheKey: "calendar_" + rng,
		route:    searchRoute(scanTemperature),
		prompt:   calendarPrompt(rng),
	}
	out, err := fetch(ctx, s, force, c, func(raw any, _ *llm.Response) []models.EconomicEvent {
		return mapAll(listOf(raw, "events"), economicEvent)
	})
	if err != nil {
		s.degraded(c.feature, err)
		return []models.EconomicEvent{}, nil
	}
	return out, nil
}

// FetchTopGainersLosers returns the session's biggest moves. Failures yield
// empty lists.
func (s *Service) FetchTopGainersLosers(ctx context.Context, force bool) (models.GainersLosersResult, error) {
	c := call{
		feature:  FeatureGainersLosers,
		cacheKey: "gainers_losers",
		route:    searchRoute(scanTemperature),
		prompt:   gainersLosersPrompt(),
	}
	out, err := fetch(ctx, s, force, c, func(raw any, _ *llm.Response) models.GainersLosersResult {
		m := root(raw)
		return models.GainersLosersResult{
			Gainers: decode.Slice(m, "gainers", gainerLoser),
			Losers:  decode.Slice(m, "losers", gainerLoser),
		}
	})
	if err != nil {
		s.degraded(c.feature, err)
		return models.GainersLosersResult{
			Gainers: []models.StockCandidate{},
			Losers:  []models.StockCandidate{},
		}, nil
	}
	return out, nil
}

// FetchDailyMarketSummary returns the market wrap. A failure yields a
// neutral placeholder summary.
func (s *Service) FetchDailyMarketSummary(ctx context.Context, force bool) (models.DailyMarketSummary, error) {
	c := call{
		feature:  FeatureSummary,
		cacheKey: "market_summary",
		route:    searchRoute(summaryTemperature),
		prompt:   summaryPrompt(),
	}
	out, err := fetch(ctx, s, force, c, func(raw any, _ *llm.Response) models.DailyMarketSummary {
		return dailySummary(raw)
	})
	if err != nil {
		s.degraded(c.feature, err)
		return models.DailyMarketSummary{
			Sentiment: Neutral,
			Summary:   summaryFailed,
			KeyPoints: []string{},
		}, nil
	}
	return out, nil
}

// FetchWatchlistQuotes returns a quote row per symbol. An empty symbol list
// makes no call. Failures yield an empty list.
func (s *Service) FetchWatchlistQuotes(ctx context.Context, symbols []string, force bool) ([]models.WatchlistItem, error) {
	symbols = store.NormalizeTickers(symbols)
	if len(symbols) == 0 {
		return []models.WatchlistItem{}, nil
	}
	c := call{
		feature:  FeatureQuotes,
		cacheKey: "quotes_" + strings.Join(symbols, "_"),
		route:    searchRoute(scanTemperature),
		prompt:   quotesPrompt(symbols),
	}
	out, err := fetch(ctx, s, force, c, func(raw any, _ *llm.Response) []models.WatchlistItem {
		return mapAll(listOf(raw, "quotes"), watchlistItem)
	})
	if err != nil {
		s.degraded(c.feature, err)
		return []models.WatchlistItem{}, nil
	}
	return out, nil
}

// degraded logs an error that the caller will not see.
func (s *Service) degraded(feature string, err error) {
	s.logger.Warn("returning fallback result", zap.String("feature", feature), zap.Error(err))
}
