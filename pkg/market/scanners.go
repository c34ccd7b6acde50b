package market

import (
	"context"

	"github.com/stockbuzz/stockbuzz/pkg/decode"
	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// ScanMarket finds momentum gappers. Nil filters apply only the base
// criteria.
func (s *Service) ScanMarket(ctx context.Context, force bool, f *models.ScannerFilters) (models.ScanResult, error) {
	c := call{
		feature:  FeatureScanMarket,
		cacheKey: "scan_market_" + filterKey(f),
		route:    searchRoute(scanTemperature),
		prompt:   scanMarketPrompt(s.today(), f),
	}
	return fetch(ctx, s, force, c, func(raw any, resp *llm.Response) models.ScanResult {
		m := root(raw)
		return models.ScanResult{
			Stocks:        decode.Slice(m, "stocks", stockCandidate),
			MarketSummary: decode.String(m, "marketSummary", scanSummaryFallback),
			Sources:       sources(resp),
		}
	})
}

// ScanEarningsGappers finds stocks moving on recent earnings reports.
func (s *Service) ScanEarningsGappers(ctx context.Context, force bool, f *models.EarningsFilters) (models.ScanResult, error) {
	c := call{
		feature:  FeatureScanEarnings,
		cacheKey: "scan_earnings_" + filterKey(f),
		route:    searchRoute(scanTemperature),
		prompt:   scanEarningsPrompt(f),
	}
	return fetch(ctx, s, force, c, func(raw any, resp *llm.Response) models.ScanResult {
		m := root(raw)
		return models.ScanResult{
			Stocks:        decode.Slice(m, "stocks", stockCandidate),
			MarketSummary: decode.OptString(m, "marketSummary"),
			Sources:       sources(resp),
		}
	})
}

// ScanMarketMovers finds the most active movers of the session.
func (s *Service) ScanMarketMovers(ctx context.Context, force bool, f *models.MoversFilters) (models.MoversResult, error) {
	c := call{
		feature:  FeatureScanMovers,
		cacheKey: "scan_movers_" + filterKey(f),
		route:    searchRoute(scanTemperature),
		prompt:   scanMoversPrompt(s.today(), f),
	}
	return fetch(ctx, s, force, c, func(raw any, resp *llm.Response) models.MoversResult {
		m := root(raw)
		return models.MoversResult{
			Movers:        decode.Slice(m, "movers", marketMover),
			MarketSummary: decode.OptString(m, "marketSummary"),
			Sources:       sources(resp),
		}
	})
}

// ScanOversoldRebounds finds beaten-down names with reversal potential.
func (s *Service) ScanOversoldRebounds(ctx context.Context, force bool) (models.OversoldResult, error) {
	c := call{
		feature:  FeatureScanOversold,
		cacheKey: "scan_oversold",
		route:    searchRoute(scanTemperature),
		prompt:   scanOversoldPrompt(s.today()),
	}
	return fetch(ctx, s, force, c, func(raw any, resp *llm.Response) models.OversoldResult {
		m := root(raw)
		return models.OversoldResult{
			Candidates:    decode.Slice(m, "candidates", oversoldCandidate),
			MarketSummary: decode.OptString(m, "marketSummary"),
			Sources:       sources(resp),
		}
	})
}

// ScanInsiderTrading summarizes recent insider filings per ticker.
func (s *Service) ScanInsiderTrading(ctx context.Context, force bool) (models.InsiderScanResult, error) {
	c := call{
		feature:  FeatureScanInsider,
		cacheKey: "scan_insider",
		route:    searchRoute(scanTemperature),
		prompt:   scanInsiderPrompt(s.today()),
	}
	return fetch(ctx, s, force, c, func(raw any, resp *llm.Response) models.InsiderScanResult {
		m := root(raw)
		return models.InsiderScanResult{
			Stocks:        decode.Slice(m, "stocks", insiderStock),
			MarketSummary: decode.OptString(m, "marketSummary"),
			Sources:       sources(resp),
		}
	})
}

// ScanMarketHeatmaps builds the sector, volatility, options and volume
// heatmaps.
func (s *Service) ScanMarketHeatmaps(ctx context.Context, force bool) (models.HeatmapResult, error) {
	c := call{
		feature:  FeatureScanHeatmaps,
		cacheKey: "scan_heatmaps",
		route:    searchRoute(scanTemperature),
		prompt:   scanHeatmapsPrompt(s.today()),
	}
	return fetch(ctx, s, force, c, func(raw any, resp *llm.Response) models.HeatmapResult {
		m := root(raw)
		return models.HeatmapResult{
			Sectors:       decode.Slice(m, "sectors", sectorData),
			Volatility:    decode.Slice(m, "volatility", volatilityData),
			Options:       decode.Slice(m, "options", optionsFlow),
			Volume:        decode.Slice(m, "volume", volumeHeatmap),
			MarketSummary: decode.OptString(m, "marketSummary"),
			Sources:       sources(resp),
		}
	})
}
