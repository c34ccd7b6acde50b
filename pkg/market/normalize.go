package market

import (
	"strings"

	"github.com/stockbuzz/stockbuzz/pkg/decode"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

// Sentiment labels.
const (
	Bullish = "Bullish"
	Bearish = "Bearish"
	Neutral = "Neutral"
	Mixed   = "Mixed"
)

// Fallback texts.
const (
	scanSummaryFallback = "Market data available."
	summaryUnavailable  = "Market summary unavailable."
	summaryFailed       = "Failed to fetch summary"
	screenshotSummary   = "Analysis complete."
	chatEmpty           = "I couldn't generate a response."
	chatUnavailable     = "Service unavailable."
)

// root returns raw as an object, or an empty one.
func root(raw any) map[string]any {
	if m, ok := decode.Object(raw); ok {
		return m
	}
	return map[string]any{}
}

// listOf returns the object elements of raw when it is an array, otherwise
// those of the first key of raw that holds an array.
func listOf(raw any, keys ...string) []map[string]any {
	if _, ok := decode.Array(raw); ok {
		return decode.ObjectsOf(raw)
	}
	m := root(raw)
	for _, k := range keys {
		if _, ok := decode.Array(m[k]); ok {
			return decode.Objects(m, k)
		}
	}
	return []map[string]any{}
}

func mapAll[T any](objs []map[string]any, fn func(map[string]any) T) []T {
	out := make([]T, 0, len(objs))
	for _, o := range objs {
		out = append(out, fn(o))
	}
	return out
}

// sanitized is String, except that an object or array value yields objDef.
func sanitized(m map[string]any, key, objDef, def string) string {
	switch m[key].(type) {
	case map[string]any, []any:
		return objDef
	}
	return decode.String(m, key, def)
}

// truthy mirrors how loosely typed model output is usually tested for
// presence: missing, null, empty strings, zero and false are absent.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	default:
		return true
	}
}

// score reads a 0-10 score. Numbers and numeric strings are used as is;
// words such as "Bullish" are mapped with ParseSentiment.
func score(m map[string]any, key string) float64 {
	v := m[key]
	if s, ok := v.(string); ok {
		if n := decode.NumberOf(s, -1); n >= 0 {
			return n
		}
		return ParseSentiment(s)
	}
	return decode.NumberOf(v, 0)
}

func stockCandidate(m map[string]any) models.StockCandidate {
	return models.StockCandidate{
		Symbol:           decode.OptString(m, "symbol"),
		CompanyName:      decode.OptString(m, "companyName"),
		Price:            decode.OptString(m, "price"),
		GapPercent:       decode.OptString(m, "gapPercent"),
		Volume:           decode.OptString(m, "volume"),
		RelativeVolume:   decode.OptString(m, "relativeVolume"),
		Float:            decode.OptString(m, "float"),
		Sector:           decode.OptString(m, "sector"),
		Catalyst:         decode.OptString(m, "catalyst"),
		Summary:          decode.OptString(m, "summary"),
		PreMarketPrice:   decode.OptString(m, "preMarketPrice"),
		PreMarketChange:  decode.OptString(m, "preMarketChange"),
		AfterHoursPrice:  decode.OptString(m, "afterHoursPrice"),
		AfterHoursChange: decode.OptString(m, "afterHoursChange"),
	}
}

// gainerLoser is stockCandidate with the list sanitizer applied to the
// fields the gainers table sorts on.
func gainerLoser(m map[string]any) models.StockCandidate {
	c := stockCandidate(m)
	c.Symbol = sanitized(m, "symbol", "UNK", "")
	c.Price = sanitized(m, "price", "0", "0")
	c.GapPercent = sanitized(m, "gapPercent", "0%", "0%")
	return c
}

func marketMover(m map[string]any) models.MarketMover {
	return models.MarketMover{
		Ticker:            decode.OptString(m, "ticker"),
		CompanyName:       decode.OptString(m, "companyName"),
		CurrentPrice:      decode.OptString(m, "currentPrice"),
		PriceMovement:     decode.OptString(m, "priceMovement"),
		VolumeChange:      decode.OptString(m, "volumeChange"),
		MarketSentiment:   score(m, "marketSentiment"),
		KeyCatalyst:       decode.OptString(m, "keyCatalyst"),
		TechnicalMomentum: decode.OptString(m, "technicalMomentum"),
		WhyItsHot:         decode.OptString(m, "whyItsHot"),
	}
}

func oversoldCandidate(m map[string]any) models.OversoldCandidate {
	return models.OversoldCandidate{
		Ticker:              decode.OptString(m, "ticker"),
		CompanyName:         decode.OptString(m, "companyName"),
		CurrentPrice:        decode.OptString(m, "currentPrice"),
		DropFromHigh:        decode.OptString(m, "dropFromHigh"),
		RecentCatalyst:      decode.OptString(m, "recentCatalyst"),
		MarketReaction:      decode.OptString(m, "marketReaction"),
		ReversalProbability: score(m, "reversalProbability"),
		WhyItMatters:        decode.OptString(m, "whyItMatters"),
	}
}

func insiderTransaction(m map[string]any) models.InsiderTransaction {
	return models.InsiderTransaction{
		InsiderName:     decode.OptString(m, "insiderName"),
		Role:            decode.OptString(m, "role"),
		TransactionType: decode.OptString(m, "transactionType"),
		Amount:          decode.OptString(m, "amount"),
		Shares:          decode.OptString(m, "shares"),
		Price:           decode.OptString(m, "price"),
		Date:            decode.OptString(m, "date"),
		Rating:          decode.OptString(m, "rating"),
		Interpretation:  decode.OptString(m, "interpretation"),
		Tags:            decode.Strings(m, "tags"),
	}
}

func insiderStock(m map[string]any) models.InsiderStockSummary {
	return models.InsiderStockSummary{
		Ticker:          decode.OptString(m, "ticker"),
		CompanyName:     decode.OptString(m, "companyName"),
		CurrentPrice:    decode.OptString(m, "currentPrice"),
		TotalBuys:       decode.Number(m, "totalBuys", 0),
		TotalSells:      decode.Number(m, "totalSells", 0),
		NetActivity:     decode.OptString(m, "netActivity"),
		DollarImbalance: decode.OptString(m, "dollarImbalance"),
		AISummary:       decode.OptString(m, "aiSummary"),
		Transactions:    decode.Slice(m, "transactions", insiderTransaction),
	}
}

func sectorData(m map[string]any) models.SectorData {
	return models.SectorData{
		Name:           decode.OptString(m, "name"),
		ChangePercent:  decode.OptString(m, "changePercent"),
		VolumeStrength: decode.OptString(m, "volumeStrength"),
		Sentiment:      score(m, "sentiment"),
		Leaders:        decode.Strings(m, "leaders"),
		Laggards:       decode.Strings(m, "laggards"),
	}
}

func volatilityData(m map[string]any) models.VolatilityData {
	return models.VolatilityData{
		Symbol:          decode.OptString(m, "symbol"),
		Type:            decode.OptString(m, "type"),
		VolatilityLevel: decode.OptString(m, "volatilityLevel"),
		ATRChange:       decode.OptString(m, "atrChange"),
	}
}

func optionsFlow(m map[string]any) models.OptionsFlowData {
	return models.OptionsFlowData{
		Ticker:       decode.OptString(m, "ticker"),
		Type:         decode.OptString(m, "type"),
		Direction:    decode.OptString(m, "direction"),
		FlowStrength: decode.OptString(m, "flowStrength"),
		Notes:        decode.OptString(m, "notes"),
	}
}

func volumeHeatmap(m map[string]any) models.VolumeHeatmapData {
	return models.VolumeHeatmapData{
		Ticker:      decode.OptString(m, "ticker"),
		RVol:        decode.OptString(m, "rvol"),
		Trend:       decode.OptString(m, "trend"),
		Description: decode.OptString(m, "description"),
	}
}

func newsItem(m map[string]any) models.NewsItem {
	return models.NewsItem{
		Headline:          decode.OptString(m, "headline"),
		Tickers:           decode.Strings(m, "tickers"),
		SentimentScore:    score(m, "sentimentScore"),
		ImpactLevel:       decode.OptString(m, "impactLevel"),
		Summary:           decode.OptString(m, "summary"),
		WhyItMatters:      decode.OptString(m, "whyItMatters"),
		Tags:              decode.Strings(m, "tags"),
		URL:               decode.OptString(m, "url"),
		Source:            decode.OptString(m, "source"),
		EPSResult:         decode.OptString(m, "epsResult"),
		RevenueResult:     decode.OptString(m, "revenueResult"),
		PriceTargetChange: decode.OptString(m, "priceTargetChange"),
		AnalystAction:     decode.OptString(m, "analystAction"),
		RiskLevel:         decode.OptString(m, "riskLevel"),
	}
}

// indices keeps only quote-shaped entries. Summary objects the model
// sometimes mixes into the list carry overallTrend or date and are dropped.
func indices(raw any) []models.MarketIndex {
	items := listOf(raw, "indices", "marketIndices")
	out := make([]models.MarketIndex, 0, len(items))
	for _, m := range items {
		if decode.Has(m, "overallTrend") || decode.Has(m, "date") {
			continue
		}
		sentiment := Neutral
		if s, ok := m["sentiment"].(string); ok && s != "" {
			sentiment = s
		}
		out = append(out, models.MarketIndex{
			Symbol:        sanitized(m, "symbol", "UNK", "UNK"),
			Name:          sanitized(m, "name", "", ""),
			Price:         sanitized(m, "price", "-", "-"),
			Change:        sanitized(m, "change", "0.00", "0.00"),
			ChangePercent: sanitized(m, "changePercent", "0.00%", "0.00%"),
			Sentiment:     sentiment,
		})
	}
	return out
}

func economicEvent(m map[string]any) models.EconomicEvent {
	return models.EconomicEvent{
		Time:     decode.OptString(m, "time"),
		Event:    decode.OptString(m, "event"),
		Impact:   decode.OptString(m, "impact"),
		Actual:   decode.OptString(m, "actual"),
		Forecast: decode.OptString(m, "forecast"),
		Previous: decode.OptString(m, "previous"),
	}
}

func watchlistItem(m map[string]any) models.WatchlistItem {
	return models.WatchlistItem{
		Symbol:         decode.OptString(m, "symbol"),
		CompanyName:    decode.OptString(m, "companyName"),
		Price:          decode.OptString(m, "price"),
		ChangePercent:  decode.OptString(m, "changePercent"),
		TrendLabel:     decode.OptString(m, "trendLabel"),
		RelativeVolume: decode.OptString(m, "relativeVolume"),
		MiniChart:      decode.OptString(m, "miniChart"),
		Insight:        decode.OptString(m, "insight"),
		VolatilityType: decode.OptString(m, "volatilityType"),
		NewsStatus:     decode.OptString(m, "newsStatus"),
		SRStatus:       decode.OptString(m, "srStatus"),
	}
}

// dailySummary flattens the many shapes the model uses for the market wrap
// into plain text.
func dailySummary(raw any) models.DailyMarketSummary {
	m := root(raw)

	var text string
	switch {
	case truthy(m["overallTrend"]) || truthy(m["outlook"]):
		var parts []string
		for _, k := range []string{"overallTrend", "outlook"} {
			if s, ok := m[k].(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
		text = strings.Join(parts, " ")
	case isString(m["summary"]):
		text = m["summary"].(string)
	case isObject(m["summary"]):
		obj := m["summary"].(map[string]any)
		switch {
		case truthy(obj["overview"]):
			text = decode.StringOf(obj["overview"], decode.Compact(obj["overview"]))
		case truthy(obj["text"]):
			text = decode.StringOf(obj["text"], decode.Compact(obj["text"]))
		default:
			text = decode.Compact(obj)
		}
	case isString(m["marketOverview"]):
		text = m["marketOverview"].(string)
	}
	if text == "" {
		text = summaryUnavailable
	}

	var rawPoints any
	for _, k := range []string{"keyPoints", "highlights", "keyDrivers"} {
		if truthy(m[k]) {
			rawPoints = m[k]
			break
		}
	}
	points := []string{}
	if arr, ok := decode.Array(rawPoints); ok {
		for _, p := range arr {
			points = append(points, keyPoint(p))
		}
	}

	sentiment := Neutral
	if s, ok := m["sentiment"].(string); ok {
		sentiment = canonicalSentiment(s)
	} else if trend, ok := m["overallTrend"].(string); ok {
		t := strings.ToLower(trend)
		switch {
		case strings.Contains(t, "bullish"):
			sentiment = Bullish
		case strings.Contains(t, "bearish"):
			sentiment = Bearish
		case strings.Contains(t, "mixed"):
			sentiment = Mixed
		}
	}

	return models.DailyMarketSummary{Sentiment: sentiment, Summary: text, KeyPoints: points}
}

func keyPoint(p any) string {
	if s, ok := p.(string); ok {
		return s
	}
	if obj, ok := decode.Object(p); ok {
		for _, k := range []string{"title", "text", "driver"} {
			if s := decode.OptString(obj, k); s != "" {
				return s
			}
		}
	}
	return decode.Compact(p)
}

// canonicalSentiment fixes the case of known labels and keeps anything else.
func canonicalSentiment(s string) string {
	for _, label := range []string{Bullish, Bearish, Neutral, Mixed} {
		if strings.EqualFold(strings.TrimSpace(s), label) {
			return label
		}
	}
	return s
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isObject(v any) bool {
	_, ok := decode.Object(v)
	return ok
}

func screenshot(raw any) models.ScreenshotAnalysisResult {
	m := root(raw)
	return models.ScreenshotAnalysisResult{
		FoundTickers: store.NormalizeTickers(decode.Strings(m, "foundTickers")),
		Confidence:   decode.OneOf(m, "confidence", "Low", "High", "Medium", "Low"),
		Summary:      decode.String(m, "summary", screenshotSummary),
		Suggestions:  decode.OptString(m, "suggestions"),
	}
}

func candle(m map[string]any) models.Candle {
	return models.Candle{
		Time:       decode.OptString(m, "time"),
		Open:       decode.Number(m, "open", 0),
		High:       decode.Number(m, "high", 0),
		Low:        decode.Number(m, "low", 0),
		Close:      decode.Number(m, "close", 0),
		Volume:     decode.Number(m, "volume", 0),
		RSI:        decode.Number(m, "rsi", 0),
		MACD:       decode.Number(m, "macd", 0),
		MACDSignal: decode.Number(m, "macdSignal", 0),
		MACDHist:   decode.Number(m, "macdHist", 0),
	}
}

func overlay(m map[string]any) models.ChartOverlay {
	return models.ChartOverlay{
		Type:      decode.OptString(m, "type"),
		Label:     decode.OptString(m, "label"),
		YValue:    decode.Number(m, "yValue", 0),
		Color:     decode.OptString(m, "color"),
		Strength:  decode.OptString(m, "strength"),
		TestCount: decode.Number(m, "testCount", 0),
		Method:    decode.OptString(m, "method"),
	}
}

func analysisNews(m map[string]any) models.AnalysisNews {
	return models.AnalysisNews{
		Headline:  decode.OptString(m, "headline"),
		Source:    decode.OptString(m, "source"),
		Time:      decode.OptString(m, "time"),
		Sentiment: decode.OptString(m, "sentiment"),
	}
}

func stockAnalysis(raw any, symbol string) models.StockAnalysis {
	m := root(raw)
	f := decode.Field(m, "fundamentals")
	t := decode.Field(m, "technicals")

	return models.StockAnalysis{
		Symbol:        decode.String(m, "symbol", symbol),
		CompanyName:   decode.String(m, "companyName", symbol),
		Price:         decode.Number(m, "price", 0),
		Change:        decode.Number(m, "change", 0),
		ChangePercent: decode.Number(m, "changePercent", 0),
		Currency:      decode.OptString(m, "currency"),
		Candles:       decode.Slice(m, "candles", candle),
		Overlays:      decode.Slice(m, "overlays", overlay),
		Fundamentals: models.Fundamentals{
			MarketCap: decode.OptString(f, "marketCap"),
			Float:     decode.OptString(f, "float"),
			PERatio:   decode.OptString(f, "peRatio"),
			AvgVolume: decode.OptString(f, "avgVolume"),
		},
		Technicals: models.Technicals{
			RSI:     decode.Number(t, "rsi", 0),
			MACD:    decode.OptString(t, "macd"),
			Summary: decode.OptString(t, "summary"),
			Trend:   decode.OptString(t, "trend"),
		},
		News: decode.Slice(m, "news", analysisNews),
	}
}
