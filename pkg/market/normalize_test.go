package market

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/stockbuzz/stockbuzz/pkg/extract"
	"github.com/stockbuzz/stockbuzz/pkg/models"
)

func TestIndicesSanitizer(t *testing.T) {
	raw := extract.JSON(`{"indices": [
		{"symbol": "SPY", "name": "S&P 500", "price": 512.3, "change": "+2.1", "changePercent": "+0.41%", "sentiment": "Bullish"},
		{"symbol": {"ticker": "QQQ"}, "name": {"x": 1}, "price": {"last": 1}, "change": [], "changePercent": {}},
		{"overallTrend": "up", "symbol": "SUMMARY"},
		{"date": "2025-03-17"},
		"DIA",
		{}
	]}`)

	got := indices(raw)
	want := []models.MarketIndex{
		{Symbol: "SPY", Name: "S&P 500", Price: "512.3", Change: "+2.1", ChangePercent: "+0.41%", Sentiment: "Bullish"},
		{Symbol: "UNK", Name: "", Price: "-", Change: "0.00", ChangePercent: "0.00%", Sentiment: "Neutral"},
		{Symbol: "UNK", Name: "", Price: "-", Change: "0.00", ChangePercent: "0.00%", Sentiment: "Neutral"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("indices mismatch (-want +got):\n%s", diff)
	}
}

func TestIndicesAcceptedShapes(t *testing.T) {
	bare := extract.JSON(`[{"symbol": "SPY"}]`)
	alt := extract.JSON(`{"marketIndices": [{"symbol": "IWM"}]}`)

	assert.Equal(t, "SPY", indices(bare)[0].Symbol)
	assert.Equal(t, "IWM", indices(alt)[0].Symbol)
	assert.Empty(t, indices(extract.JSON(`{"other": []}`)))
}

func TestGainersLosersSanitizer(t *testing.T) {
	m := map[string]any{
		"symbol":      map[string]any{"a": 1},
		"price":       []any{1.0},
		"gapPercent":  nil,
		"companyName": "Widgets",
	}
	got := gainerLoser(m)
	assert.Equal(t, "UNK", got.Symbol)
	assert.Equal(t, "0", got.Price)
	assert.Equal(t, "0%", got.GapPercent)
	assert.Equal(t, "Widgets", got.CompanyName)

	missing := gainerLoser(map[string]any{})
	assert.Equal(t, "", missing.Symbol)
	assert.Equal(t, "0", missing.Price)

	numeric := gainerLoser(map[string]any{"symbol": "XYZ", "price": 3.5, "gapPercent": "+40%"})
	assert.Equal(t, "3.5", numeric.Price)
	assert.Equal(t, "+40%", numeric.GapPercent)
}

func TestDailySummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want models.DailyMarketSummary
	}{
		{
			name: "plain",
			in:   `{"sentiment": "bullish", "summary": "Stocks rallied.", "keyPoints": ["Tech led"]}`,
			want: models.DailyMarketSummary{Sentiment: Bullish, Summary: "Stocks rallied.", KeyPoints: []string{"Tech led"}},
		},
		{
			name: "trend and outlook",
			in:   `{"overallTrend": "Bearish close after CPI", "outlook": "Volatile week ahead", "keyDrivers": [{"driver": "CPI"}, {"title": "Fed"}, {"impact": "high"}, 3]}`,
			want: models.DailyMarketSummary{
				Sentiment: Bearish,
				Summary:   "Bearish close after CPI Volatile week ahead",
				KeyPoints: []string{"CPI", "Fed", `{"impact":"high"}`, "3"},
			},
		},
		{
			name: "mixed trend",
			in:   `{"overallTrend": "Mixed session"}`,
			want: models.DailyMarketSummary{Sentiment: Mixed, Summary: "Mixed session", KeyPoints: []string{}},
		},
		{
			name: "object summary overview",
			in:   `{"summary": {"overview": "Quiet day", "detail": 1}, "highlights": ["Low volume"]}`,
			want: models.DailyMarketSummary{Sentiment: Neutral, Summary: "Quiet day", KeyPoints: []string{"Low volume"}},
		},
		{
			name: "object summary without text",
			in:   `{"summary": {"a": 1}}`,
			want: models.DailyMarketSummary{Sentiment: Neutral, Summary: `{"a":1}`, KeyPoints: []string{}},
		},
		{
			name: "market overview",
			in:   `{"marketOverview": "Flat", "sentiment": "Cautious"}`,
			want: models.DailyMarketSummary{Sentiment: "Cautious", Summary: "Flat", KeyPoints: []string{}},
		},
		{
			name: "non-string trend",
			in:   `{"overallTrend": {"direction": "up"}}`,
			want: models.DailyMarketSummary{Sentiment: Neutral, Summary: "Market summary unavailable.", KeyPoints: []string{}},
		},
		{
			name: "key points not a list",
			in:   `{"summary": "x", "keyPoints": "one"}`,
			want: models.DailyMarketSummary{Sentiment: Neutral, Summary: "x", KeyPoints: []string{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dailySummary(extract.JSON(tt.in))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("dailySummary mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStockAnalysisCoercion(t *testing.T) {
	raw := extract.JSON(`{
		"companyName": "Apple Inc",
		"price": "$190.50",
		"change": "abc",
		"changePercent": 1.2,
		"candles": [{"time": "09:30", "open": "100", "close": 101}, "bad"],
		"fundamentals": {"marketCap": "3T", "peRatio": 31.2},
		"technicals": "strong",
		"news": {"headline": "not a list"}
	}`)

	got := stockAnalysis(raw, "AAPL")
	want := models.StockAnalysis{
		Symbol:        "AAPL",
		CompanyName:   "Apple Inc",
		Price:         190.5,
		Change:        0,
		ChangePercent: 1.2,
		Candles:       []models.Candle{{Time: "09:30", Open: 100, Close: 101}},
		Overlays:      []models.ChartOverlay{},
		Fundamentals:  models.Fundamentals{MarketCap: "3T", PERatio: "31.2"},
		News:          []models.AnalysisNews{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stockAnalysis mismatch (-want +got):\n%s", diff)
	}
}

func TestScreenshotNormalization(t *testing.T) {
	got := screenshot(extract.JSON(`{"foundTickers": ["$aapl", "TSLA", "aapl", 5], "confidence": "high", "suggestions": "Add to Tech list"}`))
	want := models.ScreenshotAnalysisResult{
		FoundTickers: []string{"AAPL", "TSLA", "5"},
		Confidence:   "High",
		Summary:      "Analysis complete.",
		Suggestions:  "Add to Tech list",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("screenshot mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreAcceptsWords(t *testing.T) {
	assert.Equal(t, 9.0, score(map[string]any{"s": 9.0}, "s"))
	assert.Equal(t, 7.5, score(map[string]any{"s": "7.5"}, "s"))
	assert.Equal(t, 8.0, score(map[string]any{"s": "Bullish"}, "s"))
	assert.Equal(t, 0.0, score(map[string]any{}, "s"))
}

func TestMoverAndNewsDecoding(t *testing.T) {
	m := marketMover(map[string]any{"ticker": "ABC", "marketSentiment": "Very Bullish", "volumeChange": 4.5})
	assert.Equal(t, 10.0, m.MarketSentiment)
	assert.Equal(t, "4.5", m.VolumeChange)

	n := newsItem(map[string]any{"headline": "Fed holds", "tags": "Macro", "tickers": []any{"SPY", map[string]any{}}})
	assert.Equal(t, []string{"Macro"}, n.Tags)
	assert.Equal(t, []string{"SPY"}, n.Tickers)
}
