package models

// SearchSource is a web page the model cited while answering.
type SearchSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// StockCandidate is a row produced by the gap and earnings scanners.
type StockCandidate struct {
	Symbol           string `json:"symbol"`
	CompanyName      string `json:"companyName"`
	Price            string `json:"price"`
	GapPercent       string `json:"gapPercent"`
	Volume           string `json:"volume"`
	RelativeVolume   string `json:"relativeVolume"`
	Float            string `json:"float"`
	Sector           string `json:"sector"`
	Catalyst         string `json:"catalyst"`
	Summary          string `json:"summary"`
	PreMarketPrice   string `json:"preMarketPrice,omitempty"`
	PreMarketChange  string `json:"preMarketChange,omitempty"`
	AfterHoursPrice  string `json:"afterHoursPrice,omitempty"`
	AfterHoursChange string `json:"afterHoursChange,omitempty"`
}

// ScanResult is returned by the market and earnings scanners.
type ScanResult struct {
	Stocks        []StockCandidate `json:"stocks"`
	MarketSummary string           `json:"marketSummary"`
	Sources       []SearchSource   `json:"sources"`
}

// MarketMover is a high-activity ticker.
type MarketMover struct {
	Ticker            string  `json:"ticker"`
	CompanyName       string  `json:"companyName"`
	CurrentPrice      string  `json:"currentPrice"`
	PriceMovement     string  `json:"priceMovement"`
	VolumeChange      string  `json:"volumeChange"`
	MarketSentiment   float64 `json:"marketSentiment"` // 1-10
	KeyCatalyst       string  `json:"keyCatalyst"`
	TechnicalMomentum string  `json:"technicalMomentum"`
	WhyItsHot         string  `json:"whyItsHot"`
}

// MoversResult is returned by the movers scanner.
type MoversResult struct {
	Movers        []MarketMover  `json:"movers"`
	MarketSummary string         `json:"marketSummary"`
	Sources       []SearchSource `json:"sources"`
}

// OversoldCandidate is a beaten-down ticker with rebound potential.
type OversoldCandidate struct {
	Ticker              string  `json:"ticker"`
	CompanyName         string  `json:"companyName"`
	CurrentPrice        string  `json:"currentPrice"`
	DropFromHigh        string  `json:"dropFromHigh"`
	RecentCatalyst      string  `json:"recentCatalyst"`
	MarketReaction      string  `json:"marketReaction"`
	ReversalProbability float64 `json:"reversalProbability"` // 1-10
	WhyItMatters        string  `json:"whyItMatters"`
}

// OversoldResult is returned by the oversold scanner.
type OversoldResult struct {
	Candidates    []OversoldCandidate `json:"candidates"`
	MarketSummary string              `json:"marketSummary"`
	Sources       []SearchSource      `json:"sources"`
}

// InsiderTransaction is a single filed insider trade.
type InsiderTransaction struct {
	InsiderName     string   `json:"insiderName"`
	Role            string   `json:"role"`
	TransactionType string   `json:"transactionType"`
	Amount          string   `json:"amount"`
	Shares          string   `json:"shares"`
	Price           string   `json:"price"`
	Date            string   `json:"date"`
	Rating          string   `json:"rating"`
	Interpretation  string   `json:"interpretation"`
	Tags            []string `json:"tags"`
}

// InsiderStockSummary aggregates insider activity for one ticker.
type InsiderStockSummary struct {
	Ticker          string               `json:"ticker"`
	CompanyName     string               `json:"companyName"`
	CurrentPrice    string               `json:"currentPrice"`
	TotalBuys       float64              `json:"totalBuys"`
	TotalSells      float64              `json:"totalSells"`
	NetActivity     string               `json:"netActivity"`
	DollarImbalance string               `json:"dollarImbalance"`
	AISummary       string               `json:"aiSummary"`
	Transactions    []InsiderTransaction `json:"transactions"`
}

// InsiderScanResult is returned by the insider scanner.
type InsiderScanResult struct {
	Stocks        []InsiderStockSummary `json:"stocks"`
	MarketSummary string                `json:"marketSummary"`
	Sources       []SearchSource        `json:"sources"`
}

// SectorData is one cell of the sector heatmap.
type SectorData struct {
	Name           string   `json:"name"`
	ChangePercent  string   `json:"changePercent"`
	VolumeStrength string   `json:"volumeStrength"`
	Sentiment      float64  `json:"sentiment"`
	Leaders        []string `json:"leaders"`
	Laggards       []string `json:"laggards"`
}

// VolatilityData is one cell of the volatility heatmap.
type VolatilityData struct {
	Symbol          string `json:"symbol"`
	Type            string `json:"type"`
	VolatilityLevel string `json:"volatilityLevel"`
	ATRChange       string `json:"atrChange"`
}

// OptionsFlowData is one cell of the options flow heatmap.
type OptionsFlowData struct {
	Ticker       string `json:"ticker"`
	Type         string `json:"type"`
	Direction    string `json:"direction"`
	FlowStrength string `json:"flowStrength"`
	Notes        string `json:"notes"`
}

// VolumeHeatmapData is one cell of the volume heatmap.
type VolumeHeatmapData struct {
	Ticker      string `json:"ticker"`
	RVol        string `json:"rvol"`
	Trend       string `json:"trend"`
	Description string `json:"description"`
}

// HeatmapResult bundles the four heatmaps.
type HeatmapResult struct {
	Sectors       []SectorData        `json:"sectors"`
	Volatility    []VolatilityData    `json:"volatility"`
	Options       []OptionsFlowData   `json:"options"`
	Volume        []VolumeHeatmapData `json:"volume"`
	MarketSummary string              `json:"marketSummary"`
	Sources       []SearchSource      `json:"sources"`
}

// NewsItem is a single headline with its assessment.
type NewsItem struct {
	Headline          string   `json:"headline"`
	Tickers           []string `json:"tickers,omitempty"`
	SentimentScore    float64  `json:"sentimentScore"`
	ImpactLevel       string   `json:"impactLevel"`
	Summary           string   `json:"summary"`
	WhyItMatters      string   `json:"whyItMatters"`
	Tags              []string `json:"tags"`
	URL               string   `json:"url,omitempty"`
	Source            string   `json:"source,omitempty"`
	EPSResult         string   `json:"epsResult,omitempty"`
	RevenueResult     string   `json:"revenueResult,omitempty"`
	PriceTargetChange string   `json:"priceTargetChange,omitempty"`
	AnalystAction     string   `json:"analystAction,omitempty"`
	RiskLevel         string   `json:"riskLevel,omitempty"`
}

// NewsFeedResult groups headlines by category.
type NewsFeedResult struct {
	BreakingNews  []NewsItem     `json:"breakingNews"`
	WatchlistNews []NewsItem     `json:"watchlistNews"`
	MarketNews    []NewsItem     `json:"marketNews"`
	TrendingNews  []NewsItem     `json:"trendingNews"`
	EarningsNews  []NewsItem     `json:"earningsNews"`
	AnalystNews   []NewsItem     `json:"analystNews"`
	CompanyNews   []NewsItem     `json:"companyNews"`
	Sources       []SearchSource `json:"sources"`
}

// MarketIndex is a headline index quote.
type MarketIndex struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"changePercent"`
	Sentiment     string `json:"sentiment"`
}

// EconomicEvent is a scheduled macro release.
type EconomicEvent struct {
	Time     string `json:"time"`
	Event    string `json:"event"`
	Impact   string `json:"impact"`
	Actual   string `json:"actual,omitempty"`
	Forecast string `json:"forecast,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// DailyMarketSummary is the one-paragraph market wrap.
type DailyMarketSummary struct {
	Sentiment string   `json:"sentiment"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
}

// GainersLosersResult lists the session's biggest moves both ways.
type GainersLosersResult struct {
	Gainers []StockCandidate `json:"gainers"`
	Losers  []StockCandidate `json:"losers"`
}

// WatchlistItem is a quote row for a watched ticker.
type WatchlistItem struct {
	Symbol         string `json:"symbol"`
	CompanyName    string `json:"companyName,omitempty"`
	Price          string `json:"price"`
	ChangePercent  string `json:"changePercent"`
	TrendLabel     string `json:"trendLabel,omitempty"`
	RelativeVolume string `json:"relativeVolume"`
	MiniChart      string `json:"miniChart"`
	Insight        string `json:"insight"`
	VolatilityType string `json:"volatilityType"`
	NewsStatus     string `json:"newsStatus"`
	SRStatus       string `json:"srStatus"`
}

// ScreenshotAnalysisResult lists tickers read from an uploaded image.
type ScreenshotAnalysisResult struct {
	FoundTickers []string `json:"foundTickers"`
	Confidence   string   `json:"confidence"`
	Summary      string   `json:"summary"`
	Suggestions  string   `json:"suggestions,omitempty"`
}

// Candle is one intraday bar with its indicator readings.
type Candle struct {
	Time       string  `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macdSignal"`
	MACDHist   float64 `json:"macdHist"`
}

// ChartOverlay is a support or resistance line drawn on the chart.
type ChartOverlay struct {
	Type      string  `json:"type"`
	Label     string  `json:"label"`
	YValue    float64 `json:"yValue"`
	Color     string  `json:"color"`
	Strength  string  `json:"strength"`
	TestCount float64 `json:"testCount"`
	Method    string  `json:"method"`
}

// Fundamentals are the headline valuation numbers of a stock.
type Fundamentals struct {
	MarketCap string `json:"marketCap"`
	Float     string `json:"float"`
	PERatio   string `json:"peRatio"`
	AvgVolume string `json:"avgVolume"`
}

// Technicals summarize indicator state.
type Technicals struct {
	RSI     float64 `json:"rsi"`
	MACD    string  `json:"macd"`
	Summary string  `json:"summary"`
	Trend   string  `json:"trend"`
}

// AnalysisNews is a headline attached to a single-stock analysis.
type AnalysisNews struct {
	Headline  string `json:"headline"`
	Source    string `json:"source"`
	Time      string `json:"time"`
	Sentiment string `json:"sentiment"`
}

// StockAnalysis is the full single-ticker view.
type StockAnalysis struct {
	Symbol        string         `json:"symbol"`
	CompanyName   string         `json:"companyName"`
	Price         float64        `json:"price"`
	Change        float64        `json:"change"`
	ChangePercent float64        `json:"changePercent"`
	Currency      string         `json:"currency,omitempty"`
	Candles       []Candle       `json:"candles"`
	Overlays      []ChartOverlay `json:"overlays"`
	Fundamentals  Fundamentals   `json:"fundamentals"`
	Technicals    Technicals     `json:"technicals"`
	News          []AnalysisNews `json:"news"`
}

// Watchlist is a named, ordered list of tickers.
type Watchlist struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Tickers []string `json:"tickers"`
}
