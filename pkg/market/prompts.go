package market

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

const jsonOnly = "STRICT JSON OUTPUT ONLY. No markdown, no commentary."

// scannerClauses renders the momentum scanner filters. The Ross checklist
// replaces the individual flags.
func scannerClauses(f *models.ScannerFilters) string {
	if f == nil {
		return ""
	}
	if f.EnableRoss {
		return `STRICT ROSS CAMERON 5-STEP CRITERIA ACTIVE:
1. Relative Volume (RVOL) MUST be >= 5x.
2. Price MUST be between $2 and $20.
3. Float MUST be under 10 Million shares.
4. Gap Up MUST be >= 2%.
5. Projected Daily Volume > 25M.
6. Catalyst Required (News/Earnings).
7. Exclude ETFs/Warrants.
`
	}

	var b strings.Builder
	if f.ProjVolume {
		b.WriteString("- Projected EOD Volume > 25M (Extremely high relative volume today)\n")
	}
	if f.MorningActive {
		b.WriteString("- Strong activity/movement specifically in the 7am - 11am ET window (Morning Gappers)\n")
	}
	if f.Breakout {
		b.WriteString("- Price MUST be above Pre-Market Highs or Previous Day Highs (Breakout)\n")
	}
	if f.HighVolatility {
		b.WriteString("- High Intraday Volatility (Range > 5%)\n")
	}
	if f.ExcludeDerivatives {
		b.WriteString("- EXCLUDE: ETFs, SPACs, Warrants, Rights, and Buyouts. Common stock only.\n")
	}
	if f.LowFloatRetail {
		b.WriteString("- Institutional Ownership < 30% (Retail driven momentum)\n")
	}
	return b.String()
}

// earningsClauses renders the earnings scanner filters. An empty session
// means every session.
func earningsClauses(f *models.EarningsFilters) string {
	if f == nil {
		return ""
	}

	var b strings.Builder
	if f.EPSBeat {
		b.WriteString("- MUST have beaten EPS estimates (Actual > Est).\n")
	}
	if f.RevBeat {
		b.WriteString("- MUST have beaten Revenue estimates.\n")
	}
	if f.Move5Pct {
		b.WriteString("- Price change MUST be >= +5% OR <= -5%.\n")
	}
	if f.Vol5M {
		b.WriteString("- Volume MUST be > 5,000,000 shares.\n")
	}
	if f.RVol2x {
		b.WriteString("- Relative Volume (RVOL) MUST be > 2.0x.\n")
	}
	if f.PriceRange {
		b.WriteString("- Price MUST be between $2 and $100.\n")
	}
	if session := strings.ToUpper(f.Session); session != "" && session != models.SessionAll {
		fmt.Fprintf(&b, "- Show ONLY stocks moving in the %s market session.\n", session)
	}
	if f.Sector != "" && !strings.EqualFold(f.Sector, "ALL") {
		fmt.Fprintf(&b, "- Filter for stocks in the %s sector.\n", f.Sector)
	}
	return b.String()
}

// moversClauses renders the movers scanner filters.
func moversClauses(f *models.MoversFilters) string {
	if f == nil {
		return ""
	}

	var b strings.Builder
	switch strings.ToUpper(f.Mode) {
	case "GAINERS":
		b.WriteString("- SHOW ONLY TOP GAINERS (Positive % Change).\n")
	case "LOSERS":
		b.WriteString("- SHOW ONLY TOP LOSERS (Negative % Change).\n")
	}
	switch strings.ToUpper(f.Cap) {
	case "SMALL":
		b.WriteString("- Market Cap: Small Cap (< $2B).\n")
	case "MID":
		b.WriteString("- Market Cap: Mid Cap ($2B - $10B).\n")
	case "LARGE":
		b.WriteString("- Market Cap: Large Cap (> $10B).\n")
	}
	return b.String()
}

// filterKey renders filters for a cache key. Nil filters are "default".
func filterKey[T any](f *T) string {
	if f == nil {
		return "default"
	}
	b, err := json.Marshal(f)
	if err != nil {
		return "default"
	}
	return string(b)
}

func scanMarketPrompt(today string, f *models.ScannerFilters) string {
	return fmt.Sprintf(`Perform a LIVE market scan for today, %s.
Using Google Search, identify 8-10 U.S. listed stocks that are currently top gainers or showing strong momentum.

BASE CRITERIA:
1. Gap Up > 3%%
2. High Relative Volume (RVOL > 1.5)
3. Active news catalyst (Earnings, FDA, Contracts, Analyst Upgrade) if available.
4. Do NOT show data for future dates/times. Only data available right now.

ADDITIONAL FILTERS (Strictly Apply These):
%s
%s
Return a JSON object matching this structure EXACTLY:
{
  "marketSummary": "Brief overview of today's market momentum...",
  "stocks": [
    {
      "symbol": "TICKER",
      "companyName": "Company Inc",
      "price": "$12.34",
      "gapPercent": "+15.4%%",
      "volume": "5.2M",
      "relativeVolume": "3.5x",
      "float": "15M",
      "sector": "Tech/Biotech",
      "catalyst": "FDA Approval / Earnings / Contract",
      "summary": "Short explanation of the move"
    }
  ]
}`, today, scannerClauses(f), jsonOnly)
}

func scanEarningsPrompt(f *models.EarningsFilters) string {
	return fmt.Sprintf(`Find major stock movers driven by RECENT earnings reports (Last 24-48 hours).

STRICT FILTERS TO APPLY:
%s
Return the TOP 20 results matching these criteria to ensure we can select the best 15.

%s
Return:
{
  "stocks": [
    {
      "symbol": "TICKER",
      "companyName": "Name",
      "price": "$25.00",
      "gapPercent": "+12%%",
      "volume": "10M",
      "relativeVolume": "3x",
      "catalyst": "Earnings Beat: EPS $0.50 vs $0.40",
      "summary": "Revenue beat by 10%%, strong guidance."
    }
  ],
  "marketSummary": "Overview of earnings reactions..."
}`, earningsClauses(f), jsonOnly)
}

func scanMoversPrompt(today string, f *models.MoversFilters) string {
	return fmt.Sprintf(`Perform a LIVE market scan for today, %s.
Identify the hottest, most active market movers right now.

STRICT CRITERIA:
1. Price Change >= 5%% (Up or Down)
2. Current Volume > 1,000,000 shares
3. Relative Volume (RVOL) > 2.0x (Unusual Volume)
4. Exclude ETFs, Funds, and Warrants. Common Stock Only.

ADDITIONAL FILTERS:
%s
Rank by highest %% movement first.

%s
Return:
{
  "marketSummary": "Brief summary of what sectors are moving...",
  "movers": [
    {
      "ticker": "SYM",
      "companyName": "Name",
      "currentPrice": "$12.50",
      "priceMovement": "+15.2%%",
      "volumeChange": "4.5x",
      "marketSentiment": 9,
      "keyCatalyst": "News headline or reason",
      "technicalMomentum": "Bullish",
      "whyItsHot": "Breaking news + volume spike above resistance."
    }
  ]
}`, today, moversClauses(f), jsonOnly)
}

func scanOversoldPrompt(today string) string {
	return fmt.Sprintf(`Find oversold U.S. stocks with rebound potential as of %s.
Look for names well off their highs after a recent catalyst where selling looks exhausted.

%s
Return:
{
  "marketSummary": "...",
  "candidates": [
    {
      "ticker": "SYM",
      "companyName": "Name",
      "currentPrice": "$8.10",
      "dropFromHigh": "-42%%",
      "recentCatalyst": "Guidance cut",
      "marketReaction": "Capitulation volume, hammer candle",
      "reversalProbability": 7,
      "whyItMatters": "..."
    }
  ]
}`, today, jsonOnly)
}

func scanInsiderPrompt(today string) string {
	return fmt.Sprintf(`Find notable insider trading activity from recent SEC Form 4 filings as of %s.

%s
Return:
{
  "marketSummary": "...",
  "stocks": [
    {
      "ticker": "SYM",
      "companyName": "Name",
      "currentPrice": "$45.00",
      "totalBuys": 3,
      "totalSells": 1,
      "netActivity": "Net Buying",
      "dollarImbalance": "+$2.4M",
      "aiSummary": "...",
      "transactions": [
        {
          "insiderName": "Jane Doe",
          "role": "CEO",
          "transactionType": "Buy",
          "amount": "$1.2M",
          "shares": "25,000",
          "price": "$44.80",
          "date": "2024-05-01",
          "rating": "Strong",
          "interpretation": "...",
          "tags": ["Cluster Buy"]
        }
      ]
    }
  ]
}`, today, jsonOnly)
}

func scanHeatmapsPrompt(today string) string {
	return fmt.Sprintf(`Generate market heatmaps for %s: sector performance, volatility, options flow and unusual volume.

%s
Return:
{
  "marketSummary": "...",
  "sectors": [{"name": "Technology", "changePercent": "+1.2%%", "volumeStrength": "High", "sentiment": 8, "leaders": ["NVDA"], "laggards": ["INTC"]}],
  "volatility": [{"symbol": "VIX", "type": "Index", "volatilityLevel": "Elevated", "atrChange": "+12%%"}],
  "options": [{"ticker": "TSLA", "type": "Call", "direction": "Bullish", "flowStrength": "Heavy", "notes": "..."}],
  "volume": [{"ticker": "AMD", "rvol": "3.2x", "trend": "Up", "description": "..."}]
}`, today, jsonOnly)
}

func newsPrompt(today string, watchlist []string) string {
	focus := "the overall market"
	if len(watchlist) > 0 {
		focus = strings.Join(watchlist, ",")
	}
	return fmt.Sprintf(`Fetch the latest market-moving news for %s as of %s.

%s
Return:
{
  "breakingNews": [NEWS],
  "watchlistNews": [NEWS],
  "marketNews": [NEWS],
  "trendingNews": [NEWS],
  "earningsNews": [NEWS],
  "analystNews": [NEWS],
  "companyNews": [NEWS]
}
where NEWS is:
{"headline": "...", "tickers": ["SYM"], "sentimentScore": 7, "impactLevel": "High", "summary": "...", "whyItMatters": "...", "tags": ["Earnings"], "url": "https://...", "source": "Reuters"}`, focus, today, jsonOnly)
}

func indicesPrompt() string {
	return fmt.Sprintf(`Fetch current quotes for SPY, QQQ, DIA, IWM.
%s
Return an array of objects:
[{"symbol": "SPY", "name": "S&P 500 ETF", "price": "512.30", "change": "+2.10", "changePercent": "+0.41%%", "sentiment": "Bullish"}]`, jsonOnly)
}

func calendarPrompt(rng string) string {
	return fmt.Sprintf(`Fetch U.S. economic calendar events for %s.
%s
Return an array of objects:
[{"time": "08:30 AM", "event": "CPI m/m", "impact": "High", "actual": "0.3%%", "forecast": "0.2%%", "previous": "0.4%%"}]`, rng, jsonOnly)
}

func gainersLosersPrompt() string {
	return fmt.Sprintf(`Fetch today's top gainers and top losers among U.S. stocks.
%s
Return:
{"gainers": [{"symbol": "SYM", "companyName": "Name", "price": "$4.20", "gapPercent": "+35%%", "volume": "40M"}], "losers": [...]}`, jsonOnly)
}

func summaryPrompt() string {
	return fmt.Sprintf(`Fetch today's U.S. stock market summary.
%s
Return: {"sentiment": "Bullish|Bearish|Neutral|Mixed", "summary": "...", "keyPoints": ["..."]}`, jsonOnly)
}

func quotesPrompt(symbols []string) string {
	return fmt.Sprintf(`Analyze the following stock tickers: %s.
%s
For each stock, return a JSON object with:
- symbol, companyName, price, changePercent
- relativeVolume (e.g. "1.5")
- miniChart ("Uptrend", "Downtrend", "Sideways")
- insight ("Bullish", "Bearish", "Neutral")
- volatilityType ("Low", "Medium", "High")
- newsStatus ("Positive", "Negative", "Neutral")
- srStatus ("Resistance", "Support", "None")
Return a JSON array.`, strings.Join(symbols, ","), jsonOnly)
}

func screenshotPrompt() string {
	return fmt.Sprintf(`Extract every stock ticker visible in this image.
%s
Return: {"foundTickers": ["SYM"], "confidence": "High|Medium|Low", "summary": "...", "suggestions": "..."}`, jsonOnly)
}

func analysisPrompt(symbol, clock string) string {
	return fmt.Sprintf(`Analyze stock: %[1]s. Use real-time data if possible via tools.
%[2]s
CRITICAL: All timestamps (candles, news) must be in the PAST relative to now (%[3]s).
Do not generate data for future times.

REQUIRED: Return a JSON object strictly matching this structure (use numbers for prices/values):
{
  "symbol": "%[1]s",
  "companyName": "Company Name",
  "price": 125.50,
  "change": 1.25,
  "changePercent": 1.01,
  "currency": "USD",
  "candles": [
    {"time": "09:30", "open": 100, "high": 105, "low": 99, "close": 102, "volume": 1000, "rsi": 55, "macd": 0.5, "macdSignal": 0.4, "macdHist": 0.1}
  ],
  "overlays": [
    {"type": "Support", "label": "Major Support", "yValue": 98.50, "color": "#10B981", "strength": "Major", "testCount": 4, "method": "Volume Node"},
    {"type": "Resistance", "label": "Key Resistance", "yValue": 108.00, "color": "#EF4444", "strength": "Minor", "testCount": 2, "method": "Swing High"}
  ],
  "fundamentals": {"marketCap": "10.5B", "float": "50M", "peRatio": "22.5", "avgVolume": "1.2M"},
  "technicals": {"rsi": 55, "macd": "Bullish Crossover", "summary": "Strong uptrend with volume support.", "trend": "Bullish"},
  "news": [{"headline": "Earnings Beat Expectations", "source": "FinanceNews", "time": "08:30 AM", "sentiment": "Positive"}]
}
Include 30-50 one-minute candles.`, symbol, jsonOnly, clock)
}

func chatPrompt(message string, contextData any) string {
	if contextData == nil {
		contextData = map[string]any{}
	}
	ctxJSON, err := json.MarshalIndent(contextData, "", "  ")
	if err != nil {
		ctxJSON = []byte("{}")
	}
	return fmt.Sprintf(`You are a professional Wall Street Market Analyst AI.

Context Data (Current Stock/Market View):
%s

User Question: %q

Answer the user concisely and professionally using the context data provided.
If specific stock data is present, quote numbers (price, RSI, support levels).
If no context is relevant, answer based on general market knowledge.
Keep it under 3-4 sentences unless detailed analysis is asked.`, ctxJSON, message)
}
