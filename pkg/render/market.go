package render

import (
	"fmt"
	"strings"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// Scan prints a stock scanner result.
func (p *Printer) Scan(title string, res models.ScanResult) {
	p.Heading(title)
	p.Text(res.MarketSummary)
	rows := make([][]string, 0, len(res.Stocks))
	for _, s := range res.Stocks {
		rows = append(rows, []string{
			s.Symbol, orDash(s.Price), p.Change(s.GapPercent), orDash(s.Volume),
			orDash(s.RelativeVolume), orDash(s.Float), orDash(s.Sector), Truncate(s.Catalyst, 48),
		})
	}
	p.Table([]string{"SYMBOL", "PRICE", "GAP", "VOLUME", "RVOL", "FLOAT", "SECTOR", "CATALYST"}, rows, "No stocks matched.")
	p.Sources(res.Sources)
}

// Movers prints a market movers result.
func (p *Printer) Movers(res models.MoversResult) {
	p.Heading("Market Movers")
	p.Text(res.MarketSummary)
	rows := make([][]string, 0, len(res.Movers))
	for _, m := range res.Movers {
		rows = append(rows, []string{
			m.Ticker, orDash(m.CurrentPrice), p.Change(m.PriceMovement), orDash(m.VolumeChange),
			p.Score(m.MarketSentiment), orDash(m.TechnicalMomentum), Truncate(m.WhyItsHot, 48),
		})
	}
	p.Table([]string{"TICKER", "PRICE", "MOVE", "VOLUME", "SENTIMENT", "MOMENTUM", "WHY"}, rows, "No movers found.")
	p.Sources(res.Sources)
}

// Oversold prints oversold rebound candidates.
func (p *Printer) Oversold(res models.OversoldResult) {
	p.Heading("Oversold Rebounds")
	p.Text(res.MarketSummary)
	rows := make([][]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		rows = append(rows, []string{
			c.Ticker, orDash(c.CurrentPrice), p.Change(c.DropFromHigh),
			p.Score(c.ReversalProbability), Truncate(c.RecentCatalyst, 40), Truncate(c.WhyItMatters, 40),
		})
	}
	p.Table([]string{"TICKER", "PRICE", "FROM HIGH", "REVERSAL", "CATALYST", "WHY"}, rows, "No candidates found.")
	p.Sources(res.Sources)
}

// Insider prints insider activity per stock.
func (p *Printer) Insider(res models.InsiderScanResult) {
	p.Heading("Insider Trading")
	p.Text(res.MarketSummary)
	rows := make([][]string, 0, len(res.Stocks))
	for _, s := range res.Stocks {
		rows = append(rows, []string{
			s.Ticker, orDash(s.CurrentPrice), fmt.Sprintf("%g", s.TotalBuys), fmt.Sprintf("%g", s.TotalSells),
			orDash(s.NetActivity), orDash(s.DollarImbalance), Truncate(s.AISummary, 48),
		})
	}
	p.Table([]string{"TICKER", "PRICE", "BUYS", "SELLS", "NET", "IMBALANCE", "SUMMARY"}, rows, "No insider activity found.")
	for _, s := range res.Stocks {
		if len(s.Transactions) == 0 {
			continue
		}
		p.Dim("%s transactions", s.Ticker)
		tx := make([][]string, 0, len(s.Transactions))
		for _, t := range s.Transactions {
			tx = append(tx, []string{
				t.Date, t.InsiderName, orDash(t.Role), t.TransactionType, orDash(t.Shares),
				orDash(t.Price), orDash(t.Amount), p.Sentiment(t.Rating),
			})
		}
		p.Table([]string{"DATE", "INSIDER", "ROLE", "TYPE", "SHARES", "PRICE", "AMOUNT", "RATING"}, tx, "")
	}
	p.Sources(res.Sources)
}

// Heatmaps prints sector, volatility, options flow and volume heatmaps.
func (p *Printer) Heatmaps(res models.HeatmapResult) {
	p.Heading("Market Heatmaps")
	p.Text(res.MarketSummary)

	sectors := make([][]string, 0, len(res.Sectors))
	for _, s := range res.Sectors {
		sectors = append(sectors, []string{
			s.Name, p.Change(s.ChangePercent), orDash(s.VolumeStrength), p.Score(s.Sentiment),
			strings.Join(s.Leaders, " "), strings.Join(s.Laggards, " "),
		})
	}
	p.Table([]string{"SECTOR", "CHANGE", "VOLUME", "SENTIMENT", "LEADERS", "LAGGARDS"}, sectors, "No sector data.")

	vol := make([][]string, 0, len(res.Volatility))
	for _, v := range res.Volatility {
		vol = append(vol, []string{v.Symbol, orDash(v.Type), orDash(v.VolatilityLevel), p.Change(v.ATRChange)})
	}
	p.Table([]string{"SYMBOL", "TYPE", "VOLATILITY", "ATR CHANGE"}, vol, "No volatility data.")

	opts := make([][]string, 0, len(res.Options))
	for _, o := range res.Options {
		opts = append(opts, []string{o.Ticker, orDash(o.Type), orDash(o.Direction), orDash(o.FlowStrength), Truncate(o.Notes, 48)})
	}
	p.Table([]string{"TICKER", "TYPE", "DIRECTION", "STRENGTH", "NOTES"}, opts, "No options flow data.")

	volume := make([][]string, 0, len(res.Volume))
	for _, v := range res.Volume {
		volume = append(volume, []string{v.Ticker, orDash(v.RVol), orDash(v.Trend), Truncate(v.Description, 48)})
	}
	p.Table([]string{"TICKER", "RVOL", "TREND", "DESCRIPTION"}, volume, "No unusual volume.")
	p.Sources(res.Sources)
}

// News prints every non-empty news section.
func (p *Printer) News(res models.NewsFeedResult) {
	sections := []struct {
		title string
		items []models.NewsItem
	}{
		{"Breaking", res.BreakingNews},
		{"Watchlist", res.WatchlistNews},
		{"Market", res.MarketNews},
		{"Trending", res.TrendingNews},
		{"Earnings", res.EarningsNews},
		{"Analyst", res.AnalystNews},
		{"Company", res.CompanyNews},
	}
	printed := false
	for _, sec := range sections {
		if len(sec.items) == 0 {
			continue
		}
		printed = true
		p.Heading(sec.title + " News")
		rows := make([][]string, 0, len(sec.items))
		for _, n := range sec.items {
			rows = append(rows, []string{
				Truncate(n.Headline, 60), strings.Join(n.Tickers, " "), p.Score(n.SentimentScore),
				orDash(n.ImpactLevel), orDash(n.Source),
			})
		}
		p.Table([]string{"HEADLINE", "TICKERS", "SENTIMENT", "IMPACT", "SOURCE"}, rows, "")
	}
	if !printed {
		p.Dim("No news found.")
	}
	p.Sources(res.Sources)
}

// Indices prints the major index snapshot.
func (p *Printer) Indices(idx []models.MarketIndex) {
	p.Heading("Market Indices")
	rows := make([][]string, 0, len(idx))
	for _, i := range idx {
		rows = append(rows, []string{i.Symbol, orDash(i.Name), i.Price, p.Change(i.Change), p.Change(i.ChangePercent), p.Sentiment(i.Sentiment)})
	}
	p.Table([]string{"SYMBOL", "NAME", "PRICE", "CHANGE", "%", "SENTIMENT"}, rows, "Index data unavailable.")
}

// Calendar prints economic events.
func (p *Printer) Calendar(rng string, events []models.EconomicEvent) {
	p.Heading("Economic Calendar: " + rng)
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, []string{orDash(e.Time), e.Event, p.Sentiment(e.Impact), orDash(e.Actual), orDash(e.Forecast), orDash(e.Previous)})
	}
	p.Table([]string{"TIME", "EVENT", "IMPACT", "ACTUAL", "FORECAST", "PREVIOUS"}, rows, "No events scheduled.")
}

// GainersLosers prints the top gainers and losers.
func (p *Printer) GainersLosers(res models.GainersLosersResult) {
	for _, side := range []struct {
		title string
		rows  []models.StockCandidate
	}{{"Top Gainers", res.Gainers}, {"Top Losers", res.Losers}} {
		p.Heading(side.title)
		rows := make([][]string, 0, len(side.rows))
		for _, s := range side.rows {
			rows = append(rows, []string{s.Symbol, orDash(s.CompanyName), s.Price, p.Change(s.GapPercent)})
		}
		p.Table([]string{"SYMBOL", "COMPANY", "PRICE", "CHANGE"}, rows, "None.")
	}
}

// Summary prints the daily market summary.
func (p *Printer) Summary(s models.DailyMarketSummary) {
	p.Heading("Market Summary: " + p.Sentiment(s.Sentiment))
	p.Text(s.Summary)
	for _, k := range s.KeyPoints {
		p.Line("  • %s", k)
	}
}

// Quotes prints watchlist quotes.
func (p *Printer) Quotes(items []models.WatchlistItem) {
	rows := make([][]string, 0, len(items))
	for _, q := range items {
		rows = append(rows, []string{
			q.Symbol, q.Price, p.Change(q.ChangePercent), orDash(q.TrendLabel), orDash(q.RelativeVolume),
			orDash(q.VolatilityType), orDash(q.NewsStatus), Truncate(q.Insight, 40),
		})
	}
	p.Table([]string{"SYMBOL", "PRICE", "CHANGE", "TREND", "RVOL", "VOLATILITY", "NEWS", "INSIGHT"}, rows, "No quotes.")
}

// Analysis prints a single-stock analysis.
func (p *Printer) Analysis(a models.StockAnalysis) {
	title := a.Symbol
	if a.CompanyName != "" {
		title += " · " + a.CompanyName
	}
	p.Heading(title)
	p.Line("Price %s  %s  %s", fmt.Sprintf("%.2f", a.Price), p.Change(fmt.Sprintf("%+.2f", a.Change)), p.Change(fmt.Sprintf("%+.2f%%", a.ChangePercent)))

	f := a.Fundamentals
	p.Table([]string{"MARKET CAP", "FLOAT", "P/E", "AVG VOLUME"},
		[][]string{{orDash(f.MarketCap), orDash(f.Float), orDash(f.PERatio), orDash(f.AvgVolume)}}, "")

	tech := a.Technicals
	p.Line("RSI %g  MACD %s  Trend %s", tech.RSI, orDash(tech.MACD), p.Sentiment(tech.Trend))
	p.Text(tech.Summary)

	levels := make([][]string, 0, len(a.Overlays))
	for _, o := range a.Overlays {
		levels = append(levels, []string{o.Type, o.Label, fmt.Sprintf("%.2f", o.YValue), orDash(o.Strength), orDash(o.Method)})
	}
	p.Table([]string{"TYPE", "LABEL", "LEVEL", "STRENGTH", "METHOD"}, levels, "No key levels.")

	if n := len(a.Candles); n > 0 {
		last := a.Candles[n-1]
		p.Dim("%d candles, last %s O %.2f H %.2f L %.2f C %.2f", n, last.Time, last.Open, last.High, last.Low, last.Close)
	}

	news := make([][]string, 0, len(a.News))
	for _, n := range a.News {
		news = append(news, []string{orDash(n.Time), Truncate(n.Headline, 60), orDash(n.Source), p.Sentiment(n.Sentiment)})
	}
	p.Table([]string{"TIME", "HEADLINE", "SOURCE", "SENTIMENT"}, news, "No recent news.")
}

// Screenshot prints tickers read from an image.
func (p *Printer) Screenshot(r models.ScreenshotAnalysisResult) {
	p.Heading(fmt.Sprintf("Found %d tickers (%s confidence)", len(r.FoundTickers), r.Confidence))
	if len(r.FoundTickers) > 0 {
		p.Line("%s", strings.Join(r.FoundTickers, " "))
	}
	p.Text(r.Summary)
	if r.Suggestions != "" {
		p.Dim("%s", r.Suggestions)
	}
}

// Sources lists grounding sources.
func (p *Printer) Sources(src []models.SearchSource) {
	if len(src) == 0 {
		return
	}
	p.Dim("Sources:")
	for _, s := range src {
		p.Dim("  %s  %s", Truncate(s.Title, 50), s.URI)
	}
}
