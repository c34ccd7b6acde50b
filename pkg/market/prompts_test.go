package market

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stockbuzz/stockbuzz/pkg/models"
)

func TestScannerClauses(t *testing.T) {
	assert.Empty(t, scannerClauses(nil))
	assert.Empty(t, scannerClauses(&models.ScannerFilters{}))

	ross := scannerClauses(&models.ScannerFilters{EnableRoss: true, Breakout: true})
	assert.Contains(t, ross, "STRICT ROSS CAMERON 5-STEP CRITERIA ACTIVE")
	assert.Contains(t, ross, "Float MUST be under 10 Million shares.")
	assert.NotContains(t, ross, "Breakout", "the checklist replaces individual flags")

	flags := scannerClauses(&models.ScannerFilters{Breakout: true, LowFloatRetail: true})
	assert.Equal(t, []string{
		"- Price MUST be above Pre-Market Highs or Previous Day Highs (Breakout)",
		"- Institutional Ownership < 30% (Retail driven momentum)",
	}, strings.Split(strings.TrimSpace(flags), "\n"))
}

func TestEarningsClauses(t *testing.T) {
	assert.Empty(t, earningsClauses(&models.EarningsFilters{Session: models.SessionAll, Sector: "ALL"}))
	assert.Empty(t, earningsClauses(&models.EarningsFilters{}), "empty session means every session")

	got := earningsClauses(&models.EarningsFilters{EPSBeat: true, Vol5M: true, Session: "pre", Sector: "Healthcare"})
	assert.Contains(t, got, "- MUST have beaten EPS estimates (Actual > Est).\n")
	assert.Contains(t, got, "- Volume MUST be > 5,000,000 shares.\n")
	assert.Contains(t, got, "- Show ONLY stocks moving in the PRE market session.\n")
	assert.Contains(t, got, "- Filter for stocks in the Healthcare sector.\n")
}

func TestMoversClauses(t *testing.T) {
	assert.Empty(t, moversClauses(&models.MoversFilters{Mode: "ALL", Cap: "ALL"}))
	assert.Equal(t,
		"- SHOW ONLY TOP LOSERS (Negative % Change).\n- Market Cap: Mid Cap ($2B - $10B).\n",
		moversClauses(&models.MoversFilters{Mode: "LOSERS", Cap: "mid"}))
}

func TestPromptsCarryClauses(t *testing.T) {
	p := scanMarketPrompt("Monday, March 17, 2025", &models.ScannerFilters{HighVolatility: true})
	assert.Contains(t, p, "High Intraday Volatility (Range > 5%)")
	assert.Contains(t, p, "Gap Up > 3%")
	assert.NotContains(t, p, "%!", "no formatting verbs leak into the prompt")

	for _, p := range []string{
		scanEarningsPrompt(nil), scanMoversPrompt("d", nil), scanOversoldPrompt("d"),
		scanInsiderPrompt("d"), scanHeatmapsPrompt("d"), newsPrompt("d", []string{"AAPL"}),
		indicesPrompt(), calendarPrompt("Today"), gainersLosersPrompt(), summaryPrompt(),
		quotesPrompt([]string{"AAPL"}), screenshotPrompt(), analysisPrompt("AAPL", "10:00:00 AM"),
		chatPrompt("hi", nil),
	} {
		assert.NotContains(t, p, "%!")
	}
}

func TestFilterKey(t *testing.T) {
	var f *models.MoversFilters
	assert.Equal(t, "default", filterKey(f))
	assert.Equal(t, `{"mode":"GAINERS","cap":"SMALL"}`, filterKey(&models.MoversFilters{Mode: "GAINERS", Cap: "SMALL"}))
}
