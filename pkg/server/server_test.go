package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stockbuzz/stockbuzz/pkg/cache"
	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/market"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/queue"
	"github.com/stockbuzz/stockbuzz/pkg/refresh"
	"github.com/stockbuzz/stockbuzz/pkg/retry"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

// recorder is a model stub that answers with a fixed reply and keeps every
// request it receives.
type recorder struct {
	mu    sync.Mutex
	reply string
	err   error
	reqs  []llm.Request
}

func (g *recorder) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Text: g.reply}, nil
}

func (g *recorder) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}

func (g *recorder) last() llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reqs[len(g.reqs)-1]
}

func setupServer(t *testing.T, gen *recorder, mutate ...func(*Deps)) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	svc, err := market.New(market.Deps{
		Cache:     cache.New(time.Minute),
		Caller:    retry.New(queue.New(0, logger), retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Factor: 1.5}, logger),
		Generator: gen,
		Logger:    logger,
	})
	require.NoError(t, err)

	d := Deps{Market: svc, Logger: logger}
	for _, m := range mutate {
		m(&d)
	}
	ts := httptest.NewServer(New(":0", d))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestScanWithFiltersAndForce(t *testing.T) {
	gen := &recorder{reply: `{"stocks": [{"symbol": "ABCD", "gapPercent": "+30%"}], "marketSummary": "Hot"}`}
	ts := setupServer(t, gen)

	var res models.ScanResult
	code := getJSON(t, ts.URL+"/api/scan/market?breakout=1&lowFloatRetail=true", &res)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Stocks, 1)
	assert.Equal(t, "ABCD", res.Stocks[0].Symbol)
	assert.Contains(t, gen.last().Prompt, "(Breakout)")
	assert.Contains(t, gen.last().Prompt, "Retail driven momentum")

	getJSON(t, ts.URL+"/api/scan/market?breakout=1&lowFloatRetail=true", &res)
	assert.Equal(t, 1, gen.count(), "second request served from cache")

	getJSON(t, ts.URL+"/api/scan/market?breakout=1&lowFloatRetail=true&force=1", &res)
	assert.Equal(t, 2, gen.count())
}

func TestScanBadInput(t *testing.T) {
	gen := &recorder{reply: "{}"}
	ts := setupServer(t, gen)

	var body map[string]string
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/scan/market?breakout=maybe", &body))
	assert.Contains(t, body["error"], "breakout")

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/scan/crypto", &body))
	assert.Contains(t, body["error"], "unknown scan kind")
	assert.Zero(t, gen.count())
}

func TestQuotaReturns429(t *testing.T) {
	gen := &recorder{err: llm.RateLimited("generate", assert.AnError)}
	ts := setupServer(t, gen)

	var body map[string]string
	assert.Equal(t, http.StatusTooManyRequests, getJSON(t, ts.URL+"/api/scan/oversold", &body))
	assert.Contains(t, body["error"], retry.ErrQuotaExceeded.Error())

	// Degrading feeds still answer 200.
	var idx []models.MarketIndex
	assert.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/indices", &idx))
	assert.Empty(t, idx)
}

func TestFatalReturns502(t *testing.T) {
	gen := &recorder{err: llm.Fatal("generate", assert.AnError)}
	ts := setupServer(t, gen)

	var body map[string]string
	assert.Equal(t, http.StatusBadGateway, getJSON(t, ts.URL+"/api/analysis/aapl", &body))
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, 1, gen.count(), "fatal errors are not retried")
}

func TestQuotesFromWatchlist(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "stockbuzz.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	_, err = st.CreateWatchlist(context.Background(), "tech", []string{"aapl", "msft"})
	require.NoError(t, err)

	gen := &recorder{reply: `[{"symbol": "AAPL", "price": "190.00"}, {"symbol": "MSFT", "price": "410.00"}]`}
	ts := setupServer(t, gen, func(d *Deps) { d.Store = st })

	var items []models.WatchlistItem
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/quotes?watchlist=tech", &items))
	assert.Len(t, items, 2)
	assert.Contains(t, gen.last().Prompt, "AAPL")
	assert.Contains(t, gen.last().Prompt, "MSFT")

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/quotes?watchlist=nope", &body))

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/quotes?symbols=", &items))
	assert.Empty(t, items)
	assert.Equal(t, 1, gen.count(), "an empty symbol list makes no call")
}

func TestChat(t *testing.T) {
	gen := &recorder{reply: "Looks extended."}
	ts := setupServer(t, gen)

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"message": "Thoughts?", "context": {"symbol": "NVDA"}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Looks extended.", out.Reply)
	assert.Contains(t, gen.last().Prompt, "NVDA")

	resp2, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader(`{"message": ""}`))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestScreenshotMultipart(t *testing.T) {
	gen := &recorder{reply: `{"foundTickers": ["aapl"], "confidence": "high", "summary": "One ticker"}`}
	ts := setupServer(t, gen)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "shot.png")
	require.NoError(t, err)
	png := []byte("\x89PNG\r\n\x1a\n0000")
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/screenshot", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.ScreenshotAnalysisResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"AAPL"}, out.FoundTickers)

	sent := gen.last()
	require.Len(t, sent.Images, 1)
	assert.Equal(t, "image/png", sent.Images[0].MIMEType)
	assert.Equal(t, png, sent.Images[0].Data)
}

func TestScreenshotEmptyBody(t *testing.T) {
	ts := setupServer(t, &recorder{reply: "{}"})
	resp, err := http.Post(ts.URL+"/api/screenshot", "image/jpeg", bytes.NewReader(nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCacheEndpoints(t *testing.T) {
	gen := &recorder{reply: `{"sentiment": "Bullish", "summary": "Up", "keyPoints": []}`}
	ts := setupServer(t, gen)

	var sum models.DailyMarketSummary
	getJSON(t, ts.URL+"/api/summary", &sum)
	getJSON(t, ts.URL+"/api/summary", &sum)
	assert.Equal(t, "Bullish", sum.Sentiment)

	var stats cacheStatsResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/cache/stats", &stats))
	assert.Equal(t, int64(1), stats.Entries)
	assert.Equal(t, 0.5, stats.HitRate)

	resp, err := http.Post(ts.URL+"/api/cache/invalidate?pattern=summary", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var removed map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&removed))
	assert.Equal(t, 1, removed["removed"])
}

func TestStatusAndRefresh(t *testing.T) {
	gen := &recorder{reply: `{"indices": [{"symbol": "SPY"}]}`}
	var ref *refresh.Refresher
	ts := setupServer(t, gen, func(d *Deps) {
		var err error
		ref, err = refresh.New(d.Market, refresh.Options{Widgets: []string{"indices"}})
		require.NoError(t, err)
		d.Refresher = ref
	})

	var st statusResponse
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/status", &st))
	require.Len(t, st.Widgets, 1)
	assert.Equal(t, refresh.StateIdle, st.Widgets[0].State)
	assert.Equal(t, 2, st.Queue.MaxAttempts)
	assert.Equal(t, []time.Duration{time.Millisecond}, st.Queue.Backoff)

	resp, err := http.Post(ts.URL+"/api/refresh", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, refresh.StateComplete, st.Widgets[0].State)
	assert.Equal(t, int64(1), st.Cache.Entries)
	assert.Equal(t, int64(1), st.Queue.Dispatched)
	assert.Zero(t, st.Queue.Pending)
}

func TestRefreshNotConfigured(t *testing.T) {
	ts := setupServer(t, &recorder{reply: "{}"})
	resp, err := http.Post(ts.URL+"/api/refresh", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/nope", &body))
	assert.Equal(t, "not found", body["error"])
}

func TestCacheInvalidateSymbol(t *testing.T) {
	gen := &recorder{reply: `{"companyName": "Apple", "price": 190}`}
	ts := setupServer(t, gen)

	var a models.StockAnalysis
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/analysis/aapl", &a))
	getJSON(t, ts.URL+"/api/analysis/MSFT", &a)

	resp, err := http.Post(ts.URL+"/api/cache/invalidate?symbol=aapl", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var removed map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&removed))
	assert.Equal(t, 1, removed["removed"])

	getJSON(t, ts.URL+"/api/analysis/AAPL", &a)
	assert.Equal(t, 3, gen.count())
}
