package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stockbuzz/stockbuzz/pkg/market"
	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/refresh"
)

// force reports whether the request asks to bypass the cache.
func force(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	return v
}

var (
	scannerFlags  = []string{"enableRoss", "projVolume", "morningActive", "breakout", "highVolatility", "excludeDerivatives", "lowFloatRetail"}
	earningsFlags = []string{"epsBeat", "revBeat", "move5Percent", "vol5M", "rvol2x", "priceRange"}
)

// filtersFromQuery builds the filter object of kind from query parameters.
// Without any filter parameter the scanner runs with its defaults.
func filtersFromQuery(kind string, q url.Values) (market.ScanFilters, error) {
	obj := map[string]any{}
	flags := func(names []string) error {
		for _, name := range names {
			if !q.Has(name) {
				continue
			}
			v, err := strconv.ParseBool(q.Get(name))
			if err != nil {
				return fmt.Errorf("%s: %q is not a boolean", name, q.Get(name))
			}
			obj[name] = v
		}
		return nil
	}
	strs := func(names ...string) {
		for _, name := range names {
			if q.Has(name) {
				obj[name] = q.Get(name)
			}
		}
	}

	switch strings.ToLower(kind) {
	case market.ScanKindMarket:
		if err := flags(scannerFlags); err != nil {
			return market.ScanFilters{}, err
		}
	case market.ScanKindEarnings:
		if err := flags(earningsFlags); err != nil {
			return market.ScanFilters{}, err
		}
		strs("session", "sector")
	case market.ScanKindMovers:
		strs("mode", "cap")
	}
	if len(obj) == 0 {
		return market.ScanFilters{}, nil
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return market.ScanFilters{}, err
	}
	return market.DecodeScanFilters(kind, raw)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	filters, err := filtersFromQuery(kind, r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.market.Scan(r.Context(), kind, force(r), filters)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// symbols reads tickers from the symbols parameter, or from the watchlist
// named by the watchlist parameter.
func (s *Server) symbols(r *http.Request) ([]string, error) {
	q := r.URL.Query()
	if name := q.Get("watchlist"); name != "" {
		if s.store == nil {
			return nil, errBadRequest("watchlists are not available")
		}
		wl, err := s.store.Watchlist(r.Context(), name)
		if err != nil {
			return nil, err
		}
		return wl.Tickers, nil
	}

	var out []string
	for _, v := range q["symbols"] {
		for _, sym := range strings.Split(v, ",") {
			if sym = strings.TrimSpace(sym); sym != "" {
				out = append(out, sym)
			}
		}
	}
	return out, nil
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequest(msg) }

func (s *Server) fail(w http.ResponseWriter, err error) {
	var br badRequest
	if errors.As(err, &br) {
		writeJSONError(w, http.StatusBadRequest, br.Error())
		return
	}
	s.writeQueryError(w, err)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	syms, err := s.symbols(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.market.FetchMarketNews(r.Context(), syms, force(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	res, err := s.market.FetchMarketIndices(r.Context(), force(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	res, err := s.market.FetchEconomicCalendar(r.Context(), r.URL.Query().Get("range"), force(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGainers(w http.ResponseWriter, r *http.Request) {
	res, err := s.market.FetchTopGainersLosers(r.Context(), force(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, err := s.market.FetchDailyMarketSummary(r.Context(), force(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	syms, err := s.symbols(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := s.market.FetchWatchlistQuotes(r.Context(), syms, force(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(r.PathValue("symbol"))
	if symbol == "" {
		writeJSONError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	res, err := s.market.AnalyzeStock(r.Context(), symbol, force(r))
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type chatRequest struct {
	Message string `json:"message"`
	Context any    `json:"context"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	reply, err := s.market.ChatWithAnalyst(r.Context(), req.Message, req.Context)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// handleScreenshot accepts either a multipart form with an "image" file or
// the raw image bytes as the request body.
func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBody)

	var (
		data     []byte
		mimeType string
		err      error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, ferr := r.FormFile("image")
		if ferr != nil {
			writeJSONError(w, http.StatusBadRequest, "multipart field \"image\" is required")
			return
		}
		defer file.Close()
		mimeType = header.Header.Get("Content-Type")
		data, err = io.ReadAll(file)
	} else {
		mimeType = mediaType
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "read image: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeJSONError(w, http.StatusBadRequest, "image is empty")
		return
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}

	res, err := s.market.ExtractTickersFromImage(r.Context(), data, mimeType)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type cacheStatsResponse struct {
	models.CacheStats
	HitRate float64 `json:"hitRate"`
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st := s.market.CacheStats()
	writeJSON(w, http.StatusOK, cacheStatsResponse{CacheStats: st, HitRate: st.HitRate()})
}

func (s *Server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var n int
	if sym := q.Get("symbol"); sym != "" {
		n = s.market.InvalidateSymbol(sym)
	} else {
		n = s.market.Invalidate(q.Get("pattern"))
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

type statusResponse struct {
	Widgets []refresh.WidgetStatus `json:"widgets"`
	Cache   models.CacheStats      `json:"cache"`
	Queue   models.QueueStats      `json:"queue"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Widgets: []refresh.WidgetStatus{},
		Cache:   s.market.CacheStats(),
		Queue:   s.market.QueueStats(),
	}
	if s.refresher != nil {
		resp.Widgets = s.refresher.Board().Snapshot()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh runs one refresh round and returns the resulting board.
// Widget failures show on the board rather than as an error status.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "refresh is not configured")
		return
	}
	if err := s.refresher.RefreshAll(r.Context()); errors.Is(err, refresh.ErrBusy) {
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Widgets: s.refresher.Board().Snapshot(),
		Cache:   s.market.CacheStats(),
		Queue:   s.market.QueueStats(),
	})
}
