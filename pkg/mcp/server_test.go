package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
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
	"github.com/stockbuzz/stockbuzz/pkg/retry"
	"github.com/stockbuzz/stockbuzz/pkg/tracker"
)

// newTestServer wires a Server to a market service whose model always
// answers reply.
func newTestServer(t *testing.T, reply string, mutate ...func(*Deps)) (*Server, *atomic.Int32) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	var calls atomic.Int32
	gen := llm.GeneratorFunc(func(_ context.Context, req llm.Request) (*llm.Response, error) {
		calls.Add(1)
		if reply == "429" {
			return nil, llm.RateLimited("generate", context.DeadlineExceeded)
		}
		return &llm.Response{Text: reply, Usage: models.Usage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}}, nil
	})

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
	return New(d, "test"), &calls
}

func sendAndReceive(t *testing.T, srv *Server, req Request) Response {
	t.Helper()
	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	line, err := json.Marshal(req)
	require.NoError(t, err)
	line = append(line, '\n')

	var out bytes.Buffer
	require.NoError(t, srv.Run(context.Background(), bytes.NewReader(line), &out))

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "raw: %s", out.String())
	return resp
}

func callTool(t *testing.T, srv *Server, name string, args string) ToolCallResult {
	t.Helper()
	params, _ := json.Marshal(ToolCallParams{Name: name, Arguments: json.RawMessage(args)})
	resp := sendAndReceive(t, srv, Request{ID: json.RawMessage(`1`), Method: "tools/call", Params: params})
	require.Nil(t, resp.Error, "unexpected rpc error")

	data, _ := json.Marshal(resp.Result)
	var result ToolCallResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.NotEmpty(t, result.Content, "empty tool result")
	return result
}

func TestInitialize(t *testing.T) {
	srv, _ := newTestServer(t, "{}")
	resp := sendAndReceive(t, srv, Request{ID: json.RawMessage(`1`), Method: "initialize"})
	require.Nil(t, resp.Error)

	data, _ := json.Marshal(resp.Result)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Equal(t, "stockbuzz", result.ServerInfo.Name)
	assert.Equal(t, "test", result.ServerInfo.Version)
}

func TestToolsList(t *testing.T) {
	srv, _ := newTestServer(t, "{}")
	resp := sendAndReceive(t, srv, Request{ID: json.RawMessage(`2`), Method: "tools/list"})

	data, _ := json.Marshal(resp.Result)
	var result ToolsListResult
	require.NoError(t, json.Unmarshal(data, &result))

	assert.Len(t, result.Tools, len(toolHandlers))
	for _, tool := range result.Tools {
		assert.Contains(t, toolHandlers, tool.Name, "tool has no handler")
	}
}

func TestToolCallScan(t *testing.T) {
	srv, calls := newTestServer(t, "```json\n{\"movers\": [{\"ticker\": \"XYZ\", \"marketSentiment\": 9}], \"marketSummary\": \"Hot\"}\n```")

	result := callTool(t, srv, "stockbuzz_scan", `{"kind": "movers", "filters": {"mode": "GAINERS"}}`)
	require.False(t, result.IsError, result.Content[0].Text)

	var movers models.MoversResult
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &movers))
	require.Len(t, movers.Movers, 1)
	assert.Equal(t, "XYZ", movers.Movers[0].Ticker)
	assert.Equal(t, "Hot", movers.MarketSummary)

	callTool(t, srv, "stockbuzz_scan", `{"kind": "movers", "filters": {"mode": "GAINERS"}}`)
	assert.Equal(t, int32(1), calls.Load(), "second call cached")
}

func TestToolCallScanBadArguments(t *testing.T) {
	srv, calls := newTestServer(t, "{}")

	for _, args := range []string{`{}`, `{"kind": "weather"}`, `{"kind": "movers", "filters": {"mode": 5}}`} {
		assert.True(t, callTool(t, srv, "stockbuzz_scan", args).IsError, args)
	}
	assert.Zero(t, calls.Load())
}

func TestToolCallMalformedArguments(t *testing.T) {
	srv, calls := newTestServer(t, "{}")

	for name, args := range map[string]string{
		"stockbuzz_indices":        `{"force": "yes"}`,
		"stockbuzz_gainers_losers": `{"force": 1}`,
		"stockbuzz_summary":        `[]`,
	} {
		result := callTool(t, srv, name, args)
		assert.True(t, result.IsError, name)
		assert.Contains(t, result.Content[0].Text, "invalid arguments", name)
	}
	assert.Zero(t, calls.Load())
}

func TestToolCallQuotaIsToolError(t *testing.T) {
	srv, _ := newTestServer(t, "429")

	result := callTool(t, srv, "stockbuzz_scan", `{"kind": "market"}`)
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "quota exceeded")

	// Degrading queries still answer.
	result = callTool(t, srv, "stockbuzz_chat", `{"message": "hi"}`)
	assert.False(t, result.IsError)
	assert.Equal(t, "Service unavailable.", result.Content[0].Text)
}

func TestToolCallRequiredArguments(t *testing.T) {
	srv, _ := newTestServer(t, "{}")
	for name, args := range map[string]string{
		"stockbuzz_quotes":  `{"symbols": []}`,
		"stockbuzz_analyze": `{"symbol": " "}`,
		"stockbuzz_chat":    `{}`,
	} {
		assert.True(t, callTool(t, srv, name, args).IsError, name)
	}
}

func TestToolCallChat(t *testing.T) {
	srv, _ := newTestServer(t, "  Buy the dip.  ")
	result := callTool(t, srv, "stockbuzz_chat", `{"message": "What now?", "context": {"symbol": "AAPL"}}`)
	assert.False(t, result.IsError)
	assert.Equal(t, "Buy the dip.", result.Content[0].Text)
}

func TestToolCallCacheStatsAndInvalidate(t *testing.T) {
	srv, _ := newTestServer(t, `{"indices": [{"symbol": "SPY"}]}`)

	callTool(t, srv, "stockbuzz_indices", `{}`)
	callTool(t, srv, "stockbuzz_indices", `{}`)

	text := callTool(t, srv, "stockbuzz_cache_stats", "").Content[0].Text
	assert.Contains(t, text, "Entries:  1")
	assert.Contains(t, text, "50.0%")

	text = callTool(t, srv, "stockbuzz_cache_invalidate", `{"pattern": "indices"}`).Content[0].Text
	assert.Equal(t, `Removed 1 cached results matching "indices".`, text)
}

func TestToolCallInvalidateRejectsMalformedPattern(t *testing.T) {
	srv, _ := newTestServer(t, `{"indices": [{"symbol": "SPY"}]}`)
	callTool(t, srv, "stockbuzz_indices", `{}`)
	callTool(t, srv, "stockbuzz_summary", `{}`)
	require.Equal(t, int64(2), srv.market.CacheStats().Entries)

	result := callTool(t, srv, "stockbuzz_cache_invalidate", `{"pattern": 5}`)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "invalid arguments")
	assert.Equal(t, int64(2), srv.market.CacheStats().Entries, "nothing is dropped")
}

func TestToolCallNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, "{}")
	for _, name := range []string{"stockbuzz_usage", "stockbuzz_budget", "stockbuzz_audit_search"} {
		assert.Contains(t, callTool(t, srv, name, "").Content[0].Text, "not configured", name)
	}
}

func TestToolCallUsage(t *testing.T) {
	tr, err := tracker.New(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tr.Close() })

	err = tr.Record(context.Background(), models.UsageRecord{
		Feature: "news", Model: "gemini-2.5-flash", PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150, Attempts: 2,
	})
	require.NoError(t, err)

	srv, _ := newTestServer(t, "{}", func(d *Deps) { d.Tracker = tr })
	text := callTool(t, srv, "stockbuzz_usage", `{"feature": "news"}`).Content[0].Text
	assert.Contains(t, text, "news")
	assert.Contains(t, text, "150")
}

func TestUnknownTool(t *testing.T) {
	srv, _ := newTestServer(t, "{}")
	assert.True(t, callTool(t, srv, "stockbuzz_stats", "").IsError)
}

func TestNotificationNoResponse(t *testing.T) {
	srv, _ := newTestServer(t, "{}")

	line, _ := json.Marshal(Request{JSONRPC: "2.0", Method: "notifications/initialized"})
	line = append(line, '\n')

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader(line), &out)
	assert.Zero(t, out.Len(), out.String())
}

func TestUnknownMethod(t *testing.T) {
	srv, _ := newTestServer(t, "{}")
	resp := sendAndReceive(t, srv, Request{ID: json.RawMessage(`9`), Method: "unknown/method"})

	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestParseError(t *testing.T) {
	srv, _ := newTestServer(t, "{}")

	var out bytes.Buffer
	_ = srv.Run(context.Background(), bytes.NewReader([]byte("not json\n")), &out)

	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestWrongVersion(t *testing.T) {
	srv, _ := newTestServer(t, "{}")
	resp := sendAndReceive(t, srv, Request{JSONRPC: "1.0", ID: json.RawMessage(`3`), Method: "ping"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}
