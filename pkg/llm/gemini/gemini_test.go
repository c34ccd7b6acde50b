package gemini

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
)

const okBody = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "{\"stocks\": []}"}]},
    "finishReason": "STOP",
    "groundingMetadata": {"groundingChunks": [
      {"web": {"uri": "https://example.com/a", "title": "A"}},
      {"web": {"uri": "https://example.com/b"}}
    ]}
  }],
  "usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 5, "totalTokenCount": 17}
}`

type capture struct {
	mu     sync.Mutex
	bodies []string
	paths  []string
	keys   []string
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, string(b))
		c.paths = append(c.paths, r.URL.Path)
		c.keys = append(c.keys, r.Header.Get("x-goog-api-key")+r.URL.Query().Get("key"))
		c.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestGenerate(t *testing.T) {
	srv, cap := newTestServer(t, http.StatusOK, okBody)
	c := New(StaticKey("test-key"), nil, WithBaseURL(srv.URL))

	resp, err := c.Generate(context.Background(), llm.Request{
		Prompt:      "scan the market",
		Temperature: llm.Temp(0.1),
		Search:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"stocks": []}`, resp.Text)
	assert.Equal(t, []models.SearchSource{{URI: "https://example.com/a", Title: "A"}}, resp.Sources)
	assert.Equal(t, models.Usage{PromptTokens: 12, CompletionTokens: 5, TotalTokens: 17}, resp.Usage)

	require.Len(t, cap.bodies, 1)
	assert.Contains(t, cap.paths[0], "gemini-2.5-flash:generateContent")
	assert.Contains(t, cap.bodies[0], "googleSearch")
	assert.Contains(t, cap.bodies[0], "scan the market")
	assert.Equal(t, "test-key", cap.keys[0])
}

func TestGenerateWithImage(t *testing.T) {
	srv, cap := newTestServer(t, http.StatusOK, okBody)
	c := New(StaticKey("k"), nil, WithBaseURL(srv.URL))

	img := []byte{0xff, 0xd8, 0xff}
	_, err := c.Generate(context.Background(), llm.Request{
		Prompt: "extract tickers",
		Images: []llm.Image{{Data: img, MIMEType: "image/jpeg"}},
	})
	require.NoError(t, err)

	body := cap.bodies[0]
	assert.Contains(t, body, "image/jpeg")
	assert.Contains(t, body, base64.StdEncoding.EncodeToString(img))
	assert.NotContains(t, body, "googleSearch")
}

func TestGenerateRateLimited(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusTooManyRequests,
		`{"error": {"code": 429, "message": "Resource has been exhausted (e.g. check quota).", "status": "RESOURCE_EXHAUSTED"}}`)
	c := New(StaticKey("k"), nil, WithBaseURL(srv.URL))

	_, err := c.Generate(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, llm.KindRateLimited, llm.Classify(err))
}

func TestGenerateFatal(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadRequest,
		`{"error": {"code": 400, "message": "API key not valid.", "status": "INVALID_ARGUMENT"}}`)
	c := New(StaticKey("k"), nil, WithBaseURL(srv.URL))

	_, err := c.Generate(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, llm.KindFatal, llm.Classify(err))
	assert.True(t, strings.Contains(err.Error(), "API key not valid"))
}

func TestGenerateMissingKey(t *testing.T) {
	c := New(StaticKey(""), nil)
	_, err := c.Generate(context.Background(), llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.Equal(t, llm.KindFatal, llm.Classify(err))
}

type rotatingKeys struct {
	mu   sync.Mutex
	keys []string
}

func (r *rotatingKeys) Key(context.Context, string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.keys[0]
	if len(r.keys) > 1 {
		r.keys = r.keys[1:]
	}
	return k, nil
}

func TestKeyResolvedPerCall(t *testing.T) {
	srv, cap := newTestServer(t, http.StatusOK, okBody)
	c := New(&rotatingKeys{keys: []string{"first", "second"}}, nil, WithBaseURL(srv.URL))

	for i := 0; i < 2; i++ {
		_, err := c.Generate(context.Background(), llm.Request{Prompt: "x"})
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"first", "second"}, cap.keys)
}

func TestPing(t *testing.T) {
	srv, cap := newTestServer(t, http.StatusOK, okBody)
	require.NoError(t, Ping(context.Background(), "k", WithBaseURL(srv.URL)))
	assert.Contains(t, cap.bodies[0], `"maxOutputTokens":1`)
}
