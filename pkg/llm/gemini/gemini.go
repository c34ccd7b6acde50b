// Package gemini implements llm.Generator on the Google Gen AI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/stockbuzz/stockbuzz/pkg/llm"
	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// KeySource returns the API key to use for the next call.
type KeySource interface {
	Key(ctx context.Context, providerID string) (string, error)
}

// StaticKey is a KeySource that always returns the same key.
type StaticKey string

// Key returns k.
func (k StaticKey) Key(context.Context, string) (string, error) {
	if k == "" {
		return "", errors.New("no gemini API key configured")
	}
	return string(k), nil
}

// Client is a Generator that builds a fresh SDK client for every call so
// key changes take effect immediately.
type Client struct {
	keys       KeySource
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client.
func New(keys KeySource, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{keys: keys, logger: logger.Named("gemini")}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) newClient(ctx context.Context, key string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	return genai.NewClient(ctx, cfg)
}

// Generate sends req to Gemini.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	key, err := c.keys.Key(ctx, models.ProviderGemini)
	if err != nil {
		return nil, llm.Fatal("resolve key", err)
	}
	client, err := c.newClient(ctx, key)
	if err != nil {
		return nil, llm.Fatal("create gemini client", err)
	}

	model := req.Model
	if model == "" {
		model = llm.DefaultModel
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents(req), config(req))
	if err != nil {
		return nil, classify(err)
	}

	out := &llm.Response{
		Text:    resp.Text(),
		Sources: sources(resp),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = models.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	c.logger.Debug("generated",
		zap.String("model", model),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Int("sources", len(out.Sources)),
	)
	return out, nil
}

// Ping makes the cheapest possible call with key to check it works.
func Ping(ctx context.Context, key string, opts ...Option) error {
	c := New(StaticKey(key), nil, opts...)
	_, err := c.Generate(ctx, llm.Request{Prompt: "ping", MaxOutputTokens: 1})
	return err
}

func contents(req llm.Request) []*genai.Content {
	if len(req.Images) == 0 {
		return genai.Text(req.Prompt)
	}
	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func config(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// sources collects grounding chunks that carry both a URI and a title.
func sources(resp *genai.GenerateContentResponse) []models.SearchSource {
	out := []models.SearchSource{}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return out
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if chunk.Web.URI != "" && chunk.Web.Title != "" {
			out = append(out, models.SearchSource{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}
	return out
}

// classify converts SDK errors into llm.Error values.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return fromAPIError(*apiErrPtr, err)
	}
	if llm.IsRateLimited(err) {
		return llm.RateLimited("generate content", err)
	}
	return llm.Fatal("generate content", err)
}

func fromAPIError(apiErr genai.APIError, err error) error {
	if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
		return llm.RateLimited("generate content", err)
	}
	return &llm.Error{
		Kind: llm.KindFatal,
		Code: apiErr.Code,
		Op:   "generate content",
		Err:  fmt.Errorf("gemini %d %s: %w", apiErr.Code, apiErr.Status, err),
	}
}
