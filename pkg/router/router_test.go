package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockbuzz/stockbuzz/pkg/config"
	"github.com/stockbuzz/stockbuzz/pkg/llm"
)

func TestResolveNoRoutes(t *testing.T) {
	r := New(&config.Config{})
	rt := r.Resolve("scan_market", Route{Search: true})

	assert.Equal(t, "scan_market", rt.Feature)
	assert.Equal(t, llm.DefaultModel, rt.Model)
	assert.True(t, rt.Search)
	assert.Nil(t, rt.Temperature)
}

func TestResolveNilConfig(t *testing.T) {
	rt := New(nil).Resolve("chat", Route{Temperature: llm.Temp(0.7)})
	assert.Equal(t, llm.DefaultModel, rt.Model)
	require.NotNil(t, rt.Temperature)
	assert.InDelta(t, 0.7, *rt.Temperature, 1e-6)
}

func TestResolveConfigModel(t *testing.T) {
	r := New(&config.Config{Model: "gemini-2.5-pro"})
	assert.Equal(t, "gemini-2.5-pro", r.Resolve("chat", Route{}).Model)
	assert.Equal(t, "custom", r.Resolve("chat", Route{Model: "custom"}).Model, "built-in model wins over the global default")
}

func TestResolveOverrides(t *testing.T) {
	off := false
	cfg := &config.Config{
		Router: config.RouterConfig{Routes: []config.RouteConfig{
			{Feature: "market_summary", Temperature: llm.Temp(0.5), Search: &off},
			{Feature: "*", Model: "gemini-2.5-flash-lite"},
			{Feature: "chat", Model: "gemini-2.5-pro"},
		}},
	}
	r := New(cfg)

	summary := r.Resolve("market_summary", Route{Temperature: llm.Temp(0.2), Search: true})
	assert.Equal(t, "gemini-2.5-flash-lite", summary.Model)
	assert.False(t, summary.Search)
	require.NotNil(t, summary.Temperature)
	assert.InDelta(t, 0.5, *summary.Temperature, 1e-6)

	chat := r.Resolve("chat", Route{Search: true})
	assert.Equal(t, "gemini-2.5-pro", chat.Model, "exact feature beats wildcard")
	assert.True(t, chat.Search)

	other := r.Resolve("news", Route{Search: true})
	assert.Equal(t, "gemini-2.5-flash-lite", other.Model)
}

func TestResolveDoesNotAliasTemperature(t *testing.T) {
	temp := float32(0.3)
	cfg := &config.Config{Router: config.RouterConfig{Routes: []config.RouteConfig{
		{Feature: "chat", Temperature: &temp},
	}}}
	rt := New(cfg).Resolve("chat", Route{})
	*rt.Temperature = 0.9
	assert.InDelta(t, 0.3, temp, 1e-6)
}

func TestRouteRequest(t *testing.T) {
	rt := Route{Model: "m", Temperature: llm.Temp(0.2), Search: true}
	img := llm.Image{Data: []byte{1}, MIMEType: "image/png"}
	req := rt.Request("hello", img)

	assert.Equal(t, "m", req.Model)
	assert.Equal(t, "hello", req.Prompt)
	assert.True(t, req.Search)
	assert.Equal(t, []llm.Image{img}, req.Images)
}
