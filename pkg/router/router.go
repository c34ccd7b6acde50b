// Package router resolves the model settings used by each dashboard feature.
package router

import (
	"github.com/stockbuzz/stockbuzz/pkg/config"
	"github.com/stockbuzz/stockbuzz/pkg/llm"
)

// Wildcard matches every feature.
const Wildcard = "*"

// Route is the resolved model configuration for one feature.
type Route struct {
	Feature     string
	Model       string
	Temperature *float32
	Search      bool
}

// Router applies configured overrides on top of each feature's built-in route.
type Router struct {
	model  string
	routes []config.RouteConfig
}

// New creates a Router from the given configuration. cfg may be nil.
func New(cfg *config.Config) *Router {
	r := &Router{model: llm.DefaultModel}
	if cfg == nil {
		return r
	}
	if cfg.Model != "" {
		r.model = cfg.Model
	}
	r.routes = cfg.Router.Routes
	return r
}

// Resolve returns the route for a feature. Overrides for "*" apply first,
// then overrides naming the feature exactly; unset override fields keep the
// value from def.
func (r *Router) Resolve(feature string, def Route) Route {
	out := def
	out.Feature = feature
	if out.Model == "" {
		out.Model = r.model
	}

	for _, match := range []string{Wildcard, feature} {
		for _, rc := range r.routes {
			if rc.Feature != match {
				continue
			}
			if rc.Model != "" {
				out.Model = rc.Model
			}
			if rc.Temperature != nil {
				t := *rc.Temperature
				out.Temperature = &t
			}
			if rc.Search != nil {
				out.Search = *rc.Search
			}
		}
		if feature == Wildcard {
			break
		}
	}
	return out
}

// Request builds a generation request for prompt using the route's settings.
func (rt Route) Request(prompt string, images ...llm.Image) llm.Request {
	return llm.Request{
		Model:       rt.Model,
		Prompt:      prompt,
		Images:      images,
		Temperature: rt.Temperature,
		Search:      rt.Search,
	}
}
