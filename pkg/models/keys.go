package models

import "time"

// KeyStatus records the outcome of the last connection test.
type KeyStatus string

const (
	KeyUntested KeyStatus = "untested"
	KeyValid    KeyStatus = "valid"
	KeyInvalid  KeyStatus = "invalid"
)

// Provider describes a data or model provider a user can store a key for.
type Provider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DocsURL     string `json:"docs_url"`
}

// APIKeyConfig is a stored credential for one provider.
type APIKeyConfig struct {
	ProviderID string    `json:"provider_id"`
	APIKey     string    `json:"-"`
	Enabled    bool      `json:"enabled"`
	Status     KeyStatus `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Usable reports whether the key may be used for outbound calls.
func (k APIKeyConfig) Usable() bool {
	return k.Enabled && k.Status == KeyValid && k.APIKey != ""
}

// Provider IDs.
const (
	ProviderGemini       = "gemini"
	ProviderPolygon      = "polygon"
	ProviderAlphaVantage = "alphaVantage"
	ProviderFinnhub      = "finnhub"
	ProviderIEX          = "iex"
)

// Providers is the catalogue of providers a key can be stored for.
var Providers = []Provider{
	{ID: ProviderGemini, Name: "Google Gemini AI", Description: "Powers all scanners, chat, and analysis features. (Required)", DocsURL: "https://aistudio.google.com/"},
	{ID: ProviderPolygon, Name: "Polygon.io", Description: "Real-time stock, options, and crypto data feeds.", DocsURL: "https://polygon.io/"},
	{ID: ProviderAlphaVantage, Name: "Alpha Vantage", Description: "Historical data, technical indicators, and forex.", DocsURL: "https://www.alphavantage.co/"},
	{ID: ProviderFinnhub, Name: "Finnhub", Description: "Institutional-grade market data and alternative data.", DocsURL: "https://finnhub.io/"},
	{ID: ProviderIEX, Name: "IEX Cloud", Description: "Financial data platform for developers.", DocsURL: "https://iexcloud.io/"},
}

// LookupProvider finds a provider by ID.
func LookupProvider(id string) (Provider, bool) {
	for _, p := range Providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}
