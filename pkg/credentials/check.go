package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	rmodels "github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"

	"github.com/stockbuzz/stockbuzz/pkg/llm/gemini"
	"github.com/stockbuzz/stockbuzz/pkg/models"
)

// minSimulatedKeyLen is the length a key for a provider without a live check
// must exceed to be accepted.
const minSimulatedKeyLen = 8

// Checker tests whether a key works against its provider.
type Checker struct {
	httpClient *http.Client
	geminiOpts []gemini.Option
	logger     *zap.Logger
	now        func() time.Time
}

// NewChecker creates a Checker. hc is used for live checks; nil selects a
// client with a 10s timeout.
func NewChecker(hc *http.Client, logger *zap.Logger, geminiOpts ...gemini.Option) *Checker {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		httpClient: hc,
		geminiOpts: append([]gemini.Option{gemini.WithHTTPClient(hc)}, geminiOpts...),
		logger:     logger.Named("checker"),
		now:        time.Now,
	}
}

// Check returns nil when key is accepted by providerID.
func (c *Checker) Check(ctx context.Context, providerID, key string) error {
	if key == "" {
		return errors.New("empty key")
	}
	switch providerID {
	case models.ProviderGemini:
		return gemini.Ping(ctx, key, c.geminiOpts...)
	case models.ProviderPolygon:
		return c.checkPolygon(ctx, key)
	case models.ProviderAlphaVantage, models.ProviderFinnhub, models.ProviderIEX:
		if len(key) <= minSimulatedKeyLen {
			return fmt.Errorf("%s key too short", providerID)
		}
		return nil
	default:
		return fmt.Errorf("unknown provider %q", providerID)
	}
}

// checkPolygon lists a single recent SPY daily bar.
func (c *Checker) checkPolygon(ctx context.Context, key string) error {
	rest := polygonrest.NewWithClient(key, c.httpClient)
	now := c.now()
	params := &rmodels.ListAggsParams{
		Ticker:     "SPY",
		Timespan:   rmodels.Day,
		Multiplier: 1,
		From:       rmodels.Millis(now.AddDate(0, 0, -7)),
		To:         rmodels.Millis(now),
	}
	limit := 1
	params.Limit = &limit

	iter := rest.ListAggs(ctx, params)
	for iter.Next() {
		_ = iter.Item()
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("polygon: %w", err)
	}
	return nil
}

// StatusStore reads and updates stored keys.
type StatusStore interface {
	KeyStore
	SetKeyStatus(ctx context.Context, providerID string, status models.KeyStatus) error
}

// Verify checks the stored key for providerID and records the result.
func Verify(ctx context.Context, st StatusStore, c *Checker, providerID string) (models.KeyStatus, error) {
	k, err := st.GetKey(ctx, providerID)
	if err != nil {
		return models.KeyUntested, err
	}

	status := models.KeyValid
	if err := c.Check(ctx, providerID, k.APIKey); err != nil {
		c.logger.Info("key check failed", zap.String("provider", providerID), zap.Error(err))
		status = models.KeyInvalid
	}
	if err := st.SetKeyStatus(ctx, providerID, status); err != nil {
		return status, err
	}
	return status, nil
}
