// Package credentials resolves provider API keys and checks that they work.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/stockbuzz/stockbuzz/pkg/models"
	"github.com/stockbuzz/stockbuzz/pkg/store"
)

// ErrNoCredential is returned when neither a stored key nor an environment
// variable supplies a key.
var ErrNoCredential = errors.New("no API key configured")

// KeyStore reads stored provider keys.
type KeyStore interface {
	GetKey(ctx context.Context, providerID string) (models.APIKeyConfig, error)
}

// Resolver looks up a key on every call: a stored key that is enabled and
// tested valid wins, then the first non-empty environment variable.
type Resolver struct {
	store  KeyStore
	env    map[string][]string
	getenv func(string) string
	logger *zap.Logger
}

// NewResolver creates a Resolver. env maps provider IDs to the environment
// variables consulted, in order, when no usable key is stored. store may be
// nil.
func NewResolver(ks KeyStore, env map[string][]string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: ks, env: env, getenv: os.Getenv, logger: logger.Named("credentials")}
}

// Key returns the API key for providerID.
func (r *Resolver) Key(ctx context.Context, providerID string) (string, error) {
	if r.store != nil {
		k, err := r.store.GetKey(ctx, providerID)
		switch {
		case err == nil && k.Usable():
			return k.APIKey, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			r.logger.Warn("stored key lookup failed", zap.String("provider", providerID), zap.Error(err))
		}
	}

	for _, name := range r.env[providerID] {
		if v := strings.TrimSpace(r.getenv(name)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s: %w", providerID, ErrNoCredential)
}

// Source reports where the key for providerID would come from, without
// revealing it: "stored", "env:<NAME>" or "none".
func (r *Resolver) Source(ctx context.Context, providerID string) string {
	if r.store != nil {
		if k, err := r.store.GetKey(ctx, providerID); err == nil && k.Usable() {
			return "stored"
		}
	}
	for _, name := range r.env[providerID] {
		if strings.TrimSpace(r.getenv(name)) != "" {
			return "env:" + name
		}
	}
	return "none"
}

// Mask shows only the first characters of a key.
func Mask(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:8] + "..."
}
