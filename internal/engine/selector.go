// ABOUTME: Engine selector resolving the model to serve each request
// ABOUTME: Prefers the active engine config, probing liveness and falling back to the default

package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vaxassist/chatd/internal/store"
)

// Selector resolves which model serves a request. The active engine config
// wins when its model answers a liveness probe; otherwise the configured
// default model is used. Selection never fails.
type Selector struct {
	store        store.Store
	client       Client
	defaultModel string
	logger       *slog.Logger
}

// NewSelector creates a selector backed by the given store and client.
func NewSelector(st store.Store, client Client, defaultModel string) *Selector {
	return &Selector{
		store:        st,
		client:       client,
		defaultModel: defaultModel,
		logger:       slog.Default().With("component", "selector"),
	}
}

// Select returns the model to use for a request. The probe runs on every
// call so a model that went away between requests is skipped immediately.
func (s *Selector) Select(ctx context.Context) string {
	cfg, err := s.store.GetActiveEngineConfig(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to load active engine config", "error", err)
		}
		return s.defaultModel
	}

	if err := s.client.Ping(ctx, cfg.Key); err != nil {
		s.logger.Warn("active model not servable, falling back",
			"model", cfg.Key,
			"fallback", s.defaultModel,
			"error", err)
		return s.defaultModel
	}

	return cfg.Key
}
