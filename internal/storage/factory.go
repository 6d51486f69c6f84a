package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hooktide/hooktide/internal/config"
	"github.com/hooktide/hooktide/internal/webhook"
)

// Registry builds storage adapters and caches them by configuration, so two
// requests for the same backend share one initialized adapter. The lock is
// held across construction and Initialize, guaranteeing each configuration is
// initialized exactly once.
type Registry struct {
	mu       sync.Mutex
	adapters map[string]webhook.Store
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]webhook.Store)}
}

func cacheKey(cfg *config.StorageConfig) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("serializing storage config: %w", err)
	}
	return string(cfg.Type) + ":" + string(raw), nil
}

func construct(cfg *config.StorageConfig) (webhook.Store, error) {
	switch cfg.Type {
	case config.BackendSQLite:
		return NewSQLiteAdapter(cfg)
	case config.BackendElasticsearch:
		return NewElasticsearchAdapter(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", cfg.Type)
	}
}

// CreateAdapter returns an initialized, instrumented adapter for the given
// configuration, reusing a cached one when the configuration matches.
func (r *Registry) CreateAdapter(ctx context.Context, cfg *config.StorageConfig) (webhook.Store, error) {
	key, err := cacheKey(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.adapters[key]; ok {
		return adapter, nil
	}

	inner, err := construct(cfg)
	if err != nil {
		return nil, err
	}

	adapter := Instrument(inner, string(cfg.Type))
	if err := adapter.Initialize(ctx); err != nil {
		_ = adapter.Close()
		return nil, fmt.Errorf("initializing %s storage: %w", cfg.Type, err)
	}

	log.Info().
		Str("backend", string(cfg.Type)).
		Msg("Storage adapter initialized")

	r.adapters[key] = adapter
	return adapter, nil
}

// CreateFallbackAdapter builds a failover pair from the storage section.
// When fallback is disabled it returns the primary adapter alone.
func (r *Registry) CreateFallbackAdapter(ctx context.Context, cfg *config.StorageSection) (webhook.Store, error) {
	primary, err := r.CreateAdapter(ctx, &cfg.Primary)
	if err != nil {
		return nil, err
	}

	if !cfg.EnableFallback {
		return primary, nil
	}

	fallback, err := r.CreateAdapter(ctx, &cfg.Fallback)
	if err != nil {
		// Failover exists to survive a broken backend: a dead fallback at
		// startup degrades to primary-only instead of refusing to boot.
		log.Warn().Err(err).Msg("Fallback storage unavailable, continuing with primary only")
		return primary, nil
	}

	log.Info().
		Str("primary", string(cfg.Primary.Type)).
		Str("fallback", string(cfg.Fallback.Type)).
		Msg("Storage failover enabled")

	return NewFallbackAdapter(primary, fallback), nil
}

// CloseAllAdapters closes every cached adapter, logging failures and
// continuing. The registry is empty afterwards.
func (r *Registry) CloseAllAdapters() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, adapter := range r.adapters {
		if err := adapter.Close(); err != nil {
			log.Error().Err(err).Str("adapter", key).Msg("Error closing storage adapter")
		}
		delete(r.adapters, key)
	}
}
