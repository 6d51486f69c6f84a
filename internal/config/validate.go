package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

const minJWTSecretLength = 32

// Validate checks the configuration for errors that would prevent startup.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535, got %d", ErrInvalidConfig, cfg.Server.Port)
	}

	if err := validateStorage("storage.primary", &cfg.Storage.Primary); err != nil {
		return err
	}
	if cfg.Storage.EnableFallback {
		if err := validateStorage("storage.fallback", &cfg.Storage.Fallback); err != nil {
			return err
		}
	}

	if cfg.Auth.JWT.Secret != "" && len(cfg.Auth.JWT.Secret) < minJWTSecretLength {
		return fmt.Errorf("%w: auth.jwt.secret must be at least %d characters", ErrInvalidConfig, minJWTSecretLength)
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.Days < 1 {
			return fmt.Errorf("%w: retention.days must be at least 1", ErrInvalidConfig)
		}
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			return fmt.Errorf("%w: retention.schedule: %v", ErrInvalidConfig, err)
		}
	}

	if cfg.Realtime.Enabled && cfg.Realtime.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: realtime.heartbeat_interval must be positive", ErrInvalidConfig)
	}

	return nil
}

func validateStorage(key string, sc *StorageConfig) error {
	switch sc.Type {
	case BackendSQLite:
		if sc.Path == "" {
			return fmt.Errorf("%w: %s.path is required for sqlite", ErrInvalidConfig, key)
		}
	case BackendElasticsearch:
		if len(sc.Addresses) == 0 {
			return fmt.Errorf("%w: %s.addresses is required for elasticsearch", ErrInvalidConfig, key)
		}
		if sc.Index == "" {
			return fmt.Errorf("%w: %s.index is required for elasticsearch", ErrInvalidConfig, key)
		}
	default:
		return fmt.Errorf("%w: %s.type must be sqlite or elasticsearch, got %q", ErrInvalidConfig, key, sc.Type)
	}
	return nil
}
