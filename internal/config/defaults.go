package config

import "time"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         3000,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  1 << 20,
			CORS: CORSConfig{
				Enabled:          true,
				AllowedOrigins:   []string{"http://localhost:3000"},
				AllowCredentials: true,
				MaxAge:           10 * time.Minute,
			},
		},
		Storage: StorageSection{
			Primary: StorageConfig{
				Type:         BackendSQLite,
				Path:         "hooktide.db",
				Timeout:      30 * time.Second,
				WALMode:      true,
				BusyTimeout:  5 * time.Second,
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
			Fallback: StorageConfig{
				Type:      BackendElasticsearch,
				Addresses: []string{"http://localhost:9200"},
				Index:     "webhook-messages",
				Timeout:   30 * time.Second,
			},
			EnableFallback: false,
		},
		Webhook: WebhookConfig{
			SignatureHeader: "X-Webhook-Signature",
		},
		Realtime: RealtimeConfig{
			Enabled:           true,
			HeartbeatInterval: 30 * time.Second,
			SendBufferSize:    256,
		},
		Retention: RetentionConfig{
			Enabled:  false,
			Days:     30,
			Schedule: "0 3 * * *",
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				AccessTTL: 24 * time.Hour,
				Issuer:    "hooktide",
			},
			AdminUsername: "admin",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "console",
			Timestamp: true,
		},
	}
}
