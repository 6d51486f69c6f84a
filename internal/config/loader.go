package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

type LoadOptions struct {
	ConfigFile string
	EnvPrefix  string
	Defaults   *Config
}

func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := opts.Defaults
	if defaults == nil {
		defaults = Default()
	}
	setViperDefaults(v, defaults)

	if opts.EnvPrefix == "" {
		opts.EnvPrefix = "HOOKTIDE"
	}
	v.SetEnvPrefix(opts.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("hooktide")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/hooktide")
		v.AddConfigPath("/etc/hooktide")
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	expandEnvInConfig(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func LoadFromFile(path string) (*Config, error) {
	return Load(LoadOptions{ConfigFile: path})
}

func LoadWithDefaults() (*Config, error) {
	return Load(LoadOptions{})
}

func setViperDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.max_body_size", cfg.Server.MaxBodySize)

	v.SetDefault("server.cors.enabled", cfg.Server.CORS.Enabled)
	v.SetDefault("server.cors.allowed_origins", cfg.Server.CORS.AllowedOrigins)
	v.SetDefault("server.cors.allow_credentials", cfg.Server.CORS.AllowCredentials)
	v.SetDefault("server.cors.max_age", cfg.Server.CORS.MaxAge)

	v.SetDefault("storage.primary.type", string(cfg.Storage.Primary.Type))
	v.SetDefault("storage.primary.path", cfg.Storage.Primary.Path)
	v.SetDefault("storage.primary.timeout", cfg.Storage.Primary.Timeout)
	v.SetDefault("storage.primary.wal_mode", cfg.Storage.Primary.WALMode)
	v.SetDefault("storage.primary.busy_timeout", cfg.Storage.Primary.BusyTimeout)
	v.SetDefault("storage.primary.max_open_conns", cfg.Storage.Primary.MaxOpenConns)
	v.SetDefault("storage.primary.max_idle_conns", cfg.Storage.Primary.MaxIdleConns)
	v.SetDefault("storage.fallback.type", string(cfg.Storage.Fallback.Type))
	v.SetDefault("storage.fallback.addresses", cfg.Storage.Fallback.Addresses)
	v.SetDefault("storage.fallback.index", cfg.Storage.Fallback.Index)
	v.SetDefault("storage.fallback.timeout", cfg.Storage.Fallback.Timeout)
	v.SetDefault("storage.enable_fallback", cfg.Storage.EnableFallback)

	v.SetDefault("webhook.signature_header", cfg.Webhook.SignatureHeader)

	v.SetDefault("realtime.enabled", cfg.Realtime.Enabled)
	v.SetDefault("realtime.heartbeat_interval", cfg.Realtime.HeartbeatInterval)
	v.SetDefault("realtime.send_buffer_size", cfg.Realtime.SendBufferSize)

	v.SetDefault("retention.enabled", cfg.Retention.Enabled)
	v.SetDefault("retention.days", cfg.Retention.Days)
	v.SetDefault("retention.schedule", cfg.Retention.Schedule)

	v.SetDefault("auth.jwt.access_ttl", cfg.Auth.JWT.AccessTTL)
	v.SetDefault("auth.jwt.issuer", cfg.Auth.JWT.Issuer)
	v.SetDefault("auth.admin_username", cfg.Auth.AdminUsername)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.timestamp", cfg.Logging.Timestamp)
}

func expandEnvInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envVar := val[2 : len(val)-1]
			if envVal := os.Getenv(envVar); envVal != "" {
				v.Set(key, envVal)
			}
		}
	}
}
