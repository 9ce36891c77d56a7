package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type BundleURL struct {
	BundleID string `mapstructure:"bundle_id"`
	URL      string `mapstructure:"url"`
}

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr             string `mapstructure:"addr"`
		LogLevel         string `mapstructure:"log_level"`
		LogJSON          bool   `mapstructure:"log_json"`
		Environment      string `mapstructure:"environment"`
		AdminAPIKey      string `mapstructure:"admin_api_key"`
		RequestTimeoutMs int    `mapstructure:"request_timeout_ms"`
	} `mapstructure:"server"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
		Migrate      bool   `mapstructure:"migrate"`
	} `mapstructure:"postgres"`

	Listener struct {
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Redis struct {
		Addr            string `mapstructure:"addr"`
		Password        string `mapstructure:"password"`
		DB              int    `mapstructure:"db"`
		OfferTTLSeconds int    `mapstructure:"offer_ttl_seconds"`
	} `mapstructure:"redis"`

	Offer struct {
		DefaultBaseURL string      `mapstructure:"default_base_url"`
		BundleURLs     []BundleURL `mapstructure:"bundle_urls"`
	} `mapstructure:"offer"`

	Notifications struct {
		FCMProjectID       string `mapstructure:"fcm_project_id"`
		FCMCredentialsFile string `mapstructure:"fcm_credentials_file"`
		FCMEndpoint        string `mapstructure:"fcm_endpoint"`
	} `mapstructure:"notifications"`

	RateLimit struct {
		RequestsPerMinute int `mapstructure:"requests_per_minute"`
		Burst             int `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`

	Retention struct {
		RequestDays int    `mapstructure:"request_days"`
		Schedule    string `mapstructure:"schedule"`
	} `mapstructure:"retention"`
}

func Load() Config {
	v := viper.New()
	if err := readFiles(v, "configs", environment()); err != nil {
		panic(err)
	}

	cfg, err := load(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func environment() string {
	if env := os.Getenv("APP_SERVER_ENVIRONMENT"); env != "" {
		return strings.ToLower(env)
	}
	if env := os.Getenv("ENV"); env != "" {
		return strings.ToLower(env)
	}
	return "development"
}

// readFiles reads dir/application.yaml and merges dir/<env>.yaml over it.
// Both files are optional; env can fully configure the service.
func readFiles(v *viper.Viper, dir, env string) error {
	v.SetConfigType("yaml")
	for _, name := range []string{"application", env} {
		path := filepath.Join(dir, name+".yaml")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return nil
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode config: %w", err)
	}
	validate(&cfg)
	return cfg, nil
}

// bindEnv registers every scalar key so AutomaticEnv can see it during
// Unmarshal even when no config file sets it.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"server.addr", "server.log_level", "server.log_json", "server.environment",
		"server.admin_api_key", "server.request_timeout_ms",
		"postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name",
		"postgres.ssl_mode", "postgres.max_open_conns", "postgres.max_idle_conns", "postgres.migrate",
		"listener.reconnect_seconds",
		"redis.addr", "redis.password", "redis.db", "redis.offer_ttl_seconds",
		"offer.default_base_url",
		"notifications.fcm_project_id", "notifications.fcm_credentials_file", "notifications.fcm_endpoint",
		"rate_limit.requests_per_minute", "rate_limit.burst",
		"retention.request_days", "retention.schedule",
	} {
		_ = v.BindEnv(key)
	}
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.Server.Environment == "" { c.Server.Environment = "development" }
	if c.Server.RequestTimeoutMs <= 0 { c.Server.RequestTimeoutMs = 2000 }
	if c.Postgres.Port == 0 { c.Postgres.Port = 5432 }
	if c.Postgres.SSLMode == "" { c.Postgres.SSLMode = "disable" }
	if c.Postgres.MaxOpenConns == 0 { c.Postgres.MaxOpenConns = 10 }
	if c.Postgres.MaxIdleConns == 0 { c.Postgres.MaxIdleConns = 2 }
	if c.Listener.ReconnectSeconds <= 0 { c.Listener.ReconnectSeconds = 5 }
	if c.Redis.OfferTTLSeconds <= 0 { c.Redis.OfferTTLSeconds = 3600 }
	if c.Notifications.FCMEndpoint == "" { c.Notifications.FCMEndpoint = "https://fcm.googleapis.com" }
	if c.RateLimit.RequestsPerMinute <= 0 { c.RateLimit.RequestsPerMinute = 100 }
	if c.RateLimit.Burst <= 0 { c.RateLimit.Burst = c.RateLimit.RequestsPerMinute }
	if c.Retention.RequestDays <= 0 { c.Retention.RequestDays = 30 }
	if c.Retention.Schedule == "" { c.Retention.Schedule = "0 3 * * *" }
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutMs) * time.Millisecond
}

func (c Config) OfferTTL() time.Duration { return time.Duration(c.Redis.OfferTTLSeconds) * time.Second }

func (c Config) IsProduction() bool { return strings.EqualFold(c.Server.Environment, "production") }

// ProductionMissing lists settings that must be present in production.
func (c Config) ProductionMissing() []string {
	if !c.IsProduction() {
		return nil
	}
	var missing []string
	if c.Offer.DefaultBaseURL == "" { missing = append(missing, "offer.default_base_url") }
	if c.Notifications.FCMProjectID == "" { missing = append(missing, "notifications.fcm_project_id") }
	if c.Notifications.FCMCredentialsFile == "" { missing = append(missing, "notifications.fcm_credentials_file") }
	return missing
}
