package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"rental-agents-service/internal/db"
	"rental-agents-service/internal/domain/agent"
	"rental-agents-service/internal/kyc"
	"rental-agents-service/internal/pkg/jwt"
	"rental-agents-service/internal/pkg/ratelimit"

	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type AppConfig struct {
	// Server
	HTTPAddr    string
	Env         string
	CORSOrigins []string

	// Storage
	StorageDriver string
	Postgres      db.PostgresConfig
	Redis         db.RedisConfig
	EventsChannel string

	// JWT
	JWT jwt.Config

	// Agents
	TrialDuration        time.Duration
	ReferralCodeAttempts int
	FrontendURL          string
	ValidateRateLimit    ratelimit.Rule

	// Identity provider
	KYC              kyc.Config
	KYCWebhookSecret string
}

// Load reads AppConfig from the environment. When CONFIG_FILE names a
// yaml, json or toml file its keys (lowercase env names) are read first and
// the environment overrides them.
func Load() (AppConfig, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := AppConfig{
		HTTPAddr:    v.GetString("http_addr"),
		Env:         v.GetString("app_env"),
		CORSOrigins: getSlice(v, "cors_origins"),

		StorageDriver: strings.ToLower(v.GetString("storage_driver")),
		Postgres: db.PostgresConfig{
			URL:             v.GetString("database_url"),
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
		},
		Redis: db.RedisConfig{
			ClusterMode: v.GetBool("redis_cluster"),
			Addresses:   getSlice(v, "redis_addr"),
			Password:    v.GetString("redis_pass"),
			PoolSize:    10,
		},
		EventsChannel: v.GetString("events_channel"),

		JWT: jwt.Config{
			PubPath:  v.GetString("jwt_public_key_path"),
			PubPEM:   v.GetString("jwt_public_key"),
			PrivPath: v.GetString("jwt_private_key_path"),
			PrivPEM:  v.GetString("jwt_private_key"),
			Issuer:   v.GetString("jwt_issuer"),
			Audience: v.GetString("jwt_audience"),
			KID:      v.GetString("jwt_kid"),
		},

		FrontendURL: v.GetString("frontend_url"),

		KYC: kyc.Config{
			BaseURL: v.GetString("kyc_base_url"),
			APIKey:  v.GetString("kyc_api_key"),
			AppID:   v.GetString("kyc_app_id"),
			Timeout: 30 * time.Second,
		},
		KYCWebhookSecret: v.GetString("kyc_webhook_secret"),
	}

	var err error
	if cfg.Redis.DB, err = getInt(v, "redis_db"); err != nil {
		return AppConfig{}, err
	}
	if cfg.ReferralCodeAttempts, err = getInt(v, "referral_code_attempts"); err != nil {
		return AppConfig{}, err
	}
	if cfg.TrialDuration, err = ParseDuration(v.GetString("trial_duration")); err != nil {
		return AppConfig{}, fmt.Errorf("invalid TRIAL_DURATION: %w", err)
	}
	if cfg.TrialDuration == 0 {
		cfg.TrialDuration = agent.DefaultTrialDuration
	}
	if cfg.ValidateRateLimit, err = ParseRate(v.GetString("validate_rate_limit")); err != nil {
		return AppConfig{}, fmt.Errorf("invalid VALIDATE_RATE_LIMIT: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("app_env", "development")
	v.SetDefault("cors_origins", "*")
	v.SetDefault("storage_driver", StoragePostgres)
	v.SetDefault("redis_cluster", false)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", "0")
	v.SetDefault("events_channel", "agent.events")
	v.SetDefault("jwt_public_key_path", "/app/secrets/jwt_public.pem")
	v.SetDefault("jwt_issuer", "rental-identity")
	v.SetDefault("jwt_audience", "rental-users")
	v.SetDefault("jwt_kid", "rental-key")
	v.SetDefault("referral_code_attempts", "10")
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("validate_rate_limit", "30/1m")

	// keys without defaults still need registering so AutomaticEnv and the
	// config file both see them
	for _, key := range []string{
		"config_file", "database_url", "redis_pass",
		"jwt_public_key", "jwt_private_key", "jwt_private_key_path",
		"trial_duration", "kyc_base_url", "kyc_api_key", "kyc_app_id", "kyc_webhook_secret",
	} {
		v.SetDefault(key, "")
	}
}

func (c AppConfig) Validate() error {
	switch c.StorageDriver {
	case StoragePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=%s", StoragePostgres)
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.ReferralCodeAttempts < 1 {
		return fmt.Errorf("REFERRAL_CODE_ATTEMPTS must be at least 1")
	}
	return nil
}

func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// ParseDuration accepts time.ParseDuration syntax plus a whole-day suffix,
// e.g. "14d". Empty input is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// ParseRate reads "<max>/<window>", e.g. "30/1m".
func ParseRate(s string) (ratelimit.Rule, error) {
	maxPart, windowPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return ratelimit.Rule{}, fmt.Errorf("expected <max>/<window>, got %q", s)
	}
	limit, err := strconv.ParseInt(maxPart, 10, 64)
	if err != nil || limit < 1 {
		return ratelimit.Rule{}, fmt.Errorf("bad request count %q", maxPart)
	}
	window, err := ParseDuration(windowPart)
	if err != nil || window <= 0 {
		return ratelimit.Rule{}, fmt.Errorf("bad window %q", windowPart)
	}
	return ratelimit.Rule{Max: limit, Window: window}, nil
}

// --- Helper functions ---

func getInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", strings.ToUpper(key), err)
	}
	return n, nil
}

// getSlice splits a comma separated value. Values from a config file may
// already be lists.
func getSlice(v *viper.Viper, key string) []string {
	var parts []string
	switch raw := v.Get(key).(type) {
	case []interface{}:
		for _, p := range raw {
			parts = append(parts, fmt.Sprint(p))
		}
	default:
		parts = strings.Split(v.GetString(key), ",")
	}

	var out []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
