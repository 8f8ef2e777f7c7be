// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// callbackPath はOAuthコールバックのパス。
const callbackPath = "/api/auth/google/callback"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" required:"true"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" required:"true"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`

	// Session
	SessionTTL  time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	BanDuration time.Duration `envconfig:"BAN_DURATION" default:"96h"`

	// Outbound fetch (preview, favicon, import)
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchMaxSize   int64         `envconfig:"FETCH_MAX_SIZE" default:"5242880"`
	ImportMaxLinks int           `envconfig:"IMPORT_MAX_LINKS" default:"50"`

	// Rate Limit (req/min)
	RateLimitGeneral int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitWrite   int `envconfig:"RATE_LIMIT_WRITE" default:"30"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL    string `envconfig:"BASE_URL" required:"true"`
	AppEnv     string `envconfig:"APP_ENV" default:"development"`

	// Cookie
	CookieDomain string `envconfig:"COOKIE_DOMAIN"`
	CookieSecure bool   `ignored:"true"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:5173"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	// envconfigのrequiredは未定義のみ検出するため、空文字もここで弾く
	var missing []string
	for key, val := range map[string]string{
		"DATABASE_URL":         cfg.DatabaseURL,
		"GOOGLE_CLIENT_ID":     cfg.GoogleClientID,
		"GOOGLE_CLIENT_SECRET": cfg.GoogleClientSecret,
		"BASE_URL":             cfg.BaseURL,
	} {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.GoogleRedirectURL == "" {
		cfg.GoogleRedirectURL = cfg.BaseURL + callbackPath
	}
	cfg.CookieSecure = cfg.IsProduction() || strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は期間・件数・レート上限が正の値であることを確認する。
func (c *Config) validate() error {
	for key, d := range map[string]time.Duration{
		"SESSION_TTL":   c.SessionTTL,
		"BAN_DURATION":  c.BanDuration,
		"FETCH_TIMEOUT": c.FetchTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", key, d)
		}
	}
	for key, n := range map[string]int64{
		"FETCH_MAX_SIZE":     c.FetchMaxSize,
		"IMPORT_MAX_LINKS":   int64(c.ImportMaxLinks),
		"RATE_LIMIT_GENERAL": int64(c.RateLimitGeneral),
		"RATE_LIMIT_WRITE":   int64(c.RateLimitWrite),
	} {
		if n <= 0 {
			return fmt.Errorf("%s must be positive: %d", key, n)
		}
	}
	return nil
}

// IsProduction は本番環境かどうかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SessionMaxAge はセッションCookieのMax-Age（秒）を返す。
func (c *Config) SessionMaxAge() int {
	return int(c.SessionTTL / time.Second)
}
