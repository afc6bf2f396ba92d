package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Clock
	Timezone string // 暦日境界の解釈に使うIANAタイムゾーン名

	// Streak
	StreakMinMinutes int           // アクティブ日と判定する最低学習分数
	FreezeWindow     time.Duration // フリーズ1回が保護する時間幅

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitEvents  int

	// Sweeper
	SweeperInterval   time.Duration // 放置セッション掃除の実行間隔
	SessionStaleAfter time.Duration // オープンセッションを放置とみなすまでの時間

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定、またはTIMEZONEが不正な場合はエラーを返す。
func Load() (*Config, error) {
	// ローカル開発用に.envがあれば読み込む（本番では存在しない）
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variable is not set: DATABASE_URL")
	}

	cfg.Timezone = getEnvString("TIMEZONE", "UTC")
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	cfg.StreakMinMinutes = getEnvInt("STREAK_MIN_MINUTES", 15)
	cfg.FreezeWindow = getEnvDuration("FREEZE_WINDOW", 24*time.Hour)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 240)
	cfg.RateLimitEvents = getEnvInt("RATE_LIMIT_EVENTS", 60)
	cfg.SweeperInterval = getEnvDuration("SWEEPER_INTERVAL", 24*time.Hour)
	cfg.SessionStaleAfter = getEnvDuration("SESSION_STALE_AFTER", 12*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// Location はTimezoneを解決したtime.Locationを返す。
// Loadで検証済みのため、万一の解決失敗時はUTCを返す。
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
