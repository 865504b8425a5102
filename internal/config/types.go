package config

import "os"

// Config is the full service configuration.
//
// Structure lives in the config file (yaml or json, strict decode).
// Secrets (bot token, VAPID keys, DSNs, broadcast password) are left out of
// the file and picked up from the environment (.env supported) so the file
// can be committed and hot-reloaded safely.
type Config struct {
	HTTP     HTTPConfig     `json:"http"`
	Telegram TelegramConfig `json:"telegram"`
	Push     PushConfig     `json:"push"`
	Source   SourceConfig   `json:"source"`
	Notify   NotifyConfig   `json:"notify"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Redis    RedisConfig    `json:"redis"`
	Logging  LoggingConfig  `json:"logging"`
}

type HTTPConfig struct {
	Addr string `json:"addr"` // default ":8080"
	// BasePath prefixes all API routes (default "/api").
	BasePath string `json:"base_path,omitempty"`
}

type TelegramConfig struct {
	// Token comes from BOT_TOKEN when empty. Empty token disables the chat channel.
	Token string `json:"token,omitempty"`
	// PollTimeout is a Go duration string (default "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SiteURL is linked from /queue and /start replies.
	SiteURL string `json:"site_url,omitempty"`
}

type PushConfig struct {
	// VAPID keys come from VAPID_PUBLIC_KEY / VAPID_PRIVATE_KEY when empty.
	// Missing keys disable the push channel.
	VAPIDPublicKey  string `json:"vapid_public_key,omitempty"`
	VAPIDPrivateKey string `json:"vapid_private_key,omitempty"`
	// Subscriber is the VAPID contact (mailto: URL).
	Subscriber string `json:"subscriber,omitempty"`
	// RatePerSec throttles outgoing push sends (0 = default 20).
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// TTL is the push message TTL in seconds (0 = default 3600).
	TTL int `json:"ttl,omitempty"`
}

// SourceConfig describes the upstream timetable page.
type SourceConfig struct {
	// URL of the schedule page. Empty falls back to the known provider page.
	URL string `json:"url,omitempty"`
	// FetchTimeout is a Go duration string (default "30s").
	FetchTimeout string `json:"fetch_timeout,omitempty"`
	// CacheEnabled serves per-queue rows from the 5-minute page cache
	// instead of hitting the page once per queue per cycle.
	CacheEnabled bool `json:"cache_enabled"`
	// CacheSpec is the cron spec of the cache refresh job (default "*/5 * * * *").
	CacheSpec string `json:"cache_spec,omitempty"`
}

type NotifyConfig struct {
	// Offline disables the notify cycle entirely (manual broadcasts still work).
	Offline bool `json:"offline,omitempty"`
	// CycleSpec is the cron spec of the notify cycle (default "*/30 * * * *").
	CycleSpec string `json:"cycle_spec,omitempty"`
	// DefaultQueue is the canonical queue code used when input cannot be parsed.
	DefaultQueue int `json:"default_queue,omitempty"` // default 11
	// BroadcastPassword gates POST /notify; comes from NOTIFY_PASS when empty.
	BroadcastPassword string `json:"broadcast_password,omitempty"`
}

// StorageConfig controls the durable subscriber store.
//
// Driver values: "postgres", "sqlite", "" or "none" (disabled).
// DSN comes from DATABASE_URL when empty.
type StorageConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn,omitempty"`
	// Path is the database file for the sqlite driver.
	Path string `json:"path,omitempty"`
	// ForceDB loads subscribers from the store at startup even when the
	// Redis mirror is warm.
	ForceDB bool `json:"force_db,omitempty"`
}

type RedisConfig struct {
	// URL comes from REDIS_URL when empty. Empty disables the mirror.
	URL string `json:"url,omitempty"`
}

type LoggingConfig struct {
	Level   string     `json:"level"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ApplyEnv fills secret fields from the environment when the file left them
// empty. Called once after Load(); hot reloads keep the same secrets.
func (c *Config) ApplyEnv() {
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("BOT_TOKEN")
	}
	if c.Push.VAPIDPublicKey == "" {
		c.Push.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	}
	if c.Push.VAPIDPrivateKey == "" {
		c.Push.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")
	}
	if c.Notify.BroadcastPassword == "" {
		c.Notify.BroadcastPassword = os.Getenv("NOTIFY_PASS")
	}
	if c.Storage != nil && c.Storage.DSN == "" {
		c.Storage.DSN = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
}
