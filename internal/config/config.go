package config

import "time"

// ClientConfig is the root configuration for a crash client instance.
type ClientConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Betting  BettingConfig  `yaml:"betting"`
	Feed     FeedConfig     `yaml:"feed"`
	History  HistoryConfig  `yaml:"history"`
	Balance  BalanceConfig  `yaml:"balance"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Writers  WritersConfig  `yaml:"writers"`
	Status   StatusConfig   `yaml:"status"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this client.
type InstanceConfig struct {
	ID          string `yaml:"id"`
	PlayerLabel string `yaml:"player_label"`
}

// APIConfig holds game server endpoints and credentials.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"` // per-mode game socket, e.g. wss://host/ws/crash
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// SessionConfig holds reconnect and liveness settings.
type SessionConfig struct {
	ReconnectBase    time.Duration `yaml:"reconnect_base"`
	ReconnectStep    time.Duration `yaml:"reconnect_step"`
	ReconnectJitter  time.Duration `yaml:"reconnect_jitter"`
	ReconnectCap     time.Duration `yaml:"reconnect_cap"`
	DisconnectGrace  time.Duration `yaml:"disconnect_grace"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// BettingConfig holds stake limits and command pacing.
type BettingConfig struct {
	MinStake            float64       `yaml:"min_stake"`
	MaxStake            float64       `yaml:"max_stake"` // 0 = unlimited
	SubmitInterval      time.Duration `yaml:"submit_interval"`
	AutoCashoutCooldown time.Duration `yaml:"auto_cashout_cooldown"`
	DeviceFingerprint   string        `yaml:"device_fingerprint"` // generated when empty
}

// FeedConfig holds live feed settings.
type FeedConfig struct {
	Capacity int `yaml:"capacity"`
}

// HistoryConfig holds crash history settings.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// BalanceConfig holds wallet refresh settings.
type BalanceConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RefreshTimeout  time.Duration `yaml:"refresh_timeout"`
}

// CacheConfig holds the optional Redis balance cache.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// DatabaseConfig holds the optional audit database.
type DatabaseConfig struct {
	Enabled bool     `yaml:"enabled"`
	Audit   DBConfig `yaml:"audit"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// StatusConfig holds the local read-only status server.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}
