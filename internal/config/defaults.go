package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout          = 10 * time.Second
	DefaultMaxRetries          = 3
	DefaultReconnectBase       = 600 * time.Millisecond
	DefaultReconnectStep       = 250 * time.Millisecond
	DefaultReconnectJitter     = 400 * time.Millisecond
	DefaultReconnectCap        = 2500 * time.Millisecond
	DefaultDisconnectGrace     = 1500 * time.Millisecond
	DefaultHandshakeTimeout    = 10 * time.Second
	DefaultPingInterval        = 15 * time.Second
	DefaultPingTimeout         = 45 * time.Second
	DefaultWriteTimeout        = 1 * time.Second
	DefaultSocketBufferSize    = 1024
	DefaultMinStake            = 1.0
	DefaultSubmitInterval      = 1 * time.Second
	DefaultAutoCashoutCooldown = 400 * time.Millisecond
	DefaultFeedCapacity        = 50
	DefaultHistoryCapacity     = 50
	DefaultBalanceRefresh      = 30 * time.Second
	DefaultBalanceTimeout      = 5 * time.Second
	DefaultCacheAddr           = "localhost:6379"
	DefaultCacheTTL            = 24 * time.Hour
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 4
	DefaultMinConns            = 1
	DefaultBatchSize           = 100
	DefaultFlushInterval       = 1 * time.Second
	DefaultBufferSize          = 1000
	DefaultStatusAddr          = "127.0.0.1:8089"
	DefaultMetricsPath         = "/metrics"
)

func (c *ClientConfig) applyDefaults() {
	// API defaults
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Session defaults
	if c.Session.ReconnectBase == 0 {
		c.Session.ReconnectBase = DefaultReconnectBase
	}
	if c.Session.ReconnectStep == 0 {
		c.Session.ReconnectStep = DefaultReconnectStep
	}
	if c.Session.ReconnectJitter == 0 {
		c.Session.ReconnectJitter = DefaultReconnectJitter
	}
	if c.Session.ReconnectCap == 0 {
		c.Session.ReconnectCap = DefaultReconnectCap
	}
	if c.Session.DisconnectGrace == 0 {
		c.Session.DisconnectGrace = DefaultDisconnectGrace
	}
	if c.Session.HandshakeTimeout == 0 {
		c.Session.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Session.PingInterval == 0 {
		c.Session.PingInterval = DefaultPingInterval
	}
	if c.Session.PingTimeout == 0 {
		c.Session.PingTimeout = DefaultPingTimeout
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}
	if c.Session.BufferSize == 0 {
		c.Session.BufferSize = DefaultSocketBufferSize
	}

	// Betting defaults
	if c.Betting.MinStake == 0 {
		c.Betting.MinStake = DefaultMinStake
	}
	if c.Betting.SubmitInterval == 0 {
		c.Betting.SubmitInterval = DefaultSubmitInterval
	}
	if c.Betting.AutoCashoutCooldown == 0 {
		c.Betting.AutoCashoutCooldown = DefaultAutoCashoutCooldown
	}

	if c.Feed.Capacity == 0 {
		c.Feed.Capacity = DefaultFeedCapacity
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = DefaultHistoryCapacity
	}

	// Balance defaults
	if c.Balance.RefreshInterval == 0 {
		c.Balance.RefreshInterval = DefaultBalanceRefresh
	}
	if c.Balance.RefreshTimeout == 0 {
		c.Balance.RefreshTimeout = DefaultBalanceTimeout
	}

	// Cache defaults
	if c.Cache.Addr == "" {
		c.Cache.Addr = DefaultCacheAddr
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	// Database defaults
	applyDBDefaults(&c.Database.Audit)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	if c.Status.Addr == "" {
		c.Status.Addr = DefaultStatusAddr
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
