package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *ClientConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.API.WSURL == "" {
		return errors.New("api.ws_url is required")
	}
	u, err := url.Parse(c.API.WSURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("api.ws_url must be a ws:// or wss:// url, got %q", c.API.WSURL)
	}
	if c.API.RestURL != "" && !strings.HasPrefix(c.API.RestURL, "http") {
		return fmt.Errorf("api.rest_url must be an http(s) url, got %q", c.API.RestURL)
	}

	if c.Session.ReconnectBase <= 0 {
		return errors.New("session.reconnect_base must be > 0")
	}
	if c.Session.ReconnectStep < 0 || c.Session.ReconnectJitter < 0 {
		return errors.New("session.reconnect_step and session.reconnect_jitter must be >= 0")
	}
	if c.Session.ReconnectCap < c.Session.ReconnectBase {
		return fmt.Errorf("session.reconnect_cap (%v) cannot be below reconnect_base (%v)", c.Session.ReconnectCap, c.Session.ReconnectBase)
	}
	if c.Session.DisconnectGrace <= 0 {
		return errors.New("session.disconnect_grace must be > 0")
	}

	if c.Betting.MinStake <= 0 {
		return errors.New("betting.min_stake must be > 0")
	}
	if c.Betting.MaxStake != 0 && c.Betting.MaxStake < c.Betting.MinStake {
		return fmt.Errorf("betting.max_stake (%v) cannot be below min_stake (%v)", c.Betting.MaxStake, c.Betting.MinStake)
	}

	if c.Feed.Capacity < 1 {
		return errors.New("feed.capacity must be >= 1")
	}
	if c.History.Capacity < 1 {
		return errors.New("history.capacity must be >= 1")
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache.addr is required when cache is enabled")
	}

	if c.Database.Enabled {
		if err := c.Database.Audit.validate("database.audit"); err != nil {
			return err
		}
		if c.Writers.BatchSize < 1 {
			return errors.New("writers.batch_size must be >= 1")
		}
		if c.Writers.BufferSize < 1 {
			return errors.New("writers.buffer_size must be >= 1")
		}
	}

	if c.Metrics.Enabled && !c.Status.Enabled {
		return errors.New("metrics are served by the status server; enable status as well")
	}
	if c.Metrics.Path != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
