package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/crashline/internal/config"
)

// ApplicationName tags audit connections in pg_stat_activity.
const ApplicationName = "crashline"

// BuildConnString builds a postgres:// URL for the audit database. User and
// password are escaped, so any characters are allowed.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", ApplicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
