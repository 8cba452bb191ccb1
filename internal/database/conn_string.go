package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/discord-core/internal/config"
	"github.com/rickgao/discord-core/internal/version"
)

// BuildConnString builds a PostgreSQL connection URL from config. The
// password is omitted when empty so pgpass and PGPASSWORD still apply.
func BuildConnString(cfg config.DBConfig) string {
	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Name,
	}
	if cfg.Password == "" {
		u.User = url.User(cfg.User)
	} else {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", version.Name)
	u.RawQuery = q.Encode()

	return u.String()
}
