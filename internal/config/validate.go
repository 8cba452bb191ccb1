package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Client.Token == "" && c.Client.TokenFile == "" {
		return errors.New("client.token or client.token_file is required")
	}
	if c.Client.Intents < 0 {
		return errors.New("client.intents must be >= 0")
	}

	if c.API.Version < 1 {
		return errors.New("api.version must be >= 1")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.RetryOffset < 0 {
		return errors.New("api.retry_offset must be >= 0")
	}

	if c.Gateway.Version < 1 {
		return errors.New("gateway.version must be >= 1")
	}
	if c.Gateway.ReconnectDelay <= 0 {
		return errors.New("gateway.reconnect_delay must be > 0")
	}
	if c.Gateway.MaxReconnectDelay < c.Gateway.ReconnectDelay {
		return fmt.Errorf("gateway.max_reconnect_delay (%s) cannot be less than reconnect_delay (%s)",
			c.Gateway.MaxReconnectDelay, c.Gateway.ReconnectDelay)
	}
	if c.Gateway.SendRate < 0 {
		return errors.New("gateway.send_rate must be >= 0")
	}

	switch c.SessionStore.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.SessionStore.Path == "" {
			return errors.New("session_store.path is required")
		}
	case DriverPostgres:
		if err := c.SessionStore.Postgres.validate("session_store.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("session_store.driver must be one of memory, sqlite, postgres, got %q", c.SessionStore.Driver)
	}
	if c.SessionStore.Driver != DriverMemory && c.Client.ApplicationID == "" {
		return errors.New("client.application_id is required for a persistent session store")
	}

	if c.RateStats.Enabled && c.RateStats.Addr == "" {
		return errors.New("rate_stats.addr is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
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
