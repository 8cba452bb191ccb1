package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "https://discord.com/api"
	DefaultAPIVersion        = 10
	DefaultAPITimeout        = 15 * time.Second
	DefaultRetryOffset       = 500 * time.Millisecond
	DefaultGatewayURL        = "wss://gateway.discord.gg"
	DefaultGatewayVersion    = 10
	DefaultReconnectDelay    = 1 * time.Second
	DefaultMaxReconnectDelay = 60 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultSendRate          = 120
	DefaultSendBurst         = 10
	DefaultStoreDriver       = DriverMemory
	DefaultSQLitePath        = "data/sessions.db"
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 4
	DefaultMinConns          = 1
	DefaultStatsAddr         = "localhost:6379"
	DefaultStatsPrefix       = "discord:ratelimit"
	DefaultStatsTTL          = 24 * time.Hour
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Version == 0 {
		c.API.Version = DefaultAPIVersion
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RetryOffset == 0 {
		c.API.RetryOffset = DefaultRetryOffset
	}

	// Gateway defaults
	if c.Gateway.URL == "" {
		c.Gateway.URL = DefaultGatewayURL
	}
	if c.Gateway.Version == 0 {
		c.Gateway.Version = DefaultGatewayVersion
	}
	if c.Gateway.ReconnectDelay == 0 {
		c.Gateway.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Gateway.MaxReconnectDelay == 0 {
		c.Gateway.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.SendRate == 0 {
		c.Gateway.SendRate = DefaultSendRate
	}
	if c.Gateway.SendBurst == 0 {
		c.Gateway.SendBurst = DefaultSendBurst
	}

	// Session store defaults
	if c.SessionStore.Driver == "" {
		c.SessionStore.Driver = DefaultStoreDriver
	}
	if c.SessionStore.Driver == DriverSQLite && c.SessionStore.Path == "" {
		c.SessionStore.Path = DefaultSQLitePath
	}
	if c.SessionStore.Driver == DriverPostgres {
		applyDBDefaults(&c.SessionStore.Postgres)
	}

	// Rate stats defaults
	if c.RateStats.Addr == "" {
		c.RateStats.Addr = DefaultStatsAddr
	}
	if c.RateStats.Prefix == "" {
		c.RateStats.Prefix = DefaultStatsPrefix
	}
	if c.RateStats.TTL == 0 {
		c.RateStats.TTL = DefaultStatsTTL
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
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
