package config

import "time"

// Config is the root configuration for a bot process.
type Config struct {
	Client       ClientConfig       `yaml:"client" toml:"client"`
	API          APIConfig          `yaml:"api" toml:"api"`
	Gateway      GatewayConfig      `yaml:"gateway" toml:"gateway"`
	SessionStore SessionStoreConfig `yaml:"session_store" toml:"session_store"`
	RateStats    RateStatsConfig    `yaml:"rate_stats" toml:"rate_stats"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
}

// ClientConfig identifies the bot.
type ClientConfig struct {
	Token         string `yaml:"token" toml:"token"`
	TokenFile     string `yaml:"token_file" toml:"token_file"` // read when token is empty
	ApplicationID string `yaml:"application_id" toml:"application_id"`
	Intents       int    `yaml:"intents" toml:"intents"`
}

// APIConfig holds REST client settings.
type APIConfig struct {
	BaseURL     string        `yaml:"base_url" toml:"base_url"`
	Version     int           `yaml:"version" toml:"version"`
	UserAgent   string        `yaml:"user_agent" toml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout"`
	RetryOffset time.Duration `yaml:"retry_offset" toml:"retry_offset"` // added to every 429 wait
}

// GatewayConfig holds gateway session settings.
type GatewayConfig struct {
	URL               string        `yaml:"url" toml:"url"` // used when the lookup fails
	Version           int           `yaml:"version" toml:"version"`
	Compress          *bool         `yaml:"compress" toml:"compress"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay" toml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay" toml:"max_reconnect_delay"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout" toml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	SendRate          int           `yaml:"send_rate" toml:"send_rate"` // payloads per minute
	SendBurst         int           `yaml:"send_burst" toml:"send_burst"`
	KeepSession       bool          `yaml:"keep_session" toml:"keep_session"`
}

// CompressEnabled reports whether zlib-stream compression is on. It
// defaults to true.
func (g GatewayConfig) CompressEnabled() bool {
	return g.Compress == nil || *g.Compress
}

// Session store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SessionStoreConfig selects where resumable sessions are kept.
type SessionStoreConfig struct {
	Driver   string   `yaml:"driver" toml:"driver"`
	Path     string   `yaml:"path" toml:"path"` // sqlite only
	Postgres DBConfig `yaml:"postgres" toml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"ssl_mode" toml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns" toml:"max_conns"`
	MinConns int    `yaml:"min_conns" toml:"min_conns"`
}

// RateStatsConfig holds the Redis rate limit counters.
type RateStatsConfig struct {
	Enabled  bool          `yaml:"enabled" toml:"enabled"`
	Addr     string        `yaml:"addr" toml:"addr"`
	Password string        `yaml:"password" toml:"password"`
	DB       int           `yaml:"db" toml:"db"`
	Prefix   string        `yaml:"prefix" toml:"prefix"`
	TTL      time.Duration `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}
