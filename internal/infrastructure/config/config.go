package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Entity Receiver.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Receiver  ReceiverConfig  `yaml:"receiver"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ReceiverConfig contains the UDP listener and entity lifecycle settings.
type ReceiverConfig struct {
	// UDPPort is the port the listener binds to. Valid range: 1024-65535.
	UDPPort int `yaml:"udp_port"`

	// BroadcasterName is the friendly name of the expected sender.
	// Informational only; it is never used to filter inbound messages.
	BroadcasterName string `yaml:"broadcaster_name"`

	// PollIntervalMs is the receive cadence in milliseconds (10-10000).
	// Each receive attempt waits at most this long, which bounds shutdown
	// latency to roughly one interval.
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// StalenessTimeout is the number of seconds after which an entity that
	// has received no updates is evicted by the sweep.
	StalenessTimeout int `yaml:"staleness_timeout"`

	// SweepInterval is the number of seconds between staleness sweeps.
	// Staleness detection does not need to be as tight as packet intake.
	SweepInterval int `yaml:"sweep_interval"`

	// MaxDatagramSize is the receive buffer size in bytes.
	MaxDatagramSize int `yaml:"max_datagram_size"`

	// Enabled controls whether the listener starts at boot. The listener
	// can still be toggled at runtime via the API.
	Enabled bool `yaml:"enabled"`
}

// DatabaseConfig contains SQLite database settings for the state history store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionDays bounds the state history table: rows older
	// than this many days are pruned periodically. Zero disables pruning.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for entity telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default values for the receiver section. Ports and timings match the
// broadcaster protocol's conventional defaults.
const (
	DefaultUDPPort          = 8888
	DefaultBroadcasterName  = "Remote Home Assistant"
	DefaultPollIntervalMs   = 100
	DefaultStalenessTimeout = 600 // seconds; entities unseen for 10 minutes are evicted
	DefaultSweepInterval    = 30  // seconds
	DefaultMaxDatagramSize  = 4096
)

// DefaultHistoryRetentionDays bounds the state history table out of the box.
const DefaultHistoryRetentionDays = 30

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ENTRECEIVER_SECTION_KEY
// For example: ENTRECEIVER_RECEIVER_PORT, ENTRECEIVER_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Receiver: ReceiverConfig{
			UDPPort:          DefaultUDPPort,
			BroadcasterName:  DefaultBroadcasterName,
			PollIntervalMs:   DefaultPollIntervalMs,
			StalenessTimeout: DefaultStalenessTimeout,
			SweepInterval:    DefaultSweepInterval,
			MaxDatagramSize:  DefaultMaxDatagramSize,
			Enabled:          true,
		},
		Database: DatabaseConfig{
			Path:                 "./data/entreceiver.db",
			WALMode:              true,
			BusyTimeout:          5,
			HistoryRetentionDays: DefaultHistoryRetentionDays,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "entreceiver-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ENTRECEIVER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Receiver
	if v := os.Getenv("ENTRECEIVER_RECEIVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Receiver.UDPPort = port
		}
	}
	if v := os.Getenv("ENTRECEIVER_RECEIVER_BROADCASTER_NAME"); v != "" {
		cfg.Receiver.BroadcasterName = v
	}
	if v := os.Getenv("ENTRECEIVER_RECEIVER_POLL_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Receiver.PollIntervalMs = ms
		}
	}

	// Database
	if v := os.Getenv("ENTRECEIVER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ENTRECEIVER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ENTRECEIVER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ENTRECEIVER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ENTRECEIVER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("ENTRECEIVER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Receiver validation bounds.
const (
	minUDPPort        = 1024
	maxUDPPort        = 65535
	minPollIntervalMs = 10
	maxPollIntervalMs = 10000
)

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Receiver validation
	if c.Receiver.UDPPort < minUDPPort || c.Receiver.UDPPort > maxUDPPort {
		errs = append(errs, fmt.Sprintf("receiver.udp_port must be between %d and %d", minUDPPort, maxUDPPort))
	}
	if c.Receiver.PollIntervalMs < minPollIntervalMs || c.Receiver.PollIntervalMs > maxPollIntervalMs {
		errs = append(errs, fmt.Sprintf("receiver.poll_interval_ms must be between %d and %d", minPollIntervalMs, maxPollIntervalMs))
	}
	if c.Receiver.StalenessTimeout <= 0 {
		errs = append(errs, "receiver.staleness_timeout must be positive")
	}
	if c.Receiver.SweepInterval <= 0 {
		errs = append(errs, "receiver.sweep_interval must be positive")
	}
	if c.Receiver.MaxDatagramSize <= 0 {
		errs = append(errs, "receiver.max_datagram_size must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.HistoryRetentionDays < 0 {
		errs = append(errs, "database.history_retention_days must not be negative")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the listener poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Receiver.PollIntervalMs) * time.Millisecond
}

// GetStalenessTimeout returns the entity staleness timeout as a Duration.
func (c *Config) GetStalenessTimeout() time.Duration {
	return time.Duration(c.Receiver.StalenessTimeout) * time.Second
}

// GetHistoryRetention returns the state history retention window as a
// Duration. Zero means history is kept forever.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Database.HistoryRetentionDays) * 24 * time.Hour
}

// GetSweepInterval returns the staleness sweep cadence as a Duration.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Receiver.SweepInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
