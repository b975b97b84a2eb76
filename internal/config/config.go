package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all spyconsole configuration.
type Config struct {
	Robot     RobotConfig     `yaml:"robot"`
	Store     StoreConfig     `yaml:"store"`
	Server    ServerConfig    `yaml:"server"`
	Timeline  TimelineConfig  `yaml:"timeline"`
	Console   ConsoleConfig   `yaml:"console"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type RobotConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Retries is a pointer so an explicit 0 disables retrying.
	Retries *int `yaml:"retries"`
}

type StoreConfig struct {
	// Driver is "sqlite" or "postgres". Empty disables the archive.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	WSBuffer int    `yaml:"ws_buffer"`
}

type TimelineConfig struct {
	// Window is the review window length in seconds.
	Window float64 `yaml:"window"`
}

type ConsoleConfig struct {
	Layout   string `yaml:"timestamp_layout"`
	Location string `yaml:"location"`
}

type NotifyConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	Channel   string `yaml:"channel"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML file, applies defaults and SPYCONSOLE_* environment
// overrides, and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Robot.BaseURL == "" {
		c.Robot.BaseURL = "http://localhost:5000"
	}
	if c.Robot.Timeout == 0 {
		c.Robot.Timeout = 5 * time.Second
	}
	if c.Robot.PollInterval == 0 {
		c.Robot.PollInterval = 5 * time.Second
	}
	if c.Robot.Retries == nil {
		n := 3
		c.Robot.Retries = &n
	}
	if c.Store.Driver == "sqlite" && c.Store.DSN == "" {
		c.Store.DSN = "./data/spyconsole.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.WSBuffer == 0 {
		c.Server.WSBuffer = 16
	}
	if c.Timeline.Window == 0 {
		c.Timeline.Window = 300
	}
	if c.Console.Layout == "" {
		c.Console.Layout = "1/2/2006, 3:04:05 PM"
	}
	if c.Console.Location == "" {
		c.Console.Location = "Local"
	}
	if c.Notify.Channel == "" {
		c.Notify.Channel = "spyconsole:notify"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "spyconsole"
	}
	if c.Telemetry.SampleRatio == 0 {
		c.Telemetry.SampleRatio = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Robot.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("robot.base_url must be an http(s) URL, got %q", c.Robot.BaseURL)
	}
	if c.Robot.Timeout < 0 || c.Robot.PollInterval < 0 {
		return fmt.Errorf("robot durations must be positive")
	}
	if *c.Robot.Retries < 0 {
		return fmt.Errorf("robot.retries must not be negative")
	}
	switch c.Store.Driver {
	case "":
	case "sqlite", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Server.WSBuffer < 0 {
		return fmt.Errorf("server.ws_buffer must not be negative")
	}
	if c.Timeline.Window <= 0 {
		return fmt.Errorf("timeline.window must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("console.location: %w", err)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0, 1]")
	}
	return nil
}

// Location resolves console.location.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Console.Location)
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() error {
	setString(&c.Robot.BaseURL, "SPYCONSOLE_ROBOT_URL")
	setString(&c.Store.Driver, "SPYCONSOLE_STORE_DRIVER")
	setString(&c.Store.DSN, "SPYCONSOLE_STORE_DSN")
	setString(&c.Server.Addr, "SPYCONSOLE_ADDR")
	setString(&c.Console.Location, "SPYCONSOLE_LOCATION")
	setString(&c.Notify.RedisAddr, "SPYCONSOLE_REDIS_ADDR")
	setString(&c.Telemetry.OTLPEndpoint, "SPYCONSOLE_OTLP_ENDPOINT")
	setString(&c.Log.Level, "SPYCONSOLE_LOG_LEVEL")

	if v := os.Getenv("SPYCONSOLE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SPYCONSOLE_POLL_INTERVAL: %w", err)
		}
		c.Robot.PollInterval = d
	}
	if v := os.Getenv("SPYCONSOLE_LOG_JSON"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SPYCONSOLE_LOG_JSON: %w", err)
		}
		c.Log.JSON = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
