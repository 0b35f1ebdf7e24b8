// Package config holds the YAML configuration for the coap-light node.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gridlite/coap-light/pkg/message"
)

// Config is the complete node configuration.
type Config struct {
	Server  ServerConfig `yaml:"server"`
	Client  ClientConfig `yaml:"client"`
	Logging LogConfig    `yaml:"logging"`
}

// ServerConfig configures the resource server.
type ServerConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	MaxMessageSize int      `yaml:"max_message_size"`
	PollInterval   Duration `yaml:"poll_interval"`
}

// ClientConfig configures the bridge client session.
type ClientConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	RequestTimeout Duration `yaml:"request_timeout"`
	PollInterval   Duration `yaml:"poll_interval"`
	StepDelay      Duration `yaml:"step_delay"`
	OnTimeSeconds  int      `yaml:"on_time_seconds"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given, matching the
// original deployment: CoAP default port, 256-byte messages, 10 second step
// delay in the demo sequence.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":5683",
			MaxMessageSize: message.MaxMessageSize,
			PollInterval:   Duration(10 * time.Millisecond),
		},
		Client: ClientConfig{
			Endpoint:       "localhost:5683",
			RequestTimeout: Duration(10 * time.Second),
			PollInterval:   Duration(20 * time.Millisecond),
			StepDelay:      Duration(10 * time.Second),
			OnTimeSeconds:  20,
		},
		Logging: LogConfig{Level: "info"},
	}
}

// Load reads a YAML config file, applies defaults for absent fields and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs validation of the node configuration.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return fmt.Errorf("config: server: %w", err)
	}
	if err := c.Client.validate(); err != nil {
		return fmt.Errorf("config: client: %w", err)
	}
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("config: logging: %w", err)
	}
	return nil
}

func (c *ServerConfig) validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen_addr %q: %w", c.ListenAddr, err)
	}
	if c.MaxMessageSize < 16 || c.MaxMessageSize > 65535 {
		return fmt.Errorf("max_message_size %d out of range [16, 65535]", c.MaxMessageSize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	return nil
}

func (c *ClientConfig) validate() error {
	host, _, err := net.SplitHostPort(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if host == "" {
		return fmt.Errorf("endpoint %q is missing a host", c.Endpoint)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.OnTimeSeconds < 0 {
		return fmt.Errorf("on_time_seconds must not be negative, got %d", c.OnTimeSeconds)
	}
	return nil
}

func (c *LogConfig) validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unsupported log level %q, must be one of: debug, info, warn, error", c.Level)
}
