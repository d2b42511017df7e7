package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opendlt/movecall/internal/crypto/signer"
	"github.com/opendlt/movecall/internal/logz"
	"github.com/opendlt/movecall/internal/netprofiles"
)

const (
	DefaultNetwork          = "local"
	DefaultExpirationWindow = "60s"
	DefaultMaxGasAmount     = 200000
	DefaultGasUnitPrice     = 100
	DefaultPollInterval     = "500ms"
	DefaultWaitTimeout      = "30s"
)

// Config represents the movecall configuration
type Config struct {
	Network           string              `yaml:"network"`
	NodeURL           string              `yaml:"nodeURL"`
	ChainID           uint8               `yaml:"chainID"` // 0 means "ask the node"
	ExpirationWindow  string              `yaml:"expirationWindow"`
	MaxGasAmount      uint64              `yaml:"maxGasAmount"`
	GasUnitPrice      uint64              `yaml:"gasUnitPrice"`
	PollInterval      string              `yaml:"pollInterval"`
	WaitTimeout       string              `yaml:"waitTimeout"`
	RequestsPerSecond float64             `yaml:"requestsPerSecond"` // 0 disables throttling
	Signer            signer.SignerConfig `yaml:"signer"`
	Journal           struct {
		Backend string `yaml:"backend"` // "memory" | "badger"
		Path    string `yaml:"path"`
	} `yaml:"journal"`
	LogLevel string `yaml:"logLevel"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses YAML configuration data, applying defaults and validation
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.setDefaults(); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var config Config
	// The default network is always present in the profile table
	_ = config.setDefaults()
	return &config
}

// setDefaults sets default values for empty fields
func (c *Config) setDefaults() error {
	if c.Network == "" && c.NodeURL == "" {
		c.Network = DefaultNetwork
	}

	// An explicit node URL wins over the network profile
	if c.Network != "" {
		if !netprofiles.IsValidNetwork(c.Network) {
			return fmt.Errorf("unknown network %q, available: %v", c.Network, netprofiles.GetAvailableNetworks())
		}
		profile, _ := netprofiles.GetProfile(c.Network)
		if c.NodeURL == "" {
			c.NodeURL = profile.NodeURL
		}
		if c.ChainID == 0 && profile.HasFixedChainID() {
			c.ChainID = profile.ChainID
		}
	}

	if c.ExpirationWindow == "" {
		c.ExpirationWindow = DefaultExpirationWindow
	}
	if c.MaxGasAmount == 0 {
		c.MaxGasAmount = DefaultMaxGasAmount
	}
	if c.GasUnitPrice == 0 {
		c.GasUnitPrice = DefaultGasUnitPrice
	}
	if c.PollInterval == "" {
		c.PollInterval = DefaultPollInterval
	}
	if c.WaitTimeout == "" {
		c.WaitTimeout = DefaultWaitTimeout
	}

	if c.Signer.Type == "" {
		c.Signer.Type = "dev"
	}

	if c.Journal.Backend == "" {
		c.Journal.Backend = "memory"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/journal"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

// validate performs basic validation of config values
func (c *Config) validate() error {
	u, err := url.Parse(c.NodeURL)
	if err != nil {
		return fmt.Errorf("invalid node URL %s: %w", c.NodeURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("node URL must be http or https, got %q", c.NodeURL)
	}

	window, err := time.ParseDuration(c.ExpirationWindow)
	if err != nil {
		return fmt.Errorf("invalid expiration window %s: %w", c.ExpirationWindow, err)
	}
	if window < time.Second {
		return fmt.Errorf("expiration window must be at least 1s, got %s", window)
	}

	poll, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid poll interval %s: %w", c.PollInterval, err)
	}
	if poll <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", poll)
	}

	if _, err := time.ParseDuration(c.WaitTimeout); err != nil {
		return fmt.Errorf("invalid wait timeout %s: %w", c.WaitTimeout, err)
	}

	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative, got %v", c.RequestsPerSecond)
	}

	switch c.Signer.Type {
	case "file", "env", "key":
		if c.Signer.Key == "" {
			return fmt.Errorf("signer type %s requires a key", c.Signer.Type)
		}
	case "dev":
	default:
		return fmt.Errorf("unknown signer type %s", c.Signer.Type)
	}

	if c.Journal.Backend != "memory" && c.Journal.Backend != "badger" {
		return fmt.Errorf("journal backend must be 'memory' or 'badger', got %s", c.Journal.Backend)
	}
	if c.Journal.Backend == "badger" && c.Journal.Path == "" {
		return fmt.Errorf("journal path cannot be empty")
	}

	if _, err := logz.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// GetExpirationWindow returns the expiration window as a time.Duration
func (c *Config) GetExpirationWindow() time.Duration {
	duration, err := time.ParseDuration(c.ExpirationWindow)
	if err != nil {
		return 60 * time.Second
	}
	return duration
}

// GetPollInterval returns the poll interval as a time.Duration
func (c *Config) GetPollInterval() time.Duration {
	duration, err := time.ParseDuration(c.PollInterval)
	if err != nil {
		return 500 * time.Millisecond
	}
	return duration
}

// GetWaitTimeout returns the wait timeout as a time.Duration
func (c *Config) GetWaitTimeout() time.Duration {
	duration, err := time.ParseDuration(c.WaitTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return duration
}

// GetLogLevel returns the parsed log level
func (c *Config) GetLogLevel() logz.LogLevel {
	level, _ := logz.ParseLevel(c.LogLevel)
	return level
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Network: %s, NodeURL: %s, ChainID: %d, ExpirationWindow: %s, MaxGas: %d, GasPrice: %d}",
		c.Network, c.NodeURL, c.ChainID, c.ExpirationWindow, c.MaxGasAmount, c.GasUnitPrice)
}
