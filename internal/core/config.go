package core

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire proxy configuration.
type Config struct {
	Proxy       ProxyConfig       `yaml:"proxy"`
	Backend     BackendConfig     `yaml:"backend"`
	Limits      LimitsConfig      `yaml:"limits"`
	SecurityLog SecurityLogConfig `yaml:"security_log"`
	Bus         BusConfig         `yaml:"bus"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ProxyConfig holds the inbound listener and upstream settings.
type ProxyConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Upstream  string `yaml:"upstream"`
	StaticDir string `yaml:"static_dir"`
	// MaxBodyBytes caps how much of a request body is read for inspection.
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	EventBuffer     int           `yaml:"event_buffer"`
	// APIKeys protects /api/v1. Empty means open.
	APIKeys []string `yaml:"api_keys"`
}

// BackendConfig holds settings for the bundled demo backend.
type BackendConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RateLimit is a sliding-window limit: at most Max requests per Window.
type RateLimit struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// LimitsConfig holds the per-client rate limits and state retention.
type LimitsConfig struct {
	General         RateLimit     `yaml:"general"`
	Login           RateLimit     `yaml:"login"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// Retention is how long a violation marker survives before the sweep drops it.
	Retention  time.Duration `yaml:"retention"`
	MaxClients int           `yaml:"max_clients"`
}

// Overflow policies for the security log queue.
const (
	OverflowDropOldest = "drop_oldest"
	OverflowBlock      = "block"
)

// SecurityLogConfig holds settings for the per-severity security log files.
type SecurityLogConfig struct {
	Dir          string        `yaml:"dir"`
	QueueSize    int           `yaml:"queue_size"`
	Overflow     string        `yaml:"overflow"` // "drop_oldest" or "block"
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// BusConfig holds NATS event bus settings.
type BusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	DataDir  string `yaml:"data_dir"`
	Port     int    `yaml:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Proxy: ProxyConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			Upstream:        "http://localhost:3001",
			MaxBodyBytes:    10 << 20,
			DialTimeout:     5 * time.Second,
			ResponseTimeout: 30 * time.Second,
			IdleTimeout:     90 * time.Second,
			EventBuffer:     500,
		},
		Backend: BackendConfig{
			Host:     "127.0.0.1",
			Port:     3001,
			Username: "testuser",
			Password: "testpass",
		},
		Limits: LimitsConfig{
			General:         RateLimit{Max: 10, Window: 30 * time.Second},
			Login:           RateLimit{Max: 3, Window: 120 * time.Second},
			CleanupInterval: 10 * time.Minute,
			Retention:       10 * time.Minute,
			MaxClients:      100000,
		},
		SecurityLog: SecurityLogConfig{
			Dir:          "./logs",
			QueueSize:    1024,
			Overflow:     OverflowDropOldest,
			BlockTimeout: 50 * time.Millisecond,
		},
		Bus: BusConfig{
			Enabled:  false,
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			DataDir:  "./data/nats",
			Port:     4222,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults,
// then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnv reads the millisecond/count overrides the proxy has always
// honoured: GENERAL_TIME_WINDOW, GENERAL_MAX_REQUESTS, LOGIN_TIME_WINDOW,
// LOGIN_MAX_ATTEMPTS and CLEANUP_INTERVAL.
func (c *Config) applyEnv(getenv func(string) string) error {
	millis := []struct {
		key string
		dst *time.Duration
	}{
		{"GENERAL_TIME_WINDOW", &c.Limits.General.Window},
		{"LOGIN_TIME_WINDOW", &c.Limits.Login.Window},
		{"CLEANUP_INTERVAL", &c.Limits.CleanupInterval},
	}
	for _, m := range millis {
		v := strings.TrimSpace(getenv(m.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q: want positive milliseconds", m.key, v)
		}
		*m.dst = time.Duration(n) * time.Millisecond
	}

	counts := []struct {
		key string
		dst *int
	}{
		{"GENERAL_MAX_REQUESTS", &c.Limits.General.Max},
		{"LOGIN_MAX_ATTEMPTS", &c.Limits.Login.Max},
	}
	for _, m := range counts {
		v := strings.TrimSpace(getenv(m.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s %q: want positive integer", m.key, v)
		}
		*m.dst = n
	}

	if v := getenv("SIEMPROXY_UPSTREAM"); v != "" {
		c.Proxy.Upstream = v
	}
	if v := strings.TrimSpace(getenv("SIEMPROXY_API_KEY")); v != "" {
		c.Proxy.APIKeys = append(c.Proxy.APIKeys, v)
	}
	return nil
}

// Validate checks the configuration and returns non-fatal warnings and
// fatal errors.
func (c *Config) Validate() (warnings []string, errs []string) {
	if c.Proxy.Port <= 0 || c.Proxy.Port > 65535 {
		errs = append(errs, fmt.Sprintf("proxy.port %d out of range", c.Proxy.Port))
	}
	if c.Proxy.Upstream == "" {
		errs = append(errs, "proxy.upstream is required")
	} else if !strings.HasPrefix(c.Proxy.Upstream, "http://") && !strings.HasPrefix(c.Proxy.Upstream, "https://") {
		errs = append(errs, fmt.Sprintf("proxy.upstream %q must be an http(s) URL", c.Proxy.Upstream))
	}
	for name, l := range map[string]RateLimit{"general": c.Limits.General, "login": c.Limits.Login} {
		if l.Max <= 0 {
			errs = append(errs, fmt.Sprintf("limits.%s.max must be positive", name))
		}
		if l.Window <= 0 {
			errs = append(errs, fmt.Sprintf("limits.%s.window must be positive", name))
		}
	}
	if c.Limits.CleanupInterval <= 0 {
		errs = append(errs, "limits.cleanup_interval must be positive")
	}
	if c.Limits.Retention > 0 && c.Limits.Retention < c.Limits.Login.Window {
		warnings = append(warnings, "limits.retention is shorter than the login window; markers may expire before a brute force ends")
	}
	if c.Limits.MaxClients <= 0 {
		warnings = append(warnings, "limits.max_clients not set, using 100000")
	}
	switch c.SecurityLog.Overflow {
	case OverflowDropOldest, OverflowBlock, "":
	default:
		errs = append(errs, fmt.Sprintf("security_log.overflow %q must be drop_oldest or block", c.SecurityLog.Overflow))
	}
	if c.SecurityLog.QueueSize <= 0 {
		warnings = append(warnings, "security_log.queue_size not set, using 1024")
	}
	if c.Bus.Enabled && !c.Bus.Embedded && c.Bus.URL == "" {
		errs = append(errs, "bus.url is required when bus is enabled and not embedded")
	}
	return warnings, errs
}

// AuthEnabled reports whether the admin API requires a key.
func (c *Config) AuthEnabled() bool {
	return len(c.Proxy.APIKeys) > 0
}

// ValidateAPIKey checks key against the configured keys in constant time.
func (c *Config) ValidateAPIKey(key string) bool {
	for _, valid := range c.Proxy.APIKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// LogLevel returns the lower-cased log level string.
func (c *Config) LogLevel() string {
	return strings.ToLower(c.Logging.Level)
}

// ProxyAddr returns the listen address for the proxy.
func (c *Config) ProxyAddr() string {
	return fmt.Sprintf("%s:%d", c.Proxy.Host, c.Proxy.Port)
}

// BackendAddr returns the listen address for the demo backend.
func (c *Config) BackendAddr() string {
	return fmt.Sprintf("%s:%d", c.Backend.Host, c.Backend.Port)
}
