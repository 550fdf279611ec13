// Package config loads engine settings from a YAML file with WARDEN_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration
type Config struct {
	BaseDir          string `yaml:"base_dir"`
	QuarantineDir    string `yaml:"quarantine_dir"`
	ModelPath        string `yaml:"model_path"`
	SignaturesPath   string `yaml:"signatures_path"`
	SignatureKeyring string `yaml:"signature_keyring"`
	TempDir          string `yaml:"temp_dir"`
	MaxFileBytes     int64  `yaml:"max_file_bytes"`

	// Sentinel
	WatchDirs        []string      `yaml:"watch_dirs"`
	SentinelInterval time.Duration `yaml:"sentinel_interval"`

	// Collectors
	GateThreshold float64  `yaml:"gate_threshold"`
	ProgressEvery int      `yaml:"progress_every"`
	ExcludeDirs   []string `yaml:"exclude_dirs"` // host directory walks only
	// MediaExcludeDirs applies to removable volumes, where host system
	// folder names carry no meaning. Empty by default.
	MediaExcludeDirs []string      `yaml:"media_exclude_dirs"`
	DNSTimeout       time.Duration `yaml:"dns_timeout"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	LogJSON  bool   `yaml:"log_json"`

	// Outputs
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	base := filepath.Join(os.TempDir(), "warden")
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".warden")
	}
	var watch []string
	if home, err := os.UserHomeDir(); err == nil {
		watch = []string{filepath.Join(home, "Downloads")}
	}

	return &Config{
		BaseDir:          base,
		MaxFileBytes:     256 << 20,
		WatchDirs:        watch,
		SentinelInterval: 2 * time.Second,
		GateThreshold:    90.0,
		ProgressEvery:    50,
		ExcludeDirs:      []string{"Windows", "proc", "sys", "dev"},
		DNSTimeout:       2 * time.Second,
		LogLevel:         "info",
		NATSSubject:      "warden.threats",
	}
}

// Load reads configuration from path (optional) and applies environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BaseDir = getEnv("WARDEN_BASE_DIR", c.BaseDir)
	c.QuarantineDir = getEnv("WARDEN_QUARANTINE_DIR", c.QuarantineDir)
	c.ModelPath = getEnv("WARDEN_MODEL_PATH", c.ModelPath)
	c.SignaturesPath = getEnv("WARDEN_SIGNATURES_PATH", c.SignaturesPath)
	c.SignatureKeyring = getEnv("WARDEN_SIGNATURE_KEYRING", c.SignatureKeyring)
	c.TempDir = getEnv("WARDEN_TEMP_DIR", c.TempDir)
	c.MaxFileBytes = getInt64Env("WARDEN_MAX_FILE_BYTES", c.MaxFileBytes)
	if v := os.Getenv("WARDEN_WATCH_DIRS"); v != "" {
		c.WatchDirs = splitList(v)
	}
	c.SentinelInterval = getDurationEnv("WARDEN_SENTINEL_INTERVAL", c.SentinelInterval)
	c.GateThreshold = getFloat64Env("WARDEN_GATE_THRESHOLD", c.GateThreshold)
	c.ProgressEvery = getIntEnv("WARDEN_PROGRESS_EVERY", c.ProgressEvery)
	if v := os.Getenv("WARDEN_EXCLUDE_DIRS"); v != "" {
		c.ExcludeDirs = splitList(v)
	}
	if v := os.Getenv("WARDEN_MEDIA_EXCLUDE_DIRS"); v != "" {
		c.MediaExcludeDirs = splitList(v)
	}
	c.DNSTimeout = getDurationEnv("WARDEN_DNS_TIMEOUT", c.DNSTimeout)
	c.LogLevel = getEnv("WARDEN_LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("WARDEN_LOG_FILE", c.LogFile)
	c.LogJSON = getBoolEnv("WARDEN_LOG_JSON", c.LogJSON)
	c.NATSURL = getEnv("WARDEN_NATS_URL", c.NATSURL)
	c.NATSSubject = getEnv("WARDEN_NATS_SUBJECT", c.NATSSubject)
	c.MetricsAddr = getEnv("WARDEN_METRICS_ADDR", c.MetricsAddr)
}

// resolvePaths places unset artifact paths under BaseDir.
func (c *Config) resolvePaths() {
	if c.ModelPath == "" {
		c.ModelPath = filepath.Join(c.BaseDir, "model.yaml")
	}
	if c.SignaturesPath == "" {
		c.SignaturesPath = filepath.Join(c.BaseDir, "signatures.csv")
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir cannot be empty")
	}
	if c.SentinelInterval <= 0 {
		return fmt.Errorf("sentinel_interval must be positive")
	}
	if c.GateThreshold < 0 || c.GateThreshold > 100 {
		return fmt.Errorf("gate_threshold must be within [0,100], got %v", c.GateThreshold)
	}
	if c.ProgressEvery <= 0 {
		return fmt.Errorf("progress_every must be positive")
	}
	if c.MaxFileBytes < 0 {
		return fmt.Errorf("max_file_bytes cannot be negative")
	}
	if c.NATSURL != "" && c.NATSSubject == "" {
		return fmt.Errorf("nats_subject cannot be empty when nats_url is set")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloat64Env(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go duration strings ("2s") or bare seconds ("2").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
