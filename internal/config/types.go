package config

import "time"

// Config represents the main tool configuration. This is distinct from the
// entity configuration, which is the domain YAML handled by internal/entity.
type Config struct {
	Language   string           `yaml:"language" mapstructure:"language"`
	Clustering ClusteringConfig `yaml:"clustering" mapstructure:"clustering"`
	Detection  DetectionConfig  `yaml:"detection" mapstructure:"detection"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
}

// ClusteringConfig controls variant clustering.
type ClusteringConfig struct {
	// Threshold is the minimum normalized similarity for two variants to be
	// clustered into one group.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
}

// DetectionConfig controls the span collectors.
type DetectionConfig struct {
	// Detectors lists enabled rule names, or "all".
	Detectors []string `yaml:"detectors" mapstructure:"detectors"`
	// MinDigits is the minimum digit count for the number detectors.
	MinDigits int `yaml:"min_digits" mapstructure:"min_digits"`
	// Remote configures an external NER service used in addition to the
	// built-in rules.
	Remote RemoteConfig `yaml:"remote" mapstructure:"remote"`
}

// RemoteConfig configures the external recognizer collaborator.
type RemoteConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// ServerConfig contains HTTP API configuration for serve mode.
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    struct {
		Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
		Burst             int     `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
	Events struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"events" mapstructure:"events"`
}

// CacheConfig contains the optional recognizer-result cache configuration.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL   string        `yaml:"redis_url" mapstructure:"redis_url"`
	DefaultTTL time.Duration `yaml:"default_ttl" mapstructure:"default_ttl"`
	KeyPrefix  string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// GetDefaults returns the default configuration.
func GetDefaults() *Config {
	cfg := &Config{
		Language: "en",
		Clustering: ClusteringConfig{
			Threshold: 0.85,
		},
		Detection: DetectionConfig{
			Detectors: []string{"all"},
			MinDigits: 4,
			Remote: RemoteConfig{
				Enabled: false,
				Timeout: 30 * time.Second,
			},
		},
		Server: ServerConfig{
			Port:         8385,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    false,
			RedisURL:   "redis://localhost:6379/0",
			DefaultTTL: time.Hour,
			KeyPrefix:  "did:detect",
		},
	}
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSecond = 20
	cfg.Server.RateLimit.Burst = 40
	cfg.Server.Events.Enabled = true
	cfg.Server.Events.Path = "/events"
	return cfg
}
