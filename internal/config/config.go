package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for MedRoute
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Directory DirectoryConfig `yaml:"directory"`
	Requests  RequestsConfig  `yaml:"requests"`
	Auth      AuthConfig      `yaml:"auth"`
	Routing   RoutingConfig   `yaml:"routing"`
	Voice     VoiceConfig     `yaml:"voice"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
	JWTSecret   string `yaml:"jwt_secret"`
}

// AnalysisConfig holds the NLP analysis service configuration
type AnalysisConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// DirectoryConfig holds the hospital directory service configuration
type DirectoryConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RequestsConfig holds the admission-requests service configuration
type RequestsConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	FeedInterval time.Duration `yaml:"feed_interval"`
}

// AuthConfig holds the authentication service configuration
type AuthConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// RoutingConfig holds the road-routing provider configuration
type RoutingConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// VoiceConfig holds voice capture configuration
type VoiceConfig struct {
	RecordWindow time.Duration `yaml:"record_window"`
	MaxAudioSize int64         `yaml:"max_audio_size"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 3010),
			Environment: getEnv("ENVIRONMENT", "development"),
			JWTSecret:   getEnv("JWT_SECRET", ""),
		},
		Analysis: AnalysisConfig{
			BaseURL: getEnv("ANALYSIS_URL", "http://127.0.0.1:8000"),
			Timeout: getEnvDuration("ANALYSIS_TIMEOUT", 30*time.Second),
		},
		Directory: DirectoryConfig{
			BaseURL: getEnv("DIRECTORY_URL", "https://localhost:7189/api"),
			Timeout: getEnvDuration("DIRECTORY_TIMEOUT", 15*time.Second),
		},
		Requests: RequestsConfig{
			BaseURL:      getEnv("REQUESTS_URL", "https://localhost:7189/api"),
			Timeout:      getEnvDuration("REQUESTS_TIMEOUT", 15*time.Second),
			PollInterval: getEnvDuration("POLL_INTERVAL", 3*time.Second),
			FeedInterval: getEnvDuration("FEED_INTERVAL", 5*time.Second),
		},
		Auth: AuthConfig{
			BaseURL: getEnv("AUTH_URL", "https://localhost:7189/api"),
			Timeout: getEnvDuration("AUTH_TIMEOUT", 15*time.Second),
		},
		Routing: RoutingConfig{
			BaseURL: getEnv("ROUTING_URL", "https://router.project-osrm.org"),
			Timeout: getEnvDuration("ROUTING_TIMEOUT", 15*time.Second),
		},
		Voice: VoiceConfig{
			RecordWindow: getEnvDuration("RECORD_WINDOW", 5*time.Second),
			MaxAudioSize: getEnvInt64("MAX_AUDIO_SIZE", 10*1024*1024),
		},
	}

	cfg.applyDefaults()
	return cfg
}

// applyDefaults clamps values that must stay inside operational bounds.
// The admission poll interval is specified as 3-5 seconds; anything
// outside that window is pulled back in.
func (c *Config) applyDefaults() {
	if c.Requests.PollInterval < 3*time.Second {
		c.Requests.PollInterval = 3 * time.Second
	}
	if c.Requests.PollInterval > 5*time.Second {
		c.Requests.PollInterval = 5 * time.Second
	}
	if c.Requests.FeedInterval == 0 {
		c.Requests.FeedInterval = 5 * time.Second
	}
	if c.Voice.RecordWindow == 0 {
		c.Voice.RecordWindow = 5 * time.Second
	}
	if c.Voice.MaxAudioSize == 0 {
		c.Voice.MaxAudioSize = 10 * 1024 * 1024
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3010
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
