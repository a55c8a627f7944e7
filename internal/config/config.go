package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"uptend/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	API        APIConfig        `yaml:"api"`
	Queue      QueueConfig      `yaml:"queue"`
	Socket     SocketConfig     `yaml:"socket"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	Sync       SyncConfig       `yaml:"sync"`
	Ops        OpsConfig        `yaml:"ops"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	TokenKey       string        `yaml:"token_key"`
	ProbePath      string        `yaml:"probe_path"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

type QueueConfig struct {
	StorageKey string `yaml:"storage_key"`
	// Pointer so an explicit 0 (drop on first failed replay) survives
	// defaulting.
	MaxRetries    *int   `yaml:"max_retries"`
	DeadLetterKey string `yaml:"dead_letter_key"`
}

// RetryBudget returns the configured retry cap, or the stock default when
// the field was never set.
func (q QueueConfig) RetryBudget() int {
	if q.MaxRetries == nil {
		return models.MaxRetries
	}
	return *q.MaxRetries
}

type SocketConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Role         string        `yaml:"role"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // sqlite, redis or memory
	Path    string `yaml:"path"`    // sqlite database file
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type SyncConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type OpsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; values referenced from the YAML expand from the
	// process environment either way.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api base_url is required")
	}

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			return errors.New("storage path is required for sqlite backend")
		}
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("redis address is required for redis backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	if c.Queue.MaxRetries != nil && *c.Queue.MaxRetries < 0 {
		return errors.New("queue max_retries must not be negative")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Backend == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "uptend.db"
	}

	if c.Queue.StorageKey == "" {
		c.Queue.StorageKey = models.DefaultQueueKey
	}
	if c.Queue.MaxRetries == nil {
		retries := models.MaxRetries
		c.Queue.MaxRetries = &retries
	}
	if c.Queue.DeadLetterKey == "" {
		c.Queue.DeadLetterKey = models.DefaultDeadLetterKey
	}

	if c.API.Timeout == 0 {
		c.API.Timeout = 10 * time.Second
	}
	if c.API.TokenKey == "" {
		c.API.TokenKey = models.DefaultTokenKey
	}
	if c.API.ProbePath == "" {
		c.API.ProbePath = "/healthz"
	}
	if c.API.ProbeInterval == 0 {
		c.API.ProbeInterval = 15 * time.Second
	}

	if c.Socket.Role == "" {
		c.Socket.Role = models.TrackingRole
	}
	if c.Socket.InitialDelay == 0 {
		c.Socket.InitialDelay = models.ReconnectInitialDelayMS * time.Millisecond
	}
	if c.Socket.MaxDelay == 0 {
		c.Socket.MaxDelay = models.ReconnectMaxDelayMS * time.Millisecond
	}

	if c.Sync.SweepInterval == 0 {
		c.Sync.SweepInterval = time.Minute
	}

	if c.Ops.Enabled && c.Ops.Port == 0 {
		c.Ops.Port = 8080
	}
}
