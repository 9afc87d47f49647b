package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"

	"github.com/bdougie/subseqlabel/internal/models"
	"github.com/bdougie/subseqlabel/internal/storage"
	"github.com/bdougie/subseqlabel/internal/submit"
)

// Environment overrides
const (
	EnvBaseURL     = "SUBSEQ_BASE_URL"
	EnvDatabaseURL = "SUBSEQ_DATABASE_URL"
	EnvOutputDir   = "SUBSEQ_OUTPUT_DIR"
	EnvTaskID      = "SUBSEQ_TASK_ID"
)

// Default values
const (
	DefaultBaseURL   = "http://localhost:8000"
	DefaultOutputDir = "output_frames"
	DefaultWorkers   = 2
	DefaultTimeout   = 30
	DefaultInterval  = 1
)

type Config struct {
	Server    ServerStruct    `json:"server"`
	TaskID    int             `json:"task_id"`
	Labels    []LabelStruct   `json:"labels"`
	Postgres  PostgresStruct  `json:"postgres"`
	Extractor ExtractorStruct `json:"extractor"`
	OutputDir string          `json:"output_dir"`
}

type ServerStruct struct {
	BaseURL  string `json:"base_url"`
	SavePath string `json:"save_path"`
	Timeout  int    `json:"timeout"` // seconds
	Workers  int    `json:"workers"`
}

type LabelStruct struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type PostgresStruct struct {
	URL      string `json:"url"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
}

type ExtractorStruct struct {
	Interval int `json:"interval"` // seconds between extracted frames
}

// Load reads the YAML file at path (optional), then .env and the
// environment, and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Postgres.URL = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv(EnvTaskID); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", EnvTaskID, v, err)
		}
		c.TaskID = id
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = DefaultBaseURL
	}
	if c.Server.SavePath == "" {
		c.Server.SavePath = submit.DefaultSavePath
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = DefaultTimeout
	}
	if c.Server.Workers <= 0 {
		c.Server.Workers = DefaultWorkers
	}
	if c.Extractor.Interval <= 0 {
		c.Extractor.Interval = DefaultInterval
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Postgres.Port == "" {
		c.Postgres.Port = "5432"
	}
}

// Validate rejects duplicate or reserved label ids
func (c *Config) Validate() error {
	seen := make(map[int]bool, len(c.Labels))
	for _, l := range c.Labels {
		if l.ID == models.UnsetLabel {
			return fmt.Errorf("label '%s' uses the reserved id %d", l.Name, models.UnsetLabel)
		}
		if seen[l.ID] {
			return fmt.Errorf("duplicate label id %d", l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

// Categories returns the configured label categories
func (c *Config) Categories() []models.Label {
	labels := make([]models.Label, 0, len(c.Labels))
	for _, l := range c.Labels {
		labels = append(labels, models.Label{ID: l.ID, Name: l.Name, Color: l.Color})
	}
	return labels
}

// SaveEndpoint is the full URL of the save handler
func (c *Config) SaveEndpoint() string {
	return submit.Endpoint(c.Server.BaseURL, c.Server.SavePath)
}

// DatabaseURL returns the postgres connection string, or "" when no
// database is configured.
func (c *Config) DatabaseURL() string {
	if c.Postgres.URL != "" {
		return c.Postgres.URL
	}
	if c.Postgres.Host == "" {
		return ""
	}
	return storage.PostgresConfig{
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		User:     c.Postgres.User,
		Password: c.Postgres.Password,
		DBName:   c.Postgres.DBName,
	}.ConnString()
}
