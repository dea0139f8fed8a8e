package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Identify  IdentifyConfig  `yaml:"identify"`
	PlantID   PlantIDConfig   `yaml:"plant_id"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cleanup   CleanupConfig   `yaml:"cleanup"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// IdentifyConfig tunes the cache-lookup pipeline.
type IdentifyConfig struct {
	MinImageBytes       int     `yaml:"min_image_bytes"`
	MaxImageBytes       int     `yaml:"max_image_bytes"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	CandidateWindow     int     `yaml:"candidate_window"`
	MinConfidence       float64 `yaml:"min_confidence"`
}

type PlantIDConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type EmbeddingConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type CleanupConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	Schedule      string `yaml:"schedule"` // cron expression
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Identify.MinImageBytes == 0 {
		cfg.Identify.MinImageBytes = 10 * 1024
	}
	if cfg.Identify.MaxImageBytes == 0 {
		cfg.Identify.MaxImageBytes = 10 * 1024 * 1024
	}
	if cfg.Identify.SimilarityThreshold == 0 {
		cfg.Identify.SimilarityThreshold = 0.85
	}
	if cfg.Identify.CandidateWindow == 0 {
		cfg.Identify.CandidateWindow = 100
	}
	if cfg.Identify.MinConfidence == 0 {
		cfg.Identify.MinConfidence = 0.05
	}
	if cfg.PlantID.BaseURL == "" {
		cfg.PlantID.BaseURL = "https://api.plant.id"
	}
	if cfg.PlantID.Timeout == 0 {
		cfg.PlantID.Timeout = 30 * time.Second
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 5 * time.Second
	}
	if cfg.Cleanup.RetentionDays == 0 {
		cfg.Cleanup.RetentionDays = 30
	}
	if cfg.Cleanup.Schedule == "" {
		cfg.Cleanup.Schedule = "0 3 * * *"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HERB_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HERB_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("HERB_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HERB_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("HERB_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("HERB_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HERB_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("HERB_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HERB_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("HERB_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("HERB_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("HERB_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("HERB_PLANT_ID_API_KEY"); v != "" {
		cfg.PlantID.APIKey = v
	}
	if v := os.Getenv("HERB_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("HERB_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Identify.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("HERB_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cleanup.RetentionDays = n
		}
	}
}
