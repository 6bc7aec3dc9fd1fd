package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	QdrantHost       string `envconfig:"QDRANT_HOST" default:"localhost"`
	QdrantPort       int    `envconfig:"QDRANT_PORT" default:"6334"`
	QdrantCollection string `envconfig:"QDRANT_COLLECTION" default:"normax_chunks"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	CacheTTLSeconds    int     `envconfig:"CACHE_TTL_SECONDS" default:"3600"`
	MinCacheConfidence float64 `envconfig:"MIN_CACHE_CONFIDENCE" default:"0.3"`

	// Poll interval for the vector repair sweep, seconds. Zero disables it.
	RepairIntervalSeconds int `envconfig:"REPAIR_INTERVAL_SECONDS" default:"60"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("NORMAX", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
