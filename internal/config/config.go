package config

import (
	"fmt"
	"strings"
	"time"

	"recap/pkg/logger"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Postgres struct {
		DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
	} `yaml:"postgres"`

	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
		Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
		DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	} `yaml:"redis"`

	RabbitMQ struct {
		URL string `yaml:"url" env:"RABBITMQ_URL"`
	} `yaml:"rabbitmq"`

	S3 struct {
		Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
		Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
		AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
		SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	} `yaml:"s3"`

	Transcriber struct {
		BaseURL string `yaml:"base_url" env:"TRANSCRIBER_BASE_URL" env-default:"http://localhost:9000"`
		Model   string `yaml:"model" env:"TRANSCRIBER_MODEL" env-default:"medium"`
	} `yaml:"transcriber"`

	LLM struct {
		BaseURL        string `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.openai.com/v1"`
		APIKey         string `yaml:"api_key" env:"LLM_API_KEY"`
		ChatModel      string `yaml:"chat_model" env:"LLM_CHAT_MODEL" env-default:"gpt-4o-mini"`
		EmbeddingModel string `yaml:"embedding_model" env:"LLM_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
		RatePerSecond  int    `yaml:"rate_per_second" env:"LLM_RATE_PER_SECOND" env-default:"5"`
	} `yaml:"llm"`

	Pipeline struct {
		RetrySchedule string `yaml:"retry_schedule" env:"PIPELINE_RETRY_SCHEDULE" env-default:"1s,5s,15s"`
		MaxAttempts   int    `yaml:"max_attempts" env:"PIPELINE_MAX_ATTEMPTS" env-default:"3"`
	} `yaml:"pipeline"`
}

func LoadConfig() (*Config, error) {
	// Load .env file
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadConfig("configs/config.yaml", &cfg); err != nil {
		return nil, err
	}

	if err := cleanenv.UpdateEnv(&cfg); err != nil {
		return nil, err
	}

	logger.Info("Config loaded successfully")
	return &cfg, nil
}

// RetrySchedule parses the configured backoff table
func (c *Config) RetrySchedule() ([]time.Duration, error) {
	parts := strings.Split(c.Pipeline.RetrySchedule, ",")
	schedule := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid retry schedule entry %q: %w", part, err)
		}
		schedule = append(schedule, d)
	}
	if len(schedule) == 0 {
		return nil, fmt.Errorf("retry schedule is empty")
	}
	return schedule, nil
}
