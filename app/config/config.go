package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	DB        DB        `yaml:"db"`
	Auth      Auth      `yaml:"auth"`
	Inference Inference `yaml:"inference"`
	MCP       MCP       `yaml:"mcp"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type HTTP struct {
	// Address to listen on
	Listen string `yaml:"listen" example:":8080" validate:"required"`
	// Comma separated list of allowed CORS origins
	CORSOrigins string `yaml:"cors_origins" example:"http://localhost:5173"`
}

type DB struct {
	// Path to the libSQL database file
	Path string `yaml:"path" example:"data/portfolio.db" validate:"required"`
}

type Auth struct {
	// Lifetime of a sign-in session
	SessionTTL time.Duration `yaml:"session_ttl" example:"168h" validate:"gt=0"`
}

type Inference struct {
	// Provider backend: openai, gemini or langchain
	Provider string `yaml:"provider" example:"gemini" validate:"required,oneof=openai gemini langchain"`
	// Custom API base url, empty for the provider default
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model name
	Model string `yaml:"model" example:"gemini-2.5-flash" validate:"required"`
	// Sampling temperature
	Temperature float32 `yaml:"temperature" example:"0.7" validate:"gte=0,lte=2"`
	// Completion token limit
	MaxTokens int `yaml:"max_tokens" example:"2048" validate:"gt=0"`
	// Per-call timeout
	Timeout time.Duration `yaml:"timeout" example:"60s" validate:"gt=0"`
}

type MCP struct {
	// Serve interview tools over MCP stdio
	Enabled bool `yaml:"enabled" example:"false"`
}

func Load() (*Config, error) {
	return LoadFile(defaultPath)
}

func LoadFile(path string) (*Config, error) {
	var result Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	if result.HTTP.Listen == "" {
		result.HTTP.Listen = ":8080"
	}
	if result.DB.Path == "" {
		result.DB.Path = "data/portfolio.db"
	}
	if result.Auth.SessionTTL == 0 {
		result.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if result.Inference.Provider == "" {
		result.Inference.Provider = "gemini"
	}
	if result.Inference.Model == "" {
		result.Inference.Model = "gemini-2.5-flash"
	}
	if result.Inference.Temperature == 0 {
		result.Inference.Temperature = 0.7
	}
	if result.Inference.MaxTokens == 0 {
		result.Inference.MaxTokens = 2048
	}
	if result.Inference.Timeout == 0 {
		result.Inference.Timeout = time.Minute
	}
	if result.Inference.Token == "" {
		result.Inference.Token = os.Getenv("INFERENCE_TOKEN")
	}
	if result.Log.Telegram.Token == "" {
		result.Log.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}
