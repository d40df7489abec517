package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	AdminToken string `yaml:"admin_token"`

	QdrantURL        string `yaml:"qdrant_url"`
	QdrantCollection string `yaml:"qdrant_collection"`

	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	OpenAIChatModel  string `yaml:"openai_chat_model"`
	OpenAIEmbedModel string `yaml:"openai_embed_model"`

	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	AllowGeneralChat bool   `yaml:"allow_general_chat"`
	EnableWebSearch  bool   `yaml:"enable_web_search"`
	TavilyAPIKey     string `yaml:"tavily_api_key"`

	HistoryPath string `yaml:"history_path"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// Load reads configuration in three layers: built-in defaults, an optional
// YAML file named by CONFIG_FILE, then environment variables. A .env file in
// the working directory is folded into the environment first.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.APIPort = env("API_PORT", cfg.APIPort)
	cfg.LogLevel = env("LOG_LEVEL", cfg.LogLevel)
	cfg.AdminToken = env("ADMIN_TOKEN", cfg.AdminToken)

	cfg.QdrantURL = env("QDRANT_URL", cfg.QdrantURL)
	cfg.QdrantCollection = env("QDRANT_COLLECTION", cfg.QdrantCollection)

	cfg.OpenAIAPIKey = env("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = env("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIChatModel = env("OPENAI_CHAT_MODEL", cfg.OpenAIChatModel)
	cfg.OpenAIEmbedModel = env("OPENAI_EMBED_MODEL", cfg.OpenAIEmbedModel)

	cfg.ChunkSize = envInt("CHUNK_SIZE", cfg.ChunkSize)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", cfg.ChunkOverlap)

	cfg.AllowGeneralChat = envBool("ALLOW_GENERAL_CHAT", cfg.AllowGeneralChat)
	cfg.EnableWebSearch = envBool("ENABLE_WEB_SEARCH", cfg.EnableWebSearch)
	cfg.TavilyAPIKey = env("TAVILY_API_KEY", cfg.TavilyAPIKey)

	cfg.HistoryPath = env("HISTORY_PATH", cfg.HistoryPath)

	cfg.NATSURL = env("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = env("NATS_SUBJECT", cfg.NATSSubject)

	cfg.RateLimitRPS = envFloat("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)

	return cfg, nil
}

func defaults() Config {
	return Config{
		APIPort:  "8000",
		LogLevel: "info",

		QdrantURL:        "http://localhost:6333",
		QdrantCollection: "brochures",

		OpenAIChatModel:  "gpt-4o-mini",
		OpenAIEmbedModel: "text-embedding-3-small",

		ChunkSize:    1200,
		ChunkOverlap: 200,

		AllowGeneralChat: true,

		HistoryPath: "./data/chat_history.jsonl",

		NATSSubject: "chat.events",

		RateLimitRPS:   10,
		RateLimitBurst: 20,
	}
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
