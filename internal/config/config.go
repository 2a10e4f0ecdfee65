package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Keys     APIKeys
	Ai       AIConfig
	Tuning   TuningConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	OpenAI     string
	UsageTopic string // watermill topic for completed turns
}

type AIConfig struct {
	EmbeddingProvider string // "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "openai"
	LLMModel          string // e.g. "gpt-4o-mini"
	LLMBaseURL        string // optional override for openai-compatible gateways
	ExtractorBaseURL  string // document extraction/classification service
}

// TuningConfig groups every retrieval/streaming knob in one immutable
// struct injected at construction, so tests can vary thresholds per case
// instead of patching globals.
type TuningConfig struct {
	// Hybrid retrieval
	FusionK          int     // RRF rank constant
	SemanticWeight   float64 // pre-fusion weight of the vector source
	KeywordWeight    float64 // pre-fusion weight of the lexical source
	MinSimilarity    float64 // acceptance tier
	HighSimilarity   float64 // high-confidence tier
	VeryHighSim      float64 // very-high-confidence tier
	ResultLimit      int     // default returned chunks
	ResultHardCap    int     // absolute maximum returned chunks
	ExpansionMinHits int     // expand only when hit count is below this

	// Conversation window
	HistoryTokenBudget int

	// Streaming
	ModelCallTimeout time.Duration
	MaxRetries       int
	DisconnectGrace  time.Duration

	// Cache TTL staircase: smaller payloads live longer
	TTLSmall  time.Duration // <= 64KB
	TTLMedium time.Duration // <= 1MB
	TTLLarge  time.Duration // <= 8MB
	TTLHuge   time.Duration // anything bigger
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			OpenAI:     getEnv("OPENAI_API_KEY", ""),
			UsageTopic: getEnv("TURN_COMPLETED_TOPIC_NAME", "TURN_COMPLETED"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
			ExtractorBaseURL:  getEnv("EXTRACTOR_BASE_URL", "http://localhost:8090"),
		},
		Tuning: DefaultTuning(),
	}
}

// DefaultTuning returns production defaults; operators override the knobs
// they actually touch via environment.
func DefaultTuning() TuningConfig {
	return TuningConfig{
		FusionK:          getEnvAsInt("FUSION_K", 60),
		SemanticWeight:   getEnvAsFloat("SEMANTIC_WEIGHT", 0.7),
		KeywordWeight:    getEnvAsFloat("KEYWORD_WEIGHT", 0.3),
		MinSimilarity:    getEnvAsFloat("MIN_SIMILARITY", 0.65),
		HighSimilarity:   getEnvAsFloat("HIGH_SIMILARITY", 0.80),
		VeryHighSim:      getEnvAsFloat("VERY_HIGH_SIMILARITY", 0.90),
		ResultLimit:      getEnvAsInt("RETRIEVAL_LIMIT", 3),
		ResultHardCap:    10,
		ExpansionMinHits: getEnvAsInt("EXPANSION_MIN_HITS", 3),

		HistoryTokenBudget: getEnvAsInt("HISTORY_TOKEN_BUDGET", 3000),

		ModelCallTimeout: time.Duration(getEnvAsInt("MODEL_TIMEOUT_SECONDS", 60)) * time.Second,
		MaxRetries:       getEnvAsInt("MODEL_MAX_RETRIES", 2),
		DisconnectGrace:  time.Duration(getEnvAsInt("DISCONNECT_GRACE_MS", 500)) * time.Millisecond,

		TTLSmall:  24 * time.Hour,
		TTLMedium: 6 * time.Hour,
		TTLLarge:  2 * time.Hour,
		TTLHuge:   30 * time.Minute,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
