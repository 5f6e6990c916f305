package config

import (
	"os"
	"strconv"
	"strings"
)

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// OllamaConfig holds model-server settings.
type OllamaConfig struct {
	URL            string
	EmbeddingModel string
	ChatModel      string
	TimeoutSeconds int
}

// RetrievalEnv holds the pipeline tunables exposed through the environment.
type RetrievalEnv struct {
	SearchLimit        int
	TopK               int
	MinScore           float64
	Alpha              float64
	RRFK               float64
	RerankEnabled      bool
	MMRLambda          float64
	DedupThreshold     float64
	ContextWindowSize  int
	BudgetPercentage   float64
	OverflowStrategy   string
	OrderingStrategy   string
	SandwichStartCount int
	EnhancementEnabled bool
	EnhancementQueries int
}

// CacheEnv holds result/embedding cache settings.
type CacheEnv struct {
	Enabled    bool
	Size       int
	TTLMinutes int
}

// Config is the full service configuration.
type Config struct {
	Env       string
	Port      string
	DB        DBConfig
	Ollama    OllamaConfig
	Retrieval RetrievalEnv
	Cache     CacheEnv
}

// Load reads the configuration from the environment with sensible defaults.
func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "rag-db"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "rag_user"),
			Password: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "rag_password"),
			Name:     getEnv("DB_NAME", "rag_db"),
		},
		Ollama: OllamaConfig{
			URL:            getEnv("OLLAMA_URL", "http://localhost:11434"),
			EmbeddingModel: getEnv("EMBEDDING_MODEL", "embeddinggemma"),
			ChatModel:      getEnv("CHAT_MODEL", "gemma3:4b"),
			TimeoutSeconds: getEnvInt("OLLAMA_TIMEOUT", 30),
		},
		Retrieval: RetrievalEnv{
			SearchLimit:        getEnvInt("RETRIEVAL_SEARCH_LIMIT", 50),
			TopK:               getEnvInt("RETRIEVAL_TOP_K", 10),
			MinScore:           getEnvFloat("RETRIEVAL_MIN_SCORE", 0),
			Alpha:              getEnvFloat("HYBRID_ALPHA", 0.5),
			RRFK:               getEnvFloat("RRF_K", 60.0),
			RerankEnabled:      getEnvBool("RERANK_ENABLED", true),
			MMRLambda:          getEnvFloat("MMR_LAMBDA", 0.7),
			DedupThreshold:     getEnvFloat("DEDUP_THRESHOLD", 0.8),
			ContextWindowSize:  getEnvInt("CONTEXT_WINDOW_SIZE", 8192),
			BudgetPercentage:   getEnvFloat("BUDGET_PERCENTAGE", 0.5),
			OverflowStrategy:   getEnv("OVERFLOW_STRATEGY", "drop"),
			OrderingStrategy:   getEnv("ORDERING_STRATEGY", "relevance"),
			SandwichStartCount: getEnvInt("SANDWICH_START_COUNT", 0),
			EnhancementEnabled: getEnvBool("ENHANCEMENT_ENABLED", false),
			EnhancementQueries: getEnvInt("ENHANCEMENT_QUERIES", 3),
		},
		Cache: CacheEnv{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			Size:       getEnvInt("CACHE_SIZE", 256),
			TTLMinutes: getEnvInt("CACHE_TTL_MINUTES", 10),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
