package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPort               = "8080"
	defaultDatabaseURL        = "file:sitescout.db"
	defaultLLMProvider        = "openai"
	defaultLLMBaseURL         = "https://api.groq.com/openai/v1"
	defaultLLMModel           = "openai/gpt-oss-20b"
	defaultOpenRouterBaseURL  = "https://openrouter.ai/api/v1"
	defaultEmbeddingProvider  = "lexical"
	defaultGenAIModel         = "gemini-embedding-001"
	defaultOllamaEndpoint     = "http://localhost:11434"
	defaultOllamaModel        = "nomic-embed-text"
	defaultFetchMode          = "browser"
	defaultFetchTimeoutSecs   = 30
	defaultFetchIntervalMs    = 250
	defaultMaxPages           = 20
	defaultTaskMaxPages       = 15
	defaultBatchSize          = 5
	defaultMinScore           = 7.0
	defaultConfidence         = 8.0
	defaultGroupSimilarity    = 0.5
	defaultMaxConcurrent      = 1
	defaultRunTimeoutSecs     = 600
	defaultLLMMaxAttempts     = 3
	defaultScorerTemperature  = 0.0
	defaultExtractTemperature = 0.1
	defaultEmailSubject       = "Site exploration result"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	AuthRequired   bool
	GoogleClientID string

	DatabaseURL       string
	DatabaseAuthToken string

	LLMProvider          string
	LLMAPIKey            string
	LLMBaseURL           string
	LLMModel             string
	OpenRouterAPIKey     string
	OpenRouterBaseURL    string
	LLMMaxAttempts       int
	ScorerTemperature    float64
	ExtractorTemperature float64

	EmbeddingProvider string
	GenAIAPIKey       string
	GenAIModel        string
	OllamaEndpoint    string
	OllamaModel       string

	FetchMode            string
	BrowserBin           string
	BrowserControlURL    string
	FetchTimeout         time.Duration
	FetchMinInterval     time.Duration
	AllowPrivateNetworks bool

	MaxPages                 int
	TaskMaxPages             int
	BatchSize                int
	MinScoreThreshold        float64
	ConfidenceThreshold      float64
	GroupSimilarityThreshold float64
	MaxConcurrent            int
	RunTimeout               time.Duration

	GmailCredentialsFile string
	GmailSender          string
	EmailSubject         string
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) EmailEnabled() bool {
	return c.GmailCredentialsFile != "" && c.GmailSender != ""
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the environment, with values from the
// YAML/TOML/JSON file at path used where no environment variable is set.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:           stringOrDefault(v, "PORT", defaultPort),
		Environment:    stringOrDefault(v, "APP_ENV", "development"),
		LogLevel:       stringOrDefault(v, "LOG_LEVEL", "info"),
		AuthRequired:   boolOrDefault(v, "AUTH_REQUIRED", false),
		GoogleClientID: stringOrDefault(v, "GOOGLE_CLIENT_ID", ""),

		DatabaseURL:       stringOrDefault(v, "DATABASE_URL", defaultDatabaseURL),
		DatabaseAuthToken: stringOrDefault(v, "DATABASE_AUTH_TOKEN", ""),

		LLMProvider:          strings.ToLower(stringOrDefault(v, "LLM_PROVIDER", defaultLLMProvider)),
		LLMAPIKey:            stringOrDefault(v, "LLM_API_KEY", ""),
		LLMBaseURL:           stringOrDefault(v, "LLM_BASE_URL", defaultLLMBaseURL),
		LLMModel:             stringOrDefault(v, "LLM_MODEL", defaultLLMModel),
		OpenRouterAPIKey:     stringOrDefault(v, "OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:    stringOrDefault(v, "OPENROUTER_BASE_URL", defaultOpenRouterBaseURL),
		LLMMaxAttempts:       intOrDefault(v, "LLM_MAX_ATTEMPTS", defaultLLMMaxAttempts),
		ScorerTemperature:    floatOrDefault(v, "SCORER_TEMPERATURE", defaultScorerTemperature),
		ExtractorTemperature: floatOrDefault(v, "EXTRACTOR_TEMPERATURE", defaultExtractTemperature),

		EmbeddingProvider: strings.ToLower(stringOrDefault(v, "EMBEDDING_PROVIDER", defaultEmbeddingProvider)),
		GenAIAPIKey:       stringOrDefault(v, "GENAI_API_KEY", ""),
		GenAIModel:        stringOrDefault(v, "GENAI_MODEL", defaultGenAIModel),
		OllamaEndpoint:    stringOrDefault(v, "OLLAMA_ENDPOINT", defaultOllamaEndpoint),
		OllamaModel:       stringOrDefault(v, "OLLAMA_MODEL", defaultOllamaModel),

		FetchMode:            strings.ToLower(stringOrDefault(v, "FETCH_MODE", defaultFetchMode)),
		BrowserBin:           stringOrDefault(v, "BROWSER_BIN", ""),
		BrowserControlURL:    stringOrDefault(v, "BROWSER_CONTROL_URL", ""),
		FetchTimeout:         time.Duration(intOrDefault(v, "FETCH_TIMEOUT_SECONDS", defaultFetchTimeoutSecs)) * time.Second,
		FetchMinInterval:     time.Duration(intOrDefault(v, "FETCH_MIN_INTERVAL_MS", defaultFetchIntervalMs)) * time.Millisecond,
		AllowPrivateNetworks: boolOrDefault(v, "ALLOW_PRIVATE_NETWORKS", false),

		MaxPages:                 intOrDefault(v, "MAX_PAGES", defaultMaxPages),
		TaskMaxPages:             intOrDefault(v, "TASK_MAX_PAGES", defaultTaskMaxPages),
		BatchSize:                intOrDefault(v, "BATCH_SIZE", defaultBatchSize),
		MinScoreThreshold:        floatOrDefault(v, "MIN_SCORE_THRESHOLD", defaultMinScore),
		ConfidenceThreshold:      floatOrDefault(v, "CONFIDENCE_THRESHOLD", defaultConfidence),
		GroupSimilarityThreshold: floatOrDefault(v, "GROUP_SIMILARITY_THRESHOLD", defaultGroupSimilarity),
		MaxConcurrent:            intOrDefault(v, "MAX_CONCURRENT", defaultMaxConcurrent),
		RunTimeout:               time.Duration(intOrDefault(v, "RUN_TIMEOUT_SECONDS", defaultRunTimeoutSecs)) * time.Second,

		GmailCredentialsFile: stringOrDefault(v, "GMAIL_CREDENTIALS_FILE", ""),
		GmailSender:          stringOrDefault(v, "GMAIL_SENDER", ""),
		EmailSubject:         stringOrDefault(v, "EMAIL_SUBJECT", defaultEmailSubject),
	}

	cfg.AllowedOrigins = parseList(stringOrDefault(v, "CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"))
	if len(cfg.AllowedOrigins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}

	if strings.HasPrefix(cfg.DatabaseURL, "libsql://") && cfg.DatabaseAuthToken == "" {
		return Config{}, errors.New("DATABASE_AUTH_TOKEN is required for libsql:// URLs")
	}

	switch cfg.LLMProvider {
	case "openai":
		if cfg.LLMAPIKey == "" {
			return Config{}, errors.New("LLM_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "openrouter":
		if cfg.OpenRouterAPIKey == "" {
			return Config{}, errors.New("OPENROUTER_API_KEY is required when LLM_PROVIDER=openrouter")
		}
	default:
		return Config{}, fmt.Errorf("LLM_PROVIDER must be openai or openrouter, got %q", cfg.LLMProvider)
	}

	switch cfg.EmbeddingProvider {
	case "lexical", "ollama":
	case "genai":
		if cfg.GenAIAPIKey == "" {
			return Config{}, errors.New("GENAI_API_KEY is required when EMBEDDING_PROVIDER=genai")
		}
	default:
		return Config{}, fmt.Errorf("EMBEDDING_PROVIDER must be lexical, ollama or genai, got %q", cfg.EmbeddingProvider)
	}

	if cfg.FetchMode != "browser" && cfg.FetchMode != "http" {
		return Config{}, fmt.Errorf("FETCH_MODE must be browser or http, got %q", cfg.FetchMode)
	}
	if cfg.FetchTimeout <= 0 {
		return Config{}, errors.New("FETCH_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.MaxPages <= 0 || cfg.TaskMaxPages <= 0 {
		return Config{}, errors.New("MAX_PAGES and TASK_MAX_PAGES must be > 0")
	}
	if !inScoreRange(cfg.MinScoreThreshold) || !inScoreRange(cfg.ConfidenceThreshold) {
		return Config{}, errors.New("MIN_SCORE_THRESHOLD and CONFIDENCE_THRESHOLD must be between 0 and 10")
	}
	if cfg.BatchSize <= 0 {
		return Config{}, errors.New("BATCH_SIZE must be > 0")
	}
	if cfg.MaxConcurrent <= 0 {
		return Config{}, errors.New("MAX_CONCURRENT must be > 0")
	}
	if cfg.LLMMaxAttempts <= 0 {
		return Config{}, errors.New("LLM_MAX_ATTEMPTS must be > 0")
	}
	if cfg.AuthRequired && cfg.GoogleClientID == "" {
		return Config{}, errors.New("GOOGLE_CLIENT_ID is required when AUTH_REQUIRED=true")
	}
	if (cfg.GmailCredentialsFile == "") != (cfg.GmailSender == "") {
		return Config{}, errors.New("GMAIL_CREDENTIALS_FILE and GMAIL_SENDER must be set together")
	}

	return cfg, nil
}

func inScoreRange(v float64) bool {
	return v >= 0 && v <= 10
}

func stringOrDefault(v *viper.Viper, key, fallback string) string {
	value := strings.TrimSpace(v.GetString(key))
	if value == "" {
		return fallback
	}
	return value
}

func boolOrDefault(v *viper.Viper, key string, fallback bool) bool {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func intOrDefault(v *viper.Viper, key string, fallback int) int {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func floatOrDefault(v *viper.Viper, key string, fallback float64) float64 {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
