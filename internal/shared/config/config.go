package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	Debug           bool
	LogLevel        string
	ServiceName     string
	TracingEnabled  bool

	DatabaseURL    string
	DatabaseName   string
	MigrateOnStart bool

	RepositoryIngestURL            string
	RepositoryIngestTimeoutSeconds int

	LLMAPIKey         string
	LLMModel          string
	LLMBaseURL        string
	LLMTimeoutSeconds int
	LLMMaxTokens      int
	LLMAgentMaxSteps  int

	ObjectStoreType         string
	LocalStoreDir           string
	AWSRegion               string
	S3Bucket                string
	S3Prefix                string
	SSEKMSKeyID             string
	ReportArchiveEnabled    bool
	ArchitectureDocsEnabled bool

	SQSQueueURL            string
	SQSVisibilitySeconds   int
	WorkerConcurrency      int
	ShutdownTimeoutSeconds int
	RateLimitRPS           float64
	RateLimitBurst         int
	PollRateLimitRPS       float64
	PollRateLimitBurst     int
}

// Load reads configuration from .env files and the environment with sensible defaults.
func Load() Config {
	cfg, err := LoadFiles(".env", "cmd/.env")
	if err != nil {
		log.Printf("config: %v", err)
	}
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}
	if strings.TrimSpace(cfg.RepositoryIngestURL) == "" {
		log.Printf("REPOSITORY_INGEST_API_URL is not set; ingest stages will fail")
	}
	return cfg
}

// LoadFiles builds a Config from the given dotenv files (missing files are skipped),
// overridden by process environment variables.
func LoadFiles(paths ...string) (Config, error) {
	v := viper.New()
	applyDefaults(v)
	v.AutomaticEnv()
	if err := v.BindEnv("llm_api_key", "LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return Config{}, err
	}

	loadErr := mergeEnvFiles(v, paths...)

	cfg := Config{
		Env:             normalizeEnv(v.GetString("env")),
		Port:            v.GetString("port"),
		CORSAllowOrigin: splitAndTrim(v.GetString("cors_allow_origins")),
		Debug:           v.GetBool("debug"),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		ServiceName:     v.GetString("service_name"),
		TracingEnabled:  v.GetBool("tracing_enabled"),

		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		DatabaseName:   strings.TrimSpace(v.GetString("database_name")),
		MigrateOnStart: v.GetBool("migrate_on_start"),

		RepositoryIngestURL:            strings.TrimRight(strings.TrimSpace(v.GetString("repository_ingest_api_url")), "/"),
		RepositoryIngestTimeoutSeconds: v.GetInt("repository_ingest_timeout_seconds"),

		LLMAPIKey:         strings.TrimSpace(v.GetString("llm_api_key")),
		LLMModel:          strings.TrimSpace(v.GetString("llm_model")),
		LLMBaseURL:        strings.TrimSpace(v.GetString("llm_base_url")),
		LLMTimeoutSeconds: v.GetInt("llm_timeout_seconds"),
		LLMMaxTokens:      v.GetInt("llm_max_tokens"),
		LLMAgentMaxSteps:  v.GetInt("llm_agent_max_steps"),

		ObjectStoreType:         normalizeStoreType(v.GetString("object_store")),
		LocalStoreDir:           v.GetString("local_store_dir"),
		AWSRegion:               v.GetString("aws_region"),
		S3Bucket:                v.GetString("s3_bucket"),
		S3Prefix:                v.GetString("s3_prefix"),
		SSEKMSKeyID:             v.GetString("sse_kms_key_id"),
		ReportArchiveEnabled:    v.GetBool("report_archive_enabled"),
		ArchitectureDocsEnabled: v.GetBool("architecture_docs_enabled"),

		SQSQueueURL:            strings.TrimSpace(v.GetString("sqs_queue_url")),
		SQSVisibilitySeconds:   v.GetInt("sqs_visibility_timeout_seconds"),
		WorkerConcurrency:      v.GetInt("worker_concurrency"),
		ShutdownTimeoutSeconds: v.GetInt("shutdown_timeout_seconds"),
		RateLimitRPS:           v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:         v.GetInt("rate_limit_burst"),
		PollRateLimitRPS:       v.GetFloat64("poll_rate_limit_rps"),
		PollRateLimitBurst:     v.GetInt("poll_rate_limit_burst"),
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg, loadErr
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("port", "8080")
	v.SetDefault("cors_allow_origins", "http://localhost:5173")
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("service_name", "code-analysis-api")
	v.SetDefault("tracing_enabled", false)

	v.SetDefault("database_url", "")
	v.SetDefault("database_name", "")
	v.SetDefault("migrate_on_start", true)

	v.SetDefault("repository_ingest_api_url", "")
	v.SetDefault("repository_ingest_timeout_seconds", 300)

	v.SetDefault("llm_model", "gpt-4o")
	v.SetDefault("llm_base_url", "")
	v.SetDefault("llm_timeout_seconds", 300)
	v.SetDefault("llm_max_tokens", 16000)
	v.SetDefault("llm_agent_max_steps", 25)

	v.SetDefault("object_store", "local")
	v.SetDefault("local_store_dir", "./data")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("sse_kms_key_id", "")
	v.SetDefault("report_archive_enabled", false)
	v.SetDefault("architecture_docs_enabled", false)

	v.SetDefault("sqs_queue_url", "")
	v.SetDefault("sqs_visibility_timeout_seconds", 1200)
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("shutdown_timeout_seconds", 30)
	v.SetDefault("rate_limit_rps", 5)
	v.SetDefault("rate_limit_burst", 20)
	v.SetDefault("poll_rate_limit_rps", 20)
	v.SetDefault("poll_rate_limit_burst", 60)
}

// IsDevLike reports whether env permits in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
