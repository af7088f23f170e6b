// Package config loads API server configuration from flags and the
// environment, with .env support for local development.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	CacheSize   int
	MaxFileSize int64
	ResultsDSN  string
	LLMModel    string
	Report      ReportConfig
}

// ReportConfig controls the optional S3 report sink.
type ReportConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8081", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:        *port,
		Env:         env,
		CacheSize:   intEnv("ANALYSIS_CACHE_SIZE", 64),
		MaxFileSize: int64(intEnv("MAX_FILE_SIZE", 2_000_000)),
		ResultsDSN:  strings.TrimSpace(os.Getenv("RESULTS_PG_DSN")),
		LLMModel:    firstNonEmpty(strings.TrimSpace(os.Getenv("LLM_MODEL")), "gemini-2.5-flash"),
		Report:      loadReportConfig(env),
	}, nil
}

func loadReportConfig(env string) ReportConfig {
	endpoint := resolveReportEndpoint(env)
	return ReportConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_BUCKET")), "repolens-reports"),
		UseSSL:    resolveReportUseSSL(env),
	}
}

func resolveReportEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("REPORT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("REPORT_S3_ENDPOINT"))
}

func resolveReportUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("REPORT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func intEnv(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
