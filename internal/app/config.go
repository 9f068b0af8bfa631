package app

import (
	"fmt"
	"strings"
	"time"

	curationmod "github.com/yungbote/curation-backend/internal/modules/curation"
	"github.com/yungbote/curation-backend/internal/platform/envutil"
)

type Config struct {
	LogMode     string
	Port        string
	Environment string
	Version     string
	ServiceName string

	// RunServer and RunWorker split API and job execution across
	// processes. Both default to true.
	RunServer bool
	RunWorker bool

	AuthJWTSecret      string
	RedisAddr          string
	RedisPassword      string
	ArchiveBucket      string
	ValidationProvider string
	MetricsAddr        string
	ShutdownTimeout    time.Duration

	Curation curationmod.Config
}

func LoadConfig() (Config, error) {
	cfg := Config{
		LogMode:     envutil.String("LOG_MODE", "development"),
		Port:        envutil.String("PORT", "8080"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "curation-backend"),

		RunServer: envutil.Bool("RUN_SERVER", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		AuthJWTSecret:      envutil.String("AUTH_JWT_SECRET", ""),
		RedisAddr:          envutil.String("REDIS_ADDR", ""),
		RedisPassword:      envutil.String("REDIS_PASSWORD", ""),
		ArchiveBucket:      envutil.String("CURATION_ARCHIVE_BUCKET", ""),
		ValidationProvider: strings.ToLower(envutil.String("VALIDATION_PROVIDER", "gemini")),
		MetricsAddr:        envutil.String("METRICS_ADDR", ""),
		ShutdownTimeout:    envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 20),
	}
	switch cfg.ValidationProvider {
	case "gemini", "openai":
	default:
		return Config{}, fmt.Errorf("VALIDATION_PROVIDER must be gemini or openai, got %q", cfg.ValidationProvider)
	}
	curationCfg, err := curationmod.LoadConfig(envutil.String("CURATION_CONFIG_FILE", ""))
	if err != nil {
		return Config{}, fmt.Errorf("load curation config: %w", err)
	}
	cfg.Curation = curationCfg
	return cfg, nil
}
