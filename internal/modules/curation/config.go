package curation

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/curation-backend/internal/domain"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type ValidationConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	ApprovalThreshold int           `yaml:"approval_threshold"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
	MaxContentChars   int           `yaml:"max_content_chars"`
}

// Config is the pipeline tuning. It is loaded once at startup.
type Config struct {
	BatchSize          int              `yaml:"batch_size"`
	BatchDelay         time.Duration    `yaml:"batch_delay"`
	RecoveryBatchDelay time.Duration    `yaml:"recovery_batch_delay"`
	RungDelay          time.Duration    `yaml:"rung_delay"`
	RungErrorDelay     time.Duration    `yaml:"rung_error_delay"`
	RecoveryRungDelay  time.Duration    `yaml:"recovery_rung_delay"`
	TemperatureStep    float64          `yaml:"temperature_step"`
	MinTemperature     float64          `yaml:"min_temperature"`
	VerifyTimeout      time.Duration    `yaml:"verify_timeout"`
	ResolveTimeout     time.Duration    `yaml:"resolve_timeout"`
	MinWords           int              `yaml:"min_words"`
	RunLockTTL         time.Duration    `yaml:"run_lock_ttl"`
	SkipCovered        bool             `yaml:"skip_covered"`
	Validation         ValidationConfig `yaml:"validation"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("curation: bad embedded defaults: %v", err))
	}
	return cfg
}

// LoadConfig layers the YAML file at path over the embedded defaults. An
// empty path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	path = strings.TrimSpace(path)
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read curation config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse curation config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("curation config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("batch_size must be positive")
	case c.MinTemperature < 0 || c.TemperatureStep < 0:
		return fmt.Errorf("temperatures must not be negative")
	case c.MinWords <= 0:
		return fmt.Errorf("min_words must be positive")
	case c.Validation.Concurrency <= 0:
		return fmt.Errorf("validation.concurrency must be positive")
	case c.Validation.ApprovalThreshold < 0 || c.Validation.ApprovalThreshold > 100:
		return fmt.Errorf("validation.approval_threshold must be within 0..100")
	}
	return nil
}

// Settings is the model selection resolved once per run.
type Settings struct {
	Model         string  `json:"model_name"`
	FallbackModel string  `json:"fallback_model"`
	Temperature   float64 `json:"temperature"`
	ThinkingLevel string  `json:"thinking_level"`
}

func DefaultSettings() Settings {
	return Settings{
		Model:         "gemini-2.5-flash",
		FallbackModel: "gemini-2.5-pro",
		Temperature:   0.7,
		ThinkingLevel: "medium",
	}
}

// SettingsFromRow fills blank model names in row with the defaults. A stored
// temperature of zero is kept; only negative values fall back. A nil row
// yields the defaults unchanged.
func SettingsFromRow(row *types.CurationSettings) Settings {
	s := DefaultSettings()
	if row == nil {
		return s
	}
	if m := strings.TrimSpace(row.ModelName); m != "" {
		s.Model = m
	}
	if m := strings.TrimSpace(row.FallbackModel); m != "" {
		s.FallbackModel = m
	}
	if row.Temperature >= 0 {
		s.Temperature = row.Temperature
	}
	if lvl := strings.TrimSpace(row.ThinkingLevel); lvl != "" {
		s.ThinkingLevel = lvl
	}
	return s
}
