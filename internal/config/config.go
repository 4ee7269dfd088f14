package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Schedule   string           `yaml:"schedule"`
	RunOnStart bool             `yaml:"run_on_start"`
	Timezone   string           `yaml:"timezone"`
	DryRun     bool             `yaml:"dry_run"`
	StatePath  string           `yaml:"state_path"`
	LogLevel   string           `yaml:"log_level"`
	Source     SourceConfig     `yaml:"source"`
	Generation GenerationConfig `yaml:"generation"`
	Notion     NotionConfig     `yaml:"notion"`
}

type SourceConfig struct {
	BearerToken string `yaml:"bearer_token"`
	UserID      string `yaml:"user_id"`
	MaxResults  int    `yaml:"max_results"`
}

type GenerationConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SummaryLines int    `yaml:"summary_lines"`
	Language     string `yaml:"language"`
	MaxRPM       int    `yaml:"max_rpm"`
	BatchSize    int    `yaml:"batch_size"`
}

type NotionConfig struct {
	Token      string `yaml:"token"`
	DatabaseID string `yaml:"database_id"`
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func setDefaults(cfg *Config) {
	if cfg.Schedule == "" {
		cfg.Schedule = "30 23 * * *"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Tokyo"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Source.MaxResults == 0 {
		cfg.Source.MaxResults = 100
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gemini-1.5-flash"
	}
	if cfg.Generation.Language == "" {
		cfg.Generation.Language = "ja"
	}
	if cfg.Generation.MaxRPM == 0 {
		cfg.Generation.MaxRPM = 24
	}
	if cfg.Generation.BatchSize == 0 {
		cfg.Generation.BatchSize = 8
	}
}

func validate(cfg *Config) error {
	if cfg.Source.BearerToken == "" {
		return fmt.Errorf("config: source.bearer_token is required (set X_BEARER env var)")
	}
	if cfg.Source.UserID == "" {
		return fmt.Errorf("config: source.user_id is required (set X_USER_ID env var)")
	}
	if !cfg.DryRun {
		if cfg.Notion.Token == "" {
			return fmt.Errorf("config: notion.token is required (set NOTION_TOKEN env var)")
		}
		if cfg.Notion.DatabaseID == "" {
			return fmt.Errorf("config: notion.database_id is required (set NOTION_DATABASE_ID env var)")
		}
	}
	if cfg.Generation.Enabled && cfg.Generation.SummaryLines > 0 && cfg.Generation.APIKey == "" {
		return fmt.Errorf("config: generation.api_key is required when generation is enabled (set GEMINI_API_KEY env var)")
	}
	return nil
}

// Load reads the config file, expands environment variables, applies defaults,
// and validates the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
