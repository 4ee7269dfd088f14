package config

import (
	"os"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config_test_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	tmpfile.Close()
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `
source:
  bearer_token: test-bearer
  user_id: "12345"
notion:
  token: test-notion-token
  database_id: test-db
generation:
  enabled: true
  api_key: test-gemini-key
  summary_lines: 2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Source.BearerToken != "test-bearer" {
		t.Errorf("Expected bearer token 'test-bearer', got %q", cfg.Source.BearerToken)
	}
	if cfg.Source.UserID != "12345" {
		t.Errorf("Expected user id '12345', got %q", cfg.Source.UserID)
	}
	if !cfg.Generation.Enabled {
		t.Error("Expected generation enabled")
	}
	if cfg.Generation.SummaryLines != 2 {
		t.Errorf("Expected summary_lines 2, got %d", cfg.Generation.SummaryLines)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, `
source:
  bearer_token: b
  user_id: u
notion:
  token: n
  database_id: d
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("Expected default timezone Asia/Tokyo, got %q", cfg.Timezone)
	}
	if cfg.Schedule != "30 23 * * *" {
		t.Errorf("Expected default schedule, got %q", cfg.Schedule)
	}
	if cfg.Source.MaxResults != 100 {
		t.Errorf("Expected default max_results 100, got %d", cfg.Source.MaxResults)
	}
	if cfg.Generation.Enabled {
		t.Error("Expected generation disabled by default")
	}
	if cfg.Generation.SummaryLines != 0 {
		t.Errorf("Expected default summary_lines 0, got %d", cfg.Generation.SummaryLines)
	}
	if cfg.Generation.Language != "ja" {
		t.Errorf("Expected default language ja, got %q", cfg.Generation.Language)
	}
	if cfg.Generation.MaxRPM != 24 {
		t.Errorf("Expected default max_rpm 24, got %d", cfg.Generation.MaxRPM)
	}
	if cfg.Generation.BatchSize != 8 {
		t.Errorf("Expected default batch_size 8, got %d", cfg.Generation.BatchSize)
	}
	if cfg.Generation.Model != "gemini-1.5-flash" {
		t.Errorf("Expected default model, got %q", cfg.Generation.Model)
	}
	if cfg.DryRun {
		t.Error("Expected dry_run disabled by default")
	}
}

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_X_BEARER", "bearer-from-env")
	t.Setenv("TEST_NOTION_TOKEN", "notion-from-env")

	path := writeTempConfig(t, `
source:
  bearer_token: ${TEST_X_BEARER}
  user_id: u
notion:
  token: ${TEST_NOTION_TOKEN}
  database_id: d
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Source.BearerToken != "bearer-from-env" {
		t.Errorf("Expected env-expanded bearer token, got %q", cfg.Source.BearerToken)
	}
	if cfg.Notion.Token != "notion-from-env" {
		t.Errorf("Expected env-expanded notion token, got %q", cfg.Notion.Token)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing bearer token",
			yaml:    "source:\n  user_id: u\nnotion:\n  token: n\n  database_id: d\n",
			wantErr: "source.bearer_token",
		},
		{
			name:    "missing user id",
			yaml:    "source:\n  bearer_token: b\nnotion:\n  token: n\n  database_id: d\n",
			wantErr: "source.user_id",
		},
		{
			name:    "missing notion token",
			yaml:    "source:\n  bearer_token: b\n  user_id: u\nnotion:\n  database_id: d\n",
			wantErr: "notion.token",
		},
		{
			name:    "missing notion database",
			yaml:    "source:\n  bearer_token: b\n  user_id: u\nnotion:\n  token: n\n",
			wantErr: "notion.database_id",
		},
		{
			name: "generation enabled without key",
			yaml: "source:\n  bearer_token: b\n  user_id: u\nnotion:\n  token: n\n  database_id: d\n" +
				"generation:\n  enabled: true\n  summary_lines: 2\n",
			wantErr: "generation.api_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestDryRunSkipsDestinationValidation(t *testing.T) {
	path := writeTempConfig(t, `
dry_run: true
source:
  bearer_token: b
  user_id: u
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected dry-run config to load without destination credentials, got: %v", err)
	}
	if !cfg.DryRun {
		t.Error("Expected dry_run true")
	}
}

func TestGenerationDisabledSkipsKeyValidation(t *testing.T) {
	path := writeTempConfig(t, `
source:
  bearer_token: b
  user_id: u
notion:
  token: n
  database_id: d
generation:
  enabled: false
  summary_lines: 3
`)

	if _, err := Load(path); err != nil {
		t.Fatalf("Expected config without generation key to load when disabled, got: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}
