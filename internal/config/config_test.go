package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
plex:
  url: https://plex.example.com:32400/
  token: secret
storage:
  type: redis
  redis:
    host: redis.internal
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Plex.URL != "https://plex.example.com:32400" {
		t.Errorf("Plex.URL = %q, want trailing slash trimmed", cfg.Plex.URL)
	}
	if cfg.Plex.Timespan != 6 {
		t.Errorf("Plex.Timespan = %d, want 6", cfg.Plex.Timespan)
	}
	if cfg.Server.MetricsPort != 3000 {
		t.Errorf("Server.MetricsPort = %d, want 3000", cfg.Server.MetricsPort)
	}
	if cfg.Attribution.OwnerAccountID != 1 {
		t.Errorf("Attribution.OwnerAccountID = %d, want 1", cfg.Attribution.OwnerAccountID)
	}
	if cfg.Attribution.StreamingThresholdBytes != 27212970 {
		t.Errorf("Attribution.StreamingThresholdBytes = %d, want 27212970", cfg.Attribution.StreamingThresholdBytes)
	}
	if cfg.Storage.Type != "redis" || cfg.Storage.Redis.Host != "redis.internal" || cfg.Storage.Redis.Port != 6379 {
		t.Errorf("Storage = %+v, want redis at redis.internal:6379", cfg.Storage)
	}
}

func TestLoad_MissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("PLEX_SERVER", "http://10.0.0.2:32400")
	t.Setenv("PLEX_TOKEN", "legacy-token")
	t.Setenv("LISTEN_PORT", "9595")
	t.Setenv("PLEXBW_LOGGING_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Plex.URL != "http://10.0.0.2:32400" {
		t.Errorf("Plex.URL = %q", cfg.Plex.URL)
	}
	if cfg.Plex.Token != "legacy-token" {
		t.Errorf("Plex.Token = %q", cfg.Plex.Token)
	}
	if cfg.Server.MetricsPort != 9595 {
		t.Errorf("Server.MetricsPort = %d, want 9595", cfg.Server.MetricsPort)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("PLEX_TOKEN", "legacy-token")
	t.Setenv("PLEXBW_PLEX_TOKEN", "new-token")
	t.Setenv("PLEXBW_PLEX_URL", "http://plex:32400")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Plex.Token != "new-token" {
		t.Errorf("Plex.Token = %q, want new-token", cfg.Plex.Token)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing url",
			body:    "plex:\n  token: x\n",
			wantErr: "plex.url is required",
		},
		{
			name:    "missing token",
			body:    "plex:\n  url: http://plex:32400\n",
			wantErr: "plex.token is required",
		},
		{
			name:    "relative url",
			body:    "plex:\n  url: plex\n  token: x\n",
			wantErr: "invalid plex.url",
		},
		{
			name:    "bad port",
			body:    "plex:\n  url: http://plex:32400\n  token: x\nserver:\n  metrics_port: 70000\n",
			wantErr: "invalid metrics port",
		},
		{
			name:    "negative memory capacity",
			body:    "plex:\n  url: http://plex:32400\n  token: x\nstorage:\n  memory:\n    capacity: -1\n",
			wantErr: "invalid storage.memory.capacity",
		},
		{
			name:    "bad threshold",
			body:    "plex:\n  url: http://plex:32400\n  token: x\nattribution:\n  streaming_threshold_bytes: 0\n",
			wantErr: "streaming_threshold_bytes",
		},
		{
			name:    "unknown storage",
			body:    "plex:\n  url: http://plex:32400\n  token: x\nstorage:\n  type: bolt\n",
			wantErr: "unsupported storage type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
