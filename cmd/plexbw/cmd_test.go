package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/goodtune/plexbw/internal/attribution"
	"github.com/goodtune/plexbw/internal/config"
	"github.com/goodtune/plexbw/internal/storage"
)

func init() {
	color.NoColor = true
}

func TestFindUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
plex:
  url: http://plex.local:32400
  token: abc
  tokn: typo
storage:
  type: memory
  redis:
    hots: localhost
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := findUnknownKeys(path)
	if err != nil {
		t.Fatalf("findUnknownKeys failed: %v", err)
	}

	want := []string{"plex.tokn", "storage.redis.hots"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("findUnknownKeys() = %v, want %v", got, want)
	}
}

func TestFindUnknownKeys_MissingFile(t *testing.T) {
	got, err := findUnknownKeys(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || len(got) != 0 {
		t.Errorf("findUnknownKeys() = (%v, %v), want no keys", got, err)
	}
}

func TestDumpConfig_RedactsSecrets(t *testing.T) {
	cfg := getDefaultConfig()
	cfg.Plex.Token = "super-secret"
	cfg.Storage.Redis.Password = "hunter2"
	cfg.Server.MetricsPort = 9100

	var buf bytes.Buffer
	dumpConfig(&buf, cfg, getDefaultConfig())
	out := buf.String()

	if strings.Contains(out, "super-secret") || strings.Contains(out, "hunter2") {
		t.Errorf("dump leaked a secret:\n%s", out)
	}
	if !strings.Contains(out, "metrics_port = 9100  (modified from default: 3000)") {
		t.Errorf("dump missing modified metrics_port:\n%s", out)
	}
	if !strings.Contains(out, "timespan = 6\n") {
		t.Errorf("dump missing default timespan:\n%s", out)
	}
}

func TestOpenStorage(t *testing.T) {
	store, err := openStorage(config.StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("openStorage(memory) failed: %v", err)
	}
	_ = store.Close()

	if _, err := openStorage(config.StorageConfig{Type: "bolt"}); err == nil {
		t.Error("openStorage(bolt) succeeded, want error")
	}
}

func TestPrintSamples(t *testing.T) {
	samples := []attribution.Sample{
		{
			Labels: attribution.Labels{
				attribution.LabelAccountName:         "friend",
				attribution.LabelAccountID:           "22",
				attribution.LabelOriginalAccountName: "owner",
				attribution.LabelDeviceName:          "Living Room",
				attribution.LabelNet:                 "wan",
				attribution.LabelMediaTitle:          "Heat (1995)",
				attribution.LabelState:               "playing",
			},
			Bytes: 30000000,
		},
		{
			Labels: attribution.Labels{
				attribution.LabelAccountName: "owner",
				attribution.LabelAccountID:   "1",
				attribution.LabelDeviceName:  "Office",
				attribution.LabelNet:         "lan",
			},
			Bytes: 1000,
		},
	}

	var buf bytes.Buffer
	printSamples(&buf, samples)
	out := buf.String()

	for _, want := range []string{"30 MB", "friend (22) on Living Room [wan]", "reattributed from owner", "Heat (1995) playing", "1.0 kB", "2 samples"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printSamples(&buf, nil)
	if !strings.Contains(buf.String(), "No new samples") {
		t.Errorf("empty output = %q", buf.String())
	}
}

func TestPrintSamplesJSON(t *testing.T) {
	samples := []attribution.Sample{
		{Labels: attribution.Labels{attribution.LabelAccountID: "22"}, Bytes: 42},
		{Labels: attribution.Labels{attribution.LabelAccountID: "33"}, Bytes: 7},
	}

	var buf bytes.Buffer
	if err := printSamplesJSON(&buf, samples); err != nil {
		t.Fatalf("printSamplesJSON failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first struct {
		Labels map[string]string `json:"labels"`
		Bytes  float64           `json:"bytes"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if first.Labels["accountId"] != "22" || first.Bytes != 42 {
		t.Errorf("first line = %+v", first)
	}
}

func TestShowMarker(t *testing.T) {
	store, err := openStorage(config.StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("openStorage failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	key := storage.PairKey{AccountID: 22, DeviceID: 7}

	var buf bytes.Buffer
	if err := showMarker(ctx, &buf, store, key); err != nil {
		t.Fatalf("showMarker failed: %v", err)
	}
	if !strings.Contains(buf.String(), "22:7: no bucket emitted yet") {
		t.Errorf("output = %q", buf.String())
	}

	if _, _, err := store.Advance(ctx, key, 1700000000); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	buf.Reset()
	if err := showMarker(ctx, &buf, store, key); err != nil {
		t.Fatalf("showMarker failed: %v", err)
	}
	if !strings.Contains(buf.String(), "last emitted bucket 1700000000 (2023-11-14T22:13:20Z") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestParsePairKey(t *testing.T) {
	key, err := parsePairKey("22", "7")
	if err != nil || key != (storage.PairKey{AccountID: 22, DeviceID: 7}) {
		t.Errorf("parsePairKey() = (%v, %v)", key, err)
	}
	if _, err := parsePairKey("owner", "7"); err == nil {
		t.Error("parsePairKey(owner) succeeded, want error")
	}
	if _, err := parsePairKey("1", "tv"); err == nil {
		t.Error("parsePairKey(tv) succeeded, want error")
	}
}
