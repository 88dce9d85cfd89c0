package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 8080},
		Redis: RedisConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidResolutionMode(t *testing.T) {
	cfg := validConfig()
	cfg.KPI.ResolutionMode = "guess"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid resolution mode")
	}

	expected := `kpi.resolution_mode must be "grounded" or "knowledge", got "guess"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidResolutionModes(t *testing.T) {
	for _, mode := range []string{"grounded", "knowledge"} {
		t.Run("mode="+mode, func(t *testing.T) {
			cfg := validConfig()
			cfg.KPI.ResolutionMode = mode
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for mode %q: %v", mode, err)
			}
		})
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingRedisAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "mysql"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown database driver")
	}
}

func TestValidate_DefaultPlanCount(t *testing.T) {
	cfg := validConfig()
	cfg.Plans = map[string]PlanConfig{
		"free": {PagesPerPDF: 10, Default: true},
		"pro":  {PagesPerPDF: 10, Default: true},
	}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for two default plans")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Retrieval.ChatTopK != 4 {
		t.Errorf("expected ChatTopK=4, got %d", cfg.Retrieval.ChatTopK)
	}
	if cfg.Retrieval.ExtractTopK != 10 {
		t.Errorf("expected ExtractTopK=10, got %d", cfg.Retrieval.ExtractTopK)
	}
	if cfg.Retrieval.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts=5, got %d", cfg.Retrieval.MaxAttempts)
	}
	if cfg.Chat.HistoryWindow != 6 {
		t.Errorf("expected HistoryWindow=6, got %d", cfg.Chat.HistoryWindow)
	}
	if cfg.KPI.ResolutionMode != "grounded" {
		t.Errorf("expected ResolutionMode=grounded, got %q", cfg.KPI.ResolutionMode)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected Driver=sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.LLM.ExtractionModel != cfg.LLM.ChatModel {
		t.Errorf("expected ExtractionModel to fall back to ChatModel, got %q", cfg.LLM.ExtractionModel)
	}
	free, ok := cfg.Plans["free"]
	if !ok || !free.Default || free.PDFsPerMonth != 10 || free.PagesPerPDF != 1000 {
		t.Errorf("unexpected free plan: %+v", free)
	}
	if cfg.Storage.KeyPrefix != "reportlens:" {
		t.Errorf("expected KeyPrefix='reportlens:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Retrieval: RetrievalConfig{ChatTopK: 8},
		Chat:      ChatConfig{HistoryWindow: 12},
		Storage:   StorageConfig{KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Retrieval.ChatTopK != 8 {
		t.Errorf("expected ChatTopK=8, got %d", cfg.Retrieval.ChatTopK)
	}
	if cfg.Chat.HistoryWindow != 12 {
		t.Errorf("expected HistoryWindow=12, got %d", cfg.Chat.HistoryWindow)
	}
	if cfg.Storage.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Storage.KeyPrefix)
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("RL_TEST_PORT", "9090")
	data := []byte(`
http:
  port: ${RL_TEST_PORT}
redis:
  addrs: ["${RL_TEST_REDIS:-localhost:6379}"]
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTP.Port)
	}
	if len(cfg.Redis.Addrs) != 1 || cfg.Redis.Addrs[0] != "localhost:6379" {
		t.Errorf("unexpected addrs: %v", cfg.Redis.Addrs)
	}
}

func TestParse_InvalidConfig(t *testing.T) {
	_, err := Parse([]byte("http:\n  port: 0\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected invalid config error, got %v", err)
	}
}
