package cli

import (
	"testing"
	"time"

	"github.com/guiyumin/vresolve/internal/core/config"
)

func TestConfigValues(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"server.port", "9000", "9000"},
		{"resolver.request_timeout", "90s", "1m30s"},
		{"server.allow_origins", "https://a.test, https://b.test", "https://a.test,https://b.test"},
		{"browser.headless", "false", "false"},
		{"log.level", "debug", "debug"},
	}
	for _, tt := range tests {
		if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
			t.Fatalf("set %s: %v", tt.key, err)
		}
		got, err := getConfigValue(cfg, tt.key)
		if err != nil || got != tt.want {
			t.Errorf("get %s = %q, %v; want %q", tt.key, got, err, tt.want)
		}
	}
	if cfg.Resolver.RequestTimeout != 90*time.Second {
		t.Errorf("request timeout = %s", cfg.Resolver.RequestTimeout)
	}
}

func TestConfigValueErrors(t *testing.T) {
	cfg := config.DefaultConfig()

	if err := setConfigValue(cfg, "output_dir", "x"); err == nil {
		t.Error("unknown key should fail")
	}
	if err := setConfigValue(cfg, "server.port", "abc"); err == nil {
		t.Error("non-numeric port should fail")
	}
	if err := setConfigValue(cfg, "http.timeout", "soon"); err == nil {
		t.Error("bad duration should fail")
	}
}

func TestUnsetConfigValue(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Port = 1234
	cfg.Server.APIKey = "secret"

	if err := unsetConfigValue(cfg, "server.port"); err != nil {
		t.Fatal(err)
	}
	if err := unsetConfigValue(cfg, "server.api_key"); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != config.DefaultConfig().Server.Port || cfg.Server.APIKey != "" {
		t.Errorf("server = %+v", cfg.Server)
	}
}
