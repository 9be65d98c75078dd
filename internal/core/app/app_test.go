package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/media"
	"github.com/guiyumin/vresolve/internal/core/registry"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("APPDATA", dir)
	t.Chdir(dir)
	return dir
}

func TestNewDefaults(t *testing.T) {
	isolate(t)

	a, err := New(nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Engine == nil || a.Proxy == nil {
		t.Fatal("engine and proxy must be wired")
	}
	if got := len(a.Registry.Lookup(media.PlatformTikTok, media.KindVideo)); got != 3 {
		t.Errorf("tiktok video strategies = %d, want 3", got)
	}
	if a.Engine.Stats().Workers != config.DefaultConfig().Resolver.Workers {
		t.Errorf("workers = %d", a.Engine.Stats().Workers)
	}
}

func TestNewStrategiesOverride(t *testing.T) {
	dir := isolate(t)

	cfg := &config.StrategiesConfig{
		Strategies: []config.StrategySpec{
			{Name: registry.TikWM, Mode: "sequential", Timeout: 5 * time.Second, Platforms: []string{"tiktok"}, Kinds: []string{"video"}},
		},
	}
	if err := config.SaveStrategies(filepath.Join(dir, config.StrategiesFileName), cfg); err != nil {
		t.Fatal(err)
	}

	a, err := New(config.DefaultConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	descs := a.Registry.Lookup(media.PlatformTikTok, media.KindVideo)
	if len(descs) != 1 || descs[0].Name != registry.TikWM {
		t.Errorf("descs = %+v", descs)
	}
}

func TestNewUnknownStrategy(t *testing.T) {
	dir := isolate(t)

	data := "strategies:\n  - name: nope\n    mode: sequential\n    timeout: 5s\n    platforms: [tiktok]\n    kinds: [video]\n"
	if err := os.WriteFile(filepath.Join(dir, config.StrategiesFileName), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(config.DefaultConfig()); err == nil {
		t.Error("a strategy without adapter should be rejected")
	}
}
