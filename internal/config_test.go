package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/deckgraph/internal/graph"
	pkgconfig "github.com/starford/deckgraph/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	s := cfg.Graph.Settings()
	if s.Depth != 2 || !s.Reheat || s.FrameInterval <= 0 {
		t.Errorf("settings = %+v", s)
	}
}

func TestVaultConfig_BadGlob(t *testing.T) {
	cfg := VaultConfig{Path: "v", Ignore: []string{"[unterminated"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid glob should fail validation")
	}
}

func TestCacheConfig_EmptyBackendDefaultsMemory(t *testing.T) {
	cfg := CacheConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend: %v", err)
	}
	if cfg.Backend != CacheMemory {
		t.Errorf("backend = %q, want %q", cfg.Backend, CacheMemory)
	}
}

func TestCacheConfig_RedisNeedsAddress(t *testing.T) {
	cfg := CacheConfig{Backend: CacheRedis}
	if err := cfg.Validate(); err == nil {
		t.Fatal("redis backend without address should fail")
	}
	cfg.Redis.Address = "localhost:6379"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("redis backend with address: %v", err)
	}
}

func TestGraphConfig_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GraphConfig)
	}{
		{"zero depth", func(c *GraphConfig) { c.Depth = 0 }},
		{"deep", func(c *GraphConfig) { c.Depth = 11 }},
		{"no ticks", func(c *GraphConfig) { c.MaxTicks = 0 }},
		{"tiny interval", func(c *GraphConfig) { c.FrameInterval = time.Microsecond }},
		{"decay", func(c *GraphConfig) { c.Forces.VelocityDecay = 0 }},
		{"no label width", func(c *GraphConfig) { c.LabelCharWidth = 0 }},
		{"flat label", func(c *GraphConfig) { c.LabelLineHeight = 0.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Graph
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad_TOMLConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "deckgraph.toml")
	body := `
[app.http]
port = 9090

[vault]
path = "./decks"

[graph]
depth = 3
max_ticks = 400
frame_interval = "20ms"
reheat_on_rebuild = false
label_char_width = 8.5

[cache]
backend = "none"
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Graph.Depth != 3 || cfg.Graph.ReheatOnRebuild {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Graph.FrameInterval != 20*time.Millisecond {
		t.Errorf("frame interval = %v", cfg.Graph.FrameInterval)
	}
	if s := cfg.Graph.Settings(); s.CharWidth != 8.5 || s.LineHeight != graph.DefaultLineHeight {
		t.Errorf("label metrics = %v x %v", s.CharWidth, s.LineHeight)
	}
	if cfg.SQLite.Path != "./deckgraph.db" {
		t.Errorf("defaults lost: sqlite = %q", cfg.SQLite.Path)
	}
}
