package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestCacheBase_XDGSet(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	got := cacheBase()
	want := filepath.Join("/custom/cache", "rsidebar")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got := CASDir(); got != filepath.Join(want, "cas") {
		t.Errorf("CASDir() = %q", got)
	}
}

func TestCacheBase_HomeDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	got := cacheBase()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("cannot determine home dir")
	}
	want := filepath.Join(home, ".cache", "rsidebar")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCacheBase_TmpFallback(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "")
	got := cacheBase()
	// Should use os.TempDir() when HOME is unset
	if !strings.Contains(got, "rsidebar") {
		t.Errorf("expected rsidebar in path, got %q", got)
	}
}

func TestSocketPath_XDGRuntime(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/test")
	if got := SocketPath(); got != "/run/test/rsidebar/daemon.sock" {
		t.Errorf("SocketPath() = %q", got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		check    func(t *testing.T, c *Config)
	}{
		{
			name: "durations_and_slices",
			settings: map[string]interface{}{
				"docs_rs": map[string]interface{}{"base_url": "https://mirror.example/", "timeout": "5s"},
				"daemon":  map[string]interface{}{"expiration_seconds": 30},
				"watch":   map[string]interface{}{"debounce": "100ms", "ignore": "target,vendor"},
			},
			check: func(t *testing.T, c *Config) {
				if c.DocsRs.BaseURL != "https://mirror.example" {
					t.Errorf("BaseURL = %q", c.DocsRs.BaseURL)
				}
				if c.DocsRs.Timeout != 5*time.Second {
					t.Errorf("Timeout = %v", c.DocsRs.Timeout)
				}
				if c.Daemon.Expiration() != 30*time.Second {
					t.Errorf("Expiration() = %v", c.Daemon.Expiration())
				}
				if c.Watch.Debounce != 100*time.Millisecond {
					t.Errorf("Debounce = %v", c.Watch.Debounce)
				}
				if !reflect.DeepEqual(c.Watch.Ignore, []string{"target", "vendor"}) {
					t.Errorf("Ignore = %v", c.Watch.Ignore)
				}
			},
		},
		{
			name: "docs_rs_shorthand",
			settings: map[string]interface{}{
				"docs_rs": "https://mirror.example",
				"daemon":  map[string]interface{}{"expiration_seconds": 600},
				"sidebar": map[string]interface{}{"sort_entries": "true"},
			},
			check: func(t *testing.T, c *Config) {
				if c.DocsRs.BaseURL != "https://mirror.example" || c.DocsRs.Timeout != time.Minute {
					t.Errorf("DocsRs = %+v", c.DocsRs)
				}
				if !c.Sidebar.SortEntries {
					t.Error("SortEntries should decode from a string")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := decode(tt.settings)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			tt.check(t, c)
		})
	}
}

func TestDecode_InvalidExpiration(t *testing.T) {
	_, err := decode(map[string]interface{}{
		"daemon": map[string]interface{}{"expiration_seconds": 0},
	})
	if err == nil {
		t.Error("expected error for zero expiration")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("RSIDEBAR_SIDEBAR_INCLUDE_HIDDEN", "true")

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[watch]\ndebounce = \"1s\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Sidebar.IncludeHidden {
		t.Error("env override not applied")
	}
	if c.Watch.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s from config.toml", c.Watch.Debounce)
	}
	if c.DocsRs.BaseURL != "https://docs.rs" {
		t.Errorf("BaseURL default = %q", c.DocsRs.BaseURL)
	}
}
