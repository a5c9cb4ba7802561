package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/schaermu/claudesync/internal/testutil"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.Remove(tmpfile.Name())
	}()

	content := `
paths:
  canonical_root: "/home/user/dot-claude/.claude"
  targets_file: "/home/user/dot-claude/targets.txt"

sync:
  expected_dir_name: ".claude"
  push_settings: true
  ignore:
    - "**/__pycache__/**"
    - "**/.DS_Store"
  watch_debounce: 500ms
`

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.CanonicalRoot != "/home/user/dot-claude/.claude" {
		t.Errorf("expected canonical root /home/user/dot-claude/.claude, got %s", cfg.Paths.CanonicalRoot)
	}
	if !cfg.Sync.PushSettings {
		t.Error("expected push_settings to be true")
	}
	if len(cfg.Sync.Ignore) != 2 {
		t.Errorf("expected 2 ignore patterns, got %d", len(cfg.Sync.Ignore))
	}
	if cfg.Sync.WatchDebounce != 500*time.Millisecond {
		t.Errorf("expected watch_debounce 500ms, got %s", cfg.Sync.WatchDebounce)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte("paths:\n  canonical_root: \"/srv/dot-claude/.claude\"\n")
	if err := os.WriteFile(cfgPath, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Paths.TargetsFile != "/srv/dot-claude/targets.txt" {
		t.Errorf("targets file = %s, want /srv/dot-claude/targets.txt", cfg.Paths.TargetsFile)
	}
	if cfg.Sync.ExpectedDirName != DefaultExpectedDirName {
		t.Errorf("expected dir name = %s, want %s", cfg.Sync.ExpectedDirName, DefaultExpectedDirName)
	}
	if cfg.Sync.PushSettings {
		t.Error("push_settings should default to false")
	}
	if cfg.Sync.WatchDebounce != DefaultWatchDebounce {
		t.Errorf("watch_debounce = %s, want %s", cfg.Sync.WatchDebounce, DefaultWatchDebounce)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CLAUDESYNC_TEST_HOME", "/home/tester")

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte("paths:\n  canonical_root: \"$CLAUDESYNC_TEST_HOME/dot-claude/.claude\"\n")
	if err := os.WriteFile(cfgPath, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Paths.CanonicalRoot != "/home/tester/dot-claude/.claude" {
		t.Errorf("canonical root = %s, want expanded path", cfg.Paths.CanonicalRoot)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("paths: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(testutil.ProjectFile(t, "config.example.yaml"))
	if err != nil {
		t.Fatalf("example config should load: %v", err)
	}

	want := &Config{
		Paths: PathsConfig{
			CanonicalRoot: filepath.Join(home, "dot-claude", ".claude"),
			TargetsFile:   filepath.Join(home, "dot-claude", "targets.txt"),
		},
		Sync: SyncConfig{
			ExpectedDirName: DefaultExpectedDirName,
			Ignore:          []string{"**/__pycache__/**", "**/.DS_Store"},
			WatchDebounce:   DefaultWatchDebounce,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("example config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_DoesNotValidate(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "sync:\n  ignore:\n    - \"**/*.pyc\"\n  watch_debounce: 5s\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath); err == nil {
		t.Fatal("Load() should reject a config without paths.canonical_root")
	}

	cfg, err := Parse(cfgPath)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if cfg.Paths.CanonicalRoot != "" || cfg.Paths.TargetsFile != "" {
		t.Errorf("Parse() should not default paths, got %+v", cfg.Paths)
	}
	if diff := cmp.Diff([]string{"**/*.pyc"}, cfg.Sync.Ignore); diff != "" {
		t.Errorf("ignore mismatch (-want +got):\n%s", diff)
	}
	if cfg.Sync.WatchDebounce != 5*time.Second {
		t.Errorf("watch debounce = %s, want 5s", cfg.Sync.WatchDebounce)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default("/work/dot-claude/.claude/")

	if cfg.Paths.CanonicalRoot != "/work/dot-claude/.claude" {
		t.Errorf("canonical root = %s, want cleaned path", cfg.Paths.CanonicalRoot)
	}
	if cfg.Paths.TargetsFile != "/work/dot-claude/targets.txt" {
		t.Errorf("targets file = %s", cfg.Paths.TargetsFile)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Paths: PathsConfig{
				CanonicalRoot: "/absolute/.claude",
				TargetsFile:   "/absolute/targets.txt",
			},
			Sync: SyncConfig{
				ExpectedDirName: ".claude",
				WatchDebounce:   time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing canonical root",
			mutate:  func(c *Config) { c.Paths.CanonicalRoot = "" },
			wantErr: true,
		},
		{
			name:    "missing targets file",
			mutate:  func(c *Config) { c.Paths.TargetsFile = "" },
			wantErr: true,
		},
		{
			name:    "relative canonical root",
			mutate:  func(c *Config) { c.Paths.CanonicalRoot = "relative/.claude" },
			wantErr: true,
		},
		{
			name:    "relative targets file",
			mutate:  func(c *Config) { c.Paths.TargetsFile = "targets.txt" },
			wantErr: true,
		},
		{
			name:    "expected dir name with separator",
			mutate:  func(c *Config) { c.Sync.ExpectedDirName = "a/.claude" },
			wantErr: true,
		},
		{
			name:    "expected dir name dot-dot",
			mutate:  func(c *Config) { c.Sync.ExpectedDirName = ".." },
			wantErr: true,
		},
		{
			name:    "custom expected dir name",
			mutate:  func(c *Config) { c.Sync.ExpectedDirName = ".claude-staging" },
			wantErr: false,
		},
		{
			name:    "valid ignore patterns",
			mutate:  func(c *Config) { c.Sync.Ignore = []string{"**/*.pyc", "**/.DS_Store"} },
			wantErr: false,
		},
		{
			name:    "invalid ignore pattern",
			mutate:  func(c *Config) { c.Sync.Ignore = []string{"[unclosed"} },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Sync.WatchDebounce = -time.Second },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
