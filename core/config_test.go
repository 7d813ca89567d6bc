package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/b5/squiggle/core"
)

func TestLoadConfigMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := core.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := core.DefaultConfig()
	if cfg.ListenAddr != want.ListenAddr || cfg.DiscoveryTag != want.DiscoveryTag {
		t.Fatalf("expected defaults for a missing config file, got %+v", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "data_root: /tmp/custom\nlog_level: debug\nworker_capacity: 4\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DataRoot != "/tmp/custom" || cfg.LogLevel != "debug" || cfg.WorkerCapacity != 4 {
		t.Fatalf("expected YAML overrides to apply, got %+v", cfg)
	}
	// Fields absent from the YAML document keep their defaults.
	if cfg.DiscoveryTag != core.DefaultConfig().DiscoveryTag {
		t.Fatalf("expected unset fields to retain defaults, got %q", cfg.DiscoveryTag)
	}
}

func TestEnsureDataRootCreatesTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	cfg := core.DefaultConfig()
	cfg.DataRoot = root

	if err := cfg.EnsureDataRoot(); err != nil {
		t.Fatalf("ensure data root: %v", err)
	}
	for _, dir := range []string{root, cfg.BlobDir(), cfg.KVDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected %s to exist as a directory", dir)
		}
	}
}
