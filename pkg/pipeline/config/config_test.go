package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumIndexWorkers != 4 {
		t.Errorf("NumIndexWorkers = %d, want 4", cfg.NumIndexWorkers)
	}
	if cfg.GrpcListenAddr != "127.0.0.1:9877" {
		t.Errorf("GrpcListenAddr = %q, want 127.0.0.1:9877", cfg.GrpcListenAddr)
	}
	if len(cfg.WatchPaths) != 1 || cfg.WatchPaths[0] != "." {
		t.Errorf("WatchPaths = %v, want [.]", cfg.WatchPaths)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("Load with a missing file returned an error: %v", err)
	}
	if cfg.NumIndexWorkers != 4 {
		t.Errorf("NumIndexWorkers = %d, want the default 4", cfg.NumIndexWorkers)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"num_index_workers": 8}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumIndexWorkers != 8 {
		t.Errorf("NumIndexWorkers = %d, want 8", cfg.NumIndexWorkers)
	}
	// Unset fields keep their default.
	if cfg.GrpcListenAddr != "127.0.0.1:9877" {
		t.Errorf("GrpcListenAddr = %q, want default to survive", cfg.GrpcListenAddr)
	}
}

func TestLoadEnvOverridesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"num_index_workers": 8}`), 0o644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("AIDEPIPE_NUM_INDEX_WORKERS", "16")
	defer os.Unsetenv("AIDEPIPE_NUM_INDEX_WORKERS")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumIndexWorkers != 16 {
		t.Errorf("NumIndexWorkers = %d, want the env override 16", cfg.NumIndexWorkers)
	}
}
