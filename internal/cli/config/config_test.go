package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}

	// Check defaults
	if cfg.Server.Port != 1234 {
		t.Errorf("expected default port 1234, got %d", cfg.Server.Port)
	}

	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host 'localhost', got %s", cfg.Server.Host)
	}

	if cfg.DistDir != "dist" {
		t.Errorf("expected default dist dir 'dist', got %s", cfg.DistDir)
	}

	if cfg.Mode != "development" {
		t.Errorf("expected default mode 'development', got %s", cfg.Mode)
	}

	if len(cfg.Entries) != 1 || cfg.Entries[0] != "src/index.js" {
		t.Errorf("expected default entries [src/index.js], got %v", cfg.Entries)
	}

	if cfg.Cache.Backend != "memory" {
		t.Errorf("expected default cache backend 'memory', got %s", cfg.Cache.Backend)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	// Create temporary directory with config file
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	// Write config file
	configContent := `
project_name: test-project
entries:
  - src/main.js
  - src/admin.js
dist_dir: out
mode: production
server:
  port: 8080
  host: 0.0.0.0
cache:
  backend: redis
  redis:
    addr: redis.local:6379
`
	os.WriteFile("parcel.yml", []byte(configContent), 0644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error loading config, got %v", err)
	}

	if cfg.ProjectName != "test-project" {
		t.Errorf("expected project name 'test-project', got %s", cfg.ProjectName)
	}

	if len(cfg.Entries) != 2 {
		t.Errorf("expected 2 entries, got %v", cfg.Entries)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}

	if cfg.DistDir != "out" {
		t.Errorf("expected dist dir 'out', got %s", cfg.DistDir)
	}

	if cfg.Mode != "production" {
		t.Errorf("expected mode 'production', got %s", cfg.Mode)
	}

	if cfg.Cache.Backend != "redis" {
		t.Errorf("expected cache backend 'redis', got %s", cfg.Cache.Backend)
	}

	if cfg.Cache.Redis.Addr != "redis.local:6379" {
		t.Errorf("expected redis addr 'redis.local:6379', got %s", cfg.Cache.Redis.Addr)
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	os.WriteFile("parcel.yml", []byte("mode: staging\n"), 0644)

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid mode, got nil")
	}
}

func TestLoadRejectsUnknownCacheBackend(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	os.WriteFile("parcel.yml", []byte("cache:\n  backend: memcached\n"), 0644)

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown cache backend, got nil")
	}
}

func TestInProject(t *testing.T) {
	// Test in non-project directory
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	if InProject() {
		t.Error("expected InProject to return false in non-project directory")
	}

	os.WriteFile("parcel.yml", []byte(""), 0644)

	if !InProject() {
		t.Error("expected InProject to return true in project directory")
	}
}

func TestGetProjectRoot(t *testing.T) {
	// Create nested directory structure
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	// Create project root with parcel.yml
	os.WriteFile(filepath.Join(tmpDir, "parcel.yml"), []byte(""), 0644)

	// Create nested subdirectory
	subDir := filepath.Join(tmpDir, "src", "deep", "nested")
	os.MkdirAll(subDir, 0755)
	os.Chdir(subDir)

	root, err := GetProjectRoot()
	if err != nil {
		t.Fatalf("expected to find project root, got error: %v", err)
	}

	// On macOS, /tmp is symlinked to /private/tmp, so resolve both paths
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	resolvedTmpDir, _ := filepath.EvalSymlinks(tmpDir)

	if resolvedRoot != resolvedTmpDir {
		t.Errorf("expected project root to be %s, got %s", resolvedTmpDir, resolvedRoot)
	}
}

func TestGetProjectRootNotInProject(t *testing.T) {
	// Create temporary directory with no project markers
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	_, err := GetProjectRoot()
	if err == nil {
		t.Error("expected error when not in a project, got nil")
	}
}
