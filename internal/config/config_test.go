package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":8787" || cfg.StoreDriver != DriverPostgres {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.CacheTTL)
	}
	if cfg.ObjectStorageEnabled() {
		t.Fatal("object storage should be off without an endpoint")
	}
}

func TestLoadYAMLThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	body := strings.Join([]string{
		"addr: \":9000\"",
		"storeDriver: memory",
		"cacheTTLSeconds: 60",
		"archiveDir: /srv/archive",
		"paragraphUsageQuery: SELECT paragraph_id FROM flow_steps WHERE paragraph_id = ANY($1)",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("API_ADDR", ":9100")
	t.Setenv("CACHE_TTL_SECONDS", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9100" {
		t.Fatalf("environment should win over yaml, got %q", cfg.Addr)
	}
	if cfg.StoreDriver != DriverMemory || cfg.ArchiveDir != "/srv/archive" {
		t.Fatalf("yaml values not applied: %+v", cfg)
	}
	if cfg.CacheTTL != time.Minute {
		t.Fatalf("expected 1m cache ttl, got %s", cfg.CacheTTL)
	}
	if !strings.Contains(cfg.ParagraphUsageQuery, "flow_steps") {
		t.Fatalf("paragraph usage query not applied: %q", cfg.ParagraphUsageQuery)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected .env log level, got %q", cfg.LogLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.StoreDriver = "sqlite" }, want: "unknown store driver"},
		{name: "postgres without url", mutate: func(c *Config) { c.DatabaseURL = "" }, want: "databaseURL"},
		{name: "memory without url", mutate: func(c *Config) { c.StoreDriver = DriverMemory; c.DatabaseURL = "" }},
		{name: "missing secret", mutate: func(c *Config) { c.JWTSecret = "" }, want: "jwtSecret"},
		{name: "partial minio", mutate: func(c *Config) { c.MinioEndpoint = "localhost:9000" }, want: "minio"},
		{name: "zero cache ttl", mutate: func(c *Config) { c.CacheTTLSeconds = 0 }, want: "cacheTTLSeconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
