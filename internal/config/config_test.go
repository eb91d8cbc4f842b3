package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Docgen.MaxRetries != 5 {
		t.Errorf("expected max_retries=5, got %d", cfg.Docgen.MaxRetries)
	}
	if cfg.Docgen.DateLayout != "02.01.2006" {
		t.Errorf("expected tr-TR date layout, got %q", cfg.Docgen.DateLayout)
	}
	if cfg.Audit.Sink != "db" {
		t.Errorf("expected db audit sink, got %q", cfg.Audit.Sink)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "crm.yaml")
	content := []byte("database:\n  dsn: ./other.db\ndocgen:\n  max_retries: 3\n  timezone: UTC\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CRM_DOCGEN_MAX_RETRIES", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.DSN != "./other.db" {
		t.Errorf("expected dsn from file, got %q", cfg.Database.DSN)
	}
	if cfg.Docgen.MaxRetries != 9 {
		t.Errorf("expected env override 9, got %d", cfg.Docgen.MaxRetries)
	}
	loc, err := cfg.Docgen.Location()
	if err != nil || loc == nil || loc.String() != "UTC" {
		t.Errorf("expected UTC location, got %v (err %v)", loc, err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CRM_AUDIT_SINK=none\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("CRM_AUDIT_SINK") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Audit.Sink != "none" {
		t.Errorf("expected sink from .env, got %q", cfg.Audit.Sink)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"driver":  func(c *Config) { c.Database.Driver = "mysql" },
		"sink":    func(c *Config) { c.Audit.Sink = "kafka" },
		"retries": func(c *Config) { c.Docgen.MaxRetries = 0 },
		"zone":    func(c *Config) { c.Docgen.Timezone = "Nowhere/City" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
