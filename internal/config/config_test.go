package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.ScalePoints != 5 {
		t.Fatalf("scale_points = %d, want 5", cfg.ScalePoints)
	}
	if cfg.ScanInterval != time.Minute {
		t.Fatalf("scan_interval = %v, want 1m", cfg.ScanInterval)
	}
	if cfg.RetentionHour != 3 {
		t.Fatalf("retention_hour = %d, want 3", cfg.RetentionHour)
	}
	if cfg.Scoring.CriticalBelow != 2.5 || cfg.Scoring.WarningBelow != 3.5 {
		t.Fatalf("unexpected scoring defaults: %+v", cfg.Scoring)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `addr: ":9090"
database_path: "/tmp/test.db"
scale_points: 7
scan_interval: 30s
retention_hour: 4
scoring:
  critical_below: 2.0
  warning_below: 3.0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.DatabasePath != "/tmp/test.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ScalePoints != 7 {
		t.Fatalf("scale_points = %d, want 7", cfg.ScalePoints)
	}
	if cfg.ScanInterval != 30*time.Second {
		t.Fatalf("scan_interval = %v, want 30s", cfg.ScanInterval)
	}
	if cfg.Scoring.CriticalBelow != 2.0 || cfg.Scoring.WarningBelow != 3.0 {
		t.Fatalf("scoring overrides not applied: %+v", cfg.Scoring)
	}
	// fields absent from the file keep their defaults
	if cfg.Scoring.CriticalGap != 1.5 {
		t.Fatalf("critical_gap = %v, want default 1.5", cfg.Scoring.CriticalGap)
	}
	if cfg.SenderName != "Friktion" {
		t.Fatalf("sender_name = %q, want default", cfg.SenderName)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("FRIKTION_ADDR", ":7070")
	t.Setenv("FRIKTION_DB_PATH", "/var/lib/friktion.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("addr = %q, want env value", cfg.Addr)
	}
	if cfg.DatabasePath != "/var/lib/friktion.db" {
		t.Fatalf("database_path = %q, want env value", cfg.DatabasePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
