package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestQueueSizeDefaultsRespectWorkers(t *testing.T) {
	t.Setenv("CONFIG_PATH", "does-not-exist.yaml")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("JOB_QUEUE_SIZE", "4")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected worker count 8, got %d", cfg.WorkerCount)
	}
	if cfg.JobQueueSize < cfg.WorkerCount {
		t.Fatalf("queue size should be at least workers, got %d", cfg.JobQueueSize)
	}
}

func TestHTTPPortDefaultFormatting(t *testing.T) {
	t.Setenv("CONFIG_PATH", "does-not-exist.yaml")
	t.Setenv("HTTP_PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPPort != ":9000" {
		t.Fatalf("expected HTTP_PORT to include colon, got %s", cfg.HTTPPort)
	}
}

func TestLedgerDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "does-not-exist.yaml")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Ledger.VehicleCategories) != 1 || cfg.Ledger.VehicleCategories[0] != "IN_PASSENGER_VEHICLE" {
		t.Fatalf("vehicle categories: %v", cfg.Ledger.VehicleCategories)
	}
	if !cfg.Ledger.Filter.DuplicateOriginCheck {
		t.Fatalf("duplicate origin check should default on")
	}
	if cfg.Ledger.Filter.MinDistanceKm != 15 {
		t.Fatalf("min distance default = %v", cfg.Ledger.Filter.MinDistanceKm)
	}
}

func TestFileConfigAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
drop_dir: /data/exports
ledger:
  odometer_date: "2025-10-01"
  odometer_km: 150000
  filter:
    min_distance_km: 10
    purpose_rules:
      - purpose: Travel to Customer Site
        markers: [tiverton, kincardine]
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DROP_DIR", "/env/exports")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DropDir != "/env/exports" {
		t.Fatalf("env should win over file, got %s", cfg.DropDir)
	}
	if cfg.Ledger.OdometerDate != "2025-10-01" || cfg.Ledger.OdometerKm != 150000 {
		t.Fatalf("ledger anchor: %s / %v", cfg.Ledger.OdometerDate, cfg.Ledger.OdometerKm)
	}
	if cfg.Ledger.Filter.MinDistanceKm != 10 {
		t.Fatalf("file min distance override lost: %v", cfg.Ledger.Filter.MinDistanceKm)
	}
	if len(cfg.Ledger.Filter.PurposeRules) != 1 {
		t.Fatalf("purpose rules: %+v", cfg.Ledger.Filter.PurposeRules)
	}
	// Filter keys were set without duplicate_origin_check, so the
	// explicit-false rule turns it off.
	if cfg.Ledger.Filter.DuplicateOriginCheck {
		t.Fatalf("file filter block without duplicate_origin_check: true should disable it")
	}
}

func writeMinimalConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("drop_dir: /data/exports\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestStrictConfigRejectsBadAnchor(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeMinimalConfig(t))
	t.Setenv("STRICT_CONFIG", "0")
	t.Setenv("ODOMETER_DATE", "10/01/2025")
	t.Setenv("ODOMETER_KM", "150000")
	if _, err := Load(); err != nil {
		t.Fatalf("non-strict load should continue: %v", err)
	}

	t.Setenv("STRICT_CONFIG", "1")
	if _, err := Load(); err == nil {
		t.Fatalf("strict load should fail on malformed odometer date")
	}
}

func TestStrictConfigRequiresBothFiscalBounds(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeMinimalConfig(t))
	t.Setenv("STRICT_CONFIG", "1")
	t.Setenv("FISCAL_START", "2024-11-01")
	if _, err := Load(); err == nil {
		t.Fatalf("strict load should fail on half-open fiscal window")
	}
	t.Setenv("FISCAL_END", "2025-10-31")
	if _, err := Load(); err != nil {
		t.Fatalf("full fiscal window should load: %v", err)
	}
}
