package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tripledger/internal/report"
	"tripledger/internal/trip"
)

// Config holds service configuration from config.yaml, the environment,
// and an optional .env file. Environment values win over file values.
type Config struct {
	HTTPPort      string
	MetricsAddr   string
	DropDir       string
	WorkDir       string
	DBPath        string
	JobQueueSize  int
	WorkerCount   int
	JobTimeoutSec int
	StrictConfig  bool

	Maps   MapsConfig
	Ledger LedgerConfig
}

// MapsConfig configures the geocoding collaborator. The API key comes
// from the environment only; endpoint overrides live in the file.
type MapsConfig struct {
	APIKey            string
	PlaceDetailsURL   string `yaml:"place_details_url"`
	GeocodeURL        string `yaml:"geocode_url"`
	ResolveActivities bool   `yaml:"resolve_activities"`
}

// LedgerConfig drives trip building and the final report.
type LedgerConfig struct {
	VehicleCategories []string            `yaml:"vehicle_categories"`
	OdometerDate      string              `yaml:"odometer_date"`
	OdometerKm        float64             `yaml:"odometer_km"`
	FiscalStart       string              `yaml:"fiscal_start"`
	FiscalEnd         string              `yaml:"fiscal_end"`
	Filter            report.FilterConfig `yaml:"filter"`
}

type fileConfig struct {
	DropDir     string       `yaml:"drop_dir"`
	WorkDir     string       `yaml:"work_dir"`
	DBPath      string       `yaml:"db_path"`
	HTTPPort    string       `yaml:"http_port"`
	MetricsAddr string       `yaml:"metrics_addr"`
	Maps        MapsConfig   `yaml:"maps"`
	Ledger      LedgerConfig `yaml:"ledger"`
}

const (
	defaultPort          = ":8000"
	defaultDropDir       = "runtime/exports"
	defaultWorkDir       = "runtime/work"
	defaultDBFile        = "tripledger.db"
	minQueueSize         = 1
	defaultQueueSize     = 100
	maxQueueSize         = 1024
	defaultWorkerCount   = 2
	defaultJobTimeoutSec = 300
	defaultMinDistanceKm = 15
)

func defaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		VehicleCategories: append([]string{}, trip.DefaultVehicleCategories...),
		Filter: report.FilterConfig{
			RegionMarkers:        []string{", on ", ", ontario"},
			DuplicateOriginCheck: true,
			MinDistanceKm:        defaultMinDistanceKm,
		},
	}
}

// Load reads .env, config.yaml, then environment overrides. With
// STRICT_CONFIG set, any file or validation problem fails the load
// instead of logging and continuing.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		JobQueueSize:  defaultQueueSize,
		WorkerCount:   defaultWorkerCount,
		JobTimeoutSec: defaultJobTimeoutSec,
		StrictConfig:  parseBoolEnv("STRICT_CONFIG"),
		Ledger:        defaultLedgerConfig(),
	}

	configPath := getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml"))
	fileCfg, fileErr := loadFileConfig(configPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", configPath, fileErr)
		}
		log.Printf("config load failed (%s): %v (using defaults)", configPath, fileErr)
	}

	cfg.Ledger = applyLedgerOverrides(cfg.Ledger, fileCfg.Ledger)
	cfg.Maps = fileCfg.Maps
	cfg.Maps.APIKey = os.Getenv("MAPS_API_KEY")
	if v := strings.TrimSpace(os.Getenv("RESOLVE_ACTIVITIES")); v != "" {
		cfg.Maps.ResolveActivities = parseBoolEnv("RESOLVE_ACTIVITIES")
	}

	cfg.DropDir = firstNonEmpty(os.Getenv("DROP_DIR"), fileCfg.DropDir, defaultDropDir)
	cfg.WorkDir = firstNonEmpty(os.Getenv("WORK_DIR"), fileCfg.WorkDir, defaultWorkDir)
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	} else if fileCfg.DBPath != "" {
		cfg.DBPath = fileCfg.DBPath
	} else {
		cfg.DBPath = filepath.Join(cfg.WorkDir, defaultDBFile)
	}

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}
	cfg.MetricsAddr = firstNonEmpty(os.Getenv("METRICS_ADDR"), fileCfg.MetricsAddr)

	if v := os.Getenv("WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Printf("invalid WORKER_COUNT=%q, using default %d", v, defaultWorkerCount)
			n = defaultWorkerCount
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("JOB_QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("invalid JOB_QUEUE_SIZE=%q, using default %d", v, defaultQueueSize)
			n = defaultQueueSize
		}
		if n < minQueueSize {
			log.Printf("JOB_QUEUE_SIZE raised to minimum %d (was %d)", minQueueSize, n)
			n = minQueueSize
		}
		if n > maxQueueSize {
			log.Printf("JOB_QUEUE_SIZE capped at %d (was %d)", maxQueueSize, n)
			n = maxQueueSize
		}
		cfg.JobQueueSize = n
	}

	if cfg.JobQueueSize < cfg.WorkerCount {
		log.Printf("JOB_QUEUE_SIZE must be >= WORKER_COUNT; using default %d", defaultQueueSize)
		cfg.JobQueueSize = max(defaultQueueSize, cfg.WorkerCount)
	}

	if v := os.Getenv("JOB_TIMEOUT_SEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid JOB_TIMEOUT_SEC: %w", err)
		}
		if n <= 0 {
			return cfg, errors.New("JOB_TIMEOUT_SEC must be positive")
		}
		cfg.JobTimeoutSec = n
	}

	if v := strings.TrimSpace(os.Getenv("ODOMETER_DATE")); v != "" {
		cfg.Ledger.OdometerDate = v
	}
	if v := strings.TrimSpace(os.Getenv("ODOMETER_KM")); v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid ODOMETER_KM: %w", err)
		}
		cfg.Ledger.OdometerKm = km
	}
	if v := strings.TrimSpace(os.Getenv("FISCAL_START")); v != "" {
		cfg.Ledger.FiscalStart = v
	}
	if v := strings.TrimSpace(os.Getenv("FISCAL_END")); v != "" {
		cfg.Ledger.FiscalEnd = v
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}

	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyLedgerOverrides(base, override LedgerConfig) LedgerConfig {
	if len(override.VehicleCategories) > 0 {
		base.VehicleCategories = override.VehicleCategories
	}
	if override.OdometerDate != "" {
		base.OdometerDate = override.OdometerDate
	}
	if override.OdometerKm > 0 {
		base.OdometerKm = override.OdometerKm
	}
	if override.FiscalStart != "" {
		base.FiscalStart = override.FiscalStart
	}
	if override.FiscalEnd != "" {
		base.FiscalEnd = override.FiscalEnd
	}
	if len(override.Filter.RegionMarkers) > 0 {
		base.Filter.RegionMarkers = override.Filter.RegionMarkers
	}
	if len(override.Filter.ExcludeLists) > 0 {
		base.Filter.ExcludeLists = override.Filter.ExcludeLists
	}
	if override.Filter.ExcludeDateStart != "" {
		base.Filter.ExcludeDateStart = override.Filter.ExcludeDateStart
	}
	if override.Filter.ExcludeDateEnd != "" {
		base.Filter.ExcludeDateEnd = override.Filter.ExcludeDateEnd
	}
	if len(override.Filter.PurposeRules) > 0 {
		base.Filter.PurposeRules = override.Filter.PurposeRules
	}
	if override.Filter.MinDistanceKm > 0 {
		base.Filter.MinDistanceKm = override.Filter.MinDistanceKm
	}
	// yaml has no tri-state bool, so an explicit false only counts
	// when some other filter key was set in the file too.
	if filterTouched(override.Filter) && !override.Filter.DuplicateOriginCheck {
		base.Filter.DuplicateOriginCheck = false
	}
	return base
}

func filterTouched(f report.FilterConfig) bool {
	return len(f.RegionMarkers) > 0 ||
		len(f.ExcludeLists) > 0 ||
		f.ExcludeDateStart != "" ||
		len(f.PurposeRules) > 0 ||
		f.MinDistanceKm > 0
}

const dateLayout = "2006-01-02"

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DropDir) == "" {
		return errors.New("DROP_DIR is required")
	}
	if strings.TrimSpace(cfg.HTTPPort) == "" {
		return errors.New("HTTP_PORT is required")
	}
	if len(cfg.Ledger.VehicleCategories) == 0 {
		return errors.New("ledger vehicle categories must not be empty")
	}
	if cfg.Ledger.OdometerDate != "" {
		if _, err := time.Parse(dateLayout, cfg.Ledger.OdometerDate); err != nil {
			return fmt.Errorf("ledger odometer_date: %w", err)
		}
		if cfg.Ledger.OdometerKm <= 0 {
			return errors.New("ledger odometer_km must be positive when odometer_date is set")
		}
	}
	if (cfg.Ledger.FiscalStart == "") != (cfg.Ledger.FiscalEnd == "") {
		return errors.New("ledger fiscal window needs both bounds")
	}
	if cfg.Ledger.FiscalStart != "" {
		start, err := time.Parse(dateLayout, cfg.Ledger.FiscalStart)
		if err != nil {
			return fmt.Errorf("ledger fiscal_start: %w", err)
		}
		end, err := time.Parse(dateLayout, cfg.Ledger.FiscalEnd)
		if err != nil {
			return fmt.Errorf("ledger fiscal_end: %w", err)
		}
		if end.Before(start) {
			return errors.New("ledger fiscal window ends before it starts")
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
