package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"asset-preview/internal/hostexec"
	"asset-preview/internal/logging"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileEnv names the environment variable pointing at an optional TOML
// configuration file. Environment variables override values from the file.
const ConfigFileEnv = "PREVIEW_CONFIG"

// Defaults applied when neither the file nor the environment set a value.
const (
	DefaultLibraryDir    = "/library"
	DefaultCacheDir      = "/cache"
	DefaultDatabaseDir   = "/database"
	DefaultPort          = "8080"
	DefaultMasterSize    = 512
	DefaultIndexInterval = 30 * time.Minute
	DefaultPollInterval  = 30 * time.Second
)

// DefaultPreviewSizes are the sizes the UI asks for.
var DefaultPreviewSizes = []int{64, 128, 256}

// Config holds all application configuration
type Config struct {
	LibraryDir      string
	CacheDir        string
	DatabaseDir     string
	Port            string
	MasterSize      int
	PreviewSizes    []int
	IndexInterval   time.Duration
	PollInterval    time.Duration
	WatchLibrary    bool
	MetricsEnabled  bool
	LogHealthChecks bool
	HostExecutor    hostexec.Kind

	// ConfigFile is the TOML file that was read, if any.
	ConfigFile string

	// Derived paths
	DatabasePath string
}

// fileConfig mirrors the TOML layout. Pointers distinguish "unset" from
// false or zero.
type fileConfig struct {
	Paths struct {
		Library  string `toml:"library_dir"`
		Cache    string `toml:"cache_dir"`
		Database string `toml:"database_dir"`
	} `toml:"paths"`
	Server struct {
		Port            string `toml:"port"`
		MetricsEnabled  *bool  `toml:"metrics_enabled"`
		LogHealthChecks *bool  `toml:"log_health_checks"`
	} `toml:"server"`
	Preview struct {
		MasterSize   int    `toml:"master_size"`
		Sizes        []int  `toml:"sizes"`
		HostExecutor string `toml:"host_executor"`
	} `toml:"preview"`
	Library struct {
		IndexInterval string `toml:"index_interval"`
		PollInterval  string `toml:"poll_interval"`
		Watch         *bool  `toml:"watch"`
	} `toml:"library"`
}

// LoadConfig prints the banner, then loads and validates the configuration
// and prepares the cache and database directories.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	logConfig(cfg)

	section("DIRECTORY SETUP")

	if err := ensureDirectory(cfg.LibraryDir, "library"); err != nil {
		logging.Warn("  Library directory issue: %v", err)
	}
	for _, dir := range []struct{ path, name string }{
		{cfg.CacheDir, "cache"},
		{cfg.DatabaseDir, "database"},
	} {
		if err := ensureDirectory(dir.path, dir.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", dir.name, err)
		}
		if err := testWriteAccess(dir.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", dir.name, err)
		}
		logging.Info("  [OK] %s directory is writable: %s", dir.name, dir.path)
	}

	return cfg, nil
}

// Load resolves the configuration from defaults, the optional TOML file and
// the environment, in that order, without touching the filesystem beyond
// reading the file.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(ConfigFileEnv))
}

// LoadFile is Load with an explicit configuration file. An empty path
// means defaults and environment only.
func LoadFile(path string) (*Config, error) {
	var file fileConfig
	if path != "" {
		loaded, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		file = loaded
	}

	cfg := &Config{
		LibraryDir:      getEnv("LIBRARY_DIR", orDefault(file.Paths.Library, DefaultLibraryDir)),
		CacheDir:        getEnv("CACHE_DIR", orDefault(file.Paths.Cache, DefaultCacheDir)),
		DatabaseDir:     getEnv("DATABASE_DIR", orDefault(file.Paths.Database, DefaultDatabaseDir)),
		Port:            getEnv("PORT", orDefault(file.Server.Port, DefaultPort)),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", boolOr(file.Server.MetricsEnabled, true)),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", boolOr(file.Server.LogHealthChecks, true)),
		WatchLibrary:    getEnvBool("WATCH_LIBRARY", boolOr(file.Library.Watch, true)),
		ConfigFile:      path,
	}

	var err error
	if cfg.MasterSize, err = getEnvInt("MASTER_SIZE", file.Preview.MasterSize, DefaultMasterSize); err != nil {
		return nil, err
	}
	if cfg.MasterSize < 1 {
		return nil, fmt.Errorf("MASTER_SIZE must be positive, got %d", cfg.MasterSize)
	}

	sizes := file.Preview.Sizes
	if env := os.Getenv("PREVIEW_SIZES"); env != "" {
		if sizes, err = parseSizes(env); err != nil {
			return nil, fmt.Errorf("PREVIEW_SIZES: %w", err)
		}
	}
	if len(sizes) == 0 {
		sizes = DefaultPreviewSizes
	}
	cfg.PreviewSizes = normalizeSizes(sizes, cfg.MasterSize)

	if cfg.IndexInterval, err = getEnvDuration("INDEX_INTERVAL", file.Library.IndexInterval, DefaultIndexInterval); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getEnvDuration("LIBRARY_POLL_INTERVAL", file.Library.PollInterval, DefaultPollInterval); err != nil {
		return nil, err
	}

	kind := hostexec.Kind(getEnv("HOST_EXECUTOR", file.Preview.HostExecutor))
	switch kind {
	case "", hostexec.KindSerial:
		cfg.HostExecutor = hostexec.KindSerial
	case hostexec.KindLoop:
		cfg.HostExecutor = hostexec.KindLoop
	default:
		return nil, fmt.Errorf("HOST_EXECUTOR must be %q or %q, got %q", hostexec.KindSerial, hostexec.KindLoop, kind)
	}

	for _, dir := range []*string{&cfg.LibraryDir, &cfg.CacheDir, &cfg.DatabaseDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve directory path %s: %w", *dir, err)
		}
		*dir = abs
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "preview.db")

	return cfg, nil
}

func readConfigFile(path string) (fileConfig, error) {
	var file fileConfig
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return file, fmt.Errorf("config file %s does not exist", path)
		}
		return file, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	decoder := toml.NewDecoder(f)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return file, fmt.Errorf("parse config %s: %w", path, err)
	}
	return file, nil
}

func logConfig(cfg *Config) {
	section("CONFIGURATION")
	if cfg.ConfigFile != "" {
		logging.Info("  %s:      %s", ConfigFileEnv, cfg.ConfigFile)
	}
	logging.Info("  LIBRARY_DIR:           %s", cfg.LibraryDir)
	logging.Info("  CACHE_DIR:             %s", cfg.CacheDir)
	logging.Info("  DATABASE_DIR:          %s", cfg.DatabaseDir)
	logging.Info("  PORT:                  %s", cfg.Port)
	logging.Info("  MASTER_SIZE:           %d", cfg.MasterSize)
	logging.Info("  PREVIEW_SIZES:         %v", cfg.PreviewSizes)
	logging.Info("  INDEX_INTERVAL:        %v", cfg.IndexInterval)
	logging.Info("  LIBRARY_POLL_INTERVAL: %v", cfg.PollInterval)
	logging.Info("  WATCH_LIBRARY:         %v", cfg.WatchLibrary)
	logging.Info("  HOST_EXECUTOR:         %s", cfg.HostExecutor)
	logging.Info("  METRICS_ENABLED:       %v", cfg.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:     %v", cfg.LogHealthChecks)
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())
}

// parseSizes reads a comma-separated list such as "64,128,256".
func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid size %q", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

// normalizeSizes sorts, dedups and drops sizes above the master capture,
// which could only be served by upscaling.
func normalizeSizes(sizes []int, master int) []int {
	out := make([]int, 0, len(sizes))
	for _, s := range sizes {
		if s < 1 {
			continue
		}
		if s > master {
			logging.Warn("  Preview size %d exceeds MASTER_SIZE %d, ignoring", s, master)
			continue
		}
		out = append(out, s)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func orDefault(value, def string) string {
	if value != "" {
		return value
	}
	return def
}

func boolOr(value *bool, def bool) bool {
	if value != nil {
		return *value
	}
	return def
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvInt returns the environment value, else the file value when set,
// else def.
func getEnvInt(key string, fileValue, def int) (int, error) {
	if value := os.Getenv(key); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		return n, nil
	}
	if fileValue != 0 {
		return fileValue, nil
	}
	return def, nil
}

func getEnvDuration(key, fileValue string, def time.Duration) (time.Duration, error) {
	value := getEnv(key, fileValue)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
