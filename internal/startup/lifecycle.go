package startup

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"asset-preview/internal/logging"

	"github.com/gorilla/mux"
)

const rule = "------------------------------------------------------------"

func section(title string, args ...any) {
	logging.Info("")
	logging.Info(rule)
	logging.Info(title, args...)
	logging.Info(rule)
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogEngineInit logs the preview engine setup
func LogEngineInit(cfg *Config) {
	section("PREVIEW ENGINE INITIALIZATION")
	logging.Info("  Host executor:  %s", cfg.HostExecutor)
	logging.Info("  Master size:    %dpx", cfg.MasterSize)
	logging.Info("  Preview sizes:  %v", cfg.PreviewSizes)
	logging.Info("  Cache:          %s", cfg.CacheDir)
}

// LogEngineStarted logs a ready engine
func LogEngineStarted(workers int) {
	logging.Info("  [OK] Engine started with %d scheduler workers", workers)
}

// LogIndexerInit logs library indexer initialization
func LogIndexerInit(cfg *Config) {
	section("LIBRARY INDEXER INITIALIZATION")
	logging.Info("  Library:        %s", cfg.LibraryDir)
	logging.Info("  Index interval: %v", cfg.IndexInterval)
	logging.Info("  Poll interval:  %v", cfg.PollInterval)
	logging.Info("  File watching:  %s", enabledString(cfg.WatchLibrary))
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// RouteInfo describes one registered route.
type RouteInfo struct {
	Methods []string
	Path    string
	Name    string
}

// GetRoutes lists the router's routes in registration order. Routes
// without a method restriction report "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			// Subrouter prefixes carry no handler of their own.
			if route.GetHandler() == nil {
				return nil
			}
			methods = []string{"*"}
		}
		routes = append(routes, RouteInfo{Methods: methods, Path: path, Name: route.GetName()})
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the route table at debug level, grouped by prefix.
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			g := getRouteGroup(route.Path)
			groups[g] = append(groups[g], route)
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		for _, g := range keys {
			label := g
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, route := range groups[g] {
				logging.Debug("    %-9s %s", strings.Join(route.Methods, ","), route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Request logging: ON, including health checks")
	} else {
		logging.Info("  Request logging: ON, health checks excluded (LOG_HEALTH_CHECKS=false)")
	}
}

// getRouteGroup is the first path segment, or the first two under /api.
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening endpoints.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Preview API:     http://0.0.0.0:%s/api/preview/{path}", config.Port)
	logging.Info("  Metadata API:    http://0.0.0.0:%s/api/metadata/{path}", config.Port)
	logging.Info("  Cleanup reports: http://0.0.0.0:%s/api/cleanup/{path}", config.Port)
	logging.Info("  Health:          http://0.0.0.0:%s/health", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	fmt.Println(`
` + rule + `
    ___                   __     ____                  _
   /   |  _____________  / /_   / __ \________  _   __(_)__ _      __
  / /| | / ___/ ___/ _ \/ __/  / /_/ / ___/ _ \| | / / / _ \ | /| / /
 / ___ |(__  |__  )  __/ /_   / ____/ /  /  __/| |/ / /  __/ |/ |/ /
/_/  |_/____/____/\___/\__/  /_/   /_/   \___/ |___/_/\___/|__/|__/

` + rule)
	logging.Info("  Version:    %s (%s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs:            %d (GOMAXPROCS %d)", runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		logging.Info("  Memory limit:    %d MiB", limit>>20)
	}
	if hostname, err := os.Hostname(); err == nil {
		logging.Debug("  Hostname:        %s", hostname)
	}
}
