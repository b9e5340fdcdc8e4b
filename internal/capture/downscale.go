package capture

import (
	"fmt"
	"image"
	"io"
	"path/filepath"
	"sync"

	"asset-preview/internal/filesystem"
	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips starts libvips with log output routed through the application
// logger. Call once at startup; Downscale falls back to imaging without it.
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging before Startup so LOG_LEVEL applies to it.
	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLogLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelCritical
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips releases libvips.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable reports whether InitVips has run.
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// Downscale writes a PNG copy of src fitted into a size x size box. The
// destination appears atomically.
func Downscale(src, dst string, size int) error {
	if size <= 0 {
		return fmt.Errorf("invalid size %d", size)
	}

	if IsVipsAvailable() {
		err := downscaleVips(src, dst, size)
		if err == nil {
			metrics.DownscaleTotal.WithLabelValues("vips", "success").Inc()
			return nil
		}
		metrics.DownscaleTotal.WithLabelValues("vips", "error").Inc()
		logging.Debug("vips downscale of %s failed, falling back to imaging: %v", filepath.Base(src), err)
	}

	err := downscaleImaging(src, dst, size)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DownscaleTotal.WithLabelValues("imaging", status).Inc()
	return err
}

func downscaleVips(src, dst string, size int) error {
	ref, err := vips.LoadImageFromFile(src, vips.NewImportParams())
	if err != nil {
		return fmt.Errorf("vips failed to load image: %w", err)
	}
	defer ref.Close()

	if err := ref.Thumbnail(size, size, vips.InterestingNone); err != nil {
		return fmt.Errorf("vips resize failed: %w", err)
	}

	data, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return fmt.Errorf("vips export failed: %w", err)
	}
	return filesystem.WriteFileAtomic(dst, data, 0o644)
}

func downscaleImaging(src, dst string, size int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(src), err)
	}
	return writeImage(dst, imaging.Fit(img, size, size, imaging.Lanczos))
}

func writeImage(dst string, img image.Image) error {
	return filesystem.WriteAtomic(dst, 0o644, func(w io.Writer) error {
		return imaging.Encode(w, img, imaging.PNG)
	})
}
