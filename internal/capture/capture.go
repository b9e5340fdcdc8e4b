package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/logging"
	"asset-preview/internal/metrics"
	"asset-preview/internal/scene"
	"asset-preview/internal/session"
)

// DefaultMasterSize is the edge length of the master capture.
const DefaultMasterSize = 512

// CaptureError reports a failed capture. The view configuration has been
// restored unless Step is "restore".
type CaptureError struct {
	Asset assets.AssetRef
	Step  string
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %s: %v", e.Asset.Name(), e.Step, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Result lists the files a capture produced.
type Result struct {
	Master     string
	MasterSize int
	Sizes      map[int]string
}

// Path returns the file for size, falling back to the master.
func (r Result) Path(size int) string {
	if p, ok := r.Sizes[size]; ok {
		return p
	}
	return r.Master
}

// Remove deletes the capture's files.
func (r Result) Remove() {
	for _, p := range r.Sizes {
		_ = os.Remove(p)
	}
	if r.Master != "" {
		_ = os.Remove(r.Master)
	}
}

// Capturer renders previews into a work directory.
type Capturer struct {
	dir        string
	masterSize int
}

// New returns a Capturer writing into dir. masterSize <= 0 selects
// DefaultMasterSize.
func New(dir string, masterSize int) (*Capturer, error) {
	if masterSize <= 0 {
		masterSize = DefaultMasterSize
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}
	return &Capturer{dir: dir, masterSize: masterSize}, nil
}

// MasterSize returns the master edge length.
func (c *Capturer) MasterSize() int {
	return c.masterSize
}

// Capture renders the session's content and derives one copy per requested
// size. The returned Result always has a master when err is nil.
func (c *Capturer) Capture(ctx context.Context, sess *session.Session, sizes ...int) (Result, error) {
	ref := sess.Asset()
	start := time.Now()

	fail := func(step string, err error) (Result, error) {
		metrics.CapturesTotal.WithLabelValues("error").Inc()
		ce := &CaptureError{Asset: ref, Step: step, Err: err}
		logging.Warn("%v", ce)
		return Result{}, ce
	}

	if err := sess.Begin(session.StatusCapturing); err != nil {
		return fail("begin", err)
	}

	ns := sess.Namespace()
	master := filepath.Join(c.dir, ns+".png")
	step := "render"
	err := sess.Do(ctx, "capture", func(h scene.Host) (err error) {
		prior := h.View()
		defer func() {
			if rerr := h.SetView(prior); rerr != nil {
				logging.Error("Failed to restore view after capturing %s: %v", ref.Name(), rerr)
				if err == nil {
					step, err = "restore", rerr
				}
			}
		}()

		if err := h.Frame(ns); err != nil {
			step = "frame"
			return err
		}
		if err := h.SetView(scene.PreviewView(h.View(), ns)); err != nil {
			step = "override"
			return err
		}
		return h.Capture(master, c.masterSize, c.masterSize)
	})
	if err != nil {
		_ = os.Remove(master)
		return fail(step, err)
	}
	metrics.CaptureDuration.Observe(time.Since(start).Seconds())

	res := Result{Master: master, MasterSize: c.masterSize, Sizes: make(map[int]string)}
	for _, size := range dedupe(sizes) {
		if size <= 0 || size >= c.masterSize {
			continue
		}
		out := filepath.Join(c.dir, ns+"_"+strconv.Itoa(size)+".png")
		if err := Downscale(master, out, size); err != nil {
			logging.Warn("Downscale of %s to %d failed: %v", ref.Name(), size, err)
			continue
		}
		res.Sizes[size] = out
	}

	metrics.CapturesTotal.WithLabelValues("success").Inc()
	logging.Debug("Captured %s in %v (%d sizes)", ref.Name(), time.Since(start), len(res.Sizes))
	return res, nil
}

func dedupe(sizes []int) []int {
	out := slices.Clone(sizes)
	slices.Sort(out)
	return slices.Compact(out)
}

// IsCaptureError reports whether err is a *CaptureError.
func IsCaptureError(err error) bool {
	var ce *CaptureError
	return errors.As(err, &ce)
}
