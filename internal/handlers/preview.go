package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"asset-preview/internal/assets"
	"asset-preview/internal/filesystem"
	"asset-preview/internal/logging"
	"asset-preview/internal/scheduler"

	"github.com/gorilla/mux"
)

// PreviewSourceHeader tells the client where a served image came from.
const PreviewSourceHeader = "X-Preview-Source"

const (
	sourceCapture = "capture"
	sourceGeneric = "generic"
)

// GetPreview serves a preview of the asset at {path}.
//
// Query parameters:
//   - size: edge length in pixels, at most the master size (default: largest configured size)
//   - force: "true" discards cached previews and captures again
//
// When no preview can be produced the generic icon for the asset type is
// served with status 200 and X-Preview-Source: generic.
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	filePath := mux.Vars(r)["path"]
	logging.Debug("Preview requested: %s", filePath)

	size, err := h.parseSize(r.URL.Query().Get("size"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	force, err := parseBool(r.URL.Query().Get("force"))
	if err != nil {
		writeJSONError(w, "invalid force value", http.StatusBadRequest)
		return
	}

	ref, err := h.assetRef(filePath)
	if err != nil {
		h.pathError(w, "Preview", filePath, err)
		return
	}

	res, err := h.awaitPreview(r.Context(), ref, size, force)
	switch {
	case errors.Is(err, scheduler.ErrQueueFull), errors.Is(err, scheduler.ErrStopped):
		logging.Warn("Preview: request for %s rejected: %v", filePath, err)
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, "preview queue is full", http.StatusServiceUnavailable)
		return
	case err != nil:
		// Client went away.
		logging.Debug("Preview: request for %s abandoned: %v", filePath, err)
		return
	}

	if res.Err == nil && res.Path != "" {
		h.serveImage(w, r, res.Path, sourceCapture)
		return
	}

	logging.Warn("Preview: %s unavailable, serving generic icon: %v", filePath, res.Err)
	icon, err := h.engine.GenericIcon(ref.Type, size)
	if err != nil {
		logging.Error("Preview: generic icon for %s failed: %v", ref.Type, err)
		writeJSONError(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	h.serveImage(w, r, icon, sourceGeneric)
}

// awaitPreview queues a preview and waits for its callback. The callback
// channel is buffered so a late delivery after the client left never blocks
// the dispatcher.
func (h *Handlers) awaitPreview(ctx context.Context, ref assets.AssetRef, size int, force bool) (scheduler.Result, error) {
	done := make(chan scheduler.Result, 1)
	err := h.engine.RequestPreview(ctx, ref, size, force, func(_ scheduler.Request, res scheduler.Result) {
		done <- res
	})
	if err != nil {
		return scheduler.Result{}, err
	}
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return scheduler.Result{}, ctx.Err()
	}
}

func (h *Handlers) serveImage(w http.ResponseWriter, r *http.Request, path, source string) {
	f, err := filesystem.OpenWithRetry(path)
	if err != nil {
		logging.Error("Preview: failed to open %s: %v", path, err)
		writeJSONError(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		logging.Error("Preview: failed to stat %s: %v", path, err)
		writeJSONError(w, "preview unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(PreviewSourceHeader, source)
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

// parseSize validates the size query value against the master size.
func (h *Handlers) parseSize(s string) (int, error) {
	if s == "" {
		return h.defaultSize, nil
	}
	size, err := strconv.Atoi(s)
	if err != nil || size < 1 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if master := h.engine.MasterSize(); size > master {
		return 0, fmt.Errorf("size %d exceeds the master size %d", size, master)
	}
	return size, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// pathError logs and writes an error produced while resolving an asset path.
func (h *Handlers) pathError(w http.ResponseWriter, op, filePath string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		logging.Warn("%s: asset not found: %s", op, filePath)
		writeJSONError(w, "asset not found", status)
	case http.StatusBadRequest:
		logging.Warn("%s: rejected %s: %v", op, filePath, err)
		writeJSONError(w, err.Error(), status)
	default:
		logging.Error("%s: failed to access %s: %v", op, filePath, err)
		writeJSONError(w, "failed to access asset", status)
	}
}
