package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	"asset-preview/internal/assets"
	"asset-preview/internal/filesystem"
	"asset-preview/internal/logging"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": status})
}

var (
	errEmptyPath    = errors.New("path is required")
	errOutside      = errors.New("path outside the library")
	errNotAnAsset   = errors.New("not a supported asset")
	errIsADirectory = errors.New("path is a directory")
)

// resolvePath turns a library-relative or absolute path into an absolute
// path inside the library.
func (h *Handlers) resolvePath(p string) (string, error) {
	if p == "" {
		return "", errEmptyPath
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(h.libraryDir, full)
	}
	full = filepath.Clean(full)
	if !isSubPath(h.libraryDir, full) {
		return "", errOutside
	}
	return full, nil
}

// assetRef resolves p and stats it. Missing files, directories and files
// no host can import are reported with errors mapped by statusFor.
func (h *Handlers) assetRef(p string) (assets.AssetRef, error) {
	full, err := h.resolvePath(p)
	if err != nil {
		return assets.AssetRef{}, err
	}
	info, err := filesystem.StatWithRetry(full)
	if err != nil {
		return assets.AssetRef{}, err
	}
	if info.IsDir() {
		return assets.AssetRef{}, fmt.Errorf("%s: %w", filepath.Base(full), errIsADirectory)
	}
	ref, err := assets.NewRef(full)
	if err != nil {
		return assets.AssetRef{}, err
	}
	if !ref.Type.IsAsset() {
		return assets.AssetRef{}, fmt.Errorf("%s: %w", filepath.Base(full), errNotAnAsset)
	}
	return ref, nil
}

// statusFor maps path resolution errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, errEmptyPath), errors.Is(err, errOutside),
		errors.Is(err, errNotAnAsset), errors.Is(err, errIsADirectory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// isSubPath reports whether child is parent or lies beneath it.
func isSubPath(parent, child string) bool {
	parent, _ = filepath.Abs(parent)
	child, _ = filepath.Abs(child)
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
