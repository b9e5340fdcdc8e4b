package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"asset-preview/internal/assets"
	"asset-preview/internal/logging"
	"asset-preview/internal/metadata"
	"asset-preview/internal/scheduler"

	"github.com/gorilla/mux"
)

// AssetRequest is the body of the library notification endpoints.
type AssetRequest struct {
	Path string `json:"path"`
	// Wait blocks a workspace request until extraction and capture finish.
	Wait bool `json:"wait,omitempty"`
}

// WorkspaceResponse reports a workspace request.
type WorkspaceResponse struct {
	Status        string `json:"status"`
	Preview       string `json:"preview,omitempty"`
	PreviewSource string `json:"previewSource,omitempty"`
	Error         string `json:"error,omitempty"`
}

func decodeAssetRequest(w http.ResponseWriter, r *http.Request) (AssetRequest, error) {
	var req AssetRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	if req.Path == "" {
		return req, errEmptyPath
	}
	return req, nil
}

// GetMetadata returns the metadata record for {path}. ?tier=full imports
// the asset when no full record matches its current content; if that fails
// the basic record is returned.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	filePath := mux.Vars(r)["path"]

	tier, ok := metadata.ParseTier(r.URL.Query().Get("tier"))
	if !ok {
		writeJSONError(w, "tier must be basic or full", http.StatusBadRequest)
		return
	}

	ref, err := h.assetRef(filePath)
	if err != nil {
		h.pathError(w, "Metadata", filePath, err)
		return
	}

	rec, err := h.engine.RequestMetadata(r.Context(), ref, tier)
	if err != nil {
		logging.Error("Metadata: extraction failed for %s: %v", filePath, err)
		writeJSONError(w, "metadata unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec)
}

// GetCleanupReport returns the latest cleanup report for {path}. The asset
// need not exist anymore.
func (h *Handlers) GetCleanupReport(w http.ResponseWriter, r *http.Request) {
	filePath := mux.Vars(r)["path"]

	full, err := h.resolvePath(filePath)
	if err != nil {
		h.pathError(w, "Cleanup report", filePath, err)
		return
	}

	report, ok, err := h.engine.CleanupReport(r.Context(), assets.PathRef(full))
	if err != nil {
		logging.Error("Cleanup report: lookup failed for %s: %v", filePath, err)
		writeJSONError(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSONError(w, "no cleanup report", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, report)
}

// AssetAdded records basic metadata for a newly added asset. The host is
// never involved.
func (h *Handlers) AssetAdded(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAssetRequest(w, r)
	if err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ref, err := h.assetRef(req.Path)
	if err != nil {
		h.pathError(w, "Asset added", req.Path, err)
		return
	}

	rec, err := h.engine.OnAssetAdded(r.Context(), ref)
	if err != nil {
		logging.Error("Asset added: failed to record %s: %v", req.Path, err)
		writeJSONError(w, "failed to record asset", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rec)
}

// AssetBroughtIntoWorkspace queues full extraction and a forced capture.
// Without wait it answers 202 immediately.
func (h *Handlers) AssetBroughtIntoWorkspace(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAssetRequest(w, r)
	if err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ref, err := h.assetRef(req.Path)
	if err != nil {
		h.pathError(w, "Workspace", req.Path, err)
		return
	}

	if !req.Wait {
		// Detached from the request so the work survives the response.
		err := h.engine.OnAssetBroughtIntoWorkspace(context.WithoutCancel(r.Context()), ref, func(_ scheduler.Request, res scheduler.Result) {
			if res.Err != nil {
				logging.Warn("Workspace: %s finished without a preview: %v", ref.Name(), res.Err)
			}
		})
		if err != nil {
			h.rejected(w, req.Path, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, WorkspaceResponse{Status: "queued"})
		return
	}

	done := make(chan scheduler.Result, 1)
	err = h.engine.OnAssetBroughtIntoWorkspace(r.Context(), ref, func(_ scheduler.Request, res scheduler.Result) {
		done <- res
	})
	if err != nil {
		h.rejected(w, req.Path, err)
		return
	}

	var res scheduler.Result
	select {
	case res = <-done:
	case <-r.Context().Done():
		return
	}

	resp := WorkspaceResponse{Status: "done", Preview: res.Path, PreviewSource: sourceCapture}
	if res.Err != nil || res.Path == "" {
		resp.Preview = ""
		resp.PreviewSource = sourceGeneric
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// AssetRemoved drops every cached preview, record and report for {path}.
func (h *Handlers) AssetRemoved(w http.ResponseWriter, r *http.Request) {
	filePath := mux.Vars(r)["path"]

	full, err := h.resolvePath(filePath)
	if err != nil {
		h.pathError(w, "Asset removed", filePath, err)
		return
	}

	if err := h.engine.OnAssetRemoved(r.Context(), assets.PathRef(full)); err != nil {
		logging.Error("Asset removed: cleanup of %s incomplete: %v", filePath, err)
		writeJSONError(w, "failed to remove asset data", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "removed")
}

// TriggerReindex starts a library index unless one is running.
func (h *Handlers) TriggerReindex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.indexer.IsIndexing() {
		writeJSON(w, map[string]string{
			"status":  "already_running",
			"message": "Indexing is already in progress",
		})
		return
	}

	h.indexer.TriggerIndex()

	writeJSON(w, map[string]string{
		"status":  "started",
		"message": "Re-indexing started",
	})
}

func (h *Handlers) rejected(w http.ResponseWriter, filePath string, err error) {
	logging.Warn("Workspace: request for %s rejected: %v", filePath, err)
	if errors.Is(err, scheduler.ErrQueueFull) || errors.Is(err, scheduler.ErrStopped) {
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, "preview queue is full", http.StatusServiceUnavailable)
		return
	}
	writeJSONError(w, "request rejected", http.StatusInternalServerError)
}
