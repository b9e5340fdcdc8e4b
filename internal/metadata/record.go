package metadata

import (
	"context"
	"errors"
	"time"

	"asset-preview/internal/assets"
)

// Tier is the depth of an extraction.
type Tier string

const (
	TierBasic Tier = "basic"
	TierFull  Tier = "full"
)

// ParseTier converts a query value into a Tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierBasic, "":
		return TierBasic, true
	case TierFull:
		return TierFull, true
	}
	return "", false
}

// ErrNotFound is returned by stores for unknown assets.
var ErrNotFound = errors.New("metadata not found")

// Basic is the filesystem-level payload.
type Basic struct {
	Size      int64           `json:"size"`
	ModTime   time.Time       `json:"modTime"`
	Type      assets.FileType `json:"type"`
	Extension string          `json:"extension"`
}

// CameraInfo describes one camera found in the asset.
type CameraInfo struct {
	Name         string  `json:"name"`
	FocalLength  float64 `json:"focalLength"`
	Orthographic bool    `json:"orthographic,omitempty"`
}

// LightInfo describes one light found in the asset.
type LightInfo struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Intensity float64 `json:"intensity"`
}

// Full is the scene-level payload.
type Full struct {
	Nodes           int          `json:"nodes"`
	Meshes          int          `json:"meshes"`
	Vertices        int          `json:"vertices"`
	Faces           int          `json:"faces"`
	Triangles       int          `json:"triangles"`
	Materials       int          `json:"materials"`
	TextureRefs     int          `json:"textureRefs"`
	Textures        []string     `json:"textures,omitempty"`
	Animated        bool         `json:"animated"`
	AnimationCurves int          `json:"animationCurves"`
	FirstFrame      float64      `json:"firstFrame,omitempty"`
	LastFrame       float64      `json:"lastFrame,omitempty"`
	Cameras         []CameraInfo `json:"cameras,omitempty"`
	Lights          []LightInfo  `json:"lights,omitempty"`
}

// Record is the metadata persisted for one asset.
type Record struct {
	Tier        Tier      `json:"tier"`
	AssetPath   string    `json:"assetPath"`
	Fingerprint string    `json:"fingerprint"`
	Basic       Basic     `json:"basic"`
	Full        *Full     `json:"full,omitempty"`
	ExtractedAt time.Time `json:"extractedAt"`
}

// Supersede merges next into current and returns the record to keep.
// A full record is never downgraded by a basic one for the same
// fingerprint; a basic record is upgraded in place. A changed fingerprint
// means the file changed and next replaces current outright.
func Supersede(current, next *Record) *Record {
	switch {
	case current == nil:
		return next
	case next == nil:
		return current
	case current.Fingerprint != next.Fingerprint:
		*current = *next
		return current
	case current.Tier == TierFull && next.Tier == TierBasic:
		return current
	}

	current.Tier = next.Tier
	current.Basic = next.Basic
	current.Full = next.Full
	current.ExtractedAt = next.ExtractedAt
	return current
}

// Store persists records keyed by asset path.
type Store interface {
	GetMetadata(ctx context.Context, assetPath string) (*Record, error)
	PutMetadata(ctx context.Context, rec *Record) error
	DeleteMetadata(ctx context.Context, assetPath string) error
}

// Save merges rec into whatever store holds for the asset and writes the
// result back.
func Save(ctx context.Context, store Store, rec *Record) (*Record, error) {
	current, err := store.GetMetadata(ctx, rec.AssetPath)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	merged := Supersede(current, rec)
	if err := store.PutMetadata(ctx, merged); err != nil {
		return nil, err
	}
	return merged, nil
}
