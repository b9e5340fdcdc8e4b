package assets

import (
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"asset-preview/internal/filesystem"

	"golang.org/x/crypto/blake2b"
)

// AssetRef identifies a source file. It is immutable once read.
type AssetRef struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
	Hash    string    `json:"hash,omitempty"`
	Type    FileType  `json:"type"`
}

// NewRef stats path and builds a size+mtime fingerprinted reference.
func NewRef(path string) (AssetRef, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return AssetRef{}, fmt.Errorf("resolve asset path: %w", err)
	}

	info, err := filesystem.StatWithRetry(abs)
	if err != nil {
		return AssetRef{}, fmt.Errorf("stat asset: %w", err)
	}
	if info.IsDir() {
		return AssetRef{}, fmt.Errorf("asset %s is a directory", abs)
	}

	return AssetRef{
		Path:    abs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Type:    Classify(abs),
	}, nil
}

// PathRef builds a reference without touching the file, for assets that
// may no longer exist. It carries no fingerprint.
func PathRef(path string) AssetRef {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return AssetRef{Path: path, Type: ClassifyPath(path)}
}

// Refresh re-reads ref from disk, keeping hashing on if ref was hashed.
func Refresh(ref AssetRef) (AssetRef, error) {
	if ref.Hash != "" {
		return NewHashedRef(ref.Path)
	}
	return NewRef(ref.Path)
}

// NewHashedRef is NewRef plus a BLAKE2b-256 content hash, which then becomes
// the fingerprint.
func NewHashedRef(path string) (AssetRef, error) {
	ref, err := NewRef(path)
	if err != nil {
		return AssetRef{}, err
	}

	f, err := filesystem.OpenWithRetry(ref.Path)
	if err != nil {
		return AssetRef{}, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return AssetRef{}, err
	}
	if _, err := io.Copy(h, f); err != nil {
		return AssetRef{}, fmt.Errorf("hash asset: %w", err)
	}
	ref.Hash = hex.EncodeToString(h.Sum(nil))
	return ref, nil
}

// Key identifies the asset independent of its content; at most one import
// session may be open per key.
func (r AssetRef) Key() string {
	return filepath.Clean(r.Path)
}

// Fingerprint identifies the asset's content.
func (r AssetRef) Fingerprint() string {
	if r.Hash != "" {
		return "b2:" + r.Hash
	}
	return strconv.FormatInt(r.Size, 10) + "-" + strconv.FormatInt(r.ModTime.UnixNano(), 10)
}

// Name returns the file's base name.
func (r AssetRef) Name() string {
	return filepath.Base(r.Path)
}

// Stem returns the base name without the asset extension, keeping
// ".scene.json" together so "crate.scene.json" yields "crate".
func (r AssetRef) Stem() string {
	base := filepath.Base(r.Path)
	if r.Type == TypeScene && len(base) > len(sceneDocumentSuffix) {
		return base[:len(base)-len(sceneDocumentSuffix)]
	}
	return base[:len(base)-len(filepath.Ext(base))]
}

func (r AssetRef) String() string {
	return r.Path
}
