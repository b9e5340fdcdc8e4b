package filesystem

import (
	"path/filepath"
	"slices"
	"strings"
)

// UnknownVolume labels paths outside every configured volume.
const UnknownVolume = "unknown"

// VolumeResolver labels paths with the configured volume that contains
// them. The most specific volume wins when volumes nest.
type VolumeResolver struct {
	roots []volumeRoot
}

type volumeRoot struct {
	prefix string // cleaned absolute path plus separator
	name   string
}

// NewVolumeResolver builds a resolver from volume name to directory.
//
//	NewVolumeResolver(map[string]string{
//	    "library":  "/assets",
//	    "cache":    "/var/cache/asset-preview",
//	    "database": "/var/lib/asset-preview",
//	})
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{roots: make([]volumeRoot, 0, len(volumes))}
	for name, dir := range volumes {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		vr.roots = append(vr.roots, volumeRoot{prefix: withSeparator(dir), name: name})
	}
	slices.SortFunc(vr.roots, func(a, b volumeRoot) int {
		return len(b.prefix) - len(a.prefix)
	})
	return vr
}

// Resolve returns the volume containing path, or UnknownVolume.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return UnknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return UnknownVolume
	}
	abs = withSeparator(abs)
	for _, root := range vr.roots {
		if strings.HasPrefix(abs, root.prefix) {
			return root.name
		}
	}
	return UnknownVolume
}

func withSeparator(p string) string {
	if strings.HasSuffix(p, string(filepath.Separator)) {
		return p
	}
	return p + string(filepath.Separator)
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver installs the resolver used when a Retry carries
// none of its own.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}
