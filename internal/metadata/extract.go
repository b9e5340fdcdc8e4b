package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"asset-preview/internal/assets"
	"asset-preview/internal/metrics"
	"asset-preview/internal/scene"
	"asset-preview/internal/session"
)

// ExtractBasic builds a basic record from a fresh stat of the file. It
// never touches the host.
func ExtractBasic(ref assets.AssetRef) (*Record, error) {
	start := time.Now()
	fresh, err := assets.Refresh(ref)
	if err != nil {
		metrics.MetadataExtractionsTotal.WithLabelValues(string(TierBasic), "error").Inc()
		return nil, fmt.Errorf("basic metadata for %s: %w", ref.Name(), err)
	}

	rec := &Record{
		Tier:        TierBasic,
		AssetPath:   fresh.Path,
		Fingerprint: fresh.Fingerprint(),
		Basic:       basicOf(fresh),
		ExtractedAt: time.Now(),
	}
	metrics.MetadataExtractionsTotal.WithLabelValues(string(TierBasic), "success").Inc()
	metrics.MetadataExtractionDuration.WithLabelValues(string(TierBasic)).Observe(time.Since(start).Seconds())
	return rec, nil
}

func basicOf(ref assets.AssetRef) Basic {
	return Basic{
		Size:      ref.Size,
		ModTime:   ref.ModTime,
		Type:      ref.Type,
		Extension: strings.ToLower(filepath.Ext(ref.Path)),
	}
}

// ExtractFull walks everything the session imported. The session must be
// open; it is left open for the caller to close.
func ExtractFull(ctx context.Context, sess *session.Session) (*Record, error) {
	start := time.Now()
	ref := sess.Asset()

	if err := sess.Begin(session.StatusExtracting); err != nil {
		metrics.MetadataExtractionsTotal.WithLabelValues(string(TierFull), "error").Inc()
		return nil, fmt.Errorf("full metadata for %s: %w", ref.Name(), err)
	}

	var full Full
	err := sess.Do(ctx, "extract", func(h scene.Host) error {
		full = Collect(h, sess.Namespace())
		return nil
	})
	if err != nil {
		metrics.MetadataExtractionsTotal.WithLabelValues(string(TierFull), "error").Inc()
		return nil, fmt.Errorf("full metadata for %s: %w", ref.Name(), err)
	}

	rec := &Record{
		Tier:        TierFull,
		AssetPath:   ref.Path,
		Fingerprint: ref.Fingerprint(),
		Basic:       basicOf(ref),
		Full:        &full,
		ExtractedAt: time.Now(),
	}
	metrics.MetadataExtractionsTotal.WithLabelValues(string(TierFull), "success").Inc()
	metrics.MetadataExtractionDuration.WithLabelValues(string(TierFull)).Observe(time.Since(start).Seconds())
	return rec, nil
}

// Collect visits every node under ns and accumulates statistics.
func Collect(g scene.Graph, ns string) Full {
	var (
		full     Full
		textures = map[string]bool{}
		framed   bool
	)

	full.Nodes = scene.Walk(g, ns, func(n scene.Node) bool {
		name := n.ID().Name()
		if geo, ok := n.Geometry(); ok {
			full.Meshes++
			full.Vertices += geo.Vertices
			full.Faces += geo.Faces
			full.Triangles += geo.Triangles
		}
		if mat, ok := n.Material(); ok {
			full.Materials++
			full.TextureRefs += len(mat.Textures)
			for _, tex := range mat.Textures {
				textures[tex] = true
			}
		}
		if anim, ok := n.Animation(); ok && anim.Keys > 0 {
			full.Animated = true
			full.AnimationCurves += anim.Curves
			if !framed {
				full.FirstFrame, full.LastFrame = anim.FirstFrame, anim.LastFrame
				framed = true
			} else {
				full.FirstFrame = min(full.FirstFrame, anim.FirstFrame)
				full.LastFrame = max(full.LastFrame, anim.LastFrame)
			}
		}
		if cam, ok := n.Camera(); ok {
			full.Cameras = append(full.Cameras, CameraInfo{Name: name, FocalLength: cam.FocalLength, Orthographic: cam.Orthographic})
		}
		if light, ok := n.Light(); ok {
			full.Lights = append(full.Lights, LightInfo{Name: name, Type: light.Type, Intensity: light.Intensity})
		}
		return true
	})

	for tex := range textures {
		full.Textures = append(full.Textures, tex)
	}
	slices.Sort(full.Textures)
	return full
}
