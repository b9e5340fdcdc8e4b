package memscene

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"asset-preview/internal/filesystem"
	"asset-preview/internal/scene"

	"golang.org/x/image/draw"
)

// supersample is the oversampling factor of the rasteriser. The final image
// is filtered down with Catmull-Rom for antialiased edges.
const supersample = 2

// View angles of the capture camera, a three-quarter turntable shot.
const (
	viewYaw   = 35 * math.Pi / 180
	viewPitch = 25 * math.Pi / 180
)

var lightDir = normalize([3]float64{-0.4, 0.6, 0.7})

type drawable struct {
	mesh  *mesh
	color [3]float64
}

func (s *Scene) drawablesLocked(isolate string) []drawable {
	var out []drawable
	for _, n := range s.meshesLocked(isolate) {
		c := defaultColor
		if m := s.nodes[n.assigned]; m != nil && m.material != nil {
			c = m.color
		}
		out = append(out, drawable{mesh: n.geom, color: c})
	}
	return out
}

// frameBounds fits a framing around the meshes' bounding boxes.
func frameBounds(meshes []*node) scene.Framing {
	if len(meshes) == 0 {
		return scene.Framing{Extent: 1}
	}
	lo := meshes[0].geom.summary.Bounds[0]
	hi := meshes[0].geom.summary.Bounds[1]
	for _, n := range meshes[1:] {
		b := n.geom.summary.Bounds
		for k := range 3 {
			lo[k] = math.Min(lo[k], b[0][k])
			hi[k] = math.Max(hi[k], b[1][k])
		}
	}

	var f scene.Framing
	var diag float64
	for k := range 3 {
		f.Center[k] = (lo[k] + hi[k]) / 2
		d := hi[k] - lo[k]
		diag += d * d
	}
	// Half the diagonal covers the box at any rotation.
	f.Extent = math.Sqrt(diag) / 2
	if f.Extent == 0 {
		f.Extent = 1
	}
	return f
}

type projector struct {
	center     [3]float64
	scale      float64
	cx, cy     float64
	sinY, cosY float64
	sinP, cosP float64
}

func newProjector(f scene.Framing, w, h int) projector {
	extent := f.Extent
	if extent <= 0 {
		extent = 1
	}
	return projector{
		center: f.Center,
		scale:  float64(min(w, h)) / 2 * 0.9 / extent,
		cx:     float64(w) / 2,
		cy:     float64(h) / 2,
		sinY:   math.Sin(viewYaw),
		cosY:   math.Cos(viewYaw),
		sinP:   math.Sin(viewPitch),
		cosP:   math.Cos(viewPitch),
	}
}

// view rotates a world point into camera space.
func (p projector) view(pt [3]float64) [3]float64 {
	x := pt[0] - p.center[0]
	y := pt[1] - p.center[1]
	z := pt[2] - p.center[2]

	x, z = x*p.cosY+z*p.sinY, -x*p.sinY+z*p.cosY
	y, z = y*p.cosP-z*p.sinP, y*p.sinP+z*p.cosP
	return [3]float64{x, y, z}
}

// screen maps a camera space point to pixel coordinates and depth. Larger
// camera z is closer to the viewer, so depth is negated.
func (p projector) screen(v [3]float64) (float64, float64, float64) {
	return p.cx + v[0]*p.scale, p.cy - v[1]*p.scale, -v[2]
}

func render(items []drawable, view scene.ViewConfig, width, height int) image.Image {
	w, h := width*supersample, height*supersample
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		t := float64(y) / float64(h)
		g := uint8(255 * (0.32 - 0.14*t))
		for x := range w {
			img.SetRGBA(x, y, color.RGBA{g, g, g + 6, 255})
		}
	}

	zbuf := make([]float64, w*h)
	for i := range zbuf {
		zbuf[i] = math.Inf(1)
	}

	proj := newProjector(view.Framing, w, h)
	for _, it := range items {
		base := defaultColor
		if view.Textures {
			base = it.color
		}
		for _, face := range it.mesh.faces {
			vs := make([][3]float64, len(face))
			for i, idx := range face {
				vs[i] = proj.view(it.mesh.points[idx])
			}

			if view.Shading == scene.ShadingWireframe {
				for i := range vs {
					drawLine(img, proj, vs[i], vs[(i+1)%len(vs)], color.RGBA{220, 220, 220, 255})
				}
				continue
			}

			n := normalize(cross(sub(vs[1], vs[0]), sub(vs[2], vs[0])))
			shade := 1.0
			if view.Lighting != scene.LightingNone {
				shade = 0.25 + 0.75*math.Abs(dot(n, lightDir))
			}
			c := color.RGBA{
				R: channel(base[0] * shade),
				G: channel(base[1] * shade),
				B: channel(base[2] * shade),
				A: 255,
			}
			for i := 1; i+1 < len(vs); i++ {
				fillTriangle(img, zbuf, proj, vs[0], vs[i], vs[i+1], c)
			}
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func fillTriangle(img *image.RGBA, zbuf []float64, proj projector, a, b, c [3]float64, col color.RGBA) {
	ax, ay, az := proj.screen(a)
	bx, by, bz := proj.screen(b)
	cx, cy, cz := proj.screen(c)

	area := edge(ax, ay, bx, by, cx, cy)
	if area == 0 {
		return
	}

	bounds := img.Bounds()
	minX := max(int(math.Floor(math.Min(ax, math.Min(bx, cx)))), bounds.Min.X)
	maxX := min(int(math.Ceil(math.Max(ax, math.Max(bx, cx)))), bounds.Max.X-1)
	minY := max(int(math.Floor(math.Min(ay, math.Min(by, cy)))), bounds.Min.Y)
	maxY := min(int(math.Ceil(math.Max(ay, math.Max(by, cy)))), bounds.Max.Y-1)

	w := bounds.Dx()
	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := edge(bx, by, cx, cy, px, py) / area
			w1 := edge(cx, cy, ax, ay, px, py) / area
			w2 := edge(ax, ay, bx, by, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*az + w1*bz + w2*cz
			i := y*w + x
			if z >= zbuf[i] {
				continue
			}
			zbuf[i] = z
			img.SetRGBA(x, y, col)
		}
	}
}

func drawLine(img *image.RGBA, proj projector, a, b [3]float64, col color.RGBA) {
	x0, y0, _ := proj.screen(a)
	x1, y1, _ := proj.screen(b)
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(x0 + (x1-x0)*t)
		y := int(y0 + (y1-y0)*t)
		if image.Pt(x, y).In(img.Bounds()) {
			img.SetRGBA(x, y, col)
		}
	}
}

func edge(ax, ay, bx, by, px, py float64) float64 {
	return (px-ax)*(by-ay) - (py-ay)*(bx-ax)
}

func channel(v float64) uint8 {
	return uint8(math.Round(255 * math.Max(0, math.Min(1, v))))
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func normalize(v [3]float64) [3]float64 {
	l := math.Sqrt(dot(v, v))
	if l == 0 {
		return v
	}
	return [3]float64{v[0] / l, v[1] / l, v[2] / l}
}

func writePNG(path string, img image.Image) error {
	return filesystem.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return png.Encode(w, img)
	})
}
