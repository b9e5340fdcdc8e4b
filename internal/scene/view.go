package scene

// Shading is the viewport shading mode.
type Shading string

const (
	ShadingWireframe Shading = "wireframe"
	ShadingFlat      Shading = "flat"
	ShadingSmooth    Shading = "smooth"
)

// Lighting is the viewport lighting mode.
type Lighting string

const (
	LightingDefault Lighting = "default"
	LightingScene   Lighting = "scene"
	LightingNone    Lighting = "none"
)

// Framing is the camera fit, a centre and the half extent of the view.
type Framing struct {
	Center [3]float64
	Extent float64
}

// ViewConfig is the ephemeral view state a capture may override.
type ViewConfig struct {
	Textures bool
	Shading  Shading
	Lighting Lighting
	Shadows  bool
	// Isolate limits drawing to one namespace. Empty draws everything.
	Isolate string
	Framing Framing
}

// PreviewView returns cfg with the capture overrides applied: textures on,
// smooth shading, default lighting, shadows off, drawing isolated to ns.
func PreviewView(cfg ViewConfig, ns string) ViewConfig {
	cfg.Textures = true
	cfg.Shading = ShadingSmooth
	cfg.Lighting = LightingDefault
	cfg.Shadows = false
	cfg.Isolate = ns
	return cfg
}
