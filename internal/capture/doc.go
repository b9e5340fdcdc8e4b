// Package capture renders preview images of an imported asset.
//
// A capture frames the session's namespace, applies a scoped view override
// (textures on, smooth shading, default lighting, shadows off, drawing
// isolated to the namespace), renders a square master image and restores
// the prior view configuration. The restore is deferred, so it runs when
// the render fails or the host panics. Smaller sizes are derived from the
// master outside the host section with libvips when it is available and
// disintegration/imaging otherwise.
package capture
