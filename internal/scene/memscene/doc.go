// Package memscene is an in-memory scene graph implementing scene.Host.
//
// It stands in for the DCC application when the engine runs headless
// (server, CLI) and in tests. It reproduces the host behaviours cleanup has
// to cope with: locked nodes that refuse deletion, host singletons
// (render globals, the render partition) that imported nodes get wired
// into, nested namespaces, and a current namespace that cannot be removed.
// Imports read Wavefront OBJ files and JSON scene documents; captures are
// a small software rasteriser writing PNG files.
//
// Faults can be injected per node or per operation so tests can drive the
// cleanup escalation paths deterministically.
package memscene
