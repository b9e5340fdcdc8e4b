// Package scene describes the DCC host's shared scene graph as seen by the
// preview engine.
//
// The host owns a single mutable graph of nodes organised into
// colon-separated namespaces ("crate_1:lid|hinge"). Everything the engine
// does to that graph goes through the Host interface, so the real
// application binding and the in-memory implementation in memscene are
// interchangeable. Host implementations are not required to be safe for
// concurrent use; callers serialise access through hostexec.
//
// Nodes expose what they contain through optional capabilities (geometry,
// material, animation, camera, light) rather than a type name, so
// statistics can be gathered by visiting nodes without knowing the host's
// node type vocabulary.
package scene
