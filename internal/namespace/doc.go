// Package namespace mints isolation namespaces for imports.
//
// Ids have the form preview_<stem>_<counter>_<suffix>, for example
// "preview_crate_7_3f9a1c2e". The stem is the sanitised asset stem, the
// counter is process-wide and monotonic, and the suffix is the first eight
// hex digits of a random UUID. Ids are unique for the life of the process
// and do not collide with namespaces left behind by another process
// sharing the same scene. Released ids are never handed out again.
//
// Allocation never touches the scene graph.
package namespace
