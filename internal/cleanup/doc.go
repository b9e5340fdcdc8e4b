// Package cleanup removes every trace of an isolated import from the host
// scene graph.
//
// Teardown is a state machine over named phases:
//
//	unlocking -> disconnecting -> deleting -> namespace_removal -> validating
//	                                                                 |
//	                           done <-----------------+--------------+
//	                                                  |              |
//	                                 validating <- aggressive_delete <- (still present)
//
// Each phase runs in isolation: an error or panic in one phase is recorded
// in the Report and the machine moves on, so a failure while deleting can
// never skip the aggressive pass. The normal phases act on the import
// namespace itself; the aggressive pass re-enumerates everything below it,
// nested namespaces included, bulk deletes, switches the current namespace
// to root and removes the namespace again.
//
// Imported content is always deleted. Nothing is ever moved to the root
// namespace to get around a locked node.
//
// The engine calls the host directly. Callers run it inside a hostexec
// section.
package cleanup
