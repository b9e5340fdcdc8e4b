/*
Package workers sizes the background pools used by the preview engine.

Sizes are derived from runtime.GOMAXPROCS(0) rather than runtime.NumCPU()
so that container CPU limits are respected (Go 1.19+ sets GOMAXPROCS from
the cgroup quota).

Each [Pool] has its own environment override:

	PREVIEW_WORKERS=2 INDEX_WORKERS=8 asset-preview

Overrides are still capped by the pool's limit.
*/
package workers
