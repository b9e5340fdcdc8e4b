// Package cache implements the two preview tiers.
//
// The durable tier stores one captured preview beside each asset
// (<file name>_preview.png, extension kept) together with a JSON sidecar naming the fingerprint
// it was captured from, so a stale preview is detected without asking the
// host. Writes are atomic renames taken under a cross-process file lock.
//
// The ephemeral tier holds generated icons in a private directory keyed by
// fingerprint, size and kind. It is rebuilt from nothing on start and may be
// cleared at any time.
//
// Lookups always prefer the durable tier, whatever size was asked for.
package cache
