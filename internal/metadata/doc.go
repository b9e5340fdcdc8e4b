// Package metadata computes descriptive records for assets in two tiers.
//
// Basic records come from the filesystem alone (size, modification time,
// coarse type) and are cheap enough to compute for every asset in the
// library. Full records walk the content of an open import session and
// count geometry, materials, textures, animation, cameras and lights. A
// full record for a given fingerprint is never replaced by a basic one;
// a basic record is upgraded in place when a full extraction arrives.
package metadata
