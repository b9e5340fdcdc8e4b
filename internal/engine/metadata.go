package engine

import (
	"context"

	"asset-preview/internal/assets"
	"asset-preview/internal/metadata"
)

// RequestMetadata returns the record for ref at the requested tier. A full
// record already stored for the current fingerprint is returned without
// importing. If the import fails the basic record is returned instead.
func (e *Engine) RequestMetadata(ctx context.Context, ref assets.AssetRef, tier metadata.Tier) (*metadata.Record, error) {
	if tier != metadata.TierFull {
		return e.basic(ctx, ref)
	}

	ref, err := assets.Refresh(ref)
	if err != nil {
		return nil, err
	}
	if cur, err := e.store.GetMetadata(ctx, ref.Path); err == nil &&
		cur.Tier == metadata.TierFull && cur.Fingerprint == ref.Fingerprint() {
		return cur, nil
	}

	sess, err := e.sessions.Open(ctx, ref)
	if err != nil {
		e.log.Warn("Full metadata for %s unavailable, using basic: %v", ref.Name(), err)
		return e.basic(ctx, ref)
	}
	rec, err := metadata.ExtractFull(ctx, sess)
	sess.Close()
	if err != nil {
		e.log.Warn("Full metadata for %s unavailable, using basic: %v", ref.Name(), err)
		return e.basic(ctx, ref)
	}

	saved, err := metadata.Save(ctx, e.store, rec)
	if err != nil {
		e.log.Warn("Failed to store metadata for %s: %v", ref.Name(), err)
		return rec, nil
	}
	return saved, nil
}

func (e *Engine) basic(ctx context.Context, ref assets.AssetRef) (*metadata.Record, error) {
	rec, err := metadata.ExtractBasic(ref)
	if err != nil {
		return nil, err
	}
	saved, err := metadata.Save(ctx, e.store, rec)
	if err != nil {
		e.log.Warn("Failed to store metadata for %s: %v", ref.Name(), err)
		return rec, nil
	}
	return saved, nil
}
