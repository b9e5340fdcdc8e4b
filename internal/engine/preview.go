package engine

import (
	"context"
	"errors"
	"fmt"

	"asset-preview/internal/assets"
	"asset-preview/internal/cache"
	"asset-preview/internal/capture"
	"asset-preview/internal/metadata"
	"asset-preview/internal/session"
)

// Preview returns the path of a preview for ref, generating one if needed.
// An empty path means none could be produced; err then says why.
func (e *Engine) Preview(ctx context.Context, ref assets.AssetRef, size int, force bool) (string, error) {
	ref, err := assets.Refresh(ref)
	if err != nil {
		return "", err
	}

	if entry, ok := e.cache.Get(ref, size, force); ok {
		return entry.Path, nil
	}

	// A concurrent request for the same asset may have stored a preview
	// while this one waited for the asset.
	var cached string
	sess, err := e.sessions.OpenUnless(ctx, ref, func() bool {
		if force {
			return false
		}
		entry, ok := e.cache.Get(ref, size, false)
		cached = entry.Path
		return ok
	})
	if errors.Is(err, session.ErrSatisfied) {
		return cached, nil
	}
	if err != nil {
		e.log.Warn("Preview of %s unavailable: %v", ref.Name(), err)
		return "", err
	}

	res, err := e.capturer.Capture(ctx, sess, size)
	if err != nil {
		sess.Close()
		return "", err
	}
	defer res.Remove()

	// Published before Close so the next waiter for this asset finds it.
	path, err := e.publish(ctx, ref, res, size)
	sess.Close()
	return path, err
}

// publish moves a capture into the cache: the durable tier when possible,
// the ephemeral tier when the durable write fails.
func (e *Engine) publish(ctx context.Context, ref assets.AssetRef, res capture.Result, size int) (string, error) {
	entry, err := e.cache.StoreCaptured(ctx, ref, res.Master)
	if err == nil {
		return entry.Path, nil
	}
	if !cache.IsIOError(err) {
		return "", err
	}
	e.log.Debug("Durable preview for %s not written, using ephemeral tier: %v", ref.Name(), err)

	if size <= 0 {
		size = res.MasterSize
	}
	entry, err = e.cache.StoreGenerated(ref, size, res.Path(size))
	if err != nil {
		return "", fmt.Errorf("store preview for %s: %w", ref.Name(), err)
	}
	return entry.Path, nil
}

// BringIntoWorkspace runs a full extraction and a forced capture in one
// session. The preview path is empty if capture failed; the record falls
// back to the basic tier if the asset could not be imported.
func (e *Engine) BringIntoWorkspace(ctx context.Context, ref assets.AssetRef) (string, *metadata.Record, error) {
	ref, err := assets.Refresh(ref)
	if err != nil {
		return "", nil, err
	}

	sess, err := e.sessions.Open(ctx, ref)
	if err != nil {
		e.log.Warn("Workspace import of %s failed: %v", ref.Name(), err)
		rec, berr := e.basic(ctx, ref)
		return "", rec, errors.Join(err, berr)
	}

	full, extractErr := metadata.ExtractFull(ctx, sess)
	res, captureErr := e.capturer.Capture(ctx, sess)
	sess.Close()

	var rec *metadata.Record
	if extractErr == nil {
		rec, err = metadata.Save(ctx, e.store, full)
		if err != nil {
			e.log.Warn("Failed to store metadata for %s: %v", ref.Name(), err)
			rec = full
		}
	} else {
		e.log.Warn("Full metadata for %s unavailable: %v", ref.Name(), extractErr)
		rec, _ = e.basic(ctx, ref)
	}

	if captureErr != nil {
		return "", rec, captureErr
	}
	defer res.Remove()

	path, err := e.publish(ctx, ref, res, 0)
	return path, rec, err
}
