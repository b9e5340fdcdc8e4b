package cache

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"asset-preview/internal/assets"

	"github.com/disintegration/imaging"
)

func newCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeAsset(t *testing.T, dir, name, content string) assets.AssetRef {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	ref, err := assets.NewRef(path)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.png")
	img := imaging.New(w, h, color.NRGBA{R: 200, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetEmpty(t *testing.T) {
	c := newCache(t)
	ref := writeAsset(t, t.TempDir(), "cube.obj", "o Cube\n")
	if _, ok := c.Get(ref, 64, false); ok {
		t.Error("expected miss")
	}
}

func TestStoreCaptured(t *testing.T) {
	c := newCache(t)
	dir := t.TempDir()
	ref := writeAsset(t, dir, "cube.obj", "o Cube\n")

	e, err := c.StoreCaptured(context.Background(), ref, writePNG(t, 128, 96))
	if err != nil {
		t.Fatalf("StoreCaptured: %v", err)
	}
	if e.Path != filepath.Join(dir, "cube.obj_preview.png") || e.Kind != KindCaptured || e.Size != 128 {
		t.Errorf("entry = %+v", e)
	}

	data, err := os.ReadFile(filepath.Join(dir, "cube.obj_preview.json"))
	if err != nil {
		t.Fatal(err)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		t.Fatal(err)
	}
	if sc.Fingerprint != ref.Fingerprint() || sc.Width != 128 || sc.Height != 96 || sc.Source != "capture" {
		t.Errorf("sidecar = %+v", sc)
	}

	got, ok := c.Get(ref, 64, false)
	if !ok || got.Path != e.Path {
		t.Errorf("Get = %+v, %v", got, ok)
	}
}

func TestDurableSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ref := writeAsset(t, dir, "cube.obj", "o Cube\n")
	if _, err := newCache(t).StoreCaptured(context.Background(), ref, writePNG(t, 32, 32)); err != nil {
		t.Fatal(err)
	}

	if _, ok := newCache(t).Get(ref, 256, false); !ok {
		t.Error("durable preview not found by a fresh cache")
	}
}

func TestDurableWinsOverEphemeral(t *testing.T) {
	c := newCache(t)
	ref := writeAsset(t, t.TempDir(), "cube.obj", "o Cube\n")

	gen, err := c.StoreGenerated(ref, 64, writePNG(t, 64, 64))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := c.Get(ref, 64, false); !ok || got.Path != gen.Path {
		t.Fatalf("ephemeral Get = %+v, %v", got, ok)
	}

	captured, err := c.StoreCaptured(context.Background(), ref, writePNG(t, 512, 512))
	if err != nil {
		t.Fatal(err)
	}

	got, ok := c.Get(ref, 64, false)
	if !ok || got.Path != captured.Path || got.Kind != KindCaptured {
		t.Errorf("Get = %+v, want durable", got)
	}
	if _, ok := c.Get(ref, 64, true); ok {
		t.Error("forced Get must miss")
	}
}

func TestStaleDurableIsMiss(t *testing.T) {
	c := newCache(t)
	dir := t.TempDir()
	ref := writeAsset(t, dir, "cube.obj", "o Cube\n")
	if _, err := c.StoreCaptured(context.Background(), ref, writePNG(t, 32, 32)); err != nil {
		t.Fatal(err)
	}

	changed := writeAsset(t, dir, "cube.obj", "o Cube\no Other\n")
	if changed.Fingerprint() == ref.Fingerprint() {
		t.Fatal("fingerprint did not change")
	}
	if _, ok := c.Get(changed, 32, false); ok {
		t.Error("stale durable preview returned")
	}

	gen, err := c.StoreGenerated(changed, 32, writePNG(t, 32, 32))
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := c.Get(changed, 32, false); !ok || got.Path != gen.Path {
		t.Errorf("Get = %+v, %v", got, ok)
	}
}

func TestEphemeralIsSizeKeyed(t *testing.T) {
	c := newCache(t)
	ref := writeAsset(t, t.TempDir(), "cube.obj", "o Cube\n")
	if _, err := c.StoreGenerated(ref, 64, writePNG(t, 64, 64)); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(ref, 64, false); !ok {
		t.Error("64 missed")
	}
	if _, ok := c.Get(ref, 128, false); ok {
		t.Error("128 hit")
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestStoreGeneratedPrunesOldFingerprint(t *testing.T) {
	c := newCache(t)
	dir := t.TempDir()
	ref := writeAsset(t, dir, "cube.obj", "o Cube\n")
	old, err := c.StoreGenerated(ref, 64, writePNG(t, 64, 64))
	if err != nil {
		t.Fatal(err)
	}

	changed := writeAsset(t, dir, "cube.obj", "o Cube\no Other\n")
	if _, err := c.StoreGenerated(changed, 64, writePNG(t, 64, 64)); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	if _, err := os.Stat(old.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("old icon still on disk: %v", err)
	}
}

func TestStoreCapturedWriteFailure(t *testing.T) {
	c := newCache(t)
	dir := t.TempDir()
	ref := writeAsset(t, dir, "cube.obj", "o Cube\n")
	// A directory where the preview belongs makes the rename fail.
	if err := os.Mkdir(DurablePath(ref), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := c.StoreCaptured(context.Background(), ref, writePNG(t, 16, 16))
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "write" {
		t.Fatalf("err = %v, want write IOError", err)
	}
	if !IsIOError(err) {
		t.Error("IsIOError = false")
	}
	if _, ok := c.Get(ref, 16, false); ok {
		t.Error("failed write produced a hit")
	}
}

func TestStoreCapturedBadImage(t *testing.T) {
	c := newCache(t)
	ref := writeAsset(t, t.TempDir(), "cube.obj", "o Cube\n")
	src := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(src, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := c.StoreCaptured(context.Background(), ref, src)
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "decode" {
		t.Fatalf("err = %v", err)
	}
	if _, statErr := os.Stat(DurablePath(ref)); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("durable file written for a bad image")
	}
}

func TestStoreCapturedLockContention(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	holder, err := New(root)
	if err != nil {
		t.Fatal(err)
	}
	ref := writeAsset(t, t.TempDir(), "cube.obj", "o Cube\n")

	unlock, err := holder.lockDurable(context.Background(), DurablePath(ref))
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	other, err := New(root, WithLockWait(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	_, err = other.StoreCaptured(context.Background(), ref, writePNG(t, 16, 16))
	var ioErr *IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "lock" {
		t.Fatalf("err = %v, want lock IOError", err)
	}
}

func TestInvalidate(t *testing.T) {
	c := newCache(t)
	ref := writeAsset(t, t.TempDir(), "cube.obj", "o Cube\n")
	gen, err := c.StoreGenerated(ref, 64, writePNG(t, 64, 64))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.StoreCaptured(context.Background(), ref, writePNG(t, 64, 64)); err != nil {
		t.Fatal(err)
	}

	if err := c.Invalidate(ref); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	for _, path := range []string{gen.Path, DurablePath(ref), SidecarPath(ref)} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s still exists", path)
		}
	}
	if _, ok := c.Get(ref, 64, false); ok {
		t.Error("hit after invalidate")
	}
	if err := c.Invalidate(ref); err != nil {
		t.Errorf("second Invalidate: %v", err)
	}
}

func TestSameStemAssetsKeepSeparatePreviews(t *testing.T) {
	c := newCache(t)
	dir := t.TempDir()
	obj := writeAsset(t, dir, "crate.obj", "o Crate\n")
	doc := writeAsset(t, dir, "crate.scene.json", `{"nodes":[]}`)

	if DurablePath(obj) == DurablePath(doc) || SidecarPath(obj) == SidecarPath(doc) {
		t.Fatalf("crate.obj and crate.scene.json share %s", DurablePath(obj))
	}
	if _, err := c.StoreCaptured(context.Background(), obj, writePNG(t, 64, 64)); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StoreCaptured(context.Background(), doc, writePNG(t, 32, 32)); err != nil {
		t.Fatal(err)
	}
	if e, ok := c.Get(obj, 64, false); !ok || e.Size != 64 {
		t.Errorf("crate.obj lookup after storing crate.scene.json = %+v, %v", e, ok)
	}

	if err := c.Invalidate(doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(obj, 64, false); !ok {
		t.Error("invalidating crate.scene.json removed crate.obj's preview")
	}
	if _, ok := c.Get(doc, 64, false); ok {
		t.Error("crate.scene.json still cached after invalidate")
	}
}

func TestClear(t *testing.T) {
	c := newCache(t)
	ref := writeAsset(t, t.TempDir(), "cube.obj", "o Cube\n")
	if _, err := c.StoreGenerated(ref, 64, writePNG(t, 64, 64)); err != nil {
		t.Fatal(err)
	}
	captured, err := c.StoreCaptured(context.Background(), ref, writePNG(t, 64, 64))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d", c.Len())
	}
	if _, err := os.Stat(captured.Path); err != nil {
		t.Errorf("durable preview removed by Clear: %v", err)
	}
}

func TestNewDropsLeftoverIcons(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")
	if err := os.MkdirAll(filepath.Join(root, "icons"), 0o755); err != nil {
		t.Fatal(err)
	}
	leftover := filepath.Join(root, "icons", "old.png")
	if err := os.WriteFile(leftover, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(root); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(leftover); !errors.Is(err, os.ErrNotExist) {
		t.Error("leftover icon kept")
	}
}

func TestGeneric(t *testing.T) {
	c := newCache(t)
	calls := 0
	render := func(w io.Writer) error {
		calls++
		return imaging.Encode(w, image.NewNRGBA(image.Rect(0, 0, 8, 8)), imaging.PNG)
	}

	first, err := c.Generic("obj", 8, render)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Generic("obj", 8, render)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || calls != 1 {
		t.Errorf("paths %s %s, calls %d", first, second, calls)
	}
}
