package capture

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"asset-preview/internal/assets"
	"asset-preview/internal/hostexec"
	"asset-preview/internal/scene"
	"asset-preview/internal/scene/memscene"
	"asset-preview/internal/session"

	"github.com/disintegration/imaging"
)

func openCube(t *testing.T, host scene.Host) *session.Session {
	t.Helper()
	path, err := memscene.WriteFixture(t.TempDir(), "cube.obj", memscene.CubeOBJ)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := assets.NewRef(path)
	if err != nil {
		t.Fatal(err)
	}
	m := session.NewManager(host, hostexec.NewSerial())
	s, err := m.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func TestCapture(t *testing.T) {
	host := memscene.New()
	s := openCube(t, host)
	before := host.View()

	c, err := New(t.TempDir(), 128)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Capture(context.Background(), s, 64, 32, 64, 256)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if w, h := imageSize(t, res.Master); w != 128 || h != 128 {
		t.Errorf("master = %dx%d", w, h)
	}
	if len(res.Sizes) != 2 {
		t.Fatalf("sizes = %v, want 32 and 64", res.Sizes)
	}
	for _, size := range []int{32, 64} {
		if w, h := imageSize(t, res.Path(size)); w != size || h != size {
			t.Errorf("size %d = %dx%d", size, w, h)
		}
	}
	if res.Path(256) != res.Master {
		t.Error("oversized request should use the master")
	}

	if got := host.View(); got != before {
		t.Errorf("view not restored: %+v, want %+v", got, before)
	}
	if s.Status() != session.StatusCapturing {
		t.Errorf("status = %s", s.Status())
	}

	res.Remove()
	if _, err := os.Stat(res.Master); !os.IsNotExist(err) {
		t.Error("Remove left the master behind")
	}
}

func TestCaptureFailureRestoresView(t *testing.T) {
	host := memscene.New()
	s := openCube(t, host)
	before := host.View()
	boom := errors.New("viewport lost")
	host.FailCapture(boom)

	c, err := New(t.TempDir(), 64)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Capture(context.Background(), s, 32)

	var ce *CaptureError
	if !errors.As(err, &ce) || ce.Step != "render" {
		t.Fatalf("err = %v, want render CaptureError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v does not wrap cause", err)
	}
	if got := host.View(); got != before {
		t.Errorf("view not restored after failure: %+v", got)
	}
}

type panickingHost struct {
	*memscene.Scene
}

func (panickingHost) Capture(string, int, int) error {
	panic("renderer crashed")
}

func TestCapturePanicRestoresView(t *testing.T) {
	mem := memscene.New()
	host := panickingHost{mem}
	s := openCube(t, host)
	before := mem.View()

	c, err := New(t.TempDir(), 64)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Capture(context.Background(), s)

	var pe *hostexec.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want wrapped PanicError", err)
	}
	if !IsCaptureError(err) {
		t.Error("panic not reported as CaptureError")
	}
	if got := mem.View(); got != before {
		t.Errorf("view not restored after panic: %+v", got)
	}
}

func TestCaptureClosedSession(t *testing.T) {
	host := memscene.New()
	s := openCube(t, host)
	s.Close()

	c, err := New(t.TempDir(), 64)
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Capture(context.Background(), s)
	if !errors.Is(err, session.ErrSessionClosed) {
		t.Errorf("err = %v", err)
	}
	if host.Stats().Captures != 0 {
		t.Error("closed session reached the host")
	}
}

func TestNewDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "work")
	c, err := New(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	if c.MasterSize() != DefaultMasterSize {
		t.Errorf("MasterSize = %d", c.MasterSize())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Error("work directory not created")
	}
}

func TestDownscaleKeepsAspect(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "wide.png")
	img := imaging.New(100, 50, color.NRGBA{200, 10, 10, 255})
	if err := imaging.Save(img, src); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "small.png")
	if err := Downscale(src, dst, 32); err != nil {
		t.Fatalf("Downscale: %v", err)
	}
	if w, h := imageSize(t, dst); w != 32 || h != 16 {
		t.Errorf("size = %dx%d, want 32x16", w, h)
	}

	if err := Downscale(src, dst, 0); err == nil {
		t.Error("expected error for size 0")
	}
	if err := Downscale(filepath.Join(dir, "missing.png"), dst, 8); err == nil {
		t.Error("expected error for missing source")
	}
}
