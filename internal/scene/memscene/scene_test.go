package memscene

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"asset-preview/internal/scene"
)

func fixture(t *testing.T, name, content string) string {
	t.Helper()
	path, err := WriteFixture(t.TempDir(), name, content)
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func importInto(t *testing.T, s *Scene, path, ns string) []scene.NodeID {
	t.Helper()
	if err := s.AddNamespace(ns); err != nil {
		t.Fatalf("AddNamespace: %v", err)
	}
	var created []scene.NodeID
	if err := s.Import(path, ns, func(id scene.NodeID) { created = append(created, id) }); err != nil {
		t.Fatalf("Import: %v", err)
	}
	return created
}

func TestNewHasSingletons(t *testing.T) {
	s := New()
	for _, name := range Singletons {
		n, ok := s.Node(scene.NodeID(name))
		if !ok {
			t.Fatalf("singleton %s missing", name)
		}
		if !n.Singleton() || !n.Locked() {
			t.Errorf("%s: singleton=%v locked=%v", name, n.Singleton(), n.Locked())
		}
	}
	if s.View() != DefaultView {
		t.Errorf("View() = %+v, want default", s.View())
	}
}

func TestImportOBJ(t *testing.T) {
	s := New()
	path := fixture(t, "cube.obj", CubeOBJ)
	created := importInto(t, s, path, "cube_1")

	want := []scene.NodeID{"cube_1:Cube", "cube_1:Tri", "cube_1:red"}
	if !slices.Equal(created, want) {
		t.Fatalf("created = %v, want %v", created, want)
	}

	cube, _ := s.Node("cube_1:Cube")
	g, ok := cube.Geometry()
	if !ok {
		t.Fatal("Cube has no geometry")
	}
	if g.Vertices != 8 || g.Faces != 6 || g.Triangles != 12 {
		t.Errorf("Cube geometry = %+v", g)
	}

	tri, _ := s.Node("cube_1:Tri")
	if g, _ := tri.Geometry(); g.Vertices != 3 || g.Faces != 1 {
		t.Errorf("Tri geometry = %+v", g)
	}

	red, _ := s.Node("cube_1:red")
	m, ok := red.Material()
	if !ok || len(m.Textures) != 2 {
		t.Errorf("red material = %+v, %v", m, ok)
	}

	var crossing int
	for _, c := range s.Connections("cube_1:red") {
		if c.Crosses("cube_1") {
			crossing++
		}
	}
	if crossing != 1 {
		t.Errorf("crossing connections = %d, want 1", crossing)
	}

	sel := s.Selection()
	if !slices.Equal(sel, scene.Selection{"cube_1:Cube", "cube_1:Tri"}) {
		t.Errorf("selection after import = %v", sel)
	}
	if st := s.Stats(); st.Imports != 1 {
		t.Errorf("Imports = %d", st.Imports)
	}
}

func TestImportDocument(t *testing.T) {
	s := New()
	path := fixture(t, "rig.scene.json", NestedRigDocument)
	importInto(t, s, path, "rig_1")

	if !s.NamespaceExists("rig_1:rig") {
		t.Fatal("nested namespace not created")
	}
	if got := s.ChildNamespaces("rig_1"); !slices.Equal(got, []string{"rig_1:rig"}) {
		t.Errorf("ChildNamespaces = %v", got)
	}
	if got := s.Nodes("rig_1", false); !slices.Equal(got, []scene.NodeID{"rig_1:base"}) {
		t.Errorf("Nodes(non-recursive) = %v", got)
	}
	if got := len(s.Nodes("rig_1", true)); got != 3 {
		t.Errorf("Nodes(recursive) = %d, want 3", got)
	}

	ctrl, _ := s.Node("rig_1:rig:ctrl")
	if !ctrl.Locked() {
		t.Error("ctrl should be locked")
	}
	curve, _ := s.Node("rig_1:rig:bounce")
	a, ok := curve.Animation()
	if !ok || a.FirstFrame != 10 || a.LastFrame != 30 || a.Keys != 3 {
		t.Errorf("animation = %+v, %v", a, ok)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr error
	}{
		{"unsupported", "tree.fbx", "Kaydara FBX Binary", scene.ErrUnsupportedFormat},
		{"bad vertex", "bad.obj", "v 0 0 0\nf 1 2 9\n", nil},
		{"no faces", "empty.obj", "v 0 0 0\n", nil},
		{"bad json", "bad.scene.json", "{nodes: ", nil},
		{"unknown singleton", "orphan.scene.json", `{"nodes":[{"name":"a"}],"connections":[{"from":"a.x","to":"noSuchGlobals.y"}]}`, nil},
		{"unknown type", "weird.scene.json", `{"nodes":[{"name":"a","type":"nurbs"}]}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			path := fixture(t, tt.file, tt.content)
			if err := s.AddNamespace("ns"); err != nil {
				t.Fatal(err)
			}
			var created []scene.NodeID
			err := s.Import(path, "ns", func(id scene.NodeID) { created = append(created, id) })
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(created) != 0 || len(s.Nodes("ns", true)) != 0 {
				t.Errorf("failed import left nodes: %v", created)
			}
		})
	}
}

func TestImportRequiresNamespace(t *testing.T) {
	s := New()
	path := fixture(t, "cube.obj", CubeOBJ)
	if err := s.Import(path, "missing", nil); !errors.Is(err, scene.ErrNamespaceNotFound) {
		t.Errorf("err = %v, want ErrNamespaceNotFound", err)
	}
}

func TestFailImportAfter(t *testing.T) {
	s := New()
	s.FailImportAfter(2)
	path := fixture(t, "cube.obj", CubeOBJ)
	if err := s.AddNamespace("ns"); err != nil {
		t.Fatal(err)
	}

	var created []scene.NodeID
	err := s.Import(path, "ns", func(id scene.NodeID) { created = append(created, id) })
	if !errors.Is(err, ErrInjected) {
		t.Fatalf("err = %v, want ErrInjected", err)
	}
	if len(created) != 2 {
		t.Errorf("created = %v, want 2 nodes reported", created)
	}
	if got := len(s.Nodes("ns", true)); got != 2 {
		t.Errorf("partial import left %d nodes, want 2", got)
	}
}

func TestDeleteRules(t *testing.T) {
	s := New()
	path := fixture(t, "rig.scene.json", LockedRigDocument)
	importInto(t, s, path, "ns")
	proxy := scene.NodeID("ns:hwGlobalsProxy")

	if err := s.Delete(proxy); !errors.Is(err, scene.ErrNodeLocked) {
		t.Fatalf("delete locked: %v", err)
	}

	// Locked nodes refuse disconnection.
	conns := s.Connections(proxy)
	if len(conns) != 2 {
		t.Fatalf("connections = %v", conns)
	}
	if err := s.Disconnect(conns[0]); !errors.Is(err, scene.ErrNodeLocked) {
		t.Fatalf("disconnect while locked: %v", err)
	}

	if err := s.SetLocked(proxy, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(proxy); !errors.Is(err, scene.ErrNodeConnected) {
		t.Fatalf("delete connected: %v", err)
	}

	for _, c := range s.Connections(proxy) {
		if err := s.Disconnect(c); err != nil {
			t.Fatalf("disconnect: %v", err)
		}
	}
	if err := s.Delete(proxy); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Node(proxy); ok {
		t.Error("node still present")
	}

	// Singletons survive.
	if _, ok := s.Node("hardwareRenderingGlobals"); !ok {
		t.Error("singleton deleted")
	}
}

func TestDeleteIsAllOrNothing(t *testing.T) {
	s := New()
	if err := s.AddNamespace("ns"); err != nil {
		t.Fatal(err)
	}
	_ = s.AddNode("ns:a", false)
	_ = s.AddNode("ns:b", true)

	if err := s.Delete("ns:a", "ns:b"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := s.Node("ns:a"); !ok {
		t.Error("bulk delete removed a node despite failing")
	}
}

func TestRemoveNamespace(t *testing.T) {
	s := New()
	path := fixture(t, "rig.scene.json", NestedRigDocument)
	importInto(t, s, path, "ns")

	if err := s.SetCurrentNamespace("ns:rig"); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveNamespace("ns", true); !errors.Is(err, scene.ErrNamespaceCurrent) {
		t.Fatalf("remove current: %v", err)
	}
	if err := s.SetCurrentNamespace(scene.Root); err != nil {
		t.Fatal(err)
	}

	if err := s.RemoveNamespace("ns", false); err == nil {
		t.Fatal("remove without contents should fail on a populated namespace")
	}
	if err := s.RemoveNamespace("ns", true); !errors.Is(err, scene.ErrNodeLocked) {
		t.Fatalf("remove with locked content: %v", err)
	}
	if got := len(s.Nodes("ns", true)); got != 3 {
		t.Fatalf("failed removal changed content: %d nodes", got)
	}

	if err := s.SetLocked("ns:rig:ctrl", false); err != nil {
		t.Fatal(err)
	}
	for _, c := range s.Connections("ns:rig:ctrl") {
		if err := s.Disconnect(c); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RemoveNamespace("ns", true); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if scene.Present(s, s, "ns") || s.NamespaceExists("ns:rig") {
		t.Error("namespace still present")
	}
}

func TestDeleteFaults(t *testing.T) {
	s := New()
	if err := s.AddNamespace("ns"); err != nil {
		t.Fatal(err)
	}
	_ = s.AddNode("ns:a", false)

	s.FailDelete("ns:a", 2)
	for i := range 2 {
		if err := s.Delete("ns:a"); !errors.Is(err, ErrInjected) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if err := s.Delete("ns:a"); err != nil {
		t.Fatalf("third attempt: %v", err)
	}

	_ = s.AddNode("ns:b", false)
	s.PanicDelete("ns:b", 1)
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		_ = s.Delete("ns:b")
	}()
	if err := s.Delete("ns:b"); err != nil {
		t.Fatalf("after panic: %v", err)
	}

	s.FailRemoveNamespace(Forever)
	for range 3 {
		if err := s.RemoveNamespace("ns", true); !errors.Is(err, ErrInjected) {
			t.Fatalf("remove: %v", err)
		}
	}
}

func TestSelectAndView(t *testing.T) {
	s := New()
	if err := s.Select(scene.Selection{"missing"}); !errors.Is(err, scene.ErrNodeNotFound) {
		t.Errorf("select missing: %v", err)
	}
	if err := s.Select(scene.Selection{"renderPartition"}); err != nil {
		t.Fatal(err)
	}

	cfg := scene.PreviewView(s.View(), "nope")
	if err := s.SetView(cfg); !errors.Is(err, scene.ErrNamespaceNotFound) {
		t.Errorf("isolate missing namespace: %v", err)
	}
	cfg.Isolate = scene.Root
	if err := s.SetView(cfg); err != nil {
		t.Fatal(err)
	}
	if s.View().Shading != scene.ShadingSmooth {
		t.Error("view not applied")
	}
}

func TestFrameAndCapture(t *testing.T) {
	s := New()
	path := fixture(t, "cube.obj", CubeOBJ)
	importInto(t, s, path, "ns")

	if err := s.Frame("ns"); err != nil {
		t.Fatal(err)
	}
	f := s.View().Framing
	if f.Center != [3]float64{1.5, 0, 0} {
		t.Errorf("center = %v", f.Center)
	}
	if f.Extent <= 2 {
		t.Errorf("extent = %v", f.Extent)
	}

	if err := s.SetView(scene.PreviewView(s.View(), "ns")); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "shot.png")
	if err := s.Capture(out, 64, 48); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	f2, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	img, err := png.Decode(f2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("size = %v", b)
	}

	// Background is grey; the red material must show up somewhere.
	red := 0
	for y := range 48 {
		for x := range 64 {
			r, g, _, _ := img.At(x, y).RGBA()
			if r > g+0x1000 {
				red++
			}
		}
	}
	if red == 0 {
		t.Error("no red geometry in capture")
	}
}

func TestCaptureFault(t *testing.T) {
	s := New()
	boom := errors.New("viewport lost")
	s.FailCapture(boom)
	err := s.Capture(filepath.Join(t.TempDir(), "x.png"), 8, 8)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	s.FailCapture(nil)
	if err := s.Capture(filepath.Join(t.TempDir(), "x.png"), 8, 8); err != nil {
		t.Errorf("after clearing fault: %v", err)
	}
}

func TestCaptureRejectsBadSize(t *testing.T) {
	if err := New().Capture(filepath.Join(t.TempDir(), "x.png"), 0, 8); err == nil {
		t.Error("expected error")
	}
}
