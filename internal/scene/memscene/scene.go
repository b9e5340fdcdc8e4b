package memscene

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"asset-preview/internal/scene"
)

// Singletons created in every new scene, mirroring the registries a DCC
// host keeps at root.
var Singletons = []string{
	"defaultRenderGlobals",
	"hardwareRenderingGlobals",
	"defaultRenderLayer",
	"renderPartition",
	"lightLinker1",
	"defaultLightSet",
}

// DefaultView is the view configuration of a fresh scene.
var DefaultView = scene.ViewConfig{
	Textures: false,
	Shading:  scene.ShadingFlat,
	Lighting: scene.LightingScene,
	Shadows:  true,
	Framing:  scene.Framing{Extent: 1},
}

type node struct {
	id        scene.NodeID
	locked    bool
	singleton bool

	geom     *mesh
	material *scene.Material
	color    [3]float64
	assigned scene.NodeID
	anim     *scene.Animation
	camera   *scene.Camera
	light    *scene.Light
}

type mesh struct {
	summary scene.Geometry
	points  [][3]float64
	faces   [][]int
}

// Stats counts host operations. Overlaps counts mutating calls that started
// while another was still running, which a correctly serialised caller
// never produces.
type Stats struct {
	Imports           int64
	Captures          int64
	Deletes           int64
	NamespaceRemovals int64
	ViewChanges       int64
	Overlaps          int64
}

// Scene is an in-memory scene.Host. It is safe for concurrent use.
type Scene struct {
	mu         sync.Mutex
	nodes      map[scene.NodeID]*node
	namespaces map[string]bool
	current    string
	conns      []scene.Connection
	selection  scene.Selection
	view       scene.ViewConfig
	faults     faults

	importDelay time.Duration

	busy              atomic.Int32
	imports           atomic.Int64
	captures          atomic.Int64
	deletes           atomic.Int64
	namespaceRemovals atomic.Int64
	viewChanges       atomic.Int64
	overlaps          atomic.Int64
}

var _ scene.Host = (*Scene)(nil)

// New returns a scene holding only the host singletons.
func New() *Scene {
	s := &Scene{
		nodes:      make(map[scene.NodeID]*node),
		namespaces: make(map[string]bool),
		view:       DefaultView,
		faults:     newFaults(),
	}
	for _, name := range Singletons {
		id := scene.NodeID(name)
		s.nodes[id] = &node{id: id, locked: true, singleton: true}
	}
	return s
}

// enter marks a mutating host call and records overlapping callers.
func (s *Scene) enter() func() {
	if s.busy.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	return func() { s.busy.Add(-1) }
}

// Stats returns a snapshot of the operation counters.
func (s *Scene) Stats() Stats {
	return Stats{
		Imports:           s.imports.Load(),
		Captures:          s.captures.Load(),
		Deletes:           s.deletes.Load(),
		NamespaceRemovals: s.namespaceRemovals.Load(),
		ViewChanges:       s.viewChanges.Load(),
		Overlaps:          s.overlaps.Load(),
	}
}

// SetImportDelay makes every import take at least d, which widens the
// window in which unserialised callers would overlap.
func (s *Scene) SetImportDelay(d time.Duration) {
	s.mu.Lock()
	s.importDelay = d
	s.mu.Unlock()
}

// AddNode creates a plain node, e.g. content the user already has open.
// The namespace of id must exist.
func (s *Scene) AddNode(id scene.NodeID, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; ok {
		return fmt.Errorf("add node %s: already exists", id)
	}
	if ns := id.Namespace(); ns != scene.Root && !s.namespaces[ns] {
		return fmt.Errorf("add node %s: %w", id, scene.ErrNamespaceNotFound)
	}
	s.nodes[id] = &node{id: id, locked: locked}
	return nil
}

// Connect wires two existing plugs together.
func (s *Scene) Connect(c scene.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked(c)
}

func (s *Scene) connectLocked(c scene.Connection) error {
	if _, ok := s.nodes[c.From.Node]; !ok {
		return fmt.Errorf("connect %s: %w", c, scene.ErrNodeNotFound)
	}
	if _, ok := s.nodes[c.To.Node]; !ok {
		return fmt.Errorf("connect %s: %w", c, scene.ErrNodeNotFound)
	}
	if !slices.Contains(s.conns, c) {
		s.conns = append(s.conns, c)
	}
	return nil
}

// NamespaceExists implements scene.Namespaces.
func (s *Scene) NamespaceExists(ns string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ns == scene.Root || s.namespaces[ns]
}

// AddNamespace implements scene.Namespaces. The parent must exist.
func (s *Scene) AddNamespace(ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNamespaceLocked(ns)
}

func (s *Scene) addNamespaceLocked(ns string) error {
	if ns == scene.Root || s.namespaces[ns] {
		return fmt.Errorf("add namespace %q: %w", ns, scene.ErrNamespaceExists)
	}
	if parent := scene.NodeID(ns).Namespace(); parent != scene.Root && !s.namespaces[parent] {
		return fmt.Errorf("add namespace %q: parent: %w", ns, scene.ErrNamespaceNotFound)
	}
	s.namespaces[ns] = true
	return nil
}

// ChildNamespaces implements scene.Namespaces.
func (s *Scene) ChildNamespaces(ns string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for name := range s.namespaces {
		if scene.NodeID(name).Namespace() == ns {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// CurrentNamespace implements scene.Namespaces.
func (s *Scene) CurrentNamespace() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetCurrentNamespace implements scene.Namespaces.
func (s *Scene) SetCurrentNamespace(ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ns != scene.Root && !s.namespaces[ns] {
		return fmt.Errorf("set current namespace %q: %w", ns, scene.ErrNamespaceNotFound)
	}
	s.current = ns
	return nil
}

// RemoveNamespace implements scene.Namespaces.
func (s *Scene) RemoveNamespace(ns string, deleteContents bool) error {
	defer s.enter()()
	s.namespaceRemovals.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if ns == scene.Root || !s.namespaces[ns] {
		return fmt.Errorf("remove namespace %q: %w", ns, scene.ErrNamespaceNotFound)
	}
	if scene.WithinNamespace(s.current, ns) {
		return fmt.Errorf("remove namespace %q: %w", ns, scene.ErrNamespaceCurrent)
	}
	if err := s.faults.takeRemoveNamespace(ns); err != nil {
		return err
	}

	ids := s.nodesLocked(ns, true)
	if !deleteContents && (len(ids) > 0 || s.hasChildNamespaceLocked(ns)) {
		return fmt.Errorf("remove namespace %q: namespace is not empty", ns)
	}
	for _, id := range ids {
		if err := s.deletableLocked(id); err != nil {
			return fmt.Errorf("remove namespace %q: %w", ns, err)
		}
	}

	s.deleteLocked(ids)
	for name := range s.namespaces {
		if scene.WithinNamespace(name, ns) {
			delete(s.namespaces, name)
		}
	}
	return nil
}

func (s *Scene) hasChildNamespaceLocked(ns string) bool {
	for name := range s.namespaces {
		if name != ns && scene.WithinNamespace(name, ns) {
			return true
		}
	}
	return false
}

// Nodes implements scene.Graph. Results are sorted by id.
func (s *Scene) Nodes(ns string, recursive bool) []scene.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodesLocked(ns, recursive)
}

func (s *Scene) nodesLocked(ns string, recursive bool) []scene.NodeID {
	var out []scene.NodeID
	for id := range s.nodes {
		if recursive {
			if id.In(ns) {
				out = append(out, id)
			}
			continue
		}
		if id.Namespace() == ns {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// Node implements scene.Graph.
func (s *Scene) Node(id scene.NodeID) (scene.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return snapshot(n), true
}

// SetLocked implements scene.Graph.
func (s *Scene) SetLocked(id scene.NodeID, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("lock %s: %w", id, scene.ErrNodeNotFound)
	}
	if err := s.faults.takeUnlock(id); err != nil {
		return err
	}
	n.locked = locked
	return nil
}

// Connections implements scene.Graph.
func (s *Scene) Connections(id scene.NodeID) []scene.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []scene.Connection
	for _, c := range s.conns {
		if c.From.Node == id || c.To.Node == id {
			out = append(out, c)
		}
	}
	return out
}

// Disconnect implements scene.Graph. Locked nodes refuse disconnection
// unless they are host singletons.
func (s *Scene) Disconnect(c scene.Connection) error {
	defer s.enter()()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.conns, c)
	if i < 0 {
		return fmt.Errorf("disconnect %s: connection not found", c)
	}
	for _, id := range []scene.NodeID{c.From.Node, c.To.Node} {
		if n := s.nodes[id]; n != nil && n.locked && !n.singleton {
			return fmt.Errorf("disconnect %s: %s: %w", c, id, scene.ErrNodeLocked)
		}
	}
	s.conns = slices.Delete(s.conns, i, i+1)
	return nil
}

// Delete implements scene.Graph.
func (s *Scene) Delete(ids ...scene.NodeID) error {
	defer s.enter()()
	s.deletes.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if err := s.deletableLocked(id); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
	}
	s.deleteLocked(ids)
	return nil
}

// deletableLocked reports why id cannot be deleted right now. It consumes
// one injected delete fault for id.
func (s *Scene) deletableLocked(id scene.NodeID) error {
	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, scene.ErrNodeNotFound)
	}
	if n.locked {
		return fmt.Errorf("%s: %w", id, scene.ErrNodeLocked)
	}
	for _, c := range s.conns {
		var other scene.NodeID
		switch id {
		case c.From.Node:
			other = c.To.Node
		case c.To.Node:
			other = c.From.Node
		default:
			continue
		}
		if o := s.nodes[other]; o != nil && o.singleton {
			return fmt.Errorf("%s (%s): %w", id, c, scene.ErrNodeConnected)
		}
	}
	return s.faults.takeDelete(id)
}

func (s *Scene) deleteLocked(ids []scene.NodeID) {
	gone := make(map[scene.NodeID]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
		delete(s.nodes, id)
	}
	s.conns = slices.DeleteFunc(s.conns, func(c scene.Connection) bool {
		return gone[c.From.Node] || gone[c.To.Node]
	})
	s.selection = slices.DeleteFunc(s.selection, func(id scene.NodeID) bool {
		return gone[id]
	})
}

// Selection implements scene.Viewport.
func (s *Scene) Selection() scene.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Clone()
}

// Select implements scene.Viewport.
func (s *Scene) Select(sel scene.Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range sel {
		if _, ok := s.nodes[id]; !ok {
			return fmt.Errorf("select %s: %w", id, scene.ErrNodeNotFound)
		}
	}
	s.selection = sel.Clone()
	return nil
}

// View implements scene.Viewport.
func (s *Scene) View() scene.ViewConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// SetView implements scene.Viewport.
func (s *Scene) SetView(cfg scene.ViewConfig) error {
	defer s.enter()()
	s.viewChanges.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Isolate != scene.Root && !s.namespaces[cfg.Isolate] {
		return fmt.Errorf("isolate %q: %w", cfg.Isolate, scene.ErrNamespaceNotFound)
	}
	s.view = cfg
	return nil
}

// Frame implements scene.Viewport.
func (s *Scene) Frame(ns string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ns != scene.Root && !s.namespaces[ns] {
		return fmt.Errorf("frame %q: %w", ns, scene.ErrNamespaceNotFound)
	}
	s.view.Framing = frameBounds(s.meshesLocked(ns))
	return nil
}

func (s *Scene) meshesLocked(ns string) []*node {
	var out []*node
	for _, id := range s.nodesLocked(ns, true) {
		if n := s.nodes[id]; n.geom != nil {
			out = append(out, n)
		}
	}
	return out
}

// Capture implements scene.Viewport.
func (s *Scene) Capture(path string, width, height int) error {
	defer s.enter()()
	s.captures.Add(1)

	if width <= 0 || height <= 0 {
		return fmt.Errorf("capture: invalid size %dx%d", width, height)
	}

	s.mu.Lock()
	if err := s.faults.captureErr; err != nil {
		s.mu.Unlock()
		return fmt.Errorf("capture: %w", err)
	}
	view := s.view
	items := s.drawablesLocked(view.Isolate)
	s.mu.Unlock()

	img := render(items, view, width, height)
	if err := writePNG(path, img); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

// nodeView is a detached copy of a node handed out through scene.Node.
type nodeView struct {
	id        scene.NodeID
	locked    bool
	singleton bool
	geom      *scene.Geometry
	material  *scene.Material
	anim      *scene.Animation
	camera    *scene.Camera
	light     *scene.Light
}

func snapshot(n *node) *nodeView {
	v := &nodeView{id: n.id, locked: n.locked, singleton: n.singleton}
	if n.geom != nil {
		g := n.geom.summary
		v.geom = &g
	}
	if n.material != nil {
		m := *n.material
		m.Textures = slices.Clone(n.material.Textures)
		v.material = &m
	}
	if n.anim != nil {
		a := *n.anim
		v.anim = &a
	}
	if n.camera != nil {
		c := *n.camera
		v.camera = &c
	}
	if n.light != nil {
		l := *n.light
		v.light = &l
	}
	return v
}

func (v *nodeView) ID() scene.NodeID { return v.id }
func (v *nodeView) Locked() bool     { return v.locked }
func (v *nodeView) Singleton() bool  { return v.singleton }

func (v *nodeView) Geometry() (scene.Geometry, bool) {
	if v.geom == nil {
		return scene.Geometry{}, false
	}
	return *v.geom, true
}

func (v *nodeView) Material() (scene.Material, bool) {
	if v.material == nil {
		return scene.Material{}, false
	}
	return *v.material, true
}

func (v *nodeView) Animation() (scene.Animation, bool) {
	if v.anim == nil {
		return scene.Animation{}, false
	}
	return *v.anim, true
}

func (v *nodeView) Camera() (scene.Camera, bool) {
	if v.camera == nil {
		return scene.Camera{}, false
	}
	return *v.camera, true
}

func (v *nodeView) Light() (scene.Light, bool) {
	if v.light == nil {
		return scene.Light{}, false
	}
	return *v.light, true
}
