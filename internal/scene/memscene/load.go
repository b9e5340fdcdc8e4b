package memscene

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"asset-preview/internal/filesystem"
	"asset-preview/internal/scene"
)

const sceneDocumentSuffix = ".scene.json"

var defaultColor = [3]float64{0.7, 0.7, 0.7}

// plan is a parsed file ready to be created under a namespace. Names are
// relative to the import namespace and may carry nested namespaces.
type plan struct {
	nodes []planNode
	conns []planConn
}

type planNode struct {
	name   string
	n      node
	assign string
}

type planConn struct {
	from, to string
}

// Supported reports whether Import can read the file at path.
func Supported(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".obj") || strings.HasSuffix(lower, sceneDocumentSuffix)
}

// Import implements scene.Importer.
func (s *Scene) Import(path, ns string, created func(scene.NodeID)) error {
	defer s.enter()()
	s.imports.Add(1)

	s.mu.Lock()
	delay := s.importDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	p, err := parseFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	ids, err := s.applyLocked(p, ns)
	s.mu.Unlock()

	if created != nil {
		for _, id := range ids {
			created(id)
		}
	}
	return err
}

func parseFile(path string) (*plan, error) {
	lower := strings.ToLower(path)
	var parse func(string, []byte) (*plan, error)
	switch {
	case strings.HasSuffix(lower, sceneDocumentSuffix):
		parse = parseDocument
	case strings.HasSuffix(lower, ".obj"):
		parse = parseOBJ
	default:
		return nil, fmt.Errorf("import %s: %w", filepath.Base(path), scene.ErrUnsupportedFormat)
	}

	data, err := filesystem.ReadFileWithRetry(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	p, err := parse(path, data)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	return p, nil
}

// applyLocked creates the plan's nodes under ns. It returns the ids created
// so far even when it fails part way.
func (s *Scene) applyLocked(p *plan, ns string) ([]scene.NodeID, error) {
	if ns == scene.Root || !s.namespaces[ns] {
		return nil, fmt.Errorf("import into %q: %w", ns, scene.ErrNamespaceNotFound)
	}

	local := make(map[string]bool, len(p.nodes))
	for _, pn := range p.nodes {
		id := scene.Join(ns, pn.name)
		if _, exists := s.nodes[id]; exists || local[pn.name] {
			return nil, fmt.Errorf("import: node %s already exists", id)
		}
		local[pn.name] = true
	}

	resolve := func(ref string) (scene.Plug, error) {
		i := strings.LastIndex(ref, ".")
		if i <= 0 || i == len(ref)-1 {
			return scene.Plug{}, fmt.Errorf("import: malformed plug %q", ref)
		}
		name, attr := ref[:i], ref[i+1:]
		if local[name] {
			return scene.Plug{Node: scene.Join(ns, name), Attr: attr}, nil
		}
		if _, ok := s.nodes[scene.NodeID(name)]; ok && !strings.Contains(name, scene.Separator) {
			return scene.Plug{Node: scene.NodeID(name), Attr: attr}, nil
		}
		return scene.Plug{}, fmt.Errorf("import: plug %q refers to unknown node", ref)
	}

	var conns []scene.Connection
	for _, pc := range p.conns {
		from, err := resolve(pc.from)
		if err != nil {
			return nil, err
		}
		to, err := resolve(pc.to)
		if err != nil {
			return nil, err
		}
		conns = append(conns, scene.Connection{From: from, To: to})
	}
	for _, pn := range p.nodes {
		if pn.assign == "" {
			continue
		}
		if !local[pn.assign] {
			return nil, fmt.Errorf("import: %s uses unknown material %q", pn.name, pn.assign)
		}
		conns = append(conns, scene.Connection{
			From: scene.Plug{Node: scene.Join(ns, pn.name), Attr: "instObjGroups"},
			To:   scene.Plug{Node: scene.Join(ns, pn.assign), Attr: "dagSetMembers"},
		})
	}

	var ids []scene.NodeID
	var selection scene.Selection
	for _, pn := range p.nodes {
		id := scene.Join(ns, pn.name)
		if sub := id.Namespace(); !s.namespaces[sub] {
			s.ensureNamespaceLocked(sub)
		}

		n := pn.n
		n.id = id
		if pn.assign != "" {
			n.assigned = scene.Join(ns, pn.assign)
		}
		s.nodes[id] = &n
		ids = append(ids, id)
		if n.geom != nil {
			selection = append(selection, id)
		}

		if limit := s.faults.importFailAfter; limit > 0 && len(ids) >= limit {
			return ids, fmt.Errorf("import: aborted after %d nodes: %w", len(ids), ErrInjected)
		}
	}

	for _, c := range conns {
		if err := s.connectLocked(c); err != nil {
			return ids, err
		}
	}
	s.selection = selection
	return ids, nil
}

func (s *Scene) ensureNamespaceLocked(ns string) {
	if ns == scene.Root || s.namespaces[ns] {
		return
	}
	s.ensureNamespaceLocked(scene.NodeID(ns).Namespace())
	s.namespaces[ns] = true
}

// newMesh summarises faces over a shared point list, keeping only the
// points the faces use.
func newMesh(points [][3]float64, faces [][]int) (*mesh, error) {
	remap := make(map[int]int)
	m := &mesh{}
	for i, f := range faces {
		if len(f) < 3 {
			return nil, fmt.Errorf("face %d has %d vertices", i, len(f))
		}
		local := make([]int, len(f))
		for j, idx := range f {
			if idx < 0 || idx >= len(points) {
				return nil, fmt.Errorf("face %d: vertex index %d out of range", i, idx)
			}
			k, ok := remap[idx]
			if !ok {
				k = len(m.points)
				remap[idx] = k
				m.points = append(m.points, points[idx])
			}
			local[j] = k
		}
		m.faces = append(m.faces, local)
		m.summary.Triangles += len(f) - 2
	}
	m.summary.Vertices = len(m.points)
	m.summary.Faces = len(m.faces)
	m.summary.Bounds = bounds(m.points)
	return m, nil
}

func bounds(points [][3]float64) [2][3]float64 {
	var b [2][3]float64
	if len(points) == 0 {
		return b
	}
	b[0], b[1] = points[0], points[0]
	for _, p := range points[1:] {
		for k := range 3 {
			b[0][k] = math.Min(b[0][k], p[k])
			b[1][k] = math.Max(b[1][k], p[k])
		}
	}
	return b
}

// sanitize turns arbitrary object names into node names.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	r := strings.NewReplacer(" ", "_", ":", "_", ".", "_", "\t", "_")
	name = r.Replace(name)
	if name == "" {
		return "node"
	}
	return name
}

type objObject struct {
	name     string
	faces    [][]int
	material string
}

type mtlMaterial struct {
	name     string
	color    [3]float64
	textures []string
}

// parseOBJ reads Wavefront OBJ geometry. Each o/g group becomes a mesh node
// and each usemtl material a material node wired into the render partition.
func parseOBJ(path string, data []byte) (*plan, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var (
		points    [][3]float64
		objects   []*objObject
		materials = map[string]*mtlMaterial{}
		matOrder  []string
	)
	current := &objObject{name: sanitize(stem)}
	objects = append(objects, current)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs three coordinates", line)
			}
			var p [3]float64
			for k := range 3 {
				f, err := strconv.ParseFloat(fields[k+1], 64)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				p[k] = f
			}
			points = append(points, p)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least three vertices", line)
			}
			face := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				ref, _, _ := strings.Cut(tok, "/")
				idx, err := strconv.Atoi(ref)
				if err != nil || idx == 0 {
					return nil, fmt.Errorf("line %d: bad vertex reference %q", line, tok)
				}
				if idx < 0 {
					idx = len(points) + idx
				} else {
					idx--
				}
				if idx < 0 || idx >= len(points) {
					return nil, fmt.Errorf("line %d: vertex reference %q out of range", line, tok)
				}
				face = append(face, idx)
			}
			current.faces = append(current.faces, face)
		case "o", "g":
			name := sanitize(strings.Join(fields[1:], "_"))
			if len(current.faces) == 0 {
				current.name = name
				continue
			}
			current = &objObject{name: name, material: current.material}
			objects = append(objects, current)
		case "usemtl":
			if len(fields) < 2 {
				return nil, fmt.Errorf("line %d: usemtl needs a name", line)
			}
			name := sanitize(fields[1])
			if _, ok := materials[name]; !ok {
				materials[name] = &mtlMaterial{name: name, color: defaultColor}
				matOrder = append(matOrder, name)
			}
			current.material = name
		case "mtllib":
			if len(fields) < 2 {
				continue
			}
			lib := filepath.Join(filepath.Dir(path), strings.Join(fields[1:], " "))
			if err := readMTL(lib, materials, &matOrder); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	p := &plan{}
	used := map[string]bool{}
	for _, o := range objects {
		if len(o.faces) == 0 {
			continue
		}
		m, err := newMesh(points, o.faces)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", o.name, err)
		}
		name := o.name
		for i := 1; used[name]; i++ {
			name = fmt.Sprintf("%s%d", o.name, i)
		}
		used[name] = true
		p.nodes = append(p.nodes, planNode{name: name, n: node{geom: m}, assign: o.material})
	}
	if len(p.nodes) == 0 {
		return nil, fmt.Errorf("no faces found")
	}

	for _, name := range matOrder {
		mat := materials[name]
		if used[name] {
			return nil, fmt.Errorf("material %s clashes with an object name", name)
		}
		used[name] = true
		p.nodes = append(p.nodes, planNode{
			name: name,
			n: node{
				material: &scene.Material{Name: name, Textures: mat.textures},
				color:    mat.color,
			},
		})
		p.conns = append(p.conns, planConn{from: name + ".partition", to: "renderPartition.sets"})
	}
	return p, nil
}

// readMTL merges the materials of a .mtl library. A missing library is not
// an error; the DCC falls back to default shading in that case too.
func readMTL(path string, materials map[string]*mtlMaterial, order *[]string) error {
	data, err := filesystem.ReadFileWithRetry(path)
	if err != nil {
		return nil
	}

	var cur *mtlMaterial
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "newmtl":
			if len(fields) < 2 {
				return fmt.Errorf("%s: newmtl needs a name", filepath.Base(path))
			}
			name := sanitize(fields[1])
			cur = materials[name]
			if cur == nil {
				cur = &mtlMaterial{name: name, color: defaultColor}
				materials[name] = cur
				*order = append(*order, name)
			}
		case "Kd":
			if cur == nil || len(fields) < 4 {
				continue
			}
			for k := range 3 {
				if f, err := strconv.ParseFloat(fields[k+1], 64); err == nil {
					cur.color[k] = f
				}
			}
		case "map_Kd", "map_Ks", "map_Ka", "map_Bump", "bump", "map_d", "norm", "map_Ns", "disp":
			if cur == nil || len(fields) < 2 {
				continue
			}
			cur.textures = append(cur.textures, fields[len(fields)-1])
		}
	}
	return sc.Err()
}

// document is the JSON scene format. It can describe everything the OBJ
// format cannot: locked nodes, nested namespaces, cameras, lights,
// animation and connections into host singletons.
type document struct {
	Nodes       []docNode `json:"nodes"`
	Connections []docConn `json:"connections"`
}

type docNode struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Namespace string `json:"namespace,omitempty"`
	Locked    bool   `json:"locked,omitempty"`

	Vertices [][3]float64 `json:"vertices,omitempty"`
	Faces    [][]int      `json:"faces,omitempty"`
	Material string       `json:"material,omitempty"`

	Color    *[3]float64 `json:"color,omitempty"`
	Textures []string    `json:"textures,omitempty"`

	Keys   [][2]float64 `json:"keys,omitempty"`
	Target string       `json:"target,omitempty"`
	Attr   string       `json:"attr,omitempty"`

	FocalLength  float64 `json:"focalLength,omitempty"`
	Orthographic bool    `json:"orthographic,omitempty"`

	LightType string   `json:"lightType,omitempty"`
	Intensity *float64 `json:"intensity,omitempty"`
}

type docConn struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func parseDocument(_ string, data []byte) (*plan, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scene document: %w", err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("scene document has no nodes")
	}

	p := &plan{}
	for i, dn := range doc.Nodes {
		if dn.Name == "" || strings.ContainsAny(dn.Name, ".:") {
			return nil, fmt.Errorf("node %d: invalid name %q", i, dn.Name)
		}
		name := dn.Name
		if dn.Namespace != "" {
			name = dn.Namespace + scene.Separator + dn.Name
		}

		pn := planNode{name: name, n: node{locked: dn.Locked}}
		switch dn.Type {
		case "mesh":
			m, err := newMesh(dn.Vertices, dn.Faces)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", name, err)
			}
			if m.summary.Faces == 0 {
				return nil, fmt.Errorf("node %s: mesh has no faces", name)
			}
			pn.n.geom = m
			pn.assign = dn.Material
		case "material":
			pn.n.material = &scene.Material{Name: dn.Name, Textures: dn.Textures}
			pn.n.color = defaultColor
			if dn.Color != nil {
				pn.n.color = *dn.Color
			}
		case "animCurve":
			if len(dn.Keys) == 0 {
				return nil, fmt.Errorf("node %s: animation curve has no keys", name)
			}
			a := &scene.Animation{Curves: 1, Keys: len(dn.Keys), FirstFrame: dn.Keys[0][0], LastFrame: dn.Keys[0][0]}
			for _, k := range dn.Keys[1:] {
				a.FirstFrame = math.Min(a.FirstFrame, k[0])
				a.LastFrame = math.Max(a.LastFrame, k[0])
			}
			pn.n.anim = a
			if dn.Target != "" {
				attr := dn.Attr
				if attr == "" {
					attr = "rotateY"
				}
				p.conns = append(p.conns, planConn{from: name + ".output", to: dn.Target + "." + attr})
			}
		case "camera":
			focal := dn.FocalLength
			if focal == 0 {
				focal = 35
			}
			pn.n.camera = &scene.Camera{FocalLength: focal, Orthographic: dn.Orthographic}
		case "light":
			lt := dn.LightType
			if lt == "" {
				lt = "point"
			}
			intensity := 1.0
			if dn.Intensity != nil {
				intensity = *dn.Intensity
			}
			pn.n.light = &scene.Light{Type: lt, Intensity: intensity}
		case "transform", "aggregate", "":
		default:
			return nil, fmt.Errorf("node %s: unknown type %q", name, dn.Type)
		}
		p.nodes = append(p.nodes, pn)
	}

	for _, c := range doc.Connections {
		p.conns = append(p.conns, planConn{from: c.From, to: c.To})
	}
	return p, nil
}
