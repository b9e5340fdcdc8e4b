package scene

import (
	"strings"
)

// Root is the name of the root namespace.
const Root = ""

// Separator joins namespace segments and node names.
const Separator = ":"

// NodeID is the fully qualified name of a node, namespace included.
type NodeID string

// Join builds the id of name inside namespace ns.
func Join(ns, name string) NodeID {
	if ns == Root {
		return NodeID(name)
	}
	return NodeID(ns + Separator + name)
}

// Namespace returns the namespace the node lives in.
func (id NodeID) Namespace() string {
	i := strings.LastIndex(string(id), Separator)
	if i < 0 {
		return Root
	}
	return string(id[:i])
}

// Name returns the node name without its namespace.
func (id NodeID) Name() string {
	i := strings.LastIndex(string(id), Separator)
	return string(id[i+1:])
}

// In reports whether the node lives in ns or any namespace nested below it.
func (id NodeID) In(ns string) bool {
	if ns == Root {
		return true
	}
	return strings.HasPrefix(string(id), ns+Separator)
}

// JoinNamespace returns the child namespace name under parent.
func JoinNamespace(parent, child string) string {
	if parent == Root {
		return child
	}
	return parent + Separator + child
}

// WithinNamespace reports whether ns equals parent or is nested below it.
func WithinNamespace(ns, parent string) bool {
	if parent == Root {
		return true
	}
	return ns == parent || strings.HasPrefix(ns, parent+Separator)
}

// Geometry is polygon mesh content.
type Geometry struct {
	Vertices  int
	Faces     int
	Triangles int
	// Bounds is the axis aligned bounding box as min and max corners.
	Bounds [2][3]float64
}

// Material is a surface shader and the texture files it references.
type Material struct {
	Name     string
	Textures []string
}

// Animation is keyed animation data driving a node.
type Animation struct {
	Curves     int
	Keys       int
	FirstFrame float64
	LastFrame  float64
}

// Camera describes a camera node.
type Camera struct {
	FocalLength  float64
	Orthographic bool
}

// Light describes a light node.
type Light struct {
	Type      string
	Intensity float64
}

// Node is a read-only view of one host node. Capability accessors return
// false when the node does not carry that kind of content.
type Node interface {
	ID() NodeID
	Locked() bool
	// Singleton reports host-wide registry nodes (render globals, display
	// pipelines) that exist once per scene.
	Singleton() bool
	Geometry() (Geometry, bool)
	Material() (Material, bool)
	Animation() (Animation, bool)
	Camera() (Camera, bool)
	Light() (Light, bool)
}

// Plug is one end of an attribute connection.
type Plug struct {
	Node NodeID
	Attr string
}

func (p Plug) String() string {
	return string(p.Node) + "." + p.Attr
}

// Connection is a directed attribute connection.
type Connection struct {
	From Plug
	To   Plug
}

func (c Connection) String() string {
	return c.From.String() + " -> " + c.To.String()
}

// Crosses reports whether the connection leaves namespace ns.
func (c Connection) Crosses(ns string) bool {
	return c.From.Node.In(ns) != c.To.Node.In(ns)
}

// Selection is the host's active selection list, in order.
type Selection []NodeID

// Clone returns a copy safe to keep after the host mutates its selection.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	out := make(Selection, len(s))
	copy(out, s)
	return out
}
