package scene

import "errors"

var (
	// ErrNodeNotFound is returned for operations on ids the host does not know.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNodeLocked is returned when deleting a node whose lock flag is set.
	ErrNodeLocked = errors.New("node is locked")

	// ErrNodeConnected is returned when a node cannot be deleted because it
	// is wired into a host singleton.
	ErrNodeConnected = errors.New("node is connected to a host singleton")

	// ErrNamespaceNotFound is returned for unknown namespaces.
	ErrNamespaceNotFound = errors.New("namespace not found")

	// ErrNamespaceExists is returned when adding a namespace twice.
	ErrNamespaceExists = errors.New("namespace already exists")

	// ErrNamespaceCurrent is returned when removing the current namespace or
	// one of its parents.
	ErrNamespaceCurrent = errors.New("namespace is current")

	// ErrUnsupportedFormat is returned by Import for files it cannot read.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Namespaces is the host's namespace registry.
type Namespaces interface {
	NamespaceExists(ns string) bool
	AddNamespace(ns string) error
	// RemoveNamespace removes ns. With deleteContents it deletes every node
	// and nested namespace below it first and fails if any of them cannot
	// be deleted.
	RemoveNamespace(ns string, deleteContents bool) error
	// ChildNamespaces lists the namespaces directly below ns.
	ChildNamespaces(ns string) []string
	CurrentNamespace() string
	SetCurrentNamespace(ns string) error
}

// Graph is node level access to the scene.
type Graph interface {
	// Nodes lists nodes in ns, including nested namespaces when recursive.
	Nodes(ns string, recursive bool) []NodeID
	Node(id NodeID) (Node, bool)
	SetLocked(id NodeID, locked bool) error
	// Connections returns connections into and out of id.
	Connections(id NodeID) []Connection
	Disconnect(c Connection) error
	// Delete removes the given nodes as one operation. It fails without
	// deleting anything if any node is locked or singleton connected.
	Delete(ids ...NodeID) error
}

// Viewport is the view and capture surface.
type Viewport interface {
	Selection() Selection
	Select(sel Selection) error
	View() ViewConfig
	SetView(cfg ViewConfig) error
	// Frame fits the view to the content of ns.
	Frame(ns string) error
	// Capture renders the current view to a PNG file.
	Capture(path string, width, height int) error
}

// Importer loads asset files into the scene.
type Importer interface {
	// Import reads path into namespace ns, which must already exist.
	// created is called for every node as soon as it exists so that a
	// failed import can still be cleaned up.
	Import(path, ns string, created func(NodeID)) error
}

// Host is the complete scene graph surface.
type Host interface {
	Namespaces
	Graph
	Viewport
	Importer
}
