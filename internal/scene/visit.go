package scene

// Visitor receives each node of a walk. Returning false stops the walk.
type Visitor func(Node) bool

// Walk visits every node under ns, nested namespaces included, in the order
// the host lists them.
func Walk(g Graph, ns string, visit Visitor) int {
	n := 0
	for _, id := range g.Nodes(ns, true) {
		node, ok := g.Node(id)
		if !ok {
			continue
		}
		n++
		if !visit(node) {
			break
		}
	}
	return n
}

// Present reports whether ns still resolves to anything in the host:
// either the namespace itself or any node below it.
func Present(h Namespaces, g Graph, ns string) bool {
	return h.NamespaceExists(ns) || len(g.Nodes(ns, true)) > 0
}
