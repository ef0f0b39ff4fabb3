package filetree

// Reader is a read-only handle valid only inside Store.View.
type Reader struct {
	s *Store
}

// Get looks up a node, live or trashed.
func (r Reader) Get(id string) (Node, bool) {
	n, ok := r.s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return copyNode(n), true
}

// Children returns every child of parentID, live and trashed, in insertion
// order.
func (r Reader) Children(parentID string) []Node {
	ids := r.s.children[parentOrRoot(parentID)]
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := r.s.nodes[id]; ok {
			out = append(out, copyNode(n))
		}
	}
	return out
}

// Each visits every node in insertion order until fn returns false.
func (r Reader) Each(fn func(Node) bool) {
	for _, id := range r.s.order {
		n, ok := r.s.nodes[id]
		if !ok {
			continue
		}
		if !fn(copyNode(n)) {
			return
		}
	}
}

// Len returns the number of records.
func (r Reader) Len() int {
	return len(r.s.nodes)
}

// Used returns used storage.
func (r Reader) Used() int64 {
	return r.s.used
}
