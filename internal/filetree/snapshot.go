package filetree

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopan-drive/internal/quota"
)

// SnapshotVersion is the current export format version.
const SnapshotVersion = 1

// Snapshot is the exported state of a store: its grant and every record in
// insertion order.
type Snapshot struct {
	Version int          `json:"version"`
	Grant   *quota.Grant `json:"grant,omitempty"`
	Nodes   []Node       `json:"nodes"`
}

// Export copies the store state.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g := s.grant
	snap := Snapshot{Version: SnapshotVersion, Grant: &g, Nodes: make([]Node, 0, len(s.order))}
	for _, id := range s.order {
		snap.Nodes = append(snap.Nodes, copyNode(s.nodes[id]))
	}
	return snap
}

// Import replaces the store contents with snap after checking the tree
// invariants. On error the store is left untouched. A snapshot without a
// grant keeps the current one.
func (s *Store) Import(snap Snapshot) error {
	if snap.Version != 0 && snap.Version != SnapshotVersion {
		return invalid(fmt.Sprintf("unsupported snapshot version %d", snap.Version))
	}

	nodes := make(map[string]*Node, len(snap.Nodes))
	order := make([]string, 0, len(snap.Nodes))
	var used int64
	for i := range snap.Nodes {
		n := copyNode(&snap.Nodes[i])
		switch {
		case n.ID == "" || n.ID == RootID:
			return invalid(fmt.Sprintf("node %d has a reserved or empty id", i))
		case n.Name == "":
			return invalid(fmt.Sprintf("node %q has no name", n.ID))
		case !n.Kind.valid():
			return invalid(fmt.Sprintf("node %q has unknown kind %q", n.ID, n.Kind))
		case n.IsFolder() && n.SizeBytes != 0:
			return invalid(fmt.Sprintf("folder %q has a size", n.ID))
		case n.SizeBytes < 0:
			return invalid(fmt.Sprintf("file %q has a negative size", n.ID))
		}
		if _, dup := nodes[n.ID]; dup {
			return invalid(fmt.Sprintf("duplicate id %q", n.ID))
		}
		n.ParentID = parentOrRoot(n.ParentID)
		if !n.IsDeleted {
			n.DeletedAt = nil
			n.TrashedWith = ""
		}
		nodes[n.ID] = &n
		order = append(order, n.ID)
		if n.IsFile() {
			used += n.SizeBytes
		}
	}

	children := make(map[string][]string)
	for _, id := range order {
		n := nodes[id]
		if n.ParentID != RootID {
			p, ok := nodes[n.ParentID]
			if !ok {
				return fmt.Errorf("%w: %q points at missing parent %q", ErrBrokenPath, id, n.ParentID)
			}
			if !p.IsFolder() {
				return invalid(fmt.Sprintf("%q has a file as parent", id))
			}
			if !n.IsDeleted && p.IsDeleted {
				return invalid(fmt.Sprintf("live node %q sits under trashed folder %q", id, p.ID))
			}
		}
		children[n.ParentID] = append(children[n.ParentID], id)
	}
	for _, id := range order {
		steps := 0
		for cur := nodes[id].ParentID; cur != RootID; cur = nodes[cur].ParentID {
			if steps++; steps > len(order) {
				return fmt.Errorf("%w: cycle through %q", ErrBrokenPath, id)
			}
		}
	}

	s.mu.Lock()
	s.nodes = nodes
	s.order = order
	s.children = children
	s.used = used
	for id := range nodes {
		delete(s.retired, id)
	}
	if snap.Grant != nil {
		s.grant = *snap.Grant
	}
	change := Change{Type: ChangeImported, Used: s.used, Limit: s.grant.Limit, Count: len(s.nodes)}
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return nil
}

// WriteSnapshot encodes snap as indented JSON.
func WriteSnapshot(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

// ReadSnapshot decodes a snapshot.
func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// LoadSnapshotFile reads a snapshot from disk.
func LoadSnapshotFile(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}
