package filetree

// SetParentUnchecked rewires a record's parent bypassing every invariant
// check, so tests can build chains Import and Move refuse.
func (s *Store) SetParentUnchecked(id, parentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[id].ParentID = parentID
}
