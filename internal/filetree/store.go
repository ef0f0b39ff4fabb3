package filetree

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"gopan-drive/internal/quota"
)

// maxIDAttempts bounds id regeneration when a generator repeats itself.
const maxIDAttempts = 8

// ChangeType names a committed mutation.
type ChangeType string

const (
	ChangeCreated  ChangeType = "create"
	ChangeTrashed  ChangeType = "trash"
	ChangeRestored ChangeType = "restore"
	ChangePurged   ChangeType = "purge"
	ChangeRenamed  ChangeType = "rename"
	ChangeMoved    ChangeType = "move"
	ChangeGrant    ChangeType = "grant"
	ChangeImported ChangeType = "import"
)

// Change describes a committed mutation. Listeners receive it after the
// store lock has been released.
type Change struct {
	Type  ChangeType
	Nodes []Node
	Used  int64
	Limit int64
	Count int
}

// FileSpec is the input of CreateFile.
type FileSpec struct {
	Name       string
	ParentID   string
	SizeBytes  int64
	MimeType   string
	ContentRef string
}

// Capacity summarises quota usage.
type Capacity struct {
	Limit     int64   `json:"total_quota"`
	Used      int64   `json:"total_used"`
	Remaining int64   `json:"remaining"`
	Percent   float64 `json:"percentage"`
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the xid-based id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithGrant sets the initial quota grant.
func WithGrant(g quota.Grant) Option {
	return func(s *Store) { s.grant = g }
}

// Store is the single owner of a drive's node map. Every mutation runs under
// one write lock, so quota and existence checks and the write that follows
// them are atomic.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	order    []string            // insertion order, live and trashed
	children map[string][]string // parent id -> child ids, insertion order
	retired  map[string]struct{} // purged ids, never reissued
	used     int64
	grant    quota.Grant

	now       func() time.Time
	newID     func() string
	listeners []func(Change)
}

// NewStore creates an empty store on the given grant.
func NewStore(opts ...Option) *Store {
	s := &Store{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		retired:  make(map[string]struct{}),
		now:      time.Now,
		newID:    func() string { return xid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers a listener for committed mutations.
func (s *Store) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) emit(listeners []func(Change), c Change) {
	for _, fn := range listeners {
		fn(c)
	}
}

// snapshotListeners must be called with the lock held.
func (s *Store) snapshotListeners() []func(Change) {
	if len(s.listeners) == 0 {
		return nil
	}
	out := make([]func(Change), len(s.listeners))
	copy(out, s.listeners)
	return out
}

// CreateFolder inserts a live folder under parentID.
func (s *Store) CreateFolder(name, parentID string) (Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Node{}, invalid("folder name is required")
	}

	s.mu.Lock()
	if err := s.checkParentLocked(parentID); err != nil {
		s.mu.Unlock()
		return Node{}, err
	}
	id, err := s.allocateIDLocked()
	if err != nil {
		s.mu.Unlock()
		return Node{}, err
	}
	n := &Node{
		ID:        id,
		Name:      name,
		Kind:      KindFolder,
		ParentID:  parentOrRoot(parentID),
		CreatedAt: s.now(),
	}
	s.insertLocked(n)
	out := copyNode(n)
	change := s.changeLocked(ChangeCreated, out)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return out, nil
}

// CreateFile inserts a live file under spec.ParentID if it fits the quota.
// Trashed files still count towards used storage.
func (s *Store) CreateFile(spec FileSpec) (Node, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Node{}, invalid("file name is required")
	}
	if spec.SizeBytes < 0 {
		return Node{}, invalid("file size must not be negative")
	}

	s.mu.Lock()
	if err := s.checkParentLocked(spec.ParentID); err != nil {
		s.mu.Unlock()
		return Node{}, err
	}
	if spec.SizeBytes > s.grant.Limit-s.used {
		err := &QuotaError{Used: s.used, Requested: spec.SizeBytes, Limit: s.grant.Limit}
		s.mu.Unlock()
		return Node{}, err
	}
	id, err := s.allocateIDLocked()
	if err != nil {
		s.mu.Unlock()
		return Node{}, err
	}
	n := &Node{
		ID:         id,
		Name:       name,
		Kind:       KindFile,
		ParentID:   parentOrRoot(spec.ParentID),
		SizeBytes:  spec.SizeBytes,
		CreatedAt:  s.now(),
		MimeType:   spec.MimeType,
		ContentRef: spec.ContentRef,
	}
	s.insertLocked(n)
	s.used += n.SizeBytes
	out := copyNode(n)
	change := s.changeLocked(ChangeCreated, out)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return out, nil
}

// SoftDelete moves a live node to the trash. Deleting a folder trashes its
// live descendants too; they remember the folder in TrashedWith so that
// restoring it brings them back. Quota accounting is unchanged.
func (s *Store) SoftDelete(id string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok || n.IsDeleted {
		s.mu.Unlock()
		return notFound(id)
	}

	now := s.now()
	trashed := []Node{}
	mark := func(m *Node, with string) {
		t := now
		m.IsDeleted = true
		m.DeletedAt = &t
		m.TrashedWith = with
		trashed = append(trashed, copyNode(m))
	}
	mark(n, "")
	s.walkLocked(id, func(d *Node) {
		if !d.IsDeleted {
			mark(d, id)
		}
	})
	change := s.changeLocked(ChangeTrashed, trashed...)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return nil
}

// Restore brings a trashed node back to life together with the descendants
// that were trashed alongside it. A node whose parent is no longer live is
// re-attached to the root.
func (s *Store) Restore(id string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return notFound(id)
	}
	if !n.IsDeleted {
		s.mu.Unlock()
		return invalidState(id, "is not in the trash")
	}

	batch := n.TrashedWith
	if !s.liveParentLocked(n.ParentID) {
		s.reparentLocked(n, RootID)
	}
	restored := []Node{}
	revive := func(m *Node) {
		m.IsDeleted = false
		m.DeletedAt = nil
		m.TrashedWith = ""
		restored = append(restored, copyNode(m))
	}
	revive(n)
	s.walkLocked(id, func(d *Node) {
		if d.IsDeleted && (d.TrashedWith == id || (batch != "" && d.TrashedWith == batch)) {
			revive(d)
		}
	})
	change := s.changeLocked(ChangeRestored, restored...)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return nil
}

// Purge permanently removes a trashed node and everything below it. It is
// the only operation that gives quota back. The removed records are returned
// so the caller can release their content.
func (s *Store) Purge(id string) ([]Node, error) {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return nil, notFound(id)
	}
	if !n.IsDeleted {
		s.mu.Unlock()
		return nil, invalidState(id, "must be in the trash before it can be purged")
	}

	doomed := []*Node{n}
	s.walkLocked(id, func(d *Node) { doomed = append(doomed, d) })

	removed := make([]Node, 0, len(doomed))
	gone := make(map[string]struct{}, len(doomed))
	for _, d := range doomed {
		removed = append(removed, copyNode(d))
		gone[d.ID] = struct{}{}
		if d.IsFile() {
			s.used -= d.SizeBytes
		}
		delete(s.nodes, d.ID)
		delete(s.children, d.ID)
		s.retired[d.ID] = struct{}{}
	}
	s.children[n.ParentID] = removeID(s.children[n.ParentID], id)
	if len(s.children[n.ParentID]) == 0 {
		delete(s.children, n.ParentID)
	}
	kept := s.order[:0]
	for _, oid := range s.order {
		if _, drop := gone[oid]; !drop {
			kept = append(kept, oid)
		}
	}
	s.order = kept

	change := s.changeLocked(ChangePurged, removed...)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return removed, nil
}

// Rename changes the display name of a live node.
func (s *Store) Rename(id, name string) (Node, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Node{}, invalid("name is required")
	}

	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok || n.IsDeleted {
		s.mu.Unlock()
		return Node{}, notFound(id)
	}
	n.Name = name
	out := copyNode(n)
	change := s.changeLocked(ChangeRenamed, out)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return out, nil
}

// Move re-parents a live node under a live folder or the root. Moving a
// folder into itself or one of its descendants is rejected.
func (s *Store) Move(id, parentID string) (Node, error) {
	parentID = parentOrRoot(parentID)

	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok || n.IsDeleted {
		s.mu.Unlock()
		return Node{}, notFound(id)
	}
	if err := s.checkParentLocked(parentID); err != nil {
		s.mu.Unlock()
		return Node{}, err
	}
	for cur := parentID; cur != RootID; {
		if cur == id {
			s.mu.Unlock()
			return Node{}, invalidState(id, "cannot be moved into itself or a descendant")
		}
		p, ok := s.nodes[cur]
		if !ok {
			s.mu.Unlock()
			return Node{}, ErrBrokenPath
		}
		cur = p.ParentID
	}
	if n.ParentID == parentID {
		out := copyNode(n)
		s.mu.Unlock()
		return out, nil
	}
	s.reparentLocked(n, parentID)
	out := copyNode(n)
	change := s.changeLocked(ChangeMoved, out)
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
	return out, nil
}

// Get returns a copy of a node, live or trashed.
func (s *Store) Get(id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, notFound(id)
	}
	return copyNode(n), nil
}

// UsedStorage sums the sizes of all files, live or trashed.
func (s *Store) UsedStorage() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

// Grant returns the active quota grant.
func (s *Store) Grant() quota.Grant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grant
}

// ApplyGrant replaces the active tier and limit. A lower limit than the
// current usage is accepted; further files are rejected until space is
// purged.
func (s *Store) ApplyGrant(g quota.Grant) {
	s.mu.Lock()
	s.grant = g
	change := Change{Type: ChangeGrant, Used: s.used, Limit: g.Limit, Count: len(s.nodes)}
	ls := s.snapshotListeners()
	s.mu.Unlock()

	s.emit(ls, change)
}

// Capacity reports quota usage.
func (s *Store) Capacity() Capacity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Capacity{Limit: s.grant.Limit, Used: s.used, Remaining: s.grant.Limit - s.used}
	if c.Remaining < 0 {
		c.Remaining = 0
	}
	if s.grant.Limit > 0 {
		c.Percent = float64(s.used) / float64(s.grant.Limit) * 100
		if c.Percent > 100 {
			c.Percent = 100
		}
	}
	return c
}

// Len returns the number of records, live and trashed.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// View runs fn under the read lock. fn sees one consistent state and must
// not call back into the store.
func (s *Store) View(fn func(r Reader)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(Reader{s: s})
}

func (s *Store) checkParentLocked(parentID string) error {
	parentID = parentOrRoot(parentID)
	if parentID == RootID {
		return nil
	}
	p, ok := s.nodes[parentID]
	if !ok || p.IsDeleted {
		return notFound(parentID)
	}
	if !p.IsFolder() {
		return invalid("parent must be a folder")
	}
	return nil
}

func (s *Store) liveParentLocked(parentID string) bool {
	if parentID == RootID {
		return true
	}
	p, ok := s.nodes[parentID]
	return ok && !p.IsDeleted
}

func (s *Store) allocateIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if id == "" || id == RootID {
			continue
		}
		if _, taken := s.nodes[id]; taken {
			continue
		}
		if _, taken := s.retired[id]; taken {
			continue
		}
		return id, nil
	}
	return "", invalidState("", "could not allocate a unique id")
}

func (s *Store) insertLocked(n *Node) {
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
	s.children[n.ParentID] = append(s.children[n.ParentID], n.ID)
}

func (s *Store) reparentLocked(n *Node, parentID string) {
	s.children[n.ParentID] = removeID(s.children[n.ParentID], n.ID)
	if len(s.children[n.ParentID]) == 0 {
		delete(s.children, n.ParentID)
	}
	n.ParentID = parentID
	s.children[parentID] = append(s.children[parentID], n.ID)
}

// walkLocked visits every descendant of id, depth first.
func (s *Store) walkLocked(id string, fn func(*Node)) {
	stack := append([]string(nil), s.children[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := s.nodes[cur]
		if !ok {
			continue
		}
		fn(n)
		stack = append(stack, s.children[cur]...)
	}
}

func (s *Store) changeLocked(t ChangeType, nodes ...Node) Change {
	return Change{Type: t, Nodes: nodes, Used: s.used, Limit: s.grant.Limit, Count: len(s.nodes)}
}

func parentOrRoot(id string) string {
	if id == "" {
		return RootID
	}
	return id
}

func removeID(ids []string, id string) []string {
	for i, cur := range ids {
		if cur == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
