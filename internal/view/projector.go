// Package view derives read-only projections from a file tree: folder
// listings, the trash, category views, breadcrumbs, search and the folder
// tree. Nothing here mutates the store.
package view

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"gopan-drive/internal/filetree"
	"gopan-drive/internal/logger"
)

// RootName is the display name of the root crumb.
const RootName = "My Files"

// Crumb is one step of a breadcrumb trail.
type Crumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TreeItem is a live folder and its live sub-folders.
type TreeItem struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Children []TreeItem `json:"children"`
}

// Projector reads a store.
type Projector struct {
	store *filetree.Store
}

func NewProjector(store *filetree.Store) *Projector {
	return &Projector{store: store}
}

// ListChildren returns the live children of folderID in insertion order.
// An unknown, trashed or non-folder id is reported as ErrNotFound.
func (p *Projector) ListChildren(folderID string) ([]filetree.Node, error) {
	if folderID == "" {
		folderID = filetree.RootID
	}
	var (
		out []filetree.Node
		err error
	)
	p.store.View(func(r filetree.Reader) {
		if folderID != filetree.RootID {
			f, ok := r.Get(folderID)
			if !ok || f.IsDeleted || !f.IsFolder() {
				err = fmt.Errorf("%w: folder %q", filetree.ErrNotFound, folderID)
				return
			}
		}
		out = make([]filetree.Node, 0)
		for _, n := range r.Children(folderID) {
			if !n.IsDeleted {
				out = append(out, n)
			}
		}
	})
	return out, err
}

// ListTrash returns every trashed node, flat, regardless of where it lived.
func (p *Projector) ListTrash() []filetree.Node {
	out := make([]filetree.Node, 0)
	p.store.View(func(r filetree.Reader) {
		r.Each(func(n filetree.Node) bool {
			if n.IsDeleted {
				out = append(out, n)
			}
			return true
		})
	})
	return out
}

// ListByCategory returns live files of category c from anywhere in the tree.
func (p *Projector) ListByCategory(c filetree.Category) []filetree.Node {
	out := make([]filetree.Node, 0)
	p.store.View(func(r filetree.Reader) {
		r.Each(func(n filetree.Node) bool {
			if !n.IsDeleted && c.Matches(n) {
				out = append(out, n)
			}
			return true
		})
	})
	return out
}

// Breadcrumbs returns the path from the root to folderID, root first. The
// root alone yields one crumb. A chain that hits a missing record or loops
// is reported as ErrBrokenPath.
func (p *Projector) Breadcrumbs(folderID string) ([]Crumb, error) {
	if folderID == "" || folderID == filetree.RootID {
		return []Crumb{{ID: filetree.RootID, Name: RootName}}, nil
	}

	var (
		trail []Crumb
		err   error
	)
	p.store.View(func(r filetree.Reader) {
		n, ok := r.Get(folderID)
		if !ok {
			err = fmt.Errorf("%w: %q", filetree.ErrNotFound, folderID)
			return
		}
		seen := make(map[string]struct{})
		for {
			if _, loop := seen[n.ID]; loop {
				err = fmt.Errorf("%w: loop at %q", filetree.ErrBrokenPath, n.ID)
				return
			}
			seen[n.ID] = struct{}{}
			trail = append(trail, Crumb{ID: n.ID, Name: n.Name})
			if n.ParentID == filetree.RootID {
				break
			}
			parent, ok := r.Get(n.ParentID)
			if !ok {
				err = fmt.Errorf("%w: %q has missing parent %q", filetree.ErrBrokenPath, n.ID, n.ParentID)
				return
			}
			n = parent
		}
	})
	if err != nil {
		if errors.Is(err, filetree.ErrBrokenPath) {
			logger.Error("breadcrumb chain broken", zap.String("folder", folderID), zap.Error(err))
		}
		return nil, err
	}

	out := make([]Crumb, 0, len(trail)+1)
	out = append(out, Crumb{ID: filetree.RootID, Name: RootName})
	for i := len(trail) - 1; i >= 0; i-- {
		out = append(out, trail[i])
	}
	return out, nil
}

// Search returns live nodes whose name contains query, ignoring case. kind
// narrows the result to folders or files when set.
func (p *Projector) Search(query string, kind filetree.Kind) []filetree.Node {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]filetree.Node, 0)
	p.store.View(func(r filetree.Reader) {
		r.Each(func(n filetree.Node) bool {
			if n.IsDeleted || (kind != "" && n.Kind != kind) {
				return true
			}
			if q == "" || strings.Contains(strings.ToLower(n.Name), q) {
				out = append(out, n)
			}
			return true
		})
	})
	return out
}

// FolderTree returns the nested live folders below the root.
func (p *Projector) FolderTree() []TreeItem {
	var out []TreeItem
	p.store.View(func(r filetree.Reader) {
		out = buildTree(r, filetree.RootID)
	})
	return out
}

func buildTree(r filetree.Reader, parentID string) []TreeItem {
	result := make([]TreeItem, 0)
	for _, n := range r.Children(parentID) {
		if n.IsDeleted || !n.IsFolder() {
			continue
		}
		result = append(result, TreeItem{
			ID:       n.ID,
			Name:     n.Name,
			Children: buildTree(r, n.ID),
		})
	}
	return result
}

// SortKey selects the field Sorted orders by.
type SortKey string

const (
	SortByName    SortKey = "name"
	SortBySize    SortKey = "size"
	SortByCreated SortKey = "created_at"
)

// Sorted returns a sorted copy of nodes. Folders come first when foldersFirst
// is set. Unknown keys fall back to name. The sort is stable so equal keys
// keep insertion order.
func Sorted(nodes []filetree.Node, by SortKey, desc, foldersFirst bool) []filetree.Node {
	out := append([]filetree.Node(nil), nodes...)
	less := func(a, b filetree.Node) bool {
		switch by {
		case SortBySize:
			return a.SizeBytes < b.SizeBytes
		case SortByCreated:
			return a.CreatedAt.Before(b.CreatedAt)
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if foldersFirst && a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
	return out
}
