// Package filetree holds the in-memory file tree of one drive: folders and
// files keyed by id, soft delete into a trash, and quota-gated file creation.
package filetree

import (
	"strings"
	"time"
)

// RootID is the sentinel parent of top-level nodes. It has no record and
// cannot be deleted.
const RootID = "root"

// Kind distinguishes folders from files.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

func (k Kind) valid() bool {
	return k == KindFolder || k == KindFile
}

// Node is a file or folder record. Values handed out by the store are copies.
type Node struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       Kind      `json:"kind"`
	ParentID   string    `json:"parentId"`
	SizeBytes  int64     `json:"sizeBytes"`
	CreatedAt  time.Time `json:"createdAt"`
	IsDeleted  bool      `json:"isDeleted"`
	MimeType   string    `json:"mimeType,omitempty"`
	ContentRef string    `json:"contentRef,omitempty"`

	// DeletedAt is set while the node is in the trash.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	// TrashedWith names the folder whose deletion trashed this node, empty
	// when the node was deleted on its own.
	TrashedWith string `json:"trashedWith,omitempty"`
}

func (n Node) IsFolder() bool { return n.Kind == KindFolder }
func (n Node) IsFile() bool   { return n.Kind == KindFile }

// Category is a virtual view over live files keyed on MIME type.
type Category string

const (
	CategoryImage    Category = "image"
	CategoryMedia    Category = "media"
	CategoryDocument Category = "document"
)

// ParseCategory accepts the category names used by clients. "doc" is an
// alias for document.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images":
		return CategoryImage, true
	case "media", "video", "audio":
		return CategoryMedia, true
	case "document", "documents", "doc", "docs":
		return CategoryDocument, true
	}
	return "", false
}

// CategoryOf classifies a MIME type.
func CategoryOf(mimeType string) Category {
	mt := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mt, "image/"):
		return CategoryImage
	case strings.HasPrefix(mt, "video/"), strings.HasPrefix(mt, "audio/"):
		return CategoryMedia
	default:
		return CategoryDocument
	}
}

// Matches reports whether n belongs in category c. Folders never do.
func (c Category) Matches(n Node) bool {
	return n.IsFile() && CategoryOf(n.MimeType) == c
}

func copyNode(n *Node) Node {
	out := *n
	if n.DeletedAt != nil {
		t := *n.DeletedAt
		out.DeletedAt = &t
	}
	return out
}
