package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gopan-drive/internal/filetree"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/quota"
)

func init() {
	logger.Replace(zap.NewNop())
}

func newStore(t *testing.T) *filetree.Store {
	t.Helper()
	return filetree.NewStore(filetree.WithGrant(quota.Grant{Tier: quota.TierFree, Limit: 1 << 30}))
}

func folder(t *testing.T, s *filetree.Store, name, parent string) filetree.Node {
	t.Helper()
	n, err := s.CreateFolder(name, parent)
	require.NoError(t, err)
	return n
}

func file(t *testing.T, s *filetree.Store, name, parent, mime string, size int64) filetree.Node {
	t.Helper()
	n, err := s.CreateFile(filetree.FileSpec{Name: name, ParentID: parent, MimeType: mime, SizeBytes: size})
	require.NoError(t, err)
	return n
}

func ids(nodes []filetree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestListChildren(t *testing.T) {
	s := newStore(t)
	p := NewProjector(s)

	docs := folder(t, s, "Work Documents", filetree.RootID)
	a := file(t, s, "b.pdf", docs.ID, "application/pdf", 10)
	b := file(t, s, "a.pdf", docs.ID, "application/pdf", 10)
	c := file(t, s, "c.pdf", docs.ID, "application/pdf", 10)
	require.NoError(t, s.SoftDelete(b.ID))

	got, err := p.ListChildren(docs.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, c.ID}, ids(got), "live children in insertion order")

	root, err := p.ListChildren(filetree.RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{docs.ID}, ids(root))

	empty := folder(t, s, "empty", filetree.RootID)
	got, err = p.ListChildren(empty.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = p.ListChildren("missing")
	assert.ErrorIs(t, err, filetree.ErrNotFound)

	_, err = p.ListChildren(a.ID)
	assert.ErrorIs(t, err, filetree.ErrNotFound, "a file is not a folder")

	require.NoError(t, s.SoftDelete(docs.ID))
	_, err = p.ListChildren(docs.ID)
	assert.ErrorIs(t, err, filetree.ErrNotFound, "trashed folder")
}

func TestListTrashIsFlat(t *testing.T) {
	s := newStore(t)
	p := NewProjector(s)

	one := folder(t, s, "one", filetree.RootID)
	two := folder(t, s, "two", filetree.RootID)
	x := file(t, s, "x", one.ID, "text/plain", 1)
	y := file(t, s, "y", two.ID, "text/plain", 1)
	keep := file(t, s, "keep", two.ID, "text/plain", 1)

	require.NoError(t, s.SoftDelete(x.ID))
	require.NoError(t, s.SoftDelete(y.ID))

	trash := p.ListTrash()
	assert.ElementsMatch(t, []string{x.ID, y.ID}, ids(trash))
	assert.NotContains(t, ids(trash), keep.ID)
}

func TestListByCategory(t *testing.T) {
	s := newStore(t)
	p := NewProjector(s)

	archive := folder(t, s, "image-archive", filetree.RootID)
	photo := file(t, s, "beach.png", archive.ID, "image/png", 100)
	movie := file(t, s, "clip.mp4", filetree.RootID, "video/mp4", 100)
	song := file(t, s, "song.mp3", filetree.RootID, "audio/mpeg", 100)
	pdf := file(t, s, "report.pdf", filetree.RootID, "application/pdf", 100)
	blank := file(t, s, "notes", filetree.RootID, "", 100)
	gone := file(t, s, "old.jpg", filetree.RootID, "image/jpeg", 100)
	require.NoError(t, s.SoftDelete(gone.ID))

	assert.Equal(t, []string{photo.ID}, ids(p.ListByCategory(filetree.CategoryImage)))
	assert.Equal(t, []string{movie.ID, song.ID}, ids(p.ListByCategory(filetree.CategoryMedia)))
	assert.Equal(t, []string{pdf.ID, blank.ID}, ids(p.ListByCategory(filetree.CategoryDocument)))

	for _, c := range []filetree.Category{filetree.CategoryImage, filetree.CategoryMedia, filetree.CategoryDocument} {
		for _, n := range p.ListByCategory(c) {
			assert.True(t, n.IsFile())
			assert.False(t, n.IsDeleted)
		}
	}
}

func TestBreadcrumbs(t *testing.T) {
	s := newStore(t)
	p := NewProjector(s)

	a := folder(t, s, "a", filetree.RootID)
	b := folder(t, s, "b", a.ID)
	c := folder(t, s, "c", b.ID)

	crumbs, err := p.Breadcrumbs(c.ID)
	require.NoError(t, err)
	require.Len(t, crumbs, 4)
	assert.Equal(t, Crumb{ID: filetree.RootID, Name: RootName}, crumbs[0])
	assert.Equal(t, []Crumb{{a.ID, "a"}, {b.ID, "b"}, {c.ID, "c"}}, crumbs[1:])

	crumbs, err = p.Breadcrumbs(filetree.RootID)
	require.NoError(t, err)
	assert.Len(t, crumbs, 1)

	_, err = p.Breadcrumbs("missing")
	assert.ErrorIs(t, err, filetree.ErrNotFound)
}

func TestBreadcrumbsBrokenChain(t *testing.T) {
	s := newStore(t)
	err := s.Import(filetree.Snapshot{Nodes: []filetree.Node{
		{ID: "a", Name: "a", Kind: filetree.KindFolder, ParentID: "ghost"},
	}})
	// Import refuses dangling parents, so a broken chain cannot be loaded.
	require.ErrorIs(t, err, filetree.ErrBrokenPath)

	p := NewProjector(s)
	_, err = p.Breadcrumbs("a")
	assert.ErrorIs(t, err, filetree.ErrNotFound)
}

func TestSearch(t *testing.T) {
	s := newStore(t)
	p := NewProjector(s)

	reports := folder(t, s, "Reports", filetree.RootID)
	q3 := file(t, s, "Q3 Report.pdf", reports.ID, "application/pdf", 1)
	file(t, s, "holiday.png", filetree.RootID, "image/png", 1)
	old := file(t, s, "report-old.pdf", filetree.RootID, "application/pdf", 1)
	require.NoError(t, s.SoftDelete(old.ID))

	assert.Equal(t, []string{reports.ID, q3.ID}, ids(p.Search("REPORT", "")))
	assert.Equal(t, []string{q3.ID}, ids(p.Search("report", filetree.KindFile)))
	assert.Equal(t, []string{reports.ID}, ids(p.Search("report", filetree.KindFolder)))
	assert.Len(t, p.Search("", ""), 3)
}

func TestFolderTree(t *testing.T) {
	s := newStore(t)
	p := NewProjector(s)

	a := folder(t, s, "a", filetree.RootID)
	b := folder(t, s, "b", a.ID)
	file(t, s, "f", a.ID, "text/plain", 1)
	gone := folder(t, s, "gone", filetree.RootID)
	require.NoError(t, s.SoftDelete(gone.ID))

	tree := p.FolderTree()
	require.Len(t, tree, 1)
	assert.Equal(t, a.ID, tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, b.ID, tree[0].Children[0].ID)
	assert.Empty(t, tree[0].Children[0].Children)
}

func TestSorted(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nodes := []filetree.Node{
		{ID: "1", Name: "beta", Kind: filetree.KindFile, SizeBytes: 30, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "2", Name: "Alpha", Kind: filetree.KindFile, SizeBytes: 10, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "3", Name: "zeta", Kind: filetree.KindFolder, CreatedAt: base.Add(time.Hour)},
	}

	assert.Equal(t, []string{"2", "1", "3"}, ids(Sorted(nodes, SortByName, false, false)))
	assert.Equal(t, []string{"3", "2", "1"}, ids(Sorted(nodes, SortByName, false, true)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Sorted(nodes, SortBySize, true, false)))
	assert.Equal(t, []string{"3", "1", "2"}, ids(Sorted(nodes, SortByCreated, false, false)))
	assert.Equal(t, []string{"1", "2", "3"}, ids(nodes), "input untouched")
}
