package drive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gopan-drive/internal/ai"
	"gopan-drive/internal/events"
	"gopan-drive/internal/filetree"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/payment"
	"gopan-drive/internal/quota"
	"gopan-drive/internal/storage"
	"gopan-drive/internal/upload"
)

func init() {
	logger.Replace(zap.NewNop())
}

func TestRegistryCreatesFreeDrives(t *testing.T) {
	seed := WelcomeSeed()
	r := NewRegistry(Options{Seed: &seed})
	defer r.Close()

	d, err := r.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, quota.TierFree, d.Store.Grant().Tier)
	assert.Equal(t, 10*quota.GiB, d.Store.Grant().Limit)
	assert.Equal(t, 3, d.Store.Len())
	assert.Equal(t, int64(2500000), d.Store.UsedStorage())

	again, err := r.Get("alice")
	require.NoError(t, err)
	assert.Same(t, d, again)

	other, err := r.Get("bob")
	require.NoError(t, err)
	assert.NotSame(t, d, other)
	assert.Equal(t, 2, r.Len())

	_, err = r.Get("")
	assert.Error(t, err)
}

func TestPurgeReleasesBlobsAndLinks(t *testing.T) {
	blobs := storage.NewMemory()
	r := NewRegistry(Options{Blobs: blobs, ShareBaseURL: "http://x"})
	defer r.Close()
	d, err := r.Get("alice")
	require.NoError(t, err)

	dir, err := d.Store.CreateFolder("dir", filetree.RootID)
	require.NoError(t, err)
	f, err := d.Store.CreateFile(filetree.FileSpec{Name: "a.pdf", ParentID: dir.ID, SizeBytes: 5, ContentRef: "alice/u1/a.pdf"})
	require.NoError(t, err)
	link, err := d.Shares.Issue(f.ID)
	require.NoError(t, err)

	_, err = d.Purge(context.Background(), dir.ID)
	assert.ErrorIs(t, err, filetree.ErrInvalidState)

	require.NoError(t, d.Store.SoftDelete(dir.ID))
	removed, err := d.Purge(context.Background(), dir.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)
	assert.Equal(t, []string{"alice/u1/a.pdf"}, blobs.Removed())

	_, err = d.Shares.Resolve(link.Token)
	assert.ErrorIs(t, err, filetree.ErrNotFound)
	assert.Zero(t, d.Store.UsedStorage())
}

func TestUpgradeAppliesGrant(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()
	d, err := r.Get("alice")
	require.NoError(t, err)

	g, err := d.Upgrade(context.Background(), payment.NewSimulator(r.Policy(), 0), quota.TierMonthly)
	require.NoError(t, err)
	assert.Equal(t, 2*quota.TiB, g.Limit)
	assert.Equal(t, g, d.Store.Grant())

	failing := payment.PurchaserFunc(func(context.Context, quota.Tier) (quota.Grant, error) {
		return quota.Grant{}, errors.New("declined")
	})
	_, err = d.Upgrade(context.Background(), failing, quota.TierSVIP)
	require.Error(t, err)
	assert.Equal(t, quota.TierMonthly, d.Store.Grant().Tier, "failed purchase keeps the grant")
}

func TestAnalyze(t *testing.T) {
	r := NewRegistry(Options{})
	defer r.Close()
	d, err := r.Get("alice")
	require.NoError(t, err)

	f, err := d.Store.CreateFile(filetree.FileSpec{Name: "a.png", SizeBytes: 1, MimeType: "image/png"})
	require.NoError(t, err)

	text, err := d.Analyze(context.Background(), ai.Fallback{Text: "a picture"}, f.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "a picture", text)

	require.NoError(t, d.Store.SoftDelete(f.ID))
	_, err = d.Analyze(context.Background(), ai.Fallback{}, f.ID, nil)
	assert.ErrorIs(t, err, filetree.ErrNotFound)
}

func TestUploadEventsPublished(t *testing.T) {
	b := events.NewBroadcaster()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	r := NewRegistry(Options{Events: b, Policy: quota.MustDefault()})
	defer r.Close()
	d, err := r.Get("alice")
	require.NoError(t, err)

	s, err := d.Uploads.Begin(upload.Request{Name: "a.txt", SizeBytes: 3})
	require.NoError(t, err)
	_, err = d.Uploads.Advance(s.ID(), 100)
	require.NoError(t, err)

	var types []string
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Contains(t, types, events.EventCreate)
	assert.Contains(t, types, events.EventUpload)
}

func TestResolveShareAcrossDrives(t *testing.T) {
	seed := WelcomeSeed()
	r := NewRegistry(Options{Seed: &seed, ShareBaseURL: "http://x"})
	defer r.Close()

	_, err := r.Get("alice")
	require.NoError(t, err)
	bob, err := r.Get("bob")
	require.NoError(t, err)

	link, err := bob.Shares.Issue("d1")
	require.NoError(t, err)

	d, got, err := r.ResolveShare(link.Token)
	require.NoError(t, err)
	assert.Same(t, bob, d)
	assert.Equal(t, 1, got.AccessCount)

	_, _, err = r.ResolveShare("missing")
	assert.ErrorIs(t, err, filetree.ErrNotFound)
}
