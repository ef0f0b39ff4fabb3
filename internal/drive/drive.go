// Package drive ties one account's file tree to its views, uploads, share
// links and blob storage.
package drive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"gopan-drive/internal/ai"
	"gopan-drive/internal/events"
	"gopan-drive/internal/filetree"
	"gopan-drive/internal/logger"
	"gopan-drive/internal/metrics"
	"gopan-drive/internal/payment"
	"gopan-drive/internal/quota"
	"gopan-drive/internal/share"
	"gopan-drive/internal/storage"
	"gopan-drive/internal/upload"
	"gopan-drive/internal/view"
)

// Drive is one account's storage.
type Drive struct {
	Owner   string
	Store   *filetree.Store
	View    *view.Projector
	Uploads *upload.Manager
	Shares  *share.Issuer

	blobs storage.Blobs
}

// Purge permanently removes a trashed node, revokes links to anything it
// took with it and releases the blobs. Blob errors are logged; the tree
// change stands.
func (d *Drive) Purge(ctx context.Context, id string) ([]filetree.Node, error) {
	removed, err := d.Store.Purge(id)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(removed))
	refs := make([]string, 0, len(removed))
	for _, n := range removed {
		ids = append(ids, n.ID)
		if n.IsFile() && n.ContentRef != "" {
			refs = append(refs, n.ContentRef)
		}
	}
	d.Shares.RevokeNode(ids...)
	if err := d.blobs.Remove(ctx, refs...); err != nil {
		logger.Error("failed to release blobs",
			zap.String("owner", d.Owner),
			zap.Strings("refs", refs),
			zap.Error(err))
	}
	return removed, nil
}

// Upgrade runs a purchase and applies the resulting grant. The purchase runs
// without holding any tree lock.
func (d *Drive) Upgrade(ctx context.Context, p payment.Purchaser, plan quota.Tier) (quota.Grant, error) {
	grant, err := p.Purchase(ctx, plan)
	metrics.RecordPurchase(string(plan), err == nil)
	if err != nil {
		return quota.Grant{}, err
	}
	d.Store.ApplyGrant(grant)
	logger.Info("quota upgraded",
		zap.String("owner", d.Owner),
		zap.String("tier", string(grant.Tier)),
		zap.Int64("quota_limit", grant.Limit))
	return grant, nil
}

// Analyze describes a live file. content may be nil.
func (d *Drive) Analyze(ctx context.Context, a ai.Analyzer, id string, content []byte) (string, error) {
	n, err := d.Store.Get(id)
	if err != nil {
		return "", err
	}
	if n.IsDeleted {
		return "", fmt.Errorf("%w: %q is in the trash", filetree.ErrNotFound, id)
	}
	return a.Analyze(ctx, ai.Metadata{Name: n.Name, MimeType: n.MimeType, SizeBytes: n.SizeBytes}, content), nil
}

// ContentURL returns a download URL for a file's blob, "" if none.
func (d *Drive) ContentURL(ctx context.Context, n filetree.Node) (string, error) {
	if !n.IsFile() {
		return "", nil
	}
	return d.blobs.URL(ctx, n.ContentRef, n.Name)
}

// Close stops running uploads.
func (d *Drive) Close() {
	d.Uploads.Close()
}

// Options configures every drive a registry creates.
type Options struct {
	Policy       *quota.Policy
	Upload       upload.Options
	ShareBaseURL string
	Blobs        storage.Blobs
	Events       *events.Broadcaster
	Seed         *filetree.Snapshot
}

// Registry owns the drives of all accounts, created on first use.
type Registry struct {
	opts Options

	mu     sync.Mutex
	drives map[string]*Drive
}

func NewRegistry(opts Options) *Registry {
	if opts.Policy == nil {
		opts.Policy = quota.MustDefault()
	}
	if opts.Blobs == nil {
		opts.Blobs = storage.NewMemory()
	}
	return &Registry{opts: opts, drives: make(map[string]*Drive)}
}

// Policy returns the quota policy drives are created with.
func (r *Registry) Policy() *quota.Policy {
	return r.opts.Policy
}

// Get returns owner's drive, creating it on the free tier if needed.
func (r *Registry) Get(owner string) (*Drive, error) {
	if owner == "" {
		return nil, errors.New("drive owner is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drives[owner]; ok {
		return d, nil
	}

	d, err := r.newDrive(owner)
	if err != nil {
		return nil, err
	}
	r.drives[owner] = d
	metrics.SetDrivesActive(len(r.drives))
	logger.Info("drive created", zap.String("owner", owner), zap.Int("nodes", d.Store.Len()))
	return d, nil
}

func (r *Registry) newDrive(owner string) (*Drive, error) {
	store := filetree.NewStore(filetree.WithGrant(r.opts.Policy.FreeGrant()))
	if r.opts.Seed != nil {
		seed := *r.opts.Seed
		seed.Grant = nil
		if err := store.Import(seed); err != nil {
			return nil, fmt.Errorf("seed drive %s: %w", owner, err)
		}
	}

	store.OnChange(func(c filetree.Change) { metrics.RecordMutation(string(c.Type)) })
	if r.opts.Events != nil {
		store.OnChange(r.opts.Events.TreeListener(owner))
	}

	uploadOpts := r.opts.Upload
	next := uploadOpts.OnFinish
	uploadOpts.OnFinish = func(st upload.Status) {
		var bytes int64
		if st.State == upload.StateCommitted {
			bytes = st.SizeBytes
		}
		metrics.RecordUpload(string(st.State), bytes)
		if errors.Is(st.Err, filetree.ErrQuotaExceeded) {
			metrics.RecordQuotaExceeded("commit")
		}
		if r.opts.Events != nil {
			r.opts.Events.Publish(events.Event{
				Type:   events.EventUpload,
				Owner:  owner,
				Detail: string(st.State),
			})
		}
		if next != nil {
			next(st)
		}
	}

	return &Drive{
		Owner:   owner,
		Store:   store,
		View:    view.NewProjector(store),
		Uploads: upload.NewManager(store, owner, uploadOpts),
		Shares:  share.NewIssuer(store, r.opts.ShareBaseURL),
		blobs:   r.opts.Blobs,
	}, nil
}

// ResolveShare finds the drive that issued token and counts the access.
func (r *Registry) ResolveShare(token string) (*Drive, share.Link, error) {
	r.mu.Lock()
	drives := make([]*Drive, 0, len(r.drives))
	for _, d := range r.drives {
		drives = append(drives, d)
	}
	r.mu.Unlock()

	for _, d := range drives {
		link, err := d.Shares.Resolve(token)
		if err == nil {
			metrics.RecordShareResolve(true)
			return d, link, nil
		}
	}
	metrics.RecordShareResolve(false)
	return nil, share.Link{}, share.ErrUnknownToken
}

// Len returns the number of loaded drives.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drives)
}

// Close stops every drive's uploads.
func (r *Registry) Close() {
	r.mu.Lock()
	drives := make([]*Drive, 0, len(r.drives))
	for _, d := range r.drives {
		drives = append(drives, d)
	}
	r.mu.Unlock()
	for _, d := range drives {
		d.Close()
	}
}

// WelcomeSeed is the content new accounts start with: two folders and a
// guide.
func WelcomeSeed() filetree.Snapshot {
	at := func(s string) time.Time {
		t, _ := time.Parse(time.DateTime, s)
		return t
	}
	return filetree.Snapshot{
		Version: filetree.SnapshotVersion,
		Nodes: []filetree.Node{
			{ID: "f1", Name: "Project Files", Kind: filetree.KindFolder, ParentID: filetree.RootID, CreatedAt: at("2023-10-24 09:30:00")},
			{ID: "f2", Name: "Travel Photos", Kind: filetree.KindFolder, ParentID: filetree.RootID, CreatedAt: at("2023-10-25 14:20:15")},
			{ID: "d1", Name: "Getting Started.pdf", Kind: filetree.KindFile, ParentID: filetree.RootID,
				SizeBytes: 2500000, MimeType: "application/pdf", CreatedAt: at("2023-10-26 10:05:30")},
		},
	}
}
