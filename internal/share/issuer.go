// Package share issues opaque capability links for nodes.
package share

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopan-drive/internal/filetree"
)

// maxAttempts bounds token regeneration on collision.
const maxAttempts = 8

var (
	ErrUnknownToken = fmt.Errorf("%w: share link", filetree.ErrNotFound)
	ErrExhausted    = errors.New("could not generate a unique share token")
)

// Nodes is the lookup an issuer needs.
type Nodes interface {
	Get(id string) (filetree.Node, error)
}

// Link is an issued share.
type Link struct {
	Token       string    `json:"code"`
	NodeID      string    `json:"node_id"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
	AccessCount int       `json:"access_count"`
}

// Issuer hands out tokens for one drive. Tokens are never reissued, even
// after revocation.
type Issuer struct {
	nodes   Nodes
	baseURL string
	gen     func() (string, error)
	now     func() time.Time

	mu     sync.Mutex
	links  map[string]*Link
	order  []string
	issued map[string]struct{}
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithGenerator replaces the random token source.
func WithGenerator(gen func() (string, error)) Option {
	return func(i *Issuer) { i.gen = gen }
}

// NewIssuer creates an issuer whose links point at baseURL.
func NewIssuer(nodes Nodes, baseURL string, opts ...Option) *Issuer {
	i := &Issuer{
		nodes:   nodes,
		baseURL: strings.TrimRight(baseURL, "/"),
		gen:     GenerateToken,
		now:     time.Now,
		links:   make(map[string]*Link),
		issued:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// GenerateToken returns 16 random bytes, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Issue creates a link for a live node.
func (i *Issuer) Issue(nodeID string) (Link, error) {
	n, err := i.nodes.Get(nodeID)
	if err != nil {
		return Link{}, err
	}
	if n.IsDeleted {
		return Link{}, fmt.Errorf("%w: %q is in the trash", filetree.ErrNotFound, nodeID)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	for attempt := 0; attempt < maxAttempts; attempt++ {
		token, err := i.gen()
		if err != nil {
			return Link{}, fmt.Errorf("generate share token: %w", err)
		}
		if _, taken := i.issued[token]; taken || token == "" {
			continue
		}
		l := &Link{
			Token:     token,
			NodeID:    nodeID,
			URL:       i.baseURL + "/s/" + token,
			CreatedAt: i.now(),
		}
		i.issued[token] = struct{}{}
		i.links[token] = l
		i.order = append(i.order, token)
		return *l, nil
	}
	return Link{}, ErrExhausted
}

// Resolve returns the link behind token and counts the access.
func (i *Issuer) Resolve(token string) (Link, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.links[token]
	if !ok {
		return Link{}, ErrUnknownToken
	}
	l.AccessCount++
	return *l, nil
}

// Revoke deletes a link.
func (i *Issuer) Revoke(token string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.links[token]; !ok {
		return ErrUnknownToken
	}
	delete(i.links, token)
	for idx, t := range i.order {
		if t == token {
			i.order = append(i.order[:idx], i.order[idx+1:]...)
			break
		}
	}
	return nil
}

// RevokeNode drops every link to the given nodes, used after a purge.
func (i *Issuer) RevokeNode(ids ...string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	kept := i.order[:0]
	n := 0
	for _, t := range i.order {
		if _, ok := drop[i.links[t].NodeID]; ok {
			delete(i.links, t)
			n++
			continue
		}
		kept = append(kept, t)
	}
	i.order = kept
	return n
}

// List returns active links, newest first.
func (i *Issuer) List() []Link {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Link, 0, len(i.order))
	for idx := len(i.order) - 1; idx >= 0; idx-- {
		out = append(out, *i.links[i.order[idx]])
	}
	return out
}
