// Package events fans out file tree changes to SSE subscribers.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"gopan-drive/internal/filetree"
	"gopan-drive/internal/metrics"
)

const (
	EventCreate  = "create"
	EventTrash   = "trash"
	EventRestore = "restore"
	EventPurge   = "purge"
	EventRename  = "rename"
	EventMove    = "move"
	EventQuota   = "quota"
	EventImport  = "import"
	EventUpload  = "upload"
)

// Event is one change pushed to a client.
type Event struct {
	Type      string   `json:"type"`
	Owner     string   `json:"owner"`
	NodeIDs   []string `json:"node_ids,omitempty"`
	Used      int64    `json:"used"`
	Limit     int64    `json:"limit"`
	Detail    string   `json:"detail,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Broadcaster manages SSE subscribers and publishes events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]string // channel -> owner filter
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]string),
	}
}

// Subscribe adds a subscriber for owner's events and returns its channel.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe(owner string) chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = owner
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(n))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	n := len(b.subscribers)
	b.mu.Unlock()
	metrics.SetSSEConnectionsActive(int64(n))
}

// Publish sends an event to the owner's subscribers. Non-blocking: drops
// events for slow consumers.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, owner := range b.subscribers {
		if owner != event.Owner {
			continue
		}
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
	metrics.RecordSSEEvent(event.Type)
}

// Count returns the current number of subscribers.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// TreeListener returns a store change listener that publishes for owner.
func (b *Broadcaster) TreeListener(owner string) func(filetree.Change) {
	return func(c filetree.Change) {
		ids := make([]string, 0, len(c.Nodes))
		for _, n := range c.Nodes {
			ids = append(ids, n.ID)
		}
		b.Publish(Event{
			Type:    eventType(c.Type),
			Owner:   owner,
			NodeIDs: ids,
			Used:    c.Used,
			Limit:   c.Limit,
		})
	}
}

func eventType(t filetree.ChangeType) string {
	switch t {
	case filetree.ChangeCreated:
		return EventCreate
	case filetree.ChangeTrashed:
		return EventTrash
	case filetree.ChangeRestored:
		return EventRestore
	case filetree.ChangePurged:
		return EventPurge
	case filetree.ChangeRenamed:
		return EventRename
	case filetree.ChangeMoved:
		return EventMove
	case filetree.ChangeGrant:
		return EventQuota
	default:
		return EventImport
	}
}

// MarshalEvent serializes an event to JSON.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}
