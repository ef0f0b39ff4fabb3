package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopan-drive/internal/filetree"
	"gopan-drive/internal/quota"
)

func receive(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe("alice")
	ch2 := b.Subscribe("bob")
	assert.Equal(t, 2, b.Count())

	b.Unsubscribe(ch1)
	b.Unsubscribe(ch1)
	assert.Equal(t, 1, b.Count())

	b.Unsubscribe(ch2)
	assert.Zero(t, b.Count())
}

func TestBroadcasterFiltersByOwner(t *testing.T) {
	b := NewBroadcaster()
	alice := b.Subscribe("alice")
	bob := b.Subscribe("bob")
	defer b.Unsubscribe(alice)
	defer b.Unsubscribe(bob)

	b.Publish(Event{Type: EventCreate, Owner: "alice"})

	got := receive(t, alice)
	assert.Equal(t, EventCreate, got.Type)
	assert.NotZero(t, got.Timestamp)

	select {
	case e := <-bob:
		t.Fatalf("bob received %+v", e)
	default:
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: EventCreate, Owner: "alice"})
	}
	assert.Len(t, ch, 64)
}

func TestTreeListener(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	store := filetree.NewStore(filetree.WithGrant(quota.Grant{Limit: 100}))
	store.OnChange(b.TreeListener("alice"))

	f, err := store.CreateFile(filetree.FileSpec{Name: "a", SizeBytes: 10})
	require.NoError(t, err)
	e := receive(t, ch)
	assert.Equal(t, EventCreate, e.Type)
	assert.Equal(t, []string{f.ID}, e.NodeIDs)
	assert.Equal(t, int64(10), e.Used)
	assert.Equal(t, int64(100), e.Limit)

	require.NoError(t, store.SoftDelete(f.ID))
	assert.Equal(t, EventTrash, receive(t, ch).Type)

	store.ApplyGrant(quota.Grant{Limit: 200})
	e = receive(t, ch)
	assert.Equal(t, EventQuota, e.Type)
	assert.Equal(t, int64(200), e.Limit)
}
