package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	var b Blobs = NewMemory()

	require.NoError(t, b.Remove(context.Background(), "a/1/x.pdf", "", "a/2/y.png"))
	url, err := b.URL(context.Background(), "a/1/x.pdf", "x.pdf")
	require.NoError(t, err)
	assert.Empty(t, url)

	assert.Equal(t, []string{"a/1/x.pdf", "a/2/y.png"}, b.(*Memory).Removed())
}
