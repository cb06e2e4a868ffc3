package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHandledSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryHandledSet(2)

	added, err := s.Add(ctx, "A")
	require.NoError(t, err)
	assert.True(t, added)

	added, _ = s.Add(ctx, "A")
	assert.False(t, added)

	s.Add(ctx, "B")
	s.Add(ctx, "C")

	ok, _ := s.Contains(ctx, "A")
	assert.False(t, ok, "oldest id is evicted once capacity is exceeded")
	ok, _ = s.Contains(ctx, "C")
	assert.True(t, ok)
	n, _ := s.Len(ctx)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Reset(ctx))
	n, _ = s.Len(ctx)
	assert.Zero(t, n)
	ok, _ = s.Contains(ctx, "B")
	assert.False(t, ok)
}
