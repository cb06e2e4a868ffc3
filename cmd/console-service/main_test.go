package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/order-console-go/internal/order/feed"
)

func TestReadCfgDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/orders")
	t.Setenv("FEED_POLL_INTERVAL", "500ms")
	t.Setenv("REDIS_ADDR", "")

	c, err := readCfg()
	require.NoError(t, err)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, 50, c.WindowSize)
	assert.Equal(t, 500*time.Millisecond, c.PollInterval)
	assert.True(t, c.AutoPrint)
	assert.Equal(t, 1000, c.HandledCapacity)

	set, closeFn := handledSet(c)
	defer closeFn()
	_, ok := set.(*feed.MemoryHandledSet)
	assert.True(t, ok)
}

func TestReadCfgRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := readCfg()
	assert.Error(t, err)
}
