package sideeffect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/order-console-go/pkg/contracts"
)

func TestSpoolRendererWritesReceipt(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	r := NewSpoolRenderer(dir, nil)
	r.now = func() time.Time { return time.Unix(42, 0) }

	err := r.Render(context.Background(), contracts.PrintOrder{ID: "ord-1", OrderNumber: "B-12", Amount: 3000})
	require.NoError(t, err)

	doc, err := os.ReadFile(filepath.Join(dir, "receipt-ord-1-42000000000.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Order #B-12")
	assert.Contains(t, string(doc), "TOTAL  3,000")
}

func TestSpoolRendererReportsCommandFailure(t *testing.T) {
	r := NewSpoolRenderer(t.TempDir(), []string{"orderdesk-no-such-print-command"})
	err := r.Render(context.Background(), contracts.PrintOrder{ID: "ord-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "print command")
}
