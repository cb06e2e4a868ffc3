package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	pending []Record
	sent    []int64
}

func (m *memStore) FetchPending(_ context.Context, limit int) ([]Record, error) {
	var out []Record
	for _, r := range m.pending {
		if r.SentAt == nil && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) MarkSent(_ context.Context, id int64) error {
	m.sent = append(m.sent, id)
	for i := range m.pending {
		if m.pending[i].ID == id {
			now := m.pending[i].CreatedAt
			m.pending[i].SentAt = &now
		}
	}
	return nil
}

type memPublisher struct {
	keys   []string
	failOn string
}

func (p *memPublisher) Publish(_ context.Context, _, key string, _ []byte) error {
	if key == p.failOn {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	return nil
}

func TestRelayFlush(t *testing.T) {
	store := &memStore{pending: []Record{
		{ID: 1, EventID: "e1", Topic: "orders", Key: "A", Payload: []byte(`{}`)},
		{ID: 2, EventID: "e2", Topic: "orders", Key: "B", Payload: []byte(`{}`)},
		{ID: 3, EventID: "e3", Topic: "orders", Key: "C", Payload: []byte(`{}`)},
	}}
	pub := &memPublisher{failOn: "B"}
	r := &Relay{Store: store, Publisher: pub, Batch: 10}

	n, err := r.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{1}, store.sent)

	pub.failOn = ""
	n, err = r.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"A", "B", "C"}, pub.keys)
	assert.Equal(t, []int64{1, 2, 3}, store.sent)
}
