package feed

import (
	"container/list"
	"context"
	"sync"

	"github.com/nazeru/order-console-go/internal/order/domain"
)

const DefaultHandledCapacity = 1000

// MemoryHandledSet is a bounded HandledSet. Once full, the oldest id is evicted.
// Capacity should stay well above the feed window size so that an evicted id
// cannot still be inside the window.
type MemoryHandledSet struct {
	capacity int

	mu    sync.Mutex
	order *list.List
	index map[domain.OrderID]*list.Element
}

func NewMemoryHandledSet(capacity int) *MemoryHandledSet {
	if capacity <= 0 {
		capacity = DefaultHandledCapacity
	}
	return &MemoryHandledSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[domain.OrderID]*list.Element),
	}
}

func (s *MemoryHandledSet) Contains(_ context.Context, id domain.OrderID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok, nil
}

func (s *MemoryHandledSet) Add(_ context.Context, id domain.OrderID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; ok {
		return false, nil
	}
	s.index[id] = s.order.PushBack(id)
	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(domain.OrderID))
	}
	return true, nil
}

func (s *MemoryHandledSet) Reset(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.index = make(map[domain.OrderID]*list.Element)
	return nil
}

func (s *MemoryHandledSet) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len(), nil
}
