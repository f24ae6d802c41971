package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/tablesage-ai/tablesage/pkg/models"
)

// MemoryStore serves canned results for tests. Queries are answered in the
// order results were queued, or by the ResultFunc hook when set.
type MemoryStore struct {
	mu         sync.Mutex
	queued     []*RowSet
	errs       []error
	Queries    []string
	ResultFunc func(query string) (*RowSet, error)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Conn  = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// QueueResult adds a result to be returned by the next unanswered query.
func (m *MemoryStore) QueueResult(rs *RowSet) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, rs)
	m.errs = append(m.errs, nil)
	return m
}

// QueueError adds an error to be returned by the next unanswered query.
func (m *MemoryStore) QueueError(err error) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, nil)
	m.errs = append(m.errs, err)
	return m
}

func (m *MemoryStore) Connect(_ context.Context) (Conn, error) {
	return m, nil
}

func (m *MemoryStore) Query(ctx context.Context, query string, limit int) (*RowSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	if m.ResultFunc != nil {
		fn := m.ResultFunc
		m.mu.Unlock()
		rs, err := fn(query)
		if err != nil {
			return nil, err
		}
		return capRowSet(rs, limit), nil
	}
	if len(m.queued) == 0 {
		m.mu.Unlock()
		return nil, fmt.Errorf("no queued result for query %q", query)
	}
	rs, err := m.queued[0], m.errs[0]
	m.queued, m.errs = m.queued[1:], m.errs[1:]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return capRowSet(rs, limit), nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func capRowSet(rs *RowSet, limit int) *RowSet {
	if limit <= 0 || rs == nil || len(rs.Rows) <= limit {
		return rs
	}
	capped := make([]models.RowRecord, limit)
	copy(capped, rs.Rows[:limit])
	return &RowSet{Fields: rs.Fields, Rows: capped, RowCount: limit}
}
