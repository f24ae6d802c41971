package taxonomy

import (
	"time"

	"go.uber.org/zap"
)

// Snapshot is the portable form of a taxonomy, suitable for persisting
// between sessions. It carries both the category state and the decision
// cache; Export then Import then Export yields an identical snapshot, and
// an imported taxonomy resolves previously seen content without a reasoner
// call.
type Snapshot struct {
	Timestamp  time.Time           `json:"timestamp" yaml:"timestamp"`
	Order      []string            `json:"order" yaml:"order"`
	Categories []CategoryRecord    `json:"categories" yaml:"categories"`
	Cache      map[string]Decision `json:"cache,omitempty" yaml:"cache,omitempty"`
}

// Export captures the full category state and the decision cache.
func (m *Manager) Export() *Snapshot {
	categories := make([]CategoryRecord, 0, len(m.order))
	for _, name := range m.order {
		record := m.categories[name]
		exported := *record
		exported.Exemplars = append([]string(nil), record.Exemplars...)
		categories = append(categories, exported)
	}
	cache := make(map[string]Decision, len(m.cache))
	for sig, d := range m.cache {
		cache[sig] = d
	}
	return &Snapshot{
		Timestamp:  time.Now().UTC(),
		Order:      m.Names(),
		Categories: categories,
		Cache:      cache,
	}
}

// Import replaces the manager's categories and decision cache with the
// snapshot's.
func (m *Manager) Import(s *Snapshot) {
	m.categories = make(map[string]*CategoryRecord, len(s.Categories))
	m.order = make([]string, 0, len(s.Categories))
	m.cache = make(map[string]Decision, len(s.Cache))

	for i := range s.Categories {
		record := s.Categories[i]
		record.Exemplars = append([]string(nil), record.Exemplars...)
		m.categories[record.Name] = &record
		m.order = append(m.order, record.Name)
	}
	for sig, d := range s.Cache {
		m.cache[sig] = d
	}

	m.logger.Info("taxonomy imported",
		zap.Int("categories", len(m.order)),
		zap.Int("cachedDecisions", len(m.cache)))
}
