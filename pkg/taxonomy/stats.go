package taxonomy

import (
	"math"
	"sort"
	"time"
)

// CategoryStat is the per-category view in Statistics, examples capped at
// three for display.
type CategoryStat struct {
	Name        string    `json:"name" yaml:"name"`
	Count       int       `json:"count" yaml:"count"`
	Description string    `json:"description" yaml:"description"`
	Examples    []string  `json:"examples" yaml:"examples"`
	Predefined  bool      `json:"predefined" yaml:"predefined"`
	Confidence  float64   `json:"confidence" yaml:"confidence"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

// Share is one slice of the category distribution.
type Share struct {
	Name       string  `json:"name" yaml:"name"`
	Count      int     `json:"count" yaml:"count"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// Statistics summarizes taxonomy state: categories sorted by usage
// descending, plus percentage shares. The sum of all counts equals the
// number of items processed.
type Statistics struct {
	TotalCategories      int            `json:"totalCategories" yaml:"totalCategories"`
	TotalItems           int            `json:"totalItems" yaml:"totalItems"`
	NewCategories        int            `json:"newCategories" yaml:"newCategories"`
	PredefinedCategories int            `json:"predefinedCategories" yaml:"predefinedCategories"`
	Categories           []CategoryStat `json:"categories" yaml:"categories"`
	Distribution         []Share        `json:"distribution" yaml:"distribution"`
}

// GetStatistics computes the current usage summary.
func (m *Manager) GetStatistics() *Statistics {
	stats := make([]CategoryStat, 0, len(m.order))
	totalItems := 0
	newCount := 0
	predefinedCount := 0

	for _, name := range m.order {
		record := m.categories[name]
		examples := record.Exemplars
		if len(examples) > 3 {
			examples = examples[:3]
		}
		stats = append(stats, CategoryStat{
			Name:        record.Name,
			Count:       record.Count,
			Description: record.Description,
			Examples:    append([]string(nil), examples...),
			Predefined:  record.Predefined,
			Confidence:  record.Confidence,
			CreatedAt:   record.CreatedAt,
		})
		totalItems += record.Count
		if record.Predefined {
			predefinedCount++
		} else {
			newCount++
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})

	distribution := make([]Share, 0, len(stats))
	for _, s := range stats {
		pct := 0.0
		if totalItems > 0 {
			pct = math.Round(float64(s.Count)/float64(totalItems)*1000) / 10
		}
		distribution = append(distribution, Share{Name: s.Name, Count: s.Count, Percentage: pct})
	}

	return &Statistics{
		TotalCategories:      len(stats),
		TotalItems:           totalItems,
		NewCategories:        newCount,
		PredefinedCategories: predefinedCount,
		Categories:           stats,
		Distribution:         distribution,
	}
}
