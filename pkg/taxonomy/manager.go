// Package taxonomy maintains a dynamic category vocabulary over a stream of
// data items, reusing labels across items via caching and a similarity
// guard so the taxonomy stays small and stable.
package taxonomy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/decode"
	"github.com/tablesage-ai/tablesage/pkg/llm"
)

// maxExemplars bounds the examples retained per category. First seen are
// kept; later ones are dropped.
const maxExemplars = 10

// placeholderConfidence is assigned to auto-numbered fallback categories.
const placeholderConfidence = 0.5

// CategoryRecord is the stored state of one category.
type CategoryRecord struct {
	Name        string    `json:"name" yaml:"name"`
	Count       int       `json:"count" yaml:"count"`
	Exemplars   []string  `json:"exemplars" yaml:"exemplars"`
	Description string    `json:"description" yaml:"description"`
	Confidence  float64   `json:"confidence" yaml:"confidence"`
	Predefined  bool      `json:"predefined" yaml:"predefined"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
}

// Decision is the categorization outcome for a single item.
type Decision struct {
	Category   string  `json:"category" yaml:"category"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Reasoning  string  `json:"reasoning" yaml:"reasoning"`
	IsNew      bool    `json:"isNew" yaml:"isNew"`
}

// UpdateEvent is delivered to the OnUpdate callback after each item.
type UpdateEvent struct {
	// NewCategory is set only when the item created a category.
	NewCategory   string
	AllCategories []string
	Stats         *Statistics
}

// Options configures one categorization run.
type Options struct {
	// Predefined seeds the taxonomy before processing. Seeded categories
	// report provenance predefined in statistics.
	Predefined []string
	// Context is free-form background embedded in prompts.
	Context string
	// NamingFormat constrains generated category names, e.g. "2 word
	// category".
	NamingFormat string
	// OnUpdate is invoked after every item with the current taxonomy.
	OnUpdate func(UpdateEvent)
}

// Result bundles per-item decisions with the final taxonomy state.
type Result struct {
	Decisions  []Decision
	Stats      *Statistics
	Categories []string
}

// Manager owns the category vocabulary for a sequence of runs. It is not
// safe for concurrent use; share one manager per logical run, or guard it
// externally.
type Manager struct {
	reasoner llm.Reasoner
	logger   *zap.Logger
	guard    SimilarityGuard

	categories map[string]*CategoryRecord
	order      []string
	cache      map[string]Decision
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSimilarityGuard replaces the default name-similarity heuristic.
func WithSimilarityGuard(g SimilarityGuard) ManagerOption {
	return func(m *Manager) {
		if g != nil {
			m.guard = g
		}
	}
}

// NewManager creates an empty taxonomy manager.
func NewManager(reasoner llm.Reasoner, logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		reasoner:   reasoner,
		logger:     logger.Named("taxonomy"),
		guard:      DefaultSimilarityGuard(),
		categories: make(map[string]*CategoryRecord),
		cache:      make(map[string]Decision),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Categorize assigns a category to every item, reusing existing categories
// where possible and creating new ones otherwise. Item-level reasoner
// failures produce auto-numbered placeholder categories rather than
// aborting the run. Cancellation between items returns the decisions made
// so far along with ctx.Err().
func (m *Manager) Categorize(ctx context.Context, items []string, opts Options) (*Result, error) {
	m.seed(opts.Predefined)

	m.logger.Info("starting categorization",
		zap.Int("items", len(items)),
		zap.Int("predefined", len(opts.Predefined)),
		zap.Int("existing", len(m.order)))

	decisions := make([]Decision, 0, len(items))

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return &Result{Decisions: decisions, Stats: m.GetStatistics(), Categories: m.Names()}, err
		}

		sig := contentSignature(item)
		if cached, ok := m.cache[sig]; ok {
			m.logger.Debug("cache hit", zap.Int("item", i+1), zap.String("category", cached.Category))
			decisions = append(decisions, cached)
			m.recordUsage(cached.Category, item)
			m.notify(opts, "")
			continue
		}

		decision := m.decide(ctx, item, opts)
		decisions = append(decisions, decision)
		m.cache[sig] = decision
		m.recordUsage(decision.Category, item)

		created := ""
		if decision.IsNew {
			created = decision.Category
		}
		m.notify(opts, created)
	}

	m.logger.Info("categorization complete",
		zap.Int("items", len(items)),
		zap.Int("categories", len(m.order)))

	return &Result{Decisions: decisions, Stats: m.GetStatistics(), Categories: m.Names()}, nil
}

// decide runs the reasoner for one uncached item.
func (m *Manager) decide(ctx context.Context, item string, opts Options) Decision {
	if len(m.order) == 0 {
		d, err := m.createFirst(ctx, item, opts)
		if err != nil {
			m.logger.Warn("first-category call failed, using placeholder", zap.Error(err))
			return m.placeholder(item)
		}
		return d
	}

	d, err := m.selectOrPropose(ctx, item, opts)
	if err != nil {
		m.logger.Warn("categorization call failed, using placeholder", zap.Error(err))
		return m.placeholder(item)
	}
	return d
}

// createFirst names the very first category with a plain-text call.
func (m *Manager) createFirst(ctx context.Context, item string, opts Options) (Decision, error) {
	var format string
	if opts.NamingFormat != "" {
		format = fmt.Sprintf("User Format: %q\n\nCRITICAL: Follow the user format EXACTLY. If they want \"2 word category\", give exactly 2 words.\n", opts.NamingFormat)
	}

	prompt := fmt.Sprintf(`Tag this data item with a category name following the user's format:

Data Item: %q
%s%s
Respond with just the category name, nothing else.`, item, contextLine(opts), format)

	completion, err := m.reasoner.Complete(ctx, prompt, 0.3)
	if err != nil {
		return Decision{}, err
	}

	name := strings.Trim(strings.TrimSpace(completion.Content), `'"`)
	if name == "" {
		return Decision{}, fmt.Errorf("empty category name")
	}

	m.create(name, item, 0.9, false)
	m.logger.Info("created first category", zap.String("category", name))

	return Decision{Category: name, Confidence: 0.9, Reasoning: "First category created", IsNew: true}, nil
}

type tagResponse struct {
	Category   string `json:"category"`
	IsExisting bool   `json:"isExisting"`
	Reasoning  string `json:"reasoning"`
}

// selectOrPropose asks the reasoner to match the item against known
// categories or propose a new name. Proposed names still pass the
// similarity guard before a category is created.
func (m *Manager) selectOrPropose(ctx context.Context, item string, opts Options) (Decision, error) {
	existing := m.Names()

	var list strings.Builder
	for i, name := range existing {
		fmt.Fprintf(&list, "%d. %q\n", i+1, name)
	}

	var format string
	if opts.NamingFormat != "" {
		format = fmt.Sprintf("User Format: %q\n", opts.NamingFormat)
	}
	naming := "Use a clear, concise category name"
	if opts.NamingFormat != "" {
		naming = "Follow the user format EXACTLY: " + opts.NamingFormat
	}

	prompt := fmt.Sprintf(`Tag this data item with a category name. First check if it matches any existing categories, if not create a new one.

Data Item: %q
%s%s
EXISTING CATEGORIES (check these first):
%s
INSTRUCTIONS:
1. First check if this item fits ANY of the existing categories above
2. If it matches (even roughly), use the EXACT existing category name
3. Only create a new category if it's completely different
4. %s

Respond with JSON:
{
  "category": "exact_category_name",
  "isExisting": true/false,
  "reasoning": "why this category was chosen"
}`, item, contextLine(opts), format, list.String(), naming)

	completion, err := m.reasoner.Complete(ctx, prompt, 0.3)
	if err != nil {
		return Decision{}, err
	}

	resp, err := decode.Decode[tagResponse](completion.Content)
	if err != nil {
		return Decision{}, err
	}
	if resp.Category == "" {
		return Decision{}, fmt.Errorf("empty category in response")
	}

	if resp.IsExisting {
		if _, ok := m.categories[resp.Category]; ok {
			return Decision{Category: resp.Category, Confidence: 0.85, Reasoning: resp.Reasoning, IsNew: false}, nil
		}
		// The reasoner claimed reuse but named an unknown category; treat
		// it as a proposal and let the guard sort it out.
	}

	if match, reason, similar := m.guard.Similar(resp.Category, existing); similar {
		m.logger.Debug("similar category absorbed",
			zap.String("proposed", resp.Category),
			zap.String("into", match),
			zap.String("reason", reason))
		return Decision{Category: match, Confidence: 0.85, Reasoning: reason, IsNew: false}, nil
	}

	m.create(resp.Category, item, 0.8, false)
	m.logger.Info("created category", zap.String("category", resp.Category))

	return Decision{Category: resp.Category, Confidence: 0.8, Reasoning: resp.Reasoning, IsNew: true}, nil
}

// contextLine formats the run's background context for prompt embedding.
func contextLine(opts Options) string {
	if opts.Context == "" {
		return ""
	}
	return fmt.Sprintf("Context: %s\n", opts.Context)
}

// placeholder creates an auto-numbered category when the reasoner fails on
// an item.
func (m *Manager) placeholder(item string) Decision {
	name := fmt.Sprintf("Category_%d", len(m.order)+1)
	m.create(name, item, placeholderConfidence, false)
	return Decision{
		Category:   name,
		Confidence: placeholderConfidence,
		Reasoning:  "Fallback due to processing error",
		IsNew:      true,
	}
}

func (m *Manager) seed(predefined []string) {
	for _, name := range predefined {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := m.categories[name]; ok {
			continue
		}
		m.categories[name] = &CategoryRecord{
			Name:        name,
			Description: "Predefined category: " + name,
			Confidence:  1.0,
			Predefined:  true,
			CreatedAt:   time.Now().UTC(),
		}
		m.order = append(m.order, name)
	}
}

func (m *Manager) create(name, item string, confidence float64, predefined bool) {
	if _, ok := m.categories[name]; ok {
		return
	}
	m.categories[name] = &CategoryRecord{
		Name:        name,
		Description: "AI-generated category for: " + truncate(item, 100),
		Confidence:  confidence,
		Predefined:  predefined,
		CreatedAt:   time.Now().UTC(),
	}
	m.order = append(m.order, name)
}

// recordUsage bumps the category counter and retains the item as an
// exemplar while the cap allows.
func (m *Manager) recordUsage(name, item string) {
	record, ok := m.categories[name]
	if !ok {
		return
	}
	record.Count++
	if len(record.Exemplars) < maxExemplars && !containsWord(record.Exemplars, item) {
		record.Exemplars = append(record.Exemplars, item)
	}
}

func (m *Manager) notify(opts Options, created string) {
	if opts.OnUpdate == nil {
		return
	}
	opts.OnUpdate(UpdateEvent{
		NewCategory:   created,
		AllCategories: m.Names(),
		Stats:         m.GetStatistics(),
	})
}

// Names returns category names in creation order.
func (m *Manager) Names() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Reset clears all categories and cached decisions.
func (m *Manager) Reset() {
	m.categories = make(map[string]*CategoryRecord)
	m.order = nil
	m.cache = make(map[string]Decision)
	m.logger.Info("taxonomy reset")
}

// contentSignature hashes an item for decision caching. Identical content
// always maps to the same signature.
func contentSignature(item string) string {
	sum := sha256.Sum256([]byte(item))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
