package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/llm"
)

func existingTag(category string) string {
	return fmt.Sprintf(`{"category": %q, "isExisting": true, "reasoning": "fits"}`, category)
}

func newTag(category string) string {
	return fmt.Sprintf(`{"category": %q, "isExisting": false, "reasoning": "nothing close"}`, category)
}

func TestCategorizeWithPredefinedCreatesNothing(t *testing.T) {
	reasoner := llm.ScriptedReasoner(
		existingTag("Technology"),
		existingTag("Finance"),
		existingTag("Healthcare"),
		existingTag("Technology"),
	)
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(),
		[]string{"cloud hosting invoice", "brokerage fees", "dental claim", "laptop order"},
		Options{Predefined: []string{"Technology", "Finance", "Healthcare"}})
	require.NoError(t, err)

	for _, d := range result.Decisions {
		assert.False(t, d.IsNew)
		assert.Equal(t, 0.85, d.Confidence)
	}
	assert.Equal(t, []string{"Technology", "Finance", "Healthcare"}, result.Categories)
	assert.Equal(t, 3, result.Stats.TotalCategories)
	assert.Equal(t, 0, result.Stats.NewCategories)
	assert.Equal(t, 3, result.Stats.PredefinedCategories)
}

func TestCategorizeCountsAreConserved(t *testing.T) {
	reasoner := llm.ScriptedReasoner(
		existingTag("Technology"),
		newTag("Logistics"),
		existingTag("Logistics"),
		existingTag("Technology"),
		existingTag("Technology"),
	)
	m := NewManager(reasoner, zap.NewNop())

	items := []string{"servers", "freight", "couriers", "routers", "laptops"}
	result, err := m.Categorize(context.Background(), items, Options{Predefined: []string{"Technology"}})
	require.NoError(t, err)

	total := 0
	for _, c := range result.Stats.Categories {
		total += c.Count
	}
	assert.Equal(t, len(items), total, "every item lands in exactly one category")
	assert.Equal(t, len(items), result.Stats.TotalItems)
}

func TestCategorizeCachesIdenticalItems(t *testing.T) {
	reasoner := llm.ScriptedReasoner(existingTag("Technology"))
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(),
		[]string{"cloud hosting invoice", "cloud hosting invoice", "cloud hosting invoice"},
		Options{Predefined: []string{"Technology"}})
	require.NoError(t, err)

	assert.Equal(t, 1, reasoner.CompleteCalls, "identical content is decided once")
	require.Len(t, result.Decisions, 3)
	assert.Equal(t, result.Decisions[0], result.Decisions[1])
	assert.Equal(t, 3, result.Stats.TotalItems, "cache hits still count as usage")
}

func TestCategorizeFirstCategoryFromPlainText(t *testing.T) {
	reasoner := llm.ScriptedReasoner(`"Industrial Fasteners"`)
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(), []string{"M8 hex bolt"}, Options{})
	require.NoError(t, err)

	require.Len(t, result.Decisions, 1)
	d := result.Decisions[0]
	assert.Equal(t, "Industrial Fasteners", d.Category, "surrounding quotes are stripped")
	assert.True(t, d.IsNew)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, "First category created", d.Reasoning)
}

func TestCategorizeAbsorbsSimilarProposal(t *testing.T) {
	reasoner := llm.ScriptedReasoner(newTag("Fastener Components"))
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(), []string{"M8 hex bolt"},
		Options{Predefined: []string{"Fastener Hardware"}})
	require.NoError(t, err)

	d := result.Decisions[0]
	assert.Equal(t, "Fastener Hardware", d.Category)
	assert.False(t, d.IsNew)
	assert.Equal(t, []string{"Fastener Hardware"}, result.Categories, "no near-duplicate category created")
}

func TestCategorizeUnknownClaimedExistingGoesThroughGuard(t *testing.T) {
	// The reasoner claims reuse of a category that was never created. The
	// name is treated as a proposal; here it is genuinely new.
	reasoner := llm.ScriptedReasoner(existingTag("Office Supplies"))
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(), []string{"stapler"},
		Options{Predefined: []string{"Technology"}})
	require.NoError(t, err)

	d := result.Decisions[0]
	assert.Equal(t, "Office Supplies", d.Category)
	assert.True(t, d.IsNew)
	assert.Equal(t, 0.8, d.Confidence)
}

func TestCategorizeExemplarCap(t *testing.T) {
	reasoner := llm.ScriptedReasoner(existingTag("Bolts"))
	m := NewManager(reasoner, zap.NewNop())

	items := make([]string, 12)
	for i := range items {
		items[i] = fmt.Sprintf("bolt variant %d", i+1)
	}
	result, err := m.Categorize(context.Background(), items, Options{Predefined: []string{"Bolts"}})
	require.NoError(t, err)

	snapshot := m.Export()
	require.Len(t, snapshot.Categories, 1)
	assert.Len(t, snapshot.Categories[0].Exemplars, maxExemplars)
	assert.Equal(t, 12, result.Stats.TotalItems)
}

func TestCategorizePlaceholderOnReasonerFailure(t *testing.T) {
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(ctx context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		return nil, errors.New("provider down")
	}
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(), []string{"first item", "second item"}, Options{})
	require.NoError(t, err, "item failures degrade to placeholders, the run completes")

	require.Len(t, result.Decisions, 2)
	assert.Equal(t, "Category_1", result.Decisions[0].Category)
	assert.Equal(t, "Category_2", result.Decisions[1].Category)
	for _, d := range result.Decisions {
		assert.True(t, d.IsNew)
		assert.Equal(t, placeholderConfidence, d.Confidence)
	}
}

func TestCategorizePlaceholderOnUndecodableResponse(t *testing.T) {
	reasoner := llm.ScriptedReasoner("sorry, no structured answer today")
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(), []string{"stapler"},
		Options{Predefined: []string{"Technology"}})
	require.NoError(t, err)
	assert.Equal(t, "Category_2", result.Decisions[0].Category)
}

func TestCategorizeCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reasoner := llm.ScriptedReasoner(existingTag("Technology"))
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(ctx, []string{"first", "second", "third"}, Options{
		Predefined: []string{"Technology"},
		OnUpdate: func(UpdateEvent) {
			cancel()
		},
	})
	require.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, result)
	assert.Len(t, result.Decisions, 1)
	assert.Equal(t, 1, result.Stats.TotalItems)
}

func TestCategorizeNamingFormatInPrompt(t *testing.T) {
	reasoner := llm.ScriptedReasoner("Heavy Machinery")
	m := NewManager(reasoner, zap.NewNop())

	_, err := m.Categorize(context.Background(), []string{"hydraulic press"},
		Options{NamingFormat: "2 word category"})
	require.NoError(t, err)

	require.Len(t, reasoner.Prompts, 1)
	assert.Contains(t, reasoner.Prompts[0], "2 word category")
}

func TestCategorizeContextInPrompt(t *testing.T) {
	reasoner := llm.ScriptedReasoner(
		"Fasteners",
		newTag("Adhesives"),
	)
	m := NewManager(reasoner, zap.NewNop())

	_, err := m.Categorize(context.Background(), []string{"hex bolts", "epoxy resin"},
		Options{Context: "hardware supplier catalog"})
	require.NoError(t, err)

	require.Len(t, reasoner.Prompts, 2)
	assert.Contains(t, reasoner.Prompts[0], "Context: hardware supplier catalog")
	assert.Contains(t, reasoner.Prompts[1], "Context: hardware supplier catalog")
}

func TestCategorizeOnUpdateReportsNewCategories(t *testing.T) {
	reasoner := llm.ScriptedReasoner(
		existingTag("Technology"),
		newTag("Logistics"),
	)
	m := NewManager(reasoner, zap.NewNop())

	var created []string
	_, err := m.Categorize(context.Background(), []string{"servers", "freight"}, Options{
		Predefined: []string{"Technology"},
		OnUpdate: func(ev UpdateEvent) {
			if ev.NewCategory != "" {
				created = append(created, ev.NewCategory)
			}
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Logistics"}, created)
}

func TestStatisticsSortedByUsage(t *testing.T) {
	reasoner := llm.ScriptedReasoner(
		existingTag("Finance"),
		existingTag("Finance"),
		existingTag("Finance"),
		existingTag("Technology"),
	)
	m := NewManager(reasoner, zap.NewNop())

	result, err := m.Categorize(context.Background(),
		[]string{"fees", "rates", "loans", "servers"},
		Options{Predefined: []string{"Technology", "Finance"}})
	require.NoError(t, err)

	stats := result.Stats
	require.Len(t, stats.Distribution, 2)
	assert.Equal(t, "Finance", stats.Distribution[0].Name)
	assert.Equal(t, 75.0, stats.Distribution[0].Percentage)
	assert.Equal(t, "Technology", stats.Distribution[1].Name)
	assert.Equal(t, 25.0, stats.Distribution[1].Percentage)
}
