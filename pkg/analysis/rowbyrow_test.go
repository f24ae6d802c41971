package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/llm"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/store"
	"github.com/tablesage-ai/tablesage/pkg/taxonomy"
)

const notTransformation = `{"isTransformation": false, "confidence": 0.95, "reasoning": "searching, not modifying"}`

func TestRowByRowHolisticFlow(t *testing.T) {
	reasoner := llm.ScriptedReasoner(
		notTransformation,
		`{"matches": true, "confidence": 0.9, "reasoning": "French address"}`,
		`{"matches": false, "confidence": 0.8, "reasoning": "German address"}`,
		`{"matches": true, "confidence": 0.7, "reasoning": "French postcode"}`,
		`{"summary": "two French rows", "insights": ["both in Paris"], "recommendations": "narrow by city"}`,
	)
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(3)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(context.Background(), "rows with French addresses", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.NoError(t, err)

	assert.Len(t, result.Matches, 2)
	assert.Equal(t, 3, result.Total)
	assert.False(t, result.Partial)
	assert.Equal(t, "Found 2 matching rows out of 3 total rows using holistic AI analysis.", result.Summary)
	require.NotNil(t, result.Insights)
	assert.Equal(t, "two French rows", result.Insights.Summary)
	assert.Equal(t, 5, reasoner.CompleteCalls, "verdict, three rows, insights")
}

func TestRowByRowFailedRowSkipped(t *testing.T) {
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(ctx context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		switch reasoner.CompleteCalls {
		case 1:
			return &llm.Completion{Content: notTransformation}, nil
		case 2:
			return &llm.Completion{Content: "nothing resembling json"}, nil
		default:
			return &llm.Completion{Content: `{"matches": true, "confidence": 0.9, "reasoning": "match"}`}, nil
		}
	}
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(2)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(context.Background(), "rows with French addresses", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.NoError(t, err, "an undecodable row verdict is skipped, not fatal")

	assert.Len(t, result.Matches, 1)
	assert.Equal(t, 2, result.Total)
}

func TestRowByRowTransformationKeywordFallback(t *testing.T) {
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(ctx context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		switch reasoner.CompleteCalls {
		case 1:
			return nil, errors.New("provider timeout")
		case 2:
			return &llm.Completion{Content: `{"operations": [{"column": "cost", "operation": "sum_delimited", "delimiter": ";"}], "returnWholeRow": true}`}, nil
		default:
			return &llm.Completion{Content: `{"item": "widget", "cost": 12, "confidence": 0.9, "reasoning": "Summed delimited values"}`}, nil
		}
	}
	st := store.NewMemoryStore().QueueResult(&store.RowSet{
		Fields:   []string{"item", "cost"},
		Rows:     []models.RowRecord{{"item": "widget", "cost": "5;7"}},
		RowCount: 1,
	})
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(context.Background(),
		"Sum the semicolon separated values and return back the sheet", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	transformed := result.Matches[0]
	assert.Equal(t, float64(12), transformed.Row["cost"])
	assert.Equal(t, "Summed delimited values", transformed.Annotation.Reasoning)
	assert.Equal(t, 0.9, transformed.Annotation.Confidence)
	assert.NotContains(t, transformed.Row, "confidence", "metadata keys stripped from the row")
	assert.NotContains(t, transformed.Row, "reasoning")
}

func TestRowByRowColumnAwareMode(t *testing.T) {
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(ctx context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		switch {
		case strings.Contains(prompt, "data transformation"):
			return &llm.Completion{Content: notTransformation}, nil
		case strings.Contains(prompt, "identify patterns"):
			return &llm.Completion{Content: `{"dataType": "text", "insights": {"format": "free text", "quality": "good"}}`}, nil
		case strings.Contains(prompt, "Does this value match"):
			if strings.Contains(prompt, `Value: "widget"`) {
				return &llm.Completion{Content: `{"matches": true, "confidence": 0.85, "reasoning": "item field mentions widgets"}`}, nil
			}
			return &llm.Completion{Content: `{"matches": false, "confidence": 0.9, "reasoning": "numeric only"}`}, nil
		default:
			return &llm.Completion{Content: `{"summary": "item column carries the signal"}`}, nil
		}
	}
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(1)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(context.Background(),
		"which columns contain widget references", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ColumnProfiles, "column-aware mode profiles every populated column")
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "item", result.Matches[0].Annotation.MatchedColumn)
	assert.Equal(t, "widget", result.Matches[0].Annotation.MatchedValue)
}

func TestRowByRowColumnAwareBulkClassification(t *testing.T) {
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(ctx context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		switch {
		case strings.Contains(prompt, "data transformation"):
			return &llm.Completion{Content: notTransformation}, nil
		case strings.Contains(prompt, "identify patterns"):
			return &llm.Completion{Content: `{"dataType": "text", "insights": {"format": "free text", "quality": "good"}}`}, nil
		case strings.Contains(prompt, "Classify these data values"):
			if strings.Contains(prompt, "Column: item") {
				return &llm.Completion{Content: `{"classifications": [{"value": "widget", "matches": true, "confidence": 0.9, "category": "Hardware", "reasoning": "product name"}]}`}, nil
			}
			return &llm.Completion{Content: `{"classifications": [{"value": "1", "matches": false, "confidence": 0.95, "category": "Numeric", "reasoning": "numeric only"}]}`}, nil
		default:
			return &llm.Completion{Content: `{"summary": "item column carries the signal"}`}, nil
		}
	}
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(1)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(context.Background(),
		"which columns contain widget references", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "item", result.Matches[0].Annotation.MatchedColumn)
	assert.Equal(t, "widget", result.Matches[0].Annotation.MatchedValue)
	assert.Equal(t, 0.9, result.Matches[0].Annotation.Confidence)
	assert.Equal(t, "product name", result.Matches[0].Annotation.Reasoning)
	for _, p := range reasoner.Prompts {
		assert.NotContains(t, p, "Does this value match",
			"classified cells must not trigger per-value calls")
	}
}

func TestRowByRowMatchesCategorized(t *testing.T) {
	reasoner := llm.ScriptedReasoner(
		notTransformation,
		`{"matches": true, "confidence": 0.9, "reasoning": "French address"}`,
		`{"matches": false, "confidence": 0.8, "reasoning": "German address"}`,
		`{"summary": "one French row"}`,
	)
	taxReasoner := llm.ScriptedReasoner(
		`{"category": "Hardware", "isExisting": true, "reasoning": "matches seeded category"}`,
	)
	manager := taxonomy.NewManager(taxReasoner, zap.NewNop())
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(2)))
	engine := newTestEngine(reasoner, WithTaxonomy(manager, []string{"Hardware", "Services"}))

	result, err := engine.AnalyzeWithStrategy(context.Background(), "rows with French addresses", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	require.NotNil(t, result.Matches[0].Category)
	assert.Equal(t, "Hardware", result.Matches[0].Category.Name)
	assert.Equal(t, 0.85, result.Matches[0].Category.Confidence)
	assert.False(t, result.Matches[0].Category.IsNew)
	assert.Equal(t, 1, taxReasoner.CompleteCalls, "one taxonomy call per matched row")
	assert.Equal(t, []string{"Hardware", "Services"}, manager.Names())
}

func TestRowByRowCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(_ context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		if reasoner.CompleteCalls == 1 {
			return &llm.Completion{Content: notTransformation}, nil
		}
		cancel()
		return &llm.Completion{Content: `{"matches": true, "confidence": 0.9, "reasoning": "match"}`}, nil
	}
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(3)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(ctx, "rows with French addresses", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, result)
	assert.True(t, result.Partial)
	assert.Len(t, result.Matches, 1)
	assert.Equal(t, "Cancelled after 1 of 3 rows; 1 matches so far.", result.Summary)
}

func TestRowByRowEmptyDataset(t *testing.T) {
	st := store.NewMemoryStore().QueueResult(rowSet(nil))
	engine := newTestEngine(llm.ScriptedReasoner())

	result, err := engine.AnalyzeWithStrategy(context.Background(), "anything", testColumns, st,
		&models.AnalysisStrategy{Method: models.MethodRowByRow})
	require.NoError(t, err)
	assert.Equal(t, "No data found", result.Summary)
}
