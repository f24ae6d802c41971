package analysis

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablesage-ai/tablesage/pkg/llm"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/store"
)

const batchResponse = `{
	"findings": ["two rows stand out"],
	"matchingRowNumbers": [1, 3],
	"insights": "widgets cluster at low cost"
}`

func batchStrategy(size int) *models.AnalysisStrategy {
	return &models.AnalysisStrategy{Method: models.MethodBatch, BatchSize: size}
}

func TestBatchSplitsDataset(t *testing.T) {
	reasoner := llm.ScriptedReasoner(batchResponse)
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(25)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(context.Background(), "find cost outliers", testColumns, st, batchStrategy(10))
	require.NoError(t, err)

	require.Len(t, result.Batches, 3)
	assert.Equal(t, 25, result.Total)
	assert.Equal(t, 3, reasoner.CompleteCalls)

	first, last := result.Batches[0], result.Batches[2]
	assert.Equal(t, 1, first.BatchNumber)
	assert.Equal(t, 1, first.StartRow)
	assert.Equal(t, 10, first.EndRow)
	assert.Equal(t, 3, last.BatchNumber)
	assert.Equal(t, 21, last.StartRow)
	assert.Equal(t, 25, last.EndRow)
	assert.Len(t, last.Rows, 5)

	assert.Equal(t, []int{1, 3}, first.MatchingRows)
	assert.Equal(t, "Analyzed 25 rows in 3 batches using AI.", result.Summary)
}

func TestBatchRowsNumberedWithinBatch(t *testing.T) {
	reasoner := llm.ScriptedReasoner(batchResponse)
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(15)))
	engine := newTestEngine(reasoner)

	_, err := engine.AnalyzeWithStrategy(context.Background(), "find cost outliers", testColumns, st, batchStrategy(10))
	require.NoError(t, err)

	require.Len(t, reasoner.Prompts, 2)
	secondBatch := reasoner.Prompts[1]
	assert.Contains(t, secondBatch, "Row 1:")
	assert.Contains(t, secondBatch, "Row 5:")
	assert.NotContains(t, secondBatch, "Row 6:", "the final five rows restart at 1")
}

func TestBatchUsesPromptTemplate(t *testing.T) {
	reasoner := llm.ScriptedReasoner(batchResponse)
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(3)))
	engine := newTestEngine(reasoner)

	strat := batchStrategy(10)
	strat.PromptTemplate = "Flag every row whose cost exceeds its batch median."
	_, err := engine.AnalyzeWithStrategy(context.Background(), "find cost outliers", testColumns, st, strat)
	require.NoError(t, err)

	require.Len(t, reasoner.Prompts, 1)
	assert.Contains(t, reasoner.Prompts[0], strat.PromptTemplate)
}

func TestBatchFailedBatchSkipped(t *testing.T) {
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(ctx context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		if reasoner.CompleteCalls == 1 {
			return &llm.Completion{Content: "no structure whatsoever"}, nil
		}
		return &llm.Completion{Content: batchResponse}, nil
	}
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(15)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(context.Background(), "find cost outliers", testColumns, st, batchStrategy(10))
	require.NoError(t, err, "a failed batch is skipped, not fatal")

	require.Len(t, result.Batches, 1)
	assert.Equal(t, 2, result.Batches[0].BatchNumber)
	assert.Equal(t, "Analyzed 15 rows in 1 batches using AI.", result.Summary)
}

func TestBatchEmptyDataset(t *testing.T) {
	st := store.NewMemoryStore().QueueResult(rowSet(nil))
	engine := newTestEngine(llm.ScriptedReasoner())

	result, err := engine.AnalyzeWithStrategy(context.Background(), "find cost outliers", testColumns, st, batchStrategy(10))
	require.NoError(t, err)
	assert.Equal(t, "No data found", result.Summary)
	assert.Empty(t, result.Batches)
}

func TestBatchCancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reasoner := llm.NewMockReasoner()
	reasoner.CompleteFunc = func(_ context.Context, prompt string, temperature float64) (*llm.Completion, error) {
		cancel()
		return &llm.Completion{Content: batchResponse}, nil
	}
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(30)))
	engine := newTestEngine(reasoner)

	result, err := engine.AnalyzeWithStrategy(ctx, "find cost outliers", testColumns, st, batchStrategy(10))
	require.ErrorIs(t, err, context.Canceled)

	require.NotNil(t, result)
	assert.True(t, result.Partial)
	assert.Len(t, result.Batches, 1)
	assert.Equal(t, fmt.Sprintf("Cancelled after %d of %d batches.", 1, 3), result.Summary)
}

func TestBatchReportsProgress(t *testing.T) {
	var events []models.ProgressEvent
	reasoner := llm.ScriptedReasoner(batchResponse)
	st := store.NewMemoryStore().QueueResult(rowSet(costRows(20)))

	engine := newTestEngine(reasoner, WithProgress(func(ev models.ProgressEvent) {
		events = append(events, ev)
	}))

	_, err := engine.AnalyzeWithStrategy(context.Background(), "find cost outliers", testColumns, st, batchStrategy(10))
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Step)
	assert.Equal(t, 2, events[0].Total)
	assert.Equal(t, "batch 2/2", events[1].Message)
}
