package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/decode"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/store"
)

type batchAnalysis struct {
	Findings           []string `json:"findings"`
	MatchingRowNumbers []int    `json:"matchingRowNumbers"`
	Insights           string   `json:"insights"`
}

// runBatch processes the dataset in fixed-size batches, one reasoner call
// per batch. A failed batch is logged and skipped; the run keeps going.
func (e *Engine) runBatch(ctx context.Context, question string, st store.Store, strat *models.AnalysisStrategy) (*models.AnalysisResult, error) {
	rs, err := e.loadAll(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if rs.RowCount == 0 {
		return &models.AnalysisResult{Method: models.MethodBatch, Summary: "No data found"}, nil
	}

	batchSize := strat.BatchSize
	if batchSize <= 0 {
		batchSize = e.cfg.BatchSize
	}

	result := &models.AnalysisResult{Method: models.MethodBatch, Total: rs.RowCount}
	totalBatches := (rs.RowCount + batchSize - 1) / batchSize

	for start := 0; start < rs.RowCount; start += batchSize {
		if err := ctx.Err(); err != nil {
			result.Partial = true
			result.Summary = fmt.Sprintf("Cancelled after %d of %d batches.", len(result.Batches), totalBatches)
			return result, err
		}

		end := start + batchSize
		if end > rs.RowCount {
			end = rs.RowCount
		}
		batchNum := start/batchSize + 1
		batch := rs.Rows[start:end]

		e.report(batchNum, totalBatches, fmt.Sprintf("batch %d/%d", batchNum, totalBatches))

		analysis, err := e.analyzeBatch(ctx, question, batch, strat)
		if err != nil {
			e.logger.Warn("batch analysis failed, skipping batch",
				zap.Int("batch", batchNum), zap.Error(err))
		} else {
			result.Batches = append(result.Batches, models.BatchResult{
				BatchNumber:  batchNum,
				StartRow:     start + 1,
				EndRow:       end,
				Findings:     analysis.Findings,
				MatchingRows: analysis.MatchingRowNumbers,
				Insights:     analysis.Insights,
				Rows:         batch,
			})
		}

		if end < rs.RowCount {
			if err := e.pause(ctx, e.cfg.BatchPause); err != nil {
				result.Partial = true
				result.Summary = fmt.Sprintf("Cancelled after %d of %d batches.", len(result.Batches), totalBatches)
				return result, err
			}
		}
	}

	result.Summary = fmt.Sprintf("Analyzed %d rows in %d batches using AI.", rs.RowCount, len(result.Batches))
	return result, nil
}

// analyzeBatch sends one batch to the reasoner. Rows are numbered 1..n
// within the batch; StartRow/EndRow on the result map them back to the
// dataset.
func (e *Engine) analyzeBatch(ctx context.Context, question string, batch []models.RowRecord, strat *models.AnalysisStrategy) (*batchAnalysis, error) {
	var table strings.Builder
	for i, row := range batch {
		fmt.Fprintf(&table, "Row %d: %s\n", i+1, row.Describe(nil))
	}

	header := strat.PromptTemplate
	if header == "" {
		header = fmt.Sprintf("Analyze this batch of data for: %q", question)
	}

	prompt := fmt.Sprintf(`%s

Batch data:
%s
Provide analysis in JSON:
{
  "findings": ["finding 1", "finding 2", ...],
  "matchingRowNumbers": [1, 3, 5],
  "insights": "Key insights from this batch"
}`, header, table.String())

	completion, err := e.reasoner.Complete(ctx, prompt, 0.3)
	if err != nil {
		return nil, err
	}

	analysis, err := decode.Decode[batchAnalysis](completion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode batch analysis: %w", err)
	}
	return &analysis, nil
}
