package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/decode"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/store"
)

// runHybrid narrows the dataset with the generated query, then performs a
// deep reasoning pass when the narrowed result is small enough. Above the
// threshold the SQL-only result is returned unmodified.
func (e *Engine) runHybrid(ctx context.Context, question string, columns []models.ColumnDescriptor, st store.Store, strat *models.AnalysisStrategy) (*models.AnalysisResult, error) {
	result, err := e.runQuery(ctx, question, columns, st, strat)
	if err != nil {
		return nil, err
	}

	if len(result.Results) == 0 || len(result.Results) > e.cfg.HybridThreshold {
		e.logger.Info("skipping deep pass",
			zap.Int("rows", len(result.Results)),
			zap.Int("threshold", e.cfg.HybridThreshold))
		return result, nil
	}

	deep, err := e.deepInsights(ctx, question, result.Results)
	if err != nil {
		e.logger.Warn("deep analysis failed, returning SQL-only result", zap.Error(err))
		return result, nil
	}

	result.Method = models.MethodHybrid
	result.Deep = deep
	result.Summary = fmt.Sprintf("Found %d results with SQL, then analyzed with AI for deeper insights.", len(result.Results))
	return result, nil
}

func (e *Engine) deepInsights(ctx context.Context, question string, rows []models.RowRecord) (*models.HybridInsights, error) {
	sample := rows
	if len(sample) > e.cfg.InsightSampleRows {
		sample = sample[:e.cfg.InsightSampleRows]
	}
	sampleJSON, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize results: %w", err)
	}

	prompt := fmt.Sprintf(`Analyze these SQL results for: %q

Results: %s

Provide detailed analysis in JSON:
{
  "patterns": ["pattern 1", "pattern 2"],
  "insights": ["insight 1", "insight 2"],
  "conclusion": "Final conclusion",
  "recommendations": "What to do next"
}`, question, sampleJSON)

	completion, err := e.reasoner.Complete(ctx, prompt, 0.3)
	if err != nil {
		return nil, err
	}

	insights, err := decode.Decode[models.HybridInsights](completion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode hybrid insights: %w", err)
	}
	return &insights, nil
}
