// Package analysis implements the four execution strategies over a tabular
// dataset: row-by-row reasoning, batched reasoning, generated-query
// execution, and the query-first hybrid.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/llm"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/patterns"
	"github.com/tablesage-ai/tablesage/pkg/store"
	"github.com/tablesage-ai/tablesage/pkg/strategy"
	"github.com/tablesage-ai/tablesage/pkg/taxonomy"
)

// Config carries the tuning knobs for a run.
type Config struct {
	TableName         string
	BatchSize         int
	HybridThreshold   int
	MaxResultRows     int
	InsightSampleRows int
	SelectorSampleRows int
	HolisticPause     time.Duration
	ColumnAwarePause  time.Duration
	BatchPause        time.Duration
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		TableName:          strategy.DefaultTableName,
		BatchSize:          models.DefaultBatchSize,
		HybridThreshold:    100,
		MaxResultRows:      1000,
		InsightSampleRows:  20,
		SelectorSampleRows: 5,
		HolisticPause:      200 * time.Millisecond,
		ColumnAwarePause:   300 * time.Millisecond,
		BatchPause:         time.Second,
	}
}

// Engine runs analyses. One engine serves many runs; each run is a single
// logical thread with strictly sequential reasoner calls.
type Engine struct {
	reasoner llm.Reasoner
	selector *strategy.Selector
	detector *patterns.Detector
	logger   *zap.Logger
	cfg      Config
	progress models.ProgressFunc

	taxonomy           *taxonomy.Manager
	taxonomyPredefined []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgress installs a progress observer invoked between items.
func WithProgress(fn models.ProgressFunc) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithTaxonomy attaches a taxonomy manager. Matched rows from row-by-row
// runs are categorized against it after the row loop, with the given
// categories seeded up front.
func WithTaxonomy(m *taxonomy.Manager, predefined []string) Option {
	return func(e *Engine) {
		e.taxonomy = m
		e.taxonomyPredefined = predefined
	}
}

// NewEngine wires an engine from its collaborators.
func NewEngine(reasoner llm.Reasoner, selector *strategy.Selector, detector *patterns.Detector, logger *zap.Logger, cfg Config, opts ...Option) *Engine {
	if cfg.TableName == "" {
		cfg.TableName = strategy.DefaultTableName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = models.DefaultBatchSize
	}
	e := &Engine{
		reasoner: reasoner,
		selector: selector,
		detector: detector,
		logger:   logger.Named("analysis"),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze answers the question end to end: select a strategy, then execute
// it against the store.
func (e *Engine) Analyze(ctx context.Context, question string, columns []models.ColumnDescriptor, st store.Store) (*models.AnalysisResult, error) {
	sampleRows, err := e.sampleRows(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("sample rows for strategy selection: %w", err)
	}

	strat, err := e.selector.Select(ctx, question, columns, sampleRows)
	if err != nil {
		return nil, err
	}

	return e.AnalyzeWithStrategy(ctx, question, columns, st, strat)
}

// AnalyzeWithStrategy executes a pre-selected strategy.
func (e *Engine) AnalyzeWithStrategy(ctx context.Context, question string, columns []models.ColumnDescriptor, st store.Store, strat *models.AnalysisStrategy) (*models.AnalysisResult, error) {
	runID := uuid.New()

	e.logger.Info("executing strategy",
		zap.String("runId", runID.String()),
		zap.String("method", string(strat.Method)),
		zap.String("question", question))

	var (
		result *models.AnalysisResult
		err    error
	)

	switch strat.Method {
	case models.MethodRowByRow:
		result, err = e.runRowByRow(ctx, question, columns, st)
	case models.MethodBatch:
		result, err = e.runBatch(ctx, question, st, strat)
	case models.MethodQuery:
		result, err = e.runQuery(ctx, question, columns, st, strat)
	case models.MethodHybrid:
		result, err = e.runHybrid(ctx, question, columns, st, strat)
	default:
		return nil, fmt.Errorf("unknown analysis method %q", strat.Method)
	}

	if result != nil {
		result.RunID = runID
		result.Question = question
	}
	return result, err
}

func (e *Engine) sampleRows(ctx context.Context, st store.Store) ([]models.RowRecord, error) {
	conn, err := st.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rs, err := conn.Query(ctx, "SELECT * FROM "+e.cfg.TableName, e.cfg.SelectorSampleRows)
	if err != nil {
		return nil, err
	}
	return rs.Rows, nil
}

func (e *Engine) loadAll(ctx context.Context, st store.Store) (*store.RowSet, error) {
	conn, err := st.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return conn.Query(ctx, "SELECT * FROM "+e.cfg.TableName, 0)
}

func (e *Engine) report(step, total int, message string) {
	if e.progress != nil {
		e.progress(models.ProgressEvent{Step: step, Total: total, Message: message})
	}
}

// pause sleeps for the inter-call throttle, waking early on cancellation.
func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
