// Package strategy classifies a natural-language question into one of the
// four execution methods.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/decode"
	"github.com/tablesage-ai/tablesage/pkg/llm"
	"github.com/tablesage-ai/tablesage/pkg/models"
)

// DefaultTableName is the table generated queries run against when the
// caller does not provide one.
const DefaultTableName = "dataset"

// hybridSignals force the hybrid method regardless of the reasoner's
// choice. Window-function-style business logic defeats pure generated
// queries often enough that these questions always get the two-phase path.
var hybridSignals = []string{
	"optimal",
	"minimum cost",
	"cheapest",
	"best",
	"picking list",
	"recommendation",
}

// Error marks a failed strategy selection. Selection is fail-fast: there is
// no default-strategy substitution when the reasoner's answer cannot be
// decoded.
type Error struct {
	Question string
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("strategy selection failed for question %q: %v", e.Question, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Selector chooses an execution method for each question.
type Selector struct {
	reasoner  llm.Reasoner
	logger    *zap.Logger
	tableName string
}

// Option configures a Selector.
type Option func(*Selector)

// WithTableName sets the table name embedded in generated queries.
func WithTableName(name string) Option {
	return func(s *Selector) {
		if name != "" {
			s.tableName = name
		}
	}
}

// NewSelector creates a selector backed by the given reasoner.
func NewSelector(reasoner llm.Reasoner, logger *zap.Logger, opts ...Option) *Selector {
	s := &Selector{
		reasoner:  reasoner,
		logger:    logger.Named("strategy"),
		tableName: DefaultTableName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select asks the reasoner to choose a method for the question and returns
// the decoded strategy record. Hybrid keyword signals override the
// reasoner's choice after decoding.
func (s *Selector) Select(ctx context.Context, question string, columns []models.ColumnDescriptor, sampleRows []models.RowRecord) (*models.AnalysisStrategy, error) {
	prompt := s.buildPrompt(question, columns, sampleRows)

	s.logger.Debug("selecting strategy",
		zap.String("question", question),
		zap.Int("columns", len(columns)),
		zap.Int("promptLength", len(prompt)))

	completion, err := s.reasoner.Complete(ctx, prompt, 0.1)
	if err != nil {
		return nil, &Error{Question: question, Cause: err}
	}

	strategy, err := decode.DecodeWithSchema[models.AnalysisStrategy](completion.Content, StrategyFields())
	if err != nil {
		return nil, &Error{Question: question, Cause: err}
	}

	if !strategy.Method.Valid() {
		return nil, &Error{Question: question, Cause: fmt.Errorf("unknown method %q", strategy.Method)}
	}

	if forced := forcedHybrid(question); forced && strategy.Method != models.MethodHybrid {
		s.logger.Info("hybrid signal overrides selected method",
			zap.String("selected", string(strategy.Method)))
		strategy.Method = models.MethodHybrid
	}

	if strategy.BatchSize <= 0 {
		strategy.BatchSize = models.DefaultBatchSize
	}

	s.logger.Info("strategy selected",
		zap.String("method", string(strategy.Method)),
		zap.String("reasoning", strategy.Reasoning))

	return &strategy, nil
}

// StrategyFields is the reconstruction schema for a strategy record. Method
// and generatedQuery are required; the rest have documented defaults.
func StrategyFields() []decode.FieldSpec {
	return []decode.FieldSpec{
		{Name: "method", Kind: decode.FieldString, Default: string(models.MethodQuery)},
		{Name: "reasoning", Kind: decode.FieldString, Default: "SQL-based computational analysis"},
		{Name: "generatedQuery", Kind: decode.FieldString},
		{Name: "promptTemplate", Kind: decode.FieldString, Default: ""},
		{Name: "batchSize", Kind: decode.FieldInt, Default: models.DefaultBatchSize},
		{Name: "expectedResults", Kind: decode.FieldString, Default: ""},
	}
}

func forcedHybrid(question string) bool {
	lower := strings.ToLower(question)
	for _, signal := range hybridSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}

func (s *Selector) buildPrompt(question string, columns []models.ColumnDescriptor, sampleRows []models.RowRecord) string {
	var schemaDesc strings.Builder
	var colNames []string
	var colOrder []string
	for _, col := range columns {
		fmt.Fprintf(&schemaDesc, "%s (%s, sample: %q, %d unique values)\n",
			col.Name, col.Type, col.SampleValue, col.UniqueCount)
		colNames = append(colNames, fmt.Sprintf("%q", col.Name))
		colOrder = append(colOrder, col.Name)
	}

	var samples strings.Builder
	for i, row := range sampleRows {
		fmt.Fprintf(&samples, "Row %d: %s\n", i+1, row.Describe(colOrder))
	}

	return fmt.Sprintf(`Analyze this data question and choose the best approach:

Question: %q

Dataset Schema (EXACT column names for SQL):
%s
CRITICAL: When generating SQL queries, use EXACTLY these column names:
%s

Sample Data:
%s
CRITICAL ANALYSIS: If the question contains words like "optimal", "best", "minimum cost", "cheapest", "picking list", "recommendation", you MUST choose "hybrid".

Choose the BEST analysis method:

1. "row_by_row_ai" - When you need to check each row individually with AI
   - Use for: Language detection, sentiment analysis, content classification, complex data parsing/transformation
   - Example: "Find all French content", "Identify negative reviews", "parse complex formats"

2. "batch_ai" - When you need AI but can process rows in batches
   - Use for: Pattern recognition across multiple rows, categorization
   - Example: "Group similar projects", "Find related items"

3. "query_computational" - When it's a pure data/math question with simple results
   - Use for: Counts, averages, sums, duplicates, statistical analysis, string operations
   - Example: "How many rows?", "Find duplicates", "Calculate average"
   - AVOID for: Complex optimization, multi-step business logic, large result sets
   - NEVER use for: "optimal", "best cost", "minimum cost", "picking lists", "recommendations"

4. "hybrid" - When you need SQL first, then AI analysis
   - Use for: Complex optimization, business logic, multi-step analysis, large datasets
   - REQUIRED for: Any query with "optimal", "best cost", "minimum cost", "picking lists", "recommendations"
   - Example: "Analyze sentiment of high-value customers", "optimal picking lists", "find cheapest options"

IMPORTANT:
- The data is stored in a table named %q. All SQL queries must reference this table name exactly.
- Use the EXACT column names from the schema above.
- CRITICAL SQL RULES:
  * When using GROUP BY, ALL non-aggregated columns in SELECT must be in GROUP BY clause
  * Window functions (ROW_NUMBER, RANK) go in SELECT, never in WHERE
  * For window function filtering, use subqueries or CTEs
  * UNION requires the exact same number and types of columns in both parts

CRITICAL JSON FORMATTING RULES:
- Return ONLY valid JSON, no markdown or explanations
- Escape all quotes in strings
- No trailing commas
- No line breaks in string values

Respond in JSON:
{
  "method": "chosen_method",
  "reasoning": "Why this method is best",
  "generatedQuery": "SQL query using EXACT schema column names above (table: %q, null if not needed)",
  "promptTemplate": "AI prompt template if needed",
  "batchSize": 10,
  "expectedResults": "What type of results to expect"
}`, question, schemaDesc.String(), strings.Join(colNames, ", "), samples.String(), s.tableName, s.tableName)
}
