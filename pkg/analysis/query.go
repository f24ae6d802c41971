package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/decode"
	"github.com/tablesage-ai/tablesage/pkg/logging"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/sqlguard"
	"github.com/tablesage-ai/tablesage/pkg/store"
)

// QueryValidationError reports a generated query that failed structural
// checks and could not be repaired. Fatal for the run.
type QueryValidationError struct {
	Query      string
	Reason     string
	Suggestion string
}

func (e *QueryValidationError) Error() string {
	return fmt.Sprintf("query validation failed: %s. %s", e.Reason, e.Suggestion)
}

// runQuery validates and executes the generated query, then asks the
// reasoner to summarize the results. Query validation gets exactly one
// repair attempt; if the repaired query also fails structural checks the
// original validation error is raised.
func (e *Engine) runQuery(ctx context.Context, question string, columns []models.ColumnDescriptor, st store.Store, strat *models.AnalysisStrategy) (*models.AnalysisResult, error) {
	query, err := e.validateOrRepair(ctx, question, columns, strat.GeneratedQuery)
	if err != nil {
		return nil, err
	}

	e.logger.Info("executing generated query", zap.String("query", query))

	conn, err := st.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}
	defer conn.Close()

	rs, err := conn.Query(ctx, query, e.cfg.MaxResultRows)
	if err != nil {
		e.logger.Warn("query execution failed",
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("query execution failed: %s", helpfulQueryError(err))
	}

	result := &models.AnalysisResult{
		Method:         models.MethodQuery,
		GeneratedQuery: query,
		Results:        rs.Rows,
		Total:          rs.RowCount,
	}

	if rs.RowCount == 0 {
		e.logger.Warn("generated query returned no results")
		result.Summary = "No results found from SQL query."
		return result, nil
	}

	insights, err := e.queryInsights(ctx, question, rs.Rows)
	if err != nil {
		e.logger.Warn("query insight generation failed", zap.Error(err))
		result.Summary = fmt.Sprintf("SQL query returned %d results.", rs.RowCount)
		return result, nil
	}

	result.Analysis = insights
	result.Summary = insights.DirectAnswer
	if result.Summary == "" {
		result.Summary = fmt.Sprintf("SQL query returned %d results.", rs.RowCount)
	}
	return result, nil
}

// validateOrRepair runs the structural guard and, on rejection, asks the
// reasoner once to rewrite the query.
func (e *Engine) validateOrRepair(ctx context.Context, question string, columns []models.ColumnDescriptor, query string) (string, error) {
	validated, err := sqlguard.Validate(query)
	if err == nil {
		return validated, nil
	}

	var verr *sqlguard.ValidationError
	if !errors.As(err, &verr) {
		return "", err
	}

	e.logger.Warn("query validation failed, attempting repair",
		zap.String("reason", verr.Reason))

	repaired := e.repairQuery(ctx, question, columns, query, verr)
	if repaired != "" {
		if fixed, err := sqlguard.Validate(repaired); err == nil {
			e.logger.Info("repaired query accepted",
				zap.String("original", query),
				zap.String("repaired", fixed))
			return fixed, nil
		}
	}

	return "", &QueryValidationError{Query: query, Reason: verr.Reason, Suggestion: verr.Suggestion}
}

// repairQuery asks the reasoner for a corrected SQL statement. Returns ""
// when the call fails or the answer does not look like SQL.
func (e *Engine) repairQuery(ctx context.Context, question string, columns []models.ColumnDescriptor, query string, verr *sqlguard.ValidationError) string {
	var schemaLines []string
	for _, col := range columns {
		schemaLines = append(schemaLines, fmt.Sprintf("- %s (%s)", col.Name, col.Type))
	}

	prompt := fmt.Sprintf(`Fix this SQL query that has GROUP BY errors:

ORIGINAL QUERY (has errors):
%s

ERROR: %s
SUGGESTION: %s

SCHEMA:
%s

RULES TO FIX:
1. If the query has aggregate functions (SUM, COUNT, AVG, etc.) but no GROUP BY:
   - Add GROUP BY clause with all non-aggregate columns from SELECT
   - OR remove the non-aggregate columns from the select list
2. Every column in SELECT that is not an aggregate function must be in GROUP BY
3. Use table name %q
4. Keep the same intent as the original query

USER QUESTION: %s

Return ONLY the corrected SQL query, no explanation:`,
		query, verr.Reason, verr.Suggestion, strings.Join(schemaLines, "\n"), e.cfg.TableName, question)

	completion, err := e.reasoner.Complete(ctx, prompt, 0.1)
	if err != nil {
		e.logger.Warn("query repair call failed", zap.Error(err))
		return ""
	}

	fixed := strings.TrimSpace(completion.Content)
	fixed = strings.TrimPrefix(fixed, "```sql")
	fixed = strings.TrimPrefix(fixed, "```")
	fixed = strings.TrimSuffix(fixed, "```")
	fixed = strings.TrimSpace(fixed)

	upper := strings.ToUpper(fixed)
	if !strings.Contains(upper, "SELECT") || !strings.Contains(upper, "FROM") {
		return ""
	}
	return fixed
}

// queryInsights summarizes a sampled subset of the query results.
func (e *Engine) queryInsights(ctx context.Context, question string, rows []models.RowRecord) (*models.QueryInsights, error) {
	sample := rows
	truncationNote := ""
	if len(sample) > e.cfg.InsightSampleRows {
		sample = sample[:e.cfg.InsightSampleRows]
		truncationNote = fmt.Sprintf(" (showing first %d of %d results)", len(sample), len(rows))
	}

	sampleJSON, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize sample results: %w", err)
	}

	prompt := fmt.Sprintf(`Question: %q
SQL Results%s: %s

Provide insights in JSON:
{
  "summary": "Brief summary of findings",
  "insights": ["insight 1", "insight 2"],
  "directAnswer": "Direct answer to the user's question"
}`, question, truncationNote, sampleJSON)

	completion, err := e.reasoner.Complete(ctx, prompt, 0.2)
	if err != nil {
		return nil, err
	}

	insights, err := decode.Decode[models.QueryInsights](completion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode query insights: %w", err)
	}
	return &insights, nil
}

// helpfulQueryError maps common engine errors to actionable messages.
func helpfulQueryError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "REGEXP_REPLACE"):
		return "REGEXP_REPLACE is not supported. Use REPLACE(string, old, new) instead."
	case strings.Contains(msg, "INSTR"):
		return "INSTR function syntax error. Use INSTR(string, substring) with exactly 2 arguments."
	case strings.Contains(msg, "REGEXP") || strings.Contains(msg, "MATCH"):
		return "Regular expression functions are not supported. Use LIKE with % wildcards instead."
	case strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist"):
		return "Table not found. Make sure the query references the configured table name."
	default:
		return msg
	}
}
