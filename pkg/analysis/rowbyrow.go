package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/decode"
	"github.com/tablesage-ai/tablesage/pkg/models"
	"github.com/tablesage-ai/tablesage/pkg/patterns"
	"github.com/tablesage-ai/tablesage/pkg/store"
	"github.com/tablesage-ai/tablesage/pkg/taxonomy"
)

// transformationConfidenceThreshold gates the reasoner's transformation
// verdict; below it the question is treated as a search.
const transformationConfidenceThreshold = 0.7

// transformationKeywords is the fallback signal set when the
// transformation-detection call fails.
var transformationKeywords = []string{
	"sum", "calculate", "transform", "convert",
	"return the whole sheet", "return back", "semicolon", "semi colon",
}

// columnKeywords routes a question to column-aware matching.
var columnKeywords = []string{
	"column", "columns", "field", "fields", "attribute", "attributes",
	"what columns", "which columns", "columns contain", "columns have",
	"fields contain", "fields have", "attributes contain", "attributes have",
}

type rowMode int

const (
	modeHolistic rowMode = iota
	modeColumnAware
	modeTransformation
)

// runRowByRow classifies the question into transformation, column-aware, or
// holistic processing and then scores or transforms every row with the
// reasoner. Per-row failures are logged and skipped.
func (e *Engine) runRowByRow(ctx context.Context, question string, columns []models.ColumnDescriptor, st store.Store) (*models.AnalysisResult, error) {
	rs, err := e.loadAll(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if rs.RowCount == 0 {
		e.logger.Warn("no data found in store")
		return &models.AnalysisResult{Method: models.MethodRowByRow, Summary: "No data found"}, nil
	}

	mode := e.classifyQuestion(ctx, question, columns, rs.Rows)

	// Column profiles and bulk classifications are computed once, before
	// the row loop, so later per-cell calls can reuse them.
	profiles := map[string]*models.ColumnProfile{}
	classified := map[string]patterns.Classification{}
	if mode == modeColumnAware {
		for _, field := range rs.Fields {
			values := nonEmptyValues(rs.Rows, field)
			if len(values) == 0 {
				continue
			}
			profile, err := e.detector.AnalyzeColumn(ctx, values, field, fmt.Sprintf("User is asking: %q", question))
			if err != nil {
				e.logger.Warn("pattern analysis failed for column",
					zap.String("column", field), zap.Error(err))
				continue
			}
			profiles[field] = profile

			cr, err := e.detector.ClassifyValues(ctx, values, question, fmt.Sprintf("Column: %s", field))
			if err != nil {
				e.logger.Warn("bulk classification failed for column",
					zap.String("column", field), zap.Error(err))
				continue
			}
			for _, c := range cr.Classifications {
				classified[columnValueKey(field, c.Value)] = c
			}
		}
	}

	result := &models.AnalysisResult{
		Method:         models.MethodRowByRow,
		Total:          rs.RowCount,
		ColumnProfiles: profiles,
	}

	interCallPause := e.cfg.HolisticPause
	if mode == modeColumnAware {
		interCallPause = e.cfg.ColumnAwarePause
	}

	for i, row := range rs.Rows {
		if err := ctx.Err(); err != nil {
			result.Partial = true
			result.Summary = fmt.Sprintf("Cancelled after %d of %d rows; %d matches so far.", i, rs.RowCount, len(result.Matches))
			return result, err
		}

		e.report(i+1, rs.RowCount, fmt.Sprintf("row %d/%d", i+1, rs.RowCount))

		matched, err := e.processRow(ctx, row, question, mode, profiles, classified)
		if err != nil {
			e.logger.Error("row analysis failed, skipping row",
				zap.Int("row", i+1), zap.Error(err))
			continue
		}
		if matched != nil {
			result.Matches = append(result.Matches, *matched)
		}

		if i < rs.RowCount-1 {
			if err := e.pause(ctx, interCallPause); err != nil {
				result.Partial = true
				result.Summary = fmt.Sprintf("Cancelled after %d of %d rows; %d matches so far.", i+1, rs.RowCount, len(result.Matches))
				return result, err
			}
		}
	}

	insights, err := e.rowInsights(ctx, result.Matches, profiles, question)
	if err != nil {
		e.logger.Warn("insight generation failed", zap.Error(err))
		insights = &models.InsightReport{
			Summary:         fmt.Sprintf("Found %d matching rows", len(result.Matches)),
			Recommendations: "Review the matching rows for detailed results",
		}
	}
	result.Insights = insights

	kind := "holistic"
	if mode == modeColumnAware {
		kind = "column-aware"
	}
	result.Summary = fmt.Sprintf("Found %d matching rows out of %d total rows using %s AI analysis.",
		len(result.Matches), rs.RowCount, kind)

	e.categorizeMatches(ctx, result)

	return result, nil
}

// categorizeMatches labels each matched row against the configured
// taxonomy. A categorization failure leaves the matches unlabeled.
func (e *Engine) categorizeMatches(ctx context.Context, result *models.AnalysisResult) {
	if e.taxonomy == nil || len(result.Matches) == 0 {
		return
	}

	items := make([]string, len(result.Matches))
	for i, m := range result.Matches {
		items[i] = m.Row.Describe(nil)
	}

	tr, err := e.taxonomy.Categorize(ctx, items, taxonomy.Options{Predefined: e.taxonomyPredefined})
	if err != nil {
		e.logger.Warn("match categorization failed, returning plain matches", zap.Error(err))
		return
	}

	for i, d := range tr.Decisions {
		result.Matches[i].Category = &models.CategoryLabel{
			Name:       d.Category,
			Confidence: d.Confidence,
			Reasoning:  d.Reasoning,
			IsNew:      d.IsNew,
		}
	}
}

// classifyQuestion chooses the processing mode with priority
// transformation > column-specific > holistic.
func (e *Engine) classifyQuestion(ctx context.Context, question string, columns []models.ColumnDescriptor, rows []models.RowRecord) rowMode {
	if e.isTransformation(ctx, question, columns, rows) {
		e.logger.Info("question classified as data transformation")
		return modeTransformation
	}
	lower := strings.ToLower(question)
	for _, kw := range columnKeywords {
		if strings.Contains(lower, kw) {
			e.logger.Info("question classified as column-specific")
			return modeColumnAware
		}
	}
	e.logger.Info("question classified as holistic")
	return modeHolistic
}

type transformationVerdict struct {
	IsTransformation   bool    `json:"isTransformation"`
	Confidence         float64 `json:"confidence"`
	Reasoning          string  `json:"reasoning"`
	TransformationType string  `json:"transformationType"`
}

func (e *Engine) isTransformation(ctx context.Context, question string, columns []models.ColumnDescriptor, rows []models.RowRecord) bool {
	var colDesc []string
	var colOrder []string
	for _, col := range columns {
		colDesc = append(colDesc, fmt.Sprintf("%s (%s)", col.Name, col.Type))
		colOrder = append(colOrder, col.Name)
	}

	sample := rows
	if len(sample) > 2 {
		sample = sample[:2]
	}
	var samples []string
	for i, row := range sample {
		samples = append(samples, fmt.Sprintf("Row %d: %s", i+1, row.Describe(colOrder)))
	}

	prompt := fmt.Sprintf(`Analyze this user request and determine if it's asking for data transformation:

User Question: %q

Dataset Info:
- Columns: %s
- Sample Data: %s

A data transformation request is when the user wants to:
- Modify, calculate, or process the actual data values
- Return a modified version of the dataset
- Perform mathematical operations on the data
- Parse or restructure data formats

Examples of transformation requests:
- "Sum semicolon-separated values and return the sheet"
- "Convert dates to different format"
- "Calculate totals for each row"

Examples of NON-transformation requests:
- "Find all rows containing French text" (filtering/searching)
- "Show me duplicate records" (analysis)
- "Count how many rows have high values" (aggregation)

IMPORTANT: Return ONLY valid JSON with properly escaped strings.

Respond with JSON:
{
  "isTransformation": true/false,
  "confidence": 0.0-1.0,
  "reasoning": "Brief explanation of why this is or isn't a transformation request",
  "transformationType": "mathematical|textual|structural|parsing|other" or null
}`, question, strings.Join(colDesc, ", "), strings.Join(samples, "; "))

	completion, err := e.reasoner.Complete(ctx, prompt, 0.1)
	if err == nil {
		verdict, derr := decode.Decode[transformationVerdict](completion.Content)
		if derr == nil {
			decided := verdict.IsTransformation && verdict.Confidence > transformationConfidenceThreshold
			e.logger.Debug("transformation verdict",
				zap.Bool("isTransformation", verdict.IsTransformation),
				zap.Float64("confidence", verdict.Confidence),
				zap.Bool("decided", decided))
			return decided
		}
		err = derr
	}

	e.logger.Warn("transformation detection failed, using keyword fallback", zap.Error(err))
	lower := strings.ToLower(question)
	for _, kw := range transformationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// processRow handles one row in the selected mode. A nil result with nil
// error means no match.
func (e *Engine) processRow(ctx context.Context, row models.RowRecord, question string, mode rowMode, profiles map[string]*models.ColumnProfile, classified map[string]patterns.Classification) (*models.MatchedRow, error) {
	switch mode {
	case modeTransformation:
		return e.transformRow(ctx, row, question)
	case modeColumnAware:
		return e.matchRowByColumns(ctx, row, question, profiles, classified)
	default:
		return e.matchRowHolistic(ctx, row, question)
	}
}

// transformRow derives a transformation plan for the row and applies it in a
// second call. Transformation rows always count as matches.
func (e *Engine) transformRow(ctx context.Context, row models.RowRecord, question string) (*models.MatchedRow, error) {
	rowData := row.Describe(nil)

	planPrompt := fmt.Sprintf(`Analyze this transformation request and determine what operations to perform:

User Request: %q
Row Data: %s

What specific transformations should be applied to this row? Consider:
- Mathematical operations (sum, average, multiply, etc.)
- Text processing (uppercase, lowercase, parsing, etc.)
- Data format changes (date formats, number formats, etc.)
- Data parsing (JSON, CSV, delimited values, etc.)

IMPORTANT: Return ONLY valid JSON with properly escaped strings.

Respond with JSON:
{
  "operations": [
    {
      "column": "column_name",
      "operation": "sum_delimited|uppercase|parse_json|calculate|format_date|etc",
      "details": "specific operation details",
      "delimiter": ";" or null,
      "target_format": "desired output format"
    }
  ],
  "returnWholeRow": true/false,
  "preserveOriginalColumns": true/false
}`, question, rowData)

	planCompletion, err := e.reasoner.Complete(ctx, planPrompt, 0.1)
	if err != nil {
		return nil, fmt.Errorf("transformation plan: %w", err)
	}
	plan, err := decode.Decode[map[string]any](planCompletion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode transformation plan: %w", err)
	}
	planJSON, _ := json.Marshal(plan)

	applyPrompt := fmt.Sprintf(`Transform this row according to the analysis:

User Request: %q
Row Data: %s

Transformation Plan: %s

INSTRUCTIONS:
- Follow the transformation plan exactly
- For mathematical operations, be precise with arithmetic
- Return the complete transformed row
- Preserve original column names unless specifically requested to change them
- Include ALL columns (transformed and untransformed)

Respond with JSON containing the transformed row plus metadata:
{
  ...transformed_row_data,
  "confidence": 0.95,
  "reasoning": "Brief description of what was transformed"
}`, question, rowData, planJSON)

	applyCompletion, err := e.reasoner.Complete(ctx, applyPrompt, 0.1)
	if err != nil {
		return nil, fmt.Errorf("apply transformation: %w", err)
	}
	transformed, err := decode.Decode[map[string]any](applyCompletion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode transformed row: %w", err)
	}

	annotation := models.MatchAnnotation{Matches: true, Confidence: 1.0, Reasoning: "Data transformation applied"}
	if c, ok := transformed["confidence"].(float64); ok {
		annotation.Confidence = c
	}
	if r, ok := transformed["reasoning"].(string); ok && r != "" {
		annotation.Reasoning = r
	}
	delete(transformed, "confidence")
	delete(transformed, "reasoning")
	delete(transformed, "operations_applied")

	return &models.MatchedRow{
		Row:        models.RowRecord(transformed).Normalize(),
		Annotation: annotation,
	}, nil
}

// matchRowByColumns scores each non-empty cell against the question and
// keeps the best-confidence column match. Cells covered by a bulk
// classification use its verdict without a further call; a failed cell
// call falls back to one holistic scoring of the row.
func (e *Engine) matchRowByColumns(ctx context.Context, row models.RowRecord, question string, profiles map[string]*models.ColumnProfile, classified map[string]patterns.Classification) (*models.MatchedRow, error) {
	var best *models.MatchAnnotation

	for column, value := range row {
		if value == nil {
			continue
		}
		text := fmt.Sprintf("%v", value)
		if text == "" {
			continue
		}

		if c, ok := classified[columnValueKey(column, text)]; ok {
			if c.Matches && (best == nil || c.Confidence > best.Confidence) {
				best = &models.MatchAnnotation{
					Matches:       true,
					Confidence:    c.Confidence,
					Reasoning:     c.Reasoning,
					MatchedColumn: column,
					MatchedValue:  text,
				}
			}
			continue
		}

		matchContext := fmt.Sprintf("Column: %s", column)
		if profile, ok := profiles[column]; ok {
			insightsJSON, _ := json.Marshal(profile.Insights)
			matchContext = fmt.Sprintf("Column: %s, Pattern context: %s", column, insightsJSON)
		}

		match, err := e.detector.MatchValue(ctx, text, question, matchContext)
		if err != nil {
			fallback, ferr := e.scoreRow(ctx, row, question)
			if ferr != nil {
				return nil, ferr
			}
			if fallback.Matches && (best == nil || fallback.Confidence > best.Confidence) {
				best = fallback
			}
			continue
		}

		if match.Matches && (best == nil || match.Confidence > best.Confidence) {
			best = &models.MatchAnnotation{
				Matches:       true,
				Confidence:    match.Confidence,
				Reasoning:     match.Reasoning,
				MatchedColumn: column,
				MatchedValue:  text,
			}
		}
	}

	if best == nil {
		return nil, nil
	}
	return &models.MatchedRow{Row: row, Annotation: *best}, nil
}

func (e *Engine) matchRowHolistic(ctx context.Context, row models.RowRecord, question string) (*models.MatchedRow, error) {
	annotation, err := e.scoreRow(ctx, row, question)
	if err != nil {
		return nil, err
	}
	if !annotation.Matches {
		return nil, nil
	}
	return &models.MatchedRow{Row: row, Annotation: *annotation}, nil
}

// scoreRow sends the whole row to the reasoner for a single match verdict.
func (e *Engine) scoreRow(ctx context.Context, row models.RowRecord, question string) (*models.MatchAnnotation, error) {
	prompt := fmt.Sprintf(`Does this row meet the criteria: %q

Row data: %s

IMPORTANT: Return ONLY valid JSON with properly escaped strings.

Respond with JSON:
{
  "matches": true/false,
  "confidence": 0.0-1.0,
  "reasoning": "Brief explanation"
}`, question, row.Describe(nil))

	completion, err := e.reasoner.Complete(ctx, prompt, 0.2)
	if err != nil {
		return nil, fmt.Errorf("score row: %w", err)
	}
	annotation, err := decode.Decode[models.MatchAnnotation](completion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode row score: %w", err)
	}
	return &annotation, nil
}

// rowInsights summarizes the matched subset after the row loop.
func (e *Engine) rowInsights(ctx context.Context, matches []models.MatchedRow, profiles map[string]*models.ColumnProfile, question string) (*models.InsightReport, error) {
	if len(matches) == 0 {
		return &models.InsightReport{Summary: "No matching rows found"}, nil
	}

	var colLines []string
	for col, profile := range profiles {
		quality := profile.Insights.Quality
		if quality == "" {
			quality = "unknown quality"
		}
		colLines = append(colLines, fmt.Sprintf("%s: %s (%s)", col, profile.DataType, quality))
	}

	sample := matches
	if len(sample) > 5 {
		sample = sample[:5]
	}
	var matchLines []string
	for i, m := range sample {
		matchLines = append(matchLines, fmt.Sprintf("%d. %s: %q (confidence: %.2f)",
			i+1, m.Annotation.MatchedColumn, m.Annotation.MatchedValue, m.Annotation.Confidence))
	}

	prompt := fmt.Sprintf(`Analyze these matching rows and provide insights:

User Question: %q
Found %d matching rows

Column Analysis:
%s

Sample Matches:
%s

Provide insights in JSON:
{
  "summary": "Key findings summary",
  "insights": ["insight 1", "insight 2", "insight 3"],
  "patterns": ["pattern 1", "pattern 2"],
  "dataQuality": "assessment of data quality",
  "recommendations": "what to do next"
}`, question, len(matches), strings.Join(colLines, "\n"), strings.Join(matchLines, "\n"))

	completion, err := e.reasoner.Complete(ctx, prompt, 0.3)
	if err != nil {
		return nil, err
	}
	report, err := decode.Decode[models.InsightReport](completion.Content)
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func columnValueKey(column, value string) string {
	return column + "\x00" + value
}

func nonEmptyValues(rows []models.RowRecord, field string) []string {
	var values []string
	for _, row := range rows {
		v, ok := row[field]
		if !ok || v == nil {
			continue
		}
		text := fmt.Sprintf("%v", v)
		if text == "" {
			continue
		}
		values = append(values, text)
	}
	return values
}
