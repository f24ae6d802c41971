package models

import (
	"github.com/google/uuid"
)

// AnalysisMethod identifies one of the four execution strategies.
type AnalysisMethod string

const (
	MethodRowByRow AnalysisMethod = "row_by_row_ai"
	MethodBatch    AnalysisMethod = "batch_ai"
	MethodQuery    AnalysisMethod = "query_computational"
	MethodHybrid   AnalysisMethod = "hybrid"
)

// Valid reports whether m is one of the four known methods.
func (m AnalysisMethod) Valid() bool {
	switch m {
	case MethodRowByRow, MethodBatch, MethodQuery, MethodHybrid:
		return true
	}
	return false
}

// DefaultBatchSize is the batch size used when the selector does not
// specify one.
const DefaultBatchSize = 10

// AnalysisStrategy is the selector's decision for one question. Created once
// per question and read-only thereafter.
type AnalysisStrategy struct {
	Method          AnalysisMethod `json:"method"`
	Reasoning       string         `json:"reasoning"`
	GeneratedQuery  string         `json:"generatedQuery,omitempty"`
	PromptTemplate  string         `json:"promptTemplate,omitempty"`
	BatchSize       int            `json:"batchSize,omitempty"`
	ExpectedResults string         `json:"expectedResults,omitempty"`
}

// MatchAnnotation is attached to a row as the result of row-level or
// column-level classification. It never mutates the row's original fields.
type MatchAnnotation struct {
	Matches       bool    `json:"matches"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	MatchedColumn string  `json:"matchedColumn,omitempty"`
	MatchedValue  string  `json:"matchedValue,omitempty"`
}

// MatchedRow pairs a row with its annotation. For transformation tasks the
// row holds the transformed values.
type MatchedRow struct {
	Row        RowRecord       `json:"row"`
	Annotation MatchAnnotation `json:"annotation"`
	Category   *CategoryLabel  `json:"category,omitempty"`
}

// CategoryLabel is the taxonomy assignment attached to a matched row when
// the engine runs with a taxonomy manager.
type CategoryLabel struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	IsNew      bool    `json:"isNew,omitempty"`
}

// InsightReport summarizes a matched subset after row-by-row analysis.
type InsightReport struct {
	Summary         string   `json:"summary"`
	Insights        []string `json:"insights,omitempty"`
	Patterns        []string `json:"patterns,omitempty"`
	DataQuality     string   `json:"dataQuality,omitempty"`
	Recommendations string   `json:"recommendations,omitempty"`
}

// QueryInsights summarizes the rows returned by a generated query.
type QueryInsights struct {
	Summary      string   `json:"summary"`
	Insights     []string `json:"insights,omitempty"`
	DirectAnswer string   `json:"directAnswer,omitempty"`
}

// HybridInsights is the deep second-pass analysis over a narrowed result set.
type HybridInsights struct {
	Patterns        []string `json:"patterns,omitempty"`
	Insights        []string `json:"insights,omitempty"`
	Conclusion      string   `json:"conclusion"`
	Recommendations string   `json:"recommendations,omitempty"`
}

// BatchResult holds findings for one batch of rows.
type BatchResult struct {
	BatchNumber  int         `json:"batchNumber"`
	StartRow     int         `json:"startRow"`
	EndRow       int         `json:"endRow"`
	Findings     []string    `json:"findings,omitempty"`
	MatchingRows []int       `json:"matchingRows,omitempty"` // 1-based within the batch
	Insights     string      `json:"insights,omitempty"`
	Rows         []RowRecord `json:"rows,omitempty"`
}

// AnalysisResult is the aggregate outcome of one run. Which fields are
// populated depends on the method.
type AnalysisResult struct {
	RunID          uuid.UUID      `json:"runId"`
	Method         AnalysisMethod `json:"method"`
	Question       string         `json:"question"`
	GeneratedQuery string         `json:"generatedQuery,omitempty"`

	Matches        []MatchedRow              `json:"matches,omitempty"`
	Results        []RowRecord               `json:"results,omitempty"`
	Batches        []BatchResult             `json:"batches,omitempty"`
	ColumnProfiles map[string]*ColumnProfile `json:"columnProfiles,omitempty"`

	Total    int    `json:"total"`
	Summary  string `json:"summary"`
	Partial  bool   `json:"partial,omitempty"` // run was cancelled between items
	Insights *InsightReport `json:"insights,omitempty"`
	Analysis *QueryInsights `json:"analysis,omitempty"`
	Deep     *HybridInsights `json:"deep,omitempty"`
}

// ProgressEvent is an incremental progress notification to the caller.
type ProgressEvent struct {
	Step    int
	Total   int
	Message string
}

// ProgressFunc receives progress events. Purely informational; no return
// value is consumed.
type ProgressFunc func(ProgressEvent)
