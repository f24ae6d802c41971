// Package models defines the data model shared by the analysis pipeline.
package models

// ColumnType classifies a column's inferred scalar type.
type ColumnType string

const (
	ColumnTypeText   ColumnType = "TEXT"
	ColumnTypeNumber ColumnType = "NUMBER"
	ColumnTypeDate   ColumnType = "DATE"
)

// ColumnDescriptor describes one column of the dataset under analysis.
// Produced once per run by schema inference and immutable thereafter.
type ColumnDescriptor struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	SampleValue string     `json:"sampleValue"`
	UniqueCount int        `json:"uniqueCount"`
	TotalCount  int        `json:"totalCount"`
	NullCount   int        `json:"nullCount"`
}

// ColumnProfile is the result of reasoner-driven pattern analysis over one
// column's non-null values.
type ColumnProfile struct {
	DataType    string              `json:"dataType"`
	Patterns    []PatternInfo       `json:"patterns"`
	Insights    ColumnInsights      `json:"insights"`
	Suggestions CleaningSuggestions `json:"suggestions"`
}

// PatternInfo describes one pattern observed in a column.
type PatternInfo struct {
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Examples     []string `json:"examples,omitempty"`
	Confidence   float64  `json:"confidence"`
	MatchingRule string   `json:"matchingRule,omitempty"`
}

// ColumnInsights summarizes format, language, and quality observations.
type ColumnInsights struct {
	Format   string `json:"format,omitempty"`
	Language string `json:"language,omitempty"`
	Region   string `json:"region,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Quality  string `json:"quality,omitempty"`
}

// CleaningSuggestions carries data-quality remediation hints.
type CleaningSuggestions struct {
	CleaningNeeded  bool   `json:"cleaningNeeded"`
	Standardization string `json:"standardization,omitempty"`
	Validation      string `json:"validation,omitempty"`
}
