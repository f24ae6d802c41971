// Package patterns performs reasoner-driven pattern analysis over column
// values, with deterministic heuristic fallbacks when the reasoner fails.
package patterns

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/tablesage-ai/tablesage/pkg/decode"
	"github.com/tablesage-ai/tablesage/pkg/llm"
	"github.com/tablesage-ai/tablesage/pkg/models"
)

const (
	analysisSampleCap = 20
	signatureSample   = 5
	classifySample    = 10
)

// MatchResult is the outcome of matching a single value against a question.
type MatchResult struct {
	Matches       bool    `json:"matches"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	ExtractedInfo string  `json:"extractedInfo,omitempty"`
}

// Classification is the per-value output of bulk classification.
type Classification struct {
	Value      string         `json:"value"`
	Matches    bool           `json:"matches"`
	Confidence float64        `json:"confidence"`
	Category   string         `json:"category"`
	Reasoning  string         `json:"reasoning"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ClassifyResult bundles per-value classifications with aggregate insights.
type ClassifyResult struct {
	Classifications []Classification `json:"classifications"`
	OverallInsights map[string]any   `json:"overallInsights,omitempty"`
}

// Detector analyzes column content via the reasoner. Analyses are cached by
// column name plus a signature of the leading sample values, so repeated
// runs over the same data are free.
type Detector struct {
	reasoner llm.Reasoner
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]*models.ColumnProfile
}

// NewDetector creates a detector backed by the given reasoner.
func NewDetector(reasoner llm.Reasoner, logger *zap.Logger) *Detector {
	return &Detector{
		reasoner: reasoner,
		logger:   logger.Named("patterns"),
		cache:    make(map[string]*models.ColumnProfile),
	}
}

// AnalyzeColumn infers the data type, observed patterns, and quality
// insights for a column from its sample values. On reasoner failure the
// heuristic fallback still produces a usable profile.
func (d *Detector) AnalyzeColumn(ctx context.Context, values []string, column, userContext string) (*models.ColumnProfile, error) {
	key := cacheKey(column, values)

	d.mu.Lock()
	if cached, ok := d.cache[key]; ok {
		d.mu.Unlock()
		d.logger.Debug("pattern cache hit", zap.String("column", column))
		return cached, nil
	}
	d.mu.Unlock()

	prompt := buildAnalysisPrompt(values, column, userContext)

	completion, err := d.reasoner.Complete(ctx, prompt, 0.3)
	if err != nil {
		d.logger.Warn("pattern analysis call failed, using heuristic fallback",
			zap.String("column", column), zap.Error(err))
		return d.fallbackProfile(values), nil
	}

	profile, err := decode.Decode[models.ColumnProfile](completion.Content)
	if err != nil {
		d.logger.Warn("pattern analysis response undecodable, using heuristic fallback",
			zap.String("column", column), zap.Error(err))
		return d.fallbackProfile(values), nil
	}

	d.mu.Lock()
	d.cache[key] = &profile
	d.mu.Unlock()

	d.logger.Debug("pattern analysis complete",
		zap.String("column", column),
		zap.String("dataType", profile.DataType),
		zap.Int("patterns", len(profile.Patterns)))

	return &profile, nil
}

// MatchValue scores a single value against the user's question in the
// context of an analyzed column.
func (d *Detector) MatchValue(ctx context.Context, value, question, matchContext string) (*MatchResult, error) {
	prompt := fmt.Sprintf(`Does this value match the pattern description?

Value: %q
Pattern: %q
Context: %s

Respond with JSON:
{
  "matches": true/false,
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation",
  "extractedInfo": "any structured info if applicable"
}`, value, question, matchContext)

	completion, err := d.reasoner.Complete(ctx, prompt, 0.1)
	if err != nil {
		return nil, fmt.Errorf("match value: %w", err)
	}

	result, err := decode.Decode[MatchResult](completion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode match result: %w", err)
	}
	return &result, nil
}

// ClassifyValues bulk-classifies sampled values against the question,
// considering semantic rather than literal matching.
func (d *Detector) ClassifyValues(ctx context.Context, values []string, question, classifyContext string) (*ClassifyResult, error) {
	sample := values
	if len(sample) > classifySample {
		sample = sample[:classifySample]
	}

	var list strings.Builder
	for i, v := range sample {
		fmt.Fprintf(&list, "%d. %q\n", i+1, v)
	}

	prompt := fmt.Sprintf(`Classify these data values based on the user's question:

Question: %q
Context: %s

Values to classify:
%s
For each value, determine if it matches what the user is looking for.
Consider semantic meaning, business context, and the intent behind the
question, not just literal matching.

Respond with JSON:
{
  "classifications": [
    {
      "value": "original value",
      "matches": true/false,
      "confidence": 0.0-1.0,
      "category": "assigned category",
      "reasoning": "why it matches/doesn't match",
      "metadata": {}
    }
  ],
  "overallInsights": {
    "dominantPattern": "most common pattern",
    "recommendations": "suggestions for further analysis"
  }
}`, question, classifyContext, list.String())

	completion, err := d.reasoner.Complete(ctx, prompt, 0.2)
	if err != nil {
		return nil, fmt.Errorf("classify values: %w", err)
	}

	result, err := decode.Decode[ClassifyResult](completion.Content)
	if err != nil {
		return nil, fmt.Errorf("decode classifications: %w", err)
	}
	return &result, nil
}

// ClearCache drops all cached column profiles.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache = make(map[string]*models.ColumnProfile)
}

// fallbackProfile derives a profile from simple value shapes when the
// reasoner is unavailable.
func (d *Detector) fallbackProfile(values []string) *models.ColumnProfile {
	sample := values
	if len(sample) > 10 {
		sample = sample[:10]
	}

	var patterns []models.PatternInfo

	for _, v := range sample {
		if strings.Contains(v, "@") {
			patterns = append(patterns, models.PatternInfo{
				Type: "email", Confidence: 0.8, Description: "Email addresses detected",
			})
			break
		}
	}
	for _, v := range sample {
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && v != "" {
			patterns = append(patterns, models.PatternInfo{
				Type: "numeric", Confidence: 0.9, Description: "Numeric values detected",
			})
			break
		}
	}
	for _, v := range sample {
		if len(v) > 50 {
			patterns = append(patterns, models.PatternInfo{
				Type: "text", Confidence: 0.7, Description: "Long text content detected",
			})
			break
		}
	}

	dataType := "text"
	if len(patterns) > 0 {
		dataType = patterns[0].Type
	}

	return &models.ColumnProfile{
		DataType: dataType,
		Patterns: patterns,
		Insights: models.ColumnInsights{Format: "mixed", Quality: "unknown"},
	}
}

func buildAnalysisPrompt(values []string, column, userContext string) string {
	sample := values
	if len(sample) > analysisSampleCap {
		sample = sample[:analysisSampleCap]
	}

	var list strings.Builder
	for i, v := range sample {
		fmt.Fprintf(&list, "%d. %q\n", i+1, v)
	}

	return fmt.Sprintf(`Analyze these data samples from column %q and identify patterns:

Sample data:
%s
User context: %s

Please identify patterns and provide analysis in JSON:
{
  "dataType": "primary data type (email, phone, name, address, currency, date, text, number, etc.)",
  "patterns": [
    {
      "type": "pattern_name",
      "description": "what this pattern represents",
      "examples": ["example1", "example2"],
      "confidence": 0.95,
      "matchingRule": "how to identify this pattern"
    }
  ],
  "insights": {
    "format": "common format observed",
    "language": "detected language if text",
    "region": "geographic region if applicable",
    "domain": "business domain if applicable",
    "quality": "data quality assessment"
  },
  "suggestions": {
    "cleaningNeeded": true/false,
    "standardization": "how to standardize if needed",
    "validation": "validation rules to apply"
  }
}

Look for business patterns, regional patterns, format patterns, and semantic patterns.`, column, list.String(), userContext)
}

// cacheKey hashes the column name with the first few sample values so a
// re-analysis of identical data reuses the previous profile.
func cacheKey(column string, values []string) string {
	sample := values
	if len(sample) > signatureSample {
		sample = sample[:signatureSample]
	}
	h := sha256.New()
	h.Write([]byte(column))
	for _, v := range sample {
		h.Write([]byte{0})
		h.Write([]byte(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}
