package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tablesage-ai/tablesage/pkg/models"
)

// InferSchema derives column descriptors from a sampled row set: inferred
// scalar type, a sample value, and unique/null counts over the sample.
func InferSchema(rs *RowSet) []models.ColumnDescriptor {
	descriptors := make([]models.ColumnDescriptor, 0, len(rs.Fields))

	for _, field := range rs.Fields {
		unique := make(map[string]struct{})
		nulls := 0
		sample := ""
		colType := models.ColumnTypeText

		for _, row := range rs.Rows {
			v, ok := row[field]
			if !ok || v == nil {
				nulls++
				continue
			}
			text := fmt.Sprintf("%v", v)
			if sample == "" {
				sample = text
				colType = inferType(v, text)
			}
			unique[text] = struct{}{}
		}

		descriptors = append(descriptors, models.ColumnDescriptor{
			Name:        field,
			Type:        colType,
			SampleValue: sample,
			UniqueCount: len(unique),
			TotalCount:  len(rs.Rows),
			NullCount:   nulls,
		})
	}

	return descriptors
}

func inferType(v any, text string) models.ColumnType {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return models.ColumnTypeNumber
	case time.Time:
		return models.ColumnTypeDate
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return models.ColumnTypeNumber
	}
	if _, err := time.Parse("2006-01-02", text); err == nil {
		return models.ColumnTypeDate
	}
	return models.ColumnTypeText
}
