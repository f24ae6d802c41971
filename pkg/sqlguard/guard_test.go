package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsPlainSelect(t *testing.T) {
	query, err := Validate("SELECT name, cost FROM dataset WHERE cost > 10")
	require.NoError(t, err)
	assert.Equal(t, "SELECT name, cost FROM dataset WHERE cost > 10", query)
}

func TestValidateStripsTrailingSemicolon(t *testing.T) {
	query, err := Validate("SELECT * FROM dataset;  ")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM dataset", query)
}

func TestValidateRejectsMultipleStatements(t *testing.T) {
	_, err := Validate("SELECT 1; DROP TABLE dataset")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "multiple SQL statements")
}

func TestValidateAllowsSemicolonInStringLiteral(t *testing.T) {
	_, err := Validate("SELECT * FROM dataset WHERE note = 'a;b'")
	assert.NoError(t, err)
}

func TestValidateRejectsAggregateWithoutGroupBy(t *testing.T) {
	_, err := Validate("SELECT name, SUM(cost) FROM dataset")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "SUM")
	assert.Contains(t, verr.Reason, "without GROUP BY")
	assert.NotEmpty(t, verr.Suggestion)
}

func TestValidateAcceptsAggregateWithGroupBy(t *testing.T) {
	_, err := Validate("SELECT name, SUM(cost) FROM dataset GROUP BY name")
	assert.NoError(t, err)
}

func TestValidateAcceptsAggregateOnlySelect(t *testing.T) {
	_, err := Validate("SELECT COUNT(*), SUM(cost) FROM dataset")
	assert.NoError(t, err)
}

func TestValidateAcceptsAggregateWithAlias(t *testing.T) {
	_, err := Validate("SELECT SUM(cost) AS total FROM dataset")
	assert.NoError(t, err)
}

func TestValidateAcceptsWindowFunction(t *testing.T) {
	_, err := Validate("SELECT name, SUM(cost) OVER (PARTITION BY region) FROM dataset")
	assert.NoError(t, err)
}

func TestValidateCoversAllAggregateFunctions(t *testing.T) {
	for _, fn := range []string{"SUM", "COUNT", "AVG", "MIN", "MAX", "STRING_AGG", "LIST_SUM"} {
		_, err := Validate("SELECT name, " + fn + "(cost) FROM dataset")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "aggregate %s", fn)
	}
}

func TestValidateRejectsEmptyQuery(t *testing.T) {
	_, err := Validate("   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "empty query", verr.Reason)
}

func TestNormalizeKeepsSingleStatement(t *testing.T) {
	normalized, err := Normalize("SELECT 1;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", normalized)
}
