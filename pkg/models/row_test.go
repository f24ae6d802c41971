package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeValueLargeIntegers(t *testing.T) {
	assert.Equal(t, int64(42), NormalizeValue(int64(42)))
	assert.Equal(t, "9223372036854775807", NormalizeValue(int64(math.MaxInt64)))
	assert.Equal(t, "18446744073709551615", NormalizeValue(uint64(math.MaxUint64)))
	assert.Equal(t, int64(7), NormalizeValue(uint64(7)))
}

func TestNormalizeValueNonFinite(t *testing.T) {
	assert.Nil(t, NormalizeValue(math.NaN()))
	assert.Nil(t, NormalizeValue(math.Inf(1)))
	assert.Equal(t, 1.5, NormalizeValue(1.5))
}

func TestNormalizeValueStripsWrappingQuotes(t *testing.T) {
	assert.Equal(t, "46", NormalizeValue(`"46"`))
	assert.Equal(t, "plain", NormalizeValue("plain"))
	assert.Equal(t, `"`, NormalizeValue(`"`))
}

func TestDescribeRespectsColumnOrder(t *testing.T) {
	row := RowRecord{"b": 2, "a": 1, "c": 3}

	assert.Equal(t, `c: "3", a: "1", b: "2"`, row.Describe([]string{"c", "a", "b"}))
}

func TestDescribeAppendsUnorderedColumnsAlphabetically(t *testing.T) {
	row := RowRecord{"z": "last", "a": "first", "m": "middle"}

	assert.Equal(t, `m: "middle", a: "first", z: "last"`, row.Describe([]string{"m"}))
}

func TestAnalysisMethodValid(t *testing.T) {
	assert.True(t, MethodHybrid.Valid())
	assert.True(t, MethodRowByRow.Valid())
	assert.False(t, AnalysisMethod("sql_magic").Valid())
}
