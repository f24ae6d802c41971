package decode

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type strategyDoc struct {
	Method    string `json:"method"`
	Reasoning string `json:"reasoning"`
	Query     string `json:"generatedQuery"`
	BatchSize int    `json:"batchSize"`
}

func TestDecodeWellFormed(t *testing.T) {
	raw := `{"method": "hybrid", "reasoning": "needs both", "generatedQuery": "SELECT 1", "batchSize": 10}`

	doc, err := Decode[strategyDoc](raw)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", doc.Method)
	assert.Equal(t, "SELECT 1", doc.Query)
	assert.Equal(t, 10, doc.BatchSize)
}

func TestDecodeStripsFences(t *testing.T) {
	raw := "```json\n{\"method\": \"batch_ai\", \"reasoning\": \"grouping\"}\n```"

	doc, err := Decode[strategyDoc](raw)
	require.NoError(t, err)
	assert.Equal(t, "batch_ai", doc.Method)
}

func TestDecodeExtractsEnvelopeFromProse(t *testing.T) {
	raw := `Sure! Here is the strategy you asked for:

{"method": "row_by_row_ai", "reasoning": "semantic judgment"}

Let me know if you need anything else.`

	doc, err := Decode[strategyDoc](raw)
	require.NoError(t, err)
	assert.Equal(t, "row_by_row_ai", doc.Method)
}

func TestDecodeRecoversMissingComma(t *testing.T) {
	raw := `{"method": "hybrid"
"reasoning": "two phase"}`

	doc, err := Decode[strategyDoc](raw)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", doc.Method)
	assert.Equal(t, "two phase", doc.Reasoning)
}

func TestDecodeRecoversDanglingEscape(t *testing.T) {
	raw := `{"method": "hybrid\", "reasoning": "broken escape"}`

	doc, err := Decode[strategyDoc](raw)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", doc.Method)
}

func TestDecodeRecoversUnescapedInteriorQuote(t *testing.T) {
	raw := `{"reasoning": "use the "hybrid" approach", "method": "hybrid"}`

	doc, err := Decode[strategyDoc](raw)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", doc.Method)
	assert.Equal(t, `use the "hybrid" approach`, doc.Reasoning)
}

func TestDecodeRecoversSiblingObjects(t *testing.T) {
	raw := `[{"method": "hybrid"} {"method": "batch_ai"}]`

	docs, err := Decode[[]strategyDoc](raw)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "batch_ai", docs[1].Method)
}

func TestDecodeRemovesTrailingComma(t *testing.T) {
	raw := `{"method": "hybrid", "reasoning": "r",}`

	doc, err := Decode[strategyDoc](raw)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", doc.Method)
}

func TestDecodeEmptyInput(t *testing.T) {
	_, err := Decode[strategyDoc]("   ")
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "empty response", decodeErr.ParserMessage)
}

func TestDecodeUnrecoverableReportsAttempts(t *testing.T) {
	_, err := Decode[strategyDoc](`{{{{"method": `)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Greater(t, decodeErr.RecoveryAttempts, 0)
	assert.NotEmpty(t, decodeErr.RawText)
	assert.NotEmpty(t, decodeErr.ParserMessage)
}

func TestDecodeAttemptsReflectEarlyBail(t *testing.T) {
	// A type mismatch is not a syntax error, so positional recovery stops
	// after its first parse: one repair-pass attempt plus one positional.
	_, err := Decode[strategyDoc](`{"method": 5}`)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 2, decodeErr.RecoveryAttempts)
	assert.Contains(t, decodeErr.ParserMessage, "cannot unmarshal")
}

func TestDecodeErrorUnwrapsAs(t *testing.T) {
	_, err := Decode[strategyDoc]("no json here at all")
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestExtractBalancedIgnoresBracesInStrings(t *testing.T) {
	raw := `{"query": "SELECT '{' FROM t"} trailing prose`
	assert.Equal(t, `{"query": "SELECT '{' FROM t"}`, Extract(raw))
}
