package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarExactCaseInsensitive(t *testing.T) {
	guard := DefaultSimilarityGuard()

	match, reason, ok := guard.Similar("fastener hardware", []string{"Fastener Hardware"})
	assert.True(t, ok)
	assert.Equal(t, "Fastener Hardware", match)
	assert.Contains(t, reason, "exact match")
}

func TestSimilarWordOverlap(t *testing.T) {
	guard := DefaultSimilarityGuard()

	match, reason, ok := guard.Similar("Fastener Components", []string{"Fastener Hardware"})
	assert.True(t, ok)
	assert.Equal(t, "Fastener Hardware", match)
	assert.Contains(t, reason, "overlap")
}

func TestSimilarSynonymGroups(t *testing.T) {
	guard := DefaultSimilarityGuard()

	cases := []struct {
		candidate string
		existing  string
	}{
		{"Teeth Cleaning", "Oral Hygiene"},
		{"Healthcare Gear", "Medical Apparatus"},
		{"Steel Panels", "Aluminum Plates"},
	}
	for _, tc := range cases {
		match, _, ok := guard.Similar(tc.candidate, []string{tc.existing})
		assert.True(t, ok, "%q should absorb into %q", tc.candidate, tc.existing)
		assert.Equal(t, tc.existing, match)
	}
}

func TestSimilarSubstringLongWordsOnly(t *testing.T) {
	guard := DefaultSimilarityGuard()

	_, _, ok := guard.Similar("Screwdrivers", []string{"Screwdriver"})
	assert.True(t, ok, "long single-word containment matches")

	_, _, ok = guard.Similar("Fast", []string{"Fastener"})
	assert.False(t, ok, "short words never match by containment")
}

func TestSimilarGenuinelyNew(t *testing.T) {
	guard := DefaultSimilarityGuard()

	_, _, ok := guard.Similar("Office Supplies", []string{"Fastener Hardware", "Dental Equipment"})
	assert.False(t, ok)
}

func TestSimilarIgnoresShortWords(t *testing.T) {
	// "of" and "in" are below the significance cutoff and contribute
	// nothing to overlap.
	guard := DefaultSimilarityGuard()

	_, _, ok := guard.Similar("Cost of Goods", []string{"Types of Steel"})
	assert.False(t, ok)
}
