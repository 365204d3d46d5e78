package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity_IdenticalFindings(t *testing.T) {
	f := Finding{Code: "stuck", Phrase: "flow state unchanged for 5 turns", Location: "scheduling"}
	assert.InDelta(t, 1.0, Similarity(f, f), 1e-9)
}

func TestSimilarity_DisjointFindings(t *testing.T) {
	a := Finding{Code: "stuck", Phrase: "flow state unchanged", Location: "scheduling"}
	b := Finding{Code: "error", Phrase: "missing insurance provider", Location: "checking_insurance"}
	assert.Less(t, Similarity(a, b), MergeThreshold)
}

func TestSimilarity_WeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, PhraseWeight+CodeWeight+LocationWeight, 1e-9)
}

func TestDedupe_MergesSimilar(t *testing.T) {
	findings := []Finding{
		{ID: "f1", Code: "stuck", Phrase: "flow state unchanged for 5 turns", Location: "scheduling", TestIDs: []string{"t1"}},
		{ID: "f2", Code: "stuck", Phrase: "flow state unchanged for 6 turns", Location: "scheduling", TestIDs: []string{"t2"}},
		{ID: "f3", Code: "error", Phrase: "agent replied with NaN", Location: "confirming", TestIDs: []string{"t3"}},
	}

	merged := Dedupe(findings)
	require.Len(t, merged, 2)
	assert.Equal(t, "f1", merged[0].ID, "first finding of a cluster keeps its id")
	assert.Equal(t, 2, merged[0].Occurrences)
	assert.Equal(t, []string{"t1", "t2"}, merged[0].TestIDs)
	assert.Equal(t, 1, merged[1].Occurrences)
}

func TestDedupe_SameCodeAloneDoesNotMerge(t *testing.T) {
	// Code and location agree (0.3 + 0.2 = 0.5 only if both match); with
	// disjoint phrases and different locations the score stays below the
	// threshold.
	a := Finding{ID: "a", Code: "error", Phrase: "missing phone number", Location: "collecting_parent_info"}
	b := Finding{ID: "b", Code: "error", Phrase: "unexpected transfer offer", Location: "scheduling"}
	merged := Dedupe([]Finding{a, b})
	assert.Len(t, merged, 2)
}

func TestDedupe_AccumulatesAcrossChain(t *testing.T) {
	findings := []Finding{
		{ID: "a", Code: "stuck", Phrase: "stuck in greeting", Location: "greeting", TestIDs: []string{"t1"}, Occurrences: 2},
		{ID: "b", Code: "stuck", Phrase: "stuck in greeting loop", Location: "greeting", TestIDs: []string{"t2", "t1"}},
	}
	merged := Dedupe(findings)
	require.Len(t, merged, 1)
	assert.Equal(t, 3, merged[0].Occurrences)
	assert.Equal(t, []string{"t1", "t2"}, merged[0].TestIDs)
}

func TestDedupe_Empty(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
}
