// Package analysis deduplicates failure findings collected across test runs.
// Similar findings are merged so one root cause surfaces once, not once per
// failing test.
package analysis

import (
	"sort"
	"strings"
)

// Similarity weighting. The values are empirically tuned; treat them as
// opaque configuration, not derived quantities.
const (
	// MergeThreshold is the minimum weighted similarity for two findings to
	// merge.
	MergeThreshold = 0.4
	// PhraseWeight scores overlap of the failure phrase text.
	PhraseWeight = 0.5
	// CodeWeight scores equality of the failure code.
	CodeWeight = 0.3
	// LocationWeight scores equality of the failure location.
	LocationWeight = 0.2
)

// Finding is one distilled failure observation.
type Finding struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"`
	Phrase      string   `json:"phrase"`
	Location    string   `json:"location"`
	TestIDs     []string `json:"test_ids"`
	Occurrences int      `json:"occurrences"`
}

// Similarity scores two findings in [0,1] as the weighted combination of
// phrase, code, and location similarity.
func Similarity(a, b Finding) float64 {
	return PhraseWeight*phraseSimilarity(a.Phrase, b.Phrase) +
		CodeWeight*equality(a.Code, b.Code) +
		LocationWeight*equality(a.Location, b.Location)
}

// Dedupe merges findings whose similarity reaches MergeThreshold. The first
// finding of a cluster keeps its id and phrase; test ids and occurrence
// counts accumulate.
func Dedupe(findings []Finding) []Finding {
	var merged []Finding
	for _, f := range findings {
		if f.Occurrences == 0 {
			f.Occurrences = 1
		}
		idx := -1
		best := 0.0
		for i, m := range merged {
			if s := Similarity(m, f); s >= MergeThreshold && s > best {
				best = s
				idx = i
			}
		}
		if idx < 0 {
			f.TestIDs = dedupeStrings(f.TestIDs)
			merged = append(merged, f)
			continue
		}
		merged[idx].Occurrences += f.Occurrences
		merged[idx].TestIDs = dedupeStrings(append(merged[idx].TestIDs, f.TestIDs...))
	}
	return merged
}

// phraseSimilarity is the Jaccard index over lowercase word sets.
func phraseSimilarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 && len(wb) == 0 {
		return 1
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

func equality(a, b string) float64 {
	if a != "" && a == b {
		return 1
	}
	return 0
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
