package metrics

import (
	"strings"

	"github.com/coursesnap/coursesnap/internal/dedupe"
	"github.com/coursesnap/coursesnap/internal/models"
)

// Comparison scores the records extracted from one image against the
// labelled records for that image.
type Comparison struct {
	Expected       int `json:"expected" yaml:"expected"`
	Extracted      int `json:"extracted" yaml:"extracted"`
	TruePositives  int `json:"true_positives" yaml:"truepositives"`
	FalsePositives int `json:"false_positives" yaml:"falsepositives"`
	FalseNegatives int `json:"false_negatives" yaml:"falsenegatives"`

	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`

	// FieldMatches counts, per field, expected records whose best-aligned
	// extracted record carries the same value.
	FieldMatches map[string]int `json:"field_matches" yaml:"fieldmatches"`
	Missing      []string       `json:"missing,omitempty" yaml:"missing,omitempty"`
	Unexpected   []string       `json:"unexpected,omitempty" yaml:"unexpected,omitempty"`
}

// FieldAccuracy returns the share of expected records with a correct value
// for field.
func (c *Comparison) FieldAccuracy(field string) float64 {
	if c.Expected == 0 {
		return 0
	}
	return float64(c.FieldMatches[field]) / float64(c.Expected)
}

// Compare matches extracted records to expected ones. Whole-record matches
// use the dedup key; per-field accuracy aligns each expected record with the
// unused extracted record sharing the most field values.
func Compare(expected, extracted []models.CourseRecord) *Comparison {
	expected = dedupe.Dedupe(expected)
	extracted = dedupe.Dedupe(extracted)

	c := &Comparison{
		Expected:     len(expected),
		Extracted:    len(extracted),
		FieldMatches: make(map[string]int, len(models.FieldNames)),
	}

	extractedKeys := make(map[string]bool, len(extracted))
	for _, r := range extracted {
		extractedKeys[dedupe.Key(r)] = true
	}
	expectedKeys := make(map[string]bool, len(expected))
	for _, r := range expected {
		key := dedupe.Key(r)
		expectedKeys[key] = true
		if extractedKeys[key] {
			c.TruePositives++
		} else {
			c.Missing = append(c.Missing, describe(r))
		}
	}
	for _, r := range extracted {
		if !expectedKeys[dedupe.Key(r)] {
			c.Unexpected = append(c.Unexpected, describe(r))
		}
	}
	c.FalseNegatives = c.Expected - c.TruePositives
	c.FalsePositives = c.Extracted - c.TruePositives
	c.Precision, c.Recall, c.F1 = score(c.TruePositives, c.FalsePositives, c.FalseNegatives)

	used := make([]bool, len(extracted))
	for _, want := range expected {
		best, bestMatches := -1, 0
		for j, got := range extracted {
			if used[j] {
				continue
			}
			if n := countMatches(want, got); n > bestMatches {
				best, bestMatches = j, n
			}
		}
		if best < 0 {
			continue
		}
		used[best] = true
		wantFields, gotFields := want.Fields(), extracted[best].Fields()
		for i, name := range models.FieldNames {
			if normalize(wantFields[i]) == normalize(gotFields[i]) {
				c.FieldMatches[name]++
			}
		}
	}
	return c
}

func score(tp, fp, fn int) (precision, recall, f1 float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	// An image with nothing to find and nothing found is a perfect score.
	if tp+fp+fn == 0 {
		return 1, 1, 1
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

func countMatches(a, b models.CourseRecord) int {
	af, bf := a.Fields(), b.Fields()
	n := 0
	for i := range af {
		if normalize(af[i]) == normalize(bf[i]) {
			n++
		}
	}
	return n
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func describe(r models.CourseRecord) string {
	return strings.Join(r.Fields(), " | ")
}
