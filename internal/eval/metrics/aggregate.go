package metrics

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/coursesnap/coursesnap/internal/models"
)

// EvaluationResult is the outcome for one labelled image
type EvaluationResult struct {
	ID         string                `json:"id" yaml:"id"`
	ImagePath  string                `json:"image_path" yaml:"imagepath"`
	Extracted  []models.CourseRecord `json:"extracted,omitempty" yaml:"extracted,omitempty"`
	Comparison *Comparison           `json:"comparison,omitempty" yaml:"comparison,omitempty"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"` // extraction failure reason
}

// AggregateResults represents aggregated evaluation metrics
type AggregateResults struct {
	TotalImages  int `json:"total_images" yaml:"totalimages"`
	SuccessCount int `json:"success_count" yaml:"successcount"`
	FailureCount int `json:"failure_count" yaml:"failurecount"`

	// Micro-averaged over every record in the dataset. Failed images count
	// all their expected records as misses.
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`

	// Mean of per-image F1 over successful images
	MacroF1 float64 `json:"macro_f1" yaml:"macrof1"`

	FieldAccuracy map[string]float64 `json:"field_accuracy" yaml:"fieldaccuracy"`

	TotalProcessingTime time.Duration `json:"total_processing_time" yaml:"totalprocessingtime"`
	EvaluationDate      time.Time     `json:"evaluation_date" yaml:"evaluationdate"`
	Provider            string        `json:"provider" yaml:"provider"`
	Model               string        `json:"model" yaml:"model"`
}

// AggregateEvaluationResults aggregates per-image results. expected maps
// each result ID to its labelled record count, which is needed to charge
// failed images with their misses.
func AggregateEvaluationResults(results []EvaluationResult, expected map[string]int, provider, model string, elapsed time.Duration) *AggregateResults {
	agg := &AggregateResults{
		TotalImages:         len(results),
		FieldAccuracy:       make(map[string]float64, len(models.FieldNames)),
		TotalProcessingTime: elapsed,
		EvaluationDate:      time.Now(),
		Provider:            provider,
		Model:               model,
	}

	var tp, fp, fn, labelled int
	var f1Sum float64
	fieldHits := make(map[string]int, len(models.FieldNames))

	for _, r := range results {
		if r.Error != "" || r.Comparison == nil {
			agg.FailureCount++
			fn += expected[r.ID]
			labelled += expected[r.ID]
			continue
		}

		agg.SuccessCount++
		c := r.Comparison
		tp += c.TruePositives
		fp += c.FalsePositives
		fn += c.FalseNegatives
		labelled += c.Expected
		f1Sum += c.F1
		for field, n := range c.FieldMatches {
			fieldHits[field] += n
		}
	}

	agg.Precision, agg.Recall, agg.F1 = score(tp, fp, fn)
	if agg.SuccessCount > 0 {
		agg.MacroF1 = f1Sum / float64(agg.SuccessCount)
	}
	for _, field := range models.FieldNames {
		if labelled > 0 {
			agg.FieldAccuracy[field] = float64(fieldHits[field]) / float64(labelled)
		}
	}
	return agg
}

// PrintSummary prints a human-readable summary of the evaluation
func (a *AggregateResults) PrintSummary(w io.Writer) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, "EXTRACTION EVALUATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "Evaluation Date: %s\n", a.EvaluationDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Provider: %s\n", a.Provider)
	fmt.Fprintf(w, "Model: %s\n", a.Model)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "PROCESSING STATISTICS")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Total Images: %d\n", a.TotalImages)
	fmt.Fprintf(w, "Successful: %d (%.1f%%)\n", a.SuccessCount, percent(a.SuccessCount, a.TotalImages))
	fmt.Fprintf(w, "Failed: %d (%.1f%%)\n", a.FailureCount, percent(a.FailureCount, a.TotalImages))
	fmt.Fprintf(w, "Total Processing Time: %s\n", a.TotalProcessingTime.Round(time.Millisecond))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "RECORD-LEVEL SCORES")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	fmt.Fprintf(w, "Precision: %.2f%%\n", a.Precision*100)
	fmt.Fprintf(w, "Recall:    %.2f%%\n", a.Recall*100)
	fmt.Fprintf(w, "F1:        %.2f%%\n", a.F1*100)
	fmt.Fprintf(w, "Macro F1:  %.2f%%\n", a.MacroF1*100)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "FIELD-LEVEL ACCURACY")
	fmt.Fprintln(w, strings.Repeat("-", 70))
	for _, field := range models.FieldNames {
		fmt.Fprintf(w, "  %-12s %.2f%%\n", field+":", a.FieldAccuracy[field]*100)
	}
	fmt.Fprintln(w, strings.Repeat("=", 70))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
