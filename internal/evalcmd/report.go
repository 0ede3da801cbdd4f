package evalcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/coursesnap/coursesnap/internal/eval/results"
	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command
func NewReportCmd() *cobra.Command {
	var resultsPath string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a report from an evaluation results file",
		Example: `  coursesnap eval report --results evals/gemini-3-flash-preview-2025-01-01_10-00-00.yaml
  coursesnap eval report --results evals/run.yaml --format csv > run.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeReport(resultsPath, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&resultsPath, "results", "", "Path to a results YAML file (required)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or csv")

	_ = cmd.MarkFlagRequired("results")
	return cmd
}

func executeReport(resultsPath, format string, w io.Writer) error {
	spec, err := results.Load(resultsPath)
	if err != nil {
		return err
	}

	switch format {
	case "text":
		return printTextReport(spec, w)
	case "json":
		return printJSONReport(spec, w)
	case "csv":
		return printCSVReport(spec, w)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextReport(spec *results.EvalSpec, w io.Writer) error {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Schedule Extraction Evaluation Report")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Provider: %s\n", spec.Config.Provider)
	fmt.Fprintf(w, "Model:    %s\n", spec.Config.Model)
	fmt.Fprintf(w, "Dataset:  %s (%d samples)\n", spec.Config.DatasetPath, spec.Config.SampleSize)

	if spec.Summary != nil {
		spec.Summary.PrintSummary(w)
	}

	fmt.Fprintln(w, "\nDetailed Results:")
	fmt.Fprintln(w, "========================================")

	for i, r := range spec.Results {
		fmt.Fprintf(w, "\n[%d] %s\n", i+1, r.ID)

		if r.Error != "" {
			fmt.Fprintf(w, "  ❌ Error: %s\n", r.Error)
			continue
		}
		if r.Comparison == nil {
			continue
		}

		c := r.Comparison
		fmt.Fprintf(w, "  Precision: %.2f%%  Recall: %.2f%%  F1: %.2f%%\n", c.Precision*100, c.Recall*100, c.F1*100)
		fmt.Fprintf(w, "  Records: %d expected, %d extracted, %d matched\n", c.Expected, c.Extracted, c.TruePositives)
		for _, m := range c.Missing {
			fmt.Fprintf(w, "    - missing:    %s\n", truncate(m, 100))
		}
		for _, u := range c.Unexpected {
			fmt.Fprintf(w, "    + unexpected: %s\n", truncate(u, 100))
		}
	}
	return nil
}

func printJSONReport(spec *results.EvalSpec, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(spec)
}

func printCSVReport(spec *results.EvalSpec, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"ID", "Precision", "Recall", "F1", "Expected", "Extracted", "Error"}
	for _, field := range models.FieldNames {
		header = append(header, "Field_"+field)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range spec.Results {
		row := []string{r.ID}
		if r.Error != "" || r.Comparison == nil {
			row = append(row, "0", "0", "0", "", "", r.Error)
			for range models.FieldNames {
				row = append(row, "0")
			}
		} else {
			c := r.Comparison
			row = append(row,
				fmt.Sprintf("%.4f", c.Precision),
				fmt.Sprintf("%.4f", c.Recall),
				fmt.Sprintf("%.4f", c.F1),
				fmt.Sprint(c.Expected),
				fmt.Sprint(c.Extracted),
				"",
			)
			for _, field := range models.FieldNames {
				row = append(row, fmt.Sprintf("%.4f", c.FieldAccuracy(field)))
			}
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen-3]) + "..."
}
