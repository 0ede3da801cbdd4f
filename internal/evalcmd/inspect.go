package evalcmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coursesnap/coursesnap/internal/eval/dataset"
	"github.com/coursesnap/coursesnap/internal/ui"
	"github.com/spf13/cobra"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	var datasetPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect dataset samples and their labelled records",
		Long: `Prints samples from a parquet or jsonl dataset file: the image each one
points at, whether that image exists, and the records labelled for it.`,
		Example: `  # Inspect the first 5 samples
  coursesnap eval inspect --dataset ./schedules.jsonl --limit 5

  # Inspect every sample
  coursesnap eval inspect --dataset ./schedules.parquet --limit 0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeInspect(cmd.Context(), datasetPath, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to parquet or jsonl dataset file (required)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of samples to inspect (0 for all)")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func executeInspect(ctx context.Context, datasetPath string, limit int, w io.Writer) error {
	loader := dataset.NewLoader(datasetPath)
	samples, err := loader.LoadSample(limit)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	fmt.Fprintf(w, "Loaded %d samples from %s\n", len(samples), datasetPath)
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintln(w)

	printer := &ui.Printer{Out: w, Err: w, NoColor: !ui.IsTerminal(w)}
	for i, s := range samples {
		if ctx.Err() != nil {
			fmt.Fprintln(w, "\nInspection interrupted.")
			return nil
		}

		fmt.Fprintf(w, "SAMPLE %d/%d\n", i+1, len(samples))
		fmt.Fprintln(w, strings.Repeat("-", 80))
		fmt.Fprintf(w, "ID:       %s\n", s.ID)

		path := s.ResolveImagePath(datasetPath)
		status := "ok"
		if _, err := os.Stat(path); err != nil {
			status = "missing"
		}
		fmt.Fprintf(w, "Image:    %s (%s)\n", path, status)
		if s.Notes != "" {
			fmt.Fprintf(w, "Notes:    %s\n", s.Notes)
		}
		fmt.Fprintf(w, "Expected: %d records\n", len(s.Expected))
		if len(s.Expected) > 0 {
			printer.Records(s.Expected)
		}
		fmt.Fprintln(w)
	}
	return nil
}
