package evalcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/coursesnap/coursesnap/internal/batch"
	"github.com/coursesnap/coursesnap/internal/eval/dataset"
	"github.com/coursesnap/coursesnap/internal/eval/metrics"
	"github.com/coursesnap/coursesnap/internal/eval/results"
	"github.com/coursesnap/coursesnap/internal/extraction"
	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/coursesnap/coursesnap/internal/ui"
	"github.com/spf13/cobra"
)

type runOptions struct {
	datasetPath string
	provider    string
	model       string
	outputDir   string
	concurrency int
	limit       int
	timeout     time.Duration
}

// NewRunCmd creates the run command
func NewRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run extraction against a labelled dataset and score it",
		Long: `Extracts records from every screenshot in a labelled dataset as one batch,
then compares each image's records with the labelled records.

Scores are precision, recall and F1 over whole records (matched the same way
duplicates are detected) plus per-field accuracy. Results are written to
<output>/<model>-<timestamp>.yaml.`,
		Example: `  # Evaluate the default provider
  coursesnap eval run --dataset ./testdata/schedules.jsonl

  # Evaluate a local model, four images at a time
  coursesnap eval run --dataset ./schedules.parquet --provider ollama --concurrency 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.concurrency = resolveConcurrency(opts.concurrency)
			return executeRun(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.datasetPath, "dataset", "", "Path to parquet or jsonl dataset file (required)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Extraction provider (gemini, openai or ollama; default from EXTRACTION_PROVIDER)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model name (defaults to provider's default)")
	cmd.Flags().StringVar(&opts.outputDir, "output", "evals", "Directory for the results file")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", -1, "Maximum images in flight (0 for no limit; default from BATCH_CONCURRENCY)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Number of samples to evaluate (0 for all)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-image extraction timeout (default from EXTRACTION_TIMEOUT)")

	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// resolveConcurrency falls back to BATCH_CONCURRENCY when the flag was left
// at its negative default. It runs after .env has been loaded.
func resolveConcurrency(flag int) int {
	if flag < 0 {
		return batch.ConcurrencyFromEnv()
	}
	return flag
}

func executeRun(ctx context.Context, opts runOptions, w, errOut io.Writer) error {
	slog.Info("Starting evaluation run", "dataset", opts.datasetPath, "provider", opts.provider, "model", opts.model)

	loader := dataset.NewLoader(opts.datasetPath)
	samples, err := loader.LoadSample(opts.limit)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("dataset %s has no samples", opts.datasetPath)
	}
	imgs, err := loader.Images(samples)
	if err != nil {
		return fmt.Errorf("failed to load images: %w", err)
	}
	slog.Info("Dataset loaded", "samples", len(samples))

	cfg := extraction.ConfigFromEnv().Override(opts.provider, opts.model, opts.timeout)
	svc, err := extraction.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	orch := &batch.Orchestrator{Extractor: svc, Concurrency: opts.concurrency}
	bar := ui.NewProgressBar(errOut, len(imgs), "Extracting")

	start := time.Now()
	evalResults := evaluate(ctx, orch, samples, imgs, func(processed, total int) {
		bar.Set(processed)
	})
	bar.Finish()
	elapsed := time.Since(start)

	summary := metrics.AggregateEvaluationResults(evalResults, expectedCounts(samples), svc.Provider(), svc.Model(), elapsed)

	path, err := results.Save(opts.outputDir, &results.EvalSpec{
		Config: results.EvalConfig{
			Provider:    svc.Provider(),
			Model:       svc.Model(),
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout.String(),
			Concurrency: opts.concurrency,
			DatasetPath: opts.datasetPath,
			SampleSize:  len(samples),
		},
		Summary: summary,
		Results: evalResults,
	})
	if err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	summary.PrintSummary(w)
	fmt.Fprintf(w, "\nResults saved to: %s\n", path)
	fmt.Fprintf(w, "\nGenerate a detailed report with:\n")
	fmt.Fprintf(w, "  coursesnap eval report --results %s\n", path)
	return nil
}

// evaluate runs every image as one replace-mode batch and scores each item
// against its sample.
func evaluate(ctx context.Context, orch *batch.Orchestrator, samples []dataset.Sample, imgs []models.Image, onProgress batch.ProgressFunc) []metrics.EvaluationResult {
	outcome := orch.Run(ctx, imgs, models.ModeReplace, nil, onProgress)

	out := make([]metrics.EvaluationResult, len(samples))
	for i, item := range outcome.Items {
		s := samples[i]
		r := metrics.EvaluationResult{ID: s.ID, ImagePath: s.ImagePath}
		if item.State == batch.ItemFailed {
			r.Error = item.Reason
		} else {
			r.Extracted = item.Records
			r.Comparison = metrics.Compare(s.Expected, item.Records)
		}
		out[i] = r
	}
	return out
}

func expectedCounts(samples []dataset.Sample) map[string]int {
	counts := make(map[string]int, len(samples))
	for _, s := range samples {
		counts[s.ID] = len(s.Expected)
	}
	return counts
}
