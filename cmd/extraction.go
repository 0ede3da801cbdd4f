package cmd

import (
	"time"

	"github.com/coursesnap/coursesnap/internal/batch"
	"github.com/coursesnap/coursesnap/internal/extraction"
	"github.com/spf13/cobra"
)

// extractionFlags are the provider flags shared by serve and extract
type extractionFlags struct {
	provider    string
	model       string
	timeout     time.Duration
	concurrency int
}

func (f *extractionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "Extraction provider (gemini, openai or ollama; default from EXTRACTION_PROVIDER)")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name (defaults to provider's default)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-image extraction timeout (default from EXTRACTION_TIMEOUT, 90s)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", -1, "Maximum images in flight (0 for no limit; default from BATCH_CONCURRENCY)")
}

// orchestrator resolves the flags against the environment and builds the
// extraction service and batch orchestrator.
func (f *extractionFlags) orchestrator() (*batch.Orchestrator, *extraction.Service, error) {
	cfg := extraction.ConfigFromEnv().Override(f.provider, f.model, f.timeout)
	svc, err := extraction.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	concurrency := f.concurrency
	if concurrency < 0 {
		concurrency = batch.ConcurrencyFromEnv()
	}
	return &batch.Orchestrator{Extractor: svc, Concurrency: concurrency}, svc, nil
}
