package cmd

import (
	"github.com/coursesnap/coursesnap/internal/evalcmd"
	"github.com/spf13/cobra"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Extraction quality evaluation tools",
		Long: `Evaluation tools for measuring how accurately the extraction service reads
course schedule screenshots.

A dataset is a JSONL or Parquet file of labelled samples, one per screenshot:
{"id": "...", "image_path": "...", "expected": [{"date": ..., "time": ..., ...}]}`,
	}

	// Add eval subcommands
	cmd.AddCommand(evalcmd.NewRunCmd())
	cmd.AddCommand(evalcmd.NewInspectCmd())
	cmd.AddCommand(evalcmd.NewReportCmd())

	return cmd
}
