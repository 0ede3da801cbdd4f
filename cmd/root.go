package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "coursesnap",
		Short: "Turn course schedule screenshots into a spreadsheet",
		Long: `CourseSnap extracts course records (date, time, student, course, teacher)
from schedule screenshots using a vision-capable LLM, removes duplicates across
images and exports the result to an .xlsx workbook.

Run it as a local web interface (serve), as a batch command (extract), or
measure extraction accuracy against a labelled dataset (eval).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newEvalCmd())

	return cmd
}
