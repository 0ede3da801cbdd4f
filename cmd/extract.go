package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/coursesnap/coursesnap/internal/batch"
	"github.com/coursesnap/coursesnap/internal/export"
	"github.com/coursesnap/coursesnap/internal/images"
	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/coursesnap/coursesnap/internal/session"
	"github.com/coursesnap/coursesnap/internal/ui"
	"github.com/spf13/cobra"
)

type extractOptions struct {
	output   string
	merge    string
	jsonOut  bool
	progress bool
}

func newExtractCmd() *cobra.Command {
	var (
		opts  extractOptions
		flags extractionFlags
	)

	cmd := &cobra.Command{
		Use:   "extract [paths...]",
		Short: "Extract course records from screenshots into a workbook",
		Long: `Reads every image named on the command line (directories are searched
recursively, non-image files are skipped), extracts course records from all of
them as one batch, removes duplicates and writes an .xlsx workbook.

With --merge the records of an earlier export are loaded first and the new
records are appended after them.`,
		Example: `  # Extract a folder of screenshots
  coursesnap extract ./screenshots

  # Add this week's screenshots to last week's export
  coursesnap extract week2/*.png --merge course_schedule.xlsx --output course_schedule.xlsx

  # Print records as JSON instead of a table
  coursesnap extract shot.png --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imgs, err := images.Collect(args)
			if err != nil {
				return err
			}
			if len(imgs) == 0 {
				return fmt.Errorf("no images found in %v", args)
			}

			orch, _, err := flags.orchestrator()
			if err != nil {
				return err
			}
			return runExtract(cmd.Context(), orch, imgs, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", export.DefaultFilename, "Workbook to write")
	cmd.Flags().StringVar(&opts.merge, "merge", "", "Existing workbook whose records are kept and appended to")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print records as JSON")
	cmd.Flags().BoolVar(&opts.progress, "progress", true, "Show a progress bar on terminals")
	flags.register(cmd)

	return cmd
}

func runExtract(ctx context.Context, orch *batch.Orchestrator, imgs []models.Image, opts extractOptions, out, errOut io.Writer) error {
	printer := ui.NewPrinter(out, errOut)

	sess := session.New("cli")
	mode := models.ModeReplace
	if opts.merge != "" {
		prior, err := export.ReadFile(opts.merge)
		if err != nil {
			return err
		}
		if err := sess.Seed(prior); err != nil {
			return err
		}
		mode = models.ModeAppend
		slog.Info("Loaded existing workbook", "path", opts.merge, "records", len(prior))
	}

	done, err := sess.Submit(ctx, orch, imgs, mode)
	if err != nil {
		return err
	}

	var bar *ui.ProgressBar
	if opts.progress {
		bar = ui.NewProgressBar(errOut, len(imgs), "Extracting")
	}
	outcome := wait(done, sess, bar)

	if outcome.Status == models.StatusError {
		printer.Error("%s", outcome.Err.Error())
		return outcome.Err
	}
	if outcome.Warning != "" {
		printer.Warning("%s", outcome.Warning)
	}

	records := sess.Records()
	if opts.jsonOut {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(records); err != nil {
			return err
		}
	} else if len(records) > 0 {
		printer.Records(records)
	}

	if len(records) == 0 {
		printer.Warning("No course records found; nothing exported")
		return nil
	}
	if err := export.WriteFile(opts.output, records); err != nil {
		var exportErr *export.Error
		if errors.As(err, &exportErr) {
			printer.Error("Could not write %s: %v", opts.output, exportErr.Err)
		}
		return err
	}

	printer.Success("Wrote %d records from %d/%d images to %s", len(records), outcome.Succeeded(), len(outcome.Items), opts.output)
	return nil
}

// wait blocks until the batch completes, mirroring session progress on bar.
func wait(done <-chan batch.Outcome, sess *session.Session, bar *ui.ProgressBar) batch.Outcome {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case outcome := <-done:
			if bar != nil {
				bar.Set(len(outcome.Items))
				bar.Finish()
			}
			return outcome
		case <-ticker.C:
			if bar != nil {
				bar.Set(sess.Snapshot().Processed)
			}
		}
	}
}
