// Package batch runs extraction over a set of images concurrently and folds
// the results into a deduplicated record set.
//
// Every image is dispatched at once (or up to Concurrency at a time) and the
// orchestrator waits for all of them to settle. Worker goroutines never touch
// shared state: each sends its result to a single coordinating goroutine,
// which updates item state, counts progress and reports it.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coursesnap/coursesnap/internal/dedupe"
	"github.com/coursesnap/coursesnap/internal/extraction"
	"github.com/coursesnap/coursesnap/internal/models"
)

// Extractor turns one image into course records
type Extractor interface {
	Extract(ctx context.Context, img models.Image) ([]models.CourseRecord, error)
}

// ItemState is the lifecycle state of one image in a batch
type ItemState string

const (
	ItemPending   ItemState = "pending"
	ItemSucceeded ItemState = "succeeded"
	ItemFailed    ItemState = "failed"
)

// Item is the per-image unit of work
type Item struct {
	Index   int                   `json:"index"` // 1-based position in the submitted batch
	Name    string                `json:"name"`
	State   ItemState             `json:"state"`
	Records []models.CourseRecord `json:"records,omitempty"`
	Reason  string                `json:"reason,omitempty"`
}

// ProgressFunc is called from the coordinating goroutine after each item settles.
type ProgressFunc func(processed, total int)

// Outcome is the result of a completed batch
type Outcome struct {
	Status  models.Status         `json:"status"`
	Records []models.CourseRecord `json:"records"`
	Items   []Item                `json:"items"`
	Warning string                `json:"warning,omitempty"`
	Err     *Error                `json:"-"`
}

// Succeeded returns the number of items that produced records
func (o Outcome) Succeeded() int {
	n := 0
	for _, it := range o.Items {
		if it.State == ItemSucceeded {
			n++
		}
	}
	return n
}

// Failed returns the number of items whose extraction failed
func (o Outcome) Failed() int {
	n := 0
	for _, it := range o.Items {
		if it.State == ItemFailed {
			n++
		}
	}
	return n
}

// Error reports a batch in which every image failed
type Error struct {
	Reasons []string
}

func (e *Error) Error() string {
	return "could not extract any records from the submitted images:\n" + strings.Join(e.Reasons, "\n")
}

// ConcurrencyFromEnv reads BATCH_CONCURRENCY. Unset or invalid means no cap.
func ConcurrencyFromEnv() int {
	v := os.Getenv("BATCH_CONCURRENCY")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		slog.Warn("Ignoring invalid BATCH_CONCURRENCY", "value", v)
		return 0
	}
	return n
}

// Orchestrator drives a batch of extraction calls
type Orchestrator struct {
	Extractor Extractor
	// Concurrency caps in-flight extraction calls; zero or less means no cap.
	Concurrency int
}

// New returns an orchestrator with no concurrency cap.
func New(e Extractor) *Orchestrator {
	return &Orchestrator{Extractor: e}
}

type settled struct {
	idx     int
	records []models.CourseRecord
	err     error
}

// Run extracts every image and merges the results. In append mode the
// successful records are placed after prior; in replace mode prior is ignored.
// If no image succeeds the outcome is StatusError and the record set is prior
// (append) or empty (replace).
func (o *Orchestrator) Run(ctx context.Context, images []models.Image, mode models.Mode, prior []models.CourseRecord, onProgress ProgressFunc) Outcome {
	start := time.Now()
	total := len(images)

	items := make([]Item, total)
	for i, img := range images {
		items[i] = Item{Index: i + 1, Name: img.Name, State: ItemPending}
	}

	slog.Info("Starting batch", "images", total, "mode", mode, "concurrency", o.Concurrency)

	var wg sync.WaitGroup
	var semaphore chan struct{}
	if o.Concurrency > 0 {
		semaphore = make(chan struct{}, o.Concurrency)
	}
	results := make(chan settled, total)

	for i, img := range images {
		wg.Add(1)
		go func(idx int, img models.Image) {
			defer wg.Done()
			if semaphore != nil {
				semaphore <- struct{}{}        // Acquire
				defer func() { <-semaphore }() // Release
			}

			records, err := o.extract(ctx, img)
			results <- settled{idx: idx, records: records, err: err}
		}(i, img)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	processed := 0
	for r := range results {
		it := &items[r.idx]
		if r.err != nil {
			it.State = ItemFailed
			it.Reason = reason(it.Index, r.err)
			slog.Warn("Image extraction failed", "index", it.Index, "name", it.Name, "error", r.err)
		} else {
			it.State = ItemSucceeded
			it.Records = r.records
			slog.Debug("Image extraction succeeded", "index", it.Index, "name", it.Name, "records", len(r.records))
		}
		processed++
		if onProgress != nil {
			onProgress(processed, total)
		}
	}

	outcome := merge(items, mode, prior)
	slog.Info("Batch finished",
		"status", outcome.Status,
		"succeeded", outcome.Succeeded(),
		"failed", outcome.Failed(),
		"records", len(outcome.Records),
		"elapsed_ms", time.Since(start).Milliseconds())
	return outcome
}

// extract calls the extractor, converting a panic into that item's failure so
// one bad call cannot take down the batch.
func (o *Orchestrator) extract(ctx context.Context, img models.Image) (records []models.CourseRecord, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("extraction panicked: %v", p)
		}
	}()
	return o.Extractor.Extract(ctx, img)
}

// merge folds settled items into the outcome. Items are visited in
// submission order, so records keep that order regardless of completion order.
func merge(items []Item, mode models.Mode, prior []models.CourseRecord) Outcome {
	var extracted []models.CourseRecord
	var reasons []string
	succeeded := 0
	for _, it := range items {
		switch it.State {
		case ItemSucceeded:
			succeeded++
			extracted = append(extracted, it.Records...)
		case ItemFailed:
			reasons = append(reasons, it.Reason)
		}
	}

	outcome := Outcome{Items: items}

	if succeeded == 0 && len(reasons) > 0 {
		outcome.Status = models.StatusError
		outcome.Err = &Error{Reasons: reasons}
		if mode == models.ModeAppend {
			outcome.Records = append([]models.CourseRecord{}, prior...)
		} else {
			outcome.Records = []models.CourseRecord{}
		}
		return outcome
	}

	combined := make([]models.CourseRecord, 0, len(prior)+len(extracted))
	if mode == models.ModeAppend {
		combined = append(combined, prior...)
	}
	combined = append(combined, extracted...)

	outcome.Status = models.StatusSuccess
	outcome.Records = dedupe.Dedupe(combined)
	if len(reasons) > 0 {
		outcome.Warning = "some images could not be processed: " + strings.Join(reasons, "; ")
	}
	return outcome
}

func reason(index int, err error) string {
	var extractErr *extraction.Error
	if errors.As(err, &extractErr) {
		return extractErr.WithIndex(index).Error()
	}
	return fmt.Sprintf("image %d: %v", index, err)
}
