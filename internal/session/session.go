// Package session holds the state of one interactive extraction session:
// the current record set, the processing status and batch progress.
//
// State only changes at batch boundaries (start, per-item progress from the
// orchestrator's coordinator, completion) so every Snapshot satisfies
// 0 <= Processed <= Total and contains a deduplicated record set.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coursesnap/coursesnap/internal/batch"
	"github.com/coursesnap/coursesnap/internal/dedupe"
	"github.com/coursesnap/coursesnap/internal/models"
)

var (
	ErrBatchInProgress   = errors.New("a batch is already being processed")
	ErrNoImages          = errors.New("no images to process")
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// Snapshot is a point-in-time copy of the session state
type Snapshot struct {
	ID        string                `json:"id"`
	Status    models.Status         `json:"status"`
	Mode      models.Mode           `json:"mode,omitempty"`
	Records   []models.CourseRecord `json:"records"`
	Processed int                   `json:"processed"`
	Total     int                   `json:"total"`
	Message   string                `json:"message,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Progress returns completion as a whole percentage
func (s Snapshot) Progress() int {
	if s.Total == 0 {
		return 0
	}
	return s.Processed * 100 / s.Total
}

// Session is the session state holder
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.RWMutex
	status    models.Status
	mode      models.Mode
	records   []models.CourseRecord
	processed int
	total     int
	message   string
	updatedAt time.Time
}

// New returns an idle session with an empty record set
func New(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		status:    models.StatusIdle,
		records:   []models.CourseRecord{},
		updatedAt: now,
	}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		ID:        s.ID,
		Status:    s.status,
		Mode:      s.mode,
		Records:   append([]models.CourseRecord{}, s.records...),
		Processed: s.processed,
		Total:     s.total,
		Message:   s.message,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
}

// Records returns a copy of the current record set
func (s *Session) Records() []models.CourseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CourseRecord{}, s.records...)
}

// Status returns the current status
func (s *Session) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdatedAt returns the time of the last state change
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Submit starts a batch over images and returns a channel that receives the
// outcome once every image has settled and the session has been updated.
// Submit fails without changing state while another batch is processing or
// when images is empty.
//
// In replace mode the visible record set is cleared as soon as the batch
// starts; if the batch then fails entirely the session shows an empty set.
func (s *Session) Submit(ctx context.Context, orch *batch.Orchestrator, images []models.Image, mode models.Mode) (<-chan batch.Outcome, error) {
	prior, err := s.begin(len(images), mode)
	if err != nil {
		return nil, err
	}

	done := make(chan batch.Outcome, 1)
	go func() {
		defer close(done)
		outcome := orch.Run(ctx, images, mode, prior, s.progress)
		s.complete(outcome)
		done <- outcome
	}()
	return done, nil
}

// Run is the synchronous form of Submit.
func (s *Session) Run(ctx context.Context, orch *batch.Orchestrator, images []models.Image, mode models.Mode) (batch.Outcome, error) {
	done, err := s.Submit(ctx, orch, images, mode)
	if err != nil {
		return batch.Outcome{}, err
	}
	return <-done, nil
}

// Reset returns a session in the error state to idle
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusError {
		return fmt.Errorf("%w: cannot reset from %s", ErrInvalidTransition, s.status)
	}
	s.status = models.StatusIdle
	s.message = ""
	s.processed, s.total = 0, 0
	s.updatedAt = time.Now()
	return nil
}

// Seed replaces the record set of an idle or finished session, for example
// with records loaded from a previously exported workbook. Duplicates are
// dropped the same way a batch drops them.
func (s *Session) Seed(records []models.CourseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.StatusProcessing {
		return ErrBatchInProgress
	}
	s.records = dedupe.Dedupe(append([]models.CourseRecord{}, records...))
	s.updatedAt = time.Now()
	return nil
}

func (s *Session) begin(total int, mode models.Mode) ([]models.CourseRecord, error) {
	if total == 0 {
		return nil, ErrNoImages
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.StatusProcessing {
		return nil, ErrBatchInProgress
	}

	prior := s.records
	s.status = models.StatusProcessing
	s.mode = mode
	s.processed = 0
	s.total = total
	s.message = ""
	if mode == models.ModeReplace {
		s.records = []models.CourseRecord{}
	}
	s.updatedAt = time.Now()

	slog.Info("Session batch started", "session_id", s.ID, "images", total, "mode", mode)
	return prior, nil
}

// progress is the orchestrator's ProgressFunc; it is only called from the
// coordinating goroutine.
func (s *Session) progress(processed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusProcessing || processed > s.total {
		return
	}
	s.processed = processed
	s.updatedAt = time.Now()
}

func (s *Session) complete(outcome batch.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed = s.total
	s.records = outcome.Records
	switch outcome.Status {
	case models.StatusError:
		s.status = models.StatusError
		if outcome.Err != nil {
			s.message = outcome.Err.Error()
		}
	default:
		s.status = models.StatusSuccess
		s.message = outcome.Warning
	}
	s.updatedAt = time.Now()

	slog.Info("Session batch completed", "session_id", s.ID, "status", s.status, "records", len(s.records))
}
