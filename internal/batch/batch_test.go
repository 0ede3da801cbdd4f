package batch

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursesnap/coursesnap/internal/extraction"
	"github.com/coursesnap/coursesnap/internal/models"
)

// scriptedExtractor answers by image name.
type scriptedExtractor struct {
	records map[string][]models.CourseRecord
	errs    map[string]error
	delays  map[string]time.Duration
	panics  map[string]bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *scriptedExtractor) Extract(ctx context.Context, img models.Image) ([]models.CourseRecord, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if d := s.delays[img.Name]; d > 0 {
		time.Sleep(d)
	}
	if s.panics[img.Name] {
		panic("boom")
	}
	if err := s.errs[img.Name]; err != nil {
		return nil, err
	}
	return s.records[img.Name], nil
}

func images(names ...string) []models.Image {
	out := make([]models.Image, len(names))
	for i, n := range names {
		out[i] = models.Image{Name: n, Data: []byte(n)}
	}
	return out
}

func rec(student, course string) models.CourseRecord {
	return models.CourseRecord{Date: "2024-01-01", Time: "14:00-15:00", StudentName: student, CourseName: course, TeacherName: "王老师"}
}

func TestRunPartialFailure(t *testing.T) {
	r1 := rec("Alice", "Math")
	r3 := rec("Carol", "Art")
	ex := &scriptedExtractor{
		records: map[string][]models.CourseRecord{"1.png": {r1}, "3.png": {r3}},
		errs:    map[string]error{"2.png": &extraction.Error{Message: "no data returned from the extraction service"}},
	}

	outcome := New(ex).Run(context.Background(), images("1.png", "2.png", "3.png"), models.ModeReplace, nil, nil)

	if outcome.Status != models.StatusSuccess {
		t.Fatalf("Expected success, got %s", outcome.Status)
	}
	if !reflect.DeepEqual(outcome.Records, []models.CourseRecord{r1, r3}) {
		t.Errorf("Expected [r1 r3], got %v", outcome.Records)
	}
	if !strings.Contains(outcome.Warning, "image 2") {
		t.Errorf("Expected warning to reference image 2, got %q", outcome.Warning)
	}
	if outcome.Err != nil {
		t.Errorf("Expected no batch error, got %v", outcome.Err)
	}
	if outcome.Succeeded() != 2 || outcome.Failed() != 1 {
		t.Errorf("Expected 2 succeeded / 1 failed, got %d / %d", outcome.Succeeded(), outcome.Failed())
	}
	if outcome.Items[1].State != ItemFailed || outcome.Items[1].Index != 2 {
		t.Errorf("Expected item 2 failed, got %+v", outcome.Items[1])
	}
}

func TestRunTotalFailure(t *testing.T) {
	prior := []models.CourseRecord{rec("Alice", "Math")}
	ex := &scriptedExtractor{errs: map[string]error{
		"a.png": errors.New("quota exceeded"),
		"b.png": errors.New("bad gateway"),
		"c.png": errors.New("timeout"),
	}}

	outcome := New(ex).Run(context.Background(), images("a.png", "b.png", "c.png"), models.ModeAppend, prior, nil)

	if outcome.Status != models.StatusError {
		t.Fatalf("Expected error status, got %s", outcome.Status)
	}
	if !reflect.DeepEqual(outcome.Records, prior) {
		t.Errorf("Expected prior records unchanged, got %v", outcome.Records)
	}
	if outcome.Err == nil || len(outcome.Err.Reasons) != 3 {
		t.Fatalf("Expected 3 reasons, got %+v", outcome.Err)
	}
	msg := outcome.Err.Error()
	for _, want := range []string{"image 1: quota exceeded", "image 2: bad gateway", "image 3: timeout"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain %q, got %q", want, msg)
		}
	}
}

func TestRunTotalFailureReplaceClears(t *testing.T) {
	ex := &scriptedExtractor{errs: map[string]error{"a.png": errors.New("nope")}}

	outcome := New(ex).Run(context.Background(), images("a.png"), models.ModeReplace, []models.CourseRecord{rec("Alice", "Math")}, nil)

	if outcome.Status != models.StatusError {
		t.Fatalf("Expected error status, got %s", outcome.Status)
	}
	if outcome.Records == nil || len(outcome.Records) != 0 {
		t.Errorf("Expected empty non-nil record set, got %v", outcome.Records)
	}
}

func TestRunAppendMerge(t *testing.T) {
	a := rec("Alice", "Math")
	b := rec("Bob", "Piano")
	ex := &scriptedExtractor{records: map[string][]models.CourseRecord{"x.png": {a, b}}}

	outcome := New(ex).Run(context.Background(), images("x.png"), models.ModeAppend, []models.CourseRecord{a}, nil)

	if !reflect.DeepEqual(outcome.Records, []models.CourseRecord{a, b}) {
		t.Errorf("Expected [A B], got %v", outcome.Records)
	}
}

func TestRunReplaceIgnoresPrior(t *testing.T) {
	a := rec("Alice", "Math")
	b := rec("Bob", "Piano")
	ex := &scriptedExtractor{records: map[string][]models.CourseRecord{"x.png": {b}}}

	outcome := New(ex).Run(context.Background(), images("x.png"), models.ModeReplace, []models.CourseRecord{a}, nil)

	if !reflect.DeepEqual(outcome.Records, []models.CourseRecord{b}) {
		t.Errorf("Expected [B], got %v", outcome.Records)
	}
}

func TestRunPreservesSubmissionOrder(t *testing.T) {
	a := rec("Alice", "Math")
	b := rec("Bob", "Piano")
	c := rec("Carol", "Art")
	ex := &scriptedExtractor{
		records: map[string][]models.CourseRecord{"1": {a}, "2": {b}, "3": {c}},
		delays:  map[string]time.Duration{"1": 60 * time.Millisecond, "2": 30 * time.Millisecond},
	}

	outcome := New(ex).Run(context.Background(), images("1", "2", "3"), models.ModeReplace, nil, nil)

	if !reflect.DeepEqual(outcome.Records, []models.CourseRecord{a, b, c}) {
		t.Errorf("Expected submission order [a b c], got %v", outcome.Records)
	}
}

func TestRunDedupesAcrossImages(t *testing.T) {
	a := rec("Alice", "Math")
	aLoud := rec("ALICE ", "math")
	ex := &scriptedExtractor{records: map[string][]models.CourseRecord{"1": {a}, "2": {aLoud}}}

	outcome := New(ex).Run(context.Background(), images("1", "2"), models.ModeReplace, nil, nil)

	if !reflect.DeepEqual(outcome.Records, []models.CourseRecord{a}) {
		t.Errorf("Expected the first copy only, got %v", outcome.Records)
	}
}

func TestRunProgress(t *testing.T) {
	ex := &scriptedExtractor{
		records: map[string][]models.CourseRecord{"1": {rec("A", "x")}},
		errs:    map[string]error{"2": errors.New("fail")},
	}

	var mu sync.Mutex
	var seen []int
	outcome := New(ex).Run(context.Background(), images("1", "2", "3", "4"), models.ModeReplace, nil, func(processed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != 4 {
			t.Errorf("Expected total 4, got %d", total)
		}
		seen = append(seen, processed)
	})

	if !reflect.DeepEqual(seen, []int{1, 2, 3, 4}) {
		t.Errorf("Expected progress 1..4, got %v", seen)
	}
	if len(outcome.Items) != 4 {
		t.Errorf("Expected 4 items, got %d", len(outcome.Items))
	}
	for _, it := range outcome.Items {
		if it.State == ItemPending {
			t.Errorf("Expected every item to settle, item %d pending", it.Index)
		}
	}
}

func TestRunDispatchesConcurrently(t *testing.T) {
	const n = 5
	names := []string{"a", "b", "c", "d", "e"}
	delays := make(map[string]time.Duration, n)
	for _, name := range names {
		delays[name] = 50 * time.Millisecond
	}
	ex := &scriptedExtractor{delays: delays}

	New(ex).Run(context.Background(), images(names...), models.ModeReplace, nil, nil)

	if got := ex.maxInFlight.Load(); got != n {
		t.Errorf("Expected all %d calls in flight at once, got max %d", n, got)
	}
}

func TestRunConcurrencyCap(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f"}
	delays := make(map[string]time.Duration, len(names))
	for _, name := range names {
		delays[name] = 20 * time.Millisecond
	}
	ex := &scriptedExtractor{delays: delays}

	o := &Orchestrator{Extractor: ex, Concurrency: 2}
	outcome := o.Run(context.Background(), images(names...), models.ModeReplace, nil, nil)

	if got := ex.maxInFlight.Load(); got > 2 {
		t.Errorf("Expected at most 2 calls in flight, got %d", got)
	}
	if outcome.Succeeded() != len(names) {
		t.Errorf("Expected all items to succeed, got %d", outcome.Succeeded())
	}
}

func TestRunRecoversPanics(t *testing.T) {
	ex := &scriptedExtractor{
		records: map[string][]models.CourseRecord{"ok": {rec("A", "x")}},
		panics:  map[string]bool{"bad": true},
	}

	outcome := New(ex).Run(context.Background(), images("ok", "bad"), models.ModeReplace, nil, nil)

	if outcome.Status != models.StatusSuccess {
		t.Fatalf("Expected success, got %s", outcome.Status)
	}
	if !strings.Contains(outcome.Warning, "image 2: extraction panicked") {
		t.Errorf("Expected panic to be reported as image 2 failure, got %q", outcome.Warning)
	}
}

func TestRunNoImages(t *testing.T) {
	prior := []models.CourseRecord{rec("A", "x"), rec("a", "X")}

	outcome := New(&scriptedExtractor{}).Run(context.Background(), nil, models.ModeAppend, prior, nil)

	if outcome.Status != models.StatusSuccess {
		t.Errorf("Expected success for an empty batch, got %s", outcome.Status)
	}
	if len(outcome.Records) != 1 {
		t.Errorf("Expected deduplicated prior records, got %v", outcome.Records)
	}
	if outcome.Warning != "" {
		t.Errorf("Expected no warning, got %q", outcome.Warning)
	}
}

func TestRunSuccessWithNoRecords(t *testing.T) {
	ex := &scriptedExtractor{records: map[string][]models.CourseRecord{"blank": {}}}

	outcome := New(ex).Run(context.Background(), images("blank"), models.ModeReplace, nil, nil)

	if outcome.Status != models.StatusSuccess {
		t.Errorf("Expected success when an image yields zero records, got %s", outcome.Status)
	}
	if len(outcome.Records) != 0 {
		t.Errorf("Expected no records, got %v", outcome.Records)
	}
}

func TestConcurrencyFromEnv(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 0},
		{"4", 4},
		{"0", 0},
		{"-2", 0},
		{"lots", 0},
	}

	for _, tt := range tests {
		t.Setenv("BATCH_CONCURRENCY", tt.value)
		if got := ConcurrencyFromEnv(); got != tt.want {
			t.Errorf("BATCH_CONCURRENCY=%q: Expected %d, got %d", tt.value, tt.want, got)
		}
	}
}
