package evalcmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coursesnap/coursesnap/internal/batch"
	"github.com/coursesnap/coursesnap/internal/eval/dataset"
	"github.com/coursesnap/coursesnap/internal/eval/metrics"
	"github.com/coursesnap/coursesnap/internal/eval/results"
	"github.com/coursesnap/coursesnap/internal/models"
)

var (
	alice = models.CourseRecord{Date: "2024-01-01", Time: "14:00 - 15:00", StudentName: "Alice", CourseName: "Math", TeacherName: "Mr Li"}
	bob   = models.CourseRecord{Date: "2024-01-02", Time: "09:00 - 10:00", StudentName: "Bob", CourseName: "Piano", TeacherName: "王老师"}
)

type fakeExtractor map[string][]models.CourseRecord

func (f fakeExtractor) Extract(_ context.Context, img models.Image) ([]models.CourseRecord, error) {
	records, ok := f[img.Name]
	if !ok {
		return nil, errors.New("unreadable screenshot")
	}
	return records, nil
}

func TestEvaluate(t *testing.T) {
	samples := []dataset.Sample{
		{ID: "week1", Expected: []models.CourseRecord{alice}},
		{ID: "week2", Expected: []models.CourseRecord{bob}},
		{ID: "week3", Expected: []models.CourseRecord{alice, bob}},
	}
	imgs := []models.Image{{Name: "week1"}, {Name: "week2"}, {Name: "week3"}}
	ex := fakeExtractor{
		"week1": {alice},
		"week3": {alice},
	}

	var calls int
	got := evaluate(context.Background(), batch.New(ex), samples, imgs, func(processed, total int) { calls++ })

	if calls != 3 {
		t.Errorf("Expected 3 progress calls, got %d", calls)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(got))
	}
	if got[0].ID != "week1" || got[0].Comparison == nil || got[0].Comparison.F1 != 1 {
		t.Errorf("Expected a perfect week1, got %+v", got[0])
	}
	if got[1].Error == "" || !strings.Contains(got[1].Error, "image 2") {
		t.Errorf("Expected week2 to fail with an indexed reason, got %+v", got[1])
	}
	if got[2].Comparison == nil || got[2].Comparison.Recall != 0.5 {
		t.Errorf("Expected week3 recall 0.5, got %+v", got[2].Comparison)
	}
}

func writeResults(t *testing.T) string {
	t.Helper()
	evalResults := []metrics.EvaluationResult{
		{ID: "week1", Extracted: []models.CourseRecord{alice}, Comparison: metrics.Compare([]models.CourseRecord{alice, bob}, []models.CourseRecord{alice})},
		{ID: "week2", Error: "image 2: unreadable screenshot"},
	}
	path, err := results.Save(t.TempDir(), &results.EvalSpec{
		Config:  results.EvalConfig{Provider: "gemini", Model: "gemini-3-flash-preview", DatasetPath: "set.jsonl", SampleSize: 2},
		Summary: metrics.AggregateEvaluationResults(evalResults, map[string]int{"week1": 2, "week2": 1}, "gemini", "gemini-3-flash-preview", 0),
		Results: evalResults,
	})
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReportFormats(t *testing.T) {
	path := writeResults(t)

	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"Model:    gemini-3-flash-preview", "[1] week1", "missing:", "Bob", "❌ Error: image 2: unreadable screenshot"}},
		{"json", []string{`"Provider": "gemini"`, `"id": "week2"`}},
		{"csv", []string{"ID,Precision,Recall,F1", "week1,1.0000,0.5000", "week2,0,0,0,,,image 2: unreadable screenshot"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := executeReport(path, tt.format, &buf); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("Expected output to contain %q, got:\n%s", want, buf.String())
				}
			}
		})
	}

	if err := executeReport(path, "xml", &bytes.Buffer{}); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.jsonl")
	content := `{"id":"week1","image_path":"week1.png","expected":[{"date":"2024-01-01","time":"14:00 - 15:00","studentName":"Alice","courseName":"Math","teacherName":"Mr Li"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := executeInspect(context.Background(), path, 0, &buf); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Loaded 1 samples", "ID:       week1", "(missing)", "Expected: 1 records", "Mr Li"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRunConcurrencyReadsEnvAtExecution(t *testing.T) {
	cmd := NewRunCmd()
	flag := cmd.Flags().Lookup("concurrency")
	if flag.DefValue != "-1" {
		t.Errorf("Expected unresolved default -1, got %s", flag.DefValue)
	}

	// Set after the command is built, as loading .env does.
	t.Setenv("BATCH_CONCURRENCY", "3")

	tests := []struct {
		flag int
		want int
	}{
		{-1, 3},
		{0, 0},
		{5, 5},
	}
	for _, tt := range tests {
		if got := resolveConcurrency(tt.flag); got != tt.want {
			t.Errorf("resolveConcurrency(%d): Expected %d, got %d", tt.flag, tt.want, got)
		}
	}
}
