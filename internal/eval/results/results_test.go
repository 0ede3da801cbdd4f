package results

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coursesnap/coursesnap/internal/eval/metrics"
	"github.com/coursesnap/coursesnap/internal/models"
)

func TestSaveAndLoad(t *testing.T) {
	rec := models.CourseRecord{Date: "2024-01-01", Time: "14:00 - 15:00", StudentName: "小明", CourseName: "钢琴课", TeacherName: "王老师"}
	evalResults := []metrics.EvaluationResult{
		{ID: "week1", ImagePath: "images/week1.png", Extracted: []models.CourseRecord{rec}, Comparison: metrics.Compare([]models.CourseRecord{rec}, []models.CourseRecord{rec})},
		{ID: "week2", ImagePath: "images/week2.png", Error: "image 2: the extraction service returned no content"},
	}
	spec := &EvalSpec{
		Config: EvalConfig{
			Provider:    "ollama",
			Model:       "qwen2.5vl:7b",
			Temperature: 0.1,
			Timeout:     "1m30s",
			DatasetPath: "data/set.jsonl",
			SampleSize:  2,
			Timestamp:   "2024-05-01_10-00-00",
		},
		Summary: metrics.AggregateEvaluationResults(evalResults, map[string]int{"week1": 1, "week2": 3}, "ollama", "qwen2.5vl:7b", time.Second),
		Results: evalResults,
	}

	dir := filepath.Join(t.TempDir(), "evals")
	path, err := Save(dir, spec)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "qwen2.5vl_7b-2024-05-01_10-00-00.yaml" {
		t.Errorf("Unexpected file name %s", filepath.Base(path))
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loaded.Config != spec.Config {
		t.Errorf("Expected config %+v, got %+v", spec.Config, loaded.Config)
	}
	if len(loaded.Results) != 2 || loaded.Results[0].Extracted[0] != rec {
		t.Errorf("Unexpected results %+v", loaded.Results)
	}
	if loaded.Results[1].Error == "" || loaded.Results[1].Comparison != nil {
		t.Errorf("Expected failed second result, got %+v", loaded.Results[1])
	}
	if loaded.Summary == nil || loaded.Summary.SuccessCount != 1 || loaded.Summary.FieldAccuracy["date"] != 0.25 {
		t.Errorf("Unexpected summary %+v", loaded.Summary)
	}
}

func TestSaveFillsTimestamp(t *testing.T) {
	path, err := Save(t.TempDir(), &EvalSpec{Config: EvalConfig{Model: "org/model"}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "org_model-") {
		t.Errorf("Unexpected file name %s", filepath.Base(path))
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
