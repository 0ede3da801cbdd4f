package dataset

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/parquet-go/parquet-go"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

var samples = []Sample{
	{
		ID:        "week1",
		ImagePath: "images/week1.png",
		Expected: []models.CourseRecord{
			{Date: "2024-01-01", Time: "14:00 - 15:00", StudentName: "小明", CourseName: "钢琴课", TeacherName: "王老师"},
		},
	},
	{
		ID:        "week2",
		ImagePath: "images/week2.png",
		Expected: []models.CourseRecord{
			{Date: "2024-01-08", Time: "09:00 - 10:00", StudentName: "小红", CourseName: "美术"},
			{Date: "2024-01-08", Time: "10:00 - 11:00", StudentName: "小红", CourseName: "书法", TeacherName: "李老师"},
		},
	},
}

func TestNewLoader(t *testing.T) {
	path := "./test.parquet"
	loader := NewLoader(path)

	if loader.Path() != path {
		t.Errorf("Expected path %s, got %s", path, loader.Path())
	}
}

func TestLoadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	content := strings.Join([]string{
		`{"id":"week1","image_path":"images/week1.png","expected":[{"date":"2024-01-01","time":"14:00 - 15:00","studentName":"小明","courseName":"钢琴课","teacherName":"王老师"}]}`,
		``,
		`{"id":"week2","image_path":"images/week2.png","expected":[{"date":"2024-01-08","time":"09:00 - 10:00","studentName":"小红","courseName":"美术","teacherName":""},{"date":"2024-01-08","time":"10:00 - 11:00","studentName":"小红","courseName":"书法","teacherName":"李老师"}]}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, samples) {
		t.Errorf("Expected %+v, got %+v", samples, got)
	}

	limited, err := NewLoader(path).LoadSample(1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "week1" {
		t.Errorf("Expected only week1, got %+v", limited)
	}
}

func TestLoadJSONLMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":\"ok\"}\n{not json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLoader(path).Load()
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("Expected a line 2 parse error, got %v", err)
	}
}

func TestLoadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.parquet")
	if err := parquet.WriteFile(path, samples); err != nil {
		t.Fatalf("failed to write parquet fixture: %v", err)
	}

	got, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i].ID != samples[i].ID || !reflect.DeepEqual(got[i].Expected, samples[i].Expected) {
			t.Errorf("Sample %d: expected %+v, got %+v", i, samples[i], got[i])
		}
	}

	limited, err := NewLoader(path).LoadSample(1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 sample, got %d", len(limited))
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := NewLoader("dataset.csv").Load(); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestImages(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"week1.png", "week2.png"} {
		if err := os.WriteFile(filepath.Join(dir, "images", name), pngBytes, 0644); err != nil {
			t.Fatal(err)
		}
	}

	loader := NewLoader(filepath.Join(dir, "dataset.jsonl"))
	imgs, err := loader.Images(samples)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(imgs) != 2 || imgs[0].Name != "week1" || imgs[1].Name != "week2" {
		t.Errorf("Expected images named by sample id, got %+v", imgs)
	}

	missing := []Sample{{ID: "gone", ImagePath: "images/gone.png"}}
	if _, err := loader.Images(missing); err == nil {
		t.Error("Expected error for missing image")
	}
}

func TestResolveImagePath(t *testing.T) {
	tests := []struct {
		name     string
		sample   Sample
		expected string
	}{
		{"relative", Sample{ImagePath: "images/a.png"}, filepath.Join("data", "images/a.png")},
		{"absolute", Sample{ImagePath: "/srv/a.png"}, "/srv/a.png"},
		{"empty", Sample{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sample.ResolveImagePath("data/set.jsonl"); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
