package dataset

import (
	"path/filepath"

	"github.com/coursesnap/coursesnap/internal/models"
)

// Sample is one labelled screenshot: the image and the records a careful
// human transcribed from it.
type Sample struct {
	ID        string                `json:"id" parquet:"id"`
	ImagePath string                `json:"image_path" parquet:"image_path"`
	Expected  []models.CourseRecord `json:"expected" parquet:"expected,list"`
	Notes     string                `json:"notes,omitempty" parquet:"notes,optional"`
}

// ResolveImagePath returns the image path, treating relative paths as
// relative to the dataset file's directory.
func (s *Sample) ResolveImagePath(datasetPath string) string {
	if s.ImagePath == "" || filepath.IsAbs(s.ImagePath) {
		return s.ImagePath
	}
	return filepath.Join(filepath.Dir(datasetPath), s.ImagePath)
}
