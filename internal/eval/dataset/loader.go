package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/coursesnap/coursesnap/internal/images"
	"github.com/coursesnap/coursesnap/internal/models"
	"github.com/parquet-go/parquet-go"
)

// Loader handles loading of a labelled screenshot dataset
type Loader struct {
	datasetPath string
}

// NewLoader creates a new dataset loader
func NewLoader(datasetPath string) *Loader {
	return &Loader{
		datasetPath: datasetPath,
	}
}

// Path returns the dataset file path
func (l *Loader) Path() string { return l.datasetPath }

// Load loads every sample from a dataset file (JSONL or Parquet)
func (l *Loader) Load() ([]Sample, error) {
	return l.LoadSample(0)
}

// LoadSample loads at most limit samples; zero or less loads everything.
func (l *Loader) LoadSample(limit int) ([]Sample, error) {
	ext := strings.ToLower(filepath.Ext(l.datasetPath))

	switch ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".jsonl", ".json":
		return l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported file format: %s (supported: .parquet, .jsonl)", ext)
	}
}

// Images loads the screenshot for each sample, in sample order.
func (l *Loader) Images(samples []Sample) ([]models.Image, error) {
	out := make([]models.Image, 0, len(samples))
	for _, s := range samples {
		path := s.ResolveImagePath(l.datasetPath)
		if path == "" {
			return nil, fmt.Errorf("sample %s has no image_path", s.ID)
		}
		img, err := images.Load(path)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", s.ID, err)
		}
		img.Name = s.ID
		out = append(out, img)
	}
	return out, nil
}

// loadJSONL loads samples from a JSONL file
func (l *Loader) loadJSONL(limit int) ([]Sample, error) {
	slog.Debug("Opening JSONL file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var samples []Sample
	scanner := bufio.NewScanner(file)

	// Increase buffer size for large JSON lines
	const maxCapacity = 10 * 1024 * 1024
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		if limit > 0 && len(samples) >= limit {
			break
		}
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var sample Sample
		if err := json.Unmarshal([]byte(line), &sample); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		if sample.ID == "" {
			sample.ID = fmt.Sprintf("line-%d", lineNum)
		}
		samples = append(samples, sample)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Finished reading JSONL file", "total_samples", len(samples), "total_lines", lineNum)
	return samples, nil
}

// loadParquet loads samples from a Parquet file
func (l *Loader) loadParquet(limit int) ([]Sample, error) {
	slog.Debug("Opening Parquet file", "path", l.datasetPath)

	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened successfully", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[Sample](pf)
	defer reader.Close()

	var samples []Sample
	rows := make([]Sample, 128)

	for limit <= 0 || len(samples) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit > 0 && n > limit-len(samples) {
				n = limit - len(samples)
			}
			samples = append(samples, rows[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	slog.Debug("Finished reading Parquet file", "total_samples", len(samples))
	return samples, nil
}
