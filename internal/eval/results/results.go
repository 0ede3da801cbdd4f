// Package results saves evaluation runs as YAML files and reads them back.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coursesnap/coursesnap/internal/eval/metrics"
	"gopkg.in/yaml.v3"
)

const timestampLayout = "2006-01-02_15-04-05"

// EvalConfig represents the configuration section of the eval YAML
type EvalConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
	Concurrency int     `yaml:"concurrency"`
	DatasetPath string  `yaml:"datasetpath"`
	SampleSize  int     `yaml:"samplesize"`
	Timestamp   string  `yaml:"timestamp"`
}

// EvalSpec represents the complete evaluation file
type EvalSpec struct {
	Config  EvalConfig                 `yaml:"config"`
	Summary *metrics.AggregateResults  `yaml:"summary"`
	Results []metrics.EvaluationResult `yaml:"results"`
}

// Save writes spec to dir as <model>-<timestamp>.yaml and returns the path.
func Save(dir string, spec *EvalSpec) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	if spec.Config.Timestamp == "" {
		spec.Config.Timestamp = time.Now().Format(timestampLayout)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.yaml", fileSafe(spec.Config.Model), spec.Config.Timestamp))

	data, err := yaml.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write YAML file: %w", err)
	}
	return filename, nil
}

// Load reads an evaluation file written by Save
func Load(path string) (*EvalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var spec EvalSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse results file: %w", err)
	}
	return &spec, nil
}

// fileSafe turns a model name like "qwen2.5vl:7b" or "org/model" into a
// file name component.
func fileSafe(model string) string {
	if model == "" {
		return "unknown-model"
	}
	return strings.NewReplacer("/", "_", ":", "_", "\\", "_", " ", "_").Replace(model)
}
