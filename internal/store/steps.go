package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepName identifies a pipeline step for caching purposes.
type StepName string

const (
	StepCandidates StepName = "candidates"
	StepThreads    StepName = "threads"
	StepAdmitted   StepName = "admitted"
)

// StepCache writes debugging snapshots of pipeline steps under a cache dir.
type StepCache struct {
	dir string
	now func() time.Time
}

// NewStepCache returns a cache rooted at dir.
func NewStepCache(dir string) *StepCache {
	return &StepCache{dir: dir, now: time.Now}
}

func (c *StepCache) stepDir(step StepName) string {
	return filepath.Join(c.dir, string(step))
}

// generateFilename creates a timestamped filename. runID keeps two runs
// in the same second apart.
func (c *StepCache) generateFilename(runID, ext string) string {
	name := c.now().Format("2006-01-02T15-04-05")
	if runID != "" {
		name += "_" + runID
	}
	return name + ext
}

// SaveStepOutput saves JSON-serializable data to the step's cache directory.
// Returns the path to the saved file.
func SaveStepOutput[T any](c *StepCache, step StepName, runID string, data T) (string, error) {
	dir := c.stepDir(step)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}

	path := filepath.Join(dir, c.generateFilename(runID, ".json"))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step output: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}
	return path, nil
}

// LoadLatestStepOutput loads the most recent output from a step's cache directory.
func LoadLatestStepOutput[T any](c *StepCache, step StepName) (T, string, error) {
	var zero T

	latestPath, err := c.LatestStepFile(step)
	if err != nil {
		return zero, "", err
	}
	data, err := LoadStepOutput[T](latestPath)
	if err != nil {
		return zero, "", err
	}
	return data, latestPath, nil
}

// LoadStepOutput loads JSON data from a specific file path.
func LoadStepOutput[T any](path string) (T, error) {
	var data T

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read step output: %w", err)
	}
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal step output: %w", err)
	}
	return data, nil
}

// LatestStepFile returns the path to the most recent file in a step's cache directory.
func (c *StepCache) LatestStepFile(step StepName) (string, error) {
	entries, err := os.ReadDir(c.stepDir(step))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached output for step %s", step)
		}
		return "", err
	}

	// names sort chronologically
	var latest string
	for _, entry := range entries {
		if !entry.IsDir() {
			latest = entry.Name()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no cached output for step %s", step)
	}
	return filepath.Join(c.stepDir(step), latest), nil
}
