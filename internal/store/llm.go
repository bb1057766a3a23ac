package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// RefinerExchange is one transcript sent to the refiner and what came back
type RefinerExchange struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	UnitID    string    `json:"unit_id,omitempty"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Error     string    `json:"error,omitempty"`
}

// SaveRefinerExchange writes an exchange to a timestamped file under the
// cache's llm directory. Returns the path to the saved file.
func (c *StepCache) SaveRefinerExchange(ex RefinerExchange) (string, error) {
	dir := filepath.Join(c.dir, "llm")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// dashes instead of colons for filesystem compatibility
	name := ex.Timestamp.Format("2006-01-02T15-04-05.000")
	if ex.UnitID != "" {
		name += "_" + ex.UnitID
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(ex, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
