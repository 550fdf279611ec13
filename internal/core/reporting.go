package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type Report struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Summary   string         `json:"summary"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Errors    int            `json:"errors"`
	Threats   []Threat       `json:"threats"`
	Stats     map[string]int `json:"stats"` // threats per source
}

// WriteReport writes a JSON report for result into dir and returns its path.
func WriteReport(dir string, result ScanResult) (string, error) {
	report := Report{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Summary:   result.Summary,
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Errors:    result.Errors,
		Threats:   result.Threats,
		Stats:     make(map[string]int),
	}
	if report.Threats == nil {
		report.Threats = []Threat{}
	}
	for _, t := range result.Threats {
		report.Stats[string(t.Source)]++
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	filename := filepath.Join(dir, fmt.Sprintf("report_%s_%s.json",
		report.Timestamp.Format("20060102_150405"), report.ID[:8]))
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", err
	}
	return filename, nil
}
