package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"warden/internal/engine"
)

// SourceKind records which surface produced a threat.
type SourceKind string

const (
	SourceFile           SourceKind = "File"
	SourceProcess        SourceKind = "Process"
	SourceRemovableMedia SourceKind = "RemovableMedia"
	SourceNewDrop        SourceKind = "NewDrop"
)

// Threat is an UNSAFE verdict that passed the confidence gate
type Threat struct {
	ID          string         `json:"id"`
	Source      SourceKind     `json:"source"`
	Path        string         `json:"path"`
	PID         int32          `json:"pid,omitempty"`
	ProcessName string         `json:"process_name,omitempty"`
	Verdict     engine.Verdict `json:"verdict"`
	DetectedAt  time.Time      `json:"detected_at"`
}

// NewThreat wraps a verdict into a threat with a fresh ID.
func NewThreat(source SourceKind, v engine.Verdict) Threat {
	return Threat{
		ID:         uuid.NewString(),
		Source:     source,
		Path:       v.Path,
		Verdict:    v,
		DetectedAt: time.Now().UTC(),
	}
}

// Confidence returns the rendered verdict confidence
func (t Threat) Confidence() string {
	return t.Verdict.ConfidenceString()
}

// ScanResult is what a collector pass returns
type ScanResult struct {
	Threats   []Threat `json:"threats"`
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Errors    int      `json:"errors"`
	Summary   string   `json:"summary"`
}

// Merge folds another result into r. Summaries are joined line by line.
func (r *ScanResult) Merge(o ScanResult) {
	r.Threats = append(r.Threats, o.Threats...)
	r.Processed += o.Processed
	r.Skipped += o.Skipped
	r.Errors += o.Errors
	if o.Summary != "" {
		if r.Summary != "" {
			r.Summary += "\n"
		}
		r.Summary += o.Summary
	}
}

// Scanner is the interface that all collectors implement
type Scanner interface {
	Name() string
	Run(ctx context.Context) (ScanResult, error)
}

// Remediator contains a threat
type Remediator interface {
	Quarantine(path string) (QuarantineEntry, error)
	Delete(path string) error
}
