package engine

import (
	"fmt"
	"math"
)

// Status is the outcome of a single scan.
type Status string

const (
	StatusSafe    Status = "SAFE"
	StatusUnsafe  Status = "UNSAFE"
	StatusUnknown Status = "UNKNOWN"
	StatusError   Status = "ERROR"
)

// Evidence names what produced a verdict.
const (
	EvidenceHash    = "Hash"
	EvidenceModel   = "Model"
	EvidenceNoModel = "No Model"
)

// Verdict is the result of scanning one file.
type Verdict struct {
	Path       string  `json:"path"`
	Status     Status  `json:"status"`
	Confidence float64 `json:"confidence"` // percent, one decimal
	Evidence   string  `json:"evidence,omitempty"`
	Detail     string  `json:"detail,omitempty"` // error cause for ERROR verdicts
	MD5        string  `json:"md5,omitempty"`
	SHA256     string  `json:"sha256,omitempty"`
}

// ConfidenceString renders the confidence the way reports and gates consume it:
// "97.3%", "100% (Hash)", "No Model" or the error cause.
func (v Verdict) ConfidenceString() string {
	switch {
	case v.Status == StatusError:
		return v.Detail
	case v.Status == StatusUnknown:
		return EvidenceNoModel
	case v.Evidence == EvidenceHash:
		return "100% (Hash)"
	default:
		return fmt.Sprintf("%.1f%%", v.Confidence)
	}
}

func (v Verdict) String() string {
	return fmt.Sprintf("%s [%s] %s", v.Status, v.ConfidenceString(), v.Path)
}

func percent(p float64) float64 {
	return math.Round(p*1000) / 10
}

func errorVerdict(path string, err error) Verdict {
	return Verdict{Path: path, Status: StatusError, Detail: err.Error()}
}
