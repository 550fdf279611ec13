// Package classifier abstracts the probabilistic malware model. The engine
// only relies on Model.Predict returning P(malicious) in [0,1]; the concrete
// model family is chosen by the artifact.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"warden/internal/features"
	"warden/internal/logging"
)

// Model predicts the probability that a feature vector is malicious.
type Model interface {
	Predict(v features.Vector) (float64, error)
}

// Func adapts a plain function to the Model interface.
type Func func(v features.Vector) (float64, error)

// Predict calls f.
func (f Func) Predict(v features.Vector) (float64, error) {
	return f(v)
}

// Constant returns a model that always predicts p. Handy for tests and dry runs.
func Constant(p float64) Model {
	return Func(func(features.Vector) (float64, error) { return p, nil })
}

// ClassifierError reports a failed prediction.
type ClassifierError struct {
	Model string
	Err   error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s: %v", e.Model, e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

// ErrInvalidProbability is returned when a model produces NaN or infinity.
var ErrInvalidProbability = errors.New("prediction is not a finite probability")

// LoadOptional loads the artifact at path, returning nil (degraded, hash-only
// mode) when it is missing or unusable.
func LoadOptional(path string, logger *zap.Logger) Model {
	logger = logging.WithComponent(logger, "classifier")
	if path == "" {
		logger.Warn("No model configured, running in hash-only mode")
		return nil
	}
	m, err := Load(path)
	if err != nil {
		logger.Warn("Model unavailable, running in hash-only mode",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	logger.Info("Model loaded", zap.String("path", path))
	return m
}

// clamp validates p and bounds it to [0,1].
func clamp(name string, p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, &ClassifierError{Model: name, Err: ErrInvalidProbability}
	}
	return math.Max(0, math.Min(1, p)), nil
}
