// Package engine turns a file path into a Verdict. Scans are stateless: the
// engine only reads its immutable Context, so one Engine is safe to share
// between on-demand collectors and the sentinel.
package engine

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"warden/internal/classifier"
	"warden/internal/features"
	"warden/internal/logging"
	"warden/internal/shadow"
	"warden/internal/signatures"
)

// Context is the read-only state a scan depends on. A nil Model puts the
// engine in hash-only mode.
type Context struct {
	Signatures *signatures.Set
	Model      classifier.Model
	Reader     shadow.Reader
}

// Engine runs scans against a Context.
type Engine struct {
	ctx     Context
	gate    Gate
	metrics *Metrics
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = logging.WithComponent(l, "engine") }
}

// WithMetrics records scan metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithGate overrides the default 90% escalation gate.
func WithGate(g Gate) Option {
	return func(e *Engine) { e.gate = g }
}

// New creates an engine.
func New(ctx Context, opts ...Option) *Engine {
	e := &Engine{
		ctx:    ctx,
		gate:   DefaultGate(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasModel reports whether a classifier is loaded.
func (e *Engine) HasModel() bool {
	return e.ctx.Model != nil
}

// Scan classifies the file at path. It never panics; every failure becomes an
// ERROR verdict.
func (e *Engine) Scan(path string) (v Verdict) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			v = errorVerdict(path, fmt.Errorf("scan panicked: %v", r))
		}
		e.metrics.observe(v, time.Since(start).Seconds())
		e.logger.Debug("Scanned",
			zap.String("path", path),
			zap.String("status", string(v.Status)),
			zap.String("confidence", v.ConfidenceString()))
	}()

	// 1. Shadow read
	data, err := e.ctx.Reader.Read(path)
	if err != nil {
		return errorVerdict(path, err)
	}

	// 2. Signature match
	md5Sum := md5.Sum(data)
	shaSum := sha256.Sum256(data)
	v = Verdict{
		Path:   path,
		MD5:    hex.EncodeToString(md5Sum[:]),
		SHA256: hex.EncodeToString(shaSum[:]),
	}
	if e.ctx.Signatures.Contains(v.MD5) || e.ctx.Signatures.Contains(v.SHA256) {
		v.Status = StatusUnsafe
		v.Confidence = 100
		v.Evidence = EvidenceHash
		return v
	}

	// 3. Degraded mode
	if e.ctx.Model == nil {
		v.Status = StatusUnknown
		v.Evidence = EvidenceNoModel
		return v
	}

	// 4. Model
	p, err := e.ctx.Model.Predict(features.Extract(data))
	if err != nil {
		ev := errorVerdict(path, err)
		ev.MD5, ev.SHA256 = v.MD5, v.SHA256
		return ev
	}
	v.Evidence = EvidenceModel
	if p > 0.5 {
		v.Status = StatusUnsafe
		v.Confidence = percent(p)
	} else {
		v.Status = StatusSafe
		v.Confidence = percent(1 - p)
	}
	return v
}

// Escalate applies the gate to v. Suppressed UNSAFE verdicts are logged at
// debug level and counted.
func (e *Engine) Escalate(v Verdict) bool {
	if v.Status != StatusUnsafe {
		return false
	}
	if e.gate.Allows(v) {
		return true
	}
	e.metrics.suppressed()
	e.logger.Debug("Low-confidence detection suppressed",
		zap.String("path", v.Path),
		zap.String("confidence", v.ConfidenceString()))
	return false
}
