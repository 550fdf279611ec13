package engine

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/classifier"
	"warden/internal/features"
	"warden/internal/shadow"
	"warden/internal/signatures"
)

var sample = []byte("definitely not an executable")

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.bin")
	require.NoError(t, os.WriteFile(path, sample, 0o600))
	return path
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func newEngine(t *testing.T, set *signatures.Set, model classifier.Model, opts ...Option) *Engine {
	t.Helper()
	return New(Context{
		Signatures: set,
		Model:      model,
		Reader:     shadow.Reader{TempDir: t.TempDir()},
	}, opts...)
}

func TestScan_HashHitWinsOverModel(t *testing.T) {
	path := writeSample(t)
	for name, set := range map[string]*signatures.Set{
		"md5":    signatures.FromHashes(md5Hex(sample)),
		"sha256": signatures.FromHashes(sha256Hex(sample)),
	} {
		t.Run(name, func(t *testing.T) {
			for _, model := range []classifier.Model{nil, classifier.Constant(0.01)} {
				v := newEngine(t, set, model).Scan(path)
				assert.Equal(t, StatusUnsafe, v.Status)
				assert.Equal(t, EvidenceHash, v.Evidence)
				assert.Equal(t, 100.0, v.Confidence)
				assert.Equal(t, "100% (Hash)", v.ConfidenceString())
				assert.True(t, Actionable(v))
			}
		})
	}
}

func TestScan_ModelVerdicts(t *testing.T) {
	path := writeSample(t)
	tests := []struct {
		name       string
		p          float64
		status     Status
		confidence string
		actionable bool
	}{
		{"high", 0.95, StatusUnsafe, "95.0%", true},
		{"borderline unsafe", 0.6, StatusUnsafe, "60.0%", false},
		{"exactly half is safe", 0.5, StatusSafe, "50.0%", false},
		{"clean", 0.10, StatusSafe, "90.0%", false},
		{"rounding", 0.97349, StatusUnsafe, "97.3%", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newEngine(t, signatures.New(), classifier.Constant(tt.p)).Scan(path)
			assert.Equal(t, tt.status, v.Status)
			assert.Equal(t, tt.confidence, v.ConfidenceString())
			assert.Equal(t, EvidenceModel, v.Evidence)
			assert.Equal(t, tt.actionable, Actionable(v))
			assert.Equal(t, md5Hex(sample), v.MD5)
		})
	}
}

func TestScan_NoModelIsUnknown(t *testing.T) {
	v := newEngine(t, signatures.New(), nil).Scan(writeSample(t))
	assert.Equal(t, StatusUnknown, v.Status)
	assert.Equal(t, "No Model", v.ConfidenceString())
	assert.False(t, Actionable(v))
}

func TestScan_Errors(t *testing.T) {
	path := writeSample(t)

	v := newEngine(t, signatures.New(), nil).Scan(filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, StatusError, v.Status)
	assert.NotEmpty(t, v.ConfidenceString())

	failing := classifier.Func(func(features.Vector) (float64, error) {
		return 0, &classifier.ClassifierError{Model: "broken", Err: errors.New("boom")}
	})
	v = newEngine(t, signatures.New(), failing).Scan(path)
	assert.Equal(t, StatusError, v.Status)
	assert.Contains(t, v.Detail, "boom")
	assert.Equal(t, sha256Hex(sample), v.SHA256)

	panicking := classifier.Func(func(features.Vector) (float64, error) { panic("kaboom") })
	v = newEngine(t, signatures.New(), panicking).Scan(path)
	assert.Equal(t, StatusError, v.Status)
	assert.Contains(t, v.Detail, "kaboom")
}

func TestScan_Concurrent(t *testing.T) {
	path := writeSample(t)
	e := newEngine(t, signatures.New(), classifier.Constant(0.99))

	var wg sync.WaitGroup
	results := make([]Verdict, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Scan(path)
		}(i)
	}
	wg.Wait()
	for _, v := range results {
		assert.Equal(t, StatusUnsafe, v.Status)
		assert.Equal(t, 99.0, v.Confidence)
	}
}

func TestEscalate_CountsSuppressed(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	path := writeSample(t)

	low := newEngine(t, signatures.New(), classifier.Constant(0.7), WithMetrics(metrics))
	v := low.Scan(path)
	assert.False(t, low.Escalate(v))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SuppressedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ScansTotal.WithLabelValues("UNSAFE")))

	strict := newEngine(t, signatures.FromHashes(md5Hex(sample)), nil,
		WithMetrics(metrics), WithGate(Gate{Threshold: 99}))
	v = strict.Scan(path)
	assert.True(t, strict.Escalate(v))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HashHitsTotal))

	assert.False(t, strict.Escalate(Verdict{Status: StatusSafe, Confidence: 100}))
}

func TestParseConfidence(t *testing.T) {
	tests := map[string]struct {
		want float64
		ok   bool
	}{
		"97.3%":       {97.3, true},
		"100% (Hash)": {100, true},
		" 42 ":        {42, true},
		"No Model":    {0, false},
		"":            {0, false},
	}
	for in, tt := range tests {
		got, ok := ParseConfidence(in)
		assert.Equal(t, tt.ok, ok, in)
		assert.InDelta(t, tt.want, got, 1e-9, in)
	}
}

func TestGate_FailsOpen(t *testing.T) {
	g := DefaultGate()
	assert.True(t, g.AllowsConfidence("garbled"))
	assert.True(t, g.AllowsConfidence("90.0%"))
	assert.False(t, g.AllowsConfidence("89.9%"))
}
