package classifier

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/features"
)

func zeros(n int) string {
	return "[" + strings.TrimSuffix(strings.Repeat("0,", n), ",") + "]"
}

func TestParse_Logistic(t *testing.T) {
	// weight only on the entropy feature
	w := make([]string, features.Size)
	for i := range w {
		w[i] = "0"
	}
	w[features.Entropy] = "1"
	doc := "kind: logistic\nbias: -4\nweights: [" + strings.Join(w, ",") + "]\n"

	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	var v features.Vector
	v[features.Entropy] = 4
	p, err := m.Predict(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p, 1e-12)

	v[features.Entropy] = 8
	p, err = m.Predict(v)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-4)), p, 1e-12)
}

func TestParse_ForestJSON(t *testing.T) {
	doc := `{
    "kind": "forest",
    "name": "rf-test",
    "features": 27,
    "trees": [
      {"nodes": [
        {"feature": 16, "threshold": 7.0, "left": 1, "right": 2},
        {"value": 0.0},
        {"value": 1.0}
      ]},
      {"nodes": [{"value": 0.8}]}
    ]
  }`
	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	var low, high features.Vector
	low[features.Entropy] = 3
	high[features.Entropy] = 7.5

	p, err := m.Predict(low)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, p, 1e-12)

	p, err = m.Predict(high)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, p, 1e-12)
}

func TestParse_Scaler(t *testing.T) {
	mean := make([]string, features.Size)
	scale := make([]string, features.Size)
	for i := range mean {
		mean[i], scale[i] = "0", "1"
	}
	mean[features.LogSize], scale[features.LogSize] = "10", "2"
	doc := "kind: forest\nscaler:\n  mean: [" + strings.Join(mean, ",") + "]\n  scale: [" + strings.Join(scale, ",") + "]\n" +
		"trees:\n  - nodes:\n    - {feature: 18, threshold: 0, left: 1, right: 2}\n    - {value: 0.2}\n    - {value: 0.7}\n"

	m, err := Parse([]byte(doc))
	require.NoError(t, err)

	var v features.Vector
	v[features.LogSize] = 9 // scaled to -0.5
	p, err := m.Predict(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, p, 1e-12)

	v[features.LogSize] = 12 // scaled to 1
	p, err = m.Predict(v)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, p, 1e-12)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":          "kind: [",
		"no kind":           "bias: 1",
		"unknown kind":      "kind: svm",
		"short weights":     "kind: logistic\nweights: [1, 2]",
		"wrong feat count":  "kind: logistic\nfeatures: 19\nweights: " + zeros(features.Size),
		"empty forest":      "kind: forest",
		"feature range":     "kind: forest\ntrees: [{nodes: [{feature: 40, threshold: 1, left: 1, right: 2}, {value: 0}, {value: 1}]}]",
		"child range":       "kind: forest\ntrees: [{nodes: [{feature: 1, threshold: 1, left: 1, right: 9}, {value: 0}]}]",
		"half leaf":         "kind: forest\ntrees: [{nodes: [{feature: 1, threshold: 1, left: 1}, {value: 0}]}]",
		"leaf out of range": "kind: forest\ntrees: [{nodes: [{value: 1.5}]}]",
		"zero scale":        "kind: logistic\nweights: " + zeros(features.Size) + "\nscaler: {mean: " + zeros(features.Size) + ", scale: " + zeros(features.Size) + "}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestForest_CycleIsClassifierError(t *testing.T) {
	m := &Forest{name: "loop", Trees: []Tree{{Nodes: []Node{
		{Feature: 0, Threshold: 1, Left: 1, Right: 1},
		{Feature: 0, Threshold: 1, Left: 1, Right: 1},
	}}}}
	_, err := m.Predict(features.Vector{})
	var cerr *ClassifierError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "loop", cerr.Model)
}

func TestClamp(t *testing.T) {
	p, err := Func(func(features.Vector) (float64, error) { return 1.7, nil }).Predict(features.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 1.7, p, "Func passes through untouched")

	p, err = clamp("x", 1.7)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p)

	_, err = clamp("x", math.NaN())
	assert.True(t, errors.Is(err, ErrInvalidProbability))
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, LoadOptional("", nil))
	assert.Nil(t, LoadOptional(filepath.Join(dir, "missing.yaml"), nil))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("kind: nope"), 0o600))
	assert.Nil(t, LoadOptional(bad, nil))

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("kind: forest\ntrees: [{nodes: [{value: 0.25}]}]"), 0o600))
	m := LoadOptional(good, nil)
	require.NotNil(t, m)
	p, err := m.Predict(features.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 0.25, p)
}

func TestConstant(t *testing.T) {
	p, err := Constant(0.95).Predict(features.Vector{})
	require.NoError(t, err)
	assert.Equal(t, 0.95, p)
}
