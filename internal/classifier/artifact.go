package classifier

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"warden/internal/features"
)

// Artifact is the serialized model document. YAML and JSON are both accepted.
type Artifact struct {
	Kind     string    `yaml:"kind"`
	Name     string    `yaml:"name"`
	Scaler   *Scaler   `yaml:"scaler,omitempty"`
	Weights  []float64 `yaml:"weights,omitempty"`
	Bias     float64   `yaml:"bias,omitempty"`
	Trees    []Tree    `yaml:"trees,omitempty"`
	Features int       `yaml:"features,omitempty"`
}

// Scaler standardises a vector as (x-mean)/scale before prediction.
type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// Tree is one decision tree; node 0 is the root.
type Tree struct {
	Nodes []Node `yaml:"nodes"`
}

// Node is a split (x[Feature] <= Threshold goes Left) or a leaf carrying the
// malicious-class probability in Value. Children are indexes into Tree.Nodes;
// a node whose children are both <= 0 is a leaf.
type Node struct {
	Feature   int     `yaml:"feature"`
	Threshold float64 `yaml:"threshold"`
	Left      int     `yaml:"left"`
	Right     int     `yaml:"right"`
	Value     float64 `yaml:"value"`
}

func (n Node) leaf() bool { return n.Left <= 0 && n.Right <= 0 }

// Load reads a model artifact from disk.
func Load(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a model artifact.
func Parse(data []byte) (Model, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if a.Features != 0 && a.Features != features.Size {
		return nil, fmt.Errorf("model expects %d features, extractor produces %d", a.Features, features.Size)
	}
	if err := a.Scaler.validate(); err != nil {
		return nil, err
	}

	name := a.Name
	switch strings.ToLower(a.Kind) {
	case "logistic":
		if name == "" {
			name = "logistic"
		}
		if len(a.Weights) != features.Size {
			return nil, fmt.Errorf("logistic model needs %d weights, got %d", features.Size, len(a.Weights))
		}
		m := &Logistic{name: name, Bias: a.Bias, scaler: a.Scaler}
		copy(m.Weights[:], a.Weights)
		return m, nil

	case "forest":
		if name == "" {
			name = "forest"
		}
		if len(a.Trees) == 0 {
			return nil, errors.New("forest model has no trees")
		}
		for i, t := range a.Trees {
			if err := t.validate(); err != nil {
				return nil, fmt.Errorf("tree %d: %w", i, err)
			}
		}
		return &Forest{name: name, Trees: a.Trees, scaler: a.Scaler}, nil

	case "":
		return nil, errors.New("model kind is missing")
	default:
		return nil, fmt.Errorf("unsupported model kind %q", a.Kind)
	}
}

func (s *Scaler) validate() error {
	if s == nil {
		return nil
	}
	if len(s.Mean) != features.Size || len(s.Scale) != features.Size {
		return fmt.Errorf("scaler needs %d mean and scale values", features.Size)
	}
	for i, v := range s.Scale {
		if v == 0 {
			return fmt.Errorf("scaler scale[%d] is zero", i)
		}
	}
	return nil
}

func (s *Scaler) apply(v features.Vector) features.Vector {
	if s == nil {
		return v
	}
	for i := range v {
		v[i] = (v[i] - s.Mean[i]) / s.Scale[i]
	}
	return v
}

func (t Tree) validate() error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.leaf() {
			if n.Value < 0 || n.Value > 1 {
				return fmt.Errorf("node %d: leaf value %v outside [0,1]", i, n.Value)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features.Size {
			return fmt.Errorf("node %d: feature index %d out of range", i, n.Feature)
		}
		if n.Left <= 0 || n.Right <= 0 || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// Logistic is a linear model with a sigmoid link.
type Logistic struct {
	name    string
	Weights [features.Size]float64
	Bias    float64
	scaler  *Scaler
}

// Predict returns sigmoid(w·x + b).
func (m *Logistic) Predict(v features.Vector) (float64, error) {
	v = m.scaler.apply(v)
	z := m.Bias
	for i, w := range m.Weights {
		z += w * v[i]
	}
	return clamp(m.name, 1/(1+math.Exp(-z)))
}

// Forest averages the leaf probabilities of its trees.
type Forest struct {
	name   string
	Trees  []Tree
	scaler *Scaler
}

// Predict returns the mean malicious-class probability across trees.
func (m *Forest) Predict(v features.Vector) (float64, error) {
	v = m.scaler.apply(v)
	sum := 0.0
	for i, t := range m.Trees {
		p, err := t.eval(v)
		if err != nil {
			return 0, &ClassifierError{Model: m.name, Err: fmt.Errorf("tree %d: %w", i, err)}
		}
		sum += p
	}
	return clamp(m.name, sum/float64(len(m.Trees)))
}

func (t Tree) eval(v features.Vector) (float64, error) {
	idx := 0
	// a path longer than the node count means a cycle
	for steps := 0; steps <= len(t.Nodes); steps++ {
		n := t.Nodes[idx]
		if n.leaf() {
			return n.Value, nil
		}
		if v[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return 0, errors.New("cycle detected")
}
