// Package features turns raw file bytes into the fixed-length numeric vector
// consumed by the classifier.
package features

// Size is the number of values in a Vector.
const Size = 27

// HistogramBins is the number of byte-histogram buckets at the head of a Vector.
const HistogramBins = 16

// PESize is the number of PE-specific values at the tail of a Vector.
const PESize = 8

// Index positions inside a Vector.
const (
	HistStart      = 0
	Entropy        = HistStart + HistogramBins // 16
	PrintableRatio = Entropy + 1               // 17
	LogSize        = PrintableRatio + 1        // 18

	PEStart     = LogSize + 1 // 19
	Sections    = PEStart
	TextEntropy = PEStart + 1
	Imports     = PEStart + 2
	Exports     = PEStart + 3
	HasDebug    = PEStart + 4
	HasReloc    = PEStart + 5
	HasResource = PEStart + 6
	EntryPoint  = PEStart + 7
)

// compile-time check that the layout fills the vector exactly
var _ [Size - (EntryPoint + 1)]struct{}
var _ [(EntryPoint + 1) - Size]struct{}

// Vector is the feature vector for one scan target.
type Vector [Size]float64

// PEFeatures is the binary-format sub-vector.
type PEFeatures [PESize]float64

// Histogram returns the 16 normalised byte-histogram bins.
func (v Vector) Histogram() [HistogramBins]float64 {
	var h [HistogramBins]float64
	copy(h[:], v[HistStart:HistStart+HistogramBins])
	return h
}

// PE returns the binary-format sub-vector.
func (v Vector) PE() PEFeatures {
	var p PEFeatures
	copy(p[:], v[PEStart:])
	return p
}

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	return v == Vector{}
}

// Slice returns the vector as a plain slice, useful for generic math code.
func (v Vector) Slice() []float64 {
	out := make([]float64, Size)
	copy(out, v[:])
	return out
}
