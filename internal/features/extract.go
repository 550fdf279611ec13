package features

import (
	"bytes"
	"math"
)

// peMagic is the DOS/PE "MZ" marker.
var peMagic = []byte("MZ")

// Extract computes the feature vector for data. It never fails: empty input
// yields the zero vector and unparsable PE headers yield a zero PE sub-vector.
func Extract(data []byte) Vector {
	var v Vector
	n := len(data)
	if n == 0 {
		return v
	}

	// 1. Byte histogram (16 bins of width 16, normalised to sum 1)
	var counts [256]int
	printable := 0
	for _, b := range data {
		counts[b]++
		if b >= 32 && b <= 126 {
			printable++
		}
	}
	total := float64(n)
	for b, c := range counts {
		v[HistStart+b>>4] += float64(c)
	}
	for i := 0; i < HistogramBins; i++ {
		v[HistStart+i] /= total
	}

	// 2. Entropy, 3. printable ratio, 4. log size
	v[Entropy] = entropyFromCounts(counts[:], total)
	v[PrintableRatio] = float64(printable) / total
	v[LogSize] = math.Log1p(total)

	// 5. PE header features
	if bytes.HasPrefix(data, peMagic) {
		pe := ExtractPE(data)
		copy(v[PEStart:], pe[:])
	}

	return v
}

// ShannonEntropy returns the base-2 Shannon entropy of data in bits per byte.
func ShannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	return entropyFromCounts(counts[:], float64(len(data)))
}

func entropyFromCounts(counts []int, total float64) float64 {
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	// -0 for a single-symbol buffer
	if h == 0 {
		return 0
	}
	return h
}
