// Package vector holds the float32 vector math shared by the encoder and the index.
package vector

import (
	"errors"
	"math"
)

// ErrZeroVector is returned when a vector has no direction to normalize.
var ErrZeroVector = errors.New("zero vector")

// unitTolerance bounds how far a unit vector's norm may drift from 1.
const unitTolerance = 1e-4

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a copy of v scaled to unit length.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrZeroVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// IsUnit reports whether v has length 1 within float32 rounding.
func IsUnit(v []float32) bool {
	return math.Abs(Norm(v)-1) <= unitTolerance
}

// Dot returns the inner product of a and b; mismatched lengths yield 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
