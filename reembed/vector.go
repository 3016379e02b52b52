package reembed

import "math"

// NormalizeVector returns v scaled to unit length.
// A zero vector stays zero. The input is not modified.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}

	result := make([]float32, len(v))
	if sumSquares == 0 {
		return result
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i, x := range v {
		result[i] = float32(float64(x) * inv)
	}
	return result
}
