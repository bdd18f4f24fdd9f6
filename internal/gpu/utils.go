package gpu

import "math"

// Float32ToFloat64 converts a slice of float32 to float64
func Float32ToFloat64(input []float32) []float64 {
	output := make([]float64, len(input))
	for i, v := range input {
		output[i] = float64(v)
	}
	return output
}

// MaxAbsDiff returns the largest |a[i]-b[i]|. Equal elements, including
// matching infinities, and NaN on both sides count as no difference. Slices of
// different length, or a NaN on one side only, compare as +Inf.
func MaxAbsDiff(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var maxDiff float64
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		x, y := float64(a[i]), float64(b[i])
		if math.IsNaN(x) && math.IsNaN(y) {
			continue
		}
		d := math.Abs(x - y)
		if math.IsNaN(d) {
			return math.Inf(1)
		}
		if d > maxDiff {
			maxDiff = d
		}
	}
	return maxDiff
}
