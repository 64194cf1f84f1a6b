package formulas

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// MaxAbs returns the largest absolute value in data, 0 for empty input.
func MaxAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	maxAbs := 0.0
	for _, v := range data {
		if a := abs(v); a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs
}

// MinMax returns the smallest and largest values in data.
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	return floats.Min(data), floats.Max(data)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
