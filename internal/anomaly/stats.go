package anomaly

import "math"

// Stats returns the mean and population standard deviation of values.
// An empty sample yields (0, 0).
func Stats(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// ZScore returns how many standard deviations value lies from mean, as an
// absolute distance. A zero-variance baseline yields 0: it cannot flag
// anything statistically, only the extreme-value rule can.
func ZScore(value, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return math.Abs((value - mean) / stdDev)
}
