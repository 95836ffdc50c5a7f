package anomaly

import (
	"math"
	"testing"
)

func TestStatsEmpty(t *testing.T) {
	mean, stdDev := Stats(nil)
	if mean != 0 || stdDev != 0 {
		t.Fatalf("Stats(nil) = (%v, %v), want (0, 0)", mean, stdDev)
	}
	mean, stdDev = Stats([]float64{})
	if mean != 0 || stdDev != 0 {
		t.Fatalf("Stats([]) = (%v, %v), want (0, 0)", mean, stdDev)
	}
}

func TestStatsConstantSample(t *testing.T) {
	mean, stdDev := Stats([]float64{10, 10, 10})
	if mean != 10 || stdDev != 0 {
		t.Fatalf("Stats = (%v, %v), want (10, 0)", mean, stdDev)
	}
}

func TestStatsPopulationStdDev(t *testing.T) {
	// population (not sample) deviation: sqrt(mean of squared deviations)
	mean, stdDev := Stats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("mean = %v, want 5", mean)
	}
	if math.Abs(stdDev-2) > 1e-12 {
		t.Fatalf("stdDev = %v, want 2", stdDev)
	}
}

func TestZScore(t *testing.T) {
	if z := ZScore(12, 10, 1); z != 2 {
		t.Fatalf("z = %v, want 2", z)
	}
	// distance is absolute
	if z := ZScore(8, 10, 1); z != 2 {
		t.Fatalf("z = %v, want 2", z)
	}
}

func TestZScoreZeroVariance(t *testing.T) {
	for _, v := range []float64{-100, 0, 42, 1e9} {
		if z := ZScore(v, 10, 0); z != 0 {
			t.Fatalf("ZScore(%v, 10, 0) = %v, want 0", v, z)
		}
	}
}
