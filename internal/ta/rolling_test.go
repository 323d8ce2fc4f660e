package ta

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMeanStd(t *testing.T) {
	mean, std := MeanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(mean, 5) {
		t.Errorf("mean = %v, want 5", mean)
	}
	if !almostEqual(std, 2) {
		t.Errorf("std = %v, want 2", std)
	}
}

func TestSMASeries(t *testing.T) {
	out := SMASeries([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
		t.Fatalf("expected NaN warmup, got %v", out[:2])
	}
	if !almostEqual(out[2], 2) || !almostEqual(out[4], 4) {
		t.Errorf("sma = %v", out)
	}
}

func TestROCSeries(t *testing.T) {
	out := ROCSeries([]float64{100, 110, 99}, 1)
	if !math.IsNaN(out[0]) {
		t.Fatalf("expected NaN at index 0, got %v", out[0])
	}
	if !almostEqual(out[1], 10) {
		t.Errorf("roc[1] = %v, want 10", out[1])
	}
	if !almostEqual(out[2], -10) {
		t.Errorf("roc[2] = %v, want -10", out[2])
	}
}

func TestCorrSeriesPerfect(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	out := CorrSeries(x, y, 5)
	if !almostEqual(out[4], 1) {
		t.Errorf("corr = %v, want 1", out[4])
	}
}

func TestCorrSeriesZeroVariance(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{7, 7, 7, 7, 7}
	out := CorrSeries(x, y, 5)
	if !math.IsNaN(out[4]) {
		t.Errorf("corr with flat reference = %v, want NaN", out[4])
	}
}

func TestBetaSeries(t *testing.T) {
	// x = 2*y exactly, so beta = cov(x,y)/var(y) = 2.
	y := []float64{0.01, -0.02, 0.03, 0.00, 0.015}
	x := make([]float64, len(y))
	for i := range y {
		x[i] = 2 * y[i]
	}
	out := BetaSeries(x, y, 5)
	if !almostEqual(out[4], 2) {
		t.Errorf("beta = %v, want 2", out[4])
	}
}

func TestBetaSeriesZeroVariance(t *testing.T) {
	x := []float64{1, 2, 3}
	y := []float64{5, 5, 5}
	out := BetaSeries(x, y, 3)
	if !math.IsNaN(out[2]) {
		t.Errorf("beta with flat reference = %v, want NaN", out[2])
	}
}

func TestFillSeriesInteriorLinear(t *testing.T) {
	nan := math.NaN()
	out := FillSeries([]float64{nan, 1, nan, nan, 4, nan})
	want := []float64{1, 1, 2, 3, 4, 4}
	for i := range want {
		if !almostEqual(out[i], want[i]) {
			t.Fatalf("fill[%d] = %v, want %v (full: %v)", i, out[i], want[i], out)
		}
	}
}

func TestFillSeriesBoundedByNeighbors(t *testing.T) {
	nan := math.NaN()
	out := FillSeries([]float64{2, nan, nan, 8})
	for i := 1; i <= 2; i++ {
		if out[i] < 2 || out[i] > 8 {
			t.Errorf("fill[%d] = %v out of neighbor bounds", i, out[i])
		}
	}
}

func TestFillSeriesAllNaN(t *testing.T) {
	nan := math.NaN()
	out := FillSeries([]float64{nan, nan})
	for i, v := range out {
		if !math.IsNaN(v) {
			t.Errorf("fill[%d] = %v, want NaN", i, v)
		}
	}
}
