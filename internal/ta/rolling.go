package ta

import "math"

// Rolling-window series helpers. All series functions return a slice the
// same length as the input with NaN where the trailing window is not yet
// full; NaN inputs poison the windows they fall in.

func MeanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func SMASeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		mean, _ := MeanStd(values[i-period+1 : i+1])
		out[i] = mean
	}
	return out
}

// StdSeries is the rolling sample standard deviation (n-1 denominator),
// matching how spreadsheet-style tooling computes Bollinger bands.
func StdSeries(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 1 {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean, _ := MeanStd(window)
		var variance float64
		for _, v := range window {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(period-1))
	}
	return out
}

// ROCSeries is the k-day rate of change in percent: (v/v[-k] - 1) * 100.
func ROCSeries(values []float64, k int) []float64 {
	out := nanSeries(len(values))
	if k <= 0 {
		return out
	}
	for i := k; i < len(values); i++ {
		prev := values[i-k]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(values[i]) {
			continue
		}
		out[i] = (values[i]/prev - 1) * 100
	}
	return out
}

// PctChangeSeries is the 1-step fractional change.
func PctChangeSeries(values []float64) []float64 {
	out := nanSeries(len(values))
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(values[i]) {
			continue
		}
		out[i] = values[i]/prev - 1
	}
	return out
}

// CorrSeries is the rolling Pearson correlation of x and y over period.
// Windows containing NaN, or with zero variance on either side, stay NaN.
func CorrSeries(x, y []float64, period int) []float64 {
	out := nanSeries(len(x))
	if len(y) != len(x) || period <= 1 {
		return out
	}
	for i := period - 1; i < len(x); i++ {
		wx := x[i-period+1 : i+1]
		wy := y[i-period+1 : i+1]
		if anyNaN(wx) || anyNaN(wy) {
			continue
		}
		mx, _ := MeanStd(wx)
		my, _ := MeanStd(wy)
		var cov, vx, vy float64
		for j := range wx {
			dx := wx[j] - mx
			dy := wy[j] - my
			cov += dx * dy
			vx += dx * dx
			vy += dy * dy
		}
		if vx == 0 || vy == 0 {
			continue
		}
		out[i] = cov / math.Sqrt(vx*vy)
	}
	return out
}

// BetaSeries is the rolling beta of x against y: cov(x,y)/var(y) over
// period. Zero reference variance leaves NaN.
func BetaSeries(x, y []float64, period int) []float64 {
	out := nanSeries(len(x))
	if len(y) != len(x) || period <= 1 {
		return out
	}
	for i := period - 1; i < len(x); i++ {
		wx := x[i-period+1 : i+1]
		wy := y[i-period+1 : i+1]
		if anyNaN(wx) || anyNaN(wy) {
			continue
		}
		mx, _ := MeanStd(wx)
		my, _ := MeanStd(wy)
		var cov, vy float64
		for j := range wx {
			cov += (wx[j] - mx) * (wy[j] - my)
			vy += (wy[j] - my) * (wy[j] - my)
		}
		if vy == 0 {
			continue
		}
		out[i] = cov / vy
	}
	return out
}

// FillSeries fills NaN gaps in place order: forward-fill, then linear
// interpolation for interior runs, then backward-fill for a leading run.
// A series with no finite value at all is returned unchanged.
func FillSeries(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)

	first := -1
	for i, v := range out {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return out
	}

	// Interior runs: bounded on both sides, interpolate linearly.
	// Runs after the last finite value forward-fill from it.
	last := first
	for i := first + 1; i < len(out); i++ {
		if math.IsNaN(out[i]) {
			continue
		}
		if i-last > 1 {
			step := (out[i] - out[last]) / float64(i-last)
			for j := last + 1; j < i; j++ {
				out[j] = out[last] + step*float64(j-last)
			}
		}
		last = i
	}
	for i := last + 1; i < len(out); i++ {
		out[i] = out[last]
	}
	for i := 0; i < first; i++ {
		out[i] = out[first]
	}
	return out
}

func anyNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
