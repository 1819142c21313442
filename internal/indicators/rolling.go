package indicators

import "math"

// NaN marks an undefined indicator value.
var NaN = math.NaN()

// Defined reports whether v holds a value.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = NaN
	}
	return out
}

// trailing returns values[i-n:i] when the window is fully populated with
// defined values.
func trailing(values []float64, i, n int) ([]float64, bool) {
	if n <= 0 || i < n || i > len(values) {
		return nil, false
	}
	w := values[i-n : i]
	for _, v := range w {
		if !Defined(v) {
			return nil, false
		}
	}
	return w, true
}

// RollingMean returns, for every index i, the mean of the n values preceding i.
// Index i is undefined until i >= n and all n values are defined.
func RollingMean(values []float64, n int) []float64 {
	out := undefinedSeries(len(values))
	for i := range values {
		w, ok := trailing(values, i, n)
		if !ok {
			continue
		}
		out[i] = mean(w)
	}
	return out
}

// RollingStd is the population standard deviation counterpart of RollingMean.
func RollingStd(values []float64, n int) []float64 {
	out := undefinedSeries(len(values))
	for i := range values {
		w, ok := trailing(values, i, n)
		if !ok {
			continue
		}
		out[i] = stddev(w)
	}
	return out
}

// Diff returns the first difference of values with out[0] = 0.
func Diff(values []float64) []float64 {
	out := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		out[i] = values[i] - values[i-1]
	}
	return out
}

// Scale multiplies every defined value by k.
func Scale(values []float64, k float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * k
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
