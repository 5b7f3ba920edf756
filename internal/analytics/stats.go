package analytics

import "math"

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range xs {
		total += v
	}
	return total / float64(len(xs))
}

// standardDeviation population standard deviation.
func standardDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := average(xs)
	var varianceSum float64
	for _, v := range xs {
		varianceSum += math.Pow(v-mean, 2)
	}
	return math.Sqrt(varianceSum / float64(len(xs)))
}

// linearRegression ordinary least squares of ys on xs. Returns the slope and the
// Pearson coefficient; both are 0 when either series has no variance.
func linearRegression(xs, ys []float64) (slope, r float64) {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0, 0
	}
	mx, my := average(xs), average(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, 0
	}
	slope = sxy / sxx
	if syy == 0 {
		return slope, 0
	}
	return slope, sxy / math.Sqrt(sxx*syy)
}

// pearson correlation coefficient of two equally sized series.
func pearson(xs, ys []float64) float64 {
	_, r := linearRegression(xs, ys)
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// confidenceFromR maps |r| onto the [0, 95] confidence scale.
func confidenceFromR(r float64) float64 {
	return math.Min(math.Abs(r)*100, 95)
}
