package quadrature

import (
	"math"
)

// J1Zeros returns the first n positive zeros of the Bessel function J1,
// refined by Newton iterations from the asymptotic guesses pi*(k+1/4).
func J1Zeros(n int) []float64 {
	zeros := make([]float64, n)
	for k := range zeros {
		x := math.Pi * (float64(k) + 1.25)
		for it := 0; it < 20; it++ {
			j1 := math.J1(x)
			// J1'(x) = J1(x)/x - J2(x)
			h := -j1 / (j1/x - math.Jn(2, x))
			x += h
			if math.Abs(h) < 8*2.220446049250313e-16*x {
				break
			}
		}
		zeros[k] = x
	}
	return zeros
}

// Intervals returns the interval boundaries used by the Hankel QWE:
// a tiny start followed by the first n zeros of J1.
func Intervals(n int) []float64 {
	return append([]float64{1e-20}, J1Zeros(n)...)
}
