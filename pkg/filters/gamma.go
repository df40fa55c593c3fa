package filters

import (
	"math"
	"math/cmplx"
)

// Stirling series coefficients B_2k / (2k (2k-1))
var stirling = []float64{
	1.0 / 12,
	-1.0 / 360,
	1.0 / 1260,
	-1.0 / 1680,
	1.0 / 1188,
	-691.0 / 360360,
	1.0 / 156,
}

// LnGamma returns the logarithm of the gamma function for Re(z) >= 0, z != 0.
// The argument is shifted to Re(z) >= 10 with the recurrence and the
// Stirling series is summed there.
func LnGamma(z complex128) complex128 {
	var shift complex128
	for real(z) < 10 {
		shift += cmplx.Log(z)
		z++
	}
	zi := 1 / z
	zi2 := zi * zi
	var series complex128
	pow := zi
	for _, c := range stirling {
		series += complex(c, 0) * pow
		pow *= zi2
	}
	res := (z-0.5)*cmplx.Log(z) - z + complex(0.5*math.Log(2*math.Pi), 0) + series
	return res - shift
}

// lnCosh returns log(cosh(x)) for x >= 0 without overflow
func lnCosh(x float64) float64 {
	return x + math.Log1p(math.Exp(-2*x)) - math.Ln2
}

// lnSinh returns log(sinh(x)) for x > 0 without overflow
func lnSinh(x float64) float64 {
	return x + math.Log(-math.Expm1(-2*x)) - math.Ln2
}
