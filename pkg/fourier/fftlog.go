package fourier

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"geoem1d/pkg/filters"
	"geoem1d/pkg/interpolation"
)

// fftlogGrid holds the FFTLog set-up: the time grid the transform lands on and
// the coefficients u_m of the Fourier terms m = 0..n/2
type fftlogGrid struct {
	times []float64
	u     []complex128
	dlnr  float64
	lnkr  float64
}

// lnMellin returns ln U(q+ia), where U(z) = 2^z Gamma((mu+1+z)/2) /
// Gamma((mu+1-z)/2) is the Mellin transform int x^z J_mu(x) dx
func lnMellin(mu, q, a float64) complex128 {
	z := complex(q, a)
	m1 := complex(mu+1, 0)
	return z*complex(math.Ln2, 0) + filters.LnGamma((m1+z)/2) - filters.LnGamma((m1-z)/2)
}

// fftlogFrequencies places an odd number of log-spaced angular frequencies
// over [10^AddDec[0]/tmax, 10^AddDec[1]/tmin]. The product kr of the grid
// centres is nudged so that the highest Fourier term has a real coefficient,
// which keeps the ringing of the discrete transform low.
func (p *Plan) fftlogFrequencies(tmin, tmax float64) []float64 {
	m := p.method
	lo := math.Log10(1/tmax) + m.AddDec[0]
	hi := math.Log10(1/tmin) + m.AddDec[1]
	n := int(math.Ceil((hi-lo)*m.PtsPerDec)) + 1
	if n < 5 {
		n = 5
	}
	if n%2 == 0 {
		n++
	}
	dlogr := (hi - lo) / float64(n-1)
	dlnr := dlogr * math.Ln10
	logrc := (lo + hi) / 2
	jc := float64(n-1) / 2
	mu := p.order()

	theta := imag(lnMellin(mu, m.Q, math.Pi/dlnr)) / math.Pi
	lnkr := (theta - math.Round(theta)) * dlnr

	g := &fftlogGrid{
		times: make([]float64, n),
		u:     make([]complex128, n/2+1),
		dlnr:  dlnr,
		lnkr:  lnkr,
	}
	period := float64(n) * dlnr
	for k := range g.u {
		a := 2 * math.Pi * float64(k) / period
		g.u[k] = cmplx.Exp(lnMellin(mu, m.Q, a) - complex(0, a*lnkr))
	}

	freqs := make([]float64, n)
	lnkc := lnkr - logrc*math.Ln10
	for j := range freqs {
		x := float64(j) - jc
		freqs[j] = math.Pow(10, logrc+x*dlogr) / (2 * math.Pi)
		g.times[j] = math.Exp(lnkc + x*dlnr)
	}
	p.lgrid = g
	return freqs
}

// order returns the Bessel order of the trigonometric kernel:
// sin x = sqrt(pi x/2) J_{1/2}(x) and cos x = sqrt(pi x/2) J_{-1/2}(x)
func (p *Plan) order() float64 {
	if p.method.Trig == Cosine {
		return -0.5
	}
	return 0.5
}

// fftlog evaluates (2/pi) int K(w) trig(wt) dw as the Hankel transform
// t int a(w) J_mu(wt) dw of a(w) = K(w) sqrt(w). The biased input
// a(w) (w/w_c)^-q is expanded in a Fourier series in ln(w) by one real FFT;
// every term transforms analytically, so a second FFT yields the result on
// the time grid, which is then splined in ln(t).
func (p *Plan) fftlog(values []complex128, res *Result) error {
	g := p.lgrid
	q := p.method.Q
	n := len(p.need)
	jc := float64(n-1) / 2

	a := make([]float64, n)
	for j, f := range p.need {
		w := 2 * math.Pi * f
		a[j] = p.kern(w, values[j]) * math.Sqrt(w) * math.Exp(-q*(float64(j)-jc)*g.dlnr)
	}

	ft := fourier.NewFFT(n)
	coeff := ft.Coefficients(nil, a)
	for k := range coeff {
		// one phase centres the series on the middle sample, the other
		// centres the output grid
		shift := cmplx.Exp(complex(0, 4*math.Pi*float64(k)*jc/float64(n)))
		coeff[k] = cmplx.Conj(coeff[k]*g.u[k]*shift) / complex(float64(n), 0)
	}
	out := ft.Sequence(nil, coeff)

	scale := math.Sqrt(2 / math.Pi)
	series := make([]float64, n)
	for j, t := range g.times {
		bias := math.Exp(-q * (g.lnkr + (float64(j)-jc)*g.dlnr))
		series[j] = scale * bias * out[j] / math.Sqrt(t)
	}

	at, err := interpolation.Real(g.times, series)
	if err != nil {
		return fmt.Errorf("fourier fftlog: %w", err)
	}
	for i, t := range p.times {
		res.Values[i] = at(t)
	}
	return nil
}
