package fourier

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"geoem1d/internal/models"
	"geoem1d/pkg/emerror"
	"geoem1d/pkg/hankel"
	"geoem1d/pkg/quadrature"
)

// Plan is a prepared transform for one set of output times
type Plan struct {
	method Method
	signal models.Signal
	kern   kernelFunc
	times  []float64

	// need holds the frequencies (Hz) the strategy evaluates, supplied the
	// frequencies the caller computed at when they differ
	need     []float64
	supplied []float64

	// lagged DLF time grid
	tgrid []float64

	lgrid *fftlogGrid
}

// Result is the output of a transform. Values has one entry per output time.
// An entry that did not converge keeps its last estimate and has a non-nil
// error at the same index.
type Result struct {
	Values   []float64
	Errors   []error
	Warnings []error

	// Interpolated is set when the frequency-domain response was resampled
	// through a spline in ln(f): from a caller-supplied frequency set, or on
	// the sampling grid of QWE and the splined DLF
	Interpolated bool

	// Fallbacks counts the QWE times that used adaptive quadrature
	Fallbacks int
}

// NewPlan prepares the transform of a response into the given times (s).
// When supplied is non-empty the caller computes the response at those
// frequencies instead of the ones the strategy needs, and Transform
// interpolates.
func NewPlan(times []float64, sig models.Signal, m Method, supplied []float64) (*Plan, error) {
	m = m.WithDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !sig.TimeDomain() {
		return nil, emerror.Configf("signal", "a time-domain signal is required, got %s", sig)
	}
	if len(times) == 0 {
		return nil, emerror.Configf("times", "no output times")
	}
	for _, t := range times {
		if !(t > 0) || math.IsInf(t, 0) {
			return nil, emerror.Configf("times", "times must be positive and finite, got %g", t)
		}
	}
	for _, f := range supplied {
		if !(f > 0) || math.IsInf(f, 0) {
			return nil, emerror.Configf("frequencies", "frequencies must be positive and finite, got %g", f)
		}
	}
	if len(supplied) == 1 {
		return nil, emerror.Configf("frequencies", "at least two supplied frequencies are needed")
	}

	p := &Plan{method: m, signal: sig, times: append([]float64(nil), times...)}
	if m.Kind != FFT {
		k, err := integrand(sig, m.Trig)
		if err != nil {
			return nil, err
		}
		p.kern = k
	}

	tmin, tmax := floats.Min(times), floats.Max(times)
	switch m.Kind {
	case DLF:
		p.need = p.dlfFrequencies(tmin, tmax)
	case QWE:
		p.need = p.qweFrequencies(tmin, tmax)
	case FFTLog:
		p.need = p.fftlogFrequencies(tmin, tmax)
	case FFT:
		n := 2 * m.NTot
		if tmax > 1/(2*m.DF) {
			return nil, emerror.Configf("fourier.df",
				"time %g s exceeds the FFT window 1/(2 df) = %g s", tmax, 1/(2*m.DF))
		}
		if tmin < 1/(float64(n)*m.DF) {
			return nil, emerror.Configf("fourier.ntot",
				"time %g s is below the FFT resolution 1/(2 ntot df) = %g s", tmin, 1/(float64(n)*m.DF))
		}
		p.need = make([]float64, m.NFreq)
		for k := range p.need {
			p.need[k] = float64(k+1) * m.DF
		}
	}

	if len(supplied) > 0 {
		p.supplied = append([]float64(nil), supplied...)
		sort.Float64s(p.supplied)
	}
	return p, nil
}

// RequiredFrequencies returns the frequencies (Hz) at which the caller has
// to compute the response before calling Transform
func (p *Plan) RequiredFrequencies() []float64 {
	if p.supplied != nil {
		return p.supplied
	}
	return p.need
}

// Interpolated reports whether Transform resamples the response through a
// spline instead of using the computed values directly
func (p *Plan) Interpolated() bool {
	return p.supplied != nil || p.method.Kind == QWE ||
		(p.method.Kind == DLF && p.method.Variant == hankel.Splined)
}

// Supplied reports whether the response is computed at a caller-supplied
// frequency set
func (p *Plan) Supplied() bool {
	return p.supplied != nil
}

// Times returns the output times
func (p *Plan) Times() []float64 {
	return p.times
}

// Method returns the effective method with defaults applied
func (p *Plan) Method() Method {
	return p.method
}

// dlfFrequencies returns the angular frequencies b_n/t as Hz. The lagged
// variant uses a log time grid with the filter spacing so consecutive times
// share all but one frequency. The splined variant samples a log grid.
func (p *Plan) dlfFrequencies(tmin, tmax float64) []float64 {
	f := p.method.Filter
	n := f.Len()
	switch p.method.Variant {
	case hankel.Lagged:
		delta := f.Spacing()
		nt := int(math.Ceil(math.Log(tmax/tmin)/delta)) + 1
		if len(distinct(p.times)) > 1 && nt < 4 {
			nt = 4
		}
		p.tgrid = make([]float64, nt)
		for k := range p.tgrid {
			p.tgrid[k] = tmax * math.Exp(-float64(k)*delta)
		}
		freqs := make([]float64, n+nt-1)
		for m := range freqs {
			freqs[m] = f.Base[0] * math.Exp(float64(m)*delta) / tmax / (2 * math.Pi)
		}
		return freqs
	case hankel.Splined:
		return logGrid(f.Base[0]/tmax/(2*math.Pi), f.Base[n-1]/tmin/(2*math.Pi), p.method.PtsPerDec)
	}
	freqs := make([]float64, 0, n*len(p.times))
	for _, t := range p.times {
		for _, b := range f.Base {
			freqs = append(freqs, b/t/(2*math.Pi))
		}
	}
	return freqs
}

// qweFrequencies covers the first quadrature node of the longest time up to
// the last interval end of the shortest time
func (p *Plan) qweFrequencies(tmin, tmax float64) []float64 {
	xint := p.intervals()
	x, _ := quadrature.Legendre(p.method.NQuad).Map(xint[0], xint[1])
	lo := floats.Min(x) / tmax / (2 * math.Pi)
	hi := xint[len(xint)-1] / tmin / (2 * math.Pi)
	return logGrid(lo, hi, p.method.PtsPerDec)
}

// intervals returns the half-period boundaries in omega*t: multiples of pi
// for the sine and odd multiples of pi/2 for the cosine transform
func (p *Plan) intervals() []float64 {
	xs := make([]float64, p.method.MaxInt+1)
	xs[0] = 1e-20
	for k := 1; k < len(xs); k++ {
		if p.method.Trig == Cosine {
			xs[k] = (float64(k) - 0.5) * math.Pi
		} else {
			xs[k] = float64(k) * math.Pi
		}
	}
	return xs
}

// Transform converts the response values, given at RequiredFrequencies,
// into the time domain
func (p *Plan) Transform(values []complex128) (*Result, error) {
	freqs := p.RequiredFrequencies()
	if len(values) != len(freqs) {
		return nil, emerror.Configf("values", "%d values for %d frequencies", len(values), len(freqs))
	}

	res := &Result{
		Values:       make([]float64, len(p.times)),
		Errors:       make([]error, len(p.times)),
		Interpolated: p.Interpolated(),
	}

	need := values
	var ip *Interpolator
	if p.supplied != nil || p.method.Kind == QWE {
		var err error
		ip, err = NewInterpolator(freqs, values)
		if err != nil {
			return nil, err
		}
		if p.supplied != nil {
			lo, hi := ip.Band()
			nlo, nhi := floats.Min(p.need), floats.Max(p.need)
			if nlo < lo || nhi > hi {
				res.Warnings = append(res.Warnings, &emerror.NumericalInstabilityWarning{
					Where: "fourier interpolation",
					Detail: fmt.Sprintf("required band %.3g-%.3g Hz extends beyond the supplied band %.3g-%.3g Hz",
						nlo, nhi, lo, hi),
				})
			}
			need = make([]complex128, len(p.need))
			for i, f := range p.need {
				need[i] = ip.At(f)
			}
		}
	}

	var err error
	switch p.method.Kind {
	case DLF:
		err = p.dlf(need, res)
	case QWE:
		p.qwe(ip, res)
	case FFTLog:
		err = p.fftlog(need, res)
	case FFT:
		err = p.fft(need, res)
	}
	if err != nil {
		return nil, err
	}

	for i, v := range res.Values {
		if (math.IsNaN(v) || math.IsInf(v, 0)) && res.Errors[i] == nil {
			res.Errors[i] = &emerror.NumericalInstabilityWarning{
				Where:  fmt.Sprintf("fourier %s at t = %g s", p.method, p.times[i]),
				Detail: "non-finite value",
			}
		}
	}
	return res, nil
}

// logGrid returns log-spaced points from lo to hi at ppd points per decade
func logGrid(lo, hi, ppd float64) []float64 {
	n := int(math.Ceil(math.Log10(hi/lo)*ppd)) + 1
	if n < 4 {
		n = 4
	}
	return floats.LogSpan(make([]float64, n), lo, hi)
}

func distinct(xs []float64) []float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}
