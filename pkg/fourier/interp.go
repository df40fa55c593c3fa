package fourier

import (
	"fmt"
	"math"

	"geoem1d/internal/models"
	"geoem1d/pkg/emerror"
	"geoem1d/pkg/interpolation"
)

// kernelFunc maps a frequency-domain value at angular frequency w to the
// real integrand of the sine or cosine transform
type kernelFunc func(w float64, f complex128) float64

// integrand returns the transform integrand for a signal. The switch-on
// response needs the sine and the switch-off response the cosine transform.
func integrand(sig models.Signal, trig Trig) (kernelFunc, error) {
	switch {
	case sig == models.Impulse && trig == Sine:
		return func(_ float64, f complex128) float64 { return -imag(f) }, nil
	case sig == models.Impulse && trig == Cosine:
		return func(_ float64, f complex128) float64 { return real(f) }, nil
	case sig == models.SwitchOn && trig == Sine:
		return func(w float64, f complex128) float64 { return real(f) / w }, nil
	case sig == models.SwitchOff && trig == Cosine:
		return func(w float64, f complex128) float64 { return -imag(f) / w }, nil
	case sig == models.SwitchOn || sig == models.SwitchOff:
		return nil, emerror.Unsupportedf("fourier.trig", "the %s response requires the %s transform",
			sig, map[models.Signal]Trig{models.SwitchOn: Sine, models.SwitchOff: Cosine}[sig])
	}
	return nil, emerror.Configf("signal", "signal %s is not a time-domain signal", sig)
}

// Interpolator evaluates a frequency-domain response at arbitrary
// frequencies from samples at a caller-chosen set. Inside the sampled band
// the real and imaginary parts are cubic splines in ln(f). Below the band
// the diffusive low-frequency limit is used: the real part stays at its
// lowest sampled value and the imaginary part decays linearly in f. Above
// the band the response is taken as zero.
type Interpolator struct {
	spline     *interpolation.LogComplex
	fmin, fmax float64
	low        complex128
}

// NewInterpolator fits the response values sampled at freqs (Hz)
func NewInterpolator(freqs []float64, values []complex128) (*Interpolator, error) {
	if len(freqs) != len(values) {
		return nil, emerror.Configf("frequencies", "%d frequencies for %d values", len(freqs), len(values))
	}
	if len(freqs) < 2 {
		return nil, emerror.Configf("frequencies", "at least two frequencies are needed for interpolation")
	}
	for i, f := range values {
		if math.IsNaN(real(f)) || math.IsNaN(imag(f)) {
			return nil, &emerror.NumericalInstabilityWarning{
				Where:  fmt.Sprintf("frequency %g Hz", freqs[i]),
				Detail: "cannot interpolate a non-finite response",
			}
		}
	}
	sp, err := interpolation.NewLogComplex(freqs, values)
	if err != nil {
		return nil, emerror.Configf("frequencies", "%v", err)
	}
	lo, hi := sp.Range()
	ip := &Interpolator{spline: sp, fmin: math.Exp(lo), fmax: math.Exp(hi)}
	ip.low = sp.At(ip.fmin)
	return ip, nil
}

// At returns the response at frequency f in Hz
func (ip *Interpolator) At(f float64) complex128 {
	switch {
	case f < ip.fmin:
		return complex(real(ip.low), imag(ip.low)*f/ip.fmin)
	case f > ip.fmax:
		return 0
	}
	return ip.spline.At(f)
}

// Band returns the sampled frequency range
func (ip *Interpolator) Band() (fmin, fmax float64) {
	return ip.fmin, ip.fmax
}
