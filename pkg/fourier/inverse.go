package fourier

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/filters"
)

// SpectrumTimes returns the times (s) at which a causal impulse response
// has to be known to compute its spectrum at freqs (Hz) with filter f.
// The times are ordered by frequency, then by filter point.
func SpectrumTimes(freqs []float64, f *filters.Filter) ([]float64, error) {
	if err := checkSpectrum(freqs, f); err != nil {
		return nil, err
	}
	times := make([]float64, 0, len(freqs)*f.Len())
	for _, fr := range freqs {
		w := 2 * math.Pi * fr
		for _, b := range f.Base {
			times = append(times, b/w)
		}
	}
	return times, nil
}

// Spectrum computes F(w) = int_0^inf h(t) e^{-iwt} dt from the impulse
// response values h at SpectrumTimes(freqs, f). The real part uses the
// cosine and the imaginary part the sine weights.
func Spectrum(values, freqs []float64, f *filters.Filter) ([]complex128, error) {
	if err := checkSpectrum(freqs, f); err != nil {
		return nil, err
	}
	n := f.Len()
	if len(values) != n*len(freqs) {
		return nil, emerror.Configf("values", "%d values for %d frequencies and %d filter points", len(values), len(freqs), n)
	}
	out := make([]complex128, len(freqs))
	for i, fr := range freqs {
		w := 2 * math.Pi * fr
		h := values[i*n : (i+1)*n]
		out[i] = complex(floats.Dot(h, f.Cos)/w, -floats.Dot(h, f.Sin)/w)
	}
	return out, nil
}

func checkSpectrum(freqs []float64, f *filters.Filter) error {
	if f == nil || f.Kind != filters.Fourier {
		return emerror.Configf("fourier.filter", "a Fourier filter is required")
	}
	for _, fr := range freqs {
		if !(fr > 0) || math.IsInf(fr, 0) {
			return emerror.Configf("frequencies", "frequencies must be positive and finite, got %g", fr)
		}
	}
	return nil
}
