// Package fourier converts frequency-domain responses into time-domain
// responses for impulse, switch-on and switch-off signals.
//
// A transform is used in two steps. NewPlan decides which frequencies the
// chosen strategy needs; the caller computes the frequency-domain response
// at exactly those frequencies, possibly in parallel, and then hands them
// to Plan.Transform. Transform is the join point of a forward run.
//
// With the e^{iwt} convention and a causal response h(t) with spectrum
// F(w), for t > 0
//
//	impulse:    h(t) = -2/pi int Im F(w) sin(wt) dw = 2/pi int Re F(w) cos(wt) dw
//	switch-on:  s(t) =  2/pi int Re F(w)/w sin(wt) dw
//	switch-off: o(t) = -2/pi int Im F(w)/w cos(wt) dw
package fourier

import (
	"fmt"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/filters"
	"geoem1d/pkg/hankel"
)

// Kind selects the transform strategy
type Kind int

const (
	DLF Kind = iota
	QWE
	FFT
	FFTLog
)

func (k Kind) String() string {
	switch k {
	case QWE:
		return "qwe"
	case FFT:
		return "fft"
	case FFTLog:
		return "fftlog"
	}
	return "dlf"
}

// ParseKind converts "dlf", "qwe", "fft" or "fftlog" into a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "dlf":
		return DLF, nil
	case "qwe":
		return QWE, nil
	case "fft":
		return FFT, nil
	case "fftlog":
		return FFTLog, nil
	}
	return DLF, emerror.Configf("fourier.method", "unknown method %q", s)
}

// Trig selects the sine or the cosine transform
type Trig int

const (
	Sine Trig = iota
	Cosine
)

func (t Trig) String() string {
	if t == Cosine {
		return "cos"
	}
	return "sin"
}

// ParseTrig converts "sin" or "cos" into a Trig
func ParseTrig(s string) (Trig, error) {
	switch s {
	case "", "sin", "sine":
		return Sine, nil
	case "cos", "cosine":
		return Cosine, nil
	}
	return Sine, emerror.Configf("fourier.trig", "unknown transform %q", s)
}

// Variant reuses the DLF sampling variants of the Hankel transform:
// standard, lagged over a shared time grid, or splined over a frequency grid.
type Variant = hankel.Variant

// Method is the closed set of Fourier strategies and their settings
type Method struct {
	Kind Kind
	Trig Trig

	// DLF settings
	Filter  *filters.Filter
	Variant Variant

	// PtsPerDec is the frequency grid density of the splined DLF, QWE and
	// FFTLog
	PtsPerDec float64

	// QWE settings
	RTol   float64
	ATol   float64
	NQuad  int
	MaxInt int

	// DiffQuad is the ratio between the first-interval contribution and the
	// extrapolated QWE result above which adaptive quadrature is used instead
	DiffQuad float64
	Limit    int

	// FFT settings: frequency step in Hz, number of computed frequencies and
	// padded length
	DF    float64
	NFreq int
	NTot  int

	// FFTLog settings: decades added below 1/tmax and above 1/tmin to the
	// angular frequency range, and the power-law bias q of the input
	AddDec [2]float64
	Q      float64
}

// Defaults used for zero-valued settings
const (
	DefaultPtsPerDec = 20
	DefaultRTol      = 1e-8
	DefaultATol      = 1e-20
	DefaultNQuad     = 21
	DefaultMaxInt    = 200
	DefaultDiffQuad  = 100
	DefaultLimit     = 1000
	DefaultDF        = 0.002
	DefaultNFreq     = 2048
)

// DefaultAddDec is the FFTLog range extension used when AddDec is zero
var DefaultAddDec = [2]float64{-2, 1}

// NewDLF returns a lagged DLF method using the named built-in filter
func NewDLF(name string, trig Trig) (Method, error) {
	f, err := filters.Get(name)
	if err != nil {
		return Method{}, err
	}
	if f.Kind != filters.Fourier {
		return Method{}, emerror.Configf("fourier.filter", "filter %q is not a Fourier filter", name)
	}
	return Method{Kind: DLF, Trig: trig, Filter: f, Variant: hankel.Lagged}.WithDefaults(), nil
}

// WithDefaults fills zero-valued settings with their defaults
func (m Method) WithDefaults() Method {
	if m.PtsPerDec == 0 {
		m.PtsPerDec = DefaultPtsPerDec
	}
	if m.RTol == 0 {
		m.RTol = DefaultRTol
	}
	if m.ATol == 0 {
		m.ATol = DefaultATol
	}
	if m.NQuad == 0 {
		m.NQuad = DefaultNQuad
	}
	if m.MaxInt == 0 {
		m.MaxInt = DefaultMaxInt
	}
	if m.DiffQuad == 0 {
		m.DiffQuad = DefaultDiffQuad
	}
	if m.Limit == 0 {
		m.Limit = DefaultLimit
	}
	if m.DF == 0 {
		m.DF = DefaultDF
	}
	if m.NFreq == 0 {
		m.NFreq = DefaultNFreq
	}
	if m.NTot < m.NFreq {
		m.NTot = m.NFreq
	}
	if m.AddDec == [2]float64{} {
		m.AddDec = DefaultAddDec
	}
	return m
}

// Validate checks the settings relevant to Kind
func (m Method) Validate() error {
	switch m.Kind {
	case DLF:
		if m.Filter == nil {
			return emerror.Configf("fourier.filter", "DLF requires a filter")
		}
		if m.Filter.Kind != filters.Fourier {
			return emerror.Configf("fourier.filter", "filter %q is not a Fourier filter", m.Filter.Name)
		}
		if err := m.Filter.Validate(); err != nil {
			return err
		}
		if m.Variant == hankel.Lagged && !m.Filter.Geometric(1e-6) {
			return emerror.Unsupportedf("fourier.lagged", "filter %q has a non-geometric base", m.Filter.Name)
		}
		if m.Variant == hankel.Splined && m.PtsPerDec <= 0 {
			return emerror.Configf("fourier.ptsPerDec", "must be positive, got %g", m.PtsPerDec)
		}
	case QWE:
		if m.NQuad < 1 || m.MaxInt < 3 || m.PtsPerDec <= 0 {
			return emerror.Configf("fourier.qwe", "nquad >= 1, maxint >= 3 and ptsPerDec > 0 are required")
		}
		if m.RTol <= 0 || m.ATol < 0 {
			return emerror.Configf("fourier.rtol", "tolerances must be positive")
		}
	case FFT:
		if !(m.DF > 0) || m.NFreq < 2 {
			return emerror.Configf("fourier.fft", "df must be positive and nfreq >= 2, got %g and %d", m.DF, m.NFreq)
		}
	case FFTLog:
		if m.PtsPerDec <= 0 {
			return emerror.Configf("fourier.ptsPerDec", "must be positive, got %g", m.PtsPerDec)
		}
		if m.AddDec[0] > 0 || m.AddDec[1] < 0 {
			return emerror.Configf("fourier.addDec", "expected a non-positive lower and non-negative upper extension, got %v", m.AddDec)
		}
		// the Mellin transform of J_{-1/2} exists for -1/2 < q < 1/2 only
		if !(m.Q > -0.5 && m.Q < 0.5) {
			return emerror.Configf("fourier.q", "bias must lie in (-0.5, 0.5), got %g", m.Q)
		}
	default:
		return emerror.Configf("fourier.method", "unknown method %d", m.Kind)
	}
	return nil
}

func (m Method) String() string {
	switch m.Kind {
	case DLF:
		if m.Filter != nil {
			return fmt.Sprintf("dlf(%s, %s, %s)", m.Filter.Name, m.Trig, m.Variant)
		}
	case QWE:
		return fmt.Sprintf("qwe(%s)", m.Trig)
	case FFTLog:
		return fmt.Sprintf("fftlog(%s, q=%g)", m.Trig, m.Q)
	}
	return m.Kind.String()
}
