// Package hankel integrates the wavenumber-domain kernel against Bessel
// functions to obtain space-domain fields.
//
// Three strategies are available, selected by Method.Kind:
//
//   - DLF: digital linear filter, optionally lagged over a shared offset
//     grid or splined over a wavenumber grid
//   - QWE: Gauss-Legendre quadrature between the zeros of J1 with Shanks
//     extrapolation of the partial sums
//   - Quad: adaptive Gauss-Legendre integration in ln(lambda)
package hankel

import (
	"fmt"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/filters"
)

// Kind selects the integration strategy
type Kind int

const (
	DLF Kind = iota
	QWE
	Quad
)

func (k Kind) String() string {
	switch k {
	case QWE:
		return "qwe"
	case Quad:
		return "quad"
	}
	return "dlf"
}

// ParseKind converts "dlf", "qwe" or "quad" into a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "dlf":
		return DLF, nil
	case "qwe":
		return QWE, nil
	case "quad":
		return Quad, nil
	}
	return DLF, emerror.Configf("hankel.method", "unknown method %q", s)
}

// Variant selects how DLF samples the kernel
type Variant int

const (
	// Standard evaluates the kernel at b_n/r for every distinct offset
	Standard Variant = iota

	// Lagged evaluates the kernel once on a grid shared by all offsets and
	// interpolates the results in ln(r)
	Lagged

	// Splined evaluates the kernel on a points-per-decade wavenumber grid
	// and interpolates the kernel in ln(lambda)
	Splined
)

func (v Variant) String() string {
	switch v {
	case Lagged:
		return "lagged"
	case Splined:
		return "splined"
	}
	return "standard"
}

// ParseVariant converts "standard", "lagged" or "splined" into a Variant
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "", "standard":
		return Standard, nil
	case "lagged":
		return Lagged, nil
	case "splined":
		return Splined, nil
	}
	return Standard, emerror.Configf("hankel.variant", "unknown DLF variant %q", s)
}

// Method is the closed set of Hankel strategies and their settings. Fields
// not used by Kind are ignored.
type Method struct {
	Kind Kind

	// DLF settings
	Filter    *filters.Filter
	Variant   Variant
	PtsPerDec float64 // wavenumber grid density of the splined variant

	// TailTolerance is the largest share of the absolute DLF sum that may be
	// carried by the outermost filter points before the offset is reported
	// as under-sampled.
	TailTolerance float64

	// QWE and Quad settings
	RTol   float64
	ATol   float64
	NQuad  int // Gauss-Legendre points per QWE interval
	MaxInt int // maximum number of QWE intervals
	Limit  int // maximum number of Quad subintervals

	// LambdaMin and LambdaMax bound the first Quad panel in 1/m. The range
	// is then extended a decade at a time until two consecutive panels are
	// below tolerance, at most MaxDecades times.
	LambdaMin  float64
	LambdaMax  float64
	MaxDecades int
}

// Defaults used for zero-valued settings
const (
	DefaultPtsPerDec     = 40
	DefaultTailTolerance = 1e-4
	DefaultRTol          = 1e-12
	DefaultATol          = 1e-30
	DefaultNQuad         = 51
	DefaultMaxInt        = 100
	DefaultLimit         = 500
	DefaultLambdaMin     = 1e-6
	DefaultLambdaMax     = 0.1
	DefaultMaxDecades    = 8
)

// NewDLF returns a standard DLF method using the named built-in filter
func NewDLF(name string) (Method, error) {
	f, err := filters.Get(name)
	if err != nil {
		return Method{}, err
	}
	if f.Kind != filters.Hankel {
		return Method{}, emerror.Configf("hankel.filter", "filter %q is not a Hankel filter", name)
	}
	return Method{Kind: DLF, Filter: f}.WithDefaults(), nil
}

// WithDefaults fills zero-valued settings with their defaults
func (m Method) WithDefaults() Method {
	if m.PtsPerDec == 0 {
		m.PtsPerDec = DefaultPtsPerDec
	}
	if m.TailTolerance == 0 {
		m.TailTolerance = DefaultTailTolerance
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
	if m.Limit == 0 {
		m.Limit = DefaultLimit
	}
	if m.LambdaMin == 0 {
		m.LambdaMin = DefaultLambdaMin
	}
	if m.LambdaMax == 0 {
		m.LambdaMax = DefaultLambdaMax
	}
	if m.MaxDecades == 0 {
		m.MaxDecades = DefaultMaxDecades
	}
	return m
}

// Validate checks the settings relevant to Kind
func (m Method) Validate() error {
	switch m.Kind {
	case DLF:
		if m.Filter == nil {
			return emerror.Configf("hankel.filter", "DLF requires a filter")
		}
		if m.Filter.Kind != filters.Hankel {
			return emerror.Configf("hankel.filter", "filter %q is not a Hankel filter", m.Filter.Name)
		}
		if err := m.Filter.Validate(); err != nil {
			return err
		}
		if m.Variant == Lagged && !m.Filter.Geometric(1e-6) {
			return emerror.Unsupportedf("hankel.lagged", "filter %q has a non-geometric base", m.Filter.Name)
		}
		if m.Variant == Splined && m.PtsPerDec <= 0 {
			return emerror.Configf("hankel.ptsPerDec", "must be positive, got %g", m.PtsPerDec)
		}
	case QWE:
		if m.NQuad < 1 || m.MaxInt < 3 {
			return emerror.Configf("hankel.qwe", "nquad must be >= 1 and maxint >= 3, got %d and %d", m.NQuad, m.MaxInt)
		}
	case Quad:
		if !(m.LambdaMin > 0) || !(m.LambdaMax > m.LambdaMin) {
			return emerror.Configf("hankel.quad", "invalid wavenumber range [%g, %g]", m.LambdaMin, m.LambdaMax)
		}
		if m.Limit < 1 {
			return emerror.Configf("hankel.quad", "limit must be positive, got %d", m.Limit)
		}
		if m.MaxDecades < 2 {
			return emerror.Configf("hankel.quad", "maxDecades must be at least 2, got %d", m.MaxDecades)
		}
	default:
		return emerror.Configf("hankel.method", "unknown method %d", m.Kind)
	}
	if m.Kind != DLF && (m.RTol <= 0 || m.ATol < 0) {
		return emerror.Configf("hankel.rtol", "tolerances must be positive")
	}
	return nil
}

func (m Method) String() string {
	if m.Kind == DLF && m.Filter != nil {
		return fmt.Sprintf("dlf(%s, %s)", m.Filter.Name, m.Variant)
	}
	return m.Kind.String()
}
