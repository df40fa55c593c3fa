// Package filters provides the digital linear filters used by the Hankel and
// Fourier transforms.
//
// A filter approximates
//
//	F(r) = int_0^inf f(x) K(x r) dx ~ sum_n f(b_n / r) w_n / r
//
// with geometrically spaced abscissae b_n. Hankel filters carry J0 and J1
// weights, Fourier filters sine and cosine weights. Filters are read-only
// after construction and safe to share between goroutines.
package filters

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"geoem1d/pkg/emerror"
)

// Kind distinguishes spatial from temporal filters
type Kind int

const (
	Hankel Kind = iota
	Fourier
)

func (k Kind) String() string {
	if k == Fourier {
		return "fourier"
	}
	return "hankel"
}

// ParseKind converts "hankel" or "fourier" into a Kind
func ParseKind(s string) (Kind, error) {
	switch s {
	case "hankel":
		return Hankel, nil
	case "fourier":
		return Fourier, nil
	}
	return Hankel, fmt.Errorf("unknown filter kind %q", s)
}

// Filter is a named table of base points and weights
type Filter struct {
	Name string
	Kind Kind

	// Base holds the abscissae b_n in increasing order
	Base []float64

	// J0 and J1 are the Hankel weights
	J0, J1 []float64

	// Sin and Cos are the Fourier weights
	Sin, Cos []float64

	// Factor is the ratio between consecutive base points
	Factor float64
}

// Len returns the number of filter points
func (f *Filter) Len() int {
	return len(f.Base)
}

// Spacing returns the logarithmic spacing ln(Factor)
func (f *Filter) Spacing() float64 {
	return math.Log(f.Factor)
}

// Weights returns the two weight columns of the filter
func (f *Filter) Weights() (a, b []float64) {
	if f.Kind == Fourier {
		return f.Sin, f.Cos
	}
	return f.J0, f.J1
}

// Validate checks that the table is usable for DLF and lagged convolution
func (f *Filter) Validate() error {
	n := len(f.Base)
	if n < 2 {
		return emerror.Configf("filter "+f.Name, "needs at least two base points, got %d", n)
	}
	a, b := f.Weights()
	if len(a) != n || len(b) != n {
		return emerror.Configf("filter "+f.Name, "weight columns must have %d entries", n)
	}
	for i := 1; i < n; i++ {
		if !(f.Base[i] > f.Base[i-1]) || f.Base[0] <= 0 {
			return emerror.Configf("filter "+f.Name, "base must be positive and strictly increasing")
		}
	}
	if f.Factor <= 1 {
		return emerror.Configf("filter "+f.Name, "factor must exceed 1, got %g", f.Factor)
	}
	return nil
}

// Geometric reports whether the base is geometric with the recorded factor
// to within tol. Lagged convolution requires it.
func (f *Filter) Geometric(tol float64) bool {
	lf := math.Log(f.Factor)
	for i := 1; i < len(f.Base); i++ {
		if math.Abs(math.Log(f.Base[i]/f.Base[i-1])-lf) > tol*lf {
			return false
		}
	}
	return true
}

// Built-in filter names
const (
	HankelFine  = "hankel-fine"
	HankelFast  = "hankel-fast"
	FourierFine = "fourier-fine"
	FourierFast = "fourier-fast"
)

// builtin lists the designs of the built-in filters
var builtin = map[string]Design{
	HankelFine:  {Name: HankelFine, Kind: Hankel, PointsPerDecade: 30, SMin: -27, SMax: 10, PassFraction: 0.55},
	HankelFast:  {Name: HankelFast, Kind: Hankel, PointsPerDecade: 15, SMin: -20, SMax: 9, PassFraction: 0.55},
	FourierFine: {Name: FourierFine, Kind: Fourier, PointsPerDecade: 30, SMin: -27, SMax: 10, PassFraction: 0.55},
	FourierFast: {Name: FourierFast, Kind: Fourier, PointsPerDecade: 15, SMin: -20, SMax: 9, PassFraction: 0.55},
}

type cached struct {
	once sync.Once
	f    *Filter
	err  error
}

var cache = func() map[string]*cached {
	m := make(map[string]*cached, len(builtin))
	for name := range builtin {
		m[name] = &cached{}
	}
	return m
}()

// Get returns the built-in filter with the given name. The filter is designed
// on first use and shared afterwards.
func Get(name string) (*Filter, error) {
	c, ok := cache[name]
	if !ok {
		return nil, emerror.Configf("filter", "unknown filter %q (known: %v)", name, Names())
	}
	c.once.Do(func() {
		c.f, c.err = builtin[name].Build()
	})
	return c.f, c.err
}

// Names returns the built-in filter names in sorted order
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the design of a built-in filter
func Lookup(name string) (Design, bool) {
	d, ok := builtin[name]
	return d, ok
}
