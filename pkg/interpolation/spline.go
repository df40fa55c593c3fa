// Package interpolation provides the one-dimensional interpolators used by
// the transforms: cubic splines over complex samples, typically in a
// logarithmic abscissa.
package interpolation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// predictor is satisfied by the gonum interpolators used here
type predictor interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

// maxNotAKnot is the largest sample count fitted with the not-a-knot
// spline. Its fit solves a dense system, the natural spline used above this
// size solves a tridiagonal one.
const maxNotAKnot = 256

// newPredictor returns a cubic spline, or a linear interpolator when there
// are too few points for the spline.
func newPredictor(n int) predictor {
	switch {
	case n < 3:
		return &interp.PiecewiseLinear{}
	case n > maxNotAKnot:
		return &interp.NaturalCubic{}
	}
	return &interp.NotAKnotCubic{}
}

// Complex interpolates complex samples by fitting the real and imaginary
// parts separately. Outside the sampled range the end values are held.
type Complex struct {
	re, im predictor
	lo, hi float64
	single complex128
	n      int
}

// NewComplex fits a spline through (xs[i], ys[i]). xs need not be sorted
// but must not contain duplicates.
func NewComplex(xs []float64, ys []complex128) (*Complex, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("interpolation: %d abscissae for %d values", len(xs), len(ys))
	}
	n := len(xs)
	if n == 0 {
		return nil, fmt.Errorf("interpolation: no samples")
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	x := make([]float64, n)
	re := make([]float64, n)
	im := make([]float64, n)
	for i, j := range idx {
		x[i] = xs[j]
		re[i] = real(ys[j])
		im[i] = imag(ys[j])
		if i > 0 && !(x[i] > x[i-1]) {
			return nil, fmt.Errorf("interpolation: duplicate abscissa %g", x[i])
		}
		if math.IsNaN(x[i]) {
			return nil, fmt.Errorf("interpolation: NaN abscissa")
		}
	}

	c := &Complex{lo: x[0], hi: x[n-1], n: n}
	if n == 1 {
		c.single = ys[0]
		return c, nil
	}
	c.re = newPredictor(n)
	c.im = newPredictor(n)
	if err := c.re.Fit(x, re); err != nil {
		return nil, fmt.Errorf("interpolation: fitting real part: %w", err)
	}
	if err := c.im.Fit(x, im); err != nil {
		return nil, fmt.Errorf("interpolation: fitting imaginary part: %w", err)
	}
	return c, nil
}

// At evaluates the interpolant at x
func (c *Complex) At(x float64) complex128 {
	if c.n == 1 {
		return c.single
	}
	return complex(c.re.Predict(x), c.im.Predict(x))
}

// Range returns the sampled abscissa range
func (c *Complex) Range() (lo, hi float64) {
	return c.lo, c.hi
}

// Contains reports whether x lies within the sampled range
func (c *Complex) Contains(x float64) bool {
	return x >= c.lo && x <= c.hi
}

// LogComplex interpolates in ln(x) for positive abscissae
type LogComplex struct {
	*Complex
}

// NewLogComplex fits a spline through (ln xs[i], ys[i])
func NewLogComplex(xs []float64, ys []complex128) (*LogComplex, error) {
	lx := make([]float64, len(xs))
	for i, v := range xs {
		if !(v > 0) {
			return nil, fmt.Errorf("interpolation: non-positive abscissa %g on a log axis", v)
		}
		lx[i] = math.Log(v)
	}
	c, err := NewComplex(lx, ys)
	if err != nil {
		return nil, err
	}
	return &LogComplex{c}, nil
}

// At evaluates the interpolant at x > 0
func (l *LogComplex) At(x float64) complex128 {
	return l.Complex.At(math.Log(x))
}

// Contains reports whether x lies within the sampled range
func (l *LogComplex) Contains(x float64) bool {
	return l.Complex.Contains(math.Log(x))
}

// Real interpolates real samples in ln(x)
func Real(xs, ys []float64) (func(float64) float64, error) {
	cy := make([]complex128, len(ys))
	for i, v := range ys {
		cy[i] = complex(v, 0)
	}
	l, err := NewLogComplex(xs, cy)
	if err != nil {
		return nil, err
	}
	return func(x float64) float64 { return real(l.At(x)) }, nil
}
