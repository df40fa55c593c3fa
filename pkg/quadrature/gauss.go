// Package quadrature holds the numerical integration building blocks shared
// by the Hankel and Fourier transforms: Gauss-Legendre rules, an adaptive
// bisection integrator, the Shanks (Wynn epsilon) extrapolation used by QWE
// and the zeros of J1.
package quadrature

import (
	"gonum.org/v1/gonum/integrate/quad"
)

// Rule is a Gauss-Legendre rule on [-1, 1]
type Rule struct {
	X, W []float64
}

// Legendre returns the n-point Gauss-Legendre rule on [-1, 1]
func Legendre(n int) Rule {
	r := Rule{X: make([]float64, n), W: make([]float64, n)}
	quad.Legendre{}.FixedLocations(r.X, r.W, -1, 1)
	return r
}

// Len returns the number of nodes
func (r Rule) Len() int { return len(r.X) }

// Map returns the nodes and weights mapped to [a, b]
func (r Rule) Map(a, b float64) (x, w []float64) {
	x = make([]float64, len(r.X))
	w = make([]float64, len(r.W))
	h := (b - a) / 2
	for i := range r.X {
		x[i] = a + h*(r.X[i]+1)
		w[i] = h * r.W[i]
	}
	return x, w
}

// Integrate applies the rule to f on [a, b]
func (r Rule) Integrate(f func(float64) complex128, a, b float64) complex128 {
	h := (b - a) / 2
	var sum complex128
	for i, xi := range r.X {
		sum += complex(r.W[i], 0) * f(a+h*(xi+1))
	}
	return complex(h, 0) * sum
}
