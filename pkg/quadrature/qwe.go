package quadrature

import (
	"math"
	"math/cmplx"

	"geoem1d/pkg/emerror"
)

// Epsilon accelerates a sequence of partial sums with Wynn's epsilon
// algorithm, which computes the iterated Shanks transformation. Only the
// latest diagonal of the epsilon table is kept.
type Epsilon struct {
	diag []complex128
}

// Add appends the next partial sum and returns the current best estimate
func (e *Epsilon) Add(s complex128) complex128 {
	prev := e.diag
	next := make([]complex128, 1, len(prev)+1)
	next[0] = s
	for k := 0; k < len(prev); k++ {
		diff := next[k] - prev[k]
		if cmplx.Abs(diff) < math.SmallestNonzeroFloat64*1e10 {
			break
		}
		var lower complex128
		if k > 0 {
			lower = prev[k-1]
		}
		next = append(next, lower+1/diff)
	}
	e.diag = next
	return e.Estimate()
}

// Estimate returns the entry of the highest even column of the table
func (e *Epsilon) Estimate() complex128 {
	if len(e.diag) == 0 {
		return 0
	}
	k := (len(e.diag) - 1) &^ 1
	return e.diag[k]
}

// QWESettings control the quadrature-with-extrapolation loop
type QWESettings struct {
	RTol   float64
	ATol   float64
	MaxInt int
}

// QWE sums interval integrals term(0), term(1), ... and extrapolates the
// partial sums of term(1), term(2), ... with the epsilon algorithm. term(0)
// is the integral up to the first crossing and is added unaccelerated. The
// loop stops when two consecutive extrapolations agree to
// rtol + atol/|estimate|. It returns the estimate and the number of
// intervals used.
func QWE(term func(i int) complex128, s QWESettings) (complex128, int, error) {
	maxint := s.MaxInt
	if maxint < 3 {
		maxint = 3
	}

	first := term(0)
	var eps Epsilon
	var partial, last complex128
	var rel float64
	for i := 1; i < maxint; i++ {
		partial += term(i)
		extrap := eps.Add(partial) + first
		if i > 1 {
			abs := cmplx.Abs(extrap)
			diff := cmplx.Abs(extrap - last)
			if abs > 0 {
				rel = diff / abs
			} else {
				rel = diff
			}
			if abs == 0 && diff == 0 || abs > 0 && rel < s.RTol+s.ATol/abs {
				return extrap, i + 1, nil
			}
		}
		last = extrap
	}
	return last, maxint, &emerror.ConvergenceError{Method: "qwe", Steps: maxint, RelError: rel, Estimate: last}
}
