package quadrature

import (
	"math"
	"math/cmplx"

	"geoem1d/pkg/emerror"
)

// Settings control the adaptive integrator
type Settings struct {
	RTol  float64
	ATol  float64
	Limit int // maximum number of subintervals
	Order int // Gauss-Legendre order per subinterval, default 21
}

type segment struct {
	a, b  float64
	value complex128
	err   float64
}

// Adaptive integrates f over [a, b] by repeated bisection of the subinterval
// with the largest error estimate. The estimate of a subinterval is the
// difference between the rule on the whole subinterval and the sum over its
// two halves. When Limit subintervals are reached without meeting the
// tolerance a ConvergenceError carrying the current estimate is returned.
func Adaptive(f func(float64) complex128, a, b float64, s Settings) (complex128, error) {
	order := s.Order
	if order == 0 {
		order = 21
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 500
	}
	rule := Legendre(order)

	eval := func(a, b float64) segment {
		m := (a + b) / 2
		whole := rule.Integrate(f, a, b)
		halves := rule.Integrate(f, a, m) + rule.Integrate(f, m, b)
		return segment{a: a, b: b, value: halves, err: cmplx.Abs(whole - halves)}
	}

	segs := []segment{eval(a, b)}
	for {
		var total complex128
		var errSum float64
		worst := 0
		for i, sg := range segs {
			total += sg.value
			errSum += sg.err
			if sg.err > segs[worst].err {
				worst = i
			}
		}

		if errSum <= math.Max(s.ATol, s.RTol*cmplx.Abs(total)) {
			return total, nil
		}
		if cmplx.IsNaN(total) {
			return total, &emerror.ConvergenceError{Method: "quad", Steps: len(segs), RelError: math.NaN(), Estimate: total}
		}
		if len(segs) >= limit {
			rel := errSum
			if at := cmplx.Abs(total); at > 0 {
				rel = errSum / at
			}
			return total, &emerror.ConvergenceError{Method: "quad", Steps: len(segs), RelError: rel, Estimate: total}
		}

		w := segs[worst]
		m := (w.a + w.b) / 2
		segs[worst] = eval(w.a, m)
		segs = append(segs, eval(m, w.b))
	}
}
