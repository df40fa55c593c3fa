package hankel

import (
	"fmt"
	"math"
	"math/cmplx"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/kernel"
	"geoem1d/pkg/quadrature"
)

// qwe integrates between the zeros of J1(lambda*r). The kernel is evaluated
// once per interval for all components and parts; each of the three
// integrals of each component is then extrapolated on its own.
func (r *run) qwe(offsets []float64) ([][]kernel.Integrand, [][]error) {
	m := r.method
	xint := quadrature.Intervals(m.MaxInt)
	rule := quadrature.Legendre(m.NQuad)
	settings := quadrature.QWESettings{RTol: m.RTol, ATol: m.ATol, MaxInt: m.MaxInt}

	out := make([][]kernel.Integrand, len(offsets))
	errs := make([][]error, len(offsets))
	for k, off := range offsets {
		var cache [][]kernel.Integrand
		interval := func(i int) []kernel.Integrand {
			for len(cache) <= i {
				j := len(cache)
				x, w := rule.Map(xint[j]/off, xint[j+1]/off)
				sums := make([]kernel.Integrand, len(r.comps))
				for q, lam := range x {
					b0 := complex(math.J0(lam*off)*w[q], 0)
					b1 := complex(math.J1(lam*off)*w[q], 0)
					for ci, in := range r.integrands(lam) {
						sums[ci].J0 += in.J0 * b0
						sums[ci].J0b += in.J0b * b0
						sums[ci].J1 += in.J1 * b1
					}
				}
				cache = append(cache, sums)
			}
			return cache[i]
		}

		out[k] = make([]kernel.Integrand, len(r.comps))
		errs[k] = make([]error, len(r.comps))
		for ci, c := range r.comps {
			for p := 0; p < 3; p++ {
				term := func(i int) complex128 { return part(interval(i)[ci], p) }
				v, _, err := quadrature.QWE(term, settings)
				setPart(&out[k][ci], p, v)
				if err != nil && errs[k][ci] == nil {
					errs[k][ci] = fmt.Errorf("hankel qwe %s at offset %g m: %w", c, off, err)
				}
			}
		}
	}
	return out, errs
}

// quad integrates f(lambda) J(lambda*r) in ln(lambda) with the adaptive
// integrator, first over [LambdaMin, LambdaMax] and then over decade panels
// above it (see tail). Kernel samples are memoised per offset since the
// three integrals of all components share their nodes in the early
// subdivisions.
func (r *run) quad(offsets []float64) ([][]kernel.Integrand, [][]error) {
	m := r.method

	out := make([][]kernel.Integrand, len(offsets))
	errs := make([][]error, len(offsets))
	for k, off := range offsets {
		memo := make(map[float64][]kernel.Integrand)
		sample := func(lam float64) []kernel.Integrand {
			if v, ok := memo[lam]; ok {
				return v
			}
			v := r.integrands(lam)
			memo[lam] = v
			return v
		}

		out[k] = make([]kernel.Integrand, len(r.comps))
		errs[k] = make([]error, len(r.comps))
		for ci, c := range r.comps {
			for p := 0; p < 3; p++ {
				f := func(u float64) complex128 {
					lam := math.Exp(u)
					bes := math.J0(lam * off)
					if p == 2 {
						bes = math.J1(lam * off)
					}
					return part(sample(lam)[ci], p) * complex(bes*lam, 0)
				}
				v, err := tail(f, m)
				setPart(&out[k][ci], p, v)
				if err != nil && errs[k][ci] == nil {
					errs[k][ci] = fmt.Errorf("hankel quad %s at offset %g m: %w", c, off, err)
				}
			}
		}
	}
	return out, errs
}

// tail integrates f over [ln LambdaMin, ln LambdaMax] and keeps appending
// panels of one decade until two in a row are below ATol + RTol*|sum|. A
// range that is still carrying weight after MaxDecades panels is reported
// as a ConvergenceError holding the truncated sum.
func tail(f func(float64) complex128, m Method) (complex128, error) {
	s := quadrature.Settings{RTol: m.RTol, ATol: m.ATol, Limit: m.Limit}
	hi := math.Log(m.LambdaMax)
	sum, err := quadrature.Adaptive(f, math.Log(m.LambdaMin), hi, s)
	if err != nil {
		return sum, err
	}

	quiet := 0
	var last float64
	for d := 0; d < m.MaxDecades; d++ {
		// panels only need to be resolved relative to the running sum
		s.ATol = math.Max(m.ATol, m.RTol*cmplx.Abs(sum))
		panel, err := quadrature.Adaptive(f, hi, hi+math.Ln10, s)
		sum += panel
		hi += math.Ln10
		if err != nil {
			return sum, err
		}
		last = cmplx.Abs(panel)
		if last > m.ATol+m.RTol*cmplx.Abs(sum) {
			quiet = 0
			continue
		}
		if quiet++; quiet == 2 {
			return sum, nil
		}
	}

	rel := last
	if a := cmplx.Abs(sum); a > 0 {
		rel = last / a
	}
	return sum, &emerror.ConvergenceError{Method: "quad", Steps: m.MaxDecades, RelError: rel, Estimate: sum}
}
