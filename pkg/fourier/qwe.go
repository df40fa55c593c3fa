package fourier

import (
	"fmt"
	"math"
	"math/cmplx"

	"geoem1d/pkg/quadrature"
)

// qwe integrates over the half periods of sin(wt) or cos(wt) and
// extrapolates with the epsilon algorithm. The response comes from the
// interpolator so every time can pick its own nodes. When the first interval
// dominates the extrapolated sum by more than DiffQuad the series is
// unreliable and the time is integrated adaptively over the sampled band.
func (p *Plan) qwe(ip *Interpolator, res *Result) {
	m := p.method
	xint := p.intervals()
	rule := quadrature.Legendre(m.NQuad)
	settings := quadrature.QWESettings{RTol: m.RTol, ATol: m.ATol, MaxInt: m.MaxInt}
	trig := math.Sin
	if m.Trig == Cosine {
		trig = math.Cos
	}

	for i, t := range p.times {
		g := func(w float64) float64 {
			return p.kern(w, ip.At(w/(2*math.Pi))) * trig(w*t)
		}
		term := func(j int) complex128 {
			if j+1 >= len(xint) {
				return 0
			}
			x, wts := rule.Map(xint[j]/t, xint[j+1]/t)
			var s float64
			for q, w := range x {
				s += g(w) * wts[q]
			}
			return complex(s, 0)
		}

		v, _, err := quadrature.QWE(term, settings)
		first := cmplx.Abs(term(0))
		if abs := cmplx.Abs(v); err != nil || abs == 0 || first/abs > m.DiffQuad {
			fmin, fmax := ip.Band()
			a, b := math.Log(2*math.Pi*fmin), math.Log(2*math.Pi*fmax)
			f := func(u float64) complex128 {
				w := math.Exp(u)
				return complex(g(w)*w, 0)
			}
			qv, qerr := quadrature.Adaptive(f, a, b, quadrature.Settings{RTol: m.RTol, ATol: m.ATol, Limit: m.Limit})
			res.Fallbacks++
			if qerr == nil || err != nil {
				v, err = qv, qerr
			}
		}
		res.Values[i] = 2 / math.Pi * real(v)
		if err != nil {
			res.Errors[i] = fmt.Errorf("fourier qwe at t = %g s: %w", t, err)
		}
	}
}
