package filters

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/integrate/quad"
)

// Design describes a band-limited DLF filter.
//
// With r = e^x and lambda = e^{v}/r the transform becomes a convolution in
// log space. Sampling the input at s_n = SMin + n*Delta, Delta =
// ln(10)/PointsPerDecade, and interpolating it with a band-limited kernel
// gives the weights
//
//	w_n = Delta/pi * int_0^{pi/Delta} T(k) Re[H(k) e^{i k s_n}] dk
//
// where H is the Mellin transform of the Bessel, sine or cosine kernel and T
// is a smooth taper equal to one below PassFraction*pi/Delta and reaching
// zero at pi/Delta.
type Design struct {
	Name            string
	Kind            Kind
	PointsPerDecade float64
	SMin, SMax      float64
	PassFraction    float64

	// Panels and Order define the composite Gauss-Legendre rule used for
	// the weight integrals. Zero values select 512 panels of order 16.
	Panels int
	Order  int
}

// transfer returns the Mellin transforms of both weight columns at k
func (d Design) transfer(k float64) (a, b complex128) {
	if d.Kind == Fourier {
		// int_0^inf sin(t) t^{-ik} dt = Gamma(1-ik) cosh(pi k/2)
		// int_0^inf cos(t) t^{-ik} dt = i Gamma(1-ik) sinh(pi k/2)
		lg := LnGamma(complex(1, -k))
		x := math.Pi * k / 2
		a = cmplx.Exp(lg + complex(lnCosh(x), 0))
		b = complex(0, 1) * cmplx.Exp(lg+complex(lnSinh(x), 0))
		return a, b
	}

	// int_0^inf J_nu(t) t^{-ik} dt = 2^{-ik} Gamma((nu+1-ik)/2) / Gamma((nu+1+ik)/2)
	ph := complex(0, -k*math.Ln2)
	a = cmplx.Exp(ph + LnGamma(complex(0.5, -k/2)) - LnGamma(complex(0.5, k/2)))
	b = cmplx.Exp(ph + LnGamma(complex(1, -k/2)) - LnGamma(complex(1, k/2)))
	return a, b
}

// taper is one in the pass band, zero beyond the cut-off and infinitely
// smooth in between.
func taper(k, kp, kc float64) float64 {
	if k <= kp {
		return 1
	}
	if k >= kc {
		return 0
	}
	x := (k - kp) / (kc - kp)
	f := func(u float64) float64 { return math.Exp(-1 / u) }
	return 1 - f(x)/(f(x)+f(1-x))
}

// Build computes the filter table
func (d Design) Build() (*Filter, error) {
	if d.PointsPerDecade <= 0 || !(d.SMax > d.SMin) || d.PassFraction <= 0 || d.PassFraction >= 1 {
		return nil, fmt.Errorf("invalid filter design %+v", d)
	}
	panels, order := d.Panels, d.Order
	if panels == 0 {
		panels = 512
	}
	if order == 0 {
		order = 16
	}

	delta := math.Ln10 / d.PointsPerDecade
	n := int(math.Floor((d.SMax-d.SMin)/delta)) + 1
	kc := math.Pi / delta
	kp := d.PassFraction * kc

	// Quadrature nodes over [0, kc] with the tapered transfer functions
	// folded into the weights
	gx := make([]float64, order)
	gw := make([]float64, order)
	m := panels * order
	ha := make([]complex128, m)
	hb := make([]complex128, m)
	step := make([]complex128, m)
	phase := make([]complex128, m)
	width := kc / float64(panels)
	for p := 0; p < panels; p++ {
		quad.Legendre{}.FixedLocations(gx, gw, float64(p)*width, float64(p+1)*width)
		for q := 0; q < order; q++ {
			i := p*order + q
			k := gx[q]
			a, b := d.transfer(k)
			w := complex(gw[q]*taper(k, kp, kc)*delta/math.Pi, 0)
			ha[i] = w * a
			hb[i] = w * b
			phase[i] = cmplx.Exp(complex(0, k*d.SMin))
			step[i] = cmplx.Exp(complex(0, k*delta))
		}
	}

	f := &Filter{
		Name:   d.Name,
		Kind:   d.Kind,
		Base:   make([]float64, n),
		Factor: math.Exp(delta),
	}
	wa := make([]float64, n)
	wb := make([]float64, n)
	for j := 0; j < n; j++ {
		f.Base[j] = math.Exp(d.SMin + float64(j)*delta)
		var sa, sb float64
		for i := 0; i < m; i++ {
			sa += real(ha[i] * phase[i])
			sb += real(hb[i] * phase[i])
			phase[i] *= step[i]
		}
		wa[j] = sa
		wb[j] = sb
	}

	if d.Kind == Fourier {
		f.Sin, f.Cos = wa, wb
	} else {
		f.J0, f.J1 = wa, wb
	}
	return f, nil
}
