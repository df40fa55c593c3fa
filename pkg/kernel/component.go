package kernel

import (
	"fmt"
	"math"
)

// Field distinguishes electric from magnetic sources and receivers
type Field int

const (
	Electric Field = iota
	Magnetic
)

// Axis is a cartesian direction
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Component selects one entry of the 6x6 Green's tensor: the receiver field
// along RecAxis due to a unit source of type Src along SrcAxis.
type Component struct {
	Rec     Field
	RecAxis Axis
	Src     Field
	SrcAxis Axis
}

func (c Component) String() string {
	rec := "E"
	if c.Rec == Magnetic {
		rec = "H"
	}
	src := "J"
	if c.Src == Magnetic {
		src = "M"
	}
	axes := "xyz"
	return fmt.Sprintf("%s%c/%s%c", rec, axes[c.RecAxis], src, axes[c.SrcAxis])
}

// Angle identifies the azimuthal dependence of a component
type Angle int

const (
	AngleNone Angle = iota
	AngleCos
	AngleSin
	AngleCos2
	AngleSin2
)

// Factor returns the angle factor at azimuth phi (radians)
func (a Angle) Factor(phi float64) float64 {
	switch a {
	case AngleCos:
		return math.Cos(phi)
	case AngleSin:
		return math.Sin(phi)
	case AngleCos2:
		return math.Cos(2 * phi)
	case AngleSin2:
		return math.Sin(2 * phi)
	}
	return 0
}

// SecondOrder reports whether the J1 integral must be divided by the offset
// (the J2 = 2J1/x - J0 rewrite).
func (a Angle) SecondOrder() bool {
	return a == AngleCos2 || a == AngleSin2
}

// harmonic is the azimuthal dependence of a source or receiver projection
// in the spectral domain: constant, cos(alpha) or sin(alpha).
type harmonic int

const (
	hConst harmonic = iota
	hCos
	hSin
)

// coupling describes how one mode couples to a source or a receiver
type coupling struct {
	active bool
	h      harmonic
	sign   float64

	// scaled marks a constant term multiplied by i*lambda divided by a
	// material parameter (eta for TM, zeta for TE).
	scaled bool

	// voltage marks a series voltage source, or a receiver reading the
	// line voltage. Otherwise the current is used.
	voltage bool
}

// sourceCoupling returns the TM and TE couplings of a unit source
func sourceCoupling(f Field, a Axis) (tm, te coupling) {
	if f == Electric {
		switch a {
		case X:
			return coupling{true, hCos, -1, false, false}, coupling{true, hSin, 1, false, false}
		case Y:
			return coupling{true, hSin, -1, false, false}, coupling{true, hCos, -1, false, false}
		default:
			return coupling{true, hConst, 1, true, true}, coupling{}
		}
	}
	switch a {
	case X:
		return coupling{true, hSin, 1, false, true}, coupling{true, hCos, 1, false, true}
	case Y:
		return coupling{true, hCos, -1, false, true}, coupling{true, hSin, 1, false, true}
	default:
		return coupling{}, coupling{true, hConst, -1, true, false}
	}
}

// receiverCoupling returns the TM and TE couplings of a receiver
func receiverCoupling(f Field, a Axis) (tm, te coupling) {
	if f == Electric {
		switch a {
		case X:
			return coupling{true, hCos, 1, false, true}, coupling{true, hSin, -1, false, true}
		case Y:
			return coupling{true, hSin, 1, false, true}, coupling{true, hCos, 1, false, true}
		default:
			return coupling{true, hConst, -1, true, false}, coupling{}
		}
	}
	switch a {
	case X:
		return coupling{true, hSin, -1, false, false}, coupling{true, hCos, -1, false, false}
	case Y:
		return coupling{true, hCos, 1, false, false}, coupling{true, hSin, -1, false, false}
	default:
		return coupling{}, coupling{true, hConst, 1, true, true}
	}
}

// product returns the angle type of the product of two harmonics
func product(r, s harmonic) Angle {
	switch {
	case r == hConst && s == hConst:
		return AngleNone
	case r == hConst:
		if s == hCos {
			return AngleCos
		}
		return AngleSin
	case s == hConst:
		if r == hCos {
			return AngleCos
		}
		return AngleSin
	case r == s:
		return AngleCos2
	}
	return AngleSin2
}

// Angle returns the azimuthal dependence of c
func (c Component) Angle() Angle {
	stm, ste := sourceCoupling(c.Src, c.SrcAxis)
	rtm, rte := receiverCoupling(c.Rec, c.RecAxis)
	if stm.active && rtm.active {
		return product(rtm.h, stm.h)
	}
	if ste.active && rte.active {
		return product(rte.h, ste.h)
	}
	return AngleNone
}

// Integrand holds the wavenumber integrands of one component: the space
// domain value is
//
//	int (J0 + f*J0b) J0(lambda r) dlambda + f * int J1 J1(lambda r) dlambda [/ r]
//
// where f is the angle factor and the division by r applies to second order
// components.
type Integrand struct {
	J0, J0b, J1 complex128
}

// Add accumulates w*o into in
func (in *Integrand) Add(o Integrand, w complex128) {
	in.J0 += w * o.J0
	in.J0b += w * o.J0b
	in.J1 += w * o.J1
}

// Project turns the mode Green's functions at wavenumber lambda into the
// integrands of component c.
func (e *Engine) Project(c Component, g Greens, lambda float64) Integrand {
	etaS, etaR, zetaS, zetaR := e.factors()
	stm, ste := sourceCoupling(c.Src, c.SrcAxis)
	rtm, rte := receiverCoupling(c.Rec, c.RecAxis)
	il := complex(0, lambda)

	var c0, c1, c2 complex128
	accumulate := func(r, s coupling, m Mode, etaOrZetaS, etaOrZetaR complex128) {
		if !r.active || !s.active {
			return
		}
		var val complex128
		switch {
		case s.voltage && r.voltage:
			val = m.Vv
		case s.voltage:
			val = m.Iv
		case r.voltage:
			val = m.Vi
		default:
			val = m.Ii
		}
		val *= complex(r.sign*s.sign, 0)
		if s.scaled {
			val *= il / etaOrZetaS
		}
		if r.scaled {
			val *= il / etaOrZetaR
		}

		switch product(r.h, s.h) {
		case AngleNone:
			c0 += val
		case AngleCos, AngleSin:
			c1 += val
		case AngleCos2:
			// cos*cos = (1+cos2)/2 and sin*sin = (1-cos2)/2
			c0 += val / 2
			if r.h == hCos {
				c2 += val / 2
			} else {
				c2 -= val / 2
			}
		case AngleSin2:
			c2 += val / 2
		}
	}
	accumulate(rtm, stm, g.TM, etaS, etaR)
	accumulate(rte, ste, g.TE, zetaS, zetaR)

	l := complex(lambda, 0)
	var in Integrand
	in.J0 = l * c0 / (2 * math.Pi)
	switch c.Angle() {
	case AngleCos, AngleSin:
		in.J1 = -il * c1 / (2 * math.Pi)
	case AngleCos2, AngleSin2:
		in.J0b = l * c2 / (2 * math.Pi)
		in.J1 = -c2 / math.Pi
	}
	return in
}

// AllComponents lists the 36 electric and magnetic combinations
func AllComponents() []Component {
	var out []Component
	for _, rf := range []Field{Electric, Magnetic} {
		for ra := X; ra <= Z; ra++ {
			for _, sf := range []Field{Electric, Magnetic} {
				for sa := X; sa <= Z; sa++ {
					out = append(out, Component{Rec: rf, RecAxis: ra, Src: sf, SrcAxis: sa})
				}
			}
		}
	}
	return out
}
