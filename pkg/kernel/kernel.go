// Package kernel evaluates the wavenumber-domain Green's functions of a
// horizontally layered earth.
//
// The fields are split into transverse-magnetic (TM) and transverse-electric
// (TE) modes with respect to z. Each mode behaves like a transmission line
// along depth, so the layered response at the receiver reduces to four line
// Green's functions per mode: the voltage and current due to a unit shunt
// current source (Vi, Ii) and due to a unit series voltage source (Vv, Iv).
// The generalized reflection coefficients are built by an indexed walk over
// the interfaces from both outer half-spaces towards the source layer.
//
// All quantities use the e^{iwt} time convention and depth positive
// downwards.
package kernel

import (
	"math"
	"math/cmplx"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/layers"
)

// DefaultConditionLimit is the largest tolerated inverse of a recursion
// denominator before an evaluation is reported as unstable.
const DefaultConditionLimit = 1e10

// Mode holds the transmission-line Green's functions of one mode at the
// receiver depth.
type Mode struct {
	// Vi and Ii are voltage and current due to a unit shunt current source
	Vi, Ii complex128

	// Vv and Iv are voltage and current due to a unit series voltage source
	Vv, Iv complex128
}

// Greens is the result of one kernel evaluation
type Greens struct {
	TM, TE Mode

	// Condition is the inverse of the smallest recursion denominator met
	// during the evaluation. Large values indicate loss of precision.
	Condition float64
}

// Setup describes one kernel configuration: a model at a single frequency
// and a source and receiver depth.
type Setup struct {
	Model     *layers.Model
	Frequency float64
	SrcZ      float64
	RecZ      float64
	Policy    layers.BoundaryPolicy

	// XDirect removes the direct wave from the wavenumber kernel when
	// source and receiver share a layer. The caller then adds Fullspace in
	// the space domain.
	XDirect bool
}

// Engine evaluates the kernel for one Setup. It is immutable after
// construction and safe for concurrent use; every evaluation keeps its
// reflection state on its own stack.
type Engine struct {
	props    layers.Properties
	depths   []float64
	zs, zr   float64
	ls, lr   int
	nl       int
	xdirect  bool
	freq     float64
	isotropy bool
}

// NewEngine resolves the source and receiver layers and precomputes the
// material parameters.
func NewEngine(s Setup) (*Engine, error) {
	if s.Model == nil {
		return nil, emerror.Configf("model", "no model given")
	}
	if !(s.Frequency > 0) || math.IsInf(s.Frequency, 0) {
		return nil, emerror.Configf("frequency", "frequency must be finite and positive, got %g", s.Frequency)
	}
	ls, err := s.Model.LayerOf(s.SrcZ, s.Policy)
	if err != nil {
		return nil, err
	}
	lr, err := s.Model.LayerOf(s.RecZ, s.Policy)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		props:    s.Model.Properties(s.Frequency),
		depths:   s.Model.Depths(),
		zs:       s.SrcZ,
		zr:       s.RecZ,
		ls:       ls,
		lr:       lr,
		nl:       s.Model.NumLayers(),
		freq:     s.Frequency,
		isotropy: s.Model.Isotropic(ls),
	}

	// The analytic direct field only exists for isotropic source layers
	e.xdirect = s.XDirect && ls == lr && e.isotropy
	return e, nil
}

// SourceLayer returns the index of the source layer
func (e *Engine) SourceLayer() int { return e.ls }

// ReceiverLayer returns the index of the receiver layer
func (e *Engine) ReceiverLayer() int { return e.lr }

// Frequency returns the evaluation frequency in Hz
func (e *Engine) Frequency() float64 { return e.freq }

// Depths returns the source and receiver depths
func (e *Engine) Depths() (zs, zr float64) { return e.zs, e.zr }

// DirectExcluded reports whether the direct wave is left out of the kernel
// and must be added analytically.
func (e *Engine) DirectExcluded() bool { return e.xdirect }

// DirectRequested reports whether the direct wave would have been excluded
// had the source layer been isotropic.
func (e *Engine) DirectRequested(xdirect bool) bool {
	return xdirect && e.ls == e.lr
}

// Medium returns eta and zeta of the source layer, used by the analytic
// full-space field.
func (e *Engine) Medium() (eta, zeta complex128) {
	return e.props.EtaH[e.ls], e.props.ZetaH[e.ls]
}

// factors returns the vertical material parameters at source and receiver
// used by the component projection.
func (e *Engine) factors() (etaS, etaR, zetaS, zetaR complex128) {
	return e.props.EtaV[e.ls], e.props.EtaV[e.lr], e.props.ZetaV[e.ls], e.props.ZetaV[e.lr]
}

// line holds the per-layer propagation constant and characteristic
// impedance of one mode.
type line struct {
	gam []complex128
	z0  []complex128
}

func (e *Engine) lines(lambda float64) (tm, te line) {
	n := e.nl
	tm = line{gam: make([]complex128, n), z0: make([]complex128, n)}
	te = line{gam: make([]complex128, n), z0: make([]complex128, n)}
	l2 := complex(lambda*lambda, 0)
	for j := 0; j < n; j++ {
		etaH, etaV := e.props.EtaH[j], e.props.EtaV[j]
		zetaH, zetaV := e.props.ZetaH[j], e.props.ZetaV[j]

		// TM: Z = zetaH + lambda^2/etaV, Y = etaH
		g := cmplx.Sqrt(etaH*zetaH + l2*etaH/etaV)
		tm.gam[j] = g
		tm.z0[j] = g / etaH

		// TE: Z = zetaH, Y = etaH + lambda^2/zetaV
		g = cmplx.Sqrt(zetaH*etaH + l2*zetaH/zetaV)
		te.gam[j] = g
		te.z0[j] = zetaH / g
	}
	return tm, te
}

// Evaluate computes the Green's functions of both modes at wavenumber lambda
func (e *Engine) Evaluate(lambda float64) Greens {
	tm, te := e.lines(lambda)
	var g Greens
	var c1, c2 float64
	g.TM, c1 = e.solve(tm)
	g.TE, c2 = e.solve(te)
	g.Condition = math.Max(c1, c2)
	return g
}

// expNeg returns exp(-gam*d), treating an infinite distance as zero
func expNeg(gam complex128, d float64) complex128 {
	if math.IsInf(d, 1) {
		return 0
	}
	return cmplx.Exp(-gam * complex(d, 0))
}

func (e *Engine) top(j int) float64 {
	if j == 0 {
		return math.Inf(-1)
	}
	return e.depths[j-1]
}

func (e *Engine) bottom(j int) float64 {
	if j == e.nl-1 {
		return math.Inf(1)
	}
	return e.depths[j]
}

// solve walks the interfaces for one mode and returns the line Green's
// functions at the receiver plus the condition estimate.
func (e *Engine) solve(ln line) (Mode, float64) {
	n := e.nl
	ls, lr := e.ls, e.lr
	minDen := 1.0

	track := func(den complex128) {
		if a := cmplx.Abs(den); a < minDen {
			minDen = a
		}
	}

	// Thickness decay factors exp(-2 gam h); zero in the half-spaces
	e2 := make([]complex128, n)
	eh := make([]complex128, n)
	for j := 0; j < n; j++ {
		h := e.bottom(j) - e.top(j)
		eh[j] = expNeg(ln.gam[j], h)
		e2[j] = eh[j] * eh[j]
	}

	// Generalized reflection coefficients for voltage waves. rd[j] applies at
	// the bottom of layer j looking down, ru[j] at its top looking up.
	lo, hi := ls, lr
	if lo > hi {
		lo, hi = hi, lo
	}
	rd := make([]complex128, n)
	for j := n - 2; j >= lo; j-- {
		r := (ln.z0[j+1] - ln.z0[j]) / (ln.z0[j+1] + ln.z0[j])
		next := rd[j+1] * e2[j+1]
		den := 1 + r*next
		track(den)
		rd[j] = (r + next) / den
	}
	ru := make([]complex128, n)
	for j := 1; j <= hi; j++ {
		r := (ln.z0[j-1] - ln.z0[j]) / (ln.z0[j-1] + ln.z0[j])
		next := ru[j-1] * e2[j-1]
		den := 1 + r*next
		track(den)
		ru[j] = (r + next) / den
	}

	gs := ln.gam[ls]
	var esu, esd complex128
	if ls > 0 {
		esu = expNeg(gs, e.zs-e.top(ls))
	}
	if ls < n-1 {
		esd = expNeg(gs, e.bottom(ls)-e.zs)
	}
	md := 1 - ru[ls]*rd[ls]*e2[ls]
	track(md)

	var m Mode
	m.Vi, m.Ii = e.receive(ln, ru, rd, eh, e2, esu, esd, md, ln.z0[ls]/2, ln.z0[ls]/2, true, track)
	m.Vv, m.Iv = e.receive(ln, ru, rd, eh, e2, esu, esd, md, 0.5, -0.5, false, track)

	cond := 1 / minDen
	if math.IsNaN(cond) {
		cond = math.Inf(1)
	}
	return m, cond
}

// receive propagates the source waves to the receiver. d0 and u0 are the
// voltage amplitudes of the direct down- and up-going waves at the source.
func (e *Engine) receive(ln line, ru, rd, eh, e2 []complex128, esu, esd, md, d0, u0 complex128,
	current bool, track func(complex128)) (v, i complex128) {

	ls, lr := e.ls, e.lr
	gs := ln.gam[ls]

	// Down-going amplitude referenced at the top of the source layer and
	// up-going amplitude referenced at its bottom
	a := ru[ls] * (u0*esu + rd[ls]*d0*esd*eh[ls]) / md
	b := rd[ls] * (d0*esd + ru[ls]*u0*esu*eh[ls]) / md

	switch {
	case lr == ls:
		var down, up complex128
		if ls > 0 {
			down = a * expNeg(gs, e.zr-e.top(ls))
		}
		if ls < e.nl-1 {
			up = b * expNeg(gs, e.bottom(ls)-e.zr)
		}
		v = down + up
		i = (down - up) / ln.z0[ls]

		if !e.xdirect {
			dz := e.zr - e.zs
			ed := expNeg(gs, math.Abs(dz))
			sgn := complex(sign(dz), 0)
			if current {
				v += ln.z0[ls] / 2 * ed
				i += sgn / 2 * ed
			} else {
				v += sgn / 2 * ed
				i += ed / (2 * ln.z0[ls])
			}
		}

	case lr > ls:
		// Total voltage at the bottom interface of the source layer
		vt := (d0*esd + a*eh[ls]) * (1 + rd[ls])
		var t complex128
		for j := ls + 1; j <= lr; j++ {
			den := 1 + rd[j]*e2[j]
			track(den)
			t = vt / den
			if j < lr {
				vt = t * eh[j] * (1 + rd[j])
			}
		}
		g := ln.gam[lr]
		down := t * expNeg(g, e.zr-e.top(lr))
		var up complex128
		if lr < e.nl-1 {
			up = t * rd[lr] * eh[lr] * expNeg(g, e.bottom(lr)-e.zr)
		}
		v = down + up
		i = (down - up) / ln.z0[lr]

	default:
		// Total voltage at the top interface of the source layer
		vt := (u0*esu + b*eh[ls]) * (1 + ru[ls])
		var t complex128
		for j := ls - 1; j >= lr; j-- {
			den := 1 + ru[j]*e2[j]
			track(den)
			t = vt / den
			if j > lr {
				vt = t * eh[j] * (1 + ru[j])
			}
		}
		g := ln.gam[lr]
		up := t * expNeg(g, e.bottom(lr)-e.zr)
		var down complex128
		if lr > 0 {
			down = t * ru[lr] * eh[lr] * expNeg(g, e.zr-e.top(lr))
		}
		v = down + up
		i = (down - up) / ln.z0[lr]
	}
	return v, i
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
