package hankel

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/kernel"
)

// Point is a receiver position in the horizontal plane, relative to the
// source.
type Point struct {
	// Offset is the horizontal distance in m; it must be positive
	Offset float64

	// Azimuth is the angle from x towards y in radians
	Azimuth float64
}

// Request bundles the inputs of one transform: a kernel configuration, the
// receiver points sharing its depths, and the components to compute.
type Request struct {
	Engine     *kernel.Engine
	Points     []Point
	Components []kernel.Component

	// ConditionLimit overrides kernel.DefaultConditionLimit
	ConditionLimit float64
}

// Result holds the space-domain values of every requested component at every
// point, indexed [point][component].
type Result struct {
	Values [][]complex128

	// Errors holds per-entry failures: wrapped ConvergenceErrors from QWE and
	// Quad, and NumericalInstabilityWarnings for non-finite values or DLF
	// offsets whose outer filter points carry the sum. The corresponding
	// value is the best available estimate.
	Errors [][]error

	// Warnings are non-fatal diagnostics for the whole request, such as
	// ill-conditioned recursions.
	Warnings []error

	// Evaluations counts kernel evaluations
	Evaluations int
}

// run carries the per-transform state. It is never shared between
// goroutines.
type run struct {
	engine  *kernel.Engine
	comps   []kernel.Component
	method  Method
	evals   int
	maxCond float64
	warns   []error

	// tails holds the outer-point share of every offset of a DLF run
	tails []float64
}

// integrands evaluates the kernel at lambda and projects every component
func (r *run) integrands(lambda float64) []kernel.Integrand {
	g := r.engine.Evaluate(lambda)
	r.evals++
	if g.Condition > r.maxCond || math.IsNaN(g.Condition) {
		r.maxCond = g.Condition
	}
	out := make([]kernel.Integrand, len(r.comps))
	for i, c := range r.comps {
		out[i] = r.engine.Project(c, g, lambda)
	}
	return out
}

// Transform computes the space-domain fields of req with method m.
// Configuration problems are returned as errors; numerical problems are
// reported through the Result.
func Transform(req Request, m Method) (*Result, error) {
	if req.Engine == nil {
		return nil, emerror.Configf("hankel", "no kernel engine given")
	}
	if len(req.Components) == 0 {
		return nil, emerror.Configf("hankel.components", "no components requested")
	}
	for i, p := range req.Points {
		if !(p.Offset > 0) || math.IsInf(p.Offset, 0) {
			return nil, emerror.Configf(fmt.Sprintf("points[%d].offset", i), "offset must be finite and positive, got %g", p.Offset)
		}
	}
	m = m.WithDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Values: make([][]complex128, len(req.Points)),
		Errors: make([][]error, len(req.Points)),
	}
	if len(req.Points) == 0 {
		return res, nil
	}

	offsets, index := distinct(req.Points)
	r := &run{engine: req.Engine, comps: req.Components, method: m}

	var sums [][]kernel.Integrand
	var errs [][]error
	var err error
	switch m.Kind {
	case DLF:
		switch m.Variant {
		case Lagged:
			sums, err = r.dlfLagged(offsets)
		case Splined:
			sums, err = r.dlfSplined(offsets)
		default:
			sums = r.dlfStandard(offsets)
		}
	case QWE:
		sums, errs = r.qwe(offsets)
	case Quad:
		sums, errs = r.quad(offsets)
	}
	if err != nil {
		return nil, err
	}

	for i, p := range req.Points {
		g := index[i]
		res.Values[i] = make([]complex128, len(req.Components))
		res.Errors[i] = make([]error, len(req.Components))
		for ci, c := range req.Components {
			v := combine(c, sums[g][ci], p.Offset, p.Azimuth) + req.Engine.Direct(c, p.Offset, p.Azimuth)
			res.Values[i][ci] = v
			switch {
			case errs != nil && errs[g][ci] != nil:
				res.Errors[i][ci] = errs[g][ci]
			case cmplx.IsNaN(v) || cmplx.IsInf(v):
				res.Errors[i][ci] = &emerror.NumericalInstabilityWarning{
					Where:     fmt.Sprintf("hankel %s at offset %g m", c, p.Offset),
					Condition: r.maxCond,
					Detail:    "non-finite value",
				}
			case r.tails != nil:
				res.Errors[i][ci] = r.undersampled(c, p.Offset, r.tails[g])
			}
		}
	}

	limit := req.ConditionLimit
	if limit == 0 {
		limit = kernel.DefaultConditionLimit
	}
	if r.maxCond > limit || math.IsNaN(r.maxCond) {
		r.warns = append(r.warns, &emerror.NumericalInstabilityWarning{
			Where:     fmt.Sprintf("kernel at %g Hz", req.Engine.Frequency()),
			Condition: r.maxCond,
			Detail:    "reflection recursion is ill-conditioned",
		})
	}
	res.Warnings = r.warns
	res.Evaluations = r.evals
	return res, nil
}

// combine turns the three integrals of a component into its value at
// azimuth phi.
func combine(c kernel.Component, s kernel.Integrand, off, phi float64) complex128 {
	a := c.Angle()
	if a == kernel.AngleNone {
		return s.J0
	}
	f := complex(a.Factor(phi), 0)
	j1 := s.J1
	if a.SecondOrder() {
		j1 /= complex(off, 0)
	}
	return s.J0 + f*s.J0b + f*j1
}

// distinct returns the sorted distinct offsets and, for every point, the
// index of its offset.
func distinct(points []Point) ([]float64, []int) {
	offsets := make([]float64, 0, len(points))
	for _, p := range points {
		offsets = append(offsets, p.Offset)
	}
	sort.Float64s(offsets)
	uniq := offsets[:0]
	for i, o := range offsets {
		if i == 0 || o != uniq[len(uniq)-1] {
			uniq = append(uniq, o)
		}
	}
	index := make([]int, len(points))
	for i, p := range points {
		index[i] = sort.SearchFloat64s(uniq, p.Offset)
	}
	return uniq, index
}

// part returns one of the three integrals of an Integrand
func part(in kernel.Integrand, k int) complex128 {
	switch k {
	case 0:
		return in.J0
	case 1:
		return in.J0b
	}
	return in.J1
}

func setPart(in *kernel.Integrand, k int, v complex128) {
	switch k {
	case 0:
		in.J0 = v
	case 1:
		in.J0b = v
	default:
		in.J1 = v
	}
}
