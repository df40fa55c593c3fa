package forward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"geoem1d/internal/models"
	"geoem1d/pkg/emerror"
	"geoem1d/pkg/filters"
	"geoem1d/pkg/fourier"
	"geoem1d/pkg/hankel"
	"geoem1d/pkg/kernel"
	"geoem1d/pkg/layers"
)

// solved is the outcome of one (frequency, depth group) work item
type solved struct {
	values [][]complex128
	errs   [][]error
	warns  []error
	evals  int
}

// Run computes the response of every receiver. Invalid input is reported as
// a ConfigurationError or UnsupportedConfigurationError before any kernel is
// evaluated. Numerical problems of single entries are recorded in the
// manifest; failed entries hold NaN.
func Run(ctx context.Context, in Input, opts Options) (*Response, error) {
	start := time.Now()
	opts = opts.withDefaults()
	resp, err := run(ctx, in, opts)
	if opts.Observer != nil {
		domain := "frequency"
		if in.Axis.TimeDomain() {
			domain = "time"
		}
		opts.Observer.ObserveRun(domain, time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	opts.Logger.Infof("Forward run finished in %v: %d entries degraded or failed, %d kernel evaluations",
		time.Since(start).Round(time.Millisecond), len(resp.Manifest.Entries), resp.Manifest.Evaluations)
	return resp, nil
}

func run(ctx context.Context, in Input, opts Options) (*Response, error) {
	log := opts.Logger

	model, err := layers.New(in.Model)
	if err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}
	if opts.ConditionLimit < 0 || math.IsNaN(opts.ConditionLimit) {
		return nil, emerror.Configf("conditionLimit", "must not be negative, got %g", opts.ConditionLimit)
	}
	geo, err := newGeometry(model, in, opts)
	if err != nil {
		return nil, err
	}
	freqs, plan, err := prepareAxis(in.Axis, opts)
	if err != nil {
		return nil, err
	}
	methods, err := hankelMethods(model, geo, opts)
	if err != nil {
		return nil, err
	}

	resp := &Response{Offsets: offsetsFrom(in)}
	resp.Manifest.Notes = append(resp.Manifest.Notes, geo.notes...)
	seen := make(map[string]bool)
	for _, m := range methods {
		if s := m.String(); !seen[s] {
			seen[s] = true
			resp.Manifest.Hankel = append(resp.Manifest.Hankel, s)
		}
	}
	if ls, _ := model.LayerOf(in.Source.Position.Z, opts.Policy); !opts.DirectInKernel && !model.Isotropic(ls) {
		note := "anisotropic source layers keep the direct wave in the wavenumber domain"
		if opts.Hankel == nil {
			note += "; receivers in the source layer use QWE"
		}
		resp.Manifest.Notes = append(resp.Manifest.Notes, note)
	}

	ng := len(geo.groups)
	log.Infof("Forward run: %d receivers (%d sites), %d frequencies, %d depth groups, %d workers",
		len(in.Receivers), len(geo.sites), len(freqs), ng, opts.Workers)
	for gi, grp := range geo.groups {
		log.Debugf("Depth group zs=%g m zr=%g m: %d pairs, %d components, %s",
			grp.zs, grp.zr, len(grp.pairs), len(grp.comps), methods[gi])
	}

	results := make([]solved, len(freqs)*ng)
	resp.Manifest.WorkItems = len(results)
	var done int64

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for fi := range freqs {
		for gi := range geo.groups {
			eg.Go(func() error {
				if err := ectx.Err(); err != nil {
					return err
				}
				res, err := solve(model, freqs[fi], geo.groups[gi], methods[gi], opts)
				if err != nil {
					return fmt.Errorf("%g Hz, depth group %d: %w", freqs[fi], gi, err)
				}
				results[fi*ng+gi] = res
				n := atomic.AddInt64(&done, 1)
				if opts.Progress != nil {
					opts.Progress(int(n), len(results))
				}
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	values, status, reasons := assemble(model, in, geo, freqs, results, opts)
	warned := make(map[string]bool)
	for fi := range freqs {
		for gi, grp := range geo.groups {
			r := results[fi*ng+gi]
			resp.Manifest.Evaluations += r.evals
			for _, w := range r.warns {
				msg := fmt.Sprintf("%g Hz, zs=%g m, zr=%g m: %v", freqs[fi], grp.zs, grp.zr, w)
				if !warned[msg] {
					warned[msg] = true
					resp.Manifest.Warnings = append(resp.Manifest.Warnings, msg)
				}
			}
		}
	}

	if plan == nil {
		resp.Frequencies = freqs
		resp.Values = values
		for i := range values {
			for fi := range values[i] {
				record(&resp.Manifest, opts.Observer, i, fi, status[i][fi], reasons[i][fi])
			}
		}
	} else if err := join(ctx, plan, values, status, reasons, resp, opts); err != nil {
		return nil, err
	}

	if n := len(resp.Manifest.Warnings); n > 0 {
		log.Warnf("%d numerical warnings recorded in the manifest", n)
	}
	if n := resp.Manifest.Failed(); n > 0 {
		log.Warnf("%d entries failed and hold NaN", n)
	}
	return resp, nil
}

// solve runs the Hankel transform of one depth group at one frequency
func solve(model *layers.Model, freq float64, grp *group, m hankel.Method, opts Options) (solved, error) {
	e, err := kernel.NewEngine(kernel.Setup{
		Model:     model,
		Frequency: freq,
		SrcZ:      grp.zs,
		RecZ:      grp.zr,
		Policy:    opts.Policy,
		XDirect:   !opts.DirectInKernel,
	})
	if err != nil {
		return solved{}, err
	}
	points := make([]hankel.Point, len(grp.pairs))
	for i, p := range grp.pairs {
		points[i] = p.point
	}

	start := time.Now()
	res, err := hankel.Transform(hankel.Request{
		Engine:         e,
		Points:         points,
		Components:     grp.comps,
		ConditionLimit: opts.ConditionLimit,
	}, m)
	if err != nil {
		return solved{}, err
	}
	if opts.Observer != nil {
		opts.Observer.ObserveTransform("hankel-"+m.Kind.String(), time.Since(start), res.Evaluations)
	}
	return solved{values: res.Values, errs: res.Errors, warns: res.Warnings, evals: res.Evaluations}, nil
}

// assemble rotates, integrates and scales the tensor entries into receiver
// values indexed [receiver][frequency]
func assemble(model *layers.Model, in Input, geo *geometry, freqs []float64, results []solved, opts Options) ([][]complex128, [][]Status, [][]string) {
	ng := len(geo.groups)
	src := in.Source
	strength := src.Strength
	if strength == 0 {
		strength = 1
	}

	values := make([][]complex128, len(in.Receivers))
	status := make([][]Status, len(in.Receivers))
	reasons := make([][]string, len(in.Receivers))
	for i := range values {
		values[i] = make([]complex128, len(freqs))
		status[i] = make([]Status, len(freqs))
		reasons[i] = make([]string, len(freqs))
	}

	for fi, freq := range freqs {
		props := model.Properties(freq)
		srcScale := complex(strength, 0)
		if src.Kind == models.Loop {
			ls, _ := model.LayerOf(src.Position.Z, opts.Policy)
			srcScale *= props.ZetaH[ls] * complex(src.Area*turns(src.Turns), 0)
		}

		for i, rec := range in.Receivers {
			site := geo.alias[i]
			var total complex128
			var worst Status
			var reason string
			for si, sp := range geo.points {
				at := geo.at[si][site]
				grp := geo.groups[at.group]
				r := results[fi*ng+at.group]
				value := func(c kernel.Component) (complex128, bool) {
					ci, ok := grp.index[c]
					if !ok {
						return 0, false
					}
					return r.values[at.pair][ci], true
				}
				total += complex(sp.weight, 0) * project(geo.rfield[i], geo.srcField, geo.rdir[i], geo.sdir, value)

				for ra, rc := range geo.rdir[i] {
					for sa, sc := range geo.sdir {
						if rc == 0 || sc == 0 {
							continue
						}
						c := kernel.Component{Rec: geo.rfield[i], RecAxis: kernel.Axis(ra), Src: geo.srcField, SrcAxis: kernel.Axis(sa)}
						err := r.errs[at.pair][grp.index[c]]
						if s := classify(err); s > worst {
							worst, reason = s, err.Error()
						}
					}
				}
			}

			total *= srcScale
			if rec.Kind == models.LoopReceiver {
				lr, _ := model.LayerOf(rec.Position.Z, opts.Policy)
				total *= -props.ZetaH[lr] * complex(rec.Area*turns(rec.Turns), 0)
			}
			if worst == StatusDegraded && (cmplx.IsNaN(total) || cmplx.IsInf(total)) {
				worst = StatusFailed
			}
			if worst == StatusFailed {
				total = cmplx.NaN()
			}
			values[i][fi], status[i][fi], reasons[i][fi] = total, worst, reason
		}
	}
	return values, status, reasons
}

// join is the fan-in point of a time-domain run: every receiver's full
// frequency sweep is transformed once all work items have finished
func join(ctx context.Context, plan *fourier.Plan, values [][]complex128, status [][]Status, reasons [][]string, resp *Response, opts Options) error {
	freqs := plan.RequiredFrequencies()
	times := plan.Times()
	resp.Times = times
	resp.Series = make([][]float64, len(values))
	resp.Manifest.Fourier = plan.Method().String()
	resp.Manifest.Interpolated = plan.Interpolated()
	switch {
	case plan.Supplied():
		resp.Manifest.Notes = append(resp.Manifest.Notes,
			fmt.Sprintf("frequency response interpolated from %d supplied frequencies", len(freqs)))
	case plan.Interpolated():
		resp.Manifest.Notes = append(resp.Manifest.Notes,
			fmt.Sprintf("frequency response resampled by %s through a spline of %d frequencies (%g per decade)",
				plan.Method(), len(freqs), plan.Method().PtsPerDec))
	}

	type outcome struct {
		status    []Status
		reasons   []string
		warnings  []error
		fallbacks int
	}
	outs := make([]outcome, len(values))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)
	for i := range values {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			st := make([]Status, len(times))
			rs := make([]string, len(times))
			series := make([]float64, len(times))
			outs[i] = outcome{status: st, reasons: rs}
			resp.Series[i] = series

			fail := func(reason string) {
				for j := range series {
					series[j], st[j], rs[j] = math.NaN(), StatusFailed, reason
				}
			}
			var degraded string
			for fi, s := range status[i] {
				if s == StatusFailed {
					fail(fmt.Sprintf("frequency-domain entry at %g Hz failed: %s", freqs[fi], reasons[i][fi]))
					return nil
				}
				if s == StatusDegraded && degraded == "" {
					degraded = fmt.Sprintf("frequency-domain entry at %g Hz degraded: %s", freqs[fi], reasons[i][fi])
				}
			}

			start := time.Now()
			res, err := plan.Transform(values[i])
			if opts.Observer != nil {
				opts.Observer.ObserveTransform("fourier-"+plan.Method().Kind.String(), time.Since(start), 0)
			}
			if err != nil {
				if emerror.IsConfiguration(err) || emerror.IsUnsupported(err) {
					return err
				}
				fail(err.Error())
				return nil
			}
			outs[i].warnings = res.Warnings
			outs[i].fallbacks = res.Fallbacks
			for j, v := range res.Values {
				series[j] = v
				if degraded != "" {
					st[j], rs[j] = StatusDegraded, degraded
				}
				if err := res.Errors[j]; err != nil {
					s := classify(err)
					if s == StatusDegraded && (math.IsNaN(v) || math.IsInf(v, 0)) {
						s = StatusFailed
					}
					if s >= st[j] {
						st[j], rs[j] = s, err.Error()
					}
				}
				if st[j] == StatusFailed {
					series[j] = math.NaN()
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	warned := make(map[string]bool)
	for _, w := range resp.Manifest.Warnings {
		warned[w] = true
	}
	for i, o := range outs {
		resp.Manifest.Fallbacks += o.fallbacks
		for _, w := range o.warnings {
			if msg := w.Error(); !warned[msg] {
				warned[msg] = true
				resp.Manifest.Warnings = append(resp.Manifest.Warnings, msg)
			}
		}
		for j := range o.status {
			record(&resp.Manifest, opts.Observer, i, j, o.status[j], o.reasons[j])
		}
	}
	return nil
}

// record adds a non-ok entry to the manifest
func record(m *Manifest, obs Observer, receiver, index int, s Status, reason string) {
	if obs != nil {
		obs.ObserveEntry(s)
	}
	if s == StatusOK {
		return
	}
	m.Entries = append(m.Entries, Entry{Receiver: receiver, Index: index, Status: s, Reason: reason})
}

// classify maps a per-entry error onto a status: instability warnings keep
// their value, everything else fails the entry
func classify(err error) Status {
	if err == nil {
		return StatusOK
	}
	var w *emerror.NumericalInstabilityWarning
	if errors.As(err, &w) {
		return StatusDegraded
	}
	return StatusFailed
}

func turns(n float64) float64 {
	if n == 0 {
		return 1
	}
	return n
}

// prepareAxis validates the axis and returns the frequencies to compute.
// Time-domain runs also get their Fourier plan.
func prepareAxis(a Axis, opts Options) ([]float64, *fourier.Plan, error) {
	if !a.TimeDomain() {
		if len(a.Times) > 0 {
			return nil, nil, emerror.Configf("axis.times", "times require a time-domain signal")
		}
		if len(a.Frequencies) == 0 {
			return nil, nil, emerror.Configf("axis.frequencies", "at least one frequency is required")
		}
		for i, f := range a.Frequencies {
			if !(f > 0) || math.IsInf(f, 0) {
				return nil, nil, emerror.Configf(fmt.Sprintf("axis.frequencies[%d]", i), "must be finite and positive, got %g", f)
			}
		}
		return append([]float64(nil), a.Frequencies...), nil, nil
	}

	if len(a.Frequencies) > 0 {
		return nil, nil, emerror.Configf("axis.frequencies",
			"a time-domain run computes its own frequencies; supply a frequency set through the Fourier options")
	}
	var m fourier.Method
	if opts.Fourier != nil {
		m = *opts.Fourier
	} else {
		trig := fourier.Sine
		if a.Signal == models.SwitchOff {
			trig = fourier.Cosine
		}
		var err error
		if m, err = fourier.NewDLF(filters.FourierFine, trig); err != nil {
			return nil, nil, err
		}
	}
	plan, err := fourier.NewPlan(a.Times, a.Signal, m, opts.FourierFrequencies)
	if err != nil {
		return nil, nil, err
	}
	freqs := append([]float64(nil), plan.RequiredFrequencies()...)
	return freqs, plan, nil
}

// hankelMethods returns the Hankel method of every depth group. Without an
// explicit method the fine DLF filter is used, lagged when the group holds
// at least three log-spaced offsets. Groups whose direct wave stays in the
// wavenumber kernel get QWE instead: the non-decaying integrand of a source
// and receiver in one layer is beyond the reach of the filters.
func hankelMethods(model *layers.Model, geo *geometry, opts Options) ([]hankel.Method, error) {
	methods := make([]hankel.Method, len(geo.groups))
	if opts.Hankel != nil {
		m := opts.Hankel.WithDefaults()
		if err := m.Validate(); err != nil {
			return nil, err
		}
		for i := range methods {
			methods[i] = m
		}
		return methods, nil
	}

	fine, err := hankel.NewDLF(filters.HankelFine)
	if err != nil {
		return nil, err
	}
	qwe := hankel.Method{Kind: hankel.QWE}.WithDefaults()
	for i, grp := range geo.groups {
		if directInKernel(model, grp, opts) {
			methods[i] = qwe
			continue
		}
		methods[i] = fine
		if logSpaced(grp.offsets()) {
			methods[i].Variant = hankel.Lagged
		}
	}
	return methods, nil
}

// directInKernel reports whether the direct wave of grp is left in the
// wavenumber domain: source and receiver share a layer and either the
// caller asked for it or the layer is anisotropic
func directInKernel(model *layers.Model, grp *group, opts Options) bool {
	ls, err := model.LayerOf(grp.zs, opts.Policy)
	if err != nil {
		return false
	}
	lr, err := model.LayerOf(grp.zr, opts.Policy)
	if err != nil || ls != lr {
		return false
	}
	return opts.DirectInKernel || !model.Isotropic(ls)
}

// offsetsFrom returns the horizontal distance of every receiver from the
// source position, or from the bipole midpoint
func offsetsFrom(in Input) []float64 {
	c := in.Source.Position
	if in.Source.Kind == models.ElectricBipole {
		c.X = (c.X + in.Source.End.X) / 2
		c.Y = (c.Y + in.Source.End.Y) / 2
	}
	out := make([]float64, len(in.Receivers))
	for i, r := range in.Receivers {
		out[i] = math.Hypot(r.Position.X-c.X, r.Position.Y-c.Y)
	}
	return out
}
