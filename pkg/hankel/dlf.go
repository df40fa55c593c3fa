package hankel

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"geoem1d/pkg/emerror"
	"geoem1d/pkg/interpolation"
	"geoem1d/pkg/kernel"
)

// tailPoints is the number of filter points at each end counted as tail in
// the under-sampling check
const tailPoints = 3

// convolve applies the filter weights to the kernel samples
// vals[shift], ..., vals[shift+N-1] taken at b_n/off and returns the three
// integrals of every component, together with the share of the absolute sum
// carried by the outermost filter points.
func (r *run) convolve(vals [][]kernel.Integrand, shift int, off float64) ([]kernel.Integrand, float64) {
	f := r.method.Filter
	n := f.Len()
	sums := make([]kernel.Integrand, len(vals[shift]))
	var tail, mass float64
	for i := 0; i < n; i++ {
		w0 := complex(f.J0[i], 0)
		w1 := complex(f.J1[i], 0)
		edge := i < tailPoints || i >= n-tailPoints
		for ci, in := range vals[shift+i] {
			a := in.J0 * w0
			b := in.J0b * w0
			c := in.J1 * w1
			sums[ci].J0 += a
			sums[ci].J0b += b
			sums[ci].J1 += c
			abs := cmplx.Abs(a) + cmplx.Abs(b) + cmplx.Abs(c)
			mass += abs
			if edge {
				tail += abs
			}
		}
	}

	inv := complex(1/off, 0)
	for ci := range sums {
		sums[ci].J0 *= inv
		sums[ci].J0b *= inv
		sums[ci].J1 *= inv
	}
	if mass == 0 {
		return sums, 0
	}
	return sums, tail / mass
}

// undersampled returns the per-entry warning of an offset whose outer filter
// points carry more than TailTolerance of the sum, or nil
func (r *run) undersampled(c kernel.Component, off, share float64) error {
	if !(share > r.method.TailTolerance) {
		return nil
	}
	return &emerror.NumericalInstabilityWarning{
		Where:     fmt.Sprintf("hankel dlf %s at offset %g m", c, off),
		Condition: share,
		Detail:    fmt.Sprintf("filter %s is under-sampled: outer points carry %.2g of the sum", r.method.Filter.Name, share),
	}
}

// dlfStandard evaluates the kernel at b_n/r for every offset
func (r *run) dlfStandard(offsets []float64) [][]kernel.Integrand {
	f := r.method.Filter
	out := make([][]kernel.Integrand, len(offsets))
	vals := make([][]kernel.Integrand, f.Len())
	r.tails = make([]float64, len(offsets))
	for k, off := range offsets {
		for n, b := range f.Base {
			vals[n] = r.integrands(b / off)
		}
		out[k], r.tails[k] = r.convolve(vals, 0, off)
	}
	return out
}

// dlfLagged places the offsets on a log grid r_k = rmax*exp(-k*delta) with
// the filter spacing delta. Every grid offset then shares the wavenumbers
// b_0*exp(m*delta)/rmax, so the kernel is evaluated N+K-1 times instead of
// N*K. The grid results are interpolated in ln(r).
func (r *run) dlfLagged(offsets []float64) ([][]kernel.Integrand, error) {
	f := r.method.Filter
	delta := f.Spacing()
	rmin, rmax := offsets[0], offsets[len(offsets)-1]

	nr := int(math.Ceil(math.Log(rmax/rmin)/delta)) + 1
	if len(offsets) > 1 && nr < 4 {
		nr = 4
	}

	vals := make([][]kernel.Integrand, f.Len()+nr-1)
	for m := range vals {
		vals[m] = r.integrands(f.Base[0] * math.Exp(float64(m)*delta) / rmax)
	}

	grid := make([]float64, nr)
	gsums := make([][]kernel.Integrand, nr)
	shares := make([]float64, nr)
	for k := range grid {
		grid[k] = rmax * math.Exp(-float64(k)*delta)
		gsums[k], shares[k] = r.convolve(vals, k, grid[k])
	}
	if nr == 1 {
		r.tails = []float64{shares[0]}
		return [][]kernel.Integrand{gsums[0]}, nil
	}

	// an offset inherits the worse share of the two grid offsets around it
	r.tails = make([]float64, len(offsets))
	for k, off := range offsets {
		j := int(math.Log(rmax/off) / delta)
		if j > nr-2 {
			j = nr - 2
		}
		r.tails[k] = math.Max(shares[j], shares[j+1])
	}

	out := make([][]kernel.Integrand, len(offsets))
	for k := range out {
		out[k] = make([]kernel.Integrand, len(r.comps))
	}
	ys := make([]complex128, nr)
	for ci := range r.comps {
		for p := 0; p < 3; p++ {
			for k := range grid {
				ys[k] = part(gsums[k][ci], p)
			}
			sp, err := interpolation.NewLogComplex(grid, ys)
			if err != nil {
				return nil, fmt.Errorf("lagged convolution: %w", err)
			}
			for k, off := range offsets {
				setPart(&out[k][ci], p, sp.At(off))
			}
		}
	}
	return out, nil
}

// dlfSplined evaluates the kernel on a log-spaced wavenumber grid covering
// all filter points of all offsets and interpolates it in ln(lambda).
func (r *run) dlfSplined(offsets []float64) ([][]kernel.Integrand, error) {
	f := r.method.Filter
	n := f.Len()
	rmin, rmax := offsets[0], offsets[len(offsets)-1]
	lmin := f.Base[0] / rmax
	lmax := f.Base[n-1] / rmin

	np := int(math.Ceil(math.Log10(lmax/lmin)*r.method.PtsPerDec)) + 1
	if np < 4 {
		np = 4
	}
	grid := floats.LogSpan(make([]float64, np), lmin, lmax)
	samples := make([][]kernel.Integrand, np)
	for i, lam := range grid {
		samples[i] = r.integrands(lam)
	}

	nc := len(r.comps)
	splines := make([][3]*interpolation.LogComplex, nc)
	ys := make([]complex128, np)
	for ci := 0; ci < nc; ci++ {
		for p := 0; p < 3; p++ {
			for i := range grid {
				ys[i] = part(samples[i][ci], p)
			}
			sp, err := interpolation.NewLogComplex(grid, ys)
			if err != nil {
				return nil, fmt.Errorf("splined dlf: %w", err)
			}
			splines[ci][p] = sp
		}
	}

	out := make([][]kernel.Integrand, len(offsets))
	vals := make([][]kernel.Integrand, n)
	r.tails = make([]float64, len(offsets))
	for k, off := range offsets {
		for i, b := range f.Base {
			lam := b / off
			row := make([]kernel.Integrand, nc)
			for ci := 0; ci < nc; ci++ {
				row[ci] = kernel.Integrand{
					J0:  splines[ci][0].At(lam),
					J0b: splines[ci][1].At(lam),
					J1:  splines[ci][2].At(lam),
				}
			}
			vals[i] = row
		}
		out[k], r.tails[k] = r.convolve(vals, 0, off)
	}
	return out, nil
}
