package fourier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"geoem1d/pkg/hankel"
	"geoem1d/pkg/interpolation"
)

// weights returns the sine or cosine filter weights
func (p *Plan) weights() []float64 {
	if p.method.Trig == Cosine {
		return p.method.Filter.Cos
	}
	return p.method.Filter.Sin
}

// kernelAt applies the signal integrand to response values at Hz frequencies
func (p *Plan) kernelAt(freqs []float64, values []complex128) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = p.kern(2*math.Pi*freqs[i], v)
	}
	return out
}

// dlf evaluates (2/pi)(1/t) sum K(b_n/t) w_n for every output time
func (p *Plan) dlf(values []complex128, res *Result) error {
	f := p.method.Filter
	n := f.Len()
	w := p.weights()
	scale := 2 / math.Pi

	switch p.method.Variant {
	case hankel.Lagged:
		k := p.kernelAt(p.need, values)
		grid := make([]float64, len(p.tgrid))
		for j, t := range p.tgrid {
			grid[j] = scale * floats.Dot(k[j:j+n], w) / t
		}
		if len(grid) == 1 {
			for i := range res.Values {
				res.Values[i] = grid[0]
			}
			return nil
		}
		at, err := interpolation.Real(p.tgrid, grid)
		if err != nil {
			return fmt.Errorf("lagged fourier dlf: %w", err)
		}
		for i, t := range p.times {
			res.Values[i] = at(t)
		}

	case hankel.Splined:
		ip, err := NewInterpolator(p.need, values)
		if err != nil {
			return fmt.Errorf("splined fourier dlf: %w", err)
		}
		freqs := make([]float64, n)
		vals := make([]complex128, n)
		for i, t := range p.times {
			for j, b := range f.Base {
				freqs[j] = b / t / (2 * math.Pi)
				vals[j] = ip.At(freqs[j])
			}
			res.Values[i] = scale * floats.Dot(p.kernelAt(freqs, vals), w) / t
		}

	default:
		k := p.kernelAt(p.need, values)
		for i, t := range p.times {
			res.Values[i] = scale * floats.Dot(k[i*n:(i+1)*n], w) / t
		}
	}
	return nil
}
