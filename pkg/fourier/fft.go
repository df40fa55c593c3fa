package fourier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"geoem1d/internal/models"
	"geoem1d/pkg/interpolation"
)

// fft evaluates the transform integral with the trapezoidal rule on the
// uniform grid f_k = k*df by one inverse real FFT of length 2*NTot. The
// response is zero-padded above NFreq and its value at f = 0 is taken from
// the first sample. The time series lives on t_j = j/(2 NTot df) and is
// splined in t over the samples spanning the output times.
func (p *Plan) fft(values []complex128, res *Result) error {
	m := p.method
	n := 2 * m.NTot
	coeff := make([]complex128, m.NTot+1)

	for k, v := range values {
		w := 2 * math.Pi * p.need[k]
		switch p.signal {
		case models.Impulse:
			coeff[k+1] = complex(real(v), 0)
		case models.SwitchOn:
			coeff[k+1] = complex(0, -real(v)/w)
		case models.SwitchOff:
			coeff[k+1] = complex(-imag(v)/w, 0)
		}
	}
	if p.signal != models.SwitchOn {
		coeff[0] = coeff[1]
	}

	seq := fourier.NewFFT(n).Sequence(nil, coeff)
	dt := 1 / (float64(n) * m.DF)
	first, last := window(p.times, dt, n/2)
	ts := make([]float64, 0, last-first+1)
	hs := make([]complex128, 0, last-first+1)
	dc := 0.0
	if p.signal == models.SwitchOn {
		dc = real(values[0])
	}
	for j := first; j <= last; j++ {
		t := float64(j) * dt
		ts = append(ts, t)
		hs = append(hs, complex(2*m.DF*(seq[j]+dc*t), 0))
	}

	sp, err := interpolation.NewComplex(ts, hs)
	if err != nil {
		return fmt.Errorf("fourier fft: %w", err)
	}
	for i, t := range p.times {
		res.Values[i] = real(sp.At(t))
	}
	return nil
}

// fftPad is the number of samples kept on either side of the output times
const fftPad = 4

// window returns the first and last sample index in [1, max] of the grid
// j*dt that covers times with fftPad samples to spare
func window(times []float64, dt float64, max int) (first, last int) {
	first = int(floats.Min(times)/dt) - fftPad
	last = int(math.Ceil(floats.Max(times)/dt)) + fftPad
	if first < 1 {
		first = 1
	}
	if last > max {
		last = max
	}
	return first, last
}
