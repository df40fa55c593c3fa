package forward

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// Decay is a power-law fit |value| ~ A * offset^Exponent across receivers
// at one axis entry
type Decay struct {
	Index     int     `json:"index" yaml:"index"`
	Exponent  float64 `json:"exponent" yaml:"exponent"`
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
	RSquared  float64 `json:"rSquared" yaml:"rSquared"`
}

// Summary condenses a response for logs and reports
type Summary struct {
	Entries int `json:"entries" yaml:"entries"`
	Failed  int `json:"failed" yaml:"failed"`

	// MeanLog10 and StdLog10 describe log10 of the finite magnitudes
	MeanLog10 float64 `json:"meanLog10" yaml:"meanLog10"`
	StdLog10  float64 `json:"stdLog10" yaml:"stdLog10"`

	Decay []Decay `json:"decay,omitempty" yaml:"decay,omitempty"`
}

// magnitudes returns |value| of receiver i at every axis entry
func (r *Response) magnitudes(i int) []float64 {
	if r.Values != nil {
		out := make([]float64, len(r.Values[i]))
		for j, v := range r.Values[i] {
			out[j] = cmplx.Abs(v)
		}
		return out
	}
	out := make([]float64, len(r.Series[i]))
	for j, v := range r.Series[i] {
		out[j] = math.Abs(v)
	}
	return out
}

func (r *Response) receivers() int {
	if r.Values != nil {
		return len(r.Values)
	}
	return len(r.Series)
}

// Summarize computes magnitude statistics and, when at least three
// receivers have distinct offsets, a power-law decay fit per axis entry.
func (r *Response) Summarize() Summary {
	var s Summary
	var logs []float64
	n := r.receivers()
	mags := make([][]float64, n)
	for i := 0; i < n; i++ {
		mags[i] = r.magnitudes(i)
		for _, m := range mags[i] {
			s.Entries++
			if math.IsNaN(m) {
				s.Failed++
				continue
			}
			if m > 0 && !math.IsInf(m, 0) {
				logs = append(logs, math.Log10(m))
			}
		}
	}
	if len(logs) > 0 {
		s.MeanLog10, s.StdLog10 = stat.MeanStdDev(logs, nil)
		if len(logs) == 1 {
			s.StdLog10 = 0
		}
	}

	if n < 3 || len(distinctSorted(r.Offsets)) < 3 {
		return s
	}
	for j := range mags[0] {
		var x, y []float64
		for i := 0; i < n; i++ {
			m := mags[i][j]
			if r.Offsets[i] > 0 && m > 0 && !math.IsNaN(m) && !math.IsInf(m, 0) {
				x = append(x, math.Log(r.Offsets[i]))
				y = append(y, math.Log(m))
			}
		}
		if len(distinctSorted(x)) < 3 {
			continue
		}
		alpha, beta := stat.LinearRegression(x, y, nil, false)
		s.Decay = append(s.Decay, Decay{
			Index:     j,
			Exponent:  beta,
			Amplitude: math.Exp(alpha),
			RSquared:  stat.RSquared(x, y, nil, alpha, beta),
		})
	}
	return s
}
