package forward

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"geoem1d/pkg/kernel"
)

// project contracts the 3x3 Green's tensor block of one receiver field and
// source field with the receiver and source direction cosines:
// rdir^T G sdir. value returns the tensor entry of a component, or ok=false
// when it was not computed because a direction cosine is zero.
func project(rfield, sfield kernel.Field, rdir, sdir [3]float64, value func(kernel.Component) (complex128, bool)) complex128 {
	re := mat.NewDense(3, 3, nil)
	im := mat.NewDense(3, 3, nil)
	for ra := kernel.X; ra <= kernel.Z; ra++ {
		for sa := kernel.X; sa <= kernel.Z; sa++ {
			if rdir[ra] == 0 || sdir[sa] == 0 {
				continue
			}
			v, ok := value(kernel.Component{Rec: rfield, RecAxis: ra, Src: sfield, SrcAxis: sa})
			if !ok {
				continue
			}
			re.Set(int(ra), int(sa), real(v))
			im.Set(int(ra), int(sa), imag(v))
		}
	}
	r := mat.NewVecDense(3, rdir[:])
	s := mat.NewVecDense(3, sdir[:])
	return complex(mat.Inner(r, re, s), mat.Inner(r, im, s))
}

func distinctSorted(xs []float64) []float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}
