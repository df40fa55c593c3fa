package kernel

import (
	"math"
	"math/cmplx"
)

// Fullspace returns the space-domain field of component c in a homogeneous
// isotropic medium with parameters eta and zeta, for a receiver at offset
// (dx, dy, dz) from the source. It is the direct wave removed from the
// kernel when Setup.XDirect is set. The distance must be non-zero.
func Fullspace(c Component, eta, zeta complex128, dx, dy, dz float64) complex128 {
	r := math.Sqrt(dx*dx + dy*dy + dz*dz)
	d := [3]float64{dx / r, dy / r, dz / r}
	gam := cmplx.Sqrt(eta * zeta)
	gr := gam * complex(r, 0)
	g := cmplx.Exp(-gr) / complex(4*math.Pi*r, 0)
	i, k := int(c.RecAxis), int(c.SrcAxis)

	switch {
	case c.Rec == c.Src:
		// E from electric or H from magnetic sources
		m := eta
		if c.Src == Magnetic {
			m = zeta
		}
		r2 := complex(r*r, 0)
		val := complex(d[i]*d[k], 0) * (gr*gr + 3*gr + 3) / r2
		if i == k {
			val -= (gr*gr + gr + 1) / r2
		}
		return g / m * val

	default:
		// Curl terms: H from electric and E from magnetic sources
		s := 0.0
		for j := 0; j < 3; j++ {
			s += levi(i, j, k) * d[j]
		}
		if s == 0 {
			return 0
		}
		val := g * (1 + gr) / complex(r, 0) * complex(s, 0)
		if c.Rec == Magnetic {
			return -val
		}
		return val
	}
}

// levi is the Levi-Civita symbol
func levi(i, j, k int) float64 {
	switch {
	case i == j || j == k || i == k:
		return 0
	case (i == 0 && j == 1 && k == 2) || (i == 1 && j == 2 && k == 0) || (i == 2 && j == 0 && k == 1):
		return 1
	}
	return -1
}

// Direct returns the analytic direct field of component c at horizontal
// offset r and azimuth phi (radians), or zero when the direct wave is part
// of the kernel.
func (e *Engine) Direct(c Component, r, phi float64) complex128 {
	if !e.xdirect {
		return 0
	}
	eta, zeta := e.Medium()
	return Fullspace(c, eta, zeta, r*math.Cos(phi), r*math.Sin(phi), e.zr-e.zs)
}
