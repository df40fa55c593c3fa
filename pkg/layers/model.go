// Package layers holds the horizontally layered earth model.
//
// A model with N layers has N-1 interface depths. Layer 0 extends upwards to
// -Inf and layer N-1 downwards to +Inf. Depth is positive downwards.
package layers

import (
	"math"
	"sort"

	"geoem1d/pkg/emerror"
)

const (
	// Mu0 is the magnetic permeability of free space in H/m
	Mu0 = 4e-7 * math.Pi

	// Epsilon0 is the electric permittivity of free space in F/m
	Epsilon0 = 1.0 / (Mu0 * 299792458.0 * 299792458.0)
)

// BoundaryPolicy decides what happens when a source or receiver depth lies
// exactly on an interface.
type BoundaryPolicy int

const (
	// BoundaryError rejects the depth with a ConfigurationError
	BoundaryError BoundaryPolicy = iota

	// BoundaryAbove assigns the depth to the layer above the interface
	BoundaryAbove

	// BoundaryBelow assigns the depth to the layer below the interface
	BoundaryBelow
)

func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryAbove:
		return "above"
	case BoundaryBelow:
		return "below"
	default:
		return "error"
	}
}

// ParseBoundaryPolicy converts "error", "above" or "below" into a policy
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch s {
	case "", "error":
		return BoundaryError, nil
	case "above":
		return BoundaryAbove, nil
	case "below":
		return BoundaryBelow, nil
	}
	return BoundaryError, emerror.Configf("boundaryPolicy", "unknown policy %q", s)
}

// Params is the caller-facing description of a layered model. Optional slices
// may be left nil, in which case the isotropic vacuum value 1 is used.
type Params struct {
	// Depths are the interface depths in metres, strictly increasing
	Depths []float64 `yaml:"depths" json:"depths"`

	// Resistivity is the horizontal resistivity of each layer in Ohm.m
	Resistivity []float64 `yaml:"resistivity" json:"resistivity"`

	// Aniso is the anisotropy coefficient sqrt(rhoV/rhoH) of each layer
	Aniso []float64 `yaml:"aniso,omitempty" json:"aniso,omitempty"`

	// EpsH and EpsV are the relative horizontal and vertical permittivities
	EpsH []float64 `yaml:"epsH,omitempty" json:"epsH,omitempty"`
	EpsV []float64 `yaml:"epsV,omitempty" json:"epsV,omitempty"`

	// MuH and MuV are the relative horizontal and vertical permeabilities
	MuH []float64 `yaml:"muH,omitempty" json:"muH,omitempty"`
	MuV []float64 `yaml:"muV,omitempty" json:"muV,omitempty"`
}

// Model is a validated, immutable layered earth. It is safe for concurrent use.
type Model struct {
	depths []float64
	rho    []float64
	aniso  []float64
	epsH   []float64
	epsV   []float64
	muH    []float64
	muV    []float64
}

// New validates p and builds a Model.
func New(p Params) (*Model, error) {
	n := len(p.Resistivity)
	if n == 0 {
		return nil, emerror.Configf("resistivity", "at least one layer is required")
	}
	if len(p.Depths) != n-1 {
		return nil, emerror.Configf("depths", "expected %d interface depths for %d layers, got %d", n-1, n, len(p.Depths))
	}
	for i, d := range p.Depths {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, emerror.Configf("depths", "depth %d is not finite", i)
		}
		if i > 0 && d <= p.Depths[i-1] {
			return nil, emerror.Configf("depths", "depths must be strictly increasing (%g after %g)", d, p.Depths[i-1])
		}
	}

	m := &Model{depths: append([]float64(nil), p.Depths...)}

	var err error
	if m.rho, err = positive("resistivity", p.Resistivity, n, 0); err != nil {
		return nil, err
	}
	if m.aniso, err = positive("aniso", p.Aniso, n, 1); err != nil {
		return nil, err
	}
	if m.epsH, err = positive("epsH", p.EpsH, n, 1); err != nil {
		return nil, err
	}
	if m.epsV, err = positive("epsV", p.EpsV, n, 1); err != nil {
		return nil, err
	}
	if m.muH, err = positive("muH", p.MuH, n, 1); err != nil {
		return nil, err
	}
	if m.muV, err = positive("muV", p.MuV, n, 1); err != nil {
		return nil, err
	}
	return m, nil
}

// positive copies values, defaulting a nil slice to def. A zero def means the
// slice is mandatory.
func positive(name string, values []float64, n int, def float64) ([]float64, error) {
	out := make([]float64, n)
	if values == nil && def != 0 {
		for i := range out {
			out[i] = def
		}
		return out, nil
	}
	if len(values) != n {
		return nil, emerror.Configf(name, "expected %d values, got %d", n, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return nil, emerror.Configf(name, "value %d must be finite and positive, got %g", i, v)
		}
		out[i] = v
	}
	return out, nil
}

// NumLayers returns the number of layers
func (m *Model) NumLayers() int {
	return len(m.rho)
}

// Depths returns a copy of the interface depths
func (m *Model) Depths() []float64 {
	return append([]float64(nil), m.depths...)
}

// Top returns the top depth of layer i, -Inf for the first layer
func (m *Model) Top(i int) float64 {
	if i == 0 {
		return math.Inf(-1)
	}
	return m.depths[i-1]
}

// Bottom returns the bottom depth of layer i, +Inf for the last layer
func (m *Model) Bottom(i int) float64 {
	if i == len(m.depths) {
		return math.Inf(1)
	}
	return m.depths[i]
}

// Thickness returns the thickness of layer i, +Inf for the half-spaces
func (m *Model) Thickness(i int) float64 {
	return m.Bottom(i) - m.Top(i)
}

// Resistivity returns the horizontal resistivity of layer i
func (m *Model) Resistivity(i int) float64 {
	return m.rho[i]
}

// Isotropic reports whether layer i has identical horizontal and vertical
// properties.
func (m *Model) Isotropic(i int) bool {
	return m.aniso[i] == 1 && m.epsH[i] == m.epsV[i] && m.muH[i] == m.muV[i]
}

// LayerOf returns the index of the layer containing depth z. A depth on an
// interface is resolved with the given policy.
func (m *Model) LayerOf(z float64, policy BoundaryPolicy) (int, error) {
	if math.IsNaN(z) || math.IsInf(z, 0) {
		return 0, emerror.Configf("z", "depth %g is not finite", z)
	}

	// First interface at or below z
	i := sort.SearchFloat64s(m.depths, z)
	if i < len(m.depths) && m.depths[i] == z {
		switch policy {
		case BoundaryAbove:
			return i, nil
		case BoundaryBelow:
			return i + 1, nil
		default:
			return 0, emerror.Configf("z", "depth %g lies exactly on interface %d", z, i)
		}
	}
	return i, nil
}

// Properties holds the complex material parameters of every layer at one
// frequency, using the e^{iwt} convention: eta = sigma + iw*eps and
// zeta = iw*mu.
type Properties struct {
	EtaH  []complex128
	EtaV  []complex128
	ZetaH []complex128
	ZetaV []complex128
}

// Properties evaluates the material parameters at frequency freq in Hz
func (m *Model) Properties(freq float64) Properties {
	n := m.NumLayers()
	w := 2 * math.Pi * freq
	p := Properties{
		EtaH:  make([]complex128, n),
		EtaV:  make([]complex128, n),
		ZetaH: make([]complex128, n),
		ZetaV: make([]complex128, n),
	}
	for i := 0; i < n; i++ {
		sigH := 1 / m.rho[i]
		sigV := sigH / (m.aniso[i] * m.aniso[i])
		p.EtaH[i] = complex(sigH, w*Epsilon0*m.epsH[i])
		p.EtaV[i] = complex(sigV, w*Epsilon0*m.epsV[i])
		p.ZetaH[i] = complex(0, w*Mu0*m.muH[i])
		p.ZetaV[i] = complex(0, w*Mu0*m.muV[i])
	}
	return p
}
