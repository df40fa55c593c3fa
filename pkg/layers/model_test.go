package layers

import (
	"math"
	"testing"

	"geoem1d/pkg/emerror"
)

func threeLayer(t *testing.T) *Model {
	m, err := New(Params{
		Depths:      []float64{0, 100, 200},
		Resistivity: []float64{1, 1, 100, 1},
	})
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	return m
}

func TestNewValidation(t *testing.T) {
	testCases := []struct {
		name   string
		params Params
		ok     bool
	}{
		{"fullspace", Params{Resistivity: []float64{10}}, true},
		{"no layers", Params{}, false},
		{"depth count", Params{Depths: []float64{0, 10}, Resistivity: []float64{1, 2}}, false},
		{"non monotonic", Params{Depths: []float64{10, 5}, Resistivity: []float64{1, 2, 3}}, false},
		{"equal depths", Params{Depths: []float64{10, 10}, Resistivity: []float64{1, 2, 3}}, false},
		{"negative resistivity", Params{Depths: []float64{0}, Resistivity: []float64{1, -2}}, false},
		{"nan depth", Params{Depths: []float64{math.NaN()}, Resistivity: []float64{1, 2}}, false},
		{"aniso length", Params{Depths: []float64{0}, Resistivity: []float64{1, 2}, Aniso: []float64{1}}, false},
		{"anisotropic", Params{Depths: []float64{0}, Resistivity: []float64{1, 2}, Aniso: []float64{1, 2}}, true},
	}

	for _, tc := range testCases {
		_, err := New(tc.params)
		if tc.ok && err != nil {
			t.Errorf("%s: expected success, got %v", tc.name, err)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("%s: expected error, got nil", tc.name)
			} else if !emerror.IsConfiguration(err) {
				t.Errorf("%s: expected ConfigurationError, got %T", tc.name, err)
			}
		}
	}
}

func TestLayerOf(t *testing.T) {
	m := threeLayer(t)

	testCases := []struct {
		z        float64
		expected int
	}{
		{-50, 0},
		{10, 1},
		{50, 1},
		{150, 2},
		{1e6, 3},
	}

	for _, tc := range testCases {
		got, err := m.LayerOf(tc.z, BoundaryError)
		if err != nil {
			t.Errorf("z=%g: unexpected error %v", tc.z, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("z=%g: expected layer %d, got %d", tc.z, tc.expected, got)
		}
	}
}

func TestLayerOfBoundaryPolicies(t *testing.T) {
	m := threeLayer(t)

	if _, err := m.LayerOf(100, BoundaryError); !emerror.IsConfiguration(err) {
		t.Errorf("Expected ConfigurationError on interface, got %v", err)
	}

	testCases := []struct {
		policy   BoundaryPolicy
		z        float64
		expected int
	}{
		{BoundaryAbove, 0, 0},
		{BoundaryBelow, 0, 1},
		{BoundaryAbove, 100, 1},
		{BoundaryBelow, 100, 2},
		{BoundaryAbove, 200, 2},
		{BoundaryBelow, 200, 3},
	}

	for _, tc := range testCases {
		got, err := m.LayerOf(tc.z, tc.policy)
		if err != nil {
			t.Errorf("%s z=%g: unexpected error %v", tc.policy, tc.z, err)
			continue
		}
		if got != tc.expected {
			t.Errorf("%s z=%g: expected layer %d, got %d", tc.policy, tc.z, tc.expected, got)
		}
	}
}

func TestGeometryAccessors(t *testing.T) {
	m := threeLayer(t)

	if m.NumLayers() != 4 {
		t.Errorf("Expected 4 layers, got %d", m.NumLayers())
	}
	if !math.IsInf(m.Top(0), -1) {
		t.Errorf("Expected -Inf top for first layer, got %g", m.Top(0))
	}
	if !math.IsInf(m.Bottom(3), 1) {
		t.Errorf("Expected +Inf bottom for last layer, got %g", m.Bottom(3))
	}
	if m.Thickness(2) != 100 {
		t.Errorf("Expected thickness 100, got %g", m.Thickness(2))
	}
}

func TestProperties(t *testing.T) {
	m, err := New(Params{Depths: []float64{0}, Resistivity: []float64{2, 4}, Aniso: []float64{1, 2}})
	if err != nil {
		t.Fatalf("Failed to build model: %v", err)
	}
	p := m.Properties(1)

	if real(p.EtaH[0]) != 0.5 {
		t.Errorf("Expected sigmaH 0.5, got %g", real(p.EtaH[0]))
	}
	// sigmaV = sigmaH / aniso^2
	if math.Abs(real(p.EtaV[1])-0.25/4) > 1e-15 {
		t.Errorf("Expected sigmaV 0.0625, got %g", real(p.EtaV[1]))
	}
	if math.Abs(imag(p.ZetaH[0])-2*math.Pi*Mu0) > 1e-18 {
		t.Errorf("Expected zeta %g, got %g", 2*math.Pi*Mu0, imag(p.ZetaH[0]))
	}
	if m.Isotropic(1) {
		t.Error("Expected layer 1 to be anisotropic")
	}
}
