package filters

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func relErr(got, want float64) float64 {
	return math.Abs(got-want) / math.Abs(want)
}

// TestHankelFilters applies the built-in filters to Laplace-type integrals
// with closed forms:
//
//	int lambda e^{-lambda z} J0(lambda r) dlambda = z / (z^2+r^2)^{3/2}
//	int lambda e^{-lambda z} J1(lambda r) dlambda = r / (z^2+r^2)^{3/2}
func TestHankelFilters(t *testing.T) {
	testCases := []struct {
		name string
		tol  float64
	}{
		{HankelFine, 1e-6},
		{HankelFast, 1e-5},
	}

	for _, tc := range testCases {
		f, err := Get(tc.name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !f.Geometric(1e-9) {
			t.Errorf("%s: expected geometric base", tc.name)
		}
		for _, geom := range [][2]float64{{1, 1}, {0.5, 2}, {3, 1.5}} {
			z, r := geom[0], geom[1]
			var s0, s1 float64
			for i, b := range f.Base {
				lambda := b / r
				v := lambda * math.Exp(-lambda*z)
				s0 += v * f.J0[i]
				s1 += v * f.J1[i]
			}
			s0 /= r
			s1 /= r
			d := math.Pow(z*z+r*r, 1.5)
			if e := relErr(s0, z/d); e > tc.tol {
				t.Errorf("%s z=%g r=%g: J0 expected %g, got %g (rel %g)", tc.name, z, r, z/d, s0, e)
			}
			if e := relErr(s1, r/d); e > tc.tol {
				t.Errorf("%s z=%g r=%g: J1 expected %g, got %g (rel %g)", tc.name, z, r, r/d, s1, e)
			}
		}
	}
}

// TestFourierFilters uses
//
//	int sin(w t) w/(w^2+1) dw = int cos(w t) 1/(w^2+1) dw = pi/2 e^{-t}
func TestFourierFilters(t *testing.T) {
	testCases := []struct {
		name string
		tol  float64
	}{
		{FourierFine, 1e-6},
		{FourierFast, 1e-5},
	}

	for _, tc := range testCases {
		f, err := Get(tc.name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		for _, tm := range []float64{0.3, 1, 2.5} {
			var ss, sc float64
			for i, b := range f.Base {
				w := b / tm
				ss += w / (w*w + 1) * f.Sin[i]
				sc += 1 / (w*w + 1) * f.Cos[i]
			}
			ss /= tm
			sc /= tm
			want := math.Pi / 2 * math.Exp(-tm)
			if e := relErr(ss, want); e > tc.tol {
				t.Errorf("%s t=%g: sine expected %g, got %g (rel %g)", tc.name, tm, want, ss, e)
			}
			if e := relErr(sc, want); e > tc.tol {
				t.Errorf("%s t=%g: cosine expected %g, got %g (rel %g)", tc.name, tm, want, sc, e)
			}
		}
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("nope"); err == nil {
		t.Error("Expected error for unknown filter")
	}
	if len(Names()) != 4 {
		t.Errorf("Expected 4 built-in filters, got %d", len(Names()))
	}
}

func TestGetShared(t *testing.T) {
	a, err := Get(HankelFast)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	b, _ := Get(HankelFast)
	if a != b {
		t.Error("Expected the same filter instance on repeated lookups")
	}
}

func smallDesign(kind Kind) Design {
	return Design{Name: "small", Kind: kind, PointsPerDecade: 5, SMin: -5, SMax: 5, PassFraction: 0.55, Panels: 32, Order: 8}
}

func TestTableRoundTrip(t *testing.T) {
	for _, kind := range []Kind{Hankel, Fourier} {
		f, err := smallDesign(kind).Build()
		if err != nil {
			t.Fatalf("Failed to build design: %v", err)
		}

		var buf bytes.Buffer
		if err := Write(&buf, f); err != nil {
			t.Fatalf("Failed to write table: %v", err)
		}
		g, err := Read(&buf)
		if err != nil {
			t.Fatalf("Failed to read table: %v", err)
		}

		if g.Name != f.Name || g.Kind != f.Kind || g.Factor != f.Factor {
			t.Errorf("Expected header %s/%s/%g, got %s/%s/%g", f.Name, f.Kind, f.Factor, g.Name, g.Kind, g.Factor)
		}
		fa, fb := f.Weights()
		ga, gb := g.Weights()
		if g.Len() != f.Len() {
			t.Fatalf("Expected %d points, got %d", f.Len(), g.Len())
		}
		for i := range f.Base {
			if g.Base[i] != f.Base[i] || ga[i] != fa[i] || gb[i] != fb[i] {
				t.Errorf("Row %d differs after round trip", i)
			}
		}
	}
}

func TestSaveLoad(t *testing.T) {
	f, err := smallDesign(Hankel).Build()
	if err != nil {
		t.Fatalf("Failed to build design: %v", err)
	}
	path := filepath.Join(t.TempDir(), "filters", "small.txt")
	if err := Save(f, path); err != nil {
		t.Fatalf("Failed to save filter: %v", err)
	}
	g, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load filter: %v", err)
	}
	if g.Len() != f.Len() {
		t.Errorf("Expected %d points, got %d", f.Len(), g.Len())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestReadErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"no header", "1 2 3\n2 3 4\n"},
		{"bad kind", "# kind=other\n1 2 3\n"},
		{"wrong columns", "# kind=hankel\n1 2\n"},
		{"bad number", "# kind=hankel\n1 x 3\n2 3 4\n"},
		{"not increasing", "# kind=hankel factor=2\n2 1 1\n1 1 1\n"},
		{"single row", "# kind=fourier\n1 1 1\n"},
	}

	for _, tc := range testCases {
		if _, err := Read(strings.NewReader(tc.input)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestLnGamma(t *testing.T) {
	for _, x := range []float64{0.5, 1, 2.5, 7, 12} {
		want, _ := math.Lgamma(x)
		got := LnGamma(complex(x, 0))
		if math.Abs(real(got)-want) > 1e-12 || math.Abs(imag(got)) > 1e-12 {
			t.Errorf("LnGamma(%g): expected %g, got %v", x, want, got)
		}
	}

	// |Gamma(1/2 + iy)|^2 = pi / cosh(pi y)
	for _, y := range []float64{0.3, 4, 25} {
		got := real(LnGamma(complex(0.5, y)))
		want := 0.5 * (math.Log(math.Pi) - lnCosh(math.Pi*y))
		if math.Abs(got-want) > 1e-10 {
			t.Errorf("ln|Gamma(1/2+%gi)|: expected %g, got %g", y, want, got)
		}
	}
}
