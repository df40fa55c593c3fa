package quadrature

import (
	"math"
	"math/cmplx"
	"testing"

	"geoem1d/pkg/emerror"
)

func real1(f func(float64) float64) func(float64) complex128 {
	return func(x float64) complex128 { return complex(f(x), 0) }
}

func TestLegendrePolynomials(t *testing.T) {
	testCases := []struct {
		n        int
		f        func(float64) float64
		a, b     float64
		expected float64
	}{
		{3, func(x float64) float64 { return x * x * x * x * x }, 0, 2, 64.0 / 6},
		{5, func(x float64) float64 { return 3*x*x - 2*x + 1 }, -1, 3, 24},
		{10, math.Exp, 0, 1, math.E - 1},
	}

	for _, tc := range testCases {
		got := real(Legendre(tc.n).Integrate(real1(tc.f), tc.a, tc.b))
		if math.Abs(got-tc.expected) > 1e-12*math.Abs(tc.expected) {
			t.Errorf("n=%d: expected %g, got %g", tc.n, tc.expected, got)
		}
	}
}

func TestRuleMap(t *testing.T) {
	x, w := Legendre(4).Map(2, 6)
	var sum float64
	for i := range x {
		if x[i] <= 2 || x[i] >= 6 {
			t.Errorf("Node %g outside [2, 6]", x[i])
		}
		sum += w[i]
	}
	if math.Abs(sum-4) > 1e-14 {
		t.Errorf("Expected weights to sum to 4, got %g", sum)
	}
}

func TestAdaptive(t *testing.T) {
	got, err := Adaptive(real1(math.Sqrt), 0, 1, Settings{RTol: 1e-10, Limit: 200})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if math.Abs(real(got)-2.0/3) > 1e-9 {
		t.Errorf("Expected 2/3, got %g", real(got))
	}

	osc := func(x float64) complex128 { return cmplx.Exp(complex(0, 3*x)) }
	got, err = Adaptive(osc, 0, math.Pi, Settings{RTol: 1e-12})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// int_0^pi e^{3ix} dx = (e^{3i pi} - 1) / 3i = 2i/3
	if cmplx.Abs(got-complex(0, 2.0/3)) > 1e-11 {
		t.Errorf("Expected 2i/3, got %v", got)
	}
}

func TestAdaptiveLimit(t *testing.T) {
	f := real1(func(x float64) float64 { return math.Sin(1 / x) })
	_, err := Adaptive(f, 1e-4, 1, Settings{RTol: 1e-14, Limit: 2})
	if !emerror.IsConvergence(err) {
		t.Fatalf("Expected ConvergenceError, got %v", err)
	}
	ce := err.(*emerror.ConvergenceError)
	if ce.Steps != 2 || ce.Method != "quad" {
		t.Errorf("Expected 2 quad steps, got %d %s", ce.Steps, ce.Method)
	}
}

func TestJ1Zeros(t *testing.T) {
	expected := []float64{3.8317059702075125, 7.015586669815619, 10.173468135062722, 13.323691936314223}
	got := J1Zeros(len(expected))
	for i, z := range expected {
		if math.Abs(got[i]-z) > 1e-12 {
			t.Errorf("Zero %d: expected %.16g, got %.16g", i, z, got[i])
		}
		if math.Abs(math.J1(got[i])) > 1e-14 {
			t.Errorf("Zero %d: J1 = %g", i, math.J1(got[i]))
		}
	}
	if iv := Intervals(3); len(iv) != 4 || iv[0] != 1e-20 {
		t.Errorf("Unexpected intervals %v", iv)
	}
}

func TestEpsilonAlternating(t *testing.T) {
	// ln 2 = 1 - 1/2 + 1/3 - ...
	var e Epsilon
	var s, est complex128
	for k := 1; k <= 20; k++ {
		s += complex(math.Pow(-1, float64(k+1))/float64(k), 0)
		est = e.Add(s)
	}
	if math.Abs(real(est)-math.Ln2) > 1e-9 {
		t.Errorf("Expected %g, got %g (partial sum %g)", math.Ln2, real(est), real(s))
	}
}

func TestQWE(t *testing.T) {
	rule := Legendre(21)

	testCases := []struct {
		name     string
		xint     []float64
		f        func(float64) float64
		expected float64
	}{
		{"J0", Intervals(60), math.J0, 1},
		{"sinc", func() []float64 {
			x := make([]float64, 61)
			for i := range x {
				x[i] = float64(i) * math.Pi
			}
			return x
		}(), func(x float64) float64 { return math.Sin(x) / x }, math.Pi / 2},
	}

	for _, tc := range testCases {
		term := func(i int) complex128 {
			return rule.Integrate(real1(tc.f), tc.xint[i], tc.xint[i+1])
		}
		got, steps, err := QWE(term, QWESettings{RTol: 1e-12, ATol: 1e-30, MaxInt: 60})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if math.Abs(real(got)-tc.expected) > 1e-9 {
			t.Errorf("%s: expected %g, got %g after %d intervals", tc.name, tc.expected, real(got), steps)
		}
	}
}

func TestQWENoConvergence(t *testing.T) {
	// Growing terms never settle
	term := func(i int) complex128 { return complex(float64(i*i), 0) }
	_, steps, err := QWE(term, QWESettings{RTol: 1e-12, MaxInt: 5})
	if !emerror.IsConvergence(err) {
		t.Fatalf("Expected ConvergenceError, got %v", err)
	}
	if steps != 5 {
		t.Errorf("Expected 5 steps, got %d", steps)
	}
}
