package fourier

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"geoem1d/internal/models"
	"geoem1d/pkg/emerror"
	"geoem1d/pkg/filters"
	"geoem1d/pkg/hankel"
)

const tau = 10.0

// relax is the spectrum 1/(1 + i w tau) of the causal response e^{-t/tau}/tau
func relax(f float64) complex128 {
	return 1 / complex(1, 2*math.Pi*f*tau)
}

func exact(sig models.Signal, t float64) float64 {
	switch sig {
	case models.SwitchOn:
		return 1 - math.Exp(-t/tau)
	case models.SwitchOff:
		return math.Exp(-t / tau)
	}
	return math.Exp(-t/tau) / tau
}

// run plans a transform, evaluates the spectrum at the required
// frequencies and returns the time-domain result
func run(t *testing.T, times []float64, sig models.Signal, m Method, supplied []float64) *Result {
	p, err := NewPlan(times, sig, m, supplied)
	if err != nil {
		t.Fatalf("Failed to plan %s: %v", m, err)
	}
	freqs := p.RequiredFrequencies()
	values := make([]complex128, len(freqs))
	for i, f := range freqs {
		values[i] = relax(f)
	}
	res, err := p.Transform(values)
	if err != nil {
		t.Fatalf("Failed to transform with %s: %v", m, err)
	}
	return res
}

func dlf(t *testing.T, name string, trig Trig, v Variant) Method {
	m, err := NewDLF(name, trig)
	if err != nil {
		t.Fatalf("Failed to get filter: %v", err)
	}
	m.Variant = v
	return m
}

var times = []float64{5, 8, 12, 20}

func TestSignals(t *testing.T) {
	testCases := []struct {
		name   string
		signal models.Signal
		method Method
		tol    float64
	}{
		{"impulse dlf sin", models.Impulse, dlf(t, filters.FourierFine, Sine, hankel.Lagged), 1e-4},
		{"impulse dlf cos", models.Impulse, dlf(t, filters.FourierFine, Cosine, hankel.Lagged), 1e-4},
		{"switch-on dlf", models.SwitchOn, dlf(t, filters.FourierFine, Sine, hankel.Lagged), 1e-4},
		{"switch-off dlf", models.SwitchOff, dlf(t, filters.FourierFine, Cosine, hankel.Lagged), 1e-4},
		{"switch-on dlf standard", models.SwitchOn, dlf(t, filters.FourierFine, Sine, hankel.Standard), 1e-4},
		{"switch-off dlf fast", models.SwitchOff, dlf(t, filters.FourierFast, Cosine, hankel.Standard), 1e-3},
		{"impulse dlf splined", models.Impulse, dlf(t, filters.FourierFine, Sine, hankel.Splined), 1e-3},
		{"switch-on qwe", models.SwitchOn, Method{Kind: QWE, Trig: Sine}, 1e-3},
		{"switch-off qwe", models.SwitchOff, Method{Kind: QWE, Trig: Cosine}, 1e-3},
		{"impulse fft", models.Impulse, Method{Kind: FFT}, 1e-2},
		{"switch-on fft", models.SwitchOn, Method{Kind: FFT}, 1e-2},
		{"switch-off fft", models.SwitchOff, Method{Kind: FFT}, 1e-2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := run(t, times, tc.signal, tc.method, nil)
			resampled := tc.method.Kind == QWE || (tc.method.Kind == DLF && tc.method.Variant == hankel.Splined)
			if res.Interpolated != resampled {
				t.Errorf("Expected Interpolated = %v, got %v", resampled, res.Interpolated)
			}
			for i, tm := range times {
				if res.Errors[i] != nil {
					t.Errorf("Unexpected error at t = %g: %v", tm, res.Errors[i])
					continue
				}
				want := exact(tc.signal, tm)
				if d := math.Abs(res.Values[i]-want) / math.Abs(want); d > tc.tol {
					t.Errorf("At t = %g: expected %g, got %g (relative error %.2g)", tm, want, res.Values[i], d)
				}
			}
		})
	}
}

// TestFFTLongSequence transforms a long padded sequence; only the samples
// around the output times are splined
func TestFFTLongSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping long FFT in short mode")
	}
	m := Method{Kind: FFT, DF: 0.0005, NFreq: 16384, NTot: 1 << 16}
	res := run(t, times, models.SwitchOff, m, nil)
	for i, tm := range times {
		want := exact(models.SwitchOff, tm)
		if d := math.Abs(res.Values[i]-want) / want; d > 1e-2 {
			t.Errorf("At t = %g: expected %g, got %g (relative error %.2g)", tm, want, res.Values[i], d)
		}
	}
}

// TestFFTLog transforms the Gaussian spectra w exp(-w^2/2) (sine) and
// w^2 exp(-w^2/2) (cosine), whose transforms are known in closed form. The
// cosine case needs the bias q because its output only decays as sqrt(t)
// towards t = 0.
func TestFFTLog(t *testing.T) {
	gtimes := []float64{0.5, 0.8, 1.5, 2}
	testCases := []struct {
		name  string
		trig  Trig
		q     float64
		exact func(t float64) float64
	}{
		{"sine", Sine, 0, func(t float64) float64 {
			return math.Sqrt(2/math.Pi) * t * math.Exp(-t*t/2)
		}},
		{"cosine", Cosine, 0.4, func(t float64) float64 {
			return math.Sqrt(2/math.Pi) * (1 - t*t) * math.Exp(-t*t/2)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := Method{Kind: FFTLog, Trig: tc.trig, PtsPerDec: 40, AddDec: [2]float64{-4, 2}, Q: tc.q}
			p, err := NewPlan(gtimes, models.Impulse, m, nil)
			if err != nil {
				t.Fatalf("Failed to plan %s: %v", m, err)
			}
			freqs := p.RequiredFrequencies()
			if len(freqs)%2 != 1 {
				t.Errorf("Expected an odd number of frequencies, got %d", len(freqs))
			}
			values := make([]complex128, len(freqs))
			for i, f := range freqs {
				w := 2 * math.Pi * f
				g := math.Exp(-w * w / 2)
				values[i] = complex(w*w*g, -w*g)
			}
			res, err := p.Transform(values)
			if err != nil {
				t.Fatalf("Failed to transform with %s: %v", m, err)
			}
			if res.Interpolated {
				t.Error("Expected FFTLog to use the computed frequencies directly")
			}
			for i, tm := range gtimes {
				if res.Errors[i] != nil {
					t.Errorf("Unexpected error at t = %g: %v", tm, res.Errors[i])
					continue
				}
				want := tc.exact(tm)
				if d := math.Abs(res.Values[i] - want); d > 1e-4 {
					t.Errorf("At t = %g: expected %g, got %g (error %.2g)", tm, want, res.Values[i], d)
				}
			}
		})
	}
}

func TestLaggedSharesFrequencies(t *testing.T) {
	lagged, err := NewPlan(times, models.SwitchOn, dlf(t, filters.FourierFine, Sine, hankel.Lagged), nil)
	if err != nil {
		t.Fatalf("Failed to plan: %v", err)
	}
	standard, err := NewPlan(times, models.SwitchOn, dlf(t, filters.FourierFine, Sine, hankel.Standard), nil)
	if err != nil {
		t.Fatalf("Failed to plan: %v", err)
	}
	if len(lagged.RequiredFrequencies()) >= len(standard.RequiredFrequencies()) {
		t.Errorf("Expected lagged plan to need fewer than %d frequencies, got %d",
			len(standard.RequiredFrequencies()), len(lagged.RequiredFrequencies()))
	}
}

func TestSuppliedFrequencies(t *testing.T) {
	supplied := floats.LogSpan(make([]float64, 141), 1e-6, 1e1)
	m := dlf(t, filters.FourierFine, Sine, hankel.Lagged)

	p, err := NewPlan(times, models.SwitchOn, m, supplied)
	if err != nil {
		t.Fatalf("Failed to plan: %v", err)
	}
	if !p.Interpolated() || !p.Supplied() {
		t.Error("Expected plan to interpolate supplied frequencies")
	}
	if got := len(p.RequiredFrequencies()); got != len(supplied) {
		t.Errorf("Expected %d required frequencies, got %d", len(supplied), got)
	}

	res := run(t, times, models.SwitchOn, m, supplied)
	if !res.Interpolated {
		t.Error("Expected result to report interpolation")
	}
	for i, tm := range times {
		want := exact(models.SwitchOn, tm)
		if d := math.Abs(res.Values[i]-want) / want; d > 1e-3 {
			t.Errorf("At t = %g: expected %g, got %g", tm, want, res.Values[i])
		}
	}
}

func TestInterpolatorAsymptotes(t *testing.T) {
	freqs := floats.LogSpan(make([]float64, 41), 1e-2, 1e2)
	values := make([]complex128, len(freqs))
	for i, f := range freqs {
		values[i] = relax(f)
	}
	ip, err := NewInterpolator(freqs, values)
	if err != nil {
		t.Fatalf("Failed to build interpolator: %v", err)
	}

	low := ip.At(1e-3)
	if math.Abs(real(low)-real(values[0])) > 1e-12 {
		t.Errorf("Expected real part %g below the band, got %g", real(values[0]), real(low))
	}
	if want := imag(values[0]) / 10; math.Abs(imag(low)-want) > 1e-12 {
		t.Errorf("Expected imaginary part %g below the band, got %g", want, imag(low))
	}
	if v := ip.At(1e3); v != 0 {
		t.Errorf("Expected zero above the band, got %v", v)
	}
	mid := ip.At(0.37)
	if d := math.Abs(real(mid)-real(relax(0.37))) / real(relax(0.37)); d > 1e-3 {
		t.Errorf("Expected %v inside the band, got %v", relax(0.37), mid)
	}

	if _, err := NewInterpolator(freqs[:1], values[:1]); !emerror.IsConfiguration(err) {
		t.Errorf("Expected configuration error for a single frequency, got %v", err)
	}
	bad := append([]complex128(nil), values...)
	bad[3] = complex(math.NaN(), 0)
	if _, err := NewInterpolator(freqs, bad); !emerror.IsInstability(err) {
		t.Errorf("Expected instability for a NaN value, got %v", err)
	}
}

func TestPlanErrors(t *testing.T) {
	sine := dlf(t, filters.FourierFine, Sine, hankel.Lagged)
	cosine := dlf(t, filters.FourierFine, Cosine, hankel.Lagged)

	testCases := []struct {
		name        string
		times       []float64
		signal      models.Signal
		method      Method
		unsupported bool
	}{
		{"switch-on with cosine", times, models.SwitchOn, cosine, true},
		{"switch-off with sine", times, models.SwitchOff, sine, true},
		{"frequency-domain signal", times, models.SignalNone, sine, false},
		{"no times", nil, models.Impulse, sine, false},
		{"negative time", []float64{-1}, models.Impulse, sine, false},
		{"fft window", []float64{1000}, models.Impulse, Method{Kind: FFT}, false},
		{"fft resolution", []float64{1e-4}, models.Impulse, Method{Kind: FFT}, false},
		{"hankel filter", times, models.Impulse, Method{Kind: DLF, Filter: mustFilter(t, filters.HankelFast)}, false},
		{"fftlog bias", times, models.Impulse, Method{Kind: FFTLog, Q: 0.5}, false},
		{"fftlog decades", times, models.Impulse, Method{Kind: FFTLog, AddDec: [2]float64{1, 2}}, false},
	}

	for _, tc := range testCases {
		_, err := NewPlan(tc.times, tc.signal, tc.method, nil)
		if tc.unsupported && !emerror.IsUnsupported(err) {
			t.Errorf("%s: expected unsupported configuration, got %v", tc.name, err)
		}
		if !tc.unsupported && !emerror.IsConfiguration(err) {
			t.Errorf("%s: expected configuration error, got %v", tc.name, err)
		}
	}

	p, err := NewPlan(times, models.Impulse, sine, nil)
	if err != nil {
		t.Fatalf("Failed to plan: %v", err)
	}
	if _, err := p.Transform(make([]complex128, 3)); !emerror.IsConfiguration(err) {
		t.Errorf("Expected configuration error for a short value slice, got %v", err)
	}
}

func mustFilter(t *testing.T, name string) *filters.Filter {
	f, err := filters.Get(name)
	if err != nil {
		t.Fatalf("Failed to get filter %s: %v", name, err)
	}
	return f
}

func TestParse(t *testing.T) {
	if k, err := ParseKind("fft"); err != nil || k != FFT {
		t.Errorf("Expected fft, got %v (%v)", k, err)
	}
	if k, err := ParseKind("fftlog"); err != nil || k != FFTLog {
		t.Errorf("Expected fftlog, got %v (%v)", k, err)
	}
	if _, err := ParseKind("laplace"); !emerror.IsConfiguration(err) {
		t.Errorf("Expected configuration error, got %v", err)
	}
	if tr, err := ParseTrig("cos"); err != nil || tr != Cosine {
		t.Errorf("Expected cos, got %v (%v)", tr, err)
	}
	m := Method{Kind: QWE}.WithDefaults()
	if m.NQuad != DefaultNQuad || m.MaxInt != DefaultMaxInt || m.NTot != DefaultNFreq {
		t.Errorf("Expected defaults, got %+v", m)
	}
}

// TestRoundTrip takes the spectrum to the impulse response at the times
// the inverse filter needs and back to the spectrum.
func TestRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping round trip in short mode")
	}
	f := mustFilter(t, filters.FourierFine)
	freqs := []float64{0.005, 0.02, 0.1}

	tt, err := SpectrumTimes(freqs, f)
	if err != nil {
		t.Fatalf("Failed to get spectrum times: %v", err)
	}
	res := run(t, tt, models.Impulse, dlf(t, filters.FourierFine, Cosine, hankel.Lagged), nil)
	back, err := Spectrum(res.Values, freqs, f)
	if err != nil {
		t.Fatalf("Failed to compute spectrum: %v", err)
	}
	for i, fr := range freqs {
		want := relax(fr)
		if d := cmplxRel(back[i], want); d > 1e-3 {
			t.Errorf("At %g Hz: expected %v, got %v (relative error %.2g)", fr, want, back[i], d)
		}
	}

	if _, err := Spectrum(res.Values[:5], freqs, f); !emerror.IsConfiguration(err) {
		t.Errorf("Expected configuration error for short values, got %v", err)
	}
	if _, err := SpectrumTimes(freqs, mustFilter(t, filters.HankelFast)); !emerror.IsConfiguration(err) {
		t.Errorf("Expected configuration error for a Hankel filter, got %v", err)
	}
}

func cmplxRel(a, b complex128) float64 {
	d := a - b
	return math.Hypot(real(d), imag(d)) / math.Hypot(real(b), imag(b))
}
