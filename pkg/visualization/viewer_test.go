package visualization

import (
	"image"
	"image/png"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"testing"

	"geoem1d/pkg/forward"
)

func frequencyResponse() *forward.Response {
	// 3 receivers x 4 frequencies, amplitude falling by a decade per receiver
	values := make([][]complex128, 3)
	for i := range values {
		values[i] = make([]complex128, 4)
		for j := range values[i] {
			values[i][j] = cmplx.Rect(math.Pow(10, -float64(i)), float64(j)*0.5)
		}
	}
	values[1][2] = cmplx.NaN()
	return &forward.Response{Values: values}
}

// TestNewViewer verifies the planes of frequency- and time-domain responses
func TestNewViewer(t *testing.T) {
	v := NewViewer(frequencyResponse())
	if v.width != 4 || v.height != 3 {
		t.Errorf("Expected 4x3 planes, got %dx%d", v.width, v.height)
	}
	if got := v.Planes(); len(got) != 4 || got[0] != Amplitude {
		t.Errorf("Expected 4 planes starting with amplitude, got %v", got)
	}

	ts := NewViewer(&forward.Response{Series: [][]float64{{1, 0.1}, {-0.01, 0}}})
	if got := ts.Planes(); len(got) != 1 || got[0] != Value {
		t.Errorf("Expected a single value plane, got %v", got)
	}
	row, err := ts.ExtractRegion(Value, 0, 0, 2, 2)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if row[0] != 1 || row[2] != 0 || !math.IsNaN(row[3]) {
		t.Errorf("Expected log-scaled values 1, 0 and NaN for zero, got %v", row)
	}
}

// TestExtractSlice verifies the log amplitude scaling and failed entries
func TestExtractSlice(t *testing.T) {
	v := NewViewer(frequencyResponse())
	img, err := v.ExtractSlice(Amplitude)
	if err != nil {
		t.Fatalf("Failed to extract amplitude plane: %v", err)
	}
	g := img.(*image.Gray16)

	testCases := []struct {
		x, y int
		want uint16
	}{
		{0, 0, 65535},
		{3, 2, 0},
		{1, 1, 32767},
		{2, 1, 0},
	}
	for _, tc := range testCases {
		if got := g.Gray16At(tc.x, tc.y).Y; got != tc.want {
			t.Errorf("Expected %d at (%d, %d), got %d", tc.want, tc.x, tc.y, got)
		}
	}

	if _, err := v.ExtractSlice(Value); err == nil {
		t.Error("Expected error for a missing plane, got nil")
	}
}

// TestExtractRegion verifies bounds checking
func TestExtractRegion(t *testing.T) {
	v := NewViewer(frequencyResponse())
	region, err := v.ExtractRegion(Real, 1, 1, 2, 3)
	if err != nil {
		t.Fatalf("ExtractRegion failed: %v", err)
	}
	if len(region) != 6 {
		t.Errorf("Expected 6 values, got %d", len(region))
	}

	testCases := []struct {
		name           string
		r0, i0, nr, ni int
	}{
		{"negative start", -1, 0, 1, 1},
		{"zero size", 0, 0, 0, 1},
		{"beyond receivers", 2, 0, 2, 1},
		{"beyond axis", 0, 3, 1, 2},
	}
	for _, tc := range testCases {
		if _, err := v.ExtractRegion(Real, tc.r0, tc.i0, tc.nr, tc.ni); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

// TestSaveSliceSequence verifies that every plane is written as a PNG
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}
	outputDir := filepath.Join(t.TempDir(), "planes")
	v := NewViewer(frequencyResponse())
	if err := v.SaveSliceSequence(outputDir); err != nil {
		t.Fatalf("Failed to save planes: %v", err)
	}

	for _, plane := range v.Planes() {
		file, err := os.Open(filepath.Join(outputDir, plane+".png"))
		if err != nil {
			t.Errorf("Expected %s.png: %v", plane, err)
			continue
		}
		img, err := png.Decode(file)
		file.Close()
		if err != nil {
			t.Errorf("Failed to decode %s.png: %v", plane, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
			t.Errorf("Expected 4x3 image, got %v", b)
		}
	}

	if err := NewViewer(&forward.Response{}).SaveSliceSequence(outputDir); err == nil {
		t.Error("Expected error for an empty response, got nil")
	}
}
