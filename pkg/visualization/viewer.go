// Package visualization renders responses as grey-scale images: one row per
// receiver, one column per frequency or time.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"

	"geoem1d/pkg/forward"
)

// Plane names
const (
	Amplitude = "amplitude"
	Phase     = "phase"
	Real      = "real"
	Imag      = "imag"
	Value     = "value"
)

// Viewer holds the planes of one response, each normalised to [0, 1]
type Viewer struct {
	// planes maps a plane name to row-major data of height x width
	planes map[string][]float64
	order  []string

	// width is the axis length, height the number of receivers
	width  int
	height int
}

// NewViewer prepares the planes of resp. Frequency-domain responses get
// amplitude (log scaled), phase, real and imaginary planes; time-domain
// responses get a single log-scaled value plane. Failed entries are black.
func NewViewer(resp *forward.Response) *Viewer {
	v := &Viewer{planes: make(map[string][]float64)}
	if resp.Values != nil {
		v.height = len(resp.Values)
		if v.height > 0 {
			v.width = len(resp.Values[0])
		}
		parts := map[string]func(complex128) float64{
			Amplitude: cmplx.Abs,
			Phase:     cmplx.Phase,
			Real:      func(c complex128) float64 { return real(c) },
			Imag:      func(c complex128) float64 { return imag(c) },
		}
		v.order = []string{Amplitude, Phase, Real, Imag}
		for _, name := range v.order {
			data := make([]float64, 0, v.width*v.height)
			for _, row := range resp.Values {
				for _, c := range row {
					data = append(data, parts[name](c))
				}
			}
			v.planes[name] = normalise(data, name == Amplitude)
		}
		return v
	}

	v.height = len(resp.Series)
	if v.height > 0 {
		v.width = len(resp.Series[0])
	}
	data := make([]float64, 0, v.width*v.height)
	for _, row := range resp.Series {
		for _, x := range row {
			data = append(data, math.Abs(x))
		}
	}
	v.order = []string{Value}
	v.planes[Value] = normalise(data, true)
	return v
}

// normalise maps finite values linearly, or log10 of positive values, onto
// [0, 1]. Other entries become NaN.
func normalise(data []float64, logScale bool) []float64 {
	out := make([]float64, len(data))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, x := range data {
		if logScale {
			if x > 0 {
				x = math.Log10(x)
			} else {
				x = math.NaN()
			}
		}
		if math.IsInf(x, 0) {
			x = math.NaN()
		}
		out[i] = x
		if !math.IsNaN(x) {
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
	}
	for i, x := range out {
		switch {
		case math.IsNaN(x):
		case hi > lo:
			out[i] = (x - lo) / (hi - lo)
		default:
			out[i] = 0.5
		}
	}
	return out
}

// Planes returns the plane names in rendering order
func (v *Viewer) Planes() []string {
	return append([]string(nil), v.order...)
}

// ExtractSlice renders one plane
func (v *Viewer) ExtractSlice(plane string) (image.Image, error) {
	data, ok := v.planes[plane]
	if !ok {
		return nil, fmt.Errorf("invalid plane: %s (have %v)", plane, v.order)
	}
	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			value := data[y*v.width+x]
			if math.IsNaN(value) {
				continue
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Max(0, math.Min(65535, value*65535)))})
		}
	}
	return img, nil
}

// ExtractRegion returns the normalised values of a block of receivers and
// axis entries of one plane, row-major
func (v *Viewer) ExtractRegion(plane string, startReceiver, startIndex, receivers, entries int) ([]float64, error) {
	data, ok := v.planes[plane]
	if !ok {
		return nil, fmt.Errorf("invalid plane: %s (have %v)", plane, v.order)
	}
	if startReceiver < 0 || startIndex < 0 {
		return nil, fmt.Errorf("start coordinates must be non-negative")
	}
	if receivers <= 0 || entries <= 0 {
		return nil, fmt.Errorf("size dimensions must be positive")
	}
	if startReceiver+receivers > v.height || startIndex+entries > v.width {
		return nil, fmt.Errorf("region extends beyond the response")
	}

	region := make([]float64, 0, receivers*entries)
	for y := startReceiver; y < startReceiver+receivers; y++ {
		region = append(region, data[y*v.width+startIndex:y*v.width+startIndex+entries]...)
	}
	return region, nil
}

// SaveSlice saves an image as PNG
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveSliceSequence renders every plane into outputDir as <plane>.png
func (v *Viewer) SaveSliceSequence(outputDir string) error {
	if v.width == 0 || v.height == 0 {
		return fmt.Errorf("empty response")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for _, plane := range v.order {
		img, err := v.ExtractSlice(plane)
		if err != nil {
			return err
		}
		if err := v.SaveSlice(img, filepath.Join(outputDir, plane+".png")); err != nil {
			return fmt.Errorf("error saving %s plane: %w", plane, err)
		}
	}
	return nil
}
