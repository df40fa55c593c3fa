package survey

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"geoem1d/internal/models"
	"geoem1d/pkg/emerror"
	"geoem1d/pkg/forward"
)

const sample = `
name: resistor
model:
  depths: [100, 200]
  resistivity: [1, 100, 1]
source:
  kind: electric-dipole
  position: {x: 0, y: 0, z: 50}
receivers:
  - kind: electric
    position: {x: 500, y: 0, z: 50}
  - kind: magnetic
    position: {x: 0, y: 800, z: 50}
    azimuth: 90
axis:
  frequencies: [0.5, 2]
`

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	in, err := f.Input()
	if err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	if in.Source.Kind != models.ElectricDipole || in.Source.Position.Z != 50 {
		t.Errorf("Unexpected source %+v", in.Source)
	}
	if len(in.Receivers) != 2 || in.Receivers[1].Kind != models.MagneticReceiver || in.Receivers[1].Azimuth != 90 {
		t.Errorf("Unexpected receivers %+v", in.Receivers)
	}
	if in.Axis.TimeDomain() || len(in.Axis.Frequencies) != 2 {
		t.Errorf("Expected a frequency-domain axis, got %+v", in.Axis)
	}
	if len(in.Model.Resistivity) != 3 {
		t.Errorf("Expected 3 resistivities, got %v", in.Model.Resistivity)
	}
}

func TestDecodeJSON(t *testing.T) {
	doc := `{"model": {"depths": [], "resistivity": [10]},
	"source": {"kind": "loop", "position": {"x": 0, "y": 0, "z": -1}, "area": 100, "dip": 90},
	"receivers": [{"kind": "loop", "position": {"x": 20, "y": 0, "z": -1}, "area": 1, "dip": 90}],
	"axis": {"times": [1e-4, 1e-3], "signal": "switch-off"}}`
	f, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	in, err := f.Input()
	if err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	if in.Source.Kind != models.Loop || in.Axis.Signal != models.SwitchOff || len(in.Axis.Times) != 2 {
		t.Errorf("Unexpected input %+v", in)
	}
}

func TestInputErrors(t *testing.T) {
	testCases := []struct {
		name string
		edit func(f *File)
	}{
		{"source kind", func(f *File) { f.Source.Kind = "dynamo" }},
		{"receiver kind", func(f *File) { f.Receivers[0].Kind = "thermal" }},
		{"signal", func(f *File) { f.Axis.Signal = "ramp" }},
	}
	for _, tc := range testCases {
		f, err := Decode(strings.NewReader(sample))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		tc.edit(f)
		if _, err := f.Input(); !emerror.IsConfiguration(err) {
			t.Errorf("%s: expected ConfigurationError, got %v", tc.name, err)
		}
	}

	if _, err := Decode(strings.NewReader("sources: []\n")); err == nil {
		t.Error("Expected an error for an unknown field, got nil")
	}
}

func fakeResponse() (forward.Input, *forward.Response) {
	in := forward.Input{
		Receivers: []forward.Receiver{
			{Kind: models.ElectricReceiver, Position: models.Point{X: 100}},
			{Kind: models.MagneticReceiver, Position: models.Point{X: 200}},
			{Kind: models.ElectricReceiver, Position: models.Point{X: 400}},
		},
		Axis: forward.Axis{Frequencies: []float64{1, 10}},
	}
	resp := &forward.Response{
		Offsets:     []float64{100, 200, 400},
		Frequencies: []float64{1, 10},
		Values: [][]complex128{
			{complex(1e-6, -2e-6), complex(3e-7, 1e-7)},
			{cmplx.NaN(), complex(1e-8, 0)},
			{complex(1e-8, 1e-9), complex(2e-9, 0)},
		},
		Manifest: forward.Manifest{
			Entries: []forward.Entry{{Receiver: 1, Index: 0, Status: forward.StatusFailed, Reason: "qwe did not converge"}},
			Hankel:  []string{"dlf(hankel-fine, standard)"},
		},
	}
	return in, resp
}

func TestReportJSON(t *testing.T) {
	in, resp := fakeResponse()
	rep := NewReport("fake", in, resp, true)

	var buf bytes.Buffer
	if err := rep.Write(&buf, "json"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var got struct {
		Traces []struct {
			Kind string     `json:"kind"`
			Real []*float64 `json:"real"`
		} `json:"traces"`
		Manifest struct {
			Entries []struct {
				Status string `json:"status"`
			} `json:"entries"`
		} `json:"manifest"`
		Summary struct {
			Failed int `json:"failed"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if len(got.Traces) != 3 || got.Traces[1].Kind != "magnetic" {
		t.Fatalf("Unexpected traces %+v", got.Traces)
	}
	if got.Traces[1].Real[0] != nil {
		t.Errorf("Expected null for the failed entry, got %v", *got.Traces[1].Real[0])
	}
	if got.Traces[0].Real[0] == nil || *got.Traces[0].Real[0] != 1e-6 {
		t.Errorf("Expected 1e-6, got %v", got.Traces[0].Real[0])
	}
	if len(got.Manifest.Entries) != 1 || got.Manifest.Entries[0].Status != "failed" {
		t.Errorf("Expected one failed entry by name, got %+v", got.Manifest.Entries)
	}
	if got.Summary.Failed != 1 {
		t.Errorf("Expected 1 failed entry in the summary, got %d", got.Summary.Failed)
	}
}

func TestReportSave(t *testing.T) {
	in, resp := fakeResponse()
	rep := NewReport("fake", in, resp, false)
	dir := t.TempDir()

	testCases := []struct {
		file   string
		decode func([]byte, interface{}) error
	}{
		{"out/report.yaml", yaml.Unmarshal},
		{"out/report.json", json.Unmarshal},
	}
	for _, tc := range testCases {
		path := filepath.Join(dir, tc.file)
		if err := rep.Save(path); err != nil {
			t.Fatalf("Save %s failed: %v", tc.file, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", tc.file, err)
		}
		var got map[string]interface{}
		if err := tc.decode(data, &got); err != nil {
			t.Errorf("%s: failed to decode: %v", tc.file, err)
			continue
		}
		if got["name"] != "fake" {
			t.Errorf("%s: expected name fake, got %v", tc.file, got["name"])
		}
		if _, ok := got["summary"]; ok {
			t.Errorf("%s: expected no summary", tc.file)
		}
	}

	if err := rep.Write(io.Discard, "xml"); !emerror.IsConfiguration(err) {
		t.Errorf("Expected ConfigurationError for an unknown format, got %v", err)
	}
}

func TestSurveyRun(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping forward run in short mode")
	}
	f, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	in, err := f.Input()
	if err != nil {
		t.Fatalf("Input failed: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	resp, err := forward.Run(context.Background(), in, forward.Options{Logger: log})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	rep := NewReport(f.Name, in, resp, true)
	for _, tr := range rep.Traces {
		for i := range tr.Real {
			if math.IsNaN(tr.Real[i]) || math.IsNaN(tr.Imag[i]) {
				t.Errorf("Receiver %d: expected finite values, got %v", tr.Receiver, tr.Real)
			}
		}
	}
}
