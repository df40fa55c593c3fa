// Package survey reads survey files into forward problems and writes
// responses as YAML or JSON reports.
package survey

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"geoem1d/internal/models"
	"geoem1d/pkg/emerror"
	"geoem1d/pkg/forward"
	"geoem1d/pkg/layers"
)

// Source is the file form of forward.Source. Kinds are given by name.
type Source struct {
	Kind     string       `yaml:"kind" json:"kind"`
	Position models.Point `yaml:"position" json:"position"`
	End      models.Point `yaml:"end,omitempty" json:"end,omitempty"`
	Azimuth  float64      `yaml:"azimuth,omitempty" json:"azimuth,omitempty"`
	Dip      float64      `yaml:"dip,omitempty" json:"dip,omitempty"`
	Points   int          `yaml:"points,omitempty" json:"points,omitempty"`
	Area     float64      `yaml:"area,omitempty" json:"area,omitempty"`
	Turns    float64      `yaml:"turns,omitempty" json:"turns,omitempty"`
	Strength float64      `yaml:"strength,omitempty" json:"strength,omitempty"`
}

// Receiver is the file form of forward.Receiver
type Receiver struct {
	Kind     string       `yaml:"kind" json:"kind"`
	Position models.Point `yaml:"position" json:"position"`
	Azimuth  float64      `yaml:"azimuth,omitempty" json:"azimuth,omitempty"`
	Dip      float64      `yaml:"dip,omitempty" json:"dip,omitempty"`
	Area     float64      `yaml:"area,omitempty" json:"area,omitempty"`
	Turns    float64      `yaml:"turns,omitempty" json:"turns,omitempty"`
}

// Axis is the file form of forward.Axis
type Axis struct {
	Frequencies []float64 `yaml:"frequencies,omitempty" json:"frequencies,omitempty"`
	Times       []float64 `yaml:"times,omitempty" json:"times,omitempty"`
	Signal      string    `yaml:"signal,omitempty" json:"signal,omitempty"`
}

// File is a complete survey description
type File struct {
	Name      string        `yaml:"name,omitempty" json:"name,omitempty"`
	Model     layers.Params `yaml:"model" json:"model"`
	Source    Source        `yaml:"source" json:"source"`
	Receivers []Receiver    `yaml:"receivers" json:"receivers"`
	Axis      Axis          `yaml:"axis" json:"axis"`
}

// Decode parses a YAML survey. JSON documents are accepted as well.
func Decode(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("error parsing survey: %w", err)
	}
	return &f, nil
}

// Load reads a survey file
func Load(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening survey file: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// Input converts the survey into a forward problem. Unknown kinds and
// signals are reported as ConfigurationError.
func (f *File) Input() (forward.Input, error) {
	in := forward.Input{Model: f.Model}

	kind, err := models.ParseSourceKind(f.Source.Kind)
	if err != nil {
		return in, emerror.Configf("source.kind", "%v", err)
	}
	s := f.Source
	in.Source = forward.Source{
		Kind:     kind,
		Position: s.Position,
		End:      s.End,
		Azimuth:  s.Azimuth,
		Dip:      s.Dip,
		Points:   s.Points,
		Area:     s.Area,
		Turns:    s.Turns,
		Strength: s.Strength,
	}

	for i, r := range f.Receivers {
		k, err := models.ParseReceiverKind(r.Kind)
		if err != nil {
			return in, emerror.Configf(fmt.Sprintf("receivers[%d].kind", i), "%v", err)
		}
		in.Receivers = append(in.Receivers, forward.Receiver{
			Kind:     k,
			Position: r.Position,
			Azimuth:  r.Azimuth,
			Dip:      r.Dip,
			Area:     r.Area,
			Turns:    r.Turns,
		})
	}

	sig, err := models.ParseSignal(f.Axis.Signal)
	if err != nil {
		return in, emerror.Configf("axis.signal", "%v", err)
	}
	in.Axis = forward.Axis{
		Frequencies: append([]float64(nil), f.Axis.Frequencies...),
		Times:       append([]float64(nil), f.Axis.Times...),
		Signal:      sig,
	}
	return in, nil
}

// Trace is the response of one receiver. Frequency-domain traces carry
// the real and imaginary parts, time-domain traces only Values.
type Trace struct {
	Receiver int       `yaml:"receiver" json:"receiver"`
	Kind     string    `yaml:"kind" json:"kind"`
	Offset   float64   `yaml:"offset" json:"offset"`
	Real     []float64 `yaml:"real,omitempty" json:"real,omitempty"`
	Imag     []float64 `yaml:"imag,omitempty" json:"imag,omitempty"`
	Values   []float64 `yaml:"values,omitempty" json:"values,omitempty"`
}

// Report is the serialisable form of a response. Failed entries are
// written as null.
type Report struct {
	Name        string           `yaml:"name,omitempty" json:"name,omitempty"`
	Frequencies []float64        `yaml:"frequencies,omitempty" json:"frequencies,omitempty"`
	Times       []float64        `yaml:"times,omitempty" json:"times,omitempty"`
	Signal      string           `yaml:"signal,omitempty" json:"signal,omitempty"`
	Traces      []Trace          `yaml:"traces" json:"traces"`
	Manifest    forward.Manifest `yaml:"manifest" json:"manifest"`
	Summary     *forward.Summary `yaml:"summary,omitempty" json:"summary,omitempty"`
}

// NewReport builds the report of a run of in
func NewReport(name string, in forward.Input, resp *forward.Response, summary bool) *Report {
	rep := &Report{
		Name:        name,
		Frequencies: resp.Frequencies,
		Times:       resp.Times,
		Manifest:    resp.Manifest,
	}
	if in.Axis.TimeDomain() {
		rep.Signal = in.Axis.Signal.String()
	}
	for i, r := range in.Receivers {
		tr := Trace{Receiver: i, Kind: r.Kind.String(), Offset: resp.Offsets[i]}
		if resp.Values != nil {
			for _, v := range resp.Values[i] {
				tr.Real = append(tr.Real, real(v))
				tr.Imag = append(tr.Imag, imag(v))
			}
		} else {
			tr.Values = append(tr.Values, resp.Series[i]...)
		}
		rep.Traces = append(rep.Traces, tr)
	}
	if summary {
		s := resp.Summarize()
		rep.Summary = &s
	}
	return rep
}

// Write encodes the report in the given format, yaml or json
func (rep *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "", "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep.nulled()); err != nil {
			return fmt.Errorf("error encoding report: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep.nulled()); err != nil {
			return fmt.Errorf("error encoding report: %w", err)
		}
		return nil
	}
	return emerror.Configf("output.format", "unknown format %q", format)
}

// Save writes the report to path. The format follows the extension.
func (rep *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	if err := rep.Write(file, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// nullTrace mirrors Trace with nullable entries so NaN can be encoded
type nullTrace struct {
	Receiver int        `yaml:"receiver" json:"receiver"`
	Kind     string     `yaml:"kind" json:"kind"`
	Offset   float64    `yaml:"offset" json:"offset"`
	Real     []*float64 `yaml:"real,omitempty" json:"real,omitempty"`
	Imag     []*float64 `yaml:"imag,omitempty" json:"imag,omitempty"`
	Values   []*float64 `yaml:"values,omitempty" json:"values,omitempty"`
}

type nullReport struct {
	Name        string           `yaml:"name,omitempty" json:"name,omitempty"`
	Frequencies []float64        `yaml:"frequencies,omitempty" json:"frequencies,omitempty"`
	Times       []float64        `yaml:"times,omitempty" json:"times,omitempty"`
	Signal      string           `yaml:"signal,omitempty" json:"signal,omitempty"`
	Traces      []nullTrace      `yaml:"traces" json:"traces"`
	Manifest    forward.Manifest `yaml:"manifest" json:"manifest"`
	Summary     *forward.Summary `yaml:"summary,omitempty" json:"summary,omitempty"`
}

func nullable(xs []float64) []*float64 {
	if xs == nil {
		return nil
	}
	out := make([]*float64, len(xs))
	for i := range xs {
		if !math.IsNaN(xs[i]) && !math.IsInf(xs[i], 0) {
			out[i] = &xs[i]
		}
	}
	return out
}

func (rep *Report) nulled() nullReport {
	out := nullReport{
		Name:        rep.Name,
		Frequencies: rep.Frequencies,
		Times:       rep.Times,
		Signal:      rep.Signal,
		Manifest:    rep.Manifest,
		Summary:     rep.Summary,
		Traces:      make([]nullTrace, len(rep.Traces)),
	}
	for i, tr := range rep.Traces {
		out.Traces[i] = nullTrace{
			Receiver: tr.Receiver,
			Kind:     tr.Kind,
			Offset:   tr.Offset,
			Real:     nullable(tr.Real),
			Imag:     nullable(tr.Imag),
			Values:   nullable(tr.Values),
		}
	}
	return out
}
