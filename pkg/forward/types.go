// Package forward runs complete layered-earth simulations. It validates the
// inputs, chooses the transform strategies, fans the independent
// (frequency, depth pair) work items out over a bounded worker pool and
// assembles the responses of every receiver.
package forward

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"geoem1d/internal/models"
	"geoem1d/pkg/fourier"
	"geoem1d/pkg/hankel"
	"geoem1d/pkg/layers"
)

// Source describes the transmitter. Position is the dipole or loop centre,
// or the first end of a bipole.
type Source struct {
	Kind     models.SourceKind
	Position models.Point

	// End is the second end of an electric bipole
	End models.Point

	// Azimuth and Dip orient dipoles and the loop normal, in degrees
	Azimuth float64
	Dip     float64

	// Points is the number of Gauss-Legendre points along a bipole
	Points int

	// Area (m^2) and Turns of a loop
	Area  float64
	Turns float64

	// Strength is the source current in A; zero means a unit source
	Strength float64
}

// Receiver describes one measurement point
type Receiver struct {
	Kind     models.ReceiverKind
	Position models.Point
	Azimuth  float64
	Dip      float64

	// Area (m^2) and Turns of a loop receiver
	Area  float64
	Turns float64
}

// Axis holds either frequencies (Hz) for a frequency-domain run, or times
// (s) and a time-domain signal.
type Axis struct {
	Frequencies []float64
	Times       []float64
	Signal      models.Signal
}

// TimeDomain reports whether the axis asks for time-domain output
func (a Axis) TimeDomain() bool {
	return a.Signal.TimeDomain()
}

// Input is a complete forward problem
type Input struct {
	Model     layers.Params
	Source    Source
	Receivers []Receiver
	Axis      Axis
}

// Observer receives run statistics. pkg/metrics implements it with
// Prometheus collectors.
type Observer interface {
	ObserveTransform(method string, elapsed time.Duration, evaluations int)
	ObserveEntry(status Status)
	ObserveRun(domain string, elapsed time.Duration, err error)
}

// Options select the numerical strategies and the execution environment.
// The zero value is usable; nil methods are chosen per depth group.
type Options struct {
	// Hankel overrides the default DLF method with the fine filter
	Hankel *hankel.Method

	// Fourier overrides the default lagged DLF method with the fine filter
	Fourier *fourier.Method

	// FourierFrequencies replaces the frequencies the Fourier method needs
	// by a caller-chosen set; the response is then interpolated
	FourierFrequencies []float64

	// Workers bounds the number of concurrent work items
	Workers int

	// DirectInKernel keeps the direct wave inside the wavenumber integral
	// instead of adding the analytic full-space field
	DirectInKernel bool

	// Policy resolves depths that lie exactly on an interface
	Policy layers.BoundaryPolicy

	// MinOffset is the smallest horizontal offset in m; closer receivers
	// are moved out to it
	MinOffset float64

	// ConditionLimit overrides kernel.DefaultConditionLimit
	ConditionLimit float64

	Logger   logrus.FieldLogger
	Observer Observer

	// Progress is called after every finished work item
	Progress func(done, total int)
}

// Default option values
const (
	DefaultMinOffset = 1e-3
)

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.MinOffset <= 0 {
		o.MinOffset = DefaultMinOffset
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// Status classifies a response entry
type Status int

const (
	StatusOK Status = iota

	// StatusDegraded entries carry a usable value with a warning
	StatusDegraded

	// StatusFailed entries hold NaN
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	}
	return "ok"
}

// MarshalText lets the status appear by name in JSON and YAML
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry records why one response value is degraded or failed
type Entry struct {
	Receiver int    `json:"receiver" yaml:"receiver"`
	Index    int    `json:"index" yaml:"index"`
	Status   Status `json:"status" yaml:"status"`
	Reason   string `json:"reason" yaml:"reason"`
}

// Manifest is the diagnostics record of a run
type Manifest struct {
	Entries  []Entry  `json:"entries,omitempty" yaml:"entries,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Notes    []string `json:"notes,omitempty" yaml:"notes,omitempty"`

	Hankel       []string `json:"hankel" yaml:"hankel"`
	Fourier      string   `json:"fourier,omitempty" yaml:"fourier,omitempty"`
	Interpolated bool     `json:"interpolated,omitempty" yaml:"interpolated,omitempty"`
	Evaluations  int      `json:"evaluations" yaml:"evaluations"`
	Fallbacks    int      `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
	WorkItems    int      `json:"workItems" yaml:"workItems"`
}

// Failed returns the number of failed entries
func (m *Manifest) Failed() int {
	n := 0
	for _, e := range m.Entries {
		if e.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Response holds the values of every receiver along the requested axis.
// Frequency-domain runs fill Values, time-domain runs fill Series; both are
// indexed [receiver][axis].
type Response struct {
	// Offsets holds the horizontal source-receiver distance of every receiver
	Offsets []float64

	Frequencies []float64
	Times       []float64
	Values      [][]complex128
	Series      [][]float64
	Manifest    Manifest
}
