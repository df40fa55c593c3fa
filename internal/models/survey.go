package models

import (
	"fmt"
	"math"
	"strings"
)

// Point is a position in metres. X points north, Y east and Z down.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Length returns the euclidean norm of p.
func (p Point) Length() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Direction returns the unit vector for an azimuth and dip given in degrees.
// Azimuth is measured from x towards y, dip is positive downwards.
func Direction(azimuth, dip float64) [3]float64 {
	az := azimuth * math.Pi / 180
	dp := dip * math.Pi / 180
	d := [3]float64{math.Cos(az) * math.Cos(dp), math.Sin(az) * math.Cos(dp), math.Sin(dp)}

	// Exact zeros keep the rotation from evaluating components that vanish
	for i := range d {
		if math.Abs(d[i]) < 1e-14 {
			d[i] = 0
		}
	}
	return d
}

// SourceKind identifies the physical source type
type SourceKind int

const (
	ElectricDipole SourceKind = iota
	MagneticDipole
	ElectricBipole
	Loop
)

var sourceKindNames = []string{"electric-dipole", "magnetic-dipole", "electric-bipole", "loop"}

func (k SourceKind) String() string {
	if k < 0 || int(k) >= len(sourceKindNames) {
		return fmt.Sprintf("SourceKind(%d)", int(k))
	}
	return sourceKindNames[k]
}

// ParseSourceKind converts a name such as "loop" to a SourceKind
func ParseSourceKind(s string) (SourceKind, error) {
	for i, name := range sourceKindNames {
		if strings.EqualFold(s, name) {
			return SourceKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown source kind %q", s)
}

// ReceiverKind identifies what a receiver measures
type ReceiverKind int

const (
	// ElectricReceiver measures the electric field in V/m
	ElectricReceiver ReceiverKind = iota

	// MagneticReceiver measures the magnetic field in A/m
	MagneticReceiver

	// LoopReceiver measures the induced voltage of a small loop
	LoopReceiver
)

var receiverKindNames = []string{"electric", "magnetic", "loop"}

func (k ReceiverKind) String() string {
	if k < 0 || int(k) >= len(receiverKindNames) {
		return fmt.Sprintf("ReceiverKind(%d)", int(k))
	}
	return receiverKindNames[k]
}

// ParseReceiverKind converts a name such as "magnetic" to a ReceiverKind
func ParseReceiverKind(s string) (ReceiverKind, error) {
	for i, name := range receiverKindNames {
		if strings.EqualFold(s, name) {
			return ReceiverKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown receiver kind %q", s)
}

// Signal selects the output domain. SignalNone means frequency domain.
type Signal int

const (
	SignalNone Signal = iota
	Impulse
	SwitchOn
	SwitchOff
)

var signalNames = []string{"none", "impulse", "switch-on", "switch-off"}

func (s Signal) String() string {
	if s < 0 || int(s) >= len(signalNames) {
		return fmt.Sprintf("Signal(%d)", int(s))
	}
	return signalNames[s]
}

// TimeDomain reports whether the signal requires a Fourier transform
func (s Signal) TimeDomain() bool {
	return s != SignalNone
}

// ParseSignal converts a name such as "switch-off" to a Signal.
// The empty string maps to SignalNone.
func ParseSignal(s string) (Signal, error) {
	if s == "" {
		return SignalNone, nil
	}
	for i, name := range signalNames {
		if strings.EqualFold(s, name) {
			return Signal(i), nil
		}
	}
	return 0, fmt.Errorf("unknown signal %q", s)
}
