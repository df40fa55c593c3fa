// Package emerror defines the error taxonomy shared by the modelling packages.
//
// Configuration and unsupported-configuration errors are fatal for a call and
// are returned before any numerical work starts. Convergence errors and
// instability warnings are attached to single (receiver, frequency-or-time)
// entries by the forward driver so that sibling entries stay usable.
package emerror

import (
	"errors"
	"fmt"
)

// ConfigurationError reports invalid model, geometry or axis input.
type ConfigurationError struct {
	// Field names the offending input, e.g. "depths" or "receivers[2].z".
	Field string

	// Reason describes what is wrong with it.
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Configf builds a ConfigurationError with a formatted reason.
func Configf(field, format string, args ...interface{}) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedConfigurationError reports a strategy/geometry combination that
// is not implemented.
type UnsupportedConfigurationError struct {
	Feature string
	Reason  string
}

func (e *UnsupportedConfigurationError) Error() string {
	return fmt.Sprintf("unsupported configuration: %s: %s", e.Feature, e.Reason)
}

// Unsupportedf builds an UnsupportedConfigurationError with a formatted reason.
func Unsupportedf(feature, format string, args ...interface{}) error {
	return &UnsupportedConfigurationError{Feature: feature, Reason: fmt.Sprintf(format, args...)}
}

// ConvergenceError reports a transform entry that did not reach its
// tolerance. Estimate holds the last value computed before giving up.
type ConvergenceError struct {
	Method   string
	Steps    int
	RelError float64
	Estimate complex128
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s did not converge after %d steps (relative error %.3g)",
		e.Method, e.Steps, e.RelError)
}

// NumericalInstabilityWarning is non-fatal. It is recorded in the diagnostics
// manifest and the computed value is kept.
type NumericalInstabilityWarning struct {
	Where     string
	Condition float64
	Detail    string
}

func (w *NumericalInstabilityWarning) Error() string {
	if w.Detail != "" {
		return fmt.Sprintf("numerical instability in %s: %s (condition %.3g)", w.Where, w.Detail, w.Condition)
	}
	return fmt.Sprintf("numerical instability in %s (condition %.3g)", w.Where, w.Condition)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsUnsupported reports whether err is or wraps an UnsupportedConfigurationError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedConfigurationError
	return errors.As(err, &ue)
}

// IsConvergence reports whether err is or wraps a ConvergenceError.
func IsConvergence(err error) bool {
	var ce *ConvergenceError
	return errors.As(err, &ce)
}

// IsInstability reports whether err is or wraps a NumericalInstabilityWarning.
func IsInstability(err error) bool {
	var w *NumericalInstabilityWarning
	return errors.As(err, &w)
}
