package topo_errs

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// TopologyError is implemented by every error raised while composing a topology. All of them are
	// detected before anything is handed to a provisioning backend.
	TopologyError interface {
		error
		// ToJSONMap returns a map that can be marshaled to JSON for machine readable CLI output.
		ToJSONMap() map[string]any
		ErrorCode() ErrorCode
	}

	ErrorCode string

	// ConfigurationError reports an invalid input to one of the builders: an address block that can't be
	// subdivided, overlapping scaling steps, a data cluster in a disallowed tier, a missing dependency edge.
	ConfigurationError struct {
		Component string
		Field     string
		Reason    string
		Err       error
	}

	// ReferenceError reports a builder consuming a handle that was never produced (or that resolves to
	// a different kind of resource than the consumer needs).
	ReferenceError struct {
		Consumer string
		Ref      string
		Reason   string
	}
)

const (
	ConfigInvalidCode    ErrorCode = "config_invalid"
	ReferenceMissingCode ErrorCode = "reference_missing"
)

func (e ConfigurationError) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration error")
	if e.Component != "" {
		fmt.Fprintf(&sb, " in %s", e.Component)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, " (%s)", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e ConfigurationError) ErrorCode() ErrorCode {
	return ConfigInvalidCode
}

func (e ConfigurationError) ToJSONMap() map[string]any {
	m := map[string]any{
		"component": e.Component,
		"field":     e.Field,
		"reason":    e.Reason,
	}
	if e.Err != nil {
		m["cause"] = e.Err.Error()
	}
	return m
}

func (e ConfigurationError) Unwrap() error {
	return e.Err
}

func (e ReferenceError) Error() string {
	msg := fmt.Sprintf("reference error: %s consumes %s", e.Consumer, e.Ref)
	if e.Ref == "" {
		msg = fmt.Sprintf("reference error: %s consumes an empty reference", e.Consumer)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e ReferenceError) ErrorCode() ErrorCode {
	return ReferenceMissingCode
}

func (e ReferenceError) ToJSONMap() map[string]any {
	return map[string]any{
		"consumer": e.Consumer,
		"ref":      e.Ref,
		"reason":   e.Reason,
	}
}

// Configf is shorthand for building a ConfigurationError with a formatted reason.
func Configf(component, field, format string, args ...any) ConfigurationError {
	return ConfigurationError{
		Component: component,
		Field:     field,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// IsConfigurationError reports whether any error in err's tree is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsReferenceError reports whether any error in err's tree is a ReferenceError.
func IsReferenceError(err error) bool {
	var refErr ReferenceError
	return errors.As(err, &refErr)
}

// Collect flattens err (including joined errors) into every TopologyError it contains, in order.
func Collect(err error) []TopologyError {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []TopologyError
		for _, e := range joined.Unwrap() {
			out = append(out, Collect(e)...)
		}
		return out
	}
	if te, ok := err.(TopologyError); ok {
		return []TopologyError{te}
	}
	return Collect(errors.Unwrap(err))
}
