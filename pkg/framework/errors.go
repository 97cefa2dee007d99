package framework

import (
	"fmt"
	"strings"
)

// ComponentError is an error raised by a named component of the loop,
// e.g. a runner or a registrar.
type ComponentError struct {
	Component string
	Err       error
}

// Error implements error.
func (e *ComponentError) Error() string {
	return e.Component + ": " + e.Err.Error()
}

// AggregatedError collects errors from multiple components.
type AggregatedError struct {
	Errors []error
}

// Error implements error.
func (e *AggregatedError) Error() string {
	switch len(e.Errors) {
	case 0:
		return ""
	case 1:
		return e.Errors[0].Error()
	}
	msg := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msg[n] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.Errors), strings.Join(msg, "; "))
}

// Add appends errors, nil ones are skipped.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err != nil {
			e.Errors = append(e.Errors, err)
		}
	}
	return e
}

// AddFrom appends err as raised by component. Unnamed components keep
// the plain error.
func (e *AggregatedError) AddFrom(component string, err error) *AggregatedError {
	if err == nil {
		return e
	}
	if component == "" {
		return e.Add(err)
	}
	return e.Add(&ComponentError{Component: component, Err: err})
}

// Aggregate returns nil without errors, the only error when there is
// one, or the AggregatedError.
func (e *AggregatedError) Aggregate() error {
	switch len(e.Errors) {
	case 0:
		return nil
	case 1:
		return e.Errors[0]
	}
	return e
}
