package config

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by configuration operations.
var (
	// ErrFileNotFound indicates the configuration file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")

	// ErrValidationFailed wraps every ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrWatcherClosed is returned after Close.
	ErrWatcherClosed = errors.New("config watcher closed")
)

// ParseError represents an error while parsing a configuration source.
type ParseError struct {
	// Path is the file path or variable name that failed to parse.
	Path string
	// Line and Column locate the error in a file, if known.
	Line   int
	Column int
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError describes a setting with an invalid value.
type ValidationError struct {
	// Path is the dotted setting path, e.g. "coordinator.workers".
	Path string
	// Message describes the constraint.
	Message string
	// Value is the invalid value.
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Unwrap lets errors.Is match ErrValidationFailed.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

type validator struct {
	errs []error
}

func (v *validator) add(path string, value any, msg string) {
	v.errs = append(v.errs, &ValidationError{Path: path, Message: msg, Value: value})
}

func (v *validator) intRange(path string, n, lo, hi int) {
	if n < lo || n > hi {
		v.add(path, n, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
}

func (v *validator) durationRange(path string, d Duration, lo, hi time.Duration) {
	if d.Std() < lo || d.Std() > hi {
		v.add(path, d, fmt.Sprintf("must be between %s and %s", lo, hi))
	}
}

func (v *validator) err() error {
	return errors.Join(v.errs...)
}
