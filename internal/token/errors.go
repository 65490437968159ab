package token

import "errors"

// Errors returned when constructing token streams.
var (
	// ErrUnknownLanguage indicates a language name that is not supported.
	ErrUnknownLanguage = errors.New("unknown language")

	// ErrEmptySpan indicates a token whose start is not before its end.
	ErrEmptySpan = errors.New("empty token span")

	// ErrBounds indicates a token that lies outside the tokenized text.
	ErrBounds = errors.New("token out of bounds")

	// ErrOverlap indicates two tokens sharing part of their spans.
	ErrOverlap = errors.New("overlapping tokens")
)
