package backend

import (
	"fmt"
	"slices"
	"time"

	"github.com/dshills/lexbridge/internal/native"
	"github.com/dshills/lexbridge/internal/token"
)

// Descriptor declares a native backend.
type Descriptor struct {
	// ID uniquely names the backend, e.g. "chroma-go".
	ID string

	// Languages the backend can tokenize.
	Languages []token.Language

	// Symbols are the entry points that must all resolve, in order.
	Symbols []string

	// Entry is the symbol invoked to tokenize. Defaults to the last symbol.
	Entry string

	// Resolver looks the symbols up.
	Resolver native.Resolver
}

func (d Descriptor) entry() string {
	if d.Entry != "" {
		return d.Entry
	}
	if len(d.Symbols) == 0 {
		return ""
	}
	return d.Symbols[len(d.Symbols)-1]
}

// Supports reports whether the backend declares lang.
func (d Descriptor) Supports(lang token.Language) bool {
	return slices.Contains(d.Languages, lang)
}

func (d Descriptor) validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidDescriptor)
	case len(d.Languages) == 0:
		return fmt.Errorf("%w: %s: no languages", ErrInvalidDescriptor, d.ID)
	case len(d.Symbols) == 0:
		return fmt.Errorf("%w: %s: no symbols", ErrInvalidDescriptor, d.ID)
	case d.Resolver == nil:
		return fmt.Errorf("%w: %s: no resolver", ErrInvalidDescriptor, d.ID)
	case !slices.Contains(d.Symbols, d.entry()):
		return fmt.Errorf("%w: %s: entry %q is not a required symbol", ErrInvalidDescriptor, d.ID, d.Entry)
	}
	for _, lang := range d.Languages {
		if !lang.Valid() {
			return fmt.Errorf("%w: %s: invalid language %d", ErrInvalidDescriptor, d.ID, lang)
		}
	}
	return nil
}

// Info is a point-in-time snapshot of a backend.
type Info struct {
	ID        string
	Languages []token.Language
	Symbols   []string
	Resolver  string
	State     State

	// Missing lists symbols that did not resolve.
	Missing []string

	// Err is the last probe or invocation error.
	Err error

	// Resolutions counts symbol lookups performed by probing.
	Resolutions int

	// Calls counts tokenize invocations.
	Calls int64

	ProbedAt time.Time
	FailedAt time.Time
}
