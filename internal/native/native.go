// Package native resolves optional native tokenization entry points at
// runtime.
//
// Resolution never opens a file path. Every Resolver looks names up in
// something already loaded into the process: the registration table of
// linked-in Go modules, the symbol table of the process image itself, or a
// Lua state populated from plugin scripts at startup. A missing name is a
// normal outcome reported as ErrSymbolNotFound.
package native

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/lexbridge/internal/token"
)

// Span is one classified range reported by a native entry point. Offsets are
// byte offsets into the source passed to the call.
type Span struct {
	Start    int
	End      int
	Category token.Category
}

// TokenizeFunc is a resolved tokenization entry point.
type TokenizeFunc func(ctx context.Context, src []byte) ([]Span, error)

// Symbol is an opaque handle to a resolved name. Symbols without a function
// only attest that a name is present, such as a lexer table or a runtime
// version marker.
type Symbol struct {
	name   string
	origin string
	fn     TokenizeFunc
}

// Func creates a callable symbol. It is meant for Resolver implementations.
func Func(name, origin string, fn TokenizeFunc) Symbol {
	return Symbol{name: name, origin: origin, fn: fn}
}

// Marker creates a presence-only symbol.
func Marker(name, origin string) Symbol {
	return Symbol{name: name, origin: origin}
}

// Name returns the resolved name.
func (s Symbol) Name() string { return s.name }

// Origin names the resolver that produced the symbol.
func (s Symbol) Origin() string { return s.origin }

// Callable reports whether the symbol can tokenize.
func (s Symbol) Callable() bool { return s.fn != nil }

// Tokenize invokes the entry point.
func (s Symbol) Tokenize(ctx context.Context, src []byte) ([]Span, error) {
	if s.fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotCallable, s.name)
	}
	return s.fn(ctx, src)
}

// Resolver looks up entry points by name.
type Resolver interface {
	// Name identifies the resolver in logs and probe reports.
	Name() string

	// Resolve returns the symbol for name, or an error wrapping
	// ErrSymbolNotFound when the name is absent.
	Resolve(name string) (Symbol, error)
}

// Errors returned by resolvers and entry points.
var (
	ErrSymbolNotFound = errors.New("symbol not found")
	ErrNotCallable    = errors.New("symbol is not callable")
	ErrCallFailed     = errors.New("native call failed")
	ErrClosed         = errors.New("resolver closed")
)

// Chain tries resolvers in order; the first hit wins.
type Chain []Resolver

// Name implements Resolver.
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, r := range c {
		names[i] = r.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Resolve implements Resolver. Errors other than ErrSymbolNotFound stop
// the search.
func (c Chain) Resolve(name string) (Symbol, error) {
	for _, r := range c {
		sym, err := r.Resolve(name)
		if err == nil {
			return sym, nil
		}
		if !errors.Is(err, ErrSymbolNotFound) {
			return Symbol{}, err
		}
	}
	return Symbol{}, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
}

// notFound formats a miss for resolver r.
func notFound(r Resolver, name string) error {
	return fmt.Errorf("%s: %w: %s", r.Name(), ErrSymbolNotFound, name)
}
