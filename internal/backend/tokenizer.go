package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/lexbridge/internal/native"
	"github.com/dshills/lexbridge/internal/pattern"
	"github.com/dshills/lexbridge/internal/token"
)

// Tokenizer is the capability every backend offers.
type Tokenizer interface {
	// ID names the backend that produces streams.
	ID() string

	// Native reports whether the tokenizer is a probed native backend.
	Native() bool

	// Tokenize classifies text. The pattern fallback never returns an
	// error; native backends return an error wrapping ErrBackendFailed or
	// ErrNotAvailable.
	Tokenize(ctx context.Context, text string, lang token.Language, rev uint64) (token.Stream, error)
}

// Fallback adapts the pattern tokenizer to Tokenizer. It is never probed.
type Fallback struct {
	p *pattern.Tokenizer
}

// NewFallback wraps p, or a default pattern tokenizer when p is nil.
func NewFallback(p *pattern.Tokenizer) *Fallback {
	if p == nil {
		p = pattern.New()
	}
	return &Fallback{p: p}
}

// ID implements Tokenizer.
func (f *Fallback) ID() string { return f.p.ID() }

// Native implements Tokenizer.
func (f *Fallback) Native() bool { return false }

// Tokenize implements Tokenizer.
func (f *Fallback) Tokenize(_ context.Context, text string, lang token.Language, rev uint64) (token.Stream, error) {
	return f.p.Tokenize(text, lang, rev), nil
}

// Pattern returns the wrapped pattern tokenizer.
func (f *Fallback) Pattern() *pattern.Tokenizer { return f.p }

// handle routes calls to a registry-owned backend by id. It holds no
// resolved entry point itself, so nothing escapes the registry.
type handle struct {
	r  *Registry
	id string
}

func (h handle) ID() string   { return h.id }
func (h handle) Native() bool { return true }

func (h handle) Tokenize(ctx context.Context, text string, lang token.Language, rev uint64) (token.Stream, error) {
	return h.r.invoke(ctx, h.id, text, lang, rev)
}

// call runs a native entry point, converting panics into errors.
func call(ctx context.Context, sym native.Symbol, src []byte) (spans []native.Span, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", native.ErrCallFailed, r)
		}
	}()
	return sym.Tokenize(ctx, src)
}

// buildStream validates native spans against text.
func buildStream(id string, text string, lang token.Language, rev uint64, spans []native.Span) (token.Stream, error) {
	tokens := make([]token.Token, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > len(text) || s.Start >= s.End {
			return token.Stream{}, fmt.Errorf("%w: span [%d,%d) outside text of %d bytes", token.ErrBounds, s.Start, s.End, len(text))
		}
		tokens = append(tokens, token.New(text, s.Start, s.End, s.Category))
	}
	info := token.StreamInfo{Revision: rev, Language: lang, Backend: id}
	return token.NewStream(info, len(text), tokens)
}

// canceled reports whether err is the caller giving up rather than the
// backend failing.
func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
