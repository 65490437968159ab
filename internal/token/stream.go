package token

import (
	"fmt"
	"iter"
	"slices"
)

// StreamInfo describes where a stream came from.
type StreamInfo struct {
	// Revision is the text revision the stream was produced for.
	Revision uint64

	// Language is the language the text was tokenized as.
	Language Language

	// Backend is the id of the backend that produced the tokens.
	Backend string

	// Truncated is set when only a prefix of the text was tokenized.
	Truncated bool
}

// Stream is an immutable, ordered, non-overlapping sequence of tokens for
// one text snapshot. The zero value is an empty stream.
type Stream struct {
	info   StreamInfo
	tokens []Token
}

// NewStream validates tokens against a text of textLen bytes and builds a
// stream. Tokens are sorted by start offset; the input slice is not retained.
func NewStream(info StreamInfo, textLen int, tokens []Token) (Stream, error) {
	sorted := slices.Clone(tokens)
	slices.SortStableFunc(sorted, func(a, b Token) int {
		return a.Start - b.Start
	})

	prevEnd := 0
	for i, tok := range sorted {
		if tok.Start >= tok.End {
			return Stream{}, fmt.Errorf("%w: %s", ErrEmptySpan, tok)
		}
		if tok.Start < 0 || tok.End > textLen {
			return Stream{}, fmt.Errorf("%w: %s (text length %d)", ErrBounds, tok, textLen)
		}
		if i > 0 && tok.Start < prevEnd {
			return Stream{}, fmt.Errorf("%w: %s and %s", ErrOverlap, sorted[i-1], tok)
		}
		prevEnd = tok.End
	}

	return Stream{info: info, tokens: sorted}, nil
}

// Empty returns a stream without tokens.
func Empty(info StreamInfo) Stream {
	return Stream{info: info}
}

// Info returns the stream metadata.
func (s Stream) Info() StreamInfo { return s.info }

// Revision returns the text revision the stream was produced for.
func (s Stream) Revision() uint64 { return s.info.Revision }

// Language returns the language the stream was produced for.
func (s Stream) Language() Language { return s.info.Language }

// Backend returns the id of the producing backend.
func (s Stream) Backend() string { return s.info.Backend }

// Truncated reports whether only a prefix of the text was tokenized.
func (s Stream) Truncated() bool { return s.info.Truncated }

// Len returns the number of tokens.
func (s Stream) Len() int { return len(s.tokens) }

// At returns the i-th token.
func (s Stream) At(i int) Token { return s.tokens[i] }

// Tokens returns a copy of the tokens.
func (s Stream) Tokens() []Token {
	return slices.Clone(s.tokens)
}

// All iterates over the tokens in order.
func (s Stream) All() iter.Seq2[int, Token] {
	return func(yield func(int, Token) bool) {
		for i, tok := range s.tokens {
			if !yield(i, tok) {
				return
			}
		}
	}
}

// TokenAt returns the token containing the byte offset, if any.
func (s Stream) TokenAt(off int) (Token, bool) {
	i, found := slices.BinarySearchFunc(s.tokens, off, func(t Token, off int) int {
		switch {
		case t.End <= off:
			return -1
		case t.Start > off:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return Token{}, false
	}
	return s.tokens[i], true
}

// WithRevision returns a stream sharing the same tokens stamped with a
// different revision. Sharing is safe because streams are never mutated.
func (s Stream) WithRevision(rev uint64) Stream {
	info := s.info
	info.Revision = rev
	return Stream{info: info, tokens: s.tokens}
}

// Filter returns the tokens of the given category.
func (s Stream) Filter(cat Category) []Token {
	var out []Token
	for _, tok := range s.tokens {
		if tok.Category == cat {
			out = append(out, tok)
		}
	}
	return out
}
