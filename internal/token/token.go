package token

import (
	"fmt"

	"fortio.org/safecast"
)

// Token is a classified span of source text.
type Token struct {
	// Start is the byte offset of the first byte of the span.
	Start int

	// End is the byte offset one past the last byte (exclusive).
	End int

	// Category is the highlight class of the span.
	Category Category

	// Lexeme is the text covered by the span.
	Lexeme string
}

// New returns a token covering text[start:end].
// The caller guarantees 0 <= start < end <= len(text).
func New(text string, start, end int, cat Category) Token {
	return Token{Start: start, End: end, Category: cat, Lexeme: text[start:end]}
}

// Len returns the length of the token in bytes.
func (t Token) Len() int {
	return t.End - t.Start
}

// Contains returns true if the byte offset is within the token.
func (t Token) Contains(off int) bool {
	return off >= t.Start && off < t.End
}

// Overlaps returns true if the two tokens share at least one byte.
func (t Token) Overlaps(o Token) bool {
	return t.Start < o.End && o.Start < t.End
}

// Uint32Span returns the span as unsigned offsets for renderers that
// address columns with uint32.
func (t Token) Uint32Span() (start, end uint32, err error) {
	if start, err = safecast.Conv[uint32](t.Start); err != nil {
		return 0, 0, err
	}
	if end, err = safecast.Conv[uint32](t.End); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// String returns a debug representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s[%d:%d]%q", t.Category, t.Start, t.End, t.Lexeme)
}
