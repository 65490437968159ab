// Package chromamod links chroma lexers into the process image as native
// tokenization entry points.
//
// Importing the package for its side effects registers, into native.Process,
// the runtime marker RuntimeSymbol and one LexerSymbol per language that
// chroma has a lexer for. Binaries that do not import it see those backends
// as unavailable.
package chromamod

import (
	"context"
	"fmt"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/dshills/lexbridge/internal/native"
	"github.com/dshills/lexbridge/internal/token"
)

// RuntimeSymbol marks that the chroma runtime is linked.
const RuntimeSymbol = "chroma_tokenise"

// LexerSymbol returns the entry point name for a language's lexer.
func LexerSymbol(lang token.Language) string {
	return "chroma_" + lang.String() + "_lexer"
}

func init() {
	Install(native.Process)
}

// Install registers the chroma entry points into im.
func Install(im *native.Image) {
	im.Provide(RuntimeSymbol)
	for _, lang := range token.Languages() {
		lexer := lexers.Get(lang.String())
		if lexer == nil {
			continue
		}
		im.Register(LexerSymbol(lang), entryPoint(chroma.Coalesce(lexer)))
	}
}

// Offsets are computed over the exact source, so line endings must reach the
// lexer unchanged.
var tokeniseOptions = chroma.TokeniseOptions{State: "root", EnsureLF: false}

func entryPoint(lexer chroma.Lexer) native.TokenizeFunc {
	return func(ctx context.Context, src []byte) ([]native.Span, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		opts := tokeniseOptions
		it, err := lexer.Tokenise(&opts, string(src))
		if err != nil {
			return nil, fmt.Errorf("%w: chroma: %v", native.ErrCallFailed, err)
		}
		return Spans(it.Tokens(), string(src)), nil
	}
}

// Spans converts chroma tokens into spans over src. Whitespace runs are
// dropped and every span is trimmed of surrounding whitespace, since lexers
// fold newlines into comment and text tokens.
func Spans(toks []chroma.Token, src string) []native.Span {
	spans := make([]native.Span, 0, len(toks))
	off := 0
	for _, tok := range toks {
		start := off
		off += len(tok.Value)
		cat, ok := Category(tok.Type)
		if !ok {
			continue
		}

		// Lexers with EnsureNL may report one byte past the source.
		end := min(off, len(src))
		for start < end && isSpace(src[start]) {
			start++
		}
		for end > start && isSpace(src[end-1]) {
			end--
		}
		if start < end {
			spans = append(spans, native.Span{Start: start, End: end, Category: cat})
		}
	}
	return spans
}

// Category maps a chroma token type onto a token category. It reports false
// for types that carry no highlighting, such as plain text.
func Category(tt chroma.TokenType) (token.Category, bool) {
	switch {
	case tt == chroma.None || tt == chroma.EOFType:
		return token.CategoryUnknown, false
	case tt.InSubCategory(chroma.CommentPreproc):
		return token.CategoryPreprocessor, true
	case tt.InCategory(chroma.Comment):
		return token.CategoryComment, true
	case tt == chroma.KeywordType:
		return token.CategoryType, true
	case tt.InCategory(chroma.Keyword):
		return token.CategoryKeyword, true
	case tt == chroma.NameFunction || tt == chroma.NameFunctionMagic:
		return token.CategoryFunction, true
	case tt == chroma.NameDecorator || tt == chroma.NameAttribute:
		return token.CategoryAttribute, true
	case tt == chroma.NameClass || tt == chroma.NameBuiltin:
		return token.CategoryType, true
	case tt.InCategory(chroma.Name):
		return token.CategoryIdentifier, true
	case tt.InSubCategory(chroma.LiteralString):
		return token.CategoryString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return token.CategoryNumber, true
	case tt.InCategory(chroma.Literal):
		return token.CategoryString, true
	case tt.InCategory(chroma.Operator), tt == chroma.Punctuation:
		return token.CategoryOperator, true
	case tt == chroma.Error:
		return token.CategoryUnknown, true
	}
	return token.CategoryUnknown, false
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
