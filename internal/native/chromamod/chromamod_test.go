package chromamod

import (
	"context"
	"testing"

	"github.com/alecthomas/chroma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexbridge/internal/native"
	"github.com/dshills/lexbridge/internal/token"
)

func TestInitRegistersIntoProcess(t *testing.T) {
	_, err := native.Process.Resolve(RuntimeSymbol)
	require.NoError(t, err)

	for _, lang := range token.Languages() {
		sym, err := native.Process.Resolve(LexerSymbol(lang))
		require.NoError(t, err, lang.String())
		assert.True(t, sym.Callable())
	}
}

func TestGoLexerSpans(t *testing.T) {
	im := native.NewImage("test")
	Install(im)

	sym, err := im.Resolve(LexerSymbol(token.LanguageGo))
	require.NoError(t, err)

	src := "package main // entry\n"
	spans, err := sym.Tokenize(context.Background(), []byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, spans)

	assert.Equal(t, native.Span{Start: 0, End: 7, Category: token.CategoryKeyword}, spans[0])

	last := spans[len(spans)-1]
	assert.Equal(t, token.CategoryComment, last.Category)
	assert.Equal(t, "// entry", src[last.Start:last.End])

	prev := 0
	for _, s := range spans {
		assert.Less(t, s.Start, s.End)
		assert.GreaterOrEqual(t, s.Start, prev)
		assert.LessOrEqual(t, s.End, len(src))
		prev = s.End
	}
}

func TestCanceledContext(t *testing.T) {
	im := native.NewImage("test")
	Install(im)
	sym, err := im.Resolve(LexerSymbol(token.LanguageC))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sym.Tokenize(ctx, []byte("int x;"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCategory(t *testing.T) {
	tests := []struct {
		in   chroma.TokenType
		want token.Category
		ok   bool
	}{
		{chroma.CommentSingle, token.CategoryComment, true},
		{chroma.CommentPreproc, token.CategoryPreprocessor, true},
		{chroma.CommentPreprocFile, token.CategoryPreprocessor, true},
		{chroma.KeywordType, token.CategoryType, true},
		{chroma.KeywordDeclaration, token.CategoryKeyword, true},
		{chroma.NameFunction, token.CategoryFunction, true},
		{chroma.NameDecorator, token.CategoryAttribute, true},
		{chroma.NameClass, token.CategoryType, true},
		{chroma.NameOther, token.CategoryIdentifier, true},
		{chroma.LiteralStringDouble, token.CategoryString, true},
		{chroma.LiteralNumberHex, token.CategoryNumber, true},
		{chroma.Operator, token.CategoryOperator, true},
		{chroma.Punctuation, token.CategoryOperator, true},
		{chroma.Error, token.CategoryUnknown, true},
		{chroma.Text, token.CategoryUnknown, false},
		{chroma.TextWhitespace, token.CategoryUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got, ok := Category(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpansTrimAndClip(t *testing.T) {
	src := "x // c"
	toks := []chroma.Token{
		{Type: chroma.NameOther, Value: "x"},
		{Type: chroma.TextWhitespace, Value: " "},
		{Type: chroma.CommentSingle, Value: "// c\n"},
	}
	assert.Equal(t, []native.Span{
		{Start: 0, End: 1, Category: token.CategoryIdentifier},
		{Start: 2, End: 6, Category: token.CategoryComment},
	}, Spans(toks, src))
}

func TestCRLFOffsetsMatchSource(t *testing.T) {
	im := native.NewImage("test")
	Install(im)
	sym, err := im.Resolve(LexerSymbol(token.LanguageGo))
	require.NoError(t, err)

	src := "// a\r\n// b\r\nfunc foo() {}\r\n"
	spans, err := sym.Tokenize(context.Background(), []byte(src))
	require.NoError(t, err)

	got := make(map[string]token.Category)
	for _, s := range spans {
		require.LessOrEqual(t, s.End, len(src))
		lexeme := src[s.Start:s.End]
		assert.NotContains(t, lexeme, "\r", "span %d:%d", s.Start, s.End)
		assert.NotContains(t, lexeme, "\n", "span %d:%d", s.Start, s.End)
		got[lexeme] = s.Category
	}

	assert.Equal(t, token.CategoryComment, got["// a"])
	assert.Equal(t, token.CategoryComment, got["// b"])
	assert.Equal(t, token.CategoryKeyword, got["func"])
	assert.Equal(t, token.CategoryFunction, got["foo"])
}
