package pattern

import (
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dshills/lexbridge/internal/token"
)

type want struct {
	text     string
	category token.Category
}

func tokenize(t *testing.T, lang token.Language, text string) token.Stream {
	t.Helper()
	return New().Tokenize(text, lang, 1)
}

func requireTokens(t *testing.T, s token.Stream, expected []want) {
	t.Helper()
	got := make([]want, 0, s.Len())
	for _, tok := range s.All() {
		got = append(got, want{tok.Lexeme, tok.Category})
	}
	require.Equal(t, expected, got)
}

func TestEndToEndSwiftScenario(t *testing.T) {
	text := "// hi\nfunc foo() { let x = 1 }"
	s := tokenize(t, token.LanguageSwift, text)

	requireTokens(t, s, []want{
		{"// hi", token.CategoryComment},
		{"func", token.CategoryKeyword},
		{"foo", token.CategoryFunction},
		{"(", token.CategoryOperator},
		{")", token.CategoryOperator},
		{"{", token.CategoryOperator},
		{"let", token.CategoryKeyword},
		{"x", token.CategoryIdentifier},
		{"=", token.CategoryOperator},
		{"1", token.CategoryNumber},
		{"}", token.CategoryOperator},
	})

	first := s.At(0)
	assert.Equal(t, 0, first.Start)
	assert.Equal(t, 5, first.End)
	assert.Equal(t, BackendID, s.Backend())
	assert.Equal(t, token.LanguageSwift, s.Language())
	assert.False(t, s.Truncated())
}

func TestKeywordInsideStringIsString(t *testing.T) {
	s := tokenize(t, token.LanguageSwift, `let x = "func"`)
	requireTokens(t, s, []want{
		{"let", token.CategoryKeyword},
		{"x", token.CategoryIdentifier},
		{"=", token.CategoryOperator},
		{`"func"`, token.CategoryString},
	})
}

func TestCommentAndStringStartOrder(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []want
	}{
		{
			name: "comment marker inside string",
			text: `let s = "// no" // yes`,
			want: []want{
				{"let", token.CategoryKeyword},
				{"s", token.CategoryIdentifier},
				{"=", token.CategoryOperator},
				{`"// no"`, token.CategoryString},
				{"// yes", token.CategoryComment},
			},
		},
		{
			name: "quote inside comment",
			text: `// "let"` + "\nvar",
			want: []want{
				{`// "let"`, token.CategoryComment},
				{"var", token.CategoryKeyword},
			},
		},
		{
			name: "block comment spans lines",
			text: "/* func\n let */ var",
			want: []want{
				{"/* func\n let */", token.CategoryComment},
				{"var", token.CategoryKeyword},
			},
		},
		{
			name: "unterminated string stops at newline",
			text: "let s = \"abc\nlet",
			want: []want{
				{"let", token.CategoryKeyword},
				{"s", token.CategoryIdentifier},
				{"=", token.CategoryOperator},
				{`"abc`, token.CategoryString},
				{"let", token.CategoryKeyword},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireTokens(t, tokenize(t, token.LanguageSwift, tt.text), tt.want)
		})
	}
}

func TestLowerPriorityCandidateIsTruncated(t *testing.T) {
	s := tokenize(t, token.LanguageC, `#include "foo.h" // x`)
	requireTokens(t, s, []want{
		{"#include", token.CategoryPreprocessor},
		{`"foo.h"`, token.CategoryString},
		{"// x", token.CategoryComment},
	})
}

func TestCPreprocessorContinuation(t *testing.T) {
	text := "#define MAX(a, b) \\\n  ((a) > (b))\nint x;"
	s := tokenize(t, token.LanguageC, text)
	require.GreaterOrEqual(t, s.Len(), 4)
	assert.Equal(t, "#define MAX(a, b) \\\n  ((a) > (b))", s.At(0).Lexeme)
	assert.Equal(t, token.CategoryPreprocessor, s.At(0).Category)
	assert.Equal(t, "int", s.At(1).Lexeme)
	assert.Equal(t, token.CategoryType, s.At(1).Category)
}

func TestGoProfile(t *testing.T) {
	text := "//go:build linux\npackage main\n\nfunc main() {\n\tfmt.Println(`raw`, 'x', 0x1F)\n}"
	s := tokenize(t, token.LanguageGo, text)

	requireTokens(t, s, []want{
		{"//go:build linux", token.CategoryPreprocessor},
		{"package", token.CategoryKeyword},
		{"main", token.CategoryIdentifier},
		{"func", token.CategoryKeyword},
		{"main", token.CategoryFunction},
		{"(", token.CategoryOperator},
		{")", token.CategoryOperator},
		{"{", token.CategoryOperator},
		{"fmt", token.CategoryIdentifier},
		{".", token.CategoryOperator},
		{"Println", token.CategoryFunction},
		{"(", token.CategoryOperator},
		{"`raw`", token.CategoryString},
		{",", token.CategoryOperator},
		{"'x'", token.CategoryString},
		{",", token.CategoryOperator},
		{"0x1F", token.CategoryNumber},
		{")", token.CategoryOperator},
		{"}", token.CategoryOperator},
	})
}

func TestPythonProfile(t *testing.T) {
	text := "@app.route(\"/\")\ndef f(): # done\n    return None"
	s := tokenize(t, token.LanguagePython, text)

	requireTokens(t, s, []want{
		{"@app.route", token.CategoryAttribute},
		{"(", token.CategoryOperator},
		{`"/"`, token.CategoryString},
		{")", token.CategoryOperator},
		{"def", token.CategoryKeyword},
		{"f", token.CategoryFunction},
		{"(", token.CategoryOperator},
		{")", token.CategoryOperator},
		{":", token.CategoryOperator},
		{"# done", token.CategoryComment},
		{"return", token.CategoryKeyword},
		{"None", token.CategoryKeyword},
	})
}

func TestPythonTripleQuotedString(t *testing.T) {
	text := "s = \"\"\"a\n\"b\"\nif\"\"\"\nif"
	s := tokenize(t, token.LanguagePython, text)
	requireTokens(t, s, []want{
		{"s", token.CategoryIdentifier},
		{"=", token.CategoryOperator},
		{"\"\"\"a\n\"b\"\nif\"\"\"", token.CategoryString},
		{"if", token.CategoryKeyword},
	})
}

func TestRustProfile(t *testing.T) {
	text := "#[derive(Debug)]\nfn f<'a>(s: &'a str) { println!(\"{}\", 'c'); }"
	s := tokenize(t, token.LanguageRust, text)

	requireTokens(t, s, []want{
		{"#[derive(Debug)]", token.CategoryAttribute},
		{"fn", token.CategoryKeyword},
		{"f", token.CategoryIdentifier},
		{"<", token.CategoryOperator},
		{"'a", token.CategoryType},
		{">", token.CategoryOperator},
		{"(", token.CategoryOperator},
		{"s", token.CategoryIdentifier},
		{":", token.CategoryOperator},
		{"&", token.CategoryOperator},
		{"'a", token.CategoryType},
		{"str", token.CategoryType},
		{")", token.CategoryOperator},
		{"{", token.CategoryOperator},
		{"println!", token.CategoryFunction},
		{"(", token.CategoryOperator},
		{`"{}"`, token.CategoryString},
		{",", token.CategoryOperator},
		{"'c'", token.CategoryString},
		{")", token.CategoryOperator},
		{";", token.CategoryOperator},
		{"}", token.CategoryOperator},
	})
}

func TestRustRawStrings(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`r"a\b"`, `r"a\b"`},
		{`r#"a "b" c"#`, `r#"a "b" c"#`},
		{`br##"x"#y"##`, `br##"x"#y"##`},
		{`r#"q""#`, `r#"q""#`},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := tokenize(t, token.LanguageRust, "let s = "+tt.text+";")
			requireTokens(t, s, []want{
				{"let", token.CategoryKeyword},
				{"s", token.CategoryIdentifier},
				{"=", token.CategoryOperator},
				{tt.want, token.CategoryString},
				{";", token.CategoryOperator},
			})
		})
	}
}

func TestJavaScriptProfile(t *testing.T) {
	text := "const el = `a ${b}` + Math.max(1, 2n)"
	s := tokenize(t, token.LanguageJavaScript, text)

	requireTokens(t, s, []want{
		{"const", token.CategoryKeyword},
		{"el", token.CategoryIdentifier},
		{"=", token.CategoryOperator},
		{"`a ${b}`", token.CategoryString},
		{"+", token.CategoryOperator},
		{"Math", token.CategoryType},
		{".", token.CategoryOperator},
		{"max", token.CategoryFunction},
		{"(", token.CategoryOperator},
		{"1", token.CategoryNumber},
		{",", token.CategoryOperator},
		{"2n", token.CategoryNumber},
		{")", token.CategoryOperator},
	})
}

func TestKeywordsNeedIdentifierBoundaries(t *testing.T) {
	tests := []struct {
		name string
		lang token.Language
		text string
		want []want
	}{
		{
			name: "swift non-ascii prefix",
			lang: token.LanguageSwift,
			text: "let éfunc = 1",
			want: []want{
				{"let", token.CategoryKeyword},
				{"éfunc", token.CategoryIdentifier},
				{"=", token.CategoryOperator},
				{"1", token.CategoryNumber},
			},
		},
		{
			name: "swift shorthand argument",
			lang: token.LanguageSwift,
			text: "$0 + 1",
			want: []want{
				{"$0", token.CategoryIdentifier},
				{"+", token.CategoryOperator},
				{"1", token.CategoryNumber},
			},
		},
		{
			name: "javascript dollar",
			lang: token.LanguageJavaScript,
			text: "const a$let = 1",
			want: []want{
				{"const", token.CategoryKeyword},
				{"a$let", token.CategoryIdentifier},
				{"=", token.CategoryOperator},
				{"1", token.CategoryNumber},
			},
		},
		{
			name: "go non-ascii suffix",
			lang: token.LanguageGo,
			text: "var forλ, π2 int",
			want: []want{
				{"var", token.CategoryKeyword},
				{"forλ", token.CategoryIdentifier},
				{",", token.CategoryOperator},
				{"π2", token.CategoryIdentifier},
				{"int", token.CategoryType},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireTokens(t, tokenize(t, tt.lang, tt.text), tt.want)
		})
	}
}

func TestUnmatchedTextIsUnknown(t *testing.T) {
	text := "x ¤ \\ y"
	s := tokenize(t, token.LanguageSwift, text)
	requireTokens(t, s, []want{
		{"x", token.CategoryIdentifier},
		{"¤", token.CategoryUnknown},
		{"\\", token.CategoryUnknown},
		{"y", token.CategoryIdentifier},
	})
}

func TestLanguageWithoutProfile(t *testing.T) {
	tok := New(WithProfiles(NewProfileSet(SwiftProfile())))
	s := tok.Tokenize("let  x", token.LanguageGo, 4)
	requireTokens(t, s, []want{
		{"let", token.CategoryUnknown},
		{"x", token.CategoryUnknown},
	})
	assert.Equal(t, uint64(4), s.Revision())
}

func TestMaxInputTruncates(t *testing.T) {
	tok := New(WithMaxInput(10))
	s := tok.Tokenize("let x = 1234567", token.LanguageSwift, 1)

	assert.True(t, s.Truncated())
	requireTokens(t, s, []want{
		{"let", token.CategoryKeyword},
		{"x", token.CategoryIdentifier},
		{"=", token.CategoryOperator},
		{"12", token.CategoryNumber},
	})
}

func TestMaxInputRespectsRuneBoundary(t *testing.T) {
	tok := New(WithMaxInput(5))
	s := tok.Tokenize("a日本", token.LanguageSwift, 1)
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "a日", s.At(0).Lexeme)
	assert.Equal(t, 4, s.At(0).End)
}

func TestEmptyAndWhitespaceInput(t *testing.T) {
	for _, lang := range token.Languages() {
		assert.Equal(t, 0, tokenize(t, lang, "").Len(), lang.String())
		assert.Equal(t, 0, tokenize(t, lang, " \n\t  \r\n").Len(), lang.String())
	}
}

func TestInvalidPatternPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewProfile(token.LanguageGo).Tier(Match(token.CategoryKeyword, `(`))
	})
	assert.Panics(t, func() {
		NewProfile(token.LanguageGo).Tier(Sub(token.CategoryKeyword, `a`, 1))
	})
	assert.Panics(t, func() {
		NewProfile(token.LanguageGo).Tier()
	})
}

func TestDefaultProfilesCoverAllLanguages(t *testing.T) {
	ps := DefaultProfiles()
	assert.Equal(t, token.Languages(), ps.Languages())
	for _, lang := range token.Languages() {
		p, ok := ps.Get(lang)
		require.True(t, ok, lang.String())
		assert.Greater(t, p.TierCount(), 4, lang.String())
	}
}

func TestLargeInputIsLinear(t *testing.T) {
	if testing.Short() {
		t.Skip("large input")
	}
	line := "func f(a: Int) -> String { return \"x\" + /* c */ String(a) } // end\n"
	text := strings.Repeat(line, 5000)
	s := tokenize(t, token.LanguageSwift, text)
	assert.Greater(t, s.Len(), 5000*10)
}

// codeAlphabet biases random text toward characters that start or end
// lexical constructs.
var codeAlphabet = []rune("ab_Z19 \t\n\"'`/\\*#@$!(){}[]<>=+-.,;:rfé日¤ ")

func TestTokenizePropertyTotalAndWellFormed(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lang := rapid.SampledFrom(token.Languages()).Draw(rt, "lang")
		text := rapid.OneOf(
			rapid.StringOf(rapid.SampledFrom(codeAlphabet)),
			rapid.String(),
		).Draw(rt, "text")

		s := New().Tokenize(text, lang, 7)

		prevEnd := 0
		covered := make([]bool, len(text))
		for i, tok := range s.All() {
			if tok.Start >= tok.End {
				rt.Fatalf("token %d empty: %v", i, tok)
			}
			if tok.Start < prevEnd {
				rt.Fatalf("token %d overlaps previous: %v", i, tok)
			}
			if tok.End > len(text) {
				rt.Fatalf("token %d out of bounds: %v", i, tok)
			}
			if tok.Lexeme != text[tok.Start:tok.End] {
				rt.Fatalf("token %d lexeme mismatch: %v", i, tok)
			}
			for j := tok.Start; j < tok.End; j++ {
				covered[j] = true
			}
			prevEnd = tok.End
		}

		// Everything left uncovered is whitespace.
		for i := 0; i < len(text); {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !covered[i] && !unicode.IsSpace(r) {
				rt.Fatalf("byte %d (%q) not tokenized", i, r)
			}
			i += size
		}
	})
}

func TestTokenizePropertyOpaqueSpansHaveNoKeywords(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		word := rapid.SampledFrom([]string{"func", "let", "var", "if", "return"}).Draw(rt, "word")
		quote := rapid.SampledFrom([]string{`"`, "// ", "/* "}).Draw(rt, "quote")
		closer := map[string]string{`"`: `"`, "// ": "\n", "/* ": " */"}[quote]
		text := "let a = 1\n" + quote + word + closer + " " + word

		s := New().Tokenize(text, token.LanguageSwift, 1)
		opaque := 0
		for _, tok := range s.All() {
			if tok.Category.IsOpaque() {
				opaque++
				assert.Contains(rt, tok.Lexeme, word)
			}
		}
		if opaque != 1 {
			rt.Fatalf("expected exactly one opaque token, got %d in %q", opaque, text)
		}
		last := s.At(s.Len() - 1)
		if last.Lexeme != word || last.Category != token.CategoryKeyword {
			rt.Fatalf("trailing %q should be a keyword, got %v", word, last)
		}
	})
}
