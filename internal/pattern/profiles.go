package pattern

import (
	"fmt"
	"strings"

	"github.com/dshills/lexbridge/internal/token"
)

// Shared lexical fragments. Every pattern is written so that the longest
// match at a position is also the intended one: bodies cannot run past
// their own terminator, and an unterminated construct simply stops at the
// end of the line (or of the text for multi-line forms).
const (
	slashComment = `//[^\n]*`
	hashComment  = `#[^\n]*`
	blockComment = `/\*(?:[^*]|\*+[^*/])*(?:\*+/)?`

	dqString    = `"(?:[^"\\\n]|\\.)*"?`
	sqString    = `'(?:[^'\\\n]|\\.)*'?`
	charLiteral = `'(?:[^'\\\n]|\\.)+'`

	tripleDQ = `"""(?:[^"\\]|\\(?s:.)|"[^"]|""[^"])*(?:"""|\z)`
	tripleSQ = `'''(?:[^'\\]|\\(?s:.)|'[^']|''[^'])*(?:'''|\z)`

	number = `\b(?:0[xX][0-9a-fA-F_]+|0[oO][0-7_]+|0[bB][01_]+|\d[\d_]*(?:\.\d[\d_]*)?(?:[eE][+-]?\d+)?)\w*`

	ident       = `[\p{L}_][\p{L}\p{N}_]*`
	callSite    = `(` + ident + `)\s*\(`
	capitalized = `\b[A-Z][A-Za-z0-9_]*\b`

	brackets  = `[(){}\[\],;]`
	operators = `[-+*/%=<>!&|^~?:.]+`
)

// SwiftProfile returns the pattern table for Swift.
func SwiftProfile() *Profile {
	p := NewProfile(token.LanguageSwift).IdentRunes("$")

	p.Tier(
		Match(token.CategoryComment, slashComment),
		Match(token.CategoryComment, blockComment),
		Match(token.CategoryString, tripleDQ),
		Match(token.CategoryString, dqString),
	)
	p.Tier(
		Sub(token.CategoryPreprocessor, `^[ \t]*(#(?:if|elseif|else|endif|warning|error|sourceLocation)\b[^\n]*)`, 1),
		Match(token.CategoryAttribute, `@`+ident),
	)
	p.Tier(
		Keywords(token.CategoryKeyword,
			"associatedtype", "class", "deinit", "enum", "extension", "fileprivate",
			"func", "import", "init", "inout", "internal", "let", "open", "operator",
			"private", "precedencegroup", "protocol", "public", "rethrows", "static",
			"struct", "subscript", "typealias", "var",
			"break", "case", "catch", "continue", "default", "defer", "do", "else",
			"fallthrough", "for", "guard", "if", "in", "repeat", "return", "throw",
			"switch", "where", "while",
			"as", "async", "await", "is", "self", "super", "throws", "try", "some", "any",
			"mutating", "nonmutating", "override", "final", "lazy", "weak", "unowned",
			"convenience", "required", "get", "set", "willSet", "didSet",
			"true", "false", "nil"),
		Directives(token.CategoryKeyword, "#",
			"available", "selector", "keyPath", "file", "line", "column", "function", "colorLiteral"),
	)
	p.Tier(WholeWord(token.CategoryNumber, number))
	p.Tier(
		Keywords(token.CategoryType,
			"Int", "Int8", "Int16", "Int32", "Int64", "UInt", "UInt8", "UInt16", "UInt32",
			"UInt64", "Float", "Double", "Bool", "String", "Character", "Void", "Any",
			"AnyObject", "Self", "Never", "Optional", "Array", "Dictionary", "Set"),
		WholeWord(token.CategoryType, capitalized),
	)
	p.Tier(Sub(token.CategoryFunction, callSite, 1))
	p.Tier(
		Match(token.CategoryIdentifier, ident),
		Match(token.CategoryIdentifier, `\$\w+`),
	)
	p.Tier(
		Match(token.CategoryOperator, brackets),
		Match(token.CategoryOperator, operators),
	)

	return p
}

// GoProfile returns the pattern table for Go.
func GoProfile() *Profile {
	p := NewProfile(token.LanguageGo)

	p.Tier(
		// Compiler directives share the comment syntax; declared first so
		// they win the equal-length tie.
		Sub(token.CategoryPreprocessor, `^[ \t]*(//go:\w+[^\n]*)`, 1),
		Match(token.CategoryComment, slashComment),
		Match(token.CategoryComment, blockComment),
		Match(token.CategoryString, "`[^`]*`?"),
		Match(token.CategoryString, dqString),
		Match(token.CategoryString, charLiteral),
	)
	p.Tier(
		Keywords(token.CategoryKeyword,
			"break", "case", "chan", "const", "continue", "default", "defer", "else",
			"fallthrough", "for", "func", "go", "goto", "if", "import", "interface",
			"map", "package", "range", "return", "select", "struct", "switch", "type",
			"var", "true", "false", "nil", "iota"),
	)
	p.Tier(WholeWord(token.CategoryNumber, number))
	p.Tier(
		Keywords(token.CategoryType,
			"int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
			"float32", "float64", "complex64", "complex128",
			"bool", "byte", "rune", "string", "error", "any", "comparable"),
	)
	p.Tier(Sub(token.CategoryFunction, callSite, 1))
	p.Tier(Match(token.CategoryIdentifier, ident))
	p.Tier(
		Match(token.CategoryOperator, brackets),
		Match(token.CategoryOperator, operators),
	)

	return p
}

// PythonProfile returns the pattern table for Python.
func PythonProfile() *Profile {
	p := NewProfile(token.LanguagePython)

	prefix := `(?:\b[rRbBuUfF]{1,2})?`
	p.Tier(
		Match(token.CategoryComment, hashComment),
		Match(token.CategoryString, prefix+tripleDQ),
		Match(token.CategoryString, prefix+tripleSQ),
		Match(token.CategoryString, prefix+dqString),
		Match(token.CategoryString, prefix+sqString),
	)
	p.Tier(
		Sub(token.CategoryAttribute, `^[ \t]*(@`+ident+`(?:\.`+ident+`)*)`, 1),
	)
	p.Tier(
		Keywords(token.CategoryKeyword,
			"and", "as", "assert", "async", "await", "break", "class", "continue",
			"def", "del", "elif", "else", "except", "finally", "for", "from", "global",
			"if", "import", "in", "is", "lambda", "nonlocal", "not", "or", "pass",
			"raise", "return", "try", "while", "with", "yield", "match", "case",
			"True", "False", "None"),
	)
	p.Tier(WholeWord(token.CategoryNumber, number))
	p.Tier(
		Keywords(token.CategoryType,
			"int", "float", "str", "bool", "list", "dict", "set", "tuple", "bytes",
			"bytearray", "complex", "frozenset", "object", "type"),
	)
	p.Tier(Sub(token.CategoryFunction, callSite, 1))
	p.Tier(Match(token.CategoryIdentifier, ident))
	p.Tier(
		Match(token.CategoryOperator, brackets),
		Match(token.CategoryOperator, `[-+*/%=<>!&|^~?:.@]+`),
	)

	return p
}

// JavaScriptProfile returns the pattern table for JavaScript and TypeScript.
func JavaScriptProfile() *Profile {
	p := NewProfile(token.LanguageJavaScript).IdentRunes("$")

	jsIdent := `[\p{L}_$][\p{L}\p{N}_$]*`
	p.Tier(
		Match(token.CategoryComment, slashComment),
		Match(token.CategoryComment, blockComment),
		Match(token.CategoryString, "`(?:[^`\\\\]|\\\\(?s:.))*`?"),
		Match(token.CategoryString, dqString),
		Match(token.CategoryString, sqString),
	)
	p.Tier(Match(token.CategoryAttribute, `@`+jsIdent))
	p.Tier(
		Keywords(token.CategoryKeyword,
			"break", "case", "catch", "class", "const", "continue", "debugger", "default",
			"delete", "do", "else", "export", "extends", "finally", "for", "function",
			"if", "import", "in", "instanceof", "let", "new", "return", "super", "switch",
			"this", "throw", "try", "typeof", "var", "void", "while", "with", "yield",
			"async", "await", "of", "static", "get", "set", "from", "as",
			"interface", "enum", "implements", "declare", "namespace", "type",
			"public", "private", "protected", "readonly", "abstract",
			"true", "false", "null", "undefined", "NaN", "Infinity"),
	)
	p.Tier(WholeWord(token.CategoryNumber, number))
	p.Tier(
		Keywords(token.CategoryType,
			"string", "number", "boolean", "bigint", "symbol", "any", "unknown", "never", "object"),
		WholeWord(token.CategoryType, capitalized),
	)
	p.Tier(Sub(token.CategoryFunction, `(`+jsIdent+`)\s*\(`, 1))
	p.Tier(Match(token.CategoryIdentifier, jsIdent))
	p.Tier(
		Match(token.CategoryOperator, brackets),
		Match(token.CategoryOperator, operators),
	)

	return p
}

// RustProfile returns the pattern table for Rust.
func RustProfile() *Profile {
	p := NewProfile(token.LanguageRust)

	p.Tier(
		Match(token.CategoryComment, slashComment),
		Match(token.CategoryComment, blockComment),
		Match(token.CategoryString, rustRawString(3)),
		Match(token.CategoryString, `(?:\bb)?"(?:[^"\\]|\\(?s:.))*"?`),
		Match(token.CategoryString, `(?:\bb)?'(?:[^'\\\n]|\\(?:x[0-9a-fA-F]{2}|u\{[0-9a-fA-F_]{1,6}\}|.))'`),
		// Lifetimes share the quote; the char literal wins when it is longer.
		Match(token.CategoryType, `'`+ident),
	)
	p.Tier(Match(token.CategoryAttribute, `#!?\[[^\]\n]*\]`))
	p.Tier(
		Keywords(token.CategoryKeyword,
			"as", "async", "await", "break", "const", "continue", "crate", "dyn", "else",
			"enum", "extern", "fn", "for", "if", "impl", "in", "let", "loop", "match",
			"mod", "move", "mut", "pub", "ref", "return", "self", "static", "struct",
			"super", "trait", "type", "unsafe", "use", "where", "while", "yield",
			"macro_rules", "true", "false"),
	)
	p.Tier(WholeWord(token.CategoryNumber, number))
	p.Tier(
		Keywords(token.CategoryType,
			"i8", "i16", "i32", "i64", "i128", "isize",
			"u8", "u16", "u32", "u64", "u128", "usize",
			"f32", "f64", "bool", "char", "str"),
		WholeWord(token.CategoryType, capitalized),
	)
	p.Tier(
		Sub(token.CategoryFunction, callSite, 1),
		Sub(token.CategoryFunction, `(`+ident+`!)\s*[(\[{]`, 1),
	)
	p.Tier(Match(token.CategoryIdentifier, ident))
	p.Tier(
		Match(token.CategoryOperator, brackets),
		Match(token.CategoryOperator, operators),
	)

	return p
}

// rustRawString matches raw strings with up to maxHashes '#' delimiters. A
// raw string ends at the first '"' followed by as many '#' as it opened
// with. RE2 cannot count, so each delimiter width gets its own alternative
// whose body never contains its terminator.
func rustRawString(maxHashes int) string {
	alts := []string{`r"[^"]*"?`}
	for n := 1; n <= maxHashes; n++ {
		hashes := strings.Repeat("#", n)
		quote := `"`
		if n > 1 {
			quote = fmt.Sprintf(`"#{0,%d}`, n-1)
		}
		body := `(?:[^"]|(?:` + quote + `)+[^#"])*`
		end := `(?:` + quote + `)*(?:"` + hashes + `|\z)`
		alts = append(alts, `r`+hashes+`"`+body+end)
	}
	return `\bb?(?:` + strings.Join(alts, "|") + `)`
}

// CProfile returns the pattern table for C.
func CProfile() *Profile {
	p := NewProfile(token.LanguageC)

	p.Tier(
		Match(token.CategoryComment, slashComment),
		Match(token.CategoryComment, blockComment),
		Match(token.CategoryString, `(?:\b(?:u8|[LuU]))?`+dqString),
		Match(token.CategoryString, `(?:\b[LuU])?`+charLiteral),
	)
	p.Tier(
		// Directives run to the end of the line, honouring backslash
		// continuations.
		Sub(token.CategoryPreprocessor, `^[ \t]*(#(?:[^\n\\]|\\(?s:.))*)`, 1),
		Match(token.CategoryAttribute, `\[\[[^\]\n]*\]\]`),
		Match(token.CategoryAttribute, `\b__attribute__\b`),
	)
	p.Tier(
		Keywords(token.CategoryKeyword,
			"auto", "break", "case", "const", "continue", "default", "do", "else",
			"enum", "extern", "for", "goto", "if", "inline", "register", "restrict",
			"return", "sizeof", "static", "struct", "switch", "typedef", "union",
			"volatile", "while", "_Alignas", "_Alignof", "_Atomic", "_Generic",
			"_Noreturn", "_Static_assert", "_Thread_local", "NULL", "true", "false"),
	)
	p.Tier(WholeWord(token.CategoryNumber, number))
	p.Tier(
		Keywords(token.CategoryType,
			"void", "char", "short", "int", "long", "float", "double", "signed",
			"unsigned", "bool", "_Bool", "_Complex"),
		WholeWord(token.CategoryType, `\b`+ident+`_t\b`),
	)
	p.Tier(Sub(token.CategoryFunction, callSite, 1))
	p.Tier(Match(token.CategoryIdentifier, ident))
	p.Tier(
		Match(token.CategoryOperator, brackets),
		Match(token.CategoryOperator, operators),
	)

	return p
}
