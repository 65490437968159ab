package token

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
)

// Language identifies one of the supported source languages.
type Language uint8

// Supported languages.
const (
	LanguageNone Language = iota
	LanguageSwift
	LanguageGo
	LanguagePython
	LanguageJavaScript
	LanguageRust
	LanguageC

	languageCount
)

type languageInfo struct {
	name       string
	aliases    []string
	extensions []string
}

var languages = [...]languageInfo{
	LanguageNone:       {name: "none"},
	LanguageSwift:      {name: "swift", extensions: []string{".swift"}},
	LanguageGo:         {name: "go", aliases: []string{"golang"}, extensions: []string{".go"}},
	LanguagePython:     {name: "python", aliases: []string{"py", "python3"}, extensions: []string{".py", ".pyw", ".pyi"}},
	LanguageJavaScript: {name: "javascript", aliases: []string{"js", "typescript", "ts"}, extensions: []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}},
	LanguageRust:       {name: "rust", aliases: []string{"rs"}, extensions: []string{".rs"}},
	LanguageC:          {name: "c", aliases: []string{"h"}, extensions: []string{".c", ".h"}},
}

// String returns the canonical lowercase language name.
func (l Language) String() string {
	if l < languageCount {
		return languages[l].name
	}
	return fmt.Sprintf("language(%d)", uint8(l))
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l > LanguageNone && l < languageCount
}

// Extensions returns the file extensions conventionally used by the language.
func (l Language) Extensions() []string {
	if !l.Valid() {
		return nil
	}
	out := make([]string, len(languages[l].extensions))
	copy(out, languages[l].extensions)
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (l Language) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Language) UnmarshalText(b []byte) error {
	lang, err := ParseLanguage(string(b))
	if err != nil {
		return err
	}
	*l = lang
	return nil
}

// Languages returns every supported language.
func Languages() []Language {
	out := make([]Language, 0, languageCount-1)
	for l := LanguageSwift; l < languageCount; l++ {
		out = append(out, l)
	}
	return out
}

var folder = cases.Fold()

// ParseLanguage resolves a language name or alias, ignoring case.
func ParseLanguage(name string) (Language, error) {
	key := folder.String(strings.TrimSpace(name))
	for l := LanguageSwift; l < languageCount; l++ {
		if languages[l].name == key {
			return l, nil
		}
		for _, alias := range languages[l].aliases {
			if alias == key {
				return l, nil
			}
		}
	}
	return LanguageNone, fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
}

// LanguageForPath guesses the language from a file extension.
// Detection is a caller concern; this helper exists for command-line callers.
func LanguageForPath(path string) (Language, bool) {
	ext := folder.String(filepath.Ext(path))
	if ext == "" {
		return LanguageNone, false
	}
	for l := LanguageSwift; l < languageCount; l++ {
		for _, e := range languages[l].extensions {
			if e == ext {
				return l, true
			}
		}
	}
	return LanguageNone, false
}
