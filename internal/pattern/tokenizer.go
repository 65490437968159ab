// Package pattern implements the always-available tokenizer that classifies
// source text with ordered lexical pattern tables.
//
// Matching uses RE2 regular expressions only, so tokenization time is
// linear in the input for every profile. The tokenizer is total: any input,
// including invalid UTF-8, yields a well-formed stream.
package pattern

import (
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/dshills/lexbridge/internal/token"
)

// BackendID identifies streams produced by the pattern tokenizer.
const BackendID = "pattern"

// DefaultMaxInput is the default cap on bytes tokenized per call.
const DefaultMaxInput = 4 << 20

// ProfileSet maps languages to profiles. It is immutable once built and
// safe for concurrent use.
type ProfileSet struct {
	profiles map[token.Language]*Profile
}

// NewProfileSet creates a set from profiles. A later profile for the same
// language replaces an earlier one.
func NewProfileSet(profiles ...*Profile) *ProfileSet {
	s := &ProfileSet{profiles: make(map[token.Language]*Profile, len(profiles))}
	for _, p := range profiles {
		s.profiles[p.Language()] = p
	}
	return s
}

// Get returns the profile for a language.
func (s *ProfileSet) Get(lang token.Language) (*Profile, bool) {
	p, ok := s.profiles[lang]
	return p, ok
}

// Languages returns the languages with a profile, in enum order.
func (s *ProfileSet) Languages() []token.Language {
	langs := make([]token.Language, 0, len(s.profiles))
	for lang := range s.profiles {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// DefaultProfiles returns the built-in profiles, compiled once.
var DefaultProfiles = sync.OnceValue(func() *ProfileSet {
	return NewProfileSet(
		SwiftProfile(),
		GoProfile(),
		PythonProfile(),
		JavaScriptProfile(),
		RustProfile(),
		CProfile(),
	)
})

// Tokenizer is the pattern-based tokenization backend.
type Tokenizer struct {
	profiles *ProfileSet
	maxInput int
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithProfiles replaces the built-in profiles.
func WithProfiles(ps *ProfileSet) Option {
	return func(t *Tokenizer) {
		if ps != nil {
			t.profiles = ps
		}
	}
}

// WithMaxInput caps the number of bytes tokenized per call.
// Zero or negative means no cap.
func WithMaxInput(n int) Option {
	return func(t *Tokenizer) {
		t.maxInput = n
	}
}

// New creates a pattern tokenizer.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{
		profiles: DefaultProfiles(),
		maxInput: DefaultMaxInput,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ID returns the backend id.
func (t *Tokenizer) ID() string {
	return BackendID
}

// MaxInput returns the per-call byte cap (0 when uncapped).
func (t *Tokenizer) MaxInput() int {
	return max(t.maxInput, 0)
}

// Profiles returns the profile set in use.
func (t *Tokenizer) Profiles() *ProfileSet {
	return t.profiles
}

// Tokenize classifies text as lang and stamps the stream with rev.
// A language without a profile yields unknown runs only.
func (t *Tokenizer) Tokenize(text string, lang token.Language, rev uint64) token.Stream {
	info := token.StreamInfo{Revision: rev, Language: lang, Backend: BackendID}

	src := text
	if t.maxInput > 0 && len(src) > t.maxInput {
		src = src[:runeBoundary(src, t.maxInput)]
		info.Truncated = true
	}

	var tokens []token.Token
	if p, ok := t.profiles.Get(lang); ok {
		tokens = p.Tokenize(src)
	} else {
		tokens = NewProfile(lang).Tokenize(src)
	}

	stream, err := token.NewStream(info, len(text), tokens)
	if err != nil {
		// Unreachable by construction; keep the contract anyway.
		return token.Empty(info)
	}
	return stream
}

// runeBoundary returns the largest offset <= n that starts a rune.
func runeBoundary(s string, n int) int {
	for n > 0 && n < len(s) && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
