package pattern

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/lexbridge/internal/token"
)

// Profile is the priority-ordered pattern table for one language.
//
// Each tier is matched independently over the whole text. Inside a tier
// the earliest match wins, then the longest, then the first declared
// rule. Across tiers, earlier tiers take precedence: a later candidate
// keeps only the parts no earlier token covers.
type Profile struct {
	language token.Language
	tiers    []*tier

	// identExtra lists runes besides letters, digits and '_' that may
	// appear in identifiers.
	identExtra string
}

// tier is a set of rules compiled into one leftmost-longest alternation.
type tier struct {
	rules []Rule
	re    *regexp.Regexp

	// wrap[i] is the group index of the wrapper around rule i.
	wrap []int

	// span[i] is the group index whose span becomes rule i's token.
	span []int
}

// candidate is a tier match before merging.
type candidate struct {
	start, end int
	category   token.Category
}

// NewProfile creates an empty profile for the language.
func NewProfile(lang token.Language) *Profile {
	return &Profile{language: lang}
}

// Language returns the language this profile classifies.
func (p *Profile) Language() token.Language {
	return p.language
}

// Tier appends a priority tier. Tiers added first win conflicts.
// It panics on an invalid pattern, like regexp.MustCompile; profiles are
// built from constant tables at startup.
func (p *Profile) Tier(rules ...Rule) *Profile {
	t, err := compileTier(rules)
	if err != nil {
		panic(fmt.Sprintf("pattern: %s profile: %v", p.language, err))
	}
	p.tiers = append(p.tiers, t)
	return p
}

// IdentRunes adds runes that count as identifier characters when checking
// word boundaries, such as '$' in JavaScript.
func (p *Profile) IdentRunes(extra string) *Profile {
	p.identExtra += extra
	return p
}

// TierCount returns the number of tiers.
func (p *Profile) TierCount() int {
	return len(p.tiers)
}

// compileTier builds the alternation for a tier and records where each
// rule's groups land in it.
func compileTier(rules []Rule) (*tier, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("empty tier")
	}

	t := &tier{
		rules: rules,
		wrap:  make([]int, len(rules)),
		span:  make([]int, len(rules)),
	}

	parts := make([]string, len(rules))
	group := 1
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Category, err)
		}
		if r.Submatch < 0 || r.Submatch > re.NumSubexp() {
			return nil, fmt.Errorf("rule %d (%s): submatch %d out of range", i, r.Category, r.Submatch)
		}
		t.wrap[i] = group
		t.span[i] = group + r.Submatch
		group += 1 + re.NumSubexp()
		parts[i] = "(" + r.Pattern + ")"
	}

	re, err := regexp.Compile(`(?m:` + strings.Join(parts, "|") + `)`)
	if err != nil {
		return nil, err
	}
	re.Longest()
	t.re = re
	return t, nil
}

// find returns the tier's non-overlapping matches in text order.
func (t *tier) find(text string, isIdent func(rune) bool) []candidate {
	matches := t.re.FindAllStringSubmatchIndex(text, -1)
	cands := make([]candidate, 0, len(matches))
	for _, m := range matches {
		for i, r := range t.rules {
			if m[2*t.wrap[i]] < 0 {
				continue
			}
			start, end := m[2*t.span[i]], m[2*t.span[i]+1]
			if r.Word && !standalone(text, start, end, isIdent) {
				break
			}
			if start >= 0 && end > start {
				cands = append(cands, candidate{start: start, end: end, category: r.Category})
			}
			break
		}
	}
	return cands
}

// Tokenize classifies text. It never fails: spans no rule claims become
// unknown tokens, and whitespace is left untokenized.
func (p *Profile) Tokenize(text string) []token.Token {
	covered := make([]bool, len(text))
	tokens := make([]token.Token, 0, len(text)/4)

	for _, t := range p.tiers {
		for _, c := range t.find(text, p.isIdent) {
			tokens = accept(tokens, text, covered, c)
		}
	}

	tokens = fillUnknown(tokens, text, covered)

	slices.SortFunc(tokens, func(a, b token.Token) int {
		return a.Start - b.Start
	})
	return tokens
}

func (p *Profile) isIdent(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r) ||
		(p.identExtra != "" && strings.ContainsRune(p.identExtra, r))
}

// standalone reports whether [start, end) is bounded by non-identifier runes.
func standalone(text string, start, end int, isIdent func(rune) bool) bool {
	if start < 0 || end <= start {
		return false
	}
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isIdent(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isIdent(r) {
			return false
		}
	}
	return true
}

// accept adds the uncovered parts of c and marks them covered.
func accept(tokens []token.Token, text string, covered []bool, c candidate) []token.Token {
	if !isCovered(covered, c.start, c.end) {
		markCovered(covered, c.start, c.end)
		return append(tokens, token.New(text, c.start, c.end, c.category))
	}

	// Truncate to the uncovered fragments.
	i := c.start
	for i < c.end {
		if covered[i] {
			i++
			continue
		}
		start := i
		for i < c.end && !covered[i] {
			i++
		}
		fs, fe := trimSpace(text, start, i)
		if fs < fe {
			markCovered(covered, fs, fe)
			tokens = append(tokens, token.New(text, fs, fe, c.category))
		}
	}
	return tokens
}

// fillUnknown emits an unknown token for every uncovered run of
// non-whitespace text.
func fillUnknown(tokens []token.Token, text string, covered []bool) []token.Token {
	i := 0
	for i < len(text) {
		if covered[i] {
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(r) {
			i += size
			continue
		}
		start := i
		for i < len(text) && !covered[i] {
			r, size = utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		markCovered(covered, start, i)
		tokens = append(tokens, token.New(text, start, i, token.CategoryUnknown))
	}
	return tokens
}

// isCovered checks if any byte of the range is already covered.
func isCovered(covered []bool, start, end int) bool {
	for i := start; i < end && i < len(covered); i++ {
		if covered[i] {
			return true
		}
	}
	return false
}

// markCovered marks a range as covered.
func markCovered(covered []bool, start, end int) {
	for i := max(start, 0); i < end && i < len(covered); i++ {
		covered[i] = true
	}
}

// trimSpace narrows [start, end) so it neither starts nor ends with ASCII
// whitespace.
func trimSpace(text string, start, end int) (int, int) {
	for start < end && isASCIISpace(text[start]) {
		start++
	}
	for end > start && isASCIISpace(text[end-1]) {
		end--
	}
	return start, end
}

func isASCIISpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
