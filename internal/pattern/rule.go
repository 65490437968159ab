package pattern

import (
	"regexp"
	"slices"
	"strings"

	"github.com/dshills/lexbridge/internal/token"
)

// Rule defines a lexical pattern for one category.
type Rule struct {
	// Pattern is the RE2 pattern to match.
	Pattern string

	// Category is the category assigned to matches.
	Category token.Category

	// Submatch is the capture group whose span becomes the token
	// (0 for the whole match). It lets a rule require trailing context,
	// such as the "(" after a function name, without claiming it.
	Submatch int

	// Word rejects matches that touch an identifier rune on either side.
	// RE2's \b only knows ASCII word characters, so "func" in "éfunc"
	// would otherwise match.
	Word bool
}

// Match returns a whole-match rule.
func Match(cat token.Category, pattern string) Rule {
	return Rule{Pattern: pattern, Category: cat}
}

// Sub returns a rule whose token is the given capture group.
func Sub(cat token.Category, pattern string, group int) Rule {
	return Rule{Pattern: pattern, Category: cat, Submatch: group}
}

// WholeWord returns a whole-match rule that only matches standalone words.
func WholeWord(cat token.Category, pattern string) Rule {
	return Rule{Pattern: pattern, Category: cat, Word: true}
}

// Keywords returns a rule matching any of the words as whole words.
func Keywords(cat token.Category, words ...string) Rule {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	// Longer alternatives first so equal-start ties never pick a prefix.
	sortByLengthDesc(quoted)
	return Rule{
		Pattern:  `\b(?:` + strings.Join(quoted, "|") + `)\b`,
		Category: cat,
		Word:     true,
	}
}

// Directives returns a rule matching words introduced by a sigil such as
// "#" or "@", which \b cannot anchor on its own.
func Directives(cat token.Category, sigil string, words ...string) Rule {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	sortByLengthDesc(quoted)
	return Rule{
		Pattern:  regexp.QuoteMeta(sigil) + `(?:` + strings.Join(quoted, "|") + `)\b`,
		Category: cat,
		Word:     true,
	}
}

func sortByLengthDesc(words []string) {
	slices.SortStableFunc(words, func(a, b string) int {
		return len(b) - len(a)
	})
}
