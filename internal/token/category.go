// Package token defines the classified-span model shared by every
// tokenization backend: categories, languages, tokens and immutable
// token streams.
package token

// Category is the highlight class assigned to a span of source text.
type Category uint8

// Token categories.
const (
	CategoryUnknown Category = iota
	CategoryKeyword
	CategoryIdentifier
	CategoryString
	CategoryNumber
	CategoryComment
	CategoryType
	CategoryFunction
	CategoryOperator
	CategoryPreprocessor
	CategoryAttribute

	// Sentinel for iteration
	categoryCount
)

// String returns the string representation of a category.
func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Scope returns the TextMate-style scope name renderers use to pick a style.
func (c Category) Scope() string {
	if int(c) < len(categoryScopes) {
		return categoryScopes[c]
	}
	return ""
}

// Valid reports whether c is a defined category.
func (c Category) Valid() bool {
	return c < categoryCount
}

// IsLiteral returns true for string and number tokens.
func (c Category) IsLiteral() bool {
	return c == CategoryString || c == CategoryNumber
}

// IsOpaque returns true for categories whose contents must never be
// reclassified (a keyword can never appear inside one).
func (c Category) IsOpaque() bool {
	return c == CategoryComment || c == CategoryString
}

// Categories returns all defined categories in declaration order.
func Categories() []Category {
	cats := make([]Category, 0, categoryCount)
	for c := CategoryUnknown; c < categoryCount; c++ {
		cats = append(cats, c)
	}
	return cats
}

// ParseCategory converts a name or scope to a Category.
// Hierarchical scopes resolve to their first segment, so "string.quoted"
// yields CategoryString.
func ParseCategory(name string) (Category, bool) {
	if c, ok := nameToCategory[name]; ok {
		return c, true
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			c, ok := nameToCategory[name[:i]]
			return c, ok
		}
	}
	return CategoryUnknown, false
}

var categoryNames = []string{
	CategoryUnknown:      "unknown",
	CategoryKeyword:      "keyword",
	CategoryIdentifier:   "identifier",
	CategoryString:       "string",
	CategoryNumber:       "number",
	CategoryComment:      "comment",
	CategoryType:         "type",
	CategoryFunction:     "function",
	CategoryOperator:     "operator",
	CategoryPreprocessor: "preprocessor",
	CategoryAttribute:    "attribute",
}

var categoryScopes = []string{
	CategoryUnknown:      "source",
	CategoryKeyword:      "keyword",
	CategoryIdentifier:   "variable",
	CategoryString:       "string.quoted",
	CategoryNumber:       "constant.numeric",
	CategoryComment:      "comment",
	CategoryType:         "entity.name.type",
	CategoryFunction:     "entity.name.function",
	CategoryOperator:     "keyword.operator",
	CategoryPreprocessor: "meta.preprocessor",
	CategoryAttribute:    "entity.other.attribute-name",
}

var nameToCategory = func() map[string]Category {
	m := make(map[string]Category, len(categoryNames))
	for i, name := range categoryNames {
		m[name] = Category(i)
	}
	return m
}()
