package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/sjson"

	"github.com/dshills/lexbridge/internal/matrix"
	"github.com/dshills/lexbridge/internal/token"
)

// palette colors categories in pretty output.
type palette struct {
	cats  map[token.Category]*color.Color
	faint *color.Color
	ok    *color.Color
	bad   *color.Color
}

func newPalette(noColor bool) *palette {
	p := &palette{
		cats: map[token.Category]*color.Color{
			token.CategoryUnknown:      color.New(color.FgHiRed),
			token.CategoryKeyword:      color.New(color.FgMagenta, color.Bold),
			token.CategoryIdentifier:   color.New(color.FgWhite),
			token.CategoryString:       color.New(color.FgGreen),
			token.CategoryNumber:       color.New(color.FgCyan),
			token.CategoryComment:      color.New(color.FgHiBlack, color.Italic),
			token.CategoryType:         color.New(color.FgYellow),
			token.CategoryFunction:     color.New(color.FgBlue),
			token.CategoryOperator:     color.New(color.FgHiWhite),
			token.CategoryPreprocessor: color.New(color.FgHiMagenta),
			token.CategoryAttribute:    color.New(color.FgHiYellow),
		},
		faint: color.New(color.Faint),
		ok:    color.New(color.FgGreen),
		bad:   color.New(color.FgRed),
	}
	if noColor {
		for _, c := range p.cats {
			c.DisableColor()
		}
		p.faint.DisableColor()
		p.ok.DisableColor()
		p.bad.DisableColor()
	}
	return p
}

func (p *palette) category(c token.Category) *color.Color {
	if col, ok := p.cats[c]; ok {
		return col
	}
	return p.cats[token.CategoryUnknown]
}

// writePretty prints one token per line as line:col, category and lexeme.
func writePretty(w io.Writer, p *palette, s token.Stream, text string) error {
	header := fmt.Sprintf("# %s via %s, %d tokens", s.Language(), s.Backend(), s.Len())
	if s.Truncated() {
		header += " (truncated)"
	}
	if _, err := p.faint.Fprintln(w, header); err != nil {
		return err
	}

	pos := newLineIndex(text)
	for _, tok := range s.All() {
		line := pos.line(tok.Start)
		col, _ := token.Columns(text, tok)
		name := fmt.Sprintf("%-12s", tok.Category)
		if _, err := fmt.Fprintf(w, "%4d:%-4d %s %s\n", line, col+1, p.category(tok.Category).Sprint(name), strconv.Quote(tok.Lexeme)); err != nil {
			return err
		}
	}
	return nil
}

// streamJSON renders a stream as a JSON document.
func streamJSON(s token.Stream, text string) (string, error) {
	out := "{}"
	var err error
	set := func(path string, v any) {
		if err == nil {
			out, err = sjson.Set(out, path, v)
		}
	}
	set("language", s.Language().String())
	set("backend", s.Backend())
	set("revision", s.Revision())
	set("truncated", s.Truncated())
	set("count", s.Len())
	if err == nil {
		out, err = sjson.SetRaw(out, "tokens", "[]")
	}

	pos := newLineIndex(text)
	for _, tok := range s.All() {
		if err != nil {
			break
		}
		col, endCol := token.Columns(text, tok)
		obj := "{}"
		for _, kv := range []struct {
			k string
			v any
		}{
			{"start", tok.Start},
			{"end", tok.End},
			{"line", pos.line(tok.Start)},
			{"col", col + 1},
			{"width", endCol - col},
			{"category", tok.Category.String()},
			{"scope", tok.Category.Scope()},
			{"lexeme", tok.Lexeme},
		} {
			if obj, err = sjson.Set(obj, kv.k, kv.v); err != nil {
				break
			}
		}
		if err == nil {
			out, err = sjson.SetRaw(out, "tokens.-1", obj)
		}
	}
	return out, err
}

// matrixJSON renders the availability matrix as {"rows": [...]}.
func matrixJSON(m matrix.Matrix) (string, error) {
	out := `{"rows":[]}`
	for _, row := range m.Rows() {
		obj := "{}"
		var err error
		for _, kv := range []struct {
			k string
			v any
		}{
			{"language", row.Language.String()},
			{"pattern", row.Pattern},
			{"native", row.Native},
			{"degraded", row.Degraded},
			{"active", row.Active},
		} {
			if obj, err = sjson.Set(obj, kv.k, kv.v); err != nil {
				return "", err
			}
		}
		if out, err = sjson.SetRaw(out, "rows.-1", obj); err != nil {
			return "", err
		}
	}
	return out, nil
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(text string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (li lineIndex) line(off int) int {
	i, found := slices.BinarySearch(li, off)
	if found {
		return i + 1
	}
	return i
}

func yesNo(p *palette, v bool) string {
	if v {
		return p.ok.Sprint("yes")
	}
	return p.faint.Sprint("-")
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ",")
}
