package token

import "github.com/rivo/uniseg"

// Columns converts the byte span of tok into display columns of text,
// counting grapheme clusters and their terminal widths. text must be the
// snapshot the token was produced from.
func Columns(text string, tok Token) (startCol, endCol int) {
	if tok.Start < 0 || tok.End > len(text) || tok.Start > tok.End {
		return 0, 0
	}
	startCol = uniseg.StringWidth(lineBefore(text, tok.Start))
	endCol = startCol + uniseg.StringWidth(text[tok.Start:tok.End])
	return startCol, endCol
}

// lineBefore returns the text between the last newline before off and off.
func lineBefore(text string, off int) string {
	for i := off - 1; i >= 0; i-- {
		if text[i] == '\n' {
			return text[i+1 : off]
		}
	}
	return text[:off]
}
