// Package transform turns raw fragment markup into the compact form stored
// in the generated artifact.
package transform

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	tabRun = regexp.MustCompile(`\t+`)
	// Same class as the ECMAScript \s escape, which also covers NBSP, BOM,
	// the line and paragraph separators and the Unicode space separators.
	whitespaceRun = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)
	lineBreaks    = regexp.MustCompile(`[\n\r]+`)
	// A terminated comment, or an unterminated one running to end of input.
	comment = regexp.MustCompile(`<!--[\s\S]*?-->|<!--[\s\S]*$`)
)

// Minify collapses whitespace, joins adjacent tags and strips comments.
//
// The rules are applied until the text stops changing, which makes Minify
// idempotent even when removing a comment leaves two spaces or a new tag gap
// behind. No rule lengthens the text, so the loop terminates.
func Minify(raw string) string {
	out := minifyPass(raw)
	for {
		next := minifyPass(out)
		if next == out {
			return out
		}
		out = next
	}
}

func minifyPass(s string) string {
	s = tabRun.ReplaceAllLiteralString(s, " ")
	s = whitespaceRun.ReplaceAllLiteralString(s, " ")
	s = lineBreaks.ReplaceAllLiteralString(s, "")
	s = strings.ReplaceAll(s, "> <", "><")
	s = comment.ReplaceAllLiteralString(s, "")
	return trimSpace(s)
}

// trimSpace trims the same whitespace class the collapse step matches.
func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', 0x2028, 0x2029, 0xFEFF:
		return true
	}
	return unicode.Is(unicode.Zs, r)
}
