package cleaner

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	maskedDigits = regexp.MustCompile(`(?i)X{4,}`)
	nullLiteral  = regexp.MustCompile(`(?i)\bnull\b`)
	digits       = regexp.MustCompile(`[0-9]+`)
)

// NormalizeDescription folds compatibility characters (non-breaking spaces,
// full-width letters), trims the text and collapses inner whitespace.
func NormalizeDescription(raw string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
}

// KeywordFor derives the rule keyword for a description: masked card
// numbers, the literal "null" and digits are removed so store numbers and
// dates do not defeat matching. The result is upper-cased and may be empty.
func KeywordFor(description string) string {
	s := NormalizeDescription(description)
	s = maskedDigits.ReplaceAllString(s, " ")
	s = nullLiteral.ReplaceAllString(s, " ")
	s = digits.ReplaceAllString(s, " ")
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
