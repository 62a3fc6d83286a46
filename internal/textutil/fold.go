package textutil

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Fold transliterates text to ASCII, lowercases it, and collapses every run
// of non-alphanumeric characters into a single space. "Amélie: Le Fabuleux"
// folds to "amelie le fabuleux".
func Fold(text string) string {
	ascii := unidecode.Unidecode(text)
	var b strings.Builder
	b.Grow(len(ascii))
	space := true
	for _, r := range strings.ToLower(ascii) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}
