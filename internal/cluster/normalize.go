package cluster

import (
	"strings"
	"unicode"

	"github.com/evidlabel/did/internal/entity"
)

// danishFold transliterates Danish letters so that ASCII spellings of the
// same name compare equal ("Søren" vs "Soeren").
var danishFold = strings.NewReplacer(
	"å", "aa",
	"æ", "ae",
	"ø", "oe",
)

// Normalize produces the comparison form of a variant. Numeric kinds keep
// digits only; textual kinds are case-folded, Danish-transliterated,
// hyphen-stripped, and whitespace-collapsed. The verbatim variant is always
// what gets recorded in the configuration; normalization is for comparison
// and lookup only.
func Normalize(kind entity.Kind, s string) string {
	if kind.Numeric() {
		return digitsOf(s)
	}

	s = strings.ToLower(s)
	s = danishFold.Replace(s)
	s = strings.ReplaceAll(s, "-", "")

	return strings.Join(strings.Fields(s), " ")
}

// digitsOf strips every non-digit rune.
func digitsOf(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
