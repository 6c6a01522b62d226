package detect

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/evidlabel/did/internal/entity"
)

// Rule represents a single entity detection rule
type Rule struct {
	Name    string
	Kind    entity.Kind
	Pattern *regexp.Regexp
	// Languages the rule applies to; empty means all.
	Languages []string
}

// appliesTo reports whether the rule is active for the language.
func (r Rule) appliesTo(language string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == language {
			return true
		}
	}
	return false
}

// GetDefaultRules returns the built-in detection rules. Order matters: more
// specific rules run first so their spans win overlap resolution against
// generic ones.
func GetDefaultRules() []Rule {
	return []Rule{
		{
			Name:    "email",
			Kind:    entity.Email,
			Pattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		},
		{
			Name:    "cpr",
			Kind:    entity.CPRNumber,
			Pattern: regexp.MustCompile(`\b\d{6}-\d{4}\b`),
		},
		{
			Name:    "phone_grouped",
			Kind:    entity.PhoneNumber,
			Pattern: regexp.MustCompile(`\b\d{2}[ \t]+\d{2}[ \t]+\d{2}[ \t]+\d{2}\b`),
		},
		{
			Name:      "address_us",
			Kind:      entity.Address,
			Pattern:   regexp.MustCompile(`\d{1,5}\s[A-Za-z]+(?:\s[A-Za-z]+)*,\s*[A-Za-z]+,\s*[A-Z]{2}\b`),
			Languages: []string{LangEnglish},
		},
		{
			Name: "address_da",
			Kind: entity.Address,
			Pattern: regexp.MustCompile(
				`\b[A-ZÆØÅ][a-zæøå]*(?:vej|gade|allé|alle|torv|plads|vænget|parken|holm)` +
					`\s+\d{1,3}[A-Z]?` +
					`(?:,\s*(?:st|kl|\d{1,2})\.?\s*(?:tv|th|mf)\.?)?` +
					`(?:,\s*\d{4}\s+[A-ZÆØÅ][a-zæøåA-Za-z]+)?`),
			Languages: []string{LangDanish},
		},
		{
			// Capitalization heuristic: two or three name-like words. Single
			// capitalized words are far too ambiguous to treat as names.
			Name:    "person",
			Kind:    entity.Person,
			Pattern: regexp.MustCompile(`[A-ZÆØÅ][a-zæøå]+(?:[-'][A-ZÆØÅ]?[a-zæøå]+)*(?:[ \t]+(?:[A-ZÆØÅ][a-zæøå]+(?:[-'][A-ZÆØÅ]?[a-zæøå]+)*|[A-ZÆØÅ]{2,})){1,2}|[A-ZÆØÅ]{2,}(?:[ \t]+[A-ZÆØÅ]{2,}){1,2}`),
		},
	}
}

// personStopWords disqualify a candidate PERSON span. The person rule is a
// capitalization heuristic, so frequent sentence-initial and form-field words
// need to be filtered out.
var personStopWords = map[string]bool{
	"multiline": true,
	"phone":     true,
	"account":   true,
	"code":      true,
	"street":    true,
	"contact":   true,
	"dear":      true,
	"hello":     true,
	"regards":   true,
	"subject":   true,
	"page":      true,
	"the":       true,
	"and":       true,
}

// TrimStopWords returns the byte offset past any leading stop words and
// their trailing whitespace, so "Contact John Doe" yields the offset of
// "John Doe" instead of discarding the candidate wholesale.
func TrimStopWords(name string) int {
	offset := 0
	for {
		rest := name[offset:]
		i := strings.IndexAny(rest, " \t")
		if i <= 0 {
			return offset
		}
		if !personStopWords[strings.ToLower(rest[:i])] {
			return offset
		}
		offset += i
		for offset < len(name) && (name[offset] == ' ' || name[offset] == '\t') {
			offset++
		}
	}
}

// PlausibleName reports whether a candidate PERSON span looks like a real
// name: one to three words, each containing a letter, none a stop word.
func PlausibleName(name string) bool {
	words := strings.Fields(name)
	if len(words) < 1 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		if personStopWords[strings.ToLower(w)] {
			return false
		}
		hasLetter := false
		for _, r := range w {
			if unicode.IsLetter(r) {
				hasLetter = true
				break
			}
		}
		if !hasLetter {
			return false
		}
	}
	return true
}
