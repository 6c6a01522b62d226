package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/evidlabel/did/internal/entity"
)

// Derive builds a regex reproducing the separator style of an observed
// numeric variant: each digit run becomes \d{n}, each separator run becomes
// a tolerant separator class, and the whole expression is anchored on word
// boundaries so it never matches the middle of a longer number.
//
// Returns "" when the variant has no internal separators (a plain digit run
// needs no derived pattern) or contains characters other than digits and
// common separators.
func Derive(variant string) string {
	runs, ok := splitRuns(variant)
	if !ok || len(runs) < 2 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`\b`)
	for _, run := range runs {
		if run.digits > 0 {
			fmt.Fprintf(&b, `\d{%d}`, run.digits)
		} else {
			b.WriteString(`[\s./-]+`)
		}
	}
	b.WriteString(`\b`)
	return b.String()
}

type run struct {
	digits int // 0 for a separator run
}

// splitRuns decomposes a numeric variant into alternating digit and
// separator runs. Reports false if the variant contains anything else, or
// does not start and end with a digit.
func splitRuns(variant string) ([]run, bool) {
	var runs []run
	inDigits := false
	for _, r := range variant {
		switch {
		case unicode.IsDigit(r):
			if !inDigits {
				runs = append(runs, run{digits: 1})
				inDigits = true
			} else {
				runs[len(runs)-1].digits++
			}
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '.' || r == '/':
			if len(runs) == 0 {
				return nil, false // must start with a digit
			}
			if inDigits {
				runs = append(runs, run{digits: 0})
				inDigits = false
			}
		default:
			return nil, false
		}
	}
	if len(runs) == 0 || !inDigits {
		return nil, false // must end with a digit
	}
	return runs, true
}

// TolerantVariant compiles a matcher for a numeric variant that treats its
// internal separators as optional whitespace, so a number wrapped across a
// line break still matches its verbatim variant.
func TolerantVariant(variant string) (*regexp.Regexp, error) {
	var digits []rune
	for _, r := range variant {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 {
		return nil, fmt.Errorf("variant %q has no digits", variant)
	}

	var b strings.Builder
	b.WriteString(`\b`)
	b.WriteRune(digits[0])
	for _, d := range digits[1:] {
		b.WriteString(`[\s./-]*`)
		b.WriteRune(d)
	}
	b.WriteString(`\b`)
	return regexp.Compile(b.String())
}

// LiteralVariant compiles a case-insensitive matcher for a textual variant.
// Internal whitespace runs match any whitespace, including newlines, so
// line-wrapped mentions are caught.
func LiteralVariant(variant string) (*regexp.Regexp, error) {
	fields := strings.Fields(variant)
	if len(fields) == 0 {
		return nil, fmt.Errorf("variant %q is blank", variant)
	}

	var b strings.Builder
	b.WriteString(`(?i)`)
	if startsWordChar(fields[0]) {
		b.WriteString(`\b`)
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteString(`\s+`)
		}
		b.WriteString(regexp.QuoteMeta(f))
	}
	if endsWordChar(fields[len(fields)-1]) {
		b.WriteString(`\b`)
	}
	return regexp.Compile(b.String())
}

func startsWordChar(s string) bool {
	r := []rune(s)[0]
	return r == '_' || unicode.IsDigit(r) || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func endsWordChar(s string) bool {
	r := []rune(s)
	return startsWordChar(string(r[len(r)-1]))
}

// Match is one occurrence of a group's variant or pattern in a text.
// Literal distinguishes exact variant matches from pattern matches: exact
// matches win group-attribution ties.
type Match struct {
	Start   int
	End     int
	Group   *entity.Group
	Literal bool
}

// ScanGroups finds every occurrence of every literal variant and derived or
// user-authored pattern of the kind's groups. Variants of numeric kinds are
// matched whitespace-tolerantly; textual variants case-insensitively.
func ScanGroups(text string, kind entity.Kind, groups []*entity.Group) ([]Match, error) {
	var matches []Match

	for _, g := range groups {
		for _, v := range g.Variants {
			var (
				re  *regexp.Regexp
				err error
			)
			if kind.Numeric() {
				re, err = TolerantVariant(v)
			} else {
				re, err = LiteralVariant(v)
			}
			if err != nil {
				return nil, &entity.PatternError{ID: g.ID, Pattern: v, Err: err}
			}
			for _, loc := range re.FindAllStringIndex(text, -1) {
				matches = append(matches, Match{Start: loc[0], End: loc[1], Group: g, Literal: true})
			}
		}

		if re := g.Regexp(); re != nil {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				matches = append(matches, Match{Start: loc[0], End: loc[1], Group: g, Literal: false})
			}
		}
	}

	return matches, nil
}
