package pattern

import (
	"testing"

	"github.com/evidlabel/did/internal/entity"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		want    string
	}{
		{"danish phone grouping", "12 34 56 78", `\b\d{2}[\s./-]+\d{2}[\s./-]+\d{2}[\s./-]+\d{2}\b`},
		{"cpr", "123456-7890", `\b\d{6}[\s./-]+\d{4}\b`},
		{"dotted", "12.34.56", `\b\d{2}[\s./-]+\d{2}[\s./-]+\d{2}\b`},
		{"mixed separators", "123-45.67", `\b\d{3}[\s./-]+\d{2}[\s./-]+\d{2}\b`},
		{"plain digit run", "1234567890", ""},
		{"letters disqualify", "12a34", ""},
		{"leading separator disqualifies", " 1234 5678", ""},
		{"trailing separator disqualifies", "1234 5678 ", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.variant); got != tt.want {
				t.Errorf("Derive(%q) = %q, want %q", tt.variant, got, tt.want)
			}
		})
	}
}

func TestDeriveMatchesOwnVariant(t *testing.T) {
	for _, variant := range []string{"12 34 56 78", "123456-7890", "1234/5678", "12.34.56"} {
		p := Derive(variant)
		if p == "" {
			t.Fatalf("Derive(%q) = \"\"", variant)
		}
		g := &entity.Group{ID: "<NUMBER_1>", Variants: []string{variant}}
		if err := g.SetPattern(p); err != nil {
			t.Fatalf("derived pattern %q does not compile: %v", p, err)
		}
		if loc := g.Regexp().FindStringIndex(variant); loc == nil || loc[0] != 0 || loc[1] != len(variant) {
			t.Errorf("pattern %q does not match its own variant %q", p, variant)
		}
	}
}

func TestTolerantVariant(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		text    string
		match   string // "" means no match
	}{
		{"verbatim", "1234567890", "call 1234567890 now", "1234567890"},
		{"wrapped across newline", "1234567890", "call 1234567\n890 now", "1234567\n890"},
		{"reformatted with spaces", "12345678", "ring 12 34 56 78 nu", "12 34 56 78"},
		{"dashed form", "1234567890", "id 123-456-7890 ok", "123-456-7890"},
		{"different digits", "1234567890", "call 1234567891 now", ""},
		{"embedded in longer number", "12345678", "x123456789y", ""},
		{"prefix of longer number", "12345678", "1234567890", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := TolerantVariant(tt.variant)
			if err != nil {
				t.Fatalf("TolerantVariant(%q) error = %v", tt.variant, err)
			}
			loc := re.FindStringIndex(tt.text)
			if tt.match == "" {
				if loc != nil {
					t.Errorf("matched %q, want no match", tt.text[loc[0]:loc[1]])
				}
				return
			}
			if loc == nil {
				t.Fatalf("no match in %q", tt.text)
			}
			if got := tt.text[loc[0]:loc[1]]; got != tt.match {
				t.Errorf("matched %q, want %q", got, tt.match)
			}
		})
	}

	if _, err := TolerantVariant("no digits"); err == nil {
		t.Error("TolerantVariant without digits should fail")
	}
}

func TestLiteralVariant(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		text    string
		match   string
	}{
		{"verbatim", "John Doe", "met John Doe today", "John Doe"},
		{"case insensitive", "John Doe", "met john DOE today", "john DOE"},
		{"wrapped across newline", "John Doe", "met John\nDoe today", "John\nDoe"},
		{"no partial word", "John", "met Johnson today", ""},
		{"regex metacharacters quoted", "john.doe@example.com", "mail john.doe@example.com now", "john.doe@example.com"},
		{"no boundary inside email", "john.doe@example.com", "mail john1doe@example.com now", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := LiteralVariant(tt.variant)
			if err != nil {
				t.Fatalf("LiteralVariant(%q) error = %v", tt.variant, err)
			}
			loc := re.FindStringIndex(tt.text)
			if tt.match == "" {
				if loc != nil {
					t.Errorf("matched %q, want no match", tt.text[loc[0]:loc[1]])
				}
				return
			}
			if loc == nil {
				t.Fatalf("no match in %q", tt.text)
			}
			if got := tt.text[loc[0]:loc[1]]; got != tt.match {
				t.Errorf("matched %q, want %q", got, tt.match)
			}
		})
	}

	if _, err := LiteralVariant("   "); err == nil {
		t.Error("LiteralVariant on blank string should fail")
	}
}

func TestScanGroups(t *testing.T) {
	g1 := &entity.Group{ID: "<NUMBER_1>", Variants: []string{"1234567890"}}
	if err := g1.SetPattern(`\b\d{2}[\s./-]+\d{2}[\s./-]+\d{2}[\s./-]+\d{2}\b`); err != nil {
		t.Fatal(err)
	}

	text := "call 1234567890 or 98 76 54 32 today"
	matches, err := ScanGroups(text, entity.PhoneNumber, []*entity.Group{g1})
	if err != nil {
		t.Fatalf("ScanGroups() error = %v", err)
	}

	var literal, pat int
	for _, m := range matches {
		if m.Group != g1 {
			t.Errorf("match attributed to wrong group")
		}
		if m.Literal {
			literal++
			if got := text[m.Start:m.End]; got != "1234567890" {
				t.Errorf("literal match = %q", got)
			}
		} else {
			pat++
			if got := text[m.Start:m.End]; got != "98 76 54 32" {
				t.Errorf("pattern match = %q", got)
			}
		}
	}
	if literal != 1 || pat != 1 {
		t.Errorf("got %d literal and %d pattern matches, want 1 and 1", literal, pat)
	}
}

func TestScanGroupsTextual(t *testing.T) {
	g := &entity.Group{ID: "<PERSON_1>", Variants: []string{"John Doe", "Jon Doe"}}

	matches, err := ScanGroups("saw john DOE and Jon Doe", entity.Person, []*entity.Group{g})
	if err != nil {
		t.Fatalf("ScanGroups() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for _, m := range matches {
		if !m.Literal {
			t.Error("variant match should be literal")
		}
	}
}
